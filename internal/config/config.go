package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"curator/internal/core"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Logging    Logging    `mapstructure:"logging"`
	Content    Content    `mapstructure:"content"`
	Ledger     Ledger     `mapstructure:"ledger"`
	Sources    Sources    `mapstructure:"sources"`
	Ingest     Ingest     `mapstructure:"ingest"`
	Search     Search     `mapstructure:"search"`
	Generation Generation `mapstructure:"generation"`
	Voice      Voice      `mapstructure:"voice"`
	Quality    Quality    `mapstructure:"quality"`
	History    History    `mapstructure:"history"`
	Metrics    Metrics    `mapstructure:"metrics"`
	Server     Server     `mapstructure:"server"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Content holds artifact storage configuration
type Content struct {
	Directory           string `mapstructure:"directory"`
	SocialDirectory     string `mapstructure:"social_directory"`
	ArchiveDirectory    string `mapstructure:"archive_directory"`
	Extension           string `mapstructure:"extension"`
	SlugMaxLength       int    `mapstructure:"slug_max_length"`
	SocialSlugMaxLength int    `mapstructure:"social_slug_max_length"`
	DefaultCategory     string `mapstructure:"default_category"`
}

// Ledger holds fingerprint ledger configuration
type Ledger struct {
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// Sources holds the source registry location
type Sources struct {
	File string `mapstructure:"file"`
}

// Ingest holds ingestion defaults
type Ingest struct {
	DefaultTopics       string `mapstructure:"default_topics"`
	RecencyDays         int    `mapstructure:"recency_days"`
	ItemCap             int    `mapstructure:"item_cap"`
	CandidateMultiplier int    `mapstructure:"candidate_multiplier"`
	Concurrency         int    `mapstructure:"concurrency"`
	Timeout             string `mapstructure:"timeout"`
	UserAgent           string `mapstructure:"user_agent"`
	MaxItemsPerFeed     int    `mapstructure:"max_items_per_feed"`
}

// Search holds configuration for the search ingestion mode
type Search struct {
	Provider   string             `mapstructure:"provider"`
	MaxResults int                `mapstructure:"max_results"`
	Google     GoogleSearchConfig `mapstructure:"google"`
}

// GoogleSearchConfig holds Google Custom Search configuration
type GoogleSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	SearchID string `mapstructure:"search_id"`
}

// Generation selects and configures the text generation backend
type Generation struct {
	Backend     string        `mapstructure:"backend"`
	Timeout     string        `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
	Gemini      BackendConfig `mapstructure:"gemini"`
	OpenAI      BackendConfig `mapstructure:"openai"`
	Grok        BackendConfig `mapstructure:"grok"`
	Minimax     BackendConfig `mapstructure:"minimax"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int32         `mapstructure:"max_tokens"`
}

// BackendConfig holds credentials and model for one backend
type BackendConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// BreakerConfig holds circuit breaker settings around the backend
type BreakerConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	ConsecutiveFailures uint32 `mapstructure:"consecutive_failures"`
	OpenTimeout         string `mapstructure:"open_timeout"`
}

// Voice holds the brand voice passed into every prompt
type Voice struct {
	Author        string   `mapstructure:"author"`
	Audience      string   `mapstructure:"audience"`
	FirstPerson   bool     `mapstructure:"first_person"`
	BrandFile     string   `mapstructure:"brand_file"`
	BannedPhrases []string `mapstructure:"banned_phrases"`
}

// Quality holds validator thresholds for long-form content
type Quality struct {
	MinWords            int `mapstructure:"min_words"`
	MaxWords            int `mapstructure:"max_words"`
	MaxTitleChars       int `mapstructure:"max_title_chars"`
	MaxDescriptionChars int `mapstructure:"max_description_chars"`
}

// History holds run history storage configuration
type History struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Metrics holds run metrics export configuration
type Metrics struct {
	Textfile string `mapstructure:"textfile"`
}

// Server holds review API configuration
type Server struct {
	Addr           string   `mapstructure:"addr"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	for _, envFile := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Error loading %s file: %v\n", envFile, err)
			}
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".curator")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("CURATOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".curator")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("content.directory", "content/blog")
	viper.SetDefault("content.social_directory", "content/social")
	viper.SetDefault("content.archive_directory", "content/blog/rejected")
	viper.SetDefault("content.extension", ".mdx")
	viper.SetDefault("content.slug_max_length", 60)
	viper.SetDefault("content.social_slug_max_length", 40)
	viper.SetDefault("content.default_category", "Insights")

	viper.SetDefault("ledger.path", ".content-cache.json")
	viper.SetDefault("ledger.max_entries", 500)

	viper.SetDefault("ingest.default_topics", "all")
	viper.SetDefault("ingest.recency_days", 3)
	viper.SetDefault("ingest.item_cap", 2)
	viper.SetDefault("ingest.candidate_multiplier", 4)
	viper.SetDefault("ingest.concurrency", 4)
	viper.SetDefault("ingest.timeout", "30s")
	viper.SetDefault("ingest.user_agent", "Curator/1.0 (+content pipeline)")
	viper.SetDefault("ingest.max_items_per_feed", 50)

	viper.SetDefault("search.provider", "llm")
	viper.SetDefault("search.max_results", 10)

	viper.SetDefault("generation.backend", "gemini")
	viper.SetDefault("generation.timeout", "90s")
	viper.SetDefault("generation.max_retries", 3)
	viper.SetDefault("generation.temperature", 0.8)
	viper.SetDefault("generation.max_tokens", 4000)
	viper.SetDefault("generation.breaker.enabled", true)
	viper.SetDefault("generation.breaker.consecutive_failures", 3)
	viper.SetDefault("generation.breaker.open_timeout", "60s")
	viper.SetDefault("generation.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("generation.openai.model", "gpt-4o-mini")
	viper.SetDefault("generation.openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("generation.grok.model", "grok-3-latest")
	viper.SetDefault("generation.grok.base_url", "https://api.x.ai/v1")
	viper.SetDefault("generation.minimax.model", "MiniMax-M2")
	viper.SetDefault("generation.minimax.base_url", "https://api.minimax.io/v1")

	viper.SetDefault("voice.author", "")
	viper.SetDefault("voice.audience", "ecommerce founders and marketing leads")
	viper.SetDefault("voice.first_person", true)

	viper.SetDefault("quality.min_words", 100)
	viper.SetDefault("quality.max_words", 2000)
	viper.SetDefault("quality.max_title_chars", 60)
	viper.SetDefault("quality.max_description_chars", 155)

	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "") // Derived from app.data_dir

	viper.SetDefault("metrics.textfile", "")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.allowed_origins", []string{"*"})
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("generation.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("generation.openai.api_key", []string{
		"OPENAI_API_KEY",
	})

	bindEnvKeys("generation.grok.api_key", []string{
		"GROK_API_KEY",
		"XAI_API_KEY",
	})

	bindEnvKeys("generation.minimax.api_key", []string{
		"MINIMAX_API_KEY",
	})

	bindEnvKeys("generation.backend", []string{
		"CURATOR_BACKEND",
		"GENERATION_BACKEND",
	})

	bindEnvKeys("search.google.api_key", []string{
		"GOOGLE_CUSTOM_SEARCH_API_KEY",
		"GOOGLE_CSE_API_KEY",
	})

	bindEnvKeys("search.google.search_id", []string{
		"GOOGLE_CUSTOM_SEARCH_ID",
		"GOOGLE_CSE_ID",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"CURATOR_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	paths := []*string{
		&config.App.DataDir,
		&config.Content.Directory,
		&config.Content.SocialDirectory,
		&config.Content.ArchiveDirectory,
		&config.Ledger.Path,
		&config.Sources.File,
		&config.Voice.BrandFile,
		&config.History.Path,
		&config.Metrics.Textfile,
	}
	for _, p := range paths {
		if *p != "" {
			*p = expandPath(*p)
		}
	}

	if config.App.DataDir == "" {
		config.App.DataDir = ".curator"
	}
	if config.History.Path == "" {
		config.History.Path = filepath.Join(config.App.DataDir, "history.db")
	}

	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	durations := map[string]string{
		"ingest.timeout":                  config.Ingest.Timeout,
		"generation.timeout":              config.Generation.Timeout,
		"generation.breaker.open_timeout": config.Generation.Breaker.OpenTimeout,
		"server.read_timeout":             config.Server.ReadTimeout,
		"server.write_timeout":            config.Server.WriteTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig checks structural settings. Credentials are checked per command
// by RequireGeneration so read-only commands work without them.
func validateConfig(config *Config) error {
	var errors []string

	if config.Ledger.MaxEntries <= 0 {
		errors = append(errors, "ledger.max_entries must be positive")
	}
	if config.Quality.MinWords < 0 || config.Quality.MaxWords < config.Quality.MinWords {
		errors = append(errors, fmt.Sprintf("quality word bounds are invalid: min=%d max=%d", config.Quality.MinWords, config.Quality.MaxWords))
	}
	if config.Ingest.CandidateMultiplier < 1 {
		errors = append(errors, "ingest.candidate_multiplier must be at least 1")
	}
	if config.Content.Directory == "" {
		errors = append(errors, "content.directory is required")
	}
	if config.Content.SlugMaxLength < 0 || config.Content.SocialSlugMaxLength < 0 {
		errors = append(errors, "content slug lengths must not be negative")
	}
	if config.Search.MaxResults < 0 {
		errors = append(errors, "search.max_results must not be negative")
	}

	switch config.Generation.Backend {
	case "gemini", "openai", "grok", "minimax":
	default:
		errors = append(errors, fmt.Sprintf("Unknown generation backend: %s. Supported: gemini, openai, grok, minimax", config.Generation.Backend))
	}

	switch config.Search.Provider {
	case "llm", "google", "duckduckgo", "mock":
	default:
		errors = append(errors, fmt.Sprintf("Unknown search provider: %s. Supported: llm, google, duckduckgo, mock", config.Search.Provider))
	}

	switch strings.ToLower(config.Logging.Format) {
	case "json", "text", "console":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// BackendSettings returns the settings block of the selected backend.
func (c *Config) BackendSettings() BackendConfig {
	switch c.Generation.Backend {
	case "openai":
		return c.Generation.OpenAI
	case "grok":
		return c.Generation.Grok
	case "minimax":
		return c.Generation.Minimax
	default:
		return c.Generation.Gemini
	}
}

// RequireGeneration returns a ConfigurationError when the selected backend
// (or the google search provider, when useSearch is set) lacks credentials.
func RequireGeneration(c *Config, useSearch bool) error {
	var problems []string

	if !isValidAPIKey(c.BackendSettings().APIKey) {
		problems = append(problems, fmt.Sprintf("%s API key is required. Set %s or generation.%s.api_key in the config file",
			c.Generation.Backend, backendEnvHint(c.Generation.Backend), c.Generation.Backend))
	}

	if useSearch && c.Search.Provider == "google" {
		if !isValidAPIKey(c.Search.Google.APIKey) || c.Search.Google.SearchID == "" {
			problems = append(problems, "Google Custom Search requires both API key and Search ID. Set GOOGLE_CUSTOM_SEARCH_API_KEY and GOOGLE_CUSTOM_SEARCH_ID")
		}
	}

	if len(problems) > 0 {
		return &core.ConfigurationError{Problems: problems}
	}
	return nil
}

func backendEnvHint(backend string) string {
	switch backend {
	case "openai":
		return "OPENAI_API_KEY"
	case "grok":
		return "GROK_API_KEY"
	case "minimax":
		return "MINIMAX_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// Duration parses a duration that postProcessConfig already validated.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "your-openai-key", "your-grok-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
