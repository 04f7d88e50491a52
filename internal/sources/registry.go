// Package sources holds the static list of content sources and topic keywords.
package sources

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"curator/internal/core"
	"curator/internal/topics"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk registry format.
type File struct {
	Sources []core.SourceDescriptor `yaml:"sources" validate:"required,min=1,dive"`
	Topics  []topics.Topic          `yaml:"topics"`
}

// Registry is a read-only list of sources. It is safe for concurrent use.
type Registry struct {
	sources []core.SourceDescriptor
	topics  []topics.Topic
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// New validates the descriptors and builds a registry. Topic tags are lowercased.
func New(descriptors []core.SourceDescriptor, topicTable []topics.Topic) (*Registry, error) {
	f := File{Sources: descriptors, Topics: topicTable}
	if err := validateFile(&f); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(descriptors))
	out := make([]core.SourceDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if seen[key] {
			return nil, fmt.Errorf("duplicate source name %q", d.Name)
		}
		seen[key] = true

		tags := make([]string, 0, len(d.Topics))
		for _, t := range d.Topics {
			tags = append(tags, strings.ToLower(strings.TrimSpace(t)))
		}
		out = append(out, core.SourceDescriptor{Name: strings.TrimSpace(d.Name), Endpoint: d.Endpoint, Topics: tags})
	}

	if len(topicTable) == 0 {
		topicTable = topics.DefaultTopics()
	}
	return &Registry{sources: out, topics: topicTable}, nil
}

// Load reads a YAML registry file. An empty path returns the built-in registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}
	return New(f.Sources, f.Topics)
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := New(defaultSources, topics.DefaultTopics())
	if err != nil {
		panic(fmt.Sprintf("built-in sources are invalid: %v", err))
	}
	return r
}

func validateFile(f *File) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid sources: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "File.")
		problems = append(problems, fmt.Sprintf("%s failed %q", field, fe.Tag()))
	}
	return &core.ConfigurationError{Problems: problems}
}

// All returns every source in registry order.
func (r *Registry) All() []core.SourceDescriptor {
	out := make([]core.SourceDescriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

// Select returns the sources whose topics intersect the filter, in registry order.
func (r *Registry) Select(filter topics.Filter) []core.SourceDescriptor {
	if filter.All() {
		return r.All()
	}
	want := make(map[string]bool, len(filter))
	for _, t := range filter {
		want[t] = true
	}
	var out []core.SourceDescriptor
	for _, s := range r.sources {
		for _, t := range s.Topics {
			if want[t] {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Topics returns the keyword table that ships with the registry.
func (r *Registry) Topics() []topics.Topic {
	return r.topics
}

// Classifier builds a classifier from the registry keyword table.
func (r *Registry) Classifier() *topics.Classifier {
	return topics.NewClassifier(r.topics)
}
