package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Init initializes the default logger with a JSON writer on os.Stderr.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		mu.Lock()
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		mu.Unlock()
	})
}

// Configure replaces the default logger. format "text" selects the console writer,
// anything else writes JSON lines. An unknown level falls back to info.
func Configure(level, format string, w io.Writer) {
	Init()
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(format, "text") || strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	mu.Lock()
	defaultLogger = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	mu.Unlock()
}

// Get returns the initialized default logger.
func Get() *zerolog.Logger {
	Init()
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

// Info logs an informational message with alternating key/value pairs.
func Info(msg string, args ...any) {
	emit(Get().Info(), msg, args)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	emit(Get().Warn(), msg, args)
}

// Error logs an error message, attaching err when it is non-nil.
func Error(msg string, err error, args ...any) {
	ev := Get().Error()
	if err != nil {
		ev = ev.Err(err)
	}
	emit(ev, msg, args)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	emit(Get().Debug(), msg, args)
}

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	if len(args) > 0 {
		ev = ev.Fields(args)
	}
	ev.Msg(msg)
}
