// Package ledger records which (title, source) pairs have already been processed.
package ledger

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"curator/internal/core"
	"curator/internal/logger"
)

const (
	// FileVersion is the only ledger format this package reads.
	FileVersion = 1

	// DefaultMaxEntries bounds the history kept on disk.
	DefaultMaxEntries = 500
)

type file struct {
	Version int                      `json:"version"`
	Entries []core.FingerprintRecord `json:"entries"`
}

// Ledger is a JSON-file backed fingerprint store. The file is read on every call
// and rewritten after every mutation, so separate Ledger values over the same
// path observe each other's writes. It is not safe for concurrent writers
// across processes.
type Ledger struct {
	path       string
	maxEntries int
	now        func() time.Time
	mu         sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for processedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns a ledger stored at path. maxEntries <= 0 selects DefaultMaxEntries.
func New(path string, maxEntries int, opts ...Option) *Ledger {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	l := &Ledger{path: path, maxEntries: maxEntries, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// Fingerprint hashes the normalized title and source.
func Fingerprint(title, source string) string {
	key := normalize(title) + "|" + normalize(source)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsDuplicate reports whether the pair was already processed.
func (l *Ledger) IsDuplicate(title, source string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.load()
	if err != nil {
		return false, err
	}
	hash := Fingerprint(title, source)
	for _, e := range f.Entries {
		if e.Hash == hash {
			return true, nil
		}
	}
	return false, nil
}

// MarkProcessed records the pair. An existing record is left untouched.
func (l *Ledger) MarkProcessed(title, source, outputKind string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.load()
	if err != nil {
		return err
	}
	hash := Fingerprint(title, source)
	for _, e := range f.Entries {
		if e.Hash == hash {
			return nil
		}
	}

	f.Entries = append(f.Entries, core.FingerprintRecord{
		Hash:        hash,
		Title:       title,
		Source:      source,
		ProcessedAt: l.now().UTC(),
		OutputKind:  outputKind,
	})
	if over := len(f.Entries) - l.maxEntries; over > 0 {
		f.Entries = f.Entries[over:]
	}
	return l.save(f)
}

// Stats summarizes the ledger.
func (l *Ledger) Stats() (core.LedgerStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := core.LedgerStats{CountsBySource: make(map[string]int)}
	f, err := l.load()
	if err != nil {
		return stats, err
	}
	stats.TotalProcessed = len(f.Entries)
	for _, e := range f.Entries {
		stats.CountsBySource[e.Source]++
	}
	if n := len(f.Entries); n > 0 {
		last := f.Entries[n-1].ProcessedAt
		stats.LastProcessedAt = &last
	}
	return stats, nil
}

// Entries returns the records oldest first.
func (l *Ledger) Entries() ([]core.FingerprintRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.load()
	if err != nil {
		return nil, err
	}
	return f.Entries, nil
}

// Clear removes every record.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(&file{Version: FileVersion})
}

// Check reports ErrLedgerCorrupt when the file exists but cannot be used.
func (l *Ledger) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.read()
	return err
}

// load returns the current contents. A corrupt file degrades to empty.
// Only a read error other than "not exist" is returned.
func (l *Ledger) load() (*file, error) {
	f, err := l.read()
	if errors.Is(err, core.ErrLedgerCorrupt) {
		logger.Warn("Ledger unreadable, treating as empty", "path", l.path, "error", err.Error())
		return &file{Version: FileVersion}, nil
	}
	return f, err
}

func (l *Ledger) read() (*file, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return &file{Version: FileVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return &file{Version: FileVersion}, fmt.Errorf("%w: %v", core.ErrLedgerCorrupt, err)
	}
	if f.Version != FileVersion {
		return &file{Version: FileVersion}, fmt.Errorf("%w: version %d, want %d", core.ErrLedgerCorrupt, f.Version, FileVersion)
	}
	return &f, nil
}

func (l *Ledger) save(f *file) error {
	f.Version = FileVersion
	if f.Entries == nil {
		f.Entries = []core.FingerprintRecord{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &core.PersistenceError{Path: l.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return &core.PersistenceError{Path: l.path, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &core.PersistenceError{Path: l.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &core.PersistenceError{Path: l.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return &core.PersistenceError{Path: l.path, Err: err}
	}
	return nil
}
