package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"curator/internal/core"
)

// Document is one artifact file as found on disk.
type Document struct {
	Slug     string
	Path     string
	Raw      string
	Artifact ContentArtifact
	ParseErr error // Non-nil when the header is missing or malformed
	ModTime  time.Time
}

// Store keeps one file per artifact in a flat directory. The directory listing
// is the index; there is no separate metadata store. Social posts live in their
// own directory when one is set, so a site that renders the content directory
// never picks them up.
type Store struct {
	dir        string
	socialDir  string
	archiveDir string
	ext        string
}

// NewStore returns a store over dir. Rejected artifacts are moved to archiveDir.
func NewStore(dir, archiveDir, ext string) *Store {
	if ext == "" {
		ext = ".mdx"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if archiveDir == "" {
		archiveDir = filepath.Join(dir, "rejected")
	}
	return &Store{dir: dir, archiveDir: archiveDir, ext: ext}
}

// WithSocialDir stores professional and micro posts under dir.
func (s *Store) WithSocialDir(dir string) *Store {
	s.socialDir = dir
	return s
}

// Dir returns the active content directory.
func (s *Store) Dir() string { return s.dir }

// SocialDir returns the directory social posts are stored in.
func (s *Store) SocialDir() string {
	if s.socialDir == "" {
		return s.dir
	}
	return s.socialDir
}

// Dirs returns every directory holding active artifacts.
func (s *Store) Dirs() []string {
	if s.SocialDir() == s.dir {
		return []string{s.dir}
	}
	return []string{s.dir, s.socialDir}
}

// ArchiveDir returns the directory rejected artifacts are moved to.
func (s *Store) ArchiveDir() string { return s.archiveDir }

// PathFor returns the file path an artifact with slug is stored at.
func (s *Store) PathFor(slug string) string {
	if IsSocialSlug(slug) {
		return filepath.Join(s.SocialDir(), slug+s.ext)
	}
	return filepath.Join(s.dir, slug+s.ext)
}

// Exists reports whether an active artifact with slug exists.
func (s *Store) Exists(slug string) bool {
	if !ValidSlug(slug) {
		return false
	}
	_, err := os.Stat(s.PathFor(slug))
	return err == nil
}

// Save encodes a and writes it under its slug, replacing any previous file.
func (s *Store) Save(a ContentArtifact) (string, error) {
	if !ValidSlug(a.Slug) {
		return "", fmt.Errorf("invalid slug %q", a.Slug)
	}
	text, err := Encode(a)
	if err != nil {
		return "", err
	}
	path := s.PathFor(a.Slug)
	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return "", &core.PersistenceError{Path: path, Err: err}
	}
	return path, nil
}

// WriteRaw replaces the file content of an existing slug.
func (s *Store) WriteRaw(slug, text string) error {
	if !ValidSlug(slug) {
		return fmt.Errorf("invalid slug %q", slug)
	}
	path := s.PathFor(slug)
	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return &core.PersistenceError{Path: path, Err: err}
	}
	return nil
}

// Load reads one artifact. A missing slug returns an error wrapping core.ErrNotFound.
func (s *Store) Load(slug string) (*Document, error) {
	if !ValidSlug(slug) {
		return nil, fmt.Errorf("artifact %q: %w", slug, core.ErrNotFound)
	}
	return s.read(s.PathFor(slug))
}

// List returns every active artifact, newest date first.
func (s *Store) List() ([]*Document, error) {
	var docs []*Document
	for _, dir := range s.Dirs() {
		found, err := s.listDir(dir)
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		di, dj := docs[i].Artifact.Date, docs[j].Artifact.Date
		if di != dj {
			return di > dj
		}
		if !docs[i].ModTime.Equal(docs[j].ModTime) {
			return docs[i].ModTime.After(docs[j].ModTime)
		}
		return docs[i].Slug < docs[j].Slug
	})
	return docs, nil
}

// listDir reads the artifacts in dir. Files whose slug belongs in the other
// directory are ignored so Load and List agree.
func (s *Store) listDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory: %w", err)
	}

	var docs []*Document
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != s.ext {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if s.PathFor(strings.TrimSuffix(e.Name(), s.ext)) != path {
			continue
		}
		doc, err := s.read(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Archive moves an active artifact into the archive directory and returns its new path.
func (s *Store) Archive(slug string) (string, error) {
	if !s.Exists(slug) {
		return "", fmt.Errorf("artifact %q: %w", slug, core.ErrNotFound)
	}
	if err := os.MkdirAll(s.archiveDir, 0o755); err != nil {
		return "", &core.PersistenceError{Path: s.archiveDir, Err: err}
	}
	dest := filepath.Join(s.archiveDir, slug+s.ext)
	if err := os.Rename(s.PathFor(slug), dest); err != nil {
		return "", &core.PersistenceError{Path: dest, Err: err}
	}
	return dest, nil
}

func (s *Store) read(path string) (*Document, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", filepath.Base(path), core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	slug := strings.TrimSuffix(filepath.Base(path), s.ext)
	raw := string(data)
	a, parseErr := Decode(raw)
	a.Slug = slug
	return &Document{
		Slug:     slug,
		Path:     path,
		Raw:      raw,
		Artifact: a,
		ParseErr: parseErr,
		ModTime:  info.ModTime(),
	}, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
