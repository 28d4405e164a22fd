package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"easyquery/internal/domain"
)

var errCorrupt = errors.New("corrupt preferences file")

// FileStore is a small key/value store kept as one JSON object on disk.
// Values are stored as raw JSON under their key.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Path() string {
	return s.path
}

// Get decodes the value stored under key into v. It reports false when the
// key or the file does not exist.
func (s *FileStore) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return false, err
	}

	raw, ok := entries[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key. A corrupt file is replaced rather than blocking
// the write.
func (s *FileStore) Set(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if errors.Is(err, errCorrupt) {
		s.logger.Warn("discarding unreadable preferences", "path", s.path, "error", err)
		entries = make(map[string]json.RawMessage)
	} else if err != nil {
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	entries[key] = raw

	return s.write(entries)
}

func (s *FileStore) LoadPreference(_ context.Context) (domain.ProviderPreference, error) {
	var pref domain.ProviderPreference
	if _, err := s.Get(domain.PreferenceKey, &pref); err != nil {
		return domain.ProviderPreference{}, err
	}
	return pref, nil
}

func (s *FileStore) SavePreference(_ context.Context, pref domain.ProviderPreference) error {
	return s.Set(domain.PreferenceKey, pref)
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading preferences: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w: %w", errCorrupt, err)
	}
	return entries, nil
}

// write replaces the file through a temporary sibling so a crash never
// leaves a truncated store behind.
func (s *FileStore) write(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".preferences-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing preferences: %w", err)
	}
	return nil
}
