// Package settings persists user preferences and per-provider API keys to a
// TOML file under the app's data directory.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/nstogner/pocketagent/pkg/models"
)

type fileFormat struct {
	FirstTime bool              `toml:"first_time"`
	Model     string            `toml:"model"`
	APIKeys   map[string]string `toml:"api_keys"`
}

// Store is the settings file plus its in-memory image. Setters persist
// synchronously.
type Store struct {
	mu   sync.RWMutex
	path string
	data fileFormat
}

// Open loads the settings file, creating it with defaults on first use. The
// default model is the catalog's first entry.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}
	s := &Store{
		path: filepath.Join(dir, "settings.toml"),
		data: fileFormat{
			FirstTime: true,
			Model:     models.Catalog[0].Identifier,
			APIKeys:   make(map[string]string),
		},
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if _, err := toml.DecodeFile(s.path, &s.data); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if s.data.APIKeys == nil {
		s.data.APIKeys = make(map[string]string)
	}
	if s.data.Model == "" {
		s.data.Model = models.Catalog[0].Identifier
	}
	return s, nil
}

// save writes the file with owner-only permissions; it holds API keys.
func (s *Store) save() error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(s.data); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return nil
}

// FirstTime reports whether the app has completed first-run setup.
func (s *Store) FirstTime() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.FirstTime
}

func (s *Store) SetFirstTime(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.FirstTime = v
	return s.save()
}

// Model returns the selected model identifier.
func (s *Store) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Model
}

func (s *Store) SetModel(identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Model = identifier
	return s.save()
}

// APIKey returns the stored key for a provider, or "" when none is set.
func (s *Store) APIKey(p models.Provider) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.APIKeys[string(p)]
}

func (s *Store) SetAPIKey(p models.Provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.APIKeys[string(p)] = key
	return s.save()
}
