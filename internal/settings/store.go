// Package settings persists the shell's flat key/value settings. Passwords
// live in the OS keyring when one is available.
package settings

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	KeyAPIPassword      = "apiPassword"
	KeyAdminPassword    = "adminPassword"
	KeyAutoCheckUpdates = "autoCheckUpdates"
)

// Settings is the typed view of the store. The zero value is not the
// default; use Defaults.
type Settings struct {
	APIPassword      string `json:"apiPassword"`
	AdminPassword    string `json:"adminPassword"`
	AutoCheckUpdates bool   `json:"autoCheckUpdates"`
}

func Defaults() Settings {
	return Settings{AutoCheckUpdates: true}
}

type Store struct {
	mu      sync.Mutex
	path    string
	loaded  bool
	data    map[string]json.RawMessage
	secrets Secrets
	log     *slog.Logger
}

// DefaultPath is <UserConfigDir>/distributor/settings.json.
func DefaultPath() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil || cfgDir == "" {
		cfgDir = "."
	}
	return filepath.Join(cfgDir, "distributor", "settings.json")
}

// NewStore opens the store at path. secrets may be nil, in which case
// passwords are kept in the JSON file.
func NewStore(path string, secrets Secrets, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path:    path,
		data:    map[string]json.RawMessage{},
		secrets: secrets,
		log:     log,
	}
}

func (s *Store) Path() string { return s.path }

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.loaded = true

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = map[string]json.RawMessage{}
			return nil
		}
		return err
	}
	if len(b) == 0 {
		s.data = map[string]json.RawMessage{}
		return nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		// A corrupted file must not brick the shell; start fresh.
		s.log.Warn("settings file corrupted, using defaults", "path", s.path, "err", err)
		s.data = map[string]json.RawMessage{}
		return nil
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	s.data = m
	return nil
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Get(key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, false, err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (s *Store) Set(key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if s.data == nil {
		s.data = map[string]json.RawMessage{}
	}
	s.data[key] = value
	return s.saveLocked()
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	delete(s.data, key)
	return s.saveLocked()
}

// Load returns the current settings. It never fails: anything unreadable
// falls back to Defaults.
func (s *Store) Load() Settings {
	out := Defaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		s.log.Warn("settings unreadable, using defaults", "path", s.path, "err", err)
		return out
	}

	if raw, ok := s.data[KeyAutoCheckUpdates]; ok {
		var v bool
		if err := json.Unmarshal(raw, &v); err == nil {
			out.AutoCheckUpdates = v
		}
	}
	out.APIPassword = s.secretLocked(KeyAPIPassword)
	out.AdminPassword = s.secretLocked(KeyAdminPassword)
	return out
}

// Save writes all settings at once.
func (s *Store) Save(v Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}

	auto, err := json.Marshal(v.AutoCheckUpdates)
	if err != nil {
		return err
	}
	s.data[KeyAutoCheckUpdates] = auto
	if err := s.putSecretLocked(KeyAPIPassword, v.APIPassword); err != nil {
		return err
	}
	if err := s.putSecretLocked(KeyAdminPassword, v.AdminPassword); err != nil {
		return err
	}
	return s.saveLocked()
}

// Invalidate drops the cached file contents; the next read goes to disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

func (s *Store) secretLocked(key string) string {
	if s.secrets != nil {
		v, err := s.secrets.Get(key)
		if err == nil {
			return v
		}
		if !errors.Is(err, ErrSecretNotFound) {
			s.log.Debug("keyring read failed", "key", key, "err", err)
		}
	}
	var v string
	if raw, ok := s.data[key]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}

func (s *Store) putSecretLocked(key, value string) error {
	if s.secrets != nil {
		var err error
		if value == "" {
			err = s.secrets.Delete(key)
			if errors.Is(err, ErrSecretNotFound) {
				err = nil
			}
		} else {
			err = s.secrets.Set(key, value)
		}
		if err == nil {
			delete(s.data, key)
			return nil
		}
		s.log.Warn("keyring unavailable, storing secret in settings file", "key", key, "err", err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}
