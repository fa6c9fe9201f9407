package memory

import (
	"sync"

	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in memory. Built over a base store it acts as an
// unsaved overlay: keys it has not set are read from the base, and nothing is
// ever written back, so `config validate --set` can try changes safely.
type ConfigStore struct {
	base driven.ConfigStore

	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates an empty store.
func NewConfigStore() *ConfigStore {
	return NewOverlay(nil)
}

// NewOverlay creates a store whose reads fall through to base.
func NewOverlay(base driven.ConfigStore) *ConfigStore {
	return &ConfigStore{base: base, values: make(map[string]any)}
}

// Get returns the overlay value for key, else the base value.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	val, ok := s.values[key]
	s.mu.RUnlock()
	if ok || s.base == nil {
		return val, ok
	}
	return s.base.Get(key)
}

func (s *ConfigStore) GetString(key string) string {
	val, _ := s.Get(key)
	str, _ := val.(string)
	return str
}

// GetInt truncates floats; TOML decodes integers as int64.
func (s *ConfigStore) GetInt(key string) int {
	val, _ := s.Get(key)
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (s *ConfigStore) GetFloat(key string) float64 {
	val, _ := s.Get(key)
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (s *ConfigStore) GetBool(key string) bool {
	val, _ := s.Get(key)
	b, _ := val.(bool)
	return b
}

// Set records value in memory only.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Changed returns how many keys have been set on this store.
func (s *ConfigStore) Changed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Save is a no-op; overlay values are never persisted.
func (s *ConfigStore) Save() error {
	return nil
}

// Load re-reads the base store. Overlay values are kept.
func (s *ConfigStore) Load() error {
	if s.base == nil {
		return nil
	}
	return s.base.Load()
}

// Path reports where the values come from.
func (s *ConfigStore) Path() string {
	if s.base == nil {
		return ":memory:"
	}
	return s.base.Path() + " (unsaved changes)"
}
