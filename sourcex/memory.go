package sourcex

import (
	"maps"
	"sync"

	"go.eggybyte.com/scf/core/log"
)

// MemorySource is a dynamic source backed by an in-memory map.
// Every effective mutation raises exactly one change event.
type MemorySource struct {
	*Base

	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource(cfg *Config, logger log.Logger) *MemorySource {
	s := &MemorySource{values: make(map[string]string)}
	s.Base = NewBase(s, cfg, logger, StringLookup(s.GetStringValue))
	return s
}

// GetStringValue returns the value stored under key.
func (s *MemorySource) GetStringValue(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key. Setting the value already stored is a no-op.
func (s *MemorySource) Set(key, value string) {
	s.mu.Lock()
	old, ok := s.values[key]
	if ok && old == value {
		s.mu.Unlock()
		return
	}
	s.values[key] = value
	s.mu.Unlock()
	s.RaiseChange()
}

// SetAll stores every entry of values and raises one event if anything changed.
func (s *MemorySource) SetAll(values map[string]string) {
	changed := false
	s.mu.Lock()
	for k, v := range values {
		if old, ok := s.values[k]; ok && old == v {
			continue
		}
		s.values[k] = v
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.RaiseChange()
	}
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *MemorySource) Delete(key string) {
	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.values, key)
	s.mu.Unlock()
	s.RaiseChange()
}

// Snapshot returns a copy of the stored values.
func (s *MemorySource) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}
