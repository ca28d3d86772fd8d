// Package state implements the recipe executor's execution context: a
// mutable artifact store plus an immutable-by-convention configuration
// store. The type is named State rather than Context to avoid shadowing
// the standard library's context.Context, which the step protocol also
// threads through for cancellation.
package state

import (
	"sync"

	"github.com/recipeforge/reciperunner/utils/fsspec"
	"github.com/recipeforge/reciperunner/utils/rerr"
)

// State is the runtime artifact store shared by every step in a recipe
// run. It owns its internal maps exclusively; every accessor that exposes
// them returns a deep copy. Contexts are single-writer: concurrent
// mutation from within a single Iterate is safe only because Iterate
// snapshots keys up front.
type State struct {
	mu sync.Mutex
	artifacts map[string]interface{}
	config map[string]interface{}
}

// New creates a State, deep-copying the supplied initial artifacts and
// config so the State is insulated from later external mutation of those
// maps.
func New(initialArtifacts, initialConfig map[string]interface{}) *State {
	return &State{
		artifacts: deepCopyMap(initialArtifacts),
		config: deepCopyMap(initialConfig),
	}
}

// Get returns the artifact at key, or a KeyMissing error if absent.
func (s *State) Get(key string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.artifacts[key]
	if !ok {
		return nil, &rerr.KeyMissing{Key: key}
	}
	return v, nil
}

// GetDefault returns the artifact at key, or def if absent. It never
// raises.
func (s *State) GetDefault(key string, def interface{}) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.artifacts[key]; ok {
		return v
	}
	return def
}

// Set stores value under key.
func (s *State) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[key] = value
}

// Delete removes key, raising KeyMissing if it was never set.
func (s *State) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[key]; !ok {
		return &rerr.KeyMissing{Key: key}
	}
	delete(s.artifacts, key)
	return nil
}

// Contains reports whether key has an artifact.
func (s *State) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.artifacts[key]
	return ok
}

// Len returns the number of artifacts.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// Iterate returns the artifact keys, captured as a snapshot so later
// mutation of the State during iteration cannot invalidate the returned
// slice. The keys come straight from Go map iteration: insertion order
// is not kept, and the order can differ from one call to the next.
func (s *State) Iterate() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.artifacts))
	for k := range s.artifacts {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a deep copy of both the artifact and config stores. The
// clone is fully independent: mutations in either copy after cloning
// never propagate to the other.
func (s *State) Clone() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &State{
		artifacts: deepCopyMap(s.artifacts),
		config: deepCopyMap(s.config),
	}
}

// Snapshot returns a deep copy of the artifact store only, as a plain map,
// for serialization or inspection.
func (s *State) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopyMap(s.artifacts)
}

// Config returns a deep copy of the configuration store.
func (s *State) Config() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopyMap(s.config)
}

// SetConfig replaces the configuration store with a deep copy of cfg.
func (s *State) SetConfig(cfg map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = deepCopyMap(cfg)
}

// ConfigGet returns a single config value, or def if absent.
func (s *State) ConfigGet(key string, def interface{}) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.config[key]; ok {
		return v
	}
	return def
}

// FlatView merges artifacts and config into a single namespace for
// template rendering, with artifacts taking precedence on key collision.
func (s *State) FlatView() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.artifacts)+len(s.config))
	for k, v := range s.config {
		out[k] = deepCopyValue(v)
	}
	for k, v := range s.artifacts {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return make(map[string]interface{})
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case fsspec.FileSpec:
		return val.Clone()
	case []fsspec.FileSpec:
		return fsspec.CloneSlice(val)
	default:
		// Strings, numbers, bools, nil, and any other value types are
		// treated as immutable and copied by value.
		return v
	}
}
