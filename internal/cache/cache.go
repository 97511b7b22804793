// Package cache provides the query cache and invalidation bridge that sits
// between the HTTP layer and the repositories.
//
// Reads are memoized per query shape and registered to named invalidation
// groups; mutations run through Mutate, which applies a speculative local
// transition, attempts the real repository call, compensates verbatim on
// failure and invalidates the affected groups on success. The bridge never
// decides business rules: it only controls what a reader sees before and
// after a repository call.
package cache

import (
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Invalidation group names. Every cached query is registered to one or more
// groups; mutations name the groups whose results they may have changed.
const (
	GroupLibrary = "library"
	GroupStats   = "stats"
)

// EntryGroup names the invalidation group for one library entry's views.
func EntryGroup(entryID uint) string {
	return "entry:" + strconv.FormatUint(uint64(entryID), 10)
}

// HistoryGroup names the invalidation group for one entry's watch history.
func HistoryGroup(entryID uint) string {
	return "history:" + strconv.FormatUint(uint64(entryID), 10)
}

// Store is a TTL'd query cache with group invalidation.
type Store struct {
	queries *gocache.Cache

	mu     sync.Mutex
	groups map[string]map[string]struct{} // group name -> cached keys
}

// NewStore creates a store whose items expire after ttl and are swept every
// cleanupInterval.
func NewStore(ttl, cleanupInterval time.Duration) *Store {
	return &Store{
		queries: gocache.New(ttl, cleanupInterval),
		groups:  make(map[string]map[string]struct{}),
	}
}

// Get returns the cached value for key, if present and unexpired.
func (s *Store) Get(key string) (any, bool) {
	return s.queries.Get(key)
}

// Set caches value under key and registers it to the given groups.
func (s *Store) Set(key string, value any, groups ...string) {
	s.queries.SetDefault(key, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, group := range groups {
		keys, ok := s.groups[group]
		if !ok {
			keys = make(map[string]struct{})
			s.groups[group] = keys
		}
		keys[key] = struct{}{}
	}
}

// GetOrLoad returns the cached value for key, loading and caching it on a
// miss. Load errors are returned uncached.
func (s *Store) GetOrLoad(key string, load func() (any, error), groups ...string) (any, error) {
	if value, ok := s.queries.Get(key); ok {
		return value, nil
	}
	value, err := load()
	if err != nil {
		return nil, err
	}
	s.Set(key, value, groups...)
	return value, nil
}

// InvalidateGroups drops every cached key registered to any of the named
// groups, so the next read recomputes from the source of truth.
func (s *Store) InvalidateGroups(groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, group := range groups {
		for key := range s.groups[group] {
			s.queries.Delete(key)
		}
		delete(s.groups, group)
	}
}

// Flush drops everything.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries.Flush()
	s.groups = make(map[string]map[string]struct{})
}

// MutationSpec describes one speculative mutation. Apply runs before the
// repository call so the UI-visible state reflects the change immediately;
// Compensate exactly reverses Apply and runs only when the call fails.
type MutationSpec struct {
	Apply       func()
	Compensate  func()
	Invalidates []string
}

// Mutate runs op under the speculative apply/confirm/compensate protocol.
// On failure the speculative state is reverted and the error propagated
// unchanged; on success the named groups are invalidated.
func (s *Store) Mutate(spec MutationSpec, op func() error) error {
	if spec.Apply != nil {
		spec.Apply()
	}
	if err := op(); err != nil {
		if spec.Compensate != nil {
			spec.Compensate()
		}
		return err
	}
	s.InvalidateGroups(spec.Invalidates...)
	return nil
}
