package cache

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/recipescrape/recipescrape/pkg/errors"
)

// Namespace is a view of the store restricted to one namespace.
// Keys in different namespaces never collide.
type Namespace struct {
	store *Store
	name  string
}

// Name returns the namespace name
func (n *Namespace) Name() string {
	return n.name
}

// Set stores value under key for ttl, replacing any existing entry.
// The value is JSON encoded now, so later mutations by the caller are not seen.
func (n *Namespace) Set(key string, value interface{}, ttl time.Duration) error {
	if ttl < 0 {
		return errors.Newf(errors.ErrCodeInvalidTTL, "ttl must not be negative, got %v", ttl).
			WithComponent("cache").
			WithOperation("set").
			WithContext("namespace", n.name).
			WithContext("key", key)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidValue, "value is not JSON encodable").
			WithComponent("cache").
			WithOperation("set").
			WithContext("namespace", n.name).
			WithContext("key", key)
	}

	s := n.store
	s.mu.Lock()
	expiry := s.now().Add(ttl).Truncate(time.Millisecond)
	s.entries[entryKey{namespace: n.name, key: key}] = &entry{value: data, expiry: expiry}
	s.stats.Sets++
	count := len(s.entries)
	s.mu.Unlock()

	s.recorder.UpdateCacheEntries(count)
	return nil
}

// Put stores value with the configured default TTL
func (n *Namespace) Put(key string, value interface{}) error {
	return n.Set(key, value, n.store.config.DefaultTTL)
}

// Get returns the stored JSON for key. Absent and expired entries report false;
// a stored null is returned as "null" with true.
func (n *Namespace) Get(key string) (json.RawMessage, bool) {
	s := n.store
	s.mu.Lock()
	e, ok := s.entries[entryKey{namespace: n.name, key: key}]
	if ok && e.expired(s.now()) {
		ok = false
	}
	var value json.RawMessage
	if ok {
		value = append(json.RawMessage(nil), e.value...)
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}
	s.mu.Unlock()

	if ok {
		s.recorder.RecordCacheHit(n.name)
	} else {
		s.recorder.RecordCacheMiss(n.name)
	}
	return value, ok
}

// Exists reports whether a live entry is stored under key
func (n *Namespace) Exists(key string) bool {
	s := n.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryKey{namespace: n.name, key: key}]
	return ok && !e.expired(s.now())
}

// Remove deletes key if present
func (n *Namespace) Remove(key string) {
	s := n.store
	s.mu.Lock()
	k := entryKey{namespace: n.name, key: key}
	_, ok := s.entries[k]
	delete(s.entries, k)
	count := len(s.entries)
	s.mu.Unlock()

	if ok {
		s.recorder.RecordCacheEviction(n.name, ReasonRemoved)
		s.recorder.UpdateCacheEntries(count)
	}
}

// Clear deletes every entry in this namespace and leaves the others untouched
func (n *Namespace) Clear() {
	s := n.store
	s.mu.Lock()
	removed := 0
	for k := range s.entries {
		if k.namespace == n.name {
			delete(s.entries, k)
			removed++
		}
	}
	count := len(s.entries)
	s.mu.Unlock()

	for i := 0; i < removed; i++ {
		s.recorder.RecordCacheEviction(n.name, ReasonCleared)
	}
	s.recorder.UpdateCacheEntries(count)
	s.logger.Debug("Cleared namespace", map[string]interface{}{
		"namespace": n.name,
		"removed":   removed,
	})
}

// GetAll returns every live entry of this namespace keyed by its bare key
func (n *Namespace) GetAll() map[string]json.RawMessage {
	s := n.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	result := make(map[string]json.RawMessage)
	for k, e := range s.entries {
		if k.namespace == n.name && !e.expired(now) {
			result[k.key] = append(json.RawMessage(nil), e.value...)
		}
	}
	return result
}

// Keys returns the sorted live keys of this namespace
func (n *Namespace) Keys() []string {
	s := n.store
	s.mu.Lock()
	now := s.now()
	var keys []string
	for k, e := range s.entries {
		if k.namespace == n.name && !e.expired(now) {
			keys = append(keys, k.key)
		}
	}
	s.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// TTL returns the remaining lifetime of key
func (n *Namespace) TTL(key string) (time.Duration, bool) {
	s := n.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryKey{namespace: n.name, key: key}]
	if !ok {
		return 0, false
	}
	now := s.now()
	if e.expired(now) {
		return 0, false
	}
	return e.expiry.Sub(now), true
}

// Lookup decodes the value stored under key into T.
// A missing key returns the zero value and false with no error.
func Lookup[T any](n *Namespace, key string) (T, bool, error) {
	var out T
	raw, ok := n.Get(key)
	if !ok {
		return out, false, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, true, errors.Wrap(err, errors.ErrCodeInvalidValue, "cached value does not match requested type").
			WithComponent("cache").
			WithOperation("lookup").
			WithContext("namespace", n.name).
			WithContext("key", key)
	}
	return out, true, nil
}
