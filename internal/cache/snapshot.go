package cache

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recipescrape/recipescrape/pkg/errors"
)

// snapshotEntry is the on-disk form of one entry.
// TTL holds the absolute expiry in epoch seconds.
type snapshotEntry struct {
	Value json.RawMessage `json:"value"`
	TTL   float64         `json:"ttl"`
}

func expiryToEpoch(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func epochToExpiry(seconds float64) time.Time {
	return time.UnixMilli(int64(math.Round(seconds * 1000)))
}

// splitSnapshotKey splits "<namespace>-<key>" at the first separator
func splitSnapshotKey(composite string) (entryKey, bool) {
	ns, key, ok := strings.Cut(composite, Separator)
	if !ok || ns == "" {
		return entryKey{}, false
	}
	return entryKey{namespace: ns, key: key}, true
}

func encodeSnapshot(entries map[entryKey]*entry) ([]byte, error) {
	out := make(map[string]snapshotEntry, len(entries))
	for k, e := range entries {
		out[k.namespace+Separator+k.key] = snapshotEntry{
			Value: e.value,
			TTL:   expiryToEpoch(e.expiry),
		}
	}
	return json.Marshal(out)
}

// decodeSnapshot parses snapshot data, dropping entries expired at now
// and keys without a namespace. It returns the kept entries and the skip count.
func decodeSnapshot(data []byte, now time.Time) (map[entryKey]*entry, int, error) {
	var raw map[string]snapshotEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	entries := make(map[entryKey]*entry, len(raw))
	skipped := 0
	for composite, se := range raw {
		k, ok := splitSnapshotKey(composite)
		if !ok {
			skipped++
			continue
		}
		e := &entry{value: se.Value, expiry: epochToExpiry(se.TTL)}
		if len(e.value) == 0 {
			e.value = json.RawMessage("null")
		}
		if e.expired(now) {
			skipped++
			continue
		}
		entries[k] = e
	}
	return entries, skipped, nil
}

// Load merges the snapshot file into the store. A missing file is not an error;
// a malformed one is logged and ignored.
func (s *Store) Load() error {
	path := s.config.Path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("No cache snapshot found, starting fresh", map[string]interface{}{"path": path})
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeSnapshotRead, "failed to read cache snapshot").
			WithComponent("cache").
			WithOperation("load").
			WithContext("path", path)
	}

	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()

	entries, skipped, err := decodeSnapshot(data, now)
	if err != nil {
		s.logger.Warn("Cache snapshot is malformed, ignoring it", map[string]interface{}{
			"path":  path,
			"error": err,
		})
		return nil
	}

	s.mu.Lock()
	for k, e := range entries {
		s.entries[k] = e
	}
	count := len(s.entries)
	s.mu.Unlock()

	s.recorder.UpdateCacheEntries(count)
	s.logger.Debug("Loaded cache snapshot", map[string]interface{}{
		"path":    path,
		"loaded":  len(entries),
		"skipped": skipped,
	})
	return nil
}

// Flush writes every entry to the snapshot file, replacing it atomically
func (s *Store) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	data, err := encodeSnapshot(s.entries)
	count := len(s.entries)
	s.mu.Unlock()

	if err != nil {
		return s.flushError(err, "failed to encode cache snapshot")
	}

	path := s.config.Path
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return s.flushError(err, "failed to create cache directory")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return s.flushError(err, "failed to write cache snapshot")
	}

	// Atomic replace
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return s.flushError(err, "failed to replace cache snapshot")
	}

	s.logger.Debug("Flushed cache snapshot", map[string]interface{}{
		"path":    path,
		"entries": count,
	})
	return nil
}

func (s *Store) flushError(cause error, msg string) error {
	return errors.Wrap(cause, errors.ErrCodeSnapshotWrite, msg).
		WithComponent("cache").
		WithOperation("flush").
		WithContext("path", s.config.Path)
}
