package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

type evicted struct {
	key   entryKey
	value json.RawMessage
}

func (s *Store) sweepLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.safeSweep()
		}
	}
}

// safeSweep runs one sweep and keeps the loop alive if it panics
func (s *Store) safeSweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cache sweep panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
		}
	}()
	s.sweep()
}

// sweep removes every entry whose expiry is not after now and returns the count
func (s *Store) sweep() int {
	start := time.Now()

	s.mu.Lock()
	now := s.now()
	var removed []evicted
	for k, e := range s.entries {
		if e.expired(now) {
			removed = append(removed, evicted{key: k, value: e.value})
			delete(s.entries, k)
		}
	}
	s.stats.Sweeps++
	s.stats.Evictions += uint64(len(removed))
	count := len(s.entries)
	s.mu.Unlock()

	for _, ev := range removed {
		s.recorder.RecordCacheEviction(ev.key.namespace, ReasonExpired)
		if s.onEvicted != nil {
			s.notifyEvicted(ev)
		}
	}
	s.recorder.RecordCacheSweep(time.Since(start), len(removed))
	s.recorder.UpdateCacheEntries(count)

	if len(removed) > 0 {
		s.logger.Trace("Swept expired entries", map[string]interface{}{
			"evicted":   len(removed),
			"remaining": count,
		})
	}
	return len(removed)
}

func (s *Store) notifyEvicted(ev evicted) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Eviction hook panicked", map[string]interface{}{
				"namespace": ev.key.namespace,
				"key":       ev.key.key,
				"panic":     fmt.Sprint(r),
			})
		}
	}()
	s.onEvicted(ev.key.namespace, ev.key.key, ev.value)
}
