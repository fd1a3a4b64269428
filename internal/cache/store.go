package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/types"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// Duration helpers for TTLs. Second, Minute and Hour come from the time package.
const (
	Second = time.Second
	Minute = time.Minute
	Hour   = time.Hour
	Day    = 24 * time.Hour
)

const (
	// Separator joins namespace and key in snapshot keys
	Separator = "-"

	DefaultPath          = "./.cache/cache.json"
	DefaultSweepInterval = 5 * time.Second
	DefaultTTL           = 60 * time.Second
)

// Eviction reasons reported to the recorder
const (
	ReasonExpired = "expired"
	ReasonRemoved = "removed"
	ReasonCleared = "cleared"
)

// Config represents cache store configuration
type Config struct {
	Path          string        `yaml:"path"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
}

// EvictionFunc is called for every entry the sweeper removes
type EvictionFunc func(namespace, key string, value json.RawMessage)

// entryKey is the structured (namespace, key) pair entries are stored under
type entryKey struct {
	namespace string
	key       string
}

type entry struct {
	value  json.RawMessage
	expiry time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiry)
}

// Store is the process-wide TTL key/value store.
//
// All entry access, including sweeps, happens under a single mutex. Entries are
// partitioned by namespace; callers work through a Namespace handle.
type Store struct {
	mu      sync.Mutex
	entries map[entryKey]*entry
	config  Config
	stats   types.CacheStats

	flushMu   sync.Mutex
	logger    *utils.StructuredLogger
	recorder  types.CacheRecorder
	onEvicted EvictionFunc
	now       func() time.Time

	// Lifecycle management
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used by the store and its sweeper
func WithLogger(logger *utils.StructuredLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.WithComponent("cache")
		}
	}
}

// WithRecorder reports cache events to a metrics recorder
func WithRecorder(recorder types.CacheRecorder) Option {
	return func(s *Store) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithEvictionHook registers a callback for sweeper evictions
func WithEvictionHook(fn EvictionFunc) Option {
	return func(s *Store) {
		s.onEvicted = fn
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() *Config {
	return &Config{
		Path:          DefaultPath,
		SweepInterval: DefaultSweepInterval,
		DefaultTTL:    DefaultTTL,
	}
}

// New creates a store, loads the snapshot at config.Path and starts the sweeper.
// A snapshot that cannot be read is logged and the store starts empty.
func New(config *Config, opts ...Option) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	cfg := *config
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.SweepInterval < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "sweep interval must be positive, got %v", cfg.SweepInterval).
			WithComponent("cache")
	}
	if cfg.DefaultTTL < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidTTL, "default TTL must not be negative, got %v", cfg.DefaultTTL).
			WithComponent("cache")
	}

	s := &Store{
		entries:  make(map[entryKey]*entry),
		config:   cfg,
		logger:   utils.NopLogger(),
		recorder: types.NoopRecorder{},
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Load(); err != nil {
		s.logger.Warn("Failed to load cache snapshot, starting empty", map[string]interface{}{
			"path":  cfg.Path,
			"error": err,
		})
	}

	go s.sweepLoop()

	return s, nil
}

// Config returns the effective configuration
func (s *Store) Config() Config {
	return s.config
}

// Namespace returns a handle bound to one namespace.
// Names must be non-empty and must not contain the separator.
func (s *Store) Namespace(name string) (*Namespace, error) {
	if err := ValidateNamespace(name); err != nil {
		return nil, err
	}
	return &Namespace{store: s, name: name}, nil
}

// MustNamespace is like Namespace but panics on an invalid name
func (s *Store) MustNamespace(name string) *Namespace {
	ns, err := s.Namespace(name)
	if err != nil {
		panic(err)
	}
	return ns
}

// ValidateNamespace checks that name can round-trip through a snapshot
func ValidateNamespace(name string) error {
	if name == "" {
		return errors.NewError(errors.ErrCodeInvalidNamespace, "namespace must not be empty").
			WithComponent("cache")
	}
	if strings.Contains(name, Separator) {
		return errors.Newf(errors.ErrCodeInvalidNamespace, "namespace %q must not contain %q", name, Separator).
			WithComponent("cache").
			WithContext("namespace", name)
	}
	return nil
}

// Len returns the number of live entries across all namespaces
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveCountLocked(s.now())
}

// Namespaces returns the sorted names of namespaces holding live entries
func (s *Store) Namespaces() []string {
	s.mu.Lock()
	now := s.now()
	seen := make(map[string]struct{})
	for k, e := range s.entries {
		if !e.expired(now) {
			seen[k.namespace] = struct{}{}
		}
	}
	s.mu.Unlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a copy of the cache statistics
func (s *Store) Stats() types.CacheStats {
	s.mu.Lock()
	stats := s.stats
	stats.Entries = s.liveCountLocked(s.now())
	s.mu.Unlock()

	stats.Namespaces = len(s.Namespaces())
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close stops and joins the sweeper. It does not flush; that is the caller's job.
// Close is idempotent and the store stays usable afterwards.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.logger.Debug("Cache sweeper stopped")
	})
	return nil
}

func (s *Store) liveCountLocked(now time.Time) int {
	count := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			count++
		}
	}
	return count
}

func (s *Store) String() string {
	return fmt.Sprintf("cache.Store{path=%s, entries=%d}", s.config.Path, s.Len())
}
