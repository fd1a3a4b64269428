package scraper

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/net/html"

	"github.com/recipescrape/recipescrape/internal/cache"
	"github.com/recipescrape/recipescrape/internal/config"
	"github.com/recipescrape/recipescrape/internal/output"
	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// Scraper is one independent job run by the CLI.
type Scraper interface {
	// Name is the registry key, cache namespace and output prefix
	Name() string
	Run(ctx context.Context, env *Env) error
}

// Fetcher retrieves pages and API resources.
type Fetcher interface {
	GetDocument(ctx context.Context, url string) (*html.Node, error)
	GetJSON(ctx context.Context, url, token string, out interface{}) error
	PostJSON(ctx context.Context, url, token string, payload, out interface{}) error
}

// Prompter asks the operator for input.
type Prompter interface {
	URL(question string, limit int) (string, error)
	String(question string) (string, error)
	YesNo(question string, def bool) (bool, error)
	Println(a ...interface{})
}

// Env is everything a scraper may touch during a run.
type Env struct {
	Cache      *cache.Namespace
	Fetcher    Fetcher
	Output     output.Sink
	Prompt     Prompter
	Logger     *utils.StructuredLogger
	Config     *config.Configuration
	ConfigPath string

	store *cache.Store

	mu      sync.Mutex
	items   int
	outputs []string
}

// Flush writes the whole cache snapshot to disk.
func (e *Env) Flush() error {
	if e.store == nil {
		return nil
	}
	return e.store.Flush()
}

// AddItems adds n to the run's item count.
func (e *Env) AddItems(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items += n
}

// SaveConfig writes the configuration back to ConfigPath.
func (e *Env) SaveConfig() error {
	path := e.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	return e.Config.SaveToFile(path)
}

func (e *Env) recordOutput(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outputs = append(e.outputs, name)
}

func (e *Env) summary() (int, []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.items, append([]string(nil), e.outputs...)
}

// recordingSink notes every successful write in the Env.
type recordingSink struct {
	sink output.Sink
	env  *Env
}

func (r *recordingSink) Write(ctx context.Context, name string, data []byte) error {
	if err := r.sink.Write(ctx, name, data); err != nil {
		return err
	}
	r.env.recordOutput(name)
	return nil
}

// Registry maps names to scrapers.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
}

// NewRegistry creates a registry holding scrapers.
func NewRegistry(scrapers ...Scraper) *Registry {
	r := &Registry{scrapers: make(map[string]Scraper)}
	for _, s := range scrapers {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any scraper with the same name.
// It panics when the name is not a valid cache namespace.
func (r *Registry) Register(s Scraper) {
	if err := cache.ValidateNamespace(s.Name()); err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[s.Name()] = s
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scrapers))
	for name := range r.scrapers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the scraper registered under name.
func (r *Registry) Get(name string) (Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scrapers[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeScraperNotFound, "unknown scraper %q", name).
			WithComponent("scraper")
	}
	return s, nil
}
