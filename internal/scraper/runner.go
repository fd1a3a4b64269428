package scraper

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/recipescrape/recipescrape/internal/cache"
	"github.com/recipescrape/recipescrape/internal/config"
	"github.com/recipescrape/recipescrape/internal/output"
	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/types"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// RunnerConfig holds the shared collaborators handed to every scraper.
type RunnerConfig struct {
	Registry   *Registry
	Store      *cache.Store
	Fetcher    Fetcher
	Output     output.Sink
	Prompt     Prompter
	Config     *config.Configuration
	ConfigPath string
	Logger     *utils.StructuredLogger
	Recorder   types.ScraperRecorder
}

// Runner executes registered scrapers.
type Runner struct {
	cfg    RunnerConfig
	logger *utils.StructuredLogger
}

// NewRunner creates a Runner. Registry, Store, Fetcher and Output are required.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Registry == nil || cfg.Store == nil || cfg.Fetcher == nil || cfg.Output == nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "runner requires registry, store, fetcher and output").
			WithComponent("scraper")
	}
	if cfg.Config == nil {
		cfg.Config = config.NewDefault()
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.NopLogger()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = types.NoopRecorder{}
	}
	return &Runner{cfg: cfg, logger: cfg.Logger.WithComponent("runner")}, nil
}

// RunAll runs every registered scraper in name order. A failing or panicking
// scraper is logged and the rest still run. The cache is flushed once at the
// end and a flush failure is returned.
func (r *Runner) RunAll(ctx context.Context) ([]types.ScrapeResult, error) {
	r.logger.Info("Starting scrapers")

	var results []types.ScrapeResult
	for _, name := range r.cfg.Registry.Names() {
		if ctx.Err() != nil {
			break
		}
		s, err := r.cfg.Registry.Get(name)
		if err != nil {
			continue
		}
		results = append(results, r.run(ctx, s))
	}

	r.logger.Debug("Finished scrapers", map[string]interface{}{"count": len(results)})
	return results, r.flush()
}

// Run runs the scraper registered under name and flushes the cache.
func (r *Runner) Run(ctx context.Context, name string) (types.ScrapeResult, error) {
	s, err := r.cfg.Registry.Get(name)
	if err != nil {
		return types.ScrapeResult{Scraper: name, Err: err}, err
	}

	result := r.run(ctx, s)
	if err := r.flush(); err != nil {
		return result, err
	}
	return result, result.Err
}

func (r *Runner) flush() error {
	if err := r.cfg.Store.Flush(); err != nil {
		r.logger.Error("Cache flush failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (r *Runner) run(ctx context.Context, s Scraper) types.ScrapeResult {
	name := s.Name()
	logger := r.cfg.Logger.WithComponent(name)

	ns, err := r.cfg.Store.Namespace(name)
	if err != nil {
		return types.ScrapeResult{Scraper: name, Err: err}
	}

	env := &Env{
		Cache:      ns,
		Fetcher:    r.cfg.Fetcher,
		Prompt:     r.cfg.Prompt,
		Logger:     logger,
		Config:     r.cfg.Config,
		ConfigPath: r.cfg.ConfigPath,
		store:      r.cfg.Store,
	}
	env.Output = &recordingSink{sink: output.Namespaced(r.cfg.Output, name), env: env}

	r.logger.Debug("Starting scraper", map[string]interface{}{"scraper": name})
	start := time.Now()
	err = safeRun(ctx, s, env)
	items, outputs := env.summary()

	result := types.ScrapeResult{
		Scraper:  name,
		Items:    items,
		Outputs:  outputs,
		Duration: time.Since(start),
		Err:      err,
	}
	r.cfg.Recorder.RecordScrape(result)

	fields := map[string]interface{}{
		"scraper":  name,
		"items":    items,
		"outputs":  len(outputs),
		"duration": result.Duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		r.logger.Error("Scraper failed", fields)
	} else {
		r.logger.Debug("Finished scraper", fields)
	}
	return result
}

func safeRun(ctx context.Context, s Scraper, env *Env) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf(errors.ErrCodePanicRecovered, "scraper panicked: %v", rec).
				WithComponent("scraper").
				WithContext("scraper", s.Name()).
				WithDetail("stack", string(debug.Stack()))
		}
	}()
	return s.Run(ctx, env)
}
