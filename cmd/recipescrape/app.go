package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/recipescrape/recipescrape/internal/cache"
	"github.com/recipescrape/recipescrape/internal/circuit"
	"github.com/recipescrape/recipescrape/internal/config"
	"github.com/recipescrape/recipescrape/internal/metrics"
	"github.com/recipescrape/recipescrape/internal/output"
	"github.com/recipescrape/recipescrape/internal/prompt"
	"github.com/recipescrape/recipescrape/internal/scraper"
	"github.com/recipescrape/recipescrape/internal/scrapers/bbcgoodfood"
	"github.com/recipescrape/recipescrape/internal/scrapers/mealie"
	"github.com/recipescrape/recipescrape/internal/scrapers/recipetineats"
	"github.com/recipescrape/recipescrape/internal/webpage"
	"github.com/recipescrape/recipescrape/pkg/retry"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

const defaultConfigName = config.DefaultPath

// app holds the process-wide collaborators built from configuration.
type app struct {
	config     *config.Configuration
	configPath string
	logger     *utils.StructuredLogger
	collector  *metrics.Collector
	store      *cache.Store
}

// newRegistry returns every scraper the CLI knows about.
func newRegistry() *scraper.Registry {
	return scraper.NewRegistry(
		bbcgoodfood.New(),
		mealie.New(),
		recipetineats.New(),
	)
}

// newApp loads configuration, sets up logging and metrics, and opens the cache.
func newApp() (*app, error) {
	path := rootOpts.configPath
	required := path != ""
	if path == "" {
		path = defaultConfigName
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}
	if rootOpts.logLevel != "" {
		cfg.Global.LogLevel = rootOpts.logLevel
	}

	logger, err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFormat, cfg.Global.LogFile)
	if err != nil {
		return nil, err
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled: cfg.Monitoring.Metrics.Enabled,
		Port:    cfg.Monitoring.Metrics.Port,
		Path:    cfg.Monitoring.Metrics.Path,
	}, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	store, err := cache.New(&cfg.Cache,
		cache.WithLogger(logger),
		cache.WithRecorder(collector),
	)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &app{
		config:     cfg,
		configPath: path,
		logger:     logger,
		collector:  collector,
		store:      store,
	}, nil
}

// startMetrics serves metrics until the app is closed, when enabled.
func (a *app) startMetrics(ctx context.Context) error {
	if !a.config.Monitoring.Metrics.Enabled {
		return nil
	}
	return a.collector.Start(ctx)
}

// fetcher builds the HTTP client from the http section.
func (a *app) fetcher() *webpage.Client {
	h := a.config.HTTP
	cfg := webpage.Config{
		Timeout:   h.Timeout,
		UserAgent: h.UserAgent,
		Retry: retry.Config{
			MaxAttempts:  h.Retry.MaxAttempts,
			InitialDelay: h.Retry.InitialDelay,
			MaxDelay:     h.Retry.MaxDelay,
			Jitter:       true,
		},
	}
	if h.CircuitBreaker.Enabled {
		cb := circuit.DefaultConfig()
		if h.CircuitBreaker.FailureThreshold > 0 {
			cb.FailureThreshold = uint32(h.CircuitBreaker.FailureThreshold)
		}
		if h.CircuitBreaker.Timeout > 0 {
			cb.Timeout = h.CircuitBreaker.Timeout
		}
		cb.OnStateChange = func(host string, from, to circuit.State) {
			a.logger.Warn("Circuit breaker state changed", map[string]interface{}{
				"host": host,
				"from": from.String(),
				"to":   to.String(),
			})
		}
		cfg.CircuitBreaker = &cb
	}
	return webpage.NewClient(cfg, webpage.WithRecorder(a.collector), webpage.WithLogger(a.logger))
}

// sink builds the output sink: the local directory, plus S3 when enabled.
func (a *app) sink(ctx context.Context) (output.Sink, error) {
	local := output.NewLocalSink(a.config.Output.Directory, a.logger)
	if !a.config.Output.S3.Enabled {
		return local, nil
	}
	s3, err := output.NewS3Sink(ctx, a.config.Output.S3, a.logger)
	if err != nil {
		return nil, err
	}
	return output.Multi(local, s3), nil
}

// runner wires a scraper runner to the app's collaborators.
func (a *app) runner(cmd *cobra.Command) (*scraper.Runner, error) {
	sink, err := a.sink(cmd.Context())
	if err != nil {
		return nil, err
	}
	return scraper.NewRunner(scraper.RunnerConfig{
		Registry:   newRegistry(),
		Store:      a.store,
		Fetcher:    a.fetcher(),
		Output:     sink,
		Prompt:     prompt.New(cmd.InOrStdin(), cmd.OutOrStdout()),
		Config:     a.config,
		ConfigPath: a.configPath,
		Logger:     a.logger,
		Recorder:   a.collector,
	})
}

// Close stops the sweeper and the metrics server. It does not flush the cache.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close cache", map[string]interface{}{"error": err.Error()})
	}
	if err := a.collector.Stop(context.Background()); err != nil {
		a.logger.Warn("Failed to stop metrics server", map[string]interface{}{"error": err.Error()})
	}
	_ = a.logger.Close()
}
