package metrics

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/types"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// Collector exports cache, HTTP and scraper metrics to Prometheus.
// It implements types.MetricsCollector.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	logger   *utils.StructuredLogger

	// Cache metrics
	cacheRequests  *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheSweeps    prometheus.Histogram
	cacheEntries   prometheus.Gauge

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	errorCounter *prometheus.CounterVec

	// Scraper metrics
	scraperRuns     *prometheus.CounterVec
	scraperItems    *prometheus.CounterVec
	scraperDuration *prometheus.HistogramVec

	// Internal tracking
	scrapers  map[string]*ScraperMetrics
	lastReset time.Time

	// HTTP server for metrics endpoint
	server   *http.Server
	listener net.Listener
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
}

// ScraperMetrics tracks totals for one scraper
type ScraperMetrics struct {
	Runs          int64         `json:"runs"`
	Failures      int64         `json:"failures"`
	Items         int64         `json:"items"`
	TotalDuration time.Duration `json:"total_duration"`
	LastRun       time.Time     `json:"last_run"`
}

var _ types.MetricsCollector = (*Collector)(nil)

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "recipescrape",
		Labels:    make(map[string]string),
	}
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config, logger *utils.StructuredLogger) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.Namespace == "" {
		config.Namespace = "recipescrape"
	}
	if logger == nil {
		logger = utils.NopLogger()
	}

	collector := &Collector{
		config:    config,
		logger:    logger.WithComponent("metrics"),
		scrapers:  make(map[string]*ScraperMetrics),
		lastReset: time.Now(),
	}

	if !config.Enabled {
		return collector, nil
	}

	// Create Prometheus registry
	collector.registry = prometheus.NewRegistry()

	collector.initMetrics()

	// Register metrics with registry
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Registry returns the underlying registry, nil when disabled
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler serving the registry
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	if c.registry != nil {
		mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/scrapers", c.debugScrapersHandler)
	return mux
}

// Start starts the metrics server in the background
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", c.config.Port))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConnectionFailed, "failed to listen for metrics").
			WithComponent("metrics").
			WithContext("port", strconv.Itoa(c.config.Port))
	}

	c.mu.Lock()
	c.listener = listener
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := c.server
	c.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server error", map[string]interface{}{"error": err})
		}
	}()

	c.logger.Info("Metrics server started", map[string]interface{}{
		"addr": listener.Addr().String(),
		"path": c.config.Path,
	})
	return nil
}

// Addr returns the address the server listens on, "" before Start
func (c *Collector) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// Stop stops the metrics server
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// RecordCacheHit records a cache hit
func (c *Collector) RecordCacheHit(namespace string) {
	if !c.config.Enabled {
		return
	}
	c.cacheRequests.With(prometheus.Labels{"namespace": namespace, "type": "hit"}).Inc()
}

// RecordCacheMiss records a cache miss
func (c *Collector) RecordCacheMiss(namespace string) {
	if !c.config.Enabled {
		return
	}
	c.cacheRequests.With(prometheus.Labels{"namespace": namespace, "type": "miss"}).Inc()
}

// RecordCacheEviction records an entry leaving the cache
func (c *Collector) RecordCacheEviction(namespace, reason string) {
	if !c.config.Enabled {
		return
	}
	c.cacheEvictions.With(prometheus.Labels{"namespace": namespace, "reason": reason}).Inc()
}

// RecordCacheSweep records one sweeper pass
func (c *Collector) RecordCacheSweep(duration time.Duration, evicted int) {
	if !c.config.Enabled {
		return
	}
	c.cacheSweeps.Observe(duration.Seconds())
}

// UpdateCacheEntries sets the cache entry gauge
func (c *Collector) UpdateCacheEntries(count int) {
	if !c.config.Enabled {
		return
	}
	c.cacheEntries.Set(float64(count))
}

// RecordRequest records one outbound HTTP request
func (c *Collector) RecordRequest(host, method string, status int, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	statusLabel := strconv.Itoa(status)
	if status == 0 {
		statusLabel = "none"
	}
	c.httpRequests.With(prometheus.Labels{"host": host, "method": method, "status": statusLabel}).Inc()
	c.httpDuration.With(prometheus.Labels{"host": host, "method": method}).Observe(duration.Seconds())

	if err != nil {
		c.errorCounter.With(prometheus.Labels{
			"operation": "http",
			"type":      classifyError(err),
		}).Inc()
	}
}

// RecordScrape records the outcome of one scraper run
func (c *Collector) RecordScrape(result types.ScrapeResult) {
	c.mu.Lock()
	m, ok := c.scrapers[result.Scraper]
	if !ok {
		m = &ScraperMetrics{}
		c.scrapers[result.Scraper] = m
	}
	m.Runs++
	if !result.Succeeded() {
		m.Failures++
	}
	m.Items += int64(result.Items)
	m.TotalDuration += result.Duration
	m.LastRun = time.Now()
	c.mu.Unlock()

	if !c.config.Enabled {
		return
	}

	status := "success"
	if !result.Succeeded() {
		status = "error"
		c.errorCounter.With(prometheus.Labels{
			"operation": "scrape",
			"type":      classifyError(result.Err),
		}).Inc()
	}
	c.scraperRuns.With(prometheus.Labels{"scraper": result.Scraper, "status": status}).Inc()
	c.scraperItems.With(prometheus.Labels{"scraper": result.Scraper}).Add(float64(result.Items))
	c.scraperDuration.With(prometheus.Labels{"scraper": result.Scraper}).Observe(result.Duration.Seconds())
}

// ScraperSummary returns a copy of the per-scraper totals
func (c *Collector) ScraperSummary() map[string]ScraperMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ScraperMetrics, len(c.scrapers))
	for name, m := range c.scrapers {
		out[name] = *m
	}
	return out
}

// ResetMetrics resets the internal per-scraper totals
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scrapers = make(map[string]*ScraperMetrics)
	c.lastReset = time.Now()
}

// Helper methods

func (c *Collector) initMetrics() {
	ns := c.config.Namespace
	labels := prometheus.Labels(c.config.Labels)

	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_requests_total",
			Help:        "Total number of cache reads by result",
			ConstLabels: labels,
		},
		[]string{"namespace", "type"},
	)

	c.cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_evictions_total",
			Help:        "Total number of entries removed from the cache",
			ConstLabels: labels,
		},
		[]string{"namespace", "reason"},
	)

	c.cacheSweeps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "cache_sweep_duration_seconds",
			Help:        "Duration of cache expiry sweeps in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
			ConstLabels: labels,
		},
	)

	c.cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "cache_entries",
			Help:        "Current number of cache entries",
			ConstLabels: labels,
		},
	)

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "http_requests_total",
			Help:        "Total number of outbound HTTP requests",
			ConstLabels: labels,
		},
		[]string{"host", "method", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "http_request_duration_seconds",
			Help:        "Duration of outbound HTTP requests in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			ConstLabels: labels,
		},
		[]string{"host", "method"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "errors_total",
			Help:        "Total number of errors",
			ConstLabels: labels,
		},
		[]string{"operation", "type"},
	)

	c.scraperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "scraper_runs_total",
			Help:        "Total number of scraper runs",
			ConstLabels: labels,
		},
		[]string{"scraper", "status"},
	)

	c.scraperItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "scraper_items_total",
			Help:        "Total number of items produced by scrapers",
			ConstLabels: labels,
		},
		[]string{"scraper"},
	)

	c.scraperDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "scraper_duration_seconds",
			Help:        "Duration of scraper runs in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
			ConstLabels: labels,
		},
		[]string{"scraper"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.cacheRequests,
		c.cacheEvictions,
		c.cacheSweeps,
		c.cacheEntries,
		c.httpRequests,
		c.httpDuration,
		c.errorCounter,
		c.scraperRuns,
		c.scraperItems,
		c.scraperDuration,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// classifyError maps an error to a low-cardinality label
func classifyError(err error) string {
	if err == nil {
		return "none"
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return string(e.Category)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if stderrors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"recipescrape-metrics"}`))
}

func (c *Collector) debugScrapersHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	lastReset := c.lastReset
	c.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"uptime":     time.Since(lastReset).String(),
		"last_reset": lastReset,
		"scrapers":   c.ScraperSummary(),
	})
}
