/*
Package metrics provides Prometheus metrics collection for recipescrape.

# Overview

Collector implements types.MetricsCollector, so the cache store, the HTTP client and the
scraper runner all report into the same registry. When metrics are enabled the collector
serves them over HTTP.

	┌─────────────┐
	│  Collector  │  ← types.MetricsCollector
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌─────────▼───────┐
	│  Prometheus  │         │  HTTP Endpoints │
	│   Registry   │         │  /metrics       │
	│              │         │  /health        │
	│ - Counters   │         │  /debug/scrapers│
	│ - Histograms │         └─────────────────┘
	│ - Gauges     │
	└──────────────┘

# Exported Metrics

	recipescrape_cache_requests_total{namespace,type}       hit / miss
	recipescrape_cache_evictions_total{namespace,reason}    expired / removed / cleared
	recipescrape_cache_sweep_duration_seconds
	recipescrape_cache_entries
	recipescrape_http_requests_total{host,method,status}
	recipescrape_http_request_duration_seconds{host,method}
	recipescrape_errors_total{operation,type}
	recipescrape_scraper_runs_total{scraper,status}
	recipescrape_scraper_items_total{scraper}
	recipescrape_scraper_duration_seconds{scraper}

Error types are the categories of pkg/errors (cache, connection, auth, ...), plus
timeout and canceled for context errors.

# Usage

	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Port: 9090}, logger)
	if err != nil {
		return err
	}
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop(context.Background())

	store, _ := cache.New(cfg, cache.WithRecorder(collector))

A disabled collector still satisfies the interface; Prometheus calls become no-ops
while the per-scraper summary keeps counting.
*/
package metrics
