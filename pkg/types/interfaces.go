package types

import (
	"time"
)

// CacheRecorder receives cache events for metrics export
type CacheRecorder interface {
	RecordCacheHit(namespace string)
	RecordCacheMiss(namespace string)
	RecordCacheEviction(namespace, reason string)
	RecordCacheSweep(duration time.Duration, evicted int)
	UpdateCacheEntries(count int)
}

// HTTPRecorder receives outbound request events
type HTTPRecorder interface {
	RecordRequest(host, method string, status int, duration time.Duration, err error)
}

// ScraperRecorder receives per-scraper results
type ScraperRecorder interface {
	RecordScrape(result ScrapeResult)
}

// MetricsCollector is the full set of recorders the host wires together
type MetricsCollector interface {
	CacheRecorder
	HTTPRecorder
	ScraperRecorder
}

// NoopRecorder discards every event
type NoopRecorder struct{}

func (NoopRecorder) RecordCacheHit(string)                                  {}
func (NoopRecorder) RecordCacheMiss(string)                                 {}
func (NoopRecorder) RecordCacheEviction(string, string)                     {}
func (NoopRecorder) RecordCacheSweep(time.Duration, int)                    {}
func (NoopRecorder) UpdateCacheEntries(int)                                 {}
func (NoopRecorder) RecordRequest(string, string, int, time.Duration, error) {}
func (NoopRecorder) RecordScrape(ScrapeResult)                              {}
