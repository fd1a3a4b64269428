package types

import (
	"time"
)

// CacheStats represents cache statistics
type CacheStats struct {
	Entries    int     `json:"entries"`
	Namespaces int     `json:"namespaces"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Sets       uint64  `json:"sets"`
	Evictions  uint64  `json:"evictions"`
	Sweeps     uint64  `json:"sweeps"`
	HitRate    float64 `json:"hit_rate"`
}

// ScrapeResult summarises one scraper run
type ScrapeResult struct {
	Scraper  string        `json:"scraper"`
	Items    int           `json:"items"`
	Outputs  []string      `json:"outputs"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Succeeded reports whether the run finished without error
func (r ScrapeResult) Succeeded() bool {
	return r.Err == nil
}
