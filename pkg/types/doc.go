/*
Package types provides the shared data structures and recorder interfaces for recipescrape.

The cache, the HTTP client and the scraper runner report events through the recorder
interfaces defined here; internal/metrics implements all of them on top of Prometheus,
and NoopRecorder is used when metrics are disabled.

	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
	│ internal/    │   │ internal/    │   │ internal/    │
	│ cache        │   │ webpage      │   │ scraper      │
	└──────┬───────┘   └──────┬───────┘   └──────┬───────┘
	       │ CacheRecorder    │ HTTPRecorder     │ ScraperRecorder
	       └──────────────────┼──────────────────┘
	                          │
	                 ┌────────┴────────┐
	                 │ internal/metrics│
	                 └─────────────────┘
*/
package types
