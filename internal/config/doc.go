/*
Package config provides configuration management for recipescrape.

Configuration is assembled from three sources, later ones winning:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│  (RECIPESCRAPE_*, LOGGING_LEVEL, MEALIE_*)  │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│        (recipescrape.yaml, YAML)            │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

The configuration file doubles as the settings store: scrapers that prompt for
values such as the Mealie URL and API token write them back with SaveToFile, so
the file is always written with 0600 permissions.

# Example

	global:
	  log_level: INFO
	  log_format: text

	cache:
	  path: ./.cache/cache.json
	  sweep_interval: 5s
	  default_ttl: 60s

	output:
	  directory: ./outputs
	  s3:
	    enabled: false
	    bucket: my-recipes
	    prefix: scrapes/

	mealie:
	  url: https://mealie.example.com
	  per_page: 25
	  confidence_threshold: 0.85

	monitoring:
	  metrics:
	    enabled: true
	    port: 9090
	    path: /metrics

# Environment Variables

	LOGGING_LEVEL, RECIPESCRAPE_LOG_LEVEL       global.log_level
	RECIPESCRAPE_LOG_FILE, _LOG_FORMAT          global.log_file, global.log_format
	RECIPESCRAPE_CACHE_PATH                     cache.path
	RECIPESCRAPE_CACHE_SWEEP_INTERVAL           cache.sweep_interval
	RECIPESCRAPE_CACHE_DEFAULT_TTL              cache.default_ttl
	RECIPESCRAPE_OUTPUT_DIR                     output.directory
	RECIPESCRAPE_S3_BUCKET                      output.s3.bucket (enables S3)
	RECIPESCRAPE_S3_PREFIX, _REGION, _ENDPOINT  output.s3.*
	RECIPESCRAPE_HTTP_TIMEOUT                   http.timeout
	MEALIE_URL, RECIPESCRAPE_MEALIE_URL         mealie.url
	MEALIE_API_TOKEN, RECIPESCRAPE_MEALIE_API_TOKEN
	RECIPESCRAPE_METRICS_ENABLED, _PORT         monitoring.metrics.*
*/
package config
