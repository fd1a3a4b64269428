/*
Package cache provides the process-wide TTL key/value store shared by all scrapers.

Entries live in memory, partitioned by namespace, and expire after a per-entry TTL.
A background sweeper removes expired entries; reads already treat them as absent.
The store is loaded from a JSON snapshot when created and written back on Flush.

# Architecture

	┌──────────────┐  ┌──────────────┐  ┌──────────────┐
	│ Namespace    │  │ Namespace    │  │ Namespace    │
	│ "mealie"     │  │ "bbcgoodfood"│  │ ...          │
	└──────┬───────┘  └──────┬───────┘  └──────┬───────┘
	       └─────────────────┼─────────────────┘
	                         │
	              ┌──────────┴──────────┐
	              │ Store               │ ← one mutex
	              │ (namespace,key) →   │
	              │   value, expiry     │
	              └──────┬───────┬──────┘
	                     │       │
	            sweeper ─┘       └─ Load / Flush
	         (every 5s)             .cache/cache.json

# Snapshot Format

The snapshot is a single JSON object. Each key is the namespace and the entry key
joined with "-"; each value holds the stored JSON and the absolute expiry in epoch
seconds:

	{
	  "mealie-recipe_ids": {"value": ["pasta", "soup"], "ttl": 1767225600.5},
	  "bbcgoodfood-last_url": {"value": "https://...", "ttl": 1767225660}
	}

Namespace names may not contain "-", so the first separator always splits the
composite key. Entries already expired when the snapshot is read are dropped.

# Usage

	store, err := cache.New(&cache.Config{Path: ".cache/cache.json"}, cache.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	ns, _ := store.Namespace("mealie")
	_ = ns.Set("recipe_ids", slugs, 5*cache.Minute)

	ids, ok, err := cache.Lookup[[]string](ns, "recipe_ids")

	if err := store.Flush(); err != nil {
		return err
	}

Close stops the sweeper but never flushes; flushing before exit is the caller's job.
*/
package cache
