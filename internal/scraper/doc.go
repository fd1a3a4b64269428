/*
Package scraper runs recipe scrapers against shared infrastructure.

Each Scraper gets an Env whose cache handle, output sink and logger are all
scoped to the scraper's name:

	cache namespace   "<name>"
	output files      "<name>-<file>"
	log component     "<name>"

Runner.RunAll executes scrapers in name order, isolates failures and panics,
and flushes the cache snapshot once when every scraper has finished.
*/
package scraper
