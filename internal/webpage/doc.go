// Package webpage fetches HTML pages and JSON APIs for the scrapers.
//
// Every request goes through the retryer in pkg/retry and, when enabled, a
// per-host circuit breaker. Non-2xx responses become HTTP_STATUS errors that
// are retryable for 5xx and 429; 401 and 403 become AUTHENTICATION_FAILED.
// Only GET requests are retried.
//
// The DOM helpers (FindAll, FindFirst, Attr, HasClass) walk trees parsed by
// golang.org/x/net/html.
package webpage
