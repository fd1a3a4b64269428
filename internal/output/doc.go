// Package output stores scraper results.
//
// A scraper writes through a Sink scoped with Namespaced, so every file it
// produces is named "<scraper>-<name>". LocalSink writes under a directory
// (./outputs by default); S3Sink uploads each output with a single PutObject.
package output
