// Package scan drives the dedup pipeline end to end: discovery, chunked
// feature extraction, grouping, and checkpointing, under a single-instance
// lock. Per-file failures are reported and skipped; only setup and storage
// failures abort a scan.
package scan
