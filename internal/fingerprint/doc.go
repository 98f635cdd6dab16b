// Package fingerprint extracts the per-file features the grouping engine
// consumes: a cheap head-and-tail fast fingerprint for every file, a full
// SHA-256 only when a size-and-fingerprint bucket collision suggests a
// possible exact duplicate, and a perceptual hash for images that skipped
// full hashing. Extraction runs chunk by chunk over a bounded worker pool.
package fingerprint
