// Package grouping clusters extracted file records into duplicate groups.
// Exact duplicates share a SHA-256; near-duplicate images merge when their
// perceptual hashes sit within a Hamming distance threshold, transitively.
// Each group elects one original; everything else points at it.
package grouping
