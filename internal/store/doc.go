// Package store persists the media catalog: drives, file records with their
// fingerprints, duplicate groups, and scan checkpoints, all backed by SQLite.
package store
