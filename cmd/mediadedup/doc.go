// Command mediadedup scans drives of photos and videos, fingerprints every
// file, and catalogs exact and near duplicates in a local SQLite database.
package main
