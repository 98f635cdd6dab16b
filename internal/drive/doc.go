// Package drive resolves the identity of the storage device behind a scan
// source path: a human-readable label plus a fingerprint that stays stable
// across remounts, so re-scanning the same drive reuses its catalog row.
package drive
