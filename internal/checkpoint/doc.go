// Package checkpoint persists resumable scan progress. Each scan owns one
// JSON state file that is rewritten atomically as stages advance, plus a
// lightweight store row for listing and retention. A crashed or interrupted
// scan resumes from the last saved state without rediscovering files.
package checkpoint
