package checkpoint

import (
	"crypto/sha256"
	"fmt"
	"time"

	"mediadedup/internal/fingerprint"
)

// Stage identifies how far a scan has progressed. Stages only move forward.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageExtract  Stage = "extract"
	StageGroup    Stage = "group"
	StageDone     Stage = "done"
)

// ValidStage reports whether s is one of the four pipeline stages.
func ValidStage(s Stage) bool {
	switch s {
	case StageDiscover, StageExtract, StageGroup, StageDone:
		return true
	}
	return false
}

// State is the resumable snapshot of one scan. The extract payload is
// present from the end of discovery onward; earlier stages carry none.
type State struct {
	ScanID           string    `json:"scan_id"`
	SourcePath       string    `json:"source_path"`
	DriveID          int64     `json:"drive_id"`
	DriveFingerprint string    `json:"drive_fingerprint"`
	Stage            Stage     `json:"stage"`
	ConfigSignature  string    `json:"config_signature"`
	StartedAt        time.Time `json:"started_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Extract *ExtractState `json:"extract,omitempty"`
}

// ExtractState carries the discovered candidate list and the cursor into
// it. Candidates before NextChunk*ChunkSize are already committed.
type ExtractState struct {
	Candidates     []fingerprint.Candidate `json:"candidates"`
	ChunkSize      int                     `json:"chunk_size"`
	NextChunk      int                     `json:"next_chunk"`
	ProcessedCount int64                   `json:"processed_count"`
	SkippedCount   int64                   `json:"skipped_count"`
}

// NextIndex returns the candidate offset extraction resumes from.
func (e *ExtractState) NextIndex() int {
	return e.NextChunk * e.ChunkSize
}

// NewScanID builds the identifier for a scan of sourcePath started at the
// given instant. The path digest suffix keeps ids from concurrent scans of
// different sources distinct even within the same second.
func NewScanID(sourcePath string, startedAt time.Time) string {
	digest := sha256.Sum256([]byte(sourcePath))
	return fmt.Sprintf("scan_%s_%x", startedAt.UTC().Format("20060102T150405"), digest[:4])
}
