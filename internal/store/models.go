package store

import "time"

// MediaType classifies a file by its extension.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// FileRecord is one row of the files table. Identity is (DriveID, Path);
// re-scans insert-or-ignore on that pair. Group pointers are written only
// by the grouping engine; review fields are owned by the review tooling
// and never mutated here.
type FileRecord struct {
	ID           int64
	DriveID      int64
	Path         string
	SizeBytes    int64
	Type         MediaType
	FastFP       string
	SHA256       string
	PHash        string
	Width        int
	Height       int
	IsLarge      bool
	GroupID      *int64
	DuplicateOf  *int64
	ReviewStatus string
	CreatedAt    time.Time
}

// Pixels returns the pixel count used for original selection.
func (r *FileRecord) Pixels() int64 {
	return int64(r.Width) * int64(r.Height)
}

// Bucket is the (size, fast fingerprint) pair that gates full hashing.
type Bucket struct {
	SizeBytes int64
	FastFP    string
}

// DriveRecord is one row of the drives table.
type DriveRecord struct {
	ID          int64
	Label       string
	Fingerprint string
	MountPoint  string
}

// CheckpointRow mirrors a scan_checkpoints row; the heavyweight stage
// state lives in the JSON file referenced by CheckpointFile.
type CheckpointRow struct {
	ScanID         string
	SourcePath     string
	DriveID        int64
	Stage          string
	ProcessedCount int64
	BatchNumber    int
	ConfigJSON     string
	CheckpointFile string
	Timestamp      time.Time
}

// DriveStats aggregates per-drive scan results for the terminal summary.
type DriveStats struct {
	TotalFiles int64
	Images     int64
	Videos     int64
	LargeFiles int64
	Duplicates int64
	Groups     int64
	TotalBytes int64
}

// LibraryStats aggregates store-wide state for the stats command.
type LibraryStats struct {
	TotalFiles   int64
	Images       int64
	Videos       int64
	LargeFiles   int64
	Duplicates   int64
	Originals    int64
	Groups       int64
	Drives       int64
	TotalBytes   int64
	ReviewCounts map[string]int64
}
