package scan

import (
	"time"

	"mediadedup/internal/grouping"
	"mediadedup/internal/store"
)

// Summary reports what one scan run accomplished. FilesProcessed counts
// records extracted during this run; NewRecords counts the subset that was
// not already in the catalog from an earlier run.
type Summary struct {
	ScanID     string
	RunToken   string
	Source     string
	DriveID    int64
	DriveLabel string
	Resumed    bool

	FilesDiscovered int
	FilesProcessed  int64
	FilesSkipped    int64
	NewRecords      int64

	Grouping   grouping.Result
	DriveStats store.DriveStats
	Duration   time.Duration
}

// DedupRatio is the fraction of cataloged files on the drive that are
// duplicates of a group original. Zero when nothing is cataloged.
func (s *Summary) DedupRatio() float64 {
	if s.DriveStats.TotalFiles == 0 {
		return 0
	}
	return float64(s.DriveStats.Duplicates) / float64(s.DriveStats.TotalFiles)
}
