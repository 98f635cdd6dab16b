package fingerprint

import (
	"path/filepath"
	"strings"

	"mediadedup/internal/store"
)

// Candidate is a discovered media file queued for feature extraction.
type Candidate struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// CandidateError records a file that could not be processed. Per-file
// failures are reported, not fatal.
type CandidateError struct {
	Path string
	Err  error
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".gif":  {},
	".tiff": {},
	".webp": {},
	".heic": {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".wmv":  {},
	".flv":  {},
	".mpeg": {},
	".mpg":  {},
}

// MediaTypeFor classifies a path by extension. The second result is false
// for non-media files.
func MediaTypeFor(path string) (store.MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		return store.MediaImage, true
	}
	if _, ok := videoExtensions[ext]; ok {
		return store.MediaVideo, true
	}
	return "", false
}
