package scan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"mediadedup/internal/fingerprint"
	"mediadedup/internal/logging"
)

// Discover walks sourcePath and returns every media file at or above the
// minimum size, in lexical path order so repeated walks of an unchanged
// tree yield the same candidate list. Unreadable entries are logged and
// skipped; hidden directories are not descended into.
func Discover(sourcePath string, minBytes int64, logger *slog.Logger) ([]fingerprint.Candidate, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var candidates []fingerprint.Candidate
	err := filepath.WalkDir(sourcePath, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == sourcePath {
				return fmt.Errorf("walk source: %w", walkErr)
			}
			logger.Warn("skipping unreadable entry",
				logging.String(logging.FieldPath, path),
				logging.Error(walkErr))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if path != sourcePath && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if _, ok := fingerprint.MediaTypeFor(path); !ok {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			logger.Warn("skipping unstatable file",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
			return nil
		}
		if info.Size() < minBytes {
			return nil
		}

		candidates = append(candidates, fingerprint.Candidate{Path: path, SizeBytes: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
