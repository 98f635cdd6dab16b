package config

import (
	"errors"
	"fmt"
	"strings"
)

var driveModes = map[string]struct{}{
	"auto":      {},
	"lsblk":     {},
	"mountinfo": {},
	"synthetic": {},
}

// Validate checks configuration values for internal consistency.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		problems = append(problems, "paths.database_path must be set")
	}
	if strings.TrimSpace(c.Paths.CheckpointDir) == "" {
		problems = append(problems, "paths.checkpoint_dir must be set")
	}
	if c.Scan.PHashThreshold < 0 || c.Scan.PHashThreshold > 64 {
		problems = append(problems, fmt.Sprintf("scan.phash_threshold must be within [0, 64], got %d", c.Scan.PHashThreshold))
	}
	if c.Scan.MaxPHashPixels <= 0 {
		problems = append(problems, "scan.max_phash_pixels must be positive")
	}
	if c.Scan.LargeFileBytes <= 0 {
		problems = append(problems, "scan.large_file_bytes must be positive")
	}
	if c.Scan.MinFileBytes < 0 {
		problems = append(problems, "scan.min_file_bytes must not be negative")
	}
	if _, ok := driveModes[c.Drive.Mode]; !ok {
		problems = append(problems, fmt.Sprintf("drive.mode must be one of auto, lsblk, mountinfo, synthetic; got %q", c.Drive.Mode))
	}
	if c.Drive.DetectTimeout < 0 {
		problems = append(problems, "drive.detect_timeout must not be negative")
	}
	if c.Checkpoints.RetentionDays < 0 {
		problems = append(problems, "checkpoints.retention_days must not be negative")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
