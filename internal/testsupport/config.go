package testsupport

import (
	"path/filepath"
	"testing"

	"mediadedup/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Thresholds are lowered so small fixture files exercise the full pipeline.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DatabasePath = filepath.Join(base, "media.db")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CheckpointDir = filepath.Join(base, "checkpoints")
	cfg.Scan.Workers = 2
	cfg.Scan.ChunkSize = 4
	cfg.Scan.CheckpointInterval = 1
	cfg.Scan.MinFileBytes = 0
	cfg.Scan.LargeFileBytes = 1 << 20
	cfg.Drive.Mode = "synthetic"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithChunkSize overrides the extraction chunk size on the test config.
func WithChunkSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scan.ChunkSize = size
	}
}

// WithLargeThreshold overrides the large-file byte threshold.
func WithLargeThreshold(bytes int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scan.LargeFileBytes = bytes
	}
}
