package config

const (
	defaultDatabasePath       = "~/.local/share/mediadedup/media.db"
	defaultLogDir             = "~/.local/share/mediadedup/logs"
	defaultCheckpointDir      = "~/.local/share/mediadedup/checkpoints"
	defaultWorkers            = 6
	defaultChunkSize          = 100
	defaultCheckpointInterval = 5
	defaultPHashThreshold     = 5
	defaultMaxPHashPixels     = 24_000_000
	defaultLargeFileBytes     = 500 * 1024 * 1024
	defaultMinFileBytes       = 1 * 1024 * 1024
	defaultBatchSize          = 1000
	defaultDriveMode          = "auto"
	defaultDetectTimeout      = 10
	defaultRetentionDays      = 7
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DatabasePath:  defaultDatabasePath,
			LogDir:        defaultLogDir,
			CheckpointDir: defaultCheckpointDir,
		},
		Scan: Scan{
			Workers:            defaultWorkers,
			ChunkSize:          defaultChunkSize,
			CheckpointInterval: defaultCheckpointInterval,
			PHashThreshold:     defaultPHashThreshold,
			MaxPHashPixels:     defaultMaxPHashPixels,
			LargeFileBytes:     defaultLargeFileBytes,
			MinFileBytes:       defaultMinFileBytes,
			BatchSize:          defaultBatchSize,
		},
		Drive: Drive{
			Mode:          defaultDriveMode,
			DetectTimeout: defaultDetectTimeout,
		},
		Checkpoints: Checkpoints{
			RetentionDays: defaultRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
