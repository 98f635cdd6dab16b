package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.CheckpointDir, err = expandPath(c.Paths.CheckpointDir); err != nil {
		return err
	}

	c.Drive.Mode = strings.ToLower(strings.TrimSpace(c.Drive.Mode))
	if c.Drive.Mode == "" {
		c.Drive.Mode = defaultDriveMode
	}
	c.Drive.LabelOverride = strings.TrimSpace(c.Drive.LabelOverride)
	c.Drive.IDHintOverride = strings.TrimSpace(c.Drive.IDHintOverride)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	if c.Scan.Workers <= 0 {
		c.Scan.Workers = defaultWorkers
	}
	if c.Scan.ChunkSize <= 0 {
		c.Scan.ChunkSize = defaultChunkSize
	}
	if c.Scan.CheckpointInterval <= 0 {
		c.Scan.CheckpointInterval = defaultCheckpointInterval
	}
	if c.Scan.BatchSize <= 0 {
		c.Scan.BatchSize = defaultBatchSize
	}
	return nil
}
