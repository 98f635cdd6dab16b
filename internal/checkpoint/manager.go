package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediadedup/internal/config"
	"mediadedup/internal/logging"
	"mediadedup/internal/store"
)

// Manager owns the checkpoint directory and keeps the store's checkpoint
// rows in sync with the JSON state files.
type Manager struct {
	dir    string
	store  *store.Store
	logger *slog.Logger
}

// NewManager constructs a checkpoint manager rooted at the configured
// checkpoint directory.
func NewManager(cfg *config.Config, s *store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		dir:    cfg.Paths.CheckpointDir,
		store:  s,
		logger: logging.NewComponentLogger(logger, "checkpoint"),
	}
}

func (m *Manager) statePath(scanID string) string {
	return filepath.Join(m.dir, scanID+".json")
}

// Save writes the state file atomically via a temp file rename and mirrors
// the summary into the store. UpdatedAt is stamped as part of saving.
func (m *Manager) Save(ctx context.Context, state *State) error {
	if state == nil || state.ScanID == "" {
		return errors.New("checkpoint state requires a scan id")
	}
	if !ValidStage(state.Stage) {
		return fmt.Errorf("invalid checkpoint stage %q", state.Stage)
	}

	state.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	target := m.statePath(state.ScanID)
	tmp, err := os.CreateTemp(m.dir, state.ScanID+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish checkpoint: %w", err)
	}

	row := &store.CheckpointRow{
		ScanID:         state.ScanID,
		SourcePath:     state.SourcePath,
		DriveID:        state.DriveID,
		Stage:          string(state.Stage),
		ConfigJSON:     state.ConfigSignature,
		CheckpointFile: target,
		Timestamp:      state.UpdatedAt,
	}
	if state.Extract != nil {
		row.ProcessedCount = state.Extract.ProcessedCount
		row.BatchNumber = state.Extract.NextChunk
	}
	if err := m.store.UpsertCheckpoint(ctx, row); err != nil {
		return err
	}

	m.logger.Debug("checkpoint saved",
		logging.String(logging.FieldScanID, state.ScanID),
		logging.String(logging.FieldStage, string(state.Stage)))
	return nil
}

// Load reads a scan's state file. Returns nil when the scan is unknown.
func (m *Manager) Load(ctx context.Context, scanID string) (*State, error) {
	row, err := m.store.CheckpointByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	path := row.CheckpointFile
	if path == "" {
		path = m.statePath(scanID)
	}
	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checkpoint file missing for %s", scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", scanID, err)
	}
	if !ValidStage(state.Stage) {
		return nil, fmt.Errorf("checkpoint %s has invalid stage %q", scanID, state.Stage)
	}
	return &state, nil
}

// LatestResumable returns the newest unfinished checkpoint for a source
// path, or nil when every scan of that source ran to completion.
func (m *Manager) LatestResumable(ctx context.Context, sourcePath string) (*State, error) {
	rows, err := m.store.ListCheckpoints(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.SourcePath != sourcePath || row.Stage == string(StageDone) {
			continue
		}
		return m.Load(ctx, row.ScanID)
	}
	return nil, nil
}

// Delete removes a scan's state file and its store row.
func (m *Manager) Delete(ctx context.Context, scanID string) error {
	if err := os.Remove(m.statePath(scanID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint file: %w", err)
	}
	if _, err := m.store.DeleteCheckpoint(ctx, scanID); err != nil {
		return err
	}
	return nil
}

// PurgeOlderThan removes checkpoints stamped before the cutoff and returns
// how many were deleted. Completed and abandoned scans age out the same way.
func (m *Manager) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	rows, err := m.store.CheckpointsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, row := range rows {
		if err := m.Delete(ctx, row.ScanID); err != nil {
			return purged, err
		}
		purged++
	}
	if purged > 0 {
		m.logger.Info("checkpoints purged", logging.Int("count", purged))
	}
	return purged, nil
}
