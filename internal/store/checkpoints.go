package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const checkpointColumns = "scan_id, source_path, drive_id, stage, processed_count, batch_number, config_json, checkpoint_file, timestamp"

// checkpointTimeLayout is fixed width so the TEXT column sorts
// chronologically. RFC3339Nano drops trailing fraction zeros, which breaks
// lexicographic ordering within a second.
const checkpointTimeLayout = "2006-01-02T15:04:05.000000000Z"

// UpsertCheckpoint writes or replaces the store row for a scan checkpoint.
// The row exists for inspection; the resumable stage state lives in the
// JSON file the row references.
func (s *Store) UpsertCheckpoint(ctx context.Context, row *CheckpointRow) error {
	if row == nil {
		return errors.New("checkpoint row is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scan_checkpoints
         (scan_id, source_path, drive_id, stage, processed_count, batch_number, config_json, checkpoint_file, timestamp)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ScanID,
		row.SourcePath,
		row.DriveID,
		row.Stage,
		row.ProcessedCount,
		row.BatchNumber,
		nullableString(row.ConfigJSON),
		nullableString(row.CheckpointFile),
		row.Timestamp.UTC().Format(checkpointTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// CheckpointByID fetches one checkpoint row, or nil when absent.
func (s *Store) CheckpointByID(ctx context.Context, scanID string) (*CheckpointRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM scan_checkpoints WHERE scan_id = ?`, scanID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// ListCheckpoints returns all checkpoint rows, newest first.
func (s *Store) ListCheckpoints(ctx context.Context) ([]*CheckpointRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkpointColumns+` FROM scan_checkpoints ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*CheckpointRow
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// CheckpointsOlderThan returns checkpoint rows stamped before the cutoff.
func (s *Store) CheckpointsOlderThan(ctx context.Context, cutoff time.Time) ([]*CheckpointRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkpointColumns+` FROM scan_checkpoints WHERE timestamp < ? ORDER BY timestamp`,
		cutoff.UTC().Format(checkpointTimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query old checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*CheckpointRow
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// DeleteCheckpoint removes a checkpoint row, reporting whether it existed.
func (s *Store) DeleteCheckpoint(ctx context.Context, scanID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_checkpoints WHERE scan_id = ?`, scanID)
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanCheckpoint(scanner interface{ Scan(dest ...any) error }) (*CheckpointRow, error) {
	var (
		cp       CheckpointRow
		driveID  sql.NullInt64
		cfgJSON  sql.NullString
		cpFile   sql.NullString
		stampRaw sql.NullString
	)
	if err := scanner.Scan(
		&cp.ScanID,
		&cp.SourcePath,
		&driveID,
		&cp.Stage,
		&cp.ProcessedCount,
		&cp.BatchNumber,
		&cfgJSON,
		&cpFile,
		&stampRaw,
	); err != nil {
		return nil, err
	}
	cp.DriveID = driveID.Int64
	cp.ConfigJSON = cfgJSON.String
	cp.CheckpointFile = cpFile.String
	if stamp, err := parseTimeString(stampRaw.String); err == nil {
		cp.Timestamp = stamp
	}
	return &cp, nil
}
