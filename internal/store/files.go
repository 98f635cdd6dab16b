package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const fileColumns = "file_id, hash_sha256, phash, width, height, size_bytes, type, drive_id, path_on_drive, is_large, duplicate_of, group_id, fast_fp, review_status, created_at"

// BatchInsertFiles persists extracted records with INSERT OR IGNORE keyed on
// (drive_id, path_on_drive). Records already present from a prior run are
// left untouched, which makes redoing an interrupted chunk safe. Returns the
// number of rows actually inserted.
func (s *Store) BatchInsertFiles(ctx context.Context, records []*FileRecord, batchSize int) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	var inserted int64
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return inserted, fmt.Errorf("begin insert tx: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO files
            (hash_sha256, phash, width, height, size_bytes, type, drive_id,
             path_on_drive, is_large, duplicate_of, group_id, fast_fp)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("prepare insert: %w", err)
		}

		for _, rec := range records[start:end] {
			res, err := stmt.ExecContext(ctx,
				nullableString(rec.SHA256),
				nullableString(rec.PHash),
				nullableInt(rec.Width),
				nullableInt(rec.Height),
				rec.SizeBytes,
				string(rec.Type),
				rec.DriveID,
				rec.Path,
				boolToInt(rec.IsLarge),
				nullableString(rec.FastFP),
			)
			if err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return inserted, fmt.Errorf("insert file %q: %w", rec.Path, err)
			}
			affected, _ := res.RowsAffected()
			inserted += affected
		}

		if err := stmt.Close(); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("close insert stmt: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return inserted, fmt.Errorf("commit insert batch: %w", err)
		}
	}
	return inserted, nil
}

// UngroupedFiles returns the drive's records with no group assignment,
// ordered by file id so grouping input is deterministic.
func (s *Store) UngroupedFiles(ctx context.Context, driveID int64) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE drive_id = ? AND group_id IS NULL ORDER BY file_id`,
		driveID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ungrouped files: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FileByPath fetches a single record by its (drive, path) identity.
func (s *Store) FileByPath(ctx context.Context, driveID int64, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE drive_id = ? AND path_on_drive = ?`,
		driveID, path,
	)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return rec, nil
}

// Buckets returns every persisted (size_bytes, fast_fp) pair. The
// fingerprint engine rehydrates its short-circuit map from this set on
// startup and resume.
func (s *Store) Buckets(ctx context.Context) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT size_bytes, fast_fp FROM files WHERE fast_fp IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.SizeBytes, &b.FastFP); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// FileCount returns the number of records stored for a drive.
func (s *Store) FileCount(ctx context.Context, driveID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE drive_id = ?`, driveID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return count, nil
}

func scanFile(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id          int64
		sha         sql.NullString
		phash       sql.NullString
		width       sql.NullInt64
		height      sql.NullInt64
		sizeBytes   int64
		typeStr     string
		driveID     int64
		path        string
		isLarge     sql.NullInt64
		duplicateOf sql.NullInt64
		groupID     sql.NullInt64
		fastFP      sql.NullString
		review      sql.NullString
		createdRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id, &sha, &phash, &width, &height, &sizeBytes, &typeStr, &driveID,
		&path, &isLarge, &duplicateOf, &groupID, &fastFP, &review, &createdRaw,
	); err != nil {
		return nil, err
	}

	rec := &FileRecord{
		ID:           id,
		DriveID:      driveID,
		Path:         path,
		SizeBytes:    sizeBytes,
		Type:         MediaType(typeStr),
		FastFP:       fastFP.String,
		SHA256:       sha.String,
		PHash:        phash.String,
		Width:        int(width.Int64),
		Height:       int(height.Int64),
		IsLarge:      isLarge.Valid && isLarge.Int64 != 0,
		ReviewStatus: review.String,
	}
	if duplicateOf.Valid {
		v := duplicateOf.Int64
		rec.DuplicateOf = &v
	}
	if groupID.Valid {
		v := groupID.Int64
		rec.GroupID = &v
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}
