package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DriveStatsFor aggregates the scan summary figures for one drive.
func (s *Store) DriveStatsFor(ctx context.Context, driveID int64) (DriveStats, error) {
	var (
		stats      DriveStats
		totalBytes sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COUNT(CASE WHEN type = 'image' THEN 1 END),
               COUNT(CASE WHEN type = 'video' THEN 1 END),
               COUNT(CASE WHEN is_large = 1 THEN 1 END),
               COUNT(CASE WHEN duplicate_of IS NOT NULL THEN 1 END),
               COUNT(DISTINCT group_id),
               SUM(size_bytes)
        FROM files WHERE drive_id = ?`, driveID,
	).Scan(
		&stats.TotalFiles,
		&stats.Images,
		&stats.Videos,
		&stats.LargeFiles,
		&stats.Duplicates,
		&stats.Groups,
		&totalBytes,
	)
	if err != nil {
		return DriveStats{}, fmt.Errorf("drive stats: %w", err)
	}
	stats.TotalBytes = totalBytes.Int64
	return stats, nil
}

// Stats aggregates store-wide state for reporting.
func (s *Store) Stats(ctx context.Context) (LibraryStats, error) {
	var (
		stats      LibraryStats
		totalBytes sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COUNT(CASE WHEN type = 'image' THEN 1 END),
               COUNT(CASE WHEN type = 'video' THEN 1 END),
               COUNT(CASE WHEN is_large = 1 THEN 1 END),
               COUNT(CASE WHEN duplicate_of IS NOT NULL THEN 1 END),
               COUNT(CASE WHEN duplicate_of IS NULL THEN 1 END),
               SUM(size_bytes)
        FROM files`,
	).Scan(
		&stats.TotalFiles,
		&stats.Images,
		&stats.Videos,
		&stats.LargeFiles,
		&stats.Duplicates,
		&stats.Originals,
		&totalBytes,
	)
	if err != nil {
		return LibraryStats{}, fmt.Errorf("library stats: %w", err)
	}
	stats.TotalBytes = totalBytes.Int64

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups`).Scan(&stats.Groups); err != nil {
		return LibraryStats{}, fmt.Errorf("group count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drives`).Scan(&stats.Drives); err != nil {
		return LibraryStats{}, fmt.Errorf("drive count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT review_status, COUNT(*) FROM files GROUP BY review_status`)
	if err != nil {
		return LibraryStats{}, fmt.Errorf("review stats: %w", err)
	}
	defer rows.Close()

	stats.ReviewCounts = make(map[string]int64)
	for rows.Next() {
		var (
			status sql.NullString
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return LibraryStats{}, err
		}
		stats.ReviewCounts[status.String] = count
	}
	return stats, rows.Err()
}
