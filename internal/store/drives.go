package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetOrCreateDrive resolves a drive row for the given identity. Lookup is by
// stable fingerprint first (a relabeled or remounted drive keeps its row),
// then by mount point for identities with no stable fingerprint.
func (s *Store) GetOrCreateDrive(ctx context.Context, label, fingerprint, mountPoint string) (*DriveRecord, error) {
	if fingerprint != "" {
		drive, err := s.driveBy(ctx, "fingerprint", fingerprint)
		if err != nil {
			return nil, err
		}
		if drive != nil {
			if drive.MountPoint != mountPoint {
				if _, err := s.db.ExecContext(ctx,
					`UPDATE drives SET mount_point = ? WHERE drive_id = ?`,
					mountPoint, drive.ID,
				); err != nil {
					return nil, fmt.Errorf("update drive mount point: %w", err)
				}
				drive.MountPoint = mountPoint
			}
			return drive, nil
		}
	} else {
		drive, err := s.driveBy(ctx, "mount_point", mountPoint)
		if err != nil {
			return nil, err
		}
		if drive != nil {
			return drive, nil
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO drives (label, fingerprint, mount_point) VALUES (?, ?, ?)`,
		nullableString(label),
		nullableString(fingerprint),
		mountPoint,
	)
	if err != nil {
		return nil, fmt.Errorf("insert drive: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("drive insert id: %w", err)
	}

	return &DriveRecord{ID: id, Label: label, Fingerprint: fingerprint, MountPoint: mountPoint}, nil
}

// DriveByID fetches a drive row by identifier.
func (s *Store) DriveByID(ctx context.Context, id int64) (*DriveRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT drive_id, label, fingerprint, mount_point FROM drives WHERE drive_id = ?`, id)
	return scanDrive(row)
}

func (s *Store) driveBy(ctx context.Context, column, value string) (*DriveRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT drive_id, label, fingerprint, mount_point FROM drives WHERE `+column+` = ? LIMIT 1`,
		value,
	)
	return scanDrive(row)
}

func scanDrive(row *sql.Row) (*DriveRecord, error) {
	var (
		drive       DriveRecord
		label       sql.NullString
		fingerprint sql.NullString
		mountPoint  sql.NullString
	)
	err := row.Scan(&drive.ID, &label, &fingerprint, &mountPoint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan drive: %w", err)
	}
	drive.Label = label.String
	drive.Fingerprint = fingerprint.String
	drive.MountPoint = mountPoint.String
	return &drive, nil
}
