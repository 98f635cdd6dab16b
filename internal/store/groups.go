package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// PersistGroup commits one duplicate cluster as a single logical unit:
// the group row, the original's pointers, and every duplicate's pointers
// all land in one transaction, so no partial group is ever visible.
// memberIDs must contain originalID and at least one other file.
func (s *Store) PersistGroup(ctx context.Context, originalID int64, memberIDs []int64) (int64, error) {
	if len(memberIDs) < 2 {
		return 0, errors.New("group requires at least two members")
	}
	if !slices.Contains(memberIDs, originalID) {
		return 0, fmt.Errorf("original %d is not a group member", originalID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin group tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO groups (original_file_id) VALUES (?)`, originalID)
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("group insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE files SET group_id = ?, duplicate_of = NULL WHERE file_id = ?`,
		groupID, originalID,
	); err != nil {
		return 0, fmt.Errorf("assign original: %w", err)
	}

	for _, id := range memberIDs {
		if id == originalID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE files SET group_id = ?, duplicate_of = ? WHERE file_id = ?`,
			groupID, originalID, id,
		); err != nil {
			return 0, fmt.Errorf("assign duplicate %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit group: %w", err)
	}
	return groupID, nil
}

// GroupOriginal returns the original file id recorded for a group.
func (s *Store) GroupOriginal(ctx context.Context, groupID int64) (int64, error) {
	var originalID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT original_file_id FROM groups WHERE group_id = ?`, groupID,
	).Scan(&originalID)
	if err != nil {
		return 0, fmt.Errorf("group original: %w", err)
	}
	return originalID, nil
}

// GroupCount returns the total number of persisted groups.
func (s *Store) GroupCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return count, nil
}
