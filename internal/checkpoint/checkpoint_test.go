package checkpoint_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"mediadedup/internal/checkpoint"
	"mediadedup/internal/fingerprint"
	"mediadedup/internal/logging"
	"mediadedup/internal/testsupport"
)

func TestNewScanID(t *testing.T) {
	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	id := checkpoint.NewScanID("/mnt/photos", at)
	if !strings.HasPrefix(id, "scan_20260825T120000_") {
		t.Fatalf("unexpected scan id %q", id)
	}

	// Same instant, same path: same id. Different path: different suffix.
	if id != checkpoint.NewScanID("/mnt/photos", at) {
		t.Fatal("scan id must be deterministic")
	}
	if id == checkpoint.NewScanID("/mnt/videos", at) {
		t.Fatal("different sources must yield different scan ids")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	ctx := context.Background()

	state := &checkpoint.State{
		ScanID:           checkpoint.NewScanID("/mnt/photos", time.Now()),
		SourcePath:       "/mnt/photos",
		DriveID:          3,
		DriveFingerprint: "fp-123",
		Stage:            checkpoint.StageExtract,
		ConfigSignature:  `{"chunk_size":4}`,
		StartedAt:        time.Now().UTC(),
		Extract: &checkpoint.ExtractState{
			Candidates: []fingerprint.Candidate{
				{Path: "/mnt/photos/a.jpg", SizeBytes: 100},
				{Path: "/mnt/photos/b.jpg", SizeBytes: 200},
			},
			ChunkSize:      4,
			NextChunk:      1,
			ProcessedCount: 4,
		},
	}
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := manager.Load(ctx, state.ScanID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected state back")
	}
	if loaded.Stage != checkpoint.StageExtract || loaded.DriveFingerprint != "fp-123" {
		t.Fatalf("unexpected state %+v", loaded)
	}
	if loaded.Extract == nil || len(loaded.Extract.Candidates) != 2 {
		t.Fatalf("extract payload lost: %+v", loaded.Extract)
	}
	if loaded.Extract.NextIndex() != 4 {
		t.Fatalf("expected resume index 4, got %d", loaded.Extract.NextIndex())
	}

	// The mirrored store row reflects the extract cursor.
	row, err := s.CheckpointByID(ctx, state.ScanID)
	if err != nil {
		t.Fatalf("row lookup failed: %v", err)
	}
	if row == nil || row.ProcessedCount != 4 || row.BatchNumber != 1 {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestLoadUnknownScanReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	manager := checkpoint.NewManager(cfg, s, logging.NewNop())

	state, err := manager.Load(context.Background(), "scan_nope")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil for unknown scan")
	}
}

func TestLatestResumableSkipsCompletedScans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	ctx := context.Background()

	done := &checkpoint.State{
		ScanID:     "scan_20260801T000000_aaaaaaaa",
		SourcePath: "/mnt/photos",
		Stage:      checkpoint.StageDone,
		StartedAt:  time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := manager.Save(ctx, done); err != nil {
		t.Fatalf("save done: %v", err)
	}

	// No unfinished scan yet.
	state, err := manager.LatestResumable(ctx, "/mnt/photos")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if state != nil {
		t.Fatal("completed scans must not be resumable")
	}

	unfinished := &checkpoint.State{
		ScanID:     "scan_20260825T000000_bbbbbbbb",
		SourcePath: "/mnt/photos",
		Stage:      checkpoint.StageGroup,
		StartedAt:  time.Now().UTC(),
	}
	if err := manager.Save(ctx, unfinished); err != nil {
		t.Fatalf("save unfinished: %v", err)
	}

	state, err = manager.LatestResumable(ctx, "/mnt/photos")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if state == nil || state.ScanID != unfinished.ScanID {
		t.Fatalf("expected the unfinished scan, got %+v", state)
	}

	// Other sources see nothing.
	state, err = manager.LatestResumable(ctx, "/mnt/videos")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if state != nil {
		t.Fatal("expected no resumable scan for a different source")
	}
}

func TestPurgeOlderThan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	ctx := context.Background()

	old := &checkpoint.State{
		ScanID:     "scan_20260101T000000_cccccccc",
		SourcePath: "/mnt/old",
		Stage:      checkpoint.StageDone,
	}
	if err := manager.Save(ctx, old); err != nil {
		t.Fatalf("save old: %v", err)
	}
	// Backdate the store row past the retention window.
	row, err := s.CheckpointByID(ctx, old.ScanID)
	if err != nil {
		t.Fatalf("row lookup: %v", err)
	}
	row.Timestamp = time.Now().UTC().AddDate(0, 0, -30)
	if err := s.UpsertCheckpoint(ctx, row); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	fresh := &checkpoint.State{
		ScanID:     "scan_20260825T000000_dddddddd",
		SourcePath: "/mnt/new",
		Stage:      checkpoint.StageExtract,
	}
	if err := manager.Save(ctx, fresh); err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	purged, err := manager.PurgeOlderThan(ctx, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}

	if state, err := manager.Load(ctx, old.ScanID); err != nil || state != nil {
		t.Fatalf("old checkpoint must be gone, got state=%v err=%v", state, err)
	}
	if state, err := manager.Load(ctx, fresh.ScanID); err != nil || state == nil {
		t.Fatalf("fresh checkpoint must survive, got state=%v err=%v", state, err)
	}

	rows, err := s.ListCheckpoints(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after purge, got %d", len(rows))
	}
	if _, err := os.Stat(rows[0].CheckpointFile); err != nil {
		t.Fatalf("surviving checkpoint file missing: %v", err)
	}
}

func TestSaveRejectsInvalidStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	manager := checkpoint.NewManager(cfg, s, logging.NewNop())

	err := manager.Save(context.Background(), &checkpoint.State{
		ScanID: "scan_x",
		Stage:  "finalize",
	})
	if err == nil {
		t.Fatal("expected error for invalid stage")
	}
}
