package scan_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"mediadedup/internal/checkpoint"
	"mediadedup/internal/config"
	"mediadedup/internal/drive"
	"mediadedup/internal/fingerprint"
	"mediadedup/internal/logging"
	"mediadedup/internal/scan"
	"mediadedup/internal/testsupport"
)

// syntheticFingerprint resolves the same drive fingerprint the orchestrator
// will see for a test source directory.
func syntheticFingerprint(t *testing.T, cfg *config.Config, source string) string {
	t.Helper()
	identity, err := drive.Resolve(context.Background(), cfg.Drive, source)
	if err != nil {
		t.Fatalf("resolve drive: %v", err)
	}
	return identity.Fingerprint
}

func TestRunGroupsIdenticalImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Three identical images plus one unrelated, all in one chunk. The
	// identical trio skips full hashing entirely and still lands in a
	// single group through matching perceptual hashes.
	source := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(source, "one.png"), 32, 32, 10)
	testsupport.WriteImage(t, filepath.Join(source, "two.png"), 32, 32, 10)
	testsupport.WriteImage(t, filepath.Join(source, "three.png"), 32, 32, 10)
	testsupport.WriteImage(t, filepath.Join(source, "other.png"), 32, 32, 200)

	orch := scan.New(cfg, s, logging.NewNop())
	summary, err := orch.Run(ctx, scan.Options{Source: source})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if summary.FilesDiscovered != 4 || summary.FilesProcessed != 4 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if summary.NewRecords != 4 {
		t.Fatalf("expected 4 new records, got %d", summary.NewRecords)
	}
	if summary.Grouping.GroupsCreated != 1 {
		t.Fatalf("expected one group, got %+v", summary.Grouping)
	}
	if summary.Grouping.FilesGrouped != 3 || summary.Grouping.DuplicatesFound != 2 {
		t.Fatalf("expected a group of three, got %+v", summary.Grouping)
	}
	if summary.DriveStats.TotalFiles != 4 || summary.DriveStats.Duplicates != 2 {
		t.Fatalf("unexpected drive stats %+v", summary.DriveStats)
	}
	if ratio := summary.DedupRatio(); ratio != 0.5 {
		t.Fatalf("expected dedup ratio 0.5, got %v", ratio)
	}
}

func TestLargeFilesStayUngrouped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLargeThreshold(256))
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Identical images above the large threshold carry no hashes, so the
	// catalog records them without ever pairing them up.
	source := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(source, "a.png"), 64, 64, 11)
	testsupport.WriteImage(t, filepath.Join(source, "b.png"), 64, 64, 11)

	orch := scan.New(cfg, s, logging.NewNop())
	summary, err := orch.Run(ctx, scan.Options{Source: source})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if summary.Grouping.GroupsCreated != 0 || summary.Grouping.DuplicatesFound != 0 {
		t.Fatalf("large files must not group, got %+v", summary.Grouping)
	}
	if summary.DriveStats.TotalFiles != 2 || summary.DriveStats.LargeFiles != 2 {
		t.Fatalf("expected 2 cataloged large files, got %+v", summary.DriveStats)
	}
	if summary.DedupRatio() != 0 {
		t.Fatalf("expected zero dedup ratio, got %v", summary.DedupRatio())
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(source, "a.png"), 24, 24, 1)
	testsupport.WriteImage(t, filepath.Join(source, "b.png"), 24, 24, 1)

	orch := scan.New(cfg, s, logging.NewNop())
	first, err := orch.Run(ctx, scan.Options{Source: source})
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	if first.NewRecords != 2 || first.Grouping.GroupsCreated != 1 {
		t.Fatalf("unexpected first summary %+v", first)
	}

	second, err := orch.Run(ctx, scan.Options{Source: source})
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if second.NewRecords != 0 {
		t.Fatalf("rescan must not insert records, got %d", second.NewRecords)
	}
	if second.Grouping.GroupsCreated != 0 {
		t.Fatalf("rescan must not create groups, got %+v", second.Grouping)
	}
	if second.DriveStats.TotalFiles != 2 || second.DriveStats.Groups != 1 {
		t.Fatalf("catalog changed on rescan: %+v", second.DriveStats)
	}
}

func TestRunResumesFromExtractionCursor(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunkSize(2))
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := t.TempDir()
	var candidates []fingerprint.Candidate
	for _, spec := range []struct {
		name string
		seed byte
	}{
		{"a.png", 1}, {"b.png", 2}, {"c.png", 3}, {"d.png", 3},
	} {
		path := filepath.Join(source, spec.name)
		testsupport.WriteImage(t, path, 24, 24, spec.seed)
	}
	expanded, err := scan.Discover(source, 0, logging.NewNop())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	candidates = expanded

	// Hand-build a checkpoint as if the scan died after committing the
	// first chunk. The first two files are already in the catalog.
	engine := fingerprint.NewEngine(cfg, logging.NewNop())
	records, failures := engine.ExtractChunk(ctx, 1, candidates[:2])
	if len(failures) != 0 {
		t.Fatalf("setup extraction failed: %v", failures)
	}
	driveRow, err := s.GetOrCreateDrive(ctx, "photos", syntheticFingerprint(t, cfg, source), source)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	for _, rec := range records {
		rec.DriveID = driveRow.ID
	}
	if _, err := s.BatchInsertFiles(ctx, records, 1000); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	state := &checkpoint.State{
		ScanID:           checkpoint.NewScanID(source, time.Now().Add(-time.Hour)),
		SourcePath:       source,
		DriveID:          driveRow.ID,
		DriveFingerprint: syntheticFingerprint(t, cfg, source),
		Stage:            checkpoint.StageExtract,
		ConfigSignature:  scan.ConfigSignature(cfg),
		StartedAt:        time.Now().UTC().Add(-time.Hour),
		Extract: &checkpoint.ExtractState{
			Candidates:     candidates,
			ChunkSize:      2,
			NextChunk:      1,
			ProcessedCount: 2,
		},
	}
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	orch := scan.New(cfg, s, logging.NewNop())
	summary, err := orch.Run(ctx, scan.Options{Source: source, Resume: true})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	if !summary.Resumed {
		t.Fatal("expected a resumed scan")
	}
	if summary.ScanID != state.ScanID {
		t.Fatalf("expected to continue scan %s, got %s", state.ScanID, summary.ScanID)
	}
	// Only the remaining chunk runs; the catalog ends up complete.
	if summary.FilesProcessed != 2 {
		t.Fatalf("expected 2 files processed on resume, got %d", summary.FilesProcessed)
	}
	if summary.DriveStats.TotalFiles != 4 {
		t.Fatalf("expected 4 cataloged files, got %+v", summary.DriveStats)
	}
	// c.png and d.png are identical; they group on resume.
	if summary.Grouping.GroupsCreated != 1 {
		t.Fatalf("expected one group, got %+v", summary.Grouping)
	}

	final, err := manager.Load(ctx, state.ScanID)
	if err != nil {
		t.Fatalf("load final state: %v", err)
	}
	if final.Stage != checkpoint.StageDone {
		t.Fatalf("expected done stage, got %q", final.Stage)
	}
}

func TestRunReprocessesLostRecordsOnResume(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunkSize(2))
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := t.TempDir()
	for _, spec := range []struct {
		name string
		seed byte
	}{
		{"a.png", 1}, {"b.png", 2}, {"c.png", 3}, {"d.png", 3},
	} {
		testsupport.WriteImage(t, filepath.Join(source, spec.name), 24, 24, spec.seed)
	}
	candidates, err := scan.Discover(source, 0, logging.NewNop())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	driveRow, err := s.GetOrCreateDrive(ctx, "photos", syntheticFingerprint(t, cfg, source), source)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}

	// The checkpoint claims the first chunk committed, but its rows never
	// reached the store. Resume must notice and process them again.
	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	state := &checkpoint.State{
		ScanID:           checkpoint.NewScanID(source, time.Now().Add(-time.Hour)),
		SourcePath:       source,
		DriveID:          driveRow.ID,
		DriveFingerprint: syntheticFingerprint(t, cfg, source),
		Stage:            checkpoint.StageExtract,
		ConfigSignature:  scan.ConfigSignature(cfg),
		StartedAt:        time.Now().UTC().Add(-time.Hour),
		Extract: &checkpoint.ExtractState{
			Candidates:     candidates,
			ChunkSize:      2,
			NextChunk:      1,
			ProcessedCount: 2,
		},
	}
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	orch := scan.New(cfg, s, logging.NewNop())
	summary, err := orch.Run(ctx, scan.Options{Source: source, Resume: true})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	if !summary.Resumed {
		t.Fatal("expected a resumed scan")
	}
	// The two lost files plus the remaining chunk.
	if summary.FilesProcessed != 4 {
		t.Fatalf("expected 4 files processed, got %d", summary.FilesProcessed)
	}
	if summary.DriveStats.TotalFiles != 4 {
		t.Fatalf("expected a complete catalog, got %+v", summary.DriveStats)
	}
	if summary.Grouping.GroupsCreated != 1 {
		t.Fatalf("expected the identical pair to group, got %+v", summary.Grouping)
	}
}

func TestRunResumeByScanIDValidatesSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	recorded := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(recorded, "a.png"), 16, 16, 1)
	other := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(other, "b.png"), 16, 16, 2)

	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	state := &checkpoint.State{
		ScanID:           checkpoint.NewScanID(recorded, time.Now().Add(-time.Hour)),
		SourcePath:       recorded,
		DriveFingerprint: syntheticFingerprint(t, cfg, recorded),
		Stage:            checkpoint.StageExtract,
		ConfigSignature:  scan.ConfigSignature(cfg),
		Extract:          &checkpoint.ExtractState{ChunkSize: 4},
	}
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	orch := scan.New(cfg, s, logging.NewNop())

	// Resuming against a directory the checkpoint never recorded fails.
	_, err := orch.Run(ctx, scan.Options{Source: other, ResumeScanID: state.ScanID})
	if !errors.Is(err, scan.ErrResumeValidation) {
		t.Fatalf("expected resume validation error, got %v", err)
	}

	// The recorded source resumes the named scan.
	summary, err := orch.Run(ctx, scan.Options{Source: recorded, ResumeScanID: state.ScanID})
	if err != nil {
		t.Fatalf("resume by id failed: %v", err)
	}
	if !summary.Resumed || summary.ScanID != state.ScanID {
		t.Fatalf("expected to continue scan %s, got %+v", state.ScanID, summary)
	}
}

func TestRunRejectsUnknownResumeScanID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)

	orch := scan.New(cfg, s, logging.NewNop())
	_, err := orch.Run(context.Background(), scan.Options{Source: t.TempDir(), ResumeScanID: "scan_20250101T000000_dead"})
	if !errors.Is(err, scan.ErrSetup) {
		t.Fatalf("expected setup error for an unknown scan id, got %v", err)
	}
}

func TestRunForceResumeOverridesConfigSignatureMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(source, "a.png"), 16, 16, 1)

	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	state := &checkpoint.State{
		ScanID:           checkpoint.NewScanID(source, time.Now().Add(-time.Hour)),
		SourcePath:       source,
		DriveFingerprint: syntheticFingerprint(t, cfg, source),
		Stage:            checkpoint.StageExtract,
		ConfigSignature:  `{"chunk_size":999}`,
		Extract:          &checkpoint.ExtractState{ChunkSize: 999},
	}
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	orch := scan.New(cfg, s, logging.NewNop())
	_, err := orch.Run(ctx, scan.Options{Source: source, Resume: true})
	if !errors.Is(err, scan.ErrResumeValidation) {
		t.Fatalf("expected resume validation error, got %v", err)
	}

	// Force overrides the validation and finishes the scan.
	summary, err := orch.Run(ctx, scan.Options{Source: source, ForceResume: true})
	if err != nil {
		t.Fatalf("force resume failed: %v", err)
	}
	if !summary.Resumed {
		t.Fatal("expected forced resume to continue the checkpoint")
	}
}

func TestRunRejectsChangedDriveOnResume(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(source, "a.png"), 16, 16, 1)

	manager := checkpoint.NewManager(cfg, s, logging.NewNop())
	state := &checkpoint.State{
		ScanID:           checkpoint.NewScanID(source, time.Now().Add(-time.Hour)),
		SourcePath:       source,
		DriveFingerprint: "some-other-drive",
		Stage:            checkpoint.StageExtract,
		ConfigSignature:  scan.ConfigSignature(cfg),
		Extract:          &checkpoint.ExtractState{ChunkSize: 4},
	}
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	orch := scan.New(cfg, s, logging.NewNop())
	_, err := orch.Run(ctx, scan.Options{Source: source, Resume: true})
	if !errors.Is(err, scan.ErrResumeValidation) {
		t.Fatalf("expected resume validation error, got %v", err)
	}
}

func TestRunRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)

	orch := scan.New(cfg, s, logging.NewNop())
	_, err := orch.Run(context.Background(), scan.Options{Source: filepath.Join(t.TempDir(), "absent")})
	if !errors.Is(err, scan.ErrSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
}

func TestRunRefusesConcurrentScan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("dirs: %v", err)
	}
	lock := flock.New(filepath.Join(cfg.Paths.CheckpointDir, "scan.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not take the lock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()

	source := t.TempDir()
	orch := scan.New(cfg, s, logging.NewNop())
	_, err = orch.Run(context.Background(), scan.Options{Source: source})
	if !errors.Is(err, scan.ErrLocked) {
		t.Fatalf("expected lock error, got %v", err)
	}
}
