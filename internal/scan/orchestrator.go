package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mediadedup/internal/checkpoint"
	"mediadedup/internal/config"
	"mediadedup/internal/drive"
	"mediadedup/internal/fingerprint"
	"mediadedup/internal/grouping"
	"mediadedup/internal/logging"
	"mediadedup/internal/store"
)

// Options controls one scan invocation.
type Options struct {
	Source string
	// ResumeScanID resumes one specific scan. The named checkpoint must
	// exist and must have recorded Source as its source path.
	ResumeScanID string
	// Resume continues the newest unfinished scan of Source when one
	// exists; otherwise a fresh scan starts.
	Resume bool
	// ForceResume skips source, drive, and configuration validation on
	// resume.
	ForceResume bool
	// Progress, when set, receives the extraction cursor after each
	// committed chunk.
	Progress func(processed, total int)
}

// Orchestrator runs the scan pipeline.
type Orchestrator struct {
	cfg         *config.Config
	store       *store.Store
	logger      *slog.Logger
	engine      *fingerprint.Engine
	checkpoints *checkpoint.Manager
}

// New assembles an orchestrator over an open store.
func New(cfg *config.Config, s *store.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		store:       s,
		logger:      logging.NewComponentLogger(logger, "scan"),
		engine:      fingerprint.NewEngine(cfg, logger),
		checkpoints: checkpoint.NewManager(cfg, s, logger),
	}
}

// ConfigSignature serializes the settings that change scan results.
// Worker count and batch size only affect throughput and are not part of
// the signature.
func ConfigSignature(cfg *config.Config) string {
	payload, _ := json.Marshal(map[string]any{
		"chunk_size":       cfg.Scan.ChunkSize,
		"phash_threshold":  cfg.Scan.PHashThreshold,
		"max_phash_pixels": cfg.Scan.MaxPHashPixels,
		"large_file_bytes": cfg.Scan.LargeFileBytes,
		"min_file_bytes":   cfg.Scan.MinFileBytes,
		"hash_large":       cfg.Scan.HashLarge,
	})
	return string(payload)
}

// Run executes one scan to completion or to interruption. The returned
// summary is valid whenever the error is nil.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	started := time.Now()

	source, err := config.ExpandPath(opts.Source)
	if err != nil {
		return nil, Wrap(ErrSetup, "setup", "expand source", "", err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, Wrap(ErrSetup, "setup", "stat source", source, err)
	}
	if !info.IsDir() {
		return nil, Wrap(ErrSetup, "setup", "stat source", source+" is not a directory", nil)
	}

	if err := o.cfg.EnsureDirectories(); err != nil {
		return nil, Wrap(ErrSetup, "setup", "create directories", "", err)
	}

	lock := flock.New(filepath.Join(o.cfg.Paths.CheckpointDir, "scan.lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, Wrap(ErrSetup, "setup", "acquire lock", "", err)
	}
	if !acquired {
		return nil, Wrap(ErrLocked, "setup", "acquire lock", lock.Path(), nil)
	}
	defer func() { _ = lock.Unlock() }()

	if o.cfg.Checkpoints.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -o.cfg.Checkpoints.RetentionDays)
		if _, err := o.checkpoints.PurgeOlderThan(ctx, cutoff); err != nil {
			o.logger.Warn("checkpoint retention purge failed", logging.Error(err))
		}
	}

	identity, err := drive.Resolve(ctx, o.cfg.Drive, source)
	if err != nil {
		return nil, Wrap(ErrSetup, "setup", "resolve drive", "", err)
	}
	driveRecord, err := o.store.GetOrCreateDrive(ctx, identity.Label, identity.Fingerprint, identity.MountPoint)
	if err != nil {
		return nil, Wrap(ErrSetup, "setup", "register drive", "", err)
	}

	signature := ConfigSignature(o.cfg)
	state, resumed, err := o.prepareState(ctx, source, identity, signature, opts)
	if err != nil {
		return nil, err
	}
	state.DriveID = driveRecord.ID

	runToken := uuid.NewString()
	logger := o.logger.With(
		logging.String(logging.FieldScanID, state.ScanID),
		logging.String(logging.FieldRunToken, runToken),
		logging.Int64(logging.FieldDriveID, driveRecord.ID))

	logger.Info("scan starting",
		logging.String("source", source),
		logging.String("drive_label", identity.Label),
		logging.Bool("resumed", resumed))

	summary := &Summary{
		ScanID:     state.ScanID,
		RunToken:   runToken,
		Source:     source,
		DriveID:    driveRecord.ID,
		DriveLabel: identity.Label,
		Resumed:    resumed,
	}

	if state.Stage == checkpoint.StageDiscover {
		candidates, err := Discover(source, o.cfg.Scan.MinFileBytes, logger)
		if err != nil {
			return nil, Wrap(ErrSetup, string(checkpoint.StageDiscover), "walk source", "", err)
		}
		logger.Info("discovery complete", logging.Int("candidates", len(candidates)))

		state.Extract = &checkpoint.ExtractState{
			Candidates: candidates,
			ChunkSize:  o.cfg.Scan.ChunkSize,
		}
		state.Stage = checkpoint.StageExtract
		if err := o.checkpoints.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save post-discovery checkpoint: %w", err)
		}
	}

	if state.Stage == checkpoint.StageExtract {
		if err := o.runExtraction(ctx, logger, state, summary, opts.Progress); err != nil {
			return nil, err
		}
		state.Stage = checkpoint.StageGroup
		if err := o.checkpoints.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save pre-grouping checkpoint: %w", err)
		}
	}

	if state.Stage == checkpoint.StageGroup {
		grouper := grouping.NewEngine(o.store, logger, o.cfg.Scan.PHashThreshold)
		result, err := grouper.Run(ctx, driveRecord.ID)
		if err != nil {
			return nil, fmt.Errorf("grouping: %w", err)
		}
		summary.Grouping = result

		state.Stage = checkpoint.StageDone
		if err := o.checkpoints.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save final checkpoint: %w", err)
		}
	}

	stats, err := o.store.DriveStatsFor(ctx, driveRecord.ID)
	if err != nil {
		return nil, fmt.Errorf("drive stats: %w", err)
	}
	summary.DriveStats = stats
	summary.Duration = time.Since(started)

	logger.Info("scan complete",
		logging.Int64("files_processed", summary.FilesProcessed),
		logging.Int64("new_records", summary.NewRecords),
		logging.Int("groups_created", summary.Grouping.GroupsCreated),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

// prepareState either loads and validates a resumable checkpoint or
// creates a fresh one at the discovery stage.
func (o *Orchestrator) prepareState(ctx context.Context, source string, identity drive.Identity, signature string, opts Options) (*checkpoint.State, bool, error) {
	if opts.ResumeScanID != "" {
		state, err := o.checkpoints.Load(ctx, opts.ResumeScanID)
		if err != nil {
			return nil, false, Wrap(ErrSetup, "setup", "load checkpoint", "", err)
		}
		if state == nil {
			return nil, false, Wrap(ErrSetup, "setup", "load checkpoint",
				fmt.Sprintf("no checkpoint for scan %s", opts.ResumeScanID), nil)
		}
		if state.Stage == checkpoint.StageDone {
			return nil, false, Wrap(ErrResumeValidation, "setup", "validate checkpoint",
				fmt.Sprintf("scan %s already completed", state.ScanID), nil)
		}
		if err := o.validateResume(state, source, identity, signature, opts); err != nil {
			return nil, false, err
		}
		return state, true, nil
	}

	if opts.Resume || opts.ForceResume {
		state, err := o.checkpoints.LatestResumable(ctx, source)
		if err != nil {
			return nil, false, Wrap(ErrSetup, "setup", "load checkpoint", "", err)
		}
		if state != nil {
			if err := o.validateResume(state, source, identity, signature, opts); err != nil {
				return nil, false, err
			}
			return state, true, nil
		}
	}

	state := &checkpoint.State{
		ScanID:           checkpoint.NewScanID(source, time.Now()),
		SourcePath:       source,
		DriveFingerprint: identity.Fingerprint,
		Stage:            checkpoint.StageDiscover,
		ConfigSignature:  signature,
		StartedAt:        time.Now().UTC(),
	}
	if err := o.checkpoints.Save(ctx, state); err != nil {
		return nil, false, fmt.Errorf("save initial checkpoint: %w", err)
	}
	return state, false, nil
}

// validateResume compares the checkpoint's recorded environment against the
// current invocation. ForceResume downgrades every mismatch to a warning.
func (o *Orchestrator) validateResume(state *checkpoint.State, source string, identity drive.Identity, signature string, opts Options) error {
	var mismatch string
	switch {
	case state.SourcePath != source:
		mismatch = fmt.Sprintf("scan %s recorded source %s, not %s", state.ScanID, state.SourcePath, source)
	case state.DriveFingerprint != identity.Fingerprint:
		mismatch = fmt.Sprintf("drive fingerprint changed since scan %s", state.ScanID)
	case state.ConfigSignature != signature:
		mismatch = fmt.Sprintf("scan settings changed since scan %s", state.ScanID)
	default:
		return nil
	}
	if opts.ForceResume {
		o.logger.Warn("resume validation overridden",
			logging.String(logging.FieldScanID, state.ScanID),
			logging.String("mismatch", mismatch))
		return nil
	}
	return Wrap(ErrResumeValidation, "setup", "validate checkpoint", mismatch, nil)
}

// runExtraction processes candidate chunks from the checkpoint cursor
// onward. The bucket set advances only after a chunk's records are
// committed, and the checkpoint is saved on the configured cadence plus
// once after the final chunk.
func (o *Orchestrator) runExtraction(ctx context.Context, logger *slog.Logger, state *checkpoint.State, summary *Summary, progress func(processed, total int)) error {
	extract := state.Extract
	if extract == nil {
		return Wrap(ErrSetup, string(checkpoint.StageExtract), "load state", "checkpoint has no extraction payload", nil)
	}
	if extract.ChunkSize < 1 {
		extract.ChunkSize = 1
	}
	summary.FilesDiscovered = len(extract.Candidates)

	if err := o.engine.Rehydrate(ctx, o.store); err != nil {
		return err
	}

	if extract.NextChunk > 0 {
		if err := o.reprocessMissing(ctx, logger, state, summary); err != nil {
			return err
		}
	}

	interval := o.cfg.Scan.CheckpointInterval
	if interval < 1 {
		interval = 1
	}

	totalChunks := (len(extract.Candidates) + extract.ChunkSize - 1) / extract.ChunkSize
	for extract.NextChunk < totalChunks {
		if err := ctx.Err(); err != nil {
			// The last saved checkpoint already covers every committed
			// chunk, so an interrupt here loses no work.
			return err
		}

		start := extract.NextIndex()
		end := min(start+extract.ChunkSize, len(extract.Candidates))
		chunk := extract.Candidates[start:end]

		records, failures := o.engine.ExtractChunk(ctx, state.DriveID, chunk)
		inserted, err := o.store.BatchInsertFiles(ctx, records, o.cfg.Scan.BatchSize)
		if err != nil {
			return fmt.Errorf("commit chunk %d: %w", extract.NextChunk, err)
		}
		o.engine.AddPersisted(records)

		extract.NextChunk++
		extract.ProcessedCount += int64(len(records))
		extract.SkippedCount += int64(len(failures))
		summary.FilesProcessed += int64(len(records))
		summary.FilesSkipped += int64(len(failures))
		summary.NewRecords += inserted

		if extract.NextChunk%interval == 0 || extract.NextChunk == totalChunks {
			if err := o.checkpoints.Save(ctx, state); err != nil {
				return fmt.Errorf("save extraction checkpoint: %w", err)
			}
		}

		if progress != nil {
			progress(end, len(extract.Candidates))
		}
		logger.Debug("chunk committed",
			logging.Int("chunk", extract.NextChunk),
			logging.Int("chunks_total", totalChunks),
			logging.Int64("inserted", inserted),
			logging.Int("skipped", len(failures)))
	}
	return nil
}

// reprocessMissing audits the committed candidate range against the catalog
// on resume. A checkpoint file can outlive rows the store never flushed;
// any candidate without a persisted record is treated as never extracted
// and processed again before the cursor advances.
func (o *Orchestrator) reprocessMissing(ctx context.Context, logger *slog.Logger, state *checkpoint.State, summary *Summary) error {
	extract := state.Extract
	committed := extract.Candidates[:min(extract.NextIndex(), len(extract.Candidates))]

	var missing []fingerprint.Candidate
	for _, candidate := range committed {
		rec, err := o.store.FileByPath(ctx, state.DriveID, candidate.Path)
		if err != nil {
			return fmt.Errorf("verify committed range: %w", err)
		}
		if rec == nil {
			missing = append(missing, candidate)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	logger.Warn("committed records missing from catalog, reprocessing",
		logging.Int("missing", len(missing)),
		logging.Int("committed", len(committed)))

	records, failures := o.engine.ExtractChunk(ctx, state.DriveID, missing)
	inserted, err := o.store.BatchInsertFiles(ctx, records, o.cfg.Scan.BatchSize)
	if err != nil {
		return fmt.Errorf("recommit missing records: %w", err)
	}
	o.engine.AddPersisted(records)

	extract.ProcessedCount += int64(len(records))
	extract.SkippedCount += int64(len(failures))
	summary.FilesProcessed += int64(len(records))
	summary.FilesSkipped += int64(len(failures))
	summary.NewRecords += inserted

	if err := o.checkpoints.Save(ctx, state); err != nil {
		return fmt.Errorf("save extraction checkpoint: %w", err)
	}
	return nil
}
