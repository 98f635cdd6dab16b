package fingerprint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mediadedup/internal/config"
	"mediadedup/internal/logging"
	"mediadedup/internal/store"
)

// Engine extracts features for chunks of candidates over a bounded worker
// pool. Its bucket set mirrors the persisted catalog: a candidate gets a
// full SHA-256 only when its (size, fast fingerprint) pair already exists
// in the store. The set is rehydrated from the store and advanced only at
// chunk commit, so results are independent of in-chunk processing order.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.RWMutex
	buckets map[store.Bucket]struct{}
}

// NewEngine constructs an extraction engine with an empty bucket set.
func NewEngine(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "fingerprint"),
		buckets: make(map[store.Bucket]struct{}),
	}
}

// Rehydrate replaces the bucket set with the persisted catalog's contents.
// Called once at scan start and again when resuming from a checkpoint.
func (e *Engine) Rehydrate(ctx context.Context, s *store.Store) error {
	buckets, err := s.Buckets(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate buckets: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.buckets = make(map[store.Bucket]struct{}, len(buckets))
	for _, b := range buckets {
		e.buckets[b] = struct{}{}
	}
	e.logger.Debug("bucket set rehydrated", logging.Int("buckets", len(buckets)))
	return nil
}

// AddPersisted folds freshly committed records into the bucket set. Must be
// called after the chunk's batch insert succeeds, never mid-chunk.
func (e *Engine) AddPersisted(records []*store.FileRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range records {
		if rec.FastFP == "" {
			continue
		}
		e.buckets[store.Bucket{SizeBytes: rec.SizeBytes, FastFP: rec.FastFP}] = struct{}{}
	}
}

func (e *Engine) bucketHit(sizeBytes int64, fastFP string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.buckets[store.Bucket{SizeBytes: sizeBytes, FastFP: fastFP}]
	return ok
}

// ExtractChunk processes one chunk of candidates concurrently and returns
// records in candidate order plus any per-file failures. A failed candidate
// produces no record; the scan carries on.
func (e *Engine) ExtractChunk(ctx context.Context, driveID int64, candidates []Candidate) ([]*store.FileRecord, []CandidateError) {
	if len(candidates) == 0 {
		return nil, nil
	}

	workers := e.cfg.Scan.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	type slot struct {
		record *store.FileRecord
		err    error
	}
	slots := make([]slot, len(candidates))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rec, err := e.extractOne(driveID, candidates[idx])
				slots[idx] = slot{record: rec, err: err}
			}
		}()
	}

feed:
	for idx := range candidates {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var (
		records  []*store.FileRecord
		failures []CandidateError
	)
	for idx, s := range slots {
		if s.err != nil {
			failures = append(failures, CandidateError{Path: candidates[idx].Path, Err: s.err})
			e.logger.Warn("candidate skipped",
				logging.String(logging.FieldPath, candidates[idx].Path),
				logging.Error(s.err))
			continue
		}
		if s.record != nil {
			records = append(records, s.record)
		}
	}
	return records, failures
}

func (e *Engine) extractOne(driveID int64, candidate Candidate) (*store.FileRecord, error) {
	mediaType, ok := MediaTypeFor(candidate.Path)
	if !ok {
		return nil, fmt.Errorf("not a media file: %s", candidate.Path)
	}

	rec := &store.FileRecord{
		DriveID:   driveID,
		Path:      candidate.Path,
		SizeBytes: candidate.SizeBytes,
		Type:      mediaType,
		IsLarge:   candidate.SizeBytes >= e.cfg.Scan.LargeFileBytes,
	}

	// Large files are cataloged with size and dimensions only unless the
	// operator opted in: no fast fingerprint, no full hash, no perceptual
	// hash, so they never enter the bucket set or a duplicate group.
	fingerprintable := !rec.IsLarge || e.cfg.Scan.HashLarge
	if fingerprintable {
		fastFP, err := FastFingerprint(candidate.Path, candidate.SizeBytes)
		if err != nil {
			return nil, err
		}
		rec.FastFP = fastFP

		// Full hashing is additionally gated on the bucket set already
		// containing this (size, fast fingerprint) pair.
		if e.bucketHit(candidate.SizeBytes, fastFP) {
			sha, err := FullHash(candidate.Path)
			if err != nil {
				return nil, err
			}
			rec.SHA256 = sha
		}
	}

	if mediaType == store.MediaImage {
		features, err := AnalyzeImage(candidate.Path, e.cfg.Scan.MaxPHashPixels, fingerprintable && rec.SHA256 == "")
		if err != nil {
			// An unreadable image still enters the catalog with its cheap
			// features so a rescan does not rediscover it.
			e.logger.Warn("image analysis failed",
				logging.String(logging.FieldPath, candidate.Path),
				logging.Error(err))
		} else {
			rec.Width = features.Width
			rec.Height = features.Height
			rec.PHash = features.PHash
		}
	}

	return rec, nil
}
