package grouping

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"mediadedup/internal/logging"
	"mediadedup/internal/store"
)

// Result summarizes one grouping pass.
type Result struct {
	GroupsCreated   int
	FilesGrouped    int
	DuplicatesFound int
	// Singletons counts clusters of one. They are reported but never
	// persisted as groups.
	Singletons int
}

// Engine clusters a drive's ungrouped records and persists the groups.
type Engine struct {
	store     *store.Store
	logger    *slog.Logger
	threshold int
}

// NewEngine constructs a grouping engine. threshold is the maximum Hamming
// distance at which two perceptual hashes count as near-duplicates.
func NewEngine(s *store.Store, logger *slog.Logger, threshold int) *Engine {
	return &Engine{
		store:     s,
		logger:    logging.NewComponentLogger(logger, "grouping"),
		threshold: threshold,
	}
}

// Run groups every ungrouped record on the drive. Already-grouped records
// are untouched, so running twice over the same catalog is a no-op.
func (e *Engine) Run(ctx context.Context, driveID int64) (Result, error) {
	var result Result

	files, err := e.store.UngroupedFiles(ctx, driveID)
	if err != nil {
		return result, fmt.Errorf("load ungrouped files: %w", err)
	}
	if len(files) == 0 {
		return result, nil
	}

	clusters := e.buildClusters(files)

	// Persist in ascending order of lowest member id so reruns over the
	// same catalog produce identical group numbering.
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i][0].ID < clusters[j][0].ID
	})

	for _, cluster := range clusters {
		if len(cluster) < 2 {
			result.Singletons++
			continue
		}

		original := selectOriginal(cluster)
		memberIDs := make([]int64, len(cluster))
		for i, rec := range cluster {
			memberIDs[i] = rec.ID
		}

		groupID, err := e.store.PersistGroup(ctx, original.ID, memberIDs)
		if err != nil {
			return result, fmt.Errorf("persist group: %w", err)
		}

		result.GroupsCreated++
		result.FilesGrouped += len(cluster)
		result.DuplicatesFound += len(cluster) - 1
		e.logger.Debug("group persisted",
			logging.Int64("group_id", groupID),
			logging.Int64("original_file_id", original.ID),
			logging.Int("members", len(cluster)))
	}

	e.logger.Info("grouping complete",
		logging.Int64(logging.FieldDriveID, driveID),
		logging.Int("groups", result.GroupsCreated),
		logging.Int("duplicates", result.DuplicatesFound),
		logging.Int("singletons", result.Singletons))
	return result, nil
}

// buildClusters partitions records into exact clusters keyed by SHA-256 and
// perceptual clusters built from a transitive union over hash values within
// the threshold. The two phases never overlap: a record carries a full hash
// or a perceptual hash, not both.
func (e *Engine) buildClusters(files []*store.FileRecord) [][]*store.FileRecord {
	var clusters [][]*store.FileRecord

	bySHA := make(map[string][]*store.FileRecord)
	var perceptual []*store.FileRecord
	for _, rec := range files {
		switch {
		case rec.SHA256 != "":
			bySHA[rec.SHA256] = append(bySHA[rec.SHA256], rec)
		case rec.PHash != "":
			perceptual = append(perceptual, rec)
		default:
			// Videos without a bucket hit and unreadable images have no
			// comparable feature; each stands alone.
			clusters = append(clusters, []*store.FileRecord{rec})
		}
	}
	for _, cluster := range bySHA {
		clusters = append(clusters, cluster)
	}

	clusters = append(clusters, e.perceptualClusters(perceptual)...)

	// Keep members in file-id order inside each cluster.
	for _, cluster := range clusters {
		sort.Slice(cluster, func(i, j int) bool { return cluster[i].ID < cluster[j].ID })
	}
	return clusters
}

// perceptualClusters unions the distinct hash values within the threshold
// and gathers records by their value's cluster root. Comparing distinct
// values instead of records keeps the pairwise pass proportional to the
// number of unique hashes.
func (e *Engine) perceptualClusters(records []*store.FileRecord) [][]*store.FileRecord {
	if len(records) == 0 {
		return nil
	}

	valueIndex := make(map[uint64]int)
	var values []uint64
	recordValue := make([]uint64, len(records))
	recordOK := make([]bool, len(records))
	for i, rec := range records {
		value, err := ParsePHash(rec.PHash)
		if err != nil {
			e.logger.Warn("unparseable phash",
				logging.String(logging.FieldPath, rec.Path),
				logging.Error(err))
			continue
		}
		recordValue[i] = value
		recordOK[i] = true
		if _, seen := valueIndex[value]; !seen {
			valueIndex[value] = len(values)
			values = append(values, value)
		}
	}

	uf := newUnionFind(len(values))
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			if HammingDistance(values[i], values[j]) <= e.threshold {
				uf.union(i, j)
			}
		}
	}

	var clusters [][]*store.FileRecord
	byRoot := make(map[int][]*store.FileRecord)
	for i, rec := range records {
		if !recordOK[i] {
			clusters = append(clusters, []*store.FileRecord{rec})
			continue
		}
		root := uf.find(valueIndex[recordValue[i]])
		byRoot[root] = append(byRoot[root], rec)
	}

	for _, cluster := range byRoot {
		clusters = append(clusters, cluster)
	}
	return clusters
}


// selectOriginal picks the cluster member to keep: highest pixel count,
// then largest file, then lowest file id. The rule is total, so the result
// never depends on iteration order.
func selectOriginal(cluster []*store.FileRecord) *store.FileRecord {
	best := cluster[0]
	for _, rec := range cluster[1:] {
		switch {
		case rec.Pixels() != best.Pixels():
			if rec.Pixels() > best.Pixels() {
				best = rec
			}
		case rec.SizeBytes != best.SizeBytes:
			if rec.SizeBytes > best.SizeBytes {
				best = rec
			}
		case rec.ID < best.ID:
			best = rec
		}
	}
	return best
}
