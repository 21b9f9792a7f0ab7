// Package engine runs the reconciliation cycle between the local memory
// store and the cloud backup.
package engine

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pgvector/pgvector-go"

	"github.com/chirino/memory-cloud/internal/metrics"
	"github.com/chirino/memory-cloud/internal/model"
	"github.com/chirino/memory-cloud/internal/registry/remote"
)

// deleteReason is recorded in the deletion log for tombstones propagated by
// the sync engine.
const deleteReason = "local_soft_delete"

// errorCooldown is the extra sleep after a failed cycle in daemon mode,
// keeping a persistent failure from becoming a hot loop.
const errorCooldown = 30 * time.Second

// LocalReader is the engine's view of the local store. One reader is opened
// per cycle and closed before the cycle returns.
type LocalReader interface {
	MemoriesChangedSince(ctx context.Context, since float64) ([]model.LocalMemory, error)
	EmbeddingsByHash(ctx context.Context, hashes []string) map[string][]float32
	DeletedHashes(ctx context.Context) []string
	GraphEdges(ctx context.Context) []model.GraphEdge
	Close() error
}

// Engine orchestrates sync cycles for one device.
type Engine struct {
	Gateway remote.Gateway

	// OpenLocal opens the local store read-only. Called once per cycle.
	OpenLocal func() (LocalReader, error)

	// Device names this device in sync_state.
	Device string
}

// RunCycle performs one reconciliation cycle. All failures are captured into
// the returned stats; RunCycle never panics or returns an error, so a daemon
// loop always survives it.
func (e *Engine) RunCycle(ctx context.Context) model.CycleStats {
	start := time.Now()
	var stats model.CycleStats

	local, err := e.OpenLocal()
	if err != nil {
		log.Error("Cannot open local store", "err", err)
		stats.Errors = 1
		stats.ErrorMessage = err.Error()
		stats.DurationMS = time.Since(start).Milliseconds()
		return stats
	}
	defer local.Close()

	state := e.Gateway.GetSyncState(ctx, e.Device)
	if err := e.run(ctx, local, state, &stats); err != nil {
		log.Error("Sync cycle failed", "err", err)
		stats.Errors++
		stats.ErrorMessage = err.Error()
		// Preserve the watermark and counter; only the status reflects the
		// failure. The watermark may never move backwards.
		state.LastSyncAt = time.Now().UTC()
		state.Status = model.StatusError + ": " + truncateMsg(err.Error(), 100)
		e.Gateway.SetSyncState(ctx, state)
	}

	stats.DurationMS = time.Since(start).Milliseconds()
	return stats
}

func (e *Engine) run(ctx context.Context, local LocalReader, state model.SyncState, stats *model.CycleStats) error {
	watermark := state.LastSyncUpdatedAt

	// Best effort: cycle proceeds even if the status write is lost.
	state.Status = model.StatusSyncing
	state.LastSyncAt = time.Now().UTC()
	e.Gateway.SetSyncState(ctx, state)

	changed, err := local.MemoriesChangedSince(ctx, watermark)
	if err != nil {
		return err
	}
	log.Info("Found memories to sync", "count", len(changed), "since", watermark)

	if len(changed) == 0 {
		// Re-attempt propagation of every currently-tombstoned local record.
		// Independent of the watermark: it covers records deleted before any
		// prior cycle captured them.
		for _, hash := range local.DeletedHashes(ctx) {
			if e.Gateway.MarkDeleted(ctx, hash, deleteReason) {
				stats.DeletedMarked++
			} else {
				stats.Errors++
			}
		}
		state.Status = model.StatusIdle
		state.LastSyncAt = time.Now().UTC()
		e.Gateway.SetSyncState(ctx, state)
		return nil
	}

	hashes := make([]string, len(changed))
	for i, m := range changed {
		hashes[i] = m.ContentHash
	}
	embeddings := local.EmbeddingsByHash(ctx, hashes)
	log.Info("Retrieved embeddings", "count", len(embeddings))

	// Partition the delta: tombstoned records go to deletion marking, the
	// rest into the upsert batch. The watermark advances over batch rows as
	// prepared, not as individually confirmed.
	var batch []model.Memory
	maxChanged := watermark
	for _, m := range changed {
		if m.Deleted() {
			if e.Gateway.MarkDeleted(ctx, m.ContentHash, deleteReason) {
				stats.DeletedMarked++
			} else {
				stats.Errors++
			}
			continue
		}

		row := model.Memory{
			ContentHash: m.ContentHash,
			Content:     m.Content,
			Tags:        m.Tags,
			MemoryType:  m.MemoryType,
			Metadata:    m.Metadata,
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		}
		if emb, ok := embeddings[m.ContentHash]; ok {
			vec := pgvector.NewVector(emb)
			row.Embedding = &vec
		}
		batch = append(batch, row)

		if changedAt := m.ChangedAt(); changedAt > maxChanged {
			maxChanged = changedAt
		}
	}

	if len(batch) > 0 {
		success, failed := e.Gateway.UpsertBatch(ctx, batch)
		stats.NewMemories = success
		stats.Errors += failed
		log.Info("Synced memories", "success", success, "failed", failed)
	}

	// Full-table propagation of the local graph: the table is small, and a
	// full upsert is simpler than true incremental diffing. Edge failures
	// never fail the cycle.
	for _, edge := range local.GraphEdges(ctx) {
		if e.Gateway.UpsertEdge(ctx, edge) {
			stats.GraphEdges++
		}
	}

	state.LastSyncUpdatedAt = maxChanged
	state.MemoriesSynced += int64(stats.NewMemories)
	state.Status = model.StatusIdle
	state.LastSyncAt = time.Now().UTC()
	e.Gateway.SetSyncState(ctx, state)
	return nil
}

// RunForever performs an unconditional initial cycle, then alternates sleep
// and cycle until the context is cancelled. Cancellation is observed only at
// the sleep boundary; an in-flight cycle completes or fails on its own.
func (e *Engine) RunForever(ctx context.Context, interval time.Duration) {
	metrics.Init()
	log.Info("Starting sync daemon", "interval", interval, "device", e.Device)

	log.Info("Running initial sync...")
	stats := e.RunCycle(ctx)
	record(stats)
	log.Info("Initial sync complete", "new", stats.NewMemories,
		"deleted_marked", stats.DeletedMarked, "errors", stats.Errors,
		"duration_ms", stats.DurationMS)

	for {
		sleep := interval
		if stats.ErrorMessage != "" {
			sleep += errorCooldown
		}
		select {
		case <-ctx.Done():
			log.Info("Sync daemon stopped")
			return
		case <-time.After(sleep):
		}

		stats = e.RunCycle(ctx)
		record(stats)
		if stats.NewMemories > 0 || stats.DeletedMarked > 0 {
			log.Info("Sync", "new", stats.NewMemories,
				"deleted_marked", stats.DeletedMarked,
				"duration_ms", stats.DurationMS)
		}
		if stats.ErrorMessage != "" {
			log.Error("Sync cycle failed, backing off", "err", stats.ErrorMessage)
		}
	}
}

func record(stats model.CycleStats) {
	metrics.CyclesTotal.Inc()
	metrics.MemoriesSyncedTotal.Add(float64(stats.NewMemories))
	metrics.DeletionsMarkedTotal.Add(float64(stats.DeletedMarked))
	metrics.LastCycleDuration.Set(float64(stats.DurationMS) / 1000)
	if stats.ErrorMessage != "" {
		metrics.CycleErrorsTotal.Inc()
	}
}

func truncateMsg(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	return msg[:n]
}
