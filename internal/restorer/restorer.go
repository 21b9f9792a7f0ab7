// Package restorer pulls memories back from the cloud store and re-ingests
// them locally through the external ingestion capability.
package restorer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/chirino/memory-cloud/internal/model"
	"github.com/chirino/memory-cloud/internal/registry/ingest"
	"github.com/chirino/memory-cloud/internal/registry/remote"
)

// Restorer orchestrates cloud-to-local restores. A single record's ingestion
// failure is counted against the stats and never aborts the batch.
type Restorer struct {
	Gateway  remote.Gateway
	Ingestor ingest.Ingestor
}

// RestoreAll restores every cloud memory, optionally including rows that
// were deleted locally.
func (r *Restorer) RestoreAll(ctx context.Context, includeDeleted bool) model.RestoreStats {
	memories := r.Gateway.GetAll(ctx, includeDeleted)
	stats := model.RestoreStats{Total: len(memories)}
	log.Info("Restoring memories from cloud...", "count", len(memories))

	for _, m := range memories {
		if r.store(ctx, m) {
			stats.Restored++
			if stats.Restored%10 == 0 {
				log.Info("Restore progress", "restored", stats.Restored, "total", stats.Total)
			}
		} else {
			stats.Failed++
		}
	}
	log.Info("Restore complete", "restored", stats.Restored, "failed", stats.Failed)
	return stats
}

// RestoreByHashes restores specific memories. Hashes not present in the
// cloud are counted as not found.
func (r *Restorer) RestoreByHashes(ctx context.Context, hashes []string) model.RestoreStats {
	stats := model.RestoreStats{Total: len(hashes)}

	memories := r.Gateway.GetByHashes(ctx, hashes)
	found := make(map[string]bool, len(memories))
	for _, m := range memories {
		found[m.ContentHash] = true
	}
	for _, h := range hashes {
		if !found[h] {
			log.Warn("Memory not found in cloud", "hash", shortHash(h))
			stats.NotFound++
		}
	}

	for _, m := range memories {
		if r.store(ctx, m) {
			stats.Restored++
			log.Info("Restored", "content", preview(m.Content))
		} else {
			stats.Failed++
		}
	}
	return stats
}

// RestoreDeleted restores every locally-deleted memory from the cloud.
func (r *Restorer) RestoreDeleted(ctx context.Context) model.RestoreStats {
	memories := r.Gateway.GetDeleted(ctx)
	stats := model.RestoreStats{Total: len(memories)}
	if len(memories) == 0 {
		log.Info("No deleted memories found in cloud")
		return stats
	}
	log.Info("Found deleted memories to restore", "count", len(memories))

	for _, m := range memories {
		if r.store(ctx, m) {
			stats.Restored++
			log.Info("Restored deleted", "content", preview(m.Content))
		} else {
			stats.Failed++
		}
	}
	return stats
}

// RestoreBySearch text-searches the cloud (deleted rows included) and
// restores the matches.
func (r *Restorer) RestoreBySearch(ctx context.Context, query string, limit int) model.RestoreStats {
	memories := r.Gateway.SearchByText(ctx, query, limit, true)
	stats := model.RestoreStats{Found: len(memories)}
	if len(memories) == 0 {
		log.Info("No cloud memories matching query", "query", query)
		return stats
	}

	for _, m := range memories {
		if r.store(ctx, m) {
			stats.Restored++
		} else {
			stats.Failed++
		}
	}
	return stats
}

func (r *Restorer) store(ctx context.Context, m model.Memory) bool {
	memoryType := m.MemoryType
	if memoryType == "" {
		memoryType = "note"
	}
	if err := r.Ingestor.Store(ctx, m.Content, m.Tags, memoryType, m.Metadata); err != nil {
		log.Error("Failed to store memory locally", "hash", shortHash(m.ContentHash), "err", err)
		return false
	}
	return true
}

func preview(content string) string {
	if len(content) > 60 {
		return content[:60] + "..."
	}
	return content
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
