// Package remote defines the capability contract for the cloud store.
//
// Gateway implementations never let a transient backend failure propagate to
// callers: errors are caught at this boundary, logged, and converted into
// boolean or empty-result outcomes. Callers observe failure via return
// values and counts, not via a crashed process.
package remote

import (
	"context"
	"fmt"

	"github.com/chirino/memory-cloud/internal/model"
)

// BatchChunkSize is the number of rows per batch upsert request. Backends
// reject larger payloads.
const BatchChunkSize = 50

// PageSize is the page length used by full-scan reads.
const PageSize = 1000

// Gateway is the typed surface of the cloud store. The cloud never performs
// hard deletes: MarkDeleted flags the row and appends an audit entry, and
// every other write is an upsert keyed by content identity.
type Gateway interface {
	// Upsert writes one memory, keyed by content hash. Idempotent.
	Upsert(ctx context.Context, m model.Memory) bool

	// UpsertBatch writes memories in chunks of BatchChunkSize, falling back
	// to per-row upserts for a chunk that fails wholesale. Returns
	// (successCount, failedCount); partial failure is surfaced, never hidden.
	UpsertBatch(ctx context.Context, memories []model.Memory) (success, failed int)

	// MarkDeleted flags a row locally-deleted after appending a
	// DeletionLogEntry that preserves its pre-deletion payload. A flag
	// without a log entry is acceptable only when the row never existed.
	MarkDeleted(ctx context.Context, contentHash, reason string) bool

	// SearchByVector ranks rows by embedding similarity, falling back to
	// SearchByText on backend error.
	SearchByVector(ctx context.Context, embedding []float32, limit int, includeDeleted bool) []model.Memory

	// SearchByText performs a substring match, newest first.
	SearchByText(ctx context.Context, query string, limit int, includeDeleted bool) []model.Memory

	// GetAll reads every row via a paged full scan in creation order.
	GetAll(ctx context.Context, includeDeleted bool) []model.Memory

	// GetByHashes fetches the given hashes; missing hashes are simply absent
	// from the result.
	GetByHashes(ctx context.Context, hashes []string) []model.Memory

	// GetDeleted returns all rows flagged locally-deleted.
	GetDeleted(ctx context.Context) []model.Memory

	// UpsertEdge writes one graph edge, keyed by the (source, target) pair.
	UpsertEdge(ctx context.Context, e model.GraphEdge) bool

	// GetSyncState reads the per-device sync row, returning a zero-watermark
	// never_synced state when the device has no row yet.
	GetSyncState(ctx context.Context, deviceName string) model.SyncState

	// SetSyncState upserts the per-device sync row.
	SetSyncState(ctx context.Context, state model.SyncState) bool

	// GetStats returns aggregate counts for the status surface.
	GetStats(ctx context.Context) (model.RemoteStats, error)

	// Close releases the backend connection.
	Close() error
}

// Loader creates a Gateway from config carried on the context.
type Loader func(ctx context.Context) (Gateway, error)

// Plugin represents a cloud gateway backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a gateway plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered gateway plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named gateway plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown remote store %q; valid: %v", name, Names())
}
