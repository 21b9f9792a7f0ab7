// Package remotetest provides an in-memory Gateway for tests.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chirino/memory-cloud/internal/model"
	"github.com/chirino/memory-cloud/internal/registry/remote"
)

// FakeGateway is an in-memory remote.Gateway. Writes behave like the real
// backends: upserts are keyed by content hash, MarkDeleted appends a log
// entry before flagging the row, and nothing is ever hard-deleted.
type FakeGateway struct {
	mu sync.Mutex

	Memories map[string]model.Memory
	order    []string
	Edges    map[string]model.GraphEdge
	States   map[string]model.SyncState
	Log      []model.DeletionLogEntry

	// FailHashes makes upserts of the listed content hashes fail.
	FailHashes map[string]bool

	// FailStats makes GetStats return an error.
	FailStats bool

	UpsertCalls int
	ChunkCalls  int
}

var _ remote.Gateway = (*FakeGateway)(nil)

func New() *FakeGateway {
	return &FakeGateway{
		Memories:   map[string]model.Memory{},
		Edges:      map[string]model.GraphEdge{},
		States:     map[string]model.SyncState{},
		FailHashes: map[string]bool{},
	}
}

// Seed inserts rows directly, bypassing failure injection.
func (g *FakeGateway) Seed(memories ...model.Memory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range memories {
		g.put(m)
	}
}

func (g *FakeGateway) put(m model.Memory) {
	if _, ok := g.Memories[m.ContentHash]; !ok {
		g.order = append(g.order, m.ContentHash)
	}
	g.Memories[m.ContentHash] = m
}

func (g *FakeGateway) Upsert(ctx context.Context, m model.Memory) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.UpsertCalls++
	if g.FailHashes[m.ContentHash] {
		return false
	}
	g.put(m)
	return true
}

func (g *FakeGateway) UpsertBatch(ctx context.Context, memories []model.Memory) (int, int) {
	return remote.UpsertInChunks(ctx, memories, remote.BatchChunkSize,
		func(ctx context.Context, chunk []model.Memory) error {
			g.mu.Lock()
			g.ChunkCalls++
			g.mu.Unlock()
			for _, m := range chunk {
				if g.FailHashes[m.ContentHash] {
					return fmt.Errorf("chunk contains bad row %s", m.ContentHash)
				}
			}
			for _, m := range chunk {
				g.Upsert(ctx, m)
			}
			return nil
		},
		func(ctx context.Context, m model.Memory) error {
			if !g.Upsert(ctx, m) {
				return fmt.Errorf("bad row %s", m.ContentHash)
			}
			return nil
		})
}

func (g *FakeGateway) MarkDeleted(ctx context.Context, contentHash, reason string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.Memories[contentHash]
	if !ok {
		return true
	}
	g.Log = append(g.Log, model.DeletionLogEntry{
		ContentHash:      contentHash,
		OriginalContent:  m.Content,
		OriginalTags:     m.Tags,
		OriginalType:     m.MemoryType,
		OriginalMetadata: m.Metadata,
		Reason:           reason,
		CreatedAt:        time.Now().UTC(),
	})
	m.LocalDeleted = true
	g.Memories[contentHash] = m
	return true
}

func (g *FakeGateway) SearchByVector(ctx context.Context, embedding []float32, limit int, includeDeleted bool) []model.Memory {
	return g.scan(limit, includeDeleted, func(m model.Memory) bool { return m.Embedding != nil })
}

func (g *FakeGateway) SearchByText(ctx context.Context, query string, limit int, includeDeleted bool) []model.Memory {
	q := strings.ToLower(query)
	return g.scan(limit, includeDeleted, func(m model.Memory) bool {
		return strings.Contains(strings.ToLower(m.Content), q)
	})
}

func (g *FakeGateway) GetAll(ctx context.Context, includeDeleted bool) []model.Memory {
	return g.scan(0, includeDeleted, func(model.Memory) bool { return true })
}

func (g *FakeGateway) GetByHashes(ctx context.Context, hashes []string) []model.Memory {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Memory
	for _, h := range hashes {
		if m, ok := g.Memories[h]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (g *FakeGateway) GetDeleted(ctx context.Context) []model.Memory {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Memory
	for _, h := range g.order {
		if m := g.Memories[h]; m.LocalDeleted {
			out = append(out, m)
		}
	}
	return out
}

func (g *FakeGateway) UpsertEdge(ctx context.Context, e model.GraphEdge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Edges[e.SourceHash+"->"+e.TargetHash] = e
	return true
}

func (g *FakeGateway) GetSyncState(ctx context.Context, deviceName string) model.SyncState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.States[deviceName]; ok {
		return s
	}
	return model.SyncState{DeviceName: deviceName, Status: model.StatusNeverSynced}
}

func (g *FakeGateway) SetSyncState(ctx context.Context, state model.SyncState) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.States[state.DeviceName] = state
	return true
}

func (g *FakeGateway) GetStats(ctx context.Context) (model.RemoteStats, error) {
	if g.FailStats {
		return model.RemoteStats{}, errors.New("stats unavailable")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	stats := model.RemoteStats{
		TotalMemories:      int64(len(g.Memories)),
		GraphEdges:         int64(len(g.Edges)),
		DeletionLogEntries: int64(len(g.Log)),
	}
	for _, m := range g.Memories {
		if m.LocalDeleted {
			stats.LocallyDeleted++
		} else {
			stats.ActiveMemories++
		}
		if m.IsSummary {
			stats.Summaries++
		}
	}
	return stats, nil
}

func (g *FakeGateway) Close() error { return nil }

func (g *FakeGateway) scan(limit int, includeDeleted bool, keep func(model.Memory) bool) []model.Memory {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Memory
	for _, h := range g.order {
		m := g.Memories[h]
		if !includeDeleted && m.LocalDeleted {
			continue
		}
		if !keep(m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
