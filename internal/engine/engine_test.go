package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chirino/memory-cloud/internal/model"
	"github.com/chirino/memory-cloud/internal/registry/remote/remotetest"
)

type fakeLocal struct {
	changed    []model.LocalMemory
	changedErr error
	embeddings map[string][]float32
	deleted    []string
	edges      []model.GraphEdge
	closed     bool
}

func (f *fakeLocal) MemoriesChangedSince(ctx context.Context, since float64) ([]model.LocalMemory, error) {
	if f.changedErr != nil {
		return nil, f.changedErr
	}
	var out []model.LocalMemory
	for _, m := range f.changed {
		if m.ChangedAt() > since {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeLocal) EmbeddingsByHash(ctx context.Context, hashes []string) map[string][]float32 {
	out := map[string][]float32{}
	for _, h := range hashes {
		if emb, ok := f.embeddings[h]; ok {
			out[h] = emb
		}
	}
	return out
}

func (f *fakeLocal) DeletedHashes(ctx context.Context) []string { return f.deleted }

func (f *fakeLocal) GraphEdges(ctx context.Context) []model.GraphEdge { return f.edges }

func (f *fakeLocal) Close() error {
	f.closed = true
	return nil
}

func newEngine(gateway *remotetest.FakeGateway, local *fakeLocal) *Engine {
	return &Engine{
		Gateway:   gateway,
		Device:    "test-device",
		OpenLocal: func() (LocalReader, error) { return local, nil },
	}
}

func ts(v float64) *float64 { return &v }

func TestRunCycle_PropagatesChangedRecords(t *testing.T) {
	gateway := remotetest.New()
	local := &fakeLocal{
		changed: []model.LocalMemory{
			{ContentHash: "h1", Content: "first", CreatedAt: ts(10)},
			{ContentHash: "h2", Content: "second", CreatedAt: ts(10), UpdatedAt: ts(20)},
		},
	}
	eng := newEngine(gateway, local)

	stats := eng.RunCycle(context.Background())

	require.Equal(t, 2, stats.NewMemories)
	require.Zero(t, stats.Errors)
	require.Empty(t, stats.ErrorMessage)
	require.True(t, local.closed)

	require.Contains(t, gateway.Memories, "h1")
	require.Contains(t, gateway.Memories, "h2")

	state := gateway.States["test-device"]
	require.Equal(t, 20.0, state.LastSyncUpdatedAt)
	require.Equal(t, int64(2), state.MemoriesSynced)
	require.Equal(t, model.StatusIdle, state.Status)
}

func TestRunCycle_AttachesEmbeddings(t *testing.T) {
	gateway := remotetest.New()
	local := &fakeLocal{
		changed:    []model.LocalMemory{{ContentHash: "h1", Content: "embedded", CreatedAt: ts(10)}},
		embeddings: map[string][]float32{"h1": {0.1, 0.2, 0.3}},
	}
	eng := newEngine(gateway, local)

	eng.RunCycle(context.Background())

	row := gateway.Memories["h1"]
	require.NotNil(t, row.Embedding)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, row.Embedding.Slice())
}

func TestRunCycle_TombstonePropagation(t *testing.T) {
	gateway := remotetest.New()
	gateway.Seed(model.Memory{ContentHash: "h1", Content: "doomed", Tags: "a,b"})
	local := &fakeLocal{
		changed: []model.LocalMemory{
			{ContentHash: "h1", Content: "doomed", CreatedAt: ts(5), DeletedAt: ts(6)},
		},
	}
	eng := newEngine(gateway, local)

	stats := eng.RunCycle(context.Background())

	require.Equal(t, 1, stats.DeletedMarked)
	require.Zero(t, stats.NewMemories)

	require.True(t, gateway.Memories["h1"].LocalDeleted)
	require.Len(t, gateway.Log, 1)
	require.Equal(t, "doomed", gateway.Log[0].OriginalContent)
	require.Equal(t, "local_soft_delete", gateway.Log[0].Reason)
}

func TestRunCycle_EmptyDeltaStillPropagatesTombstones(t *testing.T) {
	gateway := remotetest.New()
	gateway.Seed(model.Memory{ContentHash: "old", Content: "deleted long ago"})
	gateway.SetSyncState(context.Background(), model.SyncState{
		DeviceName:        "test-device",
		LastSyncUpdatedAt: 100,
		MemoriesSynced:    7,
		Status:            model.StatusIdle,
	})
	local := &fakeLocal{deleted: []string{"old"}}
	eng := newEngine(gateway, local)

	stats := eng.RunCycle(context.Background())

	require.Equal(t, 1, stats.DeletedMarked)
	require.True(t, gateway.Memories["old"].LocalDeleted)

	state := gateway.States["test-device"]
	require.Equal(t, 100.0, state.LastSyncUpdatedAt)
	require.Equal(t, int64(7), state.MemoriesSynced)
	require.Equal(t, model.StatusIdle, state.Status)
}

func TestRunCycle_WatermarkNeverMovesBackwards(t *testing.T) {
	gateway := remotetest.New()
	local := &fakeLocal{
		changed: []model.LocalMemory{
			{ContentHash: "h1", Content: "first", CreatedAt: ts(10)},
			{ContentHash: "h2", Content: "second", CreatedAt: ts(20)},
		},
	}
	eng := newEngine(gateway, local)

	eng.RunCycle(context.Background())
	require.Equal(t, 20.0, gateway.States["test-device"].LastSyncUpdatedAt)

	// A second cycle sees no records newer than the watermark.
	stats := eng.RunCycle(context.Background())
	require.Zero(t, stats.NewMemories)
	require.Equal(t, 20.0, gateway.States["test-device"].LastSyncUpdatedAt)
}

func TestRunCycle_PartialBatchFailureCounted(t *testing.T) {
	gateway := remotetest.New()
	gateway.FailHashes["h2"] = true
	local := &fakeLocal{
		changed: []model.LocalMemory{
			{ContentHash: "h1", Content: "good", CreatedAt: ts(10)},
			{ContentHash: "h2", Content: "bad", CreatedAt: ts(20)},
			{ContentHash: "h3", Content: "good", CreatedAt: ts(30)},
		},
	}
	eng := newEngine(gateway, local)

	stats := eng.RunCycle(context.Background())

	require.Equal(t, 2, stats.NewMemories)
	require.Equal(t, 1, stats.Errors)
	// The watermark advances over prepared rows, failed upserts included.
	require.Equal(t, 30.0, gateway.States["test-device"].LastSyncUpdatedAt)
}

func TestRunCycle_PropagatesGraphEdges(t *testing.T) {
	gateway := remotetest.New()
	local := &fakeLocal{
		changed: []model.LocalMemory{{ContentHash: "h1", Content: "x", CreatedAt: ts(10)}},
		edges: []model.GraphEdge{
			{SourceHash: "h1", TargetHash: "h2", Similarity: 0.9, RelationshipType: "semantic"},
		},
	}
	eng := newEngine(gateway, local)

	stats := eng.RunCycle(context.Background())

	require.Equal(t, 1, stats.GraphEdges)
	require.Contains(t, gateway.Edges, "h1->h2")
}

func TestRunCycle_LocalReadFailureCaptured(t *testing.T) {
	gateway := remotetest.New()
	gateway.SetSyncState(context.Background(), model.SyncState{
		DeviceName:        "test-device",
		LastSyncUpdatedAt: 42,
		MemoriesSynced:    3,
	})
	local := &fakeLocal{changedErr: errors.New("database is locked")}
	eng := newEngine(gateway, local)

	stats := eng.RunCycle(context.Background())

	require.Equal(t, 1, stats.Errors)
	require.Equal(t, "database is locked", stats.ErrorMessage)
	require.True(t, local.closed)

	state := gateway.States["test-device"]
	require.Equal(t, 42.0, state.LastSyncUpdatedAt)
	require.Equal(t, int64(3), state.MemoriesSynced)
	require.Contains(t, state.Status, model.StatusError)
	require.Contains(t, state.Status, "database is locked")
}

func TestRunCycle_OpenFailureCaptured(t *testing.T) {
	eng := &Engine{
		Gateway: remotetest.New(),
		Device:  "test-device",
		OpenLocal: func() (LocalReader, error) {
			return nil, errors.New("no such file")
		},
	}

	stats := eng.RunCycle(context.Background())

	require.Equal(t, 1, stats.Errors)
	require.Equal(t, "no such file", stats.ErrorMessage)
}

func TestTruncateMsg(t *testing.T) {
	require.Equal(t, "short", truncateMsg("short", 100))
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	require.Len(t, truncateMsg(string(long), 100), 100)
}
