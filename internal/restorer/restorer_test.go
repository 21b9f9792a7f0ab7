package restorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chirino/memory-cloud/internal/model"
	"github.com/chirino/memory-cloud/internal/registry/remote/remotetest"
)

type storedCall struct {
	content    string
	tags       string
	memoryType string
	metadata   map[string]interface{}
}

type fakeIngestor struct {
	stored       []storedCall
	failContents map[string]bool
}

func (f *fakeIngestor) Store(ctx context.Context, content, tags, memoryType string, metadata map[string]interface{}) error {
	if f.failContents[content] {
		return errors.New("ingestion timed out")
	}
	f.stored = append(f.stored, storedCall{content, tags, memoryType, metadata})
	return nil
}

func seed(gateway *remotetest.FakeGateway) {
	gateway.Seed(
		model.Memory{ContentHash: "h1", Content: "alpha notes", Tags: "a", MemoryType: "note"},
		model.Memory{ContentHash: "h2", Content: "beta notes", Tags: "b"},
		model.Memory{ContentHash: "h3", Content: "gamma gone", MemoryType: "note", LocalDeleted: true},
	)
}

func TestRestoreAll_ActiveOnly(t *testing.T) {
	gateway := remotetest.New()
	seed(gateway)
	ingestor := &fakeIngestor{}
	r := &Restorer{Gateway: gateway, Ingestor: ingestor}

	stats := r.RestoreAll(context.Background(), false)

	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Restored)
	require.Zero(t, stats.Failed)
	require.Len(t, ingestor.stored, 2)
}

func TestRestoreAll_IncludeDeleted(t *testing.T) {
	gateway := remotetest.New()
	seed(gateway)
	ingestor := &fakeIngestor{}
	r := &Restorer{Gateway: gateway, Ingestor: ingestor}

	stats := r.RestoreAll(context.Background(), true)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 3, stats.Restored)
}

func TestRestoreAll_PerRecordFailureContinues(t *testing.T) {
	gateway := remotetest.New()
	seed(gateway)
	ingestor := &fakeIngestor{failContents: map[string]bool{"alpha notes": true}}
	r := &Restorer{Gateway: gateway, Ingestor: ingestor}

	stats := r.RestoreAll(context.Background(), false)

	require.Equal(t, 1, stats.Restored)
	require.Equal(t, 1, stats.Failed)
	require.Len(t, ingestor.stored, 1)
	require.Equal(t, "beta notes", ingestor.stored[0].content)
}

func TestRestoreByHashes_CountsMissing(t *testing.T) {
	gateway := remotetest.New()
	seed(gateway)
	ingestor := &fakeIngestor{}
	r := &Restorer{Gateway: gateway, Ingestor: ingestor}

	stats := r.RestoreByHashes(context.Background(), []string{"h1", "nope"})

	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Restored)
	require.Equal(t, 1, stats.NotFound)
	require.Zero(t, stats.Failed)
}

func TestRestoreDeleted(t *testing.T) {
	gateway := remotetest.New()
	seed(gateway)
	ingestor := &fakeIngestor{}
	r := &Restorer{Gateway: gateway, Ingestor: ingestor}

	stats := r.RestoreDeleted(context.Background())

	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Restored)
	require.Equal(t, "gamma gone", ingestor.stored[0].content)
}

func TestRestoreBySearch_IncludesDeletedMatches(t *testing.T) {
	gateway := remotetest.New()
	seed(gateway)
	ingestor := &fakeIngestor{}
	r := &Restorer{Gateway: gateway, Ingestor: ingestor}

	stats := r.RestoreBySearch(context.Background(), "gamma", 10)

	require.Equal(t, 1, stats.Found)
	require.Equal(t, 1, stats.Restored)
}

func TestRestore_DefaultsMemoryType(t *testing.T) {
	gateway := remotetest.New()
	gateway.Seed(model.Memory{ContentHash: "h1", Content: "untyped"})
	ingestor := &fakeIngestor{}
	r := &Restorer{Gateway: gateway, Ingestor: ingestor}

	r.RestoreAll(context.Background(), false)

	require.Len(t, ingestor.stored, 1)
	require.Equal(t, "note", ingestor.stored[0].memoryType)
}
