package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chirino/memory-cloud/internal/model"
)

func rows(n int) []model.Memory {
	out := make([]model.Memory, n)
	for i := range out {
		out[i] = model.Memory{ContentHash: fmt.Sprintf("hash-%03d", i+1)}
	}
	return out
}

func TestUpsertInChunks_AllChunksSucceed(t *testing.T) {
	var chunks [][]model.Memory
	success, failed := UpsertInChunks(context.Background(), rows(120), BatchChunkSize,
		func(ctx context.Context, chunk []model.Memory) error {
			chunks = append(chunks, chunk)
			return nil
		},
		func(ctx context.Context, m model.Memory) error {
			t.Fatal("per-row fallback should not run")
			return nil
		})

	require.Equal(t, 120, success)
	require.Equal(t, 0, failed)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 50)
	require.Len(t, chunks[2], 20)
}

func TestUpsertInChunks_MalformedRowFallsBackPerRow(t *testing.T) {
	bad := "hash-037"
	containsBad := func(chunk []model.Memory) bool {
		for _, m := range chunk {
			if m.ContentHash == bad {
				return true
			}
		}
		return false
	}

	var perRow int
	success, failed := UpsertInChunks(context.Background(), rows(60), BatchChunkSize,
		func(ctx context.Context, chunk []model.Memory) error {
			if containsBad(chunk) {
				return errors.New("malformed row in chunk")
			}
			return nil
		},
		func(ctx context.Context, m model.Memory) error {
			perRow++
			if m.ContentHash == bad {
				return errors.New("malformed row")
			}
			return nil
		})

	require.Equal(t, 59, success)
	require.Equal(t, 1, failed)
	// Only the first chunk (rows 1-50) degrades to per-row writes.
	require.Equal(t, 50, perRow)
}

func TestUpsertInChunks_EmptyInput(t *testing.T) {
	success, failed := UpsertInChunks(context.Background(), nil, BatchChunkSize,
		func(ctx context.Context, chunk []model.Memory) error { return nil },
		func(ctx context.Context, m model.Memory) error { return nil })
	require.Zero(t, success)
	require.Zero(t, failed)
}
