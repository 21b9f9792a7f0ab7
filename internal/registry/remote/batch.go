package remote

import (
	"context"

	"github.com/chirino/memory-cloud/internal/model"
)

// UpsertInChunks implements the shared batch-upsert contract: rows are
// written in chunks of size, and a chunk that fails wholesale is retried one
// row at a time so a single malformed row cannot sink its siblings. Failures
// are counted, not retried further. Backends supply the two write functions.
func UpsertInChunks(
	ctx context.Context,
	memories []model.Memory,
	size int,
	writeChunk func(ctx context.Context, chunk []model.Memory) error,
	writeOne func(ctx context.Context, m model.Memory) error,
) (success, failed int) {
	for start := 0; start < len(memories); start += size {
		end := min(start+size, len(memories))
		chunk := memories[start:end]

		if err := writeChunk(ctx, chunk); err == nil {
			success += len(chunk)
			continue
		}

		for _, m := range chunk {
			if err := writeOne(ctx, m); err != nil {
				failed++
			} else {
				success++
			}
		}
	}
	return success, failed
}
