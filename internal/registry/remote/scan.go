package remote

import (
	"context"

	"github.com/chirino/memory-cloud/internal/model"
)

// ScanPages implements the shared full-scan contract: pages of pageSize rows
// are fetched at increasing offsets until a page comes back short or the
// backend errors. An error keeps the pages already read, so a scan that dies
// mid-way still yields a usable prefix.
func ScanPages(ctx context.Context, pageSize int, fetch func(ctx context.Context, offset, limit int) ([]model.Memory, error)) []model.Memory {
	var all []model.Memory
	for offset := 0; ; offset += pageSize {
		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			break
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}
	return all
}

// RankedSearch implements the shared similarity-search contract: the primary
// ranking is returned when the backend accepts it, and any backend error
// degrades to the fallback instead of surfacing to the caller.
func RankedSearch(primary func() ([]model.Memory, error), fallback func(err error) []model.Memory) []model.Memory {
	results, err := primary()
	if err != nil {
		return fallback(err)
	}
	return results
}
