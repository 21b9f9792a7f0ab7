// Package migrate installs the cloud store schema. Gateway backends that
// own remote tables register a Migrator here; setup and the migrate command
// run them all.
package migrate

import (
	"context"
	"fmt"
	"sort"
)

// Migrator installs or updates the remote schema for one gateway backend.
// Migrate must be idempotent and is a no-op when its backend is not the
// configured remote.
type Migrator interface {
	Name() string
	Migrate(ctx context.Context) error
}

// Plugin pairs a migrator with an order, so backends with dependencies
// between their schemas run deterministically.
type Plugin struct {
	Order    int
	Migrator Migrator
}

var plugins []Plugin

// Register adds a migration plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// RunAll runs every registered migrator in Order. The first failure stops
// the run.
func RunAll(ctx context.Context) error {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for _, p := range sorted {
		if err := p.Migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migration %s failed: %w", p.Migrator.Name(), err)
		}
	}
	return nil
}
