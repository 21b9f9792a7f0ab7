// Package ingest defines the capability used by restore to write records
// back into the local store. The local store itself is read-only to this
// process; ingestion goes through an external tool that regenerates
// embeddings and deduplicates.
package ingest

import (
	"context"
	"fmt"
)

// Ingestor stores one record locally. The call is bounded in time by the
// implementation; a failure affects only the record being ingested.
type Ingestor interface {
	Store(ctx context.Context, content, tags, memoryType string, metadata map[string]interface{}) error
}

// Loader creates an Ingestor from config carried on the context.
type Loader func(ctx context.Context) (Ingestor, error)

// Plugin represents an ingestion backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds an ingestion plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Select returns the loader for the named ingestion plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return nil, fmt.Errorf("unknown ingestor %q; valid: %v", name, names)
}
