// Package memorycli ingests records into the local store by shelling out to
// the external `memory` CLI. Going through the tool (rather than writing the
// SQLite file directly) gets embedding regeneration and deduplication for
// free.
package memorycli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chirino/memory-cloud/internal/model"
	registryingest "github.com/chirino/memory-cloud/internal/registry/ingest"
)

// storeTimeout bounds a single ingestion call.
const storeTimeout = 30 * time.Second

func init() {
	registryingest.Register(registryingest.Plugin{
		Name: "memory-cli",
		Loader: func(ctx context.Context) (registryingest.Ingestor, error) {
			return &CLIIngestor{binary: "memory"}, nil
		},
	})
}

// CLIIngestor invokes `memory store <json>` per record.
type CLIIngestor struct {
	binary string
}

type storeRequest struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Store ingests one record. The call is bounded by storeTimeout; a timeout
// or failure affects only this record.
func (c *CLIIngestor) Store(ctx context.Context, content, tags, memoryType string, metadata map[string]interface{}) error {
	meta := map[string]interface{}{
		"tags": tags,
		"type": memoryType,
	}
	if memoryType == "" {
		meta["type"] = "note"
	}
	for k, v := range metadata {
		meta[k] = v
	}
	meta[model.MetaRestoredFrom] = "cloud"

	payload, err := json.Marshal(storeRequest{Content: content, Metadata: meta})
	if err != nil {
		return fmt.Errorf("encode store request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, "store", string(payload))
	var stderr strings.Builder
	cmd.Stderr = &stderr

	err = cmd.Run()
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("memory store timed out after %s", storeTimeout)
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%q CLI not found; install the local memory service", c.binary)
	default:
		msg := stderr.String()
		if len(msg) > 100 {
			msg = msg[:100]
		}
		log.Warn("CLI store failed, memory may need re-embedding", "stderr", msg)
		return fmt.Errorf("memory store failed: %w", err)
	}
}
