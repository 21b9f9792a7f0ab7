// Package summarizer creates additive summary records from clusters of
// semantically similar memories. Source records are never modified or
// removed; a summary is a new row linked to its sources via summarized_from.
package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/chirino/memory-cloud/internal/cluster"
	"github.com/chirino/memory-cloud/internal/model"
	"github.com/chirino/memory-cloud/internal/registry/remote"
)

// HashPrefix namespaces summary identifiers away from ordinary content
// hashes. The hash is derived from the summary text, so re-running over an
// unchanged corpus regenerates the same identity and the upsert is a no-op.
const HashPrefix = "summary_"

// excerptLen is the per-member content excerpt length in the summary body.
const excerptLen = 200

// Options control one summarization run.
type Options struct {
	Threshold      float64
	MinClusterSize int
	DryRun         bool
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		Threshold:      cluster.DefaultThreshold,
		MinClusterSize: cluster.DefaultMinClusterSize,
	}
}

// Summarizer runs non-destructive summarization against the cloud store.
type Summarizer struct {
	Gateway remote.Gateway
}

// Run clusters the active, non-summary corpus and persists one summary
// record per cluster. DryRun previews without persisting.
func (s *Summarizer) Run(ctx context.Context, opts Options) model.SummarizeStats {
	stats := model.SummarizeStats{DryRun: opts.DryRun}

	memories := s.Gateway.GetAll(ctx, false)
	stats.TotalMemories = len(memories)

	if len(memories) < opts.MinClusterSize {
		log.Info("Not enough memories for summarization",
			"have", len(memories), "need", opts.MinClusterSize)
		return stats
	}

	// Summaries are never re-summarized.
	var sources []model.Memory
	for _, m := range memories {
		if !m.IsSummary {
			sources = append(sources, m)
		}
	}

	clusters := cluster.Clusters(sources, opts.Threshold, opts.MinClusterSize)
	stats.ClustersFound = len(clusters)
	if len(clusters) == 0 {
		log.Info("No clusters found above similarity threshold", "threshold", opts.Threshold)
		return stats
	}
	log.Info("Found clusters to summarize", "clusters", len(clusters))

	for i, group := range clusters {
		content := BuildSummary(group)
		tags := summaryTags(group)
		sourceHashes := make([]string, len(group))
		for k, m := range group {
			sourceHashes[k] = m.ContentHash
		}

		if opts.DryRun {
			preview := content
			if len(preview) > 300 {
				preview = preview[:300] + "..."
			}
			log.Info("Cluster preview", "cluster", i+1, "memories", len(group),
				"tags", strings.Join(tags, ","), "summary", preview)
			stats.MemoriesCovered += len(group)
			continue
		}

		summary := model.Memory{
			ContentHash: SummaryHash(content),
			Content:     content,
			Tags:        strings.Join(tags, ","),
			MemoryType:  "pattern",
			Metadata: map[string]interface{}{
				model.MetaIsSummary:      true,
				model.MetaSummarizedFrom: sourceHashes,
				model.MetaClusterSize:    len(group),
				model.MetaSource:         "non_destructive_summarizer",
			},
			IsSummary:      true,
			SummarizedFrom: sourceHashes,
		}

		if !s.Gateway.Upsert(ctx, summary) {
			log.Error("Failed to persist summary", "cluster", i+1)
			continue
		}
		stats.SummariesCreated++
		stats.MemoriesCovered += len(group)
		log.Info("Created summary", "cluster", i+1, "memories", len(group))
	}
	return stats
}

// SummaryHash derives the content identity of a summary record.
func SummaryHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return HashPrefix + hex.EncodeToString(sum[:])[:32]
}

// BuildSummary renders the deterministic summary body for a cluster: a
// header with the cluster size, the sorted union of member types and tags,
// then one excerpt line per member in cluster order.
func BuildSummary(group []model.Memory) string {
	types := map[string]bool{}
	for _, m := range group {
		t := m.MemoryType
		if t == "" {
			t = "note"
		}
		types[t] = true
	}
	tags := tagUnion(group)

	lines := []string{
		fmt.Sprintf("[SUMMARY of %d related memories]", len(group)),
		"Types: " + strings.Join(sortedKeys(types), ", "),
	}
	if len(tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(tags, ", "))
	}
	lines = append(lines, "", "Key points:")

	for i, m := range group {
		excerpt := strings.TrimSpace(truncate(m.Content, excerptLen))
		if len(m.Content) > excerptLen {
			excerpt += "..."
		}
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, excerpt))
	}
	return strings.Join(lines, "\n")
}

// summaryTags returns the sorted union of member tags plus the auto-summary
// marker.
func summaryTags(group []model.Memory) []string {
	set := map[string]bool{"auto-summary": true}
	for _, m := range group {
		for _, tag := range strings.Split(m.Tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				set[tag] = true
			}
		}
	}
	return sortedKeys(set)
}

// tagUnion is summaryTags without the marker, for the summary body.
func tagUnion(group []model.Memory) []string {
	set := map[string]bool{}
	for _, m := range group {
		for _, tag := range strings.Split(m.Tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				set[tag] = true
			}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
