package summarizer

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/chirino/memory-cloud/internal/model"
	"github.com/chirino/memory-cloud/internal/registry/remote/remotetest"
)

func memoryAt(hash, content, tags string, degrees float64) model.Memory {
	rad := degrees * math.Pi / 180
	vec := pgvector.NewVector([]float32{float32(math.Cos(rad)), float32(math.Sin(rad))})
	return model.Memory{
		ContentHash: hash,
		Content:     content,
		Tags:        tags,
		MemoryType:  "note",
		Embedding:   &vec,
	}
}

func seedCorpus(gateway *remotetest.FakeGateway) {
	gateway.Seed(
		memoryAt("h1", "prefer tabs over spaces", "style", 0),
		memoryAt("h2", "tabs beat spaces for indentation", "style,editor", 5),
		memoryAt("h3", "indentation should use tabs", "style", 10),
		memoryAt("h4", "always indent with tabs", "editor", 15),
		memoryAt("h5", "the deploy runs at midnight", "ops", 90),
	)
}

func TestRun_CreatesOneSummaryPerCluster(t *testing.T) {
	gateway := remotetest.New()
	seedCorpus(gateway)
	s := &Summarizer{Gateway: gateway}

	opts := DefaultOptions()
	opts.Threshold = 0.8
	stats := s.Run(context.Background(), opts)

	require.Equal(t, 5, stats.TotalMemories)
	require.Equal(t, 1, stats.ClustersFound)
	require.Equal(t, 1, stats.SummariesCreated)
	require.Equal(t, 4, stats.MemoriesCovered)

	var summary model.Memory
	for _, m := range gateway.Memories {
		if m.IsSummary {
			summary = m
		}
	}
	require.True(t, strings.HasPrefix(summary.ContentHash, HashPrefix))
	require.Equal(t, "pattern", summary.MemoryType)
	require.ElementsMatch(t, []string{"h1", "h2", "h3", "h4"}, summary.SummarizedFrom)
	require.Equal(t, 4, summary.Metadata[model.MetaClusterSize])
	require.Equal(t, true, summary.Metadata[model.MetaIsSummary])
	require.Contains(t, summary.Tags, "auto-summary")
	require.Contains(t, summary.Tags, "style")
	require.NotContains(t, summary.Tags, "ops")
}

func TestRun_NeverMutatesSourceRecords(t *testing.T) {
	gateway := remotetest.New()
	seedCorpus(gateway)
	before := map[string]model.Memory{}
	for h, m := range gateway.Memories {
		before[h] = m
	}
	s := &Summarizer{Gateway: gateway}

	opts := DefaultOptions()
	opts.Threshold = 0.8
	s.Run(context.Background(), opts)
	s.Run(context.Background(), opts)

	for h, m := range before {
		require.Equal(t, m, gateway.Memories[h])
	}
}

func TestRun_IdempotentAcrossRuns(t *testing.T) {
	gateway := remotetest.New()
	seedCorpus(gateway)
	s := &Summarizer{Gateway: gateway}

	opts := DefaultOptions()
	opts.Threshold = 0.8
	s.Run(context.Background(), opts)
	count := len(gateway.Memories)

	// The summary is excluded as a source and regenerating an identical body
	// upserts the same identity, so the corpus does not grow.
	s.Run(context.Background(), opts)
	require.Len(t, gateway.Memories, count)
}

func TestRun_DryRunPersistsNothing(t *testing.T) {
	gateway := remotetest.New()
	seedCorpus(gateway)
	s := &Summarizer{Gateway: gateway}

	opts := DefaultOptions()
	opts.Threshold = 0.8
	opts.DryRun = true
	stats := s.Run(context.Background(), opts)

	require.True(t, stats.DryRun)
	require.Equal(t, 1, stats.ClustersFound)
	require.Zero(t, stats.SummariesCreated)
	require.Equal(t, 4, stats.MemoriesCovered)
	require.Len(t, gateway.Memories, 5)
}

func TestRun_NotEnoughMemories(t *testing.T) {
	gateway := remotetest.New()
	gateway.Seed(memoryAt("h1", "lonely", "", 0))
	s := &Summarizer{Gateway: gateway}

	stats := s.Run(context.Background(), DefaultOptions())
	require.Equal(t, 1, stats.TotalMemories)
	require.Zero(t, stats.ClustersFound)
	require.Zero(t, stats.SummariesCreated)
}

func TestSummaryHash(t *testing.T) {
	h := SummaryHash("some summary body")
	require.True(t, strings.HasPrefix(h, HashPrefix))
	require.Len(t, h, len(HashPrefix)+32)
	require.Equal(t, h, SummaryHash("some summary body"))
	require.NotEqual(t, h, SummaryHash("another body"))
}

func TestBuildSummary(t *testing.T) {
	long := strings.Repeat("z", 250)
	group := []model.Memory{
		{ContentHash: "h1", Content: "use tabs", Tags: "style,editor", MemoryType: "note"},
		{ContentHash: "h2", Content: long, Tags: "style", MemoryType: ""},
		{ContentHash: "h3", Content: "tabs always", Tags: "", MemoryType: "decision"},
	}

	body := BuildSummary(group)
	lines := strings.Split(body, "\n")

	require.Equal(t, "[SUMMARY of 3 related memories]", lines[0])
	require.Equal(t, "Types: decision, note", lines[1])
	require.Equal(t, "Tags: editor, style", lines[2])
	require.Contains(t, body, "Key points:")
	require.Contains(t, body, "1. use tabs")
	require.Contains(t, body, "2. "+long[:200]+"...")
	require.Contains(t, body, "3. tabs always")
}
