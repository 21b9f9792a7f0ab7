package cluster

import (
	"fmt"
	"math"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/chirino/memory-cloud/internal/model"
)

// at builds a unit vector at the given angle in degrees, so the cosine
// similarity of two vectors equals the cosine of the angle between them.
func at(hash string, degrees float64) model.Memory {
	rad := degrees * math.Pi / 180
	vec := pgvector.NewVector([]float32{float32(math.Cos(rad)), float32(math.Sin(rad))})
	return model.Memory{ContentHash: hash, Embedding: &vec}
}

func hashes(group []model.Memory) []string {
	out := make([]string, len(group))
	for i, m := range group {
		out[i] = m.ContentHash
	}
	return out
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestCosine_Degenerate(t *testing.T) {
	require.Zero(t, Cosine([]float32{0, 0}, []float32{1, 0}))
	require.Zero(t, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	require.Zero(t, Cosine(nil, nil))
}

func TestClusters_FourSimilarOneOutlier(t *testing.T) {
	memories := []model.Memory{
		at("a", 0), at("b", 5), at("c", 10), at("d", 15), at("outlier", 90),
	}
	clusters := Clusters(memories, 0.8, DefaultMinClusterSize)
	require.Len(t, clusters, 1)
	require.Equal(t, []string{"a", "b", "c", "d"}, hashes(clusters[0]))
}

func TestClusters_BelowMinSizeDiscarded(t *testing.T) {
	memories := []model.Memory{at("a", 0), at("b", 5)}
	require.Nil(t, Clusters(memories, 0.8, 3))
}

func TestClusters_SimilarityIsSeedOnly(t *testing.T) {
	// b is within threshold of seed a, c is within threshold of b but not of
	// a. Membership is decided against the seed, so c stays out.
	memories := []model.Memory{at("a", 0), at("b", 35), at("c", 70), at("d", 5), at("e", 10)}
	clusters := Clusters(memories, math.Cos(40*math.Pi/180), 3)
	require.Len(t, clusters, 1)
	require.Equal(t, []string{"a", "b", "d", "e"}, hashes(clusters[0]))
}

func TestClusters_DiscardedMembersAvailableToLaterSeeds(t *testing.T) {
	// Seed x only reaches y, producing an undersized pair that is discarded.
	// y then seeds its own cluster with a and b.
	memories := []model.Memory{at("x", 0), at("y", 40), at("a", 80), at("b", 80)}
	clusters := Clusters(memories, 0.75, 3)
	require.Len(t, clusters, 1)
	require.Equal(t, []string{"y", "a", "b"}, hashes(clusters[0]))
}

func TestClusters_NoDoubleMembershipAndDeterministic(t *testing.T) {
	var memories []model.Memory
	for i := 0; i < 20; i++ {
		memories = append(memories, at(fmt.Sprintf("m%02d", i), float64(i*9)))
	}

	first := Clusters(memories, 0.8, 3)
	second := Clusters(memories, 0.8, 3)
	require.Equal(t, first, second)

	seen := map[string]bool{}
	for _, group := range first {
		require.GreaterOrEqual(t, len(group), 3)
		for _, h := range hashes(group) {
			require.False(t, seen[h], "memory %s appears in two clusters", h)
			seen[h] = true
		}
	}
}

func TestClusters_SkipsRecordsWithoutEmbedding(t *testing.T) {
	memories := []model.Memory{
		{ContentHash: "bare"},
		at("a", 0), at("b", 5), at("c", 10),
	}
	clusters := Clusters(memories, 0.8, 3)
	require.Len(t, clusters, 1)
	require.Equal(t, []string{"a", "b", "c"}, hashes(clusters[0]))
}

func TestClusters_EmptyInput(t *testing.T) {
	require.Nil(t, Clusters(nil, 0.8, 3))
}
