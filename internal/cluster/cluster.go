// Package cluster groups memories by embedding similarity.
package cluster

import (
	"math"

	"github.com/chirino/memory-cloud/internal/model"
)

// DefaultMinClusterSize is the smallest cluster worth summarizing.
const DefaultMinClusterSize = 3

// DefaultThreshold is the default cosine similarity cutoff.
const DefaultThreshold = 0.75

// Cosine returns the cosine similarity of two vectors: dot product over the
// product of L2 norms. Defined as 0 when either vector has zero norm or the
// lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Clusters groups memories by greedy single-pass clustering. Candidates are
// visited in input order; each unassigned candidate seeds a cluster and
// absorbs every later unassigned candidate whose similarity TO THE SEED is
// at least threshold. Similarity is never evaluated through other members,
// so the grouping is not transitive. A cluster smaller than minSize is
// discarded and its members stay available to later seeds. Records without
// an embedding never appear in the output.
//
// Quadratic in the number of embedded records; fine for corpora in the
// thousands.
func Clusters(memories []model.Memory, threshold float64, minSize int) [][]model.Memory {
	var eligible []model.Memory
	for _, m := range memories {
		if m.Embedding != nil && len(m.Embedding.Slice()) > 0 {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	assigned := make([]bool, len(eligible))
	var clusters [][]model.Memory

	for i := range eligible {
		if assigned[i] {
			continue
		}
		seed := eligible[i].Embedding.Slice()
		members := []int{i}

		for j := i + 1; j < len(eligible); j++ {
			if assigned[j] {
				continue
			}
			if Cosine(seed, eligible[j].Embedding.Slice()) >= threshold {
				members = append(members, j)
			}
		}

		if len(members) < minSize {
			continue
		}
		group := make([]model.Memory, len(members))
		for k, idx := range members {
			group[k] = eligible[idx]
			assigned[idx] = true
		}
		clusters = append(clusters, group)
	}
	return clusters
}
