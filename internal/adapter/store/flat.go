package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
)

// FlatIndex is an in-memory exact nearest-neighbor index over L2 distance.
// Ties keep insertion order, so results are reproducible.
type FlatIndex struct {
	chunks []domain.EmbeddedChunk
}

// NewFlatIndex creates an index over chunks. The slice is not copied.
func NewFlatIndex(chunks []domain.EmbeddedChunk) *FlatIndex {
	return &FlatIndex{chunks: chunks}
}

// Len returns the number of indexed chunks.
func (f *FlatIndex) Len() int {
	return len(f.chunks)
}

// Search returns the k chunks closest to vector.
func (f *FlatIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || len(f.chunks) == 0 {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(f.chunks))
	for i, c := range f.chunks {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(c.Vector) != len(vector) {
			return nil, fmt.Errorf("vector dimension mismatch: index has %d, query has %d", len(c.Vector), len(vector))
		}
		scored = append(scored, domain.ScoredChunk{Chunk: c.Chunk, Distance: euclideanDistance(vector, c.Vector)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
