package port

import (
	"context"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
)

// VectorIndex is a searchable set of embedded chunks.
type VectorIndex interface {
	// Search returns up to k chunks ordered by ascending L2 distance to vector.
	Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)

	// Len returns the number of indexed chunks.
	Len() int
}

// IndexStore persists a VectorIndex. There is at most one index at a time.
type IndexStore interface {
	// Rebuild discards whatever is persisted and stores chunks as the new index.
	Rebuild(ctx context.Context, chunks []domain.EmbeddedChunk, status domain.IndexStatus) (VectorIndex, error)

	// Load opens the persisted index. Returns ErrNotIndexed when there is none.
	Load(ctx context.Context) (VectorIndex, domain.IndexStatus, error)

	// Drop removes the persisted index. Dropping a missing index is not an error.
	Drop(ctx context.Context) error
}
