// Package vectorstore defines the passage vector storage contract and the
// ranking rules every backend shares.
package vectorstore

import (
	"context"
	"math"
	"sort"

	"studyrag/internal/domain"
)

// Storage persists passage vectors and supports similarity search.
//
// Search returns at most topK passages ordered by Less. Re-upserting a passage
// ID replaces the stored passage and vector.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.ScoredPassage, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	Clear(ctx context.Context) error
	Count() int
}

// Cosine returns the cosine similarity of a and b. A zero vector on either
// side scores 0.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Less orders by score descending, then position, document ID and passage ID.
func Less(a, b domain.ScoredPassage) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Passage.Position != b.Passage.Position {
		return a.Passage.Position < b.Passage.Position
	}
	if a.Passage.DocumentID != b.Passage.DocumentID {
		return a.Passage.DocumentID < b.Passage.DocumentID
	}
	return a.Passage.ID < b.Passage.ID
}

// Rank sorts results in place and truncates them to topK.
func Rank(results []domain.ScoredPassage, topK int) []domain.ScoredPassage {
	for i := range results {
		if math.IsNaN(results[i].Score) {
			results[i].Score = 0
		}
	}
	sort.Slice(results, func(i, j int) bool { return Less(results[i], results[j]) })
	if topK >= 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}
