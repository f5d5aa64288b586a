// Package retriever turns question text into ranked, score-filtered passages.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
)

// Searcher is the part of the index the retriever needs.
type Searcher interface {
	Model() string
	Dimension() int
	SearchEmbedding(ctx context.Context, q domain.Embedding, k int, filter domain.SearchFilter) (domain.RetrievalResult, error)
}

// Retriever embeds queries with the same model the index was built with.
type Retriever struct {
	embedder domain.Embedder
	index    Searcher
}

// New fails with EmbeddingModelMismatchError when the embedder cannot
// produce vectors comparable with the index.
func New(embedder domain.Embedder, index Searcher) (*Retriever, error) {
	if embedder == nil || index == nil {
		return nil, errors.New("retriever: embedder and index are required")
	}
	if embedder.Name() != index.Model() || embedder.Dimension() != index.Dimension() {
		return nil, &domain.EmbeddingModelMismatchError{
			Expected:          index.Model(),
			Got:               embedder.Name(),
			ExpectedDimension: index.Dimension(),
			GotDimension:      embedder.Dimension(),
		}
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// Retrieve returns up to k passages scoring at least minScore, best first.
// No match is an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, q domain.Query, k int, minScore float64) (domain.RetrievalResult, error) {
	vecs, err := r.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return domain.RetrievalResult{}, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}
	emb := domain.Embedding{Model: r.embedder.Name(), Vector: vecs[0]}
	res, err := r.index.SearchEmbedding(ctx, emb, k, domain.SearchFilter{DocumentID: q.DocumentID})
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	kept := res.Items[:0]
	for _, it := range res.Items {
		if it.Score < minScore {
			// ranked, so everything after scores lower too
			break
		}
		kept = append(kept, it)
	}
	logger.Debug("retrieved %d/%d passages for %q (min_score %.2f)", len(kept), res.Len(), q.Text, minScore)
	if len(kept) == 0 {
		return domain.RetrievalResult{}, nil
	}
	return domain.RetrievalResult{Items: kept}, nil
}
