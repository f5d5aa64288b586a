// Package index embeds passages and keeps their vectors searchable.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"studyrag/internal/domain"
	"studyrag/internal/vectorstore"
)

// Index owns the vectors of one session. Writes are serialized against
// searches so a search never observes a partially inserted batch.
type Index struct {
	mu       sync.RWMutex
	embedder domain.Embedder
	store    vectorstore.Storage
}

// New binds an embedder to a storage backend and initializes the backend
// for the embedder's dimension.
func New(ctx context.Context, embedder domain.Embedder, store vectorstore.Storage) (*Index, error) {
	if embedder == nil || store == nil {
		return nil, errors.New("index: embedder and store are required")
	}
	if err := store.Init(ctx, embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	return &Index{embedder: embedder, store: store}, nil
}

// Model is the embedding model every stored vector was produced by.
func (ix *Index) Model() string { return ix.embedder.Name() }

// Dimension is the length of every stored vector.
func (ix *Index) Dimension() int { return ix.embedder.Dimension() }

// Len returns the number of indexed passages.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.store.Count()
}

// Insert embeds and stores a single passage, replacing any earlier passage with the same ID.
func (ix *Index) Insert(ctx context.Context, p domain.Passage) (domain.Embedding, error) {
	out, err := ix.InsertBatch(ctx, []domain.Passage{p})
	if err != nil {
		return domain.Embedding{}, err
	}
	return out[0], nil
}

// InsertBatch embeds and stores passages. Nothing is stored unless every
// passage was embedded successfully.
func (ix *Index) InsertBatch(ctx context.Context, passages []domain.Passage) ([]domain.Embedding, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(vectors), len(passages))
	}
	out := make([]domain.Embedding, len(passages))
	for i, v := range vectors {
		if err := ix.check(ix.Model(), len(v)); err != nil {
			return nil, err
		}
		out[i] = domain.Embedding{PassageID: passages[i].ID, Model: ix.Model(), Vector: v}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.Upsert(ctx, passages, vectors); err != nil {
		return nil, fmt.Errorf("store passages: %w", err)
	}
	return out, nil
}

// Search returns the k passages most similar to vector. k larger than the
// index returns everything; an empty index returns an empty result.
func (ix *Index) Search(ctx context.Context, vector []float32, k int, filter domain.SearchFilter) (domain.RetrievalResult, error) {
	if err := ix.check(ix.Model(), len(vector)); err != nil {
		return domain.RetrievalResult{}, err
	}
	if k <= 0 {
		return domain.RetrievalResult{}, nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.store.Count() == 0 {
		return domain.RetrievalResult{}, nil
	}
	items, err := ix.store.Search(ctx, vector, k, filter)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("search: %w", err)
	}
	return domain.RetrievalResult{Items: items}, nil
}

// SearchEmbedding is Search for a query embedding that records its model.
func (ix *Index) SearchEmbedding(ctx context.Context, q domain.Embedding, k int, filter domain.SearchFilter) (domain.RetrievalResult, error) {
	if err := ix.check(q.Model, len(q.Vector)); err != nil {
		return domain.RetrievalResult{}, err
	}
	return ix.Search(ctx, q.Vector, k, filter)
}

// RemoveDocument drops every passage of a document and reports how many were removed.
func (ix *Index) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.store.DeleteDocument(ctx, documentID)
}

// Reset empties the index.
func (ix *Index) Reset(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.store.Clear(ctx)
}

func (ix *Index) check(model string, dimension int) error {
	if model != ix.Model() || dimension != ix.Dimension() {
		return &domain.EmbeddingModelMismatchError{
			Expected:          ix.Model(),
			Got:               model,
			ExpectedDimension: ix.Dimension(),
			GotDimension:      dimension,
		}
	}
	return nil
}
