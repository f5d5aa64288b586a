package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"studyrag/internal/domain"
	"studyrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

type entry struct {
	passage domain.Passage
	vector  []float32
}

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]entry
}

func NewStorage() *Storage { return &Storage{entries: make(map[string]entry)} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = make(map[string]entry)
	return nil
}

func (s *Storage) Upsert(_ context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return errors.New("passages and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: %d != %d", passages[i].ID, len(v), s.dimension)
		}
	}
	for i, p := range passages {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		s.entries[p.ID] = entry{passage: p, vector: vec}
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.ScoredPassage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: %d != %d", len(vector), s.dimension)
	}
	results := make([]domain.ScoredPassage, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.DocumentID != "" && e.passage.DocumentID != filter.DocumentID {
			continue
		}
		results = append(results, domain.ScoredPassage{Passage: e.passage, Score: vectorstore.Cosine(vector, e.vector)})
	}
	return vectorstore.Rank(results, topK), nil
}

func (s *Storage) DeleteDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if e.passage.DocumentID == documentID {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
