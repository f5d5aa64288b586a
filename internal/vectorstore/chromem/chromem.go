// Package chromem stores passage vectors in an embedded chromem-go database.
// Vectors are always computed by the caller, so the collection never embeds.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"studyrag/internal/domain"
	"studyrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

const (
	keyDocumentID   = "document_id"
	keyDocumentName = "document_name"
	keyPosition     = "position"
	keyStart        = "start"
	keyEnd          = "end"
	keyLabel        = "label"
)

var errNoEmbedding = errors.New("chromem: passages must carry precomputed embeddings")

// Storage implements vectorstore.Storage on top of a chromem collection.
type Storage struct {
	mu         sync.Mutex
	name       string
	dimension  int
	db         *chromem.DB
	collection *chromem.Collection
}

// NewStorage creates an in-memory chromem store using the named collection.
func NewStorage(collection string) *Storage {
	if collection == "" {
		collection = "passages"
	}
	return &Storage{name: collection}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return s.reset()
}

// reset swaps in a fresh database; callers hold mu.
func (s *Storage) reset() error {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(s.name, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.db = db
	s.collection = col
	return nil
}

func (s *Storage) Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return errors.New("passages and vectors length mismatch")
	}
	if len(passages) == 0 {
		return nil
	}
	col, err := s.current()
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: %d != %d", p.ID, len(vectors[i]), s.dimension)
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   p.Text,
			Metadata:  toMetadata(p),
			Embedding: vec,
		}
	}
	return col.AddDocuments(ctx, docs, 1)
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.ScoredPassage, error) {
	col, err := s.current()
	if err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: %d != %d", len(vector), s.dimension)
	}
	count := col.Count()
	if count == 0 || topK == 0 {
		return nil, nil
	}
	var where map[string]string
	if filter.DocumentID != "" {
		where = map[string]string{keyDocumentID: filter.DocumentID}
	}

	// A zero query has no direction. Any probe lists the candidates; they all score 0.
	query, zero := vector, vectorstore.IsZero(vector)
	if zero {
		query = make([]float32, len(vector))
		query[0] = 1
	}
	// chromem selects its own top n; fetch everything and rank here so ties
	// break the same way as the other stores.
	res, err := col.QueryEmbedding(ctx, query, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	results := make([]domain.ScoredPassage, 0, len(res))
	for _, r := range res {
		score := float64(r.Similarity)
		if zero {
			score = 0
		}
		results = append(results, domain.ScoredPassage{Passage: fromResult(r), Score: score})
	}
	return vectorstore.Rank(results, topK), nil
}

func (s *Storage) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	col, err := s.current()
	if err != nil {
		return 0, err
	}
	before := col.Count()
	if err := col.Delete(ctx, map[string]string{keyDocumentID: documentID}, nil); err != nil {
		return 0, fmt.Errorf("chromem delete: %w", err)
	}
	return before - col.Count(), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

func (s *Storage) Count() int {
	col, err := s.current()
	if err != nil {
		return 0
	}
	return col.Count()
}

func (s *Storage) current() (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil {
		return nil, errors.New("chromem storage not initialized")
	}
	return s.collection, nil
}

func noEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

func toMetadata(p domain.Passage) map[string]string {
	return map[string]string{
		keyDocumentID:   p.DocumentID,
		keyDocumentName: p.DocumentName,
		keyPosition:     strconv.Itoa(p.Position),
		keyStart:        strconv.Itoa(p.Start),
		keyEnd:          strconv.Itoa(p.End),
		keyLabel:        p.Label,
	}
}

func fromResult(r chromem.Result) domain.Passage {
	position, _ := strconv.Atoi(r.Metadata[keyPosition])
	start, _ := strconv.Atoi(r.Metadata[keyStart])
	end, _ := strconv.Atoi(r.Metadata[keyEnd])
	return domain.Passage{
		ID:           r.ID,
		DocumentID:   r.Metadata[keyDocumentID],
		DocumentName: r.Metadata[keyDocumentName],
		Text:         r.Content,
		Position:     position,
		Start:        start,
		End:          end,
		Label:        r.Metadata[keyLabel],
	}
}
