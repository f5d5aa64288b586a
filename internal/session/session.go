// Package session sequences the study pipeline: load, chunk and index on
// add; retrieve and generate on ask. A Session owns its index and document
// set; models are shared read-only.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"studyrag/internal/domain"
	"studyrag/internal/generator"
	"studyrag/internal/index"
	"studyrag/internal/logger"
	"studyrag/internal/retriever"
	"studyrag/internal/summarizer"
	"studyrag/internal/vectorstore"
	"studyrag/internal/vectorstore/memory"
)

const (
	defaultTopK           = 5
	defaultMinScore       = 0.1
	flashcardPassageLimit = 30

	// shortest ID prefix Document resolves; the TUI lists this many characters
	minIDPrefix = 8
)

// Models are loaded once and shared by every session. They are never mutated.
type Models struct {
	Embedder      domain.Embedder
	LanguageModel domain.LanguageModel
}

// DocumentLoader reads a file into a normalized document.
type DocumentLoader interface {
	Load(ctx context.Context, path string, format domain.Format) (domain.Document, error)
}

type entry struct {
	doc      domain.Document
	passages []domain.Passage
}

// Session holds the documents and index of one study session.
type Session struct {
	mu         sync.RWMutex
	models     Models
	loader     DocumentLoader
	chunker    domain.Chunker
	index      *index.Index
	retriever  *retriever.Retriever
	generator  *generator.Generator
	summarizer domain.Summarizer
	topK       int
	minScore   float64
	docs       map[string]*entry
	order      []string
}

type settings struct {
	loader     DocumentLoader
	chunker    domain.Chunker
	store      vectorstore.Storage
	generation generator.Config
	summarizer domain.Summarizer
	topK       int
	minScore   float64
}

// Option configures a Session.
type Option func(*settings)

func WithLoader(l DocumentLoader) Option         { return func(s *settings) { s.loader = l } }
func WithChunker(c domain.Chunker) Option        { return func(s *settings) { s.chunker = c } }
func WithStore(st vectorstore.Storage) Option    { return func(s *settings) { s.store = st } }
func WithGeneration(c generator.Config) Option   { return func(s *settings) { s.generation = c } }
func WithSummarizer(sm domain.Summarizer) Option { return func(s *settings) { s.summarizer = sm } }

// WithRetrieval sets how many passages reach the generator and the lowest
// similarity they may have.
func WithRetrieval(topK int, minScore float64) Option {
	return func(s *settings) { s.topK, s.minScore = topK, minScore }
}

// New starts an empty session. A loader and chunker are required.
func New(ctx context.Context, models Models, opts ...Option) (*Session, error) {
	if models.Embedder == nil {
		return nil, &domain.ModelUnavailableError{Kind: "embedding", Err: errors.New("no embedder configured")}
	}
	if models.LanguageModel == nil {
		return nil, &domain.ModelUnavailableError{Kind: "generation", Err: errors.New("no language model configured")}
	}
	st := settings{topK: defaultTopK, minScore: defaultMinScore}
	for _, o := range opts {
		o(&st)
	}
	if st.loader == nil || st.chunker == nil {
		return nil, errors.New("session: loader and chunker are required")
	}
	if st.store == nil {
		st.store = memory.NewStorage()
	}
	if st.summarizer == nil {
		st.summarizer = summarizer.NewFrequencySummarizer()
	}
	if st.topK <= 0 {
		st.topK = defaultTopK
	}

	ix, err := index.New(ctx, models.Embedder, st.store)
	if err != nil {
		return nil, err
	}
	r, err := retriever.New(models.Embedder, ix)
	if err != nil {
		return nil, err
	}
	return &Session{
		models:     models,
		loader:     st.loader,
		chunker:    st.chunker,
		index:      ix,
		retriever:  r,
		generator:  generator.New(models.LanguageModel, st.generation),
		summarizer: st.summarizer,
		topK:       st.topK,
		minScore:   st.minScore,
		docs:       make(map[string]*entry),
	}, nil
}

// AddDocument loads, chunks and indexes a file. On any failure the session
// is left exactly as it was.
func (s *Session) AddDocument(ctx context.Context, path string) (domain.Document, error) {
	doc, err := s.loader.Load(ctx, path, "")
	if err != nil {
		return domain.Document{}, err
	}
	passages, err := s.chunker.Chunk(doc)
	if err != nil {
		return domain.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.index.InsertBatch(ctx, passages); err != nil {
		// a backend may have stored part of the batch
		if _, rerr := s.index.RemoveDocument(context.WithoutCancel(ctx), doc.ID); rerr != nil {
			logger.Warn("rollback of %s failed: %v", doc.Name, rerr)
		}
		return domain.Document{}, fmt.Errorf("index %s: %w", doc.Name, err)
	}
	if len(passages) == 0 {
		logger.Warn("%s has no text to index", doc.Name)
	}
	s.docs[doc.ID] = &entry{doc: doc, passages: passages}
	s.order = append(s.order, doc.ID)
	logger.Info("added %s (%s, %d passages)", doc.Name, doc.Format, len(passages))
	return doc, nil
}

// AskOption narrows a single question.
type AskOption func(*askSettings)

type askSettings struct {
	documentID string
	format     domain.AnswerFormat
	topK       int
}

// InDocument restricts retrieval to one document.
func InDocument(id string) AskOption { return func(a *askSettings) { a.documentID = id } }

// WithFormat selects the answer format.
func WithFormat(f domain.AnswerFormat) AskOption { return func(a *askSettings) { a.format = f } }

// WithTopK overrides the session's top_k for one call.
func WithTopK(k int) AskOption { return func(a *askSettings) { a.topK = k } }

// Ask answers a question from the session's documents. With nothing
// relevant indexed the answer is flagged low-confidence.
func (s *Session) Ask(ctx context.Context, text string, opts ...AskOption) (domain.Answer, error) {
	a := s.askSettings(opts)
	res, err := s.Retrieve(ctx, domain.Query{Text: text, DocumentID: a.documentID}, opts...)
	if err != nil {
		return domain.Answer{}, err
	}
	return s.generator.Generate(ctx, text, res, a.format)
}

// Retrieve returns the ranked passages a question would be answered from.
func (s *Session) Retrieve(ctx context.Context, q domain.Query, opts ...AskOption) (domain.RetrievalResult, error) {
	a := s.askSettings(opts)
	if a.documentID != "" {
		q.DocumentID = a.documentID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q.DocumentID != "" {
		if _, ok := s.docs[q.DocumentID]; !ok {
			return domain.RetrievalResult{}, &domain.DocumentNotFoundError{ID: q.DocumentID}
		}
	}
	return s.retriever.Retrieve(ctx, q, a.topK, s.minScore)
}

// Notes writes study notes on a topic from the most relevant passages.
func (s *Session) Notes(ctx context.Context, topic string, opts ...AskOption) (domain.Notes, error) {
	res, err := s.Retrieve(ctx, domain.Query{Text: topic}, opts...)
	if err != nil {
		return domain.Notes{}, err
	}
	return s.generator.Notes(ctx, topic, res)
}

// Flashcards generates up to n cards from one document, or from the first
// passages of every document when documentID is empty.
func (s *Session) Flashcards(ctx context.Context, documentID string, n int) ([]domain.Flashcard, error) {
	s.mu.RLock()
	var passages []domain.Passage
	if documentID != "" {
		e, ok := s.docs[documentID]
		if !ok {
			s.mu.RUnlock()
			return nil, &domain.DocumentNotFoundError{ID: documentID}
		}
		passages = e.passages
	} else {
		for _, id := range s.order {
			passages = append(passages, s.docs[id].passages...)
		}
	}
	s.mu.RUnlock()

	if len(passages) > flashcardPassageLimit {
		passages = passages[:flashcardPassageLimit]
	}
	return s.generator.Flashcards(ctx, passages, n)
}

// Summary is an extractive summary of one document.
func (s *Session) Summary(documentID string, maxSentences int) (string, error) {
	s.mu.RLock()
	e, ok := s.docs[documentID]
	s.mu.RUnlock()
	if !ok {
		return "", &domain.DocumentNotFoundError{ID: documentID}
	}
	return s.summarizer.Summarize(e.doc.Content, maxSentences)
}

// RemoveDocument drops a document and its passages.
func (s *Session) RemoveDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[id]
	if !ok {
		return &domain.DocumentNotFoundError{ID: id}
	}
	n, err := s.index.RemoveDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", e.doc.Name, err)
	}
	delete(s.docs, id)
	for i, d := range s.order {
		if d == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	logger.Info("removed %s (%d passages)", e.doc.Name, n)
	return nil
}

// Reset clears every document and the index.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	s.docs = make(map[string]*entry)
	s.order = nil
	logger.Info("session cleared")
	return nil
}

// Documents lists loaded documents in the order they were added.
func (s *Session) Documents() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id].doc)
	}
	return out
}

// Document finds a loaded document by ID, by file name, or by an ID prefix
// of at least minIDPrefix characters that matches exactly one document.
func (s *Session) Document(ref string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.docs[ref]; ok {
		return e.doc, nil
	}
	for _, id := range s.order {
		if d := s.docs[id].doc; d.Name == ref || d.Name == filepath.Base(ref) {
			return d, nil
		}
	}
	if len(ref) >= minIDPrefix {
		var match *entry
		for _, id := range s.order {
			if !strings.HasPrefix(id, ref) {
				continue
			}
			if match != nil {
				return domain.Document{}, fmt.Errorf("id prefix %q is ambiguous: %w", ref, &domain.DocumentNotFoundError{ID: ref})
			}
			match = s.docs[id]
		}
		if match != nil {
			return match.doc, nil
		}
	}
	return domain.Document{}, &domain.DocumentNotFoundError{ID: ref}
}

// PassageCount returns the number of indexed passages.
func (s *Session) PassageCount() int { return s.index.Len() }

// Models returns the models the session was started with.
func (s *Session) Models() Models { return s.models }

func (s *Session) askSettings(opts []AskOption) askSettings {
	a := askSettings{format: domain.FormatFull, topK: s.topK}
	for _, o := range opts {
		o(&a)
	}
	if a.topK <= 0 {
		a.topK = s.topK
	}
	return a
}
