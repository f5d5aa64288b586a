package session

import (
	"context"
	"fmt"
	"time"

	"studyrag/internal/chunker"
	"studyrag/internal/config"
	"studyrag/internal/domain"
	"studyrag/internal/embedding/hashvec"
	embedopenai "studyrag/internal/embedding/openai"
	"studyrag/internal/generator"
	"studyrag/internal/llm/extractive"
	llmopenai "studyrag/internal/llm/openai"
	"studyrag/internal/loader"
	"studyrag/internal/logger"
	"studyrag/internal/vectorstore"
	"studyrag/internal/vectorstore/chromem"
	"studyrag/internal/vectorstore/memory"
)

// NewModels builds the embedder and language model named by cfg. Any failure
// is a *domain.ModelUnavailableError.
func NewModels(cfg *config.AppConfig) (Models, error) {
	var m Models
	switch e := cfg.Embedding; e.Provider {
	case "hashvec":
		m.Embedder = hashvec.NewEmbedder(e.Dimension)
	case "openai":
		c, err := embedopenai.NewClient(embedopenai.Config{
			BaseURL:           e.BaseURL,
			APIKeyEnv:         e.APIKeyEnv,
			Model:             e.Model,
			Dimension:         e.Dimension,
			Timeout:           time.Duration(e.TimeoutSecs) * time.Second,
			BatchSize:         e.BatchSize,
			RequestsPerSecond: e.RequestsPerSecond,
		})
		if err != nil {
			return Models{}, &domain.ModelUnavailableError{Kind: "embedding", Model: e.Model, Err: err}
		}
		m.Embedder = c
	default:
		return Models{}, &domain.ModelUnavailableError{Kind: "embedding", Model: e.Model, Err: fmt.Errorf("unknown provider %q", e.Provider)}
	}

	switch g := cfg.Generation; g.Provider {
	case "extractive":
		m.LanguageModel = extractive.New()
	case "openai":
		c, err := llmopenai.NewClient(llmopenai.Config{
			BaseURL:   g.BaseURL,
			APIKeyEnv: g.APIKeyEnv,
			Model:     g.Model,
			Timeout:   time.Duration(g.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return Models{}, &domain.ModelUnavailableError{Kind: "generation", Model: g.Model, Err: err}
		}
		m.LanguageModel = c
	default:
		return Models{}, &domain.ModelUnavailableError{Kind: "generation", Model: g.Model, Err: fmt.Errorf("unknown provider %q", g.Provider)}
	}
	logger.Debug("models: embedding %s (dim %d), generation %s", m.Embedder.Name(), m.Embedder.Dimension(), m.LanguageModel.Name())
	return m, nil
}

// FromConfig validates cfg and starts a session using models. Extra options
// are applied after the ones derived from cfg.
func FromConfig(ctx context.Context, cfg *config.AppConfig, models Models, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ch, err := chunker.New(cfg.Chunker.Type, cfg.Chunker.TargetSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	ocr := loader.NewTesseract(cfg.OCR.TesseractPath, cfg.OCR.Languages)
	if err := ocr.Available(); err != nil {
		logger.Debug("tesseract not found (%v); image uploads will fail", err)
	}

	base := []Option{
		WithLoader(loader.New(loader.WithOCR(ocr))),
		WithChunker(ch),
		WithStore(store),
		WithRetrieval(cfg.Retrieval.TopK, cfg.Retrieval.MinScore),
		WithGeneration(generator.Config{
			MaxPromptChars: cfg.Generation.MaxPromptChars,
			Temperature:    cfg.Generation.Temperature,
			Timeout:        time.Duration(cfg.Generation.TimeoutSecs) * time.Second,
		}),
	}
	return New(ctx, models, append(base, opts...)...)
}

func newStore(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.NewStorage(), nil
	case "chromem":
		return chromem.NewStorage(cfg.Collection), nil
	default:
		return nil, &domain.ConfigError{Option: "vector_store.type", Value: cfg.Type, Reason: "must be one of memory, chromem"}
	}
}
