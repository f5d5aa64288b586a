package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyrag.yaml")
	yml := `
embedding:
  provider: openai
  model: text-embedding-3-small
  dimension: 512
retrieval:
  top_k: 3
chunker:
  type: sentence
  target_size: 400
  overlap: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("STUDYRAG_RETRIEVAL__MIN_SCORE", "0.35")
	t.Setenv("STUDYRAG_VECTOR_STORE__TYPE", "chromem")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 512, cfg.Embedding.Dimension)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.35, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, "sentence", cfg.Chunker.Type)
	assert.Equal(t, 400, cfg.Chunker.TargetSize)
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	// untouched keys keep their defaults
	assert.Equal(t, "extractive", cfg.Generation.Provider)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	require.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopK = 9
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Retrieval.TopK)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		option string
	}{
		{"unknown embedder", func(c *AppConfig) { c.Embedding.Provider = "bert" }, "embedding.provider"},
		{"openai without model", func(c *AppConfig) { c.Embedding.Provider = "openai" }, "embedding.model"},
		{"zero dimension", func(c *AppConfig) { c.Embedding.Dimension = 0 }, "embedding.dimension"},
		{"unknown generator", func(c *AppConfig) { c.Generation.Provider = "gpt2" }, "generation.provider"},
		{"tiny prompt", func(c *AppConfig) { c.Generation.MaxPromptChars = 10 }, "generation.max_prompt_chars"},
		{"prompt smaller than instructions", func(c *AppConfig) { c.Generation.MaxPromptChars = 256 }, "generation.max_prompt_chars"},
		{"prompt just under minimum", func(c *AppConfig) { c.Generation.MaxPromptChars = MinPromptChars - 1 }, "generation.max_prompt_chars"},
		{"zero top k", func(c *AppConfig) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"min score out of range", func(c *AppConfig) { c.Retrieval.MinScore = 2 }, "retrieval.min_score"},
		{"unknown chunker", func(c *AppConfig) { c.Chunker.Type = "words" }, "chunker.type"},
		{"unknown store", func(c *AppConfig) { c.VectorStore.Type = "qdrant" }, "vector_store.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cerr *domain.ConfigError
			require.True(t, errors.As(err, &cerr), "got %T", err)
			assert.Equal(t, tt.option, cerr.Option)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestValidateChunkOverlap(t *testing.T) {
	cfg := Default()
	cfg.Chunker.TargetSize = 100
	cfg.Chunker.Overlap = 100
	err := cfg.Validate()
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}
