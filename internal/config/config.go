package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"studyrag/internal/domain"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: STUDYRAG_RETRIEVAL__TOP_K=8 sets retrieval.top_k.
const EnvPrefix = "STUDYRAG_"

// MinPromptChars is the smallest accepted generation.max_prompt_chars. The
// fixed answer instructions and question template take about 400 characters;
// the rest is left for passage text.
const MinPromptChars = 1024

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" koanf:"provider"`
	Model             string  `yaml:"model" koanf:"model"`
	Dimension         int     `yaml:"dimension" koanf:"dimension"`
	BaseURL           string  `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" koanf:"api_key_env"`
	TimeoutSecs       int     `yaml:"timeout_secs" koanf:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size" koanf:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" koanf:"requests_per_second"`
}

// GenerationConfig selects and configures the generative model.
type GenerationConfig struct {
	Provider       string  `yaml:"provider" koanf:"provider"`
	Model          string  `yaml:"model" koanf:"model"`
	BaseURL        string  `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env" koanf:"api_key_env"`
	TimeoutSecs    int     `yaml:"timeout_secs" koanf:"timeout_secs"`
	MaxPromptChars int     `yaml:"max_prompt_chars" koanf:"max_prompt_chars"`
	Temperature    float64 `yaml:"temperature" koanf:"temperature"`
}

// RetrievalConfig controls how many passages reach the generator.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k" koanf:"top_k"`
	MinScore float64 `yaml:"min_score" koanf:"min_score"`
}

// ChunkerConfig configures how documents are split into passages.
// Sizes are in characters.
type ChunkerConfig struct {
	Type       string `yaml:"type" koanf:"type"`
	TargetSize int    `yaml:"target_size" koanf:"target_size"`
	Overlap    int    `yaml:"overlap" koanf:"overlap"`
}

// VectorStoreConfig selects the storage backend of the embedding index.
type VectorStoreConfig struct {
	Type       string `yaml:"type" koanf:"type"`
	Collection string `yaml:"collection" koanf:"collection"`
}

// OCRConfig configures text extraction from images.
type OCRConfig struct {
	TesseractPath string `yaml:"tesseract_path" koanf:"tesseract_path"`
	Languages     string `yaml:"languages" koanf:"languages"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedding   EmbeddingConfig   `yaml:"embedding" koanf:"embedding"`
	Generation  GenerationConfig  `yaml:"generation" koanf:"generation"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" koanf:"retrieval"`
	Chunker     ChunkerConfig     `yaml:"chunker" koanf:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	OCR         OCRConfig         `yaml:"ocr" koanf:"ocr"`
}

// Load reads a config from path and overlays STUDYRAG_* environment
// variables. A missing file yields the defaults plus overrides.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// LoadDefault tries ./studyrag.yaml first, then ~/.config/studyrag/config.yaml.
// If neither exists, it writes defaults to the user path and loads them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "studyrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err != nil {
		if err := Save(userPath, Default()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// DefaultUserPath returns ~/.config/studyrag/config.yaml.
func DefaultUserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "studyrag", "config.yaml"), nil
}

// Default returns the documented defaults. Every option is spelled out so
// that `studyrag config init` writes a complete file.
func Default() *AppConfig {
	return &AppConfig{
		Embedding: EmbeddingConfig{
			Provider:          "hashvec",
			Dimension:         1024,
			BaseURL:           "https://api.openai.com/v1",
			APIKeyEnv:         "OPENAI_API_KEY",
			TimeoutSecs:       30,
			BatchSize:         64,
			RequestsPerSecond: 5,
		},
		Generation: GenerationConfig{
			Provider:       "extractive",
			BaseURL:        "https://api.openai.com/v1",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSecs:    60,
			MaxPromptChars: 12000,
			Temperature:    0.7,
		},
		Retrieval:   RetrievalConfig{TopK: 5, MinScore: 0.1},
		Chunker:     ChunkerConfig{Type: "window", TargetSize: 1000, Overlap: 200},
		VectorStore: VectorStoreConfig{Type: "memory", Collection: "passages"},
		OCR:         OCRConfig{TesseractPath: "tesseract", Languages: "eng"},
	}
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

var (
	embeddingProviders  = map[string]bool{"hashvec": true, "openai": true}
	generationProviders = map[string]bool{"extractive": true, "openai": true}
	chunkerTypes        = map[string]bool{"window": true, "sentence": true}
	vectorStoreTypes    = map[string]bool{"memory": true, "chromem": true}
)

// Validate checks every recognized option. Errors are *domain.ConfigError.
func (c *AppConfig) Validate() error {
	if !embeddingProviders[c.Embedding.Provider] {
		return &domain.ConfigError{Option: "embedding.provider", Value: c.Embedding.Provider, Reason: "must be one of hashvec, openai"}
	}
	if c.Embedding.Provider == "openai" && c.Embedding.Model == "" {
		return &domain.ConfigError{Option: "embedding.model", Value: `""`, Reason: "required for the openai provider"}
	}
	if c.Embedding.Dimension <= 0 {
		return &domain.ConfigError{Option: "embedding.dimension", Value: c.Embedding.Dimension, Reason: "must be positive"}
	}
	if c.Embedding.BatchSize <= 0 {
		return &domain.ConfigError{Option: "embedding.batch_size", Value: c.Embedding.BatchSize, Reason: "must be positive"}
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return &domain.ConfigError{Option: "embedding.requests_per_second", Value: c.Embedding.RequestsPerSecond, Reason: "must be non-negative (0 disables the limit)"}
	}
	if c.Embedding.TimeoutSecs <= 0 {
		return &domain.ConfigError{Option: "embedding.timeout_secs", Value: c.Embedding.TimeoutSecs, Reason: "must be positive"}
	}

	if !generationProviders[c.Generation.Provider] {
		return &domain.ConfigError{Option: "generation.provider", Value: c.Generation.Provider, Reason: "must be one of extractive, openai"}
	}
	if c.Generation.Provider == "openai" && c.Generation.Model == "" {
		return &domain.ConfigError{Option: "generation.model", Value: `""`, Reason: "required for the openai provider"}
	}
	if c.Generation.TimeoutSecs <= 0 {
		return &domain.ConfigError{Option: "generation.timeout_secs", Value: c.Generation.TimeoutSecs, Reason: "must be positive"}
	}
	if c.Generation.MaxPromptChars < MinPromptChars {
		return &domain.ConfigError{Option: "generation.max_prompt_chars", Value: c.Generation.MaxPromptChars, Reason: fmt.Sprintf("must be at least %d", MinPromptChars)}
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return &domain.ConfigError{Option: "generation.temperature", Value: c.Generation.Temperature, Reason: "must be within [0, 2]"}
	}

	if c.Retrieval.TopK <= 0 {
		return &domain.ConfigError{Option: "retrieval.top_k", Value: c.Retrieval.TopK, Reason: "must be positive"}
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return &domain.ConfigError{Option: "retrieval.min_score", Value: c.Retrieval.MinScore, Reason: "must be within [-1, 1] (cosine similarity)"}
	}

	if !chunkerTypes[c.Chunker.Type] {
		return &domain.ConfigError{Option: "chunker.type", Value: c.Chunker.Type, Reason: "must be one of window, sentence"}
	}
	if c.Chunker.TargetSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.TargetSize {
		return &domain.InvalidChunkConfigError{TargetSize: c.Chunker.TargetSize, Overlap: c.Chunker.Overlap}
	}

	if !vectorStoreTypes[c.VectorStore.Type] {
		return &domain.ConfigError{Option: "vector_store.type", Value: c.VectorStore.Type, Reason: "must be one of memory, chromem"}
	}
	if c.VectorStore.Type == "chromem" && c.VectorStore.Collection == "" {
		return &domain.ConfigError{Option: "vector_store.collection", Value: `""`, Reason: "required for the chromem store"}
	}
	return nil
}
