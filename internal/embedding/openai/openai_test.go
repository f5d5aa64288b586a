package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeServer answers /embeddings with vectors of the given size; the first
// failures requests get a 503.
func fakeServer(t *testing.T, size int, failures int32, seen *[]embeddingRequest) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if n <= failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			*seen = append(*seen, req)
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		// reversed on purpose: the client must order by index
		for i := range req.Input {
			vec := make([]float32, size)
			vec[0] = float32(len(req.Input[i]))
			data[len(req.Input)-1-i] = item{Object: "embedding", Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, baseURL, model string, dim, batch int) *Client {
	t.Helper()
	t.Setenv("STUDYRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{
		BaseURL:   baseURL + "/v1",
		APIKeyEnv: "STUDYRAG_TEST_KEY",
		Model:     model,
		Dimension: dim,
		Timeout:   5 * time.Second,
		BatchSize: batch,
	})
	require.NoError(t, err)
	c.wait = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("STUDYRAG_MISSING_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "STUDYRAG_MISSING_KEY", Dimension: 8})
	assert.ErrorContains(t, err, "STUDYRAG_MISSING_KEY")
}

func TestEmbedBatchesAndOrders(t *testing.T) {
	var seen []embeddingRequest
	srv, calls := fakeServer(t, 4, 0, &seen)
	c := newTestClient(t, srv.URL, "text-embedding-3-small", 4, 2)

	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, seen, 2)
	assert.Equal(t, 4, seen[0].Dimensions)
	assert.Equal(t, "text-embedding-3-small", c.Name())
}

func TestEmbedOmitsDimensionsForOlderModels(t *testing.T) {
	var seen []embeddingRequest
	srv, _ := fakeServer(t, 4, 0, &seen)
	c := newTestClient(t, srv.URL, "nomic-embed-text", 4, 8)

	_, err := c.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Zero(t, seen[0].Dimensions)
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	srv, calls := fakeServer(t, 4, 2, nil)
	c := newTestClient(t, srv.URL, "m", 4, 8)

	vecs, err := c.Embed(context.Background(), []string{"retry me"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedGivesUpAfterRetries(t *testing.T) {
	srv, calls := fakeServer(t, 4, 100, nil)
	c := newTestClient(t, srv.URL, "m", 4, 8)

	_, err := c.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, int32(c.maxRetries+1), calls.Load())
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv, _ := fakeServer(t, 3, 0, nil)
	c := newTestClient(t, srv.URL, "m", 4, 8)

	_, err := c.Embed(context.Background(), []string{"x"})
	var merr *domain.EmbeddingModelMismatchError
	require.True(t, errors.As(err, &merr), "got %v", err)
	assert.Equal(t, 4, merr.ExpectedDimension)
	assert.Equal(t, 3, merr.GotDimension)
}

func TestRetryDelayIsCapped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}
