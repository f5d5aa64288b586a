package hashvec

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbedShapeAndNorm(t *testing.T) {
	e := NewEmbedder(256)
	assert.Equal(t, "hashvec", e.Name())
	assert.Equal(t, 256, e.Dimension())

	vecs, err := e.Embed(context.Background(), []string{"Mitochondria produce ATP.", "the of and"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		assert.Len(t, v, 256)
	}
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[0]), 1e-6)
	// stopwords only
	for _, x := range vecs[1] {
		assert.Zero(t, x)
	}
}

func TestEmbedIsDeterministicAndRelevant(t *testing.T) {
	e := NewEmbedder(1024)
	ctx := context.Background()
	vecs, err := e.Embed(ctx, []string{
		"photosynthesis in plant chloroplasts uses light",
		"the french revolution began in 1789",
		"where does photosynthesis happen in a plant",
	})
	require.NoError(t, err)
	again, err := e.Embed(ctx, []string{"photosynthesis in plant chloroplasts uses light"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again[0])

	query := vecs[2]
	assert.Greater(t, cosine(query, vecs[0]), cosine(query, vecs[1]))
}

func TestCollidingTokensKeepTheirOwnSigns(t *testing.T) {
	// with one bucket every token collides; "mitosis" hashes positive, "glucose" negative
	e := NewEmbedder(1)
	vecs, err := e.Embed(context.Background(), []string{"mitosis glucose", "mitosis cell", "glucose"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0}, vecs[0], "opposite signs cancel")
	assert.Equal(t, []float32{1}, vecs[1])
	assert.Equal(t, []float32{-1}, vecs[2])
}

func TestEmbedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
