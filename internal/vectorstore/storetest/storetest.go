// Package storetest holds the behaviour every vectorstore.Storage must share.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/vectorstore"
)

func passage(doc string, pos int) domain.Passage {
	return domain.Passage{
		ID:           fmt.Sprintf("%s:%d", doc, pos),
		DocumentID:   doc,
		DocumentName: doc + ".txt",
		Text:         fmt.Sprintf("text of %s %d", doc, pos),
		Position:     pos,
		Start:        pos * 10,
		End:          pos*10 + 10,
		Label:        "page 1",
	}
}

func ids(results []domain.ScoredPassage) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Passage.ID
	}
	return out
}

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func() vectorstore.Storage) {
	ctx := context.Background()
	setup := func(t *testing.T) vectorstore.Storage {
		t.Helper()
		s := newStore()
		require.NoError(t, s.Init(ctx, 3))
		return s
	}

	t.Run("empty", func(t *testing.T) {
		s := setup(t)
		res, err := s.Search(ctx, []float32{1, 0, 0}, 5, domain.SearchFilter{})
		require.NoError(t, err)
		assert.Empty(t, res)
		assert.Zero(t, s.Count())
	})

	t.Run("ranking and round trip", func(t *testing.T) {
		s := setup(t)
		ps := []domain.Passage{passage("a", 0), passage("a", 1), passage("b", 0)}
		require.NoError(t, s.Upsert(ctx, ps, [][]float32{{1, 0, 0}, {0.6, 0.8, 0}, {0, 0, 1}}))
		assert.Equal(t, 3, s.Count())

		res, err := s.Search(ctx, []float32{2, 0, 0}, 2, domain.SearchFilter{})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, []string{"a:0", "a:1"}, ids(res))
		assert.InDelta(t, 1.0, res[0].Score, 1e-6)
		assert.InDelta(t, 0.6, res[1].Score, 1e-6)
		assert.Equal(t, ps[0], res[0].Passage)
	})

	t.Run("k larger than store", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.Upsert(ctx, []domain.Passage{passage("a", 0), passage("a", 1)}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
		res, err := s.Search(ctx, []float32{1, 1, 0}, 10, domain.SearchFilter{})
		require.NoError(t, err)
		assert.Len(t, res, 2)
	})

	t.Run("ties break by position then document", func(t *testing.T) {
		s := setup(t)
		ps := []domain.Passage{passage("b", 1), passage("b", 0), passage("a", 1), passage("a", 0)}
		v := []float32{0, 1, 0}
		require.NoError(t, s.Upsert(ctx, ps, [][]float32{v, v, v, v}))
		res, err := s.Search(ctx, v, 4, domain.SearchFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a:0", "b:0", "a:1", "b:1"}, ids(res))
	})

	t.Run("upsert replaces", func(t *testing.T) {
		s := setup(t)
		p := passage("a", 0)
		require.NoError(t, s.Upsert(ctx, []domain.Passage{p}, [][]float32{{1, 0, 0}}))
		p.Text = "rewritten"
		require.NoError(t, s.Upsert(ctx, []domain.Passage{p}, [][]float32{{0, 1, 0}}))
		assert.Equal(t, 1, s.Count())
		res, err := s.Search(ctx, []float32{0, 1, 0}, 1, domain.SearchFilter{})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "rewritten", res[0].Passage.Text)
		assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	})

	t.Run("zero vectors score zero", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.Upsert(ctx, []domain.Passage{passage("a", 0), passage("a", 1)}, [][]float32{{0, 0, 0}, {1, 0, 0}}))
		res, err := s.Search(ctx, []float32{1, 0, 0}, 2, domain.SearchFilter{})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "a:1", res[0].Passage.ID)
		assert.Zero(t, res[1].Score)

		res, err = s.Search(ctx, []float32{0, 0, 0}, 2, domain.SearchFilter{})
		require.NoError(t, err)
		require.Len(t, res, 2)
		for _, r := range res {
			assert.Zero(t, r.Score)
		}
		assert.Equal(t, []string{"a:0", "a:1"}, ids(res))
	})

	t.Run("filter and delete by document", func(t *testing.T) {
		s := setup(t)
		ps := []domain.Passage{passage("a", 0), passage("a", 1), passage("b", 0)}
		require.NoError(t, s.Upsert(ctx, ps, [][]float32{{1, 0, 0}, {1, 1, 0}, {1, 0, 0}}))

		res, err := s.Search(ctx, []float32{1, 0, 0}, 5, domain.SearchFilter{DocumentID: "b"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b:0"}, ids(res))

		n, err := s.DeleteDocument(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 1, s.Count())

		n, err = s.DeleteDocument(ctx, "a")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("dimension checks", func(t *testing.T) {
		s := setup(t)
		assert.Error(t, s.Upsert(ctx, []domain.Passage{passage("a", 0)}, [][]float32{{1, 0}}))
		assert.Error(t, s.Upsert(ctx, []domain.Passage{passage("a", 0)}, nil))
		_, err := s.Search(ctx, []float32{1}, 1, domain.SearchFilter{})
		assert.Error(t, err)
	})

	t.Run("clear", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.Upsert(ctx, []domain.Passage{passage("a", 0)}, [][]float32{{1, 0, 0}}))
		require.NoError(t, s.Clear(ctx))
		assert.Zero(t, s.Count())
		require.NoError(t, s.Upsert(ctx, []domain.Passage{passage("a", 0)}, [][]float32{{1, 0, 0}}))
		assert.Equal(t, 1, s.Count())
	})
}
