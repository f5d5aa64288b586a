package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const biology = "Cells are the basic unit of life. Mitochondria produce energy for cells. " +
	"The weather was pleasant. Cells divide by mitosis.\nPlants use chloroplasts"

func TestSentences(t *testing.T) {
	got := Sentences(biology)
	assert.Equal(t, []string{
		"Cells are the basic unit of life.",
		"Mitochondria produce energy for cells.",
		"The weather was pleasant.",
		"Cells divide by mitosis.",
		"Plants use chloroplasts",
	}, got)
	assert.Empty(t, Sentences("  ...  \n\n"))
}

func TestSummarizeKeepsOriginalOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize(biology, 2)
	require.NoError(t, err)
	assert.Equal(t, "Mitochondria produce energy for cells. Cells divide by mitosis.", out)

	out, err = s.Summarize("no terminator here", 3)
	require.NoError(t, err)
	assert.Equal(t, "no terminator here", out)
}

func TestRankPrefersQueryTerms(t *testing.T) {
	s := NewFrequencySummarizer()
	got := s.Rank(biology, "What do chloroplasts do in plants?", 1)
	assert.Equal(t, []string{"Plants use chloroplasts"}, got)
	assert.Nil(t, s.Rank("", "x", 3))
	assert.Len(t, s.Rank(biology, "", 99), 5)
}

func TestKeyword(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Equal(t, "cells", s.Keyword(biology, "Cells divide by mitosis.", ""))
	assert.Equal(t, "mitosis", s.Keyword(biology, "Cells divide by mitosis.", "cells"))
	assert.Empty(t, s.Keyword(biology, "the of and", ""))
}
