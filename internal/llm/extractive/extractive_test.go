package extractive

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

var notes = []string{
	"Mitochondria produce ATP for the cell. Cells divide by mitosis.",
	"Chloroplasts capture light in plant cells. The weather was pleasant.",
}

func TestAnswerUsesOnlyContext(t *testing.T) {
	m := New()
	out, err := m.Complete(context.Background(), domain.Prompt{
		Task:     domain.TaskAnswer,
		Format:   domain.FormatShortAnswer,
		Question: "Where does light capture happen in plants?",
		Context:  notes,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Chloroplasts capture light in plant cells.")
	for _, sent := range strings.SplitAfter(out, ".") {
		if s := strings.TrimSpace(sent); s != "" {
			assert.Contains(t, strings.Join(notes, " "), s)
		}
	}
}

func TestBulletAndOneWordFormats(t *testing.T) {
	m := New()
	ctx := context.Background()
	out, err := m.Complete(ctx, domain.Prompt{Format: domain.FormatBulletPoints, Question: "cells", Context: notes})
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		assert.True(t, strings.HasPrefix(line, "- "), line)
	}

	out, err = m.Complete(ctx, domain.Prompt{Format: domain.FormatOneWord, Question: "What produces ATP?", Context: notes})
	require.NoError(t, err)
	assert.NotContains(t, out, " ")
	assert.NotEmpty(t, out)
}

func TestFlashcards(t *testing.T) {
	out, err := New().Complete(context.Background(), domain.Prompt{Task: domain.TaskFlashcards, Count: 2, Context: notes})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Question: Fill in the blank:"))
	assert.Contains(t, out, "Flashcard 1:")
	assert.Contains(t, out, "_____")
}

func TestNeedsContext(t *testing.T) {
	_, err := New().Complete(context.Background(), domain.Prompt{Question: "anything"})
	assert.Error(t, err)
}

func TestBlank(t *testing.T) {
	got, ok := blank("Cells divide by mitosis.", "mitosis")
	require.True(t, ok)
	assert.Equal(t, "Cells divide by _____.", got)

	got, ok = blank("Mitosis splits cells", "mitosis")
	require.True(t, ok)
	assert.Equal(t, "_____ splits cells", got)

	_, ok = blank("premitosisx", "mitosis")
	assert.False(t, ok)
}
