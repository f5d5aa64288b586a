package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

type fakeModel struct {
	reply   string
	err     error
	block   bool
	prompts []domain.Prompt
}

func (m *fakeModel) Name() string { return "fake-llm" }

func (m *fakeModel) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	m.prompts = append(m.prompts, p)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.reply, m.err
}

func scored(id string, score float64, text string) domain.ScoredPassage {
	return domain.ScoredPassage{
		Passage: domain.Passage{ID: id, DocumentID: "d", DocumentName: "doc", Text: text},
		Score:   score,
	}
}

func result(items ...domain.ScoredPassage) domain.RetrievalResult {
	return domain.RetrievalResult{Items: items}
}

func TestEmptyContextIsLowConfidence(t *testing.T) {
	m := &fakeModel{reply: "Paris is the capital of Mars."}
	g := New(m, Config{})
	ans, err := g.Generate(context.Background(), "capital of Mars?", domain.RetrievalResult{}, domain.FormatFull)
	require.NoError(t, err)
	assert.True(t, ans.LowConfidence)
	assert.Equal(t, NoContextMessage, ans.Text)
	assert.Empty(t, ans.Citations)
	assert.Empty(t, m.prompts, "model must not be called")
}

func TestGenerateBuildsGroundedPrompt(t *testing.T) {
	m := &fakeModel{reply: "  ATP  "}
	g := New(m, Config{Temperature: 0.2})
	res := result(
		scored("d:1", 0.9, "Mitochondria produce ATP."),
		scored("d:0", 0.4, "Cells have membranes."),
	)
	ans, err := g.Generate(context.Background(), "What do mitochondria make?", res, domain.FormatOneWord)
	require.NoError(t, err)

	assert.Equal(t, "ATP", ans.Text)
	assert.False(t, ans.LowConfidence)
	assert.Equal(t, domain.FormatOneWord, ans.Format)
	assert.Equal(t, "fake-llm", ans.Model)
	require.Len(t, ans.Citations, 2)
	assert.Equal(t, "d:1", ans.Citations[0].Passage.ID)
	assert.Equal(t, 0.9, ans.Citations[0].Score)

	require.Len(t, m.prompts, 1)
	p := m.prompts[0]
	assert.Equal(t, domain.TaskAnswer, p.Task)
	assert.Equal(t, 20, p.MaxTokens)
	assert.Equal(t, 0.2, p.Temperature)
	assert.Contains(t, p.System, "single word")
	assert.Contains(t, p.User, "[1] (doc) Mitochondria produce ATP.")
	assert.Contains(t, p.User, "[2] (doc) Cells have membranes.")
	assert.True(t, strings.HasSuffix(p.User, "Question: What do mitochondria make?"))
	assert.Equal(t, []string{"Mitochondria produce ATP.", "Cells have membranes."}, p.Context)
}

func TestUnknownFormatFallsBackToFull(t *testing.T) {
	m := &fakeModel{reply: "ok"}
	ans, err := New(m, Config{}).Generate(context.Background(), "q", result(scored("a", 1, "x")), "haiku")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatFull, ans.Format)
	assert.Equal(t, 2048, m.prompts[0].MaxTokens)
}

func TestFitDropsLowestScoreFirst(t *testing.T) {
	text := strings.Repeat("a", 100)
	g := New(&fakeModel{}, Config{MaxPromptChars: 250})
	items := []domain.ScoredPassage{scored("p1", 0.9, text), scored("p2", 0.5, text), scored("p3", 0.7, text)}

	kept, sent, user, ok := g.fit("", items, func(s string) string { return s })
	require.True(t, ok)
	require.Len(t, kept, 2)
	assert.Equal(t, "p1", kept[0].Passage.ID)
	assert.Equal(t, "p3", kept[1].Passage.ID)
	assert.Len(t, sent, 2)
	assert.LessOrEqual(t, utf8.RuneCountInString(user), 250)
	assert.Len(t, items, 3, "input untouched")
	assert.Equal(t, "p2", items[1].Passage.ID)
}

func TestFitTruncatesBestPassage(t *testing.T) {
	text := strings.Repeat("é", 100)
	g := New(&fakeModel{}, Config{MaxPromptChars: 50})
	items := []domain.ScoredPassage{scored("p1", 0.9, text), scored("p2", 0.8, text)}

	kept, sent, user, ok := g.fit("", items, func(s string) string { return s })
	require.True(t, ok)
	require.Len(t, kept, 1)
	assert.Equal(t, text, kept[0].Passage.Text, "citation keeps the full passage")
	require.Len(t, sent, 1)
	assert.True(t, strings.HasSuffix(sent[0], truncationMarker))
	assert.True(t, utf8.ValidString(user))
	assert.Equal(t, 50, utf8.RuneCountInString(user))
}

func TestBudgetBelowInstructionsIsLowConfidence(t *testing.T) {
	m := &fakeModel{reply: "ATP"}
	g := New(m, Config{MaxPromptChars: 256})
	res := result(scored("d:1", 0.9, "Mitochondria produce ATP."))

	ans, err := g.Generate(context.Background(), "What do mitochondria make?", res, domain.FormatFull)
	require.NoError(t, err)
	assert.True(t, ans.LowConfidence)
	assert.Equal(t, NoContextMessage, ans.Text)
	assert.Empty(t, ans.Citations)

	notes, err := g.Notes(context.Background(), "mitochondria", res)
	require.NoError(t, err)
	assert.True(t, notes.LowConfidence)
	assert.Empty(t, notes.Citations)
	assert.Empty(t, m.prompts, "model must not be called")

	_, _, _, ok := g.fit(strings.Repeat("s", 300), res.Items, func(s string) string { return s })
	assert.False(t, ok)
}

func TestGenerationErrors(t *testing.T) {
	boom := errors.New("connection refused")
	g := New(&fakeModel{err: boom}, Config{})
	_, err := g.Generate(context.Background(), "why?", result(scored("a", 1, "x")), domain.FormatFull)

	var gerr *domain.GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "why?", gerr.Query)
	assert.Equal(t, "fake-llm", gerr.Model)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.ErrorIs(t, err, boom)

	_, err = New(&fakeModel{reply: "   "}, Config{}).Generate(context.Background(), "why?", result(scored("a", 1, "x")), "")
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestGenerationTimeout(t *testing.T) {
	m := &fakeModel{block: true}
	g := New(m, Config{Timeout: 20 * time.Millisecond})
	_, err := g.Generate(context.Background(), "slow?", result(scored("a", 1, "x")), domain.FormatFull)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, m.prompts, 1, "no retries")
}

func TestNotes(t *testing.T) {
	m := &fakeModel{reply: "- cells divide"}
	g := New(m, Config{})

	notes, err := g.Notes(context.Background(), "mitosis", domain.RetrievalResult{})
	require.NoError(t, err)
	assert.True(t, notes.LowConfidence)
	assert.Empty(t, m.prompts)

	notes, err = g.Notes(context.Background(), "mitosis", result(scored("a", 1, "Cells divide by mitosis.")))
	require.NoError(t, err)
	assert.Equal(t, "- cells divide", notes.Text)
	assert.Equal(t, "mitosis", notes.Topic)
	assert.Len(t, notes.Citations, 1)
	assert.Equal(t, domain.TaskNotes, m.prompts[0].Task)
	assert.Contains(t, m.prompts[0].User, "Topic: mitosis")
}

func TestFlashcardsCapsCount(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 7; i++ {
		fmt.Fprintf(&b, "Flashcard %d:\nQuestion: Q%d?\nAnswer: A%d\n\n", i, i, i)
	}
	m := &fakeModel{reply: b.String()}
	g := New(m, Config{})

	cards, err := g.Flashcards(context.Background(), []domain.Passage{{Text: "Some material."}}, 0)
	require.NoError(t, err)
	require.Len(t, cards, 5)
	assert.Equal(t, domain.Flashcard{Question: "Q1?", Answer: "A1"}, cards[0])
	assert.Equal(t, 5, m.prompts[0].Count)
	assert.Contains(t, m.prompts[0].User, "Some material.")

	cards, err = g.Flashcards(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Empty(t, cards)
	assert.Len(t, m.prompts, 1)
}

func TestParseFlashcards(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []domain.Flashcard
	}{
		{
			name: "headers",
			in:   "Flashcard 1:\r\nquestion: What is osmosis?\r\nANSWER: Diffusion of water\r\n\r\nFlashcard 2:\nQuestion: Missing answer\n",
			want: []domain.Flashcard{{Question: "What is osmosis?", Answer: "Diffusion of water"}},
		},
		{
			name: "plain pairs",
			in:   "Question: What is ATP? Answer: Energy currency Question: Who found DNA? answer: Watson and Crick",
			want: []domain.Flashcard{
				{Question: "What is ATP?", Answer: "Energy currency"},
				{Question: "Who found DNA?", Answer: "Watson and Crick"},
			},
		},
		{name: "nothing", in: "I cannot help with that.", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFlashcards(tt.in, 5))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Bullet-Points")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatBulletPoints, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatFull, f)

	_, err = ParseFormat("sonnet")
	assert.ErrorContains(t, err, "sonnet")
	assert.Len(t, Formats(), 6)
}
