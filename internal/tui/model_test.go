package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/session"
)

type fakeSession struct {
	docs    []domain.Document
	asked   []string
	added   []string
	removed []string
	resets  int
	askErr  error
}

func (f *fakeSession) Ask(_ context.Context, text string, _ ...session.AskOption) (domain.Answer, error) {
	f.asked = append(f.asked, text)
	if f.askErr != nil {
		return domain.Answer{}, f.askErr
	}
	return domain.Answer{
		Text:   "Mitosis is cell division.",
		Format: domain.FormatFull,
		Model:  "fake",
		Citations: []domain.Citation{
			{Passage: domain.Passage{DocumentName: "bio.txt", Label: "page 1", Text: "Cells divide. Mitosis has phases."}, Score: 0.9},
			{Passage: domain.Passage{DocumentName: "bio.txt", Text: "Meiosis makes gametes."}, Score: 0.4},
		},
	}, nil
}

func (f *fakeSession) AddDocument(_ context.Context, path string) (domain.Document, error) {
	f.added = append(f.added, path)
	d := domain.Document{ID: "0123456789", Name: path, Format: domain.FormatText, Content: "x"}
	f.docs = append(f.docs, d)
	return d, nil
}

func (f *fakeSession) RemoveDocument(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeSession) Reset(context.Context) error {
	f.resets++
	f.docs = nil
	return nil
}

func (f *fakeSession) Documents() []domain.Document { return f.docs }

func (f *fakeSession) Document(ref string) (domain.Document, error) {
	for _, d := range f.docs {
		if d.ID == ref || d.Name == ref {
			return d, nil
		}
	}
	return domain.Document{}, &domain.DocumentNotFoundError{ID: ref}
}

func (f *fakeSession) Notes(_ context.Context, topic string, _ ...session.AskOption) (domain.Notes, error) {
	return domain.Notes{Topic: topic, Text: "- cells divide"}, nil
}

func (f *fakeSession) Flashcards(_ context.Context, _ string, _ int) ([]domain.Flashcard, error) {
	return []domain.Flashcard{{Question: "What divides?", Answer: "Cells"}}, nil
}

// enter types line and presses enter, running any returned command to completion.
func enter(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd != nil {
		if msg := cmd(); msg != nil {
			if _, quit := msg.(tea.QuitMsg); !quit {
				next, _ = m.Update(msg)
				m = next.(Model)
			}
		}
	}
	return m
}

func transcript(m Model) string {
	var parts []string
	for _, tr := range m.turns {
		parts = append(parts, tr.text)
	}
	return strings.Join(parts, "\n")
}

func TestParseCommand(t *testing.T) {
	name, arg, ok := parseCommand(":add  notes/bio.txt ")
	assert.True(t, ok)
	assert.Equal(t, "add", name)
	assert.Equal(t, "notes/bio.txt", arg)

	name, arg, ok = parseCommand(":DOCS")
	assert.True(t, ok)
	assert.Equal(t, "docs", name)
	assert.Empty(t, arg)

	_, _, ok = parseCommand("what is osmosis?")
	assert.False(t, ok)
}

func TestAskShowsAnswerAndCitations(t *testing.T) {
	fs := &fakeSession{}
	m := New(context.Background(), fs, "")
	m = enter(t, m, "what is mitosis?")

	assert.Equal(t, []string{"what is mitosis?"}, fs.asked)
	assert.False(t, m.busy)
	require.Len(t, m.citations, 2)
	out := transcript(m)
	assert.Contains(t, out, "Mitosis is cell division.")
	assert.Contains(t, out, "[1] bio.txt, page 1 (0.90)")
	assert.Contains(t, out, "[2] bio.txt (0.40)")
	assert.Equal(t, "what is mitosis?", m.lastQuery)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
}

func TestAskErrorIsReported(t *testing.T) {
	fs := &fakeSession{askErr: errors.New("model offline")}
	m := New(context.Background(), fs, domain.FormatShortAnswer)
	m = enter(t, m, "anything")
	assert.Contains(t, m.status, "model offline")
	assert.Empty(t, m.citations)
}

func TestDocumentCommands(t *testing.T) {
	fs := &fakeSession{}
	m := New(context.Background(), fs, "")
	assert.Equal(t, "No documents loaded.", m.status)

	m = enter(t, m, ":add bio.txt")
	assert.Equal(t, []string{"bio.txt"}, fs.added)
	assert.Contains(t, transcript(m), "added bio.txt")
	assert.Equal(t, "1 documents loaded.", m.status)

	m = enter(t, m, ":docs")
	assert.Contains(t, transcript(m), "01234567  bio.txt")

	m = enter(t, m, ":rm bio.txt")
	assert.Equal(t, []string{"0123456789"}, fs.removed)

	m = enter(t, m, ":rm missing.pdf")
	assert.Contains(t, transcript(m), "missing.pdf")
	assert.Len(t, fs.removed, 1)

	m = enter(t, m, ":reset")
	assert.Equal(t, 1, fs.resets)
	assert.Contains(t, transcript(m), "session cleared")
}

func TestFormatAndStudyCommands(t *testing.T) {
	fs := &fakeSession{}
	m := New(context.Background(), fs, "")

	m = enter(t, m, ":format bullet-points")
	assert.Equal(t, domain.FormatBulletPoints, m.format)

	m = enter(t, m, ":format sonnet")
	assert.Equal(t, domain.FormatBulletPoints, m.format)
	assert.Contains(t, transcript(m), "unknown answer format")

	m = enter(t, m, ":notes mitosis")
	assert.Contains(t, transcript(m), "Notes: mitosis\n- cells divide")

	m = enter(t, m, ":cards")
	assert.Contains(t, transcript(m), "Flashcard 1\n  Q: What divides?\n  A: Cells")

	m = enter(t, m, ":bogus")
	assert.Contains(t, transcript(m), "unknown command :bogus")
}

func TestQuitCommand(t *testing.T) {
	m := New(context.Background(), &fakeSession{}, "")
	m.input.SetValue(":quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Plants need light. Mitosis has four phases. Water is wet."
	out := highlightBestSentence(text, "phases of mitosis")
	assert.Contains(t, out, "Plants need light.")
	assert.Contains(t, out, "Mitosis has four phases.")
	assert.Equal(t, "", highlightBestSentence("", "q"))
	assert.Equal(t, "One. Two.", highlightBestSentence("One. Two.", ""))
}
