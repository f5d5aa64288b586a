// Package extractive is an offline language model. It never invents text:
// every answer is assembled from sentences of the supplied context.
package extractive

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"studyrag/internal/domain"
	"studyrag/internal/summarizer"
)

// ModelName identifies the extractive model in answers.
const ModelName = "extractive"

var _ domain.LanguageModel = (*Model)(nil)

// sentences kept per answer format
var formatSentences = map[domain.AnswerFormat]int{
	domain.FormatFull:         4,
	domain.FormatShortSummary: 3,
	domain.FormatBulletPoints: 5,
	domain.FormatLongAnswer:   8,
	domain.FormatOneWord:      1,
	domain.FormatShortAnswer:  2,
}

// Model ranks context sentences against the question.
type Model struct {
	ranker *summarizer.FrequencySummarizer
}

func New() *Model { return &Model{ranker: summarizer.NewFrequencySummarizer()} }

func (m *Model) Name() string { return ModelName }

func (m *Model) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := strings.Join(p.Context, "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extractive model needs context")
	}
	switch p.Task {
	case domain.TaskFlashcards:
		return m.flashcards(text, p.Count), nil
	case domain.TaskNotes:
		return bullets(m.ranker.Rank(text, p.Question, 8)), nil
	default:
		return m.answer(text, p), nil
	}
}

func (m *Model) answer(text string, p domain.Prompt) string {
	n, ok := formatSentences[p.Format]
	if !ok {
		n = formatSentences[domain.FormatFull]
	}
	picked := m.ranker.Rank(text, p.Question, n)
	switch p.Format {
	case domain.FormatOneWord:
		if len(picked) == 0 {
			return ""
		}
		if w := m.ranker.Keyword(text, picked[0], p.Question); w != "" {
			return w
		}
		return picked[0]
	case domain.FormatBulletPoints:
		return bullets(picked)
	default:
		return strings.Join(picked, " ")
	}
}

// flashcards turns the strongest sentences into fill-in-the-blank cards.
func (m *Model) flashcards(text string, n int) string {
	if n <= 0 {
		n = 5
	}
	var b strings.Builder
	card := 0
	for _, sent := range m.ranker.Rank(text, "", n*2) {
		if card == n {
			break
		}
		word := m.ranker.Keyword(text, sent, "")
		if word == "" {
			continue
		}
		blanked, ok := blank(sent, word)
		if !ok {
			continue
		}
		card++
		fmt.Fprintf(&b, "Flashcard %d:\nQuestion: Fill in the blank: %s\nAnswer: %s\n\n", card, blanked, word)
	}
	return strings.TrimSpace(b.String())
}

func blank(sentence, word string) (string, bool) {
	re, err := regexp.Compile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(word) + `($|[^\p{L}\p{N}])`)
	if err != nil {
		return "", false
	}
	loc := re.FindStringSubmatchIndex(sentence)
	if loc == nil {
		return "", false
	}
	// loc[3] ends the leading boundary, loc[4] starts the trailing one
	return sentence[:loc[3]] + "_____" + sentence[loc[4]:], true
}

func bullets(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(l)
	}
	return b.String()
}
