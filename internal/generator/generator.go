// Package generator builds bounded prompts from retrieved passages and asks a
// language model for answers, study notes and flashcards.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
)

// NoContextMessage is the answer text when nothing relevant was retrieved.
const NoContextMessage = "I couldn't find anything in your study materials about this. " +
	"Add a document that covers it or rephrase the question."

const (
	defaultMaxPromptChars = 12000
	defaultTimeout        = 60 * time.Second
	truncationMarker      = "…"
)

// Config bounds prompts and model calls.
type Config struct {
	MaxPromptChars int
	Temperature    float64
	Timeout        time.Duration
}

// Generator turns retrieval results into answers.
type Generator struct {
	model domain.LanguageModel
	cfg   Config
}

func New(model domain.LanguageModel, cfg Config) *Generator {
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = defaultMaxPromptChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Generator{model: model, cfg: cfg}
}

// Model returns the name of the underlying language model.
func (g *Generator) Model() string { return g.model.Name() }

// Generate answers query from the retrieved passages. An empty result never
// reaches the model and yields a low-confidence answer.
func (g *Generator) Generate(ctx context.Context, query string, res domain.RetrievalResult, format domain.AnswerFormat) (domain.Answer, error) {
	format, spec := specFor(format)
	if res.Empty() {
		return domain.Answer{Text: NoContextMessage, LowConfidence: true, Format: format, Model: g.model.Name()}, nil
	}

	system := persona + " " + spec.instruction + " Based only on the provided context, answer the following educational question accurately. " +
		"If the context does not contain the answer, say so."
	items, sent, user, ok := g.fit(system, res.Items, func(ctxBlock string) string {
		return "Context:\n" + ctxBlock + "\n\nQuestion: " + query
	})
	if !ok {
		return domain.Answer{Text: NoContextMessage, LowConfidence: true, Format: format, Model: g.model.Name()}, nil
	}

	prompt := domain.Prompt{
		Task:        domain.TaskAnswer,
		Format:      format,
		System:      system,
		User:        user,
		Question:    query,
		Context:     sent,
		MaxTokens:   spec.maxTokens,
		Temperature: g.cfg.Temperature,
	}
	text, err := g.complete(ctx, query, prompt)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{
		Text:      text,
		Citations: citations(items),
		Format:    format,
		Model:     g.model.Name(),
	}, nil
}

// Notes writes study notes on topic from the retrieved passages.
func (g *Generator) Notes(ctx context.Context, topic string, res domain.RetrievalResult) (domain.Notes, error) {
	if res.Empty() {
		return domain.Notes{Topic: topic, Text: NoContextMessage, LowConfidence: true}, nil
	}
	system := persona + " Generate detailed study notes on the given topic based only on the context. " +
		"Use short headings and bullet points."
	items, sent, user, ok := g.fit(system, res.Items, func(ctxBlock string) string {
		return "Context:\n" + ctxBlock + "\n\nTopic: " + topic + "\n\nNotes:"
	})
	if !ok {
		return domain.Notes{Topic: topic, Text: NoContextMessage, LowConfidence: true}, nil
	}
	text, err := g.complete(ctx, topic, domain.Prompt{
		Task:        domain.TaskNotes,
		System:      system,
		User:        user,
		Question:    topic,
		Context:     sent,
		MaxTokens:   2048,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return domain.Notes{}, err
	}
	return domain.Notes{Topic: topic, Text: text, Citations: citations(items)}, nil
}

// Flashcards asks for up to n question/answer cards covering the passages.
// No passages means no cards and no model call.
func (g *Generator) Flashcards(ctx context.Context, passages []domain.Passage, n int) ([]domain.Flashcard, error) {
	if n <= 0 {
		n = 5
	}
	var b strings.Builder
	var used []string
	for _, p := range passages {
		if b.Len()+len(p.Text) > g.cfg.MaxPromptChars/2 && len(used) > 0 {
			break
		}
		b.WriteString(p.Text)
		b.WriteString("\n")
		used = append(used, p.Text)
	}
	if len(used) == 0 {
		return nil, nil
	}
	material := truncateRunes(b.String(), g.cfg.MaxPromptChars/2)
	user := fmt.Sprintf("Generate %d flashcards from the following study material. Each flashcard must have a question and answer. "+
		"Format your response exactly like this example:\n\n"+
		"Flashcard 1:\nQuestion: What is the capital of France?\nAnswer: Paris\n\n"+
		"Flashcard 2:\nQuestion: What is 2+2?\nAnswer: 4\n\n"+
		"Context: %s\n\nFlashcards:", n, material)
	query := fmt.Sprintf("%d flashcards", n)
	text, err := g.complete(ctx, query, domain.Prompt{
		Task:        domain.TaskFlashcards,
		System:      persona,
		User:        user,
		Context:     used,
		Count:       n,
		MaxTokens:   2048,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	cards := ParseFlashcards(text, n)
	logger.Debug("parsed %d flashcards from %d passages", len(cards), len(used))
	return cards, nil
}

func (g *Generator) complete(ctx context.Context, query string, p domain.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := g.model.Complete(ctx, p)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("model returned an empty response")
	}
	if err != nil {
		return "", &domain.GenerationError{Query: query, Model: g.model.Name(), Err: err}
	}
	logger.Debug("%s answered in %s (%d prompt chars)", g.model.Name(), time.Since(start).Round(time.Millisecond),
		utf8.RuneCountInString(p.System)+utf8.RuneCountInString(p.User))
	return strings.TrimSpace(text), nil
}

// fit keeps as many passages as the prompt budget allows, dropping the
// lowest scored first. When even the best passage alone does not fit its text
// is cut down. It returns the kept items in prompt order, the passage texts as
// sent and the rendered user message. ok is false when no passage text fits.
func (g *Generator) fit(system string, items []domain.ScoredPassage, render func(string) string) (kept []domain.ScoredPassage, sent []string, user string, ok bool) {
	kept = make([]domain.ScoredPassage, len(items))
	copy(kept, items)

	budget := g.cfg.MaxPromptChars - utf8.RuneCountInString(system)
	user = render(contextBlock(kept))
	for utf8.RuneCountInString(user) > budget && len(kept) > 1 {
		kept = dropLowest(kept)
		user = render(contextBlock(kept))
	}
	if over := utf8.RuneCountInString(user) - budget; over > 0 {
		p := kept[0].Passage
		keep := utf8.RuneCountInString(p.Text) - over - utf8.RuneCountInString(truncationMarker)
		if keep <= 0 {
			logger.Warn("prompt budget %d leaves no room for passage text", g.cfg.MaxPromptChars)
			return nil, nil, "", false
		}
		p.Text = truncateRunes(p.Text, keep) + truncationMarker
		user = render(contextBlock([]domain.ScoredPassage{{Passage: p, Score: kept[0].Score}}))
		logger.Debug("prompt budget %d: truncated top passage %s", g.cfg.MaxPromptChars, p.ID)
		return kept, []string{p.Text}, user, true
	}
	if len(kept) < len(items) {
		logger.Debug("prompt budget %d: kept %d of %d passages", g.cfg.MaxPromptChars, len(kept), len(items))
	}
	return kept, texts(kept), user, true
}

// dropLowest removes the lowest scored item; among equal scores the last one goes.
func dropLowest(items []domain.ScoredPassage) []domain.ScoredPassage {
	low := len(items) - 1
	for i := len(items) - 2; i >= 0; i-- {
		if items[i].Score < items[low].Score {
			low = i
		}
	}
	return append(items[:low], items[low+1:]...)
}

func contextBlock(items []domain.ScoredPassage) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (%s) %s", i+1, source(it.Passage), it.Passage.Text)
	}
	return b.String()
}

func source(p domain.Passage) string {
	name := p.DocumentName
	if name == "" {
		name = p.DocumentID
	}
	if p.Label != "" {
		return name + ", " + p.Label
	}
	return name
}

func texts(items []domain.ScoredPassage) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Passage.Text
	}
	return out
}

func citations(items []domain.ScoredPassage) []domain.Citation {
	out := make([]domain.Citation, len(items))
	for i, it := range items {
		out[i] = domain.Citation{Passage: it.Passage, Score: it.Score}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
