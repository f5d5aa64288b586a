package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studyrag/internal/domain"
	"studyrag/internal/session"
)

// SessionPort is the TUI-facing subset of a study session.
type SessionPort interface {
	Ask(ctx context.Context, text string, opts ...session.AskOption) (domain.Answer, error)
	AddDocument(ctx context.Context, path string) (domain.Document, error)
	RemoveDocument(ctx context.Context, id string) error
	Reset(ctx context.Context) error
	Documents() []domain.Document
	Document(ref string) (domain.Document, error)
	Notes(ctx context.Context, topic string, opts ...session.AskOption) (domain.Notes, error)
	Flashcards(ctx context.Context, documentID string, n int) ([]domain.Flashcard, error)
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
)

type turn struct {
	role role
	text string
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx       context.Context
	session   SessionPort
	input     textinput.Model
	viewport  viewport.Model
	turns     []turn
	citations []domain.Citation
	format    domain.AnswerFormat
	status    string
	cursor    int
	busy      bool
	ready     bool
	lastQuery string
}

// New creates a chat model over a session.
func New(ctx context.Context, s SessionPort, format domain.AnswerFormat) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, or :help"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if format == "" {
		format = domain.FormatFull
	}
	m := Model{ctx: ctx, session: s, input: ti, viewport: vp, format: format}
	m.status = m.docsStatus()
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and input boxes
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.say(roleSystem, errorStyle.Render(msg.err.Error()))
			return m, nil
		}
		m.citations = msg.answer.Citations
		m.cursor = 0
		m.lastQuery = msg.question
		m.say(roleAssistant, renderAnswer(msg.answer))
		m.status = fmt.Sprintf("%s · %s · %d sources", msg.answer.Model, msg.answer.Format, len(msg.answer.Citations))
		return m, nil
	case infoMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.say(roleSystem, errorStyle.Render(msg.err.Error()))
			return m, nil
		}
		m.say(roleSystem, msg.text)
		m.status = m.docsStatus()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(line)
		case "down":
			if len(m.citations) > 0 {
				m.cursor = (m.cursor + 1) % len(m.citations)
				m.refresh()
				return m, nil
			}
		case "up":
			if len(m.citations) > 0 {
				m.cursor = (m.cursor - 1 + len(m.citations)) % len(m.citations)
				m.refresh()
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Study Assistant")
	sub := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("answer format: " + string(m.format) + "  ·  :help for commands")
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	if m.busy {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("thinking...")
	}
	body := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + sub + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) say(r role, text string) {
	m.turns = append(m.turns, turn{role: r, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "Add documents with :add <path>, then ask a question."
	}
	var parts []string
	for _, t := range m.turns {
		switch t.role {
		case roleUser:
			parts = append(parts, userStyle.Render("you: ")+t.text)
		case roleAssistant:
			parts = append(parts, assistantStyle.Render("assistant: ")+t.text)
		default:
			parts = append(parts, systemStyle.Render(t.text))
		}
	}
	if len(m.citations) > 0 {
		c := m.citations[m.cursor]
		title := fmt.Sprintf("Source %d/%d  %s  score=%.3f  (up/down to browse)", m.cursor+1, len(m.citations), sourceName(c.Passage), c.Score)
		parts = append(parts, sourceStyle.Render(title)+"\n"+highlightBestSentence(c.Passage.Text, m.lastQuery))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) docsStatus() string {
	docs := m.session.Documents()
	if len(docs) == 0 {
		return "No documents loaded."
	}
	return fmt.Sprintf("%d documents loaded.", len(docs))
}

func renderAnswer(a domain.Answer) string {
	var b strings.Builder
	if a.LowConfidence {
		b.WriteString(warnStyle.Render("[no supporting context] "))
	}
	b.WriteString(a.Text)
	for i, c := range a.Citations {
		fmt.Fprintf(&b, "\n  [%d] %s (%.2f)", i+1, sourceName(c.Passage), c.Score)
	}
	return b.String()
}

func sourceName(p domain.Passage) string {
	if p.Label != "" {
		return p.DocumentName + ", " + p.Label
	}
	return p.DocumentName
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	systemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	warnStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
