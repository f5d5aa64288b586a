package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"studyrag/internal/domain"
	"studyrag/internal/generator"
	"studyrag/internal/session"
)

const helpText = `Commands:
  :add <path>      load a document
  :rm <id|name>    remove a document
  :docs            list loaded documents
  :reset           remove everything
  :format <name>   answer format (full, short_summary, bullet_points, long_answer, one_word, short_answer)
  :notes <topic>   study notes on a topic
  :cards [id|name] flashcards for one document or all
  :quit            exit
Anything else is a question.`

type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

type infoMsg struct {
	text string
	err  error
}

// parseCommand splits ":name rest" lines. ok is false for plain questions.
func parseCommand(line string) (name, arg string, ok bool) {
	if !strings.HasPrefix(line, ":") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(strings.TrimPrefix(line, ":"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	name, arg, isCmd := parseCommand(line)
	if !isCmd {
		m.say(roleUser, line)
		m.busy = true
		return m, m.ask(line)
	}
	m.say(roleUser, systemStyle.Render(line))
	switch name {
	case "q", "quit", "exit":
		return m, tea.Quit
	case "help", "h":
		m.say(roleSystem, helpText)
	case "docs":
		m.say(roleSystem, listDocuments(m.session.Documents()))
	case "format":
		f, err := generator.ParseFormat(arg)
		if err != nil {
			m.say(roleSystem, errorStyle.Render(err.Error()))
			break
		}
		m.format = f
		m.say(roleSystem, "answer format set to "+string(f))
	case "add":
		if arg == "" {
			m.say(roleSystem, errorStyle.Render("usage: :add <path>"))
			break
		}
		m.busy = true
		return m, m.add(arg)
	case "rm":
		doc, err := m.session.Document(arg)
		if err != nil {
			m.say(roleSystem, errorStyle.Render(err.Error()))
			break
		}
		m.busy = true
		return m, m.remove(doc)
	case "reset":
		m.citations = nil
		m.busy = true
		return m, m.reset()
	case "notes":
		if arg == "" {
			m.say(roleSystem, errorStyle.Render("usage: :notes <topic>"))
			break
		}
		m.busy = true
		return m, m.notes(arg)
	case "cards":
		id := ""
		if arg != "" {
			doc, err := m.session.Document(arg)
			if err != nil {
				m.say(roleSystem, errorStyle.Render(err.Error()))
				break
			}
			id = doc.ID
		}
		m.busy = true
		return m, m.cards(id)
	default:
		m.say(roleSystem, errorStyle.Render(fmt.Sprintf("unknown command :%s (try :help)", name)))
	}
	return m, nil
}

func (m Model) ask(q string) tea.Cmd {
	ctx, s, format := m.ctx, m.session, m.format
	return func() tea.Msg {
		ans, err := s.Ask(ctx, q, session.WithFormat(format))
		return answerMsg{question: q, answer: ans, err: err}
	}
}

func (m Model) add(path string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		doc, err := s.AddDocument(ctx, path)
		if err != nil {
			return infoMsg{err: err}
		}
		return infoMsg{text: fmt.Sprintf("added %s (%s, id %s)", doc.Name, doc.Format, doc.ID)}
	}
}

func (m Model) remove(doc domain.Document) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		if err := s.RemoveDocument(ctx, doc.ID); err != nil {
			return infoMsg{err: err}
		}
		return infoMsg{text: "removed " + doc.Name}
	}
}

func (m Model) reset() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		if err := s.Reset(ctx); err != nil {
			return infoMsg{err: err}
		}
		return infoMsg{text: "session cleared"}
	}
}

func (m Model) notes(topic string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		n, err := s.Notes(ctx, topic)
		if err != nil {
			return infoMsg{err: err}
		}
		text := "Notes: " + n.Topic + "\n" + n.Text
		if n.LowConfidence {
			text = warnStyle.Render("[no supporting context] ") + n.Text
		}
		return infoMsg{text: text}
	}
}

func (m Model) cards(documentID string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		cards, err := s.Flashcards(ctx, documentID, 5)
		if err != nil {
			return infoMsg{err: err}
		}
		return infoMsg{text: renderCards(cards)}
	}
}

func listDocuments(docs []domain.Document) string {
	if len(docs) == 0 {
		return "No documents loaded."
	}
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-30s %-11s %s chars", d.ID[:min(8, len(d.ID))], d.Name, d.Format, strconv.Itoa(len([]rune(d.Content))))
	}
	return b.String()
}

func renderCards(cards []domain.Flashcard) string {
	if len(cards) == 0 {
		return "No flashcards could be generated."
	}
	var b strings.Builder
	for i, c := range cards {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Flashcard %d\n  Q: %s\n  A: %s", i+1, c.Question, c.Answer)
	}
	return b.String()
}
