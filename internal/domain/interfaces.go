package domain

import (
	"context"
	"io"
	"time"
)

// Format tags the kind of source a document was loaded from.
type Format string

const (
	FormatText        Format = "text"
	FormatPDF         Format = "pdf"
	FormatDOCX        Format = "docx"
	FormatSpreadsheet Format = "spreadsheet"
	FormatImage       Format = "image"
)

// Section marks where a page, sheet or similar unit starts inside Document.Content.
type Section struct {
	Label  string
	Offset int
}

// Document represents a single source file loaded into the session.
type Document struct {
	ID        string
	Name      string
	Path      string
	Format    Format
	Content   string
	Sections  []Section
	CreatedAt time.Time
}

// LabelAt returns the label of the section containing the byte offset.
func (d Document) LabelAt(offset int) string {
	label := ""
	for _, s := range d.Sections {
		if s.Offset > offset {
			break
		}
		label = s.Label
	}
	return label
}

// Passage is a bounded span of a document and the unit of retrieval.
// Text is always Content[Start:End] of the owning document.
type Passage struct {
	ID           string
	DocumentID   string
	DocumentName string
	Text         string
	Position     int
	Start        int
	End          int
	Label        string
}

// Embedding is the vector computed for one passage.
type Embedding struct {
	PassageID string
	Model     string
	Vector    []float32
}

// Query is the transient retrieval request.
type Query struct {
	Text       string
	DocumentID string
}

// SearchFilter restricts a similarity search.
type SearchFilter struct {
	DocumentID string
}

// ScoredPassage is a matching passage with its similarity score.
type ScoredPassage struct {
	Passage Passage
	Score   float64
}

// RetrievalResult holds ranked passages, highest score first.
type RetrievalResult struct {
	Items []ScoredPassage
}

// Len returns the number of ranked passages.
func (r RetrievalResult) Len() int { return len(r.Items) }

// Empty reports whether nothing was retrieved.
func (r RetrievalResult) Empty() bool { return len(r.Items) == 0 }

// Citation points at a passage used as grounding context.
type Citation struct {
	Passage Passage
	Score   float64
}

// AnswerFormat selects the style of generated answers.
type AnswerFormat string

const (
	FormatFull         AnswerFormat = "full"
	FormatShortSummary AnswerFormat = "short_summary"
	FormatBulletPoints AnswerFormat = "bullet_points"
	FormatLongAnswer   AnswerFormat = "long_answer"
	FormatOneWord      AnswerFormat = "one_word"
	FormatShortAnswer  AnswerFormat = "short_answer"
)

// Answer is the generated reply plus the passages it was grounded on.
// LowConfidence is set when no supporting context was available.
type Answer struct {
	Text          string
	Citations     []Citation
	LowConfidence bool
	Format        AnswerFormat
	Model         string
}

// Notes are study notes generated for a topic.
type Notes struct {
	Topic         string
	Text          string
	Citations     []Citation
	LowConfidence bool
}

// Flashcard is a single question/answer pair.
type Flashcard struct {
	Question string
	Answer   string
}

// Embedder converts text into fixed-length vectors.
// Name identifies the model; vectors produced for the same Name always have Dimension entries.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits documents into passages suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Passage, error)
}

// Parser extracts plain text from one source format.
type Parser interface {
	Parse(ctx context.Context, name string, r io.ReaderAt, size int64) (Parsed, error)
}

// Parsed is the raw output of a Parser before normalization.
type Parsed struct {
	Text     string
	Sections []Section
}

// Task tells a language model what kind of output a prompt asks for.
type Task string

const (
	TaskAnswer     Task = "answer"
	TaskNotes      Task = "notes"
	TaskFlashcards Task = "flashcards"
)

// Prompt is a single generation request. System and User are the rendered
// messages; Question, Context and Count carry the same request in structured
// form for models that do not read free text.
type Prompt struct {
	Task        Task
	Format      AnswerFormat
	System      string
	User        string
	Question    string
	Context     []string
	Count       int
	MaxTokens   int
	Temperature float64
}

// LanguageModel produces text for a prompt.
type LanguageModel interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
