// Package chunker splits documents into overlapping passages.
// Sizes are counted in runes. Every passage text is an exact slice of the
// document content and consecutive passages touch or overlap, so the
// passages together cover every character of the document.
package chunker

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"studyrag/internal/domain"
)

const (
	TypeWindow   = "window"
	TypeSentence = "sentence"
)

// New builds the chunker named by kind.
func New(kind string, targetSize, overlap int) (domain.Chunker, error) {
	switch kind {
	case TypeWindow, "":
		return NewWindowChunker(targetSize, overlap)
	case TypeSentence:
		return NewSentenceChunker(targetSize, overlap)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", kind)
	}
}

func validate(targetSize, overlap int) error {
	if targetSize <= 0 || overlap < 0 || overlap >= targetSize {
		return &domain.InvalidChunkConfigError{TargetSize: targetSize, Overlap: overlap}
	}
	return nil
}

// WindowChunker cuts fixed windows of targetSize runes that advance by
// targetSize-overlap.
type WindowChunker struct {
	targetSize int
	overlap    int
}

// NewWindowChunker fails with InvalidChunkConfigError unless 0 <= overlap < targetSize.
func NewWindowChunker(targetSize, overlap int) (*WindowChunker, error) {
	if err := validate(targetSize, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{targetSize: targetSize, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Passage, error) {
	if document.Content == "" {
		return nil, nil
	}
	offs := runeOffsets(document.Content)
	n := len(offs) - 1
	step := c.targetSize - c.overlap

	var passages []domain.Passage
	for start := 0; ; start += step {
		end := start + c.targetSize
		if end > n {
			end = n
		}
		passages = append(passages, newPassage(document, len(passages), offs[start], offs[end]))
		if end == n {
			break
		}
	}
	return passages, nil
}

// runeOffsets returns the byte offset of every rune plus len(s).
func runeOffsets(s string) []int {
	offs := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		offs = append(offs, i)
	}
	return append(offs, len(s))
}

func newPassage(document domain.Document, position, start, end int) domain.Passage {
	return domain.Passage{
		ID:           document.ID + ":" + strconv.Itoa(position),
		DocumentID:   document.ID,
		DocumentName: document.Name,
		Text:         document.Content[start:end],
		Position:     position,
		Start:        start,
		End:          end,
		Label:        document.LabelAt(start),
	}
}
