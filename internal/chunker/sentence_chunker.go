package chunker

import (
	"regexp"

	"studyrag/internal/domain"
)

// SentenceChunker packs whole sentences into passages of at most targetSize
// runes. A sentence longer than targetSize is hard-split. The next passage
// restarts at the earliest sentence of the previous one whose tail fits in
// overlap runes and still leaves room for the following sentence; otherwise
// it starts right after the previous passage.
type SentenceChunker struct {
	targetSize int
	overlap    int
	boundary   *regexp.Regexp
}

// NewSentenceChunker fails with InvalidChunkConfigError unless 0 <= overlap < targetSize.
func NewSentenceChunker(targetSize, overlap int) (*SentenceChunker, error) {
	if err := validate(targetSize, overlap); err != nil {
		return nil, err
	}
	return &SentenceChunker{
		targetSize: targetSize,
		overlap:    overlap,
		boundary:   regexp.MustCompile(`[.!?]+["')\]]*\s+|\n\s*\n`),
	}, nil
}

// span is a half-open range of rune indexes.
type span struct{ start, end int }

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Passage, error) {
	if document.Content == "" {
		return nil, nil
	}
	offs := runeOffsets(document.Content)
	spans := c.sentences(document.Content, offs)

	var passages []domain.Passage
	i := 0
	for i < len(spans) {
		j := i
		for j+1 < len(spans) && spans[j+1].end-spans[i].start <= c.targetSize {
			j++
		}
		passages = append(passages, newPassage(document, len(passages), offs[spans[i].start], offs[spans[j].end]))
		if j == len(spans)-1 {
			break
		}
		next := j + 1
		for k := i + 1; k <= j; k++ {
			if spans[j].end-spans[k].start <= c.overlap && spans[j+1].end-spans[k].start <= c.targetSize {
				next = k
				break
			}
		}
		i = next
	}
	return passages, nil
}

// sentences partitions the text into sentence spans no longer than targetSize.
func (c *SentenceChunker) sentences(text string, offs []int) []span {
	// byte offset -> rune index
	runeAt := make(map[int]int, len(offs))
	for i, o := range offs {
		runeAt[o] = i
	}
	var spans []span
	prev := 0
	for _, m := range c.boundary.FindAllStringIndex(text, -1) {
		end := runeAt[m[1]]
		spans = c.appendSplit(spans, prev, end)
		prev = end
	}
	return c.appendSplit(spans, prev, len(offs)-1)
}

func (c *SentenceChunker) appendSplit(spans []span, start, end int) []span {
	for start < end {
		stop := start + c.targetSize
		if stop > end {
			stop = end
		}
		spans = append(spans, span{start, stop})
		start = stop
	}
	return spans
}
