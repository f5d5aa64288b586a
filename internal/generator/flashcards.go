package generator

import (
	"strings"

	"studyrag/internal/domain"
)

// ParseFlashcards reads "Flashcard N:" blocks with "Question:" and "Answer:"
// lines. Output without Flashcard headers is read as a plain sequence of
// Question:/Answer: pairs. At most n cards are returned.
func ParseFlashcards(text string, n int) []domain.Flashcard {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var cards []domain.Flashcard
	if parts := strings.Split(text, "Flashcard "); len(parts) > 1 {
		for _, part := range parts[1:] {
			var q, a string
			for _, line := range strings.Split(part, "\n") {
				line = strings.TrimSpace(line)
				lower := strings.ToLower(line)
				switch {
				case q == "" && strings.HasPrefix(lower, "question:"):
					q = strings.TrimSpace(line[len("question:"):])
				case a == "" && strings.HasPrefix(lower, "answer:"):
					a = strings.TrimSpace(line[len("answer:"):])
				}
			}
			if q != "" && a != "" {
				cards = append(cards, domain.Flashcard{Question: q, Answer: a})
			}
		}
	} else {
		cards = parsePairs(text)
	}
	if n > 0 && len(cards) > n {
		cards = cards[:n]
	}
	return cards
}

func parsePairs(text string) []domain.Flashcard {
	var cards []domain.Flashcard
	for {
		qi := indexFold(text, "question:")
		if qi < 0 {
			return cards
		}
		rest := text[qi+len("question:"):]
		ai := indexFold(rest, "answer:")
		if ai < 0 {
			return cards
		}
		q := strings.TrimSpace(rest[:ai])
		after := rest[ai+len("answer:"):]
		a := after
		next := indexFold(after, "question:")
		if next >= 0 {
			a = after[:next]
		}
		if a = strings.TrimSpace(a); q != "" && a != "" {
			cards = append(cards, domain.Flashcard{Question: q, Answer: a})
		}
		if next < 0 {
			return cards
		}
		text = after[next:]
	}
}

// indexFold is a case-insensitive strings.Index for an ASCII needle.
func indexFold(s, needle string) int {
	for i := 0; i+len(needle) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}
