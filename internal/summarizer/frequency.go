// Package summarizer ranks sentences by word frequency. It backs document
// summaries and the offline extractive language model.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"studyrag/internal/domain"
)

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	if len(Sentences(text)) == 0 {
		return strings.TrimSpace(text), nil
	}
	return strings.Join(s.Rank(text, "", maxSentences), " "), nil
}

// Rank picks the n best sentences of text and returns them in their original
// order. Sentences sharing words with query get a boost.
func (s *FrequencySummarizer) Rank(text, query string, n int) []string {
	sentences := Sentences(text)
	if len(sentences) == 0 || n <= 0 {
		return nil
	}
	freq := s.frequencies(sentences)
	qset := map[string]struct{}{}
	for _, tok := range s.Terms(query) {
		qset[tok] = struct{}{}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			sscore += freq[tok]
			if _, ok := qset[tok]; ok {
				sscore += 2
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if n > len(scores) {
		n = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return out
}

// Keyword returns the most frequent non-stopword of sentence across text,
// skipping words listed in exclude. Empty when nothing qualifies.
func (s *FrequencySummarizer) Keyword(text, sentence, exclude string) string {
	freq := s.frequencies(Sentences(text))
	skip := map[string]struct{}{}
	for _, tok := range s.Terms(exclude) {
		skip[tok] = struct{}{}
	}
	best, bestScore := "", -1.0
	for _, tok := range s.Terms(sentence) {
		if _, ok := skip[tok]; ok {
			continue
		}
		// longer words break frequency ties
		score := freq[tok] + float64(len(tok))/1000
		if score > bestScore {
			best, bestScore = tok, score
		}
	}
	return best
}

// Terms returns the lower-cased content words of text.
func (s *FrequencySummarizer) Terms(text string) []string {
	var out []string
	for _, tok := range s.tokens(text) {
		if _, ok := s.stopwords[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Sentences splits text into trimmed sentences. Line breaks end a sentence.
func Sentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	out := raw[:0]
	for _, r := range raw {
		if t := strings.TrimSpace(r); t != "" && strings.ContainsFunc(t, isWordRune) {
			out = append(out, t)
		}
	}
	return out
}

func (s *FrequencySummarizer) frequencies(sentences []string) map[string]float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.Terms(sent) {
			freq[tok]++
		}
	}
	// Normalize frequencies
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	return freq
}

func (s *FrequencySummarizer) tokens(text string) []string {
	lower := strings.ToLower(text)
	return s.tokenPattern.FindAllString(lower, -1)
}

func isWordRune(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "do", "does", "did", "its", "their", "there", "has", "have", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
