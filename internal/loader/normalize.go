package loader

import (
	"strings"
	"unicode"

	"studyrag/internal/domain"
)

// Normalize cleans whitespace section by section and rebuilds section
// offsets against the normalized text. Sections are separated by a blank
// line; sections that end up empty are dropped. Section offsets refer to the
// raw text, so invalid UTF-8 is replaced per segment after slicing.
func Normalize(p domain.Parsed) (string, []domain.Section) {
	text := p.Text
	if len(p.Sections) == 0 {
		return normalizeText(text), nil
	}

	var b strings.Builder
	var out []domain.Section
	if head := normalizeText(text[:clamp(p.Sections[0].Offset, len(text))]); head != "" {
		b.WriteString(head)
	}
	for i, s := range p.Sections {
		start := clamp(s.Offset, len(text))
		end := len(text)
		if i+1 < len(p.Sections) {
			end = clamp(p.Sections[i+1].Offset, len(text))
		}
		if end < start {
			end = start
		}
		seg := normalizeText(text[start:end])
		if seg == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		out = append(out, domain.Section{Label: s.Label, Offset: b.Len()})
		b.WriteString(seg)
	}
	return b.String(), out
}

// normalizeText unifies line endings, trims trailing spaces, collapses
// blank-line runs to a single blank line and drops leading and trailing blank lines.
func normalizeText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			if len(out) == 0 || blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
