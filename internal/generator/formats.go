package generator

import (
	"fmt"
	"strings"

	"studyrag/internal/domain"
)

type formatSpec struct {
	instruction string
	maxTokens   int
}

const persona = "You are a helpful AI study assistant."

var formats = map[domain.AnswerFormat]formatSpec{
	domain.FormatFull: {
		instruction: "Answer the question in a friendly, conversational tone, providing detailed information from the context as if explaining to a curious student.",
		maxTokens:   2048,
	},
	domain.FormatShortSummary: {
		instruction: "Provide a concise summary of the key points from the context in 2-3 sentences, in a friendly and engaging way.",
		maxTokens:   1024,
	},
	domain.FormatBulletPoints: {
		instruction: "Extract and present the main information from the context in clear bullet points, making it easy to read.",
		maxTokens:   1024,
	},
	domain.FormatLongAnswer: {
		instruction: "Provide a long and detailed answer, elaborating on all relevant aspects from the context in a conversational manner.",
		maxTokens:   2048,
	},
	domain.FormatOneWord: {
		instruction: "Provide a single word answer based on the context.",
		maxTokens:   20,
	},
	domain.FormatShortAnswer: {
		instruction: "Provide a brief answer in one or two sentences based on the context, in a friendly tone.",
		maxTokens:   1024,
	},
}

// Formats lists the supported answer formats in display order.
func Formats() []domain.AnswerFormat {
	return []domain.AnswerFormat{
		domain.FormatFull,
		domain.FormatShortSummary,
		domain.FormatBulletPoints,
		domain.FormatLongAnswer,
		domain.FormatOneWord,
		domain.FormatShortAnswer,
	}
}

// ParseFormat accepts a format name such as "bullet_points" or "bullet-points".
// The empty string selects the full format.
func ParseFormat(s string) (domain.AnswerFormat, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if s == "" {
		return domain.FormatFull, nil
	}
	f := domain.AnswerFormat(s)
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("unknown answer format %q (want one of %v)", s, Formats())
	}
	return f, nil
}

func specFor(f domain.AnswerFormat) (domain.AnswerFormat, formatSpec) {
	if s, ok := formats[f]; ok {
		return f, s
	}
	return domain.FormatFull, formats[domain.FormatFull]
}
