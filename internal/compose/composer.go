// Package compose turns a selected article into publishable text via a
// chat-completions call, with a hard length ceiling and a fixed fallback so
// the pipeline always has something to post.
package compose

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"postpilot/internal/news"
)

// MaxLen is the hard ceiling on published text, in characters. Longer
// generations are cut and marked with an ellipsis.
const MaxLen = 200

// FallbackText is the pre-approved string published whenever generation
// fails or produces nothing usable.
const FallbackText = "🚀 Exciting news coming soon! Stay tuned for updates. #Innovation #ComingSoon 🔥"

// GenerateFunc produces text for a prompt. Implementations may fail; the
// composer absorbs any failure.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// BuildPrompt renders the deterministic generation prompt for a candidate.
func BuildPrompt(c news.Candidate) string {
	var sb strings.Builder
	sb.WriteString("Generate an attention-grabbing post in English for marketing purposes. ")
	sb.WriteString("Use emojis strategically. Must be under 200 characters and compelling. ")
	sb.WriteString("Make it stand out. Follow the content:\n\n")
	sb.WriteString(c.Title)
	if c.Description != "" {
		sb.WriteString("\n\n")
		sb.WriteString(c.Description)
	}
	if c.Source != "" {
		fmt.Fprintf(&sb, "\n\nSource: %s", c.Source)
	}
	if c.URL != "" {
		fmt.Fprintf(&sb, "\nURL: %s", c.URL)
	}
	return sb.String()
}

// Compose generates post text for the candidate. Any generation failure,
// including an empty result, yields FallbackText; the result is always
// non-empty and at most MaxLen characters.
func Compose(ctx context.Context, c news.Candidate, gen GenerateFunc, log *zap.Logger) string {
	if log == nil {
		log = zap.NewNop()
	}

	text, err := gen(ctx, BuildPrompt(c))
	if err != nil {
		log.Warn("text generation failed, using fallback", zap.Error(err))
		return FallbackText
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.Warn("text generation returned nothing, using fallback")
		return FallbackText
	}
	return Truncate(text, MaxLen)
}

// Truncate cuts s to at most max characters, replacing the tail with "..."
// when a cut happens.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
