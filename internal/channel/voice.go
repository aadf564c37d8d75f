package channel

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Formatter adapts an assistant reply to the delivery channel.
type Formatter interface {
	Format(text string) string
}

// ChatFormatter passes replies through untouched; chat clients render
// markdown themselves.
type ChatFormatter struct{}

func (ChatFormatter) Format(text string) string { return text }

// VoiceFormatter rewrites a reply for text-to-speech: markdown stripped,
// line breaks spoken as pauses, and long replies cut at a sentence boundary.
type VoiceFormatter struct{}

const (
	// Replies at or under this length are spoken in full.
	voiceTriggerLen = 300
	// Longer replies accumulate whole sentences up to this budget.
	voiceTargetLen = 250
)

var (
	boldRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe  = regexp.MustCompile(`\*(.*?)\*`)
	bulletRe  = regexp.MustCompile(`(?m)^\s*[-*•]\s+`)
	newlineRe = regexp.MustCompile(`\n+`)
	spacesRe  = regexp.MustCompile(`\s{2,}`)
)

func (VoiceFormatter) Format(text string) string {
	out := boldRe.ReplaceAllString(text, "$1")
	out = italicRe.ReplaceAllString(out, "$1")
	out = bulletRe.ReplaceAllString(out, "")
	out = newlineRe.ReplaceAllString(out, ". ")
	out = spacesRe.ReplaceAllString(out, " ")
	out = strings.ReplaceAll(out, "... ", ". ")
	out = strings.ReplaceAll(out, ".. ", ". ")
	out = strings.TrimSpace(out)

	if len(out) <= voiceTriggerLen {
		return out
	}
	return truncateAtSentence(out, voiceTargetLen)
}

// truncateAtSentence keeps whole sentences while they fit the budget. When
// even the first sentence is too long, it hard-cuts at the budget.
func truncateAtSentence(text string, budget int) string {
	sentences := splitSentences(text)
	var sb strings.Builder
	for _, s := range sentences {
		if sb.Len() > 0 && sb.Len()+1+len(s) > budget {
			break
		}
		if sb.Len() == 0 && len(s) > budget {
			cut := budget
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			return strings.TrimSpace(s[:cut])
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	return strings.TrimSpace(sb.String())
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]?`)

func splitSentences(text string) []string {
	raw := sentenceRe.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ForChannel picks the formatter for a conversation channel value.
func ForChannel(ch string) Formatter {
	if ch == "VOICE" {
		return VoiceFormatter{}
	}
	return ChatFormatter{}
}
