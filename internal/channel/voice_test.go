package channel

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChatFormatterPassesThrough(t *testing.T) {
	in := "Here's what we offer:\n- **Haircut**: USD 40.00"
	if got := (ChatFormatter{}).Format(in); got != in {
		t.Fatalf("chat formatter must not touch the text, got %q", got)
	}
}

func TestVoiceStripsMarkdown(t *testing.T) {
	got := (VoiceFormatter{}).Format("We offer:\n- **Haircut** for *everyone*\n- **Massage**")
	if strings.ContainsAny(got, "*-") {
		t.Fatalf("markdown survived: %q", got)
	}
	if !strings.Contains(got, "Haircut") || !strings.Contains(got, "Massage") {
		t.Fatalf("content lost: %q", got)
	}
}

func TestVoiceCollapsesNewlines(t *testing.T) {
	got := (VoiceFormatter{}).Format("First line\nSecond line")
	if strings.Contains(got, "\n") {
		t.Fatalf("newline survived: %q", got)
	}
	if !strings.Contains(got, "First line. Second line") {
		t.Fatalf("expected spoken pause, got %q", got)
	}
}

func TestVoiceShortRepliesUntouchedInLength(t *testing.T) {
	in := "You're all set! See you Monday at 10 AM."
	if got := (VoiceFormatter{}).Format(in); got != in {
		t.Fatalf("short reply changed: %q", got)
	}
}

func TestVoiceLongRepliesCutAtSentenceBoundary(t *testing.T) {
	sentence := "This is a sentence that pads the reply out to something quite long indeed."
	in := strings.Repeat(sentence+" ", 8)

	got := (VoiceFormatter{}).Format(in)
	if len(got) > voiceTargetLen {
		t.Fatalf("reply too long for voice: %d chars", len(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Fatalf("cut mid-sentence: %q", got)
	}
}

func TestVoiceSingleOverlongSentenceHardCuts(t *testing.T) {
	in := strings.Repeat("word ", 100) // no sentence punctuation at all
	got := (VoiceFormatter{}).Format(in)
	if len(got) > voiceTargetLen {
		t.Fatalf("overlong sentence not cut: %d chars", len(got))
	}
}

func TestVoiceHardCutKeepsRunesWhole(t *testing.T) {
	in := strings.Repeat("你", 150) // 450 bytes, no sentence punctuation
	got := (VoiceFormatter{}).Format(in)
	if !utf8.ValidString(got) {
		t.Fatalf("cut split a rune: %q", got)
	}
	if len(got) == 0 || len(got) > voiceTargetLen {
		t.Fatalf("cut length = %d", len(got))
	}
}

func TestForChannel(t *testing.T) {
	if _, ok := ForChannel("VOICE").(VoiceFormatter); !ok {
		t.Fatal("VOICE should map to the voice formatter")
	}
	if _, ok := ForChannel("CHAT").(ChatFormatter); !ok {
		t.Fatal("CHAT should map to the chat formatter")
	}
}
