package tgui

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDataRoundTrip(t *testing.T) {
	data := Data("groups", "toggle", "-100123")
	scope, action, payload := ParseData(data)
	if scope != "groups" || action != "toggle" || payload != "-100123" {
		t.Fatalf("round trip = %q / %q / %q", scope, action, payload)
	}

	// Payload may contain the separator itself.
	_, _, payload = ParseData(Data("g", "set", "-1:30m"))
	if payload != "-1:30m" {
		t.Fatalf("payload = %q", payload)
	}

	if d := Data("g", "back", ""); d != "g:back" {
		t.Fatalf("empty payload = %q", d)
	}
}

func TestEscaping(t *testing.T) {
	if got := Esc("<a&b>").String(); got != "&lt;a&amp;b&gt;" {
		t.Fatalf("Esc = %q", got)
	}
	if got := ExpandableQuote("x<y").String(); got != "<blockquote expandable>x&lt;y</blockquote>" {
		t.Fatalf("ExpandableQuote = %q", got)
	}
	if got := Spoiler("hidden").String(); got != `<span class="tg-spoiler">hidden</span>` {
		t.Fatalf("Spoiler = %q", got)
	}
}

func TestTruncRunes(t *testing.T) {
	if got := TruncRunes("héllo", 3); got != "hél…" {
		t.Fatalf("TruncRunes = %q", got)
	}
	if got := TruncRunes("hi", 10); got != "hi" {
		t.Fatalf("short string modified: %q", got)
	}
}

func TestSplitMessageShort(t *testing.T) {
	chunks := SplitMessage("hello", 100)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("线line one\n", 30)
	chunks := SplitMessage(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks")
	}
	for _, c := range chunks {
		if utf8.RuneCountInString(c) > 100 {
			t.Fatalf("chunk exceeds limit: %d runes", utf8.RuneCountInString(c))
		}
		if strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk keeps trailing newline")
		}
	}
	joined := strings.Join(chunks, "\n") + "\n"
	if joined != text {
		t.Fatalf("content lost in split")
	}
}

func TestSplitMessageNoNewlines(t *testing.T) {
	text := strings.Repeat("字", 250)
	chunks := SplitMessage(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if utf8.RuneCountInString(chunks[0]) != 100 {
		t.Fatalf("first chunk = %d runes", utf8.RuneCountInString(chunks[0]))
	}
}
