package domain

import (
	"strings"
	"testing"
)

func TestClampHighlightShortStringsPassThrough(t *testing.T) {
	if got := ClampHighlight("All quiet."); got != "All quiet." {
		t.Fatalf("ClampHighlight() = %q", got)
	}
	if got := ClampHighlight("trailing space.   \n"); got != "trailing space." {
		t.Fatalf("ClampHighlight() = %q", got)
	}
	if got := ClampHighlight(""); got != "" {
		t.Fatalf("ClampHighlight(empty) = %q", got)
	}
}

func TestClampHighlightExactLimitUntouched(t *testing.T) {
	s := strings.Repeat("x", HighlightLimit)
	if got := ClampHighlight(s); got != s {
		t.Fatal("string at the limit must not be truncated")
	}
}

func TestClampHighlightTruncatesWithMarker(t *testing.T) {
	s := strings.Repeat("x", HighlightLimit+50)
	got := ClampHighlight(s)
	runes := []rune(got)
	if len(runes) != HighlightLimit {
		t.Fatalf("clamped length = %d runes", len(runes))
	}
	if runes[len(runes)-1] != '…' {
		t.Fatalf("clamped string ends with %q", runes[len(runes)-1])
	}
}

func TestClampHighlightCountsRunesNotBytes(t *testing.T) {
	// Multibyte runes stay whole; no partial UTF-8 sequences at the cut.
	s := strings.Repeat("ö", HighlightLimit+10)
	got := ClampHighlight(s)
	runes := []rune(got)
	if len(runes) != HighlightLimit {
		t.Fatalf("clamped length = %d runes", len(runes))
	}
	for _, r := range runes[:len(runes)-1] {
		if r != 'ö' {
			t.Fatalf("unexpected rune %q in clamped output", r)
		}
	}
}
