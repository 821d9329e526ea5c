package chunking

import (
	"strings"
	"testing"
)

func TestSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 1000 || s.Overlap != 0 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	s = NewSplitter(100, 150)
	if s.Overlap != 20 {
		t.Fatalf("expected overlap clamp to 20, got %d", s.Overlap)
	}
}

func TestSplitterShortTextIsOneChunk(t *testing.T) {
	got := NewSplitter(1000, 200).Split("  Carts hold items.  ")
	if len(got) != 1 || got[0] != "Carts hold items." {
		t.Fatalf("unexpected chunks: %q", got)
	}
	if NewSplitter(1000, 200).Split("") != nil {
		t.Fatalf("expected nil for empty text")
	}
}

func TestSplitterPrefersParagraphBoundary(t *testing.T) {
	first := strings.Repeat("a", 70)
	second := strings.Repeat("b", 70)
	got := NewSplitter(100, 0).Split(first + "\n\n" + second)

	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != first || got[1] != second {
		t.Fatalf("expected split on paragraph, got %q", got)
	}
}

func TestSplitterOverlapAndCoverage(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")
	got := NewSplitter(100, 20).Split(text)

	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if n := len([]rune(chunk)); n > 100 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
		if strings.HasPrefix(chunk, "ord") || strings.HasSuffix(chunk, "wor") {
			t.Fatalf("chunk %d split inside a word: %q", i, chunk)
		}
	}
	if !strings.HasSuffix(text, got[len(got)-1]) {
		t.Fatalf("last chunk must reach the end of the text")
	}
}

func TestSplitterHardCutWithoutBoundaries(t *testing.T) {
	got := NewSplitter(10, 0).Split(strings.Repeat("x", 25))
	if len(got) != 3 || got[0] != strings.Repeat("x", 10) || got[2] != "xxxxx" {
		t.Fatalf("unexpected chunks: %q", got)
	}
}
