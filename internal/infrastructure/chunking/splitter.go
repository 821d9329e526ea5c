package chunking

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Splitter cuts text into overlapping rune windows, preferring to end a
// window on a paragraph, line, sentence or word boundary.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = boundaryBefore(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// boundaryBefore returns the best cut position in (start+size/2, end].
// Without a boundary in that range the hard end is kept.
func boundaryBefore(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	best := map[int]int{}
	for i := end; i > floor; i-- {
		prev := runes[i-1]
		switch {
		case prev == '\n' && i >= 2 && runes[i-2] == '\n':
			return i
		case prev == '\n':
			if _, ok := best[1]; !ok {
				best[1] = i
			}
		case unicode.IsSpace(prev) && i >= 2 && strings.ContainsRune(".!?", runes[i-2]):
			if _, ok := best[2]; !ok {
				best[2] = i
			}
		case unicode.IsSpace(prev):
			if _, ok := best[3]; !ok {
				best[3] = i
			}
		}
	}
	for rank := 1; rank <= 3; rank++ {
		if cut, ok := best[rank]; ok {
			return cut
		}
	}
	return end
}
