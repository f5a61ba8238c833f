package ingest

import (
	"fmt"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most Size runes, preferring
// paragraph, then line, then word boundaries. Consecutive chunks share up to
// Overlap runes of trailing context.
type Splitter struct {
	Size    int
	Overlap int

	splitter textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Splitter{
		Size:    size,
		Overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(DefaultSeparators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Split returns the trimmed, non-empty chunks of text.
func (s *Splitter) Split(text string) ([]string, error) {
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	ret := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			ret = append(ret, c)
		}
	}
	return ret, nil
}
