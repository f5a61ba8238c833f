package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitter(t *testing.T) {
	s, err := NewSplitter(0, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, s.Size)
	assert.Equal(t, DefaultChunkOverlap, s.Overlap)

	_, err = NewSplitter(10, 10)
	assert.Error(t, err)
}

func TestSplitter_Split(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "short text is one chunk",
			size: 1000, overlap: 200,
			text: "  hello world  ",
			want: []string{"hello world"},
		},
		{
			name: "words with overlap",
			size: 10, overlap: 5,
			text: "aaaa bbbb cccc dddd",
			want: []string{"aaaa bbbb", "bbbb cccc", "cccc dddd"},
		},
		{
			name: "paragraphs first",
			size: 20, overlap: 0,
			text: "First para.\n\nSecond para.",
			want: []string{"First para.", "Second para."},
		},
		{
			name: "characters as last resort",
			size: 5, overlap: 0,
			text: "abcdefghij",
			want: []string{"abcde", "fghij"},
		},
		{
			name: "lengths count runes",
			size: 12, overlap: 0,
			text: "ééééé ééééé",
			want: []string{"ééééé ééééé"},
		},
		{
			name: "whitespace only",
			size: 10, overlap: 0,
			text: "   \n\n  ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplitter(tt.size, tt.overlap)
			require.NoError(t, err)
			got, err := s.Split(tt.text)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_ChunksNeverExceedSize(t *testing.T) {
	var b strings.Builder
	for i := range 300 {
		b.WriteString("Section ")
		b.WriteString(strings.Repeat("x", i%17+1))
		if i%9 == 0 {
			b.WriteString(".\n\n")
		} else if i%5 == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString(strings.Repeat("y", 250))

	s, err := NewSplitter(100, 20)
	require.NoError(t, err)
	chunks, err := s.Split(b.String())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.Equal(t, strings.TrimSpace(c), c)
		assert.NotEmpty(t, c)
	}
}
