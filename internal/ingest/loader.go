package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/lexiguard/lexiguard/pkg/file"
	"golang.org/x/text/unicode/norm"
)

// Extensions lists the file types the loader understands.
var Extensions = []string{".txt", ".md", ".markdown", ".pdf"}

// ErrUnsupported is returned for files of a type the loader cannot read.
var ErrUnsupported = errors.New("unsupported document type")

// Document is the plain text of one source file.
type Document struct {
	Path string
	Text string
}

// Load reads path and returns its text in NFC form with LF line endings.
// Markdown files are rendered to plain text and PDF pages are extracted
// as paragraphs.
func Load(path string) (*Document, error) {
	if !file.HasExt(path, Extensions...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if file.HasExt(path, ".pdf") {
		text, err := pdfText(path)
		if err != nil {
			return nil, err
		}
		return &Document{Path: path, Text: normalize([]byte(text))}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	content := normalize(data)
	if file.HasExt(path, ".md", ".markdown") {
		content, err = MarkdownToText([]byte(content))
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", path, err)
		}
	}
	return &Document{Path: path, Text: content}, nil
}

func normalize(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s)
}

// pdfText returns the plain text of every page, pages separated by a blank line.
func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d of %s: %w", i, path, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
