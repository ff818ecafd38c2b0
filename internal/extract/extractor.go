// Package extract derives the plain-text projection of a document from its raw text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stritefax2/heelixnotes/internal/models"
)

// Extractor turns raw document content into plain text for chunking.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extracted is the raw text of a file together with its content type and plain-text projection.
type Extracted struct {
	Text        string
	PlainText   string
	ContentType string
}

// Extract reads the file at path and returns its raw text and plain-text projection.
// Returns an error if the file cannot be read or its extension is not a text format.
func (e *Extractor) Extract(path string) (*Extracted, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	contentType, err := ContentTypeForExt(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	text := extractPlain(content)
	return &Extracted{
		Text:        text,
		PlainText:   e.PlainText(contentType, text),
		ContentType: contentType,
	}, nil
}

// PlainText returns the plain-text projection of text for the given content type.
// HTML is stripped to readable text; other types are returned as-is.
func (e *Extractor) PlainText(contentType, text string) string {
	if contentType == models.ContentTypeHTML || (contentType == "" && looksLikeHTML(text)) {
		return stripHTML(text)
	}
	return text
}

// ContentTypeForExt maps a file extension (with leading dot) to a document content type.
func ContentTypeForExt(ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".txt", ".text", ".rst", "":
		return models.ContentTypeText, nil
	case ".md", ".markdown":
		return models.ContentTypeMarkdown, nil
	case ".html", ".htm", ".xhtml":
		return models.ContentTypeHTML, nil
	default:
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
}
