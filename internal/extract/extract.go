// Package extract converts uploaded files into plain text by declared media
// type. Supported: PDF, Word (DOCX), and plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sentinel errors for extraction failures. Callers match with errors.Is.
var (
	// ErrUnsupportedFormat means the declared media type has no extractor.
	ErrUnsupportedFormat = errors.New("extract: unsupported file type")
	// ErrExtraction means the file was corrupt or unreadable.
	ErrExtraction = errors.New("extract: extraction failed")
	// ErrEmptyContent means extraction produced no non-whitespace text.
	// Empty documents are never indexed.
	ErrEmptyContent = errors.New("extract: no text content extracted")
)

// Media types handled by Text.
const (
	TypePDF   = "application/pdf"
	TypeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeDOC   = "application/msword"
	TypePlain = "text/plain"
)

// Supported reports whether the declared media type can be extracted.
func Supported(contentType string) bool {
	switch contentType {
	case TypePDF, TypeDOCX, TypeDOC, TypePlain:
		return true
	}
	return false
}

// Text extracts plain text from the file at path according to its declared
// media type. It returns ErrUnsupportedFormat for unknown types and
// ErrEmptyContent when the file yields only whitespace.
func Text(path, contentType string) (string, error) {
	var (
		text string
		err  error
	)
	switch contentType {
	case TypePDF:
		text, err = pdfText(path)
	case TypeDOCX, TypeDOC:
		text, err = docxText(path)
	case TypePlain:
		text, err = plainText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrExtraction, path, err)
	}
	return string(data), nil
}
