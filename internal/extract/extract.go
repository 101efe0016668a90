// Package extract pulls plain text out of uploaded documents for the
// single-file conversion path and the estimate endpoint.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/narrio/narrio/internal/pdfread"
	"github.com/simp-lee/epub"
)

var (
	// ErrUnsupportedType is returned for extensions other than pdf, epub
	// and docx.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrNoText is returned when a document parses but yields no text.
	ErrNoText = errors.New("no extractable text found in document")
)

// Result is extracted document text. PageCount is zero for formats without
// pages.
type Result struct {
	Text      string
	PageCount int
}

// Supported reports whether the filename's extension can be extracted.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".epub", ".docx":
		return true
	}
	return false
}

// Text extracts the full text of a document, dispatching on the filename's
// extension.
func Text(data []byte, filename string) (Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDF(data)
	case ".epub":
		return EPUB(data)
	case ".docx":
		return DOCX(data)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
}

// PDF extracts every page's text, blank-line separated per page.
func PDF(data []byte) (Result, error) {
	r, err := pdfread.NewReader(data)
	if err != nil {
		return Result{}, err
	}

	var pages []string
	for p := 0; p < r.PageCount(); p++ {
		if t := r.PageText(p); t != "" {
			pages = append(pages, t)
		}
	}
	text := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if text == "" {
		return Result{}, ErrNoText
	}
	return Result{Text: text, PageCount: r.PageCount()}, nil
}

// EPUB extracts the text of all content spine items in reading order.
func EPUB(data []byte) (Result, error) {
	book, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("failed to open epub: %w", err)
	}
	defer book.Close()

	var parts []string
	for _, ch := range book.ContentChapters() {
		if !ch.Linear {
			continue
		}
		if t, err := ch.TextContent(); err == nil && strings.TrimSpace(t) != "" {
			parts = append(parts, strings.TrimSpace(t))
		}
	}
	text := strings.Join(parts, "\n\n")
	if text == "" {
		return Result{}, ErrNoText
	}
	return Result{Text: text}, nil
}
