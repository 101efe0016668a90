package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX extracts paragraph text from word/document.xml. Only text runs are
// collected; tables, headers and footers are ignored.
func DOCX(data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("failed to open docx: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return Result{}, fmt.Errorf("docx has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read document.xml: %w", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return Result{}, err
	}

	text := strings.Join(paragraphs, "\n\n")
	if text == "" {
		return Result{}, ErrNoText
	}
	return Result{Text: text}, nil
}

// docxParagraphs streams document.xml and returns one string per non-empty
// <w:p> paragraph, taking character data from <w:t> runs.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br", "cr":
				current.WriteString(" ")
			case "tab":
				current.WriteString(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return paragraphs, nil
}
