// Package analyzer recovers the chapter structure of a book. For PDFs it
// runs a multi-pass pipeline over the printed table of contents, font-size
// heading detection and the embedded outline, with fixed page chunks as the
// last resort. EPUBs are split along their spine.
package analyzer

import (
	"fmt"
	"log"
	"strings"

	"github.com/narrio/narrio/internal/pdfread"
	"github.com/narrio/narrio/internal/textproc"
	"github.com/narrio/narrio/pkg/types"
)

// Detection method names reported to clients.
const (
	MethodTOC          = "toc"
	MethodHeadings     = "headings"
	MethodAutoSections = "auto_sections"
	MethodEPUBSpine    = "epub_spine"
	MethodManual       = "manual"
)

// Minimum cleaned word counts per detection path. Shorter "chapters" are
// almost always artifacts (blank section dividers, copyright pages).
const (
	minWordsTOC      = 30
	minWordsOutline  = 50
	minWordsHeadings = 100
)

// DefaultMaxChapters caps analyzer output; longer books are truncated.
const DefaultMaxChapters = 60

// Analyzer splits documents into chapters.
type Analyzer struct {
	maxChapters int
}

// New returns an Analyzer capping output at maxChapters (0 uses the default).
func New(maxChapters int) *Analyzer {
	if maxChapters <= 0 {
		maxChapters = DefaultMaxChapters
	}
	return &Analyzer{maxChapters: maxChapters}
}

// AnalyzePDF runs the detection pipeline and returns the winning method's
// name with the detected chapters. Passes are tried in order of fidelity;
// the first to yield at least two chapters wins. The page-chunk fallback
// always produces a result, so the chapter list is never empty for a
// readable document.
func (a *Analyzer) AnalyzePDF(doc pdfread.Document) (string, []types.Chapter) {
	bounds := detectBoundaries(doc)

	if first, last, ok := locateTOC(doc); ok {
		if entries := parseTOC(doc, first, last); len(entries) >= 3 {
			starts := alignTOCWithBoundaries(entries, bounds, doc.PageCount())
			if chapters := buildChapters(doc, starts, minWordsTOC); len(chapters) >= 2 {
				return MethodTOC, a.finalize(chapters)
			}
		}
	}

	if starts := outlineStarts(doc, bounds); len(starts) > 0 {
		if chapters := buildChapters(doc, starts, minWordsOutline); len(chapters) >= 2 {
			return MethodTOC, a.finalize(chapters)
		}
	}

	if starts := headingStarts(bounds); len(starts) > 0 {
		if chapters := buildChapters(doc, starts, minWordsHeadings); len(chapters) >= 2 {
			return MethodHeadings, a.finalize(chapters)
		}
	}

	log.Printf("[Analyzer] No structural signal found, falling back to %d-page sections", pageChunkSize)
	chapters := buildChapters(doc, chunkStarts(doc.PageCount()), 0)
	return MethodAutoSections, a.finalize(chapters)
}

// Segment is a caller-supplied chapter range for manual splitting.
type Segment struct {
	Name      string `json:"name"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

// ChaptersFromSegments builds chapters from explicit page ranges instead of
// running detection. Ranges are validated against the document.
func (a *Analyzer) ChaptersFromSegments(doc pdfread.Document, segments []Segment) ([]types.Chapter, error) {
	n := doc.PageCount()
	var chapters []types.Chapter
	for i, seg := range segments {
		if seg.StartPage < 1 || seg.EndPage > n || seg.StartPage > seg.EndPage {
			return nil, fmt.Errorf("segment %d: invalid page range %d-%d for a %d-page document",
				i+1, seg.StartPage, seg.EndPage, n)
		}
		title := strings.TrimSpace(seg.Name)
		if title == "" {
			title = fmt.Sprintf("Section %d", i+1)
		}
		c := extractChapter(doc, title, types.SectionChapter, 0, seg.StartPage, seg.EndPage)
		chapters = append(chapters, c)
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("no segments given")
	}
	return a.finalize(chapters), nil
}

// buildChapters turns resolved section starts into chapters with extracted
// text. Chapter i spans from its start page to the page before the next
// start; the last chapter runs to the end of the document. Chapters below
// minWords are dropped.
func buildChapters(doc pdfread.Document, starts []chapterStart, minWords int) []types.Chapter {
	var chapters []types.Chapter
	for i, s := range starts {
		end := doc.PageCount()
		if i+1 < len(starts) {
			end = starts[i+1].Page - 1
		}
		if end < s.Page {
			continue
		}
		c := extractChapter(doc, s.Title, s.SectionType, s.Number, s.Page, end)
		if minWords > 0 && c.WordCount < minWords {
			continue
		}
		chapters = append(chapters, c)
	}
	return chapters
}

// extractChapter reads and normalizes the text of a 1-based inclusive page
// range.
func extractChapter(doc pdfread.Document, title string, st types.SectionType, number, start, end int) types.Chapter {
	var pages []string
	for p := start; p <= end; p++ {
		if t := doc.PageText(p - 1); t != "" {
			pages = append(pages, t)
		}
	}
	raw := strings.Join(pages, "\n\n")
	clean := textproc.CleanForTTS(textproc.RejoinLines(raw))

	return types.Chapter{
		SectionType:   st,
		ChapterNumber: number,
		Title:         title,
		PageStart:     start,
		PageEnd:       end,
		WordCount:     cleanWordCount(clean),
		Text:          raw,
		TextClean:     clean,
	}
}

// cleanWordCount counts narration words, excluding pause sentinels.
func cleanWordCount(clean string) int {
	return textproc.WordCount(strings.ReplaceAll(clean, textproc.PauseMarker, " "))
}

// finalize normalizes section types, assigns labels, applies the chapter
// cap and re-indexes contiguously.
func (a *Analyzer) finalize(chapters []types.Chapter) []types.Chapter {
	if len(chapters) > a.maxChapters {
		log.Printf("[Analyzer] Truncating %d chapters to the %d-chapter cap", len(chapters), a.maxChapters)
		chapters = chapters[:a.maxChapters]
	}
	for i := range chapters {
		c := &chapters[i]
		if c.SectionType == types.SectionUnknown || c.SectionType == "" {
			c.SectionType = types.SectionChapter
		}
		if c.SectionType == types.SectionChapter && c.ChapterNumber > 0 {
			c.ChapterLabel = fmt.Sprintf("Ch. %d", c.ChapterNumber)
		} else {
			c.ChapterLabel = ""
		}
		c.Index = i
	}
	return chapters
}
