// Package pdfread wraps the native PDF libraries behind a small facade.
// All higher components (text extraction, chapter analysis) consume only
// this interface, which keeps the analyzer testable against fake documents.
package pdfread

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpulib "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrEncrypted is returned for password-protected PDFs.
	ErrEncrypted = errors.New("pdf is password-protected and cannot be read")

	// ErrEmpty is returned for PDFs with no pages.
	ErrEmpty = errors.New("pdf has no pages")
)

// Span is a run of text drawn with a single font size.
type Span struct {
	Text     string
	FontSize float64
	X        float64
	Y        float64 // baseline, points from page bottom
	W        float64
}

// Line is a visual line of text on a page, assembled from spans whose
// baselines sit within a small vertical tolerance of each other.
type Line struct {
	Text    string
	Top     float64 // baseline distance from the top of the page, points
	MaxSize float64 // largest span font size on the line
	Spans   []Span
}

// OutlineEntry is a flattened entry from the PDF's embedded outline
// (structural metadata, distinct from any printed table of contents).
type OutlineEntry struct {
	Title string
	Page  int // 1-based
	Level int // 1 = top level
}

// Document is the read surface the analyzer depends on.
type Document interface {
	PageCount() int
	PageHeight(pageIndex int) float64
	// PageText returns the page's plain text with visual line breaks;
	// blank lines separate visually distinct paragraphs.
	PageText(pageIndex int) string
	// PageLines returns the page's lines with font sizing, whitespace
	// preserved, sorted top to bottom.
	PageLines(pageIndex int) []Line
	// Outline returns the embedded outline flattened in document order,
	// or nil when the PDF carries none.
	Outline() []OutlineEntry
}

// Reader implements Document on top of ledongthuc/pdf (span-level text)
// and pdfcpu (outline metadata).
type Reader struct {
	r    *pdf.Reader
	data []byte

	outlineOnce bool
	outline     []OutlineEntry
}

// NewReader opens a PDF held in memory.
func NewReader(data []byte) (*Reader, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(err.Error(), "encrypt") {
			return nil, ErrEncrypted
		}
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	if r.NumPage() == 0 {
		return nil, ErrEmpty
	}
	return &Reader{r: r, data: data}, nil
}

// PageCount returns the number of pages.
func (d *Reader) PageCount() int {
	return d.r.NumPage()
}

// PageHeight returns the page's MediaBox height in points. The MediaBox may
// be inherited from a parent Pages node.
func (d *Reader) PageHeight(pageIndex int) float64 {
	p := d.r.Page(pageIndex + 1)
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		if mb := v.Key("MediaBox"); !mb.IsNull() && mb.Len() == 4 {
			return mb.Index(3).Float64() - mb.Index(1).Float64()
		}
	}
	return 792 // US Letter default
}

// PageLines returns the page's visual lines, top to bottom.
func (d *Reader) PageLines(pageIndex int) []Line {
	texts := d.pageContent(pageIndex)
	if len(texts) == 0 {
		return nil
	}
	height := d.PageHeight(pageIndex)

	// Group consecutive spans into visual lines by Y proximity, preserving
	// content-stream order within each line. Sorting spans by X would
	// garble text in PDFs that use negative text matrices.
	const lineTolerance = 2.0

	var lines []Line
	cur := -1
	var curY float64
	var curSpan *Span

	flushSpan := func() {
		if curSpan != nil && cur >= 0 {
			lines[cur].Spans = append(lines[cur].Spans, *curSpan)
			curSpan = nil
		}
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if cur < 0 || math.Abs(t.Y-curY) > lineTolerance {
			flushSpan()
			lines = append(lines, Line{Top: height - t.Y})
			cur = len(lines) - 1
			curY = t.Y
		}
		// Merge consecutive same-size runs into one span.
		if curSpan != nil && curSpan.FontSize == t.FontSize {
			curSpan.Text += t.S
			curSpan.W += t.W
		} else {
			flushSpan()
			curSpan = &Span{Text: t.S, FontSize: t.FontSize, X: t.X, Y: t.Y, W: t.W}
		}
		lines[cur].Text += t.S
		if t.FontSize > lines[cur].MaxSize {
			lines[cur].MaxSize = t.FontSize
		}
	}
	flushSpan()

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Top < lines[j].Top })
	return lines
}

// PageText returns the page's text with one line per visual line. A blank
// line is inserted where the vertical gap between lines is well above the
// page's typical line spacing, so paragraph boundaries survive extraction.
func (d *Reader) PageText(pageIndex int) string {
	lines := d.PageLines(pageIndex)
	if len(lines) == 0 {
		return ""
	}

	// Median gap between consecutive baselines.
	var gaps []float64
	for i := 1; i < len(lines); i++ {
		if g := lines[i].Top - lines[i-1].Top; g > 0 {
			gaps = append(gaps, g)
		}
	}
	paraGap := math.MaxFloat64
	if len(gaps) > 0 {
		sort.Float64s(gaps)
		paraGap = gaps[len(gaps)/2] * 1.8
	}

	var b strings.Builder
	for i, ln := range lines {
		if i > 0 {
			if lines[i].Top-lines[i-1].Top > paraGap {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(strings.TrimSpace(ln.Text))
	}
	return strings.TrimSpace(b.String())
}

// Outline returns the embedded outline via pdfcpu, flattened with levels.
func (d *Reader) Outline() []OutlineEntry {
	if d.outlineOnce {
		return d.outline
	}
	d.outlineOnce = true

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	bms, err := api.Bookmarks(bytes.NewReader(d.data), conf)
	if err != nil || len(bms) == 0 {
		return nil
	}
	d.outline = flattenBookmarks(bms, 1)
	return d.outline
}

func flattenBookmarks(bms []pdfcpulib.Bookmark, level int) []OutlineEntry {
	var out []OutlineEntry
	for _, bm := range bms {
		title := strings.TrimSpace(bm.Title)
		if title != "" && bm.PageFrom > 0 {
			out = append(out, OutlineEntry{Title: title, Page: bm.PageFrom, Level: level})
		}
		if len(bm.Kids) > 0 {
			out = append(out, flattenBookmarks(bm.Kids, level+1)...)
		}
	}
	return out
}

// pageContent reads the page's text spans, shielding callers from panics in
// the underlying library on malformed content streams.
func (d *Reader) pageContent(pageIndex int) (texts []pdf.Text) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[PDF] Recovered from panic extracting page %d: %v", pageIndex+1, rec)
			texts = nil
		}
	}()

	p := d.r.Page(pageIndex + 1)
	if p.V.IsNull() || p.V.Key("Contents").Kind() == pdf.Null {
		return nil
	}
	return p.Content().Text
}

// PageCount reports the number of pages without fully parsing the document.
// It is the only reader call the free-tier gate performs.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return 0, ErrEncrypted
		}
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
