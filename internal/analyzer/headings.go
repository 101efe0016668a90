package analyzer

import (
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/narrio/narrio/internal/pdfread"
	"github.com/narrio/narrio/pkg/types"
)

// boundary is a page where a heading-sized line was detected near the top.
type boundary struct {
	Page        int // 1-based
	HeadingText string
	FontSize    float64
	Number      int               // chapter/part number, 0 = none
	Kind        types.SectionType // SectionUnknown when unclassified
	used        bool
}

var (
	chapterHeading = regexp.MustCompile(`(?i)^chapter\s+(\S+)$`)
	partHeading    = regexp.MustCompile(`(?i)^part\s+(\S+)$`)
)

// Heading threshold multipliers over the document's median font size.
// Classified headings (CHAPTER n, PART n, keywords) qualify at 1.25x; an
// arbitrary large line needs 1.4x to count as an unclassified boundary.
const (
	headingSizeRatio = 1.25
	genericSizeRatio = 1.4
)

// detectBoundaries scans the whole document for heading-sized lines in the
// top half of each page and records at most one boundary per page.
func detectBoundaries(doc pdfread.Document) []boundary {
	median := medianFontSize(doc)
	if median <= 0 {
		return nil
	}
	threshold := median * headingSizeRatio
	generic := median * genericSizeRatio

	var bounds []boundary
	for p := 0; p < doc.PageCount(); p++ {
		half := doc.PageHeight(p) / 2

		var candidates []pdfread.Line
		for _, ln := range doc.PageLines(p) {
			if ln.Top <= half && ln.MaxSize >= threshold && strings.TrimSpace(ln.Text) != "" {
				candidates = append(candidates, ln)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		top := candidates[0]
		text := strings.TrimSpace(top.Text)
		b := boundary{Page: p + 1, FontSize: top.MaxSize, Kind: types.SectionUnknown}

		switch {
		case chapterHeading.MatchString(text):
			m := chapterHeading.FindStringSubmatch(text)
			b.Kind = types.SectionChapter
			b.Number = parseNumber(m[1])
			// The chapter's title usually sits on the next large line.
			if len(candidates) > 1 {
				b.HeadingText = strings.TrimSpace(candidates[1].Text)
			}
		case partHeading.MatchString(text):
			m := partHeading.FindStringSubmatch(text)
			b.Kind = types.SectionPart
			b.Number = parseNumber(m[1])
			b.HeadingText = text
		default:
			if st, ok := classifyKeywordExact(text); ok {
				b.Kind = st
				b.HeadingText = text
			} else if n := utf8.RuneCountInString(text); top.MaxSize >= generic && n > 2 && n <= 80 {
				b.HeadingText = text
			} else {
				continue
			}
		}
		bounds = append(bounds, b)
	}

	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Page < bounds[j].Page })
	log.Printf("[Headings] Median font %.1fpt, threshold %.1fpt, %d boundaries", median, threshold, len(bounds))
	return bounds
}

// medianFontSize computes the median span font size over the whole document,
// ignoring spans of two characters or fewer (page numbers, drop caps).
func medianFontSize(doc pdfread.Document) float64 {
	var sizes []float64
	for p := 0; p < doc.PageCount(); p++ {
		for _, ln := range doc.PageLines(p) {
			for _, sp := range ln.Spans {
				if utf8.RuneCountInString(sp.Text) > 2 && sp.FontSize > 0 {
					sizes = append(sizes, sp.FontSize)
				}
			}
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}
