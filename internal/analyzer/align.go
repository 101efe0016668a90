package analyzer

import (
	"log"
	"sort"
	"strings"
	"unicode"

	"github.com/narrio/narrio/pkg/types"
	"golang.org/x/text/unicode/norm"
)

// chapterStart is a resolved section start: a TOC entry (or boundary) pinned
// to a concrete 1-based PDF page.
type chapterStart struct {
	Title       string
	SectionType types.SectionType
	Number      int
	Page        int
}

// alignTOCWithBoundaries pins each TOC entry to a PDF page using the
// detected heading boundaries. Printed page numbers rarely equal PDF page
// indices (front matter shifts them), so a page offset is derived first and
// entries without a matching boundary fall back to their expected position.
func alignTOCWithBoundaries(entries []tocEntry, bounds []boundary, pageCount int) []chapterStart {
	offset := derivePageOffset(entries, bounds)
	log.Printf("[Align] Derived page offset %+d from %d entries and %d boundaries", offset, len(entries), len(bounds))

	var starts []chapterStart
	for _, e := range entries {
		expected := 0
		if e.TOCPage > 0 {
			expected = e.TOCPage - 1 + offset
		}

		var b *boundary
		if e.SectionType != types.SectionPart {
			b = matchBoundary(e, bounds, expected)
		}

		s := chapterStart{Title: e.Title, SectionType: e.SectionType, Number: e.Number}
		switch {
		case b != nil:
			b.used = true
			s.Page = b.Page
			if b.Kind == types.SectionFrontMatter || b.Kind == types.SectionBackMatter {
				s.SectionType = b.Kind
			}
		case expected > 0:
			s.Page = clampPage(expected, pageCount)
		default:
			continue // no boundary and no printed page: nothing to anchor on
		}
		starts = append(starts, s)
	}

	sort.SliceStable(starts, func(i, j int) bool { return starts[i].Page < starts[j].Page })

	// Two entries resolving to the same page means one of them is noise.
	deduped := starts[:0]
	for i, s := range starts {
		if i > 0 && s.Page == deduped[len(deduped)-1].Page {
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}

// derivePageOffset computes the printed-page to PDF-page offset as the
// median over all entry/boundary pairs sharing a chapter number. When no
// numbered pair exists, front matter keyword matches are used instead.
func derivePageOffset(entries []tocEntry, bounds []boundary) int {
	var offsets []int
	for _, e := range entries {
		if e.TOCPage == 0 || e.Number == 0 || e.SectionType != types.SectionChapter {
			continue
		}
		for _, b := range bounds {
			if b.Kind == types.SectionChapter && b.Number == e.Number {
				offsets = append(offsets, b.Page-(e.TOCPage-1))
				break
			}
		}
	}

	if len(offsets) == 0 {
		for _, e := range entries {
			if e.TOCPage == 0 || e.SectionType != types.SectionFrontMatter {
				continue
			}
			et := strings.ToLower(e.Title)
			for _, b := range bounds {
				if b.Kind != types.SectionFrontMatter && b.Kind != types.SectionBackMatter {
					continue
				}
				bt := strings.ToLower(b.HeadingText)
				if bt != "" && (strings.Contains(et, bt) || strings.Contains(bt, et)) {
					offsets = append(offsets, b.Page-(e.TOCPage-1))
					break
				}
			}
		}
	}

	if len(offsets) == 0 {
		return 0
	}
	sort.Ints(offsets)
	return offsets[len(offsets)/2]
}

// matchBoundary finds the boundary for a TOC entry, trying number identity,
// page proximity, then fuzzy title match.
func matchBoundary(e tocEntry, bounds []boundary, expected int) *boundary {
	// 1. Same chapter number; closest to the expected page when several
	// boundaries carry it (page headers can repeat chapter numbers).
	if e.Number > 0 {
		var best *boundary
		for i := range bounds {
			b := &bounds[i]
			if b.used || b.Number != e.Number {
				continue
			}
			if best == nil || (expected > 0 && abs(b.Page-expected) < abs(best.Page-expected)) {
				best = b
			}
		}
		if best != nil {
			return best
		}
	}

	// 2. Any unused boundary within 3 pages of the expected position.
	if expected > 0 {
		var best *boundary
		for i := range bounds {
			b := &bounds[i]
			if b.used || abs(b.Page-expected) > 3 {
				continue
			}
			if best == nil || abs(b.Page-expected) < abs(best.Page-expected) {
				best = b
			}
		}
		if best != nil {
			return best
		}
	}

	// 3. Fuzzy title match, tolerant of ligature and dropped-character
	// artifacts in extracted heading text.
	for i := range bounds {
		b := &bounds[i]
		if b.used || b.HeadingText == "" {
			continue
		}
		if fuzzyTitleMatch(e.Title, b.HeadingText) {
			return b
		}
	}
	return nil
}

// fuzzyTitleMatch compares two titles on their alphanumeric skeletons:
// substring containment or similarity of at least 0.75.
func fuzzyTitleMatch(a, b string) bool {
	na, nb := alphaSkeleton(a), alphaSkeleton(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return similarity(na, nb) >= 0.75
}

// alphaSkeleton lowercases s and strips everything but letters and digits.
// NFKC normalization first, so ligatures like ﬁ decompose before filtering.
func alphaSkeleton(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// similarity is the longest-common-subsequence ratio 2*lcs/(len(a)+len(b)),
// in [0,1]. Titles are short so the quadratic table is fine.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(rb)]) / float64(len(ra)+len(rb))
}

func clampPage(p, pageCount int) int {
	if p < 1 {
		return 1
	}
	if p > pageCount {
		return pageCount
	}
	return p
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
