package analyzer

import (
	"log"
	"sort"

	"github.com/narrio/narrio/internal/pdfread"
	"github.com/narrio/narrio/pkg/types"
)

// outlineStarts builds section starts from the PDF's embedded outline.
// Outlines nest arbitrarily (parts containing chapters containing sections);
// the deepest level that still yields at least three entries, preferring the
// largest entry set, is the one that usually corresponds to chapters.
func outlineStarts(doc pdfread.Document, bounds []boundary) []chapterStart {
	entries := doc.Outline()
	if len(entries) == 0 {
		return nil
	}

	byLevel := make(map[int][]pdfread.OutlineEntry)
	maxLevel := 0
	for _, e := range entries {
		byLevel[e.Level] = append(byLevel[e.Level], e)
		if e.Level > maxLevel {
			maxLevel = e.Level
		}
	}

	// Deepest first, so on a tie in entry count the deeper level wins.
	best := 0
	bestCount := 0
	for lvl := maxLevel; lvl >= 1; lvl-- {
		if n := len(byLevel[lvl]); n >= 3 && n > bestCount {
			best, bestCount = lvl, n
		}
	}
	if best == 0 {
		return nil
	}
	log.Printf("[TOC] Using outline level %d with %d entries", best, bestCount)

	selected := byLevel[best]
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Page < selected[j].Page })

	var starts []chapterStart
	for _, e := range selected {
		s := chapterStart{Title: e.Title, SectionType: types.SectionChapter, Page: e.Page}

		if m := partHeading.FindStringSubmatch(e.Title); m != nil {
			s.SectionType = types.SectionPart
			s.Number = parseNumber(m[1])
		} else if m := chapterHeading.FindStringSubmatch(e.Title); m != nil {
			s.Number = parseNumber(m[1])
		} else if m := tocChapterLine.FindStringSubmatch(e.Title); m != nil {
			s.Number = parseNumber(m[1])
		} else if m := tocNumTitleLine.FindStringSubmatch(e.Title); m != nil && parseNumber(m[1]) > 0 {
			s.Number = parseNumber(m[1])
			s.Title = m[2]
		} else if st, ok := classifyKeyword(e.Title); ok {
			s.SectionType = st
		}

		// Unnumbered chapters can often borrow a number from a heading
		// boundary detected on a nearby page.
		if s.SectionType == types.SectionChapter && s.Number == 0 {
			for _, b := range bounds {
				if b.Kind == types.SectionChapter && b.Number > 0 && abs(b.Page-s.Page) <= 2 {
					s.Number = b.Number
					break
				}
			}
		}

		starts = append(starts, s)
	}
	return starts
}
