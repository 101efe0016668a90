package analyzer

import (
	"fmt"

	"github.com/narrio/narrio/pkg/types"
)

// headingStarts builds section starts directly from detected heading
// boundaries, for books without a usable printed TOC or outline. Part
// headings are excluded so the following chapter keeps its full page range.
func headingStarts(bounds []boundary) []chapterStart {
	var starts []chapterStart
	for _, b := range bounds {
		if b.Kind == types.SectionPart {
			continue
		}
		s := chapterStart{
			Title:       b.HeadingText,
			SectionType: b.Kind,
			Number:      b.Number,
			Page:        b.Page,
		}
		if s.Title == "" {
			if b.Number > 0 {
				s.Title = fmt.Sprintf("Chapter %d", b.Number)
			} else {
				s.Title = fmt.Sprintf("Section %d", len(starts)+1)
			}
		}
		starts = append(starts, s)
	}
	if len(starts) < 2 {
		return nil
	}
	return starts
}

// pageChunkSize is the fixed slice width of the last-resort fallback.
const pageChunkSize = 20

// chunkStarts slices the document into fixed page ranges when no structural
// signal exists at all.
func chunkStarts(pageCount int) []chapterStart {
	var starts []chapterStart
	for p := 1; p <= pageCount; p += pageChunkSize {
		end := p + pageChunkSize - 1
		if end > pageCount {
			end = pageCount
		}
		starts = append(starts, chapterStart{
			Title:       fmt.Sprintf("Section %d (Pages %d-%d)", len(starts)+1, p, end),
			SectionType: types.SectionChapter,
			Page:        p,
		})
	}
	return starts
}
