package analyzer

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/narrio/narrio/internal/pdfread"
	"github.com/narrio/narrio/pkg/types"
)

// tocEntry is one parsed line of a printed table of contents.
type tocEntry struct {
	Title       string
	SectionType types.SectionType
	Number      int // chapter/part number, 0 = none
	TOCPage     int // printed page number from the TOC line, 0 = none
}

const (
	tocScanPages         = 30 // pages searched for a CONTENTS heading
	tocContinuationPages = 7  // max continuation pages after the first TOC page
)

var (
	contentsHeading = regexp.MustCompile(`(?i)^(TABLE\s+OF\s+)?CONTENTS$`)

	// TOC line signals used to decide whether a page continues the TOC.
	trailingPageSignal = regexp.MustCompile(`(?:\.{2,}|\s)\s*\d{1,4}\s*$`)
	standaloneNumber   = regexp.MustCompile(`^\d{1,3}$`)
	leadingNumber      = regexp.MustCompile(`^\d+[.):]`)
	tocKeywordLine     = regexp.MustCompile(`(?i)^(chapter|part|appendix|introduction|preface|epilogue|conclusion|bibliography|acknowledgment|index|glossary|notes)\b`)

	dotLeaders = regexp.MustCompile(`(?:\.\s*){3,}`)
	spaceRuns  = regexp.MustCompile(`\s+`)

	barePageNumber = regexp.MustCompile(`^\d{1,4}$`)
	trailingPage   = regexp.MustCompile(`^(.*\S)\s+(\d{1,4})$`)

	tocPartLine     = regexp.MustCompile(`(?i)^part\s+(\S+)\s*(?::\s*(.+))?$`)
	tocChapterLine  = regexp.MustCompile(`(?i)^chapter\s+(\S+?)[.:]?(?:\s*[-:.]?\s+(.+))?$`)
	tocNumTitleLine = regexp.MustCompile(`^(\S+?)\s*[-:.)]\s+(.+)$`)

	quoteDashFold = strings.NewReplacer(
		"“", `"`, "”", `"`, "‘", "'", "’", "'",
		"–", "-", "—", "-",
	)
)

// locateTOC finds the printed table of contents. It scans the first
// tocScanPages pages for a CONTENTS heading among a page's first five
// non-empty lines, then extends the range while pages keep looking like TOC
// pages. Returns 0-based inclusive page indices.
func locateTOC(doc pdfread.Document) (first, last int, ok bool) {
	limit := doc.PageCount()
	if limit > tocScanPages {
		limit = tocScanPages
	}

	for p := 0; p < limit; p++ {
		lines := nonEmptyLines(doc.PageText(p))
		head := lines
		if len(head) > 5 {
			head = head[:5]
		}
		found := false
		for _, ln := range head {
			if contentsHeading.MatchString(strings.TrimSpace(ln)) {
				found = true
				break
			}
		}
		if !found {
			continue
		}

		first, last = p, p
		for q := p + 1; q <= p+tocContinuationPages && q < doc.PageCount(); q++ {
			if !looksLikeTOCPage(doc.PageText(q)) {
				break
			}
			last = q
		}
		log.Printf("[TOC] Found contents on page %d, spanning pages %d-%d", p+1, first+1, last+1)
		return first, last, true
	}
	return 0, 0, false
}

// looksLikeTOCPage reports whether at least a quarter of the page's
// non-empty lines carry a TOC signal.
func looksLikeTOCPage(text string) bool {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return false
	}
	signals := 0
	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if trailingPageSignal.MatchString(s) || standaloneNumber.MatchString(s) ||
			leadingNumber.MatchString(s) || tocKeywordLine.MatchString(s) {
			signals++
		}
	}
	return signals*4 >= len(lines)
}

// parseTOC parses the TOC page range into entries. Parsing succeeds when at
// least three entries are recovered.
func parseTOC(doc pdfread.Document, first, last int) []tocEntry {
	var entries []tocEntry

	// Recency tracking for bare page-number lines: a number following an
	// entry that has no page yet completes that entry; a number following
	// an unclassified line turns that line into an unnumbered chapter.
	const (
		followsNothing = iota
		followsEntryWithoutPage
		followsPendingTitle
	)
	state := followsNothing
	pendingTitle := ""

	for p := first; p <= last; p++ {
		for _, raw := range nonEmptyLines(doc.PageText(p)) {
			line := normalizeTOCLine(raw)
			if line == "" || contentsHeading.MatchString(line) {
				continue
			}

			if barePageNumber.MatchString(line) {
				page, _ := strconv.Atoi(line)
				switch state {
				case followsEntryWithoutPage:
					entries[len(entries)-1].TOCPage = page
				case followsPendingTitle:
					entries = append(entries, tocEntry{
						Title:       pendingTitle,
						SectionType: types.SectionChapter,
						TOCPage:     page,
					})
				}
				state = followsNothing
				pendingTitle = ""
				continue
			}

			title, page := splitTrailingPage(line)
			e, ok := classifyTOCLine(title)
			if !ok && page > 0 {
				// The trailing number may be a chapter number rather
				// than a page ("Chapter 12" with no page printed).
				if e2, ok2 := classifyTOCLine(line); ok2 {
					e, ok = e2, true
					page = 0
				}
			}
			if !ok {
				state = followsPendingTitle
				pendingTitle = line
				continue
			}
			e.TOCPage = page

			// A consecutive entry repeating the previous chapter number
			// is a subtitle line, not a new chapter.
			if n := len(entries); n > 0 && e.SectionType == types.SectionChapter && e.Number > 0 &&
				entries[n-1].SectionType == types.SectionChapter && entries[n-1].Number == e.Number {
				if entries[n-1].TOCPage == 0 {
					entries[n-1].TOCPage = e.TOCPage
				}
				state = followsNothing
				continue
			}

			entries = append(entries, e)
			if e.TOCPage == 0 {
				state = followsEntryWithoutPage
			} else {
				state = followsNothing
			}
		}
	}

	log.Printf("[TOC] Parsed %d entries from contents pages", len(entries))
	return entries
}

// normalizeTOCLine collapses whitespace, folds quotation and dash variants
// to ASCII, and removes dot leaders.
func normalizeTOCLine(line string) string {
	line = quoteDashFold.Replace(line)
	line = dotLeaders.ReplaceAllString(line, " ")
	line = spaceRuns.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}

// splitTrailingPage splits "Some Title 45" into ("Some Title", 45). Returns
// page 0 when the line has no trailing number.
func splitTrailingPage(line string) (string, int) {
	m := trailingPage.FindStringSubmatch(line)
	if m == nil {
		return line, 0
	}
	page, err := strconv.Atoi(m[2])
	if err != nil || page == 0 {
		return line, 0
	}
	return strings.TrimSpace(m[1]), page
}

// classifyTOCLine classifies a normalized TOC line (page number already
// stripped) in priority order: part, numbered chapter, front/back matter.
func classifyTOCLine(line string) (tocEntry, bool) {
	if m := tocPartLine.FindStringSubmatch(line); m != nil {
		return tocEntry{
			Title:       line,
			SectionType: types.SectionPart,
			Number:      parseNumber(m[1]),
		}, true
	}

	if m := tocChapterLine.FindStringSubmatch(line); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			title := strings.TrimSpace(m[2])
			if title == "" {
				title = line
			}
			return tocEntry{Title: title, SectionType: types.SectionChapter, Number: n}, true
		}
	}

	if m := tocNumTitleLine.FindStringSubmatch(line); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			return tocEntry{
				Title:       strings.TrimSpace(m[2]),
				SectionType: types.SectionChapter,
				Number:      n,
			}, true
		}
	}

	if st, ok := classifyKeyword(line); ok {
		return tocEntry{Title: line, SectionType: st}, true
	}

	return tocEntry{}, false
}

// nonEmptyLines splits text into trimmed, non-empty lines.
func nonEmptyLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			out = append(out, s)
		}
	}
	return out
}
