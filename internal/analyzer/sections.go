package analyzer

import (
	"strings"

	"github.com/narrio/narrio/pkg/types"
)

var frontMatterKeywords = []string{
	"preface", "foreword", "introduction", "prologue", "dedication",
	"acknowledgments", "acknowledgment", "copyright", "contents",
}

var backMatterKeywords = []string{
	"epilogue", "conclusion", "afterword", "appendix", "bibliography",
	"notes", "index", "glossary", "references", "about the author",
}

// classifyKeyword matches a line against the front/back matter keyword sets.
// A keyword matches exactly, with a trailing colon, or as the first word.
func classifyKeyword(line string) (types.SectionType, bool) {
	s := strings.ToLower(strings.TrimSpace(line))
	for _, kw := range frontMatterKeywords {
		if s == kw || strings.HasPrefix(s, kw+":") || strings.HasPrefix(s, kw+" ") {
			return types.SectionFrontMatter, true
		}
	}
	for _, kw := range backMatterKeywords {
		if s == kw || strings.HasPrefix(s, kw+":") || strings.HasPrefix(s, kw+" ") {
			return types.SectionBackMatter, true
		}
	}
	return "", false
}

// classifyKeywordExact is the stricter variant used on detected headings:
// the whole line must be the keyword, optionally suffixed with a colon.
func classifyKeywordExact(line string) (types.SectionType, bool) {
	s := strings.ToLower(strings.TrimSpace(line))
	s = strings.TrimSuffix(s, ":")
	for _, kw := range frontMatterKeywords {
		if s == kw {
			return types.SectionFrontMatter, true
		}
	}
	for _, kw := range backMatterKeywords {
		if s == kw {
			return types.SectionBackMatter, true
		}
	}
	return "", false
}
