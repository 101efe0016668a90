package analyzer

import (
	"bytes"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/narrio/narrio/internal/textproc"
	"github.com/narrio/narrio/pkg/types"
	"github.com/simp-lee/epub"
	"golang.org/x/net/html"
)

const minWordsEPUB = 50

var chapterInText = regexp.MustCompile(`(?i)\bchapter\s+([a-zA-Z0-9-]+)`)

// AnalyzeEPUB splits an EPUB along its spine. Titles come from the TOC when
// the spine item is referenced there, then the document title, then the
// first top-level heading.
func (a *Analyzer) AnalyzeEPUB(data []byte) (string, []types.Chapter, error) {
	book, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer book.Close()

	// ContentChapters filters out Project Gutenberg license pages.
	var chapters []types.Chapter
	for i, item := range book.ContentChapters() {
		if !item.Linear {
			continue
		}
		raw, err := item.RawContent()
		if err != nil {
			log.Printf("[EPUB] Skipping unreadable spine item %s: %v", item.Href, err)
			continue
		}
		root, err := html.Parse(bytes.NewReader(raw))
		if err != nil {
			continue
		}
		if bodyClassContainsAny(root, "nav", "toc") {
			continue
		}

		text, err := item.TextContent()
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = documentTitle(root)
		}
		if title == "" {
			title = firstHeadingText(root)
		}
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}

		st := types.SectionChapter
		if kw, ok := classifyKeyword(title); ok {
			st = kw
		}

		clean := textproc.CleanForTTS(textproc.RejoinLines(text))
		c := types.Chapter{
			SectionType:   st,
			ChapterNumber: epubChapterNumber(title, text),
			Title:         title,
			WordCount:     cleanWordCount(clean),
			Text:          text,
			TextClean:     clean,
		}
		if c.WordCount < minWordsEPUB {
			continue
		}
		chapters = append(chapters, c)
	}

	log.Printf("[EPUB] Extracted %d chapters from spine", len(chapters))
	return MethodEPUBSpine, a.finalize(chapters), nil
}

// epubChapterNumber recovers a chapter number from the title, a numbered
// title form, or the first 500 characters of body text.
func epubChapterNumber(title, text string) int {
	if m := chapterInText.FindStringSubmatch(title); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			return n
		}
	}
	if m := tocNumTitleLine.FindStringSubmatch(title); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			return n
		}
	}
	head := []rune(text)
	if len(head) > 500 {
		head = head[:500]
	}
	if m := chapterInText.FindStringSubmatch(string(head)); m != nil {
		return parseNumber(m[1])
	}
	return 0
}

// bodyClassContainsAny reports whether the <body> class attribute contains
// any of the given tokens. EPUB navigation documents mark themselves this
// way and must not be narrated.
func bodyClassContainsAny(root *html.Node, tokens ...string) bool {
	body := findElement(root, "body")
	if body == nil {
		return false
	}
	for _, attr := range body.Attr {
		if attr.Key != "class" {
			continue
		}
		class := strings.ToLower(attr.Val)
		for _, tok := range tokens {
			if strings.Contains(class, tok) {
				return true
			}
		}
	}
	return false
}

func documentTitle(root *html.Node) string {
	if n := findElement(root, "title"); n != nil {
		return strings.TrimSpace(textOf(n))
	}
	return ""
}

func firstHeadingText(root *html.Node) string {
	for _, tag := range []string{"h1", "h2"} {
		if n := findElement(root, tag); n != nil {
			if t := strings.TrimSpace(textOf(n)); t != "" {
				return t
			}
		}
	}
	return ""
}

// findElement returns the first element with the given tag, depth-first.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
