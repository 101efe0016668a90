package textproc

import (
	"strings"
	"testing"
)

func TestCleanForTTS_RemovesSuperscripts(t *testing.T) {
	got := CleanForTTS("The claim¹ was disputed² by others³.")
	want := "The claim was disputed by others."
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestCleanForTTS_RemovesBracketedRefs(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"as shown[1] earlier", "as shown earlier"},
		{"multiple sources[1,2] agree", "multiple sources agree"},
		{"a range[1-3] of studies", "a range of studies"},
		{"spaced ref[12, 14] too", "spaced ref too"},
	}
	for _, c := range cases {
		if got := CleanForTTS(c.in); got != c.want {
			t.Errorf("CleanForTTS(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanForTTS_RemovesGluedFootnoteNumbers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"the word3 continues", "the word continues"},
		{"end of sentence.12 Next", "end of sentence. Next"},
		{"trailing17", "trailing"},
		// Four-digit runs are years or data, not footnotes.
		{"in 2023 things changed", "in 2023 things changed"},
		{"from1984 onward", "from1984 onward"},
	}
	for _, c := range cases {
		if got := CleanForTTS(c.in); got != c.want {
			t.Errorf("CleanForTTS(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanForTTS_InsertsPauseMarkers(t *testing.T) {
	in := "First paragraph.\n\nSecond paragraph.\n\n\n\nThird."
	got := CleanForTTS(in)
	want := "First paragraph. " + PauseMarker + " Second paragraph. " + PauseMarker + " Third."
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if strings.Count(got, PauseMarker) != 2 {
		t.Errorf("Expected 2 pause markers, got %d", strings.Count(got, PauseMarker))
	}
}

func TestCleanForTTS_Idempotent(t *testing.T) {
	inputs := []string{
		"Plain text with no markers.",
		"Para one.\n\nPara two[3] with refs⁴.\n\nPara three5 done.",
		"word3 and[1] more² text.\n\nAnother   spaced   paragraph.",
	}
	for _, in := range inputs {
		once := CleanForTTS(in)
		twice := CleanForTTS(once)
		if once != twice {
			t.Errorf("CleanForTTS not idempotent for %q:\n once=%q\ntwice=%q", in, once, twice)
		}
	}
}

func TestCleanForTTS_PreservesPunctuation(t *testing.T) {
	in := "Really? Yes! And so, it ends."
	if got := CleanForTTS(in); got != in {
		t.Errorf("Punctuation mangled: %q -> %q", in, got)
	}
}

func TestRejoinLines(t *testing.T) {
	in := "This is a sentence that\nwraps across two lines.\n\nSecond paragraph\nalso wraps."
	want := "This is a sentence that wraps across two lines.\n\nSecond paragraph also wraps."
	if got := RejoinLines(in); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestRejoinLines_CollapsesDoubleSpaces(t *testing.T) {
	in := "Spaced  out\nline  here"
	want := "Spaced out line here"
	if got := RejoinLines(in); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("  one two   three\nfour "); n != 4 {
		t.Errorf("Expected 4 words, got %d", n)
	}
	if n := WordCount(""); n != 0 {
		t.Errorf("Expected 0 words, got %d", n)
	}
}
