package analyzer

import (
	"strconv"
	"strings"
)

// wordNumbers maps spelled-out English numbers to their values. Books with
// word-numbered chapters rarely exceed thirty; the table stops there.
var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"twenty-one": 21, "twenty-two": 22, "twenty-three": 23, "twenty-four": 24,
	"twenty-five": 25, "twenty-six": 26, "twenty-seven": 27, "twenty-eight": 28,
	"twenty-nine": 29, "thirty": 30,
}

var romanValues = map[byte]int{
	'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000,
}

// parseRoman parses a Roman numeral. Values of 200 or more are rejected:
// long letter runs like "MIX" are far more likely to be words than chapter
// numbers at that magnitude.
func parseRoman(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	total := 0
	prev := 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	if total <= 0 || total >= 200 {
		return 0, false
	}
	return total, true
}

// parseNumber parses a chapter number in any of the three printed forms:
// Arabic digits, Roman numerals, or spelled-out English words up to thirty.
// Returns 0 when the string is not a number.
func parseNumber(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".:)]")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	if n, ok := wordNumbers[s]; ok {
		return n
	}
	if n, ok := parseRoman(s); ok {
		return n
	}
	return 0
}
