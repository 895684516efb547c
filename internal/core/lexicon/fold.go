package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Fold prepares text for dictionary matching: NFKC (which also maps Arabic
// presentation forms to base letters), diacritics and tatweel removed, alef,
// yeh and teh marbuta variants unified, digits made ASCII, lower-cased and
// whitespace collapsed.
func Fold(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x064B && r <= 0x065F, r == 0x0670, r == 0x0640:
			continue
		case r == 'أ', r == 'إ', r == 'آ', r == 'ٱ':
			r = 'ا'
		case r == 'ى':
			r = 'ي'
		case r == 'ة':
			r = 'ه'
		}
		if d, ok := DigitValue(r); ok {
			r = rune('0' + d)
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DigitValue returns the value of ASCII, Arabic-Indic and extended
// Arabic-Indic (Persian) digits.
func DigitValue(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 0x0660 && r <= 0x0669:
		return int(r - 0x0660), true
	case r >= 0x06F0 && r <= 0x06F9:
		return int(r - 0x06F0), true
	}
	return 0, false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// containsTerm finds needle in haystack. ASCII needles must sit on word
// boundaries; Arabic needles may carry attached prefixes and suffixes.
func containsTerm(haystack, needle string) bool {
	return indexTerm(haystack, needle, 0) >= 0
}

func indexTerm(haystack, needle string, from int) int {
	if needle == "" || from > len(haystack) {
		return -1
	}
	wordBound := isASCII(needle)
	for i := from; i <= len(haystack)-len(needle); {
		idx := strings.Index(haystack[i:], needle)
		if idx < 0 {
			return -1
		}
		start := i + idx
		end := start + len(needle)
		if !wordBound || (boundaryBefore(haystack, start) && boundaryAfter(haystack, end)) {
			return start
		}
		i = start + 1
	}
	return -1
}

func boundaryBefore(s string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:pos])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, pos int) bool {
	if pos >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[pos:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
