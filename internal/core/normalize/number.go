package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
)

var (
	numberPattern       = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`)
	spacedThousands     = regexp.MustCompile(`(\d) (\d{3})\b`)
	multipleDotsPattern = regexp.MustCompile(`\d+(?:\.\d{3}){2,}`)
)

// ParseNumber reads the first number in s. Arabic-Indic and extended
// Arabic-Indic digits are accepted, as are the Arabic decimal (٫) and
// thousands (٬) separators, comma thousands separators and
// dot-grouped thousands such as 1.250.000. A leading sign, a bare leading
// decimal point (.5) and exponents (2.5e+06) are kept. ok is false for empty
// or non-numeric input.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if d, ok := lexicon.DigitValue(r); ok {
			b.WriteByte(byte('0' + d))
			continue
		}
		switch r {
		case '٫':
			b.WriteByte('.')
		case '٬', ',', '،':
			// thousands separators
		case '−', '–':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	clean := b.String()
	for spacedThousands.MatchString(clean) {
		clean = spacedThousands.ReplaceAllString(clean, "$1$2")
	}
	clean = multipleDotsPattern.ReplaceAllStringFunc(clean, func(m string) string {
		return strings.ReplaceAll(m, ".", "")
	})

	match := numberPattern.FindString(clean)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// RoundMoney is the single rounding rule for monetary values: nearest 100.
func RoundMoney(v float64) float64 {
	return math.Round(v/100) * 100
}

// RoundPerArea is the single rounding rule for price-per-area values:
// nearest whole unit.
func RoundPerArea(v float64) float64 {
	return math.Round(v)
}
