package pdfimage

import (
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/geometry"
)

const (
	// glyphs closer than this fraction of the font size join the same word
	wordGapRatio = 0.3
	// baseline drift allowed within one line, as a fraction of the font size
	lineDriftRatio = 0.5
)

type wordRun struct {
	text       strings.Builder
	minX, maxX float64
	y, size    float64
}

// accepts reports whether a glyph spanning [x0, x1] on baseline y extends
// the run. Right-to-left text arrives with decreasing x, so both edges count.
func (r *wordRun) accepts(x0, x1, y float64) bool {
	if math.Abs(r.y-y) > r.size*lineDriftRatio {
		return false
	}
	slack := r.size * wordGapRatio
	return x0 <= r.maxX+slack && x1 >= r.minX-slack
}

// textRuns merges per-glyph text into word runs and moves them into
// top-left page space. Presentation forms are folded with NFKC.
func textRuns(glyphs []pdf.Text, page geometry.Rect) []domain.TextRun {
	var (
		out     []domain.TextRun
		current *wordRun
	)

	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(norm.NFKC.String(current.text.String()))
		if text != "" {
			out = append(out, domain.TextRun{
				Text:     text,
				X:        current.minX,
				Y:        current.y,
				Width:    current.maxX - current.minX,
				FontSize: current.size,
			})
		}
		current = nil
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if isBlank(g.S) {
			flush()
			continue
		}

		x0 := g.X - page.X0
		x1 := x0 + math.Max(g.W, 0)
		y := page.Y1 - g.Y
		size := g.FontSize
		if size <= 0 {
			size = 1
		}

		if current != nil && !current.accepts(x0, x1, y) {
			flush()
		}
		if current == nil {
			current = &wordRun{minX: x0, maxX: x1, y: y, size: size}
		}
		current.text.WriteString(g.S)
		current.minX = math.Min(current.minX, x0)
		current.maxX = math.Max(current.maxX, x1)
	}
	flush()
	return out
}

func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
