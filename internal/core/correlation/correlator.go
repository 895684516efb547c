// Package correlation attaches nearby page text to image regions and
// classifies each region from that text or, failing that, from its shape.
package correlation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
)

const (
	ConfidenceKeyword   = 0.9
	ConfidenceTextOnly  = 0.6
	ConfidenceNoText    = 0.3
	ConfidenceDegraded  = 0.2
	descriptionMaxRunes = 160
)

type Config struct {
	// VerticalRadius bounds the above and below buckets, in page units.
	VerticalRadius float64
	// NearbyRadius bounds the distance from the image center.
	NearbyRadius float64
	// MinContextRunes is the surrounding text length under which a
	// signature or stamp match discards the image.
	MinContextRunes int

	LogoMaxArea        float64
	FloorPlanMinAspect float64
	ScanMaxAspect      float64
}

func DefaultConfig() Config {
	return Config{
		VerticalRadius:     100,
		NearbyRadius:       150,
		MinContextRunes:    40,
		LogoMaxArea:        10000,
		FloorPlanMinAspect: 2.5,
		ScanMaxAspect:      0.6,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.VerticalRadius <= 0 {
		c.VerticalRadius = d.VerticalRadius
	}
	if c.NearbyRadius <= 0 {
		c.NearbyRadius = d.NearbyRadius
	}
	if c.MinContextRunes <= 0 {
		c.MinContextRunes = d.MinContextRunes
	}
	if c.LogoMaxArea <= 0 {
		c.LogoMaxArea = d.LogoMaxArea
	}
	if c.FloorPlanMinAspect <= 0 {
		c.FloorPlanMinAspect = d.FloorPlanMinAspect
	}
	if c.ScanMaxAspect <= 0 {
		c.ScanMaxAspect = d.ScanMaxAspect
	}
	return c
}

type Correlator struct {
	lex *lexicon.Lexicon
	cfg Config
}

func New(lex *lexicon.Lexicon, cfg Config) *Correlator {
	return &Correlator{lex: lex, cfg: cfg.normalize()}
}

// Correlate classifies the regions of one page. Output order follows input
// order; discarded regions are dropped.
func (c *Correlator) Correlate(regions []domain.RawImageRegion, text []domain.TextRun) []domain.ClassifiedImage {
	out := make([]domain.ClassifiedImage, 0, len(regions))
	for _, region := range regions {
		surrounding := c.Surrounding(region.Box, text)
		image, keep := c.classify(region, surrounding)
		if keep {
			out = append(out, image)
		}
	}
	return out
}

// Surrounding partitions text runs into the above, below and nearby buckets.
// A run can appear in nearby as well as in one vertical bucket.
func (c *Correlator) Surrounding(box domain.Box, text []domain.TextRun) domain.SurroundingText {
	var s domain.SurroundingText
	cx, cy := box.Center()
	for _, run := range text {
		t := strings.TrimSpace(run.Text)
		if t == "" {
			continue
		}
		if overlapsX(box, run) {
			switch {
			case run.Y <= box.Y && run.Y >= box.Y-c.cfg.VerticalRadius:
				s.Above = append(s.Above, t)
			case run.Y >= box.Bottom() && run.Y <= box.Bottom()+c.cfg.VerticalRadius:
				s.Below = append(s.Below, t)
			}
		}
		if math.Hypot(run.X-cx, run.Y-cy) <= c.cfg.NearbyRadius {
			s.Nearby = append(s.Nearby, t)
		}
	}
	return s
}

func overlapsX(box domain.Box, run domain.TextRun) bool {
	return run.X <= box.Right() && run.X+math.Max(run.Width, 0) >= box.X
}

func (c *Correlator) classify(region domain.RawImageRegion, surrounding domain.SurroundingText) (domain.ClassifiedImage, bool) {
	joined := joinBuckets(surrounding)
	folded := lexicon.Fold(joined)

	image := domain.ClassifiedImage{
		Region:          region,
		SurroundingText: surrounding,
	}

	if folded != "" {
		short := utf8.RuneCountInString(folded) < c.cfg.MinContextRunes
		for _, entry := range c.lex.ImageCategories() {
			if !entry.Matches(folded) {
				continue
			}
			if entry.Category == domain.CategorySignature && short {
				return domain.ClassifiedImage{}, false
			}
			image.Category = entry.Category
			image.Confidence = ConfidenceKeyword
			break
		}
		if image.Category == "" && short && c.lex.IsDiscardText(folded) {
			return domain.ClassifiedImage{}, false
		}
	}

	if image.Category == "" {
		image.Category = c.classifyShape(region.Box)
		image.Confidence = ConfidenceNoText
		if folded != "" {
			image.Confidence = ConfidenceTextOnly
		}
	}
	if region.Source == domain.SourceResourceFallback {
		image.Confidence /= 2
	}
	image.Description = describe(image.Category, region.Page, joined)
	return image, true
}

// classifyShape is the geometry-only fallback.
func (c *Correlator) classifyShape(box domain.Box) domain.ImageCategory {
	aspect := box.AspectRatio()
	switch {
	case box.Area() < c.cfg.LogoMaxArea:
		return domain.CategoryLogo
	case aspect >= c.cfg.FloorPlanMinAspect:
		return domain.CategoryFloorPlan
	case aspect <= c.cfg.ScanMaxAspect:
		return domain.CategoryDocumentScan
	default:
		return domain.CategoryPropertyPhoto
	}
}

// DocumentFallback treats the whole document as a single scan when no
// geometry could be recovered.
func DocumentFallback(doc domain.DocumentInput) domain.ClassifiedImage {
	return domain.ClassifiedImage{
		Region: domain.RawImageRegion{
			Page:     1,
			Data:     doc.Data,
			Encoding: doc.MimeType,
			Kind:     domain.RegionImage,
			Source:   domain.SourceDocumentFallback,
			Name:     doc.Filename,
		},
		Category:    domain.CategoryDocumentScan,
		Confidence:  ConfidenceDegraded,
		Description: "whole document treated as one scanned image",
	}
}

func joinBuckets(s domain.SurroundingText) string {
	parts := make([]string, 0, len(s.Above)+len(s.Below)+len(s.Nearby))
	parts = append(parts, s.Above...)
	parts = append(parts, s.Below...)
	parts = append(parts, s.Nearby...)
	return strings.Join(parts, " ")
}

func describe(category domain.ImageCategory, page int, context string) string {
	context = strings.Join(strings.Fields(context), " ")
	if context == "" {
		return fmt.Sprintf("%s on page %d", category, page)
	}
	if utf8.RuneCountInString(context) > descriptionMaxRunes {
		runes := []rune(context)
		context = string(runes[:descriptionMaxRunes]) + "…"
	}
	return fmt.Sprintf("%s on page %d: %s", category, page, context)
}
