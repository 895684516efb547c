// Package imagefilter drops implausible and duplicate image regions.
package imagefilter

import (
	"math"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

const (
	DefaultMinSize        = 50.0
	DefaultDedupTolerance = 5.0
	DefaultMaxCoordinate  = 100000.0
	DefaultMinAspect      = 0.1
	DefaultMaxAspect      = 10.0
)

type Config struct {
	// MinSize is the smallest accepted width and height; area must be at
	// least MinSize squared.
	MinSize        float64
	DedupTolerance float64
	MaxCoordinate  float64
	MinAspect      float64
	MaxAspect      float64
}

func DefaultConfig() Config {
	return Config{
		MinSize:        DefaultMinSize,
		DedupTolerance: DefaultDedupTolerance,
		MaxCoordinate:  DefaultMaxCoordinate,
		MinAspect:      DefaultMinAspect,
		MaxAspect:      DefaultMaxAspect,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.MinSize <= 0 {
		out.MinSize = def.MinSize
	}
	if out.DedupTolerance <= 0 {
		out.DedupTolerance = def.DedupTolerance
	}
	if out.MaxCoordinate <= 0 {
		out.MaxCoordinate = def.MaxCoordinate
	}
	if out.MinAspect <= 0 {
		out.MinAspect = def.MinAspect
	}
	if out.MaxAspect <= out.MinAspect {
		out.MaxAspect = def.MaxAspect
	}
	return out
}

type Filter struct {
	cfg Config
}

func New(cfg Config) *Filter {
	return &Filter{cfg: cfg.normalize()}
}

// Reason names why a region was rejected; "" means it is valid.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNonFinite    Reason = "non_finite"
	ReasonOutOfBounds  Reason = "coordinate_out_of_bounds"
	ReasonTooSmall     Reason = "too_small"
	ReasonAreaTooSmall Reason = "area_too_small"
	ReasonAspect       Reason = "aspect_ratio"
	ReasonOffPage      Reason = "off_page"
)

// Check applies the validity predicate to one region.
func (f *Filter) Check(region domain.RawImageRegion) Reason {
	b := region.Box
	if !b.IsFinite() {
		return ReasonNonFinite
	}
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.Abs(v) > f.cfg.MaxCoordinate {
			return ReasonOutOfBounds
		}
	}
	if b.Width < f.cfg.MinSize || b.Height < f.cfg.MinSize {
		return ReasonTooSmall
	}
	if b.Area() < f.cfg.MinSize*f.cfg.MinSize {
		return ReasonAreaTooSmall
	}
	aspect := b.AspectRatio()
	if aspect < f.cfg.MinAspect || aspect > f.cfg.MaxAspect {
		return ReasonAspect
	}
	if farOutsidePage(b, region.PageWidth, region.PageHeight) {
		return ReasonOffPage
	}
	return ReasonNone
}

func (f *Filter) Valid(region domain.RawImageRegion) bool {
	return f.Check(region) == ReasonNone
}

// farOutsidePage reports boxes lying more than half a page beyond any edge.
// Unknown page sizes never reject.
func farOutsidePage(b domain.Box, pageWidth, pageHeight float64) bool {
	if pageWidth <= 0 || pageHeight <= 0 {
		return false
	}
	return b.X > pageWidth*1.5 ||
		b.Y > pageHeight*1.5 ||
		b.Right() < -pageWidth*0.5 ||
		b.Bottom() < -pageHeight*0.5
}

// Duplicate reports whether a and b describe the same placement.
func (f *Filter) Duplicate(a, b domain.RawImageRegion) bool {
	if a.Page != b.Page {
		return false
	}
	tol := f.cfg.DedupTolerance
	return math.Abs(a.Box.X-b.Box.X) < tol &&
		math.Abs(a.Box.Y-b.Box.Y) < tol &&
		math.Abs(a.Box.Width-b.Box.Width) < tol &&
		math.Abs(a.Box.Height-b.Box.Height) < tol
}

// Apply keeps valid regions, dropping any that duplicate an earlier kept
// region on the same page. Input order decides which duplicate survives.
func (f *Filter) Apply(regions []domain.RawImageRegion) []domain.RawImageRegion {
	kept := make([]domain.RawImageRegion, 0, len(regions))
	for _, region := range regions {
		if !f.Valid(region) {
			continue
		}
		dup := false
		for _, existing := range kept {
			if f.Duplicate(existing, region) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, region)
		}
	}
	return kept
}
