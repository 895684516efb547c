package imagefilter

import (
	"math"
	"testing"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

func region(page int, x, y, w, h float64) domain.RawImageRegion {
	return domain.RawImageRegion{
		Page:       page,
		Box:        domain.Box{X: x, Y: y, Width: w, Height: h},
		PageWidth:  612,
		PageHeight: 792,
	}
}

func TestCheckRejectsImplausibleRegions(t *testing.T) {
	f := New(DefaultConfig())

	cases := []struct {
		name   string
		region domain.RawImageRegion
		want   Reason
	}{
		{"photo", region(1, 50, 50, 300, 200), ReasonNone},
		{"nan", region(1, math.NaN(), 0, 100, 100), ReasonNonFinite},
		{"inf", region(1, 0, math.Inf(1), 100, 100), ReasonNonFinite},
		{"huge coordinate", region(1, 2e5, 0, 100, 100), ReasonOutOfBounds},
		{"checkbox", region(1, 10, 10, 12, 12), ReasonTooSmall},
		{"thin rule", region(1, 10, 10, 500, 49), ReasonTooSmall},
		{"wide banner", region(1, 0, 0, 600, 55), ReasonAspect},
		{"tall strip", region(1, 0, 0, 60, 700), ReasonAspect},
		{"right of page", region(1, 1000, 100, 100, 100), ReasonOffPage},
		{"above page", region(1, 100, -600, 100, 100), ReasonOffPage},
	}
	for _, tc := range cases {
		if got := f.Check(tc.region); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestValidMatchesSizeAspectPredicate(t *testing.T) {
	f := New(Config{MinSize: 50})
	const floor = 50.0

	for w := 10.0; w <= 600; w += 7 {
		for h := 10.0; h <= 600; h += 11 {
			r := region(1, 0, 0, w, h)
			aspect := w / h
			want := w >= floor && h >= floor && aspect >= 0.1 && aspect <= 10 && w*h >= floor*floor
			if got := f.Valid(r); got != want {
				t.Fatalf("w=%v h=%v: expected valid=%v, got %v", w, h, want, got)
			}
		}
	}
}

func TestApplyKeepsFirstOfNearDuplicates(t *testing.T) {
	f := New(DefaultConfig())
	first := region(1, 100, 100, 200, 150)
	first.Name = "first"
	second := region(1, 103, 98, 204, 147)
	second.Name = "second"
	otherPage := region(2, 100, 100, 200, 150)
	farther := region(1, 106, 100, 200, 150)

	out := f.Apply([]domain.RawImageRegion{first, second, otherPage, farther})
	if len(out) != 3 {
		t.Fatalf("expected 3 regions, got %d: %+v", len(out), out)
	}
	if out[0].Name != "first" {
		t.Fatalf("expected first region to survive, got %q", out[0].Name)
	}
	if out[1].Page != 2 {
		t.Fatalf("expected region on page 2 to survive dedup, got page %d", out[1].Page)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f := New(DefaultConfig())
	input := []domain.RawImageRegion{
		region(1, 0, 0, 300, 300),
		region(1, 2, 2, 301, 299),
		region(1, 10, 10, 5, 5),
		region(1, 320, 0, 200, 200),
		region(2, 0, 0, 300, 300),
		region(2, 4, 4, 300, 300),
	}

	once := f.Apply(input)
	twice := f.Apply(once)
	if len(once) != len(twice) {
		t.Fatalf("expected idempotent output, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Box != twice[i].Box || once[i].Page != twice[i].Page {
			t.Fatalf("region %d changed between passes: %+v vs %+v", i, once[i], twice[i])
		}
	}
}
