package pdfimage

import (
	"sort"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/geometry"
)

// placement is a region found on a page before pixels are attached.
type placement struct {
	kind   domain.RegionKind
	source domain.RegionSource
	name   string
	rect   geometry.Rect
	xobj   pdf.Value
}

// walker interprets one content stream and records every paint operation
// with the transform in effect at that point.
type walker struct {
	maxDepth int
	found    []placement

	// set after BI until EI; operands in between are image parameters or
	// binary sample data.
	inInline bool
}

func newWalker(maxDepth int) *walker {
	return &walker{maxDepth: maxDepth}
}

// walk runs the content stream strm under base. It returns the number of
// image placements it (and any nested form) recorded.
func (w *walker) walk(strm pdf.Value, resources pdf.Value, base geometry.Matrix, depth int) int {
	before := w.imageCount()
	state := geometry.NewState(base)

	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		if w.inInline {
			switch op {
			case "ID":
				w.recordInline(state.CTM())
			case "EI":
				w.inInline = false
			}
			drain(stk)
			return
		}

		switch op {
		case "q":
			state = state.Save()
		case "Q":
			state, _ = state.Restore()
		case "cm":
			operands := popNumbers(stk, 6)
			if m, ok := geometry.FromSlice(operands); ok && m.IsFinite() {
				state = state.Concat(m)
			}
		case "BI":
			w.inInline = true
		case "Do":
			if stk.Len() == 0 {
				return
			}
			name := stk.Pop().Name()
			w.paintXObject(resources, name, state.CTM(), depth)
		}
		drain(stk)
	})

	return w.imageCount() - before
}

func (w *walker) paintXObject(resources pdf.Value, name string, ctm geometry.Matrix, depth int) {
	if name == "" {
		return
	}
	xobj := resources.Key("XObject").Key(name)
	if xobj.IsNull() {
		return
	}

	switch xobj.Key("Subtype").Name() {
	case "Image":
		kind := domain.RegionImage
		if xobj.Key("ImageMask").Bool() {
			kind = domain.RegionImageMask
		}
		w.found = append(w.found, placement{
			kind:   kind,
			source: domain.SourcePaintOperation,
			name:   name,
			rect:   ctm.UnitSquareBounds(),
			xobj:   xobj,
		})
	case "Form":
		if depth >= w.maxDepth {
			return
		}
		formCTM := ctm
		if m, ok := geometry.FromSlice(numbers(xobj.Key("Matrix"))); ok && m.IsFinite() {
			formCTM = ctm.Multiply(m)
		}
		formResources := xobj.Key("Resources")
		if formResources.IsNull() {
			formResources = resources
		}
		if w.walk(xobj, formResources, formCTM, depth+1) > 0 {
			return
		}
		bbox, ok := rectOf(xobj.Key("BBox"))
		if !ok {
			return
		}
		w.found = append(w.found, placement{
			kind:   domain.RegionForm,
			source: domain.SourcePaintOperation,
			name:   name,
			rect:   formCTM.TransformRect(bbox),
		})
	}
}

func (w *walker) recordInline(ctm geometry.Matrix) {
	w.found = append(w.found, placement{
		kind:   domain.RegionInlineImage,
		source: domain.SourcePaintOperation,
		rect:   ctm.UnitSquareBounds(),
	})
}

func (w *walker) imageCount() int {
	n := 0
	for _, p := range w.found {
		if p.kind != domain.RegionForm {
			n++
		}
	}
	return n
}

// resourceImages lists image XObjects declared on the page, sorted by name.
func resourceImages(resources pdf.Value) []placement {
	xobjects := resources.Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil
	}
	keys := xobjects.Keys()
	sort.Strings(keys)

	var out []placement
	for _, key := range keys {
		obj := xobjects.Key(key)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		kind := domain.RegionImage
		if obj.Key("ImageMask").Bool() {
			kind = domain.RegionImageMask
		}
		out = append(out, placement{
			kind:   kind,
			source: domain.SourceResourceFallback,
			name:   key,
			xobj:   obj,
		})
	}
	return out
}

// stackFallback lays images out top to bottom in equal slots so their boxes
// never overlap. Each image keeps its aspect ratio inside its slot.
func stackFallback(images []placement, page geometry.Rect) []placement {
	if len(images) == 0 {
		return nil
	}
	slot := page.Height() / float64(len(images))
	out := make([]placement, 0, len(images))
	for i, img := range images {
		w := float64(img.xobj.Key("Width").Int64())
		h := float64(img.xobj.Key("Height").Int64())
		if w <= 0 || h <= 0 {
			w, h = page.Width(), slot
		}
		scale := minFloat(page.Width()/w, slot/h)
		bw, bh := w*scale, h*scale

		top := page.Y1 - float64(i)*slot
		img.rect = geometry.Rect{
			X0: page.X0,
			Y0: top - bh,
			X1: page.X0 + bw,
			Y1: top,
		}
		out = append(out, img)
	}
	return out
}

// mediaBox walks up the page tree until a MediaBox is found.
func mediaBox(page pdf.Value) (geometry.Rect, bool) {
	for node, hops := page, 0; !node.IsNull() && hops < 32; node, hops = node.Key("Parent"), hops+1 {
		if r, ok := rectOf(node.Key("MediaBox")); ok {
			return r, true
		}
	}
	return geometry.Rect{}, false
}

func rectOf(v pdf.Value) (geometry.Rect, bool) {
	n := numbers(v)
	if len(n) != 4 {
		return geometry.Rect{}, false
	}
	r := geometry.NormalizeRect(n[0], n[1], n[2], n[3])
	if r.Width() <= 0 || r.Height() <= 0 {
		return geometry.Rect{}, false
	}
	return r, true
}

func numbers(v pdf.Value) []float64 {
	if v.Kind() != pdf.Array {
		return nil
	}
	out := make([]float64, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		switch item.Kind() {
		case pdf.Integer:
			out = append(out, float64(item.Int64()))
		case pdf.Real:
			out = append(out, item.Float64())
		default:
			return nil
		}
	}
	return out
}

// popNumbers pops n operands in stream order. Missing or non-numeric
// operands yield nil.
func popNumbers(stk *pdf.Stack, n int) []float64 {
	if stk.Len() < n {
		return nil
	}
	out := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		v := stk.Pop()
		switch v.Kind() {
		case pdf.Integer:
			out[i] = float64(v.Int64())
		case pdf.Real:
			out[i] = v.Float64()
		default:
			return nil
		}
	}
	return out
}

func drain(stk *pdf.Stack) {
	for stk.Len() > 0 {
		stk.Pop()
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
