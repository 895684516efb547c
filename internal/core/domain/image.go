package domain

import "math"

// Box is an axis-aligned rectangle in top-left-origin page units.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Box) Area() float64 { return b.Width * b.Height }

func (b Box) Right() float64 { return b.X + b.Width }

func (b Box) Bottom() float64 { return b.Y + b.Height }

func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

func (b Box) AspectRatio() float64 {
	if b.Height == 0 {
		return math.Inf(1)
	}
	return b.Width / b.Height
}

func (b Box) IsFinite() bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type RegionKind string

const (
	RegionImage       RegionKind = "image"
	RegionInlineImage RegionKind = "inline_image"
	RegionImageMask   RegionKind = "image_mask"
	RegionForm        RegionKind = "form"
)

type RegionSource string

const (
	SourcePaintOperation   RegionSource = "paint_operation"
	SourceResourceFallback RegionSource = "resource_fallback"
	SourceRasterDocument   RegionSource = "raster_document"
	SourceDocumentFallback RegionSource = "document_fallback"
)

// RawImageRegion is an image placement recovered from a page.
type RawImageRegion struct {
	Page       int          `json:"page"`
	Box        Box          `json:"box"`
	PageWidth  float64      `json:"page_width"`
	PageHeight float64      `json:"page_height"`
	Data       []byte       `json:"-"`
	Encoding   string       `json:"encoding"`
	Kind       RegionKind   `json:"kind"`
	Source     RegionSource `json:"source"`
	Name       string       `json:"name,omitempty"`
}

// TextRun is a positioned piece of page text. X/Y is the baseline start in
// top-left-origin page units.
type TextRun struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	FontSize float64 `json:"font_size"`
}

// PageContent holds everything the image branch needs from one page.
type PageContent struct {
	Number  int
	Width   float64
	Height  float64
	Regions []RawImageRegion
	Text    []TextRun
}

type ImageCategory string

const (
	CategoryPropertyPhoto    ImageCategory = "property_photo"
	CategoryFloorPlan        ImageCategory = "floor_plan"
	CategoryBuildingExterior ImageCategory = "building_exterior"
	CategoryComparisonPhoto  ImageCategory = "comparison_photo"
	CategoryLocationMap      ImageCategory = "location_map"
	CategorySignature        ImageCategory = "signature"
	CategoryLogo             ImageCategory = "logo"
	CategoryDocumentScan     ImageCategory = "document_scan"
	CategoryUnknown          ImageCategory = "unknown"
)

var imageCategories = map[ImageCategory]struct{}{
	CategoryPropertyPhoto:    {},
	CategoryFloorPlan:        {},
	CategoryBuildingExterior: {},
	CategoryComparisonPhoto:  {},
	CategoryLocationMap:      {},
	CategorySignature:        {},
	CategoryLogo:             {},
	CategoryDocumentScan:     {},
	CategoryUnknown:          {},
}

func (c ImageCategory) Valid() bool {
	_, ok := imageCategories[c]
	return ok
}

type SurroundingText struct {
	Above  []string `json:"above"`
	Below  []string `json:"below"`
	Nearby []string `json:"nearby"`
}

func (s SurroundingText) Empty() bool {
	return len(s.Above) == 0 && len(s.Below) == 0 && len(s.Nearby) == 0
}

// ClassifiedImage is a region with its category. Values are not mutated
// after creation.
type ClassifiedImage struct {
	Region          RawImageRegion  `json:"region"`
	Category        ImageCategory   `json:"category"`
	Confidence      float64         `json:"confidence"`
	Description     string          `json:"description"`
	SurroundingText SurroundingText `json:"surrounding_text"`
}

// StoredImage is what the file-storage endpoint returns per upload.
type StoredImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// ImageUpload is one payload sent to the file-storage endpoint.
type ImageUpload struct {
	EntityID  string
	Category  ImageCategory
	IsPrimary bool
	Source    string
	Filename  string
	MimeType  string
	Data      []byte
}
