package pdfimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/ledongthuc/pdf"
	"golang.org/x/image/draw"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

const (
	EncodingPNG  = "png"
	EncodingNone = "none"

	// cropped regions larger than this on either side are downscaled
	maxCropSide = 2048
	// decoded XObjects larger than this are left empty
	maxDecodePixels = 40_000_000
)

// cropRegion cuts box (page units, top-left origin) out of a rendered page.
func cropRegion(page image.Image, box domain.Box, scale float64) ([]byte, error) {
	bounds := page.Bounds()
	rect := image.Rect(
		int(math.Floor(box.X*scale)),
		int(math.Floor(box.Y*scale)),
		int(math.Ceil(box.Right()*scale)),
		int(math.Ceil(box.Bottom()*scale)),
	).Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("crop outside rendered page")
	}

	dst := image.NewRGBA(fitWithin(rect.Dx(), rect.Dy(), maxCropSide))
	if dst.Bounds().Dx() == rect.Dx() && dst.Bounds().Dy() == rect.Dy() {
		draw.Draw(dst, dst.Bounds(), page, rect.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), page, rect, draw.Src, nil)
	}
	return encodePNG(dst)
}

func fitWithin(w, h, limit int) image.Rectangle {
	if w <= limit && h <= limit {
		return image.Rect(0, 0, w, h)
	}
	scale := math.Min(float64(limit)/float64(w), float64(limit)/float64(h))
	return image.Rect(0, 0, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale)))
}

// decodeXObject recovers pixels for Flate-compressed 8-bit RGB and gray
// images. Anything else returns ok=false.
func decodeXObject(xobj pdf.Value) (img image.Image, ok bool) {
	if xobj.IsNull() || xobj.Key("Filter").Name() != "FlateDecode" {
		return nil, false
	}
	if xobj.Key("BitsPerComponent").Int64() != 8 {
		return nil, false
	}
	width := int(xobj.Key("Width").Int64())
	height := int(xobj.Key("Height").Int64())
	if width <= 0 || height <= 0 || width*height > maxDecodePixels {
		return nil, false
	}

	var channels int
	switch xobj.Key("ColorSpace").Name() {
	case "DeviceRGB":
		channels = 3
	case "DeviceGray":
		channels = 1
	default:
		return nil, false
	}

	defer func() {
		if recover() != nil {
			img, ok = nil, false
		}
	}()
	rd := xobj.Reader()
	defer rd.Close()
	samples, err := io.ReadAll(io.LimitReader(rd, int64(width*height*channels)))
	if err != nil || len(samples) < width*height*channels {
		return nil, false
	}

	if channels == 1 {
		gray := image.NewGray(image.Rect(0, 0, width, height))
		copy(gray.Pix, samples)
		return gray, true
	}
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		rgba.Set(i%width, i/width, color.RGBA{
			R: samples[i*3],
			G: samples[i*3+1],
			B: samples[i*3+2],
			A: 0xff,
		})
	}
	return rgba, true
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
