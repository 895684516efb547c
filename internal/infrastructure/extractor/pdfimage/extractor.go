// Package pdfimage recovers image placements and positioned text from PDF
// pages and raster documents.
package pdfimage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"

	"github.com/ledongthuc/pdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/geometry"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
)

const (
	DefaultConcurrency  = 4
	DefaultMaxFormDepth = 4
)

// US Letter, used when a page declares no usable MediaBox.
var letterBox = geometry.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}

type Config struct {
	Concurrency  int
	MaxFormDepth int
}

func (c Config) normalize() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxFormDepth <= 0 {
		c.MaxFormDepth = DefaultMaxFormDepth
	}
	return c
}

type Extractor struct {
	renderer ports.PageRenderer
	cfg      Config
}

// New builds an extractor. renderer may be nil; pixel data then comes only
// from XObjects that can be decoded directly.
func New(renderer ports.PageRenderer, cfg Config) *Extractor {
	return &Extractor{renderer: renderer, cfg: cfg.normalize()}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentInput) ([]domain.PageContent, error) {
	if len(doc.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract geometry", fmt.Errorf("empty document"))
	}
	switch {
	case doc.IsPDF():
		return e.extractPDF(ctx, doc.Data)
	case doc.IsRasterImage():
		page, err := rasterPage(doc.Data)
		if err != nil {
			return nil, err
		}
		return []domain.PageContent{page}, nil
	default:
		return nil, domain.WrapError(domain.ErrUnsupportedDocument, "extract geometry", fmt.Errorf("mime type %q", doc.MimeType))
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) ([]domain.PageContent, error) {
	numPages, err := countPages(data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnsupportedDocument, "open pdf", err)
	}

	session := e.openSession(ctx, data)
	if session != nil {
		defer session.Close()
	}

	pages := make([]*domain.PageContent, numPages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := 1; i <= numPages; i++ {
		number := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := e.extractPage(gctx, data, number, session)
			if err != nil {
				slog.Warn("pdf_page_skipped", "page", number, "error", err.Error())
				return nil
			}
			pages[number-1] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrCancelled, "extract geometry", err)
	}

	out := make([]domain.PageContent, 0, numPages)
	for _, page := range pages {
		if page != nil {
			out = append(out, *page)
		}
	}
	return out, nil
}

func (e *Extractor) openSession(ctx context.Context, data []byte) ports.RenderSession {
	if e.renderer == nil {
		return nil
	}
	session, err := e.renderer.Open(ctx, data)
	if err != nil {
		slog.Warn("pdf_render_unavailable", "error", err.Error())
		return nil
	}
	return session
}

func countPages(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

// extractPage parses one page with its own reader so pages share no
// parser state. A panic in a malformed stream keeps whatever was found
// before it.
func (e *Extractor) extractPage(ctx context.Context, data []byte, number int, session ports.RenderSession) (page *domain.PageContent, err error) {
	reader, err := openReader(data)
	if err != nil {
		return nil, err
	}
	p, err := pageAt(reader, number)
	if err != nil {
		return nil, err
	}

	box, ok := mediaBox(p.V)
	if !ok {
		box = letterBox
	}
	resources := p.V.Key("Resources")

	w := newWalker(e.cfg.MaxFormDepth)
	e.walkContents(p.V.Key("Contents"), resources, w, number)

	found := w.found
	if len(found) == 0 {
		found = stackFallback(resourceImages(resources), box)
	}

	page = &domain.PageContent{
		Number: number,
		Width:  box.Width(),
		Height: box.Height(),
		Text:   pageText(p, box, number),
	}
	page.Regions = e.attachPixels(ctx, found, box, number, session)
	return page, nil
}

// walkContents interprets each content stream of the page. Contents may be
// a single stream or an array of them.
func (e *Extractor) walkContents(contents, resources pdf.Value, w *walker, number int) {
	streams := []pdf.Value{contents}
	if contents.Kind() == pdf.Array {
		streams = streams[:0]
		for i := 0; i < contents.Len(); i++ {
			streams = append(streams, contents.Index(i))
		}
	}
	for i, strm := range streams {
		if strm.Kind() != pdf.Stream {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.inInline = false
					slog.Warn("pdf_content_stream_aborted", "page", number, "stream", i, "error", fmt.Sprint(r))
				}
			}()
			w.walk(strm, resources, geometry.Identity(), 0)
		}()
	}
}

func (e *Extractor) attachPixels(ctx context.Context, found []placement, page geometry.Rect, number int, session ports.RenderSession) []domain.RawImageRegion {
	if len(found) == 0 {
		return nil
	}

	render := sync.OnceValues(func() (image.Image, error) {
		return session.Page(ctx, number)
	})

	regions := make([]domain.RawImageRegion, 0, len(found))
	for _, f := range found {
		region := domain.RawImageRegion{
			Page:       number,
			Box:        geometry.ToRaster(f.rect, page),
			PageWidth:  page.Width(),
			PageHeight: page.Height(),
			Encoding:   EncodingNone,
			Kind:       f.kind,
			Source:     f.source,
			Name:       f.name,
		}

		var data []byte
		if session != nil && f.source == domain.SourcePaintOperation {
			if rendered, err := render(); err == nil {
				data, err = cropRegion(rendered, region.Box, session.Scale())
				if err != nil {
					slog.Debug("pdf_region_crop_failed", "page", number, "error", err.Error())
				}
			} else {
				slog.Warn("pdf_page_render_failed", "page", number, "error", err.Error())
			}
		}
		if data == nil {
			if img, ok := decodeXObject(f.xobj); ok {
				data, _ = encodePNG(img)
			}
		}
		if data != nil {
			region.Data = data
			region.Encoding = EncodingPNG
		}
		regions = append(regions, region)
	}
	return regions
}

func pageText(p pdf.Page, box geometry.Rect, number int) (runs []domain.TextRun) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf_text_skipped", "page", number, "error", fmt.Sprint(r))
			runs = nil
		}
	}()
	return textRuns(p.Content().Text, box)
}

func openReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageAt(reader *pdf.Reader, number int) (page pdf.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", number, r)
		}
	}()
	page = reader.Page(number)
	if page.V.IsNull() {
		return page, fmt.Errorf("page %d not found", number)
	}
	return page, nil
}

// rasterPage treats a standalone image as a one-page document with a single
// region covering it.
func rasterPage(data []byte) (domain.PageContent, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.PageContent{}, domain.WrapError(domain.ErrUnsupportedDocument, "decode raster document", err)
	}
	width, height := float64(cfg.Width), float64(cfg.Height)
	return domain.PageContent{
		Number: 1,
		Width:  width,
		Height: height,
		Regions: []domain.RawImageRegion{{
			Page:       1,
			Box:        domain.Box{Width: width, Height: height},
			PageWidth:  width,
			PageHeight: height,
			Data:       data,
			Encoding:   format,
			Kind:       domain.RegionImage,
			Source:     domain.SourceRasterDocument,
		}},
	}, nil
}
