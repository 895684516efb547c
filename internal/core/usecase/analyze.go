package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/appraisal-intelligence/internal/core/correlation"
	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/imagefilter"
	"github.com/kirillkom/appraisal-intelligence/internal/core/mapping"
	"github.com/kirillkom/appraisal-intelligence/internal/core/normalize"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
)

// AnalyzeDocumentUseCase runs the image branch and the record branch of the
// pipeline concurrently and merges their output.
type AnalyzeDocumentUseCase struct {
	geometry   ports.GeometryExtractor
	filter     *imagefilter.Filter
	correlator *correlation.Correlator
	extractor  ports.RecordExtractor
	normalizer *normalize.Normalizer
	mapper     *mapping.Mapper
	observer   PipelineObserver
}

// PipelineObserver receives per-stage timings and outcomes. Implementations
// must be safe for concurrent use.
type PipelineObserver interface {
	ObserveStage(stage string, outcome string, elapsed time.Duration)
	ObserveImages(mode domain.ImageMode, count int)
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, string, time.Duration) {}

func (noopObserver) ObserveImages(domain.ImageMode, int) {}

// NewAnalyzeDocumentUseCase wires the pipeline. geometry may be nil, in
// which case the image branch is skipped.
func NewAnalyzeDocumentUseCase(
	geometry ports.GeometryExtractor,
	filter *imagefilter.Filter,
	correlator *correlation.Correlator,
	extractor ports.RecordExtractor,
	normalizer *normalize.Normalizer,
	mapper *mapping.Mapper,
	observer PipelineObserver,
) *AnalyzeDocumentUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &AnalyzeDocumentUseCase{
		geometry:   geometry,
		filter:     filter,
		correlator: correlator,
		extractor:  extractor,
		normalizer: normalizer,
		mapper:     mapper,
		observer:   observer,
	}
}

func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, input domain.DocumentInput) (*domain.AnalysisResult, error) {
	if len(input.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", errors.New("empty document"))
	}
	var (
		images []domain.ClassifiedImage
		mode   domain.ImageMode
		record *domain.AppraisalRecord
		report *domain.MappingReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		images, mode = uc.imageBranch(gctx, input)
		return nil
	})
	g.Go(func() error {
		var err error
		record, report, err = uc.recordBranch(gctx, input)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	uc.observer.ObserveImages(mode, len(images))
	return &domain.AnalysisResult{
		PromptVersion: uc.extractor.PromptVersion(),
		Record:        record,
		Report:        report,
		Images:        images,
		ImageMode:     mode,
	}, nil
}

// imageBranch never fails the run: a document whose geometry cannot be
// recovered at all degrades to a single whole-document scan. Types other than
// PDF and raster images carry no geometry and are skipped; the record branch
// still runs and the document model decides whether it accepts them.
func (uc *AnalyzeDocumentUseCase) imageBranch(ctx context.Context, input domain.DocumentInput) ([]domain.ClassifiedImage, domain.ImageMode) {
	if uc.geometry == nil || (!input.IsPDF() && !input.IsRasterImage()) {
		return []domain.ClassifiedImage{}, domain.ImageModeSkipped
	}

	start := time.Now()
	pages, err := uc.geometry.Extract(ctx, input)
	if err == nil && len(pages) == 0 {
		err = errors.New("no page could be parsed")
	}
	if err != nil {
		if ctx.Err() != nil {
			uc.observer.ObserveStage("geometry", "cancelled", time.Since(start))
			return nil, domain.ImageModeSkipped
		}
		uc.observer.ObserveStage("geometry", "degraded", time.Since(start))
		slog.Warn("image_branch_degraded", "filename", input.Filename, "error", err.Error())
		return []domain.ClassifiedImage{correlation.DocumentFallback(input)}, domain.ImageModeDegraded
	}
	uc.observer.ObserveStage("geometry", "ok", time.Since(start))

	start = time.Now()
	images := make([]domain.ClassifiedImage, 0)
	for _, page := range pages {
		regions := uc.filter.Apply(page.Regions)
		images = append(images, uc.correlator.Correlate(regions, page.Text)...)
	}
	uc.observer.ObserveStage("correlate", "ok", time.Since(start))
	return images, domain.ImageModeFull
}

func (uc *AnalyzeDocumentUseCase) recordBranch(ctx context.Context, input domain.DocumentInput) (*domain.AppraisalRecord, *domain.MappingReport, error) {
	start := time.Now()
	flat, err := uc.extractor.Extract(ctx, input)
	if err != nil {
		uc.observer.ObserveStage("extraction", outcomeOf(err), time.Since(start))
		return nil, nil, fmt.Errorf("extract record: %w", err)
	}
	uc.observer.ObserveStage("extraction", "ok", time.Since(start))

	start = time.Now()
	record := uc.normalizer.Normalize(flat)
	report := uc.mapper.Build(record)
	uc.observer.ObserveStage("mapping", "ok", time.Since(start))
	return record, report, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsKind(err, domain.ErrCancelled):
		return "cancelled"
	case domain.IsKind(err, domain.ErrServiceOverloaded):
		return "overloaded"
	case domain.IsKind(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case domain.IsKind(err, domain.ErrInvalidResponse):
		return "invalid_response"
	default:
		return "error"
	}
}
