package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
)

// ReportUseCase serves stored documents, their results and workbook exports.
type ReportUseCase struct {
	repo     ports.DocumentRepository
	exporter ports.WorkbookExporter
}

func NewReportUseCase(repo ports.DocumentRepository, exporter ports.WorkbookExporter) *ReportUseCase {
	return &ReportUseCase{repo: repo, exporter: exporter}
}

func (uc *ReportUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// GetResult returns the stored result of a ready document. Documents that
// are still processing or failed report ErrDocumentNotFound for the result.
func (uc *ReportUseCase) GetResult(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	doc, err := uc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.readyResult(ctx, doc)
}

func (uc *ReportUseCase) ExportWorkbook(ctx context.Context, documentID string) ([]byte, error) {
	doc, err := uc.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	result, err := uc.readyResult(ctx, doc)
	if err != nil {
		return nil, err
	}
	out, err := uc.exporter.Export(doc, result)
	if err != nil {
		return nil, fmt.Errorf("export workbook: %w", err)
	}
	return out, nil
}

func (uc *ReportUseCase) readyResult(ctx context.Context, doc *domain.Document) (*domain.AnalysisResult, error) {
	if doc.Status != domain.StatusReady {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get result", fmt.Errorf("document %s is %s", doc.ID, doc.Status))
	}
	result, err := uc.repo.GetResult(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}
