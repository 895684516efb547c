package ports

import (
	"context"
	"io"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

// DocumentIngestor is the inbound contract for appraisal upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentAnalyzer runs the full pipeline synchronously on an in-memory document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, input domain.DocumentInput) (*domain.AnalysisResult, error)
}

// DocumentReader is the inbound read model for appraisal state and results.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetResult(ctx context.Context, id string) (*domain.AnalysisResult, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ReportService renders stored results for download.
type ReportService interface {
	ExportWorkbook(ctx context.Context, documentID string) ([]byte, error)
}
