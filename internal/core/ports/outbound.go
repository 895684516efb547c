package ports

import (
	"context"
	"image"
	"io"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

// DocumentRepository persists document state and pipeline results.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result *domain.AnalysisResult) error
	GetResult(ctx context.Context, id string) (*domain.AnalysisResult, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentModel is an external multimodal model that answers a prompt about
// a whole document.
type DocumentModel interface {
	// Available reports a missing credential or endpoint without calling
	// the service.
	Available() error
	Generate(ctx context.Context, doc domain.DocumentInput, prompt string) (string, error)
}

// RecordExtractor turns a whole document into the flat extraction record.
type RecordExtractor interface {
	Available() error
	PromptVersion() string
	Extract(ctx context.Context, doc domain.DocumentInput) (domain.FlatRecord, error)
}

// GeometryExtractor recovers image placements and positioned text per page.
type GeometryExtractor interface {
	Extract(ctx context.Context, doc domain.DocumentInput) ([]domain.PageContent, error)
}

// PageRenderer rasterizes PDF pages.
type PageRenderer interface {
	Open(ctx context.Context, pdf []byte) (RenderSession, error)
}

// RenderSession renders pages of one opened document. Page numbers are 1-based.
type RenderSession interface {
	Page(ctx context.Context, page int) (image.Image, error)
	// Scale converts page units into raster pixels.
	Scale() float64
	Close() error
}

// ImageStore uploads classified images to the file-storage endpoint.
type ImageStore interface {
	Upload(ctx context.Context, uploads []domain.ImageUpload) ([]domain.StoredImage, error)
}

// WorkbookExporter renders an analysis result as a spreadsheet.
type WorkbookExporter interface {
	Export(doc *domain.Document, result *domain.AnalysisResult) ([]byte, error)
}
