package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
)

// ImageSourceTag marks uploads that come from appraisal document analysis.
const ImageSourceTag = "appraisal_document"

type ProcessDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	analyzer ports.DocumentAnalyzer
	images   ports.ImageStore
}

// NewProcessDocumentUseCase builds the asynchronous pipeline. images may be
// nil when no file-storage endpoint is configured.
func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	analyzer ports.DocumentAnalyzer,
	images ports.ImageStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:     repo,
		storage:  storage,
		analyzer: analyzer,
		images:   images,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveResult(ctx, documentID, result); err != nil {
		err = fmt.Errorf("save result: %w", err)
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	input, err := uc.loadInput(ctx, doc)
	if err != nil {
		return nil, err
	}

	result, err := uc.analyzer.Analyze(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}
	result.DocumentID = doc.ID
	result.StoredImages = uc.uploadImages(ctx, doc.ID, result.Images)
	return result, nil
}

func (uc *ProcessDocumentUseCase) loadInput(ctx context.Context, doc *domain.Document) (domain.DocumentInput, error) {
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.DocumentInput{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return domain.DocumentInput{}, fmt.Errorf("read source document: %w", err)
	}
	if len(data) == 0 {
		return domain.DocumentInput{}, domain.WrapError(domain.ErrInvalidInput, "read source document", errors.New("empty document"))
	}
	return domain.DocumentInput{Filename: doc.Filename, MimeType: doc.MimeType, Data: data}, nil
}

// uploadImages stores classified images that carry pixel data. Upload
// failures are logged and never fail the run; the images stored before the
// failure are kept. The returned slice is index-aligned with images.
func (uc *ProcessDocumentUseCase) uploadImages(ctx context.Context, documentID string, images []domain.ClassifiedImage) []domain.StoredImage {
	if uc.images == nil || len(images) == 0 {
		return nil
	}

	uploads := make([]domain.ImageUpload, 0, len(images))
	positions := make([]int, 0, len(images))
	primary := primaryIndex(images)
	for i, img := range images {
		mimeType := mimeForEncoding(img.Region.Encoding)
		if mimeType == "" || len(img.Region.Data) == 0 {
			continue
		}
		uploads = append(uploads, domain.ImageUpload{
			EntityID:  documentID,
			Category:  img.Category,
			IsPrimary: i == primary,
			Source:    ImageSourceTag,
			Filename:  imageFilename(img, i, mimeType),
			MimeType:  mimeType,
			Data:      img.Region.Data,
		})
		positions = append(positions, i)
	}
	if len(uploads) == 0 {
		return nil
	}

	stored, err := uc.images.Upload(ctx, uploads)
	if err != nil {
		slog.Warn("image_upload_failed",
			"document_id", documentID,
			"stored", len(stored),
			"total", len(uploads),
			"error", err.Error(),
		)
	}
	if len(stored) == 0 {
		return nil
	}

	// aligned with images; entries for images that were not stored stay empty
	aligned := make([]domain.StoredImage, len(images))
	for k, s := range stored {
		if k < len(positions) {
			aligned[positions[k]] = s
		}
	}
	return aligned
}

// primaryIndex picks the first property photo, then the first exterior
// shot, then the first image.
func primaryIndex(images []domain.ClassifiedImage) int {
	for _, want := range []domain.ImageCategory{domain.CategoryPropertyPhoto, domain.CategoryBuildingExterior} {
		for i, img := range images {
			if img.Category == want {
				return i
			}
		}
	}
	return 0
}

func mimeForEncoding(encoding string) string {
	switch strings.ToLower(encoding) {
	case "", "none":
		return ""
	case "png":
		return "image/png"
	case "jpeg", "jpg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	}
	if strings.HasPrefix(strings.ToLower(encoding), "image/") {
		return encoding
	}
	return ""
}

func imageFilename(img domain.ClassifiedImage, index int, mimeType string) string {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("page-%d-%02d-%s%s", img.Region.Page, index, img.Category, ext)
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
