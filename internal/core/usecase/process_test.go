package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

func processDoc() *domain.Document {
	return &domain.Document{
		ID:          "doc-1",
		Filename:    "villa.pdf",
		MimeType:    "application/pdf",
		StoragePath: "doc-1/villa.pdf",
		Status:      domain.StatusUploaded,
	}
}

func imageOf(category domain.ImageCategory, encoding string, data string) domain.ClassifiedImage {
	return domain.ClassifiedImage{
		Region:   domain.RawImageRegion{Page: 2, Encoding: encoding, Data: []byte(data)},
		Category: category,
	}
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &repoFake{doc: processDoc()}
	storage := &storageFake{content: []byte("%PDF-1.4 body")}
	analyzer := &analyzerFake{result: &domain.AnalysisResult{ImageMode: domain.ImageModeSkipped}}

	uc := NewProcessDocumentUseCase(repo, storage, analyzer, nil)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(repo.statusCalls) != 1 || repo.statusCalls[0].status != domain.StatusProcessing {
		t.Fatalf("unexpected status calls: %+v", repo.statusCalls)
	}
	if repo.savedID != "doc-1" || repo.result.DocumentID != "doc-1" {
		t.Fatalf("result not saved for doc-1: %q %+v", repo.savedID, repo.result)
	}
	if analyzer.input.Filename != "villa.pdf" || string(analyzer.input.Data) != "%PDF-1.4 body" {
		t.Fatalf("analyzer got unexpected input: %+v", analyzer.input)
	}
}

func TestProcessByIDMarksFailedOnAnalyzerError(t *testing.T) {
	repo := &repoFake{doc: processDoc()}
	analyzer := &analyzerFake{err: domain.WrapError(domain.ErrServiceOverloaded, "extract", errors.New("503"))}

	uc := NewProcessDocumentUseCase(repo, &storageFake{content: []byte("%PDF")}, analyzer, nil)
	err := uc.ProcessByID(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrServiceOverloaded) {
		t.Fatalf("expected ErrServiceOverloaded, got %v", err)
	}

	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed || !strings.Contains(last.errMsg, "overloaded") {
		t.Fatalf("expected failed status with reason, got %+v", last)
	}
	if repo.result != nil {
		t.Fatalf("no result must be saved on failure")
	}
}

func TestProcessByIDEmptySourceFails(t *testing.T) {
	repo := &repoFake{doc: processDoc()}
	uc := NewProcessDocumentUseCase(repo, &storageFake{}, &analyzerFake{}, nil)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessByIDStatusUpdateFailure(t *testing.T) {
	repo := &repoFake{doc: processDoc(), statusErr: errors.New("db down")}
	analyzer := &analyzerFake{}

	uc := NewProcessDocumentUseCase(repo, &storageFake{content: []byte("%PDF")}, analyzer, nil)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected error when processing status cannot be set")
	}
	if analyzer.input.Data != nil {
		t.Fatalf("analyzer must not run when the status update fails")
	}
}

func TestProcessByIDSaveFailureMarksFailed(t *testing.T) {
	repo := &repoFake{doc: processDoc(), saveErr: errors.New("constraint")}
	analyzer := &analyzerFake{result: &domain.AnalysisResult{}}

	uc := NewProcessDocumentUseCase(repo, &storageFake{content: []byte("%PDF")}, analyzer, nil)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil || !strings.Contains(err.Error(), "save result") {
		t.Fatalf("expected save error, got %v", err)
	}
	if last := repo.statusCalls[len(repo.statusCalls)-1]; last.status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %+v", last)
	}
}

func TestProcessByIDUploadsImagesAligned(t *testing.T) {
	repo := &repoFake{doc: processDoc()}
	analyzer := &analyzerFake{result: &domain.AnalysisResult{
		Images: []domain.ClassifiedImage{
			imageOf(domain.CategoryFloorPlan, "png", "plan"),
			imageOf(domain.CategoryDocumentScan, "none", ""),
			imageOf(domain.CategoryPropertyPhoto, "jpeg", "photo"),
		},
	}}
	images := &imageStoreFake{stored: []domain.StoredImage{
		{ID: "f-1", URL: "https://files/f-1", Category: "floor_plan"},
		{ID: "f-2", URL: "https://files/f-2", Category: "property_photo"},
	}}

	uc := NewProcessDocumentUseCase(repo, &storageFake{content: []byte("%PDF")}, analyzer, images)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(images.uploads) != 2 {
		t.Fatalf("expected 2 uploads (image without pixels skipped), got %d", len(images.uploads))
	}
	first, second := images.uploads[0], images.uploads[1]
	if first.IsPrimary || !second.IsPrimary {
		t.Fatalf("property photo must be primary: %+v %+v", first.IsPrimary, second.IsPrimary)
	}
	if first.EntityID != "doc-1" || first.Source != ImageSourceTag || first.MimeType != "image/png" {
		t.Fatalf("unexpected upload: %+v", first)
	}
	if !strings.HasPrefix(second.Filename, "page-2-02-property_photo") {
		t.Fatalf("unexpected filename %q", second.Filename)
	}

	stored := repo.result.StoredImages
	if len(stored) != 3 || stored[0].ID != "f-1" || stored[1].ID != "" || stored[2].ID != "f-2" {
		t.Fatalf("stored images not aligned with images: %+v", stored)
	}
}

func TestProcessByIDUploadFailureIsNotFatal(t *testing.T) {
	repo := &repoFake{doc: processDoc()}
	analyzer := &analyzerFake{result: &domain.AnalysisResult{
		Images: []domain.ClassifiedImage{
			imageOf(domain.CategoryFloorPlan, "png", "plan"),
			imageOf(domain.CategoryLocationMap, "png", "map"),
		},
	}}
	images := &imageStoreFake{
		stored: []domain.StoredImage{{ID: "f-1"}},
		err:    domain.WrapError(domain.ErrTemporary, "upload image", errors.New("503")),
	}

	uc := NewProcessDocumentUseCase(repo, &storageFake{content: []byte("%PDF")}, analyzer, images)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("upload failure must not fail the run: %v", err)
	}
	if !images.uploads[0].IsPrimary {
		t.Fatalf("first image must be primary without photos")
	}
	stored := repo.result.StoredImages
	if len(stored) != 2 || stored[0].ID != "f-1" || stored[1].ID != "" {
		t.Fatalf("expected partial stored images, got %+v", stored)
	}
}

func TestMimeForEncoding(t *testing.T) {
	cases := map[string]string{
		"png":        "image/png",
		"JPEG":       "image/jpeg",
		"none":       "",
		"":           "",
		"image/webp": "image/webp",
		"text/plain": "",
	}
	for in, want := range cases {
		if got := mimeForEncoding(in); got != want {
			t.Fatalf("mimeForEncoding(%q) = %q, want %q", in, got, want)
		}
	}
}
