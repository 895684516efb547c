package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

func TestIngestUploadSuccess(t *testing.T) {
	repo := &repoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "villa report 1.pdf", "application/pdf", bytes.NewBufferString("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if repo.created == nil {
		t.Fatalf("expected repo.Create call")
	}
	if queue.documentID != doc.ID {
		t.Fatalf("expected queued doc id %s, got %s", doc.ID, queue.documentID)
	}
	if storage.savedKey != doc.ID+"/villa_report_1.pdf" {
		t.Fatalf("expected sanitized key, got %s", storage.savedKey)
	}
	if storage.savedBody != "%PDF-1.4" {
		t.Fatalf("expected saved body, got %s", storage.savedBody)
	}
}

func TestIngestUploadRejectsUnsupportedType(t *testing.T) {
	storage := &storageFake{}
	uc := NewIngestDocumentUseCase(&repoFake{}, storage, &queueFake{})

	_, err := uc.Upload(context.Background(), "notes.txt", "text/plain", bytes.NewBufferString("hello"))
	if !errors.Is(err, domain.ErrUnsupportedDocument) {
		t.Fatalf("expected ErrUnsupportedDocument, got %v", err)
	}
	if storage.savedKey != "" {
		t.Fatalf("unsupported upload must not be stored")
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	uc := NewIngestDocumentUseCase(&repoFake{}, &storageFake{}, &queueFake{err: errors.New("queue down")})

	_, err := uc.Upload(context.Background(), "scan.jpg", "image/jpeg", bytes.NewBufferString("jpeg"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd": "passwd",
		"تقرير.pdf":        "_____.pdf",
		"":                 "document.bin",
		"a b.PDF":          "a_b.PDF",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
