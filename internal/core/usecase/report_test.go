package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

func TestReportExportWorkbook(t *testing.T) {
	doc := processDoc()
	doc.Status = domain.StatusReady
	result := &domain.AnalysisResult{DocumentID: doc.ID, Report: &domain.MappingReport{}}
	repo := &repoFake{doc: doc, result: result}
	exporter := &exporterFake{}

	out, err := NewReportUseCase(repo, exporter).ExportWorkbook(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("ExportWorkbook() error = %v", err)
	}
	if string(out) != "xlsx" || exporter.doc.ID != doc.ID || exporter.result != result {
		t.Fatalf("exporter not called with stored document and result")
	}
}

func TestReportResultRequiresReadyDocument(t *testing.T) {
	doc := processDoc()
	doc.Status = domain.StatusProcessing
	repo := &repoFake{doc: doc, result: &domain.AnalysisResult{}}
	uc := NewReportUseCase(repo, &exporterFake{})

	if _, err := uc.GetResult(context.Background(), doc.ID); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for processing document, got %v", err)
	}
	if _, err := uc.ExportWorkbook(context.Background(), doc.ID); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for export, got %v", err)
	}
}

func TestReportGetByIDNotFound(t *testing.T) {
	uc := NewReportUseCase(&repoFake{}, &exporterFake{})
	if _, err := uc.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
