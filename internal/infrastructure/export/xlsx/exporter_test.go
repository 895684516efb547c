package xlsx

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

func TestExportWritesReportSheets(t *testing.T) {
	value := domain.NumberValue(3)
	confidence := 0.5
	result := &domain.AnalysisResult{
		PromptVersion: "appraisal-extraction-v1",
		ImageMode:     domain.ImageModeFull,
		Report: &domain.MappingReport{
			TotalCatalogFields: 2,
			SuccessfullyMapped: 1,
			Completeness:       50,
			FieldMappings: []domain.FieldMapping{
				{Field: "bedrooms", DisplayName: "Bedrooms", Extracted: true, Valid: true, Value: &value, Confidence: &confidence, Level: domain.LevelWarning},
				{Field: "market_value", DisplayName: "Market value", Critical: true, Level: domain.LevelError},
			},
			Warnings: []domain.ReportWarning{{Type: domain.WarningMissingCritical, Severity: domain.SeverityHigh, Field: "market_value", Message: "missing"}},
			Unmapped: []domain.UnmappedField{{Key: "appraiser_remarks", Value: "ok", Suggestion: "append to additional_notes"}},
		},
		Images: []domain.ClassifiedImage{{
			Region:   domain.RawImageRegion{Page: 2, Source: domain.SourcePaintOperation, Box: domain.Box{X: 10, Y: 20, Width: 300, Height: 200}},
			Category: domain.CategoryFloorPlan,
		}},
		StoredImages: []domain.StoredImage{{ID: "img-1", URL: "https://files.local/img-1"}},
	}

	e := New()
	e.now = func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) }
	out, err := e.Export(&domain.Document{ID: "doc-1", Filename: "villa.pdf"}, result)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{"Summary", "Fields", "Warnings", "Unmapped", "Images"}
	if len(sheets) != len(want) {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Fatalf("sheet %d = %s, want %s", i, sheets[i], want[i])
		}
	}

	checks := []struct{ sheet, cell, want string }{
		{"Summary", "B1", "villa.pdf"},
		{"Summary", "B4", "2026-10-15T00:00:00Z"},
		{"Summary", "B11", "50"},
		{"Fields", "A2", "bedrooms"},
		{"Fields", "G2", "3"},
		{"Fields", "I3", "error"},
		{"Warnings", "A2", "missing_critical"},
		{"Unmapped", "C2", "append to additional_notes"},
		{"Images", "B2", "floor_plan"},
		{"Images", "J2", "https://files.local/img-1"},
	}
	for _, c := range checks {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil {
			t.Fatalf("%s!%s: %v", c.sheet, c.cell, err)
		}
		if got != c.want {
			t.Fatalf("%s!%s = %q, want %q", c.sheet, c.cell, got, c.want)
		}
	}
}

func TestExportRequiresReport(t *testing.T) {
	if _, err := New().Export(nil, &domain.AnalysisResult{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
