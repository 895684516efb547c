// Package xlsx renders analysis results as Excel workbooks.
package xlsx

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

const (
	sheetSummary  = "Summary"
	sheetFields   = "Fields"
	sheetWarnings = "Warnings"
	sheetUnmapped = "Unmapped"
	sheetImages   = "Images"
)

type Exporter struct {
	now func() time.Time
}

func New() *Exporter {
	return &Exporter{now: time.Now}
}

func (e *Exporter) Export(doc *domain.Document, result *domain.AnalysisResult) ([]byte, error) {
	if result == nil || result.Report == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export workbook", fmt.Errorf("result has no report"))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetFields, sheetWarnings, sheetUnmapped, sheetImages} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	w := &sheetWriter{f: f, header: header}
	e.writeSummary(w, doc, result)
	writeFields(w, result.Report)
	writeWarnings(w, result.Report)
	writeUnmapped(w, result.Report)
	writeImages(w, result)
	if w.err != nil {
		return nil, fmt.Errorf("write workbook: %w", w.err)
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first cell error so row loops stay flat.
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) row(sheet string, row int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) headerRow(sheet string, titles ...any) {
	w.row(sheet, 1, titles...)
	if w.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(sheet, "A1", last, w.header)
	if w.err == nil {
		w.err = w.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
}

func (w *sheetWriter) widths(sheet string, widths ...float64) {
	for i, width := range widths {
		if w.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			w.err = err
			return
		}
		w.err = w.f.SetColWidth(sheet, col, col, width)
	}
}

func (e *Exporter) writeSummary(w *sheetWriter, doc *domain.Document, result *domain.AnalysisResult) {
	report := result.Report
	rows := [][]any{
		{"Document", documentName(doc)},
		{"Prompt version", result.PromptVersion},
		{"Image mode", string(result.ImageMode)},
		{"Generated at", e.now().UTC().Format(time.RFC3339)},
		{"Catalog fields", report.TotalCatalogFields},
		{"Extracted", report.TotalExtracted},
		{"Successfully mapped", report.SuccessfullyMapped},
		{"Missing critical", report.MissingCritical},
		{"Low confidence", report.LowConfidence},
		{"Unmapped extra", report.UnmappedExtra},
		{"Completeness %", report.Completeness},
		{"Images", len(result.Images)},
	}
	for i, r := range rows {
		w.row(sheetSummary, i+1, r...)
	}
	w.widths(sheetSummary, 24, 48)
}

func writeFields(w *sheetWriter, report *domain.MappingReport) {
	w.headerRow(sheetFields, "Field", "Display name", "Required", "Critical", "Extracted", "Valid", "Value", "Confidence", "Level", "Message")
	for i, m := range report.FieldMappings {
		value := ""
		if m.Value != nil {
			value = m.Value.String()
		}
		var confidence any = ""
		if m.Confidence != nil {
			confidence = *m.Confidence
		}
		w.row(sheetFields, i+2, m.Field, m.DisplayName, m.Required, m.Critical, m.Extracted, m.Valid,
			value, confidence, string(m.Level), m.Message)
	}
	w.widths(sheetFields, 30, 34, 10, 10, 10, 8, 40, 12, 10, 48)
}

func writeWarnings(w *sheetWriter, report *domain.MappingReport) {
	w.headerRow(sheetWarnings, "Type", "Severity", "Field", "Message")
	for i, warning := range report.Warnings {
		w.row(sheetWarnings, i+2, string(warning.Type), string(warning.Severity), warning.Field, warning.Message)
	}
	w.widths(sheetWarnings, 20, 10, 30, 70)
}

func writeUnmapped(w *sheetWriter, report *domain.MappingReport) {
	w.headerRow(sheetUnmapped, "Key", "Value", "Suggestion")
	for i, u := range report.Unmapped {
		w.row(sheetUnmapped, i+2, u.Key, u.Value, u.Suggestion)
	}
	w.widths(sheetUnmapped, 30, 50, 40)
}

func writeImages(w *sheetWriter, result *domain.AnalysisResult) {
	w.headerRow(sheetImages, "Page", "Category", "Confidence", "Source", "X", "Y", "Width", "Height", "Description", "Stored URL")
	for i, img := range result.Images {
		url := ""
		if i < len(result.StoredImages) {
			url = result.StoredImages[i].URL
		}
		box := img.Region.Box
		w.row(sheetImages, i+2, img.Region.Page, string(img.Category), img.Confidence, string(img.Region.Source),
			box.X, box.Y, box.Width, box.Height, img.Description, url)
	}
	w.widths(sheetImages, 6, 18, 11, 18, 8, 8, 8, 8, 60, 50)
}

func documentName(doc *domain.Document) string {
	if doc == nil {
		return ""
	}
	if doc.Filename != "" {
		return doc.Filename
	}
	return doc.ID
}
