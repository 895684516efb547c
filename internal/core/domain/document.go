package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded appraisal source file and its processing state.
type Document struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	StoragePath  string         `json:"storage_path"`
	Status       DocumentStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	Completeness float64        `json:"completeness,omitempty"`
	ImageCount   int            `json:"image_count,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DocumentInput is the in-memory payload handed to the pipeline.
type DocumentInput struct {
	Filename string
	MimeType string
	Data     []byte
}

func (d DocumentInput) IsPDF() bool {
	return strings.EqualFold(baseMime(d.MimeType), "application/pdf")
}

func (d DocumentInput) IsRasterImage() bool {
	return strings.HasPrefix(strings.ToLower(baseMime(d.MimeType)), "image/")
}

func baseMime(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(mimeType)
}

// ImageMode reports how the image branch of a run completed.
type ImageMode string

const (
	ImageModeFull     ImageMode = "full"
	ImageModeDegraded ImageMode = "degraded"
	ImageModeSkipped  ImageMode = "skipped"
)

// AnalysisResult merges the image and record branches of one run.
// StoredImages, when set, is index-aligned with Images; images that were not
// uploaded have an empty entry.
type AnalysisResult struct {
	DocumentID    string            `json:"document_id,omitempty"`
	PromptVersion string            `json:"prompt_version"`
	Record        *AppraisalRecord  `json:"record"`
	Report        *MappingReport    `json:"report"`
	Images        []ClassifiedImage `json:"images"`
	ImageMode     ImageMode         `json:"image_mode"`
	StoredImages  []StoredImage     `json:"stored_images,omitempty"`
}
