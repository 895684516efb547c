package domain

type WarningLevel string

const (
	LevelNone    WarningLevel = "none"
	LevelInfo    WarningLevel = "info"
	LevelWarning WarningLevel = "warning"
	LevelError   WarningLevel = "error"
)

type WarningType string

const (
	WarningMissingCritical WarningType = "missing_critical"
	WarningLowConfidence   WarningType = "low_confidence"
	WarningUnmappedData    WarningType = "unmapped_data"
	WarningValidationError WarningType = "validation_error"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type FieldMapping struct {
	Field       string       `json:"field"`
	DisplayName string       `json:"display_name"`
	Required    bool         `json:"required"`
	Critical    bool         `json:"critical"`
	Extracted   bool         `json:"extracted"`
	Valid       bool         `json:"valid"`
	Value       *FieldValue  `json:"value,omitempty"`
	Confidence  *float64     `json:"confidence,omitempty"`
	Level       WarningLevel `json:"level"`
	Message     string       `json:"message"`
}

type ReportWarning struct {
	Type     WarningType `json:"type"`
	Severity Severity    `json:"severity"`
	Field    string      `json:"field,omitempty"`
	Message  string      `json:"message"`
}

type UnmappedField struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Suggestion string `json:"suggestion"`
}

// MappingReport summarizes how a typed record fits the field catalog.
type MappingReport struct {
	TotalExtracted     int     `json:"total_extracted"`
	TotalCatalogFields int     `json:"total_catalog_fields"`
	SuccessfullyMapped int     `json:"successfully_mapped"`
	MissingCritical    int     `json:"missing_critical"`
	LowConfidence      int     `json:"low_confidence"`
	UnmappedExtra      int     `json:"unmapped_extra"`
	Completeness       float64 `json:"overall_completeness_percentage"`

	FieldMappings []FieldMapping  `json:"field_mappings"`
	Warnings      []ReportWarning `json:"warnings"`
	Unmapped      []UnmappedField `json:"unmapped"`
}

// WarningsOf returns warnings of the given type in report order.
func (r *MappingReport) WarningsOf(kind WarningType) []ReportWarning {
	var out []ReportWarning
	for _, w := range r.Warnings {
		if w.Type == kind {
			out = append(out, w)
		}
	}
	return out
}
