// Package mapping compares a typed appraisal record with the field catalog
// and produces the mapping and validation report.
package mapping

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/appraisal-intelligence/internal/core/catalog"
	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
)

// DefaultLowConfidenceThreshold has not been calibrated against production
// extractions yet.
const DefaultLowConfidenceThreshold = 0.6

type Config struct {
	LowConfidenceThreshold float64
}

func DefaultConfig() Config {
	return Config{LowConfidenceThreshold: DefaultLowConfidenceThreshold}
}

func (c Config) normalize() Config {
	if c.LowConfidenceThreshold <= 0 || c.LowConfidenceThreshold > 1 {
		c.LowConfidenceThreshold = DefaultLowConfidenceThreshold
	}
	return c
}

type Mapper struct {
	catalog *catalog.Catalog
	lex     *lexicon.Lexicon
	cfg     Config
}

func New(cat *catalog.Catalog, lex *lexicon.Lexicon, cfg Config) *Mapper {
	return &Mapper{catalog: cat, lex: lex, cfg: cfg.normalize()}
}

// Build is deterministic: field mappings follow catalog order, warnings
// follow field order and unmapped keys are sorted.
func (m *Mapper) Build(record *domain.AppraisalRecord) *domain.MappingReport {
	if record == nil {
		record = domain.NewAppraisalRecord()
	}
	report := &domain.MappingReport{
		TotalCatalogFields: m.catalog.Len(),
		FieldMappings:      make([]domain.FieldMapping, 0, m.catalog.Len()),
		Warnings:           []domain.ReportWarning{},
		Unmapped:           []domain.UnmappedField{},
	}

	for _, def := range m.catalog.Fields() {
		fm := domain.FieldMapping{
			Field:       def.Name,
			DisplayName: def.DisplayName,
			Required:    def.Required,
			Critical:    def.Critical,
		}

		value, present := record.Get(def.Name)
		if !present {
			m.absent(report, def, &fm)
			report.FieldMappings = append(report.FieldMappings, fm)
			continue
		}

		report.TotalExtracted++
		v := value
		fm.Value = &v
		fm.Extracted = true
		fm.Level = domain.LevelNone
		fm.Message = "mapped"

		if err := m.catalog.Validate(def, value); err != nil {
			fm.Level = domain.LevelError
			fm.Message = err.Error()
			severity := domain.SeverityMedium
			if def.Critical {
				severity = domain.SeverityHigh
			}
			report.Warnings = append(report.Warnings, domain.ReportWarning{
				Type:     domain.WarningValidationError,
				Severity: severity,
				Field:    def.Name,
				Message:  err.Error(),
			})
		} else {
			fm.Valid = true
			report.SuccessfullyMapped++
		}

		if confidence, ok := record.Confidence[def.Name]; ok {
			c := confidence
			fm.Confidence = &c
			if confidence < m.cfg.LowConfidenceThreshold {
				report.LowConfidence++
				msg := fmt.Sprintf("%s has low confidence %.2f (threshold %.2f)", def.Name, confidence, m.cfg.LowConfidenceThreshold)
				if fm.Level != domain.LevelError {
					fm.Level = domain.LevelWarning
					fm.Message = msg
				}
				report.Warnings = append(report.Warnings, domain.ReportWarning{
					Type:     domain.WarningLowConfidence,
					Severity: domain.SeverityMedium,
					Field:    def.Name,
					Message:  msg,
				})
			}
		}

		report.FieldMappings = append(report.FieldMappings, fm)
	}

	m.unmapped(report, record.Extras)
	report.Completeness = completeness(report.SuccessfullyMapped, report.TotalCatalogFields)
	return report
}

func (m *Mapper) absent(report *domain.MappingReport, def catalog.FieldDefinition, fm *domain.FieldMapping) {
	switch {
	case def.Critical:
		report.MissingCritical++
		fm.Level = domain.LevelError
		fm.Message = "critical field missing"
		report.Warnings = append(report.Warnings, domain.ReportWarning{
			Type:     domain.WarningMissingCritical,
			Severity: domain.SeverityHigh,
			Field:    def.Name,
			Message:  fmt.Sprintf("critical field %s (%s) was not extracted", def.Name, def.DisplayName),
		})
	case def.Required:
		fm.Level = domain.LevelWarning
		fm.Message = "required field missing"
	default:
		fm.Level = domain.LevelInfo
		fm.Message = "not extracted"
	}
}

func (m *Mapper) unmapped(report *domain.MappingReport, extras map[string]string) {
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		suggestion := m.lex.Suggest(key)
		report.Unmapped = append(report.Unmapped, domain.UnmappedField{
			Key:        key,
			Value:      extras[key],
			Suggestion: suggestion,
		})
		report.Warnings = append(report.Warnings, domain.ReportWarning{
			Type:     domain.WarningUnmappedData,
			Severity: domain.SeverityLow,
			Field:    key,
			Message:  fmt.Sprintf("no catalog field for %s; %s", key, suggestion),
		})
	}
	report.UnmappedExtra = len(keys)
	report.TotalExtracted += len(keys)
}

func completeness(mapped, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(mapped) / float64(total) * 100
	return math.Min(100, math.Round(pct*100)/100)
}
