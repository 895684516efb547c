package mapping

import (
	"testing"

	"github.com/kirillkom/appraisal-intelligence/internal/core/catalog"
	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
	"github.com/kirillkom/appraisal-intelligence/internal/core/normalize"
)

func newTestMapper() *Mapper {
	return New(catalog.Default(), lexicon.Default(), DefaultConfig())
}

func mappingFor(t *testing.T, report *domain.MappingReport, field string) domain.FieldMapping {
	t.Helper()
	for _, fm := range report.FieldMappings {
		if fm.Field == field {
			return fm
		}
	}
	t.Fatalf("no field mapping for %s", field)
	return domain.FieldMapping{}
}

func TestBuildEmptyRecord(t *testing.T) {
	cat := catalog.Default()
	flat := domain.FlatRecord{}
	for _, def := range cat.Fields() {
		flat[def.Name] = ""
	}
	record := normalize.New(lexicon.Default(), cat).Normalize(flat)

	report := newTestMapper().Build(record)
	if report.Completeness != 0 {
		t.Fatalf("expected 0%% completeness, got %v", report.Completeness)
	}
	if len(report.FieldMappings) != cat.Len() {
		t.Fatalf("expected one mapping per catalog field, got %d/%d", len(report.FieldMappings), cat.Len())
	}

	missing := report.WarningsOf(domain.WarningMissingCritical)
	critical := cat.Critical()
	if len(missing) != len(critical) || report.MissingCritical != len(critical) {
		t.Fatalf("expected %d missing_critical warnings, got %d", len(critical), len(missing))
	}
	for i, w := range missing {
		if w.Field != critical[i] || w.Severity != domain.SeverityHigh {
			t.Fatalf("warning %d: expected high warning for %s, got %+v", i, critical[i], w)
		}
	}
	if len(report.Warnings) != len(critical) {
		t.Fatalf("expected only missing_critical warnings, got %+v", report.Warnings)
	}
}

func TestBuildLevels(t *testing.T) {
	record := domain.NewAppraisalRecord()
	record.Set("appraiser_name", domain.StringValue("Eng. Samir"))
	record.Set("unit_area", domain.NumberValue(0))
	record.Set("building_age", domain.NumberValue(400))
	record.Set("overall_condition", domain.EnumValue("unknown"))
	record.SetConfidence("overall_condition", 0.5)

	report := newTestMapper().Build(record)

	if fm := mappingFor(t, report, "appraiser_name"); fm.Level != domain.LevelNone || !fm.Valid || !fm.Extracted {
		t.Fatalf("expected clean mapping, got %+v", fm)
	}
	if fm := mappingFor(t, report, "unit_area"); fm.Level != domain.LevelError || fm.Valid {
		t.Fatalf("expected error for out-of-range critical value, got %+v", fm)
	}
	if fm := mappingFor(t, report, "building_age"); fm.Level != domain.LevelError {
		t.Fatalf("expected error for out-of-range value, got %+v", fm)
	}
	if fm := mappingFor(t, report, "overall_condition"); fm.Level != domain.LevelWarning || fm.Confidence == nil {
		t.Fatalf("expected low-confidence warning, got %+v", fm)
	}
	if fm := mappingFor(t, report, "client_name"); fm.Level != domain.LevelWarning || fm.Extracted {
		t.Fatalf("expected warning for missing required field, got %+v", fm)
	}
	if fm := mappingFor(t, report, "client_email"); fm.Level != domain.LevelInfo {
		t.Fatalf("expected info for missing optional field, got %+v", fm)
	}

	validation := report.WarningsOf(domain.WarningValidationError)
	if len(validation) != 2 {
		t.Fatalf("expected 2 validation errors, got %+v", validation)
	}
	if validation[0].Field != "building_age" || validation[0].Severity != domain.SeverityMedium {
		t.Fatalf("expected medium severity for non-critical field first, got %+v", validation[0])
	}
	if validation[1].Field != "unit_area" || validation[1].Severity != domain.SeverityHigh {
		t.Fatalf("expected high severity for critical field, got %+v", validation[1])
	}
	if report.LowConfidence != 1 {
		t.Fatalf("expected one low-confidence field, got %d", report.LowConfidence)
	}
	if report.SuccessfullyMapped != 2 {
		t.Fatalf("expected 2 mapped fields, got %d", report.SuccessfullyMapped)
	}
}

func TestBuildFlagsLowConfidenceOnInvalidValues(t *testing.T) {
	record := domain.NewAppraisalRecord()
	record.Set("market_value", domain.NumberValue(-5))
	record.SetConfidence("market_value", 0.2)

	report := newTestMapper().Build(record)
	fm := mappingFor(t, report, "market_value")
	if fm.Level != domain.LevelError {
		t.Fatalf("error must outrank low confidence, got %s", fm.Level)
	}
	if report.LowConfidence != 1 || len(report.WarningsOf(domain.WarningLowConfidence)) != 1 {
		t.Fatalf("expected low confidence to be counted regardless of validity")
	}
}

func TestBuildThresholdIsConfigurable(t *testing.T) {
	record := domain.NewAppraisalRecord()
	record.Set("overall_condition", domain.EnumValue("good"))
	record.SetConfidence("overall_condition", 0.7)

	strict := New(catalog.Default(), lexicon.Default(), Config{LowConfidenceThreshold: 0.8}).Build(record)
	if strict.LowConfidence != 1 {
		t.Fatalf("expected 0.7 to be low under a 0.8 threshold")
	}
	if newTestMapper().Build(record).LowConfidence != 0 {
		t.Fatalf("expected 0.7 to pass the default threshold")
	}
}

func TestBuildUnmappedExtras(t *testing.T) {
	record := domain.NewAppraisalRecord()
	record.Extras["special_features"] = "حديقة"
	record.Extras["appraiser_remarks"] = "العقار بحالة جيدة"

	report := newTestMapper().Build(record)
	if report.UnmappedExtra != 2 || len(report.Unmapped) != 2 {
		t.Fatalf("expected 2 unmapped entries, got %+v", report.Unmapped)
	}
	if report.Unmapped[0].Key != "appraiser_remarks" {
		t.Fatalf("expected unmapped keys in sorted order, got %+v", report.Unmapped)
	}
	if report.Unmapped[0].Suggestion != "append to additional_notes" {
		t.Fatalf("unexpected suggestion %q", report.Unmapped[0].Suggestion)
	}
	if report.Unmapped[1].Suggestion == "" {
		t.Fatalf("every unmapped entry needs a suggestion")
	}
	if len(report.WarningsOf(domain.WarningUnmappedData)) != 2 {
		t.Fatalf("expected unmapped_data warnings")
	}
	if report.TotalExtracted != 2 {
		t.Fatalf("expected extras to count as extracted, got %d", report.TotalExtracted)
	}
}

func TestCompletenessIsMonotonic(t *testing.T) {
	cat := catalog.Default()
	mapper := newTestMapper()
	record := domain.NewAppraisalRecord()

	previous := mapper.Build(record).Completeness
	additions := map[string]domain.FieldValue{
		"client_name":             domain.StringValue("Nour"),
		"unit_area":               domain.NumberValue(140),
		"property_type":           domain.EnumValue("apartment"),
		"has_basement":            domain.BoolValue(false),
		"market_value":            domain.NumberValue(2500000),
		"governorate":             domain.StringValue("Cairo"),
		"general_floor_materials": domain.ListValue([]string{"ceramic"}),
	}
	for _, def := range cat.Fields() {
		v, ok := additions[def.Name]
		if !ok {
			continue
		}
		record.Set(def.Name, v)
		current := mapper.Build(record).Completeness
		if current <= previous {
			t.Fatalf("adding valid %s did not raise completeness: %v -> %v", def.Name, previous, current)
		}
		if current < 0 || current > 100 {
			t.Fatalf("completeness out of range: %v", current)
		}
		previous = current
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	record := domain.NewAppraisalRecord()
	record.Set("bedrooms", domain.NumberValue(3))
	record.Extras["b"] = "x"
	record.Extras["a"] = "y"
	record.Extras["c"] = "z"

	mapper := newTestMapper()
	first := mapper.Build(record)
	for i := 0; i < 5; i++ {
		next := mapper.Build(record)
		for j := range first.Warnings {
			if first.Warnings[j] != next.Warnings[j] {
				t.Fatalf("warnings differ between runs at %d", j)
			}
		}
	}
}
