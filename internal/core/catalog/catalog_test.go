package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
)

func TestDefaultCatalogDeclaresCriticalFields(t *testing.T) {
	c := Default()
	want := []string{
		"appraiser_name", "valuation_date", "governorate", "district",
		"property_type", "unit_area", "market_value", "final_appraised_value",
	}
	got := c.Critical()
	if len(got) != len(want) {
		t.Fatalf("expected %d critical fields, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("critical field %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	for _, name := range got {
		def, _ := c.Lookup(name)
		if !def.Required {
			t.Fatalf("critical field %s must also be required", name)
		}
	}
}

func TestDefaultCatalogRoundingRules(t *testing.T) {
	c := Default()
	money := c.ByRounding(RoundMoney)
	perArea := c.ByRounding(RoundPerArea)
	if len(money) == 0 || len(perArea) == 0 {
		t.Fatalf("expected money and per-area fields, got %d/%d", len(money), len(perArea))
	}
	for _, def := range append(money, perArea...) {
		if def.Type != TypeNumber {
			t.Fatalf("rounded field %s must be numeric", def.Name)
		}
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	unitArea, _ := c.Lookup("unit_area")
	propertyType, _ := c.Lookup("property_type")
	elevator, _ := c.Lookup("elevator_available")

	if err := c.Validate(unitArea, domain.NumberValue(120)); err != nil {
		t.Fatalf("expected valid area, got %v", err)
	}
	if err := c.Validate(unitArea, domain.NumberValue(0)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if err := c.Validate(unitArea, domain.StringValue("120")); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if err := c.Validate(propertyType, domain.EnumValue("apartment")); err != nil {
		t.Fatalf("expected valid enum, got %v", err)
	}
	if err := c.Validate(propertyType, domain.EnumValue("castle")); !errors.Is(err, ErrNotInEnum) {
		t.Fatalf("expected enum violation, got %v", err)
	}
	if err := c.Validate(elevator, domain.BoolValue(false)); err != nil {
		t.Fatalf("expected valid boolean, got %v", err)
	}
}

func TestLoadRejectsUnknownEnumTable(t *testing.T) {
	doc := `
version: 1
fields:
  - {name: x, type: enum, enum: nope}
`
	_, err := Load(strings.NewReader(doc), lexicon.Default())
	if err == nil || !strings.Contains(err.Error(), "unknown enum table") {
		t.Fatalf("expected unknown enum table error, got %v", err)
	}
}

func TestLoadRejectsRoundingOnStrings(t *testing.T) {
	doc := `
version: 1
fields:
  - {name: x, type: string, rounding: money}
`
	if _, err := Load(strings.NewReader(doc), lexicon.Default()); err == nil {
		t.Fatalf("expected rounding error")
	}
}
