// Package normalize turns the flat string record returned by the document
// model into a typed appraisal record.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/appraisal-intelligence/internal/core/catalog"
	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
)

const (
	// FallbackConfidence marks values the normalizer had to guess: enum
	// defaults, translated addresses and mixed-format material lists.
	FallbackConfidence = 0.5

	addressArabicField  = "property_address_arabic"
	addressEnglishField = "property_address_english"
)

type materialSource struct {
	key        string
	table      string
	general    string
	roomSuffix string
}

var materialSources = []materialSource{
	{key: "floor_materials", table: "floor_material", general: "general_floor_materials", roomSuffix: "_flooring"},
	{key: "wall_finishes", table: "wall_material", general: "general_wall_finishes", roomSuffix: "_walls"},
	{key: "exterior_finishes", table: "exterior_finish", general: "general_exterior_finishes"},
}

type Normalizer struct {
	lex     *lexicon.Lexicon
	catalog *catalog.Catalog
}

func New(lex *lexicon.Lexicon, cat *catalog.Catalog) *Normalizer {
	return &Normalizer{lex: lex, catalog: cat}
}

// Normalize never fails: values that cannot be coerced are left unset and
// explained in the record notes, so the mapping report can flag them.
func (n *Normalizer) Normalize(flat domain.FlatRecord) *domain.AppraisalRecord {
	record := domain.NewAppraisalRecord()

	for _, def := range n.catalog.Fields() {
		if def.Source != "" {
			continue
		}
		raw := collapseSpaces(flat[def.Name])
		if raw == "" {
			continue
		}
		n.coerce(record, def, raw)
	}

	for _, src := range materialSources {
		n.materials(record, src, flat[src.key])
	}

	n.applyRounding(record)
	n.deriveAddress(record)
	n.collectExtras(record, flat)

	return record
}

func (n *Normalizer) coerce(record *domain.AppraisalRecord, def catalog.FieldDefinition, raw string) {
	switch def.Type {
	case catalog.TypeString:
		record.Set(def.Name, domain.StringValue(raw))
	case catalog.TypeNumber:
		v, ok := ParseNumber(raw)
		if !ok {
			record.Note(fmt.Sprintf("%s: could not read a number from %q", def.Name, raw))
			return
		}
		record.Set(def.Name, domain.NumberValue(v))
	case catalog.TypeBoolean:
		record.Set(def.Name, domain.BoolValue(n.lex.IsTruthy(raw)))
	case catalog.TypeEnum:
		table, ok := n.catalog.EnumTable(def.Name)
		if !ok {
			return
		}
		token, matched := table.Map(raw)
		record.Set(def.Name, domain.EnumValue(token))
		if !matched {
			record.SetConfidence(def.Name, FallbackConfidence)
			record.Note(fmt.Sprintf("%s: %q not recognised, defaulted to %q", def.Name, raw, token))
		}
	case catalog.TypeRecord:
		record.Set(def.Name, domain.ListValue(splitTopLevel(raw)))
	}
}

func (n *Normalizer) materials(record *domain.AppraisalRecord, src materialSource, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	table, ok := n.lex.Enum(src.table)
	if !ok {
		return
	}

	parsed := ParseMaterials(raw, table, n.lex)
	var touched []string

	if len(parsed.General) > 0 {
		if _, ok := n.catalog.Lookup(src.general); ok {
			record.Set(src.general, domain.ListValue(parsed.General))
			touched = append(touched, src.general)
		}
	}

	if src.roomSuffix != "" {
		rooms := make([]string, 0, len(parsed.PerRoom))
		for room := range parsed.PerRoom {
			rooms = append(rooms, room)
		}
		sort.Strings(rooms)
		for _, room := range rooms {
			field := room + src.roomSuffix
			if _, ok := n.catalog.Lookup(field); !ok {
				continue
			}
			record.Set(field, domain.StringValue(strings.Join(parsed.PerRoom[room], ", ")))
			touched = append(touched, field)
		}
	}

	for _, room := range parsed.Unresolved {
		record.Note(fmt.Sprintf("%s: unknown room %q", src.key, room))
	}
	if parsed.Format == FormatMixed {
		for _, field := range touched {
			record.SetConfidence(field, FallbackConfidence)
		}
		record.Note(fmt.Sprintf("%s: mixes room-by-room and flat list styles", src.key))
	}
}

// applyRounding runs the single money rule and the single per-area rule over
// every numeric field the catalog marks for rounding.
func (n *Normalizer) applyRounding(record *domain.AppraisalRecord) {
	rules := []struct {
		rounding catalog.Rounding
		round    func(float64) float64
	}{
		{catalog.RoundMoney, RoundMoney},
		{catalog.RoundPerArea, RoundPerArea},
	}
	for _, rule := range rules {
		for _, def := range n.catalog.ByRounding(rule.rounding) {
			v, ok := record.Get(def.Name)
			if !ok || v.Kind != domain.KindNumber {
				continue
			}
			record.Set(def.Name, domain.NumberValue(rule.round(v.Num)))
		}
	}
}

func (n *Normalizer) deriveAddress(record *domain.AppraisalRecord) {
	if _, ok := record.Get(addressEnglishField); ok {
		return
	}
	arabic, ok := record.Get(addressArabicField)
	if !ok || arabic.Str == "" {
		return
	}
	english, changed := n.lex.TranslateAddress(arabic.Str)
	if !changed {
		record.Note(fmt.Sprintf("%s: no known place names to translate", addressEnglishField))
		return
	}
	record.Set(addressEnglishField, domain.StringValue(english))
	record.SetConfidence(addressEnglishField, FallbackConfidence)
}

// collectExtras keeps non-empty values that have no catalog destination.
func (n *Normalizer) collectExtras(record *domain.AppraisalRecord, flat domain.FlatRecord) {
	sources := make(map[string]struct{}, len(materialSources))
	for _, src := range materialSources {
		sources[src.key] = struct{}{}
	}
	for key, value := range flat {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := n.catalog.Lookup(key); ok {
			continue
		}
		if _, ok := sources[key]; ok {
			continue
		}
		record.Extras[key] = value
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
