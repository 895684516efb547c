// Package catalog declares the canonical appraisal fields: their type,
// required/critical flags, numeric ranges, enum tables and rounding rules.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
)

//go:embed data/catalog.yaml
var embeddedCatalog []byte

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeEnum    FieldType = "enum"
	TypeRecord  FieldType = "record"
)

type Rounding string

const (
	RoundNone    Rounding = ""
	RoundMoney   Rounding = "money"
	RoundPerArea Rounding = "per_area"
)

type FieldDefinition struct {
	Name        string    `yaml:"name"`
	DisplayName string    `yaml:"display"`
	Section     string    `yaml:"section"`
	Type        FieldType `yaml:"type"`
	Enum        string    `yaml:"enum"`
	Rounding    Rounding  `yaml:"rounding"`
	// Source names the flat key a derived field is computed from.
	Source   string   `yaml:"source"`
	Required bool     `yaml:"required"`
	Critical bool     `yaml:"critical"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
}

type Catalog struct {
	Version int

	fields []FieldDefinition
	index  map[string]int
	enums  map[string]*lexicon.Table
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog bound to the default lexicon.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(bytes.NewReader(embeddedCatalog), lexicon.Default())
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("catalog: embedded catalog: %v", defaultErr))
	}
	return defaultCatalog
}

// Load parses a catalog and resolves its enum fields against lex.
func Load(r io.Reader, lex *lexicon.Lexicon) (*Catalog, error) {
	var raw struct {
		Version int               `yaml:"version"`
		Fields  []FieldDefinition `yaml:"fields"`
	}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}
	if len(raw.Fields) == 0 {
		return nil, errors.New("catalog: no fields declared")
	}

	c := &Catalog{
		Version: raw.Version,
		fields:  raw.Fields,
		index:   make(map[string]int, len(raw.Fields)),
		enums:   map[string]*lexicon.Table{},
	}
	for i, def := range raw.Fields {
		if def.Name == "" {
			return nil, fmt.Errorf("catalog: field %d has no name", i)
		}
		if _, dup := c.index[def.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate field %q", def.Name)
		}
		switch def.Type {
		case TypeString, TypeNumber, TypeBoolean, TypeRecord:
		case TypeEnum:
			table, ok := lex.Enum(def.Enum)
			if !ok {
				return nil, fmt.Errorf("catalog: field %q references unknown enum table %q", def.Name, def.Enum)
			}
			if table.Default == "" {
				return nil, fmt.Errorf("catalog: enum table %q used by %q has no default", def.Enum, def.Name)
			}
			c.enums[def.Name] = table
		default:
			return nil, fmt.Errorf("catalog: field %q has unknown type %q", def.Name, def.Type)
		}
		if def.Rounding != RoundNone && def.Type != TypeNumber {
			return nil, fmt.Errorf("catalog: field %q rounds a non-numeric value", def.Name)
		}
		c.index[def.Name] = i
	}
	return c, nil
}

// Fields returns the definitions in declaration order.
func (c *Catalog) Fields() []FieldDefinition {
	return c.fields
}

func (c *Catalog) Len() int { return len(c.fields) }

func (c *Catalog) Lookup(name string) (FieldDefinition, bool) {
	i, ok := c.index[name]
	if !ok {
		return FieldDefinition{}, false
	}
	return c.fields[i], true
}

// EnumTable returns the lookup table bound to an enum field.
func (c *Catalog) EnumTable(field string) (*lexicon.Table, bool) {
	t, ok := c.enums[field]
	return t, ok
}

// Critical lists the names of critical fields in declaration order.
func (c *Catalog) Critical() []string {
	var out []string
	for _, def := range c.fields {
		if def.Critical {
			out = append(out, def.Name)
		}
	}
	return out
}

// ByRounding lists numeric fields carrying the given rounding rule.
func (c *Catalog) ByRounding(rule Rounding) []FieldDefinition {
	var out []FieldDefinition
	for _, def := range c.fields {
		if def.Rounding == rule {
			out = append(out, def)
		}
	}
	return out
}

var (
	ErrTypeMismatch = errors.New("type mismatch")
	ErrOutOfRange   = errors.New("out of range")
	ErrNotInEnum    = errors.New("not an allowed value")
)

// Validate checks a typed value against its definition.
func (c *Catalog) Validate(def FieldDefinition, v domain.FieldValue) error {
	switch def.Type {
	case TypeString:
		if v.Kind != domain.KindString {
			return fmt.Errorf("%s: %w: expected string, got %s", def.Name, ErrTypeMismatch, v.Kind)
		}
	case TypeNumber:
		if v.Kind != domain.KindNumber {
			return fmt.Errorf("%s: %w: expected number, got %s", def.Name, ErrTypeMismatch, v.Kind)
		}
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return fmt.Errorf("%s: %w: not a finite number", def.Name, ErrOutOfRange)
		}
		if def.Min != nil && v.Num < *def.Min {
			return fmt.Errorf("%s: %w: %v below minimum %v", def.Name, ErrOutOfRange, v.Num, *def.Min)
		}
		if def.Max != nil && v.Num > *def.Max {
			return fmt.Errorf("%s: %w: %v above maximum %v", def.Name, ErrOutOfRange, v.Num, *def.Max)
		}
	case TypeBoolean:
		if v.Kind != domain.KindBoolean {
			return fmt.Errorf("%s: %w: expected boolean, got %s", def.Name, ErrTypeMismatch, v.Kind)
		}
	case TypeEnum:
		if v.Kind != domain.KindEnum {
			return fmt.Errorf("%s: %w: expected enum, got %s", def.Name, ErrTypeMismatch, v.Kind)
		}
		table := c.enums[def.Name]
		if table == nil || !table.Allows(v.Str) {
			return fmt.Errorf("%s: %w: %q", def.Name, ErrNotInEnum, v.Str)
		}
	case TypeRecord:
		if v.Kind != domain.KindList {
			return fmt.Errorf("%s: %w: expected list, got %s", def.Name, ErrTypeMismatch, v.Kind)
		}
	}
	return nil
}
