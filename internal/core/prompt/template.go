// Package prompt owns the versioned extraction template: the instruction sent
// to the document model, the exact set of keys it must return, and the
// parsing of its answer into a flat record.
package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed templates/appraisal-extraction-v1.yaml
var embeddedTemplate []byte

type Field struct {
	Key  string `yaml:"key"`
	Hint string `yaml:"hint"`
}

type Section struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

type Template struct {
	Version     string    `yaml:"version"`
	Instruction string    `yaml:"instruction"`
	Rules       []string  `yaml:"rules"`
	Sections    []Section `yaml:"sections"`

	keys   []string
	schema *jsonschema.Schema
}

// Load reads the template at path, or the embedded default when path is
// empty.
func Load(path string) (*Template, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(bytes.NewReader(embeddedTemplate))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompt template: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Template, error) {
	var t Template
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode prompt template: %w", err)
	}
	if strings.TrimSpace(t.Version) == "" {
		return nil, errors.New("prompt template: version is required")
	}
	if strings.TrimSpace(t.Instruction) == "" {
		return nil, errors.New("prompt template: instruction is required")
	}

	seen := map[string]struct{}{}
	for _, section := range t.Sections {
		for _, field := range section.Fields {
			key := strings.TrimSpace(field.Key)
			if key == "" {
				return nil, fmt.Errorf("prompt template: empty key in section %q", section.Name)
			}
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("prompt template: duplicate key %q", key)
			}
			seen[key] = struct{}{}
			t.keys = append(t.keys, key)
		}
	}
	if len(t.keys) == 0 {
		return nil, errors.New("prompt template: no keys declared")
	}

	schema, err := compileSchema(t.keys)
	if err != nil {
		return nil, err
	}
	t.schema = schema
	return &t, nil
}

// Keys returns the output keys in template order.
func (t *Template) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Render builds the prompt text: instruction, rules, then a JSON skeleton
// with every key and its hint.
func (t *Template) Render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Instruction))
	b.WriteString("\n\nRules:\n")
	for _, rule := range t.Rules {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(rule))
		b.WriteString("\n")
	}
	b.WriteString("\nReturn exactly this JSON object, replacing each hint with the value found or \"\":\n{\n")
	total := len(t.keys)
	i := 0
	for _, section := range t.Sections {
		for _, field := range section.Fields {
			i++
			hint, _ := json.Marshal(field.Hint)
			fmt.Fprintf(&b, "  %q: %s", strings.TrimSpace(field.Key), hint)
			if i < total {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("}\n")
	return b.String()
}
