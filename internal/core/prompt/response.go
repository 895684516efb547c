package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\n?\\s*```$")

// StripCodeFence removes a surrounding fenced code block, if any.
func StripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ParseResponse decodes the model answer into a flat record holding every
// template key. Keys outside the template are kept. Anything that is not a
// single JSON object of scalars is a domain.ErrInvalidResponse.
func (t *Template) ParseResponse(raw string) (domain.FlatRecord, error) {
	body := StripCodeFence(raw)
	if body == "" {
		return nil, domain.WrapError(domain.ErrInvalidResponse, "parse_response", fmt.Errorf("empty response"))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidResponse, "parse_response", fmt.Errorf("decode json: %w", err))
	}
	if dec.More() {
		return nil, domain.WrapError(domain.ErrInvalidResponse, "parse_response", fmt.Errorf("trailing data after json object"))
	}
	object, ok := decoded.(map[string]any)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidResponse, "parse_response", fmt.Errorf("expected a json object, got %T", decoded))
	}
	if err := t.schema.Validate(object); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidResponse, "parse_response", fmt.Errorf("json does not match schema: %w", err))
	}

	record := make(domain.FlatRecord, len(t.keys)+len(object))
	for _, key := range t.keys {
		record[key] = ""
	}
	for key, value := range object {
		record[key] = stringify(value)
	}
	return record, nil
}

func stringify(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(typed)
		return strings.TrimSpace(buf.String())
	}
}
