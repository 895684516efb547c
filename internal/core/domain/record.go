package domain

import (
	"encoding/json"
	"sort"
	"strconv"
)

// FlatRecord is the untyped extraction output: every template key maps to a
// string, "" when the value was not found.
type FlatRecord map[string]string

// Keys returns the record keys in lexical order.
func (r FlatRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type ValueKind string

const (
	KindString  ValueKind = "string"
	KindNumber  ValueKind = "number"
	KindBoolean ValueKind = "boolean"
	KindEnum    ValueKind = "enum"
	KindList    ValueKind = "record"
)

// FieldValue is a tagged typed value. Only the member matching Kind is
// meaningful.
type FieldValue struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	List []string
}

func StringValue(s string) FieldValue   { return FieldValue{Kind: KindString, Str: s} }
func NumberValue(n float64) FieldValue  { return FieldValue{Kind: KindNumber, Num: n} }
func BoolValue(b bool) FieldValue       { return FieldValue{Kind: KindBoolean, Bool: b} }
func EnumValue(token string) FieldValue { return FieldValue{Kind: KindEnum, Str: token} }
func ListValue(items []string) FieldValue {
	return FieldValue{Kind: KindList, List: append([]string(nil), items...)}
}

// Interface returns the plain Go value carried by v.
func (v FieldValue) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindBoolean:
		return v.Bool
	case KindList:
		return v.List
	default:
		return v.Str
	}
}

// String renders the value for reports and spreadsheets.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindList:
		out, _ := json.Marshal(v.List)
		return string(out)
	default:
		return v.Str
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case float64:
		*v = NumberValue(typed)
	case bool:
		*v = BoolValue(typed)
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
		*v = ListValue(items)
	case string:
		*v = StringValue(typed)
	default:
		*v = FieldValue{}
	}
	return nil
}

// AppraisalRecord is the typed counterpart of FlatRecord. Absent fields are
// simply not in Values.
type AppraisalRecord struct {
	Values     map[string]FieldValue `json:"values"`
	Extras     map[string]string     `json:"extras,omitempty"`
	Confidence map[string]float64    `json:"confidence,omitempty"`
	Notes      []string              `json:"notes,omitempty"`
}

func NewAppraisalRecord() *AppraisalRecord {
	return &AppraisalRecord{
		Values:     map[string]FieldValue{},
		Extras:     map[string]string{},
		Confidence: map[string]float64{},
	}
}

func (r *AppraisalRecord) Set(name string, value FieldValue) {
	r.Values[name] = value
}

func (r *AppraisalRecord) Get(name string) (FieldValue, bool) {
	v, ok := r.Values[name]
	return v, ok
}

func (r *AppraisalRecord) Unset(name string) {
	delete(r.Values, name)
}

func (r *AppraisalRecord) SetConfidence(name string, confidence float64) {
	r.Confidence[name] = confidence
}

func (r *AppraisalRecord) Note(note string) {
	r.Notes = append(r.Notes, note)
}
