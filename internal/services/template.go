package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/huangang/promptlib/internal/models"
)

// placeholderPattern matches {{...}} tokens non-greedily; tokens never span lines.
var placeholderPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

type valueKind int

const (
	valueUnset valueKind = iota
	valueText
	valueNumber
	valueList
)

// FieldValue is the current form value of one template field. The zero value is unset.
type FieldValue struct {
	kind   valueKind
	text   string
	number float64
	list   []string
}

func Unset() FieldValue {
	return FieldValue{}
}

func TextValue(s string) FieldValue {
	return FieldValue{kind: valueText, text: s}
}

func NumberValue(n float64) FieldValue {
	return FieldValue{kind: valueNumber, number: n}
}

func ListValue(items []string) FieldValue {
	return FieldValue{kind: valueList, list: append([]string(nil), items...)}
}

// IsSet is false for unset values, empty text and empty lists. Numbers,
// including zero, are always set.
func (v FieldValue) IsSet() bool {
	switch v.kind {
	case valueText:
		return v.text != ""
	case valueNumber:
		return true
	case valueList:
		return len(v.list) > 0
	default:
		return false
	}
}

// String renders the value as it is substituted into content.
func (v FieldValue) String() string {
	switch v.kind {
	case valueText:
		return v.text
	case valueNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case valueList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// RenderTemplate replaces every {{name}} whose value is set. Unset placeholders
// stay verbatim so an incomplete form never drops them. Substituted text is not
// scanned again.
func RenderTemplate(content string, values map[string]FieldValue) string {
	if content == "" || len(values) == 0 {
		return content
	}

	names := make([]string, 0, len(values))
	for name, v := range values {
		if v.IsSet() {
			names = append(names, regexp.QuoteMeta(name))
		}
	}
	if len(names) == 0 {
		return content
	}

	tokens := regexp.MustCompile(`\{\{(` + strings.Join(names, "|") + `)\}\}`)
	return tokens.ReplaceAllStringFunc(content, func(token string) string {
		name := token[2 : len(token)-2]
		return values[name].String()
	})
}

// PlaceholderSpan locates one {{name}} token in content (byte offsets).
type PlaceholderSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Name  string `json:"name"`
}

// HighlightPlaceholders returns the span of every placeholder token without
// changing the text. Unmatched braces are ignored.
func HighlightPlaceholders(content string) []PlaceholderSpan {
	matches := placeholderPattern.FindAllStringSubmatchIndex(content, -1)
	spans := make([]PlaceholderSpan, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, PlaceholderSpan{
			Start: m[0],
			End:   m[1],
			Name:  content[m[2]:m[3]],
		})
	}
	return spans
}

// PlaceholderNames lists distinct placeholder names in order of first appearance.
func PlaceholderNames(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, span := range HighlightPlaceholders(content) {
		if !seen[span.Name] {
			seen[span.Name] = true
			names = append(names, span.Name)
		}
	}
	return names
}

// ValuesFromInput converts decoded JSON form input into typed values for the
// given fields. Missing keys and nulls become Unset.
func ValuesFromInput(fields []models.PromptField, raw map[string]interface{}) (map[string]FieldValue, error) {
	values := make(map[string]FieldValue, len(fields))
	for _, field := range fields {
		in, ok := raw[field.Name]
		if !ok || in == nil {
			values[field.Name] = Unset()
			continue
		}

		v, err := coerceFieldValue(field, in)
		if err != nil {
			return nil, err
		}
		values[field.Name] = v
	}
	return values, nil
}

func coerceFieldValue(field models.PromptField, in interface{}) (FieldValue, error) {
	switch field.Type {
	case models.FieldNumber:
		switch n := in.(type) {
		case float64:
			return NumberValue(n), nil
		case string:
			if strings.TrimSpace(n) == "" {
				return Unset(), nil
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return Unset(), fmt.Errorf("field %q: %q is not a number", field.Name, n)
			}
			return NumberValue(f), nil
		}
	case models.FieldList:
		switch items := in.(type) {
		case []interface{}:
			list := make([]string, 0, len(items))
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return Unset(), fmt.Errorf("field %q: list items must be strings", field.Name)
				}
				list = append(list, s)
			}
			return ListValue(list), nil
		case []string:
			return ListValue(items), nil
		case string:
			return TextValue(items), nil
		}
	default:
		if s, ok := in.(string); ok {
			return TextValue(s), nil
		}
		if n, ok := in.(float64); ok {
			return TextValue(strconv.FormatFloat(n, 'f', -1, 64)), nil
		}
	}
	return Unset(), fmt.Errorf("field %q: unsupported value %T", field.Name, in)
}
