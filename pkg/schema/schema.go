// Package schema implements a restricted, fully deterministic JSON-Schema
// evaluator for claim payloads.
//
// Third-party validators do not guarantee stable error ordering, so the
// evaluator is purpose-built: it supports the subset claim types need
// (type, required, properties, additionalProperties, enum, minLength,
// maxLength, pattern, minimum, maximum, uniform array items, nested
// objects) and returns errors sorted by (path, code) from a closed code
// set. On success it returns the canonicalized payload, safe to hash.
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

// Error codes. Closed set: messages never carry locale-dependent text.
const (
	CodeRequired             = "REQUIRED"
	CodeTypeMismatch         = "TYPE_MISMATCH"
	CodeEnumInvalid          = "ENUM_INVALID"
	CodeMinLength            = "MIN_LENGTH"
	CodeMaxLength            = "MAX_LENGTH"
	CodeMinimum              = "MINIMUM"
	CodeMaximum              = "MAXIMUM"
	CodePattern              = "PATTERN"
	CodeFormat               = "FORMAT"
	CodeAdditionalProperties = "ADDITIONAL_PROPERTIES"
)

// Entry is a single validation failure at a payload path.
type Entry struct {
	Path   string `json:"path"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// ValidationError carries the sorted list of entries. Identical payloads
// and schemas produce identical error bytes.
type ValidationError struct {
	Entries []Entry
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		parts[i] = fmt.Sprintf("[%s] %s", entry.Code, entry.Path)
	}
	return "payload failed schema validation: " + strings.Join(parts, "; ")
}

// Schema is a compiled schema node.
type Schema struct {
	Type                 string
	Required             []string
	Properties           map[string]*Schema
	AdditionalProperties bool // default true
	Enum                 []interface{}
	MinLength            *int
	MaxLength            *int
	Pattern              *regexp.Regexp
	Minimum              *float64
	Maximum              *float64
	Items                *Schema

	raw map[string]interface{}
}

// Compile builds a Schema from its JSON object form. Unknown keywords are
// ignored; malformed keyword values are a compile error so they cannot
// surface as nondeterministic runtime behavior.
func Compile(doc map[string]interface{}) (*Schema, error) {
	s := &Schema{AdditionalProperties: true, raw: doc}

	if v, ok := doc["type"]; ok {
		t, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("schema: type must be a string")
		}
		s.Type = t
	}
	if v, ok := doc["required"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("schema: required must be an array")
		}
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("schema: required entries must be strings")
			}
			s.Required = append(s.Required, name)
		}
		sort.Strings(s.Required)
	}
	if v, ok := doc["properties"]; ok {
		props, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("schema: properties must be an object")
		}
		s.Properties = make(map[string]*Schema, len(props))
		for name, sub := range props {
			subDoc, ok := sub.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("schema: property %q must be an object", name)
			}
			compiled, err := Compile(subDoc)
			if err != nil {
				return nil, err
			}
			s.Properties[name] = compiled
		}
	}
	if v, ok := doc["additionalProperties"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("schema: additionalProperties must be a boolean")
		}
		s.AdditionalProperties = b
	}
	if v, ok := doc["enum"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("schema: enum must be an array")
		}
		s.Enum = list
	}
	if n, ok, err := intKeyword(doc, "minLength"); err != nil {
		return nil, err
	} else if ok {
		s.MinLength = &n
	}
	if n, ok, err := intKeyword(doc, "maxLength"); err != nil {
		return nil, err
	} else if ok {
		s.MaxLength = &n
	}
	if v, ok := doc["pattern"]; ok {
		p, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("schema: pattern must be a string")
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("schema: invalid pattern %q: %w", p, err)
		}
		s.Pattern = re
	}
	if f, ok, err := numberKeyword(doc, "minimum"); err != nil {
		return nil, err
	} else if ok {
		s.Minimum = &f
	}
	if f, ok, err := numberKeyword(doc, "maximum"); err != nil {
		return nil, err
	} else if ok {
		s.Maximum = &f
	}
	if v, ok := doc["items"]; ok {
		sub, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("schema: items must be an object")
		}
		compiled, err := Compile(sub)
		if err != nil {
			return nil, err
		}
		s.Items = compiled
	}
	return s, nil
}

func intKeyword(doc map[string]interface{}, key string) (int, bool, error) {
	v, ok := doc[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case float64:
		return int(n), true, nil
	default:
		return 0, false, fmt.Errorf("schema: %s must be a number", key)
	}
}

func numberKeyword(doc map[string]interface{}, key string) (float64, bool, error) {
	v, ok := doc[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), true, nil
	case float64:
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("schema: %s must be a number", key)
	}
}

// Validate checks payload against the schema. On success it returns the
// canonicalized payload (sorted keys happen at hash time; strings are
// NFC-normalized here). On failure it returns a ValidationError whose
// entries are sorted by (path, code).
func (s *Schema) Validate(payload map[string]interface{}) (map[string]interface{}, error) {
	entries := s.validate(payload, "$")
	if len(entries) > 0 {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Path != entries[j].Path {
				return entries[i].Path < entries[j].Path
			}
			return entries[i].Code < entries[j].Code
		})
		return nil, &ValidationError{Entries: entries}
	}
	return canonical.Dict(payload), nil
}

func (s *Schema) validate(data interface{}, path string) []Entry {
	var entries []Entry

	if s.Type != "" && !checkType(data, s.Type) {
		// Stop descending on a type mismatch; nested errors would be noise.
		return []Entry{{Path: path, Code: CodeTypeMismatch,
			Detail: fmt.Sprintf("expected %s", s.Type)}}
	}

	switch s.Type {
	case "object":
		obj, ok := data.(map[string]interface{})
		if !ok {
			return entries
		}
		for _, field := range s.Required {
			if _, present := obj[field]; !present {
				entries = append(entries, Entry{Path: path + "." + field, Code: CodeRequired})
			}
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			propPath := path + "." + key
			if sub, known := s.Properties[key]; known {
				entries = append(entries, sub.validate(obj[key], propPath)...)
			} else if !s.AdditionalProperties {
				entries = append(entries, Entry{Path: propPath, Code: CodeAdditionalProperties})
			}
		}

	case "array":
		arr, ok := data.([]interface{})
		if !ok {
			return entries
		}
		if s.Items != nil {
			for i, item := range arr {
				entries = append(entries, s.Items.validate(item, fmt.Sprintf("%s[%d]", path, i))...)
			}
		}

	case "string":
		str, ok := data.(string)
		if !ok {
			return entries
		}
		length := len([]rune(str))
		if s.MinLength != nil && length < *s.MinLength {
			entries = append(entries, Entry{Path: path, Code: CodeMinLength,
				Detail: fmt.Sprintf("min %d", *s.MinLength)})
		}
		if s.MaxLength != nil && length > *s.MaxLength {
			entries = append(entries, Entry{Path: path, Code: CodeMaxLength,
				Detail: fmt.Sprintf("max %d", *s.MaxLength)})
		}
		if s.Pattern != nil && !s.Pattern.MatchString(str) {
			entries = append(entries, Entry{Path: path, Code: CodePattern,
				Detail: s.Pattern.String()})
		}

	case "number", "integer":
		num, ok := asNumber(data)
		if !ok {
			return entries
		}
		if s.Minimum != nil && num < *s.Minimum {
			entries = append(entries, Entry{Path: path, Code: CodeMinimum,
				Detail: canonical.MustCanonicalFloat(*s.Minimum, canonical.DefaultPrecision)})
		}
		if s.Maximum != nil && num > *s.Maximum {
			entries = append(entries, Entry{Path: path, Code: CodeMaximum,
				Detail: canonical.MustCanonicalFloat(*s.Maximum, canonical.DefaultPrecision)})
		}
	}

	if len(s.Enum) > 0 && !enumContains(s.Enum, data) {
		entries = append(entries, Entry{Path: path, Code: CodeEnumInvalid})
	}

	return entries
}

func checkType(data interface{}, expected string) bool {
	switch expected {
	case "string":
		_, ok := data.(string)
		return ok
	case "boolean":
		_, ok := data.(bool)
		return ok
	case "object":
		_, ok := data.(map[string]interface{})
		return ok
	case "array":
		_, ok := data.([]interface{})
		return ok
	case "null":
		return data == nil
	case "number":
		_, ok := asNumber(data)
		return ok
	case "integer":
		n, ok := asNumber(data)
		return ok && n == float64(int64(n))
	}
	return true
}

func asNumber(data interface{}) (float64, bool) {
	switch n := data.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func enumContains(enum []interface{}, data interface{}) bool {
	for _, allowed := range enum {
		if enumEqual(allowed, data) {
			return true
		}
	}
	return false
}

func enumEqual(a, b interface{}) bool {
	if na, ok := asNumber(a); ok {
		nb, ok := asNumber(b)
		return ok && na == nb
	}
	return a == b
}
