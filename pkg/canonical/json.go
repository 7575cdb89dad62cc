// Package canonical provides deterministic serialization for protocol
// hashing: canonical JSON, float quantization, NFC string normalization,
// UTC datetime formats, URI normalization, and time bucketing.
//
// All protocol hashing MUST go through this package. The rules follow
// RFC 8785 where they overlap (sorted keys, no HTML escaping) with two
// protocol-specific tightenings: fractional numbers are quantized to a
// fixed decimal precision, and strings are NFC-normalized.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MarshalJSON returns the canonical JSON bytes of v.
//
// Key properties:
//  1. Map keys sorted lexicographically by UTF-8 bytes.
//  2. Separators are ',' and ':' with no whitespace, no trailing newline.
//  3. HTML escaping is DISABLED (unlike standard json.Marshal).
//  4. Fractional numbers are quantized to 1e-6 with half-up rounding.
//  5. Strings are NFC-normalized.
//
// NaN and infinities are rejected with CodeNonFiniteNumber.
func MarshalJSON(v interface{}) ([]byte, error) {
	// Marshal to intermediate JSON (standard, respects struct tags), then
	// decode to interface{} with json.Number, then re-marshal recursively.
	// This keeps struct tag handling while overriding ordering and number
	// formatting.
	intermediate, err := json.Marshal(v)
	if err != nil {
		if strings.Contains(err.Error(), "unsupported value") {
			return nil, newError(CodeNonFiniteNumber, "cannot canonicalize NaN or infinity")
		}
		return nil, newError(CodeEncoding, fmt.Sprintf("pre-marshal failed: %v", err))
	}

	var generic interface{}
	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	if err := decoder.Decode(&generic); err != nil {
		return nil, newError(CodeEncoding, fmt.Sprintf("intermediate decode failed: %v", err))
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSONString is MarshalJSON returning a string.
func MarshalJSONString(v interface{}) (string, error) {
	b, err := MarshalJSON(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		s, err := canonicalNumber(t.String())
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case string:
		return encodeString(buf, NormalizeUnicode(t))
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		values := make(map[string]interface{}, len(t))
		for k, v := range t {
			nk := NormalizeUnicode(k)
			keys = append(keys, nk)
			values[nk] = v
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return newError(CodeEncoding, fmt.Sprintf("unsupported type %T", v))
	}
	return nil
}

// encodeString writes a JSON string without HTML escaping.
func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return newError(CodeEncoding, fmt.Sprintf("string encode failed: %v", err))
	}
	// json.Encoder appends a newline; canonical output has none.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// canonicalNumber normalizes a JSON number literal. Integer literals pass
// through unchanged; fractional and exponent forms are quantized via
// CanonicalFloatString.
func canonicalNumber(s string) (string, error) {
	if !strings.ContainsAny(s, ".eE") {
		if s == "-0" {
			return "0", nil
		}
		return s, nil
	}
	return CanonicalFloatString(s, DefaultPrecision)
}

// Dict canonicalizes a map in place-of: sorted handling happens at encode
// time, so Dict only normalizes strings and recurses into nested maps and
// slices. The result is safe to hash via MarshalJSON.
func Dict(obj map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		result[NormalizeUnicode(k)] = dictValue(v)
	}
	return result
}

func dictValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return NormalizeUnicode(t)
	case map[string]interface{}:
		return Dict(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = dictValue(e)
		}
		return out
	default:
		return v
	}
}
