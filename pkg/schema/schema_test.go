package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floodSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"required": []interface{}{"severity", "observation_count"},
		"properties": map[string]interface{}{
			"severity": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"low", "medium", "high"},
			},
			"water_level_meters": map[string]interface{}{
				"type":    "number",
				"minimum": 0,
				"maximum": 100,
			},
			"observation_count": map[string]interface{}{
				"type":    "integer",
				"minimum": 1,
			},
			"network_trust": map[string]interface{}{"type": "number"},
			"notes": map[string]interface{}{
				"type":      "string",
				"minLength": 2,
				"maxLength": 10,
				"pattern":   "^[a-z ]+$",
			},
		},
		"additionalProperties": false,
	}
}

func TestValidate_Success(t *testing.T) {
	s, err := Compile(floodSchema())
	require.NoError(t, err)

	payload := map[string]interface{}{
		"severity":           "high",
		"water_level_meters": 1.5,
		"observation_count":  2,
	}
	canonicalized, err := s.Validate(payload)
	require.NoError(t, err)
	assert.Equal(t, "high", canonicalized["severity"])
}

func TestValidate_SortedErrors(t *testing.T) {
	s, err := Compile(floodSchema())
	require.NoError(t, err)

	payload := map[string]interface{}{
		"severity": "catastrophic", // ENUM_INVALID
		"extra":    true,           // ADDITIONAL_PROPERTIES
		"notes":    "X",            // MIN_LENGTH and PATTERN
		// observation_count missing -> REQUIRED
	}
	_, err = s.Validate(payload)
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)

	got := make([][2]string, len(verr.Entries))
	for i, e := range verr.Entries {
		got[i] = [2]string{e.Path, e.Code}
	}
	want := [][2]string{
		{"$.extra", CodeAdditionalProperties},
		{"$.notes", CodeMinLength},
		{"$.notes", CodePattern},
		{"$.observation_count", CodeRequired},
		{"$.severity", CodeEnumInvalid},
	}
	assert.Equal(t, want, got)
}

func TestValidate_ErrorsDeterministic(t *testing.T) {
	s, err := Compile(floodSchema())
	require.NoError(t, err)

	payload := map[string]interface{}{
		"severity":           "high",
		"water_level_meters": -3.0,
		"observation_count":  0,
		"unknown_a":          1,
		"unknown_b":          2,
	}
	_, first := s.Validate(payload)
	require.Error(t, first)
	for i := 0; i < 10; i++ {
		_, again := s.Validate(payload)
		require.Error(t, again)
		assert.Equal(t, first.Error(), again.Error())
	}
}

func TestValidate_TypeMismatchStopsDescent(t *testing.T) {
	s, err := Compile(floodSchema())
	require.NoError(t, err)

	_, err = s.Validate(map[string]interface{}{
		"severity":          map[string]interface{}{"nested": true},
		"observation_count": 1,
	})
	require.Error(t, err)
	verr := err.(*ValidationError)
	require.Len(t, verr.Entries, 1)
	assert.Equal(t, "$.severity", verr.Entries[0].Path)
	assert.Equal(t, CodeTypeMismatch, verr.Entries[0].Code)
}

func TestValidate_ArrayItems(t *testing.T) {
	s, err := Compile(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tags": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string", "minLength": 1},
			},
		},
	})
	require.NoError(t, err)

	_, err = s.Validate(map[string]interface{}{
		"tags": []interface{}{"ok", "", 3},
	})
	require.Error(t, err)
	verr := err.(*ValidationError)
	require.Len(t, verr.Entries, 2)
	assert.Equal(t, "$.tags[1]", verr.Entries[0].Path)
	assert.Equal(t, CodeMinLength, verr.Entries[0].Code)
	assert.Equal(t, "$.tags[2]", verr.Entries[1].Path)
	assert.Equal(t, CodeTypeMismatch, verr.Entries[1].Code)
}

func TestValidate_IntegerVsNumber(t *testing.T) {
	s, err := Compile(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "integer"},
		},
	})
	require.NoError(t, err)

	_, err = s.Validate(map[string]interface{}{"count": 2.5})
	require.Error(t, err)

	_, err = s.Validate(map[string]interface{}{"count": 2.0})
	assert.NoError(t, err)
}

func TestCompile_Malformed(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 7})
	assert.Error(t, err)
	_, err = Compile(map[string]interface{}{"pattern": "["})
	assert.Error(t, err)
	_, err = Compile(map[string]interface{}{"required": "severity"})
	assert.Error(t, err)
}
