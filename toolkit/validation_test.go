package toolkit

import (
	"testing"
)

func TestValidateArgumentsEmptySchema(t *testing.T) {
	if err := validateArguments(nil, map[string]any{"anything": 1}); err != nil {
		t.Fatalf("empty schema must accept anything, got %v", err)
	}
}

func TestValidateArgumentsTypes(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"s":   map[string]any{"type": "string"},
			"n":   map[string]any{"type": "number"},
			"i":   map[string]any{"type": "integer"},
			"b":   map[string]any{"type": "boolean"},
			"obj": map[string]any{"type": "object"},
			"arr": map[string]any{"type": "array"},
		},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"all valid", map[string]any{
			"s": "x", "n": 1.5, "i": 3, "b": true,
			"obj": map[string]any{}, "arr": []any{1},
		}, false},
		{"json integer as float64", map[string]any{"i": float64(4)}, false},
		{"fractional float for integer", map[string]any{"i": 4.5}, true},
		{"string for number", map[string]any{"n": "1.5"}, true},
		{"bool for string", map[string]any{"s": false}, true},
		{"nil for object", map[string]any{"obj": nil}, true},
		{"string for array", map[string]any{"arr": "nope"}, true},
		{"undeclared argument allowed by default", map[string]any{"extra": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateArguments(schema, tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateArguments() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateArgumentsRequired(t *testing.T) {
	schema := map[string]any{
		"required": []string{"a", "b"},
	}
	if err := validateArguments(schema, map[string]any{"a": 1}); err == nil {
		t.Error("expected missing required argument error")
	}
	if err := validateArguments(schema, map[string]any{"a": 1, "b": 2}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateArgumentsMalformedSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]any
	}{
		{"required not array", map[string]any{"required": "a"}},
		{"required entry not string", map[string]any{"required": []any{1}}},
		{"additionalProperties not bool", map[string]any{"additionalProperties": "no"}},
		{"property not object", map[string]any{"properties": map[string]any{"x": "string"}}},
		{"property type not string", map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args map[string]any
			if tt.name == "property not object" || tt.name == "property type not string" {
				args = map[string]any{"x": "v"}
			}
			if err := validateArguments(tt.schema, args); err == nil {
				t.Error("expected schema error")
			}
		})
	}
}
