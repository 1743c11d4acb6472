package schema

import "testing"

func TestSanitizeForAntigravityEmptyInput(t *testing.T) {
	out := SanitizeForAntigravity(nil)
	if out["type"] != "object" {
		t.Fatalf("expected placeholder object type, got %v", out["type"])
	}
	props, ok := out["properties"].(map[string]interface{})
	if !ok || len(props) == 0 {
		t.Fatalf("expected synthetic reason property, got %v", out["properties"])
	}
}

func TestSanitizeForAntigravityDropsDisallowedKeys(t *testing.T) {
	in := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
		},
	}
	out := SanitizeForAntigravity(in)
	if _, ok := out["additionalProperties"]; ok {
		t.Fatalf("additionalProperties should have been dropped")
	}
	if _, ok := out["$schema"]; ok {
		t.Fatalf("$schema should have been dropped")
	}
}

func TestSanitizeForAntigravityConstToEnum(t *testing.T) {
	in := map[string]interface{}{
		"type":  "string",
		"const": "fixed-value",
	}
	out := SanitizeForAntigravity(in)
	enum, ok := out["enum"].([]interface{})
	if !ok || len(enum) != 1 || enum[0] != "fixed-value" {
		t.Fatalf("expected const rewritten as single-value enum, got %v", out["enum"])
	}
}

func TestSanitizeForAntigravityEmptyPropertiesGetsReason(t *testing.T) {
	in := map[string]interface{}{"type": "object"}
	out := SanitizeForAntigravity(in)
	props, ok := out["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected properties map")
	}
	if _, ok := props["reason"]; !ok {
		t.Fatalf("expected synthetic reason property")
	}
	req, ok := out["required"].([]interface{})
	if !ok || len(req) != 1 || req[0] != "reason" {
		t.Fatalf("expected required=[reason], got %v", out["required"])
	}
}
