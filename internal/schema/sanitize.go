// Package schema implements the two pure JSON-Schema rewrites the request
// converter applies to tool input schemas before they cross the wire:
// sanitizeForAntigravity (Claude-destination allow-list) and
// cleanSchemaForGemini (Gemini-destination multi-phase rewrite).
package schema

// placeholderSchema is returned whenever the input is missing, empty, or not
// a schema at all.
func placeholderSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Reason for calling this tool",
			},
		},
		"required": []interface{}{"reason"},
	}
}

var antigravityAllowList = map[string]bool{
	"type":        true,
	"description": true,
	"properties":  true,
	"required":    true,
	"items":       true,
	"enum":        true,
	"title":       true,
}

// SanitizeForAntigravity enforces an allow-list of keys for Claude-destination
// tool schemas, rewrites const to a one-element enum, and guarantees a
// non-empty object schema.
func SanitizeForAntigravity(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return placeholderSchema()
	}

	out := map[string]interface{}{}
	for k, v := range in {
		if !antigravityAllowList[k] {
			continue
		}
		out[k] = v
	}
	if c, ok := in["const"]; ok {
		out["enum"] = []interface{}{c}
	}

	if props, ok := out["properties"].(map[string]interface{}); ok {
		cleaned := make(map[string]interface{}, len(props))
		for name, p := range props {
			if sub, ok := p.(map[string]interface{}); ok {
				cleaned[name] = SanitizeForAntigravity(sub)
			} else {
				cleaned[name] = p
			}
		}
		out["properties"] = cleaned
	}
	if items, ok := out["items"].(map[string]interface{}); ok {
		out["items"] = SanitizeForAntigravity(items)
	}

	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}

	if out["type"] == "object" {
		props, _ := out["properties"].(map[string]interface{})
		if len(props) == 0 {
			placeholder := placeholderSchema()
			out["properties"] = placeholder["properties"]
			out["required"] = placeholder["required"]
		}
	}

	return out
}
