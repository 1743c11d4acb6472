package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var unsupportedKeys = []string{
	"additionalProperties", "default", "$schema", "$defs", "definitions",
	"$ref", "$id", "$comment", "title", "minLength", "maxLength", "pattern",
	"format", "minItems", "maxItems", "examples", "allOf", "anyOf", "oneOf",
}

var constraintHints = []string{
	"minLength", "maxLength", "pattern", "minimum", "maximum", "minItems", "maxItems", "format",
}

// CleanSchemaForGemini applies the nine-phase Gemini function-declaration
// rewrite described by the request converter, recursing into properties and
// items. Non-object input is returned unchanged.
func CleanSchemaForGemini(in interface{}) interface{} {
	node, ok := in.(map[string]interface{})
	if !ok || node == nil {
		return in
	}
	out, _ := cleanNode(node)
	return out
}

// cleanNode returns the rewritten node and whether the node itself is
// nullable (i.e. its type array included "null"), which callers use to strip
// the property's name from the parent's required list.
func cleanNode(node map[string]interface{}) (map[string]interface{}, bool) {
	out := cloneShallow(node)

	refHint(out)
	enumHint(out)
	additionalPropertiesHint(out)
	constraintLiftHint(out)
	mergeAllOf(out)
	flattenAnyOfOneOf(out)
	nullable := flattenTypeArray(out)
	stripUnsupported(out)

	if props, ok := out["properties"].(map[string]interface{}); ok {
		cleanedProps := make(map[string]interface{}, len(props))
		nullableNames := map[string]bool{}
		for name, raw := range props {
			sub, ok := raw.(map[string]interface{})
			if !ok {
				cleanedProps[name] = raw
				continue
			}
			cleanedSub, subNullable := cleanNode(sub)
			cleanedProps[name] = cleanedSub
			if subNullable {
				nullableNames[name] = true
			}
		}
		out["properties"] = cleanedProps
		if len(nullableNames) > 0 {
			if req, ok := out["required"].([]interface{}); ok {
				filtered := make([]interface{}, 0, len(req))
				for _, r := range req {
					if s, ok := r.(string); ok && nullableNames[s] {
						continue
					}
					filtered = append(filtered, r)
				}
				if len(filtered) == 0 {
					delete(out, "required")
				} else {
					out["required"] = filtered
				}
			}
		}
	}

	if items, ok := out["items"]; ok {
		out["items"] = cleanItems(items)
	}

	validateRequired(out)

	return out, nullable
}

func cleanItems(items interface{}) interface{} {
	switch v := items.(type) {
	case map[string]interface{}:
		cleaned, _ := cleanNode(v)
		return cleaned
	case []interface{}:
		cleanedTuple := make([]interface{}, len(v))
		for i, item := range v {
			if sub, ok := item.(map[string]interface{}); ok {
				cleaned, _ := cleanNode(sub)
				cleanedTuple[i] = cleaned
			} else {
				cleanedTuple[i] = item
			}
		}
		return cleanedTuple
	default:
		return items
	}
}

func cloneShallow(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func appendDescription(node map[string]interface{}, hint string) {
	if hint == "" {
		return
	}
	if existing, ok := node["description"].(string); ok && existing != "" {
		node["description"] = existing + " (" + hint + ")"
		return
	}
	node["description"] = hint
}

// phase 1
func refHint(node map[string]interface{}) {
	ref, ok := node["$ref"].(string)
	if !ok || ref == "" {
		return
	}
	parts := strings.Split(ref, "/")
	name := parts[len(parts)-1]
	hint := "See: " + name
	if existing, ok := node["description"].(string); ok && existing != "" {
		node["description"] = existing + " (" + hint + ")"
	} else {
		node["description"] = hint
	}
	node["type"] = "object"
	delete(node, "$ref")
}

// phase 2
func enumHint(node map[string]interface{}) {
	enum, ok := node["enum"].([]interface{})
	if !ok || len(enum) < 2 || len(enum) > 10 {
		return
	}
	values := make([]string, len(enum))
	for i, v := range enum {
		values[i] = stringifyValue(v)
	}
	appendDescription(node, "Allowed: "+strings.Join(values, ", "))
}

// phase 3
func additionalPropertiesHint(node map[string]interface{}) {
	if v, ok := node["additionalProperties"].(bool); ok && !v {
		appendDescription(node, "No extra properties allowed")
	}
}

// phase 4
func constraintLiftHint(node map[string]interface{}) {
	for _, key := range constraintHints {
		v, ok := node[key]
		if !ok {
			continue
		}
		appendDescription(node, key+": "+stringifyValue(v))
	}
}

// phase 5
func mergeAllOf(node map[string]interface{}) {
	allOf, ok := node["allOf"].([]interface{})
	if !ok {
		return
	}
	mergedProps, _ := node["properties"].(map[string]interface{})
	if mergedProps == nil {
		mergedProps = map[string]interface{}{}
	}
	requiredSet := map[string]bool{}
	if req, ok := node["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				requiredSet[s] = true
			}
		}
	}
	for _, raw := range allOf {
		child, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if childProps, ok := child["properties"].(map[string]interface{}); ok {
			for name, p := range childProps {
				mergedProps[name] = p
			}
		}
		if childReq, ok := child["required"].([]interface{}); ok {
			for _, r := range childReq {
				if s, ok := r.(string); ok {
					requiredSet[s] = true
				}
			}
		}
		for k, v := range child {
			if k == "properties" || k == "required" {
				continue
			}
			if _, exists := node[k]; !exists {
				node[k] = v
			}
		}
	}
	if len(mergedProps) > 0 {
		node["properties"] = mergedProps
	}
	if len(requiredSet) > 0 {
		req := make([]interface{}, 0, len(requiredSet))
		for k := range requiredSet {
			req = append(req, k)
		}
		sort.Slice(req, func(i, j int) bool { return req[i].(string) < req[j].(string) })
		node["required"] = req
	}
	delete(node, "allOf")
}

// phase 6
func flattenAnyOfOneOf(node map[string]interface{}) {
	var options []interface{}
	key := ""
	if v, ok := node["anyOf"].([]interface{}); ok {
		options, key = v, "anyOf"
	} else if v, ok := node["oneOf"].([]interface{}); ok {
		options, key = v, "oneOf"
	}
	if options == nil {
		return
	}

	bestIdx := -1
	bestScore := -1
	nonNullTypes := []string{}
	seenType := map[string]bool{}
	for i, raw := range options {
		opt, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		t, _ := opt["type"].(string)
		if t != "" && t != "null" && !seenType[t] {
			seenType[t] = true
			nonNullTypes = append(nonNullTypes, t)
		}
		score := scoreOption(opt)
		if score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	if bestIdx < 0 {
		delete(node, key)
		return
	}
	chosen, _ := options[bestIdx].(map[string]interface{})

	if t, ok := chosen["type"]; ok {
		node["type"] = t
	}
	if props, ok := chosen["properties"]; ok {
		node["properties"] = props
	}
	if items, ok := chosen["items"]; ok {
		node["items"] = items
	}
	for k, v := range chosen {
		if k == "type" || k == "properties" || k == "items" || k == "description" {
			continue
		}
		if _, exists := node[k]; !exists {
			node[k] = v
		}
	}
	if desc, ok := chosen["description"].(string); ok && desc != "" {
		appendDescription(node, desc)
	}
	if len(nonNullTypes) >= 2 {
		appendDescription(node, "Accepts: "+strings.Join(nonNullTypes, " | "))
	}
	delete(node, key)
}

func scoreOption(opt map[string]interface{}) int {
	t, _ := opt["type"].(string)
	_, hasProps := opt["properties"]
	_, hasItems := opt["items"]
	switch {
	case t == "object" && hasProps:
		return 3
	case t == "array" && hasItems:
		return 2
	case t != "" && t != "null":
		return 1
	default:
		return 0
	}
}

// phase 7; returns whether this node is itself nullable
func flattenTypeArray(node map[string]interface{}) bool {
	arr, ok := node["type"].([]interface{})
	if !ok {
		return false
	}
	nonNull := []string{}
	hasNull := false
	for _, raw := range arr {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		if s == "null" {
			hasNull = true
			continue
		}
		nonNull = append(nonNull, s)
	}
	scalar := "string"
	if len(nonNull) > 0 {
		scalar = nonNull[0]
	}
	node["type"] = scalar
	if hasNull {
		appendDescription(node, "nullable")
	}
	if len(nonNull) >= 2 {
		appendDescription(node, "Accepts: "+strings.Join(nonNull, " | "))
	}
	return hasNull
}

// phase 8
func stripUnsupported(node map[string]interface{}) {
	keepFormat := false
	if t, _ := node["type"].(string); t == "string" {
		if f, ok := node["format"].(string); ok && (f == "enum" || f == "date-time") {
			keepFormat = true
		}
	}
	var savedFormat interface{}
	if keepFormat {
		savedFormat = node["format"]
	}
	for _, k := range unsupportedKeys {
		delete(node, k)
	}
	if keepFormat {
		node["format"] = savedFormat
	}
}

// phase 9
func validateRequired(node map[string]interface{}) {
	req, ok := node["required"].([]interface{})
	if !ok {
		return
	}
	props, _ := node["properties"].(map[string]interface{})
	filtered := make([]interface{}, 0, len(req))
	for _, r := range req {
		s, ok := r.(string)
		if !ok {
			continue
		}
		if _, exists := props[s]; exists {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		delete(node, "required")
	} else {
		node["required"] = filtered
	}
}

func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
