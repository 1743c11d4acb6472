// Package antigravity adapts client-facing model identifiers (Claude,
// OpenAI-shaped, and Gemini) onto the canonical Gemini model id the Cloud
// Code backend expects.
package antigravity

import "strings"

// claudeAliases are exact Claude-family ids (including Antigravity's own
// dated-snapshot aliases) that resolve to a specific Gemini model.
var claudeAliases = map[string]string{
	"claude-opus-4-5-thinking":   "claude-opus-4-5-thinking",
	"claude-sonnet-4-5":          "claude-sonnet-4-5",
	"claude-sonnet-4-5-thinking": "claude-sonnet-4-5-thinking",
	"claude-sonnet-4-5-20250929": "claude-sonnet-4-5-thinking",
	"claude-3-5-sonnet-20241022": "claude-sonnet-4-5",
	"claude-3-5-sonnet-20240620": "claude-sonnet-4-5",
	"claude-opus-4":              "claude-opus-4-5-thinking",
	"claude-opus-4-5-20251101":   "claude-opus-4-5-thinking",
}

// haikuAliases map every Haiku snapshot to the cheap default target; a
// non-empty haikuTarget override (see MapClaudeModelToGeminiWithConfig) takes
// precedence over this table.
var haikuAliases = map[string]string{
	"claude-haiku-4":            "gemini-2.5-flash-lite",
	"claude-3-haiku-20240307":   "gemini-2.5-flash-lite",
	"claude-haiku-4-5-20251001": "gemini-2.5-flash-lite",
}

// openAIAliases map OpenAI-shaped model ids onto a Gemini equivalent, for
// clients that speak the OpenAI chat-completions id convention.
var openAIAliases = map[string]string{
	"gpt-4":                  "gemini-2.5-pro",
	"gpt-4-turbo":            "gemini-2.5-pro",
	"gpt-4-turbo-preview":    "gemini-2.5-pro",
	"gpt-4-0125-preview":     "gemini-2.5-pro",
	"gpt-4-1106-preview":     "gemini-2.5-pro",
	"gpt-4-0613":             "gemini-2.5-pro",
	"gpt-4o":                 "gemini-2.5-pro",
	"gpt-4o-2024-05-13":      "gemini-2.5-pro",
	"gpt-4o-2024-08-06":      "gemini-2.5-pro",
	"gpt-4o-mini":            "gemini-2.5-flash",
	"gpt-4o-mini-2024-07-18": "gemini-2.5-flash",
	"gpt-3.5-turbo":          "gemini-2.5-flash",
	"gpt-3.5-turbo-16k":      "gemini-2.5-flash",
	"gpt-3.5-turbo-0125":     "gemini-2.5-flash",
	"gpt-3.5-turbo-1106":     "gemini-2.5-flash",
	"gpt-3.5-turbo-0613":     "gemini-2.5-flash",
}

// geminiPassthrough are Gemini ids accepted verbatim (no renaming needed).
var geminiPassthrough = map[string]string{
	"gemini-2.5-flash-lite":     "gemini-2.5-flash-lite",
	"gemini-2.5-flash-thinking": "gemini-2.5-flash-thinking",
	"gemini-3-pro-low":          "gemini-3-pro-low",
	"gemini-3-pro-high":         "gemini-3-pro-high",
	"gemini-3-pro-preview":      "gemini-3-pro-preview",
	"gemini-3-pro":              "gemini-3-pro",
	"gemini-2.5-flash":          "gemini-2.5-flash",
	"gemini-2.5-pro":            "gemini-2.5-pro",
	"gemini-3-flash":            "gemini-3-flash",
	"gemini-3-pro-image":        "gemini-3-pro-image",
}

// defaultGeminiModel is the fallback destination for any id this adapter
// doesn't recognise.
const defaultGeminiModel = "claude-sonnet-4-5"

// modelAliases merges every known alias table into one lookup, built once at
// package init rather than rechecked on every call.
var modelAliases = mergeAliasTables(claudeAliases, haikuAliases, openAIAliases, geminiPassthrough)

func mergeAliasTables(tables ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, table := range tables {
		for k, v := range table {
			merged[k] = v
		}
	}
	return merged
}

// MapClaudeModelToGemini maps a client-facing model id to its canonical
// Gemini destination, using the default Haiku target.
func MapClaudeModelToGemini(input string) string {
	return MapClaudeModelToGeminiWithConfig(input, "")
}

// MapClaudeModelToGeminiWithConfig maps a client-facing model id to its
// canonical Gemini destination. haikuTarget, when non-empty, overrides the
// default cheap Haiku mapping (e.g. "claude-sonnet-4-5" for a stronger,
// costlier substitute).
func MapClaudeModelToGeminiWithConfig(input string, haikuTarget string) string {
	cleanInput := strings.TrimSuffix(input, "-online")

	if haikuTarget != "" && isHaikuModel(cleanInput) {
		return haikuTarget
	}
	if mapped, ok := modelAliases[cleanInput]; ok {
		return mapped
	}
	if strings.HasPrefix(cleanInput, "gemini-") || strings.Contains(cleanInput, "thinking") {
		return cleanInput
	}
	return defaultGeminiModel
}

func isHaikuModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "haiku")
}
