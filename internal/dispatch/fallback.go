package dispatch

// fallbackModel is the static table consulted when the primary model has no
// available accounts at all (never merely because it is rate-limited).
var fallbackModel = map[string]string{
	"gemini-3-pro-high":         "claude-opus-4-5-thinking",
	"claude-opus-4-5-thinking":  "gemini-3-pro-high",
	"gemini-3-flash":            "claude-sonnet-4-5-thinking",
	"claude-sonnet-4-5-thinking": "gemini-3-flash",
	"gemini-3-pro-low":          "claude-sonnet-4-5",
	"claude-sonnet-4-5":         "gemini-3-flash",
}

// FallbackFor returns the fallback model for model, or "" if none is defined.
func FallbackFor(model string) string {
	return fallbackModel[model]
}
