package convert

import (
	"os"
	"strings"
)

// geminiSafetyCategories are the Gemini harm categories every safety setting
// entry covers; the generationConfig carries one threshold per category.
var geminiSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_CIVIC_INTEGRITY",
}

// validSafetyThresholds are the Gemini-recognised threshold values; anything
// else (including an unset env var) falls back to "OFF".
var validSafetyThresholds = map[string]bool{
	"OFF":                    true,
	"BLOCK_NONE":             true,
	"BLOCK_LOW_AND_ABOVE":    true,
	"BLOCK_MEDIUM_AND_ABOVE": true,
	"BLOCK_ONLY_HIGH":        true,
}

// safetyThresholdFromEnv reads GEMINI_SAFETY_THRESHOLD, defaulting to no
// filtering when unset or unrecognised.
func safetyThresholdFromEnv() string {
	threshold := strings.ToUpper(os.Getenv("GEMINI_SAFETY_THRESHOLD"))
	if validSafetyThresholds[threshold] {
		return threshold
	}
	return "OFF"
}

// geminiSafetySettings builds the generationConfig.safetySettings entries for
// every harm category at the configured threshold.
func geminiSafetySettings() []map[string]interface{} {
	threshold := safetyThresholdFromEnv()
	settings := make([]map[string]interface{}, 0, len(geminiSafetyCategories))
	for _, category := range geminiSafetyCategories {
		settings = append(settings, map[string]interface{}{
			"category":  category,
			"threshold": threshold,
		})
	}
	return settings
}
