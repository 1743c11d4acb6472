package antigravity

import "testing"

func TestMapClaudeModelToGeminiExactMatches(t *testing.T) {
	cases := map[string]string{
		"claude-opus-4-5-thinking":   "claude-opus-4-5-thinking",
		"claude-sonnet-4-5":          "claude-sonnet-4-5",
		"claude-sonnet-4-5-20250929": "claude-sonnet-4-5-thinking",
		"claude-3-5-sonnet-20241022": "claude-sonnet-4-5",
		"claude-haiku-4":             "gemini-2.5-flash-lite",
		"gpt-4o":                     "gemini-2.5-pro",
		"gpt-4o-mini":                "gemini-2.5-flash",
	}
	for input, want := range cases {
		if got := MapClaudeModelToGemini(input); got != want {
			t.Errorf("MapClaudeModelToGemini(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMapClaudeModelToGeminiHaikuTargetOverride(t *testing.T) {
	got := MapClaudeModelToGeminiWithConfig("claude-haiku-4", "claude-sonnet-4-5")
	if got != "claude-sonnet-4-5" {
		t.Fatalf("expected haikuTarget override to win, got %q", got)
	}
}

func TestMapClaudeModelToGeminiPassesThroughGeminiPrefix(t *testing.T) {
	got := MapClaudeModelToGemini("gemini-3-pro-experimental")
	if got != "gemini-3-pro-experimental" {
		t.Fatalf("expected pass-through of an unmapped gemini- prefixed model, got %q", got)
	}
}

func TestMapClaudeModelToGeminiStripsOnlineSuffix(t *testing.T) {
	got := MapClaudeModelToGemini("claude-sonnet-4-5-online")
	if got != "claude-sonnet-4-5" {
		t.Fatalf("expected the -online suffix stripped before mapping, got %q", got)
	}
}

func TestMapClaudeModelToGeminiUnknownFallsBackToDefault(t *testing.T) {
	got := MapClaudeModelToGemini("some-unrecognised-model")
	if got != "claude-sonnet-4-5" {
		t.Fatalf("expected the default fallback model, got %q", got)
	}
}
