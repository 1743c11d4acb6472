package convert

// Content is a Google conversational turn: a role and its ordered parts.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// ThinkingConfig is the Google-side thinking knob, shared shape for both
// Claude and Gemini destinations (field names differ, see RequestConverter).
type GoogleThinkingConfig struct {
	IncludeThoughts bool `json:"include_thoughts,omitempty"`
	ThinkingBudget  int  `json:"thinking_budget,omitempty"`

	IncludeThoughtsCamel bool `json:"includeThoughts,omitempty"`
	ThinkingBudgetCamel  int  `json:"thinkingBudget,omitempty"`
}

// GenerationConfig carries the generation knobs on the Google request.
type GenerationConfig struct {
	MaxOutputTokens *int                    `json:"maxOutputTokens,omitempty"`
	Temperature     *float64                `json:"temperature,omitempty"`
	TopP            *float64                `json:"topP,omitempty"`
	TopK            *int                    `json:"topK,omitempty"`
	StopSequences   []string                `json:"stopSequences,omitempty"`
	ThinkingConfig  *GoogleThinkingConfig   `json:"thinkingConfig,omitempty"`
	SafetySettings  []map[string]interface{} `json:"safetySettings,omitempty"`
}

// FunctionDeclaration is one tool's Gemini-facing shape.
type FunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolsEntry wraps the single functionDeclarations array Google expects.
type ToolsEntry struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// GoogleRequest is the `request` payload wrapped inside the v1internal
// envelope.
type GoogleRequest struct {
	Contents          []Content          `json:"contents"`
	SystemInstruction *Content           `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig  `json:"generationConfig,omitempty"`
	Tools             []ToolsEntry       `json:"tools,omitempty"`
	SessionID         string             `json:"sessionId,omitempty"`
}

// Candidate is one entry in a Google response's candidates array.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata mirrors Google's usage accounting.
type UsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount    int `json:"candidatesTokenCount,omitempty"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
}

// GoogleResponse is the unary response shape, also used as one SSE chunk
// (possibly wrapped in a top-level "response" envelope).
type GoogleResponse struct {
	Candidates    []Candidate    `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	Response      *struct {
		Candidates    []Candidate    `json:"candidates,omitempty"`
		UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	} `json:"response,omitempty"`
}

// Unwrap normalises the optional {response: {...}} envelope into a flat
// candidates/usage pair.
func (r *GoogleResponse) Unwrap() ([]Candidate, *UsageMetadata) {
	if r.Response != nil {
		return r.Response.Candidates, r.Response.UsageMetadata
	}
	return r.Candidates, r.UsageMetadata
}
