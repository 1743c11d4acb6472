package domain

import "encoding/json"

// AnthropicRequest is the inbound Messages API request (subset accepted by
// the core; tool_choice is accepted and passed through but not interpreted).
type AnthropicRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

// Message is one turn in the Anthropic conversation. Content may unmarshal
// either as a bare string or as an array of ContentBlock.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ThinkingConfig tunes the thinking budget on the inbound request.
type ThinkingConfig struct {
	Type         string `json:"type,omitempty"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Tool is the inbound tool declaration; fields are laid out loosely to
// accept both the native {name, description, input_schema} shape and the
// OpenAI-style {type:"function", function:{...}} shape some clients send.
type Tool struct {
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	Type        string                 `json:"type,omitempty"`
	Function    *ToolFunction          `json:"function,omitempty"`
	Custom      *ToolFunction          `json:"custom,omitempty"`
}

type ToolFunction struct {
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ImageSource is the source object on image/document content blocks.
type ImageSource struct {
	Type      string `json:"type"` // "base64" | "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ContentBlock is the tagged-variant content element used on both inbound
// messages and outbound responses.
type ContentBlock struct {
	Type             string                 `json:"type"`
	Text             string                 `json:"text,omitempty"`
	Source           *ImageSource           `json:"source,omitempty"`
	ID               string                 `json:"id,omitempty"`
	Name             string                 `json:"name,omitempty"`
	Input            map[string]interface{} `json:"input,omitempty"`
	ToolUseID        string                 `json:"tool_use_id,omitempty"`
	Content          json.RawMessage        `json:"content,omitempty"`
	Thinking         string                 `json:"thinking,omitempty"`
	Signature        string                 `json:"signature,omitempty"`
	ThoughtSignature string                 `json:"thoughtSignature,omitempty"`
	Data             string                 `json:"data,omitempty"`
}

// AnthropicResponse is the outbound non-streaming Messages response.
type AnthropicResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// Usage mirrors the Anthropic usage object.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// SystemBlock is one element of an array-form system prompt.
type SystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
