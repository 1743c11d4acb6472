package convert

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

// GenerateMessageID returns a fresh msg_-prefixed identifier.
func GenerateMessageID() string {
	return "msg_" + randomHex(16)
}

// GenerateToolID returns a fresh toolu_-prefixed identifier, used when the
// Google response omits a function call id.
func GenerateToolID() string {
	return "toolu_" + randomHex(12)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// StopReason maps a Google finishReason (plus whether any tool_use block was
// emitted) to the Anthropic stop_reason, per the response-converter rules.
func StopReason(finishReason string, hasToolUse bool) string {
	switch finishReason {
	case "STOP":
		return "end_turn"
	case "MAX_TOKENS":
		return "max_tokens"
	case "TOOL_USE":
		return "tool_use"
	default:
		if hasToolUse {
			return "tool_use"
		}
		return "end_turn"
	}
}

// BuildUsage translates Google usage accounting to the Anthropic shape.
func BuildUsage(u *UsageMetadata) domain.Usage {
	if u == nil {
		return domain.Usage{}
	}
	input := u.PromptTokenCount - u.CachedContentTokenCount
	if input < 0 {
		input = 0
	}
	return domain.Usage{
		InputTokens:              input,
		OutputTokens:             u.CandidatesTokenCount,
		CacheReadInputTokens:     u.CachedContentTokenCount,
		CacheCreationInputTokens: 0,
	}
}

// ConvertGoogleResponse converts a unary Google response to the outbound
// Anthropic Messages response.
func ConvertGoogleResponse(resp *GoogleResponse, requestedModel string, sigCache *signature.Cache, minSigLen int) *domain.AnthropicResponse {
	candidates, usage := resp.Unwrap()

	var googleParts []Part
	finishReason := ""
	if len(candidates) > 0 {
		googleParts = candidates[0].Content.Parts
		finishReason = candidates[0].FinishReason
	}

	family := signature.FamilyGemini
	if IsClaudeModel(requestedModel) {
		family = signature.FamilyClaude
	}

	content := make([]domain.ContentBlock, 0, len(googleParts))
	hasToolUse := false
	for _, p := range googleParts {
		switch {
		case p.Thought:
			content = append(content, domain.ContentBlock{Type: "thinking", Thinking: p.Text, Signature: p.ThoughtSignature})
			if len(p.ThoughtSignature) >= minSigLen {
				sigCache.StoreThinking(p.ThoughtSignature, family)
			}
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = GenerateToolID()
			}
			input := p.FunctionCall.Args
			if input == nil {
				input = map[string]interface{}{}
			}
			content = append(content, domain.ContentBlock{Type: "tool_use", ID: id, Name: p.FunctionCall.Name, Input: input, ThoughtSignature: p.ThoughtSignature})
			hasToolUse = true
			if len(p.ThoughtSignature) >= minSigLen {
				sigCache.StoreTool(id, p.ThoughtSignature)
			}
		case p.Text != "":
			content = append(content, domain.ContentBlock{Type: "text", Text: p.Text})
		}
	}
	if len(content) == 0 {
		content = append(content, domain.ContentBlock{Type: "text", Text: ""})
	}

	return &domain.AnthropicResponse{
		ID:           GenerateMessageID(),
		Type:         "message",
		Role:         "assistant",
		Content:      content,
		Model:        requestedModel,
		StopReason:   StopReason(finishReason, hasToolUse),
		StopSequence: nil,
		Usage:        BuildUsage(usage),
	}
}
