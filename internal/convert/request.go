package convert

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/schema"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

const interleavedThinkingHint = "Interleaved thinking is enabled. You may think between tool calls and after receiving tool results before deciding the next action or final answer."

const defaultGeminiThinkingBudget = 16000
const claudeThinkingBudgetHeadroom = 8192

// IsClaudeModel reports whether model names a Claude model (as opposed to a
// native Gemini model).
func IsClaudeModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

func isGemini3OrNewer(model string) bool {
	return strings.HasPrefix(model, "gemini-3")
}

func destinationFor(model string) (Destination, signature.Family) {
	if IsClaudeModel(model) {
		return DestClaude, signature.FamilyClaude
	}
	return DestGemini, signature.FamilyGemini
}

func wantsThinking(model string, req *domain.AnthropicRequest) bool {
	if req.Thinking != nil && req.Thinking.Type == "enabled" {
		return true
	}
	if strings.Contains(model, "thinking") {
		return true
	}
	return isGemini3OrNewer(model)
}

// BuildGoogleRequest assembles the outbound Google request from an Anthropic
// request, per the request-converter steps.
func BuildGoogleRequest(model string, req *domain.AnthropicRequest, geminiMaxOutputTokens int, sigCache *signature.Cache, minSigLen int, sessionID string) *GoogleRequest {
	dest, family := destinationFor(model)

	gc := &GenerationConfig{}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		gc.MaxOutputTokens = &mt
	}
	gc.Temperature = req.Temperature
	gc.TopP = req.TopP
	gc.TopK = req.TopK
	if len(req.StopSequences) > 0 {
		gc.StopSequences = req.StopSequences
	}

	thinking := wantsThinking(model, req)
	budget := defaultGeminiThinkingBudget
	if req.Thinking != nil && req.Thinking.BudgetTokens > 0 {
		budget = req.Thinking.BudgetTokens
	}
	if thinking {
		if dest == DestClaude {
			gc.ThinkingConfig = &GoogleThinkingConfig{IncludeThoughts: true, ThinkingBudget: budget}
			if req.MaxTokens <= budget {
				raised := budget + claudeThinkingBudgetHeadroom
				gc.MaxOutputTokens = &raised
			}
		} else {
			gc.ThinkingConfig = &GoogleThinkingConfig{IncludeThoughtsCamel: true, ThinkingBudgetCamel: budget}
		}
	}

	if dest == DestGemini && gc.MaxOutputTokens != nil && *gc.MaxOutputTokens > geminiMaxOutputTokens {
		capped := geminiMaxOutputTokens
		gc.MaxOutputTokens = &capped
	}

	gc.SafetySettings = geminiSafetySettings()

	sysText := systemPromptText(req.System)
	if thinking && dest == DestClaude && len(req.Tools) > 0 {
		if sysText != "" {
			sysText += "\n\n" + interleavedThinkingHint
		} else {
			sysText = interleavedThinkingHint
		}
	}
	var sysInstruction *Content
	if sysText != "" {
		sysInstruction = &Content{Role: "user", Parts: []Part{{Text: sysText}}}
	}

	messages := applyThinkingRecovery(req.Messages, dest, family, sigCache)
	contents := buildContents(messages, dest, sigCache, minSigLen)

	gr := &GoogleRequest{
		Contents:          contents,
		SystemInstruction: sysInstruction,
		GenerationConfig:  gc,
		SessionID:         sessionID,
	}
	if tools := buildTools(req.Tools, dest); len(tools) > 0 {
		gr.Tools = tools
	}
	return gr
}

func systemPromptText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []domain.SystemBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		texts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

func applyThinkingRecovery(messages []domain.Message, dest Destination, family signature.Family, sigCache *signature.Cache) []domain.Message {
	state := AnalyzeConversationState(messages)
	needsRecovery := NeedsThinkingRecovery(state)

	switch dest {
	case DestGemini:
		if needsRecovery {
			return CloseToolLoopForThinking(messages, signature.FamilyGemini, true, sigCache)
		}
	case DestClaude:
		if HasGeminiHistory(messages) {
			return CloseToolLoopForThinking(messages, signature.FamilyClaude, true, sigCache)
		}
	}
	return messages
}

func buildContents(messages []domain.Message, dest Destination, sigCache *signature.Cache, minSigLen int) []Content {
	contents := make([]Content, 0, len(messages))
	lastAssistant := -1
	for i, msg := range messages {
		if normalizedRole(msg.Role) == "assistant" {
			lastAssistant = i
		}
	}

	for i, msg := range messages {
		parts := ContentToParts(msg.Content, dest, sigCache, minSigLen)
		role := ConvertRole(msg.Role)

		if normalizedRole(msg.Role) == "assistant" {
			blocks := partsToBlocksForReorder(parts)
			blocks = ReorderAssistantContent(blocks)
			if i == lastAssistant {
				blocks = RemoveTrailingThinkingBlocks(blocks, minSigLen)
			}
			parts = blocksToParts(blocks, dest, sigCache)
		}

		if len(parts) == 0 {
			parts = []Part{{Text: ""}}
		}
		contents = append(contents, Content{Role: role, Parts: parts})
	}
	return contents
}

// partsToBlocksForReorder/blocksToParts round-trip through domain.ContentBlock
// so ReorderAssistantContent (which operates on the Anthropic-shaped block
// list) can run on already-converted Google parts without re-deriving
// signatures.
func partsToBlocksForReorder(parts []Part) []domain.ContentBlock {
	blocks := make([]domain.ContentBlock, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.Thought:
			blocks = append(blocks, domain.ContentBlock{Type: "thinking", Text: p.Text, Signature: p.ThoughtSignature})
		case p.FunctionCall != nil:
			raw, _ := json.Marshal(p.FunctionCall.Args)
			var input map[string]interface{}
			_ = json.Unmarshal(raw, &input)
			blocks = append(blocks, domain.ContentBlock{Type: "tool_use", Name: p.FunctionCall.Name, ID: p.FunctionCall.ID, Input: input, ThoughtSignature: p.ThoughtSignature})
		case p.Text != "":
			blocks = append(blocks, domain.ContentBlock{Type: "text", Text: p.Text})
		default:
			blocks = append(blocks, domain.ContentBlock{Type: "text"})
		}
	}
	return blocks
}

func blocksToParts(blocks []domain.ContentBlock, dest Destination, sigCache *signature.Cache) []Part {
	parts := make([]Part, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "thinking":
			parts = append(parts, Part{Text: b.Text, Thought: true, ThoughtSignature: b.Signature})
		case "tool_use":
			fc := &FunctionCall{Name: b.Name, Args: b.Input}
			if dest == DestClaude {
				fc.ID = b.ID
			}
			sig := b.ThoughtSignature
			if dest == DestGemini && sig == "" {
				if cached, ok := sigCache.LookupTool(b.ID); ok {
					sig = cached
				} else {
					sig = geminiSkipSignature
				}
			}
			p := Part{FunctionCall: fc}
			if dest == DestGemini {
				p.ThoughtSignature = sig
			}
			parts = append(parts, p)
		case "text":
			if b.Text != "" {
				parts = append(parts, Part{Text: b.Text})
			}
		}
	}
	return parts
}

func buildTools(tools []domain.Tool, dest Destination) []ToolsEntry {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		name := canonicalToolName(tool, i)
		var params map[string]interface{}
		rawParams := tool.InputSchema
		if rawParams == nil && tool.Function != nil {
			rawParams = tool.Function.Parameters
		}
		if rawParams == nil && tool.Custom != nil {
			rawParams = tool.Custom.Parameters
		}
		if dest == DestClaude {
			params = schema.SanitizeForAntigravity(rawParams)
		} else {
			if cleaned, ok := schema.CleanSchemaForGemini(rawParams).(map[string]interface{}); ok {
				params = cleaned
			} else {
				params = schema.SanitizeForAntigravity(rawParams)
			}
		}
		description := tool.Description
		if description == "" && tool.Function != nil {
			description = tool.Function.Description
		}
		if description == "" && tool.Custom != nil {
			description = tool.Custom.Description
		}
		decls = append(decls, FunctionDeclaration{Name: name, Description: description, Parameters: params})
	}
	return []ToolsEntry{{FunctionDeclarations: decls}}
}

func canonicalToolName(tool domain.Tool, index int) string {
	name := tool.Name
	if name == "" && tool.Function != nil {
		name = tool.Function.Name
	}
	if name == "" && tool.Custom != nil {
		name = tool.Custom.Name
	}
	if name == "" {
		name = "tool-" + strconv.Itoa(index)
	}
	return sanitizeToolName(name)
}

func sanitizeToolName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

