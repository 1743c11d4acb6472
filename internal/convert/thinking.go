package convert

import (
	"encoding/json"
	"strconv"

	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

// ConversationState summarises the properties of a message history that
// drive thinking-recovery decisions.
type ConversationState struct {
	InToolLoop       bool
	InterruptedTool  bool
	TurnHasThinking  bool
	ToolResultCount  int
	LastAssistantIdx int
}

func normalizedRole(role string) string {
	if role == "model" {
		return "assistant"
	}
	return role
}

func decodeBlocks(raw json.RawMessage) []domain.ContentBlock {
	var blocks []domain.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return blocks
	}
	return nil
}

func messageHasToolUse(msg domain.Message) bool {
	for _, b := range decodeBlocks(msg.Content) {
		if b.Type == "tool_use" {
			return true
		}
	}
	return false
}

func messageHasToolResult(msg domain.Message) bool {
	for _, b := range decodeBlocks(msg.Content) {
		if b.Type == "tool_result" {
			return true
		}
	}
	return false
}

func countToolResults(msg domain.Message) int {
	n := 0
	for _, b := range decodeBlocks(msg.Content) {
		if b.Type == "tool_result" {
			n++
		}
	}
	return n
}

// AnalyzeConversationState reports whether the history ends mid tool-loop,
// mid interruption, or with a thinking-carrying final assistant turn. Only
// the most recent assistant turn is examined: an earlier tool round that has
// already been closed out by later messages must not keep InToolLoop or
// InterruptedTool pinned true for the rest of the conversation.
func AnalyzeConversationState(messages []domain.Message) ConversationState {
	state := ConversationState{LastAssistantIdx: -1}

	for i := len(messages) - 1; i >= 0; i-- {
		if normalizedRole(messages[i].Role) == "assistant" {
			state.LastAssistantIdx = i
			break
		}
	}

	if i := state.LastAssistantIdx; i >= 0 && messageHasToolUse(messages[i]) && i+1 < len(messages) {
		next := messages[i+1]
		if normalizedRole(next.Role) == "user" {
			if messageHasToolResult(next) {
				state.InToolLoop = true
				state.ToolResultCount += countToolResults(next)
			} else {
				state.InterruptedTool = true
			}
		}
	}

	if state.LastAssistantIdx >= 0 {
		for _, b := range decodeBlocks(messages[state.LastAssistantIdx].Content) {
			if b.Type == "thinking" && len(b.Signature) >= minSigLenDefault {
				state.TurnHasThinking = true
			}
		}
	}

	return state
}

// minSigLenDefault is used only by AnalyzeConversationState's internal
// thinking check; callers that need a configurable threshold should use
// TurnHasThinkingWithMinLen instead.
const minSigLenDefault = 50

// HasGeminiHistory reports whether any assistant tool_use block carries a
// thoughtSignature, indicating Gemini produced this history.
func HasGeminiHistory(messages []domain.Message) bool {
	for _, msg := range messages {
		if normalizedRole(msg.Role) != "assistant" {
			continue
		}
		for _, b := range decodeBlocks(msg.Content) {
			if b.Type == "tool_use" && b.ThoughtSignature != "" {
				return true
			}
		}
	}
	return false
}

// NeedsThinkingRecovery reports whether the history requires
// CloseToolLoopForThinking to run before thinking can be safely re-enabled.
func NeedsThinkingRecovery(state ConversationState) bool {
	return (state.InToolLoop || state.InterruptedTool) && !state.TurnHasThinking
}

// RemoveTrailingThinkingBlocks drops unsigned thinking blocks from the tail
// of contentArray, stopping at the first non-thinking or signed-thinking
// block.
func RemoveTrailingThinkingBlocks(blocks []domain.ContentBlock, minSigLen int) []domain.ContentBlock {
	end := len(blocks)
	for end > 0 {
		b := blocks[end-1]
		if b.Type != "thinking" {
			break
		}
		if len(b.Signature) >= minSigLen {
			break
		}
		end--
	}
	return blocks[:end]
}

// RestoreThinkingSignatures drops thinking blocks whose signature is too
// short to be valid.
func RestoreThinkingSignatures(blocks []domain.ContentBlock, minSigLen int) []domain.ContentBlock {
	out := make([]domain.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "thinking" && len(b.Signature) < minSigLen {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ReorderAssistantContent emits [thinking…, text-and-other…, tool_use…] in
// that order, dropping empty text blocks.
func ReorderAssistantContent(blocks []domain.ContentBlock) []domain.ContentBlock {
	var thinking, other, toolUse []domain.ContentBlock
	for _, b := range blocks {
		switch b.Type {
		case "thinking":
			thinking = append(thinking, b)
		case "tool_use":
			toolUse = append(toolUse, b)
		case "text":
			if b.Text == "" {
				continue
			}
			other = append(other, b)
		case "":
			continue
		default:
			other = append(other, b)
		}
	}
	out := make([]domain.ContentBlock, 0, len(thinking)+len(other)+len(toolUse))
	out = append(out, thinking...)
	out = append(out, other...)
	out = append(out, toolUse...)
	return out
}

// CloseToolLoopForThinking implements the recovery transform: closing an
// open tool loop or interruption with synthetic turns so thinking can be
// safely re-enabled, and stripping cross-family thinking blocks.
func CloseToolLoopForThinking(messages []domain.Message, family signature.Family, hasFamily bool, sigCache *signature.Cache) []domain.Message {
	state := AnalyzeConversationState(messages)
	out := make([]domain.Message, len(messages))
	copy(out, messages)

	if state.InToolLoop {
		note := "Tool execution completed"
		if state.ToolResultCount > 1 {
			note = strconv.Itoa(state.ToolResultCount) + " tool executions completed"
		}
		out = append(out, syntheticMessage("assistant", note), syntheticMessage("user", "Continue."))
	} else if state.InterruptedTool && state.LastAssistantIdx >= 0 {
		insertAt := state.LastAssistantIdx + 1
		notice := syntheticMessage("assistant", "Tool use was interrupted.")
		out = append(out[:insertAt], append([]domain.Message{notice}, out[insertAt:]...)...)
	}

	if hasFamily {
		out = stripCrossFamilyThinking(out, family, sigCache)
	}

	return out
}

func stripCrossFamilyThinking(messages []domain.Message, family signature.Family, sigCache *signature.Cache) []domain.Message {
	out := make([]domain.Message, len(messages))
	for i, msg := range messages {
		if normalizedRole(msg.Role) != "assistant" {
			out[i] = msg
			continue
		}
		blocks := decodeBlocks(msg.Content)
		if blocks == nil {
			out[i] = msg
			continue
		}
		kept := make([]domain.ContentBlock, 0, len(blocks))
		for _, b := range blocks {
			if b.Type == "thinking" {
				if family == signature.FamilyGemini {
					fam, ok := sigCache.LookupFamily(b.Signature)
					if !ok || fam != signature.FamilyGemini {
						continue
					}
				}
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			kept = append(kept, domain.ContentBlock{Type: "text", Text: "..."})
		}
		raw, _ := json.Marshal(kept)
		out[i] = domain.Message{Role: msg.Role, Content: raw}
	}
	return out
}

func syntheticMessage(role, text string) domain.Message {
	raw, _ := json.Marshal([]domain.ContentBlock{{Type: "text", Text: text}})
	return domain.Message{Role: role, Content: raw}
}

// FilterUnsignedThinkingBlocks drops any Google part with thought:true
// lacking a valid thoughtSignature.
func FilterUnsignedThinkingBlocks(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if p.Thought && p.ThoughtSignature == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
