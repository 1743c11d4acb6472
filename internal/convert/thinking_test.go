package convert

import (
	"encoding/json"
	"testing"

	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

func blocksMsg(role string, blocks ...domain.ContentBlock) domain.Message {
	raw, _ := json.Marshal(blocks)
	return domain.Message{Role: role, Content: raw}
}

func TestAnalyzeConversationStateToolLoop(t *testing.T) {
	messages := []domain.Message{
		blocksMsg("user", domain.ContentBlock{Type: "text", Text: "go"}),
		blocksMsg("assistant", domain.ContentBlock{Type: "tool_use", Name: "x"}),
		blocksMsg("user", domain.ContentBlock{Type: "tool_result", ToolUseID: "1"}),
	}
	state := AnalyzeConversationState(messages)
	if !state.InToolLoop {
		t.Fatalf("expected InToolLoop to be true")
	}
	if state.InterruptedTool {
		t.Fatalf("expected InterruptedTool to be false")
	}
	if state.ToolResultCount != 1 {
		t.Fatalf("expected 1 tool result, got %d", state.ToolResultCount)
	}
}

func TestAnalyzeConversationStateInterrupted(t *testing.T) {
	messages := []domain.Message{
		blocksMsg("assistant", domain.ContentBlock{Type: "tool_use", Name: "x"}),
	}
	state := AnalyzeConversationState(messages)
	if state.InToolLoop {
		t.Fatalf("expected InToolLoop false without a following tool_result")
	}
	if !state.InterruptedTool {
		t.Fatalf("expected InterruptedTool true when the tool_use turn has no reply")
	}
}

func TestAnalyzeConversationStateTurnHasThinking(t *testing.T) {
	longSig := make([]byte, 60)
	for i := range longSig {
		longSig[i] = 'a'
	}
	messages := []domain.Message{
		blocksMsg("assistant", domain.ContentBlock{Type: "thinking", Signature: string(longSig)}),
	}
	state := AnalyzeConversationState(messages)
	if !state.TurnHasThinking {
		t.Fatalf("expected TurnHasThinking true for a sufficiently long signature")
	}
}

func TestNeedsThinkingRecovery(t *testing.T) {
	cases := []struct {
		name  string
		state ConversationState
		want  bool
	}{
		{"clean history", ConversationState{}, false},
		{"open tool loop no thinking", ConversationState{InToolLoop: true}, true},
		{"open tool loop with thinking", ConversationState{InToolLoop: true, TurnHasThinking: true}, false},
		{"interrupted", ConversationState{InterruptedTool: true}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := NeedsThinkingRecovery(c.state); got != c.want {
				t.Fatalf("NeedsThinkingRecovery(%+v) = %v, want %v", c.state, got, c.want)
			}
		})
	}
}

func TestRemoveTrailingThinkingBlocks(t *testing.T) {
	blocks := []domain.ContentBlock{
		{Type: "text", Text: "hi"},
		{Type: "thinking", Signature: "short"},
	}
	out := RemoveTrailingThinkingBlocks(blocks, 50)
	if len(out) != 1 {
		t.Fatalf("expected the short-signature trailing thinking block dropped, got %d blocks", len(out))
	}
}

func TestRemoveTrailingThinkingBlocksKeepsSigned(t *testing.T) {
	longSig := make([]byte, 60)
	for i := range longSig {
		longSig[i] = 'a'
	}
	blocks := []domain.ContentBlock{
		{Type: "thinking", Signature: string(longSig)},
	}
	out := RemoveTrailingThinkingBlocks(blocks, 50)
	if len(out) != 1 {
		t.Fatalf("expected the signed thinking block kept, got %d blocks", len(out))
	}
}

func TestReorderAssistantContent(t *testing.T) {
	blocks := []domain.ContentBlock{
		{Type: "tool_use", Name: "x"},
		{Type: "text", Text: "body"},
		{Type: "thinking", Signature: "sig"},
		{Type: "text", Text: ""},
	}
	out := ReorderAssistantContent(blocks)
	if len(out) != 3 {
		t.Fatalf("expected empty text block dropped, got %d blocks", len(out))
	}
	if out[0].Type != "thinking" || out[1].Type != "text" || out[2].Type != "tool_use" {
		t.Fatalf("expected thinking, text, tool_use order, got %+v", out)
	}
}

func TestHasGeminiHistory(t *testing.T) {
	withSig := []domain.Message{
		blocksMsg("assistant", domain.ContentBlock{Type: "tool_use", ThoughtSignature: "sig"}),
	}
	if !HasGeminiHistory(withSig) {
		t.Fatalf("expected Gemini history detected via thoughtSignature")
	}
	without := []domain.Message{
		blocksMsg("assistant", domain.ContentBlock{Type: "tool_use"}),
	}
	if HasGeminiHistory(without) {
		t.Fatalf("expected no Gemini history without a thoughtSignature")
	}
}

func TestCloseToolLoopForThinimgInsertsContinuation(t *testing.T) {
	messages := []domain.Message{
		blocksMsg("assistant", domain.ContentBlock{Type: "tool_use", Name: "x"}),
		blocksMsg("user", domain.ContentBlock{Type: "tool_result", ToolUseID: "1"}),
	}
	out := CloseToolLoopForThinking(messages, signature.FamilyClaude, false, nil)
	if len(out) != len(messages)+2 {
		t.Fatalf("expected two synthetic turns appended, got %d messages", len(out))
	}
	if out[len(out)-1].Role != "user" {
		t.Fatalf("expected the last synthetic message to be a user turn")
	}
}

func TestFilterUnsignedThinkingBlocks(t *testing.T) {
	parts := []Part{
		{Thought: true, ThoughtSignature: ""},
		{Thought: true, ThoughtSignature: "sig"},
		{Text: "hi"},
	}
	out := FilterUnsignedThinkingBlocks(parts)
	if len(out) != 2 {
		t.Fatalf("expected the unsigned thought part dropped, got %d parts", len(out))
	}
}
