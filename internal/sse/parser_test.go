package sse

import (
	"strings"
	"testing"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/signature"
)

func longSig(prefix string) string {
	return prefix + strings.Repeat("x", 60)
}

func TestLineScannerExtractsDataPayloads(t *testing.T) {
	r := strings.NewReader("event: message\ndata: {\"a\":1}\n\ndata: {\"b\":2}\n\n")
	scanner := NewLineScanner(r)

	first, err := scanner.Next()
	if err != nil || first != `{"a":1}` {
		t.Fatalf("unexpected first payload %q err=%v", first, err)
	}
	second, err := scanner.Next()
	if err != nil || second != `{"b":2}` {
		t.Fatalf("unexpected second payload %q err=%v", second, err)
	}
	if _, err := scanner.Next(); err == nil {
		t.Fatalf("expected EOF after the last payload")
	}
}

func TestCollectTextResponse(t *testing.T) {
	cache := signature.New(time.Minute, 50)
	stream := `data: {"candidates":[{"content":{"parts":[{"text":"hello"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":2}}

`
	resp := Collect(strings.NewReader(stream), "gemini-3-pro-high", cache, 50)

	if resp.StopReason != "end_turn" {
		t.Fatalf("expected end_turn, got %q", resp.StopReason)
	}
	if len(resp.Content) != 1 || resp.Content[0].Type != "text" || resp.Content[0].Text != "hello" {
		t.Fatalf("unexpected content %+v", resp.Content)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 2 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestCollectThinkingThenToolUse(t *testing.T) {
	cache := signature.New(time.Minute, 50)
	sig := longSig("sig-")
	stream := `data: {"candidates":[{"content":{"parts":[{"text":"thinking part one","thought":true}]}}]}

data: {"candidates":[{"content":{"parts":[{"text":"thinking part two","thought":true,"thoughtSignature":"` + sig + `"}]}}]}

data: {"candidates":[{"content":{"parts":[{"functionCall":{"name":"do_thing","args":{"x":1}}}]},"finishReason":"TOOL_USE"}]}

`
	resp := Collect(strings.NewReader(stream), "gemini-3-pro-high", cache, 50)

	if len(resp.Content) != 2 {
		t.Fatalf("expected a thinking block and a tool_use block, got %d: %+v", len(resp.Content), resp.Content)
	}
	if resp.Content[0].Type != "thinking" || resp.Content[0].Thinking != "thinking part onethinking part two" {
		t.Fatalf("unexpected thinking block %+v", resp.Content[0])
	}
	if resp.Content[0].Signature != sig {
		t.Fatalf("expected accumulated signature preserved")
	}
	if resp.Content[1].Type != "tool_use" || resp.Content[1].Name != "do_thing" {
		t.Fatalf("unexpected tool_use block %+v", resp.Content[1])
	}
	if resp.StopReason != "tool_use" {
		t.Fatalf("expected tool_use stop reason, got %q", resp.StopReason)
	}
	if _, ok := cache.LookupFamily(sig); !ok {
		t.Fatalf("expected the long thinking signature to be cached")
	}
}

func TestCollectEmptyStreamYieldsEmptyText(t *testing.T) {
	cache := signature.New(time.Minute, 50)
	resp := Collect(strings.NewReader(""), "gemini-3-pro-high", cache, 50)
	if len(resp.Content) != 1 || resp.Content[0].Type != "text" || resp.Content[0].Text != "" {
		t.Fatalf("expected a single empty text block, got %+v", resp.Content)
	}
}
