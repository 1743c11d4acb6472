package dispatch

import "testing"

func TestWantsThinking(t *testing.T) {
	cases := map[string]bool{
		"claude-opus-4-5-thinking": true,
		"gemini-3-pro-high":        true,
		"gemini-3-flash":           true,
		"claude-sonnet-4-5":        false,
		"gemini-2-flash":           false,
	}
	for model, want := range cases {
		if got := wantsThinking(model); got != want {
			t.Errorf("wantsThinking(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestEndpointsForForceSSE(t *testing.T) {
	eps := endpointsFor("claude-sonnet-4-5", true)
	if len(eps) != 1 || !eps[0].isSSE {
		t.Fatalf("expected a single forced SSE endpoint, got %+v", eps)
	}
}

func TestEndpointsForThinkingModelPrefersStream(t *testing.T) {
	eps := endpointsFor("gemini-3-pro-high", false)
	if len(eps) != 2 || !eps[0].isSSE || eps[1].isSSE {
		t.Fatalf("expected [stream, unary] for a thinking model, got %+v", eps)
	}
}

func TestEndpointsForNonThinkingModelPrefersUnary(t *testing.T) {
	eps := endpointsFor("claude-sonnet-4-5", false)
	if len(eps) != 2 || eps[0].isSSE || !eps[1].isSSE {
		t.Fatalf("expected [unary, stream] for a non-thinking model, got %+v", eps)
	}
}
