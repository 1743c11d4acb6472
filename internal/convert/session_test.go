package convert

import (
	"encoding/json"
	"testing"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

func TestDeriveSessionIDDeterministic(t *testing.T) {
	messages := []domain.Message{
		{Role: "user", Content: json.RawMessage(`"hello there"`)},
	}
	id1 := DeriveSessionID(messages)
	id2 := DeriveSessionID(messages)
	if id1 != id2 {
		t.Fatalf("expected deterministic ids, got %q and %q", id1, id2)
	}
	if len(id1) != 32 {
		t.Fatalf("expected 32-char id, got %d chars", len(id1))
	}
}

func TestDeriveSessionIDDiffersOnContent(t *testing.T) {
	a := DeriveSessionID([]domain.Message{{Role: "user", Content: json.RawMessage(`"foo"`)}})
	b := DeriveSessionID([]domain.Message{{Role: "user", Content: json.RawMessage(`"bar"`)}})
	if a == b {
		t.Fatalf("expected different ids for different content")
	}
}

func TestDeriveSessionIDBlockContent(t *testing.T) {
	blocks := json.RawMessage(`[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]`)
	a := DeriveSessionID([]domain.Message{{Role: "user", Content: blocks}})
	b := DeriveSessionID([]domain.Message{{Role: "user", Content: json.RawMessage(`"part one\npart two"`)}})
	if a != b {
		t.Fatalf("expected block-joined text to hash the same as the equivalent string")
	}
}

func TestDeriveSessionIDSkipsNonUserMessages(t *testing.T) {
	messages := []domain.Message{
		{Role: "assistant", Content: json.RawMessage(`"ignored"`)},
		{Role: "user", Content: json.RawMessage(`"counted"`)},
	}
	withAssistant := DeriveSessionID(messages)
	withoutAssistant := DeriveSessionID([]domain.Message{{Role: "user", Content: json.RawMessage(`"counted"`)}})
	if withAssistant != withoutAssistant {
		t.Fatalf("expected leading assistant message to be ignored")
	}
}

func TestDeriveSessionIDFallsBackToUUID(t *testing.T) {
	id1 := DeriveSessionID(nil)
	id2 := DeriveSessionID(nil)
	if id1 == id2 {
		t.Fatalf("expected random fallback ids to differ")
	}
	if len(id1) != 36 {
		t.Fatalf("expected a UUID-shaped fallback, got %q", id1)
	}
}
