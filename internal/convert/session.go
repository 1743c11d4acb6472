package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

// DeriveSessionID computes a deterministic session id from the first user
// message's text, falling back to a fresh UUID when there is no text to hash.
func DeriveSessionID(messages []domain.Message) string {
	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		text := firstUserText(msg.Content)
		if text == "" {
			continue
		}
		sum := sha256.Sum256([]byte(text))
		return hex.EncodeToString(sum[:])[:32]
	}
	return uuid.NewString()
}

func firstUserText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []domain.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		texts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				texts = append(texts, b.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}
