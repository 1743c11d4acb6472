// Package convert holds the pure Anthropic↔Google "parts" translation: the
// content converter, thinking utilities, request converter, response
// converter, and session-id derivation.
package convert

import (
	"encoding/json"
	"strings"

	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

const geminiSkipSignature = "skip"

// Destination names which family the converted parts are headed for, which
// governs signature-gating and id-inclusion rules.
type Destination string

const (
	DestClaude Destination = "claude"
	DestGemini Destination = "gemini"
)

// Part mirrors a Google "part" union; only the fields relevant to a given
// part are populated.
type Part struct {
	Text             string                 `json:"text,omitempty"`
	Thought          bool                   `json:"thought,omitempty"`
	ThoughtSignature string                 `json:"thoughtSignature,omitempty"`
	InlineData       *InlineData            `json:"inlineData,omitempty"`
	FileData         *FileData              `json:"fileData,omitempty"`
	FunctionCall     *FunctionCall          `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse      `json:"functionResponse,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type FunctionCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type FunctionResponse struct {
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// ConvertRole maps an Anthropic role to a Google content role.
func ConvertRole(role string) string {
	switch role {
	case "assistant":
		return "model"
	case "user":
		return "user"
	default:
		return "user"
	}
}

// ContentToParts converts one message's content (bare string or array of
// ContentBlock) into an ordered list of Google parts.
func ContentToParts(raw json.RawMessage, dest Destination, sigCache *signature.Cache, minSigLen int) []Part {
	if len(raw) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Part{{Text: text}}
	}

	var blocks []domain.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}

	parts := make([]Part, 0, len(blocks))
	for _, block := range blocks {
		if p := blockToPart(block, dest, sigCache, minSigLen); p != nil {
			parts = append(parts, p...)
		}
	}
	return parts
}

func blockToPart(block domain.ContentBlock, dest Destination, sigCache *signature.Cache, minSigLen int) []Part {
	switch block.Type {
	case "text":
		if strings.TrimSpace(block.Text) == "" {
			return nil
		}
		return []Part{{Text: block.Text}}

	case "image", "document":
		return []Part{imagePart(block)}

	case "tool_use":
		sig := resolveToolSignature(block, dest, sigCache)
		fc := &FunctionCall{Name: block.Name, Args: block.Input}
		if dest == DestClaude {
			fc.ID = block.ID
		}
		if block.Input == nil {
			fc.Args = map[string]interface{}{}
		}
		part := Part{FunctionCall: fc}
		if dest == DestGemini {
			part.ThoughtSignature = sig
		}
		return []Part{part}

	case "tool_result":
		return toolResultParts(block, dest)

	case "thinking":
		if len(block.Signature) < minSigLen {
			return nil
		}
		if dest == DestGemini {
			fam, ok := sigCache.LookupFamily(block.Signature)
			if !ok || fam != signature.FamilyGemini {
				return nil
			}
		}
		return []Part{{Text: block.Thinking, Thought: true, ThoughtSignature: block.Signature}}

	case "redacted_thinking":
		return nil

	default:
		return nil
	}
}

func resolveToolSignature(block domain.ContentBlock, dest Destination, sigCache *signature.Cache) string {
	if dest != DestGemini {
		return ""
	}
	if block.ThoughtSignature != "" {
		return block.ThoughtSignature
	}
	if sig, ok := sigCache.LookupTool(block.ToolUseID); ok {
		return sig
	}
	return geminiSkipSignature
}

func imagePart(block domain.ContentBlock) Part {
	defaultMime := "image/jpeg"
	if block.Type == "document" {
		defaultMime = "application/pdf"
	}
	if block.Source == nil {
		return Part{InlineData: &InlineData{MimeType: defaultMime, Data: ""}}
	}
	mime := block.Source.MediaType
	if mime == "" {
		mime = defaultMime
	}
	if block.Source.Type == "url" {
		return Part{FileData: &FileData{MimeType: mime, FileURI: block.Source.URL}}
	}
	return Part{InlineData: &InlineData{MimeType: mime, Data: block.Source.Data}}
}

func toolResultParts(block domain.ContentBlock, dest Destination) []Part {
	name := block.ToolUseID
	if name == "" {
		name = "unknown"
	}

	var text string
	var images []Part
	var asString string
	if err := json.Unmarshal(block.Content, &asString); err == nil {
		text = asString
	} else {
		var items []domain.ContentBlock
		if err := json.Unmarshal(block.Content, &items); err == nil {
			var texts []string
			for _, item := range items {
				switch item.Type {
				case "text":
					if item.Text != "" {
						texts = append(texts, item.Text)
					}
				case "image":
					images = append(images, imagePart(item))
				}
			}
			text = strings.Join(texts, "\n")
			if text == "" && len(images) > 0 {
				text = "Image attached"
			}
		}
	}

	fr := &FunctionResponse{
		Name:     name,
		Response: map[string]interface{}{"result": text},
	}
	if dest == DestClaude {
		fr.ID = block.ToolUseID
	}

	parts := []Part{{FunctionResponse: fr}}
	parts = append(parts, images...)
	return parts
}
