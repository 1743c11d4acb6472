package sse

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/awsl-project/antigravity-relay/internal/convert"
	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

// Event is one Anthropic SSE event: a named event plus its JSON payload.
type Event struct {
	Name string
	Data interface{}
}

// Write serialises the event in Anthropic's `event: name\ndata: json\n\n` SSE
// wire format.
func (e Event) Write(w io.Writer) error {
	if _, err := io.WriteString(w, "event: "+e.Name+"\n"); err != nil {
		return err
	}
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "data: "+string(payload)+"\n\n"); err != nil {
		return err
	}
	return nil
}

type messageStartPayload struct {
	Type    string            `json:"type"`
	Message messageStartInner `json:"message"`
}

type messageStartInner struct {
	ID           string                `json:"id"`
	Type         string                `json:"type"`
	Role         string                `json:"role"`
	Content      []domain.ContentBlock `json:"content"`
	Model        string                `json:"model"`
	StopReason   *string               `json:"stop_reason"`
	StopSequence *string               `json:"stop_sequence"`
	Usage        domain.Usage          `json:"usage"`
}

type contentBlockStartPayload struct {
	Type         string               `json:"type"`
	Index        int                  `json:"index"`
	ContentBlock domain.ContentBlock  `json:"content_block"`
}

type contentBlockDeltaPayload struct {
	Type  string      `json:"type"`
	Index int         `json:"index"`
	Delta interface{} `json:"delta"`
}

type contentBlockStopPayload struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type messageDeltaPayload struct {
	Type  string `json:"type"`
	Delta struct {
		StopReason   string  `json:"stop_reason"`
		StopSequence *string `json:"stop_sequence"`
	} `json:"delta"`
	Usage domain.Usage `json:"usage"`
}

// Stream reads the Google SSE byte stream and emits the equivalent Anthropic
// SSE event sequence to emit. emit is called once per event, in order.
func Stream(r io.Reader, requestedModel, messageID string, sigCache *signature.Cache, minSigLen int, emit func(Event) error) error {
	scanner := NewLineScanner(r)

	family := signature.FamilyGemini
	if convert.IsClaudeModel(requestedModel) {
		family = signature.FamilyClaude
	}

	if err := emit(Event{Name: "message_start", Data: messageStartPayload{
		Type: "message_start",
		Message: messageStartInner{
			ID: messageID, Type: "message", Role: "assistant", Content: []domain.ContentBlock{},
			Model: requestedModel, StopReason: nil, StopSequence: nil, Usage: domain.Usage{},
		},
	}}); err != nil {
		return err
	}

	index := -1
	kind := blockNone
	opened := false
	var curSig string
	hasToolUse := false
	finishReason := ""
	var usage *convert.UsageMetadata
	sawAnyPart := false

	closeBlock := func() error {
		if !opened {
			return nil
		}
		if kind == blockThinking && len(curSig) >= minSigLen {
			if err := emit(Event{Name: "content_block_delta", Data: contentBlockDeltaPayload{
				Type: "content_block_delta", Index: index,
				Delta: map[string]interface{}{"type": "signature_delta", "signature": curSig},
			}}); err != nil {
				return err
			}
			sigCache.StoreThinking(curSig, family)
		}
		curSig = ""
		opened = false
		kind = blockNone
		return emit(Event{Name: "content_block_stop", Data: contentBlockStopPayload{Type: "content_block_stop", Index: index}})
	}

	openBlock := func(k blockKind, block domain.ContentBlock) error {
		index++
		opened = true
		kind = k
		return emit(Event{Name: "content_block_start", Data: contentBlockStartPayload{
			Type: "content_block_start", Index: index, ContentBlock: block,
		}})
	}

	for {
		payload, err := scanner.Next()
		if err != nil {
			break
		}
		var chunk convert.GoogleResponse
		if jerr := json.Unmarshal([]byte(payload), &chunk); jerr != nil {
			log.Warnf("skipping malformed SSE chunk: %v", jerr)
			continue
		}
		candidates, chunkUsage := chunk.Unwrap()
		if chunkUsage != nil {
			usage = chunkUsage
		}
		if len(candidates) == 0 {
			continue
		}
		if candidates[0].FinishReason != "" {
			finishReason = candidates[0].FinishReason
		}

		for _, p := range candidates[0].Content.Parts {
			switch {
			case p.FunctionCall != nil:
				if err := closeBlock(); err != nil {
					return err
				}
				sawAnyPart = true
				hasToolUse = true
				id := p.FunctionCall.ID
				if id == "" {
					id = convert.GenerateToolID()
				}
				input := p.FunctionCall.Args
				if input == nil {
					input = map[string]interface{}{}
				}
				if len(p.ThoughtSignature) >= minSigLen {
					sigCache.StoreTool(id, p.ThoughtSignature)
				}
				block := domain.ContentBlock{Type: "tool_use", ID: id, Name: p.FunctionCall.Name, Input: input, ThoughtSignature: p.ThoughtSignature}
				if err := openBlock(blockText, block); err != nil {
					return err
				}
				argsJSON, _ := json.Marshal(input)
				if err := emit(Event{Name: "content_block_delta", Data: contentBlockDeltaPayload{
					Type: "content_block_delta", Index: index,
					Delta: map[string]interface{}{"type": "input_json_delta", "partial_json": string(argsJSON)},
				}}); err != nil {
					return err
				}
				if err := closeBlock(); err != nil {
					return err
				}

			case p.Thought:
				if strings.TrimSpace(p.Text) == "" && p.ThoughtSignature == "" {
					continue
				}
				if kind != blockThinking || !opened {
					if err := closeBlock(); err != nil {
						return err
					}
					if err := openBlock(blockThinking, domain.ContentBlock{Type: "thinking", Thinking: ""}); err != nil {
						return err
					}
				}
				sawAnyPart = true
				if p.ThoughtSignature != "" {
					curSig = p.ThoughtSignature
				}
				if p.Text != "" {
					if err := emit(Event{Name: "content_block_delta", Data: contentBlockDeltaPayload{
						Type: "content_block_delta", Index: index,
						Delta: map[string]interface{}{"type": "thinking_delta", "thinking": p.Text},
					}}); err != nil {
						return err
					}
				}

			case strings.TrimSpace(p.Text) != "":
				if kind != blockText || !opened {
					if err := closeBlock(); err != nil {
						return err
					}
					if err := openBlock(blockText, domain.ContentBlock{Type: "text", Text: ""}); err != nil {
						return err
					}
				}
				sawAnyPart = true
				if err := emit(Event{Name: "content_block_delta", Data: contentBlockDeltaPayload{
					Type: "content_block_delta", Index: index,
					Delta: map[string]interface{}{"type": "text_delta", "text": p.Text},
				}}); err != nil {
					return err
				}
			}
		}
	}

	if !sawAnyPart {
		if err := openBlock(blockText, domain.ContentBlock{Type: "text", Text: ""}); err != nil {
			return err
		}
	}
	if err := closeBlock(); err != nil {
		return err
	}

	stopReason := convert.StopReason(finishReason, hasToolUse)
	delta := messageDeltaPayload{Type: "message_delta"}
	delta.Delta.StopReason = stopReason
	delta.Usage = convert.BuildUsage(usage)
	if err := emit(Event{Name: "message_delta", Data: delta}); err != nil {
		return err
	}

	return emit(Event{Name: "message_stop", Data: map[string]string{"type": "message_stop"}})
}
