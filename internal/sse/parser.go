// Package sse implements the two consumers of the Google v1internal SSE
// byte stream: a collect parser that assembles one Anthropic response, and a
// streamer that re-emits the stream as Anthropic SSE events.
package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/awsl-project/antigravity-relay/internal/convert"
	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/logging"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

var log = logging.New("SSE")

// LineScanner yields successive `data: ` payload lines from a byte stream.
// The underlying bufio.Reader keeps a leftover buffer across reads so a
// chunk boundary never splits a line.
type LineScanner struct {
	r *bufio.Reader
}

func NewLineScanner(r io.Reader) *LineScanner {
	return &LineScanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next data payload, or io.EOF when the stream ends.
func (s *LineScanner) Next() (string, error) {
	for {
		line, err := s.r.ReadString('\n')
		full := strings.TrimRight(line, "\r\n")
		if payload, ok := strings.CutPrefix(full, "data: "); ok {
			return payload, nil
		}
		if err != nil {
			return "", err
		}
	}
}

type blockKind int

const (
	blockNone blockKind = iota
	blockThinking
	blockText
)

// Collect reads the entire SSE stream and assembles one Anthropic response,
// equivalent to the non-streaming response converter but fed from chunks.
func Collect(r io.Reader, requestedModel string, sigCache *signature.Cache, minSigLen int) *domain.AnthropicResponse {
	scanner := NewLineScanner(r)

	var content []domain.ContentBlock
	kind := blockNone
	var curText strings.Builder
	var curSig string
	hasToolUse := false
	finishReason := ""
	var usage *convert.UsageMetadata

	family := signature.FamilyGemini
	if convert.IsClaudeModel(requestedModel) {
		family = signature.FamilyClaude
	}

	flush := func() {
		switch kind {
		case blockThinking:
			content = append(content, domain.ContentBlock{Type: "thinking", Thinking: curText.String(), Signature: curSig})
			if len(curSig) >= minSigLen {
				sigCache.StoreThinking(curSig, family)
			}
		case blockText:
			if curText.Len() > 0 {
				content = append(content, domain.ContentBlock{Type: "text", Text: curText.String()})
			}
		}
		curText.Reset()
		curSig = ""
		kind = blockNone
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
				flush()
				id := p.FunctionCall.ID
				if id == "" {
					id = convert.GenerateToolID()
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
			case p.Thought:
				if kind != blockThinking {
					flush()
					kind = blockThinking
				}
				curText.WriteString(p.Text)
				if p.ThoughtSignature != "" {
					curSig = p.ThoughtSignature
				}
			case p.Text != "":
				if kind == blockThinking {
					flush()
				}
				kind = blockText
				curText.WriteString(p.Text)
			}
		}
	}
	flush()

	if len(content) == 0 {
		content = append(content, domain.ContentBlock{Type: "text", Text: ""})
	}

	return &domain.AnthropicResponse{
		ID:           convert.GenerateMessageID(),
		Type:         "message",
		Role:         "assistant",
		Content:      content,
		Model:        requestedModel,
		StopReason:   convert.StopReason(finishReason, hasToolUse),
		StopSequence: nil,
		Usage:        convert.BuildUsage(usage),
	}
}
