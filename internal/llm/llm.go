// Package llm is the wire-neutral view of a hosted chat-completion API.
//
// Providers translate Request into their own payloads and hand back a
// Completion, which is either an Eager reply or a Streamed sequence of
// fragments. Callers run Normalize before looking at the result so the
// decision logic only ever sees a single Reply.
package llm

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image_url"
)

// Part is one element of a multi-part message. ImageURL holds a base64 data
// URL.
type Part struct {
	Type     PartType
	Text     string
	ImageURL string
}

// Message is one turn on the wire. Assistant messages that requested tools
// keep the raw ToolCalls; tool messages carry the ToolCallID they answer.
type Message struct {
	Role       Role
	Content    string
	Parts      []Part
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

func TextMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// ImageMessage is a user message with a text part followed by one image part
// per URL.
func ImageMessage(text string, imageURLs []string) Message {
	parts := make([]Part, 0, len(imageURLs)+1)
	parts = append(parts, Part{Type: PartText, Text: text})
	for _, u := range imageURLs {
		parts = append(parts, Part{Type: PartImage, ImageURL: u})
	}
	return Message{Role: RoleUser, Content: text, Parts: parts}
}

// ToolCall is a tool invocation requested by the model. Arguments is the
// payload as the provider sent it: a JSON string or a decoded object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments any
}

// ArgumentsJSON renders Arguments as a JSON document string.
func (c ToolCall) ArgumentsJSON() string {
	switch v := c.Arguments.(type) {
	case nil:
		return "{}"
	case string:
		if v == "" {
			return "{}"
		}
		return v
	case json.RawMessage:
		if len(v) == 0 {
			return "{}"
		}
		return string(v)
	case []byte:
		if len(v) == 0 {
			return "{}"
		}
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "{}"
		}
		return string(b)
	}
}

// ArgumentsObject decodes Arguments into a map. Payloads that are not a JSON
// object come back under the "input" key.
func (c ToolCall) ArgumentsObject() map[string]any {
	if m, ok := c.Arguments.(map[string]any); ok {
		return m
	}
	raw := c.ArgumentsJSON()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err == nil && m != nil {
		return m
	}
	return map[string]any{"input": raw}
}

// ToolDecl advertises one callable function to the model.
type ToolDecl struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	Model     string
	Messages  []Message
	Tools     []ToolDecl
	Stream    bool
	MaxTokens int
}

// Reply is a fully materialized model response.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Completion is either *Eager or *Streamed.
type Completion interface {
	completion()
}

type Eager struct {
	Reply Reply
}

// Streamed delivers fragments until Events is closed. A fragment with Err set
// ends the stream.
type Streamed struct {
	Events <-chan StreamEvent
}

func (*Eager) completion()    {}
func (*Streamed) completion() {}

type StreamEvent struct {
	TextDelta string
	ToolCall  *ToolCallDelta
	Err       error
}

// ToolCallDelta is a piece of one tool call. Fragments sharing an Index belong
// to the same call; ID and Name arrive once, Arguments is concatenated.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

type ChatModel interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
