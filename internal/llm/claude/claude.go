// Package claude adapts the Anthropic Messages API to llm.ChatModel.
package claude

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/vbonduro/glowly/internal/llm"
)

// defaultMaxTokens is used when a request leaves MaxTokens unset; the
// Messages API rejects requests without it.
const defaultMaxTokens = 2048

// Client answers every request eagerly; Request.Stream is ignored.
type Client struct {
	client *anthropic.Client
}

type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("claude: %w", llm.ErrMissingCredentials)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []anthropic.ClientOption
	if o.baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(strings.TrimRight(o.baseURL, "/")))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, anthropic.WithHTTPClient(o.httpClient))
	}
	return &Client{client: anthropic.NewClient(apiKey, clientOpts...)}, nil
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	msgReq, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateMessages(ctx, msgReq)
	if err != nil {
		var reqErr *anthropic.RequestError
		if errors.As(err, &reqErr) {
			return nil, &llm.APIError{Provider: "claude", StatusCode: reqErr.StatusCode, Body: err.Error()}
		}
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	reply := llm.Reply{}
	var text []string
	for _, blk := range resp.Content {
		switch blk.Type {
		case anthropic.MessagesContentTypeText:
			text = append(text, blk.GetText())
		case anthropic.MessagesContentTypeToolUse:
			if blk.MessageContentToolUse == nil {
				continue
			}
			reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{
				ID:        blk.MessageContentToolUse.ID,
				Name:      blk.MessageContentToolUse.Name,
				Arguments: blk.MessageContentToolUse.Input,
			})
		}
	}
	reply.Text = strings.Join(text, "")
	return &llm.Eager{Reply: reply}, nil
}

// buildRequest splits system turns out of the history, since the Messages API
// takes the system prompt as a top-level field and only user/assistant roles.
func buildRequest(req llm.Request) (anthropic.MessagesRequest, error) {
	out := anthropic.MessagesRequest{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaultMaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleTool:
			out.Messages = appendContent(out.Messages, anthropic.RoleUser,
				anthropic.NewToolResultMessageContent(m.ToolCallID, m.Content, false))
		case llm.RoleAssistant:
			content, err := assistantContent(m)
			if err != nil {
				return out, err
			}
			out.Messages = appendContent(out.Messages, anthropic.RoleAssistant, content...)
		default:
			content, err := userContent(m)
			if err != nil {
				return out, err
			}
			out.Messages = appendContent(out.Messages, anthropic.RoleUser, content...)
		}
	}
	out.System = strings.Join(system, "\n\n")

	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out.Tools = append(out.Tools, anthropic.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// appendContent merges consecutive same-role turns, which the Messages API
// requires to alternate.
func appendContent(msgs []anthropic.Message, role anthropic.ChatRole, content ...anthropic.MessageContent) []anthropic.Message {
	if len(content) == 0 {
		return msgs
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == role {
		msgs[n-1].Content = append(msgs[n-1].Content, content...)
		return msgs
	}
	return append(msgs, anthropic.Message{Role: role, Content: content})
}

func userContent(m llm.Message) ([]anthropic.MessageContent, error) {
	if len(m.Parts) == 0 {
		return []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)}, nil
	}

	content := make([]anthropic.MessageContent, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Type != llm.PartImage {
			content = append(content, anthropic.NewTextMessageContent(p.Text))
			continue
		}
		mediaType, data, err := llm.ParseDataURL(p.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("claude accepts only inline images: %w", err)
		}
		content = append(content, anthropic.MessageContent{
			Type: anthropic.MessagesContentTypeImage,
			Source: &anthropic.MessageContentSource{
				Type:      anthropic.MessagesContentSourceTypeBase64,
				MediaType: normaliseMIME(mediaType),
				Data:      base64.StdEncoding.EncodeToString(data),
			},
		})
	}
	return content, nil
}

func assistantContent(m llm.Message) ([]anthropic.MessageContent, error) {
	var content []anthropic.MessageContent
	if m.Content != "" {
		content = append(content, anthropic.NewTextMessageContent(m.Content))
	}
	for _, tc := range m.ToolCalls {
		input := json.RawMessage(tc.ArgumentsJSON())
		if !json.Valid(input) {
			return nil, fmt.Errorf("tool call %s has invalid arguments", tc.ID)
		}
		content = append(content, anthropic.MessageContent{
			Type: anthropic.MessagesContentTypeToolUse,
			MessageContentToolUse: &anthropic.MessageContentToolUse{
				ID:    tc.ID,
				Name:  tc.Name,
				Input: input,
			},
		})
	}
	return content, nil
}

// normaliseMIME maps browser MIME types to the values the Anthropic API accepts.
// Unknown types are coerced to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
