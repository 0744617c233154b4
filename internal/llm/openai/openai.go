// Package openai talks to OpenAI-compatible /chat/completions endpoints.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/glowly/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", llm.ErrMissingCredentials)
	}
	c := &Client{apiKey: apiKey, baseURL: defaultBaseURL, client: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	Model      string    `json:"model"`
	Messages   []message `json:"messages"`
	Tools      []tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
	Stream     bool      `json:"stream,omitempty"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolCall struct {
	Index    *int   `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content   *string    `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

func buildRequest(req llm.Request) request {
	out := request{
		Model:     req.Model,
		Messages:  make([]message, 0, len(req.Messages)),
		Stream:    req.Stream,
		MaxTokens: req.MaxTokens,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toWire(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, tool{
			Type:     "function",
			Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	if len(out.Tools) > 0 {
		out.ToolChoice = "auto"
	}
	return out
}

func toWire(m llm.Message) message {
	w := message{Role: string(m.Role), ToolCallID: m.ToolCallID}
	if m.Role == llm.RoleTool {
		w.Name = m.Name
	}

	switch {
	case len(m.Parts) > 0:
		parts := make([]contentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.Type == llm.PartImage {
				parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: p.ImageURL}})
				continue
			}
			parts = append(parts, contentPart{Type: "text", Text: p.Text})
		}
		w.Content = parts
	case len(m.ToolCalls) > 0 && m.Content == "":
		w.Content = nil
	default:
		w.Content = m.Content
	}

	for _, c := range m.ToolCalls {
		tc := toolCall{ID: c.ID, Type: "function"}
		tc.Function.Name = c.Name
		tc.Function.Arguments = c.ArgumentsJSON()
		w.ToolCalls = append(w.ToolCalls, tc)
	}
	return w
}

func (c *Client) newHTTPRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// Complete sends req and returns an *llm.Eager, or an *llm.Streamed when
// req.Stream is set.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	payload, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newHTTPRequest(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call openai: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &llm.APIError{Provider: "openai", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	if req.Stream {
		return &llm.Streamed{Events: readStream(ctx, resp.Body)}, nil
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close openai response body", "error", err)
		}
	}()

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(body.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}

	msg := body.Choices[0].Message
	reply := llm.Reply{}
	if msg.Content != nil {
		reply.Text = *msg.Content
	}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return &llm.Eager{Reply: reply}, nil
}

// readStream parses SSE chunks from body until [DONE] or EOF.
func readStream(ctx context.Context, body io.ReadCloser) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, 16)

	go func() {
		defer close(ch)
		defer func() {
			if err := body.Close(); err != nil {
				slog.Error("failed to close openai stream body", "error", err)
			}
		}()

		send := func(ev llm.StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		done := false

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}

			data, ok := strings.CutPrefix(scanner.Text(), "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				done = true
				break
			}

			var ck chunk
			if err := json.Unmarshal([]byte(data), &ck); err != nil {
				continue
			}

			for _, choice := range ck.Choices {
				if choice.Delta.Content != "" {
					if !send(llm.StreamEvent{TextDelta: choice.Delta.Content}) {
						return
					}
				}
				for i, tc := range choice.Delta.ToolCalls {
					idx := i
					if tc.Index != nil {
						idx = *tc.Index
					}
					delta := &llm.ToolCallDelta{Index: idx, ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
					if !send(llm.StreamEvent{ToolCall: delta}) {
						return
					}
				}
			}
		}

		if ctx.Err() != nil {
			return
		}
		if err := scanner.Err(); err != nil {
			send(llm.StreamEvent{Err: fmt.Errorf("read openai stream: %w", err)})
			return
		}
		if !done {
			send(llm.StreamEvent{Err: fmt.Errorf("openai stream ended before [DONE]")})
		}
	}()

	return ch
}
