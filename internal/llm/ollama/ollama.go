// Package ollama talks to a local Ollama server through its native /api/chat
// endpoint.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/glowly/internal/llm"
)

type Client struct {
	host   string
	client *http.Client
}

func NewClient(host string) *Client {
	return &Client{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{},
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Tools    []tool         `json:"tools,omitempty"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
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
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

func buildRequest(req llm.Request) (chatRequest, error) {
	out := chatRequest{Model: req.Model, Stream: req.Stream}
	if req.MaxTokens > 0 {
		out.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	for _, m := range req.Messages {
		msg := chatMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == llm.RoleTool {
			msg.ToolName = m.Name
		}
		for _, p := range m.Parts {
			if p.Type != llm.PartImage {
				continue
			}
			_, data, err := llm.ParseDataURL(p.ImageURL)
			if err != nil {
				return out, fmt.Errorf("ollama accepts only inline images: %w", err)
			}
			msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(data))
		}
		for _, c := range m.ToolCalls {
			var tc toolCall
			tc.Function.Name = c.Name
			tc.Function.Arguments = c.ArgumentsObject()
			msg.ToolCalls = append(msg.ToolCalls, tc)
		}
		out.Messages = append(out.Messages, msg)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, tool{
			Type:     "function",
			Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	return out, nil
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	body, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &llm.APIError{Provider: "ollama", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	if req.Stream {
		return &llm.Streamed{Events: readStream(ctx, resp.Body)}, nil
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ollama response body", "error", err)
		}
	}()

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if respBody.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", respBody.Error)
	}

	reply := llm.Reply{Text: respBody.Message.Content}
	for i, tc := range respBody.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return &llm.Eager{Reply: reply}, nil
}

// readStream parses newline-delimited JSON chunks. Ollama sends whole tool
// calls rather than fragments, so each one gets its own index.
func readStream(ctx context.Context, body io.ReadCloser) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, 16)

	go func() {
		defer close(ch)
		defer func() {
			if err := body.Close(); err != nil {
				slog.Error("failed to close ollama stream body", "error", err)
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
		calls := 0

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var ck chatResponse
			if err := json.Unmarshal(line, &ck); err != nil {
				continue
			}
			if ck.Error != "" {
				send(llm.StreamEvent{Err: fmt.Errorf("ollama error: %s", ck.Error)})
				return
			}

			if ck.Message.Content != "" {
				if !send(llm.StreamEvent{TextDelta: ck.Message.Content}) {
					return
				}
			}
			for _, tc := range ck.Message.ToolCalls {
				args, err := json.Marshal(tc.Function.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				delta := &llm.ToolCallDelta{
					Index:     calls,
					ID:        fmt.Sprintf("call_%d", calls),
					Name:      tc.Function.Name,
					Arguments: string(args),
				}
				calls++
				if !send(llm.StreamEvent{ToolCall: delta}) {
					return
				}
			}
			if ck.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			send(llm.StreamEvent{Err: fmt.Errorf("read ollama stream: %w", err)})
		}
	}()

	return ch
}
