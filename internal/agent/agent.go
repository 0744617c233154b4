// Package agent drives a chat model through a bounded tool-calling loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/glowly/internal/conversation"
	"github.com/vbonduro/glowly/internal/llm"
	"github.com/vbonduro/glowly/internal/tools"
)

const (
	DefaultMaxTurns    = 6
	DefaultCallTimeout = 120 * time.Second
)

// DefaultSystemPrompt frames the model as a skincare consultant that can see
// the scan photos sent alongside the conversation.
const DefaultSystemPrompt = "You are a licensed aesthetician and cosmetic chemist. " +
	"You can see the provided bare-face scan image via the companion user message. " +
	"Never claim you cannot view it; describe what you observe and avoid asking for re-uploads. " +
	"Chat naturally using markdown. When the user asks for products or shopping links, call the serper tool " +
	"with a focused query and return your reply with markdown bullets that include links and thumbnails."

// ErrTurnBudgetExceeded is returned when the model keeps requesting tools (or
// answering empty) until the turn budget runs out.
var ErrTurnBudgetExceeded = errors.New("agent exceeded max turns without producing a response")

type Agent struct {
	model        llm.ChatModel
	registry     *tools.Registry
	modelID      string
	maxTurns     int
	callTimeout  time.Duration
	stream       bool
	maxTokens    int
	systemPrompt string
	logger       *slog.Logger
}

type Option func(*Agent)

func WithModelID(id string) Option { return func(a *Agent) { a.modelID = id } }

// WithMaxTurns sets the number of model calls one Run may make. Values below
// one are ignored.
func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

func WithStreaming(stream bool) Option { return func(a *Agent) { a.stream = stream } }

func WithMaxTokens(n int) Option { return func(a *Agent) { a.maxTokens = n } }

func WithSystemPrompt(prompt string) Option { return func(a *Agent) { a.systemPrompt = prompt } }

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(model llm.ChatModel, registry *tools.Registry, opts ...Option) *Agent {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	a := &Agent{
		model:       model,
		registry:    registry,
		maxTurns:    DefaultMaxTurns,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is the outcome of a successful Run.
type Result struct {
	Text string
	// Turns is the number of model calls made.
	Turns int
	// Transcript is every message sent or received, including tool traffic.
	Transcript []llm.Message
}

// Run sends history to the model and executes requested tools until the
// model answers with text. A reply carrying tool calls is always treated as
// unfinished, even when it also has text. Tool results are appended in the
// order the calls were requested.
func (a *Agent) Run(ctx context.Context, history []llm.Message) (*Result, error) {
	messages := leadingSystem(history, a.systemPrompt)
	decls := a.registry.Declarations()

	for turn := 1; turn <= a.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reply, err := a.complete(ctx, messages, decls)
		if err != nil {
			return nil, fmt.Errorf("model call failed on turn %d: %w", turn, err)
		}

		if len(reply.ToolCalls) > 0 {
			messages = append(messages, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   reply.Text,
				ToolCalls: reply.ToolCalls,
			})
			for _, tc := range reply.ToolCalls {
				a.logger.Info("tool call", "turn", turn, "tool", tc.Name, "id", tc.ID)
				result := a.registry.Invoke(ctx, tc.Name, tc.Arguments)
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    result,
					ToolCallID: tc.ID,
					Name:       tc.Name,
				})
			}
			continue
		}

		if strings.TrimSpace(reply.Text) != "" {
			messages = append(messages, llm.TextMessage(llm.RoleAssistant, reply.Text))
			return &Result{Text: reply.Text, Turns: turn, Transcript: messages}, nil
		}

		a.logger.Warn("model returned an empty reply", "turn", turn)
	}

	return nil, fmt.Errorf("%w (budget %d)", ErrTurnBudgetExceeded, a.maxTurns)
}

// leadingSystem moves every system turn in history to the front, keeping the
// rest in order. The configured prompt is used only when history has none.
func leadingSystem(history []llm.Message, fallback string) []llm.Message {
	system := make([]llm.Message, 0, 1)
	rest := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if m.Role == llm.RoleSystem {
			system = append(system, m)
			continue
		}
		rest = append(rest, m)
	}
	if len(system) == 0 && fallback != "" {
		system = append(system, llm.TextMessage(llm.RoleSystem, fallback))
	}
	return append(system, rest...)
}

func (a *Agent) complete(ctx context.Context, messages []llm.Message, decls []llm.ToolDecl) (*llm.Reply, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	start := time.Now()
	completion, err := a.model.Complete(callCtx, llm.Request{
		Model:     a.modelID,
		Messages:  messages,
		Tools:     decls,
		Stream:    a.stream,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	reply, err := llm.Normalize(callCtx, completion)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("model replied", "duration", time.Since(start), "text_len", len(reply.Text), "tool_calls", len(reply.ToolCalls))
	return reply, nil
}

// PhotoPrompt is the text that introduces scan photos to the model.
func PhotoPrompt(n int) string {
	if n == 1 {
		return "Here is the bare-face scan image to analyze."
	}
	return "Here are the bare-face scan images to analyze."
}

// Respond runs one exchange for a chat client: the scan photos (data URLs)
// go first as a user message, followed by the plain-text history.
func (a *Agent) Respond(ctx context.Context, photos []string, history []conversation.Turn) (string, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	if len(photos) > 0 {
		messages = append(messages, llm.ImageMessage(PhotoPrompt(len(photos)), photos))
	}
	messages = append(messages, conversation.Messages(history)...)

	res, err := a.Run(ctx, messages)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
