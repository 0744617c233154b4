// Package tools holds the functions the chat model may call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vbonduro/glowly/internal/llm"
)

// Handler runs a tool. args is the decoded JSON payload when the model sent
// valid JSON, otherwise the raw string.
type Handler func(ctx context.Context, args any) (string, error)

type Spec struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object; only the model validates against it.
	Parameters map[string]any
	Handler    Handler
}

// Registry maps tool names to specs and keeps registration order.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
	order []string
}

func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		r.Register(s)
	}
	return r
}

// Register adds spec, or replaces the spec with the same name in place.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[spec.Name]; !ok {
		r.order = append(r.order, spec.Name)
	}
	r.specs[spec.Name] = spec
}

// List returns the specs in registration order.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Declarations renders the registry as function declarations for the model.
func (r *Registry) Declarations() []llm.ToolDecl {
	specs := r.List()
	out := make([]llm.ToolDecl, 0, len(specs))
	for _, s := range specs {
		params := s.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, llm.ToolDecl{Name: s.Name, Description: s.Description, Parameters: params})
	}
	return out
}

// Invoke runs the named tool and always returns a result string. Unknown
// names, handler errors and handler panics come back as descriptive text so
// the conversation can continue.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs any) (result string) {
	r.mu.RLock()
	spec, ok := r.specs[name]
	r.mu.RUnlock()
	if !ok || spec.Handler == nil {
		return fmt.Sprintf("Tool %q is not available.", name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", name, "panic", rec)
			result = fmt.Sprintf("Tool %q failed: panic: %v", name, rec)
		}
	}()

	out, err := spec.Handler(ctx, parseArgs(rawArgs))
	if err != nil {
		slog.Warn("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("Tool %q failed: %v", name, err)
	}
	return out
}

// parseArgs decodes string-shaped payloads as JSON when possible.
func parseArgs(raw any) any {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case json.RawMessage:
		s = string(v)
	default:
		return raw
	}

	if strings.TrimSpace(s) == "" {
		return map[string]any{}
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}

// StringArg reads a string field from decoded args. A bare string payload is
// accepted as the value of any field.
func StringArg(args any, key string) string {
	switch v := args.(type) {
	case map[string]any:
		if s, ok := v[key].(string); ok {
			return strings.TrimSpace(s)
		}
		if f, ok := v[key].(float64); ok {
			return fmt.Sprint(f)
		}
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}
