// Package conversation holds the role-tagged turns of one chat exchange.
package conversation

import (
	"sync"

	"github.com/vbonduro/glowly/internal/llm"
)

// Turn is one plain-text entry of a conversation.
type Turn struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

func User(content string) Turn      { return Turn{Role: llm.RoleUser, Content: content} }
func Assistant(content string) Turn { return Turn{Role: llm.RoleAssistant, Content: content} }
func System(content string) Turn    { return Turn{Role: llm.RoleSystem, Content: content} }

// History is an append-only list of turns. Snapshots are copies, so callers
// may keep them after further appends.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

// NewHistory starts a history from existing turns.
func NewHistory(turns ...Turn) *History {
	h := &History{turns: make([]Turn, 0, len(turns))}
	h.turns = append(h.turns, turns...)
	return h
}

func (h *History) Append(turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

func (h *History) Snapshot() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Messages converts turns to wire messages. Turns with an unknown role are
// sent as user turns.
func Messages(turns []Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := t.Role
		switch role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
		default:
			role = llm.RoleUser
		}
		out = append(out, llm.TextMessage(role, t.Content))
	}
	return out
}
