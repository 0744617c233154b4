// Package archive defines where chat transcripts are kept once a turn or
// workflow finishes.
package archive

import (
	"context"

	"github.com/vbonduro/glowly/internal/domain"
)

// Archive persists chat messages. *store.MessageStore and *rest.Client
// implement it.
type Archive interface {
	Store(ctx context.Context, chatID, uid string, msgs []domain.ChatMessage) error
	// List returns the messages of chatID. An empty chatID selects the first
	// chat recorded for uid.
	List(ctx context.Context, uid, chatID string) ([]domain.ChatMessage, error)
}
