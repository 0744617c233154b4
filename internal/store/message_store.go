package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/glowly/internal/domain"
)

// MessageStore archives chat messages keyed by chat id and uid.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Store appends msgs to the chat in order. A zero Timestamp is replaced with
// the current time and an empty ContentType with "text".
func (s *MessageStore) Store(ctx context.Context, chatID, uid string, msgs []domain.ChatMessage) error {
	if chatID == "" {
		return fmt.Errorf("chat id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, m := range msgs {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = now
		}
		contentType := m.ContentType
		if contentType == "" {
			contentType = "text"
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (chat_id, uid, role, content, content_type, timestamp) VALUES (?, ?, ?, ?, ?, ?)
		`, chatID, uid, m.Role, m.Content, contentType, ts); err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// List returns the messages of chatID in insertion order. With an empty
// chatID it falls back to the first chat recorded for uid.
func (s *MessageStore) List(ctx context.Context, uid, chatID string) ([]domain.ChatMessage, error) {
	if chatID == "" {
		err := s.db.QueryRowContext(ctx, `
			SELECT chat_id FROM chat_messages WHERE uid = ? ORDER BY id ASC LIMIT 1
		`, uid).Scan(&chatID)
		if err == sql.ErrNoRows {
			return []domain.ChatMessage{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find chat: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, uid, role, content, content_type, timestamp FROM chat_messages
		WHERE chat_id = ? ORDER BY id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	msgs := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UID, &m.Role, &m.Content, &m.ContentType, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}
