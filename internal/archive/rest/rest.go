// Package rest forwards chat messages to an external persistence service
// over its JSON API.
package rest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vbonduro/glowly/internal/domain"
)

const defaultTimeout = 15 * time.Second

var ErrMissingURL = errors.New("archive URL is required")

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrMissingURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Content-Type", "application/json"),
	}, nil
}

type storeRequest struct {
	ChatID   string               `json:"chat_id"`
	UID      string               `json:"uid"`
	Messages []domain.ChatMessage `json:"messages"`
}

type listResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

func (c *Client) Store(ctx context.Context, chatID, uid string, msgs []domain.ChatMessage) error {
	if chatID == "" {
		return fmt.Errorf("chat id required")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(storeRequest{ChatID: chatID, UID: uid, Messages: msgs}).
		Post("/chat/store-message")
	if err != nil {
		return fmt.Errorf("failed to store messages: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("archive returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func (c *Client) List(ctx context.Context, uid, chatID string) ([]domain.ChatMessage, error) {
	params := map[string]string{"uid": uid}
	if chatID != "" {
		params["chat_id"] = chatID
	}

	var out listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/chat/get-messages")
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("archive returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out.Messages == nil {
		out.Messages = []domain.ChatMessage{}
	}
	return out.Messages, nil
}
