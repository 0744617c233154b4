package domain

import "time"

// Metric is one heuristic skin score derived from a scan photo.
type Metric struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Value   int    `json:"value"`
	Summary string `json:"summary"`
}

type Scan struct {
	ID         int64     `json:"id"`
	UID        string    `json:"uid"`
	StorageKey string    `json:"-"`
	MimeType   string    `json:"mime_type"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Summary    string    `json:"summary"`
	Metrics    []Metric  `json:"metrics"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is one archived chat turn.
type ChatMessage struct {
	ID          int64     `json:"-"`
	ChatID      string    `json:"-"`
	UID         string    `json:"-"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Timestamp   time.Time `json:"timestamp"`
}
