package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/glowly/internal/archive"
	"github.com/vbonduro/glowly/internal/conversation"
	"github.com/vbonduro/glowly/internal/domain"
	"github.com/vbonduro/glowly/internal/llm"
	"github.com/vbonduro/glowly/internal/photostore"
	"github.com/vbonduro/glowly/internal/skin"
	"github.com/vbonduro/glowly/internal/workflow"
)

var (
	ErrScanNotFound = errors.New("scan not found")
	ErrEmptyMessage = errors.New("message is required")
	ErrInvalidPhoto = errors.New("invalid photo data URL")
	ErrMissingUID   = errors.New("uid is required")
)

// scanRepository is the subset of store.ScanStore that ConsultService requires.
type scanRepository interface {
	ReplaceForUID(ctx context.Context, scan *domain.Scan) (*domain.Scan, []*domain.Scan, error)
	GetByID(ctx context.Context, id int64) (*domain.Scan, error)
	GetLatestByUID(ctx context.Context, uid string) (*domain.Scan, error)
}

// ResponderFactory builds the chat agent for one request. Tools that depend
// on the shopper's country are bound here.
type ResponderFactory func(country string) workflow.Responder

type ConsultService struct {
	scans     scanRepository
	photoStg  photostore.PhotoStore
	archive   archive.Archive
	responder ResponderFactory
	prompts   workflow.Prompts
	country   string
	logger    *slog.Logger
}

func NewConsultService(
	scans scanRepository,
	photoStg photostore.PhotoStore,
	messages archive.Archive,
	responder ResponderFactory,
	prompts workflow.Prompts,
	defaultCountry string,
	logger *slog.Logger,
) *ConsultService {
	return &ConsultService{
		scans:     scans,
		photoStg:  photoStg,
		archive:   messages,
		responder: responder,
		prompts:   prompts,
		country:   defaultCountry,
		logger:    logger,
	}
}

// AnalyzeScan decodes the photo, derives the five pixel metrics, stores the
// photo and replaces whatever scan the uid had before.
func (s *ConsultService) AnalyzeScan(ctx context.Context, uid string, imageData []byte, mimeType string) (*domain.Scan, error) {
	if uid == "" {
		return nil, ErrMissingUID
	}
	s.logger.Info("scan analysis started", "uid", uid, "mime_type", mimeType, "bytes", len(imageData))

	img, format, err := skin.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	report, err := skin.AnalyzeImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}
	if mimeType == "" {
		mimeType = "image/" + format
	}

	storageKey, err := s.photoStg.Save(ctx, uid, mimeType, bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}
	s.logger.Debug("photo saved", "uid", uid, "storage_key", storageKey)

	bounds := img.Bounds()
	scan, replaced, err := s.scans.ReplaceForUID(ctx, &domain.Scan{
		UID:        uid,
		StorageKey: storageKey,
		MimeType:   mimeType,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Summary:    report.Summary,
		Metrics:    report.Metrics,
	})
	if err != nil {
		_ = s.photoStg.Delete(ctx, storageKey)
		return nil, fmt.Errorf("failed to store scan: %w", err)
	}

	for _, old := range replaced {
		if err := s.photoStg.Delete(ctx, old.StorageKey); err != nil && !errors.Is(err, photostore.ErrNotFound) {
			s.logger.Error("failed to delete replaced photo", "storage_key", old.StorageKey, "error", err)
		}
	}

	s.logger.Info("scan analysis complete", "uid", uid, "scan_id", scan.ID, "replaced", len(replaced))
	return scan, nil
}

func (s *ConsultService) GetScan(ctx context.Context, id int64) (*domain.Scan, error) {
	scan, err := s.scans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	if scan == nil {
		return nil, ErrScanNotFound
	}
	return scan, nil
}

func (s *ConsultService) GetLatestScan(ctx context.Context, uid string) (*domain.Scan, error) {
	scan, err := s.scans.GetLatestByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	if scan == nil {
		return nil, ErrScanNotFound
	}
	return scan, nil
}

// GetScanPhoto opens the stored photo of a scan. The caller closes the reader.
func (s *ConsultService) GetScanPhoto(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	scan, err := s.GetScan(ctx, id)
	if err != nil {
		return nil, "", err
	}
	rc, mimeType, err := s.photoStg.Get(ctx, scan.StorageKey)
	if errors.Is(err, photostore.ErrNotFound) {
		return nil, "", ErrScanNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}
	return rc, mimeType, nil
}

type ChatRequest struct {
	UID     string
	ChatID  string
	Message string
	History []conversation.Turn
	Photos  []string
	Country string
}

type ChatReply struct {
	Reply   string
	History []conversation.Turn
}

// ChatTurn appends the user's message to the history the client sent, runs
// one agent exchange and returns the reply with the grown history.
func (s *ConsultService) ChatTurn(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if err := validatePhotos(req.Photos); err != nil {
		return nil, err
	}

	history := conversation.NewHistory(req.History...)
	history.Append(conversation.User(message))

	start := time.Now()
	reply, err := s.responder(s.countryOr(req.Country)).Respond(ctx, req.Photos, history.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("chat turn failed: %w", err)
	}
	history.Append(conversation.Assistant(reply))
	s.logger.Info("chat turn complete", "uid", req.UID, "chat_id", req.ChatID, "duration", time.Since(start), "turns", history.Len())

	now := time.Now().UTC()
	s.archiveQuietly(ctx, req.ChatID, req.UID, []domain.ChatMessage{
		{Role: string(llm.RoleUser), Content: message, ContentType: "text", Timestamp: now},
		{Role: string(llm.RoleAssistant), Content: reply, ContentType: "markdown", Timestamp: now},
	})

	return &ChatReply{Reply: reply, History: history.Snapshot()}, nil
}

type WorkflowRequest struct {
	UID     string
	ChatID  string
	Photos  []string
	Country string
}

// RunWorkflow runs the four-step consultation. The partial result is returned
// alongside any error so callers can show what was produced.
func (s *ConsultService) RunWorkflow(ctx context.Context, req WorkflowRequest, onStep func(workflow.StepEvent)) (*workflow.Result, error) {
	if len(req.Photos) == 0 {
		return nil, workflow.ErrNoPhotos
	}
	if err := validatePhotos(req.Photos); err != nil {
		return nil, err
	}

	s.logger.Info("workflow started", "uid", req.UID, "chat_id", req.ChatID, "photos", len(req.Photos))
	seq := workflow.NewSequencer(s.responder(s.countryOr(req.Country)), s.prompts, s.logger)
	res, err := seq.Run(ctx, req.Photos, onStep)
	if res != nil {
		s.archiveQuietly(ctx, req.ChatID, req.UID, turnsToMessages(res.History))
	}
	if err != nil {
		s.logger.Warn("workflow stopped", "uid", req.UID, "error", err)
		return res, err
	}
	s.logger.Info("workflow complete", "uid", req.UID, "products", len(res.Products), "ratings", res.Ratings != nil)
	return res, nil
}

func (s *ConsultService) StoreMessages(ctx context.Context, chatID, uid string, msgs []domain.ChatMessage) error {
	if chatID == "" {
		return fmt.Errorf("chat id required")
	}
	return s.archive.Store(ctx, chatID, uid, msgs)
}

func (s *ConsultService) GetMessages(ctx context.Context, uid, chatID string) ([]domain.ChatMessage, error) {
	if uid == "" {
		return nil, ErrMissingUID
	}
	return s.archive.List(ctx, uid, chatID)
}

// archiveQuietly stores msgs under chatID, or under uid when the client sent
// no chat id. Failures are logged only.
func (s *ConsultService) archiveQuietly(ctx context.Context, chatID, uid string, msgs []domain.ChatMessage) {
	if chatID == "" {
		chatID = uid
	}
	if chatID == "" || len(msgs) == 0 {
		return
	}
	if err := s.archive.Store(ctx, chatID, uid, msgs); err != nil {
		s.logger.Error("failed to archive messages", "chat_id", chatID, "uid", uid, "error", err)
	}
}

func (s *ConsultService) countryOr(country string) string {
	if c := strings.TrimSpace(country); c != "" {
		return strings.ToLower(c)
	}
	return s.country
}

func validatePhotos(photos []string) error {
	for i, p := range photos {
		if _, _, err := llm.ParseDataURL(p); err != nil {
			return fmt.Errorf("%w: photo %d: %v", ErrInvalidPhoto, i+1, err)
		}
	}
	return nil
}

func turnsToMessages(turns []conversation.Turn) []domain.ChatMessage {
	now := time.Now().UTC()
	msgs := make([]domain.ChatMessage, 0, len(turns))
	for _, t := range turns {
		contentType := "text"
		if t.Role == llm.RoleAssistant {
			contentType = "markdown"
		}
		msgs = append(msgs, domain.ChatMessage{Role: string(t.Role), Content: t.Content, ContentType: contentType, Timestamp: now})
	}
	return msgs
}
