// Package app wires glowly's collaborators using go.uber.org/dig. Each
// accessor resolves only what it needs, so a command that never touches the
// database never opens it.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/dig"

	"github.com/vbonduro/glowly/internal/agent"
	"github.com/vbonduro/glowly/internal/archive"
	"github.com/vbonduro/glowly/internal/archive/rest"
	"github.com/vbonduro/glowly/internal/config"
	"github.com/vbonduro/glowly/internal/db"
	"github.com/vbonduro/glowly/internal/llm"
	"github.com/vbonduro/glowly/internal/llm/claude"
	"github.com/vbonduro/glowly/internal/llm/ollama"
	"github.com/vbonduro/glowly/internal/llm/openai"
	"github.com/vbonduro/glowly/internal/photostore"
	"github.com/vbonduro/glowly/internal/photostore/local"
	"github.com/vbonduro/glowly/internal/product"
	"github.com/vbonduro/glowly/internal/retention"
	"github.com/vbonduro/glowly/internal/search"
	"github.com/vbonduro/glowly/internal/service"
	"github.com/vbonduro/glowly/internal/store"
	"github.com/vbonduro/glowly/internal/tools"
	"github.com/vbonduro/glowly/internal/web"
	"github.com/vbonduro/glowly/internal/workflow"
)

type App struct {
	c      *dig.Container
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// New registers every constructor. Nothing is built until an accessor asks.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{c: dig.New(), logger: logger}

	for _, ctor := range []any{
		func() *config.Config { return cfg },
		func() *slog.Logger { return logger },
		a.openDB,
		newPhotoStore,
		store.NewScanStore,
		store.NewMessageStore,
		newArchive,
		newChatModel,
		newSearcher,
		product.NewReader,
		newPrompts,
		newResponderFactory,
		newConsultService,
		newPruner,
		web.NewServer,
	} {
		if err := a.c.Provide(ctor); err != nil {
			return nil, fmt.Errorf("failed to register constructor: %w", err)
		}
	}
	return a, nil
}

func (a *App) Server() (*web.Server, error) {
	var s *web.Server
	err := a.c.Invoke(func(srv *web.Server) { s = srv })
	return s, err
}

func (a *App) Service() (*service.ConsultService, error) {
	var s *service.ConsultService
	err := a.c.Invoke(func(svc *service.ConsultService) { s = svc })
	return s, err
}

func (a *App) Pruner() (*retention.Pruner, error) {
	var p *retention.Pruner
	err := a.c.Invoke(func(pr *retention.Pruner) { p = pr })
	return p, err
}

// Responder returns a chat agent bound to country. It needs the model and
// search backends but no storage.
func (a *App) Responder(country string) (workflow.Responder, error) {
	var r workflow.Responder
	err := a.c.Invoke(func(f service.ResponderFactory) { r = f(country) })
	return r, err
}

func (a *App) Prompts() (workflow.Prompts, error) {
	var p workflow.Prompts
	err := a.c.Invoke(func(pr workflow.Prompts) { p = pr })
	return p, err
}

func (a *App) DB() (*sql.DB, error) {
	var d *sql.DB
	err := a.c.Invoke(func(conn *sql.DB) { d = conn })
	return d, err
}

// Close releases the database if one was opened.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *App) openDB(cfg *config.Config) (*sql.DB, error) {
	d, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.db = d
	a.mu.Unlock()
	return d, nil
}

func newPhotoStore(cfg *config.Config) (photostore.PhotoStore, error) {
	return local.NewLocalPhotoStore(cfg.PhotoPath)
}

func newArchive(cfg *config.Config, messages *store.MessageStore, logger *slog.Logger) (archive.Archive, error) {
	switch cfg.ArchiveBackend {
	case "rest":
		logger.Info("using REST message archive", "url", cfg.ArchiveURL)
		return rest.NewClient(cfg.ArchiveURL)
	case "sqlite", "":
		return messages, nil
	}
	return nil, fmt.Errorf("unknown ARCHIVE_BACKEND %q", cfg.ArchiveBackend)
}

func newChatModel(cfg *config.Config, logger *slog.Logger) (llm.ChatModel, error) {
	switch cfg.ModelBackend {
	case "claude":
		logger.Info("using Claude chat backend", "model", cfg.ClaudeModel)
		return claude.NewClient(cfg.ClaudeAPIKey)
	case "ollama":
		logger.Info("using Ollama chat backend", "model", cfg.OllamaModel)
		return ollama.NewClient(cfg.OllamaHost), nil
	case "openai", "":
		logger.Info("using OpenAI-compatible chat backend", "model", cfg.Model, "base_url", cfg.OpenAIBaseURL)
		return openai.NewClient(cfg.OpenAIAPIKey, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return nil, fmt.Errorf("unknown MODEL_BACKEND %q", cfg.ModelBackend)
}

func newSearcher(cfg *config.Config) (search.Searcher, error) {
	switch cfg.SearchBackend {
	case "serpapi":
		return search.NewSerpAPIClient(cfg.SerpAPIKey)
	case "serper", "":
		return search.NewSerperClient(cfg.SerperAPIKey)
	}
	return nil, fmt.Errorf("unknown SEARCH_BACKEND %q", cfg.SearchBackend)
}

func newPrompts(cfg *config.Config) (workflow.Prompts, error) {
	return workflow.LoadPrompts(cfg.PromptsFile)
}

// newResponderFactory builds a fresh tool registry and agent per request so
// the shopper's country is bound into the search tool.
func newResponderFactory(
	cfg *config.Config,
	model llm.ChatModel,
	searcher search.Searcher,
	reader *product.Reader,
	prompts workflow.Prompts,
	logger *slog.Logger,
) service.ResponderFactory {
	system := prompts.System
	if system == "" {
		system = agent.DefaultSystemPrompt
	}
	return func(country string) workflow.Responder {
		registry := tools.NewRegistry(
			tools.NewSerperTool(searcher, country),
			tools.NewProductPageTool(reader),
		)
		return agent.New(model, registry,
			agent.WithModelID(cfg.ModelID()),
			agent.WithMaxTurns(cfg.MaxTurns),
			agent.WithCallTimeout(cfg.CallTimeout),
			agent.WithStreaming(cfg.Stream),
			agent.WithSystemPrompt(system),
			agent.WithLogger(logger),
		)
	}
}

func newConsultService(
	cfg *config.Config,
	scans *store.ScanStore,
	photoStg photostore.PhotoStore,
	messages archive.Archive,
	responder service.ResponderFactory,
	prompts workflow.Prompts,
	logger *slog.Logger,
) *service.ConsultService {
	return service.NewConsultService(scans, photoStg, messages, responder, prompts, cfg.Country, logger)
}

func newPruner(cfg *config.Config, scans *store.ScanStore, photoStg photostore.PhotoStore, logger *slog.Logger) (*retention.Pruner, error) {
	return retention.NewPruner(scans, photoStg, cfg.RetentionDays, cfg.RetentionSchedule, logger)
}
