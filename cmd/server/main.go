package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/ai"
	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/files"
	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/store"
	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/vcs"
	"github.com/arturoeanton/go-codebase-assistant/internal/chunker"
	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/handler"
	"github.com/arturoeanton/go-codebase-assistant/internal/mcp"
	"github.com/arturoeanton/go-codebase-assistant/internal/middleware"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"github.com/arturoeanton/go-codebase-assistant/internal/service"
	"github.com/arturoeanton/go-codebase-assistant/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Codebase Assistant",
		"port", cfg.Port,
		"ai_provider", cfg.AIProvider,
		"index_backend", cfg.IndexBackend,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Model backend ────────────────────────────────────────────────────
	provider := ai.NewResilient(newAIProvider(cfg), cfg.AIRequestsPerMinute, cfg.AIBreakerFailures)
	slog.Info("model backend ready", "model", provider.ModelName())

	// ── Vector index ─────────────────────────────────────────────────────
	indexStore, closeStore, err := newIndexStore(cfg)
	if err != nil {
		slog.Error("failed to open vector index", "backend", cfg.IndexBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// ── Services ─────────────────────────────────────────────────────────
	session := service.NewSession()
	fileManager := files.NewManager(service.DefaultIgnoreDirs...)

	indexer := service.NewIndexer(
		session,
		indexStore,
		provider,
		vcs.NewGitProvider(),
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg.CloneBasePath,
		filepath.Base(cfg.IndexPath),
	)

	assistant := service.NewAssistant(session, provider, provider, service.AssistantConfig{
		RelevanceThreshold: cfg.RelevanceThreshold,
		GateK:              cfg.GateK,
		RetrievalK:         cfg.RetrievalK,
	})

	// A newly active index becomes the file manager root; clearing forgets it.
	indexer.Notify(func(status domain.IndexStatus) {
		if err := fileManager.SetRoot(status.ProjectPath); err != nil {
			slog.Warn("failed to set file manager root", "path", status.ProjectPath, "error", err)
		}
		assistant.Reset()
	}, func() {
		fileManager.ClearRoot()
		assistant.Reset()
	})

	if restored, err := indexer.Restore(context.Background()); err != nil {
		slog.Warn("could not restore previous index", "error", err)
	} else if restored {
		slog.Info("serving previously indexed project", "project", indexer.Status().ProjectName)
	}

	genCfg := service.GenerationConfig{
		PlanMaxTokens: cfg.PlanMaxTokens,
		FileMaxTokens: cfg.FileMaxTokens,
		Temperature:   float32(cfg.GenerationTemperature),
	}
	generator := service.NewGenerator(service.NewPlanner(provider, genCfg), provider, indexer, genCfg)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		ReadTimeout: 30 * time.Second,
		// indexing a large repository and streaming a generation both run long
		WriteTimeout: 15 * time.Minute,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))
	app.Use(middleware.RequestLog())

	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "AI Codebase Assistant API v2"})
	})

	handler.NewIndexHandler(indexer).Register(app)
	handler.NewQueryHandler(assistant).Register(app)
	handler.NewFilesHandler(fileManager).Register(app)
	handler.NewGenerateHandler(generator).Register(app)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(indexer, assistant, generator, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newAIProvider(cfg *config.Config) port.AIProvider {
	if cfg.AIProvider == "ollama" {
		return ai.NewOllamaProvider(
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaEmbedURL,
				Model:   cfg.OllamaEmbedModel,
				Token:   cfg.OllamaEmbedToken,
			},
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaChatURL,
				Model:   cfg.OllamaChatModel,
				Token:   cfg.OllamaChatToken,
			},
		)
	}
	return ai.NewOpenAIProvider(
		ai.OpenAIEndpointConfig{
			BaseURL: cfg.ModelBaseURL,
			Model:   cfg.ModelName,
			APIKey:  cfg.ModelAPIKey,
		},
		ai.OpenAIEndpointConfig{
			BaseURL: cfg.EmbedBaseURL,
			Model:   cfg.EmbedModel,
			APIKey:  cfg.EmbedAPIKey,
		},
	)
}

func newIndexStore(cfg *config.Config) (port.IndexStore, func(), error) {
	if cfg.IndexBackend == "pgvector" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pg, err := store.NewPGVectorStore(ctx, cfg.DatabaseURL, cfg.EmbeddingDimension)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	}
	return store.NewBoltStore(cfg.IndexPath), func() {}, nil
}
