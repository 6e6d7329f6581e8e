package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"stability-mcp/internal/domain/generation"
	"stability-mcp/internal/domain/model"
	"stability-mcp/internal/infrastructure/auth"
	"stability-mcp/internal/infrastructure/config"
	"stability-mcp/internal/infrastructure/logger"
	_ "stability-mcp/internal/infrastructure/metrics" // Register Prometheus metrics
	"stability-mcp/internal/infrastructure/stability"
	"stability-mcp/internal/infrastructure/storage"
	"stability-mcp/internal/interfaces/httpserver"
	mcproutes "stability-mcp/internal/interfaces/httpserver/routes/mcp"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info", "json")
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Stability MCP service")

	// Model registry, with optional operator overrides
	registry := model.NewRegistry()
	if cfg.ModelsConfigPath != "" {
		if err := registry.ApplyOverrides(cfg.ModelsConfigPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.ModelsConfigPath).Msg("Failed to apply model overrides")
		}
	}

	// Artifact store; probe the directory at startup so misconfiguration
	// fails fast instead of on the first generation.
	store, err := storage.NewStore(storage.StoreConfig{
		Path:          cfg.ImageStoragePath,
		CreateMissing: cfg.CreateStorageDir,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve storage directory")
	}
	if err := store.EnsureDir(ctx); err != nil {
		log.Fatal().Err(err).Str("directory", store.Dir()).Msg("Storage directory unavailable")
	}
	log.Info().Str("directory", store.Dir()).Msg("Image storage ready")

	// Stability API client + domain service
	client := stability.NewClient(stability.ClientConfig{
		APIKey:  cfg.StabilityAPIKey,
		BaseURL: cfg.StabilityBaseURL,
		Timeout: cfg.RequestTimeout,
	})
	service := generation.NewService(registry, client, store)

	// Optional JWKS auth
	var authValidator *auth.Validator
	if cfg.AuthEnabled {
		authValidator, err = auth.NewValidator(ctx, cfg.AuthIssuer, cfg.AuthJWKSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize auth validator")
		}
	}

	// MCP routes + HTTP server
	generateMCP := mcproutes.NewGenerateImageMCP(service, cfg.InlineImageResults)
	registryMCP := mcproutes.NewRegistryMCP(service)
	mcpRoute := mcproutes.NewMCPRoute(generateMCP, registryMCP)

	server := httpserver.NewHTTPServer(cfg, mcpRoute, authValidator)
	log.Info().Str("address", ":"+cfg.HTTPPort).Msg("Server listening")
	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
