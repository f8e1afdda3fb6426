package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"listingshots/internal/adapter/repo"
	"listingshots/internal/domain"
	"listingshots/internal/domain/jsoncfg"
	"listingshots/internal/http/handlers"
	httpapi "listingshots/internal/http/httpapi"
	"listingshots/internal/imagegen"
	"listingshots/internal/infra"
	"listingshots/internal/infra/credentials"
	"listingshots/internal/providers"
	"listingshots/internal/providers/gemini"
	"listingshots/internal/providers/qwen"
	"listingshots/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)
	ctx := context.Background()

	// The database is optional: it only supplies stored API keys and
	// template overrides.
	var (
		creds     *credentials.Store
		templates domain.PromptTemplateRepository
	)
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, logger)
		creds = credentials.NewStore(runner)
		templates = repo.NewTemplateRepository(runner)
	}

	tpl, err := jsoncfg.LoadTemplates(cfg.PromptTemplatesPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.PromptTemplatesPath).Msg("failed to load prompt templates")
	}
	if templates != nil {
		stored, err := templates.Active(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("prompt template overrides unavailable")
		} else if err := jsoncfg.ValidateTemplates(stored); err != nil {
			logger.Warn().Err(err).Msg("ignoring invalid stored prompt templates")
		} else {
			tpl = tpl.Overlay(stored)
		}
	}

	geminiKey, err := creds.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("gemini key lookup failed")
	}
	qwenKey, err := creds.Resolve(ctx, credentials.ProviderQwen, cfg.QwenAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("qwen key lookup failed")
	}

	geminiClient := gemini.NewClient(gemini.Options{
		APIKey:  geminiKey,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.ProviderTimeout,
		Logger:  &logger,
	})
	if !geminiClient.HasCredentials() {
		logger.Warn().Msg("GEMINI_API_KEY not set; gemini models render synthetic images")
	}
	router := providers.NewRouter(geminiClient).
		Handle("qwen-", qwen.NewClient(qwen.Options{
			APIKey:  qwenKey,
			BaseURL: cfg.QwenBaseURL,
			Timeout: cfg.ProviderTimeout,
			Logger:  &logger,
		}))
	provider := providers.NewBreaker(router, providers.BreakerOptions{
		FailureThreshold: uint32(cfg.BreakerThreshold),
		OpenTimeout:      cfg.BreakerOpenTimeout,
		Logger:           &logger,
	})

	store, err := storage.NewFileStore(storage.Options{
		BasePath:      cfg.StoragePath,
		PublicBaseURL: cfg.StorageBaseURL,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage")
	}

	retry := imagegen.DefaultRetryPolicy()
	retry.Backoff = imagegen.LinearBackoff(cfg.RetryBackoff)
	orchestrator := imagegen.NewOrchestrator(imagegen.Config{
		Provider:  provider,
		Assets:    store,
		Templates: tpl,
		Models:    cfg.ImageModels,
		Retry:     &retry,
		Logger:    &logger,
	})

	app := handlers.NewApp(handlers.Options{
		Generator:         orchestrator,
		Store:             store,
		Breakers:          provider,
		Logger:            &logger,
		PersistOutputs:    cfg.PersistOutputs,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	handler := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       store.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, handler, logger)

	go func() {
		logger.Info().Strs("models", orchestrator.Models()).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
