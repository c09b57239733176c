package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/handler"
	"docextract/internal/llm"
	_ "docextract/internal/llm/claude"
	_ "docextract/internal/llm/gemini"
	_ "docextract/internal/llm/openai"
	"docextract/internal/logging"
	"docextract/internal/metrics"
	"docextract/internal/resilience"
	"docextract/internal/router"
	"docextract/internal/service"
	"docextract/internal/web"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize the model chain (primary, then optional fallbacks)
	model, err := llm.NewChain(&cfg.Model, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize model client: %w", err)
	}
	for _, p := range cfg.Model.ProviderConfigs() {
		logger.Info("model provider configured",
			zap.String("provider", p.Provider),
			zap.String("model", p.DefaultModel),
			zap.Duration("timeout", p.Timeout()))
	}

	executor := resilience.NewExecutor(
		resilience.PolicyFromConfig(cfg.Resilience, cfg.Model.PrimaryConfig().MaxRetries),
		logger,
	)
	m := metrics.New()

	// Initialize services
	extractionSvc := service.NewExtractionService(model, executor, m, logger, &cfg.Upload)

	tmpl, err := web.Templates()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	// Initialize handlers
	extractH := handler.NewExtractionHandler(extractionSvc, logger, &cfg.Upload)
	exportH := handler.NewExportHandler(logger)
	healthH := handler.NewHealthHandler(map[string]handler.ReadinessCheck{
		"model": func() error { return executor.Ready(service.ModelOperation) },
	})

	// Setup router
	r := router.Setup(cfg, logger, m, tmpl, extractH, exportH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}
