/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HamedShams/effort-pulse/internal/adapters/mail"
	"github.com/HamedShams/effort-pulse/internal/adapters/openai"
	"github.com/HamedShams/effort-pulse/internal/adapters/telegram"
	"github.com/HamedShams/effort-pulse/internal/config"
	httpapi "github.com/HamedShams/effort-pulse/internal/http"
	"github.com/HamedShams/effort-pulse/internal/jobs"
	"github.com/HamedShams/effort-pulse/internal/logger"
	"github.com/HamedShams/effort-pulse/internal/realtime"
	"github.com/HamedShams/effort-pulse/internal/report"
	"github.com/HamedShams/effort-pulse/internal/repo"
	"github.com/HamedShams/effort-pulse/internal/services"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func openBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (repo.Backend, error) {
	switch strings.ToLower(cfg.StoreDriver) {
	case "", "mongo":
		m, err := repo.OpenMongo(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "postgres":
		db, err := repo.OpenPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return repo.NewRepository(db, log), nil
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return repo.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	octx, ocancel := context.WithTimeout(ctx, 20*time.Second)
	backend, err := openBackend(octx, cfg, log)
	ocancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store open failed")
	}
	defer func() { _ = backend.Close(context.Background()) }()

	// Adapters
	llm := openai.NewClient(cfg, log)
	tg := telegram.NewClient(cfg, log)
	mailer := mail.NewClient(cfg, log)
	hub := realtime.NewHub(log)

	// Services
	svc, err := services.New(cfg, log, services.Deps{
		Store:    backend,
		Renderer: report.NewRenderer(cfg.ReportDir, cfg.ReportTitle, log),
		Archive:  report.NewArchive(cfg.ReportDir),
		Mail:     mailer,
		LLM:      llm,
		Telegram: tg,
		Pub:      hub,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("service init failed")
	}

	// HTTP server (Gin)
	router := httpapi.NewRouter(cfg, log, svc, hub)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: cfg.HTTPTimeout}

	// Register Telegram webhook only if PUBLIC_BASE_URL is HTTPS
	if cfg.TelegramWebhookSecret != "" && strings.HasPrefix(strings.ToLower(cfg.PublicBaseURL), "https://") {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + "/telegram/webhook/" + cfg.TelegramWebhookSecret
			if err := tg.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
				log.Error().Err(err).Msg("telegram setWebhook failed")
			} else {
				log.Info().Msg("telegram setWebhook ok")
			}
		}()
	}

	// Cron
	cr, err := jobs.NewCron(cfg, log, svc, backend)
	if err != nil {
		log.Fatal().Err(err).Msg("cron init failed")
	}
	cr.Start()
	log.Info().Str("schedule", cfg.ReportCron).Time("next", cr.NextReport()).Msg("report schedule active")

	// graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cr.Stop()
}
