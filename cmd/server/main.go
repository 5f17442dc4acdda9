package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/config"
	"github.com/medannot/medannot/internal/logger"
	"github.com/medannot/medannot/internal/server"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/transcribe"
	"github.com/medannot/medannot/internal/workdir"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	slogger := logger.SetupLogger(cfg)

	// Log startup information
	slogger.Info("Starting MedAnnot server",
		"env", cfg.Env,
		"port", cfg.Port,
		"static_dir", cfg.StaticDir,
	)

	layout, err := workdir.New(cfg.Home)
	if err != nil {
		log.Fatalf("Fatal: %v", err)
	}
	if err := layout.Prep(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, layout.DatabasePath())
	if err != nil {
		slogger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.OpenAIAPIKey == "" || cfg.AnthropicAPIKey == "" {
		slogger.Warn("API keys missing; transcription or generation requests will fail")
	}

	srv := server.New(cfg, slogger, server.Deps{
		DB:          db,
		Importer:    audio.NewImporter(layout.RecordingsDir(), cfg.MaxUploadBytes),
		Transcriber: transcribe.New(cfg.OpenAIAPIKey),
		Generator:   annotate.New(cfg.AnthropicAPIKey),
	})

	if err := server.Run(ctx, srv); err != nil {
		slogger.Error("Server stopped", "error", err)
		stop()
		db.Close()
		os.Exit(1) //nolint:gocritic // deferred calls were run by hand above
	}
}
