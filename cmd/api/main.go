package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperscan/internal/config"
	"paperscan/internal/http"
	"paperscan/internal/imageproc"
	"paperscan/internal/pdfimport"
	"paperscan/internal/service"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	documents := service.NewDocumentsService(cfg, nil, logger)
	if err := documents.Start(ctx, nil); err != nil {
		logger.Error("failed to start documents service", "error", err)
		os.Exit(1)
	}
	defer documents.Stop()

	processor := imageproc.NewPassthrough()
	pdfImporter := pdfimport.New(logger)
	importer := service.NewImporter(documents, processor, pdfImporter, cfg, logger)

	router := http.NewRouter(&http.Deps{
		Documents: documents,
		Importer:  importer,
	})

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort, "root", documents.RootDataFolder)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", "error", err)
	}
	logger.Info("shutdown complete")
}
