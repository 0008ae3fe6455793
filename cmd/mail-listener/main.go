package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rpanamer/internal/config"
	"rpanamer/internal/listener"
	"rpanamer/internal/logging"
	"rpanamer/internal/ocr"
	"rpanamer/internal/pipeline"
	"rpanamer/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = logger.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	batches := pipeline.NewBatchService(db, cfg, ocr.NewEngine(ocr.ConfigFrom(cfg), logger), logger)
	svc := listener.NewService(db, cfg, batches, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
