package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"cattle-expert/internal/bootstrap"
	"cattle-expert/internal/config"
	"cattle-expert/internal/diagnosis"
	"cattle-expert/internal/knowledge"
	"cattle-expert/internal/platform/telegram"
	"cattle-expert/internal/report"
	"cattle-expert/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Configuration
	cfg, err := config.Load(os.Getenv("CATTLE_EXPERT_CONFIG"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := config.NewLogger(cfg.Logging)

	// 2. Knowledge base, loaded once for the life of the process
	source, closer, err := bootstrap.KnowledgeSource(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open knowledge base source")
	}
	kb, err := knowledge.NewCache(source).Get(ctx)
	closer.Close()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load knowledge base")
	}
	logger.WithFields(logrus.Fields{
		"symptoms": len(kb.Symptoms),
		"diseases": len(kb.Diseases),
	}).Info("Knowledge base loaded")

	// 3. Services
	diagnosisSvc, err := diagnosis.NewService(kb, cfg.Cache.MaxEntries, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create diagnosis service")
	}

	var tgClient report.TelegramClient
	if cfg.Telegram.Enabled() {
		tgClient = telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.BaseURL, cfg.Telegram.Timeout)
	} else {
		logger.Warn("Telegram delivery is not configured; reports are download-only")
	}
	reportSvc := report.NewService(kb, tgClient, report.Options{
		FontPaths: cfg.Report.FontPaths,
		ChatID:    cfg.Telegram.ChatID,
	}, logger)

	handler := diagnosis.NewHandler(diagnosisSvc, reportSvc, logger)

	// 4. HTTP
	if err := server.New(cfg.Server, diagnosisSvc, handler, logger).Run(ctx); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
	logger.Info("Server stopped")
}
