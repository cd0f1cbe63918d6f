package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"zyra/internal/config"
	"zyra/internal/db"
	"zyra/internal/economy"
	"zyra/internal/gateway"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.LoadGatewayFromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	eco := economy.NewService(pool, logger, cfg.Params)
	bot, err := gateway.New(cfg, logger, eco)
	if err != nil {
		logger.Error("create bot", "err", err)
		os.Exit(1)
	}
	if err := bot.Start(ctx); err != nil {
		logger.Error("start bot", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if err := bot.Close(); err != nil {
		logger.Error("close bot", "err", err)
	}
}
