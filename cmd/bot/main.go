package main

import (
	"context"
	"github.com/evgkarn/cafebot/internal/checklist"
	"github.com/evgkarn/cafebot/internal/config"
	"github.com/evgkarn/cafebot/internal/dispatch"
	"github.com/evgkarn/cafebot/internal/engine"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/evidence"
	"github.com/evgkarn/cafebot/internal/logging"
	"github.com/evgkarn/cafebot/internal/report"
	"github.com/evgkarn/cafebot/internal/session"
	"github.com/evgkarn/cafebot/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	logger := slog.New(loggerHandler)

	if err := run(logger); err != nil {
		logger.Error("bot exited", errors.SlogError(err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// A .env file is optional; real environment variables win either way.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load .env")
	}

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if cfg.BotToken == "" {
		return errors.New("BOT_TOKEN is not set")
	}
	if err = cfg.EnsureDirs(); err != nil {
		return errors.Wrap(err, "ensure directories")
	}

	evidenceStore := evidence.NewStore(cfg.MediaDir, logger)
	evidenceStore.Prune(evidence.DefaultMaxAge, true)

	checklists := checklist.NewStore(cfg.ConfigDir)
	reports := report.NewStore(cfg.ReportsDir, logger)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return errors.Wrap(err, "connect to bot API")
	}
	logger.Info("connected to bot API", slog.String("username", api.Self.UserName))

	client := telegram.NewClient(api, logger, cfg.TransportTimeout)
	dispatcher := dispatch.New(client, logger)
	recipients := func() ([]int64, error) { return config.Recipients(cfg.ConfigDir) }
	eng := engine.New(logger, checklists, evidenceStore, reports, dispatcher, recipients)
	bot := telegram.New(client, eng, session.NewManager())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot.Run(ctx)
	logger.Info("bot stopped")
	return nil
}
