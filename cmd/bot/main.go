package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/sirupsen/logrus"

	"github.com/hamdan-dev/tazkir/internal/bot"
	"github.com/hamdan-dev/tazkir/internal/config"
	"github.com/hamdan-dev/tazkir/internal/database"
	"github.com/hamdan-dev/tazkir/internal/delivery"
	"github.com/hamdan-dev/tazkir/internal/notifier"
	"github.com/hamdan-dev/tazkir/internal/repository"
	"github.com/hamdan-dev/tazkir/internal/scheduler"
	"github.com/hamdan-dev/tazkir/internal/timeparse"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURI == "" {
		logrus.Fatal("DATABASE_URI is required")
	}
	if cfg.TelegramToken == "" {
		logrus.Fatal("TELEGRAM_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.Info("Connected to database")

	if err := db.Migrate(ctx); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	logrus.Info("Database migrations completed")

	var parser *timeparse.Parser
	if cfg.AIAPIKey != "" {
		parser = timeparse.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		logrus.Infof("Time parser initialized (model: %s)", cfg.AIModel)
	} else {
		logrus.Info("AI key not configured, only literal time formats accepted")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logrus.Fatalf("Failed to create Telegram API: %v", err)
	}

	reminderRepo := repository.NewReminderRepository(db)
	userRepo := repository.NewUserRepository(db)

	clk := clock.New()
	breaker := delivery.NewBreaker(clk, cfg.BreakerThreshold, cfg.BreakerCooldown)
	gateway := delivery.NewGateway(notifier.NewTelegram(api), breaker, clk, delivery.Options{
		Attempts:    cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		CallTimeout: cfg.DeliveryTimeout,
	})

	core := scheduler.New(reminderRepo, userRepo, gateway, clk, scheduler.Options{
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.DispatchConcurrency,
		MaxAttempts:  cfg.MaxDeliveryAttempts,
		TimerHorizon: cfg.TimerHorizon,
	})
	go core.Start(ctx)

	b, err := bot.New(api, userRepo, reminderRepo, core, gateway, parser)
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logrus.Info("Shutting down...")
		cancel()
	}()

	logrus.Info("Starting bot...")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		logrus.Fatalf("Bot error: %v", err)
	}
}
