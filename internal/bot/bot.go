package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hamdan-dev/tazkir/internal/bot/handlers"
	"github.com/hamdan-dev/tazkir/internal/delivery"
	"github.com/hamdan-dev/tazkir/internal/repository"
	"github.com/hamdan-dev/tazkir/internal/scheduler"
	"github.com/hamdan-dev/tazkir/internal/timeparse"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
}

func New(
	api *tgbotapi.BotAPI,
	users *repository.UserRepository,
	reminders *repository.ReminderRepository,
	core *scheduler.Core,
	gateway *delivery.Gateway,
	parser *timeparse.Parser,
) (*Bot, error) {
	if api == nil {
		return nil, fmt.Errorf("telegram api is required")
	}
	return &Bot{
		api:      api,
		handlers: handlers.New(api, users, reminders, core, gateway, parser),
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	logrus.Infof("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handlers.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handlers.HandleCommand(ctx, update.Message)
	}
}
