// Package handlers contains the Telegram command and callback handlers. They
// are a thin layer over the scheduler core: parse the user's input, call one
// core operation, render the reply in the user's language.
package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hamdan-dev/tazkir/internal/delivery"
	"github.com/hamdan-dev/tazkir/internal/i18n"
	"github.com/hamdan-dev/tazkir/internal/models"
	"github.com/hamdan-dev/tazkir/internal/notifier"
	"github.com/hamdan-dev/tazkir/internal/repository"
	"github.com/hamdan-dev/tazkir/internal/scheduler"
	"github.com/hamdan-dev/tazkir/internal/timeparse"
)

type Handlers struct {
	api       *tgbotapi.BotAPI
	users     *repository.UserRepository
	reminders *repository.ReminderRepository
	core      *scheduler.Core
	gateway   *delivery.Gateway
	parser    *timeparse.Parser
}

func New(
	api *tgbotapi.BotAPI,
	users *repository.UserRepository,
	reminders *repository.ReminderRepository,
	core *scheduler.Core,
	gateway *delivery.Gateway,
	parser *timeparse.Parser,
) *Handlers {
	return &Handlers{
		api:       api,
		users:     users,
		reminders: reminders,
		core:      core,
		gateway:   gateway,
		parser:    parser,
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user, err := h.users.GetOrCreate(ctx, msg.From.ID, msg.From.UserName, msg.From.LanguageCode)
	if err != nil {
		logrus.Errorf("Failed to resolve user %d: %v", msg.From.ID, err)
		return
	}

	switch msg.Command() {
	case "start":
		h.reply(msg.Chat.ID, i18n.T(user.Language, "start"))
	case "help":
		h.reply(msg.Chat.ID, i18n.T(user.Language, "help"))
	case "remind":
		h.handleRemind(ctx, msg, user)
	case "reminders":
		h.handleList(ctx, msg, user)
	case "delete":
		h.handleDelete(ctx, msg, user)
	case "language":
		h.handleLanguage(ctx, msg, user)
	case "timezone":
		h.handleTimezone(ctx, msg, user)
	}
}

// HandleCallback routes the Done / Snooze buttons on reminder cards.
func (h *Handlers) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer h.answerCallback(cb.ID)

	if cb.From == nil || cb.Message == nil {
		return
	}
	user, err := h.users.GetOrCreate(ctx, cb.From.ID, cb.From.UserName, cb.From.LanguageCode)
	if err != nil {
		logrus.Errorf("Failed to resolve user %d: %v", cb.From.ID, err)
		return
	}

	parts := strings.Split(cb.Data, ":")
	if len(parts) < 2 {
		return
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		logrus.Warnf("Malformed callback data %q", cb.Data)
		return
	}

	switch parts[0] {
	case delivery.CallbackDone:
		h.handleDone(ctx, cb, user, id)
	case delivery.CallbackSnooze:
		if len(parts) != 3 {
			return
		}
		secs, err := strconv.Atoi(parts[2])
		if err != nil || secs <= 0 {
			logrus.Warnf("Malformed snooze duration in %q", cb.Data)
			return
		}
		h.handleSnooze(ctx, cb, user, id, time.Duration(secs)*time.Second)
	}
}

func (h *Handlers) handleDone(ctx context.Context, cb *tgbotapi.CallbackQuery, user *models.User, id uuid.UUID) {
	r, err := h.reminders.GetByID(ctx, id)
	if err != nil {
		logrus.Errorf("Failed to load reminder %s: %v", id, err)
		return
	}
	if r.UserID != user.UserID {
		return
	}

	if _, err := h.core.Complete(ctx, id); err != nil {
		logrus.Errorf("Failed to complete reminder %s: %v", id, err)
		return
	}

	text, keyboard := delivery.CompletedCard(r, user)
	h.updateCard(ctx, cb, r, text, keyboard)
}

func (h *Handlers) handleSnooze(ctx context.Context, cb *tgbotapi.CallbackQuery, user *models.User, id uuid.UUID, d time.Duration) {
	r, err := h.reminders.GetByID(ctx, id)
	if err != nil {
		logrus.Errorf("Failed to load reminder %s: %v", id, err)
		return
	}
	if r.UserID != user.UserID {
		return
	}

	until, err := h.core.Snooze(ctx, id, d)
	if err != nil {
		logrus.Errorf("Failed to snooze reminder %s: %v", id, err)
		return
	}

	text, keyboard := delivery.SnoozedCard(r, user, until)
	h.updateCard(ctx, cb, r, text, keyboard)
}

func (h *Handlers) updateCard(ctx context.Context, cb *tgbotapi.CallbackQuery, r *models.Reminder, text string, keyboard notifier.Keyboard) {
	target := notifier.Target{ChatID: cb.Message.Chat.ID, Kind: string(r.TargetKind)}
	if _, err := h.gateway.UpdateCard(ctx, target, cb.Message.MessageID, text, keyboard); err != nil {
		logrus.Errorf("Failed to update reminder card %s: %v", r.ID, err)
	}
}

func (h *Handlers) answerCallback(id string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		logrus.Warnf("Failed to answer callback query: %v", err)
	}
}

func (h *Handlers) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		logrus.Errorf("Failed to send message to chat %d: %v", chatID, err)
	}
}
