package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hamdan-dev/tazkir/internal/i18n"
	"github.com/hamdan-dev/tazkir/internal/models"
)

func (h *Handlers) handleLanguage(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	lang := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if lang != models.LangEnglish && lang != models.LangArabic {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "language.usage"))
		return
	}

	if err := h.users.SetLanguage(ctx, user.UserID, lang); err != nil {
		logrus.Errorf("Failed to set language for user %d: %v", user.UserID, err)
		return
	}
	// Confirm in the language just chosen.
	h.reply(msg.Chat.ID, i18n.T(lang, "language.done"))
}

func (h *Handlers) handleTimezone(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	tz := strings.TrimSpace(msg.CommandArguments())
	if tz == "" {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "timezone.usage"))
		return
	}
	if _, err := time.LoadLocation(tz); err != nil {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "timezone.bad"))
		return
	}

	if err := h.users.SetTimezone(ctx, user.UserID, tz); err != nil {
		logrus.Errorf("Failed to set timezone for user %d: %v", user.UserID, err)
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf(i18n.T(user.Language, "timezone.done"), tz))
}
