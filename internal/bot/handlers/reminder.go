package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hamdan-dev/tazkir/internal/i18n"
	"github.com/hamdan-dev/tazkir/internal/models"
	"github.com/hamdan-dev/tazkir/internal/recurrence"
	"github.com/hamdan-dev/tazkir/internal/timeparse"
)

const listTimeLayout = "2006-01-02 15:04"

func (h *Handlers) handleRemind(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "remind.usage"))
		return
	}

	loc := user.Location()
	at, title, err := h.splitTimeAndTitle(ctx, args, loc, time.Now())
	if err != nil || title == "" {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "remind.badtime"))
		return
	}

	targetKind := models.TargetPrivate
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		targetKind = models.TargetGroup
	}

	r := &models.Reminder{
		UserID:        user.UserID,
		Title:         title,
		ScheduledTime: at,
		Timezone:      user.Timezone,
		TargetChatID:  msg.Chat.ID,
		TargetKind:    targetKind,
	}
	if err := h.core.Schedule(ctx, r); err != nil {
		logrus.Errorf("Failed to schedule reminder for user %d: %v", user.UserID, err)
		h.reply(msg.Chat.ID, i18n.T(user.Language, "remind.failed"))
		return
	}

	when := at.In(loc).Format(listTimeLayout)
	h.reply(msg.Chat.ID, fmt.Sprintf(i18n.T(user.Language, "remind.created"), when))
}

// splitTimeAndTitle separates the time expression from the reminder title.
// An explicit "|" wins; otherwise the shortest leading literal timestamp is
// taken, and the model gets the longest plausible prefixes last since each
// attempt is a network call.
func (h *Handlers) splitTimeAndTitle(ctx context.Context, args string, loc *time.Location, now time.Time) (time.Time, string, error) {
	if expr, title, found := strings.Cut(args, "|"); found {
		at, err := h.parser.Parse(ctx, strings.TrimSpace(expr), loc, now)
		return at, strings.TrimSpace(title), err
	}

	tokens := strings.Fields(args)
	if len(tokens) < 2 {
		return time.Time{}, "", fmt.Errorf("missing title in %q", args)
	}

	for i := 1; i <= 2 && i < len(tokens); i++ {
		if at, err := timeparse.ParseLiteral(strings.Join(tokens[:i], " "), loc, now); err == nil {
			return at, strings.Join(tokens[i:], " "), nil
		}
	}

	var lastErr error
	for i := 3; i >= 1; i-- {
		if i >= len(tokens) {
			continue
		}
		at, err := h.parser.Parse(ctx, strings.Join(tokens[:i], " "), loc, now)
		if err == nil {
			return at, strings.Join(tokens[i:], " "), nil
		}
		lastErr = err
	}
	return time.Time{}, "", lastErr
}

func (h *Handlers) handleList(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	list, err := h.reminders.ListByUser(ctx, user.UserID)
	if err != nil {
		logrus.Errorf("Failed to list reminders for user %d: %v", user.UserID, err)
		return
	}
	if len(list) == 0 {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "list.empty"))
		return
	}

	loc := user.Location()
	var b strings.Builder
	b.WriteString(i18n.T(user.Language, "list.header"))
	for i, r := range list {
		b.WriteString(fmt.Sprintf("\n%d. %s — %s", i+1, r.ScheduledTime.In(loc).Format(listTimeLayout), r.Title))
		if r.IsRecurring {
			b.WriteString(" (" + recurrence.Describe(r) + ")")
		}
	}
	h.reply(msg.Chat.ID, b.String())
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	n, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
	if err != nil || n < 1 {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "delete.usage"))
		return
	}

	list, err := h.reminders.ListByUser(ctx, user.UserID)
	if err != nil {
		logrus.Errorf("Failed to list reminders for user %d: %v", user.UserID, err)
		return
	}
	if n > len(list) {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "delete.missing"))
		return
	}

	deleted, err := h.core.Cancel(ctx, list[n-1].ID)
	if err != nil {
		logrus.Errorf("Failed to delete reminder %s: %v", list[n-1].ID, err)
		return
	}
	if !deleted {
		h.reply(msg.Chat.ID, i18n.T(user.Language, "delete.missing"))
		return
	}
	h.reply(msg.Chat.ID, i18n.T(user.Language, "delete.done"))
}
