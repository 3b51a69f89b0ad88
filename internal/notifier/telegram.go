package notifier

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram delivers through the Bot API.
type Telegram struct {
	api *tgbotapi.BotAPI
}

func NewTelegram(api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{api: api}
}

func (t *Telegram) SendMessage(ctx context.Context, target Target, text string, keyboard Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &Error{Class: ClassNetwork, Err: err}
	}

	msg := tgbotapi.NewMessage(target.ChatID, text)
	if kb := toMarkup(keyboard); kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) EditMessage(ctx context.Context, target Target, messageID int, text string, keyboard Keyboard) error {
	if err := ctx.Err(); err != nil {
		return &Error{Class: ClassNetwork, Err: err}
	}

	var edit tgbotapi.Chattable
	if kb := toMarkup(keyboard); kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(target.ChatID, messageID, text, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(target.ChatID, messageID, text)
	}

	if _, err := t.api.Send(edit); err != nil {
		return classify(err)
	}
	return nil
}

func (t *Telegram) SendAttachment(ctx context.Context, target Target, att Attachment) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &Error{Class: ClassNetwork, Err: err}
	}

	doc := tgbotapi.NewDocument(target.ChatID, tgbotapi.FileID(att.FileID))
	doc.Caption = att.Caption

	sent, err := t.api.Send(doc)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func toMarkup(keyboard Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// classify maps a Bot API failure onto the error taxonomy.
func classify(err error) *Error {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		// Transport-level failure: DNS, timeout, broken connection.
		return &Error{Class: ClassNetwork, Err: err}
	}

	switch {
	case tgErr.Code == http.StatusTooManyRequests:
		return &Error{
			Class:      ClassRateLimit,
			Code:       tgErr.Code,
			RetryAfter: time.Duration(tgErr.RetryAfter) * time.Second,
			Err:        err,
		}
	case tgErr.Code == http.StatusForbidden:
		// Bot blocked by the user, kicked from the group, etc.
		return &Error{Class: ClassForbidden, Code: tgErr.Code, Err: err}
	case tgErr.Code == http.StatusBadRequest:
		if strings.Contains(strings.ToLower(tgErr.Message), "message is not modified") {
			return &Error{Class: ClassNotModified, Code: tgErr.Code, Err: err}
		}
		return &Error{Class: ClassBadRequest, Code: tgErr.Code, Err: err}
	case tgErr.Code >= 500:
		return &Error{Class: ClassServerError, Code: tgErr.Code, Err: err}
	default:
		return &Error{Class: ClassBadRequest, Code: tgErr.Code, Err: err}
	}
}
