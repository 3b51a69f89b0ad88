package delivery

import (
	"fmt"
	"time"

	"github.com/hamdan-dev/tazkir/internal/i18n"
	"github.com/hamdan-dev/tazkir/internal/models"
	"github.com/hamdan-dev/tazkir/internal/notifier"
	"github.com/hamdan-dev/tazkir/internal/recurrence"
)

const cardTimeLayout = "2006-01-02 15:04"

// Callback data prefixes for the reminder card buttons.
const (
	CallbackDone   = "rm_done"
	CallbackSnooze = "rm_snooze"
)

// Card renders the notification message and keyboard for a due reminder, in
// the user's language, with times shown in the user's timezone.
func Card(r *models.Reminder, u *models.User) (string, notifier.Keyboard) {
	lang := u.Language

	text := i18n.T(lang, "reminder.header") + "\n\n" + r.Title
	if r.Message != "" {
		text += "\n\n" + r.Message
	}
	if r.IsRecurring {
		text += "\n\n" + i18n.T(lang, "reminder.recurring") + ": " + recurrence.Describe(r)
	}

	keyboard := notifier.Keyboard{
		{
			{Text: i18n.T(lang, "reminder.done"), Data: fmt.Sprintf("%s:%s", CallbackDone, r.ID)},
		},
		{
			{Text: i18n.T(lang, "reminder.snooze10"), Data: fmt.Sprintf("%s:%s:600", CallbackSnooze, r.ID)},
			{Text: i18n.T(lang, "reminder.snooze1h"), Data: fmt.Sprintf("%s:%s:3600", CallbackSnooze, r.ID)},
		},
	}
	return text, keyboard
}

// CompletedCard renders the card after the user confirmed the reminder. No
// keyboard: the interaction is finished.
func CompletedCard(r *models.Reminder, u *models.User) (string, notifier.Keyboard) {
	return i18n.T(u.Language, "reminder.completed") + " " + r.Title, nil
}

// SnoozedCard renders the card after a snooze, showing the new fire time.
func SnoozedCard(r *models.Reminder, u *models.User, until time.Time) (string, notifier.Keyboard) {
	when := until.In(u.Location()).Format(cardTimeLayout)
	return r.Title + "\n" + fmt.Sprintf(i18n.T(u.Language, "reminder.snoozed"), when), nil
}
