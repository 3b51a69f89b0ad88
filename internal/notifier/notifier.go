// Package notifier abstracts the chat transport the scheduler delivers
// through. The core only sees the Notifier interface and the error taxonomy;
// telegram.go adapts the Bot API onto both.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Target identifies the chat a message goes to.
type Target struct {
	ChatID int64
	Kind   string // private, group, channel
}

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of inline buttons. Nil means no keyboard.
type Keyboard [][]Button

// Attachment is a file to deliver alongside a reminder.
type Attachment struct {
	FileID  string
	Caption string
}

type Notifier interface {
	SendMessage(ctx context.Context, target Target, text string, keyboard Keyboard) (int, error)
	EditMessage(ctx context.Context, target Target, messageID int, text string, keyboard Keyboard) error
	SendAttachment(ctx context.Context, target Target, att Attachment) (int, error)
}

// ErrorClass is the machine-readable failure classification.
type ErrorClass string

const (
	ClassRateLimit   ErrorClass = "rate_limit"
	ClassBadRequest  ErrorClass = "bad_request"
	ClassForbidden   ErrorClass = "forbidden"
	ClassServerError ErrorClass = "server_error"
	ClassNetwork     ErrorClass = "network"
	ClassNotModified ErrorClass = "not_modified"
)

// Error is a classified transport failure.
type Error struct {
	Class      ErrorClass
	Code       int
	RetryAfter time.Duration // set for rate-limit errors
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notifier: %s (code %d): %v", e.Class, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *Error) Transient() bool {
	switch e.Class {
	case ClassRateLimit, ClassServerError, ClassNetwork:
		return true
	}
	return false
}

// IsTransient classifies an arbitrary delivery error. Unclassified errors
// (timeouts, broken connections) count as transient.
func IsTransient(err error) bool {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Transient()
	}
	return true
}

// IsNotModified reports the benign edit conflict where the new content equals
// what the chat already shows.
func IsNotModified(err error) bool {
	var nerr *Error
	return errors.As(err, &nerr) && nerr.Class == ClassNotModified
}

// RetryAfter extracts the server-requested backoff from a rate-limit error,
// or zero.
func RetryAfter(err error) time.Duration {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.RetryAfter
	}
	return 0
}
