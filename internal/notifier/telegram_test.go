package notifier

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		wantClass     ErrorClass
		wantTransient bool
	}{
		{
			name:          "rate limit",
			err:           &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 7", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}},
			wantClass:     ClassRateLimit,
			wantTransient: true,
		},
		{
			name:          "blocked by user",
			err:           &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"},
			wantClass:     ClassForbidden,
			wantTransient: false,
		},
		{
			name:          "not modified",
			err:           &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"},
			wantClass:     ClassNotModified,
			wantTransient: false,
		},
		{
			name:          "bad request",
			err:           &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"},
			wantClass:     ClassBadRequest,
			wantTransient: false,
		},
		{
			name:          "server error",
			err:           &tgbotapi.Error{Code: 502, Message: "Bad Gateway"},
			wantClass:     ClassServerError,
			wantTransient: true,
		},
		{
			name:          "plain network error",
			err:           errors.New("dial tcp: i/o timeout"),
			wantClass:     ClassNetwork,
			wantTransient: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			assert.Equal(t, tc.wantClass, got.Class)
			assert.Equal(t, tc.wantTransient, got.Transient())
		})
	}
}

func TestRetryAfter(t *testing.T) {
	err := classify(&tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}})
	assert.Equal(t, 3*time.Second, RetryAfter(err))

	assert.Zero(t, RetryAfter(errors.New("nope")))
}

func TestIsNotModified(t *testing.T) {
	err := classify(&tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"})
	assert.True(t, IsNotModified(err))
	assert.False(t, IsNotModified(errors.New("other")))
}
