// Package timeparse resolves free-text time expressions ("tomorrow at 9am")
// to absolute instants. The UI layer calls it before the scheduler ever sees
// a reminder; the core only works with resolved timestamps.
package timeparse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Parser resolves natural-language time expressions via an OpenAI-compatible
// endpoint. A nil Parser still works through the literal-format fallback.
type Parser struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Parser {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Parser{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

const systemPrompt = `You resolve a natural-language time expression to an absolute timestamp.

Current time: %s
User timezone: %s

Reply with JSON only: {"time": "<RFC 3339 timestamp>"} for the next future
instant matching the expression, or {"error": "<short reason>"} when the
expression is not a time. The expression may be in Arabic or English.`

type result struct {
	Time  string `json:"time"`
	Error string `json:"error"`
}

// Parse resolves expr to an instant strictly after now. Literal formats are
// tried first so the model is only consulted for genuinely fuzzy input.
func (p *Parser) Parse(ctx context.Context, expr string, loc *time.Location, now time.Time) (time.Time, error) {
	if t, err := ParseLiteral(expr, loc, now); err == nil {
		return t, nil
	}
	if p == nil {
		return time.Time{}, fmt.Errorf("cannot parse time expression %q", expr)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPrompt, now.In(loc).Format(time.RFC3339), loc.String()),
			},
			{Role: openai.ChatMessageRoleUser, Content: expr},
		},
		Temperature: 0,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("time parsing request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return time.Time{}, fmt.Errorf("time parsing returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")

	var res result
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return time.Time{}, fmt.Errorf("unparseable time response %q: %w", content, err)
	}
	if res.Error != "" {
		return time.Time{}, fmt.Errorf("cannot parse time expression %q: %s", expr, res.Error)
	}

	t, err := time.Parse(time.RFC3339, res.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("model returned bad timestamp %q: %w", res.Time, err)
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("resolved time %s is in the past", t.Format(time.RFC3339))
	}
	return t, nil
}

// ParseLiteral handles the explicit formats the bot documents: "15:04"
// (today, or tomorrow when already past) and "2006-01-02 15:04".
func ParseLiteral(expr string, loc *time.Location, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	local := now.In(loc)

	if t, err := time.ParseInLocation("2006-01-02 15:04", expr, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", expr, loc); err == nil {
		resolved := time.Date(local.Year(), local.Month(), local.Day(),
			t.Hour(), t.Minute(), 0, 0, loc)
		if !resolved.After(now) {
			resolved = resolved.AddDate(0, 0, 1)
		}
		return resolved, nil
	}
	return time.Time{}, fmt.Errorf("not a literal time: %q", expr)
}
