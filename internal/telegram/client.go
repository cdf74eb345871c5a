// Package telegram adapts the Bot API to the intake service: it turns
// updates into events and renders replies back into messages.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

// Client sends messages through the Bot API.
type Client struct {
	bot     *gotgbot.Bot
	timeout time.Duration
}

// NewClient authenticates the token against the Bot API.
func NewClient(token string, sendTimeout time.Duration) (*Client, error) {
	bot, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Client{bot: bot, timeout: sendTimeout}, nil
}

// Username returns the bot's own username.
func (c *Client) Username() string {
	return c.bot.Username
}

// SendText sends a plain message without touching the keyboard.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.SendReply(ctx, chatID, domain.Reply{Text: text})
}

// SendReply sends one reply with its keyboard, if any.
func (c *Client) SendReply(ctx context.Context, chatID int64, reply domain.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := &gotgbot.SendMessageOpts{
		ReplyMarkup: replyMarkup(reply),
		RequestOpts: &gotgbot.RequestOpts{Timeout: c.requestTimeout(ctx)},
	}
	if _, err := c.bot.SendMessage(chatID, reply.Text, opts); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) requestTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return c.timeout
	}
	if left := time.Until(deadline); left < c.timeout {
		return left
	}
	return c.timeout
}
