package notify

import (
	"context"
	"net/url"

	"github.com/oshokin/drowsiness-monitor/internal/config"
)

// Telegram sends Markdown messages to one chat through a bot.
type Telegram struct {
	transport

	// token is the bot token.
	token string
	// chatID is the chat that receives the messages.
	chatID string
}

// sendMessage is the body of POST /bot<token>/sendMessage.
type sendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NewTelegram creates a messaging notifier for the bot token and chat.
func NewTelegram(token, chatID string, opts ...Option) *Telegram {
	return &Telegram{
		transport: newTransport(config.DefaultTelegramURL, opts),
		token:     token,
		chatID:    chatID,
	}
}

// Name implements Notifier.
func (t *Telegram) Name() string {
	return "telegram"
}

// Notify implements Notifier. The chat has no title line, so only the body is sent.
func (t *Telegram) Notify(ctx context.Context, msg Message) error {
	payload := sendMessage{
		ChatID:    t.chatID,
		Text:      msg.Body,
		ParseMode: "Markdown",
	}

	return t.postJSON(ctx, "/bot"+url.PathEscape(t.token)+"/sendMessage", nil, payload)
}
