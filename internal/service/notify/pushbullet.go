package notify

import (
	"context"

	"github.com/oshokin/drowsiness-monitor/internal/config"
)

// Pushbullet pushes a note to every device of the account behind the token.
type Pushbullet struct {
	transport

	// token is the account access token.
	token string
}

// pushNote is the body of POST /v2/pushes.
type pushNote struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewPushbullet creates a push notifier for the access token.
func NewPushbullet(token string, opts ...Option) *Pushbullet {
	return &Pushbullet{
		transport: newTransport(config.DefaultPushbulletURL, opts),
		token:     token,
	}
}

// Name implements Notifier.
func (p *Pushbullet) Name() string {
	return "pushbullet"
}

// Notify implements Notifier.
func (p *Pushbullet) Notify(ctx context.Context, msg Message) error {
	note := pushNote{
		Type:  "note",
		Title: msg.Title,
		Body:  msg.Body,
	}

	return p.postJSON(ctx, "/v2/pushes", map[string]string{"Access-Token": p.token}, note)
}
