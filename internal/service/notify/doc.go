// Package notify implements the remote notifiers: a Pushbullet push for the
// alarm and a Telegram message for the escalation, plus the message texts.
package notify
