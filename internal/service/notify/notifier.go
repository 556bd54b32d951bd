package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier delivers one message to a remote channel.
type Notifier interface {
	// Notify sends msg and returns once the remote side accepted or rejected it.
	Notify(ctx context.Context, msg Message) error
	// Name identifies the channel in logs.
	Name() string
}

// Message is a notification title and body.
type Message struct {
	// Title is shown as the notification heading where the channel supports one.
	Title string
	// Body is the notification text.
	Body string
}

// ErrBadStatus is returned when the remote API answers with a non-2xx status.
var ErrBadStatus = errors.New("unexpected http status")

// maxErrorBody limits how much of an error response is kept for the log.
const maxErrorBody = 512

// Option configures a notifier.
type Option func(*transport)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(t *transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithBaseURL points the notifier at another API root (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(t *transport) {
		if baseURL != "" {
			t.baseURL = baseURL
		}
	}
}

// WithTimeout bounds each request; zero keeps the caller's deadline only.
func WithTimeout(timeout time.Duration) Option {
	return func(t *transport) {
		t.timeout = timeout
	}
}

// transport is the JSON-over-HTTP plumbing shared by the notifiers.
type transport struct {
	// client performs the requests.
	client *http.Client
	// baseURL is the API root without a trailing slash.
	baseURL string
	// timeout bounds a single request when positive.
	timeout time.Duration
}

// newTransport applies opts on top of the given API root.
func newTransport(baseURL string, opts []Option) transport {
	t := transport{
		client:  http.DefaultClient,
		baseURL: baseURL,
	}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

// postJSON sends payload to endpoint and checks the status code.
func (t *transport) postJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	response, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		details, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody)) //nolint:errcheck // Best effort details.

		return fmt.Errorf("%s: %w: %s", response.Status, ErrBadStatus, bytes.TrimSpace(details))
	}

	_, _ = io.Copy(io.Discard, response.Body) //nolint:errcheck // Drain for connection reuse.

	return nil
}
