package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

// Unknown is returned whenever the location cannot be determined.
const Unknown = "Unknown location"

// Resolver returns a best-effort location string.
type Resolver interface {
	// Resolve returns a map link or Unknown. It must honor ctx and never block past it.
	Resolve(ctx context.Context) string
}

var (
	// errBadStatus is returned for non-200 answers.
	errBadStatus = errors.New("unexpected http status")
	// errLookupFailed is returned when the service reports a failed lookup.
	errLookupFailed = errors.New("lookup failed")
)

// maxResponseSize caps the geolocation response body.
const maxResponseSize = 64 << 10

// IPResolver queries a geolocation-by-IP service (ip-api.com compatible).
type IPResolver struct {
	// url is the lookup endpoint.
	url string
	// timeout bounds one lookup.
	timeout time.Duration
	// client performs the request.
	client *http.Client
}

// lookupResponse is the subset of the ip-api.com answer the resolver needs.
type lookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// NewIPResolver creates a resolver for url with a bounded lookup time.
func NewIPResolver(url string, timeout time.Duration, client *http.Client) *IPResolver {
	if client == nil {
		client = http.DefaultClient
	}

	return &IPResolver{
		url:     url,
		timeout: timeout,
		client:  client,
	}
}

// Resolve implements Resolver.
func (r *IPResolver) Resolve(ctx context.Context) string {
	link, err := r.lookup(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Location lookup failed", "url", r.url, "error", err)

		return Unknown
	}

	return link
}

// lookup performs the request and converts a successful answer into a map link.
func (r *IPResolver) lookup(ctx context.Context) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	response, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w", response.Status, errBadStatus)
	}

	var answer lookupResponse
	if err = json.NewDecoder(io.LimitReader(response.Body, maxResponseSize)).Decode(&answer); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if answer.Status != "success" {
		return "", fmt.Errorf("%w: status %q, message %q", errLookupFailed, answer.Status, answer.Message)
	}

	return MapLink(answer.Lat, answer.Lon), nil
}

// MapLink renders coordinates as a Google Maps link.
func MapLink(lat, lon float64) string {
	return "https://maps.google.com/?q=" +
		strconv.FormatFloat(lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(lon, 'f', -1, 64)
}
