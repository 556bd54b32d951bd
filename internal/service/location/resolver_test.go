package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newServer serves a fixed answer.
func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

// TestResolve_Success converts coordinates into a map link.
func TestResolve_Success(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusOK, `{"status":"success","lat":55.7558,"lon":37.6173,"city":"Moscow"}`)
	r := NewIPResolver(server.URL, time.Second, server.Client())

	require.Equal(t, "https://maps.google.com/?q=55.7558,37.6173", r.Resolve(context.Background()))
}

// TestResolve_Failures returns the sentinel for every failure mode.
func TestResolve_Failures(t *testing.T) {
	t.Parallel()

	cases := map[string]*httptest.Server{
		"fail status":  newServer(t, http.StatusOK, `{"status":"fail","message":"private range"}`),
		"http error":   newServer(t, http.StatusServiceUnavailable, `busy`),
		"broken json":  newServer(t, http.StatusOK, `{"status":`),
		"empty answer": newServer(t, http.StatusOK, ``),
	}

	for name, server := range cases {
		r := NewIPResolver(server.URL, time.Second, nil)
		require.Equal(t, Unknown, r.Resolve(context.Background()), name)
	}

	// Unreachable endpoint.
	r := NewIPResolver("http://127.0.0.1:1/json/", time.Second, nil)
	require.Equal(t, Unknown, r.Resolve(context.Background()))
}

// TestResolve_Timeout gives up on a hanging service after the configured timeout.
func TestResolve_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))

	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	r := NewIPResolver(server.URL, 50*time.Millisecond, nil)

	start := time.Now()
	require.Equal(t, Unknown, r.Resolve(context.Background()))
	require.Less(t, time.Since(start), 2*time.Second)
}

// TestMapLink formats negative and integral coordinates.
func TestMapLink(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://maps.google.com/?q=-33.8688,151", MapLink(-33.8688, 151))
}
