// Package httpclient builds the shared HTTP client used for Twitch and
// YouTube calls. Every request carries the transport timeout, is counted in
// the API metrics, and transport failures are reported as model.ErrNetwork.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/metrics"
	"github.com/Guliveer/obs-channel-stats/internal/model"
)

// NetworkError is returned by the transport when a request produced no
// HTTP response at all (DNS, connect, TLS, timeout, reset).
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, model.ErrNetwork) match.
func (e *NetworkError) Is(target error) bool { return target == model.ErrNetwork }

// New returns an *http.Client whose transport bounds every request by
// timeout and is instrumented for logging and metrics.
// The timeout is enforced by the transport, not http.Client.Timeout, so that
// timeouts still unwrap to model.ErrNetwork.
func New(timeout time.Duration, log *logger.Logger) *http.Client {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{Transport: NewTransport(base, timeout, log)}
}

// NewTransport wraps next with a per-request timeout, logging, metrics, and
// error classification. A zero timeout disables the deadline.
func NewTransport(next http.RoundTripper, timeout time.Duration, log *logger.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &instrumentedTransport{next: next, timeout: timeout, log: log}
}

type instrumentedTransport struct {
	next    http.RoundTripper
	timeout time.Duration
	log     *logger.Logger
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint := Endpoint(req.URL)
	start := time.Now()

	cancel := context.CancelFunc(func() {})
	if t.timeout > 0 {
		var ctx context.Context
		ctx, cancel = context.WithTimeout(req.Context(), t.timeout)
		req = req.WithContext(ctx)
	}

	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start)
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())

	if err != nil {
		cancel()
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		t.log.DebugContext(req.Context(), "API request failed",
			"method", req.Method,
			"endpoint", endpoint,
			"duration", elapsed.String(),
			"error", err)
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}

	metrics.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	t.log.DebugContext(req.Context(), "API request",
		"method", req.Method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", elapsed.String())

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the per-request timeout once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Endpoint returns host+path of u. Query strings are dropped so API keys
// and client secrets never reach logs or metric labels.
func Endpoint(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Host + u.Path
}

// WithAPIKey returns a copy of c that appends key=<apiKey> to every request.
func WithAPIKey(c *http.Client, apiKey string) *http.Client {
	return &http.Client{
		Timeout:   c.Timeout,
		Transport: &apiKeyTransport{key: apiKey, next: c.Transport},
	}
}

type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()

	return next.RoundTrip(r)
}
