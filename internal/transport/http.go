package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/green-labs/aws-api/pkg/anomaly"
)

// HTTPConfig configures the default HTTP transport.
type HTTPConfig struct {
	// Timeout is the per-attempt request timeout (default: 30s).
	Timeout time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost tune the connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// TLSInsecure disables certificate validation. Only for tests.
	TLSInsecure bool
}

// Validate checks if the configuration is valid.
func (c *HTTPConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %v", c.Timeout)
	}
	return nil
}

// DefaultHTTPConfig returns the default transport configuration.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}
}

// HTTPTransport implements Transport over a pooled net/http client. A single
// transport is shared by all invocations of a client and is safe for
// concurrent use; Close releases idle connections at client shutdown.
type HTTPTransport struct {
	config *HTTPConfig
	client *http.Client
}

// NewHTTPTransport creates the default transport.
func NewHTTPTransport(config *HTTPConfig) (*HTTPTransport, error) {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        config.MaxIdleConns,
			MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
			IdleConnTimeout:     90 * time.Second,

			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 1 * time.Second,

			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: config.TLSInsecure,
			},
		},
	}

	return &HTTPTransport{config: config, client: client}, nil
}

// Send dispatches a single request and reads the full response body.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL(), bodyReader)
	if err != nil {
		return nil, anomaly.Wrap(anomaly.CategoryIncorrect,
			fmt.Sprintf("failed to build HTTP request: %s", err.Error()), err)
	}

	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	// The signed Host header must survive into the outgoing request.
	if host := req.Headers.Get("Host"); host != "" {
		httpReq.Host = host
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, Classify(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, anomaly.Wrap(anomaly.CategoryInterrupted, "response body read interrupted", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

// Close releases pooled connections.
func (t *HTTPTransport) Close() {
	t.client.CloseIdleConnections()
}

// Classify maps a connection-level error to an anomaly before it reaches
// the retry policy. Timeouts, connect failures, and DNS errors are
// unavailable; resets and cancellations mid-flight are interrupted.
func Classify(err error) *anomaly.Anomaly {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return anomaly.Wrap(anomaly.CategoryInterrupted, "request cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return anomaly.Wrap(anomaly.CategoryUnavailable, "request timeout", err)
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"connection reset", "broken pipe", "eof"} {
		if strings.Contains(msg, keyword) {
			return anomaly.Wrap(anomaly.CategoryInterrupted, "connection interrupted", err)
		}
	}
	for _, keyword := range []string{"connection refused", "no such host", "network unreachable", "name resolution"} {
		if strings.Contains(msg, keyword) {
			return anomaly.Wrap(anomaly.CategoryUnavailable, "connection error", err)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return Classify(urlErr.Err)
	}

	return anomaly.Wrap(anomaly.CategoryUnavailable, fmt.Sprintf("HTTP error: %s", err.Error()), err)
}
