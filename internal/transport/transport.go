// Package transport provides the pluggable send capability the invocation
// engine dispatches requests through. The engine builds a Request skeleton,
// the transport sends it and returns a Response; connection-level failures
// come back as *anomaly.Anomaly values already mapped to the interrupted or
// unavailable categories.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Transport sends a fully-built request and returns the raw response.
// Implementations must honor context cancellation and classify their
// failures as anomalies.
type Transport interface {
	// Send dispatches the request. A non-nil error is always an
	// *anomaly.Anomaly for expected transport failure modes.
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Request is the mutable request skeleton built up through the marshalling,
// endpoint-resolution, and signing stages, then discarded after the attempt.
type Request struct {
	// Method is the HTTP method, upper case.
	Method string

	// Scheme, Host, Port, Path locate the request. Port zero means the
	// scheme default.
	Scheme string
	Host   string
	Port   int
	Path   string

	// Query holds query parameters; repeated keys are allowed.
	Query url.Values

	// Headers holds request headers; repeated keys are allowed.
	Headers http.Header

	// Body is the serialized request body, empty for bodiless requests.
	Body []byte
}

// NewRequest returns an empty request skeleton with initialized maps.
func NewRequest(method string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		Scheme:  "https",
		Path:    "/",
		Query:   url.Values{},
		Headers: http.Header{},
	}
}

// HostPort returns the host with the port appended when it is not the
// scheme default.
func (r *Request) HostPort() string {
	if r.Port == 0 {
		return r.Host
	}
	if (r.Scheme == "https" && r.Port == 443) || (r.Scheme == "http" && r.Port == 80) {
		return r.Host
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// URL assembles the full request URL.
func (r *Request) URL() string {
	u := url.URL{
		Scheme:   r.Scheme,
		Host:     r.HostPort(),
		Path:     r.Path,
		RawQuery: r.Query.Encode(),
	}
	return u.String()
}

// Response is the raw result of one attempt.
type Response struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Headers contains the response headers.
	Headers http.Header

	// Body is the fully-read response body.
	Body []byte
}

// RequestID extracts the service request id from the response headers.
func (r *Response) RequestID() string {
	for _, name := range []string{"X-Amzn-Requestid", "X-Amz-Request-Id", "X-Request-Id"} {
		if id := r.Headers.Get(name); id != "" {
			return id
		}
	}
	return ""
}
