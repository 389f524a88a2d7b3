// Copyright 2025 Green Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package awsapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/green-labs/aws-api/internal/endpoints"
	"github.com/green-labs/aws-api/internal/log"
	"github.com/green-labs/aws-api/internal/sigv4"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

// Diagnostics reports out-of-band detail about a finished invocation.
type Diagnostics struct {
	// InvocationID is a client-generated id correlating the log lines and
	// attempts of one invocation. Not sent to the service.
	InvocationID string

	// Attempts is the number of attempts made, successful one included.
	Attempts int

	// HTTPStatus is the status of the last response, zero when no response
	// arrived.
	HTTPStatus int

	// RequestID is the service-assigned id of the last response.
	RequestID string

	// Endpoint is the resolved "scheme://host:port" the attempts targeted.
	Endpoint string
}

// Invoke runs one operation to completion: marshal, resolve, sign, send,
// unmarshal, with retries per the client's policy. The result map mirrors
// the operation's output shape. Failures surface as *anomaly.Anomaly;
// local marshalling and validation failures as their own error types, and
// those never touch the network.
func (c *Client) Invoke(ctx context.Context, opName string, params map[string]any) (map[string]any, error) {
	result, _, err := c.InvokeWithDiagnostics(ctx, opName, params)
	return result, err
}

// InvokeWithDiagnostics is Invoke plus attempt metadata for callers that
// log or assert on retry behavior.
func (c *Client) InvokeWithDiagnostics(ctx context.Context, opName string, params map[string]any) (map[string]any, *Diagnostics, error) {
	diag := &Diagnostics{InvocationID: uuid.NewString()}

	op, ok := c.desc.Operation(opName)
	if !ok {
		return nil, diag, &anomaly.Anomaly{
			Category: anomaly.CategoryUnsupported,
			Message:  fmt.Sprintf("service %s has no operation %q", c.serviceName(), opName),
		}
	}
	if params == nil {
		params = map[string]any{}
	}
	if c.validate && op.Input != nil {
		if err := api.Validate(c.reg, op.Input, params); err != nil {
			return nil, diag, err
		}
	}

	logger := log.WithOperation(c.logger, opName).With("invocation_id", diag.InvocationID)
	ctx, span := startInvokeSpan(ctx, c.serviceName(), c.region, opName)

	result, err := c.invokeAttempts(ctx, logger, op, params, diag)
	endInvokeSpan(span, err)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		var a *anomaly.Anomaly
		if errors.As(err, &a) {
			anomaliesTotal.WithLabelValues(c.serviceName(), opName, string(a.Category)).Inc()
		}
	}
	invocationsTotal.WithLabelValues(c.serviceName(), opName, outcome).Inc()
	return result, diag, err
}

func (c *Client) invokeAttempts(ctx context.Context, logger *slog.Logger, op *api.OperationSpec, params map[string]any, diag *Diagnostics) (map[string]any, error) {
	var last *anomaly.Anomaly

	for attempt := 1; ; attempt++ {
		diag.Attempts = attempt

		result, a, err := c.attempt(ctx, logger, op, params, diag, attempt)
		if err != nil {
			// Local failure: bad parameters or configuration, not a wire
			// condition. Never retried.
			return nil, err
		}
		recordAttempt(trace.SpanFromContext(ctx), attempt, diag.HTTPStatus)
		if a == nil {
			logger.Debug("invocation succeeded",
				log.AttemptKey, attempt,
				log.RequestIDKey, diag.RequestID,
			)
			return result, nil
		}
		last = a

		if !c.retryable(a) {
			break
		}
		delay, more := c.backoff(attempt)
		if !more {
			break
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
			last = anomaly.Wrap(anomaly.CategoryInterrupted,
				"deadline would expire before next attempt", last)
			break
		}

		logger.Warn("retrying after anomaly",
			log.AttemptKey, attempt,
			log.CategoryKey, string(a.Category),
			"delay", delay.String(),
		)
		retriesTotal.WithLabelValues(c.serviceName(), op.Name).Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, anomaly.Wrap(anomaly.CategoryInterrupted, "invocation cancelled", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, last
}

// attempt runs one full pass of the state machine. The three return values
// are disjoint: a result, a wire anomaly the retry policy may act on, or a
// local error that never retries.
func (c *Client) attempt(ctx context.Context, logger *slog.Logger, op *api.OperationSpec, params map[string]any, diag *Diagnostics, attemptNo int) (map[string]any, *anomaly.Anomaly, error) {
	// Fresh skeleton per attempt; a retried request never reuses signed
	// headers from the previous one.
	req, err := c.codec.Marshal(op, c.reg, params)
	if err != nil {
		return nil, nil, err
	}

	ep, err := endpoints.Resolve(c.desc.EndpointPrefix, c.region, c.endpointOpts)
	if err != nil {
		return nil, nil, err
	}
	if op.HostPrefix != "" {
		prefix, err := c.expandHostPrefix(op, params)
		if err != nil {
			return nil, nil, err
		}
		if ep, err = endpoints.ApplyHostPrefix(ep, prefix); err != nil {
			return nil, nil, err
		}
	}
	req.Scheme = ep.Scheme
	req.Host = ep.Host
	req.Port = ep.Port
	diag.Endpoint = fmt.Sprintf("%s://%s", ep.Scheme, req.HostPort())

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, anomaly.Wrap(anomaly.CategoryInterrupted, "rate limit wait cancelled", err), nil
		}
	}

	if op.AuthType != "none" {
		// Credentials are fetched per attempt so rotation between retries
		// takes effect.
		creds, err := c.creds.Retrieve(ctx)
		if err != nil {
			return nil, anomaly.Wrap(anomaly.CategoryForbidden, "retrieving credentials", err), nil
		}
		if err := sigv4.Sign(req, creds, ep.SigningRegion, c.desc.SigningServiceName(), time.Now()); err != nil {
			return nil, nil, err
		}
		log.Trace(logger, "request signed",
			log.Int(log.AttemptKey, attemptNo),
			log.String("access_key_id", log.SanitizeAccessKeyID(creds.AccessKeyID)),
			log.String("endpoint", diag.Endpoint),
		)
	}

	start := time.Now()
	resp, err := c.transport.Send(ctx, req)
	attemptDuration.WithLabelValues(c.serviceName(), op.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		var a *anomaly.Anomaly
		if errors.As(err, &a) {
			return nil, a, nil
		}
		return nil, anomaly.Wrap(anomaly.CategoryFault, "transport failure", err), nil
	}

	diag.HTTPStatus = resp.StatusCode
	if id := resp.RequestID(); id != "" {
		diag.RequestID = id
	}

	result, a := c.codec.Unmarshal(op, c.reg, resp)
	if a != nil {
		if a.RequestID == "" {
			a.RequestID = resp.RequestID()
		}
		return nil, a, nil
	}
	return result, nil, nil
}

// expandHostPrefix substitutes host-label members into the operation's
// host prefix template.
func (c *Client) expandHostPrefix(op *api.OperationSpec, params map[string]any) (string, error) {
	prefix := op.HostPrefix
	if op.Input == nil || !strings.Contains(prefix, "{") {
		return prefix, nil
	}
	shape, err := c.reg.Resolve(op.Input)
	if err != nil {
		return "", err
	}
	for name, ref := range shape.Members {
		if !ref.HostLabel {
			continue
		}
		value, ok := params[name].(string)
		if !ok || value == "" {
			return "", &api.MarshalError{
				Operation: op.Name, Member: name,
				Reason: "host label member must be a non-empty string",
			}
		}
		prefix = strings.ReplaceAll(prefix, "{"+name+"}", value)
	}
	return prefix, nil
}
