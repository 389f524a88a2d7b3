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

// Package anomaly defines the structured failure values returned by the
// invocation pipeline. Every expected failure mode (transport error, service
// error response, local marshalling failure) is reported as an *Anomaly
// carrying a category, never as a panic. Callers branch on the category; the
// retry policy only ever retries the busy/interrupted/unavailable categories.
package anomaly

import (
	"fmt"
)

// Category classifies a failure for routing and retry decisions.
type Category string

const (
	// CategoryBusy indicates the service is throttling (429, throttling codes).
	CategoryBusy Category = "busy"

	// CategoryUnavailable indicates the service or network cannot be reached
	// (503, connect/DNS failures, timeouts).
	CategoryUnavailable Category = "unavailable"

	// CategoryInterrupted indicates an attempt was cut short mid-flight
	// (connection reset, truncated body, cancelled context).
	CategoryInterrupted Category = "interrupted"

	// CategoryIncorrect indicates the caller sent an invalid request (400,
	// local marshalling failures).
	CategoryIncorrect Category = "incorrect"

	// CategoryForbidden indicates an authentication or authorization failure
	// (401, 403, signature mismatches).
	CategoryForbidden Category = "forbidden"

	// CategoryNotFound indicates the requested resource does not exist (404).
	CategoryNotFound Category = "not-found"

	// CategoryUnsupported indicates the service cannot perform the request
	// (405, 501).
	CategoryUnsupported Category = "unsupported"

	// CategoryConflict indicates the request conflicts with current state (409).
	CategoryConflict Category = "conflict"

	// CategoryFault indicates an unclassified server-side failure (5xx).
	CategoryFault Category = "fault"
)

// Retryable reports whether the category is safe to retry. Only categories
// the pipeline itself assigns from HTTP status or transport failures qualify;
// service-defined error codes never widen this set.
func (c Category) Retryable() bool {
	switch c {
	case CategoryBusy, CategoryInterrupted, CategoryUnavailable:
		return true
	default:
		return false
	}
}

// FromStatus maps an HTTP status code to an anomaly category. The table is
// fixed: client errors are non-retriable, 429 and 503 carry their dedicated
// retriable categories, and everything else server-side is a fault.
func FromStatus(status int) Category {
	switch status {
	case 400:
		return CategoryIncorrect
	case 401, 403:
		return CategoryForbidden
	case 404:
		return CategoryNotFound
	case 405:
		return CategoryUnsupported
	case 408:
		return CategoryInterrupted
	case 409:
		return CategoryConflict
	case 429:
		return CategoryBusy
	case 501:
		return CategoryUnsupported
	case 503, 504:
		return CategoryUnavailable
	}
	if status >= 500 {
		return CategoryFault
	}
	return CategoryIncorrect
}

// Anomaly is a structured failure value. It implements error so that Invoke
// can return it through the ordinary error position while keeping every
// field available for branching without string inspection.
type Anomaly struct {
	// Category classifies the failure; always set.
	Category Category

	// HTTPStatus is the response status code, zero when no status was
	// received (transport failures, local errors).
	HTTPStatus int

	// ErrorCode is the service error code from the decoded error envelope
	// (e.g. "NoSuchBucket", "ThrottlingException"). Empty for local and
	// transport failures.
	ErrorCode string

	// Message is a human-readable description, safe to log.
	Message string

	// RequestID is the service request id when the response carried one.
	RequestID string

	// Fields holds decoded error-shape members and any protocol-specific
	// details extracted from the raw body.
	Fields map[string]any

	// Cause is the underlying error, if any. May contain sensitive detail;
	// use Message for display.
	Cause error
}

// Error implements the error interface.
func (a *Anomaly) Error() string {
	switch {
	case a.ErrorCode != "" && a.HTTPStatus != 0:
		return fmt.Sprintf("%s anomaly (status %d, code %s): %s", a.Category, a.HTTPStatus, a.ErrorCode, a.Message)
	case a.HTTPStatus != 0:
		return fmt.Sprintf("%s anomaly (status %d): %s", a.Category, a.HTTPStatus, a.Message)
	default:
		return fmt.Sprintf("%s anomaly: %s", a.Category, a.Message)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (a *Anomaly) Unwrap() error {
	return a.Cause
}

// Retryable reports whether the retry policy may retry this anomaly.
func (a *Anomaly) Retryable() bool {
	return a.Category.Retryable()
}

// Map renders the anomaly as a plain map. The presence of the Category key
// is the caller-visible signal that an invocation failed.
func (a *Anomaly) Map() map[string]any {
	m := map[string]any{
		"Category": string(a.Category),
	}
	if a.HTTPStatus != 0 {
		m["HTTPStatus"] = a.HTTPStatus
	}
	if a.ErrorCode != "" {
		m["ErrorCode"] = a.ErrorCode
	}
	if a.Message != "" {
		m["Message"] = a.Message
	}
	if a.RequestID != "" {
		m["RequestID"] = a.RequestID
	}
	for k, v := range a.Fields {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return m
}

// New builds an anomaly with just a category and message.
func New(category Category, message string) *Anomaly {
	return &Anomaly{Category: category, Message: message}
}

// Wrap builds an anomaly around an underlying error.
func Wrap(category Category, message string, cause error) *Anomaly {
	return &Anomaly{Category: category, Message: message, Cause: cause}
}

// throttlingCodes are service error codes that signal throttling regardless
// of the HTTP status they arrive with.
var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"TooManyRequestsException":               true,
	"RequestLimitExceeded":                   true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"ProvisionedThroughputExceededException": true,
	"SlowDown":                               true,
}

// CategoryForError refines the status-derived category using the service
// error code. Throttling codes map to busy even when the service reports
// them with a 400-level status.
func CategoryForError(status int, code string) Category {
	if throttlingCodes[code] {
		return CategoryBusy
	}
	return FromStatus(status)
}
