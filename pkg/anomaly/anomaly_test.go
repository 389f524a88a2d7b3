package anomaly

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Category
	}{
		{name: "400 bad request", status: 400, want: CategoryIncorrect},
		{name: "401 unauthorized", status: 401, want: CategoryForbidden},
		{name: "403 forbidden", status: 403, want: CategoryForbidden},
		{name: "404 not found", status: 404, want: CategoryNotFound},
		{name: "405 method not allowed", status: 405, want: CategoryUnsupported},
		{name: "408 request timeout", status: 408, want: CategoryInterrupted},
		{name: "409 conflict", status: 409, want: CategoryConflict},
		{name: "429 throttled", status: 429, want: CategoryBusy},
		{name: "422 other client error", status: 422, want: CategoryIncorrect},
		{name: "500 internal", status: 500, want: CategoryFault},
		{name: "501 not implemented", status: 501, want: CategoryUnsupported},
		{name: "503 unavailable", status: 503, want: CategoryUnavailable},
		{name: "504 gateway timeout", status: 504, want: CategoryUnavailable},
		{name: "599 other server error", status: 599, want: CategoryFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromStatus(tt.status))
		})
	}
}

func TestCategoryRetryable(t *testing.T) {
	assert.True(t, CategoryBusy.Retryable())
	assert.True(t, CategoryInterrupted.Retryable())
	assert.True(t, CategoryUnavailable.Retryable())

	assert.False(t, CategoryIncorrect.Retryable())
	assert.False(t, CategoryForbidden.Retryable())
	assert.False(t, CategoryNotFound.Retryable())
	assert.False(t, CategoryUnsupported.Retryable())
	assert.False(t, CategoryConflict.Retryable())
	assert.False(t, CategoryFault.Retryable())
}

func TestCategoryForError_ThrottlingCodes(t *testing.T) {
	// Throttling codes are busy even when reported with a 400 status.
	assert.Equal(t, CategoryBusy, CategoryForError(400, "Throttling"))
	assert.Equal(t, CategoryBusy, CategoryForError(400, "ThrottlingException"))
	assert.Equal(t, CategoryBusy, CategoryForError(503, "SlowDown"))

	// Non-throttling codes fall back to the status table.
	assert.Equal(t, CategoryIncorrect, CategoryForError(400, "ValidationError"))
	assert.Equal(t, CategoryNotFound, CategoryForError(404, "NoSuchBucket"))
}

func TestAnomalyError(t *testing.T) {
	a := &Anomaly{
		Category:   CategoryNotFound,
		HTTPStatus: 404,
		ErrorCode:  "NoSuchBucket",
		Message:    "The specified bucket does not exist",
	}
	assert.Contains(t, a.Error(), "not-found")
	assert.Contains(t, a.Error(), "404")
	assert.Contains(t, a.Error(), "NoSuchBucket")

	local := New(CategoryIncorrect, "missing required parameter")
	assert.Equal(t, "incorrect anomaly: missing required parameter", local.Error())
}

func TestAnomalyUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	a := Wrap(CategoryUnavailable, "connect failed", cause)

	require.ErrorIs(t, a, cause)
	assert.True(t, a.Retryable())
}

func TestAnomalyMap(t *testing.T) {
	a := &Anomaly{
		Category:   CategoryBusy,
		HTTPStatus: 429,
		ErrorCode:  "ThrottlingException",
		Message:    "Rate exceeded",
		RequestID:  "req-123",
		Fields:     map[string]any{"Type": "Sender"},
	}

	m := a.Map()
	assert.Equal(t, "busy", m["Category"])
	assert.Equal(t, 429, m["HTTPStatus"])
	assert.Equal(t, "ThrottlingException", m["ErrorCode"])
	assert.Equal(t, "Rate exceeded", m["Message"])
	assert.Equal(t, "req-123", m["RequestID"])
	assert.Equal(t, "Sender", m["Type"])
}
