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

package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/green-labs/aws-api/pkg/anomaly"
)

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		category anomaly.Category
		want     bool
	}{
		{anomaly.CategoryBusy, true},
		{anomaly.CategoryUnavailable, true},
		{anomaly.CategoryInterrupted, true},
		{anomaly.CategoryIncorrect, false},
		{anomaly.CategoryForbidden, false},
		{anomaly.CategoryNotFound, false},
		{anomaly.CategoryUnsupported, false},
		{anomaly.CategoryConflict, false},
		{anomaly.CategoryFault, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			a := anomaly.New(tt.category, "test")
			assert.Equal(t, tt.want, DefaultRetryable(a))
		})
	}

	assert.False(t, DefaultRetryable(nil))
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(100*time.Millisecond, 1*time.Second, 5)

	tests := []struct {
		attempt   int
		wantDelay time.Duration
		wantMore  bool
	}{
		{1, 100 * time.Millisecond, true},
		{2, 200 * time.Millisecond, true},
		{3, 400 * time.Millisecond, true},
		{4, 800 * time.Millisecond, true},
		{5, 1 * time.Second, true}, // capped
		{6, 0, false},
		{0, 0, false},
	}

	for _, tt := range tests {
		delay, more := backoff(tt.attempt)
		assert.Equal(t, tt.wantDelay, delay, "attempt %d", tt.attempt)
		assert.Equal(t, tt.wantMore, more, "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffDefaultsZeroInputs(t *testing.T) {
	backoff := ExponentialBackoff(0, 0, 2)

	delay, more := backoff(1)
	assert.True(t, more)
	assert.Equal(t, DefaultBaseDelay, delay)

	_, more = backoff(3)
	assert.False(t, more)
}

func TestExponentialBackoffShiftOverflow(t *testing.T) {
	backoff := ExponentialBackoff(time.Second, time.Minute, 100)

	delay, more := backoff(80)
	assert.True(t, more)
	assert.Equal(t, time.Minute, delay)
}

func TestDefaultBackoffBounds(t *testing.T) {
	backoff := DefaultBackoff()

	delay, more := backoff(1)
	assert.True(t, more)
	assert.Equal(t, DefaultBaseDelay, delay)

	_, more = backoff(DefaultMaxRetries + 1)
	assert.False(t, more)
}
