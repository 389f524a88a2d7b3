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

// Package retry holds the retry decision and backoff schedule applied
// between invocation attempts. Both halves are plain functions so clients
// can substitute their own.
package retry

import (
	"time"

	"github.com/green-labs/aws-api/pkg/anomaly"
)

// RetryableFunc decides whether a failed attempt is worth repeating.
type RetryableFunc func(a *anomaly.Anomaly) bool

// BackoffFunc returns the delay before the given attempt (1-based count of
// completed attempts) and whether another attempt is allowed at all.
type BackoffFunc func(attempt int) (time.Duration, bool)

// Default schedule bounds.
const (
	DefaultBaseDelay  = 100 * time.Millisecond
	DefaultMaxBackoff = 20 * time.Second
	DefaultMaxRetries = 3
)

// DefaultRetryable retries the transient anomaly categories only: busy,
// interrupted, and unavailable.
func DefaultRetryable(a *anomaly.Anomaly) bool {
	return a != nil && a.Retryable()
}

// ExponentialBackoff builds the default schedule: base doubled per
// completed attempt, capped at maxBackoff, refusing once maxRetries
// retries have been spent.
func ExponentialBackoff(base, maxBackoff time.Duration, maxRetries int) BackoffFunc {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}
	return func(attempt int) (time.Duration, bool) {
		if attempt < 1 || attempt > maxRetries {
			return 0, false
		}
		delay := base << (attempt - 1)
		// Guard the shift overflowing before the cap applies.
		if delay <= 0 || delay > maxBackoff {
			delay = maxBackoff
		}
		return delay, true
	}
}

// DefaultBackoff is ExponentialBackoff with the default bounds.
func DefaultBackoff() BackoffFunc {
	return ExponentialBackoff(DefaultBaseDelay, DefaultMaxBackoff, DefaultMaxRetries)
}
