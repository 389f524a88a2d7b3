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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/green-labs/aws-api/internal/credentials"
	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/retry"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/api"
)

// Config assembles a Client. API, Region, and Credentials are required;
// everything else has a working default.
type Config struct {
	// API is the loaded service descriptor driving every operation.
	API *api.ServiceDescriptor

	// Region is the signing and endpoint region.
	Region string

	// Credentials supplies signing credentials; consulted freshly on every
	// attempt. Wrap slow providers in credentials.NewCachedProvider.
	Credentials credentials.Provider

	// EndpointOverride pins the endpoint: a URL ("http://localhost:4566")
	// or bare "host[:port]". Overrides region-based resolution entirely.
	EndpointOverride string

	// FIPS and DualStack select hostname variants when resolving.
	FIPS      bool
	DualStack bool

	// Retryable decides which anomalies to retry. Default: the transient
	// categories (busy, interrupted, unavailable).
	Retryable retry.RetryableFunc

	// Backoff schedules delays between attempts. Default: exponential with
	// MaxRetries retries.
	Backoff retry.BackoffFunc

	// MaxRetries bounds the default backoff schedule. Ignored when Backoff
	// is set. Default: retry.DefaultMaxRetries.
	MaxRetries int

	// BaseDelay and MaxBackoff tune the default schedule. Ignored when
	// Backoff is set.
	BaseDelay  time.Duration
	MaxBackoff time.Duration

	// ValidateRequests walks parameter maps against the input shape before
	// marshalling, rejecting unknown members, missing required members, and
	// type mismatches locally.
	ValidateRequests bool

	// Transport sends signed requests. Default: a pooled HTTP transport.
	Transport transport.Transport

	// HTTP tunes the default transport; ignored when Transport is set.
	HTTP *transport.HTTPConfig

	// RateLimit throttles attempts client-side when set.
	RateLimit *rate.Limiter

	// Logger receives structured invocation logs. Default: a logger built
	// from the environment.
	Logger *slog.Logger

	// ErrorDetector overrides the codec's detection of 2xx responses that
	// carry the protocol's error envelope.
	ErrorDetector protocol.ErrorDetector
}

// Validate reports configuration the client cannot start from.
func (c *Config) Validate() error {
	if c.API == nil {
		return errors.New("config: API descriptor is required")
	}
	if c.Region == "" && c.EndpointOverride == "" {
		return errors.New("config: Region or EndpointOverride is required")
	}
	if c.Credentials == nil {
		return errors.New("config: Credentials provider is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MaxRetries must be >= 0, got %d", c.MaxRetries)
	}
	return nil
}
