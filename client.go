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
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/time/rate"

	"github.com/green-labs/aws-api/internal/credentials"
	"github.com/green-labs/aws-api/internal/endpoints"
	"github.com/green-labs/aws-api/internal/log"
	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/retry"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/api"

	// Codec registration.
	_ "github.com/green-labs/aws-api/internal/protocol/jsonrpc"
	_ "github.com/green-labs/aws-api/internal/protocol/query"
	_ "github.com/green-labs/aws-api/internal/protocol/restjson"
	_ "github.com/green-labs/aws-api/internal/protocol/restxml"
)

// Client invokes the operations of one service. It is immutable after New
// and safe for concurrent use.
type Client struct {
	desc  *api.ServiceDescriptor
	reg   *api.Registry
	codec protocol.Codec

	region       string
	creds        credentials.Provider
	endpointOpts endpoints.Options

	transport     transport.Transport
	ownsTransport bool

	retryable retry.RetryableFunc
	backoff   retry.BackoffFunc
	validate  bool
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New builds a client from the configuration. The descriptor's protocol
// selects the codec; unset options fall back to defaults documented on
// Config.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := protocol.New(cfg.API, protocol.Options{ErrorDetector: cfg.ErrorDetector})
	if err != nil {
		return nil, err
	}

	c := &Client{
		desc:  cfg.API,
		reg:   api.NewRegistry(cfg.API.Shapes),
		codec: codec,

		region: cfg.Region,
		creds:  cfg.Credentials,
		endpointOpts: endpoints.Options{
			Override:  cfg.EndpointOverride,
			FIPS:      cfg.FIPS,
			DualStack: cfg.DualStack,
		},

		retryable: cfg.Retryable,
		backoff:   cfg.Backoff,
		validate:  cfg.ValidateRequests,
		limiter:   cfg.RateLimit,
		logger:    cfg.Logger,
	}

	if c.retryable == nil {
		c.retryable = retry.DefaultRetryable
	}
	if c.backoff == nil {
		maxRetries := cfg.MaxRetries
		if maxRetries == 0 {
			maxRetries = retry.DefaultMaxRetries
		}
		c.backoff = retry.ExponentialBackoff(cfg.BaseDelay, cfg.MaxBackoff, maxRetries)
	}
	if c.logger == nil {
		c.logger = log.New(log.FromEnv())
	}
	c.logger = log.WithService(
		log.WithComponent(c.logger, "awsapi"),
		c.serviceName(), c.region,
	)

	if cfg.Transport != nil {
		c.transport = cfg.Transport
	} else {
		ht, err := transport.NewHTTPTransport(cfg.HTTP)
		if err != nil {
			return nil, fmt.Errorf("building transport: %w", err)
		}
		c.transport = ht
		c.ownsTransport = true
	}
	return c, nil
}

// Service returns the descriptor's service identifier.
func (c *Client) Service() string {
	return c.serviceName()
}

func (c *Client) serviceName() string {
	if c.desc.ServiceID != "" {
		return c.desc.ServiceID
	}
	return c.desc.EndpointPrefix
}

// Ops returns the operation names the descriptor exposes, sorted, for
// discovery.
func (c *Client) Ops() []string {
	names := make([]string, 0, len(c.desc.Operations))
	for name := range c.desc.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases the transport when the client owns it.
func (c *Client) Close() {
	if c.ownsTransport {
		if closer, ok := c.transport.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
