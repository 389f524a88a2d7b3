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

// Package credentials supplies signing credentials to the invocation
// engine. Providers are consulted freshly on every attempt so that rotated
// credentials take effect without restarting the client; CachedProvider
// keeps that cheap.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Value is one set of signing credentials. SessionToken is empty for
// long-lived credentials.
type Value struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Expiration is the zero time for credentials that never expire.
	Expiration time.Time
}

// Valid reports whether the value carries usable key material.
func (v Value) Valid() bool {
	return v.AccessKeyID != "" && v.SecretAccessKey != ""
}

// Expired reports whether the value has passed its expiration.
func (v Value) Expired(now time.Time) bool {
	return !v.Expiration.IsZero() && !now.Before(v.Expiration)
}

// Provider yields credentials on demand.
type Provider interface {
	Retrieve(ctx context.Context) (Value, error)
}

// ErrNoCredentials is returned when a provider has nothing to offer.
var ErrNoCredentials = errors.New("credentials: no credentials available")

// StaticProvider returns a fixed value, for tests and explicitly configured
// clients.
type StaticProvider struct {
	Value Value
}

func (p *StaticProvider) Retrieve(ctx context.Context) (Value, error) {
	if !p.Value.Valid() {
		return Value{}, ErrNoCredentials
	}
	return p.Value, nil
}

// EnvProvider reads the conventional environment variables.
type EnvProvider struct{}

func (p *EnvProvider) Retrieve(ctx context.Context) (Value, error) {
	v := Value{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}
	if !v.Valid() {
		return Value{}, fmt.Errorf("%w: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY not set", ErrNoCredentials)
	}
	return v, nil
}

// expiryWindow refreshes credentials this long before they actually expire,
// so in-flight requests never sign with a value about to lapse.
const expiryWindow = 5 * time.Minute

// CachedProvider wraps another provider, serving a cached value until it
// nears expiration. Concurrent refreshes collapse into a single upstream
// call.
type CachedProvider struct {
	Upstream Provider

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time

	mu     sync.RWMutex
	cached Value
	group  singleflight.Group
}

func NewCachedProvider(upstream Provider) *CachedProvider {
	return &CachedProvider{Upstream: upstream, Now: time.Now}
}

func (p *CachedProvider) Retrieve(ctx context.Context) (Value, error) {
	now := p.now()

	p.mu.RLock()
	cached := p.cached
	p.mu.RUnlock()
	if cached.Valid() && !cached.Expired(now.Add(expiryWindow)) {
		return cached, nil
	}

	fresh, err, _ := p.group.Do("refresh", func() (any, error) {
		v, err := p.Upstream.Retrieve(ctx)
		if err != nil {
			return Value{}, err
		}
		p.mu.Lock()
		p.cached = v
		p.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return Value{}, err
	}
	return fresh.(Value), nil
}

// Invalidate drops the cached value so the next Retrieve refreshes.
func (p *CachedProvider) Invalidate() {
	p.mu.Lock()
	p.cached = Value{}
	p.mu.Unlock()
}

func (p *CachedProvider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
