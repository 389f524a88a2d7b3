// Package protocol defines the codec contract every wire protocol family
// implements, the registry the invocation engine selects codecs from, and
// the scalar formatting rules shared across protocols.
//
// A codec owns both directions of one protocol family: turning a parameter
// map into a request skeleton, and turning a raw response back into a result
// map or an anomaly. Codec implementations register themselves by protocol
// name from their package init, mirroring database/sql driver registration.
package protocol

import (
	"fmt"
	"sort"
	"sync"

	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

// Codec converts between parameter maps and the wire form of one protocol
// family. Implementations are stateless beyond their descriptor and safe
// for concurrent use.
type Codec interface {
	// Marshal walks the operation's input shape and produces the request
	// skeleton: method, path, query, headers, and body. Endpoint fields
	// (scheme/host/port) are filled in later by the resolver. Local
	// failures return *api.MarshalError.
	Marshal(op *api.OperationSpec, reg *api.Registry, params map[string]any) (*transport.Request, error)

	// Unmarshal decodes a response. Success produces the result map decoded
	// per the output shape; failure (status >= 300, or a 2xx body carrying
	// the protocol's error marker) produces an anomaly with the error code
	// and message preserved.
	Unmarshal(op *api.OperationSpec, reg *api.Registry, resp *transport.Response) (map[string]any, *anomaly.Anomaly)
}

// ErrorDetector reports whether a 2xx response body actually carries the
// protocol's error envelope. Some services return HTTP 200 with an error
// payload; each codec ships a default detector and clients may override it.
type ErrorDetector func(resp *transport.Response) bool

// Options tunes codec construction.
type Options struct {
	// ErrorDetector overrides the codec's 2xx error-marker detection.
	ErrorDetector ErrorDetector
}

// Factory builds a codec for one service descriptor.
type Factory func(desc *api.ServiceDescriptor, opts Options) Codec

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a codec factory available under a protocol name. Intended
// to be called from codec package init functions.
func Register(protocol string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("protocol: Register called with nil factory")
	}
	if _, dup := factories[protocol]; dup {
		panic(fmt.Sprintf("protocol: Register called twice for %q", protocol))
	}
	factories[protocol] = factory
}

// New builds the codec for a descriptor's protocol.
func New(desc *api.ServiceDescriptor, opts Options) (Codec, error) {
	factoriesMu.RLock()
	factory, ok := factories[desc.Protocol]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no codec registered for protocol %q (registered: %v)",
			desc.Protocol, Protocols())
	}
	return factory(desc, opts), nil
}

// Protocols returns the registered protocol names, sorted.
func Protocols() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
