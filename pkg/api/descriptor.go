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

// Package api holds the declarative service description the invocation
// engine is driven by: the service metadata, its operations, and the data
// shapes used to serialize requests and responses. Descriptors are loaded
// once per client and never mutated afterwards.
package api

import (
	"sort"
)

// Wire protocols supported by the codec layer.
const (
	ProtocolQuery    = "query"
	ProtocolEC2      = "ec2"
	ProtocolJSON     = "json"
	ProtocolRESTJSON = "rest-json"
	ProtocolRESTXML  = "rest-xml"
)

// Member locations recognized on shape members.
const (
	LocationHeader      = "header"
	LocationHeaderMap   = "headers"
	LocationQueryString = "querystring"
	LocationURI         = "uri"
	LocationStatusCode  = "statusCode"
)

// Shape types.
const (
	TypeStructure = "structure"
	TypeList      = "list"
	TypeMap       = "map"
	TypeString    = "string"
	TypeInteger   = "integer"
	TypeLong      = "long"
	TypeFloat     = "float"
	TypeDouble    = "double"
	TypeBoolean   = "boolean"
	TypeBlob      = "blob"
	TypeTimestamp = "timestamp"
)

// ServiceDescriptor describes one service: which wire protocol it speaks,
// how to name its endpoint and signing scope, and every operation and shape
// it exposes.
type ServiceDescriptor struct {
	// Protocol is one of the Protocol* constants.
	Protocol string

	// EndpointPrefix is the leading label of the service hostname.
	EndpointPrefix string

	// SigningName is the service name used in the SigV4 credential scope.
	// Falls back to EndpointPrefix when the descriptor omits it.
	SigningName string

	// APIVersion is the service API version (query protocols send it as the
	// Version parameter).
	APIVersion string

	// JSONVersion selects the application/x-amz-json content type minor
	// version for the json protocol.
	JSONVersion string

	// TargetPrefix is the X-Amz-Target prefix for the json protocol.
	TargetPrefix string

	// ServiceID is a human-readable service identifier, used in logs.
	ServiceID string

	// Operations maps operation name to its spec.
	Operations map[string]*OperationSpec

	// Shapes maps shape name to its spec. Shape references resolve against
	// this map lazily, so recursive shapes are fine.
	Shapes map[string]*ShapeSpec
}

// Operation looks up an operation by name.
func (d *ServiceDescriptor) Operation(name string) (*OperationSpec, bool) {
	op, ok := d.Operations[name]
	return op, ok
}

// SigningServiceName returns the name used in the credential scope.
func (d *ServiceDescriptor) SigningServiceName() string {
	if d.SigningName != "" {
		return d.SigningName
	}
	return d.EndpointPrefix
}

// OperationSpec describes a single operation: its HTTP binding, input and
// output shapes, and declared error shapes.
type OperationSpec struct {
	Name string

	// HTTPMethod is the method on the wire (query protocols always POST).
	HTTPMethod string

	// RequestURI is the path template; may contain {placeholder} or
	// {placeholder+} segments bound from uri-located input members.
	RequestURI string

	// Input and Output reference the request and response shapes. Either
	// may be nil for operations with no input or no output.
	Input  *ShapeRef
	Output *ShapeRef

	// Errors lists the declared error shapes in descriptor order.
	Errors []ShapeRef

	// HostPrefix is an optional template prepended to the resolved host,
	// with {member} labels substituted from the parameter map.
	HostPrefix string

	// AuthType overrides signing for this operation ("none" skips it).
	AuthType string
}

// ShapeRef is an indirect reference to a named shape plus the serialization
// traits the referencing member carries.
type ShapeRef struct {
	// Shape is the referenced shape name, resolved through the Registry.
	Shape string

	// Location places the member outside the body: header, headers,
	// querystring, uri, or statusCode. Empty means body.
	Location string

	// LocationName overrides the wire name of the member.
	LocationName string

	// QueryName overrides the serialized name for the ec2 protocol.
	QueryName string

	// ResultWrapper names the XML element wrapping a query-protocol result.
	ResultWrapper string

	// Streaming marks members whose value bypasses structured serialization.
	Streaming bool

	// Flattened overrides list/map nesting for this reference.
	Flattened bool

	// TimestampFormat overrides the protocol default for this member.
	TimestampFormat string

	// HostLabel marks members substituted into the operation host prefix.
	HostLabel bool
}

// WireName returns the serialized name for a member that would otherwise
// use the given default.
func (r *ShapeRef) WireName(fallback string) string {
	if r.LocationName != "" {
		return r.LocationName
	}
	return fallback
}

// ShapeSpec is a tagged shape variant: structure, list, map, or scalar.
type ShapeSpec struct {
	// Name is the shape's registry key.
	Name string

	// Type is one of the Type* constants.
	Type string

	// Members holds structure members keyed by member name.
	Members map[string]*ShapeRef

	// Required lists member names that must be present when marshalling.
	Required []string

	// Payload names the single member carried as the raw body for rest
	// protocols; remaining members bind via their locations.
	Payload string

	// Member is the element shape of a list.
	Member *ShapeRef

	// Key and Value are the entry shapes of a map.
	Key   *ShapeRef
	Value *ShapeRef

	// Enum restricts string values when non-empty.
	Enum []string

	// TimestampFormat is the shape-level timestamp trait.
	TimestampFormat string

	// Flattened lists/maps serialize without the member/entry nesting level.
	Flattened bool

	// Streaming marks blob shapes that pass through as raw byte streams.
	Streaming bool

	// LocationName renames the shape's XML element (rest-xml payload roots,
	// list members).
	LocationName string

	// Exception marks error shapes; ErrorCode overrides the code the
	// service reports for them.
	Exception bool
	ErrorCode string

	memberOrder []string
}

// IsRequired reports whether the named member is required.
func (s *ShapeSpec) IsRequired(member string) bool {
	for _, m := range s.Required {
		if m == member {
			return true
		}
	}
	return false
}

// MemberNames returns structure member names in a stable order. The JSON
// descriptor form does not preserve member order, so names sort
// lexicographically; every codec iterates through this to keep wire output
// deterministic.
func (s *ShapeSpec) MemberNames() []string {
	if s.memberOrder != nil {
		return s.memberOrder
	}
	names := make([]string, 0, len(s.Members))
	for name := range s.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// initMemberOrder precomputes the sorted member list. Load calls this once
// per shape so that concurrent invocations share the cached slice.
func (s *ShapeSpec) initMemberOrder() {
	s.memberOrder = s.MemberNames()
}

// Code returns the error code shaped errors report on the wire.
func (s *ShapeSpec) Code() string {
	if s.ErrorCode != "" {
		return s.ErrorCode
	}
	return s.Name
}
