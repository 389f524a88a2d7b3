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

package api

import (
	"fmt"
)

// UnknownShapeError reports a shape reference that does not resolve.
type UnknownShapeError struct {
	// Shape is the missing shape name.
	Shape string
}

// Error implements the error interface.
func (e *UnknownShapeError) Error() string {
	return fmt.Sprintf("unknown shape: %s", e.Shape)
}

// MarshalError reports a local failure while turning a parameter map into a
// wire request: a missing required member, an unknown member, or a scalar
// that cannot be formatted. Marshal errors are never retried.
type MarshalError struct {
	// Operation is the operation being marshalled, when known.
	Operation string

	// Member is the offending member path (e.g. "Filters[0].Name").
	Member string

	// Reason describes what was wrong.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *MarshalError) Error() string {
	msg := "marshal failed"
	if e.Operation != "" {
		msg = fmt.Sprintf("marshal %s failed", e.Operation)
	}
	if e.Member != "" {
		msg = fmt.Sprintf("%s on %s", msg, e.Member)
	}
	return fmt.Sprintf("%s: %s", msg, e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *MarshalError) Unwrap() error {
	return e.Cause
}

// MissingRequiredParameter builds the marshal error for an absent required
// member.
func MissingRequiredParameter(operation, member string) *MarshalError {
	return &MarshalError{
		Operation: operation,
		Member:    member,
		Reason:    "missing required parameter",
	}
}

// DescriptorError reports a malformed descriptor document.
type DescriptorError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *DescriptorError) Error() string {
	return fmt.Sprintf("invalid service descriptor: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DescriptorError) Unwrap() error {
	return e.Cause
}
