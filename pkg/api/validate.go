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
	"time"
)

// Validate walks a parameter map against an input shape. A nil shape ref
// accepts only an empty parameter map. Validation reports the first problem
// found as a *MarshalError; when validation is disabled the codecs still
// enforce required members and scalar formats, just without the early
// member-name and enum checks done here.
func Validate(reg *Registry, ref *ShapeRef, params map[string]any) error {
	if ref == nil {
		if len(params) > 0 {
			return &MarshalError{Reason: "operation takes no input"}
		}
		return nil
	}
	var asAny any
	if params != nil {
		asAny = params
	}
	return validateValue(reg, ref, asAny, "")
}

func validateValue(reg *Registry, ref *ShapeRef, value any, path string) error {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return &MarshalError{Member: path, Reason: err.Error(), Cause: err}
	}

	switch shape.Type {
	case TypeStructure:
		return validateStructure(reg, shape, value, path)
	case TypeList:
		return validateList(reg, shape, value, path)
	case TypeMap:
		return validateMap(reg, shape, value, path)
	default:
		return validateScalar(shape, value, path)
	}
}

func validateStructure(reg *Registry, shape *ShapeSpec, value any, path string) error {
	m, ok := value.(map[string]any)
	if !ok {
		return typeMismatch(path, "map", value)
	}

	for key := range m {
		if _, known := shape.Members[key]; !known {
			return &MarshalError{
				Member: join(path, key),
				Reason: fmt.Sprintf("unknown member on shape %s", shape.Name),
			}
		}
	}
	for _, name := range shape.Required {
		if _, present := m[name]; !present {
			return &MarshalError{
				Member: join(path, name),
				Reason: "missing required parameter",
			}
		}
	}
	for _, name := range shape.MemberNames() {
		v, present := m[name]
		if !present || v == nil {
			continue
		}
		memberRef := shape.Members[name]
		if memberRef.Streaming {
			// Streaming members pass through as raw bytes/readers.
			continue
		}
		if err := validateValue(reg, memberRef, v, join(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func validateList(reg *Registry, shape *ShapeSpec, value any, path string) error {
	items, ok := value.([]any)
	if !ok {
		return typeMismatch(path, "list", value)
	}
	for i, item := range items {
		if err := validateValue(reg, shape.Member, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateMap(reg *Registry, shape *ShapeSpec, value any, path string) error {
	m, ok := value.(map[string]any)
	if !ok {
		return typeMismatch(path, "map", value)
	}
	for key, v := range m {
		if err := validateValue(reg, shape.Value, v, fmt.Sprintf("%s[%s]", path, key)); err != nil {
			return err
		}
	}
	return nil
}

func validateScalar(shape *ShapeSpec, value any, path string) error {
	switch shape.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return typeMismatch(path, "string", value)
		}
		if len(shape.Enum) > 0 && !contains(shape.Enum, s) {
			return &MarshalError{
				Member: path,
				Reason: fmt.Sprintf("value %q is not in enum %v", s, shape.Enum),
			}
		}
	case TypeInteger, TypeLong:
		switch value.(type) {
		case int, int32, int64, float64:
		default:
			return typeMismatch(path, "integer", value)
		}
	case TypeFloat, TypeDouble:
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return typeMismatch(path, "number", value)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return typeMismatch(path, "boolean", value)
		}
	case TypeBlob:
		switch value.(type) {
		case []byte, string:
		default:
			return typeMismatch(path, "blob", value)
		}
	case TypeTimestamp:
		switch value.(type) {
		case time.Time, int, int64, float64, string:
		default:
			return typeMismatch(path, "timestamp", value)
		}
	}
	return nil
}

func typeMismatch(path, want string, got any) *MarshalError {
	return &MarshalError{
		Member: path,
		Reason: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

func join(path, member string) string {
	if path == "" {
		return member
	}
	return path + "." + member
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
