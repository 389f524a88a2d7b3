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

// Registry resolves shape references by name. Resolution is deliberately
// lazy: a shape reference is just a name, looked up at walk time, so
// structurally recursive shapes never expand at load time.
type Registry struct {
	shapes map[string]*ShapeSpec
}

// NewRegistry builds a registry over the given shapes.
func NewRegistry(shapes map[string]*ShapeSpec) *Registry {
	return &Registry{shapes: shapes}
}

// Resolve returns the shape a reference points at.
func (r *Registry) Resolve(ref *ShapeRef) (*ShapeSpec, error) {
	if ref == nil {
		return nil, &UnknownShapeError{Shape: ""}
	}
	return r.ResolveName(ref.Shape)
}

// ResolveName returns the shape registered under the given name.
func (r *Registry) ResolveName(name string) (*ShapeSpec, error) {
	shape, ok := r.shapes[name]
	if !ok {
		return nil, &UnknownShapeError{Shape: name}
	}
	return shape, nil
}
