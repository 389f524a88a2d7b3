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
	"os"

	"github.com/goccy/go-json"
)

// rawDescriptor mirrors the on-disk descriptor document ("api-2.json"
// layout: metadata, operations, shapes).
type rawDescriptor struct {
	Metadata   rawMetadata             `json:"metadata"`
	Operations map[string]rawOperation `json:"operations"`
	Shapes     map[string]rawShape     `json:"shapes"`
}

type rawMetadata struct {
	APIVersion     string `json:"apiVersion"`
	EndpointPrefix string `json:"endpointPrefix"`
	JSONVersion    string `json:"jsonVersion"`
	Protocol       string `json:"protocol"`
	ServiceID      string `json:"serviceId"`
	SigningName    string `json:"signingName"`
	TargetPrefix   string `json:"targetPrefix"`
}

type rawOperation struct {
	Name string `json:"name"`
	HTTP struct {
		Method     string `json:"method"`
		RequestURI string `json:"requestUri"`
	} `json:"http"`
	Input    *rawShapeRef  `json:"input"`
	Output   *rawShapeRef  `json:"output"`
	Errors   []rawShapeRef `json:"errors"`
	Endpoint *struct {
		HostPrefix string `json:"hostPrefix"`
	} `json:"endpoint"`
	AuthType string `json:"authtype"`
}

type rawShapeRef struct {
	Shape           string `json:"shape"`
	Location        string `json:"location"`
	LocationName    string `json:"locationName"`
	QueryName       string `json:"queryName"`
	ResultWrapper   string `json:"resultWrapper"`
	Streaming       bool   `json:"streaming"`
	Flattened       bool   `json:"flattened"`
	TimestampFormat string `json:"timestampFormat"`
	HostLabel       bool   `json:"hostLabel"`
}

type rawShape struct {
	Type            string                 `json:"type"`
	Members         map[string]rawShapeRef `json:"members"`
	Required        []string               `json:"required"`
	Payload         string                 `json:"payload"`
	Member          *rawShapeRef           `json:"member"`
	Key             *rawShapeRef           `json:"key"`
	Value           *rawShapeRef           `json:"value"`
	Enum            []string               `json:"enum"`
	TimestampFormat string                 `json:"timestampFormat"`
	Flattened       bool                   `json:"flattened"`
	Streaming       bool                   `json:"streaming"`
	LocationName    string                 `json:"locationName"`
	Exception       bool                   `json:"exception"`
	Error           *struct {
		Code           string `json:"code"`
		HTTPStatusCode int    `json:"httpStatusCode"`
	} `json:"error"`
}

// Load parses a descriptor document into an immutable ServiceDescriptor.
func Load(data []byte) (*ServiceDescriptor, error) {
	var raw rawDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DescriptorError{Reason: "malformed JSON", Cause: err}
	}
	if raw.Metadata.Protocol == "" {
		return nil, &DescriptorError{Reason: "metadata.protocol is required"}
	}
	switch raw.Metadata.Protocol {
	case ProtocolQuery, ProtocolEC2, ProtocolJSON, ProtocolRESTJSON, ProtocolRESTXML:
	default:
		return nil, &DescriptorError{
			Reason: fmt.Sprintf("unsupported protocol %q", raw.Metadata.Protocol),
		}
	}
	if raw.Metadata.EndpointPrefix == "" {
		return nil, &DescriptorError{Reason: "metadata.endpointPrefix is required"}
	}

	desc := &ServiceDescriptor{
		Protocol:       raw.Metadata.Protocol,
		EndpointPrefix: raw.Metadata.EndpointPrefix,
		SigningName:    raw.Metadata.SigningName,
		APIVersion:     raw.Metadata.APIVersion,
		JSONVersion:    raw.Metadata.JSONVersion,
		TargetPrefix:   raw.Metadata.TargetPrefix,
		ServiceID:      raw.Metadata.ServiceID,
		Operations:     make(map[string]*OperationSpec, len(raw.Operations)),
		Shapes:         make(map[string]*ShapeSpec, len(raw.Shapes)),
	}

	for name, rs := range raw.Shapes {
		desc.Shapes[name] = convertShape(name, rs)
	}

	for name, ro := range raw.Operations {
		op, err := convertOperation(name, ro, desc.Shapes)
		if err != nil {
			return nil, err
		}
		desc.Operations[op.Name] = op
	}

	return desc, nil
}

// LoadFile reads and parses a descriptor document from disk.
func LoadFile(path string) (*ServiceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DescriptorError{Reason: "read failed", Cause: err}
	}
	return Load(data)
}

func convertOperation(name string, ro rawOperation, shapes map[string]*ShapeSpec) (*OperationSpec, error) {
	if ro.Name != "" {
		name = ro.Name
	}
	op := &OperationSpec{
		Name:       name,
		HTTPMethod: ro.HTTP.Method,
		RequestURI: ro.HTTP.RequestURI,
		AuthType:   ro.AuthType,
	}
	if op.HTTPMethod == "" {
		op.HTTPMethod = "POST"
	}
	if op.RequestURI == "" {
		op.RequestURI = "/"
	}
	if ro.Endpoint != nil {
		op.HostPrefix = ro.Endpoint.HostPrefix
	}
	if ro.Input != nil {
		op.Input = convertRef(*ro.Input)
	}
	if ro.Output != nil {
		op.Output = convertRef(*ro.Output)
	}
	for _, re := range ro.Errors {
		op.Errors = append(op.Errors, *convertRef(re))
	}

	// Operation shape references must resolve at load time; member-level
	// references stay lazy to allow recursion.
	for _, ref := range []*ShapeRef{op.Input, op.Output} {
		if ref != nil {
			if _, ok := shapes[ref.Shape]; !ok {
				return nil, &DescriptorError{
					Reason: fmt.Sprintf("operation %s references unknown shape %q", name, ref.Shape),
				}
			}
		}
	}
	return op, nil
}

func convertRef(rr rawShapeRef) *ShapeRef {
	return &ShapeRef{
		Shape:           rr.Shape,
		Location:        rr.Location,
		LocationName:    rr.LocationName,
		QueryName:       rr.QueryName,
		ResultWrapper:   rr.ResultWrapper,
		Streaming:       rr.Streaming,
		Flattened:       rr.Flattened,
		TimestampFormat: rr.TimestampFormat,
		HostLabel:       rr.HostLabel,
	}
}

func convertShape(name string, rs rawShape) *ShapeSpec {
	shape := &ShapeSpec{
		Name:            name,
		Type:            rs.Type,
		Required:        rs.Required,
		Payload:         rs.Payload,
		Enum:            rs.Enum,
		TimestampFormat: rs.TimestampFormat,
		Flattened:       rs.Flattened,
		Streaming:       rs.Streaming,
		LocationName:    rs.LocationName,
		Exception:       rs.Exception,
	}
	if len(rs.Members) > 0 {
		shape.Members = make(map[string]*ShapeRef, len(rs.Members))
		for mname, mref := range rs.Members {
			shape.Members[mname] = convertRef(mref)
		}
	}
	if rs.Member != nil {
		shape.Member = convertRef(*rs.Member)
	}
	if rs.Key != nil {
		shape.Key = convertRef(*rs.Key)
	}
	if rs.Value != nil {
		shape.Value = convertRef(*rs.Value)
	}
	if rs.Error != nil {
		shape.ErrorCode = rs.Error.Code
	}
	shape.initMemberOrder()
	return shape
}
