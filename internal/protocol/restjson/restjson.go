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

// Package restjson implements the rest-json wire protocol: REST member
// bindings from the rest package combined with a JSON body.
package restjson

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/protocol/jsonrpc"
	"github.com/green-labs/aws-api/internal/protocol/rest"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

func init() {
	protocol.Register(api.ProtocolRESTJSON, func(desc *api.ServiceDescriptor, opts protocol.Options) protocol.Codec {
		return newCodec(desc, opts)
	})
}

type codec struct {
	desc        *api.ServiceDescriptor
	detectError protocol.ErrorDetector
}

func newCodec(desc *api.ServiceDescriptor, opts protocol.Options) *codec {
	c := &codec{desc: desc, detectError: opts.ErrorDetector}
	if c.detectError == nil {
		c.detectError = func(resp *transport.Response) bool {
			return resp.Headers.Get("X-Amzn-Errortype") != ""
		}
	}
	return c
}

func (c *codec) Marshal(op *api.OperationSpec, reg *api.Registry, params map[string]any) (*transport.Request, error) {
	req := transport.NewRequest(op.HTTPMethod)
	if err := rest.Build(req, reg, op, params); err != nil {
		return nil, err
	}
	if op.Input == nil {
		return req, nil
	}
	shape, err := reg.Resolve(op.Input)
	if err != nil {
		return nil, &api.MarshalError{Operation: op.Name, Reason: err.Error(), Cause: err}
	}

	if shape.Payload != "" {
		return req, c.marshalPayload(req, reg, op, shape, params)
	}

	body := map[string]any{}
	for _, name := range shape.MemberNames() {
		memberRef := shape.Members[name]
		if memberRef.Location != "" {
			continue
		}
		value, present := params[name]
		if !present || value == nil {
			if shape.IsRequired(name) {
				return nil, api.MissingRequiredParameter(op.Name, name)
			}
			continue
		}
		built, err := protocol.BuildJSONValue(reg, memberRef, value, op.Name, name, protocol.TSUnixTimestamp)
		if err != nil {
			return nil, err
		}
		body[memberRef.WireName(name)] = built
	}
	if len(body) == 0 {
		return req, nil
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &api.MarshalError{Operation: op.Name, Reason: err.Error(), Cause: err}
	}
	req.Headers.Set("Content-Type", "application/json")
	req.Body = encoded
	return req, nil
}

// marshalPayload serializes the single payload member as the entire body:
// structures as a JSON document, streaming members and blobs raw.
func (c *codec) marshalPayload(req *transport.Request, reg *api.Registry, op *api.OperationSpec, shape *api.ShapeSpec, params map[string]any) error {
	name := shape.Payload
	memberRef, ok := shape.Members[name]
	if !ok {
		return &api.MarshalError{Operation: op.Name, Member: name, Reason: "payload names an unknown member"}
	}
	value, present := params[name]
	if !present || value == nil {
		if shape.IsRequired(name) {
			return api.MissingRequiredParameter(op.Name, name)
		}
		return nil
	}
	memberShape, err := reg.Resolve(memberRef)
	if err != nil {
		return &api.MarshalError{Operation: op.Name, Member: name, Reason: err.Error(), Cause: err}
	}

	switch {
	case memberRef.Streaming || memberShape.Streaming || memberShape.Type == api.TypeBlob:
		raw, err := protocol.ToBytes(value)
		if err != nil {
			return &api.MarshalError{Operation: op.Name, Member: name, Reason: err.Error(), Cause: err}
		}
		req.Headers.Set("Content-Type", "application/octet-stream")
		req.Body = raw
	case memberShape.Type == api.TypeString:
		text, err := protocol.FormatScalar(memberShape, value, "")
		if err != nil {
			return &api.MarshalError{Operation: op.Name, Member: name, Reason: err.Error(), Cause: err}
		}
		req.Body = []byte(text)
	default:
		built, err := protocol.BuildJSONValue(reg, memberRef, value, op.Name, name, protocol.TSUnixTimestamp)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(built)
		if err != nil {
			return &api.MarshalError{Operation: op.Name, Member: name, Reason: err.Error(), Cause: err}
		}
		req.Headers.Set("Content-Type", "application/json")
		req.Body = encoded
	}
	return nil
}

func (c *codec) Unmarshal(op *api.OperationSpec, reg *api.Registry, resp *transport.Response) (map[string]any, *anomaly.Anomaly) {
	if resp.StatusCode >= 300 || c.detectError(resp) {
		return nil, c.unmarshalError(resp)
	}
	result := map[string]any{}
	if op.Output == nil {
		return result, nil
	}
	if err := rest.UnmarshalEnvelope(result, reg, op.Output, resp); err != nil {
		return nil, c.faultAnomaly(resp, err)
	}
	shape, err := reg.Resolve(op.Output)
	if err != nil {
		return nil, c.faultAnomaly(resp, err)
	}

	if shape.Payload != "" {
		if err := c.unmarshalPayload(result, reg, shape, resp); err != nil {
			return nil, c.faultAnomaly(resp, err)
		}
		return result, nil
	}
	if len(resp.Body) == 0 {
		return result, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, c.faultAnomaly(resp, err)
	}
	for _, name := range shape.MemberNames() {
		memberRef := shape.Members[name]
		if memberRef.Location != "" {
			continue
		}
		rawValue, ok := raw[memberRef.WireName(name)]
		if !ok || rawValue == nil {
			continue
		}
		value, err := protocol.ParseJSONValue(reg, memberRef, rawValue, protocol.TSUnixTimestamp)
		if err != nil {
			return nil, c.faultAnomaly(resp, err)
		}
		result[name] = value
	}
	return result, nil
}

func (c *codec) unmarshalPayload(result map[string]any, reg *api.Registry, shape *api.ShapeSpec, resp *transport.Response) error {
	name := shape.Payload
	memberRef, ok := shape.Members[name]
	if !ok {
		return nil
	}
	memberShape, err := reg.Resolve(memberRef)
	if err != nil {
		return err
	}
	switch {
	case memberRef.Streaming || memberShape.Streaming || memberShape.Type == api.TypeBlob:
		result[name] = resp.Body
	case memberShape.Type == api.TypeString:
		result[name] = string(resp.Body)
	default:
		if len(resp.Body) == 0 {
			return nil
		}
		var raw any
		if err := json.Unmarshal(resp.Body, &raw); err != nil {
			return err
		}
		value, err := protocol.ParseJSONValue(reg, memberRef, raw, protocol.TSUnixTimestamp)
		if err != nil {
			return err
		}
		result[name] = value
	}
	return nil
}

func (c *codec) unmarshalError(resp *transport.Response) *anomaly.Anomaly {
	var envelope map[string]any
	_ = json.Unmarshal(resp.Body, &envelope)

	code := jsonrpc.ErrorCode(resp.Headers, envelope)
	message := jsonrpc.ErrorMessage(envelope)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &anomaly.Anomaly{
		Category:   anomaly.CategoryForError(resp.StatusCode, code),
		HTTPStatus: resp.StatusCode,
		ErrorCode:  code,
		Message:    message,
		RequestID:  resp.RequestID(),
		Fields:     envelope,
	}
}

func (c *codec) faultAnomaly(resp *transport.Response, err error) *anomaly.Anomaly {
	return &anomaly.Anomaly{
		Category:   anomaly.CategoryFault,
		HTTPStatus: resp.StatusCode,
		Message:    "malformed response body: " + err.Error(),
		RequestID:  resp.RequestID(),
		Cause:      err,
	}
}
