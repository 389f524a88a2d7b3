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

// Package restxml implements the rest-xml wire protocol: REST member
// bindings from the rest package combined with an XML body.
package restxml

import (
	"bytes"
	"net/http"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/protocol/rest"
	"github.com/green-labs/aws-api/internal/protocol/xmlutil"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

func init() {
	protocol.Register(api.ProtocolRESTXML, func(desc *api.ServiceDescriptor, opts protocol.Options) protocol.Codec {
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
			return bytes.Contains(peek(resp.Body), []byte("<Error>"))
		}
	}
	return c
}

func peek(body []byte) []byte {
	const window = 512
	if len(body) > window {
		return body[:window]
	}
	return body
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

	// Without a payload trait, body members serialize under a root element
	// named after the input shape.
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
		body[name] = value
	}
	if len(body) == 0 {
		return req, nil
	}
	rootName := shape.LocationName
	if rootName == "" {
		rootName = shape.Name
	}
	encoded, err := xmlutil.Encode(reg, op.Input, body, rootName, op.Name, protocol.TSISO8601)
	if err != nil {
		return nil, err
	}
	req.Headers.Set("Content-Type", "application/xml")
	req.Body = encoded
	return req, nil
}

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
		rootName := memberRef.WireName(name)
		if memberShape.LocationName != "" && memberRef.LocationName == "" {
			rootName = memberShape.LocationName
		}
		encoded, err := xmlutil.Encode(reg, memberRef, value, rootName, op.Name, protocol.TSISO8601)
		if err != nil {
			return err
		}
		req.Headers.Set("Content-Type", "application/xml")
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

	root, err := xmlutil.Parse(resp.Body)
	if err != nil {
		return nil, c.faultAnomaly(resp, err)
	}
	value, err := xmlutil.NodeToValue(reg, op.Output, root, protocol.TSISO8601)
	if err != nil {
		return nil, c.faultAnomaly(resp, err)
	}
	if decoded, ok := value.(map[string]any); ok {
		for k, v := range decoded {
			result[k] = v
		}
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
		root, err := xmlutil.Parse(resp.Body)
		if err != nil {
			return err
		}
		value, err := xmlutil.NodeToValue(reg, memberRef, root, protocol.TSISO8601)
		if err != nil {
			return err
		}
		result[name] = value
	}
	return nil
}

// unmarshalError decodes both rest-xml error envelope forms: the bare
// <Error> root (S3 style) and the query-style <ErrorResponse><Error>.
func (c *codec) unmarshalError(resp *transport.Response) *anomaly.Anomaly {
	code, message, requestID := "", "", resp.RequestID()

	if root, err := xmlutil.Parse(resp.Body); err == nil && root != nil {
		errNode := root
		if inner := root.Child("Error"); inner != nil {
			errNode = inner
		}
		if n := errNode.Child("Code"); n != nil {
			code = n.Text
		}
		if n := errNode.Child("Message"); n != nil {
			message = n.Text
		}
		for _, node := range []*xmlutil.Node{errNode, root} {
			if n := node.Child("RequestId"); n != nil && n.Text != "" {
				requestID = n.Text
			}
		}
	}

	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &anomaly.Anomaly{
		Category:   anomaly.CategoryForError(resp.StatusCode, code),
		HTTPStatus: resp.StatusCode,
		ErrorCode:  code,
		Message:    message,
		RequestID:  requestID,
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
