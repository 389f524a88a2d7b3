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

// Package query implements the query and ec2 wire protocols: form-encoded
// POST requests carrying Action and Version, XML responses.
package query

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/protocol/queryutil"
	"github.com/green-labs/aws-api/internal/protocol/xmlutil"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

func init() {
	protocol.Register(api.ProtocolQuery, func(desc *api.ServiceDescriptor, opts protocol.Options) protocol.Codec {
		return newCodec(desc, opts, false)
	})
	protocol.Register(api.ProtocolEC2, func(desc *api.ServiceDescriptor, opts protocol.Options) protocol.Codec {
		return newCodec(desc, opts, true)
	})
}

type codec struct {
	desc        *api.ServiceDescriptor
	detectError protocol.ErrorDetector
	ec2         bool
}

func newCodec(desc *api.ServiceDescriptor, opts protocol.Options, ec2 bool) *codec {
	c := &codec{desc: desc, detectError: opts.ErrorDetector, ec2: ec2}
	if c.detectError == nil {
		c.detectError = defaultErrorDetector(ec2)
	}
	return c
}

// defaultErrorDetector flags 2xx bodies that open with the protocol's error
// envelope. Some services report failures with HTTP 200.
func defaultErrorDetector(ec2 bool) protocol.ErrorDetector {
	marker := []byte("<ErrorResponse")
	if ec2 {
		marker = []byte("<Errors>")
	}
	return func(resp *transport.Response) bool {
		return bytes.Contains(peek(resp.Body), marker)
	}
}

// peek returns the leading slice of a body, enough to spot an envelope root
// without scanning large payloads.
func peek(body []byte) []byte {
	const window = 512
	if len(body) > window {
		return body[:window]
	}
	return body
}

func (c *codec) Marshal(op *api.OperationSpec, reg *api.Registry, params map[string]any) (*transport.Request, error) {
	values := url.Values{}
	values.Set("Action", op.Name)
	values.Set("Version", c.desc.APIVersion)

	if op.Input != nil {
		if err := queryutil.Build(values, reg, op.Input, params, op.Name, c.ec2); err != nil {
			return nil, err
		}
	}

	req := transport.NewRequest(http.MethodPost)
	req.Path = "/"
	req.Headers.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Body = []byte(values.Encode())
	return req, nil
}

func (c *codec) Unmarshal(op *api.OperationSpec, reg *api.Registry, resp *transport.Response) (map[string]any, *anomaly.Anomaly) {
	if resp.StatusCode >= 300 || c.detectError(resp) {
		return nil, c.unmarshalError(resp)
	}
	if op.Output == nil {
		return map[string]any{}, nil
	}

	root, err := xmlutil.Parse(resp.Body)
	if err != nil {
		return nil, &anomaly.Anomaly{
			Category:   anomaly.CategoryFault,
			HTTPStatus: resp.StatusCode,
			Message:    "unparseable response body: " + err.Error(),
			RequestID:  resp.RequestID(),
			Cause:      err,
		}
	}

	// The query protocol wraps results an extra level; ec2 puts output
	// members directly under the response root.
	result := root
	if !c.ec2 {
		wrapper := op.Output.ResultWrapper
		if wrapper == "" {
			wrapper = op.Name + "Result"
		}
		if inner := root.Child(wrapper); inner != nil {
			result = inner
		}
	}

	value, err := xmlutil.NodeToValue(reg, op.Output, result, protocol.TSISO8601)
	if err != nil {
		return nil, &anomaly.Anomaly{
			Category:   anomaly.CategoryFault,
			HTTPStatus: resp.StatusCode,
			Message:    "malformed response body: " + err.Error(),
			RequestID:  resp.RequestID(),
			Cause:      err,
		}
	}
	out, ok := value.(map[string]any)
	if !ok {
		out = map[string]any{}
	}
	return out, nil
}

// unmarshalError decodes the XML error envelope. Query services wrap the
// error in <ErrorResponse><Error>; ec2 in <Response><Errors><Error>. The
// raw status drives the category unless the code is a known throttle.
func (c *codec) unmarshalError(resp *transport.Response) *anomaly.Anomaly {
	code, message, requestID := "", "", resp.RequestID()

	if root, err := xmlutil.Parse(resp.Body); err == nil && root != nil {
		errNode := root.Child("Error")
		if errNode == nil {
			errNode = root.FindPath("Errors", "Error")
		}
		if errNode != nil {
			if n := errNode.Child("Code"); n != nil {
				code = n.Text
			}
			if n := errNode.Child("Message"); n != nil {
				message = n.Text
			}
		}
		for _, name := range []string{"RequestId", "RequestID"} {
			if n := root.Child(name); n != nil && n.Text != "" {
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
