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

// Package jsonrpc implements the json wire protocol: a JSON document POSTed
// to "/" with the operation carried in the X-Amz-Target header.
package jsonrpc

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

func init() {
	protocol.Register(api.ProtocolJSON, func(desc *api.ServiceDescriptor, opts protocol.Options) protocol.Codec {
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
		c.detectError = detectTypeMarker
	}
	return c
}

// detectTypeMarker reports a 2xx body carrying the json protocol's error
// marker, the top-level __type key.
func detectTypeMarker(resp *transport.Response) bool {
	var envelope struct {
		Type string `json:"__type"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return false
	}
	return envelope.Type != ""
}

func (c *codec) contentType() string {
	version := c.desc.JSONVersion
	if version == "" {
		version = "1.0"
	}
	return "application/x-amz-json-" + version
}

func (c *codec) Marshal(op *api.OperationSpec, reg *api.Registry, params map[string]any) (*transport.Request, error) {
	req := transport.NewRequest(http.MethodPost)
	req.Path = "/"
	req.Headers.Set("Content-Type", c.contentType())
	req.Headers.Set("X-Amz-Target", c.desc.TargetPrefix+"."+op.Name)

	body := any(map[string]any{})
	if op.Input != nil {
		built, err := protocol.BuildJSONValue(reg, op.Input, params, op.Name, "", protocol.TSUnixTimestamp)
		if err != nil {
			return nil, err
		}
		body = built
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &api.MarshalError{Operation: op.Name, Reason: err.Error(), Cause: err}
	}
	req.Body = encoded
	return req, nil
}

func (c *codec) Unmarshal(op *api.OperationSpec, reg *api.Registry, resp *transport.Response) (map[string]any, *anomaly.Anomaly) {
	if resp.StatusCode >= 300 || c.detectError(resp) {
		return nil, c.unmarshalError(resp)
	}
	if op.Output == nil || len(resp.Body) == 0 {
		return map[string]any{}, nil
	}

	var raw any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, &anomaly.Anomaly{
			Category:   anomaly.CategoryFault,
			HTTPStatus: resp.StatusCode,
			Message:    "unparseable response body: " + err.Error(),
			RequestID:  resp.RequestID(),
			Cause:      err,
		}
	}
	value, err := protocol.ParseJSONValue(reg, op.Output, raw, protocol.TSUnixTimestamp)
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

func (c *codec) unmarshalError(resp *transport.Response) *anomaly.Anomaly {
	var envelope map[string]any
	_ = json.Unmarshal(resp.Body, &envelope)

	code := ErrorCode(resp.Headers, envelope)
	message := ErrorMessage(envelope)
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

// ErrorCode extracts the error code from a JSON error envelope, preferring
// the X-Amzn-Errortype header over the body's __type key. Both forms may
// qualify the code with a namespace prefix or a URI suffix, which callers
// match against bare shape names.
func ErrorCode(headers http.Header, envelope map[string]any) string {
	code, _ := envelope["__type"].(string)
	if h := headers.Get("X-Amzn-Errortype"); h != "" {
		code = h
	}
	if code == "" {
		if c, ok := envelope["code"].(string); ok {
			code = c
		}
	}
	// "namespace#Code" and "Code:http://..." both reduce to Code.
	if idx := strings.Index(code, ":"); idx >= 0 {
		code = code[:idx]
	}
	if idx := strings.LastIndex(code, "#"); idx >= 0 {
		code = code[idx+1:]
	}
	return code
}

// ErrorMessage extracts the human-readable message; services disagree on
// the key's casing.
func ErrorMessage(envelope map[string]any) string {
	for _, key := range []string{"message", "Message", "errorMessage"} {
		if m, ok := envelope[key].(string); ok && m != "" {
			return m
		}
	}
	return ""
}
