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

package restjson

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

const functionsDescriptor = `{
  "metadata": {
    "apiVersion": "2015-03-31",
    "endpointPrefix": "lambda",
    "protocol": "rest-json",
    "serviceId": "Lambda"
  },
  "operations": {
    "Invoke": {
      "name": "Invoke",
      "http": {"method": "POST", "requestUri": "/2015-03-31/functions/{FunctionName}/invocations"},
      "input": {"shape": "InvocationRequest"},
      "output": {"shape": "InvocationResponse"}
    },
    "GetFunction": {
      "name": "GetFunction",
      "http": {"method": "GET", "requestUri": "/2015-03-31/functions/{FunctionName}"},
      "input": {"shape": "GetFunctionRequest"},
      "output": {"shape": "GetFunctionResponse"}
    },
    "UpdateFunctionCode": {
      "name": "UpdateFunctionCode",
      "http": {"method": "PUT", "requestUri": "/2015-03-31/functions/{FunctionName}/code"},
      "input": {"shape": "UpdateFunctionCodeRequest"},
      "output": {"shape": "UpdateFunctionCodeResponse"}
    }
  },
  "shapes": {
    "InvocationRequest": {
      "type": "structure",
      "required": ["FunctionName"],
      "payload": "Payload",
      "members": {
        "FunctionName": {"shape": "String", "location": "uri", "locationName": "FunctionName"},
        "InvocationType": {"shape": "String", "location": "header", "locationName": "X-Amz-Invocation-Type"},
        "Payload": {"shape": "Blob"}
      }
    },
    "InvocationResponse": {
      "type": "structure",
      "payload": "Payload",
      "members": {
        "StatusCode": {"shape": "Integer", "location": "statusCode"},
        "FunctionError": {"shape": "String", "location": "header", "locationName": "X-Amz-Function-Error"},
        "Payload": {"shape": "Blob"}
      }
    },
    "GetFunctionRequest": {
      "type": "structure",
      "required": ["FunctionName"],
      "members": {
        "FunctionName": {"shape": "String", "location": "uri", "locationName": "FunctionName"}
      }
    },
    "GetFunctionResponse": {
      "type": "structure",
      "members": {
        "Configuration": {"shape": "FunctionConfiguration"}
      }
    },
    "FunctionConfiguration": {
      "type": "structure",
      "members": {
        "FunctionName": {"shape": "String"},
        "MemorySize": {"shape": "Integer"}
      }
    },
    "UpdateFunctionCodeRequest": {
      "type": "structure",
      "required": ["FunctionName", "ZipFile"],
      "payload": "ZipFile",
      "members": {
        "FunctionName": {"shape": "String", "location": "uri", "locationName": "FunctionName"},
        "ZipFile": {"shape": "StreamingBlob", "streaming": true}
      }
    },
    "UpdateFunctionCodeResponse": {
      "type": "structure",
      "payload": "CodeSha256",
      "members": {
        "CodeSha256": {"shape": "StreamingBlob"}
      }
    },
    "String": {"type": "string"},
    "Integer": {"type": "integer"},
    "Blob": {"type": "blob"},
    "StreamingBlob": {"type": "blob", "streaming": true}
  }
}`

func newRestJSONFixture(t *testing.T) (*codec, *api.ServiceDescriptor, *api.Registry) {
	t.Helper()
	desc, err := api.Load([]byte(functionsDescriptor))
	require.NoError(t, err)
	return newCodec(desc, protocol.Options{}), desc, api.NewRegistry(desc.Shapes)
}

func TestMarshalBlobPayload(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["Invoke"]

	req, err := c.Marshal(op, reg, map[string]any{
		"FunctionName":   "resize-images",
		"InvocationType": "Event",
		"Payload":        []byte(`{"bucket":"photos"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "/2015-03-31/functions/resize-images/invocations", req.Path)
	assert.Equal(t, "Event", req.Headers.Get("X-Amz-Invocation-Type"))
	// A blob payload passes through as the raw body, not base64.
	assert.Equal(t, `{"bucket":"photos"}`, string(req.Body))
	assert.Equal(t, "application/octet-stream", req.Headers.Get("Content-Type"))
}

func TestMarshalStreamingPayloadFromReader(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["UpdateFunctionCode"]

	req, err := c.Marshal(op, reg, map[string]any{
		"FunctionName": "resize-images",
		"ZipFile":      bytes.NewReader([]byte("PK\x03\x04archive")),
	})
	require.NoError(t, err)

	// Streaming members bypass structured serialization: the reader is
	// drained into the body verbatim, never base64-encoded.
	assert.Equal(t, "PK\x03\x04archive", string(req.Body))
	assert.Equal(t, "application/octet-stream", req.Headers.Get("Content-Type"))
}

func TestUnmarshalStreamingPayload(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["UpdateFunctionCode"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte("raw response bytes"),
	}
	result, a := c.Unmarshal(op, reg, resp)
	require.Nil(t, a)
	assert.Equal(t, []byte("raw response bytes"), result["CodeSha256"])
}

func TestMarshalBodyMembers(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["GetFunction"]

	req, err := c.Marshal(op, reg, map[string]any{"FunctionName": "resize-images"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/2015-03-31/functions/resize-images", req.Path)
	assert.Empty(t, req.Body)
}

func TestUnmarshalPayloadAndEnvelope(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["Invoke"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{"X-Amz-Function-Error": []string{"Unhandled"}},
		Body:       []byte(`{"errorMessage":"boom"}`),
	}
	result, a := c.Unmarshal(op, reg, resp)
	require.Nil(t, a)

	assert.Equal(t, int64(200), result["StatusCode"])
	assert.Equal(t, "Unhandled", result["FunctionError"])
	assert.Equal(t, []byte(`{"errorMessage":"boom"}`), result["Payload"])
}

func TestUnmarshalStructuredBody(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["GetFunction"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte(`{"Configuration":{"FunctionName":"resize-images","MemorySize":512}}`),
	}
	result, a := c.Unmarshal(op, reg, resp)
	require.Nil(t, a)

	cfg, ok := result["Configuration"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "resize-images", cfg["FunctionName"])
	assert.Equal(t, int64(512), cfg["MemorySize"])
}

func TestUnmarshalErrorTypeHeader(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["GetFunction"]

	resp := &transport.Response{
		StatusCode: 404,
		Headers: http.Header{
			"X-Amzn-Errortype": []string{"ResourceNotFoundException"},
			"X-Amzn-Requestid": []string{"req-r1"},
		},
		Body: []byte(`{"Message":"Function not found"}`),
	}
	_, a := c.Unmarshal(op, reg, resp)
	require.NotNil(t, a)
	assert.Equal(t, anomaly.CategoryNotFound, a.Category)
	assert.Equal(t, "ResourceNotFoundException", a.ErrorCode)
	assert.Equal(t, "Function not found", a.Message)
	assert.Equal(t, "req-r1", a.RequestID)
}

func TestUnmarshalErrorTypeHeaderOn200(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["GetFunction"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{"X-Amzn-Errortype": []string{"InternalFailure"}},
		Body:       []byte(`{"message":"broken"}`),
	}
	_, a := c.Unmarshal(op, reg, resp)
	require.NotNil(t, a)
	assert.Equal(t, "InternalFailure", a.ErrorCode)
}

func TestMarshalStructureBodyOmitsLocatedMembers(t *testing.T) {
	c, desc, reg := newRestJSONFixture(t)
	op := desc.Operations["Invoke"]

	req, err := c.Marshal(op, reg, map[string]any{
		"FunctionName": "fn",
		"Payload":      []byte("{}"),
	})
	require.NoError(t, err)

	// Located members never leak into the body.
	var body map[string]any
	if len(req.Body) > 0 && json.Valid(req.Body) {
		require.NoError(t, json.Unmarshal(req.Body, &body))
		assert.NotContains(t, body, "FunctionName")
	}
}
