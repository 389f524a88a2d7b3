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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDescriptor = `{
  "metadata": {
    "apiVersion": "2012-08-10",
    "endpointPrefix": "dynamodb",
    "jsonVersion": "1.0",
    "protocol": "json",
    "serviceId": "DynamoDB",
    "signingName": "dynamodb",
    "targetPrefix": "DynamoDB_20120810"
  },
  "operations": {
    "PutItem": {
      "name": "PutItem",
      "http": {"method": "POST", "requestUri": "/"},
      "input": {"shape": "PutItemInput"},
      "errors": [
        {"shape": "ConditionalCheckFailedException"}
      ]
    }
  },
  "shapes": {
    "PutItemInput": {
      "type": "structure",
      "required": ["TableName", "Item"],
      "members": {
        "TableName": {"shape": "TableName"},
        "Item": {"shape": "AttributeMap"},
        "ReturnValues": {"shape": "ReturnValue"}
      }
    },
    "AttributeMap": {
      "type": "map",
      "key": {"shape": "AttributeName"},
      "value": {"shape": "AttributeValue"}
    },
    "AttributeValue": {
      "type": "structure",
      "members": {
        "S": {"shape": "StringAttributeValue"},
        "N": {"shape": "NumberAttributeValue"},
        "L": {"shape": "ListAttributeValue"}
      }
    },
    "ListAttributeValue": {
      "type": "list",
      "member": {"shape": "AttributeValue"}
    },
    "ReturnValue": {
      "type": "string",
      "enum": ["NONE", "ALL_OLD"]
    },
    "ConditionalCheckFailedException": {
      "type": "structure",
      "exception": true,
      "error": {"code": "ConditionalCheckFailed", "httpStatusCode": 400},
      "members": {
        "message": {"shape": "ErrorMessage"}
      }
    },
    "TableName": {"type": "string"},
    "AttributeName": {"type": "string"},
    "StringAttributeValue": {"type": "string"},
    "NumberAttributeValue": {"type": "string"},
    "ErrorMessage": {"type": "string"}
  }
}`

func TestLoad(t *testing.T) {
	desc, err := Load([]byte(sampleDescriptor))
	require.NoError(t, err)

	assert.Equal(t, ProtocolJSON, desc.Protocol)
	assert.Equal(t, "dynamodb", desc.EndpointPrefix)
	assert.Equal(t, "DynamoDB_20120810", desc.TargetPrefix)
	assert.Equal(t, "dynamodb", desc.SigningServiceName())

	op, ok := desc.Operation("PutItem")
	require.True(t, ok)
	assert.Equal(t, "POST", op.HTTPMethod)
	assert.Equal(t, "/", op.RequestURI)
	require.NotNil(t, op.Input)
	assert.Equal(t, "PutItemInput", op.Input.Shape)
	require.Len(t, op.Errors, 1)

	exc := desc.Shapes["ConditionalCheckFailedException"]
	require.NotNil(t, exc)
	assert.True(t, exc.Exception)
	assert.Equal(t, "ConditionalCheckFailed", exc.Code())
}

func TestLoadRejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed json", `{`},
		{"missing protocol", `{"metadata": {"endpointPrefix": "x"}}`},
		{"unknown protocol", `{"metadata": {"protocol": "soap", "endpointPrefix": "x"}}`},
		{"missing endpoint prefix", `{"metadata": {"protocol": "json"}}`},
		{
			"operation references unknown shape",
			`{"metadata": {"protocol": "json", "endpointPrefix": "x"},
			  "operations": {"Op": {"input": {"shape": "Missing"}}},
			  "shapes": {}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			var descErr *DescriptorError
			assert.ErrorAs(t, err, &descErr)
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	desc, err := Load([]byte(sampleDescriptor))
	require.NoError(t, err)
	reg := NewRegistry(desc.Shapes)

	shape, err := reg.Resolve(&ShapeRef{Shape: "PutItemInput"})
	require.NoError(t, err)
	assert.Equal(t, TypeStructure, shape.Type)

	_, err = reg.Resolve(&ShapeRef{Shape: "Nope"})
	var unknown *UnknownShapeError
	assert.ErrorAs(t, err, &unknown)
}

func TestRegistryResolvesRecursiveShapes(t *testing.T) {
	desc, err := Load([]byte(sampleDescriptor))
	require.NoError(t, err)
	reg := NewRegistry(desc.Shapes)

	// AttributeValue contains a list of AttributeValue.
	value, err := reg.Resolve(&ShapeRef{Shape: "AttributeValue"})
	require.NoError(t, err)
	list, err := reg.Resolve(value.Members["L"])
	require.NoError(t, err)
	assert.Equal(t, "AttributeValue", list.Member.Shape)
}

func TestMemberNamesDeterministic(t *testing.T) {
	desc, err := Load([]byte(sampleDescriptor))
	require.NoError(t, err)

	value := desc.Shapes["AttributeValue"]
	assert.Equal(t, []string{"L", "N", "S"}, value.MemberNames())
}

func TestValidate(t *testing.T) {
	desc, err := Load([]byte(sampleDescriptor))
	require.NoError(t, err)
	reg := NewRegistry(desc.Shapes)
	input := &ShapeRef{Shape: "PutItemInput"}

	valid := map[string]any{
		"TableName": "books",
		"Item": map[string]any{
			"isbn": map[string]any{"S": "0-306-40615-2"},
		},
		"ReturnValues": "NONE",
	}
	assert.NoError(t, Validate(reg, input, valid))

	tests := []struct {
		name   string
		params map[string]any
		member string
	}{
		{
			name:   "missing required",
			params: map[string]any{"TableName": "books"},
			member: "Item",
		},
		{
			name: "unknown member",
			params: map[string]any{
				"TableName": "books",
				"Item":      map[string]any{},
				"Bogus":     1,
			},
			member: "Bogus",
		},
		{
			name: "type mismatch",
			params: map[string]any{
				"TableName": 42,
				"Item":      map[string]any{},
			},
			member: "TableName",
		},
		{
			name: "enum mismatch",
			params: map[string]any{
				"TableName":    "books",
				"Item":         map[string]any{},
				"ReturnValues": "EVERYTHING",
			},
			member: "ReturnValues",
		},
		{
			name: "nested mismatch",
			params: map[string]any{
				"TableName": "books",
				"Item": map[string]any{
					"isbn": map[string]any{"S": 42},
				},
			},
			member: "Item[isbn].S",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(reg, input, tt.params)
			var marshalErr *MarshalError
			require.ErrorAs(t, err, &marshalErr)
			assert.Equal(t, tt.member, marshalErr.Member)
		})
	}
}

func TestValidateNilInput(t *testing.T) {
	assert.NoError(t, Validate(nil, nil, nil))
	assert.Error(t, Validate(nil, nil, map[string]any{"x": 1}))
}
