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

package query

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/anomaly"
	"github.com/green-labs/aws-api/pkg/api"
)

const queueDescriptor = `{
  "metadata": {
    "apiVersion": "2012-11-05",
    "endpointPrefix": "sqs",
    "protocol": "query",
    "serviceId": "SQS"
  },
  "operations": {
    "CreateQueue": {
      "name": "CreateQueue",
      "http": {"method": "POST", "requestUri": "/"},
      "input": {"shape": "CreateQueueRequest"},
      "output": {"shape": "CreateQueueResult", "resultWrapper": "CreateQueueResult"}
    },
    "ListQueues": {
      "name": "ListQueues",
      "http": {"method": "POST", "requestUri": "/"},
      "input": {"shape": "ListQueuesRequest"},
      "output": {"shape": "ListQueuesResult", "resultWrapper": "ListQueuesResult"}
    }
  },
  "shapes": {
    "CreateQueueRequest": {
      "type": "structure",
      "required": ["QueueName"],
      "members": {
        "QueueName": {"shape": "String"},
        "Tags": {"shape": "TagMap", "locationName": "Tag"}
      }
    },
    "CreateQueueResult": {
      "type": "structure",
      "members": {
        "QueueUrl": {"shape": "String"}
      }
    },
    "ListQueuesRequest": {
      "type": "structure",
      "members": {
        "QueueNamePrefix": {"shape": "String"}
      }
    },
    "ListQueuesResult": {
      "type": "structure",
      "members": {
        "QueueUrls": {"shape": "QueueUrlList", "flattened": true, "locationName": "QueueUrl"}
      }
    },
    "QueueUrlList": {
      "type": "list",
      "member": {"shape": "String"}
    },
    "TagMap": {
      "type": "map",
      "key": {"shape": "String", "locationName": "Key"},
      "value": {"shape": "String", "locationName": "Value"},
      "flattened": true
    },
    "String": {"type": "string"}
  }
}`

func newQueryFixture(t *testing.T) (*codec, *api.ServiceDescriptor, *api.Registry) {
	t.Helper()
	desc, err := api.Load([]byte(queueDescriptor))
	require.NoError(t, err)
	return newCodec(desc, protocol.Options{}, false), desc, api.NewRegistry(desc.Shapes)
}

func TestMarshalFormBody(t *testing.T) {
	c, desc, reg := newQueryFixture(t)
	op := desc.Operations["CreateQueue"]

	req, err := c.Marshal(op, reg, map[string]any{
		"QueueName": "jobs",
		"Tags":      map[string]any{"team": "platform"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/", req.Path)
	assert.Equal(t, "application/x-www-form-urlencoded; charset=utf-8", req.Headers.Get("Content-Type"))

	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "CreateQueue", form.Get("Action"))
	assert.Equal(t, "2012-11-05", form.Get("Version"))
	assert.Equal(t, "jobs", form.Get("QueueName"))
	assert.Equal(t, "team", form.Get("Tag.1.Key"))
	assert.Equal(t, "platform", form.Get("Tag.1.Value"))
}

func TestMarshalMissingRequired(t *testing.T) {
	c, desc, reg := newQueryFixture(t)
	op := desc.Operations["CreateQueue"]

	_, err := c.Marshal(op, reg, map[string]any{})
	var marshalErr *api.MarshalError
	require.ErrorAs(t, err, &marshalErr)
	assert.Equal(t, "QueueName", marshalErr.Member)
}

func TestUnmarshalResultWrapper(t *testing.T) {
	c, desc, reg := newQueryFixture(t)
	op := desc.Operations["CreateQueue"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body: []byte(`<CreateQueueResponse>
  <CreateQueueResult>
    <QueueUrl>https://sqs.us-east-1.amazonaws.com/1234/jobs</QueueUrl>
  </CreateQueueResult>
  <ResponseMetadata><RequestId>req-q1</RequestId></ResponseMetadata>
</CreateQueueResponse>`),
	}
	result, a := c.Unmarshal(op, reg, resp)
	require.Nil(t, a)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1234/jobs", result["QueueUrl"])
}

func TestUnmarshalFlattenedList(t *testing.T) {
	c, desc, reg := newQueryFixture(t)
	op := desc.Operations["ListQueues"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body: []byte(`<ListQueuesResponse>
  <ListQueuesResult>
    <QueueUrl>https://sqs.us-east-1.amazonaws.com/1234/a</QueueUrl>
    <QueueUrl>https://sqs.us-east-1.amazonaws.com/1234/b</QueueUrl>
  </ListQueuesResult>
</ListQueuesResponse>`),
	}
	result, a := c.Unmarshal(op, reg, resp)
	require.Nil(t, a)

	urls, ok := result["QueueUrls"].([]any)
	require.True(t, ok)
	assert.Len(t, urls, 2)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1234/a", urls[0])
}

func TestUnmarshalErrorEnvelope(t *testing.T) {
	c, desc, reg := newQueryFixture(t)
	op := desc.Operations["CreateQueue"]

	resp := &transport.Response{
		StatusCode: 400,
		Headers:    http.Header{},
		Body: []byte(`<ErrorResponse>
  <Error>
    <Type>Sender</Type>
    <Code>QueueAlreadyExists</Code>
    <Message>A queue with this name already exists.</Message>
  </Error>
  <RequestId>req-q2</RequestId>
</ErrorResponse>`),
	}
	_, a := c.Unmarshal(op, reg, resp)
	require.NotNil(t, a)
	assert.Equal(t, anomaly.CategoryIncorrect, a.Category)
	assert.Equal(t, "QueueAlreadyExists", a.ErrorCode)
	assert.Equal(t, "A queue with this name already exists.", a.Message)
	assert.Equal(t, "req-q2", a.RequestID)
}

func TestUnmarshalErrorEnvelopeOn200(t *testing.T) {
	c, desc, reg := newQueryFixture(t)
	op := desc.Operations["CreateQueue"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte(`<ErrorResponse><Error><Code>InternalError</Code><Message>oops</Message></Error></ErrorResponse>`),
	}
	_, a := c.Unmarshal(op, reg, resp)
	require.NotNil(t, a)
	assert.Equal(t, "InternalError", a.ErrorCode)
}

func TestUnmarshalThrottleIsBusy(t *testing.T) {
	c, desc, reg := newQueryFixture(t)
	op := desc.Operations["CreateQueue"]

	resp := &transport.Response{
		StatusCode: 403,
		Headers:    http.Header{},
		Body:       []byte(`<ErrorResponse><Error><Code>Throttling</Code><Message>Rate exceeded</Message></Error></ErrorResponse>`),
	}
	_, a := c.Unmarshal(op, reg, resp)
	require.NotNil(t, a)
	assert.Equal(t, anomaly.CategoryBusy, a.Category)
}

const instancesDescriptor = `{
  "metadata": {
    "apiVersion": "2016-11-15",
    "endpointPrefix": "ec2",
    "protocol": "ec2",
    "serviceId": "EC2"
  },
  "operations": {
    "DescribeInstances": {
      "name": "DescribeInstances",
      "http": {"method": "POST", "requestUri": "/"},
      "input": {"shape": "DescribeInstancesRequest"},
      "output": {"shape": "DescribeInstancesResult"}
    }
  },
  "shapes": {
    "DescribeInstancesRequest": {
      "type": "structure",
      "members": {
        "InstanceIds": {"shape": "InstanceIdList", "locationName": "instanceId"}
      }
    },
    "DescribeInstancesResult": {
      "type": "structure",
      "members": {
        "Reservations": {"shape": "ReservationList", "locationName": "reservationSet"}
      }
    },
    "ReservationList": {
      "type": "list",
      "member": {"shape": "Reservation", "locationName": "item"}
    },
    "Reservation": {
      "type": "structure",
      "members": {
        "ReservationId": {"shape": "String", "locationName": "reservationId"}
      }
    },
    "InstanceIdList": {
      "type": "list",
      "member": {"shape": "String"}
    },
    "String": {"type": "string"}
  }
}`

func TestEC2Marshal(t *testing.T) {
	desc, err := api.Load([]byte(instancesDescriptor))
	require.NoError(t, err)
	c := newCodec(desc, protocol.Options{}, true)
	reg := api.NewRegistry(desc.Shapes)
	op := desc.Operations["DescribeInstances"]

	req, err := c.Marshal(op, reg, map[string]any{
		"InstanceIds": []any{"i-111", "i-222"},
	})
	require.NoError(t, err)

	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "DescribeInstances", form.Get("Action"))
	// ec2 upper-cases the first letter of locationName and never nests
	// lists under ".member".
	assert.Equal(t, "i-111", form.Get("InstanceId.1"))
	assert.Equal(t, "i-222", form.Get("InstanceId.2"))
}

func TestEC2UnmarshalNoWrapper(t *testing.T) {
	desc, err := api.Load([]byte(instancesDescriptor))
	require.NoError(t, err)
	c := newCodec(desc, protocol.Options{}, true)
	reg := api.NewRegistry(desc.Shapes)
	op := desc.Operations["DescribeInstances"]

	resp := &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body: []byte(`<DescribeInstancesResponse>
  <requestId>req-e1</requestId>
  <reservationSet>
    <item><reservationId>r-1</reservationId></item>
    <item><reservationId>r-2</reservationId></item>
  </reservationSet>
</DescribeInstancesResponse>`),
	}
	result, a := c.Unmarshal(op, reg, resp)
	require.Nil(t, a)

	reservations, ok := result["Reservations"].([]any)
	require.True(t, ok)
	require.Len(t, reservations, 2)
	first := reservations[0].(map[string]any)
	assert.Equal(t, "r-1", first["ReservationId"])
}

func TestEC2UnmarshalErrorEnvelope(t *testing.T) {
	desc, err := api.Load([]byte(instancesDescriptor))
	require.NoError(t, err)
	c := newCodec(desc, protocol.Options{}, true)
	reg := api.NewRegistry(desc.Shapes)
	op := desc.Operations["DescribeInstances"]

	resp := &transport.Response{
		StatusCode: 400,
		Headers:    http.Header{},
		Body: []byte(`<Response>
  <Errors>
    <Error>
      <Code>InvalidInstanceID.NotFound</Code>
      <Message>The instance ID 'i-404' does not exist</Message>
    </Error>
  </Errors>
  <RequestID>req-e2</RequestID>
</Response>`),
	}
	_, a := c.Unmarshal(op, reg, resp)
	require.NotNil(t, a)
	assert.Equal(t, "InvalidInstanceID.NotFound", a.ErrorCode)
	assert.Equal(t, "req-e2", a.RequestID)
	assert.Equal(t, anomaly.CategoryIncorrect, a.Category)
}
