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

// Package awsapi is a data-driven client for AWS-style services. A client
// is built from a service descriptor document rather than generated code:
// operations are invoked by name with plain map parameters, and results
// come back as plain maps shaped by the descriptor.
//
//	desc, err := api.LoadFile("dynamodb-2012-08-10.json")
//	client, err := awsapi.New(awsapi.Config{
//		API:         desc,
//		Region:      "us-east-1",
//		Credentials: credentials.NewCachedProvider(&credentials.EnvProvider{}),
//	})
//	out, err := client.Invoke(ctx, "GetItem", map[string]any{
//		"TableName": "books",
//		"Key":       map[string]any{"isbn": map[string]any{"S": "0-306-40615-2"}},
//	})
//
// Failures carry a small set of anomaly categories so callers can branch
// on the kind of failure rather than on service-specific error codes; the
// transient categories retry automatically with exponential backoff.
package awsapi
