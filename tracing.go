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

package awsapi

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/green-labs/aws-api"

// startInvokeSpan opens the span covering a full invocation, retries
// included.
func startInvokeSpan(ctx context.Context, service, region, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "awsapi.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", operation),
			attribute.String("cloud.region", region),
		),
	)
}

// recordAttempt marks one attempt on the invocation span.
func recordAttempt(span trace.Span, attempt, status int) {
	span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Int("http.status_code", status),
	))
}

// endInvokeSpan closes the span, recording the terminal error if any.
func endInvokeSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
