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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// invocationsTotal tracks completed invocations by outcome
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awsapi_invocations_total",
			Help: "Total invocations by service, operation, and outcome",
		},
		[]string{"service", "operation", "outcome"},
	)

	// retriesTotal tracks retried attempts
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awsapi_retries_total",
			Help: "Total retried attempts by service and operation",
		},
		[]string{"service", "operation"},
	)

	// anomaliesTotal tracks anomalies by category
	anomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awsapi_anomalies_total",
			Help: "Total anomalies by service, operation, and category",
		},
		[]string{"service", "operation", "category"},
	)

	// attemptDuration tracks per-attempt wall time
	attemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "awsapi_attempt_duration_seconds",
			Help:    "Duration of individual invocation attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
)
