// Copyright 2025 Tom Barlow
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

package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// executionsTotal tracks step executions by outcome
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opspilot_step_executions_total",
			Help: "Total step executions by task id, method and outcome",
		},
		[]string{"task_id", "method", "outcome"},
	)

	// executionSeconds tracks step execution latency
	executionSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opspilot_step_execution_seconds",
			Help:    "Step execution duration in seconds by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// rateLimitWaitSeconds tracks time spent waiting for a service's rate limiter
	rateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opspilot_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the downstream rate limiter",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"service"},
	)
)

func recordExecution(taskID, method string, success bool, seconds float64) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	executionsTotal.WithLabelValues(taskID, method, outcome).Inc()
	executionSeconds.WithLabelValues(method).Observe(seconds)
}
