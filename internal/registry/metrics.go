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

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runbooksLoaded tracks the size of the published catalog
	runbooksLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opspilot_registry_runbooks",
			Help: "Number of use case definitions in the current catalog",
		},
	)

	// reloadsTotal tracks catalog rebuilds by result
	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opspilot_registry_reloads_total",
			Help: "Total runbook reloads by result",
		},
		[]string{"result"},
	)

	// invalidDefinitions tracks definitions and files skipped during loading
	invalidDefinitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opspilot_registry_invalid_definitions_total",
			Help: "Total runbook files or definitions skipped as invalid",
		},
	)

	// watchEvents tracks filesystem events seen by the watcher
	watchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opspilot_registry_watch_events_total",
			Help: "Total file events received by the runbook watcher by event type",
		},
		[]string{"event_type"},
	)

	// watchErrors tracks watcher errors
	watchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opspilot_registry_watch_errors_total",
			Help: "Total errors reported by the runbook watcher",
		},
	)
)
