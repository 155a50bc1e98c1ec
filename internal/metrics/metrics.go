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

// Package metrics collects the prometheus counters and gauges the
// synthesis job manager emits: job lifecycle, guardrail outcomes, poll
// calls, rate-limit hits, and queue depth.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conductor_synth_jobs_started_total",
		Help: "Total synthesis jobs submitted to the worker pool.",
	})

	jobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_synth_jobs_completed_total",
			Help: "Total synthesis jobs reaching a terminal state, by status.",
		},
		[]string{"status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conductor_synth_job_duration_seconds",
			Help:    "Synthesis job wall-clock duration by terminal status.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"status"},
	)

	guardrailOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_synth_guardrail_outcomes_total",
			Help: "Guardrail check outcomes by guardrail name and status.",
		},
		[]string{"guardrail", "status"},
	)

	pollCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_synth_poll_calls_total",
			Help: "Status poll calls, split by whether the caller was rate limited.",
		},
		[]string{"rate_limited"},
	)

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conductor_synth_queue_depth",
		Help: "Number of synthesis jobs currently tracked in the in-process job map.",
	})
)

// Collector implements synth.MetricsRecorder against the package-level
// prometheus collectors above. The zero value is ready to use; it exists so
// the synth package depends on an interface rather than this package
// directly.
type Collector struct{}

// New returns a ready-to-use Collector.
func New() *Collector { return &Collector{} }

func (c *Collector) RecordJobStart() {
	jobsStarted.Inc()
}

func (c *Collector) RecordJobComplete(status synthtypes.RunStatus, elapsed time.Duration) {
	jobsCompleted.WithLabelValues(string(status)).Inc()
	jobDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (c *Collector) RecordGuardrail(name string, status synthtypes.GuardrailStatus) {
	guardrailOutcomes.WithLabelValues(name, string(status)).Inc()
}

func (c *Collector) RecordPoll(rateLimited bool) {
	label := "false"
	if rateLimited {
		label = "true"
	}
	pollCalls.WithLabelValues(label).Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
