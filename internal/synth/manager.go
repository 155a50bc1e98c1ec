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

package synth

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tombee/conductor-synth/internal/config"
	"github.com/tombee/conductor-synth/internal/errs"
	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// MetricsRecorder receives observability events the Prometheus collectors
// in internal/metrics implement; nil is a valid value (a no-op Manager).
type MetricsRecorder interface {
	RecordJobStart()
	RecordJobComplete(status synthtypes.RunStatus, elapsed time.Duration)
	RecordGuardrail(name string, status synthtypes.GuardrailStatus)
	RecordPoll(rateLimited bool)
	SetQueueDepth(n int)
}

// job is the in-process asynchronous task state backing one submitted
// synthesis run.
type job struct {
	id        string
	workspace string
	runID     string
	runDir    string
	createdAt time.Time

	done chan struct{}

	mu           sync.Mutex
	terminal     *synthtypes.StatusResponse
	lastPoll     *synthtypes.StatusResponse
	lastPollAt   time.Time
	backoffCount int
}

// Manager is the synthesis job manager. It owns the in-process job map,
// the bounded worker pool, and the docker/equivalence collaborators every
// submitted run drives.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	flowRunner   procdriver.Runner // direct exec runner for iverilog/yosys-adjacent tools
	docker       *procdriver.DockerRunner
	dockerRunner procdriver.Runner // the Runner the DockerRunner shells out through
	equiv        EquivChecker

	sem  chan struct{}
	mu   sync.Mutex
	jobs map[string]*job

	metrics MetricsRecorder
}

// New builds a Manager. flowRunner is held for plain exec calls, though no
// pipeline step invokes it (the equivalence checker carries its own Runner);
// dockerRunner drives the containerized ORFS flow via docker.
func New(cfg *config.Config, logger *slog.Logger, flowRunner, dockerRunner procdriver.Runner, equiv EquivChecker, recorder MetricsRecorder) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Manager{
		cfg:          cfg,
		logger:       logger,
		flowRunner:   flowRunner,
		docker:       procdriver.NewDockerRunner(cfg.DockerBinary, cfg.DockerImage),
		dockerRunner: dockerRunner,
		equiv:        equiv,
		sem:          make(chan struct{}, cfg.WorkerPoolSize),
		jobs:         make(map[string]*job),
		metrics:      recorder,
	}
}

// StartParams is the input contract for Start.
type StartParams struct {
	Workspace       string
	VerilogFiles    []string
	TopModule       string
	Platform        string
	ClockPeriodNs   float64
	Utilization     float64
	AspectRatio     float64
	CoreMargin      float64
	TimeoutSec      int
	RunEquiv        bool
	ConstraintsMode string // strict | auto | bypass, defaults to "auto"
}

// StartResult is what Start returns to the caller immediately, before any
// worker has run.
type StartResult struct {
	JobID      string               `json:"job_id"`
	RunID      string               `json:"run_id"`
	Status     synthtypes.RunStatus `json:"status"`
	Stage      string               `json:"stage"`
	TimeoutSec int                  `json:"timeout_sec"`
}

// Start allocates the run, clamps the timeout, submits the job to the
// bounded worker pool, records the index, and returns immediately without
// waiting on the worker.
func (m *Manager) Start(ctx context.Context, p StartParams) (StartResult, error) {
	if p.Workspace == "" {
		return StartResult{}, &errs.ValidationError{Field: "workspace", Message: "workspace is required"}
	}
	if p.TopModule == "" {
		return StartResult{}, &errs.ValidationError{Field: "top_module", Message: "top_module is required"}
	}
	if len(p.VerilogFiles) == 0 {
		return StartResult{}, &errs.ValidationError{Field: "verilog_files", Message: "at least one verilog file is required"}
	}
	if p.ConstraintsMode == "" {
		p.ConstraintsMode = "auto"
	}

	runID, runDir, err := allocateRunID(p.Workspace)
	if err != nil {
		return StartResult{}, err
	}

	timeout := m.cfg.ClampSynthTimeout(p.TimeoutSec)
	jobID := randomJobID()

	j := &job{
		id:        jobID,
		workspace: p.Workspace,
		runID:     runID,
		runDir:    runDir,
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[jobID] = j
	queueDepth := len(m.jobs)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetQueueDepth(queueDepth)
	}

	initialMeta := synthtypes.RunMeta{
		RunID:           runID,
		JobID:           jobID,
		CreatedAt:       j.createdAt.Format(time.RFC3339),
		Status:          synthtypes.RunRunning,
		Platform:        p.Platform,
		TopModule:       p.TopModule,
		InputFiles:      baseNames(p.VerilogFiles),
		ClockPeriodNs:   p.ClockPeriodNs,
		ConstraintsMode: p.ConstraintsMode,
	}
	if err := writeRunMeta(runDir, initialMeta); err != nil {
		return StartResult{}, errs.Wrap(err, "writing initial run_meta.json")
	}
	if err := appendIndex(p.Workspace, runID, jobID, synthtypes.RunRunning); err != nil {
		return StartResult{}, err
	}

	if m.metrics != nil {
		m.metrics.RecordJobStart()
	}

	go m.runWorker(j, p, timeout)

	return StartResult{JobID: jobID, RunID: runID, Status: synthtypes.RunQueued, Stage: "unknown", TimeoutSec: timeout}, nil
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

// runWorker acquires a worker-pool slot, blocking until one frees, then
// drives the pipeline.
func (m *Manager) runWorker(j *job, p StartParams, timeout int) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	start := time.Now()
	final := m.executePipeline(ctx, j, p, timeout)
	elapsed := time.Since(start)

	j.mu.Lock()
	j.terminal = &final
	j.mu.Unlock()
	close(j.done)

	if m.metrics != nil {
		m.metrics.RecordJobComplete(final.Status, elapsed)
	}

	m.mu.Lock()
	depth := len(m.jobs)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetQueueDepth(depth)
	}
}

// ensureRunDirs creates the well-known run subdirectories ahead of Step A.
func ensureRunDirs(runDir string) error {
	for _, d := range []string{"inputs", "orfs_results", "orfs_logs", "orfs_reports"} {
		if err := os.MkdirAll(filepath.Join(runDir, d), 0o755); err != nil {
			return err
		}
	}
	return nil
}
