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

package toolfacade

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/conductor-synth/internal/synth"
)

// StartSynthesisArgs is the start_synthesis tool's JSON argument shape.
type StartSynthesisArgs struct {
	SessionID       string  `json:"session_id,omitempty"`
	VerilogFiles    any     `json:"verilog_files"`
	TopModule       string  `json:"top_module"`
	Platform        string  `json:"platform"`
	ClockPeriodNs   float64 `json:"clock_period_ns"`
	Utilization     float64 `json:"utilization"`
	AspectRatio     float64 `json:"aspect_ratio"`
	CoreMargin      float64 `json:"core_margin"`
	TimeoutSec      int     `json:"timeout_sec"`
	RunEquiv        bool    `json:"run_equiv"`
	ConstraintsMode string  `json:"constraints_mode,omitempty"`
}

// StartSynthesis implements the start_synthesis tool: normalize
// verilog_files, resolve the workspace, submit to the synthesis job
// manager, and return {job_id, run_id, status, stage, timeout_sec} as
// JSON.
func (f *Facade) StartSynthesis(ctx context.Context, args StartSynthesisArgs) string {
	if f.tracer != nil {
		var span trace.Span
		ctx, span = f.tracer.StartTool(ctx, "start_synthesis")
		defer span.End()
	}
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}

		files := NormalizeFileList(args.VerilogFiles)
		if err := validateWorkspacePaths(workspace, files); err != nil {
			return nil, err
		}
		res, err := f.synthMgr.Start(ctx, synth.StartParams{
			Workspace:       workspace,
			VerilogFiles:    files,
			TopModule:       args.TopModule,
			Platform:        args.Platform,
			ClockPeriodNs:   args.ClockPeriodNs,
			Utilization:     args.Utilization,
			AspectRatio:     args.AspectRatio,
			CoreMargin:      args.CoreMargin,
			TimeoutSec:      args.TimeoutSec,
			RunEquiv:        args.RunEquiv,
			ConstraintsMode: args.ConstraintsMode,
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// GetSynthesisStatus implements get_synthesis_status: poll a job's status,
// applying the manager's rate limit/backoff/recovery semantics.
func (f *Facade) GetSynthesisStatus(ctx context.Context, sessionID, jobID string) string {
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return f.synthMgr.GetStatus(ctx, jobID, workspace)
	})
}

// WaitSynthesis implements wait_synthesis, a bounded synchronous wrapper
// over polling.
func (f *Facade) WaitSynthesis(ctx context.Context, sessionID, jobID string, maxWaitSec, pollIntervalSec int) string {
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return f.synthMgr.Wait(ctx, jobID, workspace, maxWaitSec, pollIntervalSec)
	})
}

// GetSynthesisMetrics implements get_synthesis_metrics. An empty runID
// resolves to the workspace's LATEST run.
func (f *Facade) GetSynthesisMetrics(ctx context.Context, sessionID, runID string) string {
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return f.synthMgr.Metrics(ctx, workspace, runID)
	})
}
