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

	"github.com/tombee/conductor-synth/internal/simrun"
	"github.com/tombee/conductor-synth/internal/synth"
)

// SimulationArgs is the simulation_tool argument shape.
type SimulationArgs struct {
	SessionID   string `json:"session_id,omitempty"`
	SourceFiles any    `json:"source_files"`
	TopModule   string `json:"top_module"`
	Mode        string `json:"mode"` // "rtl" | "post_synth"
	RunID       string `json:"run_id,omitempty"`
	NetlistFile string `json:"netlist_file,omitempty"`
	Platform    string `json:"platform,omitempty"`
	PassMarker  string `json:"pass_marker,omitempty"`
	SimProfile  string `json:"sim_profile,omitempty"` // "auto" | "pinned" | "compat"
}

// RunSimulation implements simulation_tool: build a simrun.Pipeline bound
// to the resolved workspace and run the two-phase compile/run contract. A
// simulation outcome is never an error — only façade-level problems (bad
// session, normalization failure) are — matching simrun.Pipeline.Run's own
// "always returns a Result" contract.
func (f *Facade) RunSimulation(ctx context.Context, args SimulationArgs) string {
	if f.tracer != nil {
		var span trace.Span
		ctx, span = f.tracer.StartSimulation(ctx, args.Mode, args.SimProfile)
		defer span.End()
	}
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}

		sourceFiles := NormalizeFileList(args.SourceFiles)
		if err := validateWorkspacePaths(workspace, sourceFiles); err != nil {
			return nil, err
		}
		if args.NetlistFile != "" {
			if err := validateWorkspacePath(workspace, args.NetlistFile); err != nil {
				return nil, err
			}
		}

		pipeline := simrun.New(f.flow, f.stdcells, f.cfg, synth.NewRunMetaReader(workspace))

		req := simrun.Request{
			SourceFiles: sourceFiles,
			TopModule:   args.TopModule,
			Mode:        simrun.Mode(args.Mode),
			RunID:       args.RunID,
			NetlistFile: args.NetlistFile,
			Platform:    args.Platform,
			PassMarker:  args.PassMarker,
			SimProfile:  simrun.Profile(args.SimProfile),
		}
		return pipeline.Run(ctx, workspace, req)
	})
}
