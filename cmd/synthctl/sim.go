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

package main

import (
	"github.com/spf13/cobra"

	"github.com/tombee/conductor-synth/internal/toolfacade"
)

func newSimCommand(build facadeBuilder) *cobra.Command {
	var (
		sessionID   string
		sourceFiles []string
		topModule   string
		mode        string
		runID       string
		netlistFile string
		platform    string
		passMarker  string
		simProfile  string
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Compile and run a testbench against RTL or a synthesized netlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			files := make([]any, len(sourceFiles))
			for i, v := range sourceFiles {
				files[i] = v
			}
			result := f.RunSimulation(cmd.Context(), toolfacade.SimulationArgs{
				SessionID:   sessionID,
				SourceFiles: files,
				TopModule:   topModule,
				Mode:        mode,
				RunID:       runID,
				NetlistFile: netlistFile,
				Platform:    platform,
				PassMarker:  passMarker,
				SimProfile:  simProfile,
			})
			return printResult(cmd, result)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session to run in (default: active session)")
	cmd.Flags().StringArrayVar(&sourceFiles, "file", nil, "testbench/source file (repeatable)")
	cmd.Flags().StringVar(&topModule, "top", "", "top-level module name")
	cmd.Flags().StringVar(&mode, "mode", "rtl", "rtl or post_synth")
	cmd.Flags().StringVar(&runID, "run-id", "", "synthesis run to pull netlist/platform from in post_synth mode")
	cmd.Flags().StringVar(&netlistFile, "netlist-file", "", "explicit netlist path, overriding --run-id's lookup")
	cmd.Flags().StringVar(&platform, "platform", "", "standard-cell platform, overriding --run-id's lookup")
	cmd.Flags().StringVar(&passMarker, "pass-marker", "", "exact substring that marks a passing run (default: TEST PASSED)")
	cmd.Flags().StringVar(&simProfile, "sim-profile", "auto", "auto, pinned, or compat")

	return cmd
}
