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

func newSynthCommand(build facadeBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Start and inspect synthesis jobs",
	}

	var (
		sessionID       string
		verilogFiles    []string
		topModule       string
		platform        string
		clockPeriodNs   float64
		utilization     float64
		aspectRatio     float64
		coreMargin      float64
		timeoutSec      int
		runEquiv        bool
		constraintsMode string
	)
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start an asynchronous synthesis job",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			files := make([]any, len(verilogFiles))
			for i, v := range verilogFiles {
				files[i] = v
			}
			result := f.StartSynthesis(cmd.Context(), toolfacade.StartSynthesisArgs{
				SessionID:       sessionID,
				VerilogFiles:    files,
				TopModule:       topModule,
				Platform:        platform,
				ClockPeriodNs:   clockPeriodNs,
				Utilization:     utilization,
				AspectRatio:     aspectRatio,
				CoreMargin:      coreMargin,
				TimeoutSec:      timeoutSec,
				RunEquiv:        runEquiv,
				ConstraintsMode: constraintsMode,
			})
			return printResult(cmd, result)
		},
	}
	startCmd.Flags().StringVar(&sessionID, "session", "", "session to run in (default: active session)")
	startCmd.Flags().StringArrayVar(&verilogFiles, "file", nil, "Verilog source file (repeatable)")
	startCmd.Flags().StringVar(&topModule, "top", "", "top-level module name")
	startCmd.Flags().StringVar(&platform, "platform", "", "standard-cell platform: asap7 or sky130hd")
	startCmd.Flags().Float64Var(&clockPeriodNs, "clock-period-ns", 0, "target clock period in nanoseconds")
	startCmd.Flags().Float64Var(&utilization, "utilization", 0, "target core utilization fraction")
	startCmd.Flags().Float64Var(&aspectRatio, "aspect-ratio", 0, "core aspect ratio")
	startCmd.Flags().Float64Var(&coreMargin, "core-margin", 0, "core-to-die margin in microns")
	startCmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "job timeout in seconds")
	startCmd.Flags().BoolVar(&runEquiv, "run-equiv", false, "run equivalence checking after synthesis")
	startCmd.Flags().StringVar(&constraintsMode, "constraints-mode", "", "SDC generation mode")

	var statusSession string
	statusCmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Poll a synthesis job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.GetSynthesisStatus(cmd.Context(), statusSession, args[0]))
		},
	}
	statusCmd.Flags().StringVar(&statusSession, "session", "", "session to resolve the job against")

	var waitSession string
	var maxWaitSec, pollIntervalSec int
	waitCmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Block until a synthesis job finishes or the wait window elapses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.WaitSynthesis(cmd.Context(), waitSession, args[0], maxWaitSec, pollIntervalSec))
		},
	}
	waitCmd.Flags().StringVar(&waitSession, "session", "", "session to resolve the job against")
	waitCmd.Flags().IntVar(&maxWaitSec, "max-wait-sec", 60, "maximum seconds to block")
	waitCmd.Flags().IntVar(&pollIntervalSec, "poll-interval-sec", 2, "seconds between internal polls")

	var metricsSession string
	metricsCmd := &cobra.Command{
		Use:   "metrics [run-id]",
		Short: "Show QoR metrics and guardrail results for a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return printResult(cmd, f.GetSynthesisMetrics(cmd.Context(), metricsSession, runID))
		},
	}
	metricsCmd.Flags().StringVar(&metricsSession, "session", "", "session to resolve the run against")

	cmd.AddCommand(startCmd, statusCmd, waitCmd, metricsCmd)
	return cmd
}
