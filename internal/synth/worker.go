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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tombee/conductor-synth/internal/log"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// executePipeline drives the worker pipeline for one job — copy inputs,
// constraints guardrail, containerized flow, signoff, netlist location,
// optional equivalence, metric extraction, terminal state — and returns the
// terminal StatusResponse. It is the single writer for the run's
// run_meta.json and always leaves the run index consistent before
// returning.
func (m *Manager) executePipeline(ctx context.Context, j *job, p StartParams, timeoutSec int) synthtypes.StatusResponse {
	logger := m.logger.With(log.RunIDKey, j.runID, log.JobIDKey, j.id)
	start := time.Now()

	meta, err := readRunMeta(j.runDir)
	if err != nil {
		meta = synthtypes.RunMeta{RunID: j.runID, JobID: j.id, Status: synthtypes.RunRunning}
	}

	fail := func(notes string) synthtypes.StatusResponse {
		return m.finish(j, &meta, synthtypes.RunFailed, notes, start)
	}

	if err := ensureRunDirs(j.runDir); err != nil {
		return fail("failed to prepare run directory: " + err.Error())
	}

	// Step A - copy inputs.
	if err := copyInputs(j.runDir, p.VerilogFiles); err != nil {
		return fail("failed to copy input files: " + err.Error())
	}

	// Step B - constraints guardrail.
	constraints := m.checkConstraints(p.Workspace, p.TopModule, p.ClockPeriodNs, p.ConstraintsMode)
	if m.metrics != nil {
		m.metrics.RecordGuardrail("constraints", constraints.Status)
	}
	meta.AutoChecks.Constraints = constraints.Status
	meta.CheckNotes = constraints.Notes
	if constraints.SpecModule != "" {
		meta.CheckNotes = fmt.Sprintf("%s (spec module %s)", constraints.Notes, constraints.SpecModule)
	}
	writeRunMeta(j.runDir, meta)

	if constraints.Status != synthtypes.GuardrailPass {
		logger.Warn("constraints guardrail failed", "notes", constraints.Notes)
		return fail(constraints.Notes)
	}

	sdcPath := filepath.Join(j.runDir, "constraints.sdc")
	if err := os.WriteFile(sdcPath, []byte(constraints.SDC), 0o644); err != nil {
		return fail("failed to write constraints.sdc: " + err.Error())
	}

	// Step C - run the containerized flow.
	containerInputs := make([]string, len(p.VerilogFiles))
	for i, f := range p.VerilogFiles {
		containerInputs[i] = "/workspace/inputs/" + filepath.Base(f)
	}
	if err := writeConfigMk(j.runDir, p, containerInputs); err != nil {
		return fail("failed to write config.mk: " + err.Error())
	}

	mounts := map[string]string{
		filepath.Join(j.runDir, "inputs"):          "/workspace/inputs",
		filepath.Join(j.runDir, "orfs_results"):    "/workspace/results",
		filepath.Join(j.runDir, "orfs_logs"):       "/workspace/logs",
		filepath.Join(j.runDir, "orfs_reports"):    "/workspace/reports",
		filepath.Join(j.runDir, "config.mk"):       "/workspace/config.mk",
		filepath.Join(j.runDir, "constraints.sdc"): "/workspace/constraints.sdc",
	}
	flowCmd := "make -f /workspace/config.mk"
	flowRes, err := m.docker.RunFlow(ctx, m.dockerRunner, j.runDir, "/workspace", mounts, flowCmd, time.Duration(timeoutSec)*time.Second)
	if err != nil {
		return fail("ORFS flow invocation error: " + err.Error())
	}
	meta.DockerSuccess = &flowRes.Success
	meta.DockerCommand = flowRes.Command
	meta.DockerStdoutTail = lastNChars(flowRes.Stdout, 2000)
	meta.DockerStderrTail = lastNChars(flowRes.Stderr, 2000)
	writeRunMeta(j.runDir, meta)

	// Step D - signoff guardrail.
	signoffStatus, signoffNote := m.checkSignoff(j.runDir, flowRes)
	if m.metrics != nil {
		m.metrics.RecordGuardrail("signoff", signoffStatus)
	}
	meta.AutoChecks.Signoff = signoffStatus
	if signoffNote != "" {
		meta.CheckNotes = signoffNote
	}
	writeRunMeta(j.runDir, meta)

	// Step E - netlist location (attempted regardless of signoff, so
	// partial runs still surface whatever was produced).
	netlistPath, found := locateNetlist(j.runDir, p.TopModule)
	if found {
		meta.NetlistPath = netlistPath
	}
	writeRunMeta(j.runDir, meta)

	// Step F - equivalence guardrail, optional.
	meta.AutoChecks.Equiv = synthtypes.GuardrailSkip
	if p.RunEquiv {
		if m.equiv == nil || !m.equiv.Available(ctx) {
			meta.AutoChecks.Equiv = synthtypes.GuardrailSkip
			meta.EquivNote = "no equivalence checker available"
		} else if !found {
			meta.AutoChecks.Equiv = synthtypes.GuardrailFail
			meta.EquivNote = "no gate netlist located to compare against golden inputs"
		} else {
			status, note := m.equiv.Check(ctx, j.runDir, p.VerilogFiles, netlistPath, p.TopModule, time.Duration(timeoutSec)*time.Second)
			meta.AutoChecks.Equiv = status
			meta.EquivNote = note
		}
	}
	if m.metrics != nil {
		m.metrics.RecordGuardrail("equiv", meta.AutoChecks.Equiv)
	}
	writeRunMeta(j.runDir, meta)

	// Step G - metric extraction.
	metricsResp := extractMetrics(j.runDir)
	meta.SummaryMetrics = &metricsResp.Metrics
	writeRunMeta(j.runDir, meta)

	// Step H - terminal state.
	terminalStatus := synthtypes.RunFailed
	if flowRes.Success && meta.AutoChecks.Constraints == synthtypes.GuardrailPass &&
		meta.AutoChecks.Signoff == synthtypes.GuardrailPass && meta.AutoChecks.Equiv != synthtypes.GuardrailFail {
		terminalStatus = synthtypes.RunCompleted
	}

	notes := meta.CheckNotes
	if terminalStatus == synthtypes.RunCompleted && notes == "" {
		notes = "synthesis completed"
	}
	return m.finish(j, &meta, terminalStatus, notes, start)
}

// finish writes the terminal run_meta.json, updates the index/LATEST, and
// builds the StatusResponse returned to the caller (directly or via a later
// poll).
func (m *Manager) finish(j *job, meta *synthtypes.RunMeta, status synthtypes.RunStatus, notes string, start time.Time) synthtypes.StatusResponse {
	elapsed := time.Since(start)
	meta.Status = status
	meta.CheckNotes = notes
	meta.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	meta.ElapsedSec = elapsed.Seconds()
	if status == synthtypes.RunCompleted {
		meta.NextAction = "Use search-logs for detailed PPA/error verification"
	} else {
		meta.NextAction = "fix RTL/constraints and rerun"
	}

	writeRunMeta(j.runDir, *meta)
	appendIndex(j.workspace, j.runID, j.id, status)

	resp := synthtypes.StatusResponse{
		JobID:          j.id,
		RunID:          j.runID,
		Status:         status,
		Stage:          "final",
		ElapsedSec:     elapsed.Seconds(),
		ArtifactsFound: countArtifacts(j.runDir),
		SummaryMetrics: meta.SummaryMetrics,
		AutoChecks:     meta.AutoChecks,
		CheckNotes:     notes,
		NextAction:     meta.NextAction,
	}
	return resp
}

func copyInputs(runDir string, files []string) error {
	destDir := filepath.Join(runDir, "inputs")
	for _, src := range files {
		dst := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copying %s: %w", src, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func writeConfigMk(runDir string, p StartParams, containerVerilogFiles []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "export DESIGN_NAME := %s\n", p.TopModule)
	fmt.Fprintf(&b, "export PLATFORM := %s\n", p.Platform)
	fmt.Fprintf(&b, "export VERILOG_FILES := %s\n", strings.Join(containerVerilogFiles, " "))
	fmt.Fprintf(&b, "export SDC_FILE := /workspace/constraints.sdc\n")
	fmt.Fprintf(&b, "export CORE_UTILIZATION := %g\n", p.Utilization)
	fmt.Fprintf(&b, "export CORE_ASPECT_RATIO := %g\n", p.AspectRatio)
	fmt.Fprintf(&b, "export CORE_MARGIN := %g\n", p.CoreMargin)
	return os.WriteFile(filepath.Join(runDir, "config.mk"), []byte(b.String()), 0o644)
}

func countArtifacts(runDir string) synthtypes.ArtifactCounts {
	var counts synthtypes.ArtifactCounts
	filepath.WalkDir(runDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(path, ".gds"):
			counts.GDS++
		case strings.HasSuffix(path, ".def"):
			counts.DEF++
		case strings.HasSuffix(path, ".odb"):
			counts.ODB++
		case strings.HasSuffix(path, ".rpt") || strings.HasSuffix(path, ".txt"):
			if strings.Contains(path, "orfs_reports") {
				counts.Reports++
			}
		case strings.HasSuffix(path, ".v"):
			counts.Netlists++
		}
		return nil
	})
	return counts
}
