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

package simrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-synth/internal/config"
	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/internal/stdcell"
)

func newTestPipeline(runner procdriver.Runner) *Pipeline {
	return New(runner, stdcell.NewManager(nil, 0, 0), config.Default(), nil)
}

func writeSourceFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("module "+strings.TrimSuffix(name, ".v")+"(); endmodule\n"), 0o644))
	return path
}

func TestRunTestPassed(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "counter.v")

	runner := &procdriver.FakeRunner{Results: []procdriver.Result{
		{Success: true, ExitCode: 0},
		{Success: true, ExitCode: 0, Stdout: "running...\nTEST PASSED\n"},
	}}
	p := newTestPipeline(runner)

	result, err := p.Run(context.Background(), dir, Request{SourceFiles: []string{src}, TopModule: "counter", Mode: ModeRTL})
	require.NoError(t, err)
	assert.Equal(t, StatusTestPassed, result.Status)
	assert.True(t, result.PassMarkerFound)
}

func TestRunPassMarkerExactness(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "counter.v")

	runner := &procdriver.FakeRunner{Results: []procdriver.Result{
		{Success: true, ExitCode: 0},
		{Success: true, ExitCode: 0, Stdout: "PASS generic\n"},
	}}
	p := newTestPipeline(runner)

	result, err := p.Run(context.Background(), dir, Request{SourceFiles: []string{src}, TopModule: "counter", Mode: ModeRTL, PassMarker: "TEST PASSED"})
	require.NoError(t, err)
	assert.Equal(t, StatusTestFailed, result.Status)
	assert.False(t, result.PassMarkerFound)
}

func TestRunCompileFailedExtractsUnresolvedCells(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "top.v")

	stderr := "Unknown module type: NAND2X1\nmodule INVX1 is undefined\n"
	runner := &procdriver.FakeRunner{Results: []procdriver.Result{
		{Success: false, ExitCode: 1, Stderr: stderr},
	}}
	p := newTestPipeline(runner)

	result, err := p.Run(context.Background(), dir, Request{SourceFiles: []string{src}, TopModule: "top", Mode: ModeRTL})
	require.NoError(t, err)
	assert.Equal(t, StatusCompileFailed, result.Status)
	assert.Equal(t, []string{"INVX1", "NAND2X1"}, result.UnresolvedCells)
}

func TestRunSimFailedNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "top.v")

	runner := &procdriver.FakeRunner{Results: []procdriver.Result{
		{Success: true, ExitCode: 0},
		{Success: false, ExitCode: 1, Stdout: "running\n"},
	}}
	p := newTestPipeline(runner)

	result, err := p.Run(context.Background(), dir, Request{SourceFiles: []string{src}, TopModule: "top", Mode: ModeRTL})
	require.NoError(t, err)
	assert.Equal(t, StatusSimFailed, result.Status)
}

func TestRunAssertionClassification(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "top.v")

	runner := &procdriver.FakeRunner{Results: []procdriver.Result{
		{Success: true, ExitCode: 0},
		{Success: false, ExitCode: 1, Stdout: "ASSERTION FAILED at cycle 12\n"},
	}}
	p := newTestPipeline(runner)

	result, err := p.Run(context.Background(), dir, Request{SourceFiles: []string{src}, TopModule: "top", Mode: ModeRTL})
	require.NoError(t, err)
	assert.Equal(t, StatusSimFailed, result.Status)
	assert.Equal(t, "assertion", result.FailureType)
	assert.Contains(t, result.FirstFailureLine, "ASSERTION FAILED at cycle 12")
}

func TestRunLogTailBudget(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "top.v")

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("this is a reasonably long simulation log line to pad out the character budget\n")
	}

	runner := &procdriver.FakeRunner{Results: []procdriver.Result{
		{Success: true, ExitCode: 0},
		{Success: false, ExitCode: 1, Stdout: sb.String(), Stderr: sb.String()},
	}}
	p := newTestPipeline(runner)

	result, err := p.Run(context.Background(), dir, Request{SourceFiles: []string{src}, TopModule: "top", Mode: ModeRTL})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.StdoutTail), 4000)
	assert.LessOrEqual(t, len(result.StderrTail), 4000)
	assert.True(t, result.LogTruncated)
}

func TestRunPostSynthMissingCacheReturnsBootstrapHint(t *testing.T) {
	dir := t.TempDir()
	netlist := writeSourceFile(t, dir, "counter_netlist.v")

	runner := &procdriver.FakeRunner{}
	p := newTestPipeline(runner)
	p.NoAutoBootstrap = true

	result, err := p.Run(context.Background(), dir, Request{
		TopModule:   "counter",
		Mode:        ModePostSynth,
		NetlistFile: netlist,
		Platform:    stdcell.PlatformA,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompileFailed, result.Status)
	assert.Contains(t, result.StderrTail, "First-Run Standard-Cell Bootstrap")
	assert.Contains(t, result.StderrTail, "bootstrap")
}

func TestSubstituteCompatModelsSwapsSequentialLibrary(t *testing.T) {
	workspace := t.TempDir()
	libDir := t.TempDir()
	seqFile := filepath.Join(libDir, "DFFx1_ASAP7_75t_R.v")
	require.NoError(t, os.WriteFile(seqFile, []byte("module DFFx1_ASAP7_75t_R (CLK, D, QN); endmodule\n"), 0o644))
	invFile := filepath.Join(libDir, "INVx1_ASAP7_75t_R.v")
	require.NoError(t, os.WriteFile(invFile, []byte("module INVx1_ASAP7_75t_R (A, Y); endmodule\n"), 0o644))

	netlist := "DFFx1_ASAP7_75t_R r0 (.CLK(clk), .D(d), .QN(qn));\nINVx1_ASAP7_75t_R i0 (.A(a), .Y(y));\n"
	got := substituteCompatModels([]string{seqFile, invFile}, netlist, workspace)

	require.Len(t, got, 2)
	assert.Equal(t, invFile, got[0])
	assert.Contains(t, got[1], "SEQ_compat.v")
}

func TestSubstituteCompatModelsKeepsBulkFileForUncoveredCell(t *testing.T) {
	workspace := t.TempDir()
	libDir := t.TempDir()
	seqFile := filepath.Join(libDir, "DFFx1_ASAP7_75t_R.v")
	require.NoError(t, os.WriteFile(seqFile, []byte("module DFFx1_ASAP7_75t_R (CLK, D, QN); endmodule\nmodule SDFHx1_ASAP7_75t_R (CLK, D, SI, SE, QN); endmodule\n"), 0o644))

	// The netlist instantiates a scan flop only the bulk file defines, so the
	// substitution must not happen.
	netlist := "SDFHx1_ASAP7_75t_R r0 (.CLK(clk));\n"
	got := substituteCompatModels([]string{seqFile}, netlist, workspace)
	assert.Equal(t, []string{seqFile}, got)
}

func TestRestrictToReferencedCells(t *testing.T) {
	files := []string{
		"/cache/sky130_fd_sc_hd__and2_2.v",
		"/cache/sky130_fd_sc_hd__inv_1.v",
		"/cache/sky130_fd_sc_hd__dfxtp_1.v",
		"/cache/sky130_fd_sc_hd__or2.v",
	}
	netlist := "sky130_fd_sc_hd__and2_2 u0 (.A(a));\nsky130_fd_sc_hd__inv_1 u1 (.A(b));\n"

	got := restrictToReferencedCells(files, netlist)
	assert.Equal(t, []string{
		"/cache/sky130_fd_sc_hd__and2_2.v",
		"/cache/sky130_fd_sc_hd__inv_1.v",
	}, got)
}

func TestRestrictToReferencedCellsKeepsAllWhenNoneReferenced(t *testing.T) {
	files := []string{"/cache/sky130_fd_sc_hd__and2_2.v"}
	got := restrictToReferencedCells(files, "module counter(); endmodule\n")
	assert.Equal(t, files, got)
}

func TestStatusEnumClosure(t *testing.T) {
	valid := map[Status]bool{
		StatusCompileFailed: true,
		StatusSimFailed:     true,
		StatusTestFailed:    true,
		StatusTestPassed:    true,
	}
	for _, s := range []Status{StatusCompileFailed, StatusSimFailed, StatusTestFailed, StatusTestPassed} {
		assert.True(t, valid[s])
	}
}
