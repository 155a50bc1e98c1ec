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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

func writeSpecFile(t *testing.T, workspace, module, yaml string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, module+"_spec.yaml"), []byte(yaml), 0o644))
}

func TestCheckConstraintsNoSpecWithClockPeriod(t *testing.T) {
	var m Manager
	workspace := t.TempDir()

	out := m.checkConstraints(workspace, "counter", 5.0, "auto")
	assert.Equal(t, synthtypes.GuardrailPass, out.Status)
	assert.Contains(t, out.SDC, "create_clock")
}

func TestCheckConstraintsNoSpecNoClockPeriodFails(t *testing.T) {
	var m Manager
	workspace := t.TempDir()

	out := m.checkConstraints(workspace, "counter", 0, "auto")
	assert.Equal(t, synthtypes.GuardrailFail, out.Status)
}

func TestCheckConstraintsModuleMismatchFails(t *testing.T) {
	var m Manager
	workspace := t.TempDir()
	writeSpecFile(t, workspace, "counter", "counter:\n  clock_period: \"5ns\"\n  ports:\n    - name: clk\n      direction: input\n")

	out := m.checkConstraints(workspace, "adder", 0, "auto")
	assert.Equal(t, synthtypes.GuardrailFail, out.Status)
}

func TestCheckConstraintsMissingClockPortStrictFails(t *testing.T) {
	var m Manager
	workspace := t.TempDir()
	writeSpecFile(t, workspace, "counter", "counter:\n  clock_period: \"5ns\"\n  ports:\n    - name: data_in\n      direction: input\n")

	out := m.checkConstraints(workspace, "counter", 0, "strict")
	assert.Equal(t, synthtypes.GuardrailFail, out.Status)
}

func TestCheckConstraintsMissingClockPortAutoFallsBack(t *testing.T) {
	var m Manager
	workspace := t.TempDir()
	writeSpecFile(t, workspace, "counter", "counter:\n  clock_period: \"5ns\"\n  ports:\n    - name: data_in\n      direction: input\n")

	out := m.checkConstraints(workspace, "counter", 0, "auto")
	assert.Equal(t, synthtypes.GuardrailPass, out.Status)
	assert.Contains(t, out.SDC, "data_in")
}

func TestCheckConstraintsWithClockPortPasses(t *testing.T) {
	var m Manager
	workspace := t.TempDir()
	writeSpecFile(t, workspace, "counter", "counter:\n  clock_period: \"5ns\"\n  ports:\n    - name: clk\n      direction: input\n")

	out := m.checkConstraints(workspace, "counter", 0, "auto")
	assert.Equal(t, synthtypes.GuardrailPass, out.Status)
	assert.Equal(t, "counter", out.SpecModule)
}

func TestCheckSignoffFailsOnFlowFailure(t *testing.T) {
	var m Manager
	runDir := t.TempDir()

	status, note := m.checkSignoff(runDir, procdriver.Result{Success: false})
	assert.Equal(t, synthtypes.GuardrailFail, status)
	assert.Contains(t, note, "ORFS command failed")
}

func TestCheckSignoffFailsOnNoReports(t *testing.T) {
	var m Manager
	runDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "orfs_reports"), 0o755))

	status, _ := m.checkSignoff(runDir, procdriver.Result{Success: true})
	assert.Equal(t, synthtypes.GuardrailFail, status)
}

func TestCheckSignoffFailsOnFatalLogLine(t *testing.T) {
	var m Manager
	runDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "orfs_reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "orfs_reports", "6_finish.rpt"), []byte("wns max 0.1\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "orfs_logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "orfs_logs", "flow.log"), []byte("synth fatal error: bad cell\n"), 0o644))

	status, note := m.checkSignoff(runDir, procdriver.Result{Success: true})
	assert.Equal(t, synthtypes.GuardrailFail, status)
	assert.NotEmpty(t, note)
}

func TestCheckSignoffPassesWithNetlistAndReports(t *testing.T) {
	var m Manager
	runDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "orfs_reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "orfs_reports", "6_finish.rpt"), []byte("wns max 0.1\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "orfs_results"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "orfs_results", "counter.v"), []byte("module counter; endmodule\n"), 0o644))

	status, note := m.checkSignoff(runDir, procdriver.Result{Success: true})
	assert.Equal(t, synthtypes.GuardrailPass, status)
	assert.Empty(t, note)
}

func TestLocateNetlistPrefersFinalAndTopModuleMatch(t *testing.T) {
	runDir := t.TempDir()
	resultsDir := filepath.Join(runDir, "orfs_results")
	require.NoError(t, os.MkdirAll(resultsDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "intermediate.v"), []byte("module counter; endmodule\n"), 0o644))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "counter_final_yosys.v"), []byte("module counter; endmodule\n"), 0o644))

	best, ok := locateNetlist(runDir, "counter")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(resultsDir, "counter_final_yosys.v"), best)
}

func TestLocateNetlistNoFilesFound(t *testing.T) {
	runDir := t.TempDir()
	_, ok := locateNetlist(runDir, "counter")
	assert.False(t, ok)
}

// fakeEquivRunner is a Runner test double for YosysEquivChecker.
type fakeEquivRunner struct {
	versionOK bool
	checkRes  procdriver.Result
	checkErr  error
}

func (f *fakeEquivRunner) Run(ctx context.Context, workDir string, argv []string, timeout time.Duration) (procdriver.Result, error) {
	if len(argv) > 1 && argv[1] == "-V" {
		if f.versionOK {
			return procdriver.Result{Success: true, ExitCode: 0}, nil
		}
		return procdriver.Result{}, errors.New("yosys: command not found")
	}
	return f.checkRes, f.checkErr
}

func TestYosysEquivCheckerAvailable(t *testing.T) {
	available := &YosysEquivChecker{Runner: &fakeEquivRunner{versionOK: true}}
	assert.True(t, available.Available(context.Background()))

	unavailable := &YosysEquivChecker{Runner: &fakeEquivRunner{versionOK: false}}
	assert.False(t, unavailable.Available(context.Background()))
}

func TestYosysEquivCheckerCheckPassAndFail(t *testing.T) {
	runDir := t.TempDir()

	pass := &YosysEquivChecker{Runner: &fakeEquivRunner{checkRes: procdriver.Result{ExitCode: 0}}}
	status, _ := pass.Check(context.Background(), runDir, []string{"gold.v"}, "gate.v", "counter", time.Second)
	assert.Equal(t, synthtypes.GuardrailPass, status)

	fail := &YosysEquivChecker{Runner: &fakeEquivRunner{checkRes: procdriver.Result{ExitCode: 1, Stdout: "equiv_status failed"}}}
	status, note := fail.Check(context.Background(), runDir, []string{"gold.v"}, "gate.v", "counter", time.Second)
	assert.Equal(t, synthtypes.GuardrailFail, status)
	assert.Contains(t, note, "equiv_status failed")
}
