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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-synth/internal/config"
	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// fakeFlowRunner stands in for the docker/exec Runner the worker pipeline
// drives: it simulates a successful ORFS flow by writing a report, a log,
// and a gate netlist into the mounted directories before returning.
type fakeFlowRunner struct {
	success bool
}

func (f *fakeFlowRunner) Run(ctx context.Context, workDir string, argv []string, timeout time.Duration) (procdriver.Result, error) {
	reportsDir := filepath.Join(workDir, "orfs_reports")
	os.MkdirAll(reportsDir, 0o755)
	os.WriteFile(filepath.Join(reportsDir, "6_finish.rpt"), []byte("wns max 0.05\ntns max 0.00\n"), 0o644)

	logsDir := filepath.Join(workDir, "orfs_logs")
	os.MkdirAll(logsDir, 0o755)
	os.WriteFile(filepath.Join(logsDir, "flow.log"), []byte("synth finish: placement and routing complete\n"), 0o644)

	resultsDir := filepath.Join(workDir, "orfs_results")
	os.MkdirAll(resultsDir, 0o755)
	os.WriteFile(filepath.Join(resultsDir, "counter_final_yosys.v"), []byte("module counter(input clk); endmodule\n"), 0o644)

	return procdriver.Result{Success: f.success, ExitCode: 0, Command: "fake flow"}, nil
}

func writeVerilogFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("module counter(input clk); endmodule\n"), 0o644))
	return path
}

func TestManagerStartCompletesSuccessfulRun(t *testing.T) {
	workspace := t.TempDir()
	writeSpecFile(t, workspace, "counter", "counter:\n  clock_period: \"4ns\"\n  ports:\n    - name: clk\n      direction: input\n")
	srcDir := t.TempDir()
	v := writeVerilogFixture(t, srcDir, "counter.v")

	cfg := config.New(config.WithWorkerPoolSize(1))
	m := New(cfg, nil, procdriver.NewExecRunner(), &fakeFlowRunner{success: true}, nil, nil)

	result, err := m.Start(context.Background(), StartParams{
		Workspace:    workspace,
		VerilogFiles: []string{v},
		TopModule:    "counter",
		Platform:     "nangate45",
		TimeoutSec:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "synth_0001", result.RunID)

	final, err := m.Wait(context.Background(), result.JobID, workspace, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, synthtypes.RunCompleted, final.Status)
	assert.Equal(t, synthtypes.GuardrailPass, final.AutoChecks.Constraints)
	assert.Equal(t, synthtypes.GuardrailPass, final.AutoChecks.Signoff)
	require.NotNil(t, final.SummaryMetrics.WNSNs)
}

func TestManagerStartFailsRunOnFlowFailure(t *testing.T) {
	workspace := t.TempDir()
	writeSpecFile(t, workspace, "counter", "counter:\n  clock_period: \"4ns\"\n  ports:\n    - name: clk\n      direction: input\n")
	srcDir := t.TempDir()
	v := writeVerilogFixture(t, srcDir, "counter.v")

	cfg := config.New(config.WithWorkerPoolSize(1))
	m := New(cfg, nil, procdriver.NewExecRunner(), &fakeFlowRunner{success: false}, nil, nil)

	result, err := m.Start(context.Background(), StartParams{
		Workspace:    workspace,
		VerilogFiles: []string{v},
		TopModule:    "counter",
		Platform:     "nangate45",
		TimeoutSec:   10,
	})
	require.NoError(t, err)

	final, err := m.Wait(context.Background(), result.JobID, workspace, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, synthtypes.RunFailed, final.Status)
}

func TestManagerStartRejectsMissingTopModule(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.New()
	m := New(cfg, nil, procdriver.NewExecRunner(), &fakeFlowRunner{success: true}, nil, nil)

	_, err := m.Start(context.Background(), StartParams{Workspace: workspace, VerilogFiles: []string{"x.v"}})
	assert.Error(t, err)
}

func TestManagerGetStatusUnknownJobRecoversFromIndex(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.New()
	m := New(cfg, nil, procdriver.NewExecRunner(), &fakeFlowRunner{success: true}, nil, nil)

	resp, err := m.GetStatus(context.Background(), "job_0000000000", workspace)
	require.NoError(t, err)
	assert.Equal(t, synthtypes.RunFailed, resp.Status)
	assert.Contains(t, resp.CheckNotes, "Unknown job_id")
}
