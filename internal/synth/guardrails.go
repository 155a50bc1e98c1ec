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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/internal/specmgr"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// ConstraintsOutcome is the result of the constraints guardrail.
type ConstraintsOutcome struct {
	Status     synthtypes.GuardrailStatus
	Notes      string
	SDC        string
	SpecModule string
}

// checkConstraints loads the most recent design spec and derives the SDC
// for the run, with strict/auto/bypass branching over a missing clock port
// and a tcl-guarded fallback SDC when no spec file exists at all.
func (m *Manager) checkConstraints(workspace, topModule string, requestedClockPeriodNs float64, constraintsMode string) ConstraintsOutcome {
	specPath, _ := specmgr.FindLatestSpec(workspace)

	if specPath == "" {
		if requestedClockPeriodNs > 0 {
			sdc := specmgr.GenerateFallbackSDC(requestedClockPeriodNs, "clk")
			return ConstraintsOutcome{Status: synthtypes.GuardrailPass, Notes: "no design spec found; generated guarded default clock on port clk", SDC: sdc}
		}
		return ConstraintsOutcome{Status: synthtypes.GuardrailFail, Notes: "no design spec found and no clock_period_ns provided"}
	}

	spec, err := specmgr.LoadFile(specPath)
	if err != nil {
		return ConstraintsOutcome{Status: synthtypes.GuardrailFail, Notes: fmt.Sprintf("failed to load design spec %s: %v", specPath, err)}
	}

	if spec.ModuleName != topModule {
		return ConstraintsOutcome{
			Status: synthtypes.GuardrailFail,
			Notes:  fmt.Sprintf("spec module %q does not match requested top_module %q", spec.ModuleName, topModule),
		}
	}

	if _, ok := spec.ClockPort(); !ok {
		switch constraintsMode {
		case "strict":
			return ConstraintsOutcome{
				Status: synthtypes.GuardrailFail,
				Notes:  "design spec has no recognized clock port (clk|clock|clk_i); switch constraints_mode to auto or bypass to proceed with a default clock",
			}
		case "auto", "bypass", "":
			fallbackPort := "clk"
			if len(spec.Ports) > 0 {
				for _, p := range spec.Ports {
					if p.Direction == "input" {
						fallbackPort = p.Name
						break
					}
				}
			}
			period := spec.ClockPeriodNs
			if requestedClockPeriodNs > 0 {
				period = requestedClockPeriodNs
			}
			sdc := fmt.Sprintf("create_clock -period %g [get_ports %s]", period, fallbackPort)
			return ConstraintsOutcome{
				Status:     synthtypes.GuardrailPass,
				Notes:      fmt.Sprintf("spec has no recognized clock port; falling back to port %q", fallbackPort),
				SDC:        sdc,
				SpecModule: spec.ModuleName,
			}
		default:
			return ConstraintsOutcome{Status: synthtypes.GuardrailFail, Notes: fmt.Sprintf("unsupported constraints_mode %q", constraintsMode)}
		}
	}

	return ConstraintsOutcome{Status: synthtypes.GuardrailPass, Notes: "generated SDC from design spec", SDC: spec.GenerateSDC(), SpecModule: spec.ModuleName}
}

var signoffFatalSubstrings = []string{"error:", "fatal", "failed"}

// checkSignoff decides whether a finished flow invocation produced a
// believable result: the command succeeded, reports exist, recent logs
// carry no fatal markers, and a netlist was emitted.
func (m *Manager) checkSignoff(runDir string, flow procdriver.Result) (synthtypes.GuardrailStatus, string) {
	if !flow.Success {
		return synthtypes.GuardrailFail, "ORFS command failed"
	}

	reportsDir := filepath.Join(runDir, "orfs_reports")
	if countFiles(reportsDir) == 0 {
		return synthtypes.GuardrailFail, "no report files emitted under orfs_reports/"
	}

	if hasFatalInRecentLogs(filepath.Join(runDir, "orfs_logs"), 120, signoffFatalSubstrings) {
		return synthtypes.GuardrailFail, "fatal/error markers found in the last 120 log lines"
	}

	if !hasAnyVerilogFile(runDir) {
		return synthtypes.GuardrailFail, "no .v netlist emitted anywhere under the run directory"
	}

	return synthtypes.GuardrailPass, ""
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

func hasAnyVerilogFile(runDir string) bool {
	found := false
	filepath.WalkDir(runDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".v") {
			found = true
		}
		return nil
	})
	return found
}

// hasFatalInRecentLogs scans the last tailLines lines across the log files
// under logDir for any of the given substrings, case-insensitively.
func hasFatalInRecentLogs(logDir string, tailLines int, substrings []string) bool {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return false
	}

	var allLines []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(logDir, e.Name()))
		if err != nil {
			continue
		}
		allLines = append(allLines, strings.Split(string(content), "\n")...)
	}

	if len(allLines) > tailLines {
		allLines = allLines[len(allLines)-tailLines:]
	}

	for _, line := range allLines {
		lower := strings.ToLower(line)
		for _, s := range substrings {
			if strings.Contains(lower, s) {
				return true
			}
		}
	}
	return false
}

// rankedNetlist is one candidate considered by netlist location.
type rankedNetlist struct {
	path  string
	score int
	mtime time.Time
}

// locateNetlist ranks every .v file under orfs_results/ and inputs/ and
// returns the highest-scoring path.
func locateNetlist(runDir, topModule string) (string, bool) {
	var candidates []rankedNetlist
	lowerTop := strings.ToLower(topModule)

	for _, sub := range []string{"orfs_results", "inputs"} {
		root := filepath.Join(runDir, sub)
		filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".v") {
				return nil
			}
			info, statErr := d.Info()
			var mtime time.Time
			if statErr == nil {
				mtime = info.ModTime()
			}
			score := 0
			lowerName := strings.ToLower(filepath.Base(path))
			if strings.Contains(lowerName, "final") {
				score += 4
			}
			if strings.Contains(lowerName, "yosys") {
				score += 3
			}
			if strings.Contains(lowerName, lowerTop) {
				score += 2
			}
			candidates = append(candidates, rankedNetlist{path: path, score: score, mtime: mtime})
			return nil
		})
	}

	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].mtime.After(candidates[j].mtime)
	})
	return candidates[0].path, true
}

// EquivChecker runs the formal equivalence flow comparing the golden RTL
// against the gate netlist. The production implementation shells out to
// yosys.
type EquivChecker interface {
	// Available reports whether the equivalence tool can be invoked at all.
	Available(ctx context.Context) bool
	// Check compares goldenInputs against the gate netlist and returns
	// pass/fail plus the last ~400 chars of tool output on failure.
	Check(ctx context.Context, runDir string, goldenInputs []string, netlist, topModule string, timeout time.Duration) (synthtypes.GuardrailStatus, string)
}

// YosysEquivChecker implements EquivChecker via a scripted yosys flow:
// equiv_make, equiv_simple, equiv_status -assert.
type YosysEquivChecker struct {
	Runner procdriver.Runner
}

func (y *YosysEquivChecker) Available(ctx context.Context) bool {
	res, err := y.Runner.Run(ctx, ".", []string{"yosys", "-V"}, 5*time.Second)
	return err == nil && res.ExitCode == 0
}

func (y *YosysEquivChecker) Check(ctx context.Context, runDir string, goldenInputs []string, netlist, topModule string, timeout time.Duration) (synthtypes.GuardrailStatus, string) {
	script := equivScript(goldenInputs, netlist, topModule)
	scriptPath := filepath.Join(runDir, "equiv_check.ys")
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return synthtypes.GuardrailFail, err.Error()
	}

	res, err := y.Runner.Run(ctx, runDir, []string{"yosys", "-s", scriptPath}, timeout)
	if err != nil {
		return synthtypes.GuardrailFail, err.Error()
	}
	if res.ExitCode == 0 {
		return synthtypes.GuardrailPass, ""
	}
	return synthtypes.GuardrailFail, lastNChars(res.Stdout+res.Stderr, 400)
}

func equivScript(goldenInputs []string, netlist, topModule string) string {
	var b strings.Builder
	b.WriteString("read_verilog -sv")
	for _, f := range goldenInputs {
		b.WriteString(" " + f)
	}
	b.WriteString("\nprep -top " + topModule + "\nrename " + topModule + " gold\n")
	b.WriteString("read_verilog " + netlist + "\nprep -top " + topModule + "\nrename " + topModule + " gate\n")
	b.WriteString("equiv_make gold gate equiv\nprep -flatten\nequiv_simple\nequiv_status -assert\n")
	return b.String()
}

func lastNChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
