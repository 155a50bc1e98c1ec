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

// Package procdriver runs external tools (the Verilog compiler/simulator,
// the containerized ORFS synthesis flow, the yosys equivalence checker) as
// child processes with a hard timeout and captured output.
package procdriver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Result is the generic captured-process contract. The docker and plain
// exec paths both produce one of these.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Command  string
	TimedOut bool
}

// Runner executes an external command and captures its result. It is the
// seam unit tests substitute with a fake to avoid invoking real docker or
// iverilog binaries.
type Runner interface {
	// Run executes argv with the given working directory and hard timeout.
	Run(ctx context.Context, workDir string, argv []string, timeout time.Duration) (Result, error)
}

// ExecRunner runs argv directly on the host (used for iverilog/vvp/yosys,
// which run without a container).
type ExecRunner struct{}

// NewExecRunner returns a Runner that shells out directly, no sandboxing.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Run(ctx context.Context, workDir string, argv []string, timeout time.Duration) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("procdriver: empty argv")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Command: commandString(argv),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.Success = false
		res.ExitCode = -1
		return res, nil
	}

	if err != nil {
		res.Success = false
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}

	res.Success = true
	res.ExitCode = 0
	return res, nil
}

func commandString(argv []string) string {
	var buf bytes.Buffer
	for i, a := range argv {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(a)
	}
	return buf.String()
}
