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

package procdriver

import (
	"context"
	"time"
)

// FakeRunner is a scripted Runner for tests that exercise the synthesis
// job manager / simulation pipeline without invoking real docker or
// iverilog binaries.
type FakeRunner struct {
	// Results is returned in order, one per Run call; the last entry
	// repeats once exhausted.
	Results []Result
	Err     error

	calls int
	// Argv records every argv passed to Run, for assertions.
	Argv [][]string
}

func (f *FakeRunner) Run(_ context.Context, _ string, argv []string, _ time.Duration) (Result, error) {
	f.Argv = append(f.Argv, argv)
	idx := f.calls
	if idx >= len(f.Results) {
		idx = len(f.Results) - 1
	}
	f.calls++
	if f.Err != nil {
		return Result{}, f.Err
	}
	if idx < 0 {
		return Result{}, nil
	}
	return f.Results[idx], nil
}
