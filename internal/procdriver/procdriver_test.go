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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerSuccess(t *testing.T) {
	r := NewExecRunner()
	res, err := r.Run(context.Background(), t.TempDir(), []string{"echo", "hello"}, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	r := NewExecRunner()
	res, err := r.Run(context.Background(), t.TempDir(), []string{"sh", "-c", "exit 3"}, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunnerTimeout(t *testing.T) {
	r := NewExecRunner()
	res, err := r.Run(context.Background(), t.TempDir(), []string{"sleep", "2"}, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Success)
}

func TestExecRunnerEmptyArgv(t *testing.T) {
	r := NewExecRunner()
	_, err := r.Run(context.Background(), t.TempDir(), nil, time.Second)
	require.Error(t, err)
}

func TestDockerRunnerRunFlowBuildsMountArgs(t *testing.T) {
	fake := &FakeRunner{Results: []Result{{Success: true, Stdout: "ok"}}}
	d := NewDockerRunner("docker", "openroad/orfs:latest")

	dir := t.TempDir()
	res, err := d.RunFlow(context.Background(), fake, dir, "/workspace", map[string]string{
		dir: "/workspace",
	}, "make synth", 10*time.Second)

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, fake.Argv, 1)
	argv := fake.Argv[0]
	assert.Equal(t, "docker", argv[0])
	assert.Contains(t, argv, "openroad/orfs:latest")
	assert.Contains(t, argv, "make synth")
}

func TestFakeRunnerRepeatsLastResult(t *testing.T) {
	fake := &FakeRunner{Results: []Result{{Success: true}, {Success: false}}}
	r1, _ := fake.Run(context.Background(), "", nil, 0)
	r2, _ := fake.Run(context.Background(), "", nil, 0)
	r3, _ := fake.Run(context.Background(), "", nil, 0)

	assert.True(t, r1.Success)
	assert.False(t, r2.Success)
	assert.False(t, r3.Success) // repeats last
}
