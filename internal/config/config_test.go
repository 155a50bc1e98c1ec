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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, 2, cfg.WorkerPoolSize)
	require.Equal(t, 1200, cfg.SynthHardTimeoutSec)
	require.Equal(t, 40, cfg.SimOutputMaxLines)
	require.Equal(t, 4000, cfg.SimOutputMaxChars)
}

func TestNewWithOptions(t *testing.T) {
	cfg := New(WithWorkerPoolSize(4), WithDockerImage("custom/orfs:dev"))
	assert.Equal(t, 4, cfg.WorkerPoolSize)
	assert.Equal(t, "custom/orfs:dev", cfg.DockerImage)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SYNTHCTL_DOCKER_IMAGE", "myorg/orfs:latest")
	t.Setenv("SYNTHCTL_WORKER_POOL_SIZE", "6")
	t.Setenv("SYNTHCTL_SYNTH_HARD_TIMEOUT_SEC", "2400")

	cfg := FromEnv()
	assert.Equal(t, "myorg/orfs:latest", cfg.DockerImage)
	assert.Equal(t, 6, cfg.WorkerPoolSize)
	assert.Equal(t, 2400, cfg.SynthHardTimeoutSec)
}

func TestFromEnvIgnoresInvalidInt(t *testing.T) {
	t.Setenv("SYNTHCTL_WORKER_POOL_SIZE", "not-a-number")
	cfg := FromEnv()
	assert.Equal(t, Default().WorkerPoolSize, cfg.WorkerPoolSize)
}

func TestClampSynthTimeout(t *testing.T) {
	cfg := Default()
	tests := []struct {
		requested int
		want      int
	}{
		{requested: 10, want: 60},
		{requested: 600, want: 600},
		{requested: 5000, want: 1200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.ClampSynthTimeout(tt.requested))
	}
}

func TestPollBackoffDuration(t *testing.T) {
	cfg := Default()
	tests := []struct {
		count int
		want  time.Duration
	}{
		{count: 1, want: 30 * time.Second},
		{count: 2, want: 60 * time.Second},
		{count: 3, want: 120 * time.Second},
		{count: 4, want: 240 * time.Second},
		{count: 5, want: 480 * time.Second},
		{count: 6, want: 600 * time.Second}, // clamped to max
		{count: 99, want: 600 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.PollBackoffDuration(tt.count))
	}
}
