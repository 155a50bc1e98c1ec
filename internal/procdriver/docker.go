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
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// DockerRunner shells out to `docker run --rm -v ... -w ... image cmd`
// with every run artifact directory bind-mounted to its well-known
// container path.
type DockerRunner struct {
	// Binary is "docker" or "podman".
	Binary string
	// Image is the container image running the ORFS flow.
	Image string
}

// NewDockerRunner builds a DockerRunner for the given binary/image.
func NewDockerRunner(binary, image string) *DockerRunner {
	if binary == "" {
		binary = "docker"
	}
	return &DockerRunner{Binary: binary, Image: image}
}

// Available reports whether the configured container runtime can be
// invoked.
func (d *DockerRunner) Available(ctx context.Context) bool {
	if _, err := exec.LookPath(d.Binary); err != nil {
		return false
	}
	cmd := exec.CommandContext(ctx, d.Binary, "info")
	return cmd.Run() == nil
}

// RunFlow runs the ORFS flow container with each host path in mounts
// bind-mounted at its container path, invoking cmd via bash -c in the
// container working directory containerCwd. runner executes the docker
// command with runDir as its working directory.
func (d *DockerRunner) RunFlow(ctx context.Context, runner Runner, runDir, containerCwd string, mounts map[string]string, cmd string, timeout time.Duration) (Result, error) {
	argv := []string{d.Binary, "run", "--rm"}
	for hostPath, containerPath := range mounts {
		abs, err := filepath.Abs(hostPath)
		if err != nil {
			return Result{}, fmt.Errorf("resolving mount %s: %w", hostPath, err)
		}
		argv = append(argv, "-v", fmt.Sprintf("%s:%s", abs, containerPath))
	}
	argv = append(argv, "-w", containerCwd, d.Image, "bash", "-c", cmd)

	return runner.Run(ctx, runDir, argv, timeout)
}
