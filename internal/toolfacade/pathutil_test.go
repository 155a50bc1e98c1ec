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

package toolfacade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWorkspacePathAcceptsRelativeInsideWorkspace(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "counter.v"), []byte("module counter; endmodule\n"), 0o644))

	assert.NoError(t, validateWorkspacePath(workspace, "counter.v"))
}

func TestValidateWorkspacePathAcceptsAbsoluteInsideWorkspace(t *testing.T) {
	workspace := t.TempDir()
	path := filepath.Join(workspace, "tb.v")
	require.NoError(t, os.WriteFile(path, []byte("module tb; endmodule\n"), 0o644))

	assert.NoError(t, validateWorkspacePath(workspace, path))
}

func TestValidateWorkspacePathRejectsTraversal(t *testing.T) {
	workspace := t.TempDir()

	err := validateWorkspacePath(workspace, "../outside.v")
	assert.Error(t, err)
}

func TestValidateWorkspacePathRejectsAbsoluteOutside(t *testing.T) {
	workspace := t.TempDir()
	outside := t.TempDir()
	path := filepath.Join(outside, "evil.v")
	require.NoError(t, os.WriteFile(path, []byte("module evil; endmodule\n"), 0o644))

	err := validateWorkspacePath(workspace, path)
	assert.Error(t, err)
}

func TestValidateWorkspacePathRejectsEmpty(t *testing.T) {
	assert.Error(t, validateWorkspacePath(t.TempDir(), ""))
}

func TestValidateWorkspacePathsNamesOffendingEntry(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "ok.v"), []byte("module ok; endmodule\n"), 0o644))

	err := validateWorkspacePaths(workspace, []string{"ok.v", "../bad.v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "../bad.v")
}
