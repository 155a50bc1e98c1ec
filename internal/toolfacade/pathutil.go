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
	"strings"

	"github.com/tombee/conductor-synth/internal/errs"
)

// validateWorkspacePath rejects traversal sequences and confirms path
// resolves inside workspace, the file-path safety boundary every tool
// argument naming a file on disk is checked against.
func validateWorkspacePath(workspace, path string) error {
	if path == "" {
		return &errs.ValidationError{Field: "path", Message: "path is empty"}
	}
	if strings.Contains(path, "..") {
		return &errs.ValidationError{Field: "path", Message: "path contains a directory traversal sequence (..)", Suggestion: "use a path relative to the session workspace"}
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workspace, path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return &errs.ValidationError{Field: "path", Message: "resolving symlinks: " + err.Error()}
		}
		resolved = filepath.Clean(abs)
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return errs.Wrap(err, "resolving workspace root")
	}
	if !isWithinDir(resolved, absWorkspace) {
		return &errs.ValidationError{Field: "path", Message: "path is outside the session workspace", Suggestion: "pass a path inside the session's workspace directory"}
	}
	return nil
}

// validateWorkspacePaths applies validateWorkspacePath to every entry; it
// returns the first failure annotated with which entry failed.
func validateWorkspacePaths(workspace string, paths []string) error {
	for _, p := range paths {
		if err := validateWorkspacePath(workspace, p); err != nil {
			if ve, ok := err.(*errs.ValidationError); ok {
				ve.Field = "file: " + p
			}
			return err
		}
	}
	return nil
}

func isWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
