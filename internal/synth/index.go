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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tombee/conductor-synth/internal/errs"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// indexMu serializes index.json/LATEST read-modify-write across goroutines
// within this process. index.json is rewritten atomically (temp file plus
// rename); LATEST is overwritten in place. Readers tolerate a slightly
// stale value across a transition.
var indexMu sync.Mutex

func indexPath(workspace string) string  { return filepath.Join(RunsDir(workspace), "index.json") }
func latestPath(workspace string) string { return filepath.Join(RunsDir(workspace), "LATEST") }
func runMetaPath(runDir string) string   { return filepath.Join(runDir, "run_meta.json") }

// writeJSONAtomic writes data to a temp file in the same directory then
// renames it into place, giving readers either the old or new content,
// never a partial write.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readIndex(workspace string) (synthtypes.RunIndex, error) {
	content, err := os.ReadFile(indexPath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return synthtypes.RunIndex{}, nil
		}
		return synthtypes.RunIndex{}, err
	}
	var idx synthtypes.RunIndex
	if err := json.Unmarshal(content, &idx); err != nil {
		return synthtypes.RunIndex{}, nil
	}
	return idx, nil
}

// appendIndex replaces any existing entry for runID/jobID (not a blind
// append) then rewrites index.json and LATEST. Replacement keeps the index
// bounded across repeated state transitions for the same run.
func appendIndex(workspace, runID, jobID string, status synthtypes.RunStatus) error {
	indexMu.Lock()
	defer indexMu.Unlock()

	if err := os.MkdirAll(RunsDir(workspace), 0o755); err != nil {
		return err
	}

	idx, err := readIndex(workspace)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	runEntries := make([]synthtypes.RunIndexEntry, 0, len(idx.Runs)+1)
	for _, e := range idx.Runs {
		if e.RunID != runID {
			runEntries = append(runEntries, e)
		}
	}
	runEntries = append(runEntries, synthtypes.RunIndexEntry{RunID: runID, Status: status, UpdatedAt: now})
	idx.Runs = runEntries

	if jobID != "" {
		jobEntries := make([]synthtypes.JobIndexEntry, 0, len(idx.Jobs)+1)
		for _, e := range idx.Jobs {
			if e.JobID != jobID {
				jobEntries = append(jobEntries, e)
			}
		}
		jobEntries = append(jobEntries, synthtypes.JobIndexEntry{JobID: jobID, RunID: runID, Status: status, UpdatedAt: now})
		idx.Jobs = jobEntries
	}

	if err := writeJSONAtomic(indexPath(workspace), idx); err != nil {
		return errs.Wrap(err, "writing index.json")
	}
	return os.WriteFile(latestPath(workspace), []byte(runID), 0o644)
}

func findJobInIndex(workspace, jobID string) (synthtypes.JobIndexEntry, bool) {
	idx, err := readIndex(workspace)
	if err != nil {
		return synthtypes.JobIndexEntry{}, false
	}
	for _, e := range idx.Jobs {
		if e.JobID == jobID {
			return e, true
		}
	}
	return synthtypes.JobIndexEntry{}, false
}

func readRunMeta(runDir string) (synthtypes.RunMeta, error) {
	content, err := os.ReadFile(runMetaPath(runDir))
	if err != nil {
		return synthtypes.RunMeta{}, err
	}
	var meta synthtypes.RunMeta
	if err := json.Unmarshal(content, &meta); err != nil {
		return synthtypes.RunMeta{}, err
	}
	return meta, nil
}

func writeRunMeta(runDir string, meta synthtypes.RunMeta) error {
	return writeJSONAtomic(runMetaPath(runDir), meta)
}
