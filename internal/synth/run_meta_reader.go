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

import "github.com/tombee/conductor-synth/internal/errs"

// WorkspaceRunMeta implements simrun.RunMetaReader against a single
// workspace's run_meta.json files. simrun declares that interface itself
// and does not import this package, so the interface is satisfied
// structurally: simrun only ever sees the method set, not this type.
type WorkspaceRunMeta struct {
	Workspace string
}

// NewRunMetaReader builds the adapter a Tool Façade passes to simrun.New so
// post-synth simulation requests can resolve netlist_path/platform from a
// run_id without simrun importing internal/synth.
func NewRunMetaReader(workspace string) WorkspaceRunMeta {
	return WorkspaceRunMeta{Workspace: workspace}
}

// NetlistAndPlatform reads <workspace>/synth_runs/<runID>/run_meta.json and
// returns the fields the post-synth simulation pipeline needs when the
// caller omitted netlist_file/platform.
func (w WorkspaceRunMeta) NetlistAndPlatform(runID string) (string, string, error) {
	runDir := RunDir(w.Workspace, runID)
	meta, err := readRunMeta(runDir)
	if err != nil {
		return "", "", &errs.NotFoundError{Resource: "synthesis run", ID: runID}
	}
	if meta.NetlistPath == "" {
		return "", "", &errs.NotFoundError{Resource: "netlist for run", ID: runID}
	}
	return meta.NetlistPath, meta.Platform, nil
}

// RecordStdcellUsage stamps the manifest snapshot and model file names that
// backed a gate-level simulation of the run into its run_meta.json.
func (w WorkspaceRunMeta) RecordStdcellUsage(runID, manifestVersion string, files []string) error {
	runDir := RunDir(w.Workspace, runID)
	meta, err := readRunMeta(runDir)
	if err != nil {
		return &errs.NotFoundError{Resource: "synthesis run", ID: runID}
	}
	meta.StdcellManifestVersion = manifestVersion
	meta.StdcellFilesUsed = files
	return writeRunMeta(runDir, meta)
}
