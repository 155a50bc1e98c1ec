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

import "context"

// BootstrapStdcells implements bootstrap_stdcells: populate
// _stdcells/<platform>/sim from pinned upstream sources.
func (f *Facade) BootstrapStdcells(ctx context.Context, sessionID, platform string) string {
	if f.tracer != nil {
		ctx2, span := f.tracer.StartBootstrap(ctx, platform)
		defer span.End()
		ctx = ctx2
	}
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return f.stdcells.Bootstrap(ctx, workspace, platform)
	})
}

// ResolveStdcellsArgs is the resolve_stdcells tool argument shape.
type ResolveStdcellsArgs struct {
	SessionID        string `json:"session_id,omitempty"`
	Platform         string `json:"platform"`
	ModuleNamePrefix string `json:"module_name_prefix,omitempty"`
}

// resolveStdcellsResult is resolve_stdcells' JSON return shape.
type resolveStdcellsResult struct {
	Files    []string `json:"files"`
	Manifest any      `json:"manifest"`
}

// ResolveStdcells implements resolve_stdcells: return the ordered model
// file list and manifest the platform selection policy produces.
func (f *Facade) ResolveStdcells(ctx context.Context, args ResolveStdcellsArgs) string {
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}
		files, manifest, err := f.stdcells.Resolve(workspace, args.Platform, args.ModuleNamePrefix)
		if err != nil {
			return nil, err
		}
		return resolveStdcellsResult{Files: files, Manifest: manifest}, nil
	})
}
