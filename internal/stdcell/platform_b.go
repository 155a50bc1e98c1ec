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

package stdcell

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tombee/conductor-synth/internal/errs"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// includeRewrite matches `include "../models/foo/bar.v" directives that
// reference a sibling models/ directory, which get flattened to a local
// include once every .v file lands in the same sim/ directory.
var includeRewrite = regexp.MustCompile("`include \"\\.\\./models/[^/]+/([^\"]+)\"")

// sizedCellPattern matches a wrapper cell file with a numeric drive-strength
// suffix, e.g. "sky130_fd_sc_hd__and2_2.v".
var sizedCellPattern = regexp.MustCompile(`^[A-Za-z0-9_]+_[0-9]+\.v$`)

type tarFile struct {
	name string // path relative to the tarball's single top-level dir
	data []byte
}

func extractTarGz(data []byte) ([]tarFile, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(err, "opening stdcell tarball")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var files []tarFile
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, "reading stdcell tarball")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// Strip the tarball's single top-level directory (GitHub archive
		// convention: "<repo>-<ref>/...").
		parts := strings.SplitN(hdr.Name, "/", 2)
		rel := hdr.Name
		if len(parts) == 2 {
			rel = parts[1]
		}
		buf, err := io.ReadAll(tr)
		if err != nil {
			return nil, errs.Wrap(err, "reading tar entry")
		}
		files = append(files, tarFile{name: rel, data: buf})
	}
	return files, nil
}

// rewriteIncludes flattens `include "../models/foo/bar.v" to `include
// "bar.v" once every .v file is collocated in sim/.
func rewriteIncludes(content []byte) []byte {
	return includeRewrite.ReplaceAll(content, []byte("`include \"$1\""))
}

func isModelExcluded(name string) bool {
	return strings.HasSuffix(name, ".tb.v") || strings.HasSuffix(name, ".symbol.v") || strings.HasSuffix(name, ".blackbox.v")
}

func (m *Manager) bootstrapPlatformB(ctx context.Context, workspace string) (synthtypes.BootstrapResult, error) {
	cacheDir := CacheDir(workspace, PlatformB)
	if err := m.clearCache(cacheDir); err != nil {
		return synthtypes.BootstrapResult{}, errs.Wrap(err, "clearing stdcell cache")
	}

	sources := PlatformSources[PlatformB]
	if len(sources) == 0 {
		return synthtypes.BootstrapResult{}, &errs.NotFoundError{Resource: "stdcell source", ID: PlatformB}
	}

	failed := map[string]string{}
	var tarball []byte
	var usedSource string
	for _, src := range sources {
		data, err := m.Fetcher.FetchTarball(ctx, src.URL, m.TarballTimeout)
		if err != nil {
			failed[src.Name] = err.Error()
			continue
		}
		tarball = data
		usedSource = src.URL
		break
	}
	if tarball == nil {
		return synthtypes.BootstrapResult{}, &errs.ExternalFailureError{Tool: "stdcell-tarball-fetch", Stderr: "all pinned sources failed"}
	}

	entries, err := extractTarGz(tarball)
	if err != nil {
		return synthtypes.BootstrapResult{}, err
	}

	written := map[string][]byte{}
	for _, e := range entries {
		switch {
		case strings.Contains(e.name, "/cells/") || strings.HasPrefix(e.name, "cells/"):
			base := filepath.Base(e.name)
			if !strings.HasSuffix(base, ".v") {
				continue
			}
			if sizedCellPattern.MatchString(base) {
				written[base] = rewriteIncludes(e.data)
				continue
			}
			// Unsized base cell: prefer .functional.v, fall back to .behavioral.v.
			if strings.HasSuffix(base, ".functional.v") {
				out := strings.TrimSuffix(base, ".functional.v") + ".v"
				written[out] = rewriteIncludes(e.data)
			} else if strings.HasSuffix(base, ".behavioral.v") {
				out := strings.TrimSuffix(base, ".behavioral.v") + ".v"
				if _, exists := written[out]; !exists {
					written[out] = rewriteIncludes(e.data)
				}
			}
		case strings.Contains(e.name, "/models/") || strings.HasPrefix(e.name, "models/"):
			base := filepath.Base(e.name)
			if !strings.HasSuffix(base, ".v") || isModelExcluded(base) {
				continue
			}
			written[base] = rewriteIncludes(e.data)
		}
	}

	if len(written) == 0 {
		return synthtypes.BootstrapResult{}, &errs.NotFoundError{Resource: "stdcell .v files", ID: PlatformB}
	}

	manifestFiles := make([]synthtypes.StdcellManifestFile, 0, len(written))
	names := make([]string, 0, len(written))
	for name := range written {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data := written[name]
		if err := writeFile(cacheDir, name, data); err != nil {
			return synthtypes.BootstrapResult{}, err
		}
		manifestFiles = append(manifestFiles, synthtypes.StdcellManifestFile{Name: name, SHA256: sha256Hex(data)})
	}

	manifest := synthtypes.StdcellManifest{
		Platform:     PlatformB,
		SourceImage:  usedSource,
		SourcePolicy: "pinned_only",
		CreatedAt:    nowISO(),
		UpdatedAt:    nowISO(),
		Files:        manifestFiles,
		Sources: map[string]any{
			"pinned_source": map[string]any{"failed": failed},
		},
	}
	if err := writeManifest(workspace, PlatformB, manifest); err != nil {
		return synthtypes.BootstrapResult{}, err
	}

	return synthtypes.BootstrapResult{
		Platform:     PlatformB,
		CacheDir:     cacheDir,
		ManifestPath: ManifestPath(workspace, PlatformB),
		FileCount:    len(manifestFiles),
	}, nil
}

func writeFile(dir, name string, data []byte) error {
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
