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

// Package stdcell implements the standard-cell cache manager:
// content-addressed, pinned-source bootstrap of gate-level simulation
// models for the two supported PDK platforms, a deterministic selection
// policy for Resolve, and the compatibility models used for gate-level
// simulation workarounds.
package stdcell

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/conductor-synth/internal/errs"
	"github.com/tombee/conductor-synth/pkg/httpclient"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// Supported PDK platforms: asap7 is the high-speed library, sky130hd the
// open-PDK library.
const (
	PlatformA = "asap7"
	PlatformB = "sky130hd"
)

// PlatformBPrefix is the module-name prefix every cell in the Platform B
// library carries; resolve() and the gate-level netlist scan both key off it.
const PlatformBPrefix = "sky130_fd_sc_hd"

const stdcellRoot = "_stdcells"

// Fetcher retrieves a pinned source: either a single raw file (asap7) or a
// tarball (sky130hd). It is the seam unit tests substitute with a fake so
// bootstrap tests never touch the network.
type Fetcher interface {
	// FetchRaw retrieves a single file's bytes from url.
	FetchRaw(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
	// FetchTarball retrieves and returns a tar.gz archive's bytes from url.
	FetchTarball(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// HTTPFetcher is the production Fetcher. It builds its client from
// pkg/httpclient, which gives every pinned-source fetch retry-with-backoff
// and sanitized request logging rather than reimplementing them here.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a production Fetcher, retrying idempotent GETs
// against pinned sources up to 3 times (httpclient.DefaultConfig).
func NewHTTPFetcher() (*HTTPFetcher, error) {
	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = "conductor-synth/stdcell-bootstrap"
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, errs.Wrap(err, "building stdcell http client")
	}
	return &HTTPFetcher{client: client}, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *HTTPFetcher) FetchRaw(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	return f.fetch(ctx, url, timeout)
}

func (f *HTTPFetcher) FetchTarball(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	return f.fetch(ctx, url, timeout)
}

// PinnedSource describes one pinned upstream location a file may be fetched
// from.
type PinnedSource struct {
	Name string
	URL  string
}

// PlatformSources are the pinned source lists per platform. Operators
// override the pinned-revision URLs for a real deployment.
var PlatformSources = map[string][]PinnedSource{
	PlatformA: {
		{Name: "flow-repo", URL: "https://raw.githubusercontent.com/The-OpenROAD-Project/OpenROAD-flow-scripts/pinned/flow/platforms/asap7/verilog/stdcell"},
		{Name: "library-repo", URL: "https://raw.githubusercontent.com/The-OpenROAD-Project/asap7-pdk/pinned/verilog/stdcell"},
	},
	PlatformB: {
		{Name: "sky130-tarball", URL: "https://github.com/google/skywater-pdk-libs-sky130-fd-sc-hd/archive/pinned.tar.gz"},
	},
}

// PlatformAFixedFiles is the fixed set of library sub-files that must be
// present after an asap7 bootstrap; each may come from either pinned
// source.
var PlatformAFixedFiles = []string{
	"AND2x2_ASAP7_75t_R.v",
	"OR2x2_ASAP7_75t_R.v",
	"INVx1_ASAP7_75t_R.v",
	"DFFx1_ASAP7_75t_R.v",
	"dff.v",
}

// Manager is the Stdcell Cache Manager. It is stateless beyond the Fetcher
// and fetch timeouts it holds; all persistent state lives under the workspace.
type Manager struct {
	Fetcher        Fetcher
	FetchTimeout   time.Duration
	TarballTimeout time.Duration
}

// NewManager builds a Manager with the given per-request fetch timeouts
// (raw file vs. tarball download).
func NewManager(fetcher Fetcher, fetchTimeout, tarballTimeout time.Duration) *Manager {
	return &Manager{Fetcher: fetcher, FetchTimeout: fetchTimeout, TarballTimeout: tarballTimeout}
}

// CacheDir returns <workspace>/_stdcells/<platform>/sim.
func CacheDir(workspace, platform string) string {
	return filepath.Join(workspace, stdcellRoot, platform, "sim")
}

// ManifestPath returns the manifest.json path for a platform's cache.
func ManifestPath(workspace, platform string) string {
	return filepath.Join(CacheDir(workspace, platform), "manifest.json")
}

// ReadManifest loads manifest.json for (workspace, platform), returning a
// zero-value manifest (not an error) if it doesn't exist yet.
func ReadManifest(workspace, platform string) (synthtypes.StdcellManifest, error) {
	path := ManifestPath(workspace, platform)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return synthtypes.StdcellManifest{}, nil
		}
		return synthtypes.StdcellManifest{}, err
	}
	var m synthtypes.StdcellManifest
	if err := json.Unmarshal(content, &m); err != nil {
		return synthtypes.StdcellManifest{}, nil
	}
	return m, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Bootstrap populates _stdcells/<platform>/sim from pinned upstream
// sources. It is deterministic across reruns: any previously cached *.v is
// deleted before repopulating.
func (m *Manager) Bootstrap(ctx context.Context, workspace, platform string) (synthtypes.BootstrapResult, error) {
	switch platform {
	case PlatformA:
		return m.bootstrapPlatformA(ctx, workspace)
	case PlatformB:
		return m.bootstrapPlatformB(ctx, workspace)
	default:
		return synthtypes.BootstrapResult{}, &errs.ValidationError{Field: "platform", Message: fmt.Sprintf("unsupported platform %q", platform)}
	}
}

func (m *Manager) clearCache(cacheDir string) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".v") {
			if err := os.Remove(filepath.Join(cacheDir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) bootstrapPlatformA(ctx context.Context, workspace string) (synthtypes.BootstrapResult, error) {
	cacheDir := CacheDir(workspace, PlatformA)
	if err := m.clearCache(cacheDir); err != nil {
		return synthtypes.BootstrapResult{}, errs.Wrap(err, "clearing stdcell cache")
	}

	sources := PlatformSources[PlatformA]
	failed := map[string]string{}
	found := map[string][]byte{}

	for _, name := range PlatformAFixedFiles {
		var content []byte
		var lastErr error
		for _, src := range sources {
			url := strings.TrimRight(src.URL, "/") + "/" + name
			data, err := m.Fetcher.FetchRaw(ctx, url, m.FetchTimeout)
			if err != nil {
				lastErr = err
				continue
			}
			content = data
			break
		}
		if content == nil {
			if lastErr != nil {
				failed[name] = lastErr.Error()
			} else {
				failed[name] = "no pinned source returned content"
			}
			continue
		}
		found[name] = content
	}

	if len(found) == 0 {
		return synthtypes.BootstrapResult{}, &errs.NotFoundError{Resource: "stdcell source", ID: PlatformA}
	}

	manifestFiles := make([]synthtypes.StdcellManifestFile, 0, len(found))
	for name, data := range found {
		path := filepath.Join(cacheDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return synthtypes.BootstrapResult{}, errs.Wrapf(err, "writing %s", name)
		}
		manifestFiles = append(manifestFiles, synthtypes.StdcellManifestFile{Name: name, SHA256: sha256Hex(data)})
	}
	sort.Slice(manifestFiles, func(i, j int) bool { return manifestFiles[i].Name < manifestFiles[j].Name })

	manifest := synthtypes.StdcellManifest{
		Platform:     PlatformA,
		SourceImage:  sources[0].URL,
		SourcePolicy: "pinned_only",
		CreatedAt:    nowISO(),
		UpdatedAt:    nowISO(),
		Files:        manifestFiles,
		Sources: map[string]any{
			"pinned_source": map[string]any{"failed": failed},
		},
	}
	if err := writeManifest(workspace, PlatformA, manifest); err != nil {
		return synthtypes.BootstrapResult{}, err
	}

	return synthtypes.BootstrapResult{
		Platform:     PlatformA,
		CacheDir:     cacheDir,
		ManifestPath: ManifestPath(workspace, PlatformA),
		FileCount:    len(manifestFiles),
	}, nil
}

func writeManifest(workspace, platform string, manifest synthtypes.StdcellManifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ManifestPath(workspace, platform), data, 0o644)
}

// SelectResolveFiles applies the platform-specific selection policy during
// Resolve: asap7 drops files whose names collide with shims the sequential
// view already defines; sky130hd keeps only files carrying the library
// prefix.
func SelectResolveFiles(platform, moduleNamePrefix string, files []string) []string {
	switch platform {
	case PlatformA:
		excluded := map[string]bool{"dff.v": true, "empty.v": true}
		out := make([]string, 0, len(files))
		for _, f := range files {
			if !excluded[filepath.Base(f)] {
				out = append(out, f)
			}
		}
		return out
	case PlatformB:
		if moduleNamePrefix == "" {
			return files
		}
		out := make([]string, 0, len(files))
		for _, f := range files {
			if strings.HasPrefix(filepath.Base(f), moduleNamePrefix) {
				out = append(out, f)
			}
		}
		return out
	default:
		return files
	}
}

// Resolve returns the ordered .v model file list and manifest for
// (workspace, platform), applying SelectResolveFiles.
func (m *Manager) Resolve(workspace, platform, moduleNamePrefix string) ([]string, synthtypes.StdcellManifest, error) {
	cacheDir := CacheDir(workspace, platform)
	if _, err := os.Stat(cacheDir); err != nil {
		return nil, synthtypes.StdcellManifest{}, &errs.NotFoundError{Resource: "stdcell cache", ID: platform}
	}

	matches, err := doublestar.Glob(os.DirFS(cacheDir), "*.v")
	if err != nil {
		return nil, synthtypes.StdcellManifest{}, errs.Wrap(err, "globbing stdcell cache")
	}
	sort.Strings(matches)

	files := make([]string, 0, len(matches))
	for _, name := range matches {
		files = append(files, filepath.Join(cacheDir, name))
	}
	if len(files) == 0 {
		return nil, synthtypes.StdcellManifest{}, &errs.NotFoundError{Resource: "stdcell model files", ID: platform}
	}

	files = SelectResolveFiles(platform, moduleNamePrefix, files)

	manifest, err := ReadManifest(workspace, platform)
	if err != nil {
		return nil, synthtypes.StdcellManifest{}, err
	}
	return files, manifest, nil
}

//go:embed compat/asap7/*.v
var compatFS embed.FS

// CompatModels materializes the behavioral compatibility models shipped
// with the binary into _stdcells/<platform>/compat/ and returns their
// paths. These are authored by this project rather than fetched, so they
// are embedded instead of pinned. Returns nil for platforms with no compat
// models or when materialization fails (callers then keep the full library
// model).
func CompatModels(workspace, platform string) []string {
	if platform != PlatformA {
		return nil
	}

	destDir := filepath.Join(workspace, stdcellRoot, platform, "compat")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil
	}

	entries, err := compatFS.ReadDir("compat/asap7")
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		data, err := compatFS.ReadFile("compat/asap7/" + e.Name())
		if err != nil {
			return nil
		}
		dest := filepath.Join(destDir, e.Name())
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return nil
		}
		out = append(out, dest)
	}
	return out
}
