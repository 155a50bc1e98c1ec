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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher is a test double for Fetcher: it serves fixed bytes per URL and
// can be told to fail specific URLs.
// doubles.
type fakeFetcher struct {
	raw      map[string][]byte
	tarballs map[string][]byte
	failURLs map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{raw: map[string][]byte{}, tarballs: map[string][]byte{}, failURLs: map[string]bool{}}
}

func (f *fakeFetcher) FetchRaw(_ context.Context, url string, _ time.Duration) ([]byte, error) {
	if f.failURLs[url] {
		return nil, errors.New("simulated fetch failure")
	}
	data, ok := f.raw[url]
	if !ok {
		return nil, errors.New("404: no such raw file")
	}
	return data, nil
}

func (f *fakeFetcher) FetchTarball(_ context.Context, url string, _ time.Duration) ([]byte, error) {
	if f.failURLs[url] {
		return nil, errors.New("simulated fetch failure")
	}
	data, ok := f.tarballs[url]
	if !ok {
		return nil, errors.New("404: no such tarball")
	}
	return data, nil
}

func TestBootstrapPlatformA(t *testing.T) {
	workspace := t.TempDir()
	fetcher := newFakeFetcher()
	for _, src := range PlatformSources[PlatformA] {
		for _, name := range PlatformAFixedFiles {
			fetcher.raw[src.URL+"/"+name] = []byte("module " + name + "_stub (); endmodule\n")
		}
	}

	mgr := NewManager(fetcher, time.Second, time.Second)
	result, err := mgr.Bootstrap(context.Background(), workspace, PlatformA)
	require.NoError(t, err)
	assert.Equal(t, PlatformA, result.Platform)
	assert.Equal(t, len(PlatformAFixedFiles), result.FileCount)

	manifest, err := ReadManifest(workspace, PlatformA)
	require.NoError(t, err)
	assert.Equal(t, PlatformA, manifest.Platform)
	assert.Len(t, manifest.Files, len(PlatformAFixedFiles))

	for _, name := range PlatformAFixedFiles {
		_, err := os.Stat(filepath.Join(CacheDir(workspace, PlatformA), name))
		assert.NoError(t, err, "expected %s to be cached", name)
	}
}

func TestBootstrapPlatformAFallsBackToSecondSource(t *testing.T) {
	workspace := t.TempDir()
	fetcher := newFakeFetcher()
	sources := PlatformSources[PlatformA]
	require.True(t, len(sources) >= 2)

	for _, name := range PlatformAFixedFiles {
		fetcher.failURLs[sources[0].URL+"/"+name] = true
		fetcher.raw[sources[1].URL+"/"+name] = []byte("module " + name + "_stub (); endmodule\n")
	}

	mgr := NewManager(fetcher, time.Second, time.Second)
	result, err := mgr.Bootstrap(context.Background(), workspace, PlatformA)
	require.NoError(t, err)
	assert.Equal(t, len(PlatformAFixedFiles), result.FileCount)
}

func TestBootstrapPlatformAAllSourcesFail(t *testing.T) {
	workspace := t.TempDir()
	fetcher := newFakeFetcher()

	mgr := NewManager(fetcher, time.Second, time.Second)
	_, err := mgr.Bootstrap(context.Background(), workspace, PlatformA)
	require.Error(t, err)
}

func TestBootstrapRejectsUnsupportedPlatform(t *testing.T) {
	mgr := NewManager(newFakeFetcher(), time.Second, time.Second)
	_, err := mgr.Bootstrap(context.Background(), t.TempDir(), "not-a-real-platform")
	require.Error(t, err)
}

func buildSky130Tarball(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	addFile := func(name string, content string) {
		hdr := &tar.Header{Name: "sky130hd-pinned/" + name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	addFile("cells/and2/sky130_fd_sc_hd__and2_2.v", "module sky130_fd_sc_hd__and2_2 (); endmodule\n")
	addFile("cells/and2/sky130_fd_sc_hd__and2.functional.v",
		"`include \"../models/udp/udp_and2.v\"\nmodule sky130_fd_sc_hd__and2 (); endmodule\n")
	addFile("cells/and2/sky130_fd_sc_hd__and2.behavioral.v", "module sky130_fd_sc_hd__and2 (); endmodule\n")
	addFile("models/udp/udp_and2.v", "module udp_and2 (); endmodule\n")
	addFile("models/udp/udp_and2.tb.v", "module udp_and2_tb (); endmodule\n")
	addFile("models/udp/udp_and2.symbol.v", "module udp_and2_symbol (); endmodule\n")

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestBootstrapPlatformB(t *testing.T) {
	workspace := t.TempDir()
	fetcher := newFakeFetcher()
	src := PlatformSources[PlatformB][0]
	fetcher.tarballs[src.URL] = buildSky130Tarball(t)

	mgr := NewManager(fetcher, time.Second, time.Second)
	result, err := mgr.Bootstrap(context.Background(), workspace, PlatformB)
	require.NoError(t, err)
	assert.Equal(t, PlatformB, result.Platform)

	cacheDir := CacheDir(workspace, PlatformB)

	// Sized wrapper cell is kept verbatim (by name).
	_, err = os.Stat(filepath.Join(cacheDir, "sky130_fd_sc_hd__and2_2.v"))
	assert.NoError(t, err)

	// Unsized base cell prefers .functional.v, written under the bare name.
	content, err := os.ReadFile(filepath.Join(cacheDir, "sky130_fd_sc_hd__and2.v"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "`include \"udp_and2.v\"")
	assert.NotContains(t, string(content), "../models/")

	// Model file is present.
	_, err = os.Stat(filepath.Join(cacheDir, "udp_and2.v"))
	assert.NoError(t, err)

	// Excluded model suffixes are never written.
	_, err = os.Stat(filepath.Join(cacheDir, "udp_and2.tb.v"))
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(cacheDir, "udp_and2.symbol.v"))
	assert.Error(t, err)

	manifest, err := ReadManifest(workspace, PlatformB)
	require.NoError(t, err)
	assert.Equal(t, PlatformB, manifest.Platform)
	names := map[string]bool{}
	for _, f := range manifest.Files {
		names[f.Name] = true
	}
	assert.True(t, names["sky130_fd_sc_hd__and2_2.v"])
	assert.True(t, names["sky130_fd_sc_hd__and2.v"])
	assert.True(t, names["udp_and2.v"])
	assert.False(t, names["udp_and2.tb.v"])
}

func TestBootstrapPlatformBNoSourcesAvailable(t *testing.T) {
	workspace := t.TempDir()
	mgr := NewManager(newFakeFetcher(), time.Second, time.Second)
	_, err := mgr.Bootstrap(context.Background(), workspace, PlatformB)
	require.Error(t, err)
}

func TestSelectResolveFilesPlatformAExcludesCompatStubs(t *testing.T) {
	files := []string{"/cache/AND2x2_ASAP7_75t_R.v", "/cache/dff.v", "/cache/empty.v"}
	out := SelectResolveFiles(PlatformA, "", files)
	assert.Equal(t, []string{"/cache/AND2x2_ASAP7_75t_R.v"}, out)
}

func TestSelectResolveFilesPlatformBFiltersByPrefix(t *testing.T) {
	files := []string{"/cache/sky130_fd_sc_hd__and2_2.v", "/cache/sky130_fd_sc_hd__or2_2.v"}
	out := SelectResolveFiles(PlatformB, "sky130_fd_sc_hd__and2", files)
	assert.Equal(t, []string{"/cache/sky130_fd_sc_hd__and2_2.v"}, out)
}

func TestResolveAfterBootstrap(t *testing.T) {
	workspace := t.TempDir()
	fetcher := newFakeFetcher()
	for _, src := range PlatformSources[PlatformA] {
		for _, name := range PlatformAFixedFiles {
			fetcher.raw[src.URL+"/"+name] = []byte("module " + name + "_stub (); endmodule\n")
		}
	}
	mgr := NewManager(fetcher, time.Second, time.Second)
	_, err := mgr.Bootstrap(context.Background(), workspace, PlatformA)
	require.NoError(t, err)

	files, manifest, err := mgr.Resolve(workspace, PlatformA, "")
	require.NoError(t, err)
	assert.NotEmpty(t, files)
	assert.Equal(t, PlatformA, manifest.Platform)
	for _, f := range files {
		assert.NotEqual(t, "dff.v", filepath.Base(f))
	}
}

func TestResolveMissingCacheReturnsNotFound(t *testing.T) {
	mgr := NewManager(newFakeFetcher(), time.Second, time.Second)
	_, _, err := mgr.Resolve(t.TempDir(), PlatformA, "")
	require.Error(t, err)
}

func TestCompatModelsMaterializesEmbeddedFiles(t *testing.T) {
	workspace := t.TempDir()

	models := CompatModels(workspace, PlatformA)
	require.Len(t, models, 1)
	assert.Contains(t, models[0], "SEQ_compat.v")

	content, err := os.ReadFile(models[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "module DFFx1_ASAP7_75t_R")

	assert.Nil(t, CompatModels(workspace, PlatformB))
}

func TestReadManifestMissingReturnsZeroValue(t *testing.T) {
	manifest, err := ReadManifest(t.TempDir(), PlatformA)
	require.NoError(t, err)
	assert.Empty(t, manifest.Platform)
}
