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

package specmgr

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// LatestSpecCache caches the path of the most recently modified *_spec.yaml
// file in a workspace so the constraints guardrail doesn't re-stat every
// file in the workspace on every synthesis start. An fsnotify watcher
// invalidates the cache on create/write/rename/remove.
type LatestSpecCache struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	path  string
	valid atomic.Bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewLatestSpecCache starts watching dir for *_spec.yaml changes.
// Watching is best-effort: if fsnotify setup fails (e.g. inotify limits
// exhausted), the cache still works, just re-scanning on every miss.
func NewLatestSpecCache(dir string, logger *slog.Logger) *LatestSpecCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &LatestSpecCache{dir: dir, logger: logger, stopCh: make(chan struct{})}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Warn("spec cache: fsnotify unavailable, falling back to re-scan on every lookup", "error", err)
		return c
	}
	if err := fsw.Add(dir); err != nil {
		c.logger.Warn("spec cache: failed to watch workspace dir", "dir", dir, "error", err)
		fsw.Close()
		return c
	}

	c.watcher = fsw
	go c.loop()
	return c
}

func (c *LatestSpecCache) loop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if strings.HasSuffix(ev.Name, "_spec.yaml") {
				c.invalidate()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("spec cache: watcher error", "error", err)
		case <-c.stopCh:
			return
		}
	}
}

func (c *LatestSpecCache) invalidate() {
	c.valid.Store(false)
}

// Close stops the background watcher goroutine.
func (c *LatestSpecCache) Close() {
	close(c.stopCh)
	if c.watcher != nil {
		c.watcher.Close()
	}
}

// Lookup returns the path of the most recently modified *_spec.yaml file in
// the workspace, or "" if none exists.
func (c *LatestSpecCache) Lookup() (string, error) {
	if c.valid.Load() {
		c.mu.Lock()
		p := c.path
		c.mu.Unlock()
		return p, nil
	}

	path, err := FindLatestSpec(c.dir)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.path = path
	c.mu.Unlock()
	c.valid.Store(true)
	return path, nil
}

// FindLatestSpec scans dir for *_spec.yaml files and returns the one with
// the most recent mtime, or "" if none exist.
func FindLatestSpec(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var best string
	var bestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_spec.yaml") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mt := info.ModTime().UnixNano(); best == "" || mt > bestMod {
			best = filepath.Join(dir, e.Name())
			bestMod = mt
		}
	}
	return best, nil
}
