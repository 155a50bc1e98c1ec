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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tombee/conductor-synth/internal/errs"
	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

var stageKeywords = []struct {
	re    *regexp.Regexp
	stage string
}{
	{regexp.MustCompile(`(?i)global route|detailed route|\broute\b`), "route"},
	{regexp.MustCompile(`(?i)clock tree|\bcts\b`), "cts"},
	{regexp.MustCompile(`(?i)\bplace\b`), "place"},
	{regexp.MustCompile(`(?i)\bfloorplan\b`), "floorplan"},
	{regexp.MustCompile(`(?i)yosys|\bsynth\b`), "synth"},
	{regexp.MustCompile(`(?i)finish|\bfinal\b`), "final"},
}

// GetStatus consults the live in-process job first, then falls back to
// disk recovery via the run index, and applies the min-interval rate
// limiter and per-job exponential backoff to live non-terminal jobs.
func (m *Manager) GetStatus(ctx context.Context, jobID, workspace string) (synthtypes.StatusResponse, error) {
	m.mu.Lock()
	j, live := m.jobs[jobID]
	m.mu.Unlock()

	if !live {
		return m.recoverFromIndex(jobID, workspace)
	}

	select {
	case <-j.done:
		j.mu.Lock()
		resp := *j.terminal
		j.backoffCount = 0
		j.mu.Unlock()
		return resp, nil
	default:
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	if j.lastPoll != nil && now.Sub(j.lastPollAt) < time.Duration(m.cfg.PollMinIntervalSec)*time.Second {
		remaining := time.Duration(m.cfg.PollMinIntervalSec)*time.Second - now.Sub(j.lastPollAt)
		if m.metrics != nil {
			m.metrics.RecordPoll(true)
		}
		cached := *j.lastPoll
		cached.RateLimited = true
		cached.RetryAfterSec = int(remaining.Seconds()) + 1
		cached.CheckNotes = strings.TrimSpace(cached.CheckNotes + " Rate limited.")
		cached.NextAction = "wait/poll"
		return cached, nil
	}

	if m.metrics != nil {
		m.metrics.RecordPoll(false)
	}

	stage, lastLines := inferStage(j.runDir)
	j.backoffCount++
	pollAfter := m.cfg.PollBackoffDuration(j.backoffCount)

	resp := synthtypes.StatusResponse{
		JobID:          j.id,
		RunID:          j.runID,
		Status:         synthtypes.RunRunning,
		Stage:          stage,
		ElapsedSec:     time.Since(j.createdAt).Seconds(),
		LastLogLines:   lastLines,
		ArtifactsFound: countArtifacts(j.runDir),
		PollAfterSec:   int(pollAfter.Seconds()),
		PollHint:       fmt.Sprintf("poll again in about %ds", int(pollAfter.Seconds())),
		NextAction:     "wait/poll",
	}
	j.lastPoll = &resp
	j.lastPollAt = now
	return resp, nil
}

// recoverFromIndex answers status queries for jobs this process no longer
// has a live task handle for (e.g. after a restart) from the persisted run
// index and run_meta.json.
func (m *Manager) recoverFromIndex(jobID, workspace string) (synthtypes.StatusResponse, error) {
	entry, ok := findJobInIndex(workspace, jobID)
	if !ok {
		return synthtypes.StatusResponse{
			JobID:      jobID,
			Status:     synthtypes.RunFailed,
			CheckNotes: "Unknown job_id",
			NextAction: "verify job_id and workspace",
		}, nil
	}

	runDir := RunDir(workspace, entry.RunID)
	meta, err := readRunMeta(runDir)
	if err != nil {
		return synthtypes.StatusResponse{}, errs.Wrapf(err, "reading run_meta.json for recovered job %s", jobID)
	}

	notes := meta.CheckNotes
	if meta.Status != synthtypes.RunCompleted && meta.Status != synthtypes.RunFailed {
		notes = strings.TrimSpace(notes + " The live task handle is not available for this process; status reflects the last persisted run_meta.json.")
	}

	return synthtypes.StatusResponse{
		JobID:              jobID,
		RunID:              entry.RunID,
		Status:             meta.Status,
		Stage:              "unknown",
		ElapsedSec:         meta.ElapsedSec,
		ArtifactsFound:     countArtifacts(runDir),
		SummaryMetrics:     meta.SummaryMetrics,
		AutoChecks:         meta.AutoChecks,
		CheckNotes:         notes,
		NextAction:         meta.NextAction,
		RecoveredFromIndex: true,
	}, nil
}

// Wait polls GetStatus until the job reaches a terminal state or the
// max_wait budget is exhausted, sleeping the largest of the advisory
// intervals between polls.
func (m *Manager) Wait(ctx context.Context, jobID, workspace string, maxWaitSec, pollIntervalSec int) (synthtypes.StatusResponse, error) {
	deadline := time.Now().Add(time.Duration(maxWaitSec) * time.Second)
	var last synthtypes.StatusResponse

	for {
		resp, err := m.GetStatus(ctx, jobID, workspace)
		if err != nil {
			return synthtypes.StatusResponse{}, err
		}
		last = resp

		if resp.Status == synthtypes.RunCompleted || resp.Status == synthtypes.RunFailed {
			return resp, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			last.TimedOut = true
			last.NextAction = "wait again; the job has not reached a terminal state yet"
			return last, nil
		}

		sleep := time.Duration(pollIntervalSec) * time.Second
		if d := time.Duration(resp.RetryAfterSec) * time.Second; d > sleep {
			sleep = d
		}
		if d := time.Duration(resp.PollAfterSec) * time.Second; d > sleep {
			sleep = d
		}
		if sleep < time.Second {
			sleep = time.Second
		}
		if sleep > remaining {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			last.TimedOut = true
			return last, nil
		case <-time.After(sleep):
		}
	}
}

// Metrics resolves the run directory and parses its reports. If run_id is
// empty, the most recent run (LATEST) is used.
func (m *Manager) Metrics(ctx context.Context, workspace, runID string) (synthtypes.MetricsResponse, error) {
	if runID == "" {
		content, err := os.ReadFile(latestPath(workspace))
		if err != nil {
			return synthtypes.MetricsResponse{Status: "error", Error: "no runs recorded for this workspace"}, nil
		}
		runID = strings.TrimSpace(string(content))
	}

	runDir := RunDir(workspace, runID)
	if _, err := os.Stat(runDir); err != nil {
		return synthtypes.MetricsResponse{Status: "error", Error: fmt.Sprintf("run directory not found for run_id %q", runID)}, nil
	}

	resp := extractMetrics(runDir)
	resp.RunID = runID
	if meta, err := readRunMeta(runDir); err == nil {
		resp.TopModule = meta.TopModule
		resp.Platform = meta.Platform
	}
	return resp, nil
}

// inferStage regexes the tail of the most recently modified log file under
// orfs_logs/ for flow-stage keywords.
func inferStage(runDir string) (string, []string) {
	logDir := filepath.Join(runDir, "orfs_logs")
	entries, err := os.ReadDir(logDir)
	if err != nil || len(entries) == 0 {
		return "unknown", nil
	}

	var newest os.DirEntry
	var newestTime time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestTime) {
			newestTime = info.ModTime()
			newest = e
		}
	}
	if newest == nil {
		return "unknown", nil
	}

	content, err := os.ReadFile(filepath.Join(logDir, newest.Name()))
	if err != nil {
		return "unknown", nil
	}

	lines := strings.Split(string(content), "\n")
	tail := lines
	if len(tail) > 40 {
		tail = tail[len(tail)-40:]
	}

	joined := strings.Join(tail, "\n")
	for _, sk := range stageKeywords {
		if sk.re.MatchString(joined) {
			return sk.stage, tail
		}
	}
	return "unknown", tail
}
