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

package attemptlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/tombee/conductor-synth/internal/errs"
)

// Attempt is one segment of the session's event history, opened on the
// first change-tool call and closed when the next change-tool call arrives
// after this attempt already recorded a checkpoint or failure.
type Attempt struct {
	Number     int    `json:"number"`
	ChangeType string `json:"change_type"`

	LintPass *bool `json:"lint_pass,omitempty"`

	SimStatus        string `json:"sim_status,omitempty"`
	RTLSimPass       bool   `json:"rtl_sim_pass"`
	PostSynthSimPass bool   `json:"post_synth_sim_pass"`

	SynthStatus string         `json:"synth_status,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`

	EventCount int `json:"event_count"`

	changeToolsSeen map[string]bool
	hasCheckpoint   bool
	hasFailure      bool
}

// Final is the session-level rollup across all attempts.
type Final struct {
	Success     bool `json:"success"`
	BestAttempt *int `json:"best_attempt,omitempty"`
}

// Summary is the full attempt_log.json document for one session.
type Summary struct {
	SessionID string    `json:"session_id"`
	Attempts  []Attempt `json:"attempts"`
	Final     Final     `json:"final"`
}

// buildSummary rebuilds the full Summary from a session's entire event
// history. It is deterministic in the events, so it is always safe to
// recompute from scratch on every append.
func buildSummary(sessionID string, events []Event) Summary {
	var attempts []Attempt
	var current *Attempt

	openAttempt := func() *Attempt {
		a := Attempt{Number: len(attempts) + 1, changeToolsSeen: map[string]bool{}}
		attempts = append(attempts, a)
		return &attempts[len(attempts)-1]
	}

	for _, ev := range events {
		if ev.Kind != "call" && ev.Kind != "result" {
			continue
		}

		if ev.Kind == "call" && isChangeTool(ev.Tool) {
			if current == nil || current.hasCheckpoint || current.hasFailure {
				current = openAttempt()
			}
			current.changeToolsSeen[ev.Tool] = true
			current.ChangeType = normalizeChangeType(current.changeToolsSeen)
		}

		if current == nil {
			current = openAttempt()
		}
		current.EventCount++

		if ev.Kind == "result" && isCheckpointTool(ev.Tool) {
			current.hasCheckpoint = true
			applyCheckpointResult(current, ev)
		}
		if ev.Kind == "result" && ev.Status == "error" {
			current.hasFailure = true
		}
	}

	rtlPassSeen := false
	postSynthPassSeen := false
	var bestAttempt *int
	for i := range attempts {
		if attempts[i].RTLSimPass {
			rtlPassSeen = true
		}
		if attempts[i].PostSynthSimPass {
			postSynthPassSeen = true
		}
		if rtlPassSeen && postSynthPassSeen && bestAttempt == nil {
			n := attempts[i].Number
			bestAttempt = &n
		}
	}

	return Summary{
		SessionID: sessionID,
		Attempts:  attempts,
		Final:     Final{Success: rtlPassSeen && postSynthPassSeen, BestAttempt: bestAttempt},
	}
}

// applyCheckpointResult updates an attempt's rollups from one checkpoint
// tool's result event.
func applyCheckpointResult(a *Attempt, ev Event) {
	switch ev.Tool {
	case "linter_tool":
		text := resultText(ev.Result)
		pass := strings.Contains(strings.ToLower(text), "syntax ok")
		a.LintPass = &pass

	case "simulation_tool":
		data, ok := resultObject(ev.Result)
		if !ok {
			return
		}
		status, _ := data["status"].(string)
		a.SimStatus = status
		mode, _ := data["mode"].(string)
		switch status {
		case "test_passed":
			if mode == "post_synth" {
				a.PostSynthSimPass = true
			} else {
				a.RTLSimPass = true
			}
		}

	case "get_synthesis_metrics":
		data, ok := resultObject(ev.Result)
		if !ok {
			return
		}
		if metrics, ok := data["metrics"].(map[string]any); ok {
			a.Metrics = metrics
		}
		if status, ok := data["status"].(string); ok {
			a.SynthStatus = status
		}

	case "generate_report_tool":
		// Informational only; no rollup field depends on its content.
	}
}

// ReadSummary loads a workspace's persisted attempt_log.json, the rolled-up
// view get_attempt_summary returns without needing this process's in-memory
// event history.
func ReadSummary(workspace string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(filepath.Join(workspace, summaryFile))
	if os.IsNotExist(err) {
		return s, &errs.NotFoundError{Resource: "attempt summary", ID: workspace}
	}
	if err != nil {
		return s, errs.Wrap(err, "reading attempt_log.json")
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, errs.Wrap(err, "parsing attempt_log.json")
	}
	return s, nil
}

func resultObject(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	default:
		return nil, false
	}
}

func resultText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
