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

// Package synthtypes holds the wire-format structs shared across the
// synthesis job manager, simulation pipeline, stdcell cache, and the tool
// façade that serializes them to JSON for the agent. These are plain data;
// none of them carry behavior.
package synthtypes

// GuardrailStatus is the three-valued outcome of a guardrail check.
type GuardrailStatus string

const (
	GuardrailPass GuardrailStatus = "pass"
	GuardrailFail GuardrailStatus = "fail"
	GuardrailSkip GuardrailStatus = "skip"
)

// RunStatus is the lifecycle of a synthesis run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// GuardrailSummary is the {constraints, signoff, equiv} triple recorded on
// every run.
type GuardrailSummary struct {
	Constraints GuardrailStatus `json:"constraints"`
	Signoff     GuardrailStatus `json:"signoff"`
	Equiv       GuardrailStatus `json:"equiv"`
}

// SummaryMetrics is the PPA extraction result.
type SummaryMetrics struct {
	AreaUm2   *float64 `json:"area_um2,omitempty"`
	CellCount *int     `json:"cell_count,omitempty"`
	WNSNs     *float64 `json:"wns_ns,omitempty"`
	TNSNs     *float64 `json:"tns_ns,omitempty"`
	PowerUW   *float64 `json:"power_uw,omitempty"`
}

// Violations is the timing-violation-count table.
type Violations struct {
	Setup     *int `json:"setup,omitempty"`
	Hold      *int `json:"hold,omitempty"`
	MaxSlew   *int `json:"max_slew,omitempty"`
	MaxCap    *int `json:"max_cap,omitempty"`
	MaxFanout *int `json:"max_fanout,omitempty"`
}

// ArtifactCounts is the {gds, def, odb, reports, netlists} tally in a status
// response.
type ArtifactCounts struct {
	GDS      int `json:"gds"`
	DEF      int `json:"def"`
	ODB      int `json:"odb"`
	Reports  int `json:"reports"`
	Netlists int `json:"netlists"`
}

// RunMeta is the full, persisted run_meta.json contract.
type RunMeta struct {
	RunID           string           `json:"run_id"`
	JobID           string           `json:"job_id"`
	CreatedAt       string           `json:"created_at"`
	Status          RunStatus        `json:"status"`
	Platform        string           `json:"platform"`
	TopModule       string           `json:"top_module"`
	InputFiles      []string         `json:"input_files"`
	ClockPeriodNs   float64          `json:"clock_period_ns"`
	ConstraintsMode string           `json:"constraints_mode"`
	AutoChecks      GuardrailSummary `json:"auto_checks"`
	CheckNotes      string           `json:"check_notes"`

	DockerSuccess    *bool           `json:"docker_success,omitempty"`
	DockerCommand    string          `json:"docker_command,omitempty"`
	DockerStdoutTail string          `json:"docker_stdout_tail,omitempty"`
	DockerStderrTail string          `json:"docker_stderr_tail,omitempty"`
	NetlistPath      string          `json:"netlist_path,omitempty"`
	SummaryMetrics   *SummaryMetrics `json:"summary_metrics,omitempty"`
	FinishedAt       string          `json:"finished_at,omitempty"`
	ElapsedSec       float64         `json:"elapsed_sec,omitempty"`
	NextAction       string          `json:"next_action,omitempty"`
	EquivNote        string          `json:"equiv_note,omitempty"`

	// Provenance of the stdcell models that backed this run.
	StdcellManifestVersion string   `json:"stdcell_manifest_version,omitempty"`
	StdcellFilesUsed       []string `json:"stdcell_files_used,omitempty"`
}

// StatusResponse is the polling contract.
type StatusResponse struct {
	JobID          string           `json:"job_id"`
	RunID          string           `json:"run_id"`
	Status         RunStatus        `json:"status"`
	Stage          string           `json:"stage"`
	ElapsedSec     float64          `json:"elapsed_sec"`
	LastLogLines   []string         `json:"last_log_lines"`
	ArtifactsFound ArtifactCounts   `json:"artifacts_found"`
	SummaryMetrics *SummaryMetrics  `json:"summary_metrics,omitempty"`
	AutoChecks     GuardrailSummary `json:"auto_checks"`
	CheckNotes     string           `json:"check_notes"`
	NextAction     string           `json:"next_action"`
	PollAfterSec   int              `json:"poll_after_sec"`
	PollHint       string           `json:"poll_hint"`

	RateLimited        bool `json:"rate_limited,omitempty"`
	RetryAfterSec      int  `json:"retry_after_sec,omitempty"`
	TimedOut           bool `json:"timed_out,omitempty"`
	RecoveredFromIndex bool `json:"recovered_from_index,omitempty"`
}

// MetricsResponse carries the parsed PPA metrics, their source report
// paths, and completeness accounting for one run.
type MetricsResponse struct {
	Status        string            `json:"status"` // "ok" | "error"
	RunID         string            `json:"run_id,omitempty"`
	TopModule     string            `json:"top_module,omitempty"`
	Platform      string            `json:"platform,omitempty"`
	Metrics       SummaryMetrics    `json:"metrics"`
	Violations    Violations        `json:"violations"`
	Sources       map[string]string `json:"sources"`
	Complete      bool              `json:"complete"`
	MissingFields []string          `json:"missing_fields"`
	ParseNotes    []string          `json:"parse_notes"`
	Error         string            `json:"error,omitempty"`
}

// StdcellManifest is the `_stdcells/<platform>/sim/manifest.json` contract.
type StdcellManifest struct {
	Platform     string                `json:"platform"`
	SourceImage  string                `json:"source_image"`
	SourcePolicy string                `json:"source_policy"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
	Files        []StdcellManifestFile `json:"files"`
	Sources      map[string]any        `json:"sources,omitempty"`
}

// StdcellManifestFile is one entry in StdcellManifest.Files.
type StdcellManifestFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// BootstrapResult is what a stdcell bootstrap returns.
type BootstrapResult struct {
	Platform     string `json:"platform"`
	CacheDir     string `json:"cache_dir"`
	ManifestPath string `json:"manifest_path"`
	FileCount    int    `json:"file_count"`
}

// RunIndexEntry / JobIndexEntry back index.json.
type RunIndexEntry struct {
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	UpdatedAt string    `json:"updated_at"`
}

type JobIndexEntry struct {
	JobID     string    `json:"job_id"`
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	UpdatedAt string    `json:"updated_at"`
}

// RunIndex is the full index.json document.
type RunIndex struct {
	Runs []RunIndexEntry `json:"runs"`
	Jobs []JobIndexEntry `json:"jobs"`
}
