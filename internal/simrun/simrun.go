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

// Package simrun implements the simulation pipeline: a strict 4-state
// compile+run contract over an external Verilog compiler/simulator, with
// post-synth gate-level simulation that auto-resolves and auto-bootstraps
// platform stdcell models via internal/stdcell.
package simrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tombee/conductor-synth/internal/config"
	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/internal/stdcell"
)

// Mode selects RTL or post-synthesis gate-level simulation.
type Mode string

const (
	ModeRTL       Mode = "rtl"
	ModePostSynth Mode = "post_synth"
)

// Profile selects which stdcell model set backs a gate-level simulation.
type Profile string

const (
	ProfileAuto   Profile = "auto"
	ProfilePinned Profile = "pinned"
	ProfileCompat Profile = "compat"
)

// Status is the closed simulation status enum; it is the tool's sole
// success indicator.
type Status string

const (
	StatusCompileFailed Status = "compile_failed"
	StatusSimFailed     Status = "sim_failed"
	StatusTestFailed    Status = "test_failed"
	StatusTestPassed    Status = "test_passed"
)

const defaultPassMarker = "TEST PASSED"

// bootstrapHintPhrase leads every missing-cache message so callers (and the
// agent reading stderr_tail) can recognize the self-heal path by name.
const bootstrapHintPhrase = "First-Run Standard-Cell Bootstrap"

// Request is the simulation pipeline's input contract.
type Request struct {
	SourceFiles []string
	TopModule   string
	Mode        Mode

	// Post-synth only.
	RunID       string
	NetlistFile string
	Platform    string

	PassMarker string
	SimProfile Profile

	MaxLines int
	MaxChars int

	CompileTimeout time.Duration
	SimTimeout     time.Duration
}

// Result is the simulation response wire contract. It is self-describing:
// a reader never needs the original log files to determine status.
type Result struct {
	Status              Status   `json:"status"`
	CompileReturnCode   int      `json:"compile_returncode"`
	SimReturnCode       *int     `json:"sim_returncode,omitempty"`
	PassMarkerFound     bool     `json:"pass_marker_found"`
	StdoutTail          string   `json:"stdout_tail"`
	StderrTail          string   `json:"stderr_tail"`
	LogTruncated        bool     `json:"log_truncated"`
	UnresolvedCells     []string `json:"unresolved_cells,omitempty"`
	Mode                Mode     `json:"mode"`
	SimProfile          Profile  `json:"sim_profile"`
	CompileCommand      string   `json:"compile_command"`
	SimCommand          string   `json:"sim_command,omitempty"`
	FailureType         string   `json:"failure_type,omitempty"`
	FirstFailureLine    string   `json:"first_failure_line,omitempty"`
	FirstFailureSnippet string   `json:"first_failure_snippet,omitempty"`
	BootstrapAttempted  bool     `json:"stdcell_bootstrap_attempted,omitempty"`
	BootstrapResult     string   `json:"stdcell_bootstrap_result,omitempty"`
}

// RunMetaReader abstracts reading the post-synth run's netlist_path/platform
// from run_meta.json without simrun importing internal/synth (which would
// create an import cycle — synth calls into simrun for post-synth checks
// driven by the agent, not the other way around).
type RunMetaReader interface {
	NetlistAndPlatform(runID string) (netlistPath, platform string, err error)
	// RecordStdcellUsage stamps which stdcell manifest snapshot and model
	// files backed a gate-level simulation of the run, for later audit.
	RecordStdcellUsage(runID, manifestVersion string, files []string) error
}

// Pipeline runs simulations.
type Pipeline struct {
	Runner  procdriver.Runner
	Stdcell *stdcell.Manager
	Config  *config.Config
	RunMeta RunMetaReader

	// CompilerPath/SimArtifact name the external compiler binary and its
	// output artifact; defaults are the iverilog/vvp pair.
	CompilerPath string
	SimArtifact  string

	// NoAutoBootstrap disables self-healing: when true, a missing stdcell
	// cache is never auto-populated, only reported.
	NoAutoBootstrap bool
}

// New builds a Pipeline with the iverilog/vvp default tool pair.
func New(runner procdriver.Runner, mgr *stdcell.Manager, cfg *config.Config, runMeta RunMetaReader) *Pipeline {
	return &Pipeline{
		Runner:       runner,
		Stdcell:      mgr,
		Config:       cfg,
		RunMeta:      runMeta,
		CompilerPath: "iverilog",
		SimArtifact:  "a.out",
	}
}

var (
	reUnknownModuleType = regexp.MustCompile(`Unknown module type:\s*(\S+)`)
	reUndefinedModule   = regexp.MustCompile(`module\s+(\S+)\s+is undefined`)
	reUnresolvedModule  = regexp.MustCompile(`Unresolved module(?:\s+reference)?\s*:?\s*(\S+)`)

	reTimeout   = regexp.MustCompile(`(?i)timeout`)
	reFatal     = regexp.MustCompile(`(?i)\$fatal|fatal`)
	reAssertion = regexp.MustCompile(`(?i)assert|assertion`)
	reErrorFail = regexp.MustCompile(`(?i)error|fail`)
)

// Run executes the simulation pipeline end to end, never returning an
// error for a domain failure: every outcome is expressed in Result.Status.
func (p *Pipeline) Run(ctx context.Context, workspace string, req Request) (Result, error) {
	req = p.applyDefaults(req)

	result := Result{Mode: req.Mode, SimProfile: req.SimProfile}

	var includeFiles []string
	sourceFiles := append([]string{}, req.SourceFiles...)

	if req.Mode == ModePostSynth {
		netlist := req.NetlistFile
		platform := req.Platform
		if (netlist == "" || platform == "") && p.RunMeta != nil && req.RunID != "" {
			n, pf, err := p.RunMeta.NetlistAndPlatform(req.RunID)
			if err == nil {
				if netlist == "" {
					netlist = n
				}
				if platform == "" {
					platform = pf
				}
			}
		}

		profile := req.SimProfile
		if profile == ProfileAuto {
			if platform == stdcell.PlatformA {
				profile = ProfileCompat
			} else {
				profile = ProfilePinned
			}
		}
		result.SimProfile = profile

		models, err := p.resolvePostSynthModels(ctx, workspace, platform, profile, netlist, req.RunID, &result)
		if err != nil {
			return result, nil
		}
		includeFiles = models
		sourceFiles = append(sourceFiles, netlist)
	}

	filelistPath, includeDirs, err := writeFilelist(workspace, sourceFiles, includeFiles)
	if err != nil {
		result.Status = StatusCompileFailed
		result.StderrTail = err.Error()
		return result, nil
	}

	compileArgv := []string{p.CompilerPath, "-o", p.SimArtifact, "-c", filelistPath}
	for _, dir := range includeDirs {
		compileArgv = append(compileArgv, "-I", dir)
	}
	result.CompileCommand = strings.Join(compileArgv, " ")

	compileRes, err := p.Runner.Run(ctx, workspace, compileArgv, req.CompileTimeout)
	if err != nil {
		result.Status = StatusCompileFailed
		result.StderrTail = err.Error()
		return result, nil
	}
	result.CompileReturnCode = compileRes.ExitCode

	if !compileRes.Success {
		result.Status = StatusCompileFailed
		result.UnresolvedCells = extractUnresolvedCells(compileRes.Stderr)
		p.attachTails(&result, compileRes.Stdout, compileRes.Stderr, req)
		p.classifyFailure(&result, compileRes.Stdout, compileRes.Stderr)
		return result, nil
	}

	simArgv := []string{"vvp", filepath.Join(workspace, p.SimArtifact)}
	result.SimCommand = strings.Join(simArgv, " ")

	simRes, err := p.Runner.Run(ctx, workspace, simArgv, req.SimTimeout)
	if err != nil {
		result.Status = StatusSimFailed
		result.StderrTail = err.Error()
		return result, nil
	}
	exitCode := simRes.ExitCode
	result.SimReturnCode = &exitCode
	p.attachTails(&result, simRes.Stdout, simRes.Stderr, req)

	switch {
	case !simRes.Success:
		result.Status = StatusSimFailed
		p.classifyFailure(&result, simRes.Stdout, simRes.Stderr)
	case strings.Contains(simRes.Stdout, req.PassMarker):
		result.Status = StatusTestPassed
		result.PassMarkerFound = true
	default:
		result.Status = StatusTestFailed
		p.classifyFailure(&result, simRes.Stdout, simRes.Stderr)
	}

	return result, nil
}

func (p *Pipeline) applyDefaults(req Request) Request {
	if req.PassMarker == "" {
		req.PassMarker = defaultPassMarker
	}
	if req.SimProfile == "" {
		req.SimProfile = ProfileAuto
	}
	if req.MaxLines == 0 {
		req.MaxLines = p.Config.SimOutputMaxLines
	}
	if req.MaxChars == 0 {
		req.MaxChars = p.Config.SimOutputMaxChars
	}
	if req.CompileTimeout == 0 {
		req.CompileTimeout = time.Duration(p.Config.SimDefaultTimeoutSec) * time.Second
	}
	if req.SimTimeout == 0 {
		req.SimTimeout = time.Duration(p.Config.SimDefaultTimeoutSec) * time.Second
	}
	return req
}

// resolvePostSynthModels resolves the stdcell model list for a gate-level
// run: compat-model substitution on platform A, reference-scoped inclusion
// on platform B, and auto-bootstrap when the cache is missing.
func (p *Pipeline) resolvePostSynthModels(ctx context.Context, workspace, platform string, profile Profile, netlistPath, runID string, result *Result) ([]string, error) {
	prefix := ""
	if platform == stdcell.PlatformB {
		prefix = stdcell.PlatformBPrefix
	}

	files, manifest, err := p.Stdcell.Resolve(workspace, platform, prefix)
	if err != nil {
		if p.NoAutoBootstrap {
			result.Status = StatusCompileFailed
			result.StderrTail = bootstrapHint(platform)
			return nil, err
		}

		result.BootstrapAttempted = true
		_, bootstrapErr := p.Stdcell.Bootstrap(ctx, workspace, platform)
		if bootstrapErr != nil {
			result.BootstrapResult = "failed: " + bootstrapErr.Error()
			result.Status = StatusCompileFailed
			result.StderrTail = bootstrapHint(platform)
			return nil, bootstrapErr
		}
		result.BootstrapResult = "ok"

		files, manifest, err = p.Stdcell.Resolve(workspace, platform, prefix)
		if err != nil {
			result.Status = StatusCompileFailed
			result.StderrTail = bootstrapHint(platform)
			return nil, err
		}
	}

	if platform == stdcell.PlatformA && profile == ProfileCompat {
		netlistContent, readErr := os.ReadFile(netlistPath)
		if readErr == nil {
			files = substituteCompatModels(files, string(netlistContent), workspace)
		}
	}

	if platform == stdcell.PlatformB {
		netlistContent, readErr := os.ReadFile(netlistPath)
		if readErr == nil {
			files = restrictToReferencedCells(files, string(netlistContent))
		}
	}

	if p.RunMeta != nil && runID != "" {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = filepath.Base(f)
		}
		p.RunMeta.RecordStdcellUsage(runID, manifest.UpdatedAt, names)
	}

	return files, nil
}

var platformBCellRef = regexp.MustCompile(regexp.QuoteMeta(stdcell.PlatformBPrefix) + `__\w+`)

// restrictToReferencedCells narrows the stdcell include list to the cells the
// netlist actually instantiates. An empty reference set (a netlist that names
// no library cells at all) keeps the full list, so a degenerate netlist still
// compiles against every model.
func restrictToReferencedCells(files []string, netlistContent string) []string {
	referenced := map[string]bool{}
	for _, m := range platformBCellRef.FindAllString(netlistContent, -1) {
		referenced[m] = true
	}
	if len(referenced) == 0 {
		return files
	}

	out := make([]string, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".v")
		// Sized wrappers ("<cell>_2") reference the base cell's model name.
		base := name
		if i := strings.LastIndex(name, "_"); i > 0 {
			if _, isSized := referenced[name]; !isSized {
				base = name[:i]
			}
		}
		if referenced[name] || referenced[base] {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return files
	}
	return out
}

// bootstrapHint builds the self-heal message returned when the stdcell
// cache is absent, naming the bootstrap entry point the caller should run.
func bootstrapHint(platform string) string {
	return fmt.Sprintf(
		"%s: standard-cell cache for platform %q is empty. Run stdcell.Bootstrap(workspace, %q) "+
			"(the bootstrap_stdcells tool) to populate it from pinned upstream sources before retrying "+
			"post-synth simulation.",
		bootstrapHintPhrase, platform, platform,
	)
}

var reModuleDecl = regexp.MustCompile(`(?m)^\s*module\s+(\w+)`)

// substituteCompatModels replaces the bulk sequential-library file with the
// compatibility models, unless the netlist still references a module only
// the bulk file defines.
func substituteCompatModels(files []string, netlistContent string, workspace string) []string {
	const seqLibBaseName = "DFFx1_ASAP7_75t_R.v"

	var seqFile string
	rest := make([]string, 0, len(files))
	for _, f := range files {
		if filepath.Base(f) == seqLibBaseName {
			seqFile = f
			continue
		}
		rest = append(rest, f)
	}
	if seqFile == "" {
		return files
	}

	compat := stdcell.CompatModels(workspace, stdcell.PlatformA)
	if len(compat) == 0 {
		return files
	}

	// Any module the bulk file defines and the netlist instantiates must be
	// covered by a compat model, or the substitution would leave it
	// undefined. Keep the bulk file in that case.
	seqDefined := definedModules([]string{seqFile})
	compatDefined := definedModules(compat)
	for name := range seqDefined {
		if strings.Contains(netlistContent, name) && !compatDefined[name] {
			return files
		}
	}

	return append(rest, compat...)
}

// definedModules parses `module <name>` declarations out of Verilog files.
func definedModules(files []string) map[string]bool {
	out := map[string]bool{}
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		for _, m := range reModuleDecl.FindAllStringSubmatch(string(content), -1) {
			out[m[1]] = true
		}
	}
	return out
}

// writeFilelist emits a temp filelist (one source path per line), keeping
// long file sets off the command line, and returns the set of directories
// to pass as -I includes.
func writeFilelist(workspace string, sourceFiles, includeFiles []string) (string, []string, error) {
	all := append(append([]string{}, sourceFiles...), includeFiles...)

	dirSet := map[string]bool{}
	var lines []string
	for _, f := range all {
		lines = append(lines, f)
		dirSet[filepath.Dir(f)] = true
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	path := filepath.Join(workspace, ".sim_filelist.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return "", nil, err
	}
	return path, dirs, nil
}

// extractUnresolvedCells pulls missing-module names out of compiler stderr
// and returns them sorted and deduplicated.
func extractUnresolvedCells(stderr string) []string {
	seen := map[string]bool{}
	for _, re := range []*regexp.Regexp{reUnknownModuleType, reUndefinedModule, reUnresolvedModule} {
		for _, m := range re.FindAllStringSubmatch(stderr, -1) {
			if len(m) > 1 {
				seen[m[1]] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// attachTails truncates stdout/stderr to the per-stream budget and flags
// truncation.
func (p *Pipeline) attachTails(result *Result, stdout, stderr string, req Request) {
	outTail, outTrunc := truncateLog(stdout, req.MaxLines, req.MaxChars)
	errTail, errTrunc := truncateLog(stderr, req.MaxLines, req.MaxChars)
	result.StdoutTail = outTail
	result.StderrTail = errTail
	result.LogTruncated = outTrunc || errTrunc
}

func truncateLog(s string, maxLines, maxChars int) (string, bool) {
	truncated := false
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
		truncated = true
	}
	out := strings.Join(lines, "\n")
	if len(out) > maxChars {
		out = out[len(out)-maxChars:]
		truncated = true
	}
	return out, truncated
}

// classifyFailure scans stdout/stderr for failure-type keywords, most
// specific first, and captures the first matching line.
func (p *Pipeline) classifyFailure(result *Result, stdout, stderr string) {
	combined := stdout + "\n" + stderr
	lines := strings.Split(combined, "\n")

	classify := func(re *regexp.Regexp, failureType string) bool {
		for _, line := range lines {
			if re.MatchString(line) {
				result.FailureType = failureType
				result.FirstFailureLine = strings.TrimSpace(line)
				result.FirstFailureSnippet = snippet(lines, line)
				return true
			}
		}
		return false
	}

	switch {
	case classify(reTimeout, "timeout"):
	case classify(reFatal, "fatal"):
	case classify(reAssertion, "assertion"):
	case classify(reErrorFail, "error"):
	}
}

func snippet(lines []string, match string) string {
	for i, l := range lines {
		if l == match {
			start := i - 1
			if start < 0 {
				start = 0
			}
			end := i + 2
			if end > len(lines) {
				end = len(lines)
			}
			return strings.Join(lines[start:end], "\n")
		}
	}
	return match
}
