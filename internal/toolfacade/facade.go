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

// Package toolfacade is a thin, policy-free layer between the agent's
// tool-calling convention and the components in internal/synth,
// internal/simrun, internal/stdcell, internal/session, and
// internal/attemptlog.
//
// It owns exactly three responsibilities:
//
//  1. Resolve the active workspace from the session the agent most recently
//     switched to (internal/session.Store.WorkspaceDir), so a tool call
//     that names no workspace still lands in the right place.
//  2. Normalize polymorphic arguments — today just the verilog_files
//     list/string/JSON-string shape every start/sim call accepts.
//  3. Route to the right component and marshal its result (or any error,
//     converted via internal/errs.KindOf) to the JSON string contract
//     every tool returns. No exception ever reaches the caller: invoke
//     recovers a panicking handler into an internal-kind error result.
package toolfacade

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tombee/conductor-synth/internal/attemptlog"
	"github.com/tombee/conductor-synth/internal/config"
	"github.com/tombee/conductor-synth/internal/errs"
	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/internal/session"
	"github.com/tombee/conductor-synth/internal/stdcell"
	"github.com/tombee/conductor-synth/internal/synth"
	"github.com/tombee/conductor-synth/internal/tracing"
)

// Facade is the tool façade. One instance is constructed at process
// startup and shared by every tool call.
type Facade struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Store
	synthMgr *synth.Manager
	stdcells *stdcell.Manager
	flow     procdriver.Runner
	attempts *attemptlog.Logger
	tracer   *tracing.Provider

	mu            sync.RWMutex
	activeSession string
}

// New builds a Facade over already-constructed collaborators. Each
// collaborator is itself unit-testable in isolation (see their package
// tests); Facade only wires them together and adds workspace resolution,
// argument normalization, and error-to-JSON conversion.
func New(cfg *config.Config, logger *slog.Logger, sessions *session.Store, synthMgr *synth.Manager, stdcells *stdcell.Manager, flow procdriver.Runner, attempts *attemptlog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		synthMgr: synthMgr,
		stdcells: stdcells,
		flow:     flow,
		attempts: attempts,
	}
}

// WithTracer attaches a tracing.Provider so subsequent calls open spans
// around synthesis, simulation, and bootstrap operations. A Facade with no
// tracer attached runs identically, just unobserved.
func (f *Facade) WithTracer(tracer *tracing.Provider) *Facade {
	f.tracer = tracer
	return f
}

// UseSession sets the active session, the binding later tool calls resolve
// their workspace against when no explicit workspace is given. This is the
// Go analogue of the agent's session-switcher tool setting an environment
// binding.
func (f *Facade) UseSession(sessionID string) {
	f.mu.Lock()
	f.activeSession = sessionID
	f.mu.Unlock()
}

// ActiveSession returns the currently bound session_id, or "" if none.
func (f *Facade) ActiveSession() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.activeSession
}

// resolveWorkspace maps a session to its workspace directory. An explicit
// sessionID argument always wins; falling back to the bound active session
// keeps single-session tool calls terse.
func (f *Facade) resolveWorkspace(ctx context.Context, sessionID string) (string, string, error) {
	if sessionID == "" {
		sessionID = f.ActiveSession()
	}
	if sessionID == "" {
		return "", "", &errs.ValidationError{Field: "session_id", Message: "no session_id given and no active session is bound"}
	}
	rec, err := f.sessions.Metadata(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	if rec == nil {
		return "", "", &errs.NotFoundError{Resource: "session", ID: sessionID}
	}
	return sessionID, f.sessions.WorkspaceDir(sessionID), nil
}
