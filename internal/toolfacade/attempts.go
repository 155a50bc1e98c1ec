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

import (
	"context"

	"github.com/tombee/conductor-synth/internal/attemptlog"
)

// LogToolCall records a tool invocation in the attempt logger's journal
// before the tool itself runs. The MCP layer calls this around every
// handler, not just the ones defined in this package.
func (f *Facade) LogToolCall(ctx context.Context, sessionID, source, tool string, arguments any, toolCallID string) {
	workspace := f.sessions.WorkspaceDir(sessionID)
	_ = f.attempts.LogCall(workspace, sessionID, source, tool, arguments, toolCallID)
}

// LogToolResult records a tool's outcome after it runs.
func (f *Facade) LogToolResult(ctx context.Context, sessionID, source, tool string, result any, status, errMsg, toolCallID string, arguments any) {
	workspace := f.sessions.WorkspaceDir(sessionID)
	_ = f.attempts.LogResult(workspace, sessionID, source, tool, result, status, errMsg, toolCallID, arguments)
}

// GetAttemptSummary implements get_attempt_summary: return the derived
// rolling summary of attempts, pass state, and best attempt for a
// session.
func (f *Facade) GetAttemptSummary(ctx context.Context, sessionID string) string {
	return invoke(func() (any, error) {
		_, workspace, err := f.resolveWorkspace(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return attemptlog.ReadSummary(workspace)
	})
}
