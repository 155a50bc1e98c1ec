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

package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerAttemptTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_attempt_summary",
		Description: "Return the rolled-up attempt history for a session: per-attempt lint/sim/synth status and whether both RTL and post-synthesis simulation have passed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
			},
		},
	}, s.withJournal("get_attempt_summary", s.handleGetAttemptSummary))
}

func (s *Server) handleGetAttemptSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	return textResponse(s.facade.GetAttemptSummary(ctx, sessionID)), nil
}
