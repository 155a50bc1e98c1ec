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

func (s *Server) registerSessionTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new session with its own workspace directory and bind it as the active session for subsequent tool calls that omit session_id.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"tag":        map[string]interface{}{"type": "string", "description": "Human-readable label for the session."},
				"model_name": map[string]interface{}{"type": "string"},
			},
		},
	}, s.withJournal("create_session", s.handleCreateSession))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "use_session",
		Description: "Bind an existing session as the active session without creating a new one.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
			},
			Required: []string{"session_id"},
		},
	}, s.withJournal("use_session", s.handleUseSession))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all known sessions with their token/cost accounting.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.withJournal("list_sessions", s.handleListSessions))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_metadata",
		Description: "Return metadata for one session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
			},
			Required: []string{"session_id"},
		},
	}, s.withJournal("session_metadata", s.handleSessionMetadata))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "update_session_stats",
		Description: "Replace a session's token and cost counters with the given absolute values; tokens_total is recomputed as their sum.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id":    map[string]interface{}{"type": "string"},
				"tokens_input":  map[string]interface{}{"type": "integer"},
				"tokens_output": map[string]interface{}{"type": "integer"},
				"tokens_cached": map[string]interface{}{"type": "integer"},
				"cost_usd":      map[string]interface{}{"type": "number"},
			},
			Required: []string{"session_id"},
		},
	}, s.withJournal("update_session_stats", s.handleUpdateSessionStats))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session and its workspace directory.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
			},
			Required: []string{"session_id"},
		},
	}, s.withJournal("delete_session", s.handleDeleteSession))
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := request.GetString("tag", "")
	modelName := request.GetString("model_name", "")
	return textResponse(s.facade.CreateSession(ctx, tag, modelName)), nil
}

func (s *Server) handleUseSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return errorResponse("missing or invalid 'session_id' argument"), nil
	}
	return textResponse(s.facade.SwitchSession(ctx, sessionID)), nil
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResponse(s.facade.ListSessions(ctx)), nil
}

func (s *Server) handleSessionMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return errorResponse("missing or invalid 'session_id' argument"), nil
	}
	return textResponse(s.facade.SessionMetadata(ctx, sessionID)), nil
}

func (s *Server) handleUpdateSessionStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return errorResponse("missing or invalid 'session_id' argument"), nil
	}
	args := request.GetArguments()
	result := s.facade.UpdateSessionStats(ctx, sessionID,
		int64(argInt(args, "tokens_input", 0)),
		int64(argInt(args, "tokens_output", 0)),
		int64(argInt(args, "tokens_cached", 0)),
		argFloat(args, "cost_usd", 0),
	)
	return textResponse(result), nil
}

func (s *Server) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return errorResponse("missing or invalid 'session_id' argument"), nil
	}
	return textResponse(s.facade.DeleteSession(ctx, sessionID)), nil
}
