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

	"github.com/tombee/conductor-synth/internal/toolfacade"
)

func (s *Server) registerStdcellTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "bootstrap_stdcells",
		Description: "Fetch and cache the pinned standard-cell model sources for a platform into the session workspace, if not already cached.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
				"platform":   map[string]interface{}{"type": "string", "enum": []string{"asap7", "sky130hd"}},
			},
			Required: []string{"platform"},
		},
	}, s.withJournal("bootstrap_stdcells", s.handleBootstrapStdcells))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "resolve_stdcells",
		Description: "Return the ordered standard-cell model file list and manifest for simulation against a platform, applying the pinned/compat selection policy.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id":         map[string]interface{}{"type": "string"},
				"platform":           map[string]interface{}{"type": "string"},
				"module_name_prefix": map[string]interface{}{"type": "string"},
			},
			Required: []string{"platform"},
		},
	}, s.withJournal("resolve_stdcells", s.handleResolveStdcells))
}

func (s *Server) handleBootstrapStdcells(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platform, err := request.RequireString("platform")
	if err != nil {
		return errorResponse("missing or invalid 'platform' argument"), nil
	}
	sessionID := request.GetString("session_id", "")
	return textResponse(s.facade.BootstrapStdcells(ctx, sessionID, platform)), nil
}

func (s *Server) handleResolveStdcells(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platform, err := request.RequireString("platform")
	if err != nil {
		return errorResponse("missing or invalid 'platform' argument"), nil
	}
	args := request.GetArguments()
	result := s.facade.ResolveStdcells(ctx, toolfacade.ResolveStdcellsArgs{
		SessionID:        argStringOr(args, "session_id", ""),
		Platform:         platform,
		ModuleNamePrefix: argStringOr(args, "module_name_prefix", ""),
	})
	return textResponse(result), nil
}
