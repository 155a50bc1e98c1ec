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

// Package mcpserver exposes the Tool Façade as an MCP server so an agent
// runtime can drive synthesis, simulation, stdcell, session, and attempt
// tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/conductor-synth/internal/toolfacade"
)

// Server wraps the MCP server and dispatches its tools to a Facade.
type Server struct {
	mcpServer *server.MCPServer
	facade    *toolfacade.Facade
	name      string
	version   string
	logger    *slog.Logger
}

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
}

// NewServer builds an MCP server with every tool registered against
// facade.
func NewServer(cfg Config, facade *toolfacade.Facade, logger *slog.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "synthctl"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: server.NewMCPServer(cfg.Name, cfg.Version),
		facade:    facade,
		name:      cfg.Name,
		version:   cfg.Version,
		logger:    logger,
	}
	s.registerSynthesisTools()
	s.registerSimulationTools()
	s.registerStdcellTools()
	s.registerSessionTools()
	s.registerAttemptTools()
	return s
}

// withJournal wraps a tool handler so every call and its result is recorded
// in the attempt logger's journal, regardless of which tool it
// is or what session_id argument shape it uses.
func (s *Server) withJournal(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		sessionID := argStringOr(args, "session_id", s.facade.ActiveSession())
		callID := uuid.NewString()

		s.facade.LogToolCall(ctx, sessionID, "agent", tool, args, callID)
		result, err := handler(ctx, request)

		status, errMsg := "ok", ""
		if err != nil {
			status, errMsg = "error", err.Error()
		} else if result != nil && result.IsError {
			status = "error"
			errMsg = resultText(result)
		}
		s.facade.LogToolResult(ctx, sessionID, "agent", tool, resultText(result), status, errMsg, callID, args)
		return result, err
	}
}

func resultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// Run serves the registered tools over stdio until the transport closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting synthctl MCP server", slog.String("version", s.version))
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// argFloat/argInt/argBool/argStringOr read an optional field out of the raw
// argument map for types mcp.CallToolRequest has no typed getter for.
// JSON-RPC numbers decode as float64, so numeric fields always arrive this
// way regardless of the schema's declared "number"/"integer" type.
func argFloat(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argStringOr(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}
