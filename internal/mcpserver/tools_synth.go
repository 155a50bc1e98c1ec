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

func (s *Server) registerSynthesisTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "start_synthesis",
		Description: "Start an asynchronous synthesis job (RTL elaboration through place-and-route) for a design against a standard-cell platform. Returns immediately with a job_id; poll get_synthesis_status or call wait_synthesis for the result.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session whose workspace holds the design. Defaults to the active session.",
				},
				"verilog_files": map[string]interface{}{
					"description": "Verilog source file paths, relative to the session workspace.",
				},
				"top_module": map[string]interface{}{
					"type":        "string",
					"description": "Name of the top-level module to synthesize.",
				},
				"platform": map[string]interface{}{
					"type":        "string",
					"description": "Standard-cell platform: asap7 or sky130hd.",
				},
				"clock_period_ns": map[string]interface{}{
					"type":        "number",
					"description": "Target clock period in nanoseconds.",
				},
				"utilization": map[string]interface{}{
					"type":        "number",
					"description": "Target core utilization fraction, e.g. 0.5.",
				},
				"aspect_ratio": map[string]interface{}{
					"type":        "number",
					"description": "Core aspect ratio (height/width).",
				},
				"core_margin": map[string]interface{}{
					"type":        "number",
					"description": "Core-to-die margin in microns.",
				},
				"timeout_sec": map[string]interface{}{
					"type":        "integer",
					"description": "Hard timeout for the job, clamped to the server's configured maximum.",
				},
				"run_equiv": map[string]interface{}{
					"type":        "boolean",
					"description": "Run logical equivalence checking against the synthesized netlist after synthesis.",
				},
				"constraints_mode": map[string]interface{}{
					"type":        "string",
					"description": "SDC generation mode, if the design spec doesn't already supply constraints.",
				},
			},
			Required: []string{"verilog_files", "top_module", "platform"},
		},
	}, s.withJournal("start_synthesis", s.handleStartSynthesis))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_synthesis_status",
		Description: "Poll the status of a synthesis job started by start_synthesis.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
				"job_id":     map[string]interface{}{"type": "string"},
			},
			Required: []string{"job_id"},
		},
	}, s.withJournal("get_synthesis_status", s.handleGetSynthesisStatus))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "wait_synthesis",
		Description: "Block, within a bounded wait window, until a synthesis job finishes or the window elapses.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id":        map[string]interface{}{"type": "string"},
				"job_id":            map[string]interface{}{"type": "string"},
				"max_wait_sec":      map[string]interface{}{"type": "integer"},
				"poll_interval_sec": map[string]interface{}{"type": "integer"},
			},
			Required: []string{"job_id"},
		},
	}, s.withJournal("wait_synthesis", s.handleWaitSynthesis))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_synthesis_metrics",
		Description: "Return the QoR metrics and guardrail summary for a finished synthesis run. Omit run_id to use the workspace's most recent run.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
				"run_id":     map[string]interface{}{"type": "string"},
			},
		},
	}, s.withJournal("get_synthesis_metrics", s.handleGetSynthesisMetrics))
}

func (s *Server) handleStartSynthesis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	result := s.facade.StartSynthesis(ctx, toolfacade.StartSynthesisArgs{
		SessionID:       argStringOr(args, "session_id", ""),
		VerilogFiles:    args["verilog_files"],
		TopModule:       argStringOr(args, "top_module", ""),
		Platform:        argStringOr(args, "platform", ""),
		ClockPeriodNs:   argFloat(args, "clock_period_ns", 0),
		Utilization:     argFloat(args, "utilization", 0),
		AspectRatio:     argFloat(args, "aspect_ratio", 0),
		CoreMargin:      argFloat(args, "core_margin", 0),
		TimeoutSec:      argInt(args, "timeout_sec", 0),
		RunEquiv:        argBool(args, "run_equiv", false),
		ConstraintsMode: argStringOr(args, "constraints_mode", ""),
	})
	return textResponse(result), nil
}

func (s *Server) handleGetSynthesisStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return errorResponse("missing or invalid 'job_id' argument"), nil
	}
	sessionID := request.GetString("session_id", "")
	return textResponse(s.facade.GetSynthesisStatus(ctx, sessionID, jobID)), nil
}

func (s *Server) handleWaitSynthesis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return errorResponse("missing or invalid 'job_id' argument"), nil
	}
	sessionID := request.GetString("session_id", "")
	args := request.GetArguments()
	maxWait := argInt(args, "max_wait_sec", 0)
	pollInterval := argInt(args, "poll_interval_sec", 0)
	return textResponse(s.facade.WaitSynthesis(ctx, sessionID, jobID, maxWait, pollInterval)), nil
}

func (s *Server) handleGetSynthesisMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	runID := request.GetString("run_id", "")
	return textResponse(s.facade.GetSynthesisMetrics(ctx, sessionID, runID)), nil
}
