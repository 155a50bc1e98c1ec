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

func (s *Server) registerSimulationTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "simulation_tool",
		Description: "Compile and run a testbench with iverilog/vvp, either against RTL sources directly or against a previously synthesized netlist. Always returns one of compile_failed, sim_failed, test_failed, or test_passed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id":   map[string]interface{}{"type": "string"},
				"source_files": map[string]interface{}{"description": "Testbench and (for rtl mode) design source files."},
				"top_module":   map[string]interface{}{"type": "string"},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "rtl or post_synth",
					"enum":        []string{"rtl", "post_synth"},
				},
				"run_id":       map[string]interface{}{"type": "string", "description": "Synthesis run to pull the netlist/platform from, for post_synth mode."},
				"netlist_file": map[string]interface{}{"type": "string"},
				"platform":     map[string]interface{}{"type": "string"},
				"pass_marker":  map[string]interface{}{"type": "string", "description": "Exact substring that marks a passing run. Defaults to \"TEST PASSED\"."},
				"sim_profile": map[string]interface{}{
					"type": "string",
					"enum": []string{"auto", "pinned", "compat"},
				},
			},
			Required: []string{"source_files", "top_module", "mode"},
		},
	}, s.withJournal("simulation_tool", s.handleRunSimulation))
}

func (s *Server) handleRunSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	result := s.facade.RunSimulation(ctx, toolfacade.SimulationArgs{
		SessionID:   argStringOr(args, "session_id", ""),
		SourceFiles: args["source_files"],
		TopModule:   argStringOr(args, "top_module", ""),
		Mode:        argStringOr(args, "mode", ""),
		RunID:       argStringOr(args, "run_id", ""),
		NetlistFile: argStringOr(args, "netlist_file", ""),
		Platform:    argStringOr(args, "platform", ""),
		PassMarker:  argStringOr(args, "pass_marker", ""),
		SimProfile:  argStringOr(args, "sim_profile", ""),
	})
	return textResponse(result), nil
}
