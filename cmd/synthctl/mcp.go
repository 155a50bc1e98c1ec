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

package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tombee/conductor-synth/internal/mcpserver"
	"github.com/tombee/conductor-synth/internal/tracing"
)

func newMCPCommand(build facadeBuilder) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve every synthesis/simulation/session tool over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}

			tp, err := tracing.NewProvider("synthctl", version)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(ctx)
			}()
			f = f.WithTracer(tp)

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						slog.Warn("metrics endpoint failed", "addr", metricsAddr, "error", err)
					}
				}()
			}

			srv := mcpserver.NewServer(mcpserver.Config{Name: "synthctl", Version: version}, f, nil)
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (e.g. :9090); disabled when empty")
	return cmd
}
