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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombee/conductor-synth/internal/attemptlog"
	"github.com/tombee/conductor-synth/internal/config"
	"github.com/tombee/conductor-synth/internal/log"
	"github.com/tombee/conductor-synth/internal/metrics"
	"github.com/tombee/conductor-synth/internal/procdriver"
	"github.com/tombee/conductor-synth/internal/session"
	"github.com/tombee/conductor-synth/internal/stdcell"
	"github.com/tombee/conductor-synth/internal/synth"
	"github.com/tombee/conductor-synth/internal/toolfacade"
)

// version is injected via ldflags at build time.
var version = "dev"

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var workspaceRoot string
	var dbPath string

	cmd := &cobra.Command{
		Use:           "synthctl",
		Short:         "Control plane for RTL synthesis, simulation, and standard-cell orchestration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&workspaceRoot, "workspace-root", "", "base directory for session workspaces (default: ./workspaces)")
	cmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "path to the session metadata database (default: <workspace-root>/sessions.db)")

	buildFacade := func() (*toolfacade.Facade, error) {
		cfg := config.FromEnv()
		if workspaceRoot != "" {
			cfg.WorkspaceRoot = workspaceRoot
		}
		if dbPath == "" {
			dbPath = filepath.Join(cfg.WorkspaceRoot, "sessions.db")
		}

		logger := log.New(log.FromEnv())

		sessions, err := session.Open(dbPath, cfg.WorkspaceRoot)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}

		flow := procdriver.NewExecRunner()
		equiv := &synth.YosysEquivChecker{Runner: flow}
		recorder := metrics.New()

		synthMgr := synth.New(cfg, logger, flow, flow, equiv, recorder)

		fetcher, err := stdcell.NewHTTPFetcher()
		if err != nil {
			return nil, fmt.Errorf("building stdcell fetcher: %w", err)
		}
		stdcellMgr := stdcell.NewManager(fetcher,
			secToDuration(cfg.StdcellFetchTimeoutSec),
			secToDuration(cfg.StdcellTarballTimeoutSec))

		attempts := attemptlog.New()

		return toolfacade.New(cfg, logger, sessions, synthMgr, stdcellMgr, flow, attempts), nil
	}

	cmd.AddCommand(newSessionCommand(buildFacade))
	cmd.AddCommand(newSynthCommand(buildFacade))
	cmd.AddCommand(newSimCommand(buildFacade))
	cmd.AddCommand(newStdcellCommand(buildFacade))
	cmd.AddCommand(newAttemptsCommand(buildFacade))
	cmd.AddCommand(newMCPCommand(buildFacade))

	return cmd
}
