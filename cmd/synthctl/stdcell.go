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
	"github.com/spf13/cobra"

	"github.com/tombee/conductor-synth/internal/toolfacade"
)

func newStdcellCommand(build facadeBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stdcell",
		Short: "Manage the standard-cell model cache",
	}

	var bootstrapSession, bootstrapPlatform string
	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Fetch and cache pinned standard-cell model sources for a platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.BootstrapStdcells(cmd.Context(), bootstrapSession, bootstrapPlatform))
		},
	}
	bootstrapCmd.Flags().StringVar(&bootstrapSession, "session", "", "session whose workspace caches the models")
	bootstrapCmd.Flags().StringVar(&bootstrapPlatform, "platform", "", "asap7 or sky130hd")
	_ = bootstrapCmd.MarkFlagRequired("platform")

	var resolveSession, resolvePlatform, modulePrefix string
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Return the ordered model file list and manifest for a platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			result := f.ResolveStdcells(cmd.Context(), toolfacade.ResolveStdcellsArgs{
				SessionID:        resolveSession,
				Platform:         resolvePlatform,
				ModuleNamePrefix: modulePrefix,
			})
			return printResult(cmd, result)
		},
	}
	resolveCmd.Flags().StringVar(&resolveSession, "session", "", "session whose workspace holds the cache")
	resolveCmd.Flags().StringVar(&resolvePlatform, "platform", "", "asap7 or sky130hd")
	resolveCmd.Flags().StringVar(&modulePrefix, "module-name-prefix", "", "restrict resolved models to this module name prefix")
	_ = resolveCmd.MarkFlagRequired("platform")

	cmd.AddCommand(bootstrapCmd, resolveCmd)
	return cmd
}
