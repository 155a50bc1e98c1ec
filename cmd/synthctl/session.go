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
)

func newSessionCommand(build facadeBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and inspect synthesis sessions",
	}

	var tag, modelName string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session with a fresh workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.CreateSession(cmd.Context(), tag, modelName))
		},
	}
	createCmd.Flags().StringVar(&tag, "tag", "", "human-readable label for the session")
	createCmd.Flags().StringVar(&modelName, "model", "", "model name associated with the session")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.ListSessions(cmd.Context()))
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show metadata for one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.SessionMetadata(cmd.Context(), args[0]))
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.DeleteSession(cmd.Context(), args[0]))
		},
	}

	cmd.AddCommand(createCmd, listCmd, showCmd, deleteCmd)
	return cmd
}
