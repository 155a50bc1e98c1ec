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

func newAttemptsCommand(build facadeBuilder) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Show the rolled-up attempt history for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := build()
			if err != nil {
				return err
			}
			return printResult(cmd, f.GetAttemptSummary(cmd.Context(), sessionID))
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session to summarize (default: active session)")
	return cmd
}
