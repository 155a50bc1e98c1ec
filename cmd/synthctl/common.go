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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/conductor-synth/internal/toolfacade"
)

// facadeBuilder lazily constructs the Facade once CLI flags have been
// parsed, so every subcommand shares one session store / synth manager
// rather than re-opening the sqlite database per invocation.
type facadeBuilder func() (*toolfacade.Facade, error)

func secToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

// printResult prints a Facade call's JSON string result and, for error
// results, exits non-zero the way a scriptable CLI is expected to.
func printResult(cmd *cobra.Command, result string) error {
	fmt.Fprintln(cmd.OutOrStdout(), result)
	var probe struct {
		Status string `json:"status"`
	}
	if json.Unmarshal([]byte(result), &probe) == nil && probe.Status == "error" {
		return fmt.Errorf("command returned an error result")
	}
	return nil
}
