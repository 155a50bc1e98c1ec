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

package toolfacade

import (
	"encoding/json"
	"fmt"

	"github.com/tombee/conductor-synth/internal/errs"
)

// errorResult is the JSON shape every façade method returns in place of a
// Go error; nothing below the façade ever surfaces an error to the agent
// directly.
type errorResult struct {
	Status string    `json:"status"`
	Error  string    `json:"error"`
	Kind   errs.Kind `json:"kind"`
}

// toJSON marshals v, or on a marshal error (which should not happen for the
// plain data structs this package produces) falls back to a minimal
// hand-built error JSON string rather than panicking.
func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","error":"marshaling result: %s","kind":"internal"}`, err.Error())
	}
	return string(b)
}

// errJSON converts a Go error into the errorResult JSON contract every
// façade method returns instead of propagating the error.
func errJSON(err error) string {
	return toJSON(errorResult{Status: "error", Error: err.Error(), Kind: errs.KindOf(err)})
}

// invoke runs fn and recovers any panic into an internal-kind error result,
// so a programming bug inside a component never takes down the agent's
// tool-calling loop. Every tool-facing Facade method returns its result
// through invoke.
func invoke(fn func() (any, error)) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = toJSON(errorResult{Status: "error", Error: fmt.Sprintf("panic: %v", r), Kind: errs.KindInternal})
		}
	}()

	v, err := fn()
	if err != nil {
		return errJSON(err)
	}
	return toJSON(v)
}
