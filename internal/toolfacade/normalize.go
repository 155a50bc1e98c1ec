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

import "encoding/json"

// NormalizeFileList collapses the three shapes a verilog_files argument
// arrives in — a real list, a single path string, or a string holding a
// JSON-encoded array — into a []string. This is the single routine that
// owns that normalization; no component below the façade ever sees the
// polymorphic form.
func NormalizeFileList(arg any) []string {
	switch v := arg.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		var parsed []string
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			return parsed
		}
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
