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

package synth

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tombee/conductor-synth/pkg/synthtypes"
)

// The report-parsing regexes are consolidated here so consumers audit one
// place when a report format shifts.
var (
	reWNS       = regexp.MustCompile(`(?i)^\s*wns\s+max\s+([0-9.eE+-]+)`)
	reTNS       = regexp.MustCompile(`(?i)^\s*tns\s+max\s+([0-9.eE+-]+)`)
	reViolation = regexp.MustCompile(`(?i)(setup|hold|max slew|max cap|max fanout) violation count\s+(\d+)`)
	rePowerRow  = regexp.MustCompile(`(?i)^\s*Total\s+[0-9.eE+-]+\s+[0-9.eE+-]+\s+[0-9.eE+-]+\s+([0-9.eE+-]+)\s+100`)

	reChipArea = regexp.MustCompile(`(?i)Chip area for module.*?:\s*([0-9.]+)`)
	reCellRow  = regexp.MustCompile(`(?m)^\s*(\d+)\s+[0-9.eE+-]+\s+cells\b`)
)

// metricField tracks a parsed value plus the report path it came from.
type metricField struct {
	value float64
	intV  int
	path  string
	set   bool
}

// extractMetrics parses 6_finish.rpt and synth_stat.txt wherever they
// appear under the run directory.
func extractMetrics(runDir string) synthtypes.MetricsResponse {
	resp := synthtypes.MetricsResponse{Status: "ok", Sources: map[string]string{}}

	var wns, tns, area metricField
	var cellCount metricField
	var power metricField
	violations := synthtypes.Violations{}
	var notes []string

	finishPaths := findByName(runDir, "6_finish.rpt")
	for _, path := range finishPaths {
		content, err := os.ReadFile(path)
		if err != nil {
			notes = append(notes, "failed to read "+path+": "+err.Error())
			continue
		}
		lines := strings.Split(string(content), "\n")
		for _, line := range lines {
			if m := reWNS.FindStringSubmatch(line); m != nil && !wns.set {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					wns = metricField{value: v, path: path, set: true}
				}
			}
			if m := reTNS.FindStringSubmatch(line); m != nil && !tns.set {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					tns = metricField{value: v, path: path, set: true}
				}
			}
			if m := reViolation.FindStringSubmatch(line); m != nil {
				count, err := strconv.Atoi(m[2])
				if err != nil {
					continue
				}
				switch strings.ToLower(m[1]) {
				case "setup":
					violations.Setup = &count
				case "hold":
					violations.Hold = &count
				case "max slew":
					violations.MaxSlew = &count
				case "max cap":
					violations.MaxCap = &count
				case "max fanout":
					violations.MaxFanout = &count
				}
			}
			if m := rePowerRow.FindStringSubmatch(line); m != nil && !power.set {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					power = metricField{value: v * 1e6, path: path, set: true}
				}
			}
		}
	}

	statPaths := findByName(runDir, "synth_stat.txt")
	for _, path := range statPaths {
		content, err := os.ReadFile(path)
		if err != nil {
			notes = append(notes, "failed to read "+path+": "+err.Error())
			continue
		}
		text := string(content)
		if m := reChipArea.FindStringSubmatch(text); m != nil && !area.set {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				area = metricField{value: v, path: path, set: true}
			}
		}
		if m := reCellRow.FindStringSubmatch(text); m != nil && !cellCount.set {
			if v, err := strconv.Atoi(m[1]); err == nil {
				cellCount = metricField{intV: v, path: path, set: true}
			}
		}
	}

	var missing []string
	if area.set {
		resp.Metrics.AreaUm2 = &area.value
		resp.Sources["area_um2"] = area.path
	} else {
		missing = append(missing, "area_um2")
	}
	if cellCount.set {
		resp.Metrics.CellCount = &cellCount.intV
		resp.Sources["cell_count"] = cellCount.path
	} else {
		missing = append(missing, "cell_count")
	}
	if wns.set {
		resp.Metrics.WNSNs = &wns.value
		resp.Sources["wns_ns"] = wns.path
	} else {
		missing = append(missing, "wns_ns")
	}
	if tns.set {
		resp.Metrics.TNSNs = &tns.value
		resp.Sources["tns_ns"] = tns.path
	} else {
		missing = append(missing, "tns_ns")
	}
	if power.set {
		resp.Metrics.PowerUW = &power.value
		resp.Sources["power_uw"] = power.path
	} else {
		missing = append(missing, "power_uw")
	}

	resp.Violations = violations
	resp.MissingFields = missing
	resp.ParseNotes = notes
	resp.Complete = len(missing) == 0
	return resp
}

func findByName(root, name string) []string {
	var out []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() == name {
			out = append(out, path)
		}
		return nil
	})
	return out
}
