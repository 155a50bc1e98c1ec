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

// Package specmgr parses and validates the YAML design spec used by the
// constraints guardrail, and generates the Verilog module signature and SDC
// constraints derived from it.
package specmgr

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/conductor-synth/internal/errs"
)

// Port is one entry in a Spec's port list.
type Port struct {
	Name        string `yaml:"name"`
	Direction   string `yaml:"direction"`
	Type        string `yaml:"type,omitempty"`
	Width       any    `yaml:"width,omitempty"` // int or symbolic string
	Description string `yaml:"description,omitempty"`
}

// Spec is the parsed design spec.
type Spec struct {
	ModuleName            string         `yaml:"-"`
	Description           string         `yaml:"description,omitempty"`
	TechNode              string         `yaml:"tech_node,omitempty"`
	ClockPeriodNs         float64        `yaml:"-"`
	Ports                 []Port         `yaml:"ports,omitempty"`
	Parameters            map[string]any `yaml:"parameters,omitempty"`
	ModuleSignature       string         `yaml:"module_signature,omitempty"`
	BehavioralDescription string         `yaml:"behavioral_description,omitempty"`
	CreatedAt             string         `yaml:"created_at,omitempty"`
}

// clockPortNames are the recognized clock-port aliases.
var clockPortNames = map[string]bool{"clk": true, "clock": true, "clk_i": true}

// rawDoc/rawInner mirror the YAML shape: a single top-level key naming the
// module, with everything else nested beneath it.
type rawInner struct {
	Description           string         `yaml:"description,omitempty"`
	TechNode              string         `yaml:"tech_node,omitempty"`
	ClockPeriod           string         `yaml:"clock_period,omitempty"`
	Ports                 []Port         `yaml:"ports,omitempty"`
	Parameters            map[string]any `yaml:"parameters,omitempty"`
	ModuleSignature       string         `yaml:"module_signature,omitempty"`
	BehavioralDescription string         `yaml:"behavioral_description,omitempty"`
	CreatedAt             string         `yaml:"created_at,omitempty"`
}

// Parse parses raw YAML spec content into a Spec.
func Parse(content []byte) (*Spec, error) {
	var doc map[string]rawInner
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errs.Wrap(err, "parsing yaml spec")
	}
	if len(doc) == 0 {
		return nil, &errs.ValidationError{Field: "spec", Message: "empty YAML content"}
	}

	var moduleName string
	var inner rawInner
	for k, v := range doc {
		moduleName = k
		inner = v
		break
	}

	clockPeriod := 10.0
	if inner.ClockPeriod != "" {
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(inner.ClockPeriod), "ns"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &errs.ValidationError{Field: "clock_period", Message: fmt.Sprintf("cannot parse %q as ns float", inner.ClockPeriod)}
		}
		clockPeriod = parsed
	}

	spec := &Spec{
		ModuleName:            moduleName,
		Description:           inner.Description,
		TechNode:              inner.TechNode,
		ClockPeriodNs:         clockPeriod,
		Ports:                 inner.Ports,
		Parameters:            inner.Parameters,
		ModuleSignature:       inner.ModuleSignature,
		BehavioralDescription: inner.BehavioralDescription,
		CreatedAt:             inner.CreatedAt,
	}
	if spec.CreatedAt == "" {
		spec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return spec, nil
}

// LoadFile reads and parses a spec YAML file from disk.
func LoadFile(path string) (*Spec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "reading spec file %s", path)
	}
	return Parse(content)
}

// Save writes the spec back out as YAML.
func (s *Spec) Save(path string) error {
	content, err := s.ToYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

// ToYAML serializes the spec back to its single-top-level-key YAML shape.
func (s *Spec) ToYAML() ([]byte, error) {
	inner := rawInner{
		Description:           s.Description,
		TechNode:              s.TechNode,
		ClockPeriod:           fmt.Sprintf("%gns", s.ClockPeriodNs),
		Ports:                 s.Ports,
		Parameters:            s.Parameters,
		ModuleSignature:       s.ModuleSignature,
		BehavioralDescription: s.BehavioralDescription,
		CreatedAt:             s.CreatedAt,
	}
	doc := map[string]rawInner{s.ModuleName: inner}
	return yaml.Marshal(doc)
}

// Validate enforces the design-spec invariants: module name starts
// with a letter; at least one port; port names unique; clock period > 0.
func (s *Spec) Validate() error {
	if s.ModuleName == "" {
		return &errs.ValidationError{Field: "module_name", Message: "module name is required"}
	}
	first := rune(s.ModuleName[0])
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return &errs.ValidationError{Field: "module_name", Message: "module name must start with a letter"}
	}
	if len(s.Ports) == 0 {
		return &errs.ValidationError{Field: "ports", Message: "at least one port is required"}
	}
	seen := make(map[string]bool, len(s.Ports))
	for _, p := range s.Ports {
		if p.Name == "" {
			return &errs.ValidationError{Field: "ports", Message: "port name cannot be empty"}
		}
		if seen[p.Name] {
			return &errs.ValidationError{Field: "ports", Message: fmt.Sprintf("duplicate port name: %s", p.Name)}
		}
		seen[p.Name] = true
	}
	if s.ClockPeriodNs <= 0 {
		return &errs.ValidationError{Field: "clock_period", Message: "clock period must be greater than zero"}
	}
	return nil
}

// ClockPort returns the name of the recognized clock port, if any.
func (s *Spec) ClockPort() (string, bool) {
	for _, p := range s.Ports {
		if p.Direction == "input" && clockPortNames[strings.ToLower(p.Name)] {
			return p.Name, true
		}
	}
	return "", false
}

// GenerateModuleSignature produces the Verilog module declaration from the
// port list, unless the spec carries an explicit signature.
func (s *Spec) GenerateModuleSignature() string {
	if s.ModuleSignature != "" {
		return s.ModuleSignature
	}

	var paramStr string
	if len(s.Parameters) > 0 {
		var parts []string
		for k, v := range s.Parameters {
			parts = append(parts, fmt.Sprintf("parameter %s = %v", k, v))
		}
		paramStr = fmt.Sprintf(" #(\n    %s\n)", strings.Join(parts, ",\n    "))
	}

	lines := make([]string, 0, len(s.Ports))
	for _, p := range s.Ports {
		widthStr := ""
		if p.Width != nil {
			switch w := p.Width.(type) {
			case int:
				if w > 1 {
					widthStr = fmt.Sprintf("[%d:0] ", w-1)
				}
			default:
				widthStr = fmt.Sprintf("[%v] ", w)
			}
		}
		typ := p.Type
		if typ == "" {
			typ = "logic"
		}
		lines = append(lines, fmt.Sprintf("    %s %s %s%s", p.Direction, typ, widthStr, p.Name))
	}

	return fmt.Sprintf("module %s%s (\n%s\n);", s.ModuleName, paramStr, strings.Join(lines, ",\n"))
}

// GenerateSDC produces the SDC create_clock constraint from the spec,
// defaulting the clock port to clk when no alias matches.
func (s *Spec) GenerateSDC() string {
	clockPort, ok := s.ClockPort()
	if !ok {
		clockPort = "clk"
	}
	return fmt.Sprintf("create_clock -period %g [get_ports %s]", s.ClockPeriodNs, clockPort)
}

// GenerateFallbackSDC produces a tcl-guarded clock constraint for when no
// spec is present: it targets a port named clk but guards with
// `if {[llength $ports] > 0}` so a design without that port doesn't
// hard-fail synthesis.
func GenerateFallbackSDC(clockPeriodNs float64, clockPort string) string {
	if clockPort == "" {
		clockPort = "clk"
	}
	return fmt.Sprintf(
		"set ports [get_ports %s]\nif {[llength $ports] > 0} {\n  create_clock -period %g -name %s $ports\n}\n",
		clockPort, clockPeriodNs, clockPort,
	)
}
