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

package specmgr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterSpecYAML = `counter:
  description: A 4-bit up counter
  tech_node: ASAP7
  clock_period: 10ns
  ports:
    - name: clk
      direction: input
      width: 1
    - name: rst_n
      direction: input
      width: 1
    - name: count
      direction: output
      width: 4
`

func TestParseValid(t *testing.T) {
	spec, err := Parse([]byte(counterSpecYAML))
	require.NoError(t, err)
	assert.Equal(t, "counter", spec.ModuleName)
	assert.Equal(t, 10.0, spec.ClockPeriodNs)
	assert.Len(t, spec.Ports, 3)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse([]byte(""))
	require.Error(t, err)
}

func TestParseBadClockPeriod(t *testing.T) {
	_, err := Parse([]byte("top:\n  clock_period: bogus\n  ports: []\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	spec, err := Parse([]byte(counterSpecYAML))
	require.NoError(t, err)
	require.NoError(t, spec.Validate())
}

func TestValidateRejectsNoPorts(t *testing.T) {
	spec := &Spec{ModuleName: "top", ClockPeriodNs: 10}
	err := spec.Validate()
	require.Error(t, err)
}

func TestValidateRejectsDuplicatePort(t *testing.T) {
	spec := &Spec{
		ModuleName:    "top",
		ClockPeriodNs: 10,
		Ports: []Port{
			{Name: "a", Direction: "input"},
			{Name: "a", Direction: "output"},
		},
	}
	require.Error(t, spec.Validate())
}

func TestValidateRejectsBadModuleName(t *testing.T) {
	spec := &Spec{ModuleName: "1bad", ClockPeriodNs: 10, Ports: []Port{{Name: "clk", Direction: "input"}}}
	require.Error(t, spec.Validate())
}

func TestValidateRejectsZeroClock(t *testing.T) {
	spec := &Spec{ModuleName: "top", ClockPeriodNs: 0, Ports: []Port{{Name: "clk", Direction: "input"}}}
	require.Error(t, spec.Validate())
}

func TestClockPort(t *testing.T) {
	spec, err := Parse([]byte(counterSpecYAML))
	require.NoError(t, err)
	port, ok := spec.ClockPort()
	assert.True(t, ok)
	assert.Equal(t, "clk", port)
}

func TestClockPortAbsent(t *testing.T) {
	spec := &Spec{Ports: []Port{{Name: "data", Direction: "input"}}}
	_, ok := spec.ClockPort()
	assert.False(t, ok)
}

func TestGenerateSDC(t *testing.T) {
	spec, err := Parse([]byte(counterSpecYAML))
	require.NoError(t, err)
	assert.Equal(t, "create_clock -period 10 [get_ports clk]", spec.GenerateSDC())
}

func TestGenerateModuleSignature(t *testing.T) {
	spec, err := Parse([]byte(counterSpecYAML))
	require.NoError(t, err)
	sig := spec.GenerateModuleSignature()
	assert.Contains(t, sig, "module counter")
	assert.Contains(t, sig, "input logic clk")
	assert.Contains(t, sig, "output logic [3:0] count")
}

func TestGenerateFallbackSDC(t *testing.T) {
	sdc := GenerateFallbackSDC(10, "clk")
	assert.Contains(t, sdc, "if {[llength $ports] > 0}")
	assert.Contains(t, sdc, "create_clock -period 10")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	spec, err := Parse([]byte(counterSpecYAML))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "counter_spec.yaml")
	require.NoError(t, spec.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, spec.ModuleName, loaded.ModuleName)
	assert.Equal(t, spec.ClockPeriodNs, loaded.ClockPeriodNs)
}

func TestFindLatestSpec(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "a_spec.yaml")
	newer := filepath.Join(dir, "b_spec.yaml")
	require.NoError(t, os.WriteFile(older, []byte(counterSpecYAML), 0o644))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(newer, []byte(counterSpecYAML), 0o644))

	latest, err := FindLatestSpec(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, latest)
}

func TestFindLatestSpecNoneExist(t *testing.T) {
	latest, err := FindLatestSpec(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestLatestSpecCacheLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "top_spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(counterSpecYAML), 0o644))

	cache := NewLatestSpecCache(dir, nil)
	defer cache.Close()

	found, err := cache.Lookup()
	require.NoError(t, err)
	assert.Equal(t, path, found)
}
