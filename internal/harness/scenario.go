package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order against a fresh App.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_count, trace_order, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Op names a scenario step.
type Op string

const (
	OpAdd        Op = "add"
	OpList       Op = "list"
	OpToggle     Op = "toggle"
	OpSync       Op = "sync"
	OpMarkSynced Op = "mark_synced"
	OpCount      Op = "count"
	OpFail       Op = "fail"
	OpHeal       Op = "heal"
)

var knownOps = map[Op]bool{
	OpAdd: true, OpList: true, OpToggle: true, OpSync: true,
	OpMarkSynced: true, OpCount: true, OpFail: true, OpHeal: true,
}

// Step is one command against the App.
type Step struct {
	Op Op `yaml:"op"`

	// Content is the transcript body (add).
	Content string `yaml:"content,omitempty"`

	// ID is the transcript id (mark_synced, fail, heal).
	ID int64 `yaml:"id,omitempty"`

	// Times is how many transfers of ID fail (fail). Zero means every one
	// until healed.
	Times int `yaml:"times,omitempty"`

	// Expect validates the step outcome. Only the fields present are checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match over a step outcome.
type Expect struct {
	// Error is the expected command error code (e.g. NOT_FOUND). When unset
	// the step must succeed.
	Error string `yaml:"error,omitempty"`

	ID        *int64   `yaml:"id,omitempty"`
	Unsynced  *int     `yaml:"unsynced,omitempty"`
	Connected *bool    `yaml:"connected,omitempty"`
	Status    string   `yaml:"status,omitempty"`
	Reason    string   `yaml:"reason,omitempty"`
	Synced    *int     `yaml:"synced,omitempty"`
	Failed    *int     `yaml:"failed,omitempty"`
	Contents  []string `yaml:"contents,omitempty"`
}

// Assertion validates the trace or the final state after all steps.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_count": Op appears exactly Count times
	// - "trace_order": Ops appear in this relative order
	// - "final_state": compare Unsynced, Synced, Connected and Passes
	Type string `yaml:"type"`

	Op    Op   `yaml:"op,omitempty"`
	Count *int `yaml:"count,omitempty"`
	Ops   []Op `yaml:"ops,omitempty"`

	Unsynced  *int  `yaml:"unsynced,omitempty"`
	Synced    *int  `yaml:"synced,omitempty"`
	Connected *bool `yaml:"connected,omitempty"`
	Passes    *int  `yaml:"passes,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFinalState = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	for i, step := range s.Steps {
		if !knownOps[step.Op] {
			return fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
		switch step.Op {
		case OpMarkSynced, OpFail, OpHeal:
			if step.ID == 0 {
				return fmt.Errorf("step %d: %s requires id", i+1, step.Op)
			}
		}
		if step.Times < 0 {
			return fmt.Errorf("step %d: times must not be negative", i+1)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceCount:
			if a.Op == "" || a.Count == nil {
				return fmt.Errorf("assertion %d: trace_count requires op and count", i+1)
			}
		case AssertTraceOrder:
			if len(a.Ops) < 2 {
				return fmt.Errorf("assertion %d: trace_order requires at least two ops", i+1)
			}
		case AssertFinalState:
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i+1, a.Type)
		}
	}
	return nil
}
