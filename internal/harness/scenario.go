package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rally/internal/ir"
)

// Scenario defines a scripted match.
// A scenario starts one match between two players, runs a flow of commands
// with expected outcomes, and asserts on the resulting trace and the final
// database state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalogue is an optional CUE game mode file imported before the
	// match starts. Relative paths resolve against the scenario file.
	Catalogue string `yaml:"catalogue,omitempty"`

	// Mode is the game mode slug or id. Defaults to standard-11.
	Mode string `yaml:"mode,omitempty"`

	// Rules defines an inline game mode named after the scenario.
	// Mutually exclusive with Mode.
	Rules *ir.RuleSet `yaml:"rules,omitempty"`

	// Players names the two players. Defaults to Alice and Bob.
	Players []string `yaml:"players,omitempty"`

	// FirstServer is "p1" or "p2". Empty leaves the server unset.
	FirstServer string `yaml:"first_server,omitempty"`

	// Flow contains the commands, in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state, replay
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one command of the flow.
type Step struct {
	// Do is the command: point, undo, server or cancel.
	Do string `yaml:"do"`

	// Slot is the scorer (point) or first server (server).
	Slot string `yaml:"slot,omitempty"`

	// Scorers is a sequence of points, one command per entry.
	Scorers []string `yaml:"scorers,omitempty"`

	// Repeat runs the command this many times (default 1).
	Repeat int `yaml:"repeat,omitempty"`

	// Expect is checked after the last command of the step.
	// If nil, every command must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the outcome of a step. Empty fields are not checked.
type Expect struct {
	// Error is the expected error code. Empty means the command succeeds.
	Error  string `yaml:"error,omitempty"`
	Score  string `yaml:"score,omitempty"`
	Server string `yaml:"server,omitempty"`
	Phase  string `yaml:"phase,omitempty"`
	Status string `yaml:"status,omitempty"`
	Winner string `yaml:"winner,omitempty"` // slot of the winner
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a command with the given slot and outcome was run
	// - "trace_order": commands appear in order
	// - "trace_count": a command was run exactly N times
	// - "final_state": query a table and verify expected values
	// - "replay": the stored log replays deterministically
	Type string `yaml:"type"`

	// Command is the command name (trace_contains, trace_count).
	Command string `yaml:"command,omitempty"`

	// Slot and Outcome narrow trace_contains. Empty matches anything.
	Slot    string `yaml:"slot,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Commands is the expected command order (trace_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is the table name (final_state): matches or users.
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertReplay        = "replay"
)

// Command names.
const (
	CmdStart  = "start"
	CmdPoint  = "point"
	CmdUndo   = "undo"
	CmdServer = "server"
	CmdCancel = "cancel"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the catalogue path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the catalogue path BEFORE validation
	if c := scenario.Catalogue; c != "" && !filepath.IsAbs(c) && basePath != "" {
		scenario.Catalogue = filepath.Join(basePath, c)
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
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Mode != "" && s.Rules != nil {
		return fmt.Errorf("mode and rules are mutually exclusive")
	}

	if len(s.Players) != 0 && len(s.Players) != 2 {
		return fmt.Errorf("players must name exactly two players, got %d", len(s.Players))
	}

	if s.FirstServer != "" {
		if err := validateSlot(s.FirstServer); err != nil {
			return fmt.Errorf("first_server: %w", err)
		}
	}

	if s.Catalogue != "" {
		if _, err := os.Stat(s.Catalogue); os.IsNotExist(err) {
			return fmt.Errorf("catalogue file not found: %s", s.Catalogue)
		}
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	if step.Repeat < 0 {
		return fmt.Errorf("repeat must be non-negative")
	}

	switch step.Do {
	case CmdPoint:
		if (step.Slot == "") == (len(step.Scorers) == 0) {
			return fmt.Errorf("point needs exactly one of slot or scorers")
		}
		if len(step.Scorers) > 0 && step.Repeat > 1 {
			return fmt.Errorf("repeat cannot be combined with scorers")
		}
		for _, s := range step.Scorers {
			if err := validateSlot(s); err != nil {
				return err
			}
		}
	case CmdServer:
		if step.Slot == "" {
			return fmt.Errorf("server needs a slot")
		}
	case CmdUndo, CmdCancel:
		if step.Slot != "" || len(step.Scorers) > 0 {
			return fmt.Errorf("%s takes no slot", step.Do)
		}
	case "":
		return fmt.Errorf("do is required")
	default:
		return fmt.Errorf("unknown command %q", step.Do)
	}

	if e := step.Expect; e != nil && e.Winner != "" {
		if err := validateSlot(e.Winner); err != nil {
			return fmt.Errorf("expect.winner: %w", err)
		}
	}
	return nil
}

func validateSlot(s string) error {
	slot, err := ir.ParseSlot(s)
	if err != nil {
		return err
	}
	if !slot.Valid() {
		return fmt.Errorf("slot is required")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
