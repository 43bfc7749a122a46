package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contagion/internal/config"
	"github.com/roach88/contagion/internal/ir"
)

// Scenario defines an experiment and the assertions its result must meet.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden
	// files of the scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Params overlay config.Default.
	Params config.Params `yaml:"params"`

	// Parallelism is the number of variants run at once. Zero means one.
	Parallelism int `yaml:"parallelism,omitempty"`

	// Assertions validate the experiment result.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of an experiment result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_infected": Run's final infected set equals Agents
	// - "event_at": Entry at (Tick, Agent) in Run matches Event/State/Cause
	// - "event_count": Run records Event exactly Count times
	// - "causal_relation": Causal relation of Run equals Agents
	// - "subset_of_baseline": Run's final infected set is within the baseline's
	// - "final_state": Query Table and verify expected values
	// - "sql": Query returns Count
	Type string `yaml:"type"`

	// Run names the run (baseline, wo<id>, intervened_wo<id>).
	Run string `yaml:"run,omitempty"`

	// Agents is the expected set of agent ids.
	Agents []int `yaml:"agents,omitempty"`

	// Tick and Agent address one trace entry (used by event_at).
	Tick  *int `yaml:"tick,omitempty"`
	Agent *int `yaml:"agent,omitempty"`

	// Event, State and Cause are expected entry fields. Empty fields are
	// not checked. Cause "none" expects no cause.
	Event string `yaml:"event,omitempty"`
	State string `yaml:"state,omitempty"`
	Cause string `yaml:"cause,omitempty"`

	// Count is the expected number of occurrences (event_count, sql).
	Count *int `yaml:"count,omitempty"`

	// Table, Where and Expect describe a final_state lookup.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Query is a SELECT returning one integer (used by sql).
	Query string `yaml:"query,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalInfected    = "final_infected"
	AssertEventAt          = "event_at"
	AssertEventCount       = "event_count"
	AssertCausalRelation   = "causal_relation"
	AssertSubsetOfBaseline = "subset_of_baseline"
	AssertFinalState       = "final_state"
	AssertSQL              = "sql"
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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	scenario := Scenario{Params: config.Default()}
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if err := s.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}

	if s.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	runs := map[string]bool{BaselineName: true}
	for _, v := range Variants(s.Params.Seeds()) {
		runs[v.Name] = true
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], runs); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, runs map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needsRun := func() error {
		if a.Run == "" {
			return fmt.Errorf("assertions[%d]: %s assertion requires run", index, a.Type)
		}
		if !runs[a.Run] {
			return fmt.Errorf("assertions[%d]: unknown run %q", index, a.Run)
		}
		return nil
	}

	switch a.Type {
	case AssertFinalInfected:
		return needsRun()

	case AssertEventAt:
		if err := needsRun(); err != nil {
			return err
		}
		if a.Tick == nil || a.Agent == nil {
			return fmt.Errorf("assertions[%d]: event_at assertion requires tick and agent", index)
		}
		if a.Event == "" && a.State == "" && a.Cause == "" {
			return fmt.Errorf("assertions[%d]: event_at assertion requires event, state or cause", index)
		}
		if a.Event != "" {
			if _, err := ir.ParseEvent(a.Event); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
		if a.State != "" {
			if _, err := ir.ParseState(a.State); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
		if a.Cause != "" && a.Cause != "none" {
			if _, err := ir.ParseCause(a.Cause); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}

	case AssertEventCount:
		if err := needsRun(); err != nil {
			return err
		}
		if _, err := ir.ParseEvent(a.Event); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: event_count assertion requires count", index)
		}

	case AssertCausalRelation, AssertSubsetOfBaseline:
		if err := needsRun(); err != nil {
			return err
		}
		if a.Run == BaselineName {
			return fmt.Errorf("assertions[%d]: %s assertion requires a variant run", index, a.Type)
		}

	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: final_state assertion requires table", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: final_state assertion requires expect", index)
		}

	case AssertSQL:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: sql assertion requires query", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: sql assertion requires count", index)
		}

	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
