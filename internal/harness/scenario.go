package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/racerepro/internal/dispatch"
	"github.com/roach88/racerepro/internal/repro"
	"github.com/roach88/racerepro/internal/testutil"
)

//go:embed scenario_schema.cue
var scenarioSchema string

// Scenario describes a set of goroutines that each report a fixed list of
// events. Exploring a scenario enumerates the interleavings of those events;
// replaying it forces one of them.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description" json:"description"`

	// Threads lists the goroutines. Each reports its events in order.
	Threads []Thread `yaml:"threads" json:"threads"`

	// Expect is checked after exploration. Optional.
	Expect *Expectation `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Repro switches to replay mode when set.
	Repro string `yaml:"repro,omitempty" json:"repro,omitempty"`

	// MaxIterations caps exploration. Zero means unlimited.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// Thread is one goroutine of a scenario.
type Thread struct {
	// Name identifies the goroutine in error messages.
	Name string `yaml:"name" json:"name"`

	// Events are reported in this order. "X:enter" must be directly
	// followed by "X:exit".
	Events []string `yaml:"events" json:"events"`
}

// Expectation is checked against an exploration result.
type Expectation struct {
	// Leaves is the expected number of distinct interleavings. Zero means the
	// multinomial count derived from the threads.
	Leaves int `yaml:"leaves,omitempty" json:"leaves,omitempty"`

	// Contains lists repro strings that must have been explored.
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
}

// EventLists returns the events of every thread.
func (s *Scenario) EventLists() [][]string {
	lists := make([][]string, len(s.Threads))
	for i, th := range s.Threads {
		lists[i] = th.Events
	}
	return lists
}

// ExpectedLeaves returns the number of interleavings exploration should find.
// A bracketed pair moves as one unit.
func (s *Scenario) ExpectedLeaves() int {
	if s.Expect != nil && s.Expect.Leaves > 0 {
		return s.Expect.Leaves
	}

	counts := make([]int, len(s.Threads))
	for i, th := range s.Threads {
		for _, e := range th.Events {
			if _, enter := dispatch.AsEnter(e); !enter {
				counts[i]++
			}
		}
	}
	return testutil.Multinomial(counts...)
}

// LoadScenario reads and parses a scenario file. The format follows the
// extension: .yaml/.yml are decoded strictly, .cue is unified with the
// embedded schema first.
//
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		scenario, err = parseYAML(data)
	case ".cue":
		scenario, err = parseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

func parseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func parseCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(scenarioSchema, cue.Filename("scenario_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile scenario schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", err)
	}

	var scenario Scenario
	if err := unified.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Threads) == 0 {
		return fmt.Errorf("threads list is required and must be non-empty")
	}

	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}

	// A name may repeat inside one thread, whose program order keeps the
	// occurrences apart. Across threads the postponed set is keyed by name.
	owner := make(map[string]int)
	for i, th := range s.Threads {
		if th.Name == "" {
			return fmt.Errorf("threads[%d]: name is required", i)
		}
		for j, e := range th.Events {
			if err := repro.ValidateName(e); err != nil {
				return fmt.Errorf("threads[%d].events[%d]: %w", i, j, err)
			}
			if prev, dup := owner[e]; dup && prev != i {
				return fmt.Errorf("threads[%d].events[%d]: event %q already reported by thread %s", i, j, e, s.Threads[prev].Name)
			}
			owner[e] = i
		}
		if err := validateBrackets(th); err != nil {
			return fmt.Errorf("threads[%d]: %w", i, err)
		}
	}

	if s.Repro != "" {
		if _, err := repro.Parse(s.Repro); err != nil {
			return fmt.Errorf("repro: %w", err)
		}
	}

	if s.Expect != nil {
		if s.Expect.Leaves < 0 {
			return fmt.Errorf("expect.leaves must be non-negative")
		}
		for i, c := range s.Expect.Contains {
			if _, err := repro.Parse(c); err != nil {
				return fmt.Errorf("expect.contains[%d]: %w", i, err)
			}
		}
	}

	return nil
}

// validateBrackets requires every "X:enter" in a thread to be directly
// followed by "X:exit". Anything else between them would wait on the exit
// that the same goroutine has not reported yet.
func validateBrackets(th Thread) error {
	for i, e := range th.Events {
		if open, ok := dispatch.AsEnter(e); ok {
			if i+1 >= len(th.Events) || th.Events[i+1] != open+dispatch.ExitSuffix {
				return fmt.Errorf("event %q must be directly followed by %q", e, open+dispatch.ExitSuffix)
			}
		}
		if closed, ok := dispatch.AsExit(e); ok {
			if i == 0 || th.Events[i-1] != closed+dispatch.EnterSuffix {
				return fmt.Errorf("event %q must directly follow %q", e, closed+dispatch.EnterSuffix)
			}
		}
	}
	return nil
}
