package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

// Scenario kinds.
const (
	KindArray  = "array"
	KindObject = "object"
)

// Scenario drives a set of replicas through local edits and deliveries and
// checks the state they end in.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// Kind selects the replicated type: "array" or "object".
	Kind string `yaml:"kind"`

	// Replicas lists the actor ids taking part. Each becomes one replica.
	Replicas []string `yaml:"replicas"`

	Steps []Step `yaml:"steps"`

	// Expect is checked after the last step. If nil only convergence is
	// checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step is one action on one replica. Exactly one action field is set.
type Step struct {
	Replica string `yaml:"replica"`

	Insert *InsertStep `yaml:"insert,omitempty"`
	Remove *int        `yaml:"remove,omitempty"`
	Move   *MoveStep   `yaml:"move,omitempty"`
	Update *UpdateStep `yaml:"update,omitempty"`
	Set    *SetStep    `yaml:"set,omitempty"`

	// Sync delivers everything the source replica knows to this replica.
	Sync *SyncStep `yaml:"sync,omitempty"`

	// Export moves the replica's unsent operations into its outbox,
	// optionally compressing them first.
	Export *ExportStep `yaml:"export,omitempty"`

	// Snapshot restarts the replica from a JSON round trip of its snapshot.
	Snapshot bool `yaml:"snapshot,omitempty"`
}

type InsertStep struct {
	Index int    `yaml:"index"`
	Value string `yaml:"value"`
}

type MoveStep struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

type UpdateStep struct {
	Index int    `yaml:"index"`
	Value string `yaml:"value"`
}

type SetStep struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type SyncStep struct {
	From string `yaml:"from"`
}

type ExportStep struct {
	Compress bool `yaml:"compress,omitempty"`
}

// Expect describes the visible state every replica must end in.
type Expect struct {
	// Items is the expected array content. nil skips the check.
	Items []string `yaml:"items,omitempty"`

	// Fields is the expected object content. nil skips the check.
	Fields map[string]string `yaml:"fields,omitempty"`

	// Converged defaults to true.
	Converged *bool `yaml:"converged,omitempty"`
}

func (e *Expect) wantConverged() bool {
	return e == nil || e.Converged == nil || *e.Converged
}

// Action names the single action a step carries, or "" if it has none or
// several.
func (s Step) Action() string {
	var names []string
	if s.Insert != nil {
		names = append(names, "insert")
	}
	if s.Remove != nil {
		names = append(names, "remove")
	}
	if s.Move != nil {
		names = append(names, "move")
	}
	if s.Update != nil {
		names = append(names, "update")
	}
	if s.Set != nil {
		names = append(names, "set")
	}
	if s.Sync != nil {
		names = append(names, "sync")
	}
	if s.Export != nil {
		names = append(names, "export")
	}
	if s.Snapshot {
		names = append(names, "snapshot")
	}
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
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

var arrayOnly = mapset.NewThreadUnsafeSet("insert", "remove", "move", "update")

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Kind != KindArray && s.Kind != KindObject {
		return fmt.Errorf("kind must be %q or %q, got %q", KindArray, KindObject, s.Kind)
	}
	if len(s.Replicas) == 0 {
		return errors.New("replicas list is required and must be non-empty")
	}
	replicas := mapset.NewThreadUnsafeSet[string]()
	for _, r := range s.Replicas {
		if r == "" {
			return errors.New("replica id must be non-empty")
		}
		if !replicas.Add(r) {
			return fmt.Errorf("duplicate replica %q", r)
		}
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !replicas.Contains(step.Replica) {
			return fmt.Errorf("step %d: unknown replica %q", i+1, step.Replica)
		}
		action := step.Action()
		switch {
		case action == "":
			return fmt.Errorf("step %d: exactly one action is required", i+1)
		case s.Kind == KindObject && arrayOnly.Contains(action):
			return fmt.Errorf("step %d: %s is not an object action", i+1, action)
		case s.Kind == KindArray && action == "set":
			return fmt.Errorf("step %d: set is not an array action", i+1)
		case action == "sync":
			if !replicas.Contains(step.Sync.From) {
				return fmt.Errorf("step %d: unknown sync source %q", i+1, step.Sync.From)
			}
			if step.Sync.From == step.Replica {
				return fmt.Errorf("step %d: replica %q cannot sync from itself", i+1, step.Replica)
			}
		}
	}

	if s.Expect != nil {
		if s.Kind == KindArray && s.Expect.Fields != nil {
			return errors.New("expect.fields is only valid for objects")
		}
		if s.Kind == KindObject && s.Expect.Items != nil {
			return errors.New("expect.items is only valid for arrays")
		}
	}
	return nil
}
