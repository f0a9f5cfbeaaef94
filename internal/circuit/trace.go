package circuit

import (
	"fmt"
	"os"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"gopkg.in/yaml.v3"
)

type StepAction string

const (
	ActionWrite   StepAction = "write"
	ActionSet     StepAction = "set"
	ActionPress   StepAction = "press"
	ActionRelease StepAction = "release"
	ActionAnalyze StepAction = "analyze"
)

// Step is one stimulus: a full register write, a forced board pin, a
// button interaction or an analysis pass.
type Step struct {
	Action    StepAction    `yaml:"action" json:"action"`
	Port      string        `yaml:"port,omitempty" json:"port,omitempty"`
	Value     uint8         `yaml:"value,omitempty" json:"value,omitempty"`
	Pin       string        `yaml:"pin,omitempty" json:"pin,omitempty"`
	High      bool          `yaml:"high,omitempty" json:"high,omitempty"`
	Component string        `yaml:"component,omitempty" json:"component,omitempty"`
	Delay     time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
}

// Trace is a scripted sequence of stimulus steps.
type Trace struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Validate checks that every step carries the fields its action needs.
func (t *Trace) Validate() error {
	for i, s := range t.Steps {
		var err error
		switch s.Action {
		case ActionWrite:
			_, err = types.ParsePort(s.Port)
		case ActionSet:
			if s.Pin == "" {
				err = fmt.Errorf("pin is required")
			}
		case ActionPress, ActionRelease:
			if s.Component == "" {
				err = fmt.Errorf("component is required")
			}
		case ActionAnalyze:
		default:
			err = fmt.Errorf("unknown action %q", s.Action)
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func ParseTrace(data []byte) (*Trace, error) {
	var t Trace
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return ParseTrace(data)
}
