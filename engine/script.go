package engine

import (
	"fmt"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Step is one schedule decision: spawn an instance, run the pending action
// of an instance, or deliver an attacker row into an open table.
type Step interface {
	fmt.Stringer
}

// SpawnStep creates a new instance of a replicated template. Singletons
// are spawned when the session starts and cannot be spawned again.
//
// - implements engine.Step
type SpawnStep struct {
	Template string
}

// String implements fmt.Stringer.
func (s SpawnStep) String() string {
	return "spawn " + s.Template
}

// RunStep executes the pending action of an instance. Pick selects which
// matching row a get takes, counting from zero in insertion order. Message
// carries the attacker recipe a receive on a public channel consumes; it
// is forbidden on any other action.
//
// - implements engine.Step
type RunStep struct {
	Instance int
	Pick     int
	Message  Recipe
}

// String implements fmt.Stringer.
func (s RunStep) String() string {
	out := fmt.Sprintf("run %d", s.Instance)

	if s.Pick != 0 {
		out += fmt.Sprintf(" pick %d", s.Pick)
	}

	if s.Message != nil {
		out += fmt.Sprintf(" message %s", s.Message)
	}

	return out
}

// DeliverStep inserts a row forged by the attacker into an open table.
//
// - implements engine.Step
type DeliverStep struct {
	Table string
	Row   []Recipe
}

// String implements fmt.Stringer.
func (s DeliverStep) String() string {
	return fmt.Sprintf("deliver %s(%s)", s.Table, renderRecipes(s.Row))
}

// Script is a complete schedule for one session. Replaying the same script
// against the same program always produces the same trace.
type Script struct {
	Name  string
	Steps []Step
}

// ParseScript decodes a schedule from its YAML form. Unknown fields are
// rejected so that a typo in a hand-written schedule fails loudly instead
// of silently changing its meaning.
func ParseScript(data []byte) (Script, error) {
	doc := scriptYAML{}

	err := yaml.UnmarshalStrict(data, &doc)
	if err != nil {
		return Script{}, xerrors.Errorf("couldn't unmarshal script: %v", err)
	}

	steps := make([]Step, len(doc.Steps))
	for i, node := range doc.Steps {
		steps[i] = node.Step
	}

	return Script{Name: doc.Name, Steps: steps}, nil
}

type scriptYAML struct {
	Name  string     `yaml:"name"`
	Steps []StepNode `yaml:"steps"`
}

// StepNode wraps a step so that the YAML decoder can resolve which variant
// a document entry carries.
type StepNode struct {
	Step Step
}

type stepYAML struct {
	Spawn   string       `yaml:"spawn"`
	Run     *runNode     `yaml:"run"`
	Deliver *deliverYAML `yaml:"deliver"`
}

type deliverYAML struct {
	Table string       `yaml:"table"`
	Row   []RecipeNode `yaml:"row"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *StepNode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw := stepYAML{}

	err := unmarshal(&raw)
	if err != nil {
		return err
	}

	count := 0
	if raw.Spawn != "" {
		count++
	}

	if raw.Run != nil {
		count++
	}

	if raw.Deliver != nil {
		count++
	}

	if count != 1 {
		return xerrors.New("step must be exactly one of spawn, run, deliver")
	}

	switch {
	case raw.Spawn != "":
		n.Step = SpawnStep{Template: raw.Spawn}
	case raw.Run != nil:
		n.Step = raw.Run.step
	default:
		row := make([]Recipe, len(raw.Deliver.Row))
		for i, node := range raw.Deliver.Row {
			row[i] = node.Recipe
		}

		n.Step = DeliverStep{Table: raw.Deliver.Table, Row: row}
	}

	return nil
}

type runNode struct {
	step RunStep
}

type runYAML struct {
	Instance int         `yaml:"instance"`
	Pick     int         `yaml:"pick"`
	Message  *RecipeNode `yaml:"message"`
}

// UnmarshalYAML implements yaml.Unmarshaler. A run entry is either the
// bare instance identifier or a mapping with the optional pick and message
// fields.
func (n *runNode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var short int

	err := unmarshal(&short)
	if err == nil {
		n.step = RunStep{Instance: short}
		return nil
	}

	raw := runYAML{}

	err = unmarshal(&raw)
	if err != nil {
		return err
	}

	n.step = RunStep{Instance: raw.Instance, Pick: raw.Pick}
	if raw.Message != nil {
		n.step.Message = raw.Message.Recipe
	}

	return nil
}

// RecipeNode wraps a recipe so that the YAML decoder can resolve which
// variant a document entry carries.
type RecipeNode struct {
	Recipe Recipe
}

type recipeYAML struct {
	Known *int         `yaml:"known"`
	Pub   string       `yaml:"pub"`
	Fresh string       `yaml:"fresh"`
	Apply *deriveYAML  `yaml:"apply"`
	Tuple []RecipeNode `yaml:"tuple"`
	Part  *partYAML    `yaml:"part"`
}

type deriveYAML struct {
	Symbol string       `yaml:"symbol"`
	Args   []RecipeNode `yaml:"args"`
}

type partYAML struct {
	Of    RecipeNode `yaml:"of"`
	Index int        `yaml:"index"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *RecipeNode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw := recipeYAML{}

	err := unmarshal(&raw)
	if err != nil {
		return err
	}

	count := 0
	if raw.Known != nil {
		count++
	}

	if raw.Pub != "" {
		count++
	}

	if raw.Fresh != "" {
		count++
	}

	if raw.Apply != nil {
		count++
	}

	if raw.Tuple != nil {
		count++
	}

	if raw.Part != nil {
		count++
	}

	if count != 1 {
		return xerrors.New("recipe must be exactly one of known, pub, fresh, apply, tuple, part")
	}

	switch {
	case raw.Known != nil:
		n.Recipe = Known{Index: *raw.Known}
	case raw.Pub != "":
		n.Recipe = Pub{Label: raw.Pub}
	case raw.Fresh != "":
		n.Recipe = FreshName{Label: raw.Fresh}
	case raw.Apply != nil:
		args := make([]Recipe, len(raw.Apply.Args))
		for i, arg := range raw.Apply.Args {
			args[i] = arg.Recipe
		}

		n.Recipe = Derive{Symbol: raw.Apply.Symbol, Args: args}
	case raw.Tuple != nil:
		elems := make([]Recipe, len(raw.Tuple))
		for i, elem := range raw.Tuple {
			elems[i] = elem.Recipe
		}

		n.Recipe = Group{Elems: elems}
	default:
		n.Recipe = Part{Of: raw.Part.Of.Recipe, Index: raw.Part.Index}
	}

	return nil
}
