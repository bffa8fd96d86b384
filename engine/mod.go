// Package engine implements the execution of election models: role
// templates compiled into programs, process instances advancing through
// their actions, the network attacker, and the session that replays an
// externally chosen schedule deterministically.
//
// The engine never explores: one session executes exactly one schedule,
// the sequence of nondeterministic choices an external solver supplies as
// a script. Exhaustive search is the solver's business; determinism and
// faithful semantics are the engine's.
//
// Documentation Last Review: 14.02.2023
//
package engine

import (
	"fmt"
	"strings"

	"github.com/sbaloglu/proverif-codes/term"
)

// Action is one step of a role template. A template is a linear sequence
// of actions; there is no branching, only early termination when a guard
// or a reduction fails.
type Action interface {
	fmt.Stringer
}

// Fresh binds Var to a newly generated name, unique across the whole
// session.
//
// - implements engine.Action
type Fresh struct {
	Var string
}

// String implements fmt.Stringer.
func (a Fresh) String() string {
	return "new " + a.Var
}

// Let binds Var to the normal form of Value. A failing reduction silently
// terminates the instance.
//
// - implements engine.Action
type Let struct {
	Var   string
	Value term.Expr
}

// String implements fmt.Stringer.
func (a Let) String() string {
	return fmt.Sprintf("let %s = %s", a.Var, a.Value)
}

// Guard continues only when Cond reduces to true. Anything else, including
// a failing reduction, silently terminates the instance.
//
// - implements engine.Action
type Guard struct {
	Cond term.Expr
}

// String implements fmt.Stringer.
func (a Guard) String() string {
	return fmt.Sprintf("if %s", a.Cond)
}

// Insert appends a row to a table of the bulletin board.
//
// - implements engine.Action
type Insert struct {
	Table string
	Row   []term.Expr
}

// String implements fmt.Stringer.
func (a Insert) String() string {
	return fmt.Sprintf("insert %s(%s)", a.Table, renderExprs(a.Row))
}

// Get blocks until a row of the table matches the pattern and the optional
// SuchThat filter, then extends the frame with the pattern bindings. Rows
// are never consumed; which matching row is taken is a schedule choice.
//
// - implements engine.Action
type Get struct {
	Table    string
	Pattern  []term.Expr
	SuchThat term.Expr
}

// String implements fmt.Stringer.
func (a Get) String() string {
	out := fmt.Sprintf("get %s(%s)", a.Table, renderExprs(a.Pattern))
	if a.SuchThat != nil {
		out += fmt.Sprintf(" suchthat %s", a.SuchThat)
	}

	return out
}

// Send puts a message on a channel. On a public channel the attacker
// learns the message.
//
// - implements engine.Action
type Send struct {
	Channel string
	Message term.Expr
}

// String implements fmt.Stringer.
func (a Send) String() string {
	return fmt.Sprintf("out(%s, %s)", a.Channel, a.Message)
}

// Recv receives a message matching the pattern. On a private channel the
// oldest matching queued message is consumed; on a public channel the
// message is chosen by the attacker, so the schedule must supply a recipe.
//
// - implements engine.Action
type Recv struct {
	Channel string
	Pattern term.Expr
}

// String implements fmt.Stringer.
func (a Recv) String() string {
	return fmt.Sprintf("in(%s, %s)", a.Channel, a.Pattern)
}

// Emit appends an event occurrence to the session log, stamped with the
// current logical time.
//
// - implements engine.Action
type Emit struct {
	Event string
	Args  []term.Expr
}

// String implements fmt.Stringer.
func (a Emit) String() string {
	return fmt.Sprintf("event %s(%s)", a.Event, renderExprs(a.Args))
}

// Template is the script of one role. A replicated template can be
// spawned any number of times by the schedule; a singleton is spawned
// exactly once when the session starts, forming with the other singletons
// the fixed parallel composition of the model.
type Template struct {
	Name       string
	Replicated bool
	Actions    []Action
}

func renderExprs(exprs []term.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}

	return strings.Join(parts, ",")
}
