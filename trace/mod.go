// Package trace implements the event log of a session and the evaluation
// of correspondence properties over it.
//
// Every event a process emits is appended to the log with the logical time
// of its step. Two kinds of properties read the log: restrictions, which
// every admissible trace must satisfy and whose violation discards the
// trace, and queries, which express the security goals and evaluate to
// true or to false with the violating combination as counterexample.
//
// Documentation Last Review: 14.02.2023
//
package trace

import (
	"fmt"
	"strings"

	"github.com/sbaloglu/proverif-codes/term"
)

// Occurrence is one emitted event. Identical emissions at different steps
// are distinct occurrences; multiplicities matter for uniqueness
// properties.
type Occurrence struct {
	Name string
	Args []term.Term
	Time uint64
}

// String implements fmt.Stringer. It renders the occurrence with its
// logical time, e.g. "Voted(id#1,vk(cr#2),candA)@4".
func (o Occurrence) String() string {
	args := make([]string, len(o.Args))
	for i, arg := range o.Args {
		args[i] = arg.String()
	}

	return fmt.Sprintf("%s(%s)@%d", o.Name, strings.Join(args, ","), o.Time)
}

// Log is the append-only sequence of occurrences of one session, ordered
// by logical time of emission.
type Log []Occurrence

// EventPattern matches occurrences of one event. Argument positions follow
// the usual pattern semantics; At, when not empty, names the time variable
// bound to the matched occurrence's logical time.
type EventPattern struct {
	Name string
	Args []term.Expr
	At   string
}

// String implements fmt.Stringer.
func (p EventPattern) String() string {
	args := make([]string, len(p.Args))
	for i, arg := range p.Args {
		args[i] = arg.String()
	}

	out := fmt.Sprintf("%s(%s)", p.Name, strings.Join(args, ","))
	if p.At != "" {
		out += "@" + p.At
	}

	return out
}

// Assignment is the combined frame a property evaluation runs under: term
// bindings from event arguments and time bindings from @ binders.
type Assignment struct {
	Bindings term.Bindings
	Times    map[string]uint64
}

// Clone returns an independent copy of the assignment.
func (a Assignment) Clone() Assignment {
	times := make(map[string]uint64, len(a.Times))
	for name, value := range a.Times {
		times[name] = value
	}

	return Assignment{
		Bindings: a.Bindings.Clone(),
		Times:    times,
	}
}

// match extends the assignment with the occurrence when the pattern
// accepts it. The assignment is modified in place on success only.
func (p EventPattern) match(occ Occurrence, a Assignment) (Assignment, bool) {
	if occ.Name != p.Name {
		return a, false
	}

	binding, ok := term.MatchAll(p.Args, occ.Args, a.Bindings)
	if !ok {
		return a, false
	}

	next := Assignment{Bindings: binding, Times: a.Times}

	if p.At != "" {
		prev, bound := a.Times[p.At]
		if bound {
			if prev != occ.Time {
				return a, false
			}

			return next, true
		}

		times := make(map[string]uint64, len(a.Times)+1)
		for name, value := range a.Times {
			times[name] = value
		}

		times[p.At] = occ.Time
		next.Times = times
	}

	return next, true
}
