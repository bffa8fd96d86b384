package trace

import (
	"fmt"
	"strings"

	"github.com/sbaloglu/proverif-codes/term"
	"golang.org/x/xerrors"
)

// Formula is the conclusion language of restrictions and queries: term
// equalities, time comparisons, existence of further occurrences, and
// their conjunctions and disjunctions. There is no general negation;
// negative conditions are modeled with otherwise-style predicates like eq.
type Formula interface {
	fmt.Stringer

	// Eval evaluates the formula over the log under the assignment.
	Eval(sys *term.System, log Log, a Assignment) (bool, error)
}

// Eq holds when both expressions reduce to the same normal form. A failing
// reduction makes the equality false, never an error.
//
// - implements trace.Formula
type Eq struct {
	Left  term.Expr
	Right term.Expr
}

// Eval implements trace.Formula.
func (f Eq) Eval(sys *term.System, log Log, a Assignment) (bool, error) {
	left, ok, err := sys.Eval(f.Left, a.Bindings)
	if err != nil {
		return false, xerrors.Errorf("left side: %v", err)
	}

	if !ok {
		return false, nil
	}

	right, ok, err := sys.Eval(f.Right, a.Bindings)
	if err != nil {
		return false, xerrors.Errorf("right side: %v", err)
	}

	if !ok {
		return false, nil
	}

	return left.Equal(right), nil
}

// String implements fmt.Stringer.
func (f Eq) String() string {
	return fmt.Sprintf("%s = %s", f.Left, f.Right)
}

// SameTime holds when both time variables are bound to the same logical
// time.
//
// - implements trace.Formula
type SameTime struct {
	T1 string
	T2 string
}

// Eval implements trace.Formula.
func (f SameTime) Eval(sys *term.System, log Log, a Assignment) (bool, error) {
	t1, err := boundTime(a, f.T1)
	if err != nil {
		return false, err
	}

	t2, err := boundTime(a, f.T2)
	if err != nil {
		return false, err
	}

	return t1 == t2, nil
}

// String implements fmt.Stringer.
func (f SameTime) String() string {
	return fmt.Sprintf("%s = %s", f.T1, f.T2)
}

// Before holds when the first time variable is bound strictly earlier than
// the second.
//
// - implements trace.Formula
type Before struct {
	T1 string
	T2 string
}

// Eval implements trace.Formula.
func (f Before) Eval(sys *term.System, log Log, a Assignment) (bool, error) {
	t1, err := boundTime(a, f.T1)
	if err != nil {
		return false, err
	}

	t2, err := boundTime(a, f.T2)
	if err != nil {
		return false, err
	}

	return t1 < t2, nil
}

// String implements fmt.Stringer.
func (f Before) String() string {
	return fmt.Sprintf("%s < %s", f.T1, f.T2)
}

// Has holds when some occurrence of the log matches the pattern and the
// nested formula, when present, holds under the extended assignment. The
// search backtracks over every matching occurrence.
//
// - implements trace.Formula
type Has struct {
	Event EventPattern
	Where Formula
}

// Eval implements trace.Formula.
func (f Has) Eval(sys *term.System, log Log, a Assignment) (bool, error) {
	for _, occ := range log {
		next, ok := f.Event.match(occ, a)
		if !ok {
			continue
		}

		if f.Where == nil {
			return true, nil
		}

		holds, err := f.Where.Eval(sys, log, next)
		if err != nil {
			return false, xerrors.Errorf("within %s: %v", f.Event, err)
		}

		if holds {
			return true, nil
		}
	}

	return false, nil
}

// String implements fmt.Stringer.
func (f Has) String() string {
	if f.Where == nil {
		return fmt.Sprintf("event(%s)", f.Event)
	}

	return fmt.Sprintf("event(%s) && %s", f.Event, f.Where)
}

// And holds when every sub-formula holds. An empty conjunction holds.
//
// - implements trace.Formula
type And []Formula

// Eval implements trace.Formula.
func (f And) Eval(sys *term.System, log Log, a Assignment) (bool, error) {
	for _, sub := range f {
		holds, err := sub.Eval(sys, log, a)
		if err != nil {
			return false, err
		}

		if !holds {
			return false, nil
		}
	}

	return true, nil
}

// String implements fmt.Stringer.
func (f And) String() string {
	return joinFormulas(f, " && ")
}

// Or holds when at least one sub-formula holds. An empty disjunction never
// holds.
//
// - implements trace.Formula
type Or []Formula

// Eval implements trace.Formula.
func (f Or) Eval(sys *term.System, log Log, a Assignment) (bool, error) {
	for _, sub := range f {
		holds, err := sub.Eval(sys, log, a)
		if err != nil {
			return false, err
		}

		if holds {
			return true, nil
		}
	}

	return false, nil
}

// String implements fmt.Stringer.
func (f Or) String() string {
	return joinFormulas(f, " || ")
}

func joinFormulas(fs []Formula, sep string) string {
	parts := make([]string, len(fs))
	for i, sub := range fs {
		parts[i] = fmt.Sprintf("(%s)", sub)
	}

	return strings.Join(parts, sep)
}

func boundTime(a Assignment, name string) (uint64, error) {
	value, found := a.Times[name]
	if !found {
		return 0, xerrors.Errorf("time variable '%s' is not bound", name)
	}

	return value, nil
}
