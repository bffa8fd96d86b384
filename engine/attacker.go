package engine

import (
	"fmt"
	"strings"

	"github.com/sbaloglu/proverif-codes/term"
	"golang.org/x/xerrors"
)

// Attacker tracks the knowledge of the network adversary and evaluates the
// recipes a schedule uses to forge messages from it.
//
// The knowledge is an append-only journal: the public free names in sorted
// order, followed by every message broadcast on a public channel and every
// row landing in a public table, in observation order. Duplicates are kept
// so that recipe indices never shift. Terms the attacker derives with a
// recipe are not journaled; a recipe can always rebuild them.
type Attacker struct {
	sys   *term.System
	known []term.Term
	fresh map[string]term.Term
	gen   func(base string) term.Term
}

func newAttacker(sys *term.System, gen func(base string) term.Term) *Attacker {
	known := []term.Term{}

	for _, cst := range sys.Signature().Constants() {
		if !cst.Private {
			known = append(known, term.NewConstant(cst.Name))
		}
	}

	return &Attacker{
		sys:   sys,
		known: known,
		fresh: make(map[string]term.Term),
		gen:   gen,
	}
}

// Learn appends an observed term to the knowledge journal.
func (a *Attacker) Learn(t term.Term) {
	a.known = append(a.known, t)
}

// Knows returns a copy of the knowledge journal.
func (a *Attacker) Knows() []term.Term {
	return append([]term.Term{}, a.known...)
}

// Len returns the number of journal entries.
func (a *Attacker) Len() int {
	return len(a.known)
}

// Evaluate builds the ground term the recipe describes. It fails on an
// out-of-range knowledge index, a private symbol or a failing reduction,
// all of which mean the schedule is malformed.
func (a *Attacker) Evaluate(r Recipe) (term.Term, error) {
	if r == nil {
		return nil, xerrors.New("empty recipe")
	}

	return r.eval(a)
}

// Recipe describes how the attacker derives a term: from a journal entry,
// a public free name, a fresh name of its own, or by applying declared
// function symbols to sub-recipes.
type Recipe interface {
	fmt.Stringer

	eval(a *Attacker) (term.Term, error)
}

// Known refers to an entry of the knowledge journal by index.
//
// - implements engine.Recipe
type Known struct {
	Index int
}

// String implements fmt.Stringer.
func (r Known) String() string {
	return fmt.Sprintf("k[%d]", r.Index)
}

func (r Known) eval(a *Attacker) (term.Term, error) {
	if r.Index < 0 || r.Index >= len(a.known) {
		return nil, xerrors.Errorf("knowledge index %d out of range: %d entries",
			r.Index, len(a.known))
	}

	return a.known[r.Index], nil
}

// Pub refers to a declared public free name.
//
// - implements engine.Recipe
type Pub struct {
	Label string
}

// String implements fmt.Stringer.
func (r Pub) String() string {
	return r.Label
}

func (r Pub) eval(a *Attacker) (term.Term, error) {
	cst, found := a.sys.Signature().Constant(r.Label)
	if !found {
		return nil, xerrors.Errorf("constant '%s' is not declared", r.Label)
	}

	if cst.Private {
		return nil, xerrors.Errorf("constant '%s' is private", r.Label)
	}

	return term.NewConstant(r.Label), nil
}

// FreshName is a name the attacker generates itself. The first use of a
// label creates the name; later uses, in any step of the same session,
// return the same name so that a nonce can be reused across recipes.
//
// - implements engine.Recipe
type FreshName struct {
	Label string
}

// String implements fmt.Stringer.
func (r FreshName) String() string {
	return fmt.Sprintf("fresh(%s)", r.Label)
}

func (r FreshName) eval(a *Attacker) (term.Term, error) {
	if r.Label == "" {
		return nil, xerrors.New("fresh recipe with empty label")
	}

	name, found := a.fresh[r.Label]
	if !found {
		name = a.gen(r.Label)
		a.fresh[r.Label] = name
	}

	return name, nil
}

// Derive applies a declared constructor or destructor to sub-recipes.
//
// - implements engine.Recipe
type Derive struct {
	Symbol string
	Args   []Recipe
}

// String implements fmt.Stringer.
func (r Derive) String() string {
	return fmt.Sprintf("%s(%s)", r.Symbol, renderRecipes(r.Args))
}

func (r Derive) eval(a *Attacker) (term.Term, error) {
	args, err := evalRecipes(a, r.Args)
	if err != nil {
		return nil, err
	}

	sig := a.sys.Signature()

	_, isCons := sig.Constructor(r.Symbol)

	switch {
	case isCons:
		t, err := a.sys.Build(r.Symbol, args...)
		if err != nil {
			return nil, err
		}

		norm, ok := a.sys.Normalize(t)
		if !ok {
			return nil, xerrors.Errorf("recipe %s does not reduce", r)
		}

		return norm, nil
	case sig.IsDestructor(r.Symbol):
		t, ok, err := a.sys.Reduce(r.Symbol, args...)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, xerrors.Errorf("recipe %s does not reduce", r)
		}

		return t, nil
	default:
		return nil, xerrors.Errorf("'%s' is not declared", r.Symbol)
	}
}

// Group pairs sub-recipes into a tuple.
//
// - implements engine.Recipe
type Group struct {
	Elems []Recipe
}

// String implements fmt.Stringer.
func (r Group) String() string {
	return fmt.Sprintf("(%s)", renderRecipes(r.Elems))
}

func (r Group) eval(a *Attacker) (term.Term, error) {
	elems, err := evalRecipes(a, r.Elems)
	if err != nil {
		return nil, err
	}

	return term.NewTuple(elems...), nil
}

// Part extracts one element of a tuple.
//
// - implements engine.Recipe
type Part struct {
	Of    Recipe
	Index int
}

// String implements fmt.Stringer.
func (r Part) String() string {
	return fmt.Sprintf("part(%s,%d)", r.Of, r.Index)
}

func (r Part) eval(a *Attacker) (term.Term, error) {
	t, err := r.Of.eval(a)
	if err != nil {
		return nil, err
	}

	tuple, ok := t.(term.Tuple)
	if !ok {
		return nil, xerrors.Errorf("recipe %s projects a non-tuple", r.Of)
	}

	if r.Index < 0 || r.Index >= tuple.Len() {
		return nil, xerrors.Errorf("projection index %d out of range: %d elements",
			r.Index, tuple.Len())
	}

	return tuple.Elem(r.Index), nil
}

func evalRecipes(a *Attacker, recipes []Recipe) ([]term.Term, error) {
	terms := make([]term.Term, len(recipes))

	for i, r := range recipes {
		t, err := r.eval(a)
		if err != nil {
			return nil, err
		}

		terms[i] = t
	}

	return terms, nil
}

func renderRecipes(recipes []Recipe) string {
	parts := make([]string, len(recipes))
	for i, r := range recipes {
		parts[i] = r.String()
	}

	return strings.Join(parts, ",")
}
