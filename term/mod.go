// Package term implements the symbolic term algebra the election models are
// written in. A term is a node of a free algebra: an atomic value (fresh
// name, declared constant, channel reference) or a function symbol applied
// to an ordered list of sub-terms. Terms are immutable and compared by
// syntactic equality of their normal forms.
//
// The package also carries the signature of a model (declared function
// symbols, rewrite rules, tables, events, channels) and the rewrite system
// that normalizes destructor applications. Cryptographic primitives are
// opaque symbols reduced by their equations; nothing is ever computed over
// actual numbers.
package term

import (
	"fmt"
	"strings"
)

// Term is a node in the symbolic algebra. Implementations are immutable;
// sharing a term between processes is safe.
type Term interface {
	fmt.Stringer

	// Equal returns true when the other term is syntactically identical.
	Equal(other Term) bool
}

// Name is a fresh name. Every name generated during a session carries a
// unique serial so that two generation steps never produce equal terms.
//
// - implements term.Term
type Name struct {
	base   string
	serial uint64
}

// NewName creates a name from its base label and serial. The engine session
// is responsible for serial uniqueness.
func NewName(base string, serial uint64) Name {
	return Name{base: base, serial: serial}
}

// Base returns the label the name was generated under.
func (n Name) Base() string {
	return n.base
}

// Serial returns the unique serial of the name.
func (n Name) Serial() uint64 {
	return n.serial
}

// Equal implements term.Term. Two names are equal only when they come from
// the very same generation step.
func (n Name) Equal(other Term) bool {
	o, ok := other.(Name)
	return ok && o.serial == n.serial && o.base == n.base
}

// String implements fmt.Stringer. It returns the base followed by the
// serial, e.g. "cr#3".
func (n Name) String() string {
	return fmt.Sprintf("%s#%d", n.base, n.serial)
}

// Constant is a declared free name, for instance a candidate identity or
// the result constant of a proof check.
//
// - implements term.Term
type Constant struct {
	label string
}

// NewConstant creates a constant with the given label.
func NewConstant(label string) Constant {
	return Constant{label: label}
}

// Label returns the declared label of the constant.
func (c Constant) Label() string {
	return c.label
}

// Equal implements term.Term.
func (c Constant) Equal(other Term) bool {
	o, ok := other.(Constant)
	return ok && o.label == c.label
}

// String implements fmt.Stringer.
func (c Constant) String() string {
	return c.label
}

// Channel is a reference to a declared channel, so that channels can appear
// inside messages and table rows like any other value.
//
// - implements term.Term
type Channel struct {
	name string
}

// NewChannel creates a channel reference.
func NewChannel(name string) Channel {
	return Channel{name: name}
}

// Name returns the declared name of the channel.
func (c Channel) Name() string {
	return c.name
}

// Equal implements term.Term.
func (c Channel) Equal(other Term) bool {
	o, ok := other.(Channel)
	return ok && o.name == c.name
}

// String implements fmt.Stringer.
func (c Channel) String() string {
	return "@" + c.name
}

// Func is a function symbol applied to an ordered tuple of sub-terms. The
// symbol may be a constructor, or a destructor that no rule could reduce
// further only while an expression is being normalized; stored terms only
// ever contain constructors.
//
// - implements term.Term
type Func struct {
	symbol string
	args   []Term
}

// NewFunc creates the application of the symbol to the arguments. It is a
// pure data constructor and never fails.
func NewFunc(symbol string, args ...Term) Func {
	inner := make([]Term, len(args))
	copy(inner, args)

	return Func{symbol: symbol, args: inner}
}

// Symbol returns the function symbol.
func (f Func) Symbol() string {
	return f.symbol
}

// Len returns the number of arguments.
func (f Func) Len() int {
	return len(f.args)
}

// Arg returns the argument at the given position.
func (f Func) Arg(i int) Term {
	return f.args[i]
}

// Args returns a copy of the arguments.
func (f Func) Args() []Term {
	args := make([]Term, len(f.args))
	copy(args, f.args)

	return args
}

// Equal implements term.Term.
func (f Func) Equal(other Term) bool {
	o, ok := other.(Func)
	if !ok || o.symbol != f.symbol || len(o.args) != len(f.args) {
		return false
	}

	for i, arg := range f.args {
		if !arg.Equal(o.args[i]) {
			return false
		}
	}

	return true
}

// String implements fmt.Stringer.
func (f Func) String() string {
	args := make([]string, len(f.args))
	for i, arg := range f.args {
		args[i] = arg.String()
	}

	return fmt.Sprintf("%s(%s)", f.symbol, strings.Join(args, ","))
}

// Tuple is the ordered pairing of terms. Messages and table rows with
// several fields travel as tuples and are destructured by patterns.
//
// - implements term.Term
type Tuple struct {
	elems []Term
}

// NewTuple creates a tuple of the given elements.
func NewTuple(elems ...Term) Tuple {
	inner := make([]Term, len(elems))
	copy(inner, elems)

	return Tuple{elems: inner}
}

// Len returns the number of elements.
func (t Tuple) Len() int {
	return len(t.elems)
}

// Elem returns the element at the given position.
func (t Tuple) Elem(i int) Term {
	return t.elems[i]
}

// Elems returns a copy of the elements.
func (t Tuple) Elems() []Term {
	elems := make([]Term, len(t.elems))
	copy(elems, t.elems)

	return elems
}

// Equal implements term.Term.
func (t Tuple) Equal(other Term) bool {
	o, ok := other.(Tuple)
	if !ok || len(o.elems) != len(t.elems) {
		return false
	}

	for i, elem := range t.elems {
		if !elem.Equal(o.elems[i]) {
			return false
		}
	}

	return true
}

// String implements fmt.Stringer.
func (t Tuple) String() string {
	elems := make([]string, len(t.elems))
	for i, elem := range t.elems {
		elems[i] = elem.String()
	}

	return fmt.Sprintf("(%s)", strings.Join(elems, ","))
}
