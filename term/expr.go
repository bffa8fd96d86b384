package term

import (
	"fmt"
	"strings"
)

// Expr is a term with variables. The same tree serves two purposes: as an
// expression it is instantiated under a binding and normalized to a ground
// term, and as a pattern it is matched against a ground term, binding its
// free variables.
type Expr interface {
	fmt.Stringer

	// Vars appends the variable names occurring in the expression, in
	// left-to-right order and with repetitions.
	Vars(acc []string) []string
}

// Var is a variable. When a pattern is matched under a binding that already
// defines the variable, the position turns into an exact-match constraint.
//
// - implements term.Expr
type Var struct {
	Name string
}

// X is a shorthand to build a variable expression.
func X(name string) Var {
	return Var{Name: name}
}

// Vars implements term.Expr.
func (v Var) Vars(acc []string) []string {
	return append(acc, v.Name)
}

// String implements fmt.Stringer.
func (v Var) String() string {
	return v.Name
}

// Cst refers to a declared constant.
//
// - implements term.Expr
type Cst struct {
	Label string
}

// C is a shorthand to build a constant expression.
func C(label string) Cst {
	return Cst{Label: label}
}

// Vars implements term.Expr.
func (c Cst) Vars(acc []string) []string {
	return acc
}

// String implements fmt.Stringer.
func (c Cst) String() string {
	return c.Label
}

// Apply is the application of a function symbol to sub-expressions. In
// patterns only constructors are allowed; in expressions the symbol may be
// a destructor, which the rewrite system reduces away.
//
// - implements term.Expr
type Apply struct {
	Symbol string
	Args   []Expr
}

// Ap is a shorthand to build an application expression.
func Ap(symbol string, args ...Expr) Apply {
	return Apply{Symbol: symbol, Args: args}
}

// Vars implements term.Expr.
func (a Apply) Vars(acc []string) []string {
	for _, arg := range a.Args {
		acc = arg.Vars(acc)
	}

	return acc
}

// String implements fmt.Stringer.
func (a Apply) String() string {
	args := make([]string, len(a.Args))
	for i, arg := range a.Args {
		args[i] = arg.String()
	}

	return fmt.Sprintf("%s(%s)", a.Symbol, strings.Join(args, ","))
}

// TupleExpr pairs sub-expressions, mirroring the Tuple term.
//
// - implements term.Expr
type TupleExpr struct {
	Elems []Expr
}

// Tup is a shorthand to build a tuple expression.
func Tup(elems ...Expr) TupleExpr {
	return TupleExpr{Elems: elems}
}

// Vars implements term.Expr.
func (t TupleExpr) Vars(acc []string) []string {
	for _, elem := range t.Elems {
		acc = elem.Vars(acc)
	}

	return acc
}

// String implements fmt.Stringer.
func (t TupleExpr) String() string {
	elems := make([]string, len(t.Elems))
	for i, elem := range t.Elems {
		elems[i] = elem.String()
	}

	return fmt.Sprintf("(%s)", strings.Join(elems, ","))
}

// Lit embeds a ground term inside an expression or a pattern, where it
// constrains the position to that exact value.
//
// - implements term.Expr
type Lit struct {
	Term Term
}

// L is a shorthand to embed a ground term.
func L(t Term) Lit {
	return Lit{Term: t}
}

// Vars implements term.Expr.
func (l Lit) Vars(acc []string) []string {
	return acc
}

// String implements fmt.Stringer.
func (l Lit) String() string {
	return l.Term.String()
}
