package term

import "golang.org/x/xerrors"

// Bindings maps variable names to the ground terms they are bound to. A
// binding frame is local to one process instance, one rewrite-rule
// application, or one property-pattern combination.
type Bindings map[string]Term

// Clone returns an independent copy of the bindings.
func (b Bindings) Clone() Bindings {
	clone := make(Bindings, len(b))
	for name, value := range b {
		clone[name] = value
	}

	return clone
}

// Match matches the pattern against the ground term, extending the bindings
// with the variables the pattern introduces. A variable already present in
// the bindings turns into an exact-match constraint, which also gives
// non-linear patterns their equality semantics. The bindings are modified
// in place, so the caller should pass a clone when the match is tentative.
func Match(pattern Expr, t Term, b Bindings) bool {
	switch pat := pattern.(type) {
	case Var:
		prev, found := b[pat.Name]
		if found {
			return prev.Equal(t)
		}

		b[pat.Name] = t

		return true
	case Cst:
		cst, ok := t.(Constant)

		return ok && cst.label == pat.Label
	case Lit:
		return pat.Term.Equal(t)
	case Apply:
		fn, ok := t.(Func)
		if !ok || fn.symbol != pat.Symbol || len(fn.args) != len(pat.Args) {
			return false
		}

		for i, sub := range pat.Args {
			if !Match(sub, fn.args[i], b) {
				return false
			}
		}

		return true
	case TupleExpr:
		tuple, ok := t.(Tuple)
		if !ok || len(tuple.elems) != len(pat.Elems) {
			return false
		}

		for i, sub := range pat.Elems {
			if !Match(sub, tuple.elems[i], b) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// MatchAll matches a list of patterns against a list of terms of the same
// length under a shared binding frame. It returns the extended frame, or
// false when any position disagrees. The base frame is left untouched.
func MatchAll(patterns []Expr, terms []Term, base Bindings) (Bindings, bool) {
	if len(patterns) != len(terms) {
		return nil, false
	}

	b := base.Clone()

	for i, pattern := range patterns {
		if !Match(pattern, terms[i], b) {
			return nil, false
		}
	}

	return b, true
}

// instantiate builds the raw ground term of the expression under the
// bindings without applying any rewrite rule. An unbound variable is a
// contract violation of the caller, never a protocol-level failure.
func instantiate(e Expr, b Bindings) (Term, error) {
	switch expr := e.(type) {
	case Var:
		value, found := b[expr.Name]
		if !found {
			return nil, xerrors.Errorf("variable '%s' is not bound", expr.Name)
		}

		return value, nil
	case Cst:
		return Constant{label: expr.Label}, nil
	case Lit:
		return expr.Term, nil
	case Apply:
		args := make([]Term, len(expr.Args))

		for i, sub := range expr.Args {
			arg, err := instantiate(sub, b)
			if err != nil {
				return nil, err
			}

			args[i] = arg
		}

		return Func{symbol: expr.Symbol, args: args}, nil
	case TupleExpr:
		elems := make([]Term, len(expr.Elems))

		for i, sub := range expr.Elems {
			elem, err := instantiate(sub, b)
			if err != nil {
				return nil, err
			}

			elems[i] = elem
		}

		return Tuple{elems: elems}, nil
	default:
		return nil, xerrors.Errorf("unsupported expression %T", e)
	}
}
