package term

import "golang.org/x/xerrors"

// TrueLabel is the label of the boolean true constant produced by the
// otherwise-style equality test of the standard theories.
const TrueLabel = "true"

// FalseLabel is the label of the boolean false constant.
const FalseLabel = "false"

// OKLabel is the label of the constant returned by successful proof and
// signature checks.
const OKLabel = "ok"

// True returns the boolean true constant.
func True() Constant {
	return Constant{label: TrueLabel}
}

// False returns the boolean false constant.
func False() Constant {
	return Constant{label: FalseLabel}
}

// OK returns the ok constant.
func OK() Constant {
	return Constant{label: OKLabel}
}

// System evaluates expressions against the rewrite rules of a signature.
// Rules of a symbol are tried top to bottom and the first structural match
// fires; the otherwise rule of a destructor fires only when no other rule
// matched. The per-model rule sets are assumed confluent and terminating,
// which the model author guarantees.
type System struct {
	sig *Signature
}

// NewSystem creates a system for the signature.
func NewSystem(sig *Signature) *System {
	return &System{sig: sig}
}

// Signature returns the signature the system evaluates against.
func (s *System) Signature() *Signature {
	return s.sig
}

// Build applies a constructor to ground arguments. It only fails on a
// symbol that is not a declared constructor or on an arity mismatch, which
// are contract violations of the caller.
func (s *System) Build(name string, args ...Term) (Term, error) {
	cons, found := s.sig.Constructor(name)
	if !found {
		return nil, xerrors.Errorf("'%s' is not a declared constructor", name)
	}

	if cons.Arity != len(args) {
		return nil, xerrors.Errorf("constructor '%s' expects %d arguments, got %d",
			name, cons.Arity, len(args))
	}

	return NewFunc(name, args...), nil
}

// Reduce applies a destructor to ground arguments and normalizes the
// result. The boolean reports reduction success: false means no rule
// matched, which the caller must treat as a failed guard, not an error.
func (s *System) Reduce(name string, args ...Term) (Term, bool, error) {
	set, found := s.sig.rules[name]
	if !found || !set.destructor {
		return nil, false, xerrors.Errorf("'%s' is not a declared destructor", name)
	}

	arity, err := s.sig.arityOf(name)
	if err != nil {
		return nil, false, err
	}

	if arity != len(args) {
		return nil, false, xerrors.Errorf("destructor '%s' expects %d arguments, got %d",
			name, arity, len(args))
	}

	t, ok := s.Normalize(NewFunc(name, args...))

	return t, ok, nil
}

// Normalize rewrites the term bottom-up to its normal form. The boolean is
// false when a destructor application matches no rule, which makes the
// whole expression fail.
func (s *System) Normalize(t Term) (Term, bool) {
	switch v := t.(type) {
	case Func:
		args := make([]Term, len(v.args))

		for i, arg := range v.args {
			norm, ok := s.Normalize(arg)
			if !ok {
				return nil, false
			}

			args[i] = norm
		}

		return s.rewrite(v.symbol, args)
	case Tuple:
		elems := make([]Term, len(v.elems))

		for i, elem := range v.elems {
			norm, ok := s.Normalize(elem)
			if !ok {
				return nil, false
			}

			elems[i] = norm
		}

		return Tuple{elems: elems}, true
	default:
		return t, true
	}
}

// Eval instantiates the expression under the bindings and normalizes the
// result. The boolean is the reduction outcome; the error reports contract
// violations such as an unbound variable or an undeclared symbol, which
// never happen for expressions that passed CheckExpr against bound
// variables.
func (s *System) Eval(e Expr, b Bindings) (Term, bool, error) {
	raw, err := instantiate(e, b)
	if err != nil {
		return nil, false, xerrors.Errorf("couldn't instantiate: %v", err)
	}

	t, ok := s.Normalize(raw)

	return t, ok, nil
}

// Holds evaluates a boolean condition: it is satisfied when the expression
// reduces to the true constant. A failed reduction is a false condition,
// not an error.
func (s *System) Holds(e Expr, b Bindings) (bool, error) {
	t, ok, err := s.Eval(e, b)
	if err != nil {
		return false, err
	}

	return ok && t.Equal(True()), nil
}

// Equals reports the structural equality of the normal forms of the two
// terms. Terms that fail to normalize compare unequal to everything.
func (s *System) Equals(t1, t2 Term) bool {
	n1, ok := s.Normalize(t1)
	if !ok {
		return false
	}

	n2, ok := s.Normalize(t2)
	if !ok {
		return false
	}

	return n1.Equal(n2)
}

// rewrite applies the first matching rule of the symbol to the already
// normalized arguments.
func (s *System) rewrite(symbol string, args []Term) (Term, bool) {
	set, found := s.sig.rules[symbol]
	if !found {
		return Func{symbol: symbol, args: args}, true
	}

	for _, rule := range set.rules {
		binding, ok := MatchAll(rule.Params, args, nil)
		if !ok {
			continue
		}

		return s.fire(rule, binding)
	}

	if set.otherwise != nil {
		binding, ok := MatchAll(set.otherwise.Params, args, nil)
		if ok {
			return s.fire(*set.otherwise, binding)
		}
	}

	if set.destructor {
		return nil, false
	}

	return Func{symbol: symbol, args: args}, true
}

func (s *System) fire(rule Rule, binding Bindings) (Term, bool) {
	raw, err := instantiate(rule.Result, binding)
	if err != nil {
		// Rules are validated at declaration time, so the result is always
		// closed under the parameter variables.
		panic(xerrors.Errorf("invalid rule: %v", err))
	}

	return s.Normalize(raw)
}
