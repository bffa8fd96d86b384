package trace

import (
	"fmt"
	"strings"

	"github.com/sbaloglu/proverif-codes/term"
	"golang.org/x/xerrors"
)

// Restriction is a universally quantified implication every admissible
// trace must satisfy: for every combination of occurrences matching the
// premises, the conclusion holds. A violating trace is discarded by the
// replay, it is never an attack to report.
type Restriction struct {
	Name       string
	Premises   []EventPattern
	Conclusion Formula
}

// Violation reports the first premise combination of a restriction whose
// conclusion failed.
type Violation struct {
	Restriction string
	Assignment  Assignment
	Matched     []Occurrence
}

// String implements fmt.Stringer.
func (v Violation) String() string {
	return fmt.Sprintf("restriction '%s' violated by %s",
		v.Restriction, renderOccurrences(v.Matched))
}

// Check verifies the restriction over the whole log. It returns the first
// violation found, or nil when the trace is admissible.
func (r Restriction) Check(sys *term.System, log Log) (*Violation, error) {
	var violation *Violation

	_, err := joinPremises(log, r.Premises, Assignment{}, nil,
		func(a Assignment, matched []Occurrence) (bool, error) {
			holds, err := r.Conclusion.Eval(sys, log, a)
			if err != nil {
				return true, err
			}

			if !holds {
				violation = &Violation{
					Restriction: r.Name,
					Assignment:  a,
					Matched:     append([]Occurrence(nil), matched...),
				}

				return true, nil
			}

			return false, nil
		})
	if err != nil {
		return nil, xerrors.Errorf("couldn't check '%s': %v", r.Name, err)
	}

	return violation, nil
}

// CheckAll verifies every restriction and returns the first violation, or
// nil when all of them hold.
func CheckAll(sys *term.System, restrictions []Restriction, log Log) (*Violation, error) {
	for _, r := range restrictions {
		violation, err := r.Check(sys, log)
		if err != nil {
			return nil, err
		}

		if violation != nil {
			return violation, nil
		}
	}

	return nil, nil
}

// Query is a correspondence assertion under test: for every combination of
// occurrences matching the premises, the conclusion must hold. A failing
// combination is an attack witness.
type Query struct {
	Name       string
	Premises   []EventPattern
	Conclusion Formula
}

// Counterexample is the exact premise combination for which a query
// conclusion failed.
type Counterexample struct {
	Assignment Assignment
	Matched    []Occurrence
}

// String implements fmt.Stringer.
func (c Counterexample) String() string {
	return renderOccurrences(c.Matched)
}

// Verdict is the outcome of one query over one trace.
type Verdict struct {
	Query   string
	Holds   bool
	Counter *Counterexample
}

// Evaluate runs the query over the log. A query with no matching premise
// combination holds vacuously.
func (q Query) Evaluate(sys *term.System, log Log) (Verdict, error) {
	verdict := Verdict{Query: q.Name, Holds: true}

	_, err := joinPremises(log, q.Premises, Assignment{}, nil,
		func(a Assignment, matched []Occurrence) (bool, error) {
			holds, err := q.Conclusion.Eval(sys, log, a)
			if err != nil {
				return true, err
			}

			if !holds {
				verdict.Holds = false
				verdict.Counter = &Counterexample{
					Assignment: a,
					Matched:    append([]Occurrence(nil), matched...),
				}

				return true, nil
			}

			return false, nil
		})
	if err != nil {
		return verdict, xerrors.Errorf("couldn't evaluate '%s': %v", q.Name, err)
	}

	return verdict, nil
}

// EvaluateAll evaluates every query over the log, keyed by query name.
func EvaluateAll(sys *term.System, queries []Query, log Log) (map[string]Verdict, error) {
	verdicts := make(map[string]Verdict, len(queries))

	for _, q := range queries {
		verdict, err := q.Evaluate(sys, log)
		if err != nil {
			return nil, err
		}

		verdicts[q.Name] = verdict
	}

	return verdicts, nil
}

// joinPremises enumerates every combination of occurrences matching the
// premises under a shared assignment, in log order, and calls visit for
// each complete combination. The same occurrence may serve several
// premises. Visit returns true to stop the enumeration.
func joinPremises(log Log, premises []EventPattern, a Assignment, matched []Occurrence,
	visit func(Assignment, []Occurrence) (bool, error)) (bool, error) {

	if len(premises) == 0 {
		return visit(a, matched)
	}

	for _, occ := range log {
		next, ok := premises[0].match(occ, a)
		if !ok {
			continue
		}

		stop, err := joinPremises(log, premises[1:], next, append(matched, occ), visit)
		if stop || err != nil {
			return stop, err
		}
	}

	return false, nil
}

func renderOccurrences(occs []Occurrence) string {
	parts := make([]string, len(occs))
	for i, occ := range occs {
		parts[i] = occ.String()
	}

	return strings.Join(parts, ", ")
}
