package engine

import (
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
	"golang.org/x/xerrors"
)

// Program is a compiled model: the equational theory, the role templates
// and the properties to enforce and evaluate over its traces. A program is
// immutable once compiled; sessions share it freely.
type Program struct {
	sys          *term.System
	templates    []Template
	byName       map[string]Template
	restrictions []trace.Restriction
	queries      []trace.Query
}

// Compile checks the templates and the properties against the signature of
// the rewrite system and assembles the program. Every symbol must be
// declared with the right arity, and every variable a template uses must
// have been bound by an earlier action of the same template.
func Compile(sys *term.System, templates []Template,
	restrictions []trace.Restriction, queries []trace.Query) (*Program, error) {

	byName := make(map[string]Template)

	for _, tmpl := range templates {
		if tmpl.Name == "" {
			return nil, xerrors.New("template with empty name")
		}

		_, found := byName[tmpl.Name]
		if found {
			return nil, xerrors.Errorf("template '%s' is declared twice", tmpl.Name)
		}

		err := checkTemplate(sys.Signature(), tmpl)
		if err != nil {
			return nil, xerrors.Errorf("template '%s': %v", tmpl.Name, err)
		}

		byName[tmpl.Name] = tmpl
	}

	for _, restriction := range restrictions {
		err := checkPremises(sys.Signature(), restriction.Premises)
		if err != nil {
			return nil, xerrors.Errorf("restriction '%s': %v", restriction.Name, err)
		}
	}

	for _, query := range queries {
		err := checkPremises(sys.Signature(), query.Premises)
		if err != nil {
			return nil, xerrors.Errorf("query '%s': %v", query.Name, err)
		}
	}

	p := &Program{
		sys:          sys,
		templates:    append([]Template{}, templates...),
		byName:       byName,
		restrictions: append([]trace.Restriction{}, restrictions...),
		queries:      append([]trace.Query{}, queries...),
	}

	return p, nil
}

// System returns the rewrite system of the program.
func (p *Program) System() *term.System {
	return p.sys
}

// Templates returns the templates in declaration order.
func (p *Program) Templates() []Template {
	return append([]Template{}, p.templates...)
}

// Template returns the template registered under the name, if any.
func (p *Program) Template(name string) (Template, bool) {
	tmpl, found := p.byName[name]

	return tmpl, found
}

// Restrictions returns the admissibility restrictions of the program.
func (p *Program) Restrictions() []trace.Restriction {
	return append([]trace.Restriction{}, p.restrictions...)
}

// Queries returns the correspondence queries of the program.
func (p *Program) Queries() []trace.Query {
	return append([]trace.Query{}, p.queries...)
}

func checkTemplate(sig *term.Signature, tmpl Template) error {
	bound := make(map[string]struct{})

	for i, action := range tmpl.Actions {
		var err error

		switch act := action.(type) {
		case Fresh:
			if act.Var == "" {
				err = xerrors.New("fresh binds no variable")
			}

			bound[act.Var] = struct{}{}
		case Let:
			err = checkUse(sig, act.Value, bound)
			if err == nil && act.Var == "" {
				err = xerrors.New("let binds no variable")
			}

			bound[act.Var] = struct{}{}
		case Guard:
			err = checkUse(sig, act.Cond, bound)
		case Insert:
			err = checkColumns(sig, act.Table, len(act.Row))
			if err == nil {
				err = checkUses(sig, act.Row, bound)
			}
		case Get:
			err = checkColumns(sig, act.Table, len(act.Pattern))
			for _, pattern := range act.Pattern {
				if err == nil {
					err = sig.CheckPattern(pattern)
				}
			}

			if err == nil {
				bindVars(bound, act.Pattern...)

				if act.SuchThat != nil {
					err = checkUse(sig, act.SuchThat, bound)
				}
			}
		case Send:
			_, found := sig.Channel(act.Channel)
			if !found {
				err = xerrors.Errorf("channel '%s' is not declared", act.Channel)
			} else {
				err = checkUse(sig, act.Message, bound)
			}
		case Recv:
			_, found := sig.Channel(act.Channel)
			if !found {
				err = xerrors.Errorf("channel '%s' is not declared", act.Channel)
			} else {
				err = sig.CheckPattern(act.Pattern)
				bindVars(bound, act.Pattern)
			}
		case Emit:
			event, found := sig.Event(act.Event)
			switch {
			case !found:
				err = xerrors.Errorf("event '%s' is not declared", act.Event)
			case len(act.Args) != event.Arity:
				err = xerrors.Errorf("event '%s' expects %d arguments, got %d",
					act.Event, event.Arity, len(act.Args))
			default:
				err = checkUses(sig, act.Args, bound)
			}
		default:
			err = xerrors.Errorf("unknown action type '%T'", action)
		}

		if err != nil {
			return xerrors.Errorf("action %d (%s): %v", i, action, err)
		}
	}

	return nil
}

func checkPremises(sig *term.Signature, premises []trace.EventPattern) error {
	if len(premises) == 0 {
		return xerrors.New("no premise")
	}

	for _, premise := range premises {
		event, found := sig.Event(premise.Name)
		if !found {
			return xerrors.Errorf("event '%s' is not declared", premise.Name)
		}

		if len(premise.Args) != event.Arity {
			return xerrors.Errorf("event '%s' expects %d arguments, got %d",
				premise.Name, event.Arity, len(premise.Args))
		}

		for _, arg := range premise.Args {
			err := sig.CheckPattern(arg)
			if err != nil {
				return xerrors.Errorf("premise %s: %v", premise, err)
			}
		}
	}

	return nil
}

func checkColumns(sig *term.Signature, table string, width int) error {
	decl, found := sig.Table(table)
	if !found {
		return xerrors.Errorf("table '%s' is not declared", table)
	}

	if width != decl.Arity {
		return xerrors.Errorf("table '%s' expects %d columns, got %d",
			table, decl.Arity, width)
	}

	return nil
}

func checkUse(sig *term.Signature, e term.Expr, bound map[string]struct{}) error {
	err := sig.CheckExpr(e)
	if err != nil {
		return err
	}

	for _, name := range e.Vars(nil) {
		_, found := bound[name]
		if !found {
			return xerrors.Errorf("variable '%s' is not bound", name)
		}
	}

	return nil
}

func checkUses(sig *term.Signature, exprs []term.Expr, bound map[string]struct{}) error {
	for _, e := range exprs {
		err := checkUse(sig, e, bound)
		if err != nil {
			return err
		}
	}

	return nil
}

func bindVars(bound map[string]struct{}, patterns ...term.Expr) {
	for _, pattern := range patterns {
		for _, name := range pattern.Vars(nil) {
			bound[name] = struct{}{}
		}
	}
}
