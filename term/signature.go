package term

import (
	"fmt"
	"sort"

	"golang.org/x/xerrors"
)

// Rule is one rewrite rule of the equational theory. The parameters are
// constructor-only patterns over variables; the result is an expression
// over those variables, which may itself contain destructor applications
// so that reduction chains through.
type Rule struct {
	Params []Expr
	Result Expr
}

// Constructor declares a function symbol that builds data. Applying a
// constructor always succeeds.
type Constructor struct {
	Name  string
	Arity int
}

// Table declares a named, fixed-arity relation. Rows of a public table are
// visible to the attacker as soon as they are inserted; an open table
// additionally accepts rows forged by the attacker.
type Table struct {
	Name    string
	Arity   int
	Private bool
	Open    bool
}

// Event declares an event name and its arity.
type Event struct {
	Name  string
	Arity int
}

// FreeName declares a constant of the model. Public constants are part of
// the initial attacker knowledge; private ones never leave honest
// processes unless a process leaks them.
type FreeName struct {
	Name    string
	Private bool
}

// ChannelDecl declares a channel. Private channels deliver messages only
// between honest endpoints; everything sent on a public channel is
// captured by the attacker.
type ChannelDecl struct {
	Name    string
	Private bool
}

type ruleSet struct {
	rules      []Rule
	otherwise  *Rule
	destructor bool
}

// Signature is the set of declarations a model is written against. It is
// assembled once at load time and never modified afterwards; an invalid
// declaration panics, mirroring a fatal specification error.
type Signature struct {
	constructors map[string]Constructor
	rules        map[string]*ruleSet
	tables       map[string]Table
	events       map[string]Event
	constants    map[string]FreeName
	channels     map[string]ChannelDecl
}

// NewSignature creates an empty signature.
func NewSignature() *Signature {
	return &Signature{
		constructors: make(map[string]Constructor),
		rules:        make(map[string]*ruleSet),
		tables:       make(map[string]Table),
		events:       make(map[string]Event),
		constants:    make(map[string]FreeName),
		channels:     make(map[string]ChannelDecl),
	}
}

// DeclareConstructor registers a constructor symbol.
func (s *Signature) DeclareConstructor(name string, arity int) *Signature {
	s.checkFresh(name)

	if arity < 0 {
		panic(fmt.Sprintf("constructor '%s': negative arity", name))
	}

	s.constructors[name] = Constructor{Name: name, Arity: arity}

	return s
}

// DeclareDestructor registers a destructor with its ordered rewrite rules
// and an optional otherwise rule that fires only when no other rule
// matches. A destructor application that matches no rule fails. Rules may
// refer to the destructor itself in their result, so that reduction chains
// through nested applications.
func (s *Signature) DeclareDestructor(name string, arity int, rules []Rule, otherwise *Rule) *Signature {
	s.checkFresh(name)

	if len(rules) == 0 && otherwise == nil {
		panic(fmt.Sprintf("destructor '%s': no rule", name))
	}

	s.rules[name] = &ruleSet{rules: rules, otherwise: otherwise, destructor: true}

	for _, rule := range rules {
		s.checkRule(name, arity, rule, false)
	}

	if otherwise != nil {
		s.checkRule(name, arity, *otherwise, true)
	}

	return s
}

// DeclareRewrite attaches a normalization rule to an already declared
// constructor. This is how partial equations over constructors, like the
// alternative opening of a trapdoor commitment, are oriented.
func (s *Signature) DeclareRewrite(name string, rule Rule) *Signature {
	cons, found := s.constructors[name]
	if !found {
		panic(fmt.Sprintf("rewrite on '%s': not a declared constructor", name))
	}

	s.checkRule(name, cons.Arity, rule, false)

	set := s.rules[name]
	if set == nil {
		set = &ruleSet{}
		s.rules[name] = set
	}

	set.rules = append(set.rules, rule)

	return s
}

// DeclareTable registers a relation of the bulletin board.
func (s *Signature) DeclareTable(table Table) *Signature {
	s.checkFresh(table.Name)

	if table.Arity <= 0 {
		panic(fmt.Sprintf("table '%s': arity must be positive", table.Name))
	}

	if table.Open && table.Private {
		panic(fmt.Sprintf("table '%s': a private table cannot be open", table.Name))
	}

	s.tables[table.Name] = table

	return s
}

// DeclareEvent registers an event name.
func (s *Signature) DeclareEvent(name string, arity int) *Signature {
	s.checkFresh(name)

	if arity < 0 {
		panic(fmt.Sprintf("event '%s': negative arity", name))
	}

	s.events[name] = Event{Name: name, Arity: arity}

	return s
}

// DeclareConstant registers a free name.
func (s *Signature) DeclareConstant(name string, private bool) *Signature {
	s.checkFresh(name)

	s.constants[name] = FreeName{Name: name, Private: private}

	return s
}

// DeclareChannel registers a channel.
func (s *Signature) DeclareChannel(name string, private bool) *Signature {
	s.checkFresh(name)

	s.channels[name] = ChannelDecl{Name: name, Private: private}

	return s
}

// Constructor returns the declaration of the constructor.
func (s *Signature) Constructor(name string) (Constructor, bool) {
	cons, found := s.constructors[name]

	return cons, found
}

// IsDestructor returns true when the symbol is a declared destructor.
func (s *Signature) IsDestructor(name string) bool {
	set, found := s.rules[name]

	return found && set.destructor
}

// Table returns the declaration of the table.
func (s *Signature) Table(name string) (Table, bool) {
	table, found := s.tables[name]

	return table, found
}

// Tables returns the declared tables sorted by name.
func (s *Signature) Tables() []Table {
	tables := make([]Table, 0, len(s.tables))
	for _, table := range s.tables {
		tables = append(tables, table)
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	return tables
}

// Event returns the declaration of the event.
func (s *Signature) Event(name string) (Event, bool) {
	event, found := s.events[name]

	return event, found
}

// Constant returns the declaration of the free name.
func (s *Signature) Constant(name string) (FreeName, bool) {
	cst, found := s.constants[name]

	return cst, found
}

// Constants returns the declared free names sorted by name.
func (s *Signature) Constants() []FreeName {
	constants := make([]FreeName, 0, len(s.constants))
	for _, cst := range s.constants {
		constants = append(constants, cst)
	}

	sort.Slice(constants, func(i, j int) bool { return constants[i].Name < constants[j].Name })

	return constants
}

// Channel returns the declaration of the channel.
func (s *Signature) Channel(name string) (ChannelDecl, bool) {
	ch, found := s.channels[name]

	return ch, found
}

// Channels returns the declared channels sorted by name.
func (s *Signature) Channels() []ChannelDecl {
	channels := make([]ChannelDecl, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}

	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })

	return channels
}

// CheckPattern verifies that the expression is a valid pattern: every
// applied symbol is a declared constructor of the right arity and every
// constant is declared. Destructors cannot appear in patterns.
func (s *Signature) CheckPattern(e Expr) error {
	switch expr := e.(type) {
	case Var, Lit:
		return nil
	case Cst:
		if _, found := s.constants[expr.Label]; !found {
			return xerrors.Errorf("constant '%s' is not declared", expr.Label)
		}

		return nil
	case Apply:
		cons, found := s.constructors[expr.Symbol]
		if !found {
			return xerrors.Errorf("pattern symbol '%s' is not a constructor", expr.Symbol)
		}

		if cons.Arity != len(expr.Args) {
			return xerrors.Errorf("constructor '%s' expects %d arguments, got %d",
				expr.Symbol, cons.Arity, len(expr.Args))
		}

		for _, sub := range expr.Args {
			if err := s.CheckPattern(sub); err != nil {
				return err
			}
		}

		return nil
	case TupleExpr:
		for _, sub := range expr.Elems {
			if err := s.CheckPattern(sub); err != nil {
				return err
			}
		}

		return nil
	default:
		return xerrors.Errorf("unsupported pattern %T", e)
	}
}

// CheckExpr verifies that the expression only uses declared symbols with
// the right arities. Destructor applications are allowed.
func (s *Signature) CheckExpr(e Expr) error {
	switch expr := e.(type) {
	case Var, Lit:
		return nil
	case Cst:
		if _, found := s.constants[expr.Label]; !found {
			return xerrors.Errorf("constant '%s' is not declared", expr.Label)
		}

		return nil
	case Apply:
		arity, err := s.arityOf(expr.Symbol)
		if err != nil {
			return err
		}

		if arity != len(expr.Args) {
			return xerrors.Errorf("symbol '%s' expects %d arguments, got %d",
				expr.Symbol, arity, len(expr.Args))
		}

		for _, sub := range expr.Args {
			if err := s.CheckExpr(sub); err != nil {
				return err
			}
		}

		return nil
	case TupleExpr:
		for _, sub := range expr.Elems {
			if err := s.CheckExpr(sub); err != nil {
				return err
			}
		}

		return nil
	default:
		return xerrors.Errorf("unsupported expression %T", e)
	}
}

func (s *Signature) arityOf(symbol string) (int, error) {
	if cons, found := s.constructors[symbol]; found {
		return cons.Arity, nil
	}

	if set, found := s.rules[symbol]; found && set.destructor {
		if set.otherwise != nil {
			return len(set.otherwise.Params), nil
		}

		return len(set.rules[0].Params), nil
	}

	return 0, xerrors.Errorf("symbol '%s' is not declared", symbol)
}

func (s *Signature) checkFresh(name string) {
	if name == "" {
		panic("declaration with empty name")
	}

	_, cons := s.constructors[name]
	_, rule := s.rules[name]
	_, table := s.tables[name]
	_, event := s.events[name]
	_, cst := s.constants[name]
	_, ch := s.channels[name]

	if cons || rule || table || event || cst || ch {
		panic(fmt.Sprintf("'%s' is already declared", name))
	}
}

func (s *Signature) checkRule(name string, arity int, rule Rule, otherwise bool) {
	if len(rule.Params) != arity {
		panic(fmt.Sprintf("rule of '%s': %d parameters for arity %d",
			name, len(rule.Params), arity))
	}

	seen := map[string]struct{}{}

	for _, param := range rule.Params {
		if err := s.CheckPattern(param); err != nil {
			panic(fmt.Sprintf("rule of '%s': %v", name, err))
		}

		if otherwise {
			v, plain := param.(Var)
			if !plain {
				panic(fmt.Sprintf("otherwise rule of '%s': parameters must be plain variables", name))
			}

			if _, dup := seen[v.Name]; dup {
				panic(fmt.Sprintf("otherwise rule of '%s': parameters must be distinct", name))
			}

			seen[v.Name] = struct{}{}
		}
	}

	bound := map[string]struct{}{}
	for _, v := range rule.paramVars() {
		bound[v] = struct{}{}
	}

	for _, v := range rule.Result.Vars(nil) {
		if _, found := bound[v]; !found {
			panic(fmt.Sprintf("rule of '%s': result variable '%s' is not bound by the parameters",
				name, v))
		}
	}

	if err := s.CheckExpr(rule.Result); err != nil {
		panic(fmt.Sprintf("rule of '%s': %v", name, err))
	}
}

func (r Rule) paramVars() []string {
	var vars []string
	for _, param := range r.Params {
		vars = param.Vars(vars)
	}

	return vars
}
