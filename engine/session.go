package engine

import (
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	proverif "github.com/sbaloglu/proverif-codes"
	"github.com/sbaloglu/proverif-codes/channel"
	"github.com/sbaloglu/proverif-codes/core"
	"github.com/sbaloglu/proverif-codes/relation"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
	"golang.org/x/xerrors"
)

// Session is one deterministic execution of a program. It owns the
// bulletin board, the network, the attacker knowledge and the event log,
// and advances them one schedule step at a time under a single logical
// clock. Two sessions replaying the same script produce identical results.
//
// A step that cannot execute, a recipe that does not reduce or a reference
// to something that does not exist are errors: they mean the schedule is
// malformed, and the session state is left untouched. A restriction
// violation is not an error; it marks the session inadmissible and refuses
// further steps.
type Session struct {
	sync.Mutex

	logger    zerolog.Logger
	program   *Program
	sys       *term.System
	store     *relation.Store
	network   *channel.Network
	attacker  *Attacker
	instances []*Instance
	log       trace.Log
	clock     uint64
	serial    uint64
	violation *trace.Violation
	watcher   *core.Watcher[StepEvent]
}

// NewSession creates a session for the program and spawns one instance of
// every singleton template, in declaration order.
func NewSession(program *Program) *Session {
	s := &Session{
		logger:    proverif.Logger.With().Str("session", xid.New().String()).Logger(),
		program:   program,
		sys:       program.sys,
		store:     relation.NewStore(program.sys),
		network:   channel.NewNetwork(program.sys.Signature()),
		instances: []*Instance{},
		watcher:   core.NewWatcher[StepEvent](),
	}

	s.attacker = newAttacker(program.sys, s.freshName)
	s.store.Watch(insertObserver{})

	for _, tmpl := range program.templates {
		if !tmpl.Replicated {
			s.instances = append(s.instances, newInstance(len(s.instances), tmpl))
		}
	}

	s.logger.Trace().Int("singletons", len(s.instances)).Msg("session created")

	return s
}

// Execute applies one schedule step and advances the logical clock.
func (s *Session) Execute(step Step) error {
	s.Lock()
	evt, err := s.execute(step)
	s.Unlock()

	if err != nil {
		return err
	}

	s.watcher.Notify(evt)

	return nil
}

// Runnable returns the identifiers of the instances whose pending action
// can execute now. A receive on a public channel is always ready because
// the attacker can craft a message for it.
func (s *Session) Runnable() ([]int, error) {
	s.Lock()
	defer s.Unlock()

	if s.violation != nil {
		return nil, nil
	}

	ids := []int{}

	for _, inst := range s.instances {
		action, running := inst.next()
		if !running {
			continue
		}

		ready, err := s.ready(inst, action)
		if err != nil {
			return nil, xerrors.Errorf("instance %d: %v", inst.id, err)
		}

		if ready {
			ids = append(ids, inst.id)
		}
	}

	return ids, nil
}

// Candidates returns the rows the pending get of the instance can take,
// in insertion order, so that a scheduler can enumerate the picks.
func (s *Session) Candidates(id int) ([]relation.Candidate, error) {
	s.Lock()
	defer s.Unlock()

	inst, err := s.instance(id)
	if err != nil {
		return nil, err
	}

	action, running := inst.next()
	if !running {
		return nil, xerrors.Errorf("instance %d is %s", id, inst.status)
	}

	get, ok := action.(Get)
	if !ok {
		return nil, xerrors.Errorf("instance %d is not on a get action", id)
	}

	return s.store.Match(relation.Query{
		Table:    get.Table,
		Pattern:  get.Pattern,
		SuchThat: get.SuchThat,
		Base:     inst.frame,
	})
}

// Knowledge returns a copy of the attacker knowledge journal.
func (s *Session) Knowledge() []term.Term {
	s.Lock()
	defer s.Unlock()

	return s.attacker.Knows()
}

// Clock returns the number of executed steps.
func (s *Session) Clock() uint64 {
	s.Lock()
	defer s.Unlock()

	return s.clock
}

// Inadmissible returns the restriction violation that aborted the session,
// or nil while the trace is admissible.
func (s *Session) Inadmissible() *trace.Violation {
	s.Lock()
	defer s.Unlock()

	return s.violation
}

func (s *Session) execute(step Step) (StepEvent, error) {
	if s.violation != nil {
		return StepEvent{}, xerrors.Errorf("session is inadmissible: %v", s.violation)
	}

	evt := StepEvent{Clock: s.clock, Instance: -1}

	switch st := step.(type) {
	case SpawnStep:
		tmpl, found := s.program.Template(st.Template)
		if !found {
			return evt, xerrors.Errorf("template '%s' is not declared", st.Template)
		}

		if !tmpl.Replicated {
			return evt, xerrors.Errorf("template '%s' is not replicated", st.Template)
		}

		inst := newInstance(len(s.instances), tmpl)
		s.instances = append(s.instances, inst)

		evt.Instance = inst.id
		evt.Action = st.String()

		s.logger.Trace().Int("instance", inst.id).
			Str("template", tmpl.Name).Msg("instance spawned")
	case RunStep:
		inst, err := s.instance(st.Instance)
		if err != nil {
			return evt, err
		}

		action, running := inst.next()
		if !running {
			return evt, xerrors.Errorf("instance %d is %s", inst.id, inst.status)
		}

		occ, err := s.run(inst, action, st)
		if err != nil {
			return evt, xerrors.Errorf("instance %d (%s): %v", inst.id, action, err)
		}

		evt.Instance = inst.id
		evt.Action = action.String()
		evt.Emitted = occ
	case DeliverStep:
		err := s.deliver(st)
		if err != nil {
			return evt, xerrors.Errorf("couldn't deliver: %v", err)
		}

		evt.Action = st.String()
	default:
		return evt, xerrors.Errorf("unknown step type '%T'", step)
	}

	s.clock++
	promSteps.Inc()

	return evt, nil
}

// run executes one action of the instance. It returns an error only when
// the schedule is malformed; a failing guard or reduction is a regular
// outcome that terminates the instance silently.
func (s *Session) run(inst *Instance, action Action, st RunStep) (*trace.Occurrence, error) {
	if st.Pick != 0 {
		_, isGet := action.(Get)
		if !isGet {
			return nil, xerrors.New("a pick is only valid on a get action")
		}
	}

	if st.Message != nil {
		_, isRecv := action.(Recv)
		if !isRecv {
			return nil, xerrors.New("a message is only valid on a receive action")
		}
	}

	var occ *trace.Occurrence

	switch act := action.(type) {
	case Fresh:
		inst.frame[act.Var] = s.freshName(act.Var)
	case Let:
		t, ok, err := s.sys.Eval(act.Value, inst.frame)
		if err != nil {
			return nil, err
		}

		if !ok {
			s.fail(inst, action)
			return nil, nil
		}

		inst.frame[act.Var] = t
	case Guard:
		holds, err := s.sys.Holds(act.Cond, inst.frame)
		if err != nil {
			return nil, err
		}

		if !holds {
			s.fail(inst, action)
			return nil, nil
		}
	case Insert:
		row, ok, err := s.evalAll(act.Row, inst.frame)
		if err != nil {
			return nil, err
		}

		if !ok {
			s.fail(inst, action)
			return nil, nil
		}

		err = s.insert(act.Table, row)
		if err != nil {
			return nil, err
		}
	case Get:
		candidates, err := s.store.Match(relation.Query{
			Table:    act.Table,
			Pattern:  act.Pattern,
			SuchThat: act.SuchThat,
			Base:     inst.frame,
		})
		if err != nil {
			return nil, err
		}

		if len(candidates) == 0 {
			return nil, xerrors.Errorf("get on '%s' is not ready: no matching row", act.Table)
		}

		if st.Pick < 0 || st.Pick >= len(candidates) {
			return nil, xerrors.Errorf("pick %d out of range: %d candidate rows",
				st.Pick, len(candidates))
		}

		inst.frame = candidates[st.Pick].Binding
	case Send:
		msg, ok, err := s.sys.Eval(act.Message, inst.frame)
		if err != nil {
			return nil, err
		}

		if !ok {
			s.fail(inst, action)
			return nil, nil
		}

		public, err := s.network.Send(act.Channel, msg)
		if err != nil {
			return nil, err
		}

		if public {
			s.attacker.Learn(msg)
		}
	case Recv:
		binding, err := s.receive(inst, act, st)
		if err != nil {
			return nil, err
		}

		inst.frame = binding
	case Emit:
		args, ok, err := s.evalAll(act.Args, inst.frame)
		if err != nil {
			return nil, err
		}

		if !ok {
			s.fail(inst, action)
			return nil, nil
		}

		occ = s.emit(act.Event, args)
	}

	inst.pc++

	if inst.pc >= len(inst.tmpl.Actions) {
		inst.status = StatusDone
		s.logger.Trace().Int("instance", inst.id).Msg("instance done")
	}

	return occ, nil
}

func (s *Session) receive(inst *Instance, act Recv, st RunStep) (term.Bindings, error) {
	decl, _ := s.sys.Signature().Channel(act.Channel)

	if decl.Private {
		if st.Message != nil {
			return nil, xerrors.Errorf("channel '%s' is private: the attacker cannot inject",
				act.Channel)
		}

		_, binding, ok, err := s.network.Consume(act.Channel, act.Pattern, inst.frame)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, xerrors.Errorf("receive on '%s' is not ready: no matching message",
				act.Channel)
		}

		return binding, nil
	}

	if st.Message == nil {
		return nil, xerrors.Errorf("receive on public channel '%s' takes an attacker message",
			act.Channel)
	}

	mark := s.markFresh()

	msg, err := s.attacker.Evaluate(st.Message)
	if err != nil {
		s.restoreFresh(mark)
		return nil, xerrors.Errorf("couldn't evaluate the message: %v", err)
	}

	binding, ok := term.MatchAll([]term.Expr{act.Pattern}, []term.Term{msg}, inst.frame)
	if !ok {
		s.restoreFresh(mark)
		return nil, xerrors.Errorf("message %s does not match the receive pattern", msg)
	}

	err = s.network.RecordInjection(act.Channel, msg)
	if err != nil {
		return nil, err
	}

	return binding, nil
}

// emit appends the occurrence to the log, stamped with the current clock,
// and re-checks the restrictions over the extended trace.
func (s *Session) emit(event string, args []term.Term) *trace.Occurrence {
	occ := trace.Occurrence{Name: event, Args: args, Time: s.clock}
	s.log = append(s.log, occ)
	promEvents.Inc()

	violation, err := trace.CheckAll(s.sys, s.program.restrictions, s.log)
	if err != nil {
		// Restrictions are validated at compile time, so checking them over
		// ground occurrences cannot fail.
		panic(xerrors.Errorf("invalid restriction: %v", err))
	}

	if violation != nil {
		s.violation = violation
		promInadmissible.Inc()

		s.logger.Info().Str("restriction", violation.Restriction).
			Msg("session is inadmissible")
	}

	return &occ
}

func (s *Session) deliver(st DeliverStep) error {
	decl, found := s.sys.Signature().Table(st.Table)
	if !found {
		return xerrors.Errorf("table '%s' is not declared", st.Table)
	}

	if !decl.Open {
		return xerrors.Errorf("table '%s' is not open", st.Table)
	}

	if len(st.Row) != decl.Arity {
		return xerrors.Errorf("table '%s' expects %d columns, got %d",
			st.Table, decl.Arity, len(st.Row))
	}

	mark := s.markFresh()

	row := make([]term.Term, len(st.Row))

	for i, recipe := range st.Row {
		t, err := s.attacker.Evaluate(recipe)
		if err != nil {
			s.restoreFresh(mark)
			return xerrors.Errorf("couldn't evaluate column %d: %v", i, err)
		}

		row[i] = t
	}

	return s.insert(st.Table, row)
}

// insert stores the row and extends the attacker knowledge when the table
// is visible to it.
func (s *Session) insert(table string, row []term.Term) error {
	tuple := term.NewTuple(row...)

	err := s.store.Insert(table, tuple)
	if err != nil {
		return err
	}

	decl, _ := s.sys.Signature().Table(table)
	if !decl.Private {
		s.attacker.Learn(tuple)
	}

	return nil
}

func (s *Session) ready(inst *Instance, action Action) (bool, error) {
	switch act := action.(type) {
	case Get:
		candidates, err := s.store.Match(relation.Query{
			Table:    act.Table,
			Pattern:  act.Pattern,
			SuchThat: act.SuchThat,
			Base:     inst.frame,
		})
		if err != nil {
			return false, err
		}

		return len(candidates) > 0, nil
	case Recv:
		decl, _ := s.sys.Signature().Channel(act.Channel)
		if !decl.Private {
			return true, nil
		}

		return s.network.Matchable(act.Channel, act.Pattern, inst.frame)
	default:
		return true, nil
	}
}

func (s *Session) instance(id int) (*Instance, error) {
	if id < 0 || id >= len(s.instances) {
		return nil, xerrors.Errorf("instance %d does not exist", id)
	}

	return s.instances[id], nil
}

func (s *Session) fail(inst *Instance, action Action) {
	inst.status = StatusFailed

	s.logger.Trace().Int("instance", inst.id).Msgf("instance failed at %s", action)
}

func (s *Session) freshName(base string) term.Term {
	t := term.NewName(base, s.serial)
	s.serial++

	return t
}

// freshMark captures the fresh-name state before an attacker recipe runs,
// so that a step rejected after evaluation can roll the names back.
type freshMark struct {
	serial uint64
	names  map[string]term.Term
}

func (s *Session) markFresh() freshMark {
	names := make(map[string]term.Term, len(s.attacker.fresh))
	for label, name := range s.attacker.fresh {
		names[label] = name
	}

	return freshMark{serial: s.serial, names: names}
}

func (s *Session) restoreFresh(m freshMark) {
	s.serial = m.serial
	s.attacker.fresh = m.names
}

func (s *Session) evalAll(exprs []term.Expr, frame term.Bindings) ([]term.Term, bool, error) {
	terms := make([]term.Term, len(exprs))

	for i, e := range exprs {
		t, ok, err := s.sys.Eval(e, frame)
		if err != nil || !ok {
			return nil, ok, err
		}

		terms[i] = t
	}

	return terms, true, nil
}
