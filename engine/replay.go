package engine

import (
	"github.com/sbaloglu/proverif-codes/channel"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
	"golang.org/x/xerrors"
)

// Result is the outcome of a replayed schedule: the final content of the
// bulletin board, the network transcript, the attacker knowledge, the
// event log and the final state of every instance. Inadmissible is set
// when a restriction aborted the session, in which case the trace must be
// discarded by the caller.
type Result struct {
	Script       string
	Steps        uint64
	Relations    map[string][]term.Tuple
	Transcript   []channel.Broadcast
	Knowledge    []term.Term
	Log          trace.Log
	Inadmissible *trace.Violation
	Instances    []InstanceState
}

// Replay executes the steps of the script in order. It stops early when a
// restriction is violated and returns the result of the admissible prefix,
// flagged inadmissible. A malformed step aborts with an error instead.
func (s *Session) Replay(script Script) (Result, error) {
	for i, step := range script.Steps {
		err := s.Execute(step)
		if err != nil {
			return Result{}, xerrors.Errorf("step %d (%s): %v", i, step, err)
		}

		if s.Inadmissible() != nil {
			break
		}
	}

	res := s.Result()
	res.Script = script.Name

	return res, nil
}

// Result returns a snapshot of the session.
func (s *Session) Result() Result {
	s.Lock()
	defer s.Unlock()

	states := make([]InstanceState, len(s.instances))
	for i, inst := range s.instances {
		states[i] = inst.State()
	}

	return Result{
		Steps:        s.clock,
		Relations:    s.store.Snapshot(),
		Transcript:   s.network.Transcript(),
		Knowledge:    s.attacker.Knows(),
		Log:          append(trace.Log{}, s.log...),
		Inadmissible: s.violation,
		Instances:    states,
	}
}

// EvaluateQueries evaluates the queries of the program over the trace of
// the session. It refuses to evaluate an inadmissible trace.
func (s *Session) EvaluateQueries() (map[string]trace.Verdict, error) {
	s.Lock()

	if s.violation != nil {
		violation := s.violation
		s.Unlock()

		return nil, xerrors.Errorf("session is inadmissible: %v", violation)
	}

	log := append(trace.Log{}, s.log...)
	s.Unlock()

	return trace.EvaluateAll(s.sys, s.program.queries, log)
}
