package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
)

func TestSession_New(t *testing.T) {
	sess := NewSession(compileElection(t))

	require.Equal(t, uint64(0), sess.Clock())
	require.Nil(t, sess.Inadmissible())

	// The public free names seed the attacker knowledge, sorted by name.
	knowledge := sess.Knowledge()
	require.Len(t, knowledge, 5)
	require.True(t, term.NewConstant("candA").Equal(knowledge[0]))
	require.True(t, term.NewConstant("candB").Equal(knowledge[1]))
	require.True(t, term.True().Equal(knowledge[4]))

	res := sess.Result()
	require.Len(t, res.Instances, 3)
	require.Equal(t, "Admin", res.Instances[0].Template)
	require.Equal(t, "Registrar", res.Instances[1].Template)
	require.Equal(t, "Server", res.Instances[2].Template)
}

func TestSession_Replay_Honest(t *testing.T) {
	sess := NewSession(compileElection(t))

	res, err := sess.Replay(honestScript())
	require.NoError(t, err)

	require.Equal(t, "honest", res.Script)
	require.Equal(t, uint64(20), res.Steps)
	require.Nil(t, res.Inadmissible)

	require.Len(t, res.Log, 4)
	require.Equal(t, "EKey(pk(skE#0))@3", res.Log[0].String())
	require.Equal(t, "Reg(cred#1)@7", res.Log[1].String())
	require.Equal(t, "Voted(aenc(cred#1,pk(skE#0),r#2))@15", res.Log[2].String())
	require.Equal(t, "Ballot(aenc(cred#1,pk(skE#0),r#2))@19", res.Log[3].String())

	require.Len(t, res.Relations["BBkey"], 1)
	require.Len(t, res.Relations["BBcast"], 1)
	require.Len(t, res.Relations["TReg"], 1)

	// Broadcast then attacker echo.
	require.Len(t, res.Transcript, 2)
	require.False(t, res.Transcript[0].Injected)
	require.True(t, res.Transcript[1].Injected)
	require.True(t, res.Transcript[0].Message.Equal(res.Transcript[1].Message))

	require.Len(t, res.Knowledge, 8)
	require.Equal(t, "(pk(skE#0))", res.Knowledge[5].String())

	require.Len(t, res.Instances, 4)
	for _, inst := range res.Instances {
		require.Equal(t, StatusDone, inst.Status)
	}

	verdicts, err := sess.EvaluateQueries()
	require.NoError(t, err)
	require.True(t, verdicts["Cast"].Holds)
	require.Nil(t, verdicts["Cast"].Counter)
}

func TestSession_Replay_Stuffing(t *testing.T) {
	sess := NewSession(compileElection(t))

	// The attacker encrypts its own ballot under the election key published
	// on the board and feeds it to the server, which accepts it.
	forged := Derive{Symbol: "aenc", Args: []Recipe{
		Pub{Label: "candB"},
		Part{Of: Known{Index: 5}, Index: 0},
		FreshName{Label: "r1"},
	}}

	script := Script{Name: "stuffing", Steps: []Step{
		RunStep{Instance: 0},
		RunStep{Instance: 0},
		RunStep{Instance: 0},
		RunStep{Instance: 0},
		DeliverStep{Table: "BBcast", Row: []Recipe{forged}},
		RunStep{Instance: 2},
		RunStep{Instance: 2, Message: Part{Of: Known{Index: 6}, Index: 0}},
		RunStep{Instance: 2},
		RunStep{Instance: 2},
	}}

	res, err := sess.Replay(script)
	require.NoError(t, err)

	require.Equal(t, uint64(9), res.Steps)
	require.Nil(t, res.Inadmissible)

	require.Len(t, res.Log, 2)
	require.Equal(t, "Ballot(aenc(candB,pk(skE#0),r1#1))@8", res.Log[1].String())

	verdicts, err := sess.EvaluateQueries()
	require.NoError(t, err)

	verdict := verdicts["Cast"]
	require.False(t, verdict.Holds)
	require.NotNil(t, verdict.Counter)
	require.Equal(t, "Ballot(aenc(candB,pk(skE#0),r1#1))@8", verdict.Counter.String())
}

func TestSession_Replay_Inadmissible(t *testing.T) {
	restrictions := append(electionRestrictions(), trace.Restriction{
		Name:       "NoBallot",
		Premises:   []trace.EventPattern{{Name: "Ballot", Args: []term.Expr{term.X("x")}}},
		Conclusion: trace.Eq{Left: term.C("candA"), Right: term.C("candB")},
	})

	program, err := Compile(electionSystem(), electionTemplates(), restrictions, electionQueries())
	require.NoError(t, err)

	sess := NewSession(program)

	res, err := sess.Replay(honestScript())
	require.NoError(t, err)

	require.NotNil(t, res.Inadmissible)
	require.Equal(t, "NoBallot", res.Inadmissible.Restriction)
	require.Equal(t, uint64(20), res.Steps)

	err = sess.Execute(RunStep{Instance: 0})
	require.Error(t, err)
	require.Contains(t, err.Error(), "session is inadmissible: restriction 'NoBallot' violated by")

	_, err = sess.EvaluateQueries()
	require.Error(t, err)
	require.Contains(t, err.Error(), "session is inadmissible")

	ids, err := sess.Runnable()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestSession_Execute_Malformed(t *testing.T) {
	sess := NewSession(compileElection(t))

	err := sess.Execute(RunStep{Instance: 9})
	require.EqualError(t, err, "instance 9 does not exist")

	err = sess.Execute(SpawnStep{Template: "Ghost"})
	require.EqualError(t, err, "template 'Ghost' is not declared")

	err = sess.Execute(SpawnStep{Template: "Admin"})
	require.EqualError(t, err, "template 'Admin' is not replicated")

	err = sess.Execute(RunStep{Instance: 0, Pick: 1})
	require.EqualError(t, err, "instance 0 (new skE): a pick is only valid on a get action")

	err = sess.Execute(RunStep{Instance: 0, Message: Pub{Label: "candA"}})
	require.EqualError(t, err, "instance 0 (new skE): a message is only valid on a receive action")

	err = sess.Execute(RunStep{Instance: 2})
	require.EqualError(t, err,
		"instance 2 (get BBcast(xb)): get on 'BBcast' is not ready: no matching row")

	err = sess.Execute(DeliverStep{Table: "Ghost", Row: []Recipe{Pub{Label: "candA"}}})
	require.EqualError(t, err, "couldn't deliver: table 'Ghost' is not declared")

	err = sess.Execute(DeliverStep{Table: "BBkey", Row: []Recipe{Pub{Label: "candA"}}})
	require.EqualError(t, err, "couldn't deliver: table 'BBkey' is not open")

	err = sess.Execute(DeliverStep{Table: "TReg", Row: []Recipe{Pub{Label: "candA"}}})
	require.EqualError(t, err, "couldn't deliver: table 'TReg' is not open")

	err = sess.Execute(DeliverStep{Table: "BBcast", Row: []Recipe{
		Pub{Label: "candA"},
		Pub{Label: "candB"},
	}})
	require.EqualError(t, err, "couldn't deliver: table 'BBcast' expects 1 columns, got 2")

	err = sess.Execute(DeliverStep{Table: "BBcast", Row: []Recipe{Known{Index: 9}}})
	require.EqualError(t, err,
		"couldn't deliver: couldn't evaluate column 0: knowledge index 9 out of range: 5 entries")

	err = sess.Execute(fakeStep{})
	require.EqualError(t, err, "unknown step type 'engine.fakeStep'")

	// Drive the board to exercise the channel errors.
	for i := 0; i < 4; i++ {
		require.NoError(t, sess.Execute(RunStep{Instance: 0}))
	}

	err = sess.Execute(RunStep{Instance: 0})
	require.EqualError(t, err, "instance 0 is done")

	require.NoError(t, sess.Execute(SpawnStep{Template: "Voter"}))
	require.NoError(t, sess.Execute(RunStep{Instance: 3}))

	err = sess.Execute(RunStep{Instance: 3, Message: Pub{Label: "candA"}})
	require.EqualError(t, err,
		"instance 3 (in(reg, cr)): channel 'reg' is private: the attacker cannot inject")

	err = sess.Execute(RunStep{Instance: 3})
	require.EqualError(t, err,
		"instance 3 (in(reg, cr)): receive on 'reg' is not ready: no matching message")

	require.NoError(t, sess.Execute(DeliverStep{Table: "BBcast", Row: []Recipe{Pub{Label: "candA"}}}))
	require.NoError(t, sess.Execute(RunStep{Instance: 2}))

	err = sess.Execute(RunStep{Instance: 2})
	require.EqualError(t, err,
		"instance 2 (in(pub, y)): receive on public channel 'pub' takes an attacker message")

	err = sess.Execute(RunStep{Instance: 2, Message: Known{Index: 7}})
	require.EqualError(t, err, "instance 2 (in(pub, y)): "+
		"couldn't evaluate the message: knowledge index 7 out of range: 7 entries")
}

func TestSession_Receive_Mismatch(t *testing.T) {
	templates := append(electionTemplates(), Template{
		Name:       "Opener",
		Replicated: true,
		Actions: []Action{
			Recv{Channel: "pub", Pattern: term.Ap("aenc", term.X("m"), term.X("xpk"), term.X("rr"))},
			Emit{Event: "Ballot", Args: []term.Expr{term.X("m")}},
		},
	})

	program, err := Compile(electionSystem(), templates, nil, nil)
	require.NoError(t, err)

	sess := NewSession(program)

	require.NoError(t, sess.Execute(SpawnStep{Template: "Opener"}))

	err = sess.Execute(RunStep{Instance: 3, Message: Pub{Label: "candA"}})
	require.EqualError(t, err,
		"instance 3 (in(pub, aenc(m,xpk,rr))): message candA does not match the receive pattern")

	ballot := Derive{Symbol: "aenc", Args: []Recipe{
		Pub{Label: "candA"},
		Pub{Label: "candB"},
		FreshName{Label: "r"},
	}}

	require.NoError(t, sess.Execute(RunStep{Instance: 3, Message: ballot}))

	res := sess.Result()
	require.True(t, term.NewConstant("candA").Equal(res.Instances[3].Frame["m"]))
}

func TestSession_Receive_Rollback(t *testing.T) {
	templates := append(electionTemplates(), Template{
		Name:       "Opener",
		Replicated: true,
		Actions: []Action{
			Recv{Channel: "pub", Pattern: term.Ap("aenc", term.X("m"), term.X("xpk"), term.X("rr"))},
			Emit{Event: "Ballot", Args: []term.Expr{term.X("m")}},
		},
	})

	program, err := Compile(electionSystem(), templates, nil, nil)
	require.NoError(t, err)

	sess := NewSession(program)

	require.NoError(t, sess.Execute(SpawnStep{Template: "Opener"}))

	// A rejected injection mints no names: the serial and the label cache
	// roll back with the step.
	bad := Group{Elems: []Recipe{Pub{Label: "candA"}, FreshName{Label: "n"}}}

	err = sess.Execute(RunStep{Instance: 3, Message: bad})
	require.EqualError(t, err,
		"instance 3 (in(pub, aenc(m,xpk,rr))): message (candA,n#0) does not match the receive pattern")

	stuck := Derive{Symbol: "adec", Args: []Recipe{FreshName{Label: "n"}, Pub{Label: "candA"}}}

	err = sess.Execute(DeliverStep{Table: "BBcast", Row: []Recipe{stuck}})
	require.EqualError(t, err,
		"couldn't deliver: couldn't evaluate column 0: recipe adec(fresh(n),candA) does not reduce")

	ballot := Derive{Symbol: "aenc", Args: []Recipe{
		Pub{Label: "candA"},
		Pub{Label: "candB"},
		FreshName{Label: "r"},
	}}

	require.NoError(t, sess.Execute(RunStep{Instance: 3, Message: ballot}))

	res := sess.Result()
	require.True(t, term.NewName("r", 0).Equal(res.Instances[3].Frame["rr"]))

	// Only the accepted injection reaches the transcript.
	require.Len(t, res.Transcript, 1)
	require.True(t, res.Transcript[0].Injected)
}

func TestSession_Fail(t *testing.T) {
	templates := append(electionTemplates(),
		Template{Name: "Paranoid", Replicated: true, Actions: []Action{
			Fresh{Var: "n"},
			Guard{Cond: term.Ap("eq", term.X("n"), term.C("candA"))},
			Emit{Event: "Voted", Args: []term.Expr{term.X("n")}},
		}},
		Template{Name: "Unwrapper", Replicated: true, Actions: []Action{
			Fresh{Var: "k"},
			Let{Var: "m", Value: term.Ap("adec", term.X("k"), term.X("k"))},
			Emit{Event: "Voted", Args: []term.Expr{term.X("m")}},
		}},
	)

	program, err := Compile(electionSystem(), templates, nil, nil)
	require.NoError(t, err)

	sess := NewSession(program)

	require.NoError(t, sess.Execute(SpawnStep{Template: "Paranoid"}))
	require.NoError(t, sess.Execute(RunStep{Instance: 3}))

	// A fresh name never equals a constant: the guard terminates the
	// instance without an error.
	require.NoError(t, sess.Execute(RunStep{Instance: 3}))

	err = sess.Execute(RunStep{Instance: 3})
	require.EqualError(t, err, "instance 3 is failed")

	require.NoError(t, sess.Execute(SpawnStep{Template: "Unwrapper"}))
	require.NoError(t, sess.Execute(RunStep{Instance: 4}))
	require.NoError(t, sess.Execute(RunStep{Instance: 4}))

	res := sess.Result()
	require.Equal(t, StatusFailed, res.Instances[3].Status)
	require.Equal(t, 1, res.Instances[3].Step)
	require.Equal(t, StatusFailed, res.Instances[4].Status)
	require.Empty(t, res.Log)

	ids, err := sess.Runnable()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, ids)
}

func TestSession_Runnable(t *testing.T) {
	sess := NewSession(compileElection(t))

	ids, err := sess.Runnable()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, ids)

	for i := 0; i < 3; i++ {
		require.NoError(t, sess.Execute(RunStep{Instance: 0}))
	}

	require.NoError(t, sess.Execute(SpawnStep{Template: "Voter"}))

	// The election key is on the board, so the voter can fetch it.
	ids, err = sess.Runnable()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 3}, ids)

	require.NoError(t, sess.Execute(RunStep{Instance: 3}))

	// The voter now waits for a credential that is not there yet.
	ids, err = sess.Runnable()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, ids)

	for i := 0; i < 3; i++ {
		require.NoError(t, sess.Execute(RunStep{Instance: 1}))
	}

	ids, err = sess.Runnable()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 3}, ids)
}

func TestSession_Candidates(t *testing.T) {
	sess := NewSession(compileElection(t))

	_, err := sess.Candidates(9)
	require.EqualError(t, err, "instance 9 does not exist")

	_, err = sess.Candidates(1)
	require.EqualError(t, err, "instance 1 is not on a get action")

	candidates, err := sess.Candidates(2)
	require.NoError(t, err)
	require.Empty(t, candidates)

	require.NoError(t, sess.Execute(DeliverStep{Table: "BBcast", Row: []Recipe{Pub{Label: "candA"}}}))
	require.NoError(t, sess.Execute(DeliverStep{Table: "BBcast", Row: []Recipe{Pub{Label: "candB"}}}))

	candidates, err = sess.Candidates(2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.True(t, term.NewConstant("candA").Equal(candidates[0].Binding["xb"]))
	require.True(t, term.NewConstant("candB").Equal(candidates[1].Binding["xb"]))

	err = sess.Execute(RunStep{Instance: 2, Pick: 2})
	require.EqualError(t, err, "instance 2 (get BBcast(xb)): pick 2 out of range: 2 candidate rows")

	require.NoError(t, sess.Execute(RunStep{Instance: 2, Pick: 1}))

	res := sess.Result()
	require.True(t, term.NewConstant("candB").Equal(res.Instances[2].Frame["xb"]))

	_, err = sess.Candidates(2)
	require.EqualError(t, err, "instance 2 is not on a get action")

	for i := 0; i < 4; i++ {
		require.NoError(t, sess.Execute(RunStep{Instance: 0}))
	}

	_, err = sess.Candidates(0)
	require.EqualError(t, err, "instance 0 is done")
}

func TestSession_LogLevels(t *testing.T) {
	restrictions := append(electionRestrictions(), trace.Restriction{
		Name:       "NoKey",
		Premises:   []trace.EventPattern{{Name: "EKey", Args: []term.Expr{term.X("x")}}},
		Conclusion: trace.Eq{Left: term.C("candA"), Right: term.C("candB")},
	})

	program, err := Compile(electionSystem(), electionTemplates(), restrictions, nil)
	require.NoError(t, err)

	sess := NewSession(program)

	buffer := new(bytes.Buffer)
	sess.logger = zerolog.New(buffer)

	for i := 0; i < 4; i++ {
		require.NoError(t, sess.Execute(RunStep{Instance: 0}))
	}

	// Step execution stays at trace so a run is quiet by default, while an
	// inadmissible trace surfaces at info.
	logs := buffer.String()
	require.Contains(t, logs, `{"level":"trace","instance":0,"message":"instance done"}`)
	require.Contains(t, logs,
		`{"level":"info","restriction":"NoKey","message":"session is inadmissible"}`)
}

func TestSession_Watch(t *testing.T) {
	sess := NewSession(compileElection(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := sess.Watch(ctx)

	require.NoError(t, sess.Execute(RunStep{Instance: 0}))

	evt := <-events
	require.Equal(t, uint64(0), evt.Clock)
	require.Equal(t, 0, evt.Instance)
	require.Equal(t, "new skE", evt.Action)
	require.Nil(t, evt.Emitted)

	require.NoError(t, sess.Execute(RunStep{Instance: 0}))
	require.NoError(t, sess.Execute(RunStep{Instance: 0}))
	require.NoError(t, sess.Execute(RunStep{Instance: 0}))

	<-events
	<-events

	evt = <-events
	require.Equal(t, uint64(3), evt.Clock)
	require.NotNil(t, evt.Emitted)
	require.Equal(t, "EKey", evt.Emitted.Name)

	cancel()

	_, more := <-events
	require.False(t, more)
}

// -----------------------------------------------------------------------------
// Utility functions

func electionSystem() *term.System {
	sig := term.NewSignature().
		DeclareConstant(term.TrueLabel, false).
		DeclareConstant(term.FalseLabel, false).
		DeclareConstant(term.OKLabel, false).
		DeclareConstant("candA", false).
		DeclareConstant("candB", false).
		DeclareConstructor("pk", 1).
		DeclareConstructor("aenc", 3).
		DeclareDestructor("adec", 2, []term.Rule{{
			Params: []term.Expr{
				term.Ap("aenc", term.X("m"), term.Ap("pk", term.X("k")), term.X("r")),
				term.X("k"),
			},
			Result: term.X("m"),
		}}, nil).
		DeclareDestructor("eq", 2, []term.Rule{{
			Params: []term.Expr{term.X("x"), term.X("x")},
			Result: term.C(term.TrueLabel),
		}}, &term.Rule{
			Params: []term.Expr{term.X("x"), term.X("y")},
			Result: term.C(term.FalseLabel),
		}).
		DeclareTable(term.Table{Name: "BBkey", Arity: 1}).
		DeclareTable(term.Table{Name: "BBcast", Arity: 1, Open: true}).
		DeclareTable(term.Table{Name: "TReg", Arity: 1, Private: true}).
		DeclareChannel("pub", false).
		DeclareChannel("reg", true).
		DeclareEvent("EKey", 1).
		DeclareEvent("Reg", 1).
		DeclareEvent("Voted", 1).
		DeclareEvent("Ballot", 1)

	return term.NewSystem(sig)
}

func electionTemplates() []Template {
	admin := Template{Name: "Admin", Actions: []Action{
		Fresh{Var: "skE"},
		Let{Var: "pkE", Value: term.Ap("pk", term.X("skE"))},
		Insert{Table: "BBkey", Row: []term.Expr{term.X("pkE")}},
		Emit{Event: "EKey", Args: []term.Expr{term.X("pkE")}},
	}}

	registrar := Template{Name: "Registrar", Actions: []Action{
		Fresh{Var: "cred"},
		Insert{Table: "TReg", Row: []term.Expr{term.X("cred")}},
		Send{Channel: "reg", Message: term.X("cred")},
		Emit{Event: "Reg", Args: []term.Expr{term.X("cred")}},
	}}

	server := Template{Name: "Server", Actions: []Action{
		Get{Table: "BBcast", Pattern: []term.Expr{term.X("xb")}},
		Recv{Channel: "pub", Pattern: term.X("y")},
		Guard{Cond: term.Ap("eq", term.X("y"), term.X("xb"))},
		Emit{Event: "Ballot", Args: []term.Expr{term.X("xb")}},
	}}

	voter := Template{Name: "Voter", Replicated: true, Actions: []Action{
		Get{Table: "BBkey", Pattern: []term.Expr{term.X("xpk")}},
		Recv{Channel: "reg", Pattern: term.X("cr")},
		Fresh{Var: "r"},
		Let{Var: "b", Value: term.Ap("aenc", term.X("cr"), term.X("xpk"), term.X("r"))},
		Send{Channel: "pub", Message: term.X("b")},
		Insert{Table: "BBcast", Row: []term.Expr{term.X("b")}},
		Emit{Event: "Voted", Args: []term.Expr{term.X("b")}},
	}}

	return []Template{admin, registrar, server, voter}
}

func electionRestrictions() []trace.Restriction {
	return []trace.Restriction{{
		Name: "KeyOnce",
		Premises: []trace.EventPattern{
			{Name: "EKey", Args: []term.Expr{term.X("x")}, At: "t1"},
			{Name: "EKey", Args: []term.Expr{term.X("y")}, At: "t2"},
		},
		Conclusion: trace.SameTime{T1: "t1", T2: "t2"},
	}}
}

func electionQueries() []trace.Query {
	return []trace.Query{{
		Name:     "Cast",
		Premises: []trace.EventPattern{{Name: "Ballot", Args: []term.Expr{term.X("b")}}},
		Conclusion: trace.Has{
			Event: trace.EventPattern{Name: "Voted", Args: []term.Expr{term.X("b")}},
		},
	}}
}

func honestScript() Script {
	steps := []Step{
		RunStep{Instance: 0},
		RunStep{Instance: 0},
		RunStep{Instance: 0},
		RunStep{Instance: 0},
		RunStep{Instance: 1},
		RunStep{Instance: 1},
		RunStep{Instance: 1},
		RunStep{Instance: 1},
		SpawnStep{Template: "Voter"},
		RunStep{Instance: 3},
		RunStep{Instance: 3},
		RunStep{Instance: 3},
		RunStep{Instance: 3},
		RunStep{Instance: 3},
		RunStep{Instance: 3},
		RunStep{Instance: 3},
		RunStep{Instance: 2},
		RunStep{Instance: 2, Message: Known{Index: 6}},
		RunStep{Instance: 2},
		RunStep{Instance: 2},
	}

	return Script{Name: "honest", Steps: steps}
}

func compileElection(t *testing.T) *Program {
	program, err := Compile(electionSystem(), electionTemplates(),
		electionRestrictions(), electionQueries())
	require.NoError(t, err)

	return program
}

type fakeStep struct{}

func (fakeStep) String() string {
	return "fake"
}
