// Package basic implements the baseline election model: an administrator
// publishes the election key, a registrar issues signing credentials over
// a private channel, voters encrypt and sign their ballots, a collection
// server checks the signatures before posting ballots on the board, and a
// tally decrypts what the board holds.
//
// Voters come in two flavours. The honest voter keeps its credential to
// itself; the corrupt voter additionally leaks it on the public channel
// before voting, which is all the attacker needs to recast a ballot in its
// name.
package basic

import (
	"github.com/sbaloglu/proverif-codes/engine"
	"github.com/sbaloglu/proverif-codes/protocols"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
	"golang.org/x/xerrors"
)

// Name is the model identifier used by the archive and the daemon.
const Name = "basic"

// System returns the rewrite system of the model: the shared election
// theory extended with the bulletin board, the channels and the events of
// this protocol.
func System() *term.System {
	sig := protocols.Theory().
		DeclareTable(term.Table{Name: "BBkey", Arity: 1}).
		DeclareTable(term.Table{Name: "BBreg", Arity: 1}).
		DeclareTable(term.Table{Name: "BBcast", Arity: 3, Open: true}).
		DeclareTable(term.Table{Name: "BBtally", Arity: 2}).
		DeclareTable(term.Table{Name: "TKey", Arity: 1, Private: true}).
		DeclareChannel("pub", false).
		DeclareChannel("cred", true).
		DeclareEvent("EKey", 1).
		DeclareEvent("Reg", 1).
		DeclareEvent("Voted", 2).
		DeclareEvent("Verified", 2).
		DeclareEvent("Corrupted", 1).
		DeclareEvent("Tallied", 2)

	return term.NewSystem(sig)
}

// Templates returns the role templates of the model. The administrator is
// the only singleton; every other role is spawned by the schedule.
func Templates() []engine.Template {
	admin := engine.Template{Name: "Admin", Actions: []engine.Action{
		engine.Fresh{Var: "skE"},
		engine.Let{Var: "pkE", Value: term.Ap("pk", term.X("skE"))},
		engine.Insert{Table: "BBkey", Row: []term.Expr{term.X("pkE")}},
		engine.Insert{Table: "TKey", Row: []term.Expr{term.X("skE")}},
		engine.Emit{Event: "EKey", Args: []term.Expr{term.X("pkE")}},
	}}

	registrar := engine.Template{Name: "Registrar", Replicated: true, Actions: []engine.Action{
		engine.Fresh{Var: "cr"},
		engine.Let{Var: "pcr", Value: term.Ap("vk", term.X("cr"))},
		engine.Insert{Table: "BBreg", Row: []term.Expr{term.X("pcr")}},
		engine.Send{Channel: "cred", Message: term.X("cr")},
		engine.Emit{Event: "Reg", Args: []term.Expr{term.X("pcr")}},
	}}

	voter := engine.Template{Name: "Voter", Replicated: true, Actions: votingActions(false)}

	corrupt := engine.Template{Name: "CorruptVoter", Replicated: true, Actions: votingActions(true)}

	server := engine.Template{Name: "Server", Replicated: true, Actions: []engine.Action{
		engine.Get{Table: "BBreg", Pattern: []term.Expr{term.X("xpcr")}},
		engine.Recv{Channel: "pub", Pattern: term.Tup(term.X("xpcr"), term.X("xb"), term.X("xs"))},
		engine.Guard{Cond: term.Ap("eq",
			term.Ap("checksign", term.X("xs"), term.X("xpcr")), term.X("xb"))},
		engine.Insert{Table: "BBcast", Row: []term.Expr{
			term.X("xpcr"), term.X("xb"), term.X("xs"),
		}},
	}}

	tally := engine.Template{Name: "Tally", Replicated: true, Actions: []engine.Action{
		engine.Get{Table: "TKey", Pattern: []term.Expr{term.X("xsk")}},
		engine.Get{Table: "BBcast", Pattern: []term.Expr{
			term.X("xpcr"), term.X("xb"), term.X("xs"),
		}},
		engine.Guard{Cond: term.Ap("eq",
			term.Ap("checksign", term.X("xs"), term.X("xpcr")), term.X("xb"))},
		engine.Let{Var: "xv", Value: term.Ap("adec", term.X("xb"), term.X("xsk"))},
		engine.Insert{Table: "BBtally", Row: []term.Expr{term.X("xpcr"), term.X("xv")}},
		engine.Emit{Event: "Tallied", Args: []term.Expr{term.X("xpcr"), term.X("xv")}},
	}}

	return []engine.Template{admin, registrar, voter, corrupt, server, tally}
}

// votingActions builds the voter script. The vote itself arrives on the
// public channel: which candidate a voter picks is a choice of the
// environment, so the schedule supplies it. The corrupt variant leaks its
// signing credential before voting.
func votingActions(corrupt bool) []engine.Action {
	actions := []engine.Action{
		engine.Get{Table: "BBkey", Pattern: []term.Expr{term.X("xpk")}},
		engine.Recv{Channel: "cred", Pattern: term.X("cr")},
		engine.Let{Var: "pcr", Value: term.Ap("vk", term.X("cr"))},
	}

	if corrupt {
		actions = append(actions,
			engine.Emit{Event: "Corrupted", Args: []term.Expr{term.X("pcr")}},
			engine.Send{Channel: "pub", Message: term.X("cr")},
		)
	}

	actions = append(actions,
		engine.Recv{Channel: "pub", Pattern: term.X("xv")},
		engine.Fresh{Var: "r"},
		engine.Let{Var: "b", Value: term.Ap("aenc", term.X("xv"), term.X("xpk"), term.X("r"))},
		engine.Let{Var: "s", Value: term.Ap("sign", term.X("b"), term.X("cr"))},
		engine.Emit{Event: "Voted", Args: []term.Expr{term.X("pcr"), term.X("xv")}},
		engine.Send{Channel: "pub", Message: term.Tup(term.X("pcr"), term.X("b"), term.X("s"))},
		engine.Get{Table: "BBcast", Pattern: []term.Expr{
			term.X("pcr"), term.X("b"), term.X("s"),
		}},
		engine.Emit{Event: "Verified", Args: []term.Expr{term.X("pcr"), term.X("xv")}},
	)

	return actions
}

// Restrictions returns the admissibility constraints: there is exactly one
// election key, so any schedule producing a second, different key is
// discarded before the queries run.
func Restrictions() []trace.Restriction {
	return []trace.Restriction{{
		Name: "SingleKey",
		Premises: []trace.EventPattern{
			{Name: "EKey", Args: []term.Expr{term.X("x")}},
			{Name: "EKey", Args: []term.Expr{term.X("y")}},
		},
		Conclusion: trace.Eq{Left: term.X("x"), Right: term.X("y")},
	}}
}

// Queries returns the verifiability properties of the model.
//
// IV1 is strict individual verifiability: whatever a voter verified is
// tallied as-is. IVCor weakens it with a corruption escape. ONE states
// that a credential is tallied at most once. RES states that everything
// tallied was cast by its credential holder, unless that holder leaked
// the credential.
func Queries() []trace.Query {
	verified := trace.EventPattern{
		Name: "Verified",
		Args: []term.Expr{term.X("xpcr"), term.X("xv")},
	}

	tallied := trace.Has{Event: trace.EventPattern{
		Name: "Tallied",
		Args: []term.Expr{term.X("xpcr"), term.X("xv")},
	}}

	corrupted := trace.Has{Event: trace.EventPattern{
		Name: "Corrupted",
		Args: []term.Expr{term.X("xpcr")},
	}}

	return []trace.Query{
		{
			Name:       "IV1",
			Premises:   []trace.EventPattern{verified},
			Conclusion: tallied,
		},
		{
			Name:       "IVCor",
			Premises:   []trace.EventPattern{verified},
			Conclusion: trace.Or{tallied, corrupted},
		},
		{
			Name: "ONE",
			Premises: []trace.EventPattern{
				{Name: "Tallied", Args: []term.Expr{term.X("xpcr"), term.X("xv1")}, At: "t1"},
				{Name: "Tallied", Args: []term.Expr{term.X("xpcr"), term.X("xv2")}, At: "t2"},
			},
			Conclusion: trace.And{
				trace.Eq{Left: term.X("xv1"), Right: term.X("xv2")},
				trace.SameTime{T1: "t1", T2: "t2"},
			},
		},
		{
			Name:     "RES",
			Premises: []trace.EventPattern{{Name: "Tallied", Args: []term.Expr{term.X("xpcr"), term.X("xv")}}},
			Conclusion: trace.Or{
				trace.Has{Event: trace.EventPattern{
					Name: "Voted",
					Args: []term.Expr{term.X("xpcr"), term.X("xv")},
				}},
				corrupted,
			},
		},
	}
}

// NewProgram compiles the model.
func NewProgram() (*engine.Program, error) {
	program, err := engine.Compile(System(), Templates(), Restrictions(), Queries())
	if err != nil {
		return nil, xerrors.Errorf("couldn't compile the model: %v", err)
	}

	return program, nil
}
