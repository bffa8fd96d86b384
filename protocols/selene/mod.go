// Package selene implements a tracker-based election model. Every posted
// ballot is re-encrypted and published next to a fresh tracker; the voter
// only learns its tracker after the tally, through a trapdoor commitment
// opened over a private channel. A voter then checks the board row under
// its tracker instead of re-reading its own ballot.
//
// The trapdoor is the point of attack: a corrupt notifier can fake an
// opening of the same commitment to any tracker of its choosing, steering
// the voter to somebody else's row.
package selene

import (
	"github.com/sbaloglu/proverif-codes/engine"
	"github.com/sbaloglu/proverif-codes/protocols"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
	"golang.org/x/xerrors"
)

// Name is the model identifier used by the archive and the daemon.
const Name = "selene"

// System returns the rewrite system of the model.
func System() *term.System {
	sig := protocols.Theory().
		DeclareTable(term.Table{Name: "BBkey", Arity: 1}).
		DeclareTable(term.Table{Name: "BBcast", Arity: 2}).
		DeclareTable(term.Table{Name: "BBtrk", Arity: 2}).
		DeclareTable(term.Table{Name: "BBmix", Arity: 2}).
		DeclareTable(term.Table{Name: "BBtally", Arity: 2, Open: true}).
		DeclareTable(term.Table{Name: "TKey", Arity: 1, Private: true}).
		DeclareTable(term.Table{Name: "TTrk", Arity: 2, Private: true}).
		DeclareChannel("pub", false).
		DeclareChannel("not", true).
		DeclareEvent("EKey", 1).
		DeclareEvent("Voted", 2).
		DeclareEvent("Assigned", 2).
		DeclareEvent("Tallied", 2).
		DeclareEvent("Notified", 2).
		DeclareEvent("Misled", 2).
		DeclareEvent("Verified", 2)

	return term.NewSystem(sig)
}

// Templates returns the role templates of the model.
//
// The voter is known on the board under the hash of a fresh identity. It
// casts its ballot with a proof of correct encryption, waits for its
// tracker commitment and its opening, and verifies the tallied row under
// the opened tracker. The teller re-encrypts the accepted ballot, draws
// the tracker and commits to it; the notifier reveals the opening after
// the tally. The corrupt notifier reveals a faked opening instead.
func Templates() []engine.Template {
	admin := engine.Template{Name: "Admin", Actions: []engine.Action{
		engine.Fresh{Var: "skE"},
		engine.Let{Var: "pkE", Value: term.Ap("pk", term.X("skE"))},
		engine.Insert{Table: "BBkey", Row: []term.Expr{term.X("pkE")}},
		engine.Insert{Table: "TKey", Row: []term.Expr{term.X("skE")}},
		engine.Emit{Event: "EKey", Args: []term.Expr{term.X("pkE")}},
	}}

	voter := engine.Template{Name: "Voter", Replicated: true, Actions: []engine.Action{
		engine.Get{Table: "BBkey", Pattern: []term.Expr{term.X("xpk")}},
		engine.Fresh{Var: "id"},
		engine.Let{Var: "hid", Value: term.Ap("hash", term.X("id"))},
		engine.Recv{Channel: "pub", Pattern: term.X("xv")},
		engine.Fresh{Var: "r"},
		engine.Let{Var: "b", Value: term.Ap("aenc", term.X("xv"), term.X("xpk"), term.X("r"))},
		engine.Let{Var: "p", Value: term.Ap("zkp", term.X("b"), term.X("xv"), term.X("r"))},
		engine.Emit{Event: "Voted", Args: []term.Expr{term.X("hid"), term.X("xv")}},
		engine.Send{Channel: "pub", Message: term.Tup(term.X("hid"), term.X("b"), term.X("p"))},
		engine.Get{Table: "BBtrk", Pattern: []term.Expr{term.X("hid"), term.X("xc")}},
		engine.Recv{Channel: "not", Pattern: term.Tup(term.X("xtrk"), term.X("xo"))},
		engine.Guard{Cond: term.Ap("eq",
			term.Ap("open", term.X("xc"), term.X("xo")), term.X("xtrk"))},
		engine.Get{Table: "BBtally", Pattern: []term.Expr{term.X("xtrk"), term.X("xw")}},
		engine.Emit{Event: "Verified", Args: []term.Expr{term.X("hid"), term.X("xw")}},
	}}

	server := engine.Template{Name: "Server", Replicated: true, Actions: []engine.Action{
		engine.Recv{Channel: "pub", Pattern: term.Tup(term.X("xid"), term.X("xb"), term.X("xp"))},
		engine.Guard{Cond: term.Ap("eq",
			term.Ap("zkpok", term.X("xp"), term.X("xb")), term.C(term.OKLabel))},
		engine.Insert{Table: "BBcast", Row: []term.Expr{term.X("xid"), term.X("xb")}},
	}}

	teller := engine.Template{Name: "Teller", Replicated: true, Actions: []engine.Action{
		engine.Get{Table: "BBcast", Pattern: []term.Expr{term.X("xid"), term.X("xb")}},
		engine.Get{Table: "BBkey", Pattern: []term.Expr{term.X("xpk")}},
		engine.Fresh{Var: "r2"},
		engine.Let{Var: "xb2", Value: term.Ap("renc", term.X("xb"), term.X("xpk"), term.X("r2"))},
		engine.Fresh{Var: "trk"},
		engine.Fresh{Var: "rc"},
		engine.Fresh{Var: "td"},
		engine.Let{Var: "c", Value: term.Ap("tdcommit", term.X("trk"), term.X("rc"), term.X("td"))},
		engine.Insert{Table: "BBtrk", Row: []term.Expr{term.X("xid"), term.X("c")}},
		engine.Insert{Table: "TTrk", Row: []term.Expr{
			term.X("xid"), term.Tup(term.X("trk"), term.X("rc"), term.X("td")),
		}},
		engine.Insert{Table: "BBmix", Row: []term.Expr{term.X("trk"), term.X("xb2")}},
		engine.Emit{Event: "Assigned", Args: []term.Expr{term.X("xid"), term.X("trk")}},
	}}

	tally := engine.Template{Name: "Tally", Replicated: true, Actions: []engine.Action{
		engine.Get{Table: "TKey", Pattern: []term.Expr{term.X("xsk")}},
		engine.Get{Table: "BBmix", Pattern: []term.Expr{term.X("xtrk"), term.X("xb")}},
		engine.Let{Var: "xv", Value: term.Ap("adec", term.X("xb"), term.X("xsk"))},
		engine.Insert{Table: "BBtally", Row: []term.Expr{term.X("xtrk"), term.X("xv")}},
		engine.Emit{Event: "Tallied", Args: []term.Expr{term.X("xtrk"), term.X("xv")}},
	}}

	notifier := engine.Template{Name: "Notifier", Replicated: true, Actions: []engine.Action{
		engine.Get{Table: "TTrk", Pattern: []term.Expr{
			term.X("xid"), term.Tup(term.X("xtrk"), term.X("xrc"), term.X("xtd")),
		}},
		engine.Send{Channel: "not", Message: term.Tup(term.X("xtrk"), term.X("xrc"))},
		engine.Emit{Event: "Notified", Args: []term.Expr{term.X("xid"), term.X("xtrk")}},
	}}

	corrupt := engine.Template{Name: "CorruptNotifier", Replicated: true, Actions: []engine.Action{
		engine.Get{Table: "TTrk", Pattern: []term.Expr{
			term.X("xid"), term.Tup(term.X("xtrk"), term.X("xrc"), term.X("xtd")),
		}},
		engine.Recv{Channel: "pub", Pattern: term.X("xfake")},
		engine.Let{Var: "xo", Value: term.Ap("tdfake",
			term.X("xtrk"), term.X("xrc"), term.X("xtd"), term.X("xfake"))},
		engine.Send{Channel: "not", Message: term.Tup(term.X("xfake"), term.X("xo"))},
		engine.Emit{Event: "Misled", Args: []term.Expr{term.X("xid"), term.X("xfake")}},
	}}

	return []engine.Template{admin, voter, server, teller, tally, notifier, corrupt}
}

// Restrictions returns the admissibility constraints: a tracker belongs to
// at most one voter.
func Restrictions() []trace.Restriction {
	return []trace.Restriction{{
		Name: "UniqueTracker",
		Premises: []trace.EventPattern{
			{Name: "Assigned", Args: []term.Expr{term.X("x1"), term.X("t")}},
			{Name: "Assigned", Args: []term.Expr{term.X("x2"), term.X("t")}},
		},
		Conclusion: trace.Eq{Left: term.X("x1"), Right: term.X("x2")},
	}}
}

// Queries returns the tracker properties of the model.
//
// TRK is tracker-based individual verifiability: the row a voter checks
// under its tracker carries the vote it cast. AGREE states the honest
// notifier only reveals the assigned tracker. ONETRK states a tracker is
// tallied at most once.
func Queries() []trace.Query {
	return []trace.Query{
		{
			Name: "TRK",
			Premises: []trace.EventPattern{
				{Name: "Verified", Args: []term.Expr{term.X("xid"), term.X("xv")}},
			},
			Conclusion: trace.Has{Event: trace.EventPattern{
				Name: "Voted",
				Args: []term.Expr{term.X("xid"), term.X("xv")},
			}},
		},
		{
			Name: "AGREE",
			Premises: []trace.EventPattern{
				{Name: "Notified", Args: []term.Expr{term.X("xid"), term.X("xtrk")}},
			},
			Conclusion: trace.Has{Event: trace.EventPattern{
				Name: "Assigned",
				Args: []term.Expr{term.X("xid"), term.X("xtrk")},
			}},
		},
		{
			Name: "ONETRK",
			Premises: []trace.EventPattern{
				{Name: "Tallied", Args: []term.Expr{term.X("xtrk"), term.X("xv1")}, At: "t1"},
				{Name: "Tallied", Args: []term.Expr{term.X("xtrk"), term.X("xv2")}, At: "t2"},
			},
			Conclusion: trace.And{
				trace.Eq{Left: term.X("xv1"), Right: term.X("xv2")},
				trace.SameTime{T1: "t1", T2: "t2"},
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
