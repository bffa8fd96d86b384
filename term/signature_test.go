package term

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignature_DeclareConstructor(t *testing.T) {
	sig := NewSignature().DeclareConstructor("pk", 1)

	cons, found := sig.Constructor("pk")
	require.True(t, found)
	require.Equal(t, 1, cons.Arity)

	_, found = sig.Constructor("vk")
	require.False(t, found)

	require.PanicsWithValue(t, "'pk' is already declared", func() {
		sig.DeclareConstructor("pk", 2)
	})

	require.PanicsWithValue(t, "constructor 'bad': negative arity", func() {
		sig.DeclareConstructor("bad", -1)
	})

	require.PanicsWithValue(t, "declaration with empty name", func() {
		sig.DeclareConstructor("", 0)
	})
}

func TestSignature_DeclareDestructor(t *testing.T) {
	sig := NewSignature().
		DeclareConstructor("pk", 1).
		DeclareConstructor("aenc", 3).
		DeclareConstructor("renc", 3)

	rules := []Rule{
		{
			Params: []Expr{Ap("aenc", X("m"), Ap("pk", X("k")), X("r")), X("k")},
			Result: X("m"),
		},
		// The result may chain through the destructor itself.
		{
			Params: []Expr{Ap("renc", X("c"), Ap("pk", X("k")), X("r")), X("k")},
			Result: Ap("adec", X("c"), X("k")),
		},
	}

	sig.DeclareDestructor("adec", 2, rules, nil)
	require.True(t, sig.IsDestructor("adec"))
	require.False(t, sig.IsDestructor("aenc"))
	require.False(t, sig.IsDestructor("unknown"))

	require.PanicsWithValue(t, "destructor 'open': no rule", func() {
		sig.DeclareDestructor("open", 2, nil, nil)
	})

	require.PanicsWithValue(t, "rule of 'fst': 1 parameters for arity 2", func() {
		sig.DeclareDestructor("fst", 2, []Rule{{Params: []Expr{X("x")}, Result: X("x")}}, nil)
	})

	require.PanicsWithValue(t,
		"rule of 'proj': result variable 'y' is not bound by the parameters",
		func() {
			sig.DeclareDestructor("proj", 1,
				[]Rule{{Params: []Expr{X("x")}, Result: X("y")}}, nil)
		})

	require.PanicsWithValue(t,
		"rule of 'snd': pattern symbol 'adec' is not a constructor",
		func() {
			sig.DeclareDestructor("snd", 1,
				[]Rule{{Params: []Expr{Ap("adec", X("c"), X("k"))}, Result: X("c")}}, nil)
		})
}

func TestSignature_DeclareDestructor_Otherwise(t *testing.T) {
	sig := NewSignature().
		DeclareConstant("true", false).
		DeclareConstant("false", false)

	sig.DeclareDestructor("eq", 2,
		[]Rule{{Params: []Expr{X("x"), X("x")}, Result: C("true")}},
		&Rule{Params: []Expr{X("x"), X("y")}, Result: C("false")},
	)
	require.True(t, sig.IsDestructor("eq"))

	require.PanicsWithValue(t,
		"otherwise rule of 'neq': parameters must be distinct",
		func() {
			sig.DeclareDestructor("neq", 2,
				[]Rule{{Params: []Expr{X("x"), X("y")}, Result: C("true")}},
				&Rule{Params: []Expr{X("x"), X("x")}, Result: C("false")})
		})

	require.PanicsWithValue(t,
		"otherwise rule of 'chk': parameters must be plain variables",
		func() {
			sig.DeclareDestructor("chk", 1,
				[]Rule{{Params: []Expr{X("x")}, Result: C("true")}},
				&Rule{Params: []Expr{C("true")}, Result: C("false")})
		})
}

func TestSignature_DeclareRewrite(t *testing.T) {
	sig := NewSignature().
		DeclareConstructor("tdcommit", 3).
		DeclareConstructor("tdfake", 4)

	rule := Rule{
		Params: []Expr{X("m2"), Ap("tdfake", X("m1"), X("r"), X("td"), X("m2")), X("td")},
		Result: Ap("tdcommit", X("m1"), X("r"), X("td")),
	}

	sig.DeclareRewrite("tdcommit", rule)
	require.False(t, sig.IsDestructor("tdcommit"))

	require.PanicsWithValue(t, "rewrite on 'open': not a declared constructor", func() {
		sig.DeclareRewrite("open", rule)
	})
}

func TestSignature_DeclareTable(t *testing.T) {
	sig := NewSignature().DeclareTable(Table{Name: "BBkey", Arity: 1})

	table, found := sig.Table("BBkey")
	require.True(t, found)
	require.Equal(t, 1, table.Arity)

	_, found = sig.Table("BBcast")
	require.False(t, found)

	require.PanicsWithValue(t, "table 'BBzero': arity must be positive", func() {
		sig.DeclareTable(Table{Name: "BBzero"})
	})

	require.PanicsWithValue(t, "table 'TKey': a private table cannot be open", func() {
		sig.DeclareTable(Table{Name: "TKey", Arity: 1, Private: true, Open: true})
	})
}

func TestSignature_Tables(t *testing.T) {
	sig := NewSignature().
		DeclareTable(Table{Name: "BBreg", Arity: 2}).
		DeclareTable(Table{Name: "BBcast", Arity: 2}).
		DeclareTable(Table{Name: "BBkey", Arity: 1})

	tables := sig.Tables()
	require.Len(t, tables, 3)
	require.Equal(t, "BBcast", tables[0].Name)
	require.Equal(t, "BBkey", tables[1].Name)
	require.Equal(t, "BBreg", tables[2].Name)
}

func TestSignature_DeclareEvent(t *testing.T) {
	sig := NewSignature().DeclareEvent("Voted", 3)

	event, found := sig.Event("Voted")
	require.True(t, found)
	require.Equal(t, 3, event.Arity)

	_, found = sig.Event("Cast")
	require.False(t, found)

	require.PanicsWithValue(t, "event 'bad': negative arity", func() {
		sig.DeclareEvent("bad", -2)
	})
}

func TestSignature_DeclareConstant(t *testing.T) {
	sig := NewSignature().DeclareConstant("candA", false)

	cst, found := sig.Constant("candA")
	require.True(t, found)
	require.False(t, cst.Private)

	_, found = sig.Constant("candB")
	require.False(t, found)
}

func TestSignature_DeclareChannel(t *testing.T) {
	sig := NewSignature().
		DeclareChannel("pub", false).
		DeclareChannel("reg", true)

	ch, found := sig.Channel("reg")
	require.True(t, found)
	require.True(t, ch.Private)

	channels := sig.Channels()
	require.Len(t, channels, 2)
	require.Equal(t, "pub", channels[0].Name)
	require.Equal(t, "reg", channels[1].Name)
}

func TestSignature_CheckPattern(t *testing.T) {
	sig := newTestSignature()

	require.NoError(t, sig.CheckPattern(Ap("pk", X("k"))))
	require.NoError(t, sig.CheckPattern(Tup(C("candA"), L(NewName("r", 1)))))

	err := sig.CheckPattern(Ap("adec", X("c"), X("k")))
	require.EqualError(t, err, "pattern symbol 'adec' is not a constructor")

	err = sig.CheckPattern(Ap("pk", X("k"), X("k2")))
	require.EqualError(t, err, "constructor 'pk' expects 1 arguments, got 2")

	err = sig.CheckPattern(C("candZ"))
	require.EqualError(t, err, "constant 'candZ' is not declared")

	err = sig.CheckPattern(Tup(Ap("nope", X("x"))))
	require.EqualError(t, err, "pattern symbol 'nope' is not a constructor")
}

func TestSignature_CheckExpr(t *testing.T) {
	sig := newTestSignature()

	require.NoError(t, sig.CheckExpr(Ap("adec", X("c"), X("k"))))
	require.NoError(t, sig.CheckExpr(Tup(C("candA"), Ap("pk", X("k")))))

	err := sig.CheckExpr(Ap("nope", X("x")))
	require.EqualError(t, err, "symbol 'nope' is not declared")

	err = sig.CheckExpr(Ap("adec", X("c")))
	require.EqualError(t, err, "symbol 'adec' expects 2 arguments, got 1")

	err = sig.CheckExpr(Ap("aenc", C("candZ"), X("k"), X("r")))
	require.EqualError(t, err, "constant 'candZ' is not declared")
}

// -----------------------------------------------------------------------------
// Utility functions

func newTestSignature() *Signature {
	sig := NewSignature().
		DeclareConstructor("pk", 1).
		DeclareConstructor("aenc", 3).
		DeclareConstant("candA", false)

	rule := Rule{
		Params: []Expr{Ap("aenc", X("m"), Ap("pk", X("k")), X("r")), X("k")},
		Result: X("m"),
	}

	return sig.DeclareDestructor("adec", 2, []Rule{rule}, nil)
}
