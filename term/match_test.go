package term

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindings_Clone(t *testing.T) {
	b := Bindings{"v": NewConstant("candA")}

	clone := b.Clone()
	clone["v"] = NewConstant("candB")
	clone["r"] = NewName("r", 1)

	require.Equal(t, NewConstant("candA"), b["v"])
	require.Len(t, b, 1)
	require.Len(t, clone, 2)
}

func TestMatch_Variable(t *testing.T) {
	b := Bindings{}

	require.True(t, Match(X("x"), NewConstant("candA"), b))
	require.Equal(t, NewConstant("candA"), b["x"])

	// A bound variable constrains the position to the same value.
	require.True(t, Match(X("x"), NewConstant("candA"), b))
	require.False(t, Match(X("x"), NewConstant("candB"), b))
}

func TestMatch_NonLinear(t *testing.T) {
	pattern := Ap("pair", X("x"), X("x"))

	b := Bindings{}
	ok := Match(pattern, NewFunc("pair", NewName("n", 1), NewName("n", 1)), b)
	require.True(t, ok)

	ok = Match(pattern, NewFunc("pair", NewName("n", 1), NewName("n", 2)), Bindings{})
	require.False(t, ok)
}

func TestMatch_Constant(t *testing.T) {
	require.True(t, Match(C("candA"), NewConstant("candA"), Bindings{}))
	require.False(t, Match(C("candA"), NewConstant("candB"), Bindings{}))
	require.False(t, Match(C("candA"), NewName("candA", 0), Bindings{}))
}

func TestMatch_Literal(t *testing.T) {
	vkey := NewFunc("vk", NewName("cr", 2))

	require.True(t, Match(L(vkey), NewFunc("vk", NewName("cr", 2)), Bindings{}))
	require.False(t, Match(L(vkey), NewFunc("vk", NewName("cr", 3)), Bindings{}))
}

func TestMatch_Apply(t *testing.T) {
	pattern := Ap("aenc", X("v"), Ap("pk", X("k")), X("r"))
	cipher := NewFunc("aenc",
		NewConstant("candA"),
		NewFunc("pk", NewName("skE", 0)),
		NewName("r", 7),
	)

	b := Bindings{}
	require.True(t, Match(pattern, cipher, b))
	require.Equal(t, NewConstant("candA"), b["v"])
	require.Equal(t, NewName("skE", 0), b["k"])
	require.Equal(t, NewName("r", 7), b["r"])

	require.False(t, Match(pattern, NewFunc("sign", NewConstant("candA"), NewName("cr", 1)), Bindings{}))
	require.False(t, Match(pattern, NewConstant("candA"), Bindings{}))
	require.False(t, Match(pattern, NewFunc("aenc", NewConstant("candA")), Bindings{}))
}

func TestMatch_Tuple(t *testing.T) {
	pattern := Tup(X("id"), X("vkey"))
	row := NewTuple(NewName("id", 1), NewFunc("vk", NewName("cr", 1)))

	b := Bindings{}
	require.True(t, Match(pattern, row, b))
	require.Equal(t, NewName("id", 1), b["id"])

	require.False(t, Match(pattern, NewTuple(NewName("id", 1)), Bindings{}))
	require.False(t, Match(pattern, NewName("id", 1), Bindings{}))
}

func TestMatchAll(t *testing.T) {
	base := Bindings{"k": NewName("skE", 0)}

	patterns := []Expr{Ap("pk", X("k")), X("r")}
	terms := []Term{NewFunc("pk", NewName("skE", 0)), NewName("r", 4)}

	b, ok := MatchAll(patterns, terms, base)
	require.True(t, ok)
	require.Equal(t, NewName("r", 4), b["r"])

	// The base frame stays untouched.
	require.Len(t, base, 1)

	_, ok = MatchAll(patterns, terms[:1], base)
	require.False(t, ok)

	_, ok = MatchAll(patterns, []Term{NewFunc("pk", NewName("skE", 9)), NewName("r", 4)}, base)
	require.False(t, ok)
}

func TestInstantiate(t *testing.T) {
	b := Bindings{"v": NewConstant("candA"), "k": NewName("skE", 0)}

	raw, err := instantiate(Ap("aenc", X("v"), Ap("pk", X("k")), C("zero")), b)
	require.NoError(t, err)

	expected := NewFunc("aenc",
		NewConstant("candA"),
		NewFunc("pk", NewName("skE", 0)),
		NewConstant("zero"),
	)
	require.True(t, expected.Equal(raw))

	raw, err = instantiate(Tup(X("v"), L(NewName("r", 1))), b)
	require.NoError(t, err)
	require.True(t, NewTuple(NewConstant("candA"), NewName("r", 1)).Equal(raw))

	_, err = instantiate(X("missing"), b)
	require.EqualError(t, err, "variable 'missing' is not bound")
}
