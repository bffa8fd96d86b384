// Package protocols assembles the election models bundled with the
// engine. The package itself declares the cryptographic theory the models
// share; each model lives in its own subpackage and extends the theory
// with its tables, channels, events and role templates.
package protocols

import (
	"github.com/sbaloglu/proverif-codes/term"
)

// Candidate labels shared by the bundled models. The candidates are public
// free names: the attacker can always name them.
const (
	CandA = "candA"
	CandB = "candB"
)

// Theory declares the shared primitives of the election models:
// randomized asymmetric encryption with re-encryption, signatures with
// verification keys, zero-knowledge ballot proofs, trapdoor commitments,
// hashing and the boolean equality test.
//
// The rules follow the usual symbolic conventions. Decryption traverses
// re-encryption chains without consuming them; a commitment rebuilt with
// faked randomness normalizes to the original commitment, so an
// alternative opening is indistinguishable from the real one.
func Theory() *term.Signature {
	sig := term.NewSignature().
		DeclareConstant(term.TrueLabel, false).
		DeclareConstant(term.FalseLabel, false).
		DeclareConstant(term.OKLabel, false).
		DeclareConstant(CandA, false).
		DeclareConstant(CandB, false).
		DeclareConstructor("pk", 1).
		DeclareConstructor("aenc", 3).
		DeclareConstructor("renc", 3).
		DeclareConstructor("vk", 1).
		DeclareConstructor("sign", 2).
		DeclareConstructor("zkp", 3).
		DeclareConstructor("tdcommit", 3).
		DeclareConstructor("tdfake", 4).
		DeclareConstructor("hash", 1)

	sig.DeclareDestructor("adec", 2, []term.Rule{
		{
			Params: []term.Expr{
				term.Ap("aenc", term.X("m"), term.Ap("pk", term.X("k")), term.X("r")),
				term.X("k"),
			},
			Result: term.X("m"),
		},
		{
			Params: []term.Expr{
				term.Ap("renc", term.X("c"), term.Ap("pk", term.X("k")), term.X("r")),
				term.X("k"),
			},
			Result: term.Ap("adec", term.X("c"), term.X("k")),
		},
	}, nil)

	sig.DeclareDestructor("checksign", 2, []term.Rule{
		{
			Params: []term.Expr{
				term.Ap("sign", term.X("m"), term.X("k")),
				term.Ap("vk", term.X("k")),
			},
			Result: term.X("m"),
		},
	}, nil)

	sig.DeclareDestructor("zkpok", 2, []term.Rule{
		{
			Params: []term.Expr{
				term.Ap("zkp", term.Ap("aenc", term.X("v"), term.X("xpk"), term.X("r")),
					term.X("v"), term.X("r")),
				term.Ap("aenc", term.X("v"), term.X("xpk"), term.X("r")),
			},
			Result: term.C(term.OKLabel),
		},
	}, nil)

	sig.DeclareDestructor("open", 2, []term.Rule{
		{
			Params: []term.Expr{
				term.Ap("tdcommit", term.X("m"), term.X("r"), term.X("td")),
				term.X("r"),
			},
			Result: term.X("m"),
		},
		{
			Params: []term.Expr{
				term.Ap("tdcommit", term.X("m1"), term.X("r"), term.X("td")),
				term.Ap("tdfake", term.X("m1"), term.X("r"), term.X("td"), term.X("m2")),
			},
			Result: term.X("m2"),
		},
	}, nil)

	sig.DeclareDestructor("eq", 2,
		[]term.Rule{{
			Params: []term.Expr{term.X("x"), term.X("x")},
			Result: term.C(term.TrueLabel),
		}},
		&term.Rule{
			Params: []term.Expr{term.X("x"), term.X("y")},
			Result: term.C(term.FalseLabel),
		},
	)

	sig.DeclareRewrite("tdcommit", term.Rule{
		Params: []term.Expr{
			term.X("m2"),
			term.Ap("tdfake", term.X("m1"), term.X("r"), term.X("td"), term.X("m2")),
			term.X("td"),
		},
		Result: term.Ap("tdcommit", term.X("m1"), term.X("r"), term.X("td")),
	})

	return sig
}
