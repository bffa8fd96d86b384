// Package relation implements the append-only relations a protocol model
// publishes into, collectively the bulletin board. A relation is a named,
// fixed-arity multiset of ground rows. Rows are only ever inserted;
// reading never consumes, so the same row can satisfy any number of reads
// for the rest of a session.
//
// A read is a pattern-matched scan. A process whose read has no matching
// row is suspended by the engine until a later insert provides one, which
// the store signals through its observers and its waiter queue.
//
// Documentation Last Review: 14.02.2023
//
package relation

import (
	"github.com/sbaloglu/proverif-codes/term"
)

// InsertEvent is sent to the store observers for every appended row.
type InsertEvent struct {
	Table string
	Index int
	Row   term.Tuple
}

// Query describes one pattern-matched read over a table. Pattern positions
// holding variables already bound in Base turn into exact-match
// constraints; free variables bind the row values. SuchThat, when not nil,
// is evaluated under the extended bindings and keeps only the rows for
// which it reduces to true.
type Query struct {
	Table    string
	Pattern  []term.Expr
	SuchThat term.Expr
	Base     term.Bindings
}

// Candidate is one row satisfying a query, together with the bindings the
// pattern produced and the row position in insertion order.
type Candidate struct {
	Index   int
	Row     term.Tuple
	Binding term.Bindings
}
