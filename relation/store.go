package relation

import (
	"context"
	"sync"

	"github.com/sbaloglu/proverif-codes/core"
	"github.com/sbaloglu/proverif-codes/term"
	"golang.org/x/xerrors"
)

type waiter struct {
	query Query
	ch    chan []Candidate
}

// Store holds the relations of one session. Inserts append, reads scan;
// nothing is ever deleted, so a snapshot taken after step n+1 is always a
// superset of the snapshot after step n.
type Store struct {
	sync.Mutex

	sys     *term.System
	tables  map[string][]term.Tuple
	watcher *core.Watcher[InsertEvent]
	queue   []waiter
	closed  bool
}

// NewStore creates an empty store over the tables the signature declares.
func NewStore(sys *term.System) *Store {
	tables := make(map[string][]term.Tuple)
	for _, table := range sys.Signature().Tables() {
		tables[table.Name] = nil
	}

	return &Store{
		sys:     sys,
		tables:  tables,
		watcher: core.NewWatcher[InsertEvent](),
	}
}

// Insert appends the row to the table and wakes up the waiters whose query
// the new row satisfies. The row must have exactly the declared arity.
func (s *Store) Insert(table string, row term.Tuple) error {
	decl, found := s.sys.Signature().Table(table)
	if !found {
		return xerrors.Errorf("table '%s' is not declared", table)
	}

	if row.Len() != decl.Arity {
		return xerrors.Errorf("table '%s' expects %d columns, got %d",
			table, decl.Arity, row.Len())
	}

	s.Lock()

	index := len(s.tables[table])
	s.tables[table] = append(s.tables[table], row)

	s.notify(table)

	s.Unlock()

	s.watcher.Notify(InsertEvent{Table: table, Index: index, Row: row})

	return nil
}

// Len returns the current number of rows of the table.
func (s *Store) Len(table string) int {
	s.Lock()
	defer s.Unlock()

	return len(s.tables[table])
}

// Rows returns a snapshot of the table in insertion order.
func (s *Store) Rows(table string) []term.Tuple {
	s.Lock()
	defer s.Unlock()

	rows := make([]term.Tuple, len(s.tables[table]))
	copy(rows, s.tables[table])

	return rows
}

// Snapshot returns a copy of every table, keyed by name. Terms are
// immutable so the rows themselves are shared.
func (s *Store) Snapshot() map[string][]term.Tuple {
	s.Lock()
	defer s.Unlock()

	snapshot := make(map[string][]term.Tuple, len(s.tables))
	for name, rows := range s.tables {
		cp := make([]term.Tuple, len(rows))
		copy(cp, rows)

		snapshot[name] = cp
	}

	return snapshot
}

// Match returns every candidate row currently satisfying the query, in
// insertion order. An empty result is a suspension for the reading
// process, never an error.
func (s *Store) Match(q Query) ([]Candidate, error) {
	s.Lock()
	defer s.Unlock()

	return s.match(q)
}

// Wait blocks until the query has at least one candidate and returns the
// candidates, or nil when the context ends or the store is closed. It
// serves drivers that run sessions concurrently; within a replay the
// engine only ever polls Match.
func (s *Store) Wait(ctx context.Context, q Query) ([]Candidate, error) {
	ch := make(chan []Candidate, 1)

	s.Lock()

	candidates, err := s.match(q)
	if err != nil {
		s.Unlock()
		return nil, err
	}

	if len(candidates) > 0 || s.closed {
		s.Unlock()
		return candidates, nil
	}

	s.queue = append(s.queue, waiter{query: q, ch: ch})

	s.Unlock()

	select {
	case candidates := <-ch:
		return candidates, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Watch registers an observer notified of every insert, which the engine
// uses to re-evaluate suspended reads.
func (s *Store) Watch(obs core.Observer[InsertEvent]) {
	s.watcher.Add(obs)
}

// Unwatch removes the observer.
func (s *Store) Unwatch(obs core.Observer[InsertEvent]) {
	s.watcher.Remove(obs)
}

// Close releases the pending waiters. The tables stay readable, consistent
// with the append-only contract.
func (s *Store) Close() {
	s.Lock()

	s.closed = true

	for _, w := range s.queue {
		close(w.ch)
	}

	s.queue = nil

	s.Unlock()
}

func (s *Store) match(q Query) ([]Candidate, error) {
	decl, found := s.sys.Signature().Table(q.Table)
	if !found {
		return nil, xerrors.Errorf("table '%s' is not declared", q.Table)
	}

	if len(q.Pattern) != decl.Arity {
		return nil, xerrors.Errorf("pattern over '%s' expects %d positions, got %d",
			q.Table, decl.Arity, len(q.Pattern))
	}

	var candidates []Candidate

	for i, row := range s.tables[q.Table] {
		binding, ok := term.MatchAll(q.Pattern, row.Elems(), q.Base)
		if !ok {
			continue
		}

		if q.SuchThat != nil {
			holds, err := s.sys.Holds(q.SuchThat, binding)
			if err != nil {
				return nil, xerrors.Errorf("couldn't filter '%s': %v", q.Table, err)
			}

			if !holds {
				continue
			}
		}

		candidates = append(candidates, Candidate{Index: i, Row: row, Binding: binding})
	}

	return candidates, nil
}

// notify fulfills the waiters whose query has candidates after the insert.
// Iterating by descending order to allow the deletion of the element
// inside the loop.
func (s *Store) notify(table string) {
	for i := len(s.queue) - 1; i >= 0; i-- {
		w := s.queue[i]

		if w.query.Table != table {
			continue
		}

		candidates, err := s.match(w.query)
		if err != nil || len(candidates) == 0 {
			continue
		}

		w.ch <- candidates
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
	}
}
