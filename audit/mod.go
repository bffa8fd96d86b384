// Package audit implements the persisted form of replay outcomes, so that
// an external auditor can inspect the traces and verdicts a search
// produced without re-running the schedules.
//
// A record is the serialized outcome of one session: the event log, the
// final bulletin board, the admissibility status and the query verdicts.
// Records are archived in a key/value database, one bucket per model,
// keyed by a unique record identifier.
package audit

import (
	"github.com/sbaloglu/proverif-codes/engine"
	"github.com/sbaloglu/proverif-codes/serde"
	"github.com/sbaloglu/proverif-codes/serde/registry"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
	"golang.org/x/xerrors"
)

var recordFormats = registry.NewSimpleRegistry()

// RegisterRecordFormat registers the engine for the provided format.
func RegisterRecordFormat(f serde.Format, e serde.FormatEngine) {
	recordFormats.Register(f, e)
}

// Record is the archived outcome of one replayed schedule.
//
// - implements serde.Message
type Record struct {
	// ID is the unique identifier of the record, assigned when the record
	// is saved.
	ID string

	// Model is the name of the protocol model the schedule ran against.
	Model string

	// Script is the name of the replayed script.
	Script string

	// Steps is the number of executed schedule steps.
	Steps uint64

	// Inadmissible renders the restriction violation that aborted the
	// session, or is empty for an admissible trace.
	Inadmissible string

	// Log is the recorded event log.
	Log trace.Log

	// Relations is the final content of the bulletin board.
	Relations map[string][]term.Tuple

	// Verdicts is the outcome of the queries, keyed by query name. It is
	// empty for an inadmissible trace.
	Verdicts map[string]trace.Verdict
}

// NewRecord builds the record of a replay outcome. The verdicts may be nil
// when the trace was inadmissible or the queries were not evaluated.
func NewRecord(model string, res engine.Result, verdicts map[string]trace.Verdict) Record {
	rec := Record{
		Model:     model,
		Script:    res.Script,
		Steps:     res.Steps,
		Log:       res.Log,
		Relations: res.Relations,
		Verdicts:  verdicts,
	}

	if res.Inadmissible != nil {
		rec.Inadmissible = res.Inadmissible.String()
	}

	return rec
}

// Serialize implements serde.Message.
func (r Record) Serialize(ctx serde.Context) ([]byte, error) {
	format := recordFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, r)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode record: %v", err)
	}

	return data, nil
}

// RecordFactory is a factory to deserialize records.
//
// - implements serde.Factory
type RecordFactory struct{}

// Deserialize implements serde.Factory.
func (f RecordFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	format := recordFormats.Get(ctx.GetFormat())

	m, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode record: %v", err)
	}

	return m, nil
}
