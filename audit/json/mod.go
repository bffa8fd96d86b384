// Package json implements the JSON format of the archive records.
package json

import (
	"github.com/sbaloglu/proverif-codes/audit"
	"github.com/sbaloglu/proverif-codes/serde"
	"github.com/sbaloglu/proverif-codes/term"
	termjson "github.com/sbaloglu/proverif-codes/term/json"
	tracejson "github.com/sbaloglu/proverif-codes/trace/json"
	"golang.org/x/xerrors"
)

func init() {
	audit.RegisterRecordFormat(serde.FormatJSON, recordFormat{})
}

// RecordJSON is the JSON message of an archived replay record.
type RecordJSON struct {
	ID           string                              `json:"id"`
	Model        string                              `json:"model"`
	Script       string                              `json:"script,omitempty"`
	Steps        uint64                              `json:"steps"`
	Inadmissible string                              `json:"inadmissible,omitempty"`
	Log          []tracejson.OccurrenceJSON          `json:"log"`
	Relations    map[string][][]termjson.TermJSON    `json:"relations"`
	Verdicts     map[string]tracejson.VerdictJSON    `json:"verdicts,omitempty"`
}

// recordFormat is the JSON engine of the record messages.
//
// - implements serde.FormatEngine
type recordFormat struct{}

// Encode implements serde.FormatEngine.
func (f recordFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	rec, ok := msg.(audit.Record)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	log, err := tracejson.EncodeLog(rec.Log)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode log: %v", err)
	}

	relations := make(map[string][][]termjson.TermJSON, len(rec.Relations))
	for table, rows := range rec.Relations {
		raw, err := termjson.EncodeRows(rows)
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode table '%s': %v", table, err)
		}

		relations[table] = raw
	}

	verdicts, err := tracejson.EncodeVerdicts(rec.Verdicts)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode verdicts: %v", err)
	}

	raw := RecordJSON{
		ID:           rec.ID,
		Model:        rec.Model,
		Script:       rec.Script,
		Steps:        rec.Steps,
		Inadmissible: rec.Inadmissible,
		Log:          log,
		Relations:    relations,
		Verdicts:     verdicts,
	}

	data, err := ctx.Marshal(raw)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine.
func (f recordFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	raw := RecordJSON{}

	err := ctx.Unmarshal(data, &raw)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal: %v", err)
	}

	log, err := tracejson.DecodeLog(raw.Log)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode log: %v", err)
	}

	relations := make(map[string][]term.Tuple, len(raw.Relations))
	for table, rows := range raw.Relations {
		decoded, err := termjson.DecodeRows(rows)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode table '%s': %v", table, err)
		}

		relations[table] = decoded
	}

	verdicts, err := tracejson.DecodeVerdicts(raw.Verdicts)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode verdicts: %v", err)
	}

	rec := audit.Record{
		ID:           raw.ID,
		Model:        raw.Model,
		Script:       raw.Script,
		Steps:        raw.Steps,
		Inadmissible: raw.Inadmissible,
		Log:          log,
		Relations:    relations,
		Verdicts:     verdicts,
	}

	return rec, nil
}
