// Package json defines the JSON wire form of event logs and verdicts,
// shared by the archive record format and the daemon payloads.
package json

import (
	termjson "github.com/sbaloglu/proverif-codes/term/json"
	"github.com/sbaloglu/proverif-codes/trace"
	"golang.org/x/xerrors"
)

// OccurrenceJSON is the JSON form of an event occurrence.
type OccurrenceJSON struct {
	Name string              `json:"name"`
	Args []termjson.TermJSON `json:"args"`
	Time uint64              `json:"time"`
}

// VerdictJSON is the JSON form of a query verdict.
type VerdictJSON struct {
	Query   string            `json:"query"`
	Holds   bool              `json:"holds"`
	Counter []OccurrenceJSON  `json:"counter,omitempty"`
	Witness map[string]string `json:"witness,omitempty"`
}

// EncodeLog returns the JSON form of the log.
func EncodeLog(log trace.Log) ([]OccurrenceJSON, error) {
	out := make([]OccurrenceJSON, len(log))

	for i, occ := range log {
		args, err := termjson.EncodeAll(occ.Args)
		if err != nil {
			return nil, xerrors.Errorf("occurrence %d: %v", i, err)
		}

		out[i] = OccurrenceJSON{Name: occ.Name, Args: args, Time: occ.Time}
	}

	return out, nil
}

// DecodeLog rebuilds the log from its JSON form.
func DecodeLog(raws []OccurrenceJSON) (trace.Log, error) {
	log := make(trace.Log, len(raws))

	for i, raw := range raws {
		args, err := termjson.DecodeAll(raw.Args)
		if err != nil {
			return nil, xerrors.Errorf("occurrence %d: %v", i, err)
		}

		log[i] = trace.Occurrence{Name: raw.Name, Args: args, Time: raw.Time}
	}

	return log, nil
}

// EncodeVerdict returns the JSON form of the verdict. The witness
// substitution is rendered, not encoded, as it only serves human
// inspection of an attack.
func EncodeVerdict(v trace.Verdict) (VerdictJSON, error) {
	out := VerdictJSON{Query: v.Query, Holds: v.Holds}

	if v.Counter == nil {
		return out, nil
	}

	counter, err := EncodeLog(trace.Log(v.Counter.Matched))
	if err != nil {
		return VerdictJSON{}, xerrors.Errorf("counterexample: %v", err)
	}

	out.Counter = counter

	out.Witness = make(map[string]string, len(v.Counter.Assignment.Bindings))
	for name, value := range v.Counter.Assignment.Bindings {
		out.Witness[name] = value.String()
	}

	return out, nil
}

// EncodeVerdicts returns the JSON form of a verdict map, keyed by query
// name.
func EncodeVerdicts(verdicts map[string]trace.Verdict) (map[string]VerdictJSON, error) {
	out := make(map[string]VerdictJSON, len(verdicts))

	for name, v := range verdicts {
		raw, err := EncodeVerdict(v)
		if err != nil {
			return nil, xerrors.Errorf("verdict '%s': %v", name, err)
		}

		out[name] = raw
	}

	return out, nil
}

// DecodeVerdicts rebuilds a verdict map from its JSON form. The witness
// substitution is not rebuilt; the matched occurrences are.
func DecodeVerdicts(raws map[string]VerdictJSON) (map[string]trace.Verdict, error) {
	out := make(map[string]trace.Verdict, len(raws))

	for name, raw := range raws {
		v := trace.Verdict{Query: raw.Query, Holds: raw.Holds}

		if len(raw.Counter) > 0 {
			matched, err := DecodeLog(raw.Counter)
			if err != nil {
				return nil, xerrors.Errorf("verdict '%s': %v", name, err)
			}

			v.Counter = &trace.Counterexample{Matched: matched}
		}

		out[name] = v
	}

	return out, nil
}
