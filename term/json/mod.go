// Package json defines the JSON wire form of symbolic terms, shared by the
// archive record format and the daemon payloads.
//
// A term is encoded as an object with exactly one of the variant fields
// set, so that the union survives a round trip without a registry of
// symbols.
package json

import (
	"github.com/sbaloglu/proverif-codes/term"
	"golang.org/x/xerrors"
)

// TermJSON is the JSON form of a term.
type TermJSON struct {
	Name     *NameJSON  `json:"name,omitempty"`
	Constant string     `json:"constant,omitempty"`
	Channel  string     `json:"channel,omitempty"`
	Func     *FuncJSON  `json:"func,omitempty"`
	Tuple    []TermJSON `json:"tuple,omitempty"`
	Unit     bool       `json:"unit,omitempty"`
}

// NameJSON is the JSON form of a fresh name.
type NameJSON struct {
	Base   string `json:"base"`
	Serial uint64 `json:"serial"`
}

// FuncJSON is the JSON form of a function application.
type FuncJSON struct {
	Symbol string     `json:"symbol"`
	Args   []TermJSON `json:"args"`
}

// Encode returns the JSON form of the term.
func Encode(t term.Term) (TermJSON, error) {
	switch v := t.(type) {
	case term.Name:
		return TermJSON{Name: &NameJSON{Base: v.Base(), Serial: v.Serial()}}, nil
	case term.Constant:
		return TermJSON{Constant: v.Label()}, nil
	case term.Channel:
		return TermJSON{Channel: v.Name()}, nil
	case term.Func:
		args, err := EncodeAll(v.Args())
		if err != nil {
			return TermJSON{}, err
		}

		return TermJSON{Func: &FuncJSON{Symbol: v.Symbol(), Args: args}}, nil
	case term.Tuple:
		elems, err := EncodeAll(v.Elems())
		if err != nil {
			return TermJSON{}, err
		}

		if len(elems) == 0 {
			return TermJSON{Unit: true}, nil
		}

		return TermJSON{Tuple: elems}, nil
	default:
		return TermJSON{}, xerrors.Errorf("unsupported term '%T'", t)
	}
}

// EncodeAll returns the JSON form of a list of terms.
func EncodeAll(terms []term.Term) ([]TermJSON, error) {
	out := make([]TermJSON, len(terms))

	for i, t := range terms {
		raw, err := Encode(t)
		if err != nil {
			return nil, err
		}

		out[i] = raw
	}

	return out, nil
}

// Decode rebuilds the term from its JSON form. Exactly one variant field
// must be set.
func Decode(raw TermJSON) (term.Term, error) {
	switch {
	case raw.Name != nil:
		return term.NewName(raw.Name.Base, raw.Name.Serial), nil
	case raw.Constant != "":
		return term.NewConstant(raw.Constant), nil
	case raw.Channel != "":
		return term.NewChannel(raw.Channel), nil
	case raw.Func != nil:
		args, err := DecodeAll(raw.Func.Args)
		if err != nil {
			return nil, err
		}

		return term.NewFunc(raw.Func.Symbol, args...), nil
	case len(raw.Tuple) > 0:
		elems, err := DecodeAll(raw.Tuple)
		if err != nil {
			return nil, err
		}

		return term.NewTuple(elems...), nil
	case raw.Unit:
		return term.NewTuple(), nil
	default:
		return nil, xerrors.New("term with no variant set")
	}
}

// DecodeAll rebuilds a list of terms from their JSON forms.
func DecodeAll(raws []TermJSON) ([]term.Term, error) {
	out := make([]term.Term, len(raws))

	for i, raw := range raws {
		t, err := Decode(raw)
		if err != nil {
			return nil, err
		}

		out[i] = t
	}

	return out, nil
}

// EncodeRows returns the JSON form of the rows of a table, one argument
// list per row.
func EncodeRows(rows []term.Tuple) ([][]TermJSON, error) {
	out := make([][]TermJSON, len(rows))

	for i, row := range rows {
		raw, err := EncodeAll(row.Elems())
		if err != nil {
			return nil, err
		}

		out[i] = raw
	}

	return out, nil
}

// DecodeRows rebuilds the rows of a table from their JSON forms.
func DecodeRows(raws [][]TermJSON) ([]term.Tuple, error) {
	out := make([]term.Tuple, len(raws))

	for i, raw := range raws {
		elems, err := DecodeAll(raw)
		if err != nil {
			return nil, err
		}

		out[i] = term.NewTuple(elems...)
	}

	return out, nil
}
