package json

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sbaloglu/proverif-codes/audit"
	"github.com/sbaloglu/proverif-codes/internal/testing/fake"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
)

func TestRecordFormat_Encode(t *testing.T) {
	format := recordFormat{}

	rec := makeRecord()

	data, err := format.Encode(fake.NewContext(), rec)
	require.NoError(t, err)
	require.Contains(t, string(data), `"model":"basic"`)
	require.Contains(t, string(data), `"EKey"`)

	_, err = format.Encode(fake.NewContext(), fake.Message{})
	require.EqualError(t, err, "unsupported message of type 'fake.Message'")

	_, err = format.Encode(fake.NewBadContext(), rec)
	require.EqualError(t, err, "couldn't marshal: fake error")

	bad := rec
	bad.Log = trace.Log{{Name: "Bad", Args: []term.Term{nil}}}
	_, err = format.Encode(fake.NewContext(), bad)
	require.Error(t, err)

	bad = rec
	bad.Relations = map[string][]term.Tuple{"BB": {term.NewTuple(nil)}}
	_, err = format.Encode(fake.NewContext(), bad)
	require.Error(t, err)
}

func TestRecordFormat_Decode(t *testing.T) {
	format := recordFormat{}

	data, err := format.Encode(fake.NewContext(), makeRecord())
	require.NoError(t, err)

	m, err := format.Decode(fake.NewContext(), data)
	require.NoError(t, err)

	rec, ok := m.(audit.Record)
	require.True(t, ok)
	require.Equal(t, "basic", rec.Model)
	require.Equal(t, uint64(20), rec.Steps)
	require.Equal(t, "EKey(pk(skE#0))@3", rec.Log[0].String())
	require.Len(t, rec.Relations["BBkey"], 1)
	require.True(t, rec.Verdicts["IV1"].Holds)

	_, err = format.Decode(fake.NewBadContext(), data)
	require.EqualError(t, err, "couldn't unmarshal: fake error")

	_, err = format.Decode(fake.NewContext(), []byte(`{"log":[{"args":[{}]}]}`))
	require.Error(t, err)

	_, err = format.Decode(fake.NewContext(),
		[]byte(`{"relations":{"BB":[[{}]]}}`))
	require.Error(t, err)

	_, err = format.Decode(fake.NewContext(),
		[]byte(`{"verdicts":{"Q":{"counter":[{"args":[{}]}]}}}`))
	require.Error(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeRecord() audit.Record {
	key := term.NewFunc("pk", term.NewName("skE", 0))

	return audit.Record{
		ID:    "rec-1",
		Model: "basic",
		Steps: 20,
		Log: trace.Log{
			{Name: "EKey", Args: []term.Term{key}, Time: 3},
		},
		Relations: map[string][]term.Tuple{
			"BBkey": {term.NewTuple(key)},
		},
		Verdicts: map[string]trace.Verdict{
			"IV1": {Query: "IV1", Holds: true},
		},
	}
}
