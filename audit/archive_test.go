package audit_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sbaloglu/proverif-codes/audit"
	_ "github.com/sbaloglu/proverif-codes/audit/json"
	"github.com/sbaloglu/proverif-codes/engine"
	"github.com/sbaloglu/proverif-codes/internal/testing/fake"
	sjson "github.com/sbaloglu/proverif-codes/serde/json"
	"github.com/sbaloglu/proverif-codes/term"
	"github.com/sbaloglu/proverif-codes/trace"
)

func TestNewRecord(t *testing.T) {
	res := engine.Result{
		Script: "honest",
		Steps:  20,
		Log:    trace.Log{{Name: "EKey", Args: []term.Term{term.True()}, Time: 3}},
	}

	rec := audit.NewRecord("basic", res, map[string]trace.Verdict{
		"IV1": {Query: "IV1", Holds: true},
	})

	require.Equal(t, "basic", rec.Model)
	require.Equal(t, "honest", rec.Script)
	require.Empty(t, rec.Inadmissible)
	require.True(t, rec.Verdicts["IV1"].Holds)

	res.Inadmissible = &trace.Violation{
		Restriction: "SingleKey",
		Matched:     []trace.Occurrence{{Name: "EKey", Time: 3}},
	}

	rec = audit.NewRecord("basic", res, nil)
	require.Equal(t, "restriction 'SingleKey' violated by EKey()@3", rec.Inadmissible)
}

func TestArchive_Save_Get(t *testing.T) {
	archive, err := audit.NewArchive(filepath.Join(t.TempDir(), "audit.db"), sjson.NewContext())
	require.NoError(t, err)

	defer archive.Close()

	rec := audit.Record{
		Model: "basic",
		Steps: 20,
		Log:   trace.Log{{Name: "EKey", Args: []term.Term{term.True()}, Time: 3}},
	}

	id, err := archive.Save(rec)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := archive.Get("basic", id)
	require.NoError(t, err)
	require.Equal(t, "basic", stored.Model)
	require.Equal(t, uint64(20), stored.Steps)
	require.Equal(t, "EKey(true)@3", stored.Log[0].String())

	_, err = archive.Save(audit.Record{})
	require.EqualError(t, err, "record has no model")

	_, err = archive.Get("basic", "ghost")
	require.EqualError(t, err, "couldn't read record: record 'ghost' not found")

	_, err = archive.Get("ghost", id)
	require.EqualError(t, err, "couldn't read record: bucket 'ghost' not found")
}

func TestArchive_Save_BadContext(t *testing.T) {
	archive, err := audit.NewArchive(filepath.Join(t.TempDir(), "audit.db"), fake.NewBadContext())
	require.NoError(t, err)

	defer archive.Close()

	_, err = archive.Save(audit.Record{Model: "basic"})
	require.EqualError(t, err, "couldn't serialize record: "+
		"couldn't encode record: format 'BAD_TYPE' is not implemented")
}

func TestArchive_List(t *testing.T) {
	archive, err := audit.NewArchive(filepath.Join(t.TempDir(), "audit.db"), sjson.NewContext())
	require.NoError(t, err)

	defer archive.Close()

	_, err = archive.List("basic")
	require.EqualError(t, err, "couldn't list records: bucket 'basic' not found")

	first, err := archive.Save(audit.Record{Model: "basic"})
	require.NoError(t, err)

	second, err := archive.Save(audit.Record{Model: "basic"})
	require.NoError(t, err)

	ids, err := archive.List("basic")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Contains(t, ids, first)
	require.Contains(t, ids, second)
}

func TestNewArchive_BadPath(t *testing.T) {
	_, err := audit.NewArchive(t.TempDir(), sjson.NewContext())
	require.Error(t, err)
}
