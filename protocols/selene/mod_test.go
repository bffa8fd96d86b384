package selene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sbaloglu/proverif-codes/engine"
	"github.com/sbaloglu/proverif-codes/protocols"
)

func TestNewProgram(t *testing.T) {
	program, err := NewProgram()
	require.NoError(t, err)

	require.Len(t, program.Templates(), 7)
	require.Len(t, program.Queries(), 3)

	tmpl, found := program.Template("CorruptNotifier")
	require.True(t, found)
	require.True(t, tmpl.Replicated)
}

func TestModel_Honest(t *testing.T) {
	sess := engine.NewSession(compileModel(t))

	res, err := sess.Replay(loadScript(t, "honest.yaml"))
	require.NoError(t, err)

	require.Equal(t, uint64(47), res.Steps)
	require.Nil(t, res.Inadmissible)

	require.Len(t, res.Log, 6)
	require.Equal(t, "EKey(pk(skE#0))@4", res.Log[0].String())
	require.Equal(t, "Voted(hash(id#1),candA)@13", res.Log[1].String())
	require.Equal(t, "Assigned(hash(id#1),trk#4)@31", res.Log[2].String())
	require.Equal(t, "Tallied(trk#4,candA)@37", res.Log[3].String())
	require.Equal(t, "Notified(hash(id#1),trk#4)@41", res.Log[4].String())
	require.Equal(t, "Verified(hash(id#1),candA)@46", res.Log[5].String())

	require.Len(t, res.Relations["BBcast"], 1)
	require.Len(t, res.Relations["BBtrk"], 1)
	require.Len(t, res.Relations["BBmix"], 1)
	require.Len(t, res.Relations["BBtally"], 1)
	require.Len(t, res.Relations["TTrk"], 1)

	// Vote injection, ballot broadcast, ballot echo to the server. The
	// tracker opening travels on the private channel and stays out of the
	// transcript.
	require.Len(t, res.Transcript, 3)

	require.Len(t, res.Knowledge, 11)

	require.Len(t, res.Instances, 6)
	for _, inst := range res.Instances {
		require.Equal(t, engine.StatusDone, inst.Status)
	}

	verdicts, err := sess.EvaluateQueries()
	require.NoError(t, err)
	require.Len(t, verdicts, 3)

	for name, verdict := range verdicts {
		require.True(t, verdict.Holds, name)
	}
}

// The corrupt notifier opens the voter's commitment to a tracker the
// attacker planted on the tallied board. The opening checks out, so the
// voter verifies a row carrying a vote it never cast.
func TestModel_Swap(t *testing.T) {
	sess := engine.NewSession(compileModel(t))

	res, err := sess.Replay(loadScript(t, "swap.yaml"))
	require.NoError(t, err)

	require.Equal(t, uint64(50), res.Steps)
	require.Nil(t, res.Inadmissible)

	require.Len(t, res.Log, 6)
	require.Equal(t, "Tallied(trk#4,candA)@37", res.Log[3].String())
	require.Equal(t, "Misled(hash(id#1),t9#7)@44", res.Log[4].String())
	require.Equal(t, "Verified(hash(id#1),candB)@49", res.Log[5].String())

	require.Len(t, res.Relations["BBtally"], 2)

	verdicts, err := sess.EvaluateQueries()
	require.NoError(t, err)

	verdict := verdicts["TRK"]
	require.False(t, verdict.Holds)
	require.NotNil(t, verdict.Counter)
	require.Equal(t, "Verified(hash(id#1),candB)@49", verdict.Counter.String())

	require.True(t, verdicts["AGREE"].Holds)
	require.True(t, verdicts["ONETRK"].Holds)
}

// A ballot without a matching proof never reaches the board: the proof
// check does not reduce and the server stops.
func TestModel_BadProof(t *testing.T) {
	sess := engine.NewSession(compileModel(t))

	for i := 0; i < 5; i++ {
		require.NoError(t, sess.Execute(engine.RunStep{Instance: 0}))
	}

	require.NoError(t, sess.Execute(engine.SpawnStep{Template: "Server"}))

	bogus := engine.Group{Elems: []engine.Recipe{
		engine.Pub{Label: protocols.CandA},
		engine.Pub{Label: protocols.CandA},
		engine.Pub{Label: protocols.CandA},
	}}

	require.NoError(t, sess.Execute(engine.RunStep{Instance: 1, Message: bogus}))
	require.NoError(t, sess.Execute(engine.RunStep{Instance: 1}))

	err := sess.Execute(engine.RunStep{Instance: 1})
	require.EqualError(t, err, "instance 1 is failed")

	res := sess.Result()
	require.Empty(t, res.Relations["BBcast"])
	require.Equal(t, engine.StatusFailed, res.Instances[1].Status)
}

// -----------------------------------------------------------------------------
// Utility functions

func compileModel(t *testing.T) *engine.Program {
	program, err := NewProgram()
	require.NoError(t, err)

	return program
}

func loadScript(t *testing.T, name string) engine.Script {
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	script, err := engine.ParseScript(data)
	require.NoError(t, err)

	return script
}
