package store

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

func TestIDGeneratorMonotonic(t *testing.T) {
	g := NewIDGenerator()
	now := time.Now()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.New(now)
	}
	assert.True(t, sort.StringsAreSorted(ids), "ids within one millisecond must still sort")
	assert.Len(t, ids[0], 26)
	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestSnapshot(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	x, y := kb.MustSymbol("x"), kb.MustSymbol("y")
	fido, dog := kb.MustSymbol("fido"), kb.MustSymbol("dog")
	require.NoError(t, kb.AssertAll(
		kbs.NewEquals(kbs.NewAdd(x, y), kbs.Int(10)),
		kbs.NewEquals(x, kbs.Int(4)),
		fido.Relate(kb.Is, dog),
	))
	stats := kb.Solve()

	run := Snapshot(kb, stats, "inline")
	require.NoError(t, run.Validate())
	assert.Equal(t, "inline", run.Source)
	assert.Equal(t, stats.Passes, run.Passes)
	assert.Equal(t, stats.Transitions, run.Transitions)
	assert.Empty(t, run.Conflict)
	assert.Len(t, run.Assertions, 3)

	byName := make(map[string]SymbolValue)
	for _, s := range run.Symbols {
		byName[s.Name] = s
	}
	assert.NotContains(t, byName, "is", "class symbols are not snapshotted")
	assert.Equal(t, "6", byName["y"].Value)
	assert.True(t, byName["y"].Solved)
	assert.Equal(t, []string{"is(dog)"}, byName["fido"].Relations)
	assert.Equal(t, "?", byName["dog"].Value)
}

func TestSnapshotRecordsConflict(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	x := kb.MustSymbol("x")
	require.NoError(t, kb.AssertAll(kbs.NewEquals(x, kbs.Int(1)), kbs.NewEquals(x, kbs.Int(2))))

	run := Snapshot(kb, kb.Solve(), "conflict")
	assert.Contains(t, run.Conflict, "x = 1")
}

func TestRunValidate(t *testing.T) {
	assert.ErrorIs(t, Run{}.Validate(), internalerr.ErrInvalidInput)
	assert.ErrorIs(t, Run{ID: "a"}.Validate(), internalerr.ErrInvalidInput)
	assert.NoError(t, Run{ID: "a", CreatedAt: time.Now()}.Validate())
}

func TestRunCopy(t *testing.T) {
	r := Run{
		ID:      "a",
		Symbols: []SymbolValue{{Name: "x", Relations: []string{"is(dog)"}}},
	}
	c := r.Copy()
	c.Symbols[0].Relations[0] = "changed"
	c.Symbols[0].Name = "y"

	assert.Equal(t, "is(dog)", r.Symbols[0].Relations[0])
	assert.Equal(t, "x", r.Symbols[0].Name)
}
