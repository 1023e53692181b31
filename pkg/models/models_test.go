package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id int, a, b, winner, fact string) FightRecord {
	return FightRecord{
		ID:         id,
		CombatantA: Combatant{Species: a, Count: 1},
		CombatantB: Combatant{Species: b, Count: 2},
		Winner:     winner,
		Commentary: "a fight",
		Fact:       fact,
	}
}

func TestStateApply(t *testing.T) {
	s := NewState()

	assert.True(t, s.Apply(record(1, "lion", "zebra", WinnerA, "lions roar")))
	assert.True(t, s.Apply(record(2, "zebra", "hyena", WinnerA, "zebras kick")))
	assert.False(t, s.Apply(record(3, "lion", "hyena", WinnerA, "lions roar")))

	assert.Equal(t, 3, s.LastID)
	assert.Equal(t, UsageIndex{"lion": 2, "zebra": 2, "hyena": 2}, s.Usage)
	assert.True(t, s.Facts.Has("lion", "lions roar"))
	assert.True(t, s.Facts.Has("zebra", "zebras kick"))
	assert.False(t, s.Facts.Has("hyena", "lions roar"))
	assert.Equal(t, 2, s.Facts.Count())
}

func TestStateCloneIsIndependent(t *testing.T) {
	s := NewState()
	s.Apply(record(1, "lion", "zebra", WinnerB, "stripes"))

	c := s.Clone()
	c.Apply(record(2, "lion", "owl", WinnerB, "owls hoot"))

	assert.Equal(t, 1, s.LastID)
	assert.Equal(t, 1, s.Usage["lion"])
	assert.False(t, s.Facts.Has("owl", "owls hoot"))
	assert.Equal(t, 2, c.Usage["lion"])
}

func TestWinnerSpecies(t *testing.T) {
	tests := []struct {
		winner string
		want   string
	}{
		{WinnerA, "lion"},
		{WinnerB, "zebra"},
		{"C", ""},
	}
	for _, tt := range tests {
		t.Run(tt.winner, func(t *testing.T) {
			assert.Equal(t, tt.want, record(1, "lion", "zebra", tt.winner, "f").WinnerSpecies())
		})
	}
}

func TestUsageIndexTop(t *testing.T) {
	u := UsageIndex{"lion": 3, "zebra": 5, "ant": 3, "owl": 1}

	top := u.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, SpeciesCount{"zebra", 5}, top[0])
	assert.Equal(t, SpeciesCount{"ant", 3}, top[1])
	assert.Equal(t, SpeciesCount{"lion", 3}, top[2])
	assert.Len(t, u.Top(-1), 4)
	assert.Equal(t, 12, u.Total())
}

func TestFactIndexJSONIsSorted(t *testing.T) {
	f := FactIndex{}
	f.Add("lion", "b fact")
	f.Add("lion", "a fact")

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lion":["a fact","b fact"]}`, string(data))

	var back FactIndex
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Has("lion", "a fact"))
	assert.True(t, back.Has("lion", "b fact"))
}
