package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	errs "fightgen/pkg/errors"
	"fightgen/pkg/logger"
	"fightgen/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(dir string) Paths {
	return Paths{
		Records:    filepath.Join(dir, "fights.json"),
		CSV:        filepath.Join(dir, "fights.csv"),
		Checkpoint: filepath.Join(dir, "checkpoint.json"),
	}
}

func newStore(t *testing.T, dir string) *Manager {
	t.Helper()
	m, err := NewManager(testPaths(dir), logger.NewNopLogger())
	require.NoError(t, err)
	return m
}

func fight(id int, a, b, winner, fact string) models.FightRecord {
	return models.FightRecord{
		ID:         id,
		CombatantA: models.Combatant{Species: a, Count: 1},
		CombatantB: models.Combatant{Species: b, Count: 2},
		Winner:     winner,
		Commentary: "It was over quickly, \"really\".",
		Fact:       fact,
	}
}

// commit mirrors what the orchestrator does after a successful batch.
func commit(t *testing.T, m *Manager, state models.State, records ...models.FightRecord) models.State {
	t.Helper()
	next := state.Clone()
	for _, r := range records {
		next.Apply(r)
	}
	n, err := m.Append(records)
	require.NoError(t, err)
	require.Equal(t, len(records), n)
	require.NoError(t, m.Checkpoint(next))
	return next
}

func TestLoadEmpty(t *testing.T) {
	m := newStore(t, filepath.Join(t.TempDir(), "output"))

	state, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, state.LastID)
	assert.Empty(t, state.Usage)
	assert.Empty(t, state.Facts)

	records, err := m.Records()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendCheckpointReload(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	state, err := m.Load()
	require.NoError(t, err)

	state = commit(t, m, state,
		fight(1, "lion", "zebra", models.WinnerA, "lion fact"),
		fight(2, "zebra", "hyena", models.WinnerB, "hyena fact"),
	)
	commit(t, m, state, fight(3, "lion", "owl", models.WinnerB, "owl fact"))

	reloaded, err := newStore(t, dir).Load()
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.LastID)
	assert.Equal(t, models.UsageIndex{"lion": 2, "zebra": 2, "hyena": 1, "owl": 1}, reloaded.Usage)
	assert.True(t, reloaded.Facts.Has("hyena", "hyena fact"))
	assert.True(t, reloaded.Facts.Has("owl", "owl fact"))

	file, err := os.Open(filepath.Join(dir, "fights.csv"))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, models.CSVHeader, rows[0])
	assert.Equal(t, []string{"3", "lion", "1", "owl", "2", "B", "It was over quickly, \"really\".", "owl fact"}, rows[3])
}

func TestCrashBetweenAppendAndCheckpoint(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	state, err := m.Load()
	require.NoError(t, err)

	state = commit(t, m, state, fight(1, "lion", "zebra", models.WinnerA, "f1"))

	// Batch 2 is appended but the process dies before the checkpoint.
	_, err = m.Append([]models.FightRecord{
		fight(2, "ant", "bee", models.WinnerB, "f2"),
		fight(3, "ant", "lion", models.WinnerA, "f3"),
	})
	require.NoError(t, err)

	reloaded, err := newStore(t, dir).Load()
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.LastID, "next id must be above the last appended record")
	assert.Equal(t, 2, reloaded.Usage["ant"])
	assert.Equal(t, 2, reloaded.Usage["lion"])
	assert.True(t, reloaded.Facts.Has("bee", "f2"))
	assert.True(t, reloaded.Facts.Has("ant", "f3"))
	assert.Equal(t, 1, state.LastID)
}

func TestAppendIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	_, err := m.Load()
	require.NoError(t, err)

	batch := []models.FightRecord{
		fight(1, "lion", "zebra", models.WinnerA, "f1"),
		fight(2, "lion", "zebra", models.WinnerA, "f2"),
	}
	n, err := m.Append(batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.Append(batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	records, err := m.Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	reloaded, err := newStore(t, dir).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.LastID)
}

func TestAppendRejectsNonIncreasingIDs(t *testing.T) {
	m := newStore(t, t.TempDir())
	_, err := m.Load()
	require.NoError(t, err)

	_, err = m.Append([]models.FightRecord{
		fight(2, "lion", "zebra", models.WinnerA, "f1"),
		fight(2, "lion", "zebra", models.WinnerA, "f2"),
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeValidation))

	records, err := m.Records()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendBeforeLoad(t *testing.T) {
	m := newStore(t, t.TempDir())
	_, err := m.Append([]models.FightRecord{fight(1, "lion", "zebra", models.WinnerA, "f1")})
	assert.True(t, errs.Is(err, errs.ErrorTypeStorage))
}

func TestCheckpointBehindRecordsIsRejected(t *testing.T) {
	m := newStore(t, t.TempDir())
	state, err := m.Load()
	require.NoError(t, err)
	_, err = m.Append([]models.FightRecord{fight(1, "lion", "zebra", models.WinnerA, "f1")})
	require.NoError(t, err)

	assert.Error(t, m.Checkpoint(state))
}

func TestCorruptCheckpointRebuildsIndexes(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	state, err := m.Load()
	require.NoError(t, err)
	commit(t, m, state,
		fight(1, "lion", "zebra", models.WinnerA, "f1"),
		fight(2, "lion", "owl", models.WinnerB, "f2"),
	)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint.json"), []byte("{broken"), 0644))

	reloaded, err := newStore(t, dir).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.LastID)
	assert.Equal(t, models.UsageIndex{"lion": 2, "zebra": 1, "owl": 1}, reloaded.Usage)
	assert.True(t, reloaded.Facts.Has("owl", "f2"))
}

func TestCorruptHistoryRecoversFromCSV(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	state, err := m.Load()
	require.NoError(t, err)
	commit(t, m, state,
		fight(1, "lion", "zebra", models.WinnerA, "f1"),
		fight(2, "lion", "owl", models.WinnerB, "f2"),
	)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fights.json"), []byte("[{\"fight_id\": 1,"), 0644))
	require.NoError(t, os.Remove(filepath.Join(dir, "checkpoint.json")))

	store := newStore(t, dir)
	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.LastID)
	assert.Equal(t, 2, reloaded.Usage["lion"])

	records, err := store.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "owl", records[1].CombatantB.Species)

	_, err = os.Stat(filepath.Join(dir, "fights.json.corrupt"))
	assert.NoError(t, err)
	again, err := readJSONRecords(filepath.Join(dir, "fights.json"))
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestCorruptHistoryNeverReusesIDsBeyondLaggingCSV(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	_, err := m.Load()
	require.NoError(t, err)

	first := []models.FightRecord{
		fight(1, "lion", "zebra", models.WinnerA, "f1"),
		fight(2, "lion", "owl", models.WinnerB, "f2"),
	}
	_, err = m.Append(first)
	require.NoError(t, err)
	csvPath := filepath.Join(dir, "fights.csv")
	csvAfterTwo, err := os.ReadFile(csvPath)
	require.NoError(t, err)

	_, err = m.Append([]models.FightRecord{
		fight(3, "bear", "wolf", models.WinnerA, "f3"),
		fight(4, "bear", "ant", models.WinnerA, "f4"),
	})
	require.NoError(t, err)

	// CSV view lost the second batch, the history was cut mid-record and no
	// checkpoint was ever written.
	require.NoError(t, os.WriteFile(csvPath, csvAfterTwo, 0644))
	historyPath := filepath.Join(dir, "fights.json")
	history, err := os.ReadFile(historyPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(historyPath, history[:len(history)-40], 0644))

	store := newStore(t, dir)
	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, state.LastID)

	records, err := store.Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	n, err := store.Append([]models.FightRecord{fight(5, "lion", "zebra", models.WinnerA, "f5")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err = store.Records()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 2, 5}, []int{records[0].ID, records[1].ID, records[2].ID})
}

func TestHighestIDIn(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"empty", "", 0},
		{"truncated", `[{"fight_id": 7, "fact": "x"}, {"fight_id": 9, "comm`, 9},
		{"stops at garbage", `[{"fight_id": 3}, {"fight_id": @@ 10}]`, 3},
		{"ignores string values", `[{"fact": "fight_id", "combatant_a": {"count": 40}}, {"fight_id": 2}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, highestIDIn([]byte(tt.data)))
		})
	}
}

func TestEmptyHistoryWithCSVRecoversFromCSV(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	state, err := m.Load()
	require.NoError(t, err)
	commit(t, m, state, fight(1, "lion", "zebra", models.WinnerA, "f1"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fights.json"), nil, 0644))
	require.NoError(t, os.Remove(filepath.Join(dir, "checkpoint.json")))

	reloaded, err := newStore(t, dir).Load()
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.LastID)

	maxID, err := scanCSVMaxID(filepath.Join(dir, "fights.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, maxID)
}

func TestUnreadableHistoryFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fights.json"), []byte("not json"), 0644))

	_, err := newStore(t, dir).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHistoryUnreadable)
	assert.True(t, errs.Is(err, errs.ErrorTypeStorage))
}

func TestLoadRepairsLaggingCSV(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	state, err := m.Load()
	require.NoError(t, err)
	commit(t, m, state,
		fight(1, "lion", "zebra", models.WinnerA, "f1"),
		fight(2, "lion", "owl", models.WinnerB, "f2"),
	)
	require.NoError(t, os.Remove(filepath.Join(dir, "fights.csv")))

	_, err = newStore(t, dir).Load()
	require.NoError(t, err)

	maxID, err := scanCSVMaxID(filepath.Join(dir, "fights.csv"))
	require.NoError(t, err)
	assert.Equal(t, 2, maxID)
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	m := newStore(t, dir)
	state, err := m.Load()
	require.NoError(t, err)
	commit(t, m, state, fight(1, "lion", "zebra", models.WinnerA, "f1"))

	require.NoError(t, m.Reset())

	for _, name := range []string{"fights.json.backup", "fights.csv.backup", "checkpoint.json.backup"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	fresh, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.LastID)
	assert.Empty(t, fresh.Usage)
}
