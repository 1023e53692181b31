package checkpoint

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fightgen/pkg/logger"
	"fightgen/pkg/models"
)

func sampleState() models.State {
	s := models.NewState()
	s.Apply(models.FightRecord{
		ID:         1,
		CombatantA: models.Combatant{Species: "lion", Count: 1},
		CombatantB: models.Combatant{Species: "zebra", Count: 3},
		Winner:     models.WinnerA,
		Commentary: "Quick work.",
		Fact:       "Lions sleep up to 20 hours a day.",
	})
	return s
}

func TestCheckpointManager(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "checkpoint.json")

	t.Run("LoadMissing", func(t *testing.T) {
		mgr := NewManager(path, logger.NewNopLogger())
		cp, err := mgr.Load()
		if err != nil {
			t.Fatalf("Expected no error for missing checkpoint, got %v", err)
		}
		if cp != nil {
			t.Fatalf("Expected nil checkpoint, got %+v", cp)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist")
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		mgr := NewManager(path, logger.NewNopLogger())
		if err := mgr.Save(FromState(sampleState())); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}

		state := loaded.State()
		if state.LastID != 1 {
			t.Errorf("Expected last_id 1, got %d", state.LastID)
		}
		if state.Usage["zebra"] != 1 {
			t.Errorf("Expected zebra usage 1, got %d", state.Usage["zebra"])
		}
		if !state.Facts.Has("lion", "Lions sleep up to 20 hours a day.") {
			t.Error("Expected lion fact to survive round trip")
		}
		if loaded.Version != CurrentVersion {
			t.Errorf("Expected version %d, got %d", CurrentVersion, loaded.Version)
		}
		if loaded.CreatedAt.IsZero() || loaded.UpdatedAt.IsZero() {
			t.Error("Expected timestamps to be set")
		}
	})

	t.Run("WireFormat", func(t *testing.T) {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read checkpoint: %v", err)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("Checkpoint is not a JSON object: %v", err)
		}
		for _, key := range []string{"last_id", "species_usage", "used_facts"} {
			if _, ok := raw[key]; !ok {
				t.Errorf("Expected key %q in checkpoint", key)
			}
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw["used_facts"]); err != nil {
			t.Fatalf("Failed to compact used_facts: %v", err)
		}
		if compact.String() != `{"lion":["Lions sleep up to 20 hours a day."]}` {
			t.Errorf("Unexpected used_facts encoding: %s", compact.String())
		}
	})

	t.Run("CreatedAtIsPreserved", func(t *testing.T) {
		mgr := NewManager(path, logger.NewNopLogger())
		first, err := mgr.Load()
		if err != nil || first == nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if err := mgr.Save(FromState(sampleState())); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}
		second, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if !second.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("Expected created_at %v, got %v", first.CreatedAt, second.CreatedAt)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		badPath := filepath.Join(tempDir, "bad.json")
		if err := os.WriteFile(badPath, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		mgr := NewManager(badPath, logger.NewNopLogger())
		if _, err := mgr.Load(); err == nil {
			t.Error("Expected error for corrupt checkpoint")
		}
	})

	t.Run("BackupAndDelete", func(t *testing.T) {
		mgr := NewManager(path, logger.NewNopLogger())
		if err := mgr.BackupCheckpoint(); err != nil {
			t.Fatalf("Failed to back up checkpoint: %v", err)
		}
		if _, err := os.Stat(path + ".backup"); err != nil {
			t.Errorf("Expected backup file: %v", err)
		}

		info, err := mgr.GetCheckpointInfo()
		if err != nil {
			t.Fatalf("Failed to get info: %v", err)
		}
		if info == nil || info.LastID != 1 || info.Species != 2 || info.Facts != 1 {
			t.Errorf("Unexpected checkpoint info: %+v", info)
		}
		if info != nil && info.UpdatedAt.Before(info.CreatedAt) {
			t.Errorf("Expected UpdatedAt after CreatedAt: %+v", info)
		}

		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to be deleted")
		}
		if err := mgr.Delete(); err != nil {
			t.Errorf("Deleting twice should not fail: %v", err)
		}
	})
}
