package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"fightgen/internal/atomicfile"
	"fightgen/pkg/checkpoint"
	"fightgen/pkg/config"
	errs "fightgen/pkg/errors"
	"fightgen/pkg/logger"
	"fightgen/pkg/models"
)

// ErrHistoryUnreadable is returned by Load when neither the JSON history nor
// the CSV view can be read, so the next free id cannot be determined.
var ErrHistoryUnreadable = errors.New("record history is unreadable")

var errEmptyHistory = errors.New("record history is empty")

// Paths locates the files managed by the store
type Paths struct {
	Records    string
	CSV        string
	Checkpoint string
}

// PathsFromConfig resolves the store files inside the output directory
func PathsFromConfig(o config.OutputConfig) Paths {
	return Paths{
		Records:    o.Path(o.RecordsFile),
		CSV:        o.Path(o.CSVFile),
		Checkpoint: o.Path(o.CheckpointFile),
	}
}

// Manager is the record store: it owns the JSON history, the CSV view and
// the checkpoint, and reconciles them on load.
type Manager struct {
	paths       Paths
	checkpoints *checkpoint.Manager
	logger      logger.Logger

	mu      sync.RWMutex
	records []models.FightRecord
	maxID   int
	loaded  bool
}

// NewManager creates a new record store
func NewManager(paths Paths, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	for _, p := range []string{paths.Records, paths.CSV, paths.Checkpoint} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeStorage, "failed to create output directory", err)
		}
	}

	return &Manager{
		paths:       paths,
		checkpoints: checkpoint.NewManager(paths.Checkpoint, log),
		logger:      log.WithField("component", "storage"),
	}, nil
}

// Paths returns the files managed by the store
func (m *Manager) Paths() Paths {
	return m.paths
}

// Load reconstructs generation state from disk.
//
// The next id is max(checkpoint last_id, highest record id). Indexes come from
// the checkpoint, with any records newer than it folded in; without a usable
// checkpoint they are rebuilt from the full history.
func (m *Manager) Load() (models.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, err := m.checkpoints.Load()
	if err != nil {
		m.logger.WithError(err).Warn("Checkpoint unreadable, rebuilding indexes from record history")
		cp = nil
	}

	records, floor, err := m.loadHistory()
	if err != nil {
		return models.State{}, err
	}

	maxRecordID := floor
	for _, r := range records {
		if r.ID > maxRecordID {
			maxRecordID = r.ID
		}
	}

	var state models.State
	folded := 0
	if cp != nil {
		state = cp.State()
		for _, r := range records {
			if r.ID > cp.LastID {
				state.Apply(r)
				folded++
			}
		}
	} else {
		state = models.NewState()
		for _, r := range records {
			state.Apply(r)
		}
		folded = len(records)
	}

	if maxRecordID > state.LastID {
		state.LastID = maxRecordID
	}

	m.records = records
	m.maxID = maxRecordID
	m.loaded = true

	m.logger.InfoWithFields("Record store loaded", map[string]interface{}{
		"records":        len(records),
		"last_id":        state.LastID,
		"has_checkpoint": cp != nil,
		"folded":         folded,
	})

	return state, nil
}

// loadHistory reads the JSON history, falling back to the CSV view when the
// JSON file is corrupt or missing. The JSON file is rewritten from the CSV in
// that case, and the CSV is rewritten when it lags behind the JSON.
//
// The returned floor is the highest fight id still readable in a corrupt
// history. The CSV view may lag behind it, and those ids must not be reused.
func (m *Manager) loadHistory() ([]models.FightRecord, int, error) {
	data, jsonErr := os.ReadFile(m.paths.Records)
	var records []models.FightRecord
	if jsonErr == nil {
		records, jsonErr = decodeRecords(data, m.paths.Records)
	}
	if jsonErr == nil {
		if err := m.syncCSV(records); err != nil {
			m.logger.WithError(err).Warn("Failed to repair CSV view")
		}
		return records, 0, nil
	}

	jsonMissing := errors.Is(jsonErr, os.ErrNotExist)
	jsonEmpty := errors.Is(jsonErr, errEmptyHistory)
	csvRecords, csvErr := readCSVRecords(m.paths.CSV)
	switch {
	case csvErr == nil:
	case errors.Is(csvErr, os.ErrNotExist) && (jsonMissing || jsonEmpty):
		return nil, 0, nil
	default:
		return nil, 0, errs.Wrap(errs.ErrorTypeStorage, ErrHistoryUnreadable.Error(),
			errors.Join(ErrHistoryUnreadable, jsonErr, csvErr))
	}

	floor := 0
	if !jsonMissing {
		floor = highestIDIn(data)
		m.logger.WithError(jsonErr).WarnWithFields("Record history corrupt, recovering from CSV view", map[string]interface{}{
			"highest_readable_id": floor,
		})
		if err := os.Rename(m.paths.Records, m.paths.Records+".corrupt"); err != nil {
			return nil, 0, errs.Wrap(errs.ErrorTypeStorage, "failed to set aside corrupt history", err)
		}
	}
	if err := atomicfile.WriteJSON(m.paths.Records, nonNil(csvRecords)); err != nil {
		return nil, 0, errs.Wrap(errs.ErrorTypeStorage, "failed to rebuild record history", err)
	}
	return csvRecords, floor, nil
}

// highestIDIn scans damaged history bytes for the largest fight_id value.
// Scanning stops at the first syntax error.
func highestIDIn(data []byte) int {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	maxID, afterKey := 0, false
	for {
		tok, err := dec.Token()
		if err != nil {
			return maxID
		}
		if afterKey {
			if n, ok := tok.(json.Number); ok {
				if id, err := strconv.Atoi(n.String()); err == nil && id > maxID {
					maxID = id
				}
			}
		}
		key, isString := tok.(string)
		afterKey = isString && key == "fight_id"
	}
}

func (m *Manager) syncCSV(records []models.FightRecord) error {
	csvMax, err := scanCSVMaxID(m.paths.CSV)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.WithError(err).Warn("CSV view unreadable")
		csvMax = -1
	}
	want := 0
	for _, r := range records {
		if r.ID > want {
			want = r.ID
		}
	}
	if csvMax == want && err == nil {
		return nil
	}
	if len(records) == 0 && errors.Is(err, os.ErrNotExist) {
		return nil
	}

	m.logger.InfoWithFields("Rewriting CSV view from record history", map[string]interface{}{
		"csv_max_id":  csvMax,
		"json_max_id": want,
	})
	return atomicfile.Write(m.paths.CSV, func(w io.Writer) error {
		return writeCSV(w, records, true)
	})
}

// Append persists records whose ids are above the highest stored id and
// returns how many were written. Replaying an already persisted batch is a
// no-op. The JSON history is written first and is authoritative.
func (m *Manager) Append(records []models.FightRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return 0, errs.New(errs.ErrorTypeStorage, "record store used before Load")
	}

	fresh := make([]models.FightRecord, 0, len(records))
	last := m.maxID
	for _, r := range records {
		if r.ID <= m.maxID {
			m.logger.DebugWithFields("Skipping already persisted record", map[string]interface{}{"fight_id": r.ID})
			continue
		}
		if r.ID <= last {
			return 0, errs.New(errs.ErrorTypeValidation, fmt.Sprintf("fight ids must be strictly increasing, got %d after %d", r.ID, last))
		}
		last = r.ID
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	all := make([]models.FightRecord, 0, len(m.records)+len(fresh))
	all = append(all, m.records...)
	all = append(all, fresh...)

	if err := atomicfile.WriteJSON(m.paths.Records, all); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, "failed to write record history", err)
	}
	m.records = all
	m.maxID = last

	if err := appendCSV(m.paths.CSV, fresh); err != nil {
		// The history holds the records; the CSV view is repaired on the next Load.
		return len(fresh), errs.Wrap(errs.ErrorTypeStorage, "failed to append CSV view", err)
	}

	m.logger.DebugWithFields("Records appended", map[string]interface{}{
		"count":   len(fresh),
		"last_id": last,
	})
	return len(fresh), nil
}

// Checkpoint persists state. It must only be called after the records it
// accounts for have been appended.
func (m *Manager) Checkpoint(state models.State) error {
	m.mu.RLock()
	maxID := m.maxID
	m.mu.RUnlock()

	if state.LastID < maxID {
		return errs.New(errs.ErrorTypeStorage, fmt.Sprintf("checkpoint last_id %d is behind stored records (%d)", state.LastID, maxID))
	}
	if err := m.checkpoints.Save(checkpoint.FromState(state)); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "failed to checkpoint", err)
	}
	return nil
}

// Records returns a copy of the loaded record history
func (m *Manager) Records() ([]models.FightRecord, error) {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		out := make([]models.FightRecord, len(m.records))
		copy(out, m.records)
		return out, nil
	}
	m.mu.RUnlock()

	if _, err := m.Load(); err != nil {
		return nil, err
	}
	return m.Records()
}

// Reset backs up and removes all store files so generation starts from id 1.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkpoints.BackupCheckpoint(); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "failed to back up checkpoint", err)
	}
	if err := m.checkpoints.Delete(); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "failed to delete checkpoint", err)
	}
	for _, p := range []string{m.paths.Records, m.paths.CSV} {
		if err := atomicfile.Copy(p, p+".backup"); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, "failed to back up history", err)
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.ErrorTypeStorage, "failed to remove history", err)
		}
	}

	m.records = nil
	m.maxID = 0
	m.loaded = false
	m.logger.Info("Record store reset")
	return nil
}

func nonNil(records []models.FightRecord) []models.FightRecord {
	if records == nil {
		return []models.FightRecord{}
	}
	return records
}

func readJSONRecords(path string) ([]models.FightRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeRecords(data, path)
}

func decodeRecords(data []byte, path string) ([]models.FightRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), errEmptyHistory)
	}

	var records []models.FightRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

func recordRow(r models.FightRecord) []string {
	return []string{
		strconv.Itoa(r.ID),
		r.CombatantA.Species,
		strconv.Itoa(r.CombatantA.Count),
		r.CombatantB.Species,
		strconv.Itoa(r.CombatantB.Count),
		r.Winner,
		r.Commentary,
		r.Fact,
	}
}

func parseRow(row []string) (models.FightRecord, error) {
	if len(row) != len(models.CSVHeader) {
		return models.FightRecord{}, fmt.Errorf("expected %d columns, got %d", len(models.CSVHeader), len(row))
	}
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return models.FightRecord{}, fmt.Errorf("invalid fight_id %q", row[0])
	}
	countA, err := strconv.Atoi(row[2])
	if err != nil {
		return models.FightRecord{}, fmt.Errorf("invalid combatant_a_count %q", row[2])
	}
	countB, err := strconv.Atoi(row[4])
	if err != nil {
		return models.FightRecord{}, fmt.Errorf("invalid combatant_b_count %q", row[4])
	}
	return models.FightRecord{
		ID:         id,
		CombatantA: models.Combatant{Species: row[1], Count: countA},
		CombatantB: models.Combatant{Species: row[3], Count: countB},
		Winner:     row[5],
		Commentary: row[6],
		Fact:       row[7],
	}, nil
}

func writeCSV(w io.Writer, records []models.FightRecord, header bool) error {
	writer := csv.NewWriter(w)
	if header {
		if err := writer.Write(models.CSVHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := writer.Write(recordRow(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func appendCSV(path string, records []models.FightRecord) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	if err := writeCSV(file, records, info.Size() == 0); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readCSVRecords(path string) ([]models.FightRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]models.FightRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		r, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s line %d: %w", filepath.Base(path), i+2, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func scanCSVMaxID(path string) (int, error) {
	records, err := readCSVRecords(path)
	if err != nil {
		return 0, err
	}
	maxID := 0
	for _, r := range records {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID, nil
}
