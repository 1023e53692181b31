package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"fightgen/internal/atomicfile"
	"fightgen/pkg/logger"
	"fightgen/pkg/models"
)

// CurrentVersion is written into every checkpoint file.
const CurrentVersion = 1

// Checkpoint is the durable snapshot of generation state
type Checkpoint struct {
	LastID    int               `json:"last_id"`
	Usage     models.UsageIndex `json:"species_usage"`
	Facts     models.FactIndex  `json:"used_facts"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Version   int               `json:"version"`
}

// FromState builds a checkpoint from in-memory state
func FromState(s models.State) *Checkpoint {
	return &Checkpoint{
		LastID:  s.LastID,
		Usage:   s.Usage,
		Facts:   s.Facts,
		Version: CurrentVersion,
	}
}

// State converts the checkpoint back into in-memory state
func (c *Checkpoint) State() models.State {
	s := models.State{LastID: c.LastID, Usage: c.Usage, Facts: c.Facts}
	if s.Usage == nil {
		s.Usage = make(models.UsageIndex)
	}
	if s.Facts == nil {
		s.Facts = make(models.FactIndex)
	}
	return s
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	createdAt      time.Time
}

// NewManager creates a checkpoint manager for the file at path
func NewManager(path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		checkpointPath: path,
		logger:         log,
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.LastID < 0 {
		return nil, fmt.Errorf("failed to decode checkpoint: negative last_id %d", checkpoint.LastID)
	}

	if !checkpoint.CreatedAt.IsZero() {
		m.createdAt = checkpoint.CreatedAt
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"last_id":    checkpoint.LastID,
		"species":    len(checkpoint.Usage),
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	now := time.Now()
	if m.createdAt.IsZero() {
		m.createdAt = now
	}
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = m.createdAt
	}
	checkpoint.UpdatedAt = now
	if checkpoint.Version == 0 {
		checkpoint.Version = CurrentVersion
	}
	if checkpoint.Usage == nil {
		checkpoint.Usage = make(models.UsageIndex)
	}
	if checkpoint.Facts == nil {
		checkpoint.Facts = make(models.FactIndex)
	}

	if err := atomicfile.WriteJSON(m.checkpointPath, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"last_id": checkpoint.LastID,
		"species": len(checkpoint.Usage),
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.createdAt = time.Time{}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Info summarises a stored checkpoint
type Info struct {
	LastID    int
	Species   int
	Facts     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetCheckpointInfo returns a summary of the checkpoint, or nil if none exists
func (m *Manager) GetCheckpointInfo() (*Info, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return &Info{
		LastID:    checkpoint.LastID,
		Species:   len(checkpoint.Usage),
		Facts:     checkpoint.Facts.Count(),
		CreatedAt: checkpoint.CreatedAt,
		UpdatedAt: checkpoint.UpdatedAt,
	}, nil
}

// BackupCheckpoint creates a backup of the current checkpoint
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	if err := atomicfile.Copy(m.checkpointPath, m.checkpointPath+".backup"); err != nil {
		return fmt.Errorf("failed to back up checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}
