package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"douyindl/pkg/logger"
	"douyindl/pkg/media"
	"douyindl/pkg/naming"
)

const (
	appDir         = "douyindl"
	checkpointsDir = "checkpoints"
	version        = 1
)

// Checkpoint is the residual state of a download batch: the tasks that
// were still failing when the batch ended.
type Checkpoint struct {
	RunID      string       `json:"run_id"`
	SecUserID  string       `json:"sec_user_id"`
	Nickname   string       `json:"nickname"`
	UserFolder string       `json:"user_folder"`
	Failed     []media.Task `json:"failed"`
	TotalTasks int          `json:"total_tasks"`
	Succeeded  int          `json:"succeeded"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Version    int          `json:"version"`
}

// Manager handles checkpoint operations for one user
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager storing its file under the XDG state directory
func NewManager(secUserID string) (*Manager, error) {
	return NewManagerInDir(filepath.Join(xdg.StateHome, appDir, checkpointsDir), secUserID)
}

// NewManagerInDir creates a manager storing its file in dir
func NewManagerInDir(dir, secUserID string) (*Manager, error) {
	if secUserID == "" {
		return nil, fmt.Errorf("sec_user_id is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	name := naming.Sanitize(secUserID, naming.FileNameMax)
	return &Manager{
		checkpointPath: filepath.Join(dir, name+".checkpoint.json"),
		logger:         logger.GetLogger(),
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a checkpoint for a new batch with a fresh run ID
func (m *Manager) Create(secUserID, nickname, userFolder string) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		RunID:      uuid.NewString(),
		SecUserID:  secUserID,
		Nickname:   nickname,
		UserFolder: userFolder,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    version,
	}
}

// Load reads the checkpoint; it returns nil when none exists
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
	if checkpoint.Version > version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", checkpoint.Version, version)
	}

	m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id": checkpoint.RunID,
		"failed": len(checkpoint.Failed),
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id": checkpoint.RunID,
		"failed": len(checkpoint.Failed),
		"path":   m.checkpointPath,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Record stores the residual failures of a batch. With no failures left the
// checkpoint is removed.
func (m *Manager) Record(checkpoint *Checkpoint, failed []media.Task, total, succeeded int) error {
	checkpoint.Failed = failed
	checkpoint.TotalTasks = total
	checkpoint.Succeeded = succeeded

	if len(failed) == 0 {
		if m.Exists() {
			m.logger.Info("All tasks succeeded, checkpoint cleared")
		}
		return m.Delete()
	}

	if err := m.BackupCheckpoint(); err != nil {
		m.logger.WithError(err).Warn("Failed to back up previous checkpoint")
	}
	return m.Save(checkpoint)
}

// GetCheckpointInfo returns a summary of the checkpoint
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"run_id":      checkpoint.RunID,
		"nickname":    checkpoint.Nickname,
		"failed":      len(checkpoint.Failed),
		"total_tasks": checkpoint.TotalTasks,
		"succeeded":   checkpoint.Succeeded,
		"updated_at":  checkpoint.UpdatedAt,
		"age":         time.Since(checkpoint.UpdatedAt),
	}, nil
}

// BackupCheckpoint copies the current checkpoint next to itself
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.checkpointPath + ".backup"

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}
