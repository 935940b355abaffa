// Package job models a migration run as per-entry items so outcomes survive
// the run: every track carried from source to target library becomes an Item
// whose status and error are persisted alongside the run itself.
package job

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a migration item.
type Kind string

const (
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
)

// Status is the lifecycle state of a migration item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Item records the outcome of migrating one library entry. Mark methods are
// safe for concurrent use; direct field writes after the item entered a pool
// are not.
type Item struct {
	ItemID         string `json:"item_id"`
	Kind           Kind   `json:"kind"`
	Name           string `json:"name"`
	SourceIdentity string `json:"source_identity,omitempty"`
	TargetIdentity string `json:"target_identity,omitempty"`
	FilePath       string `json:"file_path,omitempty"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Progress runs 0.0 to 1.0.
	Progress float64 `json:"progress"`

	mu sync.RWMutex
}

// NewItem creates a pending item with a fresh ID.
func NewItem(kind Kind, name, sourceIdentity string) *Item {
	return &Item{
		ItemID:         uuid.NewString(),
		Kind:           kind,
		Name:           name,
		SourceIdentity: sourceIdentity,
		Status:         StatusPending,
		CreatedAt:      time.Now(),
	}
}

// MarkStarted marks the item as in progress.
func (i *Item) MarkStarted() {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	i.Status = StatusInProgress
	if i.StartedAt == nil {
		i.StartedAt = &now
	}
}

// MarkCompleted marks the item as completed. A non-empty filePath records
// where the entry's audio file ended up resolving.
func (i *Item) MarkCompleted(filePath string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	i.Status = StatusCompleted
	i.CompletedAt = &now
	i.Progress = 1.0
	if filePath != "" {
		i.FilePath = filePath
	}
}

// MarkFailed marks the item as failed with the given message.
func (i *Item) MarkFailed(errorMsg string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	i.Status = StatusFailed
	i.CompletedAt = &now
	i.Error = errorMsg
	i.Progress = 0.0
}

// MarkSkipped marks the item as skipped; reason lands in Error so the job
// file explains why the entry is absent from the target.
func (i *Item) MarkSkipped(reason string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	i.Status = StatusSkipped
	i.CompletedAt = &now
	i.Progress = 1.0
	if reason != "" {
		i.Error = reason
	}
}

// GetStatus returns the current status.
func (i *Item) GetStatus() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.Status
}

// MarshalJSON locks the item so a throttled save during execution sees a
// consistent item.
func (i *Item) MarshalJSON() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return json.Marshal(struct {
		ItemID         string     `json:"item_id"`
		Kind           Kind       `json:"kind"`
		Name           string     `json:"name"`
		SourceIdentity string     `json:"source_identity,omitempty"`
		TargetIdentity string     `json:"target_identity,omitempty"`
		FilePath       string     `json:"file_path,omitempty"`
		Status         Status     `json:"status"`
		Error          string     `json:"error,omitempty"`
		CreatedAt      time.Time  `json:"created_at"`
		StartedAt      *time.Time `json:"started_at,omitempty"`
		CompletedAt    *time.Time `json:"completed_at,omitempty"`
		Progress       float64    `json:"progress"`
	}{
		ItemID:         i.ItemID,
		Kind:           i.Kind,
		Name:           i.Name,
		SourceIdentity: i.SourceIdentity,
		TargetIdentity: i.TargetIdentity,
		FilePath:       i.FilePath,
		Status:         i.Status,
		Error:          i.Error,
		CreatedAt:      i.CreatedAt,
		StartedAt:      i.StartedAt,
		CompletedAt:    i.CompletedAt,
		Progress:       i.Progress,
	})
}

// Migration is one source-to-target run: the items plus enough context to
// make a saved job file readable on its own.
type Migration struct {
	JobID        string    `json:"job_id"`
	SourceFormat string    `json:"source_format"`
	TargetFormat string    `json:"target_format"`
	SourcePath   string    `json:"source_path"`
	TargetPath   string    `json:"target_path"`
	CreatedAt    time.Time `json:"created_at"`

	Items    []*Item                `json:"items"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewMigration creates an empty migration with a fresh job ID.
func NewMigration(sourceFormat, targetFormat, sourcePath, targetPath string) *Migration {
	return &Migration{
		JobID:        uuid.NewString(),
		SourceFormat: sourceFormat,
		TargetFormat: targetFormat,
		SourcePath:   sourcePath,
		TargetPath:   targetPath,
		CreatedAt:    time.Now(),
		Items:        make([]*Item, 0),
	}
}

// AddItem appends an item to the migration.
func (m *Migration) AddItem(item *Item) {
	m.Items = append(m.Items, item)
}

// GetItem retrieves an item by ID, nil when absent.
func (m *Migration) GetItem(itemID string) *Item {
	for _, item := range m.Items {
		if item.ItemID == itemID {
			return item
		}
	}
	return nil
}

// ItemsByKind returns all items of one kind.
func (m *Migration) ItemsByKind(kind Kind) []*Item {
	result := make([]*Item, 0)
	for _, item := range m.Items {
		if item.Kind == kind {
			result = append(result, item)
		}
	}
	return result
}

// ExecutionStatistics counts track items by status. Skipped items are
// excluded from the counts and the total; they never entered the pool.
// The returned map contains "completed", "failed", "pending", "in_progress"
// and "total".
func (m *Migration) ExecutionStatistics() map[string]int {
	completed := 0
	failed := 0
	pending := 0
	inProgress := 0
	total := 0

	for _, item := range m.Items {
		if item.Kind != KindTrack {
			continue
		}
		switch item.GetStatus() {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		case StatusPending:
			pending++
		case StatusInProgress:
			inProgress++
		default:
			continue
		}
		total++
	}

	return map[string]int{
		"completed":   completed,
		"failed":      failed,
		"pending":     pending,
		"in_progress": inProgress,
		"total":       total,
	}
}

// SkippedCount counts the skipped track items.
func (m *Migration) SkippedCount() int {
	n := 0
	for _, item := range m.Items {
		if item.Kind == KindTrack && item.GetStatus() == StatusSkipped {
			n++
		}
	}
	return n
}

// Save writes the migration to a JSON file.
func (m *Migration) Save(filePath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode migration job: %w", err)
	}
	return os.WriteFile(filePath, data, 0644)
}

// LoadMigration reads a migration from a JSON file.
func LoadMigration(filePath string) (*Migration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration job: %w", err)
	}

	var m Migration
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse migration job: %w", err)
	}
	return &m, nil
}
