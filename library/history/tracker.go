package history

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// maxSnapshots bounds per-run snapshot memory.
const maxSnapshots = 10000

// Tracker manages history tracking for migration runs. Snapshots are
// throttled to the configured interval; state and phase transitions are
// always recorded so a run file shows every phase boundary.
type Tracker struct {
	historyPath      string
	retention        int
	snapshotInterval time.Duration
	activityPath     string

	currentRun   *RunHistory
	lastSnapshot time.Time
	currentRunMu sync.RWMutex

	activityHistory *ActivityHistory
	activityMu      sync.RWMutex
}

// NewTracker creates a history tracker persisting under historyPath.
// retention is the number of finished runs to keep (0 keeps all);
// snapshotInterval is in seconds and must be positive.
func NewTracker(historyPath string, retention int, snapshotInterval int) (*Tracker, error) {
	if snapshotInterval <= 0 {
		return nil, fmt.Errorf("snapshotInterval must be positive, got %d", snapshotInterval)
	}

	if err := os.MkdirAll(historyPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	tracker := &Tracker{
		historyPath:      historyPath,
		retention:        retention,
		snapshotInterval: time.Duration(snapshotInterval) * time.Second,
		activityPath:     filepath.Join(historyPath, "activity.json"),
		activityHistory:  &ActivityHistory{Entries: make([]ActivityEntry, 0)},
	}

	if err := tracker.loadActivityHistory(); err != nil {
		log.Printf("WARN: history_activity_load_failed error=%v", err)
	}

	return tracker, nil
}

// StartRun starts tracking a new run.
func (t *Tracker) StartRun(runID string) {
	t.currentRunMu.Lock()
	t.currentRun = &RunHistory{
		RunID:     runID,
		StartedAt: time.Now(),
		State:     "running",
		Phase:     "reading",
		Snapshots: make([]RunSnapshot, 0),
	}
	t.lastSnapshot = time.Time{}
	t.currentRunMu.Unlock()

	t.addActivity("migration_started", fmt.Sprintf("Migration started (run_id: %s)", runID), map[string]interface{}{
		"run_id": runID,
	})
}

// StopRun finalizes the current run, saves it and prunes old runs. With no
// run in progress it is a no-op.
func (t *Tracker) StopRun(state, phase string, statistics map[string]int, errMsg string) error {
	t.currentRunMu.Lock()
	run := t.currentRun
	if run == nil {
		t.currentRunMu.Unlock()
		return nil
	}
	now := time.Now()
	run.CompletedAt = &now
	run.State = state
	run.Phase = phase
	run.Statistics = statistics
	if errMsg != "" {
		run.Error = errMsg
	}
	t.currentRun = nil
	t.currentRunMu.Unlock()

	if err := t.saveRunHistory(run); err != nil {
		log.Printf("ERROR: history_run_save_failed run_id=%s error=%v", run.RunID, err)
	}

	activityType := "migration_completed"
	switch {
	case state == "error" || errMsg != "":
		activityType = "migration_failed"
	case phase == "canceled":
		activityType = "migration_canceled"
	}
	t.addActivity(activityType, fmt.Sprintf("Migration %s (run_id: %s)", phase, run.RunID), map[string]interface{}{
		"run_id":     run.RunID,
		"state":      state,
		"statistics": statistics,
	})

	if t.retention > 0 {
		if err := t.cleanupOldRuns(); err != nil {
			log.Printf("WARN: history_cleanup_failed error=%v", err)
		}
	}
	return nil
}

// AddSnapshot records a progress snapshot for the current run. Snapshots
// closer together than the interval are dropped unless state or phase
// changed since the last recorded one.
func (t *Tracker) AddSnapshot(progress float64, statistics map[string]int, state, phase string) {
	snapshot := RunSnapshot{
		Timestamp:  time.Now(),
		Progress:   progress,
		Statistics: statistics,
		State:      state,
		Phase:      phase,
	}

	t.currentRunMu.Lock()
	defer t.currentRunMu.Unlock()

	if t.currentRun == nil {
		return
	}

	if n := len(t.currentRun.Snapshots); n > 0 {
		last := t.currentRun.Snapshots[n-1]
		unchanged := last.State == state && last.Phase == phase
		if unchanged && snapshot.Timestamp.Sub(t.lastSnapshot) < t.snapshotInterval {
			return
		}
	}
	t.lastSnapshot = snapshot.Timestamp
	t.currentRun.Snapshots = append(t.currentRun.Snapshots, snapshot)

	if len(t.currentRun.Snapshots) > maxSnapshots {
		excess := len(t.currentRun.Snapshots) - maxSnapshots
		t.currentRun.Snapshots = t.currentRun.Snapshots[excess:]
	}
}

// GetCurrentRun returns a copy of the run in progress, nil when idle.
func (t *Tracker) GetCurrentRun() *RunHistory {
	t.currentRunMu.RLock()
	defer t.currentRunMu.RUnlock()
	if t.currentRun == nil {
		return nil
	}
	runCopy := *t.currentRun
	return &runCopy
}

// GetRunHistory loads a finished run by ID.
func (t *Tracker) GetRunHistory(runID string) (*RunHistory, error) {
	data, err := os.ReadFile(t.runPath(runID))
	if err != nil {
		return nil, err
	}

	var run RunHistory
	if err := run.FromJSON(data); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns all saved run IDs, newest first.
func (t *Tracker) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(t.historyPath)
	if err != nil {
		return nil, err
	}

	type runInfo struct {
		ID        string
		StartedAt time.Time
	}
	var runs []runInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "run_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		runID := strings.TrimSuffix(strings.TrimPrefix(name, "run_"), ".json")
		if runID == "" {
			continue
		}
		run, err := t.GetRunHistory(runID)
		if err != nil {
			continue
		}
		runs = append(runs, runInfo{ID: runID, StartedAt: run.StartedAt})
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	result := make([]string, len(runs))
	for i, info := range runs {
		result[i] = info.ID
	}
	return result, nil
}

// GetActivityHistory returns the most recent limit entries, all of them when
// limit is 0.
func (t *Tracker) GetActivityHistory(limit int) *ActivityHistory {
	t.activityMu.RLock()
	defer t.activityMu.RUnlock()

	entries := t.activityHistory.Entries
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}

	out := &ActivityHistory{Entries: make([]ActivityEntry, len(entries))}
	copy(out.Entries, entries)
	return out
}

// AddActivity appends an entry to the activity feed.
func (t *Tracker) AddActivity(activityType, message string, details map[string]interface{}) {
	t.addActivity(activityType, message, details)
}

func (t *Tracker) addActivity(activityType, message string, details map[string]interface{}) {
	entry := ActivityEntry{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Type:      activityType,
		Message:   message,
		Details:   details,
	}

	t.activityMu.Lock()
	t.activityHistory.Entries = append(t.activityHistory.Entries, entry)
	// Keep only the last 1000 entries in memory.
	if len(t.activityHistory.Entries) > 1000 {
		t.activityHistory.Entries = t.activityHistory.Entries[len(t.activityHistory.Entries)-1000:]
	}
	t.activityMu.Unlock()

	if err := t.saveActivityHistory(); err != nil {
		log.Printf("WARN: history_activity_save_failed error=%v", err)
	}
}

func (t *Tracker) runPath(runID string) string {
	return filepath.Join(t.historyPath, fmt.Sprintf("run_%s.json", runID))
}

func (t *Tracker) saveRunHistory(run *RunHistory) error {
	data, err := run.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(t.runPath(run.RunID), data, 0644)
}

func (t *Tracker) loadActivityHistory() error {
	if _, err := os.Stat(t.activityPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(t.activityPath)
	if err != nil {
		return err
	}

	var loaded ActivityHistory
	if err := loaded.FromJSON(data); err != nil {
		return err
	}

	t.activityMu.Lock()
	t.activityHistory = &loaded
	t.activityMu.Unlock()
	return nil
}

func (t *Tracker) saveActivityHistory() error {
	t.activityMu.RLock()
	data, err := t.activityHistory.ToJSON()
	t.activityMu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(t.activityPath, data, 0644)
}

// cleanupOldRuns removes saved runs beyond the retention limit.
func (t *Tracker) cleanupOldRuns() error {
	runIDs, err := t.ListRuns()
	if err != nil {
		return err
	}

	if len(runIDs) <= t.retention {
		return nil
	}

	for _, runID := range runIDs[t.retention:] {
		if err := os.Remove(t.runPath(runID)); err != nil {
			log.Printf("WARN: history_run_remove_failed run_id=%s error=%v", runID, err)
		}
	}
	return nil
}

// Close saves any pending activity data.
func (t *Tracker) Close() error {
	return t.saveActivityHistory()
}
