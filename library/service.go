// Package library drives migrations between DJ library formats: read the
// source document, apply the per-track policies, write the target document.
// The service runs one migration at a time and reports progress and per
// track outcomes while it runs.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ethiapath/djmusicorganizer/library/config"
	"github.com/ethiapath/djmusicorganizer/library/formats"
	"github.com/ethiapath/djmusicorganizer/library/history"
	"github.com/ethiapath/djmusicorganizer/library/job"
	"github.com/ethiapath/djmusicorganizer/library/track"
)

// MetadataResolver re-resolves a track from its audio file. Resolve never
// returns nil; an unreadable file yields a track marked corrupt.
// *metadata.Resolver satisfies it.
type MetadataResolver interface {
	Resolve(path string) *track.Track
}

// ServiceState represents the state of the migration service.
type ServiceState string

const (
	StateIdle     ServiceState = "idle"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
	StateError    ServiceState = "error"
)

// ServicePhase represents the current pipeline phase.
type ServicePhase string

const (
	PhaseIdle       ServicePhase = "idle"
	PhaseReading    ServicePhase = "reading"
	PhaseProcessing ServicePhase = "processing"
	PhaseWriting    ServicePhase = "writing"
	PhaseCompleted  ServicePhase = "completed"
	PhaseCanceled   ServicePhase = "canceled"
	PhaseError      ServicePhase = "error"
)

// ProgressFunc receives migration progress. percent never decreases within
// one job; current and total count tracks during the processing phase.
type ProgressFunc func(percent int, message string, current, total int)

// MigrationOptions selects the per-track policies for one migration.
type MigrationOptions struct {
	CueRetention       config.CueRetention
	MissingFilePolicy  config.MissingFilePolicy
	MapHotCuesToMemory bool
	MapMemoryToHotCues bool
	RefreshMetadata    bool
	Workers            int
}

// MigrationRequest describes one source-to-target migration. Empty formats
// are detected from the file extensions.
type MigrationRequest struct {
	SourcePath   string
	TargetPath   string
	SourceFormat formats.Format
	TargetFormat formats.Format
	Options      MigrationOptions
	Progress     ProgressFunc
}

// MigrationResult summarizes a finished or canceled migration.
type MigrationResult struct {
	RunID        string
	SourceFormat formats.Format
	TargetFormat formats.Format

	TracksRead    int
	TracksWritten int
	TracksSkipped int // dropped by the missing-file policy

	ReadReport  *formats.SkipReport
	DroppedRefs int

	Statistics map[string]int
	JobFile    string
}

// Service orchestrates migrations. One migration runs at a time; starting a
// second while one is active is an error.
type Service struct {
	config   *config.Config
	resolver MetadataResolver
	locator  *Locator
	tracker  *history.Tracker
	jobFile  string

	mu           sync.RWMutex
	state        ServiceState
	phase        ServicePhase
	currentJob   *job.Migration
	executor     *job.Executor
	cancelRun    context.CancelFunc
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time

	progressPercentage float64
	progressMu         sync.RWMutex

	lastJobSave time.Time
	jobSaveMu   sync.Mutex
}

// NewService creates a migration service. resolver may be nil when metadata
// refreshing is not needed; tracker may be nil to disable history; jobFile
// is the job persistence target and may be empty.
func NewService(cfg *config.Config, resolver MetadataResolver, tracker *history.Tracker, jobFile string) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return &Service{
		config:   cfg,
		resolver: resolver,
		locator:  NewLocator(cfg.Folders),
		tracker:  tracker,
		jobFile:  jobFile,
		state:    StateIdle,
		phase:    PhaseIdle,
	}, nil
}

// Migrate runs one migration to completion, cancellation or error. It is
// synchronous; cancel ctx or call Stop from another goroutine to interrupt
// it. A canceled migration leaves no partial target file.
func (s *Service) Migrate(ctx context.Context, req MigrationRequest) (*MigrationResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.begin(cancel); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if s.tracker != nil {
		s.tracker.StartRun(runID)
	}
	log.Printf("INFO: migration_started run_id=%s source=%s target=%s", runID, req.SourcePath, req.TargetPath)

	result, err := s.run(runCtx, runID, req)
	s.finish(err)
	return result, err
}

// begin moves the service into the running state, rejecting overlap.
func (s *Service) begin(cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return fmt.Errorf("a migration is already running")
	}
	if s.state == StateStopping {
		return fmt.Errorf("service is stopping, please wait")
	}

	oldState := s.state
	oldPhase := s.phase
	s.state = StateRunning
	s.phase = PhaseReading
	s.cancelRun = cancel
	s.errorMessage = ""
	now := time.Now()
	s.startedAt = &now
	s.completedAt = nil

	if oldState != s.state {
		log.Printf("INFO: state_transition state=%s -> %s", oldState, s.state)
	}
	if oldPhase != s.phase {
		log.Printf("INFO: phase_transition phase=%s -> %s", oldPhase, s.phase)
	}
	return nil
}

// finish records the terminal state and persists the run.
func (s *Service) finish(runErr error) {
	s.mu.Lock()
	now := time.Now()
	s.completedAt = &now
	switch {
	case runErr == nil:
		s.state = StateIdle
		s.phase = PhaseCompleted
		s.errorMessage = ""
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		s.state = StateIdle
		s.phase = PhaseCanceled
		s.errorMessage = ""
	default:
		s.state = StateError
		s.phase = PhaseError
		s.errorMessage = runErr.Error()
	}
	state := s.state
	phase := s.phase
	errMsg := s.errorMessage
	m := s.currentJob
	s.executor = nil
	s.cancelRun = nil
	s.mu.Unlock()

	log.Printf("INFO: state_transition state=%s phase=%s", state, phase)

	if s.tracker != nil {
		var stats map[string]int
		if m != nil {
			stats = m.ExecutionStatistics()
		}
		if err := s.tracker.StopRun(string(state), string(phase), stats, errMsg); err != nil {
			log.Printf("WARN: history_stop_failed error=%v", err)
		}
	}
	s.saveJob()
}

func (s *Service) run(ctx context.Context, runID string, req MigrationRequest) (*MigrationResult, error) {
	srcFormat, tgtFormat, err := s.resolveFormats(req)
	if err != nil {
		return nil, err
	}

	report := func(percent int, message string, current, total int) {
		if req.Progress != nil {
			req.Progress(percent, message, current, total)
		}
		s.progressMu.Lock()
		s.progressPercentage = float64(percent)
		s.progressMu.Unlock()
		if s.tracker != nil {
			s.mu.RLock()
			state := s.state
			phase := s.phase
			m := s.currentJob
			s.mu.RUnlock()
			var stats map[string]int
			if m != nil {
				stats = m.ExecutionStatistics()
			}
			s.tracker.AddSnapshot(float64(percent), stats, string(state), string(phase))
		}
	}

	// Reading.
	report(0, "Reading source library", 0, 0)
	lib, readReport, err := formats.Read(srcFormat, req.SourcePath, formats.ReadOptions{
		MapMemoryToHotCues: req.Options.MapMemoryToHotCues,
	})
	if err != nil {
		return nil, err
	}
	total := len(lib.Tracks)
	report(30, fmt.Sprintf("Read %d tracks", total), total, total)

	result := &MigrationResult{
		RunID:        runID,
		SourceFormat: srcFormat,
		TargetFormat: tgtFormat,
		TracksRead:   total,
		ReadReport:   readReport,
	}
	if s.persistenceEnabled() {
		result.JobFile = s.jobFile
	}

	m := job.NewMigration(string(srcFormat), string(tgtFormat), req.SourcePath, req.TargetPath)
	items := make([]*job.Item, total)
	byItem := make(map[string]*track.Track, total)
	for i, t := range lib.Tracks {
		item := job.NewItem(job.KindTrack, t.Title, t.Identity())
		m.AddItem(item)
		items[i] = item
		byItem[item.ItemID] = t
	}
	s.mu.Lock()
	s.currentJob = m
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		result.Statistics = m.ExecutionStatistics()
		return result, err
	}

	// Processing.
	s.setPhase(PhaseProcessing)
	opts := req.Options
	processor := job.ProcessorFunc(func(ctx context.Context, item *job.Item) error {
		return s.processTrack(byItem[item.ItemID], item, opts)
	})
	workers := opts.Workers
	if workers <= 0 {
		workers = s.config.Migration.Workers
	}
	executor := job.NewExecutor(processor, workers)
	s.mu.Lock()
	s.executor = executor
	s.mu.Unlock()

	var countMu sync.Mutex
	processed := 0
	progressCb := func(item *job.Item) {
		countMu.Lock()
		processed++
		report(30+40*processed/total, item.Name, processed, total)
		countMu.Unlock()
		s.saveJobThrottled()
	}

	stats, err := executor.Execute(ctx, m, progressCb)
	result.Statistics = stats
	if err != nil {
		return result, err
	}

	kept := make([]*track.Track, 0, total)
	for i, t := range lib.Tracks {
		if items[i].GetStatus() == job.StatusSkipped {
			result.TracksSkipped++
			continue
		}
		kept = append(kept, t)
	}
	outLib := &track.Library{Tracks: kept, Playlists: lib.Playlists}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Writing.
	s.setPhase(PhaseWriting)
	report(70, "Writing target library", len(kept), len(kept))
	writeRes, err := formats.Write(tgtFormat, req.TargetPath, outLib, formats.WriteOptions{
		MapHotCuesToMemory: req.Options.MapHotCuesToMemory,
	})
	if err != nil {
		return result, err
	}
	result.TracksWritten = len(kept)
	result.DroppedRefs = writeRes.DroppedRefs

	for i, t := range lib.Tracks {
		item := items[i]
		if item.GetStatus() != job.StatusCompleted {
			continue
		}
		if id, ok := writeRes.Identities[t.Identity()]; ok {
			item.TargetIdentity = id
		}
	}
	for _, pl := range outLib.Playlists {
		item := job.NewItem(job.KindPlaylist, pl.Name, "")
		item.MarkCompleted("")
		m.AddItem(item)
	}
	result.Statistics = m.ExecutionStatistics()

	report(100, fmt.Sprintf("Migration complete: %d tracks written", len(kept)), len(kept), total)
	log.Printf("INFO: migration_complete run_id=%s written=%d skipped=%d dropped_refs=%d",
		runID, result.TracksWritten, result.TracksSkipped, result.DroppedRefs)
	return result, nil
}

func (s *Service) resolveFormats(req MigrationRequest) (formats.Format, formats.Format, error) {
	srcFormat := req.SourceFormat
	if srcFormat == "" {
		detected, err := formats.DetectFormat(req.SourcePath)
		if err != nil {
			return "", "", fmt.Errorf("failed to detect source format: %w", err)
		}
		srcFormat = detected
	}
	tgtFormat := req.TargetFormat
	if tgtFormat == "" {
		detected, err := formats.DetectFormat(req.TargetPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to detect target format: %w", err)
		}
		tgtFormat = detected
	}
	return srcFormat, tgtFormat, nil
}

// processTrack applies the migration policies to one track. Missing-file
// resolution runs before cue trimming so a relocated file still has its
// cues evaluated.
func (s *Service) processTrack(t *track.Track, item *job.Item, opts MigrationOptions) error {
	if t == nil {
		return fmt.Errorf("no track for item")
	}

	exists := s.locator.FileExists(t.FilePath)
	if !exists {
		switch opts.MissingFilePolicy {
		case config.MissingWarn:
			log.Printf("WARN: missing_file_included path=%s", t.FilePath)
		case config.MissingLocate:
			found, ok := s.locator.Locate(filepath.Base(t.FilePath))
			if !ok {
				item.MarkSkipped(fmt.Sprintf("missing file: %s", t.FilePath))
				return nil
			}
			log.Printf("INFO: missing_file_relocated from=%s to=%s", t.FilePath, found)
			t.FilePath = found
			exists = true
		default:
			item.MarkSkipped(fmt.Sprintf("missing file: %s", t.FilePath))
			return nil
		}
	}

	switch opts.CueRetention {
	case config.CueFirstEight:
		if len(t.CuePoints) > 8 {
			t.CuePoints = t.CuePoints[:8]
		}
	case config.CueDropAll:
		t.CuePoints = nil
	}

	if opts.RefreshMetadata && exists && s.resolver != nil {
		s.refreshTrack(t)
	}
	return nil
}

// refreshTrack re-resolves metadata from the audio file, keeping the
// track's identity and cue points.
func (s *Service) refreshTrack(t *track.Track) {
	fresh := s.resolver.Resolve(t.FilePath)
	if fresh.IsCorrupt {
		log.Printf("WARN: metadata_refresh_failed path=%s error=%s", t.FilePath, fresh.ErrorMessage)
		return
	}
	t.Title = fresh.Title
	t.Artist = fresh.Artist
	t.Album = fresh.Album
	t.Genre = fresh.Genre
	t.Year = fresh.Year
	t.Comment = fresh.Comment
	t.BPM = fresh.BPM
	t.Key = fresh.Key
	t.Energy = fresh.Energy
	t.Duration = fresh.Duration
	t.IsCorrupt = false
	t.ErrorMessage = ""
}

// Stop interrupts the running migration gracefully: in-flight tracks
// finish, nothing further is dispatched and no target file is written.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("no migration is running (current state: %s)", state)
	}
	oldState := s.state
	s.state = StateStopping
	cancel := s.cancelRun
	executor := s.executor
	s.mu.Unlock()

	log.Printf("INFO: state_transition state=%s -> %s", oldState, StateStopping)
	s.saveJob()

	if cancel != nil {
		cancel()
	}
	if executor != nil {
		executor.RequestShutdown()
		shutdownTimeout := 30 * time.Second
		if !executor.WaitForShutdown(shutdownTimeout) {
			log.Printf("WARN: shutdown_timeout_exceeded timeout=%v", shutdownTimeout)
			return fmt.Errorf("shutdown timeout exceeded after %v", shutdownTimeout)
		}
	}
	log.Printf("INFO: shutdown_complete")
	return nil
}

// GetStatus returns the current service status.
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"state": s.state,
		"phase": s.phase,
	}
	if s.errorMessage != "" {
		status["error"] = s.errorMessage
	}
	if s.startedAt != nil {
		status["started_at"] = s.startedAt.Format(time.RFC3339)
	}
	if s.completedAt != nil {
		status["completed_at"] = s.completedAt.Format(time.RFC3339)
	}
	if s.currentJob != nil {
		execStats := s.currentJob.ExecutionStatistics()
		stats := make(map[string]interface{})
		for k, v := range execStats {
			stats[k] = v
		}
		status["job_stats"] = stats
	}

	s.progressMu.RLock()
	status["progress_percentage"] = s.progressPercentage
	s.progressMu.RUnlock()

	if s.persistenceEnabled() {
		status["job_file"] = s.jobFile
	} else {
		status["job_file"] = nil
	}
	return status
}

// GetJob returns the current or most recent migration job.
func (s *Service) GetJob() *job.Migration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentJob
}

func (s *Service) setPhase(phase ServicePhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phase {
		return
	}
	log.Printf("INFO: phase_transition phase=%s -> %s", s.phase, phase)
	s.phase = phase
}

func (s *Service) persistenceEnabled() bool {
	return s.config.Migration.JobPersistenceEnabled && s.jobFile != ""
}

// saveJobThrottled saves the job at most once every 2 seconds.
func (s *Service) saveJobThrottled() {
	s.jobSaveMu.Lock()
	defer s.jobSaveMu.Unlock()

	now := time.Now()
	if now.Sub(s.lastJobSave) < 2*time.Second {
		return
	}
	s.lastJobSave = now
	s.saveJob()
}

// saveJob saves the current job to disk if persistence is enabled.
func (s *Service) saveJob() {
	if !s.persistenceEnabled() {
		return
	}

	s.mu.RLock()
	m := s.currentJob
	phase := s.phase
	s.mu.RUnlock()
	if m == nil {
		return
	}

	metadataCopy := make(map[string]interface{})
	for k, v := range m.Metadata {
		metadataCopy[k] = v
	}
	metadataCopy["phase"] = string(phase)
	metadataCopy["last_saved_at"] = time.Now().Unix()

	jobCopy := &job.Migration{
		JobID:        m.JobID,
		SourceFormat: m.SourceFormat,
		TargetFormat: m.TargetFormat,
		SourcePath:   m.SourcePath,
		TargetPath:   m.TargetPath,
		CreatedAt:    m.CreatedAt,
		Items:        m.Items,
		Metadata:     metadataCopy,
	}
	if err := jobCopy.Save(s.jobFile); err != nil {
		log.Printf("ERROR: job_save_failed path=%s error=%v", s.jobFile, err)
	} else {
		log.Printf("INFO: job_saved path=%s items=%d", s.jobFile, len(jobCopy.Items))
	}
}
