package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ethiapath/djmusicorganizer/library"
	"github.com/ethiapath/djmusicorganizer/library/analysis"
	"github.com/ethiapath/djmusicorganizer/library/cache"
	"github.com/ethiapath/djmusicorganizer/library/config"
	"github.com/ethiapath/djmusicorganizer/library/formats"
	"github.com/ethiapath/djmusicorganizer/library/history"
	"github.com/ethiapath/djmusicorganizer/library/logging"
	"github.com/ethiapath/djmusicorganizer/library/metadata"
	"github.com/ethiapath/djmusicorganizer/library/scan"
	"github.com/ethiapath/djmusicorganizer/library/track"
)

// Exit codes shared by all commands. 130 is the conventional code for a
// SIGINT-terminated process.
const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitDataError   = 2
	ExitFilesystem  = 3
	ExitInterrupted = 130
)

// getCacheDir returns DJMO_CACHE_DIR or ".cache" under current dir.
func getCacheDir() string {
	if d := os.Getenv("DJMO_CACHE_DIR"); d != "" {
		return d
	}
	return ".cache"
}

// loadCLIConfig loads the config file, printing errors the way every
// command reports them.
func loadCLIConfig(configPath string) (*config.Config, int) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if _, ok := err.(*config.ConfigError); ok {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			return nil, ExitConfigError
		}
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return nil, ExitConfigError
	}
	return cfg, ExitSuccess
}

// resolveFormat parses an explicit format name, falling back to extension
// detection on path.
func resolveFormat(name, path string) (formats.Format, error) {
	if name != "" {
		return formats.ParseFormat(name)
	}
	return formats.DetectFormat(path)
}

// optionalFormat parses a format flag, leaving detection to the service
// when the flag is empty.
func optionalFormat(name string) (formats.Format, error) {
	if name == "" {
		return "", nil
	}
	return formats.ParseFormat(name)
}

// buildResolver wires the metadata resolver with the analysis stack from the
// config: a persistent cache manager feeding the BPM, key and energy
// estimators. Analysis disabled means tags only.
func buildResolver(cfg *config.Config) (*metadata.Resolver, *analysis.Analyzer) {
	if !cfg.Migration.Analysis.Enabled {
		return metadata.NewResolver(nil), nil
	}
	cacheDir := cfg.Migration.Analysis.CacheDir
	if cacheDir == "" {
		cacheDir = getCacheDir()
	}
	store := cache.NewManager(cacheDir)
	analyzer := analysis.NewAnalyzer(analysis.Options{
		BPMWindowSeconds:    cfg.Migration.Analysis.BPMWindowSeconds,
		BPMOffsetSeconds:    cfg.Migration.Analysis.BPMOffsetSeconds,
		KeyWindowSeconds:    cfg.Migration.Analysis.KeyWindowSeconds,
		EnergyWindowSeconds: cfg.Migration.Analysis.EnergyWindowSeconds,
		CacheMaxSize:        cfg.Migration.Analysis.CacheMaxSize,
	}, store)
	return metadata.NewResolver(analyzer), analyzer
}

// flushAnalyzer persists the analysis cache; estimates from this run are
// reused by the next one.
func flushAnalyzer(analyzer *analysis.Analyzer) {
	if analyzer == nil {
		return
	}
	if err := analyzer.Flush(); err != nil {
		log.Printf("WARN: analysis_cache_flush_failed error=%v", err)
	}
}

// scanOutcome is what a finished scan produced.
type scanOutcome struct {
	Scanned int
	Corrupt int
	Written int
	OutPath string
}

// finishScan filters the scanned tracks and writes them out.
func finishScan(tracks []*track.Track, filter scan.FilterOptions, dropCorrupt bool, format formats.Format, outPath string) (*scanOutcome, error) {
	outcome := &scanOutcome{Scanned: len(tracks), OutPath: outPath}
	for _, t := range tracks {
		if t.IsCorrupt {
			outcome.Corrupt++
		}
	}
	if dropCorrupt {
		tracks = scan.RemoveCorrupt(tracks)
	}
	tracks = scan.Filter(tracks, filter)
	lib := &track.Library{Tracks: tracks}
	if _, err := formats.Write(format, outPath, lib, formats.WriteOptions{}); err != nil {
		return nil, err
	}
	outcome.Written = len(tracks)
	return outcome, nil
}

// scanCommand runs the scan subcommand: resolve every audio file under the
// configured folders and export the result. Logs go to
// .logs/run_<timestamp>/scan.log. Returns exit code.
func scanCommand(configPath, outPath, formatName string, filter scan.FilterOptions, dropCorrupt, noTUI bool) int {
	cfg, code := loadCLIConfig(configPath)
	if code != ExitSuccess {
		return code
	}
	if len(cfg.Folders) == 0 {
		fmt.Fprintln(os.Stderr, "Configuration error: no folders configured")
		return ExitConfigError
	}

	format, err := resolveFormat(formatName, outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Format error: %v\n", err)
		return ExitConfigError
	}

	_, logPath, err := CreateRunDir(RunDirScan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating log directory: %v\n", err)
		return ExitFilesystem
	}

	resolver, analyzer := buildResolver(cfg)
	scanner := scan.NewScanner(resolver, cfg.Migration.Workers)
	registered := 0
	for _, folder := range cfg.Folders {
		if err := scanner.AddFolder(folder); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping folder: %v\n", err)
			continue
		}
		registered++
	}
	if registered == 0 {
		fmt.Fprintln(os.Stderr, "Configuration error: no usable folders")
		return ExitConfigError
	}

	ctx, cancel := signalContext()
	defer cancel()

	if !WantTUI(noTUI) {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			return ExitFilesystem
		}
		restore := RedirectLogToFile(logFile)
		defer restore()
		defer logFile.Close()

		tracks, err := scanner.Scan(ctx, nil)
		flushAnalyzer(analyzer)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(os.Stderr, "Scan interrupted")
				return ExitInterrupted
			}
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			return ExitDataError
		}
		outcome, err := finishScan(tracks, filter, dropCorrupt, format, outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing library: %v\n", err)
			return ExitDataError
		}
		fmt.Printf("Scan complete\n")
		fmt.Printf("Tracks resolved: %d\n", outcome.Scanned)
		if outcome.Corrupt > 0 {
			fmt.Printf("Unreadable files: %d\n", outcome.Corrupt)
		}
		fmt.Printf("Tracks written: %d\n", outcome.Written)
		fmt.Printf("Library file: %s\n", outPath)
		fmt.Printf("Log file: %s\n", logPath)
		return ExitSuccess
	}

	// TUI path
	errCh := make(chan string, 64)
	tee, err := NewLogTeeWriter(logPath, errCh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return ExitFilesystem
	}
	defer tee.Close()
	restore := RedirectLogToFile(tee)
	defer restore()

	scanCh := make(chan scanMsg, 64)
	go func() {
		progress := func(percent int, message string, current, total int) {
			select {
			case scanCh <- scanMsg{Percent: percent, Message: message, Current: current, Total: total}:
			default:
			}
		}
		tracks, scanErr := scanner.Scan(ctx, progress)
		flushAnalyzer(analyzer)
		var outcome *scanOutcome
		if scanErr == nil {
			outcome, scanErr = finishScan(tracks, filter, dropCorrupt, format, outPath)
		}
		scanCh <- scanMsg{Done: true, Err: scanErr, Outcome: outcome}
	}()

	outcome, runErr := RunScanTUI(logPath, scanCh, errCh, cancel)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return ExitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", runErr)
		return ExitDataError
	}
	if outcome != nil {
		fmt.Printf("Scan complete: %d tracks written to %s\n", outcome.Written, outcome.OutPath)
	}
	return ExitSuccess
}

// convertCommand runs the convert subcommand: a one-shot format conversion
// without job persistence or history. Returns exit code.
func convertCommand(in, out, fromName, toName string, opts library.MigrationOptions) int {
	srcFormat, err := optionalFormat(fromName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Format error: %v\n", err)
		return ExitConfigError
	}
	tgtFormat, err := optionalFormat(toName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Format error: %v\n", err)
		return ExitConfigError
	}

	_, logPath, err := CreateRunDir(RunDirConvert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating log directory: %v\n", err)
		return ExitFilesystem
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return ExitFilesystem
	}
	restore := RedirectLogToFile(logFile)
	defer restore()
	defer logFile.Close()

	cfg := &config.Config{Version: "1.0"}
	cfg.Migration.SetDefaults()
	svc, err := library.NewService(cfg, nil, nil, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating service: %v\n", err)
		return ExitConfigError
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.Migrate(ctx, library.MigrationRequest{
		SourcePath:   in,
		TargetPath:   out,
		SourceFormat: srcFormat,
		TargetFormat: tgtFormat,
		Options:      opts,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Convert interrupted")
			return ExitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Convert failed: %v\n", err)
		return ExitDataError
	}

	fmt.Printf("Converted %s -> %s\n", res.SourceFormat, res.TargetFormat)
	fmt.Printf("Tracks written: %d\n", res.TracksWritten)
	if res.TracksSkipped > 0 {
		fmt.Printf("Tracks skipped: %d\n", res.TracksSkipped)
	}
	if res.ReadReport.Len() > 0 {
		fmt.Printf("Source entries skipped: %d\n", res.ReadReport.Len())
	}
	if res.DroppedRefs > 0 {
		fmt.Printf("Playlist references dropped: %d\n", res.DroppedRefs)
	}
	fmt.Printf("Log file: %s\n", logPath)
	if res.Statistics["failed"] > 0 {
		return ExitDataError
	}
	return ExitSuccess
}

// migrateCommand runs the migrate subcommand: the fully orchestrated
// pipeline with job persistence keyed to the config hash, run history and
// optional metadata refresh. Returns exit code.
func migrateCommand(configPath, in, out, fromName, toName string, noTUI bool) int {
	cfg, code := loadCLIConfig(configPath)
	if code != ExitSuccess {
		return code
	}
	srcFormat, err := optionalFormat(fromName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Format error: %v\n", err)
		return ExitConfigError
	}
	tgtFormat, err := optionalFormat(toName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Format error: %v\n", err)
		return ExitConfigError
	}

	hash, err := config.HashFromPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing config hash: %v\n", err)
		return ExitFilesystem
	}
	jobDir := cfg.Migration.JobPath
	if jobDir == "" {
		jobDir = getCacheDir()
	}
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating job directory: %v\n", err)
		return ExitFilesystem
	}
	jobFile := ""
	if cfg.Migration.JobPersistenceEnabled {
		jobFile = filepath.Join(jobDir, config.JobFileName(hash))
	}

	historyPath := cfg.History.HistoryPath
	if historyPath == "" {
		historyPath = filepath.Join(jobDir, "history")
	}
	tracker, err := history.NewTracker(historyPath, cfg.History.HistoryRetention, cfg.History.SnapshotInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating history tracker: %v\n", err)
		return ExitFilesystem
	}
	defer tracker.Close()

	svcLogPath := cfg.History.LogPath
	if svcLogPath == "" {
		svcLogPath = filepath.Join(jobDir, "migration.log")
	}
	svcLog, err := logging.NewLogger(svcLogPath, "migration-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening service log: %v\n", err)
		return ExitFilesystem
	}
	defer svcLog.Close()

	var resolver library.MetadataResolver
	var analyzer *analysis.Analyzer
	if cfg.Migration.RefreshMetadata {
		var mr *metadata.Resolver
		mr, analyzer = buildResolver(cfg)
		resolver = mr
	}

	svc, err := library.NewService(cfg, resolver, tracker, jobFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating service: %v\n", err)
		return ExitConfigError
	}

	_, logPath, err := CreateRunDir(RunDirMigrate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating log directory: %v\n", err)
		return ExitFilesystem
	}

	ctx, cancel := signalContext()
	defer cancel()

	req := library.MigrationRequest{
		SourcePath:   in,
		TargetPath:   out,
		SourceFormat: srcFormat,
		TargetFormat: tgtFormat,
	}
	svcLog.InfoWithOperation("migrate", fmt.Sprintf("starting migration %s -> %s", in, out))

	if !WantTUI(noTUI) {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			return ExitFilesystem
		}
		restore := RedirectLogToFile(logFile)
		defer restore()
		defer logFile.Close()

		res, err := svc.Migrate(ctx, req)
		flushAnalyzer(analyzer)
		return reportMigration(svcLog, res, err, jobFile, logPath)
	}

	// TUI path
	errCh := make(chan string, 64)
	tee, err := NewLogTeeWriter(logPath, errCh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return ExitFilesystem
	}
	defer tee.Close()
	restore := RedirectLogToFile(tee)
	defer restore()

	progressCh := make(chan migrateMsg, 64)
	go func() {
		req.Progress = func(percent int, message string, current, total int) {
			select {
			case progressCh <- migrateMsg{Percent: percent, Message: message, Current: current, Total: total}:
			default:
			}
		}
		res, execErr := svc.Migrate(ctx, req)
		flushAnalyzer(analyzer)
		progressCh <- migrateMsg{Done: true, Result: res, Err: execErr}
	}()

	res, execErr := RunMigrateTUI(logPath, progressCh, errCh, cancel)
	return reportMigration(svcLog, res, execErr, jobFile, logPath)
}

// reportMigration prints the outcome of a migration run and maps it to an
// exit code.
func reportMigration(svcLog *logging.Logger, res *library.MigrationResult, err error, jobFile, logPath string) int {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			svcLog.WarnWithOperation("migrate", "migration interrupted")
			fmt.Fprintln(os.Stderr, "Migration interrupted")
			return ExitInterrupted
		}
		svcLog.ErrorWithOperation("migrate", "migration failed", err)
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		return ExitDataError
	}
	svcLog.InfoWithOperation("migrate",
		fmt.Sprintf("migration complete: %d written, %d skipped", res.TracksWritten, res.TracksSkipped))

	fmt.Printf("Migration complete\n")
	fmt.Printf("Run: %s\n", res.RunID)
	fmt.Printf("Tracks read: %d\n", res.TracksRead)
	fmt.Printf("Tracks written: %d\n", res.TracksWritten)
	if res.TracksSkipped > 0 {
		fmt.Printf("Tracks skipped: %d\n", res.TracksSkipped)
	}
	if res.ReadReport.Len() > 0 {
		fmt.Printf("Source entries skipped: %d\n", res.ReadReport.Len())
	}
	if res.DroppedRefs > 0 {
		fmt.Printf("Playlist references dropped: %d\n", res.DroppedRefs)
	}
	if jobFile != "" {
		fmt.Printf("Job file: %s\n", jobFile)
	}
	fmt.Printf("Log file: %s\n", logPath)
	if res.Statistics["failed"] > 0 {
		fmt.Printf("Failed tracks: %d\n", res.Statistics["failed"])
		return ExitDataError
	}
	return ExitSuccess
}

// inspectCommand reads a library document and prints a summary.
// Returns exit code.
func inspectCommand(in, formatName string) int {
	format, err := resolveFormat(formatName, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Format error: %v\n", err)
		return ExitConfigError
	}
	lib, report, err := formats.Read(format, in, formats.ReadOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading document: %v\n", err)
		return ExitDataError
	}

	withID := 0
	withBPM := 0
	withKey := 0
	cues := map[track.CueType]int{}
	missing := 0
	for _, t := range lib.Tracks {
		if t.ID != "" {
			withID++
		}
		if t.BPM > 0 {
			withBPM++
		}
		if t.Key != "" && t.Key != track.UnknownKey {
			withKey++
		}
		for _, cue := range t.CuePoints {
			cues[cue.Type]++
		}
		if _, err := os.Stat(t.FilePath); err != nil {
			missing++
		}
	}
	refs := 0
	for _, pl := range lib.Playlists {
		refs += len(pl.TrackKeys)
	}

	fmt.Printf("Document: %s\n", in)
	fmt.Printf("Format: %s\n", format)
	fmt.Printf("Tracks: %d\n", len(lib.Tracks))
	fmt.Printf("Playlists: %d (%d track references)\n", len(lib.Playlists), refs)
	fmt.Printf("With identity: %d\n", withID)
	fmt.Printf("With BPM: %d\n", withBPM)
	fmt.Printf("With key: %d\n", withKey)
	for _, kind := range []track.CueType{track.CueHotCue, track.CueLoop, track.CueGrid, track.CueBeat} {
		if cues[kind] > 0 {
			fmt.Printf("Cues (%s): %d\n", kind, cues[kind])
		}
	}
	if missing > 0 {
		fmt.Printf("Missing files: %d\n", missing)
	}
	if report.Len() > 0 {
		fmt.Printf("Skipped entries: %d\n", report.Len())
		for _, e := range report.Entries {
			fmt.Printf("  entry %d: %s\n", e.Index, e.Reason)
		}
	}
	return ExitSuccess
}
