package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethiapath/djmusicorganizer/library"
	"github.com/ethiapath/djmusicorganizer/library/config"
	"github.com/ethiapath/djmusicorganizer/library/scan"
)

var (
	// Version is set at build time via ldflags
	// Example: go build -ldflags="-X main.Version=v1.2.3"
	Version = "dev"
)

const (
	// Default config path
	defaultConfigPath = "config.yaml"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Handle version command
	if command == "version" || command == "--version" || command == "-v" {
		fmt.Printf("djmo version %s\n", Version)
		os.Exit(0)
	}

	switch command {
	case "scan":
		os.Exit(scanMain(os.Args[2:]))
	case "convert":
		os.Exit(convertMain(os.Args[2:]))
	case "migrate":
		os.Exit(migrateMain(os.Args[2:]))
	case "inspect":
		os.Exit(inspectMain(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `djmo - DJ library migration tool

USAGE:
    djmo <command> [flags]

COMMANDS:
    scan       Scan music folders and export the resolved library
    convert    Convert one library document into another format
    migrate    Run a full migration with job persistence and history
    inspect    Summarize a library document
    version    Show version information

FLAGS:
    -h, --help    Show this help message

EXAMPLES:
    djmo scan -config config.yaml -out library.csv
    djmo convert -in collection.nml -out rekordbox.xml
    djmo migrate -config config.yaml -in collection.nml -out rekordbox.xml

Supported formats: nml (Traktor), rekordbox (XML), csv, m3u
`)
}

func scanMain(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	outPath := fs.String("out", "", "Path to write the scanned library to")
	format := fs.String("format", "", "Target format (default: detect from -out extension)")
	genre := fs.String("genre", "", "Keep only tracks with this genre")
	minBPM := fs.Float64("min-bpm", 0, "Keep only tracks at or above this BPM")
	maxBPM := fs.Float64("max-bpm", 0, "Keep only tracks at or below this BPM")
	key := fs.String("key", "", "Keep only tracks in this musical key")
	dropCorrupt := fs.Bool("drop-corrupt", false, "Leave unreadable files out of the exported library")
	noTUI := fs.Bool("no-tui", false, "Disable the terminal UI")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "scan requires -out")
		fs.Usage()
		return ExitConfigError
	}

	filter := scan.FilterOptions{
		Genre:  *genre,
		MinBPM: *minBPM,
		MaxBPM: *maxBPM,
		Key:    *key,
	}
	return scanCommand(*configPath, *outPath, *format, filter, *dropCorrupt, *noTUI)
}

func convertMain(args []string) int {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	inPath := fs.String("in", "", "Path to the source library document")
	outPath := fs.String("out", "", "Path to write the converted document to")
	from := fs.String("from", "", "Source format (default: detect from -in)")
	to := fs.String("to", "", "Target format (default: detect from -out)")
	cues := fs.String("cues", "", "Cue retention: keep-all, first-8 or drop-all")
	missing := fs.String("missing", "", "Missing file policy: skip, warn or locate")
	hotToMemory := fs.Bool("map-hotcues-to-memory", false, "Write hot cues as memory cues")
	memoryToHot := fs.Bool("map-memory-to-hotcues", false, "Read memory cues as hot cues")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "convert requires -in and -out")
		fs.Usage()
		return ExitConfigError
	}

	retention, err := parseCueRetention(*cues)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return ExitConfigError
	}
	policy, err := parseMissingPolicy(*missing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return ExitConfigError
	}

	opts := library.MigrationOptions{
		CueRetention:       retention,
		MissingFilePolicy:  policy,
		MapHotCuesToMemory: *hotToMemory,
		MapMemoryToHotCues: *memoryToHot,
	}
	return convertCommand(*inPath, *outPath, *from, *to, opts)
}

func migrateMain(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	inPath := fs.String("in", "", "Path to the source library document")
	outPath := fs.String("out", "", "Path to write the migrated document to")
	from := fs.String("from", "", "Source format (default: detect from -in)")
	to := fs.String("to", "", "Target format (default: detect from -out)")
	noTUI := fs.Bool("no-tui", false, "Disable the terminal UI")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "migrate requires -in and -out")
		fs.Usage()
		return ExitConfigError
	}
	return migrateCommand(*configPath, *inPath, *outPath, *from, *to, *noTUI)
}

func inspectMain(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	inPath := fs.String("in", "", "Path to the library document")
	format := fs.String("format", "", "Document format (default: detect from -in)")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "inspect requires -in")
		fs.Usage()
		return ExitConfigError
	}
	return inspectCommand(*inPath, *format)
}

// parseCueRetention maps the -cues flag to a retention policy. An empty
// value keeps every cue.
func parseCueRetention(s string) (config.CueRetention, error) {
	switch s {
	case "", string(config.CueKeepAll):
		return config.CueKeepAll, nil
	case string(config.CueFirstEight):
		return config.CueFirstEight, nil
	case string(config.CueDropAll):
		return config.CueDropAll, nil
	default:
		return "", fmt.Errorf("invalid -cues value %q: must be keep-all, first-8 or drop-all", s)
	}
}

// parseMissingPolicy maps the -missing flag to a policy, accepting the short
// spellings warn and locate alongside the config file values.
func parseMissingPolicy(s string) (config.MissingFilePolicy, error) {
	switch s {
	case "", string(config.MissingSkip):
		return config.MissingSkip, nil
	case "warn", string(config.MissingWarn):
		return config.MissingWarn, nil
	case "locate", string(config.MissingLocate):
		return config.MissingLocate, nil
	default:
		return "", fmt.Errorf("invalid -missing value %q: must be skip, warn or locate", s)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM. The
// returned cancel also detaches the signal handler.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("INFO: signal_received signal=%v", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
