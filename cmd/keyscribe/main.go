// keyscribe - Keyboard input synthesis and capture for assistive text entry
//
// keyscribe types on the user's behalf through a virtual keyboard device
// and can grab physical keyboards to observe and filter their input:
//
//	keyscribe type <text>     Type a string
//	keyscribe backspace <n>   Erase n characters
//	keyscribe combo <keys>    Press a combination like ctrl+shift+a
//	keyscribe watch           Capture keyboards and stream key events
//	keyscribe devices         List capturable keyboards
//	keyscribe probe           Check environment prerequisites
//	keyscribe journal         Show the emission journal
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"keyscribe/internal/config"
	"keyscribe/internal/envprobe"
	"keyscribe/internal/journal"
	"keyscribe/internal/logging"
	"keyscribe/internal/metrics"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "type":
		cmdType()
	case "backspace":
		cmdBackspace()
	case "combo":
		cmdCombo()
	case "watch":
		cmdWatch()
	case "devices":
		cmdDevices()
	case "probe":
		cmdProbe()
	case "journal":
		cmdJournal()
	case "version", "-v", "--version":
		fmt.Printf("keyscribe %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`keyscribe - Keyboard Input Synthesis and Capture

USAGE:
    keyscribe <command> [options]

COMMANDS:
    type <text>         Type text through the virtual keyboard
    backspace <n>       Erase n characters
    combo <keys>        Press a key combination like ctrl+shift+a
    watch               Capture keyboards and stream key events
    devices             List the keyboards capture would grab
    probe               Check uinput, input group and session prerequisites
    journal             Show recorded emission operations
    version             Show version
    help                Show this help message

EXAMPLES:
    keyscribe type "Hello, World!"       # Type a string
    keyscribe backspace 5                # Erase five characters
    keyscribe combo ctrl+shift+t         # Reopen a closed browser tab
    keyscribe watch -suppress capslock   # Stream events, swallow caps lock
    keyscribe journal -stats             # Emission totals per operation

PRIVACY NOTE:
    The journal records counts, timings and backends - never the text
    that was typed. Captured key codes stream to the caller and are not
    logged or persisted.

Run 'keyscribe <command> -h' for command-specific options.`)
}

// loadConfig loads the configuration or exits with a message. An empty
// path means the default search locations; when no file exists anywhere
// the built-in defaults apply.
func loadConfig(path string) *config.Config {
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// applyFlagOverrides overlays non-empty command-line flags onto the
// loaded configuration and revalidates the result.
func applyFlagOverrides(cfg *config.Config, overrides *config.Config) *config.Config {
	merged := config.Merge(cfg, overrides)
	if err := merged.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		os.Exit(1)
	}
	return merged
}

// newLogger builds the process logger from the configuration and
// installs it as the package default.
func newLogger(cfg *config.Config) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	log, err := logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "keyscribe",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log output: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(log)
	return log
}

// openJournal opens the emission journal when enabled and applies the
// retention policy. A journal failure is logged but never blocks typing.
func openJournal(cfg *config.Config, log *logging.Logger) *journal.Journal {
	if !cfg.Journal.Enabled {
		return nil
	}

	j, err := journal.Open(cfg.Journal.Path, cfg.Journal.BusyTimeoutMs)
	if err != nil {
		log.Warn("journal unavailable", "path", cfg.Journal.Path, "error", err)
		return nil
	}

	if cfg.Journal.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Journal.RetentionDays)
		if removed, err := j.Prune(cutoff); err != nil {
			log.Warn("journal prune failed", "error", err)
		} else if removed > 0 {
			log.Debug("journal pruned", "removed", removed)
		}
	}
	return j
}

// recordJournal writes one entry and refreshes the size gauge. Both are
// best effort.
func recordJournal(j *journal.Journal, log *logging.Logger, met *metrics.KeyscribeMetrics, e *journal.Entry) {
	if j == nil {
		return
	}
	if _, err := j.Record(e); err != nil {
		log.Warn("journal write failed", "error", err)
		return
	}
	if size, err := j.Size(); err == nil {
		met.SetJournalSize(size)
	}
}

// warnEnvironment logs the environment problems that commonly explain a
// backend failure: missing uinput access, no input group, no session.
func warnEnvironment(log *logging.Logger) {
	report := envprobe.Check(context.Background())
	for _, p := range report.Problems() {
		log.Warn(p)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
