package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"keyscribe/internal/journal"
)

func cmdJournal() {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", 20, "Number of recent entries to show")
	since := fs.Duration("since", 0, "Show entries newer than this, e.g. 24h")
	stats := fs.Bool("stats", false, "Show aggregate statistics instead of entries")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*configPath)
	if !cfg.Journal.Enabled {
		fmt.Println("Journal is disabled in the configuration.")
		return
	}

	j, err := journal.Open(cfg.Journal.Path, cfg.Journal.BusyTimeoutMs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	if *stats {
		printJournalStats(j)
		return
	}

	var entries []journal.Entry
	if *since > 0 {
		entries, err = j.Since(time.Now().Add(-*since))
	} else {
		entries, err = j.Recent(*limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No journal entries.")
		return
	}

	fmt.Printf("%-6s %-19s %-11s %6s %7s %-8s %12s %s\n",
		"ID", "WHEN", "OP", "UNITS", "EVENTS", "BACKEND", "DURATION", "ERROR")
	for _, e := range entries {
		fmt.Printf("%-6d %-19s %-11s %6d %7d %-8s %12s %s\n",
			e.ID,
			e.At.Format("2006-01-02 15:04:05"),
			e.Op,
			e.Units,
			e.Events,
			e.Backend,
			time.Duration(e.DurationUs)*time.Microsecond,
			e.Error)
	}
}

func printJournalStats(j *journal.Journal) {
	st, err := j.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal stats: %v\n", err)
		os.Exit(1)
	}
	size, err := j.Size()
	if err != nil {
		size = 0
	}

	fmt.Println("=== Emission Journal ===")
	fmt.Println()
	fmt.Printf("Operations:     %d\n", st.Total)
	fmt.Printf("Failed:         %d\n", st.Failed)
	fmt.Printf("Events written: %d\n", st.Events)
	fmt.Printf("Database size:  %s\n", formatBytes(size))

	if len(st.ByOp) == 0 {
		return
	}
	fmt.Println()
	for _, op := range []journal.Op{journal.OpString, journal.OpBackspaces, journal.OpCombo} {
		if n, ok := st.ByOp[op]; ok {
			fmt.Printf("%-12s %d\n", string(op)+":", n)
		}
	}
}
