package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/holoplot/go-evdev"

	"keyscribe/internal/chord"
	"keyscribe/internal/config"
	"keyscribe/internal/emulate"
	"keyscribe/internal/journal"
	"keyscribe/internal/keyseq"
	"keyscribe/internal/logging"
	"keyscribe/internal/metrics"
)

// emission describes one send operation for the shared runner. The
// event count is computed up front from the encoding so the journal and
// metrics agree on what a successful send would have written.
type emission struct {
	op            journal.Op
	units         int
	events        int
	fallbackRunes int
	send          func(*emulate.Emulator) error
}

func cmdType() {
	fs := flag.NewFlagSet("type", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	backend := fs.String("backend", "", "Emulation backend: auto, uinput or wayland")
	deviceName := fs.String("device-name", "", "Name for the virtual output device")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: keyscribe type [options] <text>")
		os.Exit(1)
	}
	text := strings.Join(fs.Args(), " ")

	cfg := loadConfig(*configPath)
	cfg = applyFlagOverrides(cfg, &config.Config{
		Output: config.OutputConfig{Backend: *backend, DeviceName: *deviceName},
	})
	log := newLogger(cfg)

	runEmission(cfg, log, emission{
		op:            journal.OpString,
		units:         utf8.RuneCountInString(text),
		events:        len(keyseq.EncodeString(text)),
		fallbackRunes: fallbackRuneCount(text),
		send:          func(em *emulate.Emulator) error { return em.SendString(text) },
	})
}

func cmdBackspace() {
	fs := flag.NewFlagSet("backspace", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	backend := fs.String("backend", "", "Emulation backend: auto, uinput or wayland")
	deviceName := fs.String("device-name", "", "Name for the virtual output device")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: keyscribe backspace [options] <count>")
		os.Exit(1)
	}
	count, err := strconv.Atoi(fs.Arg(0))
	if err != nil || count < 0 {
		fmt.Fprintf(os.Stderr, "Invalid count: %s\n", fs.Arg(0))
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	cfg = applyFlagOverrides(cfg, &config.Config{
		Output: config.OutputConfig{Backend: *backend, DeviceName: *deviceName},
	})
	log := newLogger(cfg)

	runEmission(cfg, log, emission{
		op:     journal.OpBackspaces,
		units:  count,
		events: count * len(keyseq.PressAndRelease(evdev.KEY_BACKSPACE)),
		send:   func(em *emulate.Emulator) error { return em.SendBackspaces(count) },
	})
}

func cmdCombo() {
	fs := flag.NewFlagSet("combo", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	backend := fs.String("backend", "", "Emulation backend: auto, uinput or wayland")
	deviceName := fs.String("device-name", "", "Name for the virtual output device")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: keyscribe combo [options] <keys>")
		fmt.Fprintln(os.Stderr, "Example: keyscribe combo ctrl+shift+a")
		os.Exit(1)
	}
	combo := fs.Arg(0)

	ch, err := chord.Parse(combo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid key combination: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	cfg = applyFlagOverrides(cfg, &config.Config{
		Output: config.OutputConfig{Backend: *backend, DeviceName: *deviceName},
	})
	log := newLogger(cfg)

	runEmission(cfg, log, emission{
		op:     journal.OpCombo,
		units:  1,
		events: len(ch.Sequence()),
		send:   func(em *emulate.Emulator) error { return em.SendKeyCombination(combo) },
	})
}

func runEmission(cfg *config.Config, log *logging.Logger, e emission) {
	if err := emit(cfg, log, e); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fallbackRuneCount counts the runes of s with no direct key on the US
// layout; these go through the unicode entry gesture.
func fallbackRuneCount(s string) int {
	n := 0
	for _, r := range s {
		if _, _, ok := keyseq.Keystroke(r); !ok {
			n++
		}
	}
	return n
}

// emit opens the output device, performs one send and records the
// outcome in metrics and the journal.
func emit(cfg *config.Config, log *logging.Logger, e emission) error {
	if err := cfg.EnsureDirectories(); err != nil {
		log.Warn("create data directories", "error", err)
	}

	em, err := emulate.New(emulate.Options{
		DeviceName: cfg.Output.DeviceName,
		Backend:    cfg.Output.Backend,
		Logger:     log.WithComponent("emulate"),
	})
	if err != nil {
		warnEnvironment(log)
		return fmt.Errorf("open output device: %w", err)
	}
	defer em.Close()

	met := metrics.GetMetrics()
	j := openJournal(cfg, log)
	if j != nil {
		defer j.Close()
	}

	start := time.Now()
	sendErr := e.send(em)
	elapsed := time.Since(start)

	if sendErr != nil {
		met.RecordError()
	} else {
		met.RecordEmission(e.events, elapsed)
		if e.fallbackRunes > 0 {
			met.RecordFallbackRunes(e.fallbackRunes)
		}
	}

	recordJournal(j, log, met, &journal.Entry{
		Op:         e.op,
		Units:      e.units,
		Events:     e.events,
		Backend:    em.BackendName(),
		DurationUs: elapsed.Microseconds(),
		Error:      errString(sendErr),
	})

	if sendErr != nil {
		return sendErr
	}

	log.Info("emission complete",
		"op", string(e.op),
		"units", e.units,
		"events", e.events,
		"backend", em.BackendName(),
		"duration", elapsed.Round(time.Microsecond))
	return nil
}
