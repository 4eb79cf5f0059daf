package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"keyscribe/internal/capture"
	"keyscribe/internal/chord"
	"keyscribe/internal/config"
	"keyscribe/internal/keyseq"
	"keyscribe/internal/metrics"
)

func cmdWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	backend := fs.String("backend", "", "Capture backend: auto, evdev or wayland")
	devices := fs.String("devices", "", "Comma-separated device nodes to capture (default: discover)")
	suppress := fs.String("suppress", "", "Comma-separated key names to swallow, e.g. capslock,f13")
	duration := fs.Duration("duration", 0, "Stop after this long (default: run until interrupted)")
	metricsAddr := fs.String("metrics-addr", "", "Serve /metrics on this address")
	fs.Parse(os.Args[2:])

	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg := loadConfig(path)
	overrides := &config.Config{
		Capture: config.CaptureConfig{Backend: *backend},
		Metrics: config.MetricsConfig{ListenAddr: *metricsAddr},
	}
	if *devices != "" {
		overrides.Capture.Devices = splitList(*devices)
	}
	if *suppress != "" {
		overrides.Capture.SuppressKeys = splitList(*suppress)
	}
	cfg = applyFlagOverrides(cfg, overrides)
	log := newLogger(cfg)

	codes, err := suppressionCodes(cfg.Capture.SuppressKeys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	met := metrics.GetMetrics()
	c, err := capture.New(capture.Options{
		Backend: cfg.Capture.Backend,
		Devices: cfg.Capture.Devices,
		Hotplug: cfg.Capture.Hotplug,
		Logger:  log.WithComponent("capture"),
		Metrics: met,
	})
	if err != nil {
		warnEnvironment(log)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	c.Suppress(codes)

	if err := c.Start(context.Background()); err != nil {
		warnEnvironment(log)
		fmt.Fprintf(os.Stderr, "Error starting capture: %v\n", err)
		os.Exit(1)
	}

	// Config file edits take effect live: the suppress list is recomputed
	// and swapped into the running capturer. Flags passed on the command
	// line keep overriding the file across reloads.
	var loader *config.Loader
	if path != "" {
		loader = config.NewLoader(path)
		loader.OnChange(func(fileCfg *config.Config) {
			merged := config.Merge(fileCfg, overrides)
			if err := merged.Validate(); err != nil {
				log.Warn("config change rejected", "error", err)
				return
			}
			newCodes, err := suppressionCodes(merged.Capture.SuppressKeys)
			if err != nil {
				log.Warn("config change rejected", "error", err)
				return
			}
			c.Suppress(newCodes)
			log.Info("suppression reloaded", "keys", len(newCodes))
		})
		if err := loader.Watch(); err != nil {
			log.Warn("config watch unavailable", "error", err)
			loader = nil
		} else {
			defer loader.Close()
		}
	}
	var reloadErrs <-chan error
	if loader != nil {
		reloadErrs = loader.Errors()
	}

	var srv *http.Server
	if cfg.Metrics.Enabled || *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Default().HTTPHandler())
		srv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			log.Info("metrics listening", "addr", cfg.Metrics.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	var timeout <-chan time.Time
	if *duration > 0 {
		timer := time.NewTimer(*duration)
		defer timer.Stop()
		timeout = timer.C
	}

	uptime := time.NewTicker(15 * time.Second)
	defer uptime.Stop()

	fmt.Printf("Watching keyboards (backend: %s, suppressing %d keys). Ctrl-C to stop.\n",
		c.BackendName(), len(codes))

	observed := 0
loop:
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				break loop
			}
			observed++
			fmt.Printf("%s  %-7s %-16s %s\n",
				ev.When.Format("15:04:05.000"),
				transition(ev.Pressed),
				chord.KeyName(ev.Code),
				ev.Device)
		case <-sigChan:
			break loop
		case <-timeout:
			break loop
		case err := <-reloadErrs:
			log.Warn("config reload failed", "error", err)
		case <-uptime.C:
			met.UpdateUptime()
		}
	}

	if err := c.Cancel(); err != nil {
		log.Warn("capture shutdown", "error", err)
	}
	if srv != nil {
		srv.Close()
	}

	log.Debug("session metrics", "snapshot", met.Snapshot())
	fmt.Printf("\n%d key events observed (%d forwarded, %d suppressed)\n",
		observed, met.ForwardedTotal.Value(), met.SuppressedTotal.Value())
}

func transition(pressed bool) string {
	if pressed {
		return "press"
	}
	return "release"
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// suppressionCodes resolves configured key names to key codes.
func suppressionCodes(names []string) ([]keyseq.KeyCode, error) {
	codes := make([]keyseq.KeyCode, 0, len(names))
	for _, name := range names {
		ch, err := chord.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("suppress key %q: %w", name, err)
		}
		if len(ch.Modifiers) > 0 {
			return nil, fmt.Errorf("suppress key %q is a combination, expected a single key", name)
		}
		codes = append(codes, ch.Key)
	}
	return codes, nil
}

func cmdDevices() {
	keyboards, err := capture.Keyboards()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing devices: %v\n", err)
		os.Exit(1)
	}

	if len(keyboards) == 0 {
		fmt.Println("No capturable keyboards found.")
		fmt.Println("Check that you are in the input group or running as root.")
		os.Exit(1)
	}

	fmt.Printf("%-24s %s\n", "PATH", "NAME")
	for _, kb := range keyboards {
		fmt.Printf("%-24s %s\n", kb.Path, kb.Name)
	}
}
