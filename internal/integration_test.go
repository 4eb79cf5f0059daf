// Package internal provides integration tests for the keyscribe input
// pipeline.
//
// These tests verify the complete synthesis and capture flow:
// 1. Encode text into ordered key event sequences
// 2. Flush the sequences through a simulated output device
// 3. Replay the flushed events through a simulated capture backend
// 4. Record emissions in the journal and read them back
package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/holoplot/go-evdev"

	"keyscribe/internal/capture"
	"keyscribe/internal/chord"
	"keyscribe/internal/config"
	"keyscribe/internal/emulate"
	"keyscribe/internal/journal"
	"keyscribe/internal/keyseq"
)

// =============================================================================
// INTEGRATION: Full Typing Pipeline
// =============================================================================

// TestFullTypingPipeline tests the complete flow from text through encoding,
// a simulated output device, a simulated capture backend and the journal.
func TestFullTypingPipeline(t *testing.T) {
	text := "Hi, €5!"
	seq := keyseq.EncodeString(text)

	// Step 1: Type the text through a simulated output device.
	out := emulate.NewSimulatedBackend()
	start := time.Now()
	if err := out.SendString(text); err != nil {
		t.Fatalf("Failed to send string: %v", err)
	}
	elapsed := time.Since(start)

	flushes := out.Flushes()
	if len(flushes) != 1 {
		t.Fatalf("Expected one flush for one string, got %d", len(flushes))
	}
	if len(flushes[0]) != len(seq) {
		t.Fatalf("Flushed %d events, encoder produced %d", len(flushes[0]), len(seq))
	}
	assertBalanced(t, flushes[0])
	t.Logf("Typed %q as %d events", text, len(seq))

	// Step 2: Replay the flushed events through a capture backend with the
	// digit five suppressed.
	in := capture.NewSimulatedBackend()
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start capture: %v", err)
	}
	in.Suppress([]keyseq.KeyCode{evdev.KEY_5})

	edges, forwarded := 0, 0
	for _, ev := range flushes[0] {
		if ev.IsMarker() {
			continue
		}
		edges++
		if in.InjectKey(ev.Code, ev.IsPress()) {
			forwarded++
		}
	}
	if err := in.Cancel(); err != nil {
		t.Fatalf("Failed to cancel capture: %v", err)
	}

	delivered := 0
	for range in.Events() {
		delivered++
	}
	if delivered != edges {
		t.Fatalf("Delivered %d events, injected %d edges", delivered, edges)
	}
	// One press and one release of KEY_5 are swallowed.
	if forwarded != edges-2 {
		t.Fatalf("Forwarded %d events, expected %d", forwarded, edges-2)
	}

	// Step 3: Record the emission and read it back.
	j := openJournal(t)
	id, err := j.Record(&journal.Entry{
		Op:         journal.OpString,
		Units:      utf8.RuneCountInString(text),
		Events:     len(seq),
		Backend:    out.Name(),
		DurationUs: elapsed.Microseconds(),
	})
	if err != nil {
		t.Fatalf("Failed to record emission: %v", err)
	}

	entry, err := j.Get(id)
	if err != nil {
		t.Fatalf("Failed to read back entry: %v", err)
	}
	if entry == nil {
		t.Fatal("Recorded entry not found")
	}
	if entry.Units != 7 || entry.Events != len(seq) || entry.Op != journal.OpString {
		t.Fatalf("Entry mismatch: units=%d events=%d op=%s", entry.Units, entry.Events, entry.Op)
	}
}

// TestBackspaceFlushBoundaries verifies that repeated backspaces go out as
// independent flushes, each a complete keystroke.
func TestBackspaceFlushBoundaries(t *testing.T) {
	out := emulate.NewSimulatedBackend()
	if err := out.SendBackspaces(3); err != nil {
		t.Fatalf("Failed to send backspaces: %v", err)
	}

	flushes := out.Flushes()
	if len(flushes) != 3 {
		t.Fatalf("Expected 3 independent flushes, got %d", len(flushes))
	}

	want := keyseq.PressAndRelease(evdev.KEY_BACKSPACE)
	for i, flush := range flushes {
		if len(flush) != len(want) {
			t.Fatalf("Flush %d has %d events, want %d", i, len(flush), len(want))
		}
		for k := range want {
			if flush[k] != want[k] {
				t.Fatalf("Flush %d event %d = %v, want %v", i, k, flush[k], want[k])
			}
		}
	}
}

// TestComboPipeline verifies the full chord path: parse, emit, and check
// the modifier bracket ordering on the wire.
func TestComboPipeline(t *testing.T) {
	ch, err := chord.Parse("ctrl+shift+t")
	if err != nil {
		t.Fatalf("Failed to parse chord: %v", err)
	}

	out := emulate.NewSimulatedBackend()
	if err := out.SendKeyCombination(ch); err != nil {
		t.Fatalf("Failed to send combination: %v", err)
	}

	flushes := out.Flushes()
	if len(flushes) != 1 {
		t.Fatalf("Expected one flush, got %d", len(flushes))
	}
	seq := flushes[0]
	assertBalanced(t, seq)

	want := keyseq.Sequence{
		keyseq.Press(evdev.KEY_LEFTCTRL),
		keyseq.Press(evdev.KEY_LEFTSHIFT),
		keyseq.Press(evdev.KEY_T),
		keyseq.Sync(),
		keyseq.Release(evdev.KEY_T),
		keyseq.Release(evdev.KEY_LEFTSHIFT),
		keyseq.Release(evdev.KEY_LEFTCTRL),
		keyseq.Sync(),
	}
	if len(seq) != len(want) {
		t.Fatalf("Combination flush has %d events, want %d", len(seq), len(want))
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("Event %d = %v, want %v", i, seq[i], want[i])
		}
	}
}

// TestEmptyStringEmission verifies the empty string is a no-op all the way
// down: nothing reaches the device.
func TestEmptyStringEmission(t *testing.T) {
	out := emulate.NewSimulatedBackend()
	if err := out.SendString(""); err != nil {
		t.Fatalf("Empty string send failed: %v", err)
	}
	if got := len(out.Flushes()); got != 0 {
		t.Fatalf("Empty string produced %d flushes, want 0", got)
	}
}

// =============================================================================
// INTEGRATION: Unicode Fallback
// =============================================================================

// TestUnicodeFallbackPipeline verifies that a character outside the key
// table survives the full path from encoding to capture replay with the
// gesture's modifier bracket intact.
func TestUnicodeFallbackPipeline(t *testing.T) {
	out := emulate.NewSimulatedBackend()
	if err := out.SendString("€"); err != nil {
		t.Fatalf("Failed to send euro sign: %v", err)
	}

	flushes := out.Flushes()
	if len(flushes) != 1 {
		t.Fatalf("Expected one flush, got %d", len(flushes))
	}
	seq := flushes[0]
	if len(seq) != 26 {
		t.Fatalf("Euro sign encoded as %d events, want 26", len(seq))
	}
	assertBalanced(t, seq)

	// The gesture opens with ctrl+shift held and the first tap after the
	// bracket is the literal u key.
	if !seq[0].IsPress() || seq[0].Code != evdev.KEY_LEFTCTRL {
		t.Fatalf("Gesture does not open with ctrl press: %v", seq[0])
	}
	if !seq[1].IsPress() || seq[1].Code != evdev.KEY_LEFTSHIFT {
		t.Fatalf("Gesture does not hold shift second: %v", seq[1])
	}
	if !seq[3].IsPress() || seq[3].Code != evdev.KEY_U {
		t.Fatalf("Gesture does not tap u: %v", seq[3])
	}

	// Replay through capture and verify every edge arrives in order.
	in := capture.NewSimulatedBackend()
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start capture: %v", err)
	}
	var injected []keyseq.KeyCode
	for _, ev := range seq {
		if ev.IsMarker() {
			continue
		}
		in.InjectKey(ev.Code, ev.IsPress())
		injected = append(injected, ev.Code)
	}
	in.Cancel()

	i := 0
	for got := range in.Events() {
		if got.Code != injected[i] {
			t.Fatalf("Event %d: code %d, want %d", i, got.Code, injected[i])
		}
		i++
	}
	if i != len(injected) {
		t.Fatalf("Delivered %d events, injected %d", i, len(injected))
	}
}

// =============================================================================
// INTEGRATION: Suppression
// =============================================================================

// TestSuppressionReplacementWhileRunning verifies the suppression set can
// be swapped mid-capture without a restart and that every transition is
// still delivered to the observer.
func TestSuppressionReplacementWhileRunning(t *testing.T) {
	in := capture.NewSimulatedBackend()
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start capture: %v", err)
	}

	in.Suppress([]keyseq.KeyCode{evdev.KEY_A})
	if in.InjectKey(evdev.KEY_A, true) {
		t.Fatal("KEY_A press forwarded while suppressed")
	}
	if !in.InjectKey(evdev.KEY_B, true) {
		t.Fatal("KEY_B press suppressed unexpectedly")
	}

	// Replace the set without restarting.
	in.Suppress([]keyseq.KeyCode{evdev.KEY_B})
	if !in.InjectKey(evdev.KEY_A, false) {
		t.Fatal("KEY_A release suppressed after set replacement")
	}
	if in.InjectKey(evdev.KEY_B, false) {
		t.Fatal("KEY_B release forwarded after set replacement")
	}

	if err := in.Cancel(); err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}

	delivered := 0
	for range in.Events() {
		delivered++
	}
	if delivered != 4 {
		t.Fatalf("Delivered %d events, want 4", delivered)
	}
}

// TestConfigDrivenSuppression resolves suppress keys the way the CLI does,
// from config entry to live capture filter.
func TestConfigDrivenSuppression(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Capture.SuppressKeys = []string{"capslock", "f13"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config with valid suppress keys failed validation: %v", err)
	}

	codes := make([]keyseq.KeyCode, 0, len(cfg.Capture.SuppressKeys))
	for _, name := range cfg.Capture.SuppressKeys {
		ch, err := chord.Parse(name)
		if err != nil {
			t.Fatalf("Failed to resolve %q: %v", name, err)
		}
		codes = append(codes, ch.Key)
	}

	in := capture.NewSimulatedBackend()
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start capture: %v", err)
	}
	defer in.Cancel()
	in.Suppress(codes)

	if in.InjectKey(evdev.KEY_CAPSLOCK, true) {
		t.Fatal("capslock forwarded despite config suppression")
	}
	if in.InjectKey(evdev.KEY_F13, true) {
		t.Fatal("f13 forwarded despite config suppression")
	}
	if !in.InjectKey(evdev.KEY_SPACE, true) {
		t.Fatal("space suppressed without being configured")
	}
}

// =============================================================================
// INTEGRATION: Journal Persistence
// =============================================================================

// TestJournalPersistenceAndRecovery verifies that journal state survives a
// close and reopen cycle.
func TestJournalPersistenceAndRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.Open(path, 5000)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}

	ops := []journal.Op{journal.OpString, journal.OpBackspaces, journal.OpCombo}
	for i, op := range ops {
		if _, err := j.Record(&journal.Entry{
			Op:         op,
			Units:      i + 1,
			Events:     4 * (i + 1),
			Backend:    "simulated",
			DurationUs: int64(100 * (i + 1)),
		}); err != nil {
			t.Fatalf("Failed to record %s: %v", op, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Failed to close journal: %v", err)
	}

	j2, err := journal.Open(path, 5000)
	if err != nil {
		t.Fatalf("Failed to reopen journal: %v", err)
	}
	defer j2.Close()

	entries, err := j2.Recent(10)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recovered %d entries, want 3", len(entries))
	}

	st, err := j2.Stats()
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if st.Total != 3 {
		t.Fatalf("Total = %d, want 3", st.Total)
	}
	if st.Events != 4+8+12 {
		t.Fatalf("Events = %d, want 24", st.Events)
	}
	for _, op := range ops {
		if st.ByOp[op] != 1 {
			t.Fatalf("ByOp[%s] = %d, want 1", op, st.ByOp[op])
		}
	}
}

// TestConcurrentEmissionsAndJournal runs independent emulators in parallel
// against one shared journal.
func TestConcurrentEmissionsAndJournal(t *testing.T) {
	j := openJournal(t)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			out := emulate.NewSimulatedBackend()
			for i := 0; i < perWorker; i++ {
				text := fmt.Sprintf("worker %d message %d", w, i)
				if err := out.SendString(text); err != nil {
					errCh <- fmt.Errorf("worker %d send: %w", w, err)
					return
				}
				if _, err := j.Record(&journal.Entry{
					Op:      journal.OpString,
					Units:   utf8.RuneCountInString(text),
					Events:  len(keyseq.EncodeString(text)),
					Backend: out.Name(),
				}); err != nil {
					errCh <- fmt.Errorf("worker %d record: %w", w, err)
					return
				}
			}
			if got := len(out.Flushes()); got != perWorker {
				errCh <- fmt.Errorf("worker %d flushed %d times, want %d", w, got, perWorker)
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	st, err := j.Stats()
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if st.Total != workers*perWorker {
		t.Fatalf("Total = %d, want %d", st.Total, workers*perWorker)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), 5000)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// assertBalanced verifies a sequence never re-presses a held key, releases
// everything it presses and ends with a sync marker.
func assertBalanced(t *testing.T, seq keyseq.Sequence) {
	t.Helper()
	held := make(map[keyseq.KeyCode]bool)
	for i, ev := range seq {
		switch {
		case ev.IsPress():
			if held[ev.Code] {
				t.Fatalf("Event %d re-presses held key %d", i, ev.Code)
			}
			held[ev.Code] = true
		case ev.IsRelease():
			if !held[ev.Code] {
				t.Fatalf("Event %d releases unheld key %d", i, ev.Code)
			}
			delete(held, ev.Code)
		}
	}
	if len(held) != 0 {
		t.Fatalf("%d keys left held at end of sequence", len(held))
	}
	if len(seq) > 0 && !seq[len(seq)-1].IsMarker() {
		t.Fatal("Sequence does not end with a sync marker")
	}
}
