package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), 5000)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "journal.db")

	j, err := Open(dbPath, 5000)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := j.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "journal.db")

	j, err := Open(dbPath, 5000)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()
}

func TestCloseNilDB(t *testing.T) {
	j := &Journal{db: nil}
	if err := j.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestRecordAndGet(t *testing.T) {
	j := openTestJournal(t)

	entry := &Entry{
		At:         time.Now(),
		Op:         OpString,
		Units:      3,
		Events:     26,
		Backend:    "uinput",
		DurationUs: 1200,
	}

	id, err := j.Record(entry)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive id, got %d", id)
	}

	retrieved, err := j.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Get returned nil")
	}

	if retrieved.Op != OpString {
		t.Errorf("Op mismatch: expected %s, got %s", OpString, retrieved.Op)
	}
	if retrieved.Units != 3 {
		t.Errorf("Units mismatch: expected 3, got %d", retrieved.Units)
	}
	if retrieved.Events != 26 {
		t.Errorf("Events mismatch: expected 26, got %d", retrieved.Events)
	}
	if retrieved.Backend != "uinput" {
		t.Errorf("Backend mismatch: expected uinput, got %s", retrieved.Backend)
	}
	if retrieved.DurationUs != 1200 {
		t.Errorf("DurationUs mismatch: expected 1200, got %d", retrieved.DurationUs)
	}
	if retrieved.Error != "" {
		t.Errorf("expected empty error, got %q", retrieved.Error)
	}
}

func TestGetNotFound(t *testing.T) {
	j := openTestJournal(t)

	entry, err := j.Get(12345)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Error("expected nil for nonexistent entry")
	}
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	j := openTestJournal(t)

	before := time.Now()
	id, err := j.Record(&Entry{Op: OpCombo, Units: 1, Events: 4, Backend: "uinput"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	retrieved, err := j.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.At.Before(before.Add(-time.Second)) {
		t.Errorf("timestamp not defaulted: %v", retrieved.At)
	}
}

func TestRecentOrder(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		_, err := j.Record(&Entry{
			At:      base.Add(time.Duration(i) * time.Second),
			Op:      OpBackspaces,
			Units:   i + 1,
			Events:  (i + 1) * 2,
			Backend: "uinput",
		})
		if err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	entries, err := j.Recent(3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Newest first
	if entries[0].Units != 5 {
		t.Errorf("expected newest entry first, got units %d", entries[0].Units)
	}
	if entries[2].Units != 3 {
		t.Errorf("expected third newest last, got units %d", entries[2].Units)
	}
}

func TestSince(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now()
	for i := 0; i < 4; i++ {
		_, err := j.Record(&Entry{
			At:      base.Add(time.Duration(i) * time.Minute),
			Op:      OpString,
			Units:   i,
			Backend: "uinput",
		})
		if err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	entries, err := j.Since(base.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("Since failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	// Oldest first
	if entries[0].Units != 2 || entries[1].Units != 3 {
		t.Errorf("unexpected order: units %d, %d", entries[0].Units, entries[1].Units)
	}
}

func TestStats(t *testing.T) {
	j := openTestJournal(t)

	records := []Entry{
		{Op: OpString, Units: 5, Events: 12, Backend: "uinput"},
		{Op: OpString, Units: 2, Events: 8, Backend: "uinput"},
		{Op: OpBackspaces, Units: 3, Events: 12, Backend: "uinput"},
		{Op: OpCombo, Units: 1, Events: 6, Backend: "wayland", Error: "device gone"},
	}
	for i := range records {
		if _, err := j.Record(&records[i]); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("expected total 4, got %d", stats.Total)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failed)
	}
	if stats.Events != 38 {
		t.Errorf("expected 38 events, got %d", stats.Events)
	}
	if stats.ByOp[OpString] != 2 {
		t.Errorf("expected 2 string ops, got %d", stats.ByOp[OpString])
	}
	if stats.ByOp[OpBackspaces] != 1 {
		t.Errorf("expected 1 backspaces op, got %d", stats.ByOp[OpBackspaces])
	}
	if stats.ByOp[OpCombo] != 1 {
		t.Errorf("expected 1 combo op, got %d", stats.ByOp[OpCombo])
	}
}

func TestStatsEmpty(t *testing.T) {
	j := openTestJournal(t)

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 0 || stats.Failed != 0 || stats.Events != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if len(stats.ByOp) != 0 {
		t.Errorf("expected empty op map, got %v", stats.ByOp)
	}
}

func TestPrune(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now()
	for i := 0; i < 6; i++ {
		_, err := j.Record(&Entry{
			At:      base.Add(time.Duration(i) * time.Hour),
			Op:      OpString,
			Units:   1,
			Backend: "uinput",
		})
		if err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	removed, err := j.Prune(base.Add(3 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected 3 remaining, got %d", stats.Total)
	}
}

func TestSize(t *testing.T) {
	j := openTestJournal(t)

	size, err := j.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size <= 0 {
		t.Errorf("expected positive size, got %d", size)
	}
}
