package emulate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holoplot/go-evdev"

	"keyscribe/internal/chord"
	"keyscribe/internal/keyseq"
)

// SimulatedBackend records every device flush instead of touching real
// hardware. Tests and dry runs use it to observe exact flush boundaries.
type SimulatedBackend struct {
	mu        sync.Mutex
	flushes   []keyseq.Sequence
	failFlush int
	closed    bool
}

// NewSimulatedBackend creates a recording backend.
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{}
}

// FailOnFlush makes the n-th flush attempt (1-based) fail. Zero disables
// failure injection.
func (b *SimulatedBackend) FailOnFlush(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failFlush = n
}

// Flushes returns a copy of everything flushed so far, one sequence per
// device flush.
func (b *SimulatedBackend) Flushes() []keyseq.Sequence {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]keyseq.Sequence, len(b.flushes))
	copy(out, b.flushes)
	return out
}

func (b *SimulatedBackend) flush(seq keyseq.Sequence) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("simulated backend closed")
	}
	if b.failFlush > 0 && len(b.flushes)+1 == b.failFlush {
		return errors.New("simulated flush failure")
	}
	cp := make(keyseq.Sequence, len(seq))
	copy(cp, seq)
	b.flushes = append(b.flushes, cp)
	return nil
}

// SendBackspaces records count independent flushes.
func (b *SimulatedBackend) SendBackspaces(count int) error {
	group := keyseq.PressAndRelease(evdev.KEY_BACKSPACE)
	for i := 0; i < count; i++ {
		if err := b.flush(group); err != nil {
			return fmt.Errorf("backspace %d of %d: %w", i+1, count, err)
		}
	}
	return nil
}

// SendString records the encoded text as one flush.
func (b *SimulatedBackend) SendString(text string) error {
	seq := keyseq.EncodeString(text)
	if len(seq) == 0 {
		return nil
	}
	return b.flush(seq)
}

// SendKeyCombination records the chord's sequence as one flush.
func (b *SimulatedBackend) SendKeyCombination(ch chord.Chord) error {
	return b.flush(ch.Sequence())
}

func (b *SimulatedBackend) Name() string {
	return "simulated"
}

func (b *SimulatedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
