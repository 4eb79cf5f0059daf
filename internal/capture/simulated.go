package capture

import (
	"context"
	"sync"
	"time"

	"keyscribe/internal/keyseq"
)

// SimulatedBackend delivers scripted key events without touching real
// devices. Tests and dry runs drive it through InjectKey.
type SimulatedBackend struct {
	mu       sync.Mutex
	suppress map[keyseq.KeyCode]struct{}
	events   chan Event
	started  bool
	closed   bool
}

// NewSimulatedBackend creates a scriptable backend.
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{
		suppress: make(map[keyseq.KeyCode]struct{}),
		events:   make(chan Event, eventBuffer),
	}
}

// Start marks the backend running. The context is ignored.
func (b *SimulatedBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true
	return nil
}

// InjectKey delivers one scripted transition and reports whether it would
// have been forwarded to the rest of the system (false when the code is
// suppressed). Injecting before Start or after Cancel delivers nothing.
func (b *SimulatedBackend) InjectKey(code keyseq.KeyCode, pressed bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started || b.closed {
		return false
	}
	select {
	case b.events <- Event{Code: code, Pressed: pressed, When: time.Now(), Device: "simulated"}:
	default:
	}
	_, sup := b.suppress[code]
	return !sup
}

// Suppress replaces the suppression set.
func (b *SimulatedBackend) Suppress(codes []keyseq.KeyCode) {
	set := make(map[keyseq.KeyCode]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	b.mu.Lock()
	b.suppress = set
	b.mu.Unlock()
}

// Events returns the delivery channel.
func (b *SimulatedBackend) Events() <-chan Event {
	return b.events
}

// Cancel stops delivery and closes the events channel.
func (b *SimulatedBackend) Cancel() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.started = false
		close(b.events)
	}
	return nil
}

// Name identifies the backend.
func (b *SimulatedBackend) Name() string {
	return "simulated"
}
