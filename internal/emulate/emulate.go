// Package emulate synthesizes keyboard input indistinguishable from a
// physical keyboard.
//
// Two backends exist with incompatible APIs but identical contracts: a
// kernel uinput virtual device (preferred) and the Wayland virtual-keyboard
// protocol (fallback). Construction resolves exactly one of them; after
// that every call is pure delegation to the chosen backend. There is no
// third tier and the decision is never revisited.
//
// Emulator methods are synchronous and blocking: the device has accepted
// the whole event group before the call returns. Callers must serialize
// use of a single Emulator; interleaved partial groups would leave the
// virtual device in an inconsistent modifier state with no recovery path.
package emulate

import (
	"context"
	"errors"
	"fmt"

	"keyscribe/internal/chord"
	"keyscribe/internal/logging"
)

// ErrInvalidInput marks a contract violation by the caller: a negative
// backspace count or an unparseable key combination. The device is never
// touched on this path.
var ErrInvalidInput = errors.New("invalid input")

// Backend is one concrete way to deliver synthesized input to the system.
// Implementations own their device handle exclusively and release it on
// Close.
type Backend interface {
	SendBackspaces(count int) error
	SendString(text string) error
	SendKeyCombination(ch chord.Chord) error
	Name() string
	Close() error
}

// Options configures Emulator construction.
type Options struct {
	// Context is used by backends that hold a long-lived connection
	// (the Wayland backend). Defaults to context.Background().
	Context context.Context

	// DeviceName names the virtual device where the backend registers
	// one. Empty means DefaultDeviceName.
	DeviceName string

	// Backend pins a specific backend: "uinput" or "wayland". Empty or
	// "auto" resolves preferred-then-fallback.
	Backend string

	// Logger receives the fallback warning and lifecycle messages.
	// Defaults to the package default logger.
	Logger *logging.Logger
}

// Emulator is the uniform front over exactly one backend.
type Emulator struct {
	backend Backend
}

type constructor func() (Backend, error)

// New resolves a backend and returns the facade bound to it. With Backend
// "auto" it attempts uinput first; on failure the cause is logged as a
// warning and the Wayland backend is constructed instead. If that fails
// too, the joined causes surface as one fatal construction error.
func New(opts Options) (*Emulator, error) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default().WithComponent("emulate")
	}

	preferred := func() (Backend, error) { return NewUinputBackend(opts.DeviceName) }
	fallback := func() (Backend, error) { return NewWaylandBackend(ctx) }

	var (
		b   Backend
		err error
	)
	switch opts.Backend {
	case "", "auto":
		b, err = resolveBackend(log, "uinput", preferred, "wayland", fallback)
	case "uinput":
		b, err = preferred()
	case "wayland":
		b, err = fallback()
	default:
		return nil, fmt.Errorf("%w: unknown emulation backend %q", ErrInvalidInput, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("emulation backend ready", "backend", b.Name())
	return &Emulator{backend: b}, nil
}

// resolveBackend attempts the preferred constructor, falling back exactly
// once. Failed constructors leave no residual device handle behind; when
// both fail the joined causes surface as one error.
func resolveBackend(log *logging.Logger, preferredName string, preferred constructor, fallbackName string, fallback constructor) (Backend, error) {
	b, perr := preferred()
	if perr == nil {
		return b, nil
	}
	log.Warn("preferred emulation backend failed, falling back",
		"preferred", preferredName, "fallback", fallbackName, "error", perr)

	b, ferr := fallback()
	if ferr == nil {
		return b, nil
	}
	return nil, fmt.Errorf("no emulation backend available: %w",
		errors.Join(
			fmt.Errorf("%s: %w", preferredName, perr),
			fmt.Errorf("%s: %w", fallbackName, ferr),
		))
}

// SendBackspaces emits count independent backspace keystrokes, each
// flushed separately. A failure mid-way leaves a well-defined prefix
// already delivered. A negative count fails fast without touching the
// device.
func (e *Emulator) SendBackspaces(count int) error {
	if count < 0 {
		return fmt.Errorf("%w: negative backspace count %d", ErrInvalidInput, count)
	}
	return e.backend.SendBackspaces(count)
}

// SendString types text as one flush. The empty string is a no-op.
func (e *Emulator) SendString(text string) error {
	return e.backend.SendString(text)
}

// SendKeyCombination parses a symbolic combination like "ctrl+shift+a" and
// emits it as one flush: modifiers down in order, base key tapped,
// modifiers up in reverse order.
func (e *Emulator) SendKeyCombination(combo string) error {
	ch, err := chord.Parse(combo)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return e.backend.SendKeyCombination(ch)
}

// BackendName reports which backend construction bound.
func (e *Emulator) BackendName() string {
	return e.backend.Name()
}

// Close releases the backend's device handle.
func (e *Emulator) Close() error {
	return e.backend.Close()
}
