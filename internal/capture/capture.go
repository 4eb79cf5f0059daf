// Package capture grabs physical keyboards and streams their key events.
//
// IMPORTANT: unlike plain event counting, capture sees which keys are
// pressed. Key codes flow to exactly two places: the subscriber channel
// and the passthrough device that keeps non-suppressed keys working for
// the rest of the system. They are never logged and never persisted.
//
// Every key press and release observed on a captured device is delivered
// on the Events channel, whether or not the key is suppressed. The
// suppression set only decides what the rest of the system sees: a
// suppressed key is swallowed instead of forwarded, so no other
// application receives it.
//
// Backend support:
//   - evdev: grabs /dev/input/event* nodes (requires input group or root)
//     and forwards through a cloned uinput device
//   - wayland: not supported; the compositor protocols this project uses
//     only inject events, they cannot observe them
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keyscribe/internal/keyseq"
	"keyscribe/internal/logging"
	"keyscribe/internal/metrics"
)

// ErrNotSupported is returned when a backend cannot capture on this system.
var ErrNotSupported = errors.New("capture not supported")

// ErrAlreadyStarted is returned when Start is called on a running backend.
var ErrAlreadyStarted = errors.New("capture already started")

// ErrNoDevices is returned when no capturable keyboard device is found.
var ErrNoDevices = errors.New("no capturable keyboard devices")

// Event is one key transition observed on a captured device.
type Event struct {
	// Code is the evdev key code of the transition.
	Code keyseq.KeyCode
	// Pressed is true for a key press and false for a release. Autorepeat
	// transitions are not delivered.
	Pressed bool
	// When is the kernel timestamp of the underlying input event.
	When time.Time
	// Device is the path of the device node the event was read from.
	Device string
}

// Backend is one concrete way to observe keyboard input.
type Backend interface {
	// Start grabs the configured devices and begins delivering events.
	// Cancelling ctx tears capture down the same way Cancel does.
	Start(ctx context.Context) error

	// Suppress replaces the suppression set. Suppressed keys are still
	// delivered on Events but are swallowed instead of forwarded. An
	// empty or nil slice clears the set.
	Suppress(codes []keyseq.KeyCode)

	// Events returns the delivery channel. It is closed after Cancel
	// has released every device.
	Events() <-chan Event

	// Cancel stops capture, releases all grabbed devices and closes the
	// events channel. It is safe to call more than once.
	Cancel() error

	// Name identifies the backend.
	Name() string
}

// Options configures a Capturer.
type Options struct {
	// Backend picks the capture mechanism: "evdev", "wayland" or "auto"
	// (the default). "auto" resolves to evdev; the wayland entry exists
	// so a pinned choice fails with a clear unsupported error instead of
	// silently capturing through a different mechanism.
	Backend string

	// Devices pins the device nodes to capture. When empty, keyboards
	// are discovered by scanning /dev/input.
	Devices []string

	// Hotplug attaches keyboards that appear while capture is running.
	Hotplug bool

	// Logger overrides the default component logger.
	Logger *logging.Logger

	// Metrics overrides the global metrics instance.
	Metrics *metrics.KeyscribeMetrics
}

// Capturer observes keyboard input through whichever backend was resolved
// at construction time. All methods delegate to that backend.
type Capturer struct {
	backend Backend
}

type constructor func() (Backend, error)

// New resolves a capture backend and returns the facade bound to it.
func New(opts Options) (*Capturer, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Default().WithComponent("capture")
	}
	met := opts.Metrics
	if met == nil {
		met = metrics.GetMetrics()
	}

	preferred := func() (Backend, error) { return NewEvdevBackend(opts.Devices, opts.Hotplug, log, met) }
	fallback := func() (Backend, error) { return NewWaylandBackend() }

	var (
		b   Backend
		err error
	)
	switch opts.Backend {
	case "", "auto":
		b, err = resolveBackend(log, "evdev", preferred, "wayland", fallback)
	case "evdev":
		b, err = preferred()
	case "wayland":
		b, err = fallback()
	default:
		return nil, fmt.Errorf("unknown capture backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("capture backend ready", "backend", b.Name())
	return &Capturer{backend: b}, nil
}

// resolveBackend attempts the preferred constructor, falling back exactly
// once. When both fail the joined causes surface as one error.
func resolveBackend(log *logging.Logger, preferredName string, preferred constructor, fallbackName string, fallback constructor) (Backend, error) {
	b, perr := preferred()
	if perr == nil {
		return b, nil
	}
	log.Warn("preferred capture backend failed, falling back",
		"preferred", preferredName, "fallback", fallbackName, "error", perr)

	b, ferr := fallback()
	if ferr == nil {
		return b, nil
	}
	return nil, fmt.Errorf("no capture backend available: %w",
		errors.Join(
			fmt.Errorf("%s: %w", preferredName, perr),
			fmt.Errorf("%s: %w", fallbackName, ferr),
		))
}

// Start begins capture.
func (c *Capturer) Start(ctx context.Context) error {
	return c.backend.Start(ctx)
}

// Suppress replaces the suppression set.
func (c *Capturer) Suppress(codes []keyseq.KeyCode) {
	c.backend.Suppress(codes)
}

// Events returns the delivery channel.
func (c *Capturer) Events() <-chan Event {
	return c.backend.Events()
}

// Cancel stops capture and releases all devices.
func (c *Capturer) Cancel() error {
	return c.backend.Cancel()
}

// BackendName reports which backend was resolved.
func (c *Capturer) BackendName() string {
	return c.backend.Name()
}
