package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/holoplot/go-evdev"

	"keyscribe/internal/emulate"
	"keyscribe/internal/keyseq"
	"keyscribe/internal/logging"
	"keyscribe/internal/metrics"
)

const (
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// inputDir is where the kernel exposes event device nodes.
const inputDir = "/dev/input"

// passthroughSuffix marks the uinput clones created for forwarding.
// Discovery skips devices carrying it so a rescan never grabs our own
// passthrough device and feeds forwarded events back into the pump.
const passthroughSuffix = " (keyscribe)"

// eventBuffer is the delivery channel capacity. A full channel
// backpressures the pump, which also delays forwarding; subscribers are
// expected to drain promptly.
const eventBuffer = 64

// eventReader reads raw input events from a device.
type eventReader interface {
	ReadOne() (*evdev.InputEvent, error)
}

// eventWriter writes raw input events to a device.
type eventWriter interface {
	WriteOne(*evdev.InputEvent) error
}

// deviceTap is one grabbed keyboard and its passthrough clone.
type deviceTap struct {
	path  string
	dev   *evdev.InputDevice
	clone *evdev.InputDevice
}

// EvdevBackend grabs /dev/input keyboards. Grabbing gives this process
// exclusive delivery, so each grabbed device gets a uinput clone through
// which non-suppressed events are forwarded to the rest of the system.
type EvdevBackend struct {
	log *logging.Logger
	met *metrics.KeyscribeMetrics

	explicit []string
	hotplug  bool

	mu      sync.Mutex
	taps    map[string]*deviceTap
	running bool

	supMu    sync.RWMutex
	suppress map[keyseq.KeyCode]struct{}

	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	watcher *fsnotify.Watcher

	stopOnce sync.Once
}

// NewEvdevBackend probes device availability and returns an unstarted
// backend. With pinned devices every path must be openable; otherwise at
// least one capturable keyboard must be discoverable.
func NewEvdevBackend(devices []string, hotplug bool, log *logging.Logger, met *metrics.KeyscribeMetrics) (*EvdevBackend, error) {
	if log == nil {
		log = logging.Default().WithComponent("capture")
	}
	if met == nil {
		met = metrics.GetMetrics()
	}

	if len(devices) > 0 {
		for _, path := range devices {
			dev, err := evdev.OpenWithFlags(path, os.O_RDONLY)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", path, err)
			}
			dev.Close()
		}
	} else {
		paths, err := discoverKeyboards(log)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, ErrNoDevices
		}
	}

	return &EvdevBackend{
		log:      log,
		met:      met,
		explicit: append([]string(nil), devices...),
		hotplug:  hotplug,
		taps:     make(map[string]*deviceTap),
		suppress: make(map[keyseq.KeyCode]struct{}),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}, nil
}

// discoverKeyboards scans /dev/input for devices that expose the key
// codes a keyboard would. Devices created by this process are skipped.
func discoverKeyboards(log *logging.Logger) ([]string, error) {
	keyboards, err := listKeyboards(log)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(keyboards))
	for _, kb := range keyboards {
		paths = append(paths, kb.Path)
	}
	return paths, nil
}

// KeyboardInfo identifies one capturable keyboard device.
type KeyboardInfo struct {
	// Path is the /dev/input/event* node.
	Path string
	// Name is the kernel device name.
	Name string
}

// Keyboards lists the keyboards automatic discovery would grab: every
// readable input node that looks like a text keyboard, excluding
// virtual devices created by this process.
func Keyboards() ([]KeyboardInfo, error) {
	return listKeyboards(logging.Default().WithComponent("capture"))
}

func listKeyboards(log *logging.Logger) ([]KeyboardInfo, error) {
	entries, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	var keyboards []KeyboardInfo
	for _, entry := range entries {
		if isOwnDevice(entry.Name) {
			continue
		}
		dev, err := evdev.OpenWithFlags(entry.Path, os.O_RDONLY)
		if err != nil {
			log.Debug("input device not readable", "path", entry.Path, "error", err)
			continue
		}
		keyboard := isKeyboard(dev)
		dev.Close()
		if keyboard {
			keyboards = append(keyboards, KeyboardInfo{Path: entry.Path, Name: entry.Name})
		}
	}
	return keyboards, nil
}

// isKeyboard reports whether the device exposes enough of the key range
// to act as a text keyboard. Requiring both a letter and enter filters
// out mice, power buttons and lid switches, which also report EV_KEY.
func isKeyboard(dev *evdev.InputDevice) bool {
	var hasA, hasEnter bool
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		switch code {
		case evdev.KEY_A:
			hasA = true
		case evdev.KEY_ENTER:
			hasEnter = true
		}
	}
	return hasA && hasEnter
}

// isOwnDevice reports whether the named device was created by this
// process. Grabbing our own output or passthrough device would feed
// synthesized events straight back into capture.
func isOwnDevice(name string) bool {
	return strings.HasPrefix(name, emulate.DefaultDeviceName) ||
		strings.HasSuffix(name, passthroughSuffix)
}

// Start grabs the configured keyboards and begins pumping events.
func (b *EvdevBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.running = true
	b.mu.Unlock()

	paths := b.explicit
	if len(paths) == 0 {
		var err error
		paths, err = discoverKeyboards(b.log)
		if err != nil {
			b.fail()
			return err
		}
	}

	attached := 0
	for _, path := range paths {
		if err := b.attach(path); err != nil {
			b.log.Warn("skipping device", "path", path, "error", err)
			continue
		}
		attached++
	}
	if attached == 0 {
		b.fail()
		return ErrNoDevices
	}

	if b.hotplug {
		if err := b.watchHotplug(); err != nil {
			b.log.Warn("hotplug watch unavailable", "error", err)
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			b.Cancel()
		case <-b.done:
		}
	}()

	return nil
}

func (b *EvdevBackend) fail() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
}

// attach opens, verifies and grabs one device node, then starts its pump.
func (b *EvdevBackend) attach(path string) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return fmt.Errorf("capture not running")
	}
	if _, ok := b.taps[path]; ok {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	dev, err := evdev.OpenWithFlags(path, os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	name, err := dev.Name()
	if err != nil {
		name = path
	}
	if !isKeyboard(dev) || isOwnDevice(name) {
		dev.Close()
		return fmt.Errorf("not a capturable keyboard")
	}
	if err := dev.Grab(); err != nil {
		dev.Close()
		return fmt.Errorf("grab: %w", err)
	}
	clone, err := evdev.CloneDevice(name+passthroughSuffix, dev)
	if err != nil {
		dev.Close()
		return fmt.Errorf("clone for passthrough: %w", err)
	}

	tap := &deviceTap{path: path, dev: dev, clone: clone}

	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		dev.Close()
		clone.Close()
		return fmt.Errorf("capture not running")
	}
	b.taps[path] = tap
	b.wg.Add(1)
	b.mu.Unlock()

	b.met.DeviceGrabbed()
	b.log.Info("keyboard grabbed", "path", path, "name", name)

	go func() {
		defer b.wg.Done()
		b.pump(path, dev, clone)
		b.detach(path)
	}()
	return nil
}

// detach releases one device after its pump exits. During Cancel the tap
// map is already emptied, so detach is a no-op there and the shutdown
// path closes the handles instead.
func (b *EvdevBackend) detach(path string) {
	b.mu.Lock()
	tap, ok := b.taps[path]
	if ok {
		delete(b.taps, path)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	tap.dev.Close()
	tap.clone.Close()
	b.met.DeviceReleased()
	b.log.Info("keyboard released", "path", path)
}

// pump reads one device until it fails or capture is cancelled. Every key
// press and release is delivered on the events channel; non-suppressed
// events are forwarded to the passthrough writer with a sync marker after
// each key so downstream consumers see them immediately.
func (b *EvdevBackend) pump(path string, r eventReader, w eventWriter) {
	var lastPress time.Time

	for {
		ev, err := r.ReadOne()
		if err != nil {
			select {
			case <-b.done:
			default:
				b.log.Debug("device read ended", "path", path, "error", err)
			}
			return
		}

		switch ev.Type {
		case evdev.EV_KEY:
			suppressed := b.isSuppressed(ev.Code)

			switch ev.Value {
			case keyPress, keyRelease:
				out := Event{
					Code:    ev.Code,
					Pressed: ev.Value == keyPress,
					When:    time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*1000),
					Device:  path,
				}
				select {
				case b.events <- out:
				case <-b.done:
					return
				}
				b.met.RecordCaptureEvent(!suppressed)

				if ev.Value == keyPress {
					if !lastPress.IsZero() {
						b.met.RecordKeyInterval(out.When.Sub(lastPress))
					}
					lastPress = out.When
				}
			case keyRepeat:
				// Forwarded below, never delivered.
			}

			if suppressed {
				continue
			}
			if err := w.WriteOne(ev); err != nil {
				b.log.Warn("passthrough write failed", "path", path, "error", err)
				continue
			}
			_ = w.WriteOne(&evdev.InputEvent{Time: ev.Time, Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})

		case evdev.EV_SYN:
			// Swallowed: forwarding flushes per key above.

		default:
			_ = w.WriteOne(ev)
		}
	}
}

func (b *EvdevBackend) isSuppressed(code keyseq.KeyCode) bool {
	b.supMu.RLock()
	defer b.supMu.RUnlock()
	_, ok := b.suppress[code]
	return ok
}

// Suppress replaces the suppression set.
func (b *EvdevBackend) Suppress(codes []keyseq.KeyCode) {
	set := make(map[keyseq.KeyCode]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	b.supMu.Lock()
	b.suppress = set
	b.supMu.Unlock()
	b.met.SetSuppressedKeys(int64(len(set)))
}

// watchHotplug attaches keyboards that appear under /dev/input while
// capture is running.
func (b *EvdevBackend) watchHotplug() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(inputDir); err != nil {
		watcher.Close()
		return err
	}
	b.watcher = watcher

	b.mu.Lock()
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create == 0 {
					continue
				}
				if !strings.HasPrefix(filepath.Base(event.Name), "event") {
					continue
				}
				// Wait for udev to settle the node's permissions.
				time.Sleep(100 * time.Millisecond)
				if err := b.attach(event.Name); err != nil {
					b.log.Debug("hotplug attach skipped", "path", event.Name, "error", err)
					continue
				}
				b.met.RecordHotplugAttach()
				b.log.Info("hotplug keyboard attached", "path", event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.log.Warn("hotplug watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Events returns the delivery channel.
func (b *EvdevBackend) Events() <-chan Event {
	return b.events
}

// Cancel stops capture, releases every grabbed device and closes the
// events channel once all pumps have exited.
func (b *EvdevBackend) Cancel() error {
	b.stopOnce.Do(func() {
		close(b.done)
		if b.watcher != nil {
			b.watcher.Close()
		}

		b.mu.Lock()
		taps := b.taps
		b.taps = make(map[string]*deviceTap)
		b.running = false
		b.mu.Unlock()

		// Closing the source handle unblocks its pump's read.
		for _, tap := range taps {
			tap.dev.Close()
			tap.clone.Close()
			b.met.DeviceReleased()
		}

		b.wg.Wait()
		close(b.events)
	})
	return nil
}

// Name identifies the backend.
func (b *EvdevBackend) Name() string {
	return "evdev"
}
