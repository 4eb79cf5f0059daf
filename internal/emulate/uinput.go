package emulate

import (
	"fmt"

	"github.com/holoplot/go-evdev"

	"keyscribe/internal/chord"
	"keyscribe/internal/keyseq"
)

// DefaultDeviceName is the name the virtual device registers under. Device
// discovery in the capture package skips devices carrying this prefix so
// the module never reads its own output back.
const DefaultDeviceName = "keyscribe output"

// UinputBackend delivers events through a kernel uinput virtual device.
// The host and every other process observe it exactly as a physical
// keyboard; no distinguishing marker is exposed beyond the device name.
type UinputBackend struct {
	dev *evdev.InputDevice
}

// NewUinputBackend registers the virtual device. All known key codes are
// enabled so any sequence the encoder can produce is writable. A failed
// registration leaves no device node behind.
func NewUinputBackend(name string) (*UinputBackend, error) {
	if name == "" {
		name = DefaultDeviceName
	}

	dev, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: 0x03,
		Vendor:  0x4b53,
		Product: 0x0001,
		Version: 1,
	}, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: allKeyCodes(),
	})
	if err != nil {
		return nil, fmt.Errorf("create uinput device %q: %w", name, err)
	}
	return &UinputBackend{dev: dev}, nil
}

func allKeyCodes() []evdev.EvCode {
	codes := make([]evdev.EvCode, 0, len(evdev.KEYToString))
	for code := range evdev.KEYToString {
		codes = append(codes, code)
	}
	return codes
}

// writeSequence pushes every event of seq to the device in order. Each
// write blocks until the kernel accepted the event; the kernel stamps the
// event time on submission.
func (b *UinputBackend) writeSequence(seq keyseq.Sequence) error {
	for _, e := range seq {
		ev := evdev.InputEvent{Type: e.Type, Code: e.Code, Value: e.Value}
		if err := b.dev.WriteOne(&ev); err != nil {
			return fmt.Errorf("write %s: %w", e, err)
		}
	}
	return nil
}

// SendBackspaces emits count independent press/release groups, each with
// its own markers, flushed one group at a time.
func (b *UinputBackend) SendBackspaces(count int) error {
	group := keyseq.PressAndRelease(evdev.KEY_BACKSPACE)
	for i := 0; i < count; i++ {
		if err := b.writeSequence(group); err != nil {
			return fmt.Errorf("backspace %d of %d: %w", i+1, count, err)
		}
	}
	return nil
}

// SendString encodes text and pushes the whole sequence as one send.
func (b *UinputBackend) SendString(text string) error {
	seq := keyseq.EncodeString(text)
	if len(seq) == 0 {
		return nil
	}
	if err := b.writeSequence(seq); err != nil {
		return fmt.Errorf("send string: %w", err)
	}
	return nil
}

// SendKeyCombination pushes the chord's sequence as one send.
func (b *UinputBackend) SendKeyCombination(ch chord.Chord) error {
	if err := b.writeSequence(ch.Sequence()); err != nil {
		return fmt.Errorf("send %s: %w", ch, err)
	}
	return nil
}

func (b *UinputBackend) Name() string {
	return "uinput"
}

// Close unregisters the virtual device.
func (b *UinputBackend) Close() error {
	return b.dev.Close()
}
