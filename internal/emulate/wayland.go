package emulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/libwldevices-go/virtual_keyboard"
	"github.com/holoplot/go-evdev"

	"keyscribe/internal/chord"
	"keyscribe/internal/keyseq"
)

// WaylandBackend delivers events through the Wayland virtual-keyboard
// protocol (zwp_virtual_keyboard_manager_v1). The compositor forwards each
// key event as it arrives, so sync markers have no wire representation
// here; they remain group boundaries only. Key codes are the same evdev
// codes the uinput backend uses.
type WaylandBackend struct {
	manager *virtual_keyboard.VirtualKeyboardManager
	kbd     *virtual_keyboard.VirtualKeyboard
}

// NewWaylandBackend connects to the compositor and creates one virtual
// keyboard. When keyboard creation fails the manager connection is closed
// before returning, leaving no residual handle.
func NewWaylandBackend(ctx context.Context) (*WaylandBackend, error) {
	manager, err := virtual_keyboard.NewVirtualKeyboardManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect virtual keyboard manager: %w", err)
	}
	kbd, err := manager.CreateKeyboard()
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	return &WaylandBackend{manager: manager, kbd: kbd}, nil
}

// writeSequence replays the key edges of seq in order. Each call blocks
// until the compositor accepted the request.
func (b *WaylandBackend) writeSequence(seq keyseq.Sequence) error {
	for _, e := range seq {
		if e.IsMarker() {
			continue
		}
		state := virtual_keyboard.KeyStateReleased
		if e.IsPress() {
			state = virtual_keyboard.KeyStatePressed
		}
		if err := b.kbd.Key(time.Now(), uint32(e.Code), state); err != nil {
			return fmt.Errorf("key event %s: %w", e, err)
		}
	}
	return nil
}

// SendBackspaces emits count independent press/release groups.
func (b *WaylandBackend) SendBackspaces(count int) error {
	group := keyseq.PressAndRelease(evdev.KEY_BACKSPACE)
	for i := 0; i < count; i++ {
		if err := b.writeSequence(group); err != nil {
			return fmt.Errorf("backspace %d of %d: %w", i+1, count, err)
		}
	}
	return nil
}

// SendString encodes text and replays the whole sequence as one send.
func (b *WaylandBackend) SendString(text string) error {
	seq := keyseq.EncodeString(text)
	if len(seq) == 0 {
		return nil
	}
	if err := b.writeSequence(seq); err != nil {
		return fmt.Errorf("send string: %w", err)
	}
	return nil
}

// SendKeyCombination replays the chord's sequence as one send.
func (b *WaylandBackend) SendKeyCombination(ch chord.Chord) error {
	if err := b.writeSequence(ch.Sequence()); err != nil {
		return fmt.Errorf("send %s: %w", ch, err)
	}
	return nil
}

func (b *WaylandBackend) Name() string {
	return "wayland"
}

// Close destroys the virtual keyboard and the manager connection.
func (b *WaylandBackend) Close() error {
	return errors.Join(b.kbd.Close(), b.manager.Close())
}
