// Package keyseq encodes characters as ordered keyboard event sequences.
//
// A sequence is the exact series of key edges and sync markers a virtual
// keyboard must emit so that consuming applications observe the same stream
// a physical keyboard would produce. Characters directly typeable on the US
// layout come from a precomputed table built once at init; everything else
// is encoded through the ctrl+shift+u Unicode entry gesture (ISO/IEC 14755
// style), which IBus-based Linux desktops interpret as direct code point
// entry.
//
// Encoding is pure computation. Writing the events to a device belongs to
// the emulation backends.
package keyseq

import (
	"strings"

	"github.com/holoplot/go-evdev"
)

// KeyCode identifies one key in the kernel's evdev code space (KEY_A,
// KEY_LEFTSHIFT, ...).
type KeyCode = evdev.EvCode

// Event is a single entry in a sequence: one key edge or one sync marker.
// The shape mirrors evdev.InputEvent without the timestamp so backends can
// translate it mechanically.
type Event struct {
	Type  evdev.EvType
	Code  evdev.EvCode
	Value int32
}

// Press returns the key-down edge for code.
func Press(code KeyCode) Event {
	return Event{Type: evdev.EV_KEY, Code: code, Value: 1}
}

// Release returns the key-up edge for code.
func Release(code KeyCode) Event {
	return Event{Type: evdev.EV_KEY, Code: code, Value: 0}
}

// Sync returns a marker that flushes all preceding edges as one observable
// batch. Every logical group ends with exactly one marker.
func Sync() Event {
	return Event{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}
}

// IsMarker reports whether e is a sync marker.
func (e Event) IsMarker() bool {
	return e.Type == evdev.EV_SYN && e.Code == evdev.SYN_REPORT
}

// IsPress reports whether e is a key-down edge.
func (e Event) IsPress() bool {
	return e.Type == evdev.EV_KEY && e.Value == 1
}

// IsRelease reports whether e is a key-up edge.
func (e Event) IsRelease() bool {
	return e.Type == evdev.EV_KEY && e.Value == 0
}

func (e Event) String() string {
	if e.IsMarker() {
		return "SYN_REPORT"
	}
	dir := "up"
	if e.Value != 0 {
		dir = "down"
	}
	return evdev.CodeName(e.Type, e.Code) + " " + dir
}

// Sequence is an ordered list of events. Concatenation is the only
// composition operator; order is significant and must be preserved all the
// way to the device.
type Sequence []Event

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// PressAndRelease is one full keystroke of a single key: press, marker,
// release, marker.
func PressAndRelease(code KeyCode) Sequence {
	return Sequence{Press(code), Sync(), Release(code), Sync()}
}

// shiftPressAndRelease wraps one keystroke in a left-shift bracket. The
// press group and the release group each get their own marker.
func shiftPressAndRelease(code KeyCode) Sequence {
	return Sequence{
		Press(evdev.KEY_LEFTSHIFT), Press(code), Sync(),
		Release(code), Release(evdev.KEY_LEFTSHIFT), Sync(),
	}
}
