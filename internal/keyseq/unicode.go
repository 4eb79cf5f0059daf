package keyseq

import (
	"strconv"

	"github.com/holoplot/go-evdev"
)

// Unicode entry follows the convention IBus-style input methods understand:
// hold ctrl+shift, tap 'u', type the code point's hex digits, release the
// modifiers. Whether the running desktop honours the gesture is an
// environment precondition; the encoder emits the sequence either way.
var (
	unicodeInit = Sequence{
		Press(evdev.KEY_LEFTCTRL),
		Press(evdev.KEY_LEFTSHIFT),
		Sync(),
		Press(evdev.KEY_U),
		Sync(),
		Release(evdev.KEY_U),
		Sync(),
	}
	unicodeEnd = Sequence{
		Release(evdev.KEY_LEFTSHIFT),
		Release(evdev.KEY_LEFTCTRL),
		Sync(),
	}
)

// encodeFallback types r through the Unicode entry gesture. The hex digits
// are minimal-length lowercase and reuse the plain direct-path encoding, so
// digits that happen to be letters need no special casing. Fallback
// sequences never nest: the bracketing modifiers are held only across the
// digits of a single code point.
func encodeFallback(r rune) Sequence {
	digits := strconv.FormatInt(int64(r), 16)
	seq := make(Sequence, 0, len(unicodeInit)+4*len(digits)+len(unicodeEnd))
	seq = append(seq, unicodeInit...)
	for _, d := range digits {
		seq = append(seq, latinSequences[d]...)
	}
	seq = append(seq, unicodeEnd...)
	return seq
}
