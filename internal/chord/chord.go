// Package chord parses symbolic key combinations of the form
// "ctrl+shift+a" into ordered key sequences.
//
// Tokens are case-insensitive and separated by '+'. The last token is the
// base key, every preceding token must be a modifier. The base key may be a
// single printable character, a common key alias ("enter", "tab", "f5"), or
// any literal evdev KEY_* name.
package chord

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/holoplot/go-evdev"

	"keyscribe/internal/keyseq"
)

// Chord is a parsed key combination: zero or more modifiers and one base
// key. Modifier order is preserved from the input.
type Chord struct {
	Modifiers []keyseq.KeyCode
	Key       keyseq.KeyCode
}

var modifierCodes = map[string]keyseq.KeyCode{
	"ctrl":       evdev.KEY_LEFTCTRL,
	"control":    evdev.KEY_LEFTCTRL,
	"shift":      evdev.KEY_LEFTSHIFT,
	"alt":        evdev.KEY_LEFTALT,
	"altgr":      evdev.KEY_RIGHTALT,
	"super":      evdev.KEY_LEFTMETA,
	"meta":       evdev.KEY_LEFTMETA,
	"win":        evdev.KEY_LEFTMETA,
	"rightctrl":  evdev.KEY_RIGHTCTRL,
	"rightshift": evdev.KEY_RIGHTSHIFT,
	"rightalt":   evdev.KEY_RIGHTALT,
	"rightmeta":  evdev.KEY_RIGHTMETA,
}

var keyAliases = map[string]keyseq.KeyCode{
	"enter":     evdev.KEY_ENTER,
	"return":    evdev.KEY_ENTER,
	"tab":       evdev.KEY_TAB,
	"space":     evdev.KEY_SPACE,
	"backspace": evdev.KEY_BACKSPACE,
	"esc":       evdev.KEY_ESC,
	"escape":    evdev.KEY_ESC,
	"delete":    evdev.KEY_DELETE,
	"del":       evdev.KEY_DELETE,
	"insert":    evdev.KEY_INSERT,
	"home":      evdev.KEY_HOME,
	"end":       evdev.KEY_END,
	"pageup":    evdev.KEY_PAGEUP,
	"pagedown":  evdev.KEY_PAGEDOWN,
	"up":        evdev.KEY_UP,
	"down":      evdev.KEY_DOWN,
	"left":      evdev.KEY_LEFT,
	"right":     evdev.KEY_RIGHT,
	"plus":      evdev.KEY_EQUAL, // shift is implied separately
}

// Parse parses a symbolic combination like "ctrl+shift+a". A base key that
// needs shift on the US layout (an uppercase letter, '?' and friends) gets
// a left-shift modifier implied unless one is already present.
func Parse(s string) (Chord, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Chord{}, fmt.Errorf("empty key combination")
	}

	parts := strings.Split(trimmed, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Chord{}, fmt.Errorf("malformed key combination %q", s)
		}
	}

	var ch Chord
	seen := make(map[keyseq.KeyCode]bool)
	for _, tok := range parts[:len(parts)-1] {
		code, ok := modifierCodes[strings.ToLower(tok)]
		if !ok {
			return Chord{}, fmt.Errorf("unknown modifier %q in %q", tok, s)
		}
		if seen[code] {
			return Chord{}, fmt.Errorf("duplicate modifier %q in %q", tok, s)
		}
		seen[code] = true
		ch.Modifiers = append(ch.Modifiers, code)
	}

	code, needShift, err := resolveKey(parts[len(parts)-1])
	if err != nil {
		return Chord{}, fmt.Errorf("%v in %q", err, s)
	}
	if seen[code] {
		return Chord{}, fmt.Errorf("base key repeats a modifier in %q", s)
	}
	ch.Key = code
	if needShift && !seen[evdev.KEY_LEFTSHIFT] {
		ch.Modifiers = append(ch.Modifiers, evdev.KEY_LEFTSHIFT)
	}
	return ch, nil
}

// resolveKey maps one token to a key code, reporting whether the token is a
// character that needs shift on the US layout.
func resolveKey(tok string) (keyseq.KeyCode, bool, error) {
	lower := strings.ToLower(tok)
	if code, ok := keyAliases[lower]; ok {
		return code, lower == "plus", nil
	}
	if utf8.RuneCountInString(tok) == 1 {
		r, _ := utf8.DecodeRuneInString(tok)
		// Letters are case-insensitive; a capital in a chord does not
		// imply shift ("ctrl+A" means ctrl+a).
		if code, shifted, ok := keyseq.Keystroke(unicode.ToLower(r)); ok {
			return code, shifted, nil
		}
		return 0, false, fmt.Errorf("unknown key %q", tok)
	}
	if code, ok := evdev.KEYFromString["KEY_"+strings.ToUpper(tok)]; ok {
		return code, false, nil
	}
	return 0, false, fmt.Errorf("unknown key %q", tok)
}

// Sequence renders the chord as events: modifiers pressed in order, base
// key down, flush, base key up, modifiers released in reverse order, flush.
// The two-marker shape matches how a shifted character is typed.
func (c Chord) Sequence() keyseq.Sequence {
	seq := make(keyseq.Sequence, 0, 2*len(c.Modifiers)+4)
	for _, m := range c.Modifiers {
		seq = append(seq, keyseq.Press(m))
	}
	seq = append(seq, keyseq.Press(c.Key), keyseq.Sync(), keyseq.Release(c.Key))
	for i := len(c.Modifiers) - 1; i >= 0; i-- {
		seq = append(seq, keyseq.Release(c.Modifiers[i]))
	}
	seq = append(seq, keyseq.Sync())
	return seq
}

func (c Chord) String() string {
	parts := make([]string, 0, len(c.Modifiers)+1)
	for _, m := range c.Modifiers {
		parts = append(parts, KeyName(m))
	}
	parts = append(parts, KeyName(c.Key))
	return strings.Join(parts, "+")
}

// KeyName returns the lowercase symbolic name of a key code, or a
// numeric placeholder when the code has no name.
func KeyName(code keyseq.KeyCode) string {
	name, ok := evdev.KEYToString[code]
	if !ok {
		return fmt.Sprintf("key_%d", code)
	}
	return strings.ToLower(strings.TrimPrefix(name, "KEY_"))
}
