package keyseq

import "github.com/holoplot/go-evdev"

// keystroke is the physical realisation of one character on the US layout:
// which key, and whether left shift is held.
type keystroke struct {
	code  KeyCode
	shift bool
}

// usKeystrokes maps every directly typeable character to its key and shift
// state on a US layout. Coverage is a literal contract: printable ASCII
// letters, digits, the standard US punctuation set, space, tab and newline.
var usKeystrokes = map[rune]keystroke{
	'\n': {evdev.KEY_ENTER, false},
	'\t': {evdev.KEY_TAB, false},
	' ':  {evdev.KEY_SPACE, false},

	'0': {evdev.KEY_0, false},
	'1': {evdev.KEY_1, false},
	'2': {evdev.KEY_2, false},
	'3': {evdev.KEY_3, false},
	'4': {evdev.KEY_4, false},
	'5': {evdev.KEY_5, false},
	'6': {evdev.KEY_6, false},
	'7': {evdev.KEY_7, false},
	'8': {evdev.KEY_8, false},
	'9': {evdev.KEY_9, false},

	')': {evdev.KEY_0, true},
	'!': {evdev.KEY_1, true},
	'@': {evdev.KEY_2, true},
	'#': {evdev.KEY_3, true},
	'$': {evdev.KEY_4, true},
	'%': {evdev.KEY_5, true},
	'^': {evdev.KEY_6, true},
	'&': {evdev.KEY_7, true},
	'*': {evdev.KEY_8, true},
	'(': {evdev.KEY_9, true},

	'-':  {evdev.KEY_MINUS, false},
	'_':  {evdev.KEY_MINUS, true},
	'=':  {evdev.KEY_EQUAL, false},
	'+':  {evdev.KEY_EQUAL, true},
	'[':  {evdev.KEY_LEFTBRACE, false},
	'{':  {evdev.KEY_LEFTBRACE, true},
	']':  {evdev.KEY_RIGHTBRACE, false},
	'}':  {evdev.KEY_RIGHTBRACE, true},
	'\\': {evdev.KEY_BACKSLASH, false},
	'|':  {evdev.KEY_BACKSLASH, true},
	';':  {evdev.KEY_SEMICOLON, false},
	':':  {evdev.KEY_SEMICOLON, true},
	'\'': {evdev.KEY_APOSTROPHE, false},
	'"':  {evdev.KEY_APOSTROPHE, true},
	',':  {evdev.KEY_COMMA, false},
	'<':  {evdev.KEY_COMMA, true},
	'.':  {evdev.KEY_DOT, false},
	'>':  {evdev.KEY_DOT, true},
	'/':  {evdev.KEY_SLASH, false},
	'?':  {evdev.KEY_SLASH, true},
	'`':  {evdev.KEY_GRAVE, false},
	'~':  {evdev.KEY_GRAVE, true},

	'a': {evdev.KEY_A, false},
	'b': {evdev.KEY_B, false},
	'c': {evdev.KEY_C, false},
	'd': {evdev.KEY_D, false},
	'e': {evdev.KEY_E, false},
	'f': {evdev.KEY_F, false},
	'g': {evdev.KEY_G, false},
	'h': {evdev.KEY_H, false},
	'i': {evdev.KEY_I, false},
	'j': {evdev.KEY_J, false},
	'k': {evdev.KEY_K, false},
	'l': {evdev.KEY_L, false},
	'm': {evdev.KEY_M, false},
	'n': {evdev.KEY_N, false},
	'o': {evdev.KEY_O, false},
	'p': {evdev.KEY_P, false},
	'q': {evdev.KEY_Q, false},
	'r': {evdev.KEY_R, false},
	's': {evdev.KEY_S, false},
	't': {evdev.KEY_T, false},
	'u': {evdev.KEY_U, false},
	'v': {evdev.KEY_V, false},
	'w': {evdev.KEY_W, false},
	'x': {evdev.KEY_X, false},
	'y': {evdev.KEY_Y, false},
	'z': {evdev.KEY_Z, false},

	'A': {evdev.KEY_A, true},
	'B': {evdev.KEY_B, true},
	'C': {evdev.KEY_C, true},
	'D': {evdev.KEY_D, true},
	'E': {evdev.KEY_E, true},
	'F': {evdev.KEY_F, true},
	'G': {evdev.KEY_G, true},
	'H': {evdev.KEY_H, true},
	'I': {evdev.KEY_I, true},
	'J': {evdev.KEY_J, true},
	'K': {evdev.KEY_K, true},
	'L': {evdev.KEY_L, true},
	'M': {evdev.KEY_M, true},
	'N': {evdev.KEY_N, true},
	'O': {evdev.KEY_O, true},
	'P': {evdev.KEY_P, true},
	'Q': {evdev.KEY_Q, true},
	'R': {evdev.KEY_R, true},
	'S': {evdev.KEY_S, true},
	'T': {evdev.KEY_T, true},
	'U': {evdev.KEY_U, true},
	'V': {evdev.KEY_V, true},
	'W': {evdev.KEY_W, true},
	'X': {evdev.KEY_X, true},
	'Y': {evdev.KEY_Y, true},
	'Z': {evdev.KEY_Z, true},
}

// latinSequences holds the precomputed direct-path sequence per character.
// Built once at init, read-only afterward.
var latinSequences = buildLatinSequences()

func buildLatinSequences() map[rune]Sequence {
	m := make(map[rune]Sequence, len(usKeystrokes))
	for r, ks := range usKeystrokes {
		if ks.shift {
			m[r] = shiftPressAndRelease(ks.code)
		} else {
			m[r] = PressAndRelease(ks.code)
		}
	}
	return m
}

// Keystroke reports the US-layout key and shift state that type r, if r is
// directly typeable at all.
func Keystroke(r rune) (code KeyCode, shifted bool, ok bool) {
	ks, ok := usKeystrokes[r]
	return ks.code, ks.shift, ok
}
