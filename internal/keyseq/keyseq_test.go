package keyseq

import (
	"testing"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

// pressBalance tallies press/release edges per key code and fails if any
// code is released before it was pressed.
func pressBalance(t *testing.T, seq Sequence) map[KeyCode]int {
	t.Helper()
	depth := make(map[KeyCode]int)
	for _, e := range seq {
		switch {
		case e.IsPress():
			depth[e.Code]++
		case e.IsRelease():
			depth[e.Code]--
			require.GreaterOrEqual(t, depth[e.Code], 0,
				"release of %s before press", evdev.CodeName(evdev.EV_KEY, e.Code))
		}
	}
	return depth
}

// =============================================================================
// Direct table encoding
// =============================================================================

func TestEncode_LowercaseLetter(t *testing.T) {
	want := Sequence{
		Press(evdev.KEY_A), Sync(),
		Release(evdev.KEY_A), Sync(),
	}
	assert.Equal(t, want, Encode('a'))
}

func TestEncode_CapitalLetter(t *testing.T) {
	want := Sequence{
		Press(evdev.KEY_LEFTSHIFT), Press(evdev.KEY_A), Sync(),
		Release(evdev.KEY_A), Release(evdev.KEY_LEFTSHIFT), Sync(),
	}
	assert.Equal(t, want, Encode('A'))
}

func TestEncode_DirectTableBalancedAndTerminated(t *testing.T) {
	for r := range usKeystrokes {
		seq := Encode(r)
		require.NotEmpty(t, seq, "char %q", r)
		assert.True(t, seq[len(seq)-1].IsMarker(), "char %q must end with a marker", r)

		depth := pressBalance(t, seq)
		for code, d := range depth {
			assert.Zerof(t, d, "char %q leaves %s held", r, evdev.CodeName(evdev.EV_KEY, code))
		}
	}
}

func TestEncode_PunctuationMappings(t *testing.T) {
	tests := []struct {
		char    rune
		code    KeyCode
		shifted bool
	}{
		{',', evdev.KEY_COMMA, false},
		{'<', evdev.KEY_COMMA, true},
		{'+', evdev.KEY_EQUAL, true},
		{'=', evdev.KEY_EQUAL, false},
		{'?', evdev.KEY_SLASH, true},
		{'~', evdev.KEY_GRAVE, true},
		{'\n', evdev.KEY_ENTER, false},
	}
	for _, tt := range tests {
		code, shifted, ok := Keystroke(tt.char)
		require.True(t, ok, "char %q", tt.char)
		assert.Equal(t, tt.code, code, "char %q", tt.char)
		assert.Equal(t, tt.shifted, shifted, "char %q", tt.char)
	}
}

func TestKeystroke_UnknownChar(t *testing.T) {
	_, _, ok := Keystroke('€')
	assert.False(t, ok)
}

// =============================================================================
// Unicode fallback
// =============================================================================

func TestEncode_EuroSign(t *testing.T) {
	// U+20AC, hex digits "20ac".
	seq := Encode('€')

	var want Sequence
	want = append(want, unicodeInit...)
	for _, d := range "20ac" {
		want = append(want, Encode(d)...)
	}
	want = append(want, unicodeEnd...)

	require.Len(t, seq, 26)
	assert.Equal(t, want, seq)
}

func TestEncode_FallbackBracketing(t *testing.T) {
	seq := Encode('π') // U+03C0, hex digits "3c0"
	require.Len(t, seq, len(unicodeInit)+3*4+len(unicodeEnd))

	assert.Equal(t, Press(evdev.KEY_LEFTCTRL), seq[0])
	assert.Equal(t, Press(evdev.KEY_LEFTSHIFT), seq[1])

	// Modifiers come back up before the final marker.
	n := len(seq)
	assert.Equal(t, Release(evdev.KEY_LEFTSHIFT), seq[n-3])
	assert.Equal(t, Release(evdev.KEY_LEFTCTRL), seq[n-2])
	assert.True(t, seq[n-1].IsMarker())

	depth := pressBalance(t, seq)
	for code, d := range depth {
		assert.Zerof(t, d, "fallback leaves %s held", evdev.CodeName(evdev.EV_KEY, code))
	}
}

func TestEncode_AstralCodePoint(t *testing.T) {
	// U+1F3B9, five hex digits "1f3b9".
	seq := Encode('🎹')
	assert.Len(t, seq, len(unicodeInit)+5*4+len(unicodeEnd))
}

func TestEncode_MinimalHexNoLeadingZeros(t *testing.T) {
	// U+00E9 must encode as "e9", not "00e9".
	seq := Encode('é')
	assert.Len(t, seq, len(unicodeInit)+2*4+len(unicodeEnd))
}

// =============================================================================
// String encoding
// =============================================================================

func TestEncodeString_Empty(t *testing.T) {
	assert.Empty(t, EncodeString(""))
}

func TestEncodeString_Concatenation(t *testing.T) {
	seq := EncodeString("a€b")

	segA := Encode('a')
	segEuro := Encode('€')
	segB := Encode('b')

	require.Len(t, seq, len(segA)+len(segEuro)+len(segB))
	assert.Equal(t, segA, seq[:len(segA)])
	assert.Equal(t, segEuro, seq[len(segA):len(segA)+len(segEuro)])
	assert.Equal(t, segB, seq[len(segA)+len(segEuro):])
}

func TestEncodeString_OrderPreserved(t *testing.T) {
	seq := EncodeString("Hi")

	var want Sequence
	want = append(want, Encode('H')...)
	want = append(want, Encode('i')...)
	assert.Equal(t, want, seq)
}

// =============================================================================
// Event helpers
// =============================================================================

func TestEvent_Predicates(t *testing.T) {
	assert.True(t, Press(evdev.KEY_A).IsPress())
	assert.False(t, Press(evdev.KEY_A).IsRelease())
	assert.True(t, Release(evdev.KEY_A).IsRelease())
	assert.True(t, Sync().IsMarker())
	assert.False(t, Press(evdev.KEY_A).IsMarker())
}

func TestSequence_String(t *testing.T) {
	s := Sequence{Press(evdev.KEY_A), Sync()}
	assert.Equal(t, "KEY_A down, SYN_REPORT", s.String())
}
