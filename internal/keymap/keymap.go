// Package keymap holds the keyboard layout shared by every input source.
package keymap

const (
	KeyEscape rune = 27
	// KeyExitPitch is delivered when shift is released on its own.
	KeyExitPitch rune = 1

	KeyRecord     rune = '1'
	KeyPlay       rune = '2'
	KeyOctaveDown rune = 'z'
	KeyOctaveUp   rune = 'x'
)

// NoPitch is returned by PitchOffset for keys outside the piano row.
const NoPitch = -999

// Piano row, Ableton style: white keys on a s d f g h j k, black keys on w e t y u.
var pianoRow = map[rune]int{
	'a': 0,
	'w': 1,
	's': 2,
	'e': 3,
	'd': 4,
	'f': 5,
	't': 6,
	'g': 7,
	'y': 8,
	'h': 9,
	'u': 10,
	'j': 11,
	'k': 12,
}

// PitchOffset maps a piano-row key to its semitone offset from the sample's
// unshifted pitch, or NoPitch.
func PitchOffset(key rune) int {
	if off, ok := pianoRow[key]; ok {
		return off
	}
	return NoPitch
}

// IsControl reports whether key is reserved for transport or mode control
// and therefore cannot trigger a sample.
func IsControl(key rune) bool {
	switch key {
	case KeyEscape, KeyExitPitch, KeyRecord, KeyPlay, ' ':
		return true
	}
	return false
}
