package draw

import (
	"io"
	"strconv"
	"unicode/utf8"
)

// Block characters for drawing.
const (
	BlockFull      = '█'
	BlockUpperHalf = '▀'
)

// Terminal control sequences.
const (
	ResetAttributes = "\033[0m"
	Reverse         = "\033[7m"

	// Button events, drag motion and SGR extended coordinates.
	enableMouse  = "\033[?1000h\033[?1002h\033[?1006h"
	disableMouse = "\033[?1006l\033[?1002l\033[?1000l"
)

// EnableMouse asks the terminal to report clicks and drags as SGR sequences.
func EnableMouse(w io.Writer) {
	io.WriteString(w, enableMouse)
}

// DisableMouse turns mouse reporting off again.
func DisableMouse(w io.Writer) {
	io.WriteString(w, disableMouse)
}

// Fit truncates or right-pads s to exactly width runes.
func Fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	if n > width {
		runes := []rune(s)
		return string(runes[:width])
	}
	for ; n < width; n++ {
		s += " "
	}
	return s
}

func cursorTo(col, row int) string {
	return "\033[" + strconv.Itoa(row) + ";" + strconv.Itoa(col) + "H"
}
