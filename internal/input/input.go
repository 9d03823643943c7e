package input

import (
	"bufio"
	"strconv"
	"time"
)

// keyHoldDuration is how long the paint key is considered "held" after its last
// byte. Terminals only send key repeats, so the window has to bridge them.
const keyHoldDuration = 120 * time.Millisecond

// MouseButton identifies the button in a mouse report.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
	MouseNone // Motion without a button held
	MouseWheelUp
	MouseWheelDown
)

// MouseEvent is one SGR mouse report. Col and Row are 1-based terminal coordinates.
type MouseEvent struct {
	Col     int
	Row     int
	Button  MouseButton
	Pressed bool // false on release
	Motion  bool // drag or hover
}

// Input represents the current frame's input state.
type Input struct {
	Quit bool

	// Cursor movement accumulated from arrow keys and wasd/hjkl presses.
	DX, DY int

	Paint     bool // Space held
	Material  int  // 0-9 when a digit was pressed this frame, otherwise -1
	NextBrush bool
	Bigger    bool
	Smaller   bool
	Clear     bool
	Pause     bool
	Step      bool
	Reset     bool
	Help      bool

	Mouse   []MouseEvent
	Pressed []byte
}

// keyState tracks held keys and any escape sequence split across reads.
type keyState struct {
	paint   time.Time
	pending []byte
}

// Stream delivers input bytes via a channel and tracks key state between frames.
type Stream struct {
	ch    chan byte
	state keyState
}

// StartStream spawns a goroutine that reads from r and sends bytes to the stream.
func StartStream(r *bufio.Reader) *Stream {
	s := &Stream{
		ch: make(chan byte, 256),
	}
	go func() {
		for {
			b, err := r.ReadByte()
			if err != nil {
				close(s.ch)
				return
			}
			s.ch <- b
		}
	}()
	return s
}

// ReadInput drains all available bytes from the stream (non-blocking).
// A closed stream reports Quit.
func ReadInput(s *Stream) Input {
	now := time.Now()
	var buf []byte
	closed := false

drain:
	for {
		select {
		case b, ok := <-s.ch:
			if !ok {
				closed = true
				break drain
			}
			buf = append(buf, b)
		default:
			break drain
		}
	}

	in := s.state.parse(buf, now)
	if closed {
		in.Quit = true
	}
	return in
}

// parse decodes buf, prefixed by any sequence left incomplete last time.
func (st *keyState) parse(buf []byte, now time.Time) Input {
	in := Input{Material: -1, Pressed: buf}

	data := buf
	if len(st.pending) > 0 {
		if len(buf) == 0 {
			// Nothing followed: it was a lone ESC or a truncated report.
			st.pending = nil
		} else {
			data = append(st.pending, buf...)
			st.pending = nil
		}
	}

	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != '\x1b' {
			applyByte(&in, st, b, now)
			continue
		}
		n, complete := parseEscape(&in, data[i:])
		if !complete {
			st.pending = append([]byte(nil), data[i:]...)
			break
		}
		i += n - 1
	}

	in.Paint = now.Sub(st.paint) < keyHoldDuration
	return in
}

// applyByte handles a single plain key.
func applyByte(in *Input, st *keyState, b byte, now time.Time) {
	switch b {
	case 'q', 'Q', 0x03:
		in.Quit = true
	case 'a', 'A', 'h', 'H':
		in.DX--
	case 'd', 'D', 'l', 'L':
		in.DX++
	case 'w', 'W', 'k', 'K':
		in.DY++
	case 's', 'S', 'j', 'J':
		in.DY--
	case ' ':
		st.paint = now
	case 'b', 'B':
		in.NextBrush = true
	case '+', '=':
		in.Bigger = true
	case '-', '_':
		in.Smaller = true
	case 'c', 'C':
		in.Clear = true
	case 'p', 'P':
		in.Pause = true
	case 'r', 'R':
		in.Reset = true
	case 'n', 'N':
		in.Step = true
	case '?':
		in.Help = true
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		in.Material = int(b - '0')
	}
}

// parseEscape decodes the escape sequence at the start of seq and returns the
// number of bytes consumed. complete is false when seq ends mid-sequence.
func parseEscape(in *Input, seq []byte) (n int, complete bool) {
	if len(seq) < 2 {
		return 0, false
	}
	if seq[1] != '[' {
		return 1, true // Lone ESC followed by a plain key
	}
	if len(seq) < 3 {
		return 0, false
	}

	switch seq[2] {
	case 'A':
		in.DY++
		return 3, true
	case 'B':
		in.DY--
		return 3, true
	case 'C':
		in.DX++
		return 3, true
	case 'D':
		in.DX--
		return 3, true
	case '<':
		return parseSGRMouse(in, seq)
	}

	// Skip any other CSI sequence up to its final byte.
	for i := 2; i < len(seq); i++ {
		if seq[i] >= 0x40 && seq[i] <= 0x7e {
			return i + 1, true
		}
	}
	return 0, false
}

// parseSGRMouse decodes "ESC [ < b ; col ; row (M|m)".
func parseSGRMouse(in *Input, seq []byte) (int, bool) {
	var fields [3]int
	field, start := 0, 3
	for i := 3; i < len(seq); i++ {
		c := seq[i]
		switch {
		case c >= '0' && c <= '9':
			continue
		case c == ';' || c == 'M' || c == 'm':
			if field > 2 {
				return i + 1, true
			}
			v, err := strconv.Atoi(string(seq[start:i]))
			if err != nil {
				return i + 1, true // Malformed report, drop it
			}
			fields[field] = v
			field++
			start = i + 1
			if c == ';' {
				continue
			}
			if field == 3 {
				in.Mouse = append(in.Mouse, decodeMouse(fields, c == 'M'))
			}
			return i + 1, true
		default:
			return i + 1, true
		}
	}
	return 0, false
}

func decodeMouse(f [3]int, pressed bool) MouseEvent {
	code := f[0]
	ev := MouseEvent{
		Col:     f[1],
		Row:     f[2],
		Pressed: pressed,
		Motion:  code&32 != 0,
	}
	switch {
	case code&64 != 0:
		ev.Button = MouseWheelUp + MouseButton(code&1)
	case code&3 == 3:
		ev.Button = MouseNone
	default:
		ev.Button = MouseButton(code & 3)
	}
	return ev
}
