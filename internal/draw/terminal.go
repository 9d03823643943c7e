package draw

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Terminal control sequences.
const (
	seqClear          = "\033[H\033[2J"
	seqHideCursor     = "\033[?25l"
	seqShowCursor     = "\033[?25h"
	seqEnterAltScreen = "\033[?1049h"
	seqLeaveAltScreen = "\033[?1049l"
)

// maxChunkSize is the largest single write sent to the session.
// It stays under a typical 1500 byte MTU so SSH frames are not split.
const maxChunkSize = 1400

// writeCursor appends a 1-based cursor position sequence to b.
func writeCursor(b *strings.Builder, scratch []byte, col, row int) {
	b.WriteString("\033[")
	b.Write(strconv.AppendInt(scratch[:0], int64(row), 10))
	b.WriteByte(';')
	b.Write(strconv.AppendInt(scratch[:0], int64(col), 10))
	b.WriteByte('H')
}

// writeChunks writes data to w in pieces of at most maxChunkSize bytes.
func writeChunks(w io.Writer, data string) error {
	for len(data) > 0 {
		n := min(len(data), maxChunkSize)
		if _, err := io.WriteString(w, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// ChunkWriter collects one frame of terminal output: the canvas, the HUD
// and any text overlays. Flush sends it in chunks.
type ChunkWriter struct {
	frame   strings.Builder
	out     *bufio.Writer
	scratch [20]byte
	offCol  int
	offRow  int
}

// NewChunkWriter creates a ChunkWriter on w. WriteAt positions are shifted
// by offsetCol and offsetRow.
func NewChunkWriter(w io.Writer, offsetCol, offsetRow int) *ChunkWriter {
	return &ChunkWriter{
		out:    bufio.NewWriterSize(w, 8192),
		offCol: offsetCol,
		offRow: offsetRow,
	}
}

// SetOffset moves the origin used by WriteAt, e.g. after a resize.
func (cw *ChunkWriter) SetOffset(offsetCol, offsetRow int) {
	cw.offCol = offsetCol
	cw.offRow = offsetRow
}

// Write appends raw bytes so canvases can render into the frame.
func (cw *ChunkWriter) Write(p []byte) (int, error) {
	return cw.frame.Write(p)
}

var _ io.Writer = (*ChunkWriter)(nil)

// WriteString appends s to the frame.
func (cw *ChunkWriter) WriteString(s string) {
	cw.frame.WriteString(s)
}

// WriteAt appends s at 1-based canvas position (col, row).
func (cw *ChunkWriter) WriteAt(col, row int, s string) {
	writeCursor(&cw.frame, cw.scratch[:], col+cw.offCol, row+cw.offRow)
	cw.frame.WriteString(s)
}

// Flush sends the collected frame and starts a new one.
func (cw *ChunkWriter) Flush() error {
	data := cw.frame.String()
	cw.frame.Reset()
	if err := writeChunks(cw.out, data); err != nil {
		return err
	}
	return cw.out.Flush()
}

// TermSizeFunc reports the terminal size in columns and rows.
type TermSizeFunc func() (width, height int, err error)

// DefaultTermSizeFunc queries the size of os.Stdout.
var DefaultTermSizeFunc TermSizeFunc = func() (int, int, error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

// FixedSize returns a TermSizeFunc that always reports width x height.
func FixedSize(width, height int) TermSizeFunc {
	return func() (int, int, error) {
		return width, height, nil
	}
}

func ClearScreen(w io.Writer)    { io.WriteString(w, seqClear) }
func HideCursor(w io.Writer)     { io.WriteString(w, seqHideCursor) }
func ShowCursor(w io.Writer)     { io.WriteString(w, seqShowCursor) }
func EnterAltScreen(w io.Writer) { io.WriteString(w, seqEnterAltScreen) }
func LeaveAltScreen(w io.Writer) { io.WriteString(w, seqLeaveAltScreen) }
