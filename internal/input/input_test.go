package input

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainKeys(t *testing.T) {
	var st keyState
	now := time.Now()

	in := st.parse([]byte("ddwa3bc"), now)
	assert.Equal(t, 1, in.DX)
	assert.Equal(t, 1, in.DY)
	assert.Equal(t, 3, in.Material)
	assert.True(t, in.NextBrush)
	assert.True(t, in.Clear)
	assert.False(t, in.Pause)
	assert.False(t, in.Quit)
	assert.False(t, in.Paint)

	in = st.parse([]byte("0pr+n?"), now)
	assert.Equal(t, 0, in.Material, "zero selects the eraser")
	assert.True(t, in.Pause)
	assert.True(t, in.Reset)
	assert.True(t, in.Bigger)
	assert.True(t, in.Step)
	assert.True(t, in.Help)

	in = st.parse([]byte{0x03}, now)
	assert.True(t, in.Quit)
}

func TestNoDigitMeansNoMaterial(t *testing.T) {
	var st keyState
	in := st.parse(nil, time.Now())
	assert.Equal(t, -1, in.Material)
}

func TestArrowKeys(t *testing.T) {
	var st keyState
	in := st.parse([]byte("\x1b[A\x1b[A\x1b[D\x1b[B\x1b[C\x1b[C"), time.Now())
	assert.Equal(t, 1, in.DX)
	assert.Equal(t, 1, in.DY)
}

func TestPaintIsHeldBetweenRepeats(t *testing.T) {
	var st keyState
	now := time.Now()

	assert.True(t, st.parse([]byte(" "), now).Paint)
	assert.True(t, st.parse(nil, now.Add(keyHoldDuration/2)).Paint)
	assert.False(t, st.parse(nil, now.Add(keyHoldDuration*2)).Paint)
}

func TestSGRMouse(t *testing.T) {
	var st keyState
	in := st.parse([]byte("\x1b[<0;12;5M\x1b[<32;13;5M\x1b[<0;13;5m\x1b[<65;1;1M\x1b[<35;2;2M"), time.Now())

	require.Len(t, in.Mouse, 5)
	assert.Equal(t, MouseEvent{Col: 12, Row: 5, Button: MouseLeft, Pressed: true}, in.Mouse[0])
	assert.Equal(t, MouseEvent{Col: 13, Row: 5, Button: MouseLeft, Pressed: true, Motion: true}, in.Mouse[1])
	assert.Equal(t, MouseEvent{Col: 13, Row: 5, Button: MouseLeft}, in.Mouse[2])
	assert.Equal(t, MouseWheelDown, in.Mouse[3].Button)
	assert.Equal(t, MouseNone, in.Mouse[4].Button)
	assert.True(t, in.Mouse[4].Motion)
}

func TestRightButton(t *testing.T) {
	var st keyState
	in := st.parse([]byte("\x1b[<2;4;4M"), time.Now())
	require.Len(t, in.Mouse, 1)
	assert.Equal(t, MouseRight, in.Mouse[0].Button)
}

func TestSequenceSplitAcrossReads(t *testing.T) {
	var st keyState
	now := time.Now()

	in := st.parse([]byte("d\x1b[<0;7"), now)
	assert.Equal(t, 1, in.DX)
	assert.Empty(t, in.Mouse)

	in = st.parse([]byte(";9M"), now)
	require.Len(t, in.Mouse, 1)
	assert.Equal(t, 7, in.Mouse[0].Col)
	assert.Equal(t, 9, in.Mouse[0].Row)
}

func TestLoneEscapeIsDropped(t *testing.T) {
	var st keyState
	now := time.Now()

	st.parse([]byte("\x1b"), now)
	in := st.parse(nil, now)
	assert.Zero(t, in.DX)

	in = st.parse([]byte("q"), now)
	assert.True(t, in.Quit)
}

func TestEscapeFollowedByKey(t *testing.T) {
	var st keyState
	in := st.parse([]byte("\x1bd"), time.Now())
	assert.Equal(t, 1, in.DX)
}

func TestUnknownCSIIsSkipped(t *testing.T) {
	var st keyState
	in := st.parse([]byte("\x1b[1;5Cd\x1b[200~"), time.Now())
	assert.Equal(t, 1, in.DX, "only the trailing d counts")
}

func TestMalformedMouseIsDropped(t *testing.T) {
	var st keyState
	in := st.parse([]byte("\x1b[<0;x;1Md"), time.Now())
	assert.Empty(t, in.Mouse)
	assert.Equal(t, 1, in.DX)
}

func TestStreamReportsQuitWhenClosed(t *testing.T) {
	s := StartStream(bufio.NewReader(strings.NewReader("dd")))

	var in Input
	require.Eventually(t, func() bool {
		in = ReadInput(s)
		return in.Quit
	}, time.Second, 5*time.Millisecond)
}
