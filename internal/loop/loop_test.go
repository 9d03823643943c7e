package loop

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomz197/sandfall/internal/config"
	"github.com/tomz197/sandfall/internal/draw"
	"github.com/tomz197/sandfall/internal/physics"
)

func smallTuning() config.Tuning {
	t := config.DefaultTuning()
	t.Width, t.Height = 16, 12
	t.Seed = 5
	return t
}

func TestNewServerUsesTuning(t *testing.T) {
	tuning := smallTuning()
	tuning.Materials = []physics.Material{{Name: "oil", Kind: physics.KindFluid, Movable: true, Density: 0.3}}

	srv, err := NewServer(tuning, nil)
	require.NoError(t, err)

	snap := srv.GetSnapshot()
	assert.Equal(t, 16, snap.Cells.Width())
	assert.Equal(t, 12, snap.Cells.Height())
	assert.Equal(t, "basin", snap.Scene)

	id, ok := srv.Registry().Lookup("oil")
	require.True(t, ok)
	assert.Equal(t, physics.MaterialID(4), id)
}

func TestNewServerRejectsBadTuning(t *testing.T) {
	tuning := smallTuning()
	tuning.Scene = "volcano"
	_, err := NewServer(tuning, nil)
	assert.Error(t, err)

	tuning = smallTuning()
	tuning.Materials = []physics.Material{{Name: "ghost", Kind: physics.KindFluid, Movable: true}}
	_, err = NewServer(tuning, nil)
	assert.ErrorIs(t, err, physics.ErrInvalidMaterial)
}

func TestRunQuitsOnKey(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), bufio.NewReader(strings.NewReader("q")), &out, Options{
		Tuning:       smallTuning(),
		TermSizeFunc: draw.FixedSize(40, 12),
		Username:     "local",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "SANDFALL")
}
