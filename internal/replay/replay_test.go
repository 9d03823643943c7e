package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomz197/sandfall/internal/config"
	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/scene"
)

func rainTuning(seed uint64) config.Tuning {
	t := config.DefaultTuning()
	t.Width, t.Height = 32, 24
	t.Scene = "rain"
	t.Seed = seed
	return t
}

func TestSameSeedSameChecksum(t *testing.T) {
	a, err := Run(Options{Tuning: rainTuning(42), Ticks: 120})
	require.NoError(t, err)
	b, err := Run(Options{Tuning: rainTuning(42), Ticks: 120})
	require.NoError(t, err)

	assert.Equal(t, uint64(120), a.Tick)
	assert.Equal(t, a.Checksum, b.Checksum)
	assert.Equal(t, a.Particles, b.Particles)

	c, err := Run(Options{Tuning: rainTuning(43), Ticks: 120})
	require.NoError(t, err)
	assert.NotEqual(t, a.Checksum, c.Checksum)
}

func TestZeroTicksIsTheScene(t *testing.T) {
	tuning := rainTuning(7)
	res, err := Run(Options{Tuning: tuning})
	require.NoError(t, err)

	g, err := physics.NewGrid(tuning.Width, tuning.Height)
	require.NoError(t, err)
	sc, err := scene.Lookup("rain")
	require.NoError(t, err)
	sc.Apply(g, physics.NewRand(7))

	assert.Zero(t, res.Tick)
	assert.Equal(t, g.Checksum(), res.Checksum)
}

func TestReportEvery(t *testing.T) {
	var ticks []uint64
	_, err := Run(Options{
		Tuning: rainTuning(1),
		Ticks:  10,
		Every:  4,
		Report: func(r Result) { ticks = append(ticks, r.Tick) },
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 8, 10}, ticks)
}

func TestParticlesConservedWithoutEmitters(t *testing.T) {
	tuning := rainTuning(9)
	tuning.Scene = "layers"
	before, err := Run(Options{Tuning: tuning})
	require.NoError(t, err)
	after, err := Run(Options{Tuning: tuning, Ticks: 200})
	require.NoError(t, err)
	assert.Equal(t, before.Particles, after.Particles)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := Run(Options{Tuning: rainTuning(1), Ticks: -1})
	assert.ErrorIs(t, err, ErrInvalidTicks)

	tuning := rainTuning(1)
	tuning.Scene = "nope"
	_, err = Run(Options{Tuning: tuning})
	assert.ErrorIs(t, err, scene.ErrUnknownScene)

	tuning = rainTuning(1)
	tuning.Width = 0
	_, err = Run(Options{Tuning: tuning})
	assert.ErrorIs(t, err, physics.ErrInvalidSize)
}
