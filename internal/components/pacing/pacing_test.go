package pacing

import (
	"connectfill/internal/components/chrono"
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDrawsStayInRange(t *testing.T) {
	p := NewPacer(chrono.NewFake(time.Time{}), rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		f := p.Float(Range{Min: 2, Max: 5})
		require.GreaterOrEqual(t, f, 2.0)
		require.LessOrEqual(t, f, 5.0)

		n := p.Int(IntRange{Min: 2, Max: 4})
		require.GreaterOrEqual(t, n, 2)
		require.LessOrEqual(t, n, 4)
	}
}

func TestReversedRange(t *testing.T) {
	p := NewPacer(chrono.NewFake(time.Time{}), rand.NewPCG(3, 4))
	f := p.Float(Range{Min: 10, Max: 1})
	require.GreaterOrEqual(t, f, 1.0)
	require.LessOrEqual(t, f, 10.0)
}

func TestPauseUsesClock(t *testing.T) {
	fake := chrono.NewFake(time.Time{})
	p := NewPacer(fake, rand.NewPCG(5, 6))

	d, err := p.Pause(context.Background(), Range{Min: 60, Max: 120})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{d}, fake.Sleeps())
	require.GreaterOrEqual(t, d, 60*time.Second)
	require.LessOrEqual(t, d, 120*time.Second)
}

func TestShuffleKeepsElements(t *testing.T) {
	p := NewPacer(chrono.NewFake(time.Time{}), rand.NewPCG(7, 8))
	s := []int{1, 2, 3, 4, 5, 6}
	Shuffle(p, s)
	require.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, s)
}
