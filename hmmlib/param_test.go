package hmmlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmaxCenteredRoundTrip(t *testing.T) {

	bij := SoftmaxCentered{}

	for _, v := range [][]float64{
		{0.5, 0.5},
		{0.8, 0.1, 0.1},
		{0.1, 0.2, 0.3, 0.4},
		{0.999, 0.0005, 0.0005},
	} {
		w := bij.Forward(bij.Inverse(v))
		require.Len(t, w, len(v))
		for j := range v {
			assert.InDelta(t, v[j], w[j], 1e-12)
		}
	}
}

func TestSoftmaxCenteredForwardIsSimplex(t *testing.T) {

	bij := SoftmaxCentered{}

	for _, u := range [][]float64{
		{0, 0},
		{3, -2, 1},
		{-40, 40},
	} {
		v := bij.Forward(u)
		require.Len(t, v, len(u)+1)
		var s float64
		for _, p := range v {
			assert.GreaterOrEqual(t, p, 0.0)
			s += p
		}
		assert.InDelta(t, 1.0, s, 1e-12)
	}
}

func TestParameterUnconstrainedRoundTrip(t *testing.T) {

	// Two rows of the 3-simplex
	v := []float64{0.2, 0.3, 0.5, 0.7, 0.2, 0.1}
	pa := NewParameter(v, []int{2, 3}, SoftmaxCentered{})

	u := pa.Unconstrained()
	require.Len(t, u, 4) // each row loses one degree of freedom

	pa.SetUnconstrained(u)
	w := pa.Value()
	require.Len(t, w, len(v))
	for j := range v {
		assert.InDelta(t, v[j], w[j], 1e-12)
	}
}

func TestParameterSetUnconstrainedLength(t *testing.T) {

	v := []float64{0.2, 0.3, 0.5, 0.7, 0.2, 0.1}
	pa := NewParameter(v, []int{2, 3}, SoftmaxCentered{})

	// Each of the two rows needs two unconstrained coordinates; a shorter
	// slice must not silently shrink the value, even when its length
	// divides evenly across the rows.
	assert.Panics(t, func() { pa.SetUnconstrained(make([]float64, 2)) })
	assert.Panics(t, func() { pa.SetUnconstrained(make([]float64, 6)) })
	assert.Len(t, pa.Value(), len(v))
}

func TestParameterSetReplacesWholesale(t *testing.T) {

	pa := NewParameter([]float64{0.5, 0.5}, []int{2}, SoftmaxCentered{})
	pa.Set([]float64{0.9, 0.1})
	assert.Equal(t, []float64{0.9, 0.1}, pa.Value())

	assert.Panics(t, func() { pa.Set([]float64{1}) })
	assert.Panics(t, func() { NewParameter([]float64{1, 2, 3}, []int{2, 2}, SoftmaxCentered{}) })
}
