package hmmlib_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/probkit/hmm/hmmlib"
	"github.com/probkit/hmm/hmmsim"
)

// twoStateModel returns the 2-state, single-channel, 3-class model used in
// several scenarios below.
func twoStateModel(t *testing.T) *hmmlib.CategoricalHMM {

	hmm, err := hmmlib.NewCategorical(
		[]float64{0.5, 0.5},
		[]float64{0.9, 0.1, 0.1, 0.9},
		[]float64{
			0.8, 0.1, 0.1,
			0.1, 0.1, 0.8,
		},
		2, 1, 3)
	require.NoError(t, err)

	return hmm
}

func TestNewCategoricalValidation(t *testing.T) {

	initial := []float64{0.5, 0.5}
	trans := []float64{0.9, 0.1, 0.1, 0.9}
	emission := make([]float64, 2*1*3)

	_, err := hmmlib.NewCategorical(initial, trans, emission, 2, 1, 3)
	assert.NoError(t, err)

	// Emission tensor not matching num_states x num_emissions x num_classes
	_, err = hmmlib.NewCategorical(initial, trans, emission[:5], 2, 1, 3)
	assert.Error(t, err)

	_, err = hmmlib.NewCategorical(initial, trans, emission, 2, 0, 3)
	assert.Error(t, err)

	_, err = hmmlib.NewCategorical(initial[:1], trans, emission, 2, 1, 3)
	assert.Error(t, err)

	_, err = hmmlib.NewCategorical(initial, trans[:3], emission, 2, 1, 3)
	assert.Error(t, err)

	_, err = hmmlib.NewCategorical(nil, nil, nil, 0, 1, 3)
	assert.Error(t, err)
}

func TestRandomCategorical(t *testing.T) {

	hmm, err := hmmlib.RandomCategorical(42, 3, 2, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, hmm.NumStates())
	assert.Equal(t, 2, hmm.NumEmissions())
	assert.Equal(t, 5, hmm.NumClasses())

	assert.InDelta(t, 1.0, floats.Sum(hmm.Init.Value()), 1e-10)

	trans := hmm.Trans.Value()
	for st := 0; st < 3; st++ {
		assert.InDelta(t, 1.0, floats.Sum(trans[st*3:(st+1)*3]), 1e-10)
	}

	em := hmm.Emission.Value()
	for r := 0; r < 3*2; r++ {
		assert.InDelta(t, 1.0, floats.Sum(em[r*5:(r+1)*5]), 1e-10)
	}

	// Deterministic given the seed
	hmm2, err := hmmlib.RandomCategorical(42, 3, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, hmm.Init.Value(), hmm2.Init.Value())
	assert.Equal(t, hmm.Trans.Value(), hmm2.Trans.Value())
	assert.Equal(t, hmm.Emission.Value(), hmm2.Emission.Value())

	_, err = hmmlib.RandomCategorical(42, 0, 2, 5)
	assert.Error(t, err)
}

func TestSuffStatsEventShape(t *testing.T) {

	hmm, err := hmmlib.RandomCategorical(7, 3, 2, 4)
	require.NoError(t, err)

	sh := hmm.SuffStatsEventShape()
	assert.Equal(t, []int{3}, sh["initial_probs"])
	assert.Equal(t, []int{3, 3}, sh["trans_probs"])
	assert.Equal(t, []int{3, 2, 4}, sh["sum_x"])
	assert.Empty(t, sh["marginal_loglik"])

	// The declared shapes must match what EStep actually produces.
	obs := []int{0, 1, 2, 3, 1, 0, 2, 2} // 4 time points x 2 channels
	stats := hmm.EStep([][]int{obs})
	require.Len(t, stats, 1)

	cs := stats[0].(*hmmlib.CategoricalSuffStats)
	assert.Equal(t, sh.Size("initial_probs"), len(cs.InitProbs))
	assert.Equal(t, sh.Size("trans_probs"), len(cs.TransProbs))
	assert.Equal(t, sh.Size("sum_x"), len(cs.SumX))
	assert.Equal(t, 1, sh.Size("marginal_loglik"))
}

// Summing the expected emission counts over states and classes must explain
// each channel's observations exactly once per time point.
func TestEStepExplainsEachObservation(t *testing.T) {

	const (
		nstate = 3
		ncomp  = 2
		nclass = 4
		ntime  = 25
	)

	hmm, err := hmmlib.RandomCategorical(11, nstate, ncomp, nclass)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(13))
	obs := make([]int, ntime*ncomp)
	for j := range obs {
		obs[j] = rng.Intn(nclass)
	}

	stats := hmm.EStep([][]int{obs})
	cs := stats[0].(*hmmlib.CategoricalSuffStats)

	for d := 0; d < ncomp; d++ {
		var s float64
		for st := 0; st < nstate; st++ {
			i := (st*ncomp + d) * nclass
			s += floats.Sum(cs.SumX[i : i+nclass])
		}
		assert.InDelta(t, float64(ntime), s, 1e-8)
	}
}

func TestEStepLengthOne(t *testing.T) {

	hmm := twoStateModel(t)

	stats := hmm.EStep([][]int{{0}})
	require.Len(t, stats, 1)
	cs := stats[0].(*hmmlib.CategoricalSuffStats)

	// 0.8*0.5 / (0.8*0.5 + 0.1*0.5)
	assert.InDelta(t, 0.888889, cs.InitProbs[0], 1e-5)
	assert.InDelta(t, 0.111111, cs.InitProbs[1], 1e-5)
	assert.InDelta(t, math.Log(0.45), cs.LLF, 1e-12)

	for _, v := range cs.TransProbs {
		assert.Zero(t, v)
	}

	// The single observation is fully explained
	assert.InDelta(t, cs.InitProbs[0], cs.SumX[0], 1e-12)
	assert.InDelta(t, cs.InitProbs[1], cs.SumX[3], 1e-12)
}

// A batch of two identical sequences must give the same M-step result as two
// single-sequence E-steps whose statistics are passed together: the batch
// reduction is a pure associative sum.
func TestMStepBatchReduction(t *testing.T) {

	obs := []int{0, 0, 2, 1, 0, 2, 2, 0}

	hmm1 := twoStateModel(t)
	batch := [][]int{obs, obs}
	require.NoError(t, hmm1.MStep(batch, hmm1.EStep(batch)))

	hmm2 := twoStateModel(t)
	stats := hmm2.EStep([][]int{obs})
	stats = append(stats, hmm2.EStep([][]int{obs})...)
	require.NoError(t, hmm2.MStep(batch, stats))

	assert.InDeltaSlice(t, hmm1.Init.Value(), hmm2.Init.Value(), 1e-12)
	assert.InDeltaSlice(t, hmm1.Trans.Value(), hmm2.Trans.Value(), 1e-12)
	assert.InDeltaSlice(t, hmm1.Emission.Value(), hmm2.Emission.Value(), 1e-12)
}

// A sequence whose length is not a whole number of time points is a shape
// mismatch, reported at first use rather than truncated.
func TestBadSequenceLength(t *testing.T) {

	hmm, err := hmmlib.RandomCategorical(3, 2, 2, 3)
	require.NoError(t, err)

	// 5 entries cannot be split across 2 channels
	assert.Panics(t, func() { hmm.EStep([][]int{{0, 1, 2, 0, 1}}) })
	assert.Panics(t, func() { hmm.ReconstructStates([][]int{{0, 1, 2, 0, 1}}) })

	assert.NotPanics(t, func() { hmm.EStep([][]int{{0, 1, 2, 0}}) })
}

func TestMStepEmptyBatch(t *testing.T) {

	hmm := twoStateModel(t)
	err := hmm.MStep(nil, nil)
	assert.Error(t, err)
}

// One E-step plus one M-step starting at the generating parameters must
// recover those parameters within statistical tolerance on a large sample.
func TestOneStepRecovery(t *testing.T) {

	truth := twoStateModel(t)

	src := rand.NewSource(17)
	states := hmmsim.GenStates(truth, 300, 200, src)
	obs := hmmsim.GenObs(truth, states, src)

	hmm := twoStateModel(t)
	stats := hmm.EStep(obs)
	require.NoError(t, hmm.MStep(obs, stats))

	for j, v := range truth.Trans.Value() {
		assert.InDelta(t, v, hmm.Trans.Value()[j], 0.05)
	}
	for j, v := range truth.Emission.Value() {
		assert.InDelta(t, v, hmm.Emission.Value()[j], 0.05)
	}
	for j, v := range truth.Init.Value() {
		assert.InDelta(t, v, hmm.Init.Value()[j], 0.1)
	}
}

func TestEmissionDistribution(t *testing.T) {

	hmm, err := hmmlib.RandomCategorical(23, 3, 2, 4)
	require.NoError(t, err)

	em := hmm.Emission.Value()
	for st := 0; st < 3; st++ {
		dist := hmm.EmissionDistribution(st)

		x := []int{1, 3}
		want := math.Log(em[(st*2+0)*4+1]) + math.Log(em[(st*2+1)*4+3])
		assert.InDelta(t, want, dist.LogProb(x), 1e-12)

		dst := make([]int, 2)
		dist.Rand(dst)
		for _, k := range dst {
			assert.GreaterOrEqual(t, k, 0)
			assert.Less(t, k, 4)
		}
	}
}

func TestParamsRoundTrip(t *testing.T) {

	hmm, err := hmmlib.RandomCategorical(29, 2, 1, 3)
	require.NoError(t, err)

	other := twoStateModel(t)
	require.NoError(t, other.SetParams(hmm.Params()))

	assert.Equal(t, hmm.Init.Value(), other.Init.Value())
	assert.Equal(t, hmm.Trans.Value(), other.Trans.Value())
	assert.Equal(t, hmm.Emission.Value(), other.Emission.Value())

	assert.Error(t, other.SetParams(hmm.Params()[:2]))
}

func TestReconstructStates(t *testing.T) {

	hmm := twoStateModel(t)

	pstate := hmm.ReconstructStates([][]int{
		{0, 0, 0, 0, 0},
		{2, 2, 2, 2, 2},
	})
	require.Len(t, pstate, 2)

	assert.Equal(t, []int{0, 0, 0, 0, 0}, pstate[0])
	assert.Equal(t, []int{1, 1, 1, 1, 1}, pstate[1])

	e, n := hmmlib.CompareStates(pstate[0], pstate[0])
	assert.Zero(t, e)
	assert.Equal(t, 5, n)
}
