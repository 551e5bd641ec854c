// Package hmmsim samples state paths and observation batches from a
// categorical HMM, for simulation studies and Monte Carlo tests.
package hmmsim

import (
	"golang.org/x/exp/rand"

	"github.com/probkit/hmm/hmmlib"
)

// makeIntArray makes a collection of r slices
// of length c, packed contiguously.
func makeIntArray(r, c int) [][]int {

	bka := make([]int, r*c)
	x := make([][]int, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}

// Generate a discrete random variable from the given probability vector,
// which must sum to 1.
func genDiscrete(pr []float64, rng *rand.Rand) int {

	u := rng.Float64()
	var c float64
	for k, p := range pr {
		c += p
		if u < c {
			return k
		}
	}

	return len(pr) - 1
}

// GenStates samples nseq state paths of length ntime from the model's initial
// distribution and transition matrix.  The draw is deterministic for a fixed
// source.
func GenStates(model *hmmlib.CategoricalHMM, nseq, ntime int, src rand.Source) [][]int {

	rng := rand.New(src)
	init := model.Init.Value()
	trans := model.Trans.Value()
	ns := model.NState

	states := makeIntArray(nseq, ntime)
	for p := 0; p < nseq; p++ {
		st := genDiscrete(init, rng)
		states[p][0] = st
		for t := 1; t < ntime; t++ {
			st = genDiscrete(trans[st*ns:(st+1)*ns], rng)
			states[p][t] = st
		}
	}

	return states
}

// GenObs samples one observation sequence per state path from the model's
// emission distributions, in the flat time x channel layout consumed by
// EStep.
func GenObs(model *hmmlib.CategoricalHMM, states [][]int, src rand.Source) [][]int {

	rng := rand.New(src)
	em := model.Emission.Value()
	nc, nk := model.NComp, model.NClass

	obs := make([][]int, len(states))
	for p, path := range states {
		seq := make([]int, len(path)*nc)
		for t, st := range path {
			for d := 0; d < nc; d++ {
				i := (st*nc + d) * nk
				seq[t*nc+d] = genDiscrete(em[i:i+nk], rng)
			}
		}
		obs[p] = seq
	}

	return obs
}
