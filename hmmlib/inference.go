package hmmlib

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Posterior holds the output of forward-backward smoothing for one sequence:
// the smoothed state marginals, the pairwise transition posteriors summed over
// time, and the sequence log-likelihood.
type Posterior struct {

	// Smoothed state occupancy probabilities, ntime x nstate, packed by
	// time point.  Each row sums to 1.
	SmoothedProbs []float64

	// Pairwise transition posteriors for consecutive time points, summed
	// over time, nstate x nstate.
	TransProbs []float64

	// The sequence log-likelihood
	LogLik float64
}

// Smooth runs the forward-backward recursions for one sequence.  init is the
// initial state distribution, trans is the nstate x nstate transition matrix,
// and logobs is the ntime x nstate matrix of conditional log emission
// likelihoods, all packed flat.  Each step of the recursions is renormalized
// so that long sequences do not underflow; the discarded normalizing
// constants are accumulated into the exact log-likelihood.
//
// A sequence of length 1 yields smoothed probabilities equal to the
// normalized elementwise product of init and the first-step emission
// likelihoods, and a zero transition posterior matrix.
func Smooth(init, trans, logobs []float64, ntime, nstate int) *Posterior {

	fprob := make([]float64, ntime*nstate)
	bprob := make([]float64, ntime*nstate)
	wk := make([]float64, nstate)

	// Forward sweep.  fprob[t] holds the filtered state distribution at
	// time t.  Each step's normalizing constant contributes to the
	// log-likelihood.
	var llf float64
	for t := 0; t < ntime; t++ {

		row := fprob[t*nstate : (t+1)*nstate]
		if t == 0 {
			for st := 0; st < nstate; st++ {
				row[st] = math.Log(init[st]) + logobs[st]
			}
		} else {
			prev := fprob[(t-1)*nstate : t*nstate]
			for st2 := 0; st2 < nstate; st2++ {
				var u float64
				for st1 := 0; st1 < nstate; st1++ {
					u += prev[st1] * trans[st1*nstate+st2]
				}
				row[st2] = math.Log(u) + logobs[t*nstate+st2]
			}
		}

		// This shift does not change the result due to scale invariance
		mx := floats.Max(row)
		floats.AddConst(-mx, row)
		for st := range row {
			row[st] = math.Exp(row[st])
		}
		s := floats.Sum(row)
		floats.Scale(1/s, row)
		llf += mx + math.Log(s)
	}

	// Backward sweep.  bprob[t] holds the backward message at time t up to
	// a scale factor, which cancels in the smoothing step below.
	last := bprob[(ntime-1)*nstate:]
	for st := range last {
		last[st] = 1
	}
	for t := ntime - 2; t >= 0; t-- {

		next := bprob[(t+1)*nstate : (t+2)*nstate]
		lo := logobs[(t+1)*nstate : (t+2)*nstate]

		mx := floats.Max(lo)
		for st := 0; st < nstate; st++ {
			wk[st] = math.Exp(lo[st]-mx) * next[st]
		}

		row := bprob[t*nstate : (t+1)*nstate]
		for st1 := 0; st1 < nstate; st1++ {
			var u float64
			for st2 := 0; st2 < nstate; st2++ {
				u += trans[st1*nstate+st2] * wk[st2]
			}
			row[st1] = u
		}

		normalizeMax(row)
	}

	// Smoothing: combine the forward and backward quantities into the
	// time-wise posterior marginals.
	smoothed := make([]float64, ntime*nstate)
	for t := 0; t < ntime; t++ {
		i := t * nstate
		row := smoothed[i : i+nstate]
		floats.MulTo(row, fprob[i:i+nstate], bprob[i:i+nstate])
		normalizeSum(row, 1/float64(nstate))
	}

	// Pairwise transition posteriors, summed over time
	joint := make([]float64, nstate*nstate)
	xi := make([]float64, nstate*nstate)
	for t := 0; t < ntime-1; t++ {

		f := fprob[t*nstate : (t+1)*nstate]
		b := bprob[(t+1)*nstate : (t+2)*nstate]
		lo := logobs[(t+1)*nstate : (t+2)*nstate]

		mx := floats.Max(lo)
		for st := 0; st < nstate; st++ {
			wk[st] = math.Exp(lo[st]-mx) * b[st]
		}

		for st1 := 0; st1 < nstate; st1++ {
			for st2 := 0; st2 < nstate; st2++ {
				xi[st1*nstate+st2] = f[st1] * trans[st1*nstate+st2] * wk[st2]
			}
		}

		normalizeSum(xi, 0)
		floats.Add(joint, xi)
	}

	return &Posterior{
		SmoothedProbs: smoothed,
		TransProbs:    joint,
		LogLik:        llf,
	}
}
