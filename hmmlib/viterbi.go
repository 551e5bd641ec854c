package hmmlib

import (
	"math"
	"sync"
)

// ReconstructStates uses the Viterbi algorithm to predict the most probable
// state sequence for every sequence in the batch.  The algorithm is run
// separately, and concurrently, for each sequence.
func (hmm *CategoricalHMM) ReconstructStates(batch [][]int) [][]int {

	hmm.checkBatch(batch)
	pstate := make([][]int, len(batch))

	var wg sync.WaitGroup
	for p := range batch {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			pstate[p] = hmm.reconstructSequence(batch[p])
		}(p)
	}
	wg.Wait()

	return pstate
}

// reconstructSequence runs the Viterbi recursion and traceback for one
// sequence.
func (hmm *CategoricalHMM) reconstructSequence(obs []int) []int {

	ntime := len(obs) / hmm.NComp
	ns := hmm.NState
	logobs := hmm.conditionalLogLiks(obs)

	init := hmm.Init.Value()
	trans := hmm.Trans.Value()

	lpr := make([]float64, ntime*ns)
	lpt := make([]int, ntime*ns)
	wk := make([]float64, ns)

	// Beginning from initial conditions
	for st := 0; st < ns; st++ {
		lpr[st] = math.Log(init[st]) + logobs[st]
	}

	// From st1 at t-1 to st2 at t
	for t := 1; t < ntime; t++ {
		for st2 := 0; st2 < ns; st2++ {
			for st1 := 0; st1 < ns; st1++ {
				wk[st1] = lpr[(t-1)*ns+st1] + math.Log(trans[st1*ns+st2])
			}

			// The best previous state
			jj := argmax(wk)
			lpt[t*ns+st2] = jj
			lpr[t*ns+st2] = wk[jj] + logobs[t*ns+st2]
		}
	}

	y := make([]int, ntime)
	a := (ntime - 1) * ns
	y[ntime-1] = argmax(lpr[a : a+ns])
	for t := ntime - 2; t >= 0; t-- {
		y[t] = lpt[(t+1)*ns+y[t+1]]
	}

	return y
}
