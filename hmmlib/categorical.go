package hmmlib

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// Dirichlet pseudo-counts for the M-step posterior modes.  Both are
	// strictly greater than 1, so the mode is always well defined and no
	// probability can collapse to zero after the first M-step.  The
	// emission pseudo-count is larger to keep rarely-seen classes away
	// from degenerate estimates.
	statePseudoCount    = 1.0001
	emissionPseudoCount = 1.1
)

// CategoricalHMM is an HMM whose emissions are vectors of independent
// categorical draws, one per emission channel, with state-specific class
// probabilities.
type CategoricalHMM struct {
	HMM

	// Number of emission channels
	NComp int

	// Number of classes per channel
	NClass int

	// Class probabilities, NState x NComp x NClass.  Each (state, channel)
	// slice along the class axis sums to 1.
	Emission *Parameter
}

// NewCategorical returns a CategoricalHMM with the given parameter values.
// The emission probabilities must form a rank 3 tensor, NState x NComp x
// NClass, packed flat; a shape mismatch in any parameter is reported as an
// error and no model is constructed.
func NewCategorical(initial, trans, emission []float64, nstate, ncomp, nclass int) (*CategoricalHMM, error) {

	base, err := newHMM(initial, trans, nstate)
	if err != nil {
		return nil, err
	}

	if ncomp <= 0 || nclass <= 0 {
		return nil, fmt.Errorf("categorical: num_emissions and num_classes must be positive, got %d and %d", ncomp, nclass)
	}
	if len(emission) != nstate*ncomp*nclass {
		return nil, fmt.Errorf("categorical: emission_probs must be num_states x num_emissions x num_classes (%d x %d x %d), got length %d",
			nstate, ncomp, nclass, len(emission))
	}

	return &CategoricalHMM{
		HMM:      base,
		NComp:    ncomp,
		NClass:   nclass,
		Emission: NewParameter(emission, []int{nstate, ncomp, nclass}, SoftmaxCentered{}),
	}, nil
}

// RandomCategorical returns a CategoricalHMM whose initial distribution,
// transition rows, and per-(state, channel) emission distributions are drawn
// independently from symmetric Dirichlet(1) priors, i.e. uniformly over their
// simplexes.  The draw is deterministic for a fixed seed.
func RandomCategorical(seed uint64, nstate, ncomp, nclass int) (*CategoricalHMM, error) {

	if nstate <= 0 || ncomp <= 0 || nclass <= 0 {
		return nil, fmt.Errorf("categorical: model dimensions must be positive, got %d, %d, %d", nstate, ncomp, nclass)
	}

	src := rand.NewSource(seed)
	dirState := distmv.NewDirichlet(ones(nstate), src)
	dirClass := distmv.NewDirichlet(ones(nclass), src)

	initial := dirState.Rand(nil)

	trans := make([]float64, nstate*nstate)
	for st := 0; st < nstate; st++ {
		dirState.Rand(trans[st*nstate : (st+1)*nstate])
	}

	emission := make([]float64, nstate*ncomp*nclass)
	for r := 0; r < nstate*ncomp; r++ {
		dirClass.Rand(emission[r*nclass : (r+1)*nclass])
	}

	return NewCategorical(initial, trans, emission, nstate, ncomp, nclass)
}

func ones(n int) []float64 {
	x := make([]float64, n)
	for j := range x {
		x[j] = 1
	}
	return x
}

// NumStates returns the number of states, derived from the emission shape.
func (hmm *CategoricalHMM) NumStates() int { return hmm.Emission.Shape()[0] }

// NumEmissions returns the number of emission channels, derived from the
// emission shape.
func (hmm *CategoricalHMM) NumEmissions() int { return hmm.Emission.Shape()[1] }

// NumClasses returns the number of classes per channel, derived from the
// emission shape.
func (hmm *CategoricalHMM) NumClasses() int { return hmm.Emission.Shape()[2] }

// Params returns the model's constrained parameters in a fixed order: initial
// distribution, transition matrix, emission probabilities.  An external
// optimizer can traverse these and rebuild an equivalent model with
// SetParams.
func (hmm *CategoricalHMM) Params() []*Parameter {
	return []*Parameter{hmm.Init, hmm.Trans, hmm.Emission}
}

// SetParams replaces the model's parameters wholesale, in the order returned
// by Params.
func (hmm *CategoricalHMM) SetParams(params []*Parameter) error {

	if len(params) != 3 {
		return fmt.Errorf("categorical: got %d parameters, want 3", len(params))
	}

	hmm.Init, hmm.Trans, hmm.Emission = params[0], params[1], params[2]
	return nil
}

// IndependentCategorical is the joint law of one time step's emission vector:
// independent categorical draws across the emission channels.
type IndependentCategorical struct {
	dists []distuv.Categorical
}

// LogProb returns the log probability of observing the class vector x, one
// class index per channel.
func (ic *IndependentCategorical) LogProb(x []int) float64 {

	var lpr float64
	for d, k := range x {
		lpr += ic.dists[d].LogProb(float64(k))
	}

	return lpr
}

// Rand samples one emission vector into dst.
func (ic *IndependentCategorical) Rand(dst []int) {
	for d := range ic.dists {
		dst[d] = int(ic.dists[d].Rand())
	}
}

// EmissionDistribution returns the observation distribution for one state:
// independent categorical distributions across the emission channels,
// parameterized by that state's rows of the emission probability tensor.
func (hmm *CategoricalHMM) EmissionDistribution(state int) Distribution {

	em := hmm.Emission.Value()
	dists := make([]distuv.Categorical, hmm.NComp)
	for d := 0; d < hmm.NComp; d++ {
		i := (state*hmm.NComp + d) * hmm.NClass
		w := make([]float64, hmm.NClass)
		copy(w, em[i:i+hmm.NClass])
		dists[d] = distuv.NewCategorical(w, nil)
	}

	return &IndependentCategorical{dists: dists}
}

// CategoricalSuffStats summarizes one sequence's posterior: everything the
// categorical M-step needs from that sequence.
type CategoricalSuffStats struct {

	// The sequence log-likelihood
	LLF float64

	// Posterior distribution of the initial state, length NState
	InitProbs []float64

	// Transition posteriors summed over time, NState x NState
	TransProbs []float64

	// Expected one-hot emission counts, NState x NComp x NClass
	SumX []float64
}

// NewCategoricalSuffStats returns a zeroed statistics record for a model with
// the given dimensions.
func NewCategoricalSuffStats(nstate, ncomp, nclass int) *CategoricalSuffStats {
	return &CategoricalSuffStats{
		InitProbs:  make([]float64, nstate),
		TransProbs: make([]float64, nstate*nstate),
		SumX:       make([]float64, nstate*ncomp*nclass),
	}
}

// LogLik returns the sequence log-likelihood.
func (ss *CategoricalSuffStats) LogLik() float64 { return ss.LLF }

// Add accumulates the statistics from other into ss.  The reduction is a pure
// elementwise sum, so any accumulation order gives the same result.
func (ss *CategoricalSuffStats) Add(other *CategoricalSuffStats) error {

	if len(ss.InitProbs) != len(other.InitProbs) || len(ss.TransProbs) != len(other.TransProbs) ||
		len(ss.SumX) != len(other.SumX) {
		return fmt.Errorf("categorical: sufficient statistics shapes do not match")
	}

	ss.LLF += other.LLF
	floats.Add(ss.InitProbs, other.InitProbs)
	floats.Add(ss.TransProbs, other.TransProbs)
	floats.Add(ss.SumX, other.SumX)

	return nil
}

// SuffStatsEventShape declares the expected shape of each sufficient
// statistic field for the model's current dimensions.  The scalar
// log-likelihood has an empty shape.
func (hmm *CategoricalHMM) SuffStatsEventShape() SuffStatsShape {
	return SuffStatsShape{
		"marginal_loglik": {},
		"initial_probs":   {hmm.NState},
		"trans_probs":     {hmm.NState, hmm.NState},
		"sum_x":           {hmm.NState, hmm.NComp, hmm.NClass},
	}
}

// conditionalLogLiks returns the ntime x nstate matrix of per-time, per-state
// log emission likelihoods for one sequence, packed flat by time point.
func (hmm *CategoricalHMM) conditionalLogLiks(obs []int) []float64 {

	ntime := len(obs) / hmm.NComp
	em := hmm.Emission.Value()

	logobs := make([]float64, ntime*hmm.NState)
	for t := 0; t < ntime; t++ {
		for st := 0; st < hmm.NState; st++ {
			var lpr float64
			for d := 0; d < hmm.NComp; d++ {
				k := obs[t*hmm.NComp+d]
				lpr += math.Log(em[(st*hmm.NComp+d)*hmm.NClass+k])
			}
			logobs[t*hmm.NState+st] = lpr
		}
	}

	return logobs
}

// EStep runs the smoother on every sequence in the batch and returns one
// sufficient statistics record per sequence.  The sequences are processed
// concurrently; every goroutine reads the shared parameters, which must not
// be replaced while the call is running, and writes only its own record.
func (hmm *CategoricalHMM) EStep(batch [][]int) []SuffStats {

	hmm.checkBatch(batch)
	stats := make([]SuffStats, len(batch))

	var wg sync.WaitGroup
	for p := range batch {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			stats[p] = hmm.eStepSequence(batch[p])
		}(p)
	}
	wg.Wait()

	return stats
}

// checkBatch panics if any sequence's length is not a whole number of time
// points, so that a shape mismatch surfaces at first use rather than
// silently dropping trailing observations.
func (hmm *CategoricalHMM) checkBatch(batch [][]int) {
	for p, obs := range batch {
		if len(obs)%hmm.NComp != 0 {
			panic(fmt.Sprintf("categorical: sequence %d has length %d, not a multiple of %d channels", p, len(obs), hmm.NComp))
		}
	}
}

// eStepSequence smooths one sequence and accumulates its expected emission
// counts.
func (hmm *CategoricalHMM) eStepSequence(obs []int) *CategoricalSuffStats {

	ntime := len(obs) / hmm.NComp
	post := Smooth(hmm.Init.Value(), hmm.Trans.Value(), hmm.conditionalLogLiks(obs), ntime, hmm.NState)

	initp := make([]float64, hmm.NState)
	copy(initp, post.SmoothedProbs[0:hmm.NState])

	// Expected one-hot emission counts: the smoothed occupancy of each
	// state is credited to the observed class in each channel.
	sumx := make([]float64, hmm.NState*hmm.NComp*hmm.NClass)
	for t := 0; t < ntime; t++ {
		for st := 0; st < hmm.NState; st++ {
			w := post.SmoothedProbs[t*hmm.NState+st]
			for d := 0; d < hmm.NComp; d++ {
				k := obs[t*hmm.NComp+d]
				sumx[(st*hmm.NComp+d)*hmm.NClass+k] += w
			}
		}
	}

	return &CategoricalSuffStats{
		LLF:        post.LogLik,
		InitProbs:  initp,
		TransProbs: post.TransProbs,
		SumX:       sumx,
	}
}

// MStep sums the batch statistics and replaces the initial distribution, the
// transition matrix, and the emission probabilities with the modes of their
// Dirichlet posteriors.  All new values are fully computed before any
// parameter is assigned, so a failed call leaves the model unchanged.
func (hmm *CategoricalHMM) MStep(batch [][]int, stats []SuffStats) error {

	if len(stats) == 0 {
		return fmt.Errorf("categorical: m-step called with an empty statistics batch")
	}

	total := NewCategoricalSuffStats(hmm.NState, hmm.NComp, hmm.NClass)
	for _, s := range stats {
		cs, ok := s.(*CategoricalSuffStats)
		if !ok {
			return fmt.Errorf("categorical: statistics have type %T, want *CategoricalSuffStats", s)
		}
		if err := total.Add(cs); err != nil {
			return err
		}
	}

	newinit := dirichletMode(total.InitProbs, statePseudoCount)

	newtrans := make([]float64, hmm.NState*hmm.NState)
	for st := 0; st < hmm.NState; st++ {
		row := dirichletMode(total.TransProbs[st*hmm.NState:(st+1)*hmm.NState], statePseudoCount)
		copy(newtrans[st*hmm.NState:], row)
	}

	newem := make([]float64, hmm.NState*hmm.NComp*hmm.NClass)
	for r := 0; r < hmm.NState*hmm.NComp; r++ {
		row := dirichletMode(total.SumX[r*hmm.NClass:(r+1)*hmm.NClass], emissionPseudoCount)
		copy(newem[r*hmm.NClass:], row)
	}

	hmm.Init.Set(newinit)
	hmm.Trans.Set(newtrans)
	hmm.Emission.Set(newem)

	return nil
}

// dirichletMode returns the mode of a Dirichlet posterior whose concentration
// is x plus a constant pseudo-count applied elementwise: for concentration a,
// the mode is (a-1) / (sum(a) - len(a)).  The pseudo-count is strictly
// greater than 1, so every coordinate of the mode is strictly positive.
func dirichletMode(x []float64, pseudo float64) []float64 {

	den := floats.Sum(x) + float64(len(x))*(pseudo-1)
	m := make([]float64, len(x))
	for j := range m {
		m[j] = (x[j] + pseudo - 1) / den
	}

	return m
}
