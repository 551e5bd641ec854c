package hmmlib

import (
	"fmt"
	"io"
	"log"
	"os"
)

// HMM is the generic skeleton shared by all emission families.  It owns the
// initial state distribution and the transition matrix and knows nothing
// about how observations are emitted.
type HMM struct {

	// Number of states
	NState int

	// The initial state distribution, a point in the NState-simplex
	Init *Parameter

	// The transition matrix, NState x NState, with each row summing to 1
	Trans *Parameter

	// Write log messages here
	msglogger *log.Logger
	parlogger *log.Logger
}

// newHMM validates the shapes of the initial distribution and transition
// matrix and wraps them in constrained parameters.  The values themselves are
// the caller's responsibility.
func newHMM(init, trans []float64, nstate int) (HMM, error) {

	if nstate <= 0 {
		return HMM{}, fmt.Errorf("hmm: num_states must be positive, got %d", nstate)
	}
	if len(init) != nstate {
		return HMM{}, fmt.Errorf("hmm: initial_probabilities has length %d, want %d", len(init), nstate)
	}
	if len(trans) != nstate*nstate {
		return HMM{}, fmt.Errorf("hmm: transition_matrix has length %d, want %d x %d", len(trans), nstate, nstate)
	}

	return HMM{
		NState:    nstate,
		Init:      NewParameter(init, []int{nstate}, SoftmaxCentered{}),
		Trans:     NewParameter(trans, []int{nstate, nstate}, SoftmaxCentered{}),
		msglogger: log.New(os.Stderr, "", log.Ltime),
		parlogger: log.New(io.Discard, "", 0),
	}, nil
}

// SetLogger provides a logger that will be used to write logging messages.
func (hmm *HMM) SetLogger(logname string) *log.Logger {

	fid, err := os.Create(logname + "_msg.log")
	if err != nil {
		panic(err)
	}
	hmm.msglogger = log.New(fid, "", log.Ltime)

	fid, err = os.Create(logname + "_par.log")
	if err != nil {
		panic(err)
	}
	hmm.parlogger = log.New(fid, "", 0)

	// The calling program can also use this logger
	return hmm.msglogger
}

// Message writes a message to the message log.
func (hmm *HMM) Message(msg string) {
	hmm.msglogger.Print(msg)
}

// Distribution is a state's observation distribution: the joint law of one
// time step's emission vector given the state.
type Distribution interface {

	// LogProb returns the log probability of one time step's observation,
	// given as one class index per emission channel.
	LogProb(x []int) float64

	// Rand samples one time step's observation into dst.
	Rand(dst []int)
}

// SuffStats is a per-family summary of one sequence's posterior: everything
// the family's M-step needs from that sequence.  Records are created fresh by
// each EStep call and consumed by the following MStep call.
type SuffStats interface {

	// LogLik returns the sequence log-likelihood.
	LogLik() float64
}

// SuffStatsShape declares, per sufficient statistic field, the expected shape
// of that field given the model's dimensions.  A scalar field has an empty
// shape.
type SuffStatsShape map[string][]int

// Size returns the number of elements implied by the shape of the named
// field.  A scalar field has size 1.
func (sh SuffStatsShape) Size(field string) int {

	n := 1
	for _, d := range sh[field] {
		n *= d
	}

	return n
}

// EmissionModel is the capability set an emission family must provide to plug
// into the generic EM machinery.  CategoricalHMM is the concrete family in
// this package; Gaussian or Poisson variants satisfy the same contract.
type EmissionModel interface {

	// EmissionDistribution returns the observation distribution for one state.
	EmissionDistribution(state int) Distribution

	// SuffStatsEventShape declares the expected shape of every sufficient
	// statistic field for the model's current dimensions.
	SuffStatsEventShape() SuffStatsShape

	// EStep returns one sufficient statistics record per sequence in the
	// batch.  Each sequence is a flat slice of class indices, ntime x
	// nchannel, packed by time point.
	EStep(batch [][]int) []SuffStats

	// MStep sums the statistics across the batch and replaces the model
	// parameters.  The parameters are either all replaced or, on error,
	// all left at their pre-call values.
	MStep(batch [][]int, stats []SuffStats) error
}
