package hmmlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// A Bijector is an invertible map between a constrained parameter block and an
// unconstrained representation of the same block.  Forward maps unconstrained to
// constrained and Inverse maps constrained to unconstrained.  Optimizers work on
// the unconstrained side; the model always reads and writes the constrained side.
type Bijector interface {
	Forward(u []float64) []float64
	Inverse(v []float64) []float64
	Name() string
}

// SoftmaxCentered maps a vector in R^{k-1} to the interior of the k-simplex.
// The forward map appends an implicit zero coordinate and applies softmax; the
// inverse takes log-ratios against the final probability.
type SoftmaxCentered struct{}

// Name identifies the transform.
func (SoftmaxCentered) Name() string { return "softmax_centered" }

// Forward maps an unconstrained vector of length k-1 to a probability vector
// of length k.
func (SoftmaxCentered) Forward(u []float64) []float64 {

	v := make([]float64, len(u)+1)
	copy(v, u) // the final coordinate is the implicit zero

	mx := floats.Max(v)
	var s float64
	for j := range v {
		v[j] = math.Exp(v[j] - mx)
		s += v[j]
	}
	floats.Scale(1/s, v)

	return v
}

// Inverse maps a probability vector of length k to an unconstrained vector of
// length k-1.  The input must lie in the interior of the simplex; this is not
// re-checked here.
func (SoftmaxCentered) Inverse(v []float64) []float64 {

	u := make([]float64, len(v)-1)
	lp := math.Log(v[len(v)-1])
	for j := range u {
		u[j] = math.Log(v[j]) - lp
	}

	return u
}

// A Parameter holds a constrained parameter value together with a bijector to
// an unconstrained representation.  The value is stored as a flat slice; shape
// gives its dimensions and the bijector applies along the final axis.
type Parameter struct {
	value []float64
	shape []int
	bij   Bijector
}

// NewParameter returns a Parameter with the given constrained value.  The
// caller is responsible for ensuring that the value lies in the domain of the
// bijector; it is not validated here or on later reads.
func NewParameter(value []float64, shape []int, bij Bijector) *Parameter {

	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(value) {
		panic(fmt.Sprintf("parameter: value has length %d but shape %v requires %d", len(value), shape, n))
	}

	return &Parameter{value: value, shape: shape, bij: bij}
}

// Value returns the current constrained value.
func (pa *Parameter) Value() []float64 { return pa.value }

// Shape returns the dimensions of the value.
func (pa *Parameter) Shape() []int { return pa.shape }

// Set replaces the constrained value wholesale.  No component may retain a
// reference to the previous value after this call.
func (pa *Parameter) Set(value []float64) {
	if len(value) != len(pa.value) {
		panic(fmt.Sprintf("parameter: new value has length %d, want %d", len(value), len(pa.value)))
	}
	pa.value = value
}

// Unconstrained returns the unconstrained representation of the value,
// applying the bijector inverse along the final axis.
func (pa *Parameter) Unconstrained() []float64 {

	k := pa.shape[len(pa.shape)-1]
	u := make([]float64, 0, len(pa.value))
	for i := 0; i < len(pa.value); i += k {
		u = append(u, pa.bij.Inverse(pa.value[i:i+k])...)
	}

	return u
}

// SetUnconstrained replaces the value by mapping an unconstrained
// representation through the bijector forward transform.  This is the path a
// gradient-based optimizer uses to write back into the model.
func (pa *Parameter) SetUnconstrained(u []float64) {

	k := pa.shape[len(pa.shape)-1]
	nrow := len(pa.value) / k

	// Each row's unconstrained length is fixed by the bijector.
	m := len(pa.bij.Inverse(pa.value[:k]))
	if len(u) != nrow*m {
		panic(fmt.Sprintf("parameter: unconstrained value has length %d, want %d rows of %d", len(u), nrow, m))
	}

	v := make([]float64, 0, len(pa.value))
	for i := 0; i < len(u); i += m {
		v = append(v, pa.bij.Forward(u[i:i+m])...)
	}
	pa.value = v
}
