package hmmlib

import (
	"gonum.org/v1/gonum/floats"
)

// normalize the values in x to have a sum of 1.  If the sum underflows, every
// element is set to z instead.
func normalizeSum(x []float64, z float64) {
	scale := floats.Sum(x)
	if scale < 1e-10 {
		for j := range x {
			x[j] = z
		}
		return
	}
	floats.Scale(1/scale, x)
}

// normalize the values in x to have a maximum of 1.
func normalizeMax(x []float64) float64 {
	mx := floats.Max(x)
	floats.Scale(1/mx, x)
	return mx
}

func argmax(x []float64) int {
	j := 0
	v := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > v {
			v = x[i]
			j = i
		}
	}

	return j
}

// CompareStates returns the number of positions where the state sequences x
// and y disagree, and the total number of positions compared.  Panics if the
// lengths of x and y differ.
func CompareStates(x, y []int) (int, int) {

	if len(x) != len(y) {
		panic("Lengths are not equal")
	}

	var e int
	for t := range x {
		if x[t] != y[t] {
			e++
		}
	}

	return e, len(x)
}
