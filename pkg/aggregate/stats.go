package aggregate

import (
	"math"
	"time"
)

// welford accumulates mean and variance incrementally. The textbook
// sum-of-squares formula cancels catastrophically at millions of samples;
// this form stays stable.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++

	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

// stddev returns the sample standard deviation, zero for fewer than two
// observations.
func (w *welford) stddev() float64 {
	if w.n < 2 {
		return 0
	}

	return math.Sqrt(w.m2 / float64(w.n-1))
}

// percentile selects the p-th percentile from an ascending-sorted sequence
// using the nearest-rank method: the value at rank ceil(p/100*n).
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	rank := int(math.Ceil(p / 100.0 * float64(n)))
	if rank < 1 {
		rank = 1
	}

	if rank > n {
		rank = n
	}

	return sorted[rank-1]
}
