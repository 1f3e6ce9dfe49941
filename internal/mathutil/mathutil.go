package mathutil

import (
	"math"
	"math/rand"
)

// PoissonPMF calculates P(X = k) for a Poisson distribution with mean λ.
func PoissonPMF(k int, lambda float64) float64 {
	if k < 0 || lambda <= 0 {
		return 0
	}
	// P(X=k) = e^(-λ) * λ^k / k!
	// Use log space to avoid overflow
	logProb := -lambda + float64(k)*math.Log(lambda) - LogFactorial(k)
	return math.Exp(logProb)
}

// LogFactorial computes log(n!) for Poisson calculations.
func LogFactorial(n int) float64 {
	if n <= 1 {
		return 0
	}
	result := 0.0
	for i := 2; i <= n; i++ {
		result += math.Log(float64(i))
	}
	return result
}

// PoissonCDFOver calculates P(X >= k) for a Poisson distribution.
func PoissonCDFOver(k int, lambda float64) float64 {
	if lambda <= 0 {
		if k <= 0 {
			return 1
		}
		return 0
	}
	// P(X >= k) = 1 - Σ P(X=i) for i=0 to k-1
	sum := 0.0
	for i := 0; i < k; i++ {
		sum += PoissonPMF(i, lambda)
	}
	return 1 - sum
}

// PoissonSample draws a sample from a Poisson distribution using the
// provided source, so repeated runs with the same seed are reproducible.
func PoissonSample(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}

	// Inverse transform sampling for small lambda
	if lambda < 12 {
		L := math.Exp(-lambda)
		k := 0
		p := 1.0
		for p > L {
			k++
			p *= rng.Float64()
		}
		return k - 1
	}

	// Normal approximation for large lambda
	return int(math.Max(0, rng.NormFloat64()*math.Sqrt(lambda)+lambda+0.5))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BinomialStdErr returns the standard error of an estimated proportion p
// from n samples: sqrt(p(1-p)/n).
func BinomialStdErr(p float64, n int) float64 {
	if n <= 0 {
		return 1
	}
	return math.Sqrt(p * (1 - p) / float64(n))
}
