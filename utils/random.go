package utils

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// NewSource returns a PCG source; seed 0 seeds from the clock.
func NewSource(seed int64) rand.Source {
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	return rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
}

// RandomArray draws U(-1/sqrt(fanIn), 1/sqrt(fanIn)), the default init
// for linear weights and biases.
func RandomArray(size int, fanIn float64, src rand.Source) []float64 {
	bound := 1.0 / math.Sqrt(fanIn+1e-12)
	return UniformArray(size, bound, src)
}

// XavierArray draws U(-a, a) with a = sqrt(6/(fanIn+fanOut)).
func XavierArray(size int, fanIn, fanOut float64, src rand.Source) []float64 {
	return UniformArray(size, math.Sqrt(6.0/(fanIn+fanOut)), src)
}

func UniformArray(size int, bound float64, src rand.Source) []float64 {
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// NormalArray draws standard-normal values.
func NormalArray(size int, src rand.Source) []float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}
