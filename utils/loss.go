package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ---------- Loss ----------

// MeanAbsError is mean(|a - b|) over all elements of equally shaped matrices.
func MeanAbsError(a, b []*mat.Dense) float64 {
	if len(a) != len(b) {
		panic("MeanAbsError: batch length mismatch")
	}
	sum := 0.0
	n := 0
	for i := range a {
		ar, ac := a[i].Dims()
		if br, bc := b[i].Dims(); br != ar || bc != ac {
			panic("MeanAbsError: shape mismatch")
		}
		var d mat.Dense
		d.Sub(a[i], b[i])
		raw := d.RawMatrix().Data
		for k := range raw {
			raw[k] = math.Abs(raw[k])
		}
		sum += floats.Sum(raw)
		n += ar * ac
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// MeanAbsErrorGrad is dL/dOutput for MeanAbsError over the batch:
// sign(out - target) / N, with sign(0) = 0.
func MeanAbsErrorGrad(out, target *mat.Dense, n int) *mat.Dense {
	r, c := out.Dims()
	g := mat.NewDense(r, c, nil)
	inv := 1.0 / float64(n)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			switch d := out.At(i, j) - target.At(i, j); {
			case d > 0:
				g.Set(i, j, inv)
			case d < 0:
				g.Set(i, j, -inv)
			}
		}
	}
	return g
}
