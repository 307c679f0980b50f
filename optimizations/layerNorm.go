package optimizations

import (
	"math"

	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

// LayerNorm normalizes each column (one position's features) of a
// (d x T) matrix to zero mean, unit variance, then applies gamma/beta.
type LayerNorm struct {
	D     int
	Eps   float64
	Gamma *mat.Dense // (d x 1)
	Beta  *mat.Dense // (d x 1)

	// gradient accumulators
	GGamma, GBeta *mat.Dense

	// cache
	Xhat   *mat.Dense // (d x T)
	InvStd []float64  // per column
}

func NewLayerNorm(d int, eps float64) *LayerNorm {
	g := utils.OnesLike(mat.NewDense(d, 1, nil))
	return &LayerNorm{
		D:      d,
		Eps:    eps,
		Gamma:  g,
		Beta:   mat.NewDense(d, 1, nil),
		GGamma: mat.NewDense(d, 1, nil),
		GBeta:  mat.NewDense(d, 1, nil),
	}
}

// Forward normalizes X and caches what BackwardGradsOnly needs.
func (ln *LayerNorm) Forward(X *mat.Dense) *mat.Dense {
	out, xhat, inv := ln.forward(X)
	ln.Xhat = xhat
	ln.InvStd = inv
	return out
}

// Infer is Forward without caching.
func (ln *LayerNorm) Infer(X *mat.Dense) *mat.Dense {
	out, _, _ := ln.forward(X)
	return out
}

func (ln *LayerNorm) forward(X *mat.Dense) (out, xhat *mat.Dense, inv []float64) {
	d, T := X.Dims()
	if d != ln.D {
		panic("LayerNorm.Forward: feature dim mismatch")
	}
	out = mat.NewDense(d, T, nil)
	xhat = mat.NewDense(d, T, nil)
	inv = make([]float64, T)
	for t := 0; t < T; t++ {
		mu := 0.0
		for i := 0; i < d; i++ {
			mu += X.At(i, t)
		}
		mu /= float64(d)
		// biased variance
		var v float64
		for i := 0; i < d; i++ {
			diff := X.At(i, t) - mu
			v += diff * diff
		}
		v /= float64(d)
		istd := 1.0 / math.Sqrt(v+ln.Eps)
		inv[t] = istd
		for i := 0; i < d; i++ {
			n := (X.At(i, t) - mu) * istd
			xhat.Set(i, t, n)
			out.Set(i, t, ln.Gamma.At(i, 0)*n+ln.Beta.At(i, 0))
		}
	}
	return out, xhat, inv
}

// BackwardGradsOnly adds dGamma/dBeta into the accumulators and returns dX.
func (ln *LayerNorm) BackwardGradsOnly(dY *mat.Dense) *mat.Dense {
	d, T := dY.Dims()
	for i := 0; i < d; i++ {
		sumDG := 0.0
		sumDB := 0.0
		for t := 0; t < T; t++ {
			sumDG += dY.At(i, t) * ln.Xhat.At(i, t)
			sumDB += dY.At(i, t)
		}
		ln.GGamma.Set(i, 0, ln.GGamma.At(i, 0)+sumDG)
		ln.GBeta.Set(i, 0, ln.GBeta.At(i, 0)+sumDB)
	}

	dX := mat.NewDense(d, T, nil)
	for t := 0; t < T; t++ {
		istd := ln.InvStd[t]
		sum1 := 0.0
		sum2 := 0.0
		for i := 0; i < d; i++ {
			gy := dY.At(i, t) * ln.Gamma.At(i, 0)
			sum1 += gy
			sum2 += gy * ln.Xhat.At(i, t)
		}
		for i := 0; i < d; i++ {
			gy := dY.At(i, t) * ln.Gamma.At(i, 0)
			dX.Set(i, t, (float64(d)*gy-sum1-ln.Xhat.At(i, t)*sum2)*(istd/float64(d)))
		}
	}
	return dX
}

func (ln *LayerNorm) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + ".gamma", Value: ln.Gamma, Grad: ln.GGamma},
		{Name: prefix + ".beta", Value: ln.Beta, Grad: ln.GBeta},
	}
}

// CloneForGradsOnly shares gamma/beta but owns its cache and accumulators.
func (ln *LayerNorm) CloneForGradsOnly() *LayerNorm {
	return &LayerNorm{
		D:      ln.D,
		Eps:    ln.Eps,
		Gamma:  ln.Gamma,
		Beta:   ln.Beta,
		GGamma: mat.NewDense(ln.D, 1, nil),
		GBeta:  mat.NewDense(ln.D, 1, nil),
	}
}
