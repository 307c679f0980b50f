package optimizations

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestLayerNormNormalizesColumns(t *testing.T) {
	ln := NewLayerNorm(4, 1e-5)
	x := mat.NewDense(4, 3, []float64{
		1, -3, 10,
		2, 0, 10.5,
		3, 4, 9,
		4, 1, 12,
	})
	y := ln.Forward(x)
	for c := 0; c < 3; c++ {
		col := mat.Col(nil, c, y)
		mu, v := 0.0, 0.0
		for _, e := range col {
			mu += e
		}
		mu /= 4
		for _, e := range col {
			v += (e - mu) * (e - mu)
		}
		v /= 4
		if math.Abs(mu) > 1e-9 || math.Abs(v-1) > 1e-3 {
			t.Fatalf("column %d: mean %g var %g", c, mu, v)
		}
	}
}

func TestLayerNormGradCheck(t *testing.T) {
	ln := NewLayerNorm(4, 1e-5)
	ln.Gamma = mat.NewDense(4, 1, []float64{1.5, 0.5, -1, 2})
	ln.Beta = mat.NewDense(4, 1, []float64{0.1, -0.2, 0.3, 0})
	x := mat.NewDense(4, 2, []float64{0.3, -1, 1.2, 0.4, -0.7, 2, 0.05, 0.9})
	g := mat.NewDense(4, 2, []float64{1, -2, 0.5, 0.3, -1, 1, 2, -0.5})

	loss := func() float64 {
		var p mat.Dense
		p.MulElem(ln.Infer(x), g)
		return mat.Sum(&p)
	}

	ln.Forward(x)
	dX := ln.BackwardGradsOnly(g)

	check := func(name string, param, grad *mat.Dense) {
		r, c := param.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				w0 := param.At(i, j)
				param.Set(i, j, w0+1e-6)
				lp := loss()
				param.Set(i, j, w0-1e-6)
				lm := loss()
				param.Set(i, j, w0)
				num := (lp - lm) / 2e-6
				if math.Abs(num-grad.At(i, j)) > 1e-5 {
					t.Fatalf("%s[%d,%d]: num=%.8g ana=%.8g", name, i, j, num, grad.At(i, j))
				}
			}
		}
	}
	check("x", x, dX)
	check("gamma", ln.Gamma, ln.GGamma)
	check("beta", ln.Beta, ln.GBeta)
}

func TestLayerNormCloneSharesWeights(t *testing.T) {
	ln := NewLayerNorm(3, 1e-5)
	c := ln.CloneForGradsOnly()
	if c.Gamma != ln.Gamma || c.Beta != ln.Beta {
		t.Fatal("clone must share gamma/beta")
	}
	if c.GGamma == ln.GGamma {
		t.Fatal("clone must own its gradient accumulators")
	}
}
