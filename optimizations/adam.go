package optimizations

import (
	"fmt"
	"math"

	"github.com/manningwu07/ReverseAttention/params"
	"gonum.org/v1/gonum/mat"
)

// Param is a trainable matrix and its gradient accumulator.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// AdamUpdateInPlace applies one AdamW step with bias correction:
// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p).
// The decay term uses the pre-update p, so it is decoupled from the moments.
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	c1 := 1.0 / (1.0 - math.Pow(beta1, float64(t)))
	c2 := 1.0 / (1.0 - math.Pow(beta2, float64(t)))
	for i := 0; i < pr; i++ {
		pRow, gRow := p.RawRowView(i), g.RawRowView(i)
		mRow, vRow := m.RawRowView(i), v.RawRowView(i)
		for j := 0; j < pc; j++ {
			gij := gRow[j]
			mij := beta1*mRow[j] + (1.0-beta1)*gij
			vij := beta2*vRow[j] + (1.0-beta2)*gij*gij
			denom := math.Sqrt(vij*c2) + eps
			update := mij*c1/denom + weightDecay*pRow[j]
			mRow[j] = mij
			vRow[j] = vij
			pRow[j] -= lr * update
		}
	}
}

// AdamW holds first/second moment estimates for a fixed parameter list
// and the shared step counter.
type AdamW struct {
	LR, Beta1, Beta2, Eps, WeightDecay float64

	T    int
	m, v []*mat.Dense
}

func NewAdamW(cfg params.TrainingConfig) *AdamW {
	return &AdamW{
		LR:          cfg.LR,
		Beta1:       cfg.AdamBeta1,
		Beta2:       cfg.AdamBeta2,
		Eps:         cfg.AdamEps,
		WeightDecay: cfg.WeightDecay,
	}
}

// Step updates every parameter from its accumulated gradient.
// The parameter list must be the same, in the same order, on every call.
func (o *AdamW) Step(ps []Param) {
	if o.m == nil {
		o.m = make([]*mat.Dense, len(ps))
		o.v = make([]*mat.Dense, len(ps))
		for i, p := range ps {
			r, c := p.Value.Dims()
			o.m[i] = mat.NewDense(r, c, nil)
			o.v[i] = mat.NewDense(r, c, nil)
		}
	}
	if len(ps) != len(o.m) {
		panic(fmt.Sprintf("adamw: got %d params, state has %d", len(ps), len(o.m)))
	}
	o.T++
	for i, p := range ps {
		AdamUpdateInPlace(p.Value, p.Grad, o.m[i], o.v[i], o.T,
			o.LR, o.Beta1, o.Beta2, o.Eps, o.WeightDecay)
	}
}

// Moments returns the first and second moment buffers for parameter i.
func (o *AdamW) Moments(i int) (m, v *mat.Dense) {
	if i < 0 || i >= len(o.m) {
		return nil, nil
	}
	return o.m[i], o.v[i]
}
