package transformer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/ReverseAttention/optimizations"
	"github.com/manningwu07/ReverseAttention/utils"
)

// Attention is unmasked multi-head self-attention over the columns of a
// (dModel x T) input. Each head projects to dHead = dModel/H rows.
type Attention struct {
	H      int
	DModel int
	DHead  int

	Wquery, Wkey, Wvalue []*mat.Dense // per head (dHead x dModel)
	Bquery, Bkey, Bvalue []*mat.Dense // per head (dHead x 1)
	Woutput              *mat.Dense   // (dModel x dModel)
	Boutput              *mat.Dense   // (dModel x 1)

	// gradient accumulators, same shapes as above
	GWq, GWk, GWv []*mat.Dense
	GBq, GBk, GBv []*mat.Dense
	GWo, GBo      *mat.Dense

	// cache for backprop
	X       *mat.Dense
	Q, K, V []*mat.Dense
	A       []*mat.Dense
	O_cat   *mat.Dense
}

func NewAttention(dModel, nHeads int, src rand.Source) *Attention {
	if dModel%nHeads != 0 {
		panic("dModel must be divisible by nHeads")
	}
	dHead := dModel / nHeads
	attn := newAttentionShell(dModel, nHeads)

	// q/k/v are one packed (3*dModel x dModel) projection for init purposes.
	fanIn, fanOut := float64(dModel), float64(3*dModel)
	for h := 0; h < nHeads; h++ {
		attn.Wquery[h] = mat.NewDense(dHead, dModel, utils.XavierArray(dHead*dModel, fanIn, fanOut, src))
		attn.Wkey[h] = mat.NewDense(dHead, dModel, utils.XavierArray(dHead*dModel, fanIn, fanOut, src))
		attn.Wvalue[h] = mat.NewDense(dHead, dModel, utils.XavierArray(dHead*dModel, fanIn, fanOut, src))
		attn.Bquery[h] = mat.NewDense(dHead, 1, nil)
		attn.Bkey[h] = mat.NewDense(dHead, 1, nil)
		attn.Bvalue[h] = mat.NewDense(dHead, 1, nil)
	}
	attn.Woutput = mat.NewDense(dModel, dModel, utils.RandomArray(dModel*dModel, float64(dModel), src))
	attn.Boutput = mat.NewDense(dModel, 1, nil)
	return attn
}

// newAttentionShell allocates everything except the weights.
func newAttentionShell(dModel, nHeads int) *Attention {
	dHead := dModel / nHeads
	attn := &Attention{
		H:      nHeads,
		DModel: dModel,
		DHead:  dHead,
		Wquery: make([]*mat.Dense, nHeads),
		Wkey:   make([]*mat.Dense, nHeads),
		Wvalue: make([]*mat.Dense, nHeads),
		Bquery: make([]*mat.Dense, nHeads),
		Bkey:   make([]*mat.Dense, nHeads),
		Bvalue: make([]*mat.Dense, nHeads),

		GWq: make([]*mat.Dense, nHeads),
		GWk: make([]*mat.Dense, nHeads),
		GWv: make([]*mat.Dense, nHeads),
		GBq: make([]*mat.Dense, nHeads),
		GBk: make([]*mat.Dense, nHeads),
		GBv: make([]*mat.Dense, nHeads),
		GWo: mat.NewDense(dModel, dModel, nil),
		GBo: mat.NewDense(dModel, 1, nil),

		Q: make([]*mat.Dense, nHeads),
		K: make([]*mat.Dense, nHeads),
		V: make([]*mat.Dense, nHeads),
		A: make([]*mat.Dense, nHeads),
	}
	for h := 0; h < nHeads; h++ {
		attn.GWq[h] = mat.NewDense(dHead, dModel, nil)
		attn.GWk[h] = mat.NewDense(dHead, dModel, nil)
		attn.GWv[h] = mat.NewDense(dHead, dModel, nil)
		attn.GBq[h] = mat.NewDense(dHead, 1, nil)
		attn.GBk[h] = mat.NewDense(dHead, 1, nil)
		attn.GBv[h] = mat.NewDense(dHead, 1, nil)
	}
	return attn
}

// Forward computes attention and caches activations for BackwardGradsOnly.
func (attn *Attention) Forward(X *mat.Dense) *mat.Dense {
	return attn.forward(X, true)
}

// Infer is Forward without touching the cache.
func (attn *Attention) Infer(X *mat.Dense) *mat.Dense {
	return attn.forward(X, false)
}

func (attn *Attention) forward(X *mat.Dense, record bool) *mat.Dense {
	_, T := X.Dims()
	headsCat := mat.NewDense(attn.DModel, T, nil)
	rescale := 1.0 / math.Sqrt(float64(attn.DHead))

	for h := 0; h < attn.H; h++ {
		q := utils.AddBias(utils.ToDense(utils.Dot(attn.Wquery[h], X)), attn.Bquery[h]) // (dHead x T)
		k := utils.AddBias(utils.ToDense(utils.Dot(attn.Wkey[h], X)), attn.Bkey[h])
		v := utils.AddBias(utils.ToDense(utils.Dot(attn.Wvalue[h], X)), attn.Bvalue[h])

		// S = (Q^T K)/sqrt(dHead), row i = query position i
		scores := utils.Scale(rescale, utils.Dot(q.T(), k))
		a := utils.RowSoftmax(scores)

		// O = V * A^T
		o := utils.Dot(v, a.T())
		base := h * attn.DHead
		dst := headsCat.Slice(base, base+attn.DHead, 0, T).(*mat.Dense)
		dst.Copy(o)

		if record {
			attn.Q[h], attn.K[h], attn.V[h], attn.A[h] = q, k, v, a
		}
	}
	if record {
		attn.X = X
		attn.O_cat = headsCat
	}
	return utils.AddBias(utils.ToDense(utils.Dot(attn.Woutput, headsCat)), attn.Boutput)
}

// BackwardGradsOnly accumulates parameter grads and returns dX.
func (attn *Attention) BackwardGradsOnly(dY *mat.Dense) *mat.Dense {
	if attn.X == nil {
		panic("attention: BackwardGradsOnly before Forward")
	}
	_, T := attn.X.Dims()
	if r, c := dY.Dims(); r != attn.DModel || c != T {
		panic(fmt.Sprintf("attention: dY is %dx%d, want %dx%d", r, c, attn.DModel, T))
	}

	// Y = Wout * Ocat + bout
	attn.GWo.Add(attn.GWo, utils.Dot(dY, attn.O_cat.T()))
	attn.GBo.Add(attn.GBo, utils.SumCols(dY))
	dOcat := utils.ToDense(utils.Dot(attn.Woutput.T(), dY))

	dX := mat.NewDense(attn.DModel, T, nil)
	rescale := 1.0 / math.Sqrt(float64(attn.DHead))

	for h := 0; h < attn.H; h++ {
		base := h * attn.DHead
		dO := dOcat.Slice(base, base+attn.DHead, 0, T)

		// O = V * A^T
		dV := utils.ToDense(utils.Dot(dO, attn.A[h]))       // (dHead x T)
		dA_T := utils.ToDense(utils.Dot(attn.V[h].T(), dO)) // (T x T)

		// A = softmax_row(S)
		dS := utils.SoftmaxBackward(dA_T.T(), attn.A[h])

		// S = Q^T K / sqrt(dHead)
		dQ := utils.ToDense(utils.Scale(rescale, utils.Dot(attn.K[h], dS.T())))
		dK := utils.ToDense(utils.Scale(rescale, utils.Dot(attn.Q[h], dS)))

		attn.GWq[h].Add(attn.GWq[h], utils.Dot(dQ, attn.X.T()))
		attn.GWk[h].Add(attn.GWk[h], utils.Dot(dK, attn.X.T()))
		attn.GWv[h].Add(attn.GWv[h], utils.Dot(dV, attn.X.T()))
		attn.GBq[h].Add(attn.GBq[h], utils.SumCols(dQ))
		attn.GBk[h].Add(attn.GBk[h], utils.SumCols(dK))
		attn.GBv[h].Add(attn.GBv[h], utils.SumCols(dV))

		dX.Add(dX, utils.Dot(attn.Wquery[h].T(), dQ))
		dX.Add(dX, utils.Dot(attn.Wkey[h].T(), dK))
		dX.Add(dX, utils.Dot(attn.Wvalue[h].T(), dV))
	}
	return dX
}

func (attn *Attention) Params(prefix string) []optimizations.Param {
	var ps []optimizations.Param
	for h := 0; h < attn.H; h++ {
		ps = append(ps,
			optimizations.Param{Name: fmt.Sprintf("%s.h%d.wq", prefix, h), Value: attn.Wquery[h], Grad: attn.GWq[h]},
			optimizations.Param{Name: fmt.Sprintf("%s.h%d.bq", prefix, h), Value: attn.Bquery[h], Grad: attn.GBq[h]},
			optimizations.Param{Name: fmt.Sprintf("%s.h%d.wk", prefix, h), Value: attn.Wkey[h], Grad: attn.GWk[h]},
			optimizations.Param{Name: fmt.Sprintf("%s.h%d.bk", prefix, h), Value: attn.Bkey[h], Grad: attn.GBk[h]},
			optimizations.Param{Name: fmt.Sprintf("%s.h%d.wv", prefix, h), Value: attn.Wvalue[h], Grad: attn.GWv[h]},
			optimizations.Param{Name: fmt.Sprintf("%s.h%d.bv", prefix, h), Value: attn.Bvalue[h], Grad: attn.GBv[h]},
		)
	}
	return append(ps,
		optimizations.Param{Name: prefix + ".wo", Value: attn.Woutput, Grad: attn.GWo},
		optimizations.Param{Name: prefix + ".bo", Value: attn.Boutput, Grad: attn.GBo},
	)
}

// RowSumRange reports min/max row sums of the cached head-0 attention
// weights; both should be 1.
func (attn *Attention) RowSumRange() (mn, mx float64, ok bool) {
	if attn.H == 0 || attn.A[0] == nil {
		return 0, 0, false
	}
	rs := utils.RowSums(attn.A[0])
	mn, mx = rs[0], rs[0]
	for _, v := range rs {
		mn = math.Min(mn, v)
		mx = math.Max(mx, v)
	}
	return mn, mx, true
}
