package transformer

import (
	"github.com/manningwu07/ReverseAttention/optimizations"
	"gonum.org/v1/gonum/mat"
)

// CloneForGradsOnly creates a shallow clone of the model where all weights
// are shared (read-only), but caches and gradient accumulators are private.
// No optimizer state is involved. Safe for concurrent Forward/Backward.
func (m *Model) CloneForGradsOnly() *Model {
	out := &Model{
		SeqLen: m.SeqLen,
		DModel: m.DModel,
		PosEmb: m.PosEmb, // shared read-only
		GPos:   mat.NewDense(m.SeqLen, m.DModel, nil),
		Attn:   cloneAttentionForGrads(m.Attn),
		Mlp:    cloneMLPForGrads(m.Mlp),
	}
	out.collectParams()
	return out
}

func cloneAttentionForGrads(src *Attention) *Attention {
	a := newAttentionShell(src.DModel, src.H)
	// shared read-only
	a.Wquery, a.Wkey, a.Wvalue = src.Wquery, src.Wkey, src.Wvalue
	a.Bquery, a.Bkey, a.Bvalue = src.Bquery, src.Bkey, src.Bvalue
	a.Woutput, a.Boutput = src.Woutput, src.Boutput
	return a
}

func cloneMLPForGrads(src *MLP) *MLP {
	mlp := newMLPShell(src.Inputs, src.Hiddens)
	mlp.Norm = src.Norm.CloneForGradsOnly()
	mlp.HiddenWeights = src.HiddenWeights // shared read-only
	mlp.HiddenBias = src.HiddenBias
	mlp.OutputWeights = src.OutputWeights
	mlp.OutputBias = src.OutputBias
	return mlp
}

// AccumulateGrads adds a clone's gradients into m's accumulators.
func (m *Model) AccumulateGrads(clone *Model) {
	dst, src := m.Params(), clone.Params()
	if len(dst) != len(src) {
		panic("transformer: clone parameter list mismatch")
	}
	for i := range dst {
		dst[i].Grad.Add(dst[i].Grad, src[i].Grad)
	}
}

// GradMatrices returns the gradient accumulators in parameter order.
func GradMatrices(ps []optimizations.Param) []*mat.Dense {
	out := make([]*mat.Dense, len(ps))
	for i, p := range ps {
		out[i] = p.Grad
	}
	return out
}
