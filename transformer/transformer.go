package transformer

import (
	"fmt"
	"math/rand/v2"

	"github.com/manningwu07/ReverseAttention/optimizations"
	"github.com/manningwu07/ReverseAttention/params"
	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

// Model maps an (L x D) sample to an (L x D) output:
//
//	P = X + Pos
//	R = P + Attn(P)
//	Y = MLP(R)
//
// Samples are row-per-position; internally every module works on the
// transposed (D x L) layout, one column per position.
type Model struct {
	SeqLen, DModel int

	PosEmb *mat.Dense // (L x D), broadcast over the batch
	GPos   *mat.Dense

	Attn *Attention
	Mlp  *MLP

	params []optimizations.Param
}

// NewModel builds the model; every random draw comes from src.
func NewModel(cfg params.TrainingConfig, src rand.Source) *Model {
	if cfg.SeqLen != cfg.DModel {
		panic("transformer: seq_len must equal d_model")
	}
	m := &Model{
		SeqLen: cfg.SeqLen,
		DModel: cfg.DModel,
		PosEmb: mat.NewDense(cfg.SeqLen, cfg.DModel, utils.NormalArray(cfg.SeqLen*cfg.DModel, src)),
		GPos:   mat.NewDense(cfg.SeqLen, cfg.DModel, nil),
		Attn:   NewAttention(cfg.DModel, cfg.NumHeads, src),
		Mlp:    NewMLP(cfg.DModel, cfg.DModel*cfg.FFMult, cfg.LNEps, src),
	}
	m.collectParams()
	return m
}

func (m *Model) collectParams() {
	ps := []optimizations.Param{{Name: "pos", Value: m.PosEmb, Grad: m.GPos}}
	ps = append(ps, m.Attn.Params("attn")...)
	m.params = append(ps, m.Mlp.Params("proj")...)
}

// Params lists every trainable matrix in a fixed order.
func (m *Model) Params() []optimizations.Param {
	return m.params
}

func (m *Model) ZeroGrad() {
	for _, p := range m.params {
		p.Grad.Zero()
	}
}

func (m *Model) checkSample(x *mat.Dense) {
	if r, c := x.Dims(); r != m.SeqLen || c != m.DModel {
		panic(fmt.Sprintf("transformer: sample is %dx%d, want %dx%d", r, c, m.SeqLen, m.DModel))
	}
}

// Forward runs one sample and caches activations for Backward.
func (m *Model) Forward(x *mat.Dense) *mat.Dense {
	m.checkSample(x)
	p := utils.ToDense(utils.Add(x, m.PosEmb).T())
	r := utils.ToDense(utils.Add(p, m.Attn.Forward(p)))
	y := m.Mlp.Forward(r)
	return mat.DenseCopyOf(y.T())
}

// Predict runs one sample without recording anything for Backward.
func (m *Model) Predict(x *mat.Dense) *mat.Dense {
	m.checkSample(x)
	p := utils.ToDense(utils.Add(x, m.PosEmb).T())
	r := utils.Add(p, m.Attn.Infer(p))
	y := m.Mlp.Infer(utils.ToDense(r))
	return mat.DenseCopyOf(y.T())
}

// ForwardBatch maps a (B, L, D) batch to a (B, L, D) batch.
func (m *Model) ForwardBatch(batch []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(batch))
	for i, x := range batch {
		out[i] = m.Predict(x)
	}
	return out
}

// Backward takes dL/dY for the sample seen by the last Forward and adds
// the parameter gradients into the accumulators.
func (m *Model) Backward(dY *mat.Dense) {
	m.checkSample(dY)
	dR := m.Mlp.BackwardGradsOnly(utils.ToDense(dY.T()))
	// R = P + Attn(P)
	dP := utils.Add(dR, m.Attn.BackwardGradsOnly(dR))
	m.GPos.Add(m.GPos, dP.T())
}
