package transformer

import (
	"math/rand/v2"

	"github.com/manningwu07/ReverseAttention/optimizations"
	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

// MLP is the projection head: LayerNorm -> Linear(d, h) -> ReLU -> Linear(h, d).
type MLP struct {
	Inputs, Hiddens, Outputs  int
	Norm                      *optimizations.LayerNorm
	HiddenWeights, HiddenBias *mat.Dense
	OutputWeights, OutputBias *mat.Dense

	// gradient accumulators
	GHiddenW, GHiddenB *mat.Dense
	GOutputW, GOutputB *mat.Dense

	// cache for backprop
	normed, hiddenPreAct, hiddenOutputs *mat.Dense
}

func NewMLP(dModel, hidden int, lnEps float64, src rand.Source) *MLP {
	mlp := newMLPShell(dModel, hidden)
	mlp.Norm = optimizations.NewLayerNorm(dModel, lnEps)
	mlp.HiddenWeights = mat.NewDense(hidden, dModel, utils.RandomArray(hidden*dModel, float64(dModel), src))
	mlp.HiddenBias = mat.NewDense(hidden, 1, utils.RandomArray(hidden, float64(dModel), src))
	mlp.OutputWeights = mat.NewDense(dModel, hidden, utils.RandomArray(dModel*hidden, float64(hidden), src))
	mlp.OutputBias = mat.NewDense(dModel, 1, utils.RandomArray(dModel, float64(hidden), src))
	return mlp
}

func newMLPShell(dModel, hidden int) *MLP {
	return &MLP{
		Inputs:   dModel,
		Hiddens:  hidden,
		Outputs:  dModel,
		GHiddenW: mat.NewDense(hidden, dModel, nil),
		GHiddenB: mat.NewDense(hidden, 1, nil),
		GOutputW: mat.NewDense(dModel, hidden, nil),
		GOutputB: mat.NewDense(dModel, 1, nil),
	}
}

func (mlp *MLP) Forward(X *mat.Dense) *mat.Dense {
	n := mlp.Norm.Forward(X)
	pre, hid, out := mlp.project(n)
	mlp.normed, mlp.hiddenPreAct, mlp.hiddenOutputs = n, pre, hid
	return out
}

// Infer is Forward without caching.
func (mlp *MLP) Infer(X *mat.Dense) *mat.Dense {
	_, _, out := mlp.project(mlp.Norm.Infer(X))
	return out
}

func (mlp *MLP) project(n *mat.Dense) (pre, hid, out *mat.Dense) {
	pre = utils.AddBias(utils.ToDense(utils.Dot(mlp.HiddenWeights, n)), mlp.HiddenBias) // (h x T)
	hid = utils.ToDense(utils.Apply(utils.ReluApply, pre))
	out = utils.AddBias(utils.ToDense(utils.Dot(mlp.OutputWeights, hid)), mlp.OutputBias) // (d x T)
	return pre, hid, out
}

// BackwardGradsOnly accumulates parameter grads and returns dX.
func (mlp *MLP) BackwardGradsOnly(grad *mat.Dense) *mat.Dense {
	if mlp.hiddenOutputs == nil {
		panic("mlp: BackwardGradsOnly before Forward")
	}
	mlp.GOutputW.Add(mlp.GOutputW, utils.Dot(grad, mlp.hiddenOutputs.T()))
	mlp.GOutputB.Add(mlp.GOutputB, utils.SumCols(grad))

	hiddenGradOut := utils.Dot(mlp.OutputWeights.T(), grad)
	hiddenErrors := utils.ToDense(utils.Multiply(hiddenGradOut, utils.ReluPrime(mlp.hiddenPreAct)))

	mlp.GHiddenW.Add(mlp.GHiddenW, utils.Dot(hiddenErrors, mlp.normed.T()))
	mlp.GHiddenB.Add(mlp.GHiddenB, utils.SumCols(hiddenErrors))

	dNormed := utils.ToDense(utils.Dot(mlp.HiddenWeights.T(), hiddenErrors))
	return mlp.Norm.BackwardGradsOnly(dNormed)
}

func (mlp *MLP) Params(prefix string) []optimizations.Param {
	return append(mlp.Norm.Params(prefix+".norm"),
		optimizations.Param{Name: prefix + ".hidden.w", Value: mlp.HiddenWeights, Grad: mlp.GHiddenW},
		optimizations.Param{Name: prefix + ".hidden.b", Value: mlp.HiddenBias, Grad: mlp.GHiddenB},
		optimizations.Param{Name: prefix + ".output.w", Value: mlp.OutputWeights, Grad: mlp.GOutputW},
		optimizations.Param{Name: prefix + ".output.b", Value: mlp.OutputBias, Grad: mlp.GOutputB},
	)
}
