package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/manningwu07/ReverseAttention/IO"
	"github.com/manningwu07/ReverseAttention/optimizations"
	"github.com/manningwu07/ReverseAttention/params"
	"github.com/manningwu07/ReverseAttention/transformer"
	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

type Trainer struct {
	cfg   params.TrainingConfig
	model *transformer.Model
	opt   *optimizations.AdamW
	src   rand.Source
	log   *IO.TrainingLog
	out   io.Writer

	// one private clone per worker when cfg.Workers > 1
	clones []*transformer.Model
}

type TrainResult struct {
	Losses    []float64 // one entry per LogEvery iterations
	FinalLoss float64
	Elapsed   time.Duration
}

func NewTrainer(cfg params.TrainingConfig, model *transformer.Model, src rand.Source,
	log *IO.TrainingLog, out io.Writer) *Trainer {
	tr := &Trainer{
		cfg:   cfg,
		model: model,
		opt:   optimizations.NewAdamW(cfg),
		src:   src,
		log:   log,
		out:   out,
	}
	if cfg.Workers > 1 {
		tr.clones = make([]*transformer.Model, cfg.Workers)
		for i := range tr.clones {
			tr.clones[i] = model.CloneForGradsOnly()
		}
	}
	return tr
}

// Train runs the full configured number of iterations; there is no
// early stopping.
func (tr *Trainer) Train() (TrainResult, error) {
	var res TrainResult
	start := time.Now()
	for e := 1; e <= tr.cfg.Epochs; e++ {
		loss := tr.Step()
		res.FinalLoss = loss
		if e%tr.cfg.LogEvery == 0 {
			fmt.Fprintf(tr.out, "Epoch %d/%d | Loss: %.4f\n", e, tr.cfg.Epochs, loss)
			res.Losses = append(res.Losses, loss)
			if err := tr.log.Record(e, loss); err != nil {
				return res, err
			}
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// Step draws a fresh batch, computes the loss and gradients, and applies
// one AdamW update. It returns the batch loss before the update.
func (tr *Trainer) Step() float64 {
	batch := IO.GenerateBatch(tr.cfg.SamplesPerBatch(), tr.cfg.SeqLen, tr.src)
	targets := IO.Targets(batch)

	loss := tr.accumulateGrads(batch, targets)

	ps := tr.model.Params()
	scale := 1.0
	if tr.cfg.GradClip > 0 || tr.cfg.Debug {
		grads := transformer.GradMatrices(ps)
		if tr.cfg.Debug && (tr.opt.T+1)%tr.cfg.DebugEvery == 0 {
			tr.debugStep(utils.GlobalNorm(grads...))
		}
		scale = utils.ClipGrads(tr.cfg.GradClip, grads...)
	}
	if scale < 1.0 && tr.cfg.Debug && (tr.opt.T+1)%tr.cfg.DebugEvery == 0 {
		utils.Debugf("clipped grads by %.4f at step %d", scale, tr.opt.T+1)
	}
	tr.opt.Step(ps)
	return loss
}

// accumulateGrads leaves d(loss)/d(param) in the model's accumulators.
func (tr *Trainer) accumulateGrads(batch, targets []*mat.Dense) float64 {
	tr.model.ZeroGrad()
	outs := make([]*mat.Dense, len(batch))
	n := len(batch) * tr.cfg.SeqLen * tr.cfg.DModel

	if len(tr.clones) == 0 {
		forwardBackward(tr.model, batch, targets, outs, n)
		return utils.MeanAbsError(outs, targets)
	}

	workers := len(tr.clones)
	chunk := (len(batch) + workers - 1) / workers
	var wg sync.WaitGroup
	for w, clone := range tr.clones {
		lo := w * chunk
		hi := min(lo+chunk, len(batch))
		clone.ZeroGrad()
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(c *transformer.Model, lo, hi int) {
			defer wg.Done()
			forwardBackward(c, batch[lo:hi], targets[lo:hi], outs[lo:hi], n)
		}(clone, lo, hi)
	}
	wg.Wait()
	for _, clone := range tr.clones {
		tr.model.AccumulateGrads(clone)
	}
	return utils.MeanAbsError(outs, targets)
}

// forwardBackward runs each sample forward then immediately backward,
// since the module caches only hold one sample.
func forwardBackward(m *transformer.Model, batch, targets, outs []*mat.Dense, n int) {
	for i, x := range batch {
		y := m.Forward(x)
		outs[i] = y
		m.Backward(utils.MeanAbsErrorGrad(y, targets[i], n))
	}
}

func (tr *Trainer) debugStep(gradNorm float64) {
	attn := tr.model.Attn
	if len(tr.clones) > 0 {
		attn = tr.clones[0].Attn
	}
	utils.Debugf("step %d: grad norm %.6g, pos norm %.6g, proj hidden norm %.6g",
		tr.opt.T+1, gradNorm,
		utils.MatrixNorm(tr.model.PosEmb),
		utils.MatrixNorm(tr.model.Mlp.HiddenWeights))
	if mn, mx, ok := attn.RowSumRange(); ok {
		utils.Debugf("attn: head0 A row-sum min/max = %.4f/%.4f", mn, mx)
	}
}
