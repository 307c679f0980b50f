package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/manningwu07/ReverseAttention/IO"
	"github.com/manningwu07/ReverseAttention/params"
	"github.com/manningwu07/ReverseAttention/transformer"
	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

func smallConfig() params.TrainingConfig {
	cfg := params.DefaultConfig()
	cfg.Seed = 123
	cfg.BatchSize = 32
	cfg.Epochs = 300
	cfg.LR = 5e-3
	return cfg
}

func TestTrainingReducesLoss(t *testing.T) {
	cfg := smallConfig()
	src := utils.NewSource(cfg.Seed)
	model := transformer.NewModel(cfg, src)

	evalBatch := IO.GenerateBatch(64, cfg.SeqLen, utils.NewSource(999))
	evalTargets := IO.Targets(evalBatch)
	before := utils.MeanAbsError(model.ForwardBatch(evalBatch), evalTargets)

	var out bytes.Buffer
	res, err := NewTrainer(cfg, model, src, nil, &out).Train()
	if err != nil {
		t.Fatal(err)
	}
	after := utils.MeanAbsError(model.ForwardBatch(evalBatch), evalTargets)

	if after >= before {
		t.Fatalf("held-out MAE did not improve: before %.4f after %.4f", before, after)
	}
	if len(res.Losses) != cfg.Epochs/cfg.LogEvery {
		t.Fatalf("got %d logged losses, want %d", len(res.Losses), cfg.Epochs/cfg.LogEvery)
	}
	if !strings.Contains(out.String(), "Epoch 300/300 | Loss: ") {
		t.Fatalf("missing progress line in output:\n%s", out.String())
	}
	if strings.Count(out.String(), "\n") != 3 {
		t.Fatalf("want exactly 3 progress lines, got:\n%s", out.String())
	}
}

func TestStepUpdatesEveryParam(t *testing.T) {
	cfg := smallConfig()
	src := utils.NewSource(cfg.Seed)
	model := transformer.NewModel(cfg, src)

	before := make([]*mat.Dense, len(model.Params()))
	for i, p := range model.Params() {
		before[i] = mat.DenseCopyOf(p.Value)
	}
	NewTrainer(cfg, model, src, nil, &bytes.Buffer{}).Step()
	for i, p := range model.Params() {
		// softmax is shift invariant per row, so key biases get no gradient
		if strings.HasSuffix(p.Name, ".bk") {
			continue
		}
		if mat.Equal(before[i], p.Value) {
			t.Fatalf("%s was not updated", p.Name)
		}
	}
}

func TestWorkersMatchSequential(t *testing.T) {
	cfg := smallConfig()
	model := transformer.NewModel(cfg, utils.NewSource(cfg.Seed))
	batch := IO.GenerateBatch(cfg.SamplesPerBatch(), cfg.SeqLen, utils.NewSource(5))
	targets := IO.Targets(batch)

	seq := NewTrainer(cfg, model, utils.NewSource(1), nil, &bytes.Buffer{})
	lossSeq := seq.accumulateGrads(batch, targets)
	want := make([]*mat.Dense, len(model.Params()))
	for i, p := range model.Params() {
		want[i] = mat.DenseCopyOf(p.Grad)
	}

	par := cfg
	par.Workers = 3
	lossPar := NewTrainer(par, model, utils.NewSource(1), nil, &bytes.Buffer{}).accumulateGrads(batch, targets)

	if lossSeq != lossPar {
		t.Fatalf("loss %g (sequential) vs %g (3 workers)", lossSeq, lossPar)
	}
	for i, p := range model.Params() {
		if !mat.EqualApprox(want[i], p.Grad, 1e-12) {
			t.Fatalf("%s: worker grads differ from sequential", p.Name)
		}
	}
}

func TestGradClipBoundsNorm(t *testing.T) {
	cfg := smallConfig()
	cfg.GradClip = 1e-3
	model := transformer.NewModel(cfg, utils.NewSource(cfg.Seed))
	tr := NewTrainer(cfg, model, utils.NewSource(2), nil, &bytes.Buffer{})

	batch := IO.GenerateBatch(cfg.SamplesPerBatch(), cfg.SeqLen, utils.NewSource(3))
	tr.accumulateGrads(batch, IO.Targets(batch))
	grads := transformer.GradMatrices(model.Params())
	if utils.GlobalNorm(grads...) <= cfg.GradClip {
		t.Skip("gradient already below clip threshold")
	}
	utils.ClipGrads(cfg.GradClip, grads...)
	if n := utils.GlobalNorm(grads...); n > cfg.GradClip*(1+1e-9) {
		t.Fatalf("norm after clip %g > %g", n, cfg.GradClip)
	}
}

func TestEvaluateProbe(t *testing.T) {
	cfg := params.DefaultConfig()
	model := transformer.NewModel(cfg, utils.NewSource(7))
	res := EvaluateProbe(model, cfg.SeqLen)

	if !mat.Equal(res.Input, IO.Identity(cfg.SeqLen)) {
		t.Fatal("probe input is not the identity")
	}
	if r, c := res.Output.Dims(); r != cfg.SeqLen || c != cfg.DModel {
		t.Fatalf("probe output is %dx%d", r, c)
	}
	if !mat.Equal(res.Expected, IO.ReverseRows(IO.Identity(cfg.SeqLen))) {
		t.Fatal("expected output is not the reversed identity")
	}
	if res.Match != mat.Equal(res.Rounded, res.Expected) {
		t.Fatal("Match disagrees with the rounded comparison")
	}

	var out bytes.Buffer
	PrintProbe(&out, res)
	for _, s := range []string{"Input:", "Output:", "Output (rounded):", "Expected:", "Probe MAE:"} {
		if !strings.Contains(out.String(), s) {
			t.Fatalf("probe printout missing %q", s)
		}
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := params.DefaultConfig()
	cfg.DModel = 7
	if err := run(cfg); err == nil {
		t.Fatal("expected error for seq_len != d_model")
	}
}
