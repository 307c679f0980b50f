package params

import (
	"github.com/pkg/errors"
)

type TrainingConfig struct {
	// Model shape
	SeqLen   int // rows per sample (sequence length)
	DModel   int // model width; must equal SeqLen
	NumHeads int // attention heads
	FFMult   int // projection expansion factor

	// Optimization
	BatchSize   int     // configured batch size; B - B/2 samples are drawn
	Epochs      int     // training iterations
	LR          float64 // AdamW learning rate
	WeightDecay float64 // decoupled weight decay
	AdamBeta1   float64 // default 0.9
	AdamBeta2   float64 // default 0.999
	AdamEps     float64 // default 1e-8
	LNEps       float64 // LayerNorm epsilon
	GradClip    float64 // <=0 disables

	// Reporting
	LogEvery   int    // print loss every N iterations
	LogCSV     string // optional CSV loss log, "" disables
	Debug      bool   // enable periodic debug logs
	DebugEvery int    // print every N optimizer steps

	Workers int   // gradient goroutines per batch
	Seed    int64 // 0 seeds from the clock
}

func DefaultConfig() TrainingConfig {
	return TrainingConfig{
		SeqLen:   6,
		DModel:   6,
		NumHeads: 2,
		FFMult:   2,

		BatchSize:   128,
		Epochs:      50_000,
		LR:          1e-3,
		WeightDecay: 1e-5,
		AdamBeta1:   0.9,
		AdamBeta2:   0.999,
		AdamEps:     1e-8,
		LNEps:       1e-5,
		GradClip:    0,

		LogEvery:   100,
		Debug:      false,
		DebugEvery: 1000,

		Workers: 1,
		Seed:    0,
	}
}

// Config is the run-wide configuration. main overrides it from flags
// before the model is built.
var Config = DefaultConfig()

// SamplesPerBatch is the number of samples actually drawn per iteration.
func (c TrainingConfig) SamplesPerBatch() int {
	return c.BatchSize - c.BatchSize/2
}

// HeadDim is the per-head feature width.
func (c TrainingConfig) HeadDim() int {
	return c.DModel / c.NumHeads
}

func (c TrainingConfig) Validate() error {
	switch {
	case c.SeqLen <= 0 || c.DModel <= 0:
		return errors.Errorf("params: seq_len and d_model must be positive (got %d, %d)", c.SeqLen, c.DModel)
	case c.SeqLen != c.DModel:
		return errors.Errorf("params: seq_len (%d) must equal d_model (%d)", c.SeqLen, c.DModel)
	case c.NumHeads <= 0 || c.DModel%c.NumHeads != 0:
		return errors.Errorf("params: d_model %d not divisible by %d heads", c.DModel, c.NumHeads)
	case c.FFMult <= 0:
		return errors.Errorf("params: ff multiplier must be positive (got %d)", c.FFMult)
	case c.SamplesPerBatch() <= 0:
		return errors.Errorf("params: batch size %d yields no samples", c.BatchSize)
	case c.Epochs < 0:
		return errors.Errorf("params: epochs must be >= 0 (got %d)", c.Epochs)
	case c.LR <= 0:
		return errors.Errorf("params: learning rate must be positive (got %g)", c.LR)
	case c.WeightDecay < 0:
		return errors.Errorf("params: weight decay must be >= 0 (got %g)", c.WeightDecay)
	case c.AdamBeta1 < 0 || c.AdamBeta1 >= 1 || c.AdamBeta2 < 0 || c.AdamBeta2 >= 1:
		return errors.Errorf("params: adam betas must be in [0,1) (got %g, %g)", c.AdamBeta1, c.AdamBeta2)
	case c.LogEvery <= 0:
		return errors.Errorf("params: log interval must be positive (got %d)", c.LogEvery)
	case c.Workers <= 0:
		return errors.Errorf("params: workers must be positive (got %d)", c.Workers)
	case c.Debug && c.DebugEvery <= 0:
		return errors.Errorf("params: debug interval must be positive (got %d)", c.DebugEvery)
	}
	return nil
}
