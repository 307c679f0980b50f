package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/manningwu07/ReverseAttention/IO"
	"github.com/manningwu07/ReverseAttention/params"
	"github.com/manningwu07/ReverseAttention/transformer"
	"github.com/manningwu07/ReverseAttention/utils"
)

func init() {
	c := &params.Config
	flag.IntVar(&c.Epochs, "epochs", c.Epochs, "training iterations")
	flag.IntVar(&c.BatchSize, "batch", c.BatchSize, "batch size (B - B/2 samples are drawn per step)")
	flag.Float64Var(&c.LR, "lr", c.LR, "AdamW learning rate")
	flag.Float64Var(&c.WeightDecay, "wd", c.WeightDecay, "AdamW weight decay")
	flag.Float64Var(&c.GradClip, "clip", c.GradClip, "global grad-norm clip (0 disables)")
	flag.Int64Var(&c.Seed, "seed", c.Seed, "random seed (0 = from clock)")
	flag.IntVar(&c.LogEvery, "log-every", c.LogEvery, "print loss every N iterations")
	flag.IntVar(&c.Workers, "workers", c.Workers, "gradient goroutines per batch")
	flag.StringVar(&c.LogCSV, "csv", c.LogCSV, "optional CSV loss log path")
	flag.BoolVar(&c.Debug, "debug", c.Debug, "periodic debug logs on stderr")
	flag.IntVar(&c.DebugEvery, "debug-every", c.DebugEvery, "debug log interval in steps")
}

func main() {
	flag.Parse()
	if err := run(params.Config); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cfg params.TrainingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Workers = chooseWorkers(cfg.Workers)

	runID := IO.NewRunID()
	printBanner(os.Stdout, runID, cfg)

	src := utils.NewSource(cfg.Seed)
	model := transformer.NewModel(cfg, src)

	trainLog, err := IO.OpenTrainingLog(cfg.LogCSV, runID)
	if err != nil {
		return err
	}
	res, err := NewTrainer(cfg, model, src, trainLog, os.Stdout).Train()
	if cerr := trainLog.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nTime taken to train: %s\n", res.Elapsed)

	PrintProbe(os.Stdout, EvaluateProbe(model, cfg.SeqLen))
	return nil
}
