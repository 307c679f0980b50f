package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/manningwu07/ReverseAttention/params"
)

// chooseWorkers caps the requested gradient workers at the logical core count.
func chooseWorkers(preferred int) int {
	logical := cpuid.CPU.LogicalCores
	if logical <= 0 || preferred <= logical {
		return preferred
	}
	fmt.Printf("Warning: using %d workers instead of %d\n", logical, preferred)
	return logical
}

func printBanner(w io.Writer, runID string, cfg params.TrainingConfig) {
	var feats []string
	for _, f := range []cpuid.FeatureID{cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD} {
		if cpuid.CPU.Supports(f) {
			feats = append(feats, f.String())
		}
	}
	fmt.Fprintf(w, "Run %s\n", runID)
	fmt.Fprintf(w, "CPU: %s (%d cores, %d threads) [%s]\n",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, strings.Join(feats, " "))
	fmt.Fprintf(w, "seq_len=%d d_model=%d heads=%d batch=%d (%d samples) epochs=%d lr=%g wd=%g workers=%d\n",
		cfg.SeqLen, cfg.DModel, cfg.NumHeads, cfg.BatchSize, cfg.SamplesPerBatch(),
		cfg.Epochs, cfg.LR, cfg.WeightDecay, cfg.Workers)
}
