package main

import (
	"fmt"
	"io"

	"github.com/manningwu07/ReverseAttention/IO"
	"github.com/manningwu07/ReverseAttention/transformer"
	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

// ProbeResult is the qualitative check on the identity matrix.
type ProbeResult struct {
	Input    *mat.Dense
	Output   *mat.Dense
	Rounded  *mat.Dense
	Expected *mat.Dense
	MAE      float64
	Match    bool // Rounded == Expected
}

// EvaluateProbe feeds identity(seqLen) through the model without recording
// gradients.
func EvaluateProbe(model *transformer.Model, seqLen int) ProbeResult {
	in := IO.Identity(seqLen)
	out := model.Predict(in)
	want := IO.ReverseRows(in)
	rounded := IO.Round(out)
	return ProbeResult{
		Input:    in,
		Output:   out,
		Rounded:  rounded,
		Expected: want,
		MAE:      utils.MeanAbsError([]*mat.Dense{out}, []*mat.Dense{want}),
		Match:    mat.Equal(rounded, want),
	}
}

func PrintProbe(w io.Writer, res ProbeResult) {
	fmt.Fprintln(w, "\nProbe results:")
	IO.PrintMatrix(w, "Input:", res.Input)
	IO.PrintMatrix(w, "Output:", res.Output)
	IO.PrintMatrix(w, "Output (rounded):", res.Rounded)
	IO.PrintMatrix(w, "Expected:", res.Expected)
	fmt.Fprintf(w, "\nProbe MAE: %.4f  rounded match: %v\n", res.MAE, res.Match)
}
