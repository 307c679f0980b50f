package IO

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PrintMatrix writes a titled matrix using gonum's formatter.
func PrintMatrix(w io.Writer, title string, m mat.Matrix) {
	fmt.Fprintf(w, "\n%s\n", title)
	fa := mat.Formatted(m, mat.Prefix(" "), mat.Squeeze())
	fmt.Fprintf(w, " %v\n", fa)
}

// Round rounds every element to the nearest integer (half away from zero).
func Round(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := math.Round(m.At(i, j))
			if v == 0 {
				v = 0 // drop the sign of -0
			}
			out.Set(i, j, v)
		}
	}
	return out
}
