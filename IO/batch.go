package IO

import (
	"math/rand/v2"

	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

// GenerateBatch draws n fresh (seqLen x seqLen) standard-normal samples.
func GenerateBatch(n, seqLen int, src rand.Source) []*mat.Dense {
	batch := make([]*mat.Dense, n)
	for i := range batch {
		batch[i] = mat.NewDense(seqLen, seqLen, utils.NormalArray(seqLen*seqLen, src))
	}
	return batch
}

// ReverseRows returns a copy of m with row i moved to row r-1-i.
func ReverseRows(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(r-1-i, j, m.At(i, j))
		}
	}
	return out
}

// Targets row-reverses every sample of a batch.
func Targets(batch []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(batch))
	for i, x := range batch {
		out[i] = ReverseRows(x)
	}
	return out
}

// Identity returns the n x n identity matrix used as the evaluation probe.
func Identity(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}
