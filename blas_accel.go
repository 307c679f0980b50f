//go:build netlib

package main

// Build with -tags netlib and CGO_LDFLAGS pointing at a CBLAS
// (OpenBLAS, Accelerate) to route gonum products through native BLAS.

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

func init() {
	blas64.Use(netlib.Implementation{})
}
