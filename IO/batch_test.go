package IO

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/manningwu07/ReverseAttention/utils"
	"gonum.org/v1/gonum/mat"
)

func TestReverseRowsInvolution(t *testing.T) {
	for _, n := range []int{1, 2, 5, 6} {
		m := mat.NewDense(n, n, utils.NormalArray(n*n, utils.NewSource(int64(n))))
		r := ReverseRows(m)
		if n > 1 && mat.Equal(r, m) {
			t.Fatalf("n=%d: reversal left a random matrix unchanged", n)
		}
		if !mat.Equal(ReverseRows(r), m) {
			t.Fatalf("n=%d: reversing twice did not restore the matrix", n)
		}
	}
}

func TestReverseRowsMovesRows(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	want := mat.NewDense(3, 2, []float64{5, 6, 3, 4, 1, 2})
	if got := ReverseRows(m); !mat.Equal(got, want) {
		t.Fatalf("got %v", mat.Formatted(got))
	}
}

func TestIdentityProbeExpected(t *testing.T) {
	want := mat.NewDense(6, 6, []float64{
		0, 0, 0, 0, 0, 1,
		0, 0, 0, 0, 1, 0,
		0, 0, 0, 1, 0, 0,
		0, 0, 1, 0, 0, 0,
		0, 1, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0,
	})
	if got := ReverseRows(Identity(6)); !mat.Equal(got, want) {
		t.Fatalf("expected probe output:\n%v", mat.Formatted(got))
	}
}

func TestGenerateBatch(t *testing.T) {
	a := GenerateBatch(64, 6, utils.NewSource(9))
	b := GenerateBatch(64, 6, utils.NewSource(9))
	if len(a) != 64 {
		t.Fatalf("got %d samples", len(a))
	}
	for i := range a {
		if r, c := a[i].Dims(); r != 6 || c != 6 {
			t.Fatalf("sample %d is %dx%d", i, r, c)
		}
		if !mat.Equal(a[i], b[i]) {
			t.Fatalf("sample %d differs for the same seed", i)
		}
	}
	if mat.Equal(a[0], a[1]) {
		t.Fatal("consecutive samples are identical")
	}

	targets := Targets(a)
	for i := range a {
		if !mat.Equal(targets[i], ReverseRows(a[i])) {
			t.Fatalf("target %d is not the reversed sample", i)
		}
	}
}

func TestRoundDropsNegativeZero(t *testing.T) {
	m := mat.NewDense(1, 4, []float64{-0.2, 0.6, -1.5, 2.49})
	want := mat.NewDense(1, 4, []float64{0, 1, -2, 2})
	got := Round(m)
	if !mat.Equal(got, want) {
		t.Fatalf("got %v", mat.Formatted(got))
	}
	var buf bytes.Buffer
	PrintMatrix(&buf, "Rounded:", got)
	if strings.Contains(buf.String(), "-0") {
		t.Fatalf("printed a negative zero:\n%s", buf.String())
	}
}

func TestTrainingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	l, err := OpenTrainingLog(path, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record(100, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(200, 0.25); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "run_id" || rows[2][0] != "run-1" || rows[2][1] != "200" || rows[2][2] != "0.250000" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestTrainingLogDisabled(t *testing.T) {
	l, err := OpenTrainingLog("", NewRunID())
	if err != nil || l != nil {
		t.Fatalf("empty path: got %v, %v", l, err)
	}
	if err := l.Record(1, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenTrainingLogBadPath(t *testing.T) {
	_, err := OpenTrainingLog(filepath.Join(t.TempDir(), "missing", "log.csv"), "x")
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
