package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Index is a list of integer handles.
type Index []int

// Selection is a sparse 0/1 matrix with one row per target handle and one
// column per source handle. A valid selection has at most one entry per row
// and per column, so it encodes a partial injection between two index spaces.
type Selection struct {
	M    *sparse.DOK
	csr  *sparse.CSR
	name string
}

func NewSelection(nTarget, nSource int, name string) (S *Selection) {
	return &Selection{
		M:    sparse.NewDOK(nTarget, nSource),
		name: name,
	}
}

func (s *Selection) Link(target, source int) { // Changes receiver
	if s.csr != nil {
		panic(fmt.Errorf("selection %q is frozen and cannot be changed", s.name))
	}
	s.M.Set(target, source, s.M.At(target, source)+1)
}

// Freeze compresses the selection to CSR form for the validation products.
func (s *Selection) Freeze() *Selection {
	if s.csr == nil {
		s.csr = s.M.ToCSR()
	}
	return s
}

// Fibers returns the number of sources linked to each target (row sums) and
// the number of targets reached by each source (column sums).
func (s *Selection) Fibers() (perTarget, perSource []float64) {
	var (
		nr, nc         = s.M.Dims()
		onesR, onesC   = make([]float64, nr), make([]float64, nc)
		rowSum, colSum mat.VecDense
	)
	s.Freeze()
	for i := range onesR {
		onesR[i] = 1
	}
	for j := range onesC {
		onesC[j] = 1
	}
	if nr == 0 || nc == 0 {
		return make([]float64, nr), make([]float64, nc)
	}
	rowSum.MulVec(s.csr, mat.NewVecDense(nc, onesC))
	colSum.MulVec(s.csr.T(), mat.NewVecDense(nr, onesR))
	perTarget = make([]float64, nr)
	perSource = make([]float64, nc)
	for i := range perTarget {
		perTarget[i] = rowSum.AtVec(i)
	}
	for j := range perSource {
		perSource[j] = colSum.AtVec(j)
	}
	return
}

// Injective reports the first target or source handle that breaks the
// one-entry-per-row/column rule, or (-1, -1) when the selection is valid.
func (s *Selection) Injective() (badTarget, badSource int) {
	perTarget, perSource := s.Fibers()
	badTarget, badSource = -1, -1
	for i, v := range perTarget {
		if v > 1 {
			badTarget = i
			break
		}
	}
	for j, v := range perSource {
		if v > 1 {
			badSource = j
			break
		}
	}
	return
}

// Uncovered lists the target handles that no source reaches.
func (s *Selection) Uncovered() (I Index) {
	perTarget, _ := s.Fibers()
	for i, v := range perTarget {
		if v == 0 {
			I = append(I, i)
		}
	}
	return
}
