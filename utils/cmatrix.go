package utils

import (
	"bytes"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// NewCMatrix allocates a dense complex matrix. When data is supplied it is used
// directly as row-major storage, otherwise the matrix is zeroed.
func NewCMatrix(nr, nc int, dataO ...[]complex128) (R *mat.CDense) {
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewCMatrix nr,nc = %v,%v, len(data[0]) = %v", nr, nc, len(dataO[0]))
			panic(err)
		}
		return mat.NewCDense(nr, nc, dataO[0])
	}
	return mat.NewCDense(nr, nc, make([]complex128, nr*nc))
}

// NewCMatrixFromReal promotes a row-major real matrix to complex storage.
func NewCMatrixFromReal(nr, nc int, data []float64) (R *mat.CDense) {
	if len(data) != nr*nc {
		err := fmt.Errorf("mismatch in allocation: NewCMatrixFromReal nr,nc = %v,%v, len(data) = %v", nr, nc, len(data))
		panic(err)
	}
	cd := make([]complex128, nr*nc)
	for i, val := range data {
		cd[i] = complex(val, 0)
	}
	return mat.NewCDense(nr, nc, cd)
}

func NewCIdentity(n int) (R *mat.CDense) {
	R = NewCMatrix(n, n)
	for i := 0; i < n; i++ {
		R.Set(i, i, 1)
	}
	return
}

// CData returns the row-major backing slice of a tightly packed matrix.
func CData(A *mat.CDense) []complex128 {
	var (
		raw = A.RawCMatrix()
	)
	if raw.Stride != raw.Cols {
		panic(fmt.Errorf("matrix storage is not contiguous: stride %d, cols %d", raw.Stride, raw.Cols))
	}
	return raw.Data[:raw.Rows*raw.Cols]
}

func CCopy(A *mat.CDense) (R *mat.CDense) {
	var (
		nr, nc = A.Dims()
	)
	R = NewCMatrix(nr, nc)
	copy(CData(R), CData(A))
	return
}

// CMul returns A*B using the complex BLAS.
func CMul(A, B *mat.CDense) (R *mat.CDense) {
	var (
		nrA, ncA = A.Dims()
		nrB, ncB = B.Dims()
	)
	if ncA != nrB {
		panic(fmt.Errorf("number of rows in right matrix should be %d, is %d", ncA, nrB))
	}
	R = NewCMatrix(nrA, ncB)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, A.RawCMatrix(), B.RawCMatrix(), 0, R.RawCMatrix())
	return
}

// CConjugate returns U X U^†. U may be rectangular (a projector), in which
// case the result has the row dimension of U.
func CConjugate(U, X *mat.CDense) (R *mat.CDense) {
	var (
		nrU, ncU = U.Dims()
		nrX, ncX = X.Dims()
	)
	if ncU != nrX || nrX != ncX {
		panic(fmt.Errorf("conjugation dimension mismatch: U is %dx%d, X is %dx%d", nrU, ncU, nrX, ncX))
	}
	scratch := NewCMatrix(nrU, ncX)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, U.RawCMatrix(), X.RawCMatrix(), 0, scratch.RawCMatrix())
	R = NewCMatrix(nrU, nrU)
	cblas128.Gemm(blas.NoTrans, blas.ConjTrans, 1, scratch.RawCMatrix(), U.RawCMatrix(), 0, R.RawCMatrix())
	return
}

// CAdjoint returns the conjugate transpose of A.
func CAdjoint(A *mat.CDense) (R *mat.CDense) {
	var (
		nr, nc = A.Dims()
	)
	R = NewCMatrix(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.Set(j, i, cmplx.Conj(A.At(i, j)))
		}
	}
	return
}

// CNorm1 is the maximum absolute column sum.
func CNorm1(A *mat.CDense) (norm float64) {
	var (
		nr, nc = A.Dims()
	)
	for j := 0; j < nc; j++ {
		var sum float64
		for i := 0; i < nr; i++ {
			sum += cmplx.Abs(A.At(i, j))
		}
		norm = math.Max(norm, sum)
	}
	return
}

func CMaxAbsDiff(A, B *mat.CDense) (diff float64) {
	var (
		a, b = CData(A), CData(B)
	)
	if len(a) != len(b) {
		panic(fmt.Errorf("length mismatch: %d != %d", len(a), len(b)))
	}
	for i := range a {
		diff = math.Max(diff, cmplx.Abs(a[i]-b[i]))
	}
	return
}

// CHermiticityError returns max|A - A^†|.
func CHermiticityError(A *mat.CDense) (herr float64) {
	var (
		nr, nc = A.Dims()
	)
	if nr != nc {
		return math.Inf(1)
	}
	for i := 0; i < nr; i++ {
		for j := i; j < nc; j++ {
			herr = math.Max(herr, cmplx.Abs(A.At(i, j)-cmplx.Conj(A.At(j, i))))
		}
	}
	return
}

// CUnitarityError returns max|U U^† - I|.
func CUnitarityError(U *mat.CDense) float64 {
	var (
		nr, _ = U.Dims()
	)
	R := NewCMatrix(nr, nr)
	cblas128.Gemm(blas.NoTrans, blas.ConjTrans, 1, U.RawCMatrix(), U.RawCMatrix(), 0, R.RawCMatrix())
	return CMaxAbsDiff(R, NewCIdentity(nr))
}

func CIsDiagonal(A *mat.CDense, tol float64) bool {
	var (
		nr, nc = A.Dims()
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			if i != j && cmplx.Abs(A.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

func CPrint(A *mat.CDense, label string) string {
	var (
		nr, nc = A.Dims()
		buf    = bytes.Buffer{}
	)
	buf.WriteString(fmt.Sprintf("%s = [%dx%d]\n", label, nr, nc))
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			val := A.At(i, j)
			buf.WriteString(fmt.Sprintf("(%8.5f%+8.5fi) ", real(val), imag(val)))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
