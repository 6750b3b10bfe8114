package utils

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// CLUP holds an in-place LU decomposition with partial pivoting of a square
// complex matrix, P*A = L*U. L-I and U share the storage of LU.
type CLUP struct {
	LU     *mat.CDense
	P      []int   // Permutation, created during decomposition, otherwise nil
	Pcount int     // count of pivots, used in determining sign of determinant
	norm1  float64 // 1-norm of the original matrix, for condition estimates
	tol    float64 // pivots smaller than tol are treated as singular
}

func NewCLUP(A *mat.CDense) (lup *CLUP) {
	lup = &CLUP{
		LU:  CCopy(A),
		tol: 1.e-300,
	}
	lup.norm1 = CNorm1(A)
	return
}

func (lup *CLUP) Decompose() (err error) {
	/*
	   Doolittle factorization with row pivoting, following the block LUP used
	   for the real block matrices, specialized to complex scalars.
	       P * [A] = L * U
	*/
	var (
		imax       int
		absA, maxA float64
		N, nc      = lup.LU.Dims()
		A          = lup.LU
	)
	if N != nc {
		err = fmt.Errorf("matrix must be square, is %dx%d", N, nc)
		return
	}
	if len(lup.P) != 0 {
		err = fmt.Errorf("Decompose already called on this matrix, which has overwritten it")
		return
	}
	lup.P = make([]int, N)
	for i := range lup.P {
		lup.P[i] = i
	}
	lup.Pcount = N
	for i := 0; i < N; i++ {
		maxA = 0.
		imax = i
		for k := i; k < N; k++ {
			absA = cmplx.Abs(A.At(k, i))
			if absA > maxA {
				maxA = absA
				imax = k
			}
		}
		if maxA < lup.tol {
			err = fmt.Errorf("matrix is degenerate with tolerance %8.5e", lup.tol)
			return
		}
		if imax != i {
			lup.P[i], lup.P[imax] = lup.P[imax], lup.P[i]
			for j := 0; j < N; j++ {
				vi, vm := A.At(i, j), A.At(imax, j)
				A.Set(i, j, vm)
				A.Set(imax, j, vi)
			}
			lup.Pcount++
		}
		pivot := A.At(i, i)
		for j := i + 1; j < N; j++ {
			lji := A.At(j, i) / pivot
			A.Set(j, i, lji)
			for k := i + 1; k < N; k++ {
				A.Set(j, k, A.At(j, k)-lji*A.At(i, k))
			}
		}
	}
	return
}

func (lup *CLUP) Invert() (R *mat.CDense, err error) {
	var (
		N, _ = lup.LU.Dims()
		P    = lup.P
		A    = lup.LU
	)
	if len(P) == 0 {
		err = fmt.Errorf("uninitialized - call Decompose first")
		return
	}
	R = NewCMatrix(N, N)
	for j := 0; j < N; j++ {
		for i := 0; i < N; i++ {
			var val complex128
			if P[i] == j {
				val = 1
			}
			for k := 0; k < i; k++ {
				val -= A.At(i, k) * R.At(k, j)
			}
			R.Set(i, j, val)
		}
		for i := N - 1; i >= 0; i-- {
			val := R.At(i, j)
			for k := i + 1; k < N; k++ {
				val -= A.At(i, k) * R.At(k, j)
			}
			R.Set(i, j, val/A.At(i, i))
		}
	}
	return
}

func (lup *CLUP) Determinant() (det complex128, err error) {
	var (
		N, _ = lup.LU.Dims()
	)
	if len(lup.P) == 0 {
		err = fmt.Errorf("uninitialized - call Decompose first")
		return
	}
	det = 1
	for i := 0; i < N; i++ {
		det *= lup.LU.At(i, i)
	}
	if (lup.Pcount-N)%2 != 0 {
		det = -det
	}
	return
}

// Condition1 returns the 1-norm condition number given the computed inverse.
func (lup *CLUP) Condition1(Ainv *mat.CDense) float64 {
	return lup.norm1 * CNorm1(Ainv)
}

// CInverse inverts A and reports its 1-norm condition number.
func CInverse(A *mat.CDense) (R *mat.CDense, cond float64, err error) {
	lup := NewCLUP(A)
	if err = lup.Decompose(); err != nil {
		return
	}
	if R, err = lup.Invert(); err != nil {
		return
	}
	cond = lup.Condition1(R)
	return
}
