package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLUP(t *testing.T) {
	// [Real]: Test LU decomposition, determinant and inverse
	{
		/*
				A = 1 2 3 4
					4 1 2 3
					3 4 1 2
					2 3 4 1
				Known solutions:
				    det(A) = -160
				Ainv =
			   -0.225  0.275  0.025  0.025
			    0.025 -0.225  0.275  0.025
			    0.025  0.025 -0.225  0.275
			    0.275  0.025  0.025 -0.225
		*/
		A := NewCMatrixFromReal(4, 4, []float64{
			1, 2, 3, 4,
			4, 1, 2, 3,
			3, 4, 1, 2,
			2, 3, 4, 1,
		})
		lup := NewCLUP(A)
		_, err := lup.Invert()
		assert.NotNil(t, err)
		require.Nil(t, lup.Decompose())
		// Calling Decompose again is an error
		assert.NotNil(t, lup.Decompose())
		det, err := lup.Determinant()
		require.Nil(t, err)
		assert.InDelta(t, -160, real(det), 1.e-10)
		assert.InDelta(t, 0, imag(det), 1.e-10)
		Ainv, err := lup.Invert()
		require.Nil(t, err)
		Binv := []float64{
			-0.225, 0.275, 0.025, 0.025,
			0.025, -0.225, 0.275, 0.025,
			0.025, 0.025, -0.225, 0.275,
			0.275, 0.025, 0.025, -0.225,
		}
		var ii int
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				assert.InDeltaf(t, Binv[ii], real(Ainv.At(i, j)), 1.e-12, "Ainv[%d,%d]", i, j)
				ii++
			}
		}
		// cond_1 = ||A||_1 ||Ainv||_1 = 10 * 0.55
		assert.InDelta(t, 5.5, lup.Condition1(Ainv), 1.e-10)
	}
	// [Complex]: A * Ainv = I
	{
		A := NewCMatrix(3, 3, []complex128{
			1 + 1i, 2, 0.5i,
			-1, 3 - 2i, 1,
			0.25, 1i, 2 + 0.5i,
		})
		Ainv, cond, err := CInverse(A)
		require.Nil(t, err)
		assert.Greater(t, cond, 1.)
		assert.InDelta(t, 0, CMaxAbsDiff(CMul(A, Ainv), NewCIdentity(3)), 1.e-12)
		assert.InDelta(t, 0, CMaxAbsDiff(CMul(Ainv, A), NewCIdentity(3)), 1.e-12)
	}
	// [Singular]: zero pivot is reported, not a panic
	{
		A := NewCMatrix(2, 2, []complex128{1, 2, 2, 4})
		_, _, err := CInverse(A)
		assert.NotNil(t, err)
	}
	// [Ill-conditioned]: the condition number blows up
	{
		eps := 1.e-14
		A := NewCMatrixFromReal(2, 2, []float64{1, 1, 1, 1 + eps})
		_, cond, err := CInverse(A)
		require.Nil(t, err)
		assert.Greater(t, cond, 1.e13)
		assert.False(t, math.IsNaN(cond))
	}
}

func TestCMatrix(t *testing.T) {
	s := 1 / math.Sqrt2
	U := NewCMatrixFromReal(2, 2, []float64{s, s, s, -s})
	assert.InDelta(t, 0, CUnitarityError(U), 1.e-15)
	X := NewCMatrix(2, 2, []complex128{0, 1 - 2i, 1 + 2i, 3})
	assert.InDelta(t, 0, CHermiticityError(X), 1.e-15)
	Y := CConjugate(U, X)
	assert.InDelta(t, 0, CHermiticityError(Y), 1.e-14)
	// Conjugating back with U^dagger restores X
	assert.InDelta(t, 0, CMaxAbsDiff(CConjugate(CAdjoint(U), Y), X), 1.e-14)
	assert.False(t, CIsDiagonal(X, 1.e-12))
	assert.True(t, CIsDiagonal(NewCIdentity(3), 0))
	assert.InDelta(t, 3+math.Sqrt(5), CNorm1(X), 1.e-14)
	assert.Panics(t, func() { NewCMatrix(2, 2, []complex128{1}) })
	assert.Panics(t, func() { CMul(NewCMatrix(2, 3), NewCMatrix(2, 3)) })
}
