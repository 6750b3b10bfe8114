package setups

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/utils"
)

// TriangleTransform diagonalizes the equilateral triangle hopping matrix,
// rows E, A2, A1.
func TriangleTransform() *mat.CDense {
	var (
		r3, r2, r6 = 1 / math.Sqrt(3), 1 / math.Sqrt(2), 1 / math.Sqrt(6)
	)
	return utils.NewCMatrixFromReal(3, 3, []float64{
		r3, r3, r3,
		0, -r2, r2,
		-math.Sqrt(2. / 3.), r6, r6,
	})
}

// PlaquetteTransform diagonalizes the 2x2 plaquette hopping matrix, rows
// G, X, Y, M.
func PlaquetteTransform() *mat.CDense {
	return utils.NewCMatrixFromReal(4, 4, []float64{
		.5, .5, .5, .5,
		.5, -.5, .5, -.5,
		.5, .5, -.5, -.5,
		.5, -.5, -.5, .5,
	})
}

// DimerTransform maps the two dimer sites to bonding and antibonding
// orbitals.
func DimerTransform() *mat.CDense {
	r2 := 1 / math.Sqrt(2)
	return utils.NewCMatrixFromReal(2, 2, []float64{
		r2, r2,
		r2, -r2,
	})
}

func triangleHopping(a float64) *mat.CDense {
	return utils.NewCMatrixFromReal(3, 3, []float64{
		0, a, a,
		a, 0, a,
		a, a, 0,
	})
}

// plaquetteHopping has nearest neighbour a and diagonal b.
func plaquetteHopping(a, b float64) *mat.CDense {
	return utils.NewCMatrixFromReal(4, 4, []float64{
		0, a, a, b,
		a, 0, b, a,
		a, b, 0, a,
		b, a, a, 0,
	})
}

func dimerHopping(a float64) *mat.CDense {
	return utils.NewCMatrixFromReal(2, 2, []float64{
		0, a,
		a, 0,
	})
}

// tetrahedronHopping connects every pair of nSites sites with a, spin
// diagonal, orbital index 2*site+spin.
func tetrahedronHopping(a float64, nSites int) (T *mat.CDense) {
	T = utils.NewCMatrix(2*nSites, 2*nSites)
	for i := 0; i < nSites; i++ {
		for j := 0; j < nSites; j++ {
			if i == j {
				continue
			}
			for s := 0; s < 2; s++ {
				T.Set(2*i+s, 2*j+s, complex(a, 0))
			}
		}
	}
	return
}
