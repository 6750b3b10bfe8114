package setups

import (
	"context"
	"math/cmplx"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/bethe"
	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

func TestSingleBethe(t *testing.T) {
	st, err := NewSingleBethe(Parameters{Beta: 30, Mu: 0, U: 2, TBethe: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"up", "dn"}, st.GLoc.Names())
	assert.True(t, st.GLoc.Structure().Equal(st.SE.Structure()))
	assert.True(t, st.GLoc.SameStructure(st.SE.BlockMesh))
	assert.True(t, st.G0.SameStructure(st.SE.BlockMesh))
	for _, b := range st.SE.Structure() {
		assert.Equal(t, 1, b.Size)
	}
	assert.Equal(t, 2*gf.DefaultNIw, st.SE.Mesh().Len())
	assert.Equal(t, 30., st.Beta())
	st.SE.Set(gf.Index{Block: "dn"}, 7, 3-1i)
	st.SE.Zero()
	for _, idx := range st.SE.AllIndices() {
		for n := 0; n < st.SE.Mesh().Len(); n++ {
			assert.Equal(t, complex(0, 0), st.SE.At(idx, n))
		}
	}
	assert.Len(t, st.QuantumNumbers, 2)
	assert.Equal(t, 2., st.HInt.U)
	require.Contains(t, st.GlobalMoves, "spin-flip")
	assert.Equal(t, gf.Orbital{Block: "dn"}, st.GlobalMoves["spin-flip"][gf.Orbital{Block: "up"}])
	require.NoError(t, st.CheckStructure())

	in, err := st.CycleInput()
	require.NoError(t, err)
	assert.Same(t, st.SE, in.SE)
	assert.Same(t, st.GLoc, in.GLoc)
}

func TestTriangleBethe(t *testing.T) {
	a := 0.3
	st, err := NewTriangleBethe(Parameters{Beta: 10, Mu: 0.1, U: 2, TBethe: 1, TTriangle: a, NIw: 64})
	require.NoError(t, err)
	assert.Equal(t, []string{"up-E", "up-A2", "up-A1", "dn-E", "dn-A2", "dn-A1"}, st.GLoc.Names())
	want := map[string]float64{"E": 2 * a, "A2": -a, "A1": -a}
	for _, sp := range []string{"up", "dn"} {
		for orb, val := range want {
			A, ok := st.GLoc.TLoc.Get(sp + "-" + orb)
			require.True(t, ok)
			assert.InDelta(t, val, real(A.At(0, 0)), 1.e-14)
		}
	}
	// The symmetry basis diagonalizes the site hopping
	site, _ := gf.Uniform([]string{"up", "dn"}, 3)
	rotated, err := st.Transformation.TransformMatrix(spinDegenerate(site, triangleHopping(a)))
	require.NoError(t, err)
	for _, sp := range []string{"up", "dn"} {
		A, ok := rotated.Get(sp)
		require.True(t, ok)
		assert.True(t, utils.CIsDiagonal(A, 1.e-14))
		for i, val := range []float64{2 * a, -a, -a} {
			assert.InDelta(t, val, real(A.At(i, i)), 1.e-14)
		}
	}
	assert.False(t, utils.CIsDiagonal(triangleHopping(a), 1.e-14))
	require.Contains(t, st.GlobalMoves, "A1A2-flip")
	assert.Equal(t, gf.Orbital{Block: "dn-A1"}, st.GlobalMoves["A1A2-flip"][gf.Orbital{Block: "dn-A2"}])
	assert.Len(t, st.GlobalMoves["spin-flip"], 6)
	// The closure runs on the symmetry blocks
	_, err = st.GLoc.Calculate(context.Background(), st.SE.BlockMesh, st.Mu)
	require.NoError(t, err)
	n := st.Mesh().FirstPositive()
	w := st.Mesh().Omega(n)
	assert.InDelta(t, 0, cmplx.Abs(st.GLoc.At(gf.Index{Block: "up-E"}, n)-bethe.SemicircleG(complex(0.1-2*a, w), 1, w)), 1.e-13)

	// Site basis data is rotated into the symmetry blocks
	se := gf.MustNew(site, st.Mesh())
	for _, b := range site {
		for n := 0; n < st.Mesh().Len(); n++ {
			se.SetMatrix(b.Name, n, triangleHopping(a))
		}
	}
	require.NoError(t, st.SetData(se, se))
	assert.InDelta(t, 2*a, real(st.SE.At(gf.Index{Block: "dn-E"}, 3)), 1.e-14)
	assert.InDelta(t, -a, real(st.G0.At(gf.Index{Block: "up-A1"}, 3)), 1.e-14)
	other, _ := gf.Uniform([]string{"up"}, 3)
	assert.True(t, errors.Is(st.SetData(gf.MustNew(other, st.Mesh()), se), gf.ErrStructure))

	_, err = NewTriangleBethe(Parameters{Beta: 10, TTriangle: a, OrbitalLabels: []string{"E", "A"}})
	assert.Error(t, err)
}

func TestSymmetryTransforms(t *testing.T) {
	for name, U := range map[string]*mat.CDense{
		"triangle":  TriangleTransform(),
		"plaquette": PlaquetteTransform(),
		"dimer":     DimerTransform(),
	} {
		assert.Less(t, utils.CUnitarityError(U), 1.e-14, name)
	}
	// Plaquette momenta diagonalize the nearest and next nearest hoppings
	R := utils.CConjugate(PlaquetteTransform(), plaquetteHopping(0.25, -0.1))
	assert.True(t, utils.CIsDiagonal(R, 1.e-14))
	R = utils.CConjugate(DimerTransform(), dimerHopping(0.4))
	assert.True(t, utils.CIsDiagonal(R, 1.e-14))
}

func TestPlaquetteAndDimer(t *testing.T) {
	var (
		a, b = 0.25, -0.1
	)
	st, err := NewPlaquetteBethe(Parameters{Beta: 10, U: 3, TBethe: 1, TNN: a, TNNN: b, NIw: 16})
	require.NoError(t, err)
	want := map[string]float64{"G": 2*a + b, "X": -b, "Y": -b, "M": -2*a + b}
	for orb, val := range want {
		assert.InDelta(t, val, real(st.GLoc.TLoc.At(gf.Index{Block: "up-" + orb})), 1.e-14)
	}
	require.Contains(t, st.GlobalMoves, "XY-flip")
	assert.Equal(t, []string{"XY-flip", "spin-flip"}, st.MoveNames())

	d, err := NewDimerBethe(Parameters{Beta: 10, U: 1, TBethe: 1, TDimer: 0.4, NIw: 16})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, real(d.GLoc.TLoc.At(gf.Index{Block: "up-even"})), 1.e-14)
	assert.InDelta(t, -0.4, real(d.GLoc.TLoc.At(gf.Index{Block: "dn-odd"})), 1.e-14)
	assert.Equal(t, []string{"spin-flip"}, d.MoveNames())
}

func TestNambuPlaquette(t *testing.T) {
	var (
		ctx  = context.Background()
		a, b = 0.25, -0.1
		mu   = 0.2
		p    = Parameters{Beta: 10, Mu: mu, U: 3, TBethe: 1, TNN: a, TNNN: b, NIw: 16}
	)
	st, err := NewNambuPlaquetteBethe(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"G", "X", "Y", "M"}, st.GLoc.Names())
	assert.Equal(t, bethe.Nambu, st.GLoc.Policy)
	// Hole slot carries -t and -mu
	assert.InDelta(t, -b, real(st.GLoc.TLoc.At(gf.Index{Block: "X"})), 1.e-14)
	assert.InDelta(t, b, real(st.GLoc.TLoc.At(gf.Index{Block: "X", I: 1, J: 1})), 1.e-14)
	assert.Equal(t, complex(0, 0), st.GLoc.TLoc.At(gf.Index{Block: "X", I: 0, J: 1}))
	assert.InDelta(t, mu, real(st.Mu.At(gf.Index{Block: "M"})), 1.e-14)
	assert.InDelta(t, -mu, real(st.Mu.At(gf.Index{Block: "M", I: 1, J: 1})), 1.e-14)
	assert.Len(t, st.QuantumNumbers, 1)

	// Double a spin resolved plaquette solution
	plq, err := NewPlaquetteBethe(p)
	require.NoError(t, err)
	m := plq.Mesh()
	for _, blk := range plq.SE.Structure() {
		for n := 0; n < m.Len(); n++ {
			plq.SE.Set(gf.Index{Block: blk.Name}, n, complex(0.5, -0.1*m.Omega(n)))
			plq.G0.Set(gf.Index{Block: blk.Name}, n, 1/(m.IOmega(n)+0.3))
		}
	}
	factor := 0.1
	require.NoError(t, st.SetInitialGuess(plq.SE.BlockMesh, plq.G0.BlockMesh, factor, true))
	n0 := m.Len() / 2
	for n := 0; n < m.Len(); n++ {
		assert.Equal(t, plq.SE.At(gf.Index{Block: "up-X"}, n), st.SE.At(gf.Index{Block: "X"}, n))
		assert.Equal(t, -cmplx.Conj(plq.SE.At(gf.Index{Block: "dn-X"}, n)), st.SE.At(gf.Index{Block: "X", I: 1, J: 1}, n))
		assert.Equal(t, -cmplx.Conj(plq.G0.At(gf.Index{Block: "dn-M"}, n)), st.G0.At(gf.Index{Block: "M", I: 1, J: 1}, n))
		var seed complex128
		if n == n0 || n == n0-1 {
			seed = complex(factor*p.Beta/2, 0)
		}
		for _, off := range [][2]int{{0, 1}, {1, 0}} {
			assert.Equal(t, seed, st.SE.At(gf.Index{Block: "X", I: off[0], J: off[1]}, n))
			assert.Equal(t, -seed, st.SE.At(gf.Index{Block: "Y", I: off[0], J: off[1]}, n))
			assert.Equal(t, complex(0, 0), st.SE.At(gf.Index{Block: "G", I: off[0], J: off[1]}, n))
			assert.Equal(t, complex(0, 0), st.G0.At(gf.Index{Block: "X", I: off[0], J: off[1]}, n))
		}
	}
	// The anomalous seed survives a closure solve
	_, err = st.GLoc.Calculate(ctx, st.SE.BlockMesh, st.Mu)
	require.NoError(t, err)
	assert.NotEqual(t, complex(0, 0), st.GLoc.At(gf.Index{Block: "X", I: 0, J: 1}, n0))

	// Nambu data is copied as it is
	nse := st.SE.Copy()
	ng0 := st.G0.Copy()
	st.SE.Zero()
	require.NoError(t, st.SetInitialGuess(nse, ng0, 0, false))
	diff, err := st.SE.MaxAbsDiff(nse)
	require.NoError(t, err)
	assert.Equal(t, 0., diff)
	assert.Error(t, st.SetInitialGuess(nse, ng0, 0, true))
}

func TestAFMAndAIAO(t *testing.T) {
	ctx := context.Background()
	// Staggered field seed breaks the spin symmetry
	{
		st, err := NewSingleBetheAFM(Parameters{Beta: 10, U: 2, TBethe: 1, NIw: 32})
		require.NoError(t, err)
		field, err := st.StaggeredField(0.2)
		require.NoError(t, err)
		require.NoError(t, st.AddStaticField(field))
		assert.Equal(t, complex(-0.2, 0), st.SE.At(gf.Index{Block: "up"}, 5))
		assert.Equal(t, complex(0.2, 0), st.SE.At(gf.Index{Block: "dn"}, 5))
		_, err = st.GLoc.Calculate(ctx, st.SE.BlockMesh, st.Mu)
		require.NoError(t, err)
		n := st.Mesh().FirstPositive()
		up, dn := st.GLoc.At(gf.Index{Block: "up"}, n), st.GLoc.At(gf.Index{Block: "dn"}, n)
		// Particle-hole partners at mu = 0
		assert.InDelta(t, 0, cmplx.Abs(up+cmplx.Conj(dn)), 1.e-10)
		assert.Greater(t, real(up), 0.)
	}
	{
		st, err := NewAIAOBethe(Parameters{Beta: 10, U: 2, TBethe: 1, TAIAO: 0.2, NIw: 16})
		require.NoError(t, err)
		assert.Equal(t, 8, st.Structure().NOrbitals())
		assert.Len(t, st.GlobalMoves["spin-flip"], 8)
		_, err = st.GLoc.Calculate(ctx, nil, st.Mu)
		require.NoError(t, err)
		n := st.Mesh().FirstPositive()
		assert.NotEqual(t, complex(0, 0), st.GLoc.At(gf.Index{Block: "spin-site", I: 0, J: 2}, n))
		assert.Equal(t, complex(0, 0), st.GLoc.At(gf.Index{Block: "spin-site", I: 0, J: 1}, n))
		// Spin alternates along the merged block
		field, err := st.StaggeredField(0.1)
		require.NoError(t, err)
		require.NoError(t, st.AddStaticField(field))
		assert.Equal(t, complex(-0.1, 0), st.SE.At(gf.Index{Block: "spin-site", I: 2, J: 2}, 0))
		assert.Equal(t, complex(0.1, 0), st.SE.At(gf.Index{Block: "spin-site", I: 3, J: 3}, 0))
	}
	// A field for blocks the setup does not have is rejected
	{
		st, err := NewTriangleBethe(Parameters{Beta: 10, U: 2, TBethe: 1, TTriangle: 0.1, NIw: 16})
		require.NoError(t, err)
		single, _ := gf.Uniform([]string{"up", "dn"}, 1)
		assert.True(t, errors.Is(st.AddStaticField(gf.ScalarBlockMatrix(single, 0.2)), gf.ErrStructure))
		ns, err := NewNambuPlaquetteBethe(Parameters{Beta: 10, U: 2, TBethe: 1, TNN: 0.25, NIw: 16})
		require.NoError(t, err)
		_, err = ns.StaggeredField(0.2)
		assert.Error(t, err)
	}
}

func TestHypercubic(t *testing.T) {
	st, err := NewHypercubic(Parameters{Beta: 30, U: 0, TBethe: 1, NIw: 64,
		DOS: &bethe.DOS{W1: -12, W2: 12, NPoints: 400}})
	require.NoError(t, err)
	require.NotNil(t, st.GLoc.DOS)
	assert.Equal(t, bethe.Gaussian, st.GLoc.DOS.Kind)
	_, err = st.GLoc.Calculate(context.Background(), st.SE.BlockMesh, st.Mu)
	require.NoError(t, err)
	for n := st.Mesh().FirstPositive(); n < st.Mesh().Len(); n++ {
		g := st.GLoc.At(gf.Index{Block: "up"}, n)
		assert.Less(t, imag(g), 0.)
		// Particle-hole symmetric at mu = 0
		assert.InDelta(t, 0, real(g), 1.e-12)
	}
	assert.InDelta(t, 1, st.GLoc.TotalDensity(), 1.e-10)
}

func TestSetupOperations(t *testing.T) {
	ctx := context.Background()
	st, err := NewSingleBethe(Parameters{Beta: 10, Mu: 0.3, U: 2, TBethe: 1, NIw: 32})
	require.NoError(t, err)
	require.NoError(t, st.InitCenteredSemicirculars(ctx))
	g, err := st.GLoc.MakeMatrix(ctx, st.Mu)
	require.NoError(t, err)
	d, err := st.SE.MaxAbsDiff(g)
	require.NoError(t, err)
	assert.Equal(t, 0., d)
	st.InitNonInteracting()
	assert.Equal(t, complex(0, 0), st.SE.At(gf.Index{Block: "up"}, 0))

	// Moves must be permutations of existing orbitals
	s := st.Structure()
	assert.NoError(t, Swap([2]gf.Orbital{{Block: "up"}, {Block: "dn"}}).Validate(s))
	assert.Error(t, Move{{Block: "up"}: {Block: "dn"}}.Validate(s))
	assert.Error(t, Move{{Block: "up"}: {Block: "dn"}, {Block: "dn"}: {Block: "dn"}}.Validate(s))
	assert.True(t, errors.Is(Move{{Block: "up"}: {Block: "xx"}}.Validate(s), gf.ErrStructure))

	st.GlobalMoves["broken"] = Move{{Block: "up", Index: 1}: {Block: "dn"}}
	assert.Error(t, st.CheckStructure())
	_, err = st.CycleInput()
	assert.Error(t, err)
	delete(st.GlobalMoves, "broken")

	_, err = NewSingleBethe(Parameters{Beta: -1})
	assert.Error(t, err)
}
