package transformation

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

func su2(theta, phi float64) *mat.CDense {
	var (
		c, s = complex(math.Cos(theta), 0), complex(math.Sin(theta), 0)
		e    = cmplx.Exp(complex(0, phi))
	)
	return utils.NewCMatrix(2, 2, []complex128{
		c, s * e,
		-s * cmplx.Conj(e), c,
	})
}

func triangleTransform() *mat.CDense {
	var (
		r3, r2, r6 = 1 / math.Sqrt(3), 1 / math.Sqrt(2), 1 / math.Sqrt(6)
	)
	return utils.NewCMatrixFromReal(3, 3, []float64{
		r3, r3, r3,
		0, -r2, r2,
		-math.Sqrt(2. / 3.), r6, r6,
	})
}

func plaquetteTransform() *mat.CDense {
	return utils.NewCMatrixFromReal(4, 4, []float64{
		.5, .5, .5, .5,
		.5, -.5, .5, -.5,
		.5, .5, -.5, -.5,
		.5, -.5, -.5, .5,
	})
}

// hermitianMesh fills every block with Hermitian matrices that vary with
// frequency.
func hermitianMesh(t *testing.T, s gf.Structure) *gf.BlockMesh {
	bm, err := gf.New(s, gf.Mesh{Beta: 10, NIw: 4})
	require.NoError(t, err)
	for _, b := range s {
		for n := 0; n < bm.Mesh().Len(); n++ {
			w := bm.Mesh().Omega(n)
			for i := 0; i < b.Size; i++ {
				bm.Set(gf.Index{Block: b.Name, I: i, J: i}, n, complex(w*float64(i+1), 0))
				for j := i + 1; j < b.Size; j++ {
					v := complex(float64(i+j)*0.3, w*float64(j-i)*0.1)
					bm.Set(gf.Index{Block: b.Name, I: i, J: j}, n, v)
					bm.Set(gf.Index{Block: b.Name, I: j, J: i}, n, cmplx.Conj(v))
				}
			}
		}
	}
	return bm
}

func TestTransformMatrix(t *testing.T) {
	s, err := gf.NewStructure([]string{"up", "dn", "s"}, []int{2, 3, 4})
	require.NoError(t, err)
	transforms := map[string]*mat.CDense{
		"up": su2(0.3, 1.1),
		"dn": triangleTransform(),
		"s":  plaquetteTransform(),
	}
	for name, U := range transforms {
		assert.InDeltaf(t, 0, utils.CUnitarityError(U), 1.e-14, "transform %s is not unitary", name)
	}
	mt, err := New(s, transforms, s)
	require.NoError(t, err)
	inv, err := mt.Inverse()
	require.NoError(t, err)
	// Round trip on a frequency dependent object, Hermiticity is preserved
	{
		X := hermitianMesh(t, s)
		require.InDelta(t, 0, X.MaxHermiticityError(), 1.e-15)
		Y, err := mt.TransformMesh(X)
		require.NoError(t, err)
		assert.InDelta(t, 0, Y.MaxHermiticityError(), 1.e-13)
		Z, err := inv.TransformMesh(Y)
		require.NoError(t, err)
		d, err := Z.MaxAbsDiff(X)
		require.NoError(t, err)
		assert.InDelta(t, 0, d, 1.e-13)
	}
	// Round trip on plain matrices
	{
		X := gf.NewBlockMatrix()
		X.Put("up", utils.NewCMatrix(2, 2, []complex128{1, 2 - 1i, 3i, -4}))
		X.Put("s", utils.NewCIdentity(4))
		Y, err := mt.TransformMatrix(X)
		require.NoError(t, err)
		Z, err := inv.TransformMatrix(Y)
		require.NoError(t, err)
		d, err := Z.MaxAbsDiff(X)
		require.NoError(t, err)
		assert.InDelta(t, 0, d, 1.e-14)
	}
}

func TestTransformErrors(t *testing.T) {
	s, _ := gf.NewStructure([]string{"up", "dn"}, []int{3, 3})
	// Wrong size at construction
	{
		_, err := New(s, map[string]*mat.CDense{"up": su2(0.1, 0)}, s)
		var de *DimensionError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "up", de.Block)
		assert.True(t, errors.Is(err, ErrDimension))
	}
	// Transform for a block that does not exist
	{
		_, err := New(s, map[string]*mat.CDense{"xx": triangleTransform()}, s)
		assert.True(t, errors.Is(err, ErrMapping))
	}
	// Input block without a transform entry
	{
		mt, err := New(s, map[string]*mat.CDense{"up": triangleTransform()}, s)
		require.NoError(t, err)
		_, err = mt.TransformMatrix(gf.ScalarBlockMatrix(s, 1))
		assert.True(t, errors.Is(err, ErrMapping))
		_, err = mt.TransformMesh(gf.MustNew(s, gf.Mesh{Beta: 1, NIw: 2}))
		assert.True(t, errors.Is(err, ErrMapping))
	}
	// Input block of the wrong size
	{
		mt, err := New(s, map[string]*mat.CDense{"up": triangleTransform(), "dn": triangleTransform()}, s)
		require.NoError(t, err)
		X := gf.NewBlockMatrix().Put("up", utils.NewCIdentity(2))
		_, err = mt.TransformMatrix(X)
		assert.True(t, errors.Is(err, ErrDimension))
	}
}

func TestReblockMap(t *testing.T) {
	from, _ := gf.NewStructure([]string{"a"}, []int{2})
	to, _ := gf.NewStructure([]string{"x", "y", "z", "w"}, []int{1, 1, 1, 1})
	perm := map[gf.Index]gf.Index{
		{Block: "a", I: 0, J: 0}: {Block: "z"},
		{Block: "a", I: 0, J: 1}: {Block: "x"},
		{Block: "a", I: 1, J: 0}: {Block: "w"},
		{Block: "a", I: 1, J: 1}: {Block: "y"},
	}
	// Full map: every element appears exactly once
	{
		m, err := NewReblockMap(from, to, FromPairs(perm))
		require.NoError(t, err)
		assert.True(t, m.Bijective())
		assert.NoError(t, m.CheckCoverage())
		src := gf.MustNew(from, gf.Mesh{Beta: 5, NIw: 2})
		for k, idx := range src.AllIndices() {
			for n := 0; n < src.Mesh().Len(); n++ {
				src.Set(idx, n, complex(float64(k+1), float64(n)))
			}
		}
		tgt, err := ReblockMeshStrict(src, m)
		require.NoError(t, err)
		seen := make(map[complex128]int)
		for _, idx := range tgt.AllIndices() {
			seen[tgt.At(idx, 1)]++
		}
		for _, idx := range src.AllIndices() {
			assert.Equal(t, 1, seen[src.At(idx, 1)])
			assert.Equal(t, src.Element(idx), tgt.Element(perm[idx]))
		}
	}
	// Partial map: uncovered targets keep their prior value, strict fails
	{
		pairs := map[gf.Index]gf.Index{
			{Block: "a", I: 0, J: 0}: {Block: "x"},
			{Block: "a", I: 1, J: 1}: {Block: "y"},
		}
		m, err := NewReblockMap(from, to, FromPairs(pairs))
		require.NoError(t, err)
		assert.False(t, m.Bijective())
		assert.Len(t, m.Uncovered(), 2)
		src := gf.MustNew(from, gf.Mesh{Beta: 5, NIw: 2})
		src.Set(gf.Index{Block: "a"}, 0, 3)
		tgt := gf.MustNew(to, src.Mesh())
		tgt.Set(gf.Index{Block: "z"}, 0, 9)
		require.NoError(t, ReblockInto(src, tgt, m))
		assert.Equal(t, complex(3, 0), tgt.At(gf.Index{Block: "x"}, 0))
		assert.Equal(t, complex(9, 0), tgt.At(gf.Index{Block: "z"}, 0))
		_, err = ReblockMeshStrict(src, m)
		var me *MappingError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, "z", me.Index.Block)
	}
	// Two sources on one target
	{
		entries := []Entry{
			{From: gf.Index{Block: "a", I: 0, J: 0}, To: gf.Index{Block: "x"}},
			{From: gf.Index{Block: "a", I: 1, J: 1}, To: gf.Index{Block: "x"}},
		}
		_, err := NewReblockMap(from, to, entries)
		assert.True(t, errors.Is(err, ErrMapping))
	}
	// One source mapped twice
	{
		entries := []Entry{
			{From: gf.Index{Block: "a", I: 0, J: 0}, To: gf.Index{Block: "x"}},
			{From: gf.Index{Block: "a", I: 0, J: 0}, To: gf.Index{Block: "y"}},
		}
		_, err := NewReblockMap(from, to, entries)
		assert.True(t, errors.Is(err, ErrMapping))
	}
	// Coordinates outside the structures
	{
		_, err := NewReblockMap(from, to, []Entry{{From: gf.Index{Block: "a", I: 2}, To: gf.Index{Block: "x"}}})
		assert.True(t, errors.Is(err, ErrMapping))
		_, err = NewReblockMap(from, to, []Entry{{From: gf.Index{Block: "a"}, To: gf.Index{Block: "q"}}})
		assert.True(t, errors.Is(err, ErrMapping))
	}
	// Source of the wrong structure
	{
		m, err := NewReblockMap(from, to, FromPairs(perm))
		require.NoError(t, err)
		_, err = ReblockMesh(gf.MustNew(to, gf.Mesh{Beta: 1, NIw: 1}), m)
		assert.True(t, errors.Is(err, ErrMapping))
	}
}

func TestParticleHoleOp(t *testing.T) {
	for _, v := range []complex128{0, 1, -2.5i, 3 - 4i, complex(math.Pi, -math.E)} {
		assert.Equal(t, v, NegConj.Apply(NegConj.Apply(v)))
		assert.Equal(t, -cmplx.Conj(v), NegConj.Apply(v))
		assert.Equal(t, v, Copy.Apply(v))
	}
	// Nambu doubling: spin up into the particle slot, -conj(spin down) into
	// the hole slot, applied twice returns the original data
	spin, _ := gf.NewStructure([]string{"up", "dn"}, []int{1, 1})
	nambu, _ := gf.NewStructure([]string{"k"}, []int{2})
	toNambu, err := NewReblockMap(spin, nambu, []Entry{
		{From: gf.Index{Block: "up"}, To: gf.Index{Block: "k"}},
		{From: gf.Index{Block: "dn"}, To: gf.Index{Block: "k", I: 1, J: 1}, Op: NegConj},
	})
	require.NoError(t, err)
	fromNambu, err := NewReblockMap(nambu, spin, []Entry{
		{From: gf.Index{Block: "k"}, To: gf.Index{Block: "up"}},
		{From: gf.Index{Block: "k", I: 1, J: 1}, To: gf.Index{Block: "dn"}, Op: NegConj},
	})
	require.NoError(t, err)
	g := gf.MustNew(spin, gf.Mesh{Beta: 3, NIw: 3})
	for n := 0; n < g.Mesh().Len(); n++ {
		g.Set(gf.Index{Block: "up"}, n, complex(0.1*float64(n), -1/g.Mesh().Omega(n)))
		g.Set(gf.Index{Block: "dn"}, n, complex(-0.2*float64(n), -0.5/g.Mesh().Omega(n)))
	}
	gn, err := ReblockMesh(g, toNambu)
	require.NoError(t, err)
	assert.Equal(t, -cmplx.Conj(g.At(gf.Index{Block: "dn"}, 2)), gn.At(gf.Index{Block: "k", I: 1, J: 1}, 2))
	assert.Equal(t, complex(0, 0), gn.At(gf.Index{Block: "k", I: 0, J: 1}, 2))
	back, err := ReblockMesh(gn, fromNambu)
	require.NoError(t, err)
	d, err := back.MaxAbsDiff(g)
	require.NoError(t, err)
	assert.Equal(t, 0., d)
}

func TestDerivedMap(t *testing.T) {
	site, _ := gf.NewStructure([]string{"up", "dn"}, []int{3, 3})
	sym, _ := gf.Uniform([]string{"up-E", "up-A2", "up-A1", "dn-E", "dn-A2", "dn-A1"}, 1)
	U := triangleTransform()
	mt, err := New(site, map[string]*mat.CDense{"up": U, "dn": U}, sym)
	require.NoError(t, err)
	m, err := mt.DerivedMap()
	require.NoError(t, err)
	assert.Equal(t, 6, m.Len())
	assert.NoError(t, m.CheckCoverage())
	e, ok := m.Lookup(gf.Index{Block: "dn", I: 1, J: 1})
	require.True(t, ok)
	assert.Equal(t, gf.Index{Block: "dn-A2"}, e.To)
	_, ok = m.Lookup(gf.Index{Block: "dn", I: 0, J: 1})
	assert.False(t, ok)

	// Triangle hopping is diagonal in the symmetry basis: E = 2a, A1 = A2 = -a
	a := 0.3
	tri := utils.NewCMatrixFromReal(3, 3, []float64{0, a, a, a, 0, a, a, a, 0})
	tLoc := gf.NewBlockMatrix().Put("up", tri).Put("dn", utils.CCopy(tri))
	rotated, err := mt.TransformMatrix(tLoc)
	require.NoError(t, err)
	for _, name := range rotated.Names() {
		A, _ := rotated.Get(name)
		assert.True(t, utils.CIsDiagonal(A, 1.e-14))
	}
	tSym, err := mt.TransformAndReblock(tLoc)
	require.NoError(t, err)
	want := map[string]float64{"E": 2 * a, "A2": -a, "A1": -a}
	for _, spin := range []string{"up", "dn"} {
		for orb, val := range want {
			assert.InDeltaf(t, val, real(tSym.At(gf.Index{Block: spin + "-" + orb})), 1.e-14, "%s-%s", spin, orb)
		}
	}

	// Orbital counts must agree
	short, _ := gf.Uniform([]string{"up-E", "up-A2"}, 1)
	mt2, err := New(site, nil, short)
	require.NoError(t, err)
	_, err = mt2.DerivedMap()
	assert.True(t, errors.Is(err, ErrMapping))
	_, err = mt2.TransformAndReblock(tLoc)
	assert.True(t, errors.Is(err, ErrMapping))

	// An explicit map wins over the derived one and must fit the structures
	explicit, err := NewReblockMap(site, sym, []Entry{{From: gf.Index{Block: "up"}, To: gf.Index{Block: "up-E"}}})
	require.NoError(t, err)
	mt3, err := New(site, nil, sym, WithReblockMap(explicit))
	require.NoError(t, err)
	got, err := mt3.DerivedMap()
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	_, err = New(site, nil, short, WithReblockMap(explicit))
	assert.True(t, errors.Is(err, ErrMapping))
}
