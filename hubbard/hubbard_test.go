package hubbard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

// atomic fills every diagonal element with 1/(iw - e), occupation
// 1/(exp(beta e)+1).
func atomic(t *testing.T, s gf.Structure, e float64) *gf.BlockMesh {
	g, err := gf.New(s, gf.Mesh{Beta: 20, NIw: 4000})
	require.NoError(t, err)
	for _, orb := range s.Orbitals() {
		for n := 0; n < g.Mesh().Len(); n++ {
			g.Set(gf.Index{Block: orb.Block, I: orb.Index, J: orb.Index}, n, 1/(g.Mesh().IOmega(n)-complex(e, 0)))
		}
	}
	return g
}

func TestSite(t *testing.T) {
	h := NewSite(2)
	assert.Equal(t, 2., h.HInt().U)
	assert.Equal(t, []string{"up", "dn"}, h.HInt().Structure.Names())
	nTot := h.NTot()
	require.NoError(t, nTot.Validate(h.HInt().Structure))
	assert.Len(t, nTot.Orbitals, 2)
	// Half filling at e = 0
	g := atomic(t, h.HInt().Structure, 0)
	assert.InDelta(t, 1, nTot.Expectation(g), 1.e-10)
	assert.InDelta(t, 0.5, h.NPerSpin(Up).Expectation(g), 1.e-10)
	bad := QuantumNumber{Name: "x", Orbitals: []gf.Orbital{{Block: "up", Index: 1}}, Signs: []float64{1}}
	assert.Error(t, bad.Validate(h.HInt().Structure))
}

func TestMomentum(t *testing.T) {
	U := utils.NewCIdentity(3)
	h, err := NewMomentum(1, []string{Up, Down}, []string{"E", "A2", "A1"}, map[string]*mat.CDense{Up: U, Down: U})
	require.NoError(t, err)
	s := h.HInt().Structure
	assert.Equal(t, []string{"up-E", "up-A2", "up-A1", "dn-E", "dn-A2", "dn-A1"}, s.Names())
	require.NoError(t, h.NTot().Validate(s))
	require.NoError(t, h.NPerSpin(Down).Validate(s))
	assert.Len(t, h.NPerSpin(Down).Orbitals, 3)
	// Copies the transforms
	U.Set(0, 0, 5)
	assert.Equal(t, complex(1, 0), h.HInt().Transforms[Up].At(0, 0))

	_, err = NewMomentum(1, []string{Up}, []string{"E", "A2"}, map[string]*mat.CDense{Up: U})
	assert.Error(t, err)
}

func TestNambu(t *testing.T) {
	h, err := NewNambu(3, []string{"G", "X", "Y", "M"}, nil)
	require.NoError(t, err)
	s := h.HInt().Structure
	require.NoError(t, h.NTot().Validate(s))
	// Particle level at e = -0.5 is occupied, the hole level at +0.5 is empty,
	// so both spins are filled
	g := gf.MustNew(s, gf.Mesh{Beta: 50, NIw: 4000})
	for _, k := range s.Names() {
		for n := 0; n < g.Mesh().Len(); n++ {
			iw := g.Mesh().IOmega(n)
			g.Set(gf.Index{Block: k}, n, 1/(iw+0.5))
			g.Set(gf.Index{Block: k, I: 1, J: 1}, n, 1/(iw-0.5))
		}
	}
	assert.InDelta(t, 8, h.NTot().Expectation(g), 1.e-5)
	assert.InDelta(t, 4, h.NPerSpin(Up).Expectation(g), 1.e-5)
	assert.InDelta(t, 4, h.NPerSpin(Down).Expectation(g), 1.e-5)
}

func TestSpinSite(t *testing.T) {
	h, err := NewSpinSite(2, 4, "spin-site")
	require.NoError(t, err)
	s := h.HInt().Structure
	assert.Equal(t, 8, s.NOrbitals())
	dn := h.NPerSpin(Down)
	require.NoError(t, dn.Validate(s))
	assert.Equal(t, []gf.Orbital{{Block: "spin-site", Index: 1}, {Block: "spin-site", Index: 3}, {Block: "spin-site", Index: 5}, {Block: "spin-site", Index: 7}}, dn.Orbitals)
	_, err = NewSpinSite(2, 0, "x")
	assert.Error(t, err)
}
