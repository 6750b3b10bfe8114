package setups

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/bethe"
	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/hubbard"
	"github.com/notargets/gobethe/transformation"
)

// NambuSetup is the plaquette in particle-hole doubled form, one 2x2 block
// (c_k,up, c^dagger_-k,dn) per momentum. Its Transformation doubles a spin
// resolved plaquette solution into Nambu blocks.
type NambuSetup struct {
	*Setup
	Momenta []string
}

// particleHoleMap places spin up into the particle slot and -conj(spin dn)
// into the hole slot of each momentum block.
func particleHoleMap(from, to gf.Structure, momenta []string) (*transformation.ReblockMap, error) {
	var entries []transformation.Entry
	for _, k := range momenta {
		entries = append(entries,
			transformation.Entry{
				From: gf.Index{Block: hubbard.BlockName(hubbard.Up, k)},
				To:   gf.Index{Block: k},
			},
			transformation.Entry{
				From: gf.Index{Block: hubbard.BlockName(hubbard.Down, k)},
				To:   gf.Index{Block: k, I: 1, J: 1},
				Op:   transformation.NegConj,
			})
	}
	return transformation.NewReblockMap(from, to, entries)
}

// NewNambuPlaquetteBethe builds the superconducting plaquette. Hoppings and
// the chemical potential enter the hole slot with the particle-hole sign.
func NewNambuPlaquetteBethe(p Parameters) (st *NambuSetup, err error) {
	var (
		momenta    = p.labels([]string{"G", "X", "Y", "M"})
		U          = p.transform(PlaquetteTransform)
		transforms = map[string]*mat.CDense{hubbard.Up: U, hubbard.Down: U}
		siteStruct gf.Structure
		momStruct  gf.Structure
		nambu      gf.Structure
		rotate     *transformation.MatrixTransformation
		toNambu    *transformation.MatrixTransformation
		phMap      *transformation.ReblockMap
		tLoc, mu   *gf.BlockMatrix
		h          *hubbard.Nambu
		base       *Setup
	)
	if len(momenta) != 4 {
		return nil, errors.Errorf("nambu plaquette needs 4 momentum labels, have %d", len(momenta))
	}
	if siteStruct, err = gf.Uniform(spins, 4); err != nil {
		return
	}
	var momNames []string
	for _, sp := range spins {
		for _, k := range momenta {
			momNames = append(momNames, hubbard.BlockName(sp, k))
		}
	}
	if momStruct, err = gf.Uniform(momNames, 1); err != nil {
		return
	}
	if h, err = hubbard.NewNambu(p.U, momenta, transforms); err != nil {
		return
	}
	nambu = h.HInt().Structure
	if rotate, err = transformation.New(siteStruct, transforms, momStruct); err != nil {
		return
	}
	if phMap, err = particleHoleMap(momStruct, nambu, momenta); err != nil {
		return
	}
	if toNambu, err = transformation.New(momStruct, nil, nambu, transformation.WithReblockMap(phMap)); err != nil {
		return
	}
	if tLoc, err = nambuStatic(rotate, toNambu, spinDegenerate(siteStruct, plaquetteHopping(p.TNN, p.TNNN))); err != nil {
		return
	}
	if mu, err = nambuStatic(rotate, toNambu, gf.ScalarBlockMatrix(siteStruct, complex(p.Mu, 0))); err != nil {
		return
	}
	if base, err = newSetup("nambu-plaquette-bethe", p, nambu, tLoc, bethe.Nambu, h); err != nil {
		return
	}
	base.Mu = mu
	base.Transformation = toNambu
	base.GlobalMoves["XY-flip"] = Swap(
		[2]gf.Orbital{{Block: momenta[1], Index: 0}, {Block: momenta[2], Index: 0}},
		[2]gf.Orbital{{Block: momenta[1], Index: 1}, {Block: momenta[2], Index: 1}},
	)
	base.QuantumNumbers = []hubbard.QuantumNumber{h.NSpinors()}
	st = &NambuSetup{Setup: base, Momenta: momenta}
	return st, st.CheckStructure()
}

func nambuStatic(rotate, toNambu *transformation.MatrixTransformation, X *gf.BlockMatrix) (*gf.BlockMatrix, error) {
	mom, err := rotate.TransformAndReblock(X)
	if err != nil {
		return nil, err
	}
	return toNambu.TransformAndReblock(mom)
}

// SetInitialGuess starts the Nambu cycle. With transform set, se and g0 are
// spin resolved momentum solutions doubled into Nambu form and a d-wave
// anomalous seed of strength anomFactor is added to the self-energy.
// Otherwise they are Nambu solutions copied as they are.
func (st *NambuSetup) SetInitialGuess(se, g0 *gf.BlockMesh, anomFactor float64, transform bool) (err error) {
	if !transform {
		if err = st.SE.CopyFrom(se); err != nil {
			return
		}
		return st.G0.CopyFrom(g0)
	}
	var m *transformation.ReblockMap
	if m, err = st.Transformation.DerivedMap(); err != nil {
		return
	}
	st.SE.Zero()
	st.G0.Zero()
	if err = transformation.ReblockInto(se, st.SE.BlockMesh, m); err != nil {
		return errors.Wrap(err, "self-energy")
	}
	if err = transformation.ReblockInto(g0, st.G0.BlockMesh, m); err != nil {
		return errors.Wrap(err, "weiss field")
	}
	st.SetAnomalous(anomFactor)
	return
}

// SetAnomalous writes the singlet d-wave seed factor*beta/2 at the two
// frequencies closest to zero into the X off-diagonals and its negative
// into Y.
func (st *NambuSetup) SetAnomalous(factor float64) { // Changes receiver
	var (
		x, y  = st.Momenta[1], st.Momenta[2]
		m     = st.SE.Mesh()
		n0    = m.Len() / 2
		value = complex(factor*m.Beta*.5, 0)
	)
	for _, off := range [][2]int{{0, 1}, {1, 0}} {
		xi := gf.Index{Block: x, I: off[0], J: off[1]}
		yi := gf.Index{Block: y, I: off[0], J: off[1]}
		for _, n := range []int{n0, n0 - 1} {
			st.SE.Set(xi, n, value)
		}
		vals := st.SE.Element(xi)
		for n := range vals {
			vals[n] = -vals[n]
		}
		st.SE.SetElement(yi, vals)
	}
}
