package setups

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/bethe"
	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/hubbard"
	"github.com/notargets/gobethe/transformation"
)

var spins = []string{hubbard.Up, hubbard.Down}

func spinFlip(s gf.Structure) Move {
	var pairs [][2]gf.Orbital
	for _, b := range s {
		var partner string
		switch {
		case b.Name == hubbard.Up:
			partner = hubbard.Down
		case strings.HasPrefix(b.Name, hubbard.Up+"-"):
			partner = hubbard.Down + strings.TrimPrefix(b.Name, hubbard.Up)
		default:
			continue
		}
		if _, ok := s.Find(partner); !ok {
			continue
		}
		for i := 0; i < b.Size; i++ {
			pairs = append(pairs, [2]gf.Orbital{{Block: b.Name, Index: i}, {Block: partner, Index: i}})
		}
	}
	return Swap(pairs...)
}

// orbitalFlip swaps two symmetry equivalent orbitals within each spin.
func orbitalFlip(orbitals []string) Move {
	var pairs [][2]gf.Orbital
	if len(orbitals) != 2 {
		return Move{}
	}
	for _, sp := range spins {
		pairs = append(pairs, [2]gf.Orbital{
			{Block: hubbard.BlockName(sp, orbitals[0])},
			{Block: hubbard.BlockName(sp, orbitals[1])},
		})
	}
	return Swap(pairs...)
}

func spinDegenerate(s gf.Structure, T *mat.CDense) (bm *gf.BlockMatrix) {
	bm = gf.NewBlockMatrix()
	for _, b := range s {
		bm.Put(b.Name, T)
	}
	return
}

// NewSingleBethe is one Hubbard site on the Bethe lattice.
func NewSingleBethe(p Parameters) (st *Setup, err error) {
	var (
		h = hubbard.NewSite(p.U)
		s = h.HInt().Structure
	)
	if st, err = newSetup("single-bethe", p, s, gf.ZeroBlockMatrix(s), bethe.Diagonal, h); err != nil {
		return
	}
	st.GlobalMoves["spin-flip"] = spinFlip(s)
	st.QuantumNumbers = []hubbard.QuantumNumber{h.NTot(), h.NPerSpin(hubbard.Up)}
	return st, st.CheckStructure()
}

// NewHypercubic is one Hubbard site with the Gaussian density of states of
// the infinite dimensional hypercubic lattice.
func NewHypercubic(p Parameters) (st *Setup, err error) {
	dos := bethe.DOS{Kind: bethe.Gaussian, NPoints: 300}
	if p.DOS != nil {
		dos = *p.DOS
		dos.Kind = bethe.Gaussian
	}
	if dos.NPoints == 0 {
		dos.NPoints = 300
	}
	p.DOS = &dos
	if st, err = NewSingleBethe(p); err != nil {
		return
	}
	st.Name = "hypercubic"
	return
}

// NewSingleBetheAFM allows antiferromagnetic order: each spin hybridizes
// with the other spin's Green's function, the other sublattice.
func NewSingleBetheAFM(p Parameters) (st *Setup, err error) {
	if st, err = NewSingleBethe(p); err != nil {
		return
	}
	st.Name = "single-bethe-afm"
	st.GLoc.Policy = bethe.AFM
	st.GLoc.Partner = map[string]string{hubbard.Up: hubbard.Down, hubbard.Down: hubbard.Up}
	return
}

// StaggeredField is the seed -h on spin up, +h on spin down orbitals of the
// setup's structure, used to break the spin symmetry of an AFM setup. Spin
// and site merged blocks alternate up and down along the diagonal.
func (st *Setup) StaggeredField(h float64) (bm *gf.BlockMatrix, err error) {
	var (
		s     = st.SE.Structure()
		found bool
	)
	bm = gf.ZeroBlockMatrix(s)
	for _, b := range s {
		for i := 0; i < b.Size; i++ {
			var sign float64
			switch {
			case st.GLoc.Policy == bethe.SpinSiteMerged:
				sign = float64(2*(i%2) - 1)
			case b.Name == hubbard.Up || strings.HasPrefix(b.Name, hubbard.Up+"-"):
				sign = -1
			case b.Name == hubbard.Down || strings.HasPrefix(b.Name, hubbard.Down+"-"):
				sign = 1
			default:
				continue
			}
			found = true
			bm.Set(gf.Index{Block: b.Name, I: i, J: i}, complex(sign*h, 0))
		}
	}
	if !found {
		return nil, errors.Errorf("%s: no spin resolved orbitals in %s", st.Name, s)
	}
	return
}

// cluster assembles the momentum cluster setups: site hopping T per spin,
// rotated by U into one size 1 block per spin and orbital label.
func cluster(name string, p Parameters, T, U *mat.CDense, orbitals, symmetric []string, flip string) (st *Setup, err error) {
	var (
		nSites, _  = T.Dims()
		siteStruct gf.Structure
		symStruct  gf.Structure
		transforms = map[string]*mat.CDense{hubbard.Up: U, hubbard.Down: U}
		transf     *transformation.MatrixTransformation
		tLoc       *gf.BlockMatrix
		h          *hubbard.Momentum
	)
	if len(orbitals) != nSites {
		return nil, errors.Errorf("%s: %d orbital labels for %d sites", name, len(orbitals), nSites)
	}
	if siteStruct, err = gf.Uniform(spins, nSites); err != nil {
		return
	}
	if h, err = hubbard.NewMomentum(p.U, spins, orbitals, transforms); err != nil {
		return
	}
	symStruct = h.HInt().Structure
	if transf, err = transformation.New(siteStruct, transforms, symStruct); err != nil {
		return
	}
	if tLoc, err = transf.TransformAndReblock(spinDegenerate(siteStruct, T)); err != nil {
		return
	}
	if st, err = newSetup(name, p, symStruct, tLoc, bethe.Diagonal, h); err != nil {
		return
	}
	st.Transformation = transf
	st.GlobalMoves["spin-flip"] = spinFlip(symStruct)
	if len(symmetric) == 2 {
		st.GlobalMoves[flip] = orbitalFlip(symmetric)
	}
	st.QuantumNumbers = []hubbard.QuantumNumber{h.NTot(), h.NPerSpin(hubbard.Up)}
	return st, st.CheckStructure()
}

// NewDimerBethe is a two site cluster in the bonding/antibonding basis.
func NewDimerBethe(p Parameters) (*Setup, error) {
	return cluster("dimer-bethe", p, dimerHopping(p.TDimer), p.transform(DimerTransform),
		p.labels([]string{"even", "odd"}), p.symmetric(nil), "")
}

// NewTriangleBethe is a three site cluster in the E, A2, A1 basis.
func NewTriangleBethe(p Parameters) (*Setup, error) {
	return cluster("triangle-bethe", p, triangleHopping(p.TTriangle), p.transform(TriangleTransform),
		p.labels([]string{"E", "A2", "A1"}), p.symmetric([]string{"A2", "A1"}), "A1A2-flip")
}

// NewPlaquetteBethe is a four site cluster in the G, X, Y, M momentum basis.
func NewPlaquetteBethe(p Parameters) (*Setup, error) {
	return cluster("plaquette-bethe", p, plaquetteHopping(p.TNN, p.TNNN), p.transform(PlaquetteTransform),
		p.labels([]string{"G", "X", "Y", "M"}), p.symmetric([]string{"X", "Y"}), "XY-flip")
}

// NewAIAOBethe merges spin and the sites of a tetrahedron into one block for
// all-in-all-out order.
func NewAIAOBethe(p Parameters) (st *Setup, err error) {
	var (
		nSites = p.NSites
		h      *hubbard.SpinSite
	)
	if nSites == 0 {
		nSites = 4
	}
	if h, err = hubbard.NewSpinSite(p.U, nSites, "spin-site"); err != nil {
		return
	}
	s := h.HInt().Structure
	tLoc := gf.NewBlockMatrix().Put("spin-site", tetrahedronHopping(p.TAIAO, nSites))
	if st, err = newSetup("aiao-bethe", p, s, tLoc, bethe.SpinSiteMerged, h); err != nil {
		return
	}
	st.GLoc.SpinBlock = 2
	var pairs [][2]gf.Orbital
	for i := 0; i < nSites; i++ {
		pairs = append(pairs, [2]gf.Orbital{{Block: "spin-site", Index: 2 * i}, {Block: "spin-site", Index: 2*i + 1}})
	}
	st.GlobalMoves["spin-flip"] = Swap(pairs...)
	st.QuantumNumbers = []hubbard.QuantumNumber{h.NTot()}
	return st, st.CheckStructure()
}
