package hubbard

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
)

const (
	Up   = "up"
	Down = "dn"
)

// Site is a single Hubbard site with blocks up and dn of size 1.
type Site struct {
	u         float64
	structure gf.Structure
}

func NewSite(u float64) *Site {
	s, _ := gf.Uniform([]string{Up, Down}, 1)
	return &Site{u: u, structure: s}
}

func (h *Site) HInt() Handle {
	return Handle{Kind: KindSite, U: h.u, Spins: []string{Up, Down}, Structure: h.structure}
}

func (h *Site) NTot() QuantumNumber { return allOrbitals(h.structure, "N", 1) }

func (h *Site) NPerSpin(spin string) QuantumNumber {
	return QuantumNumber{
		Name:     "N_" + spin,
		Orbitals: []gf.Orbital{{Block: spin, Index: 0}},
		Signs:    []float64{1},
	}
}

// BlockName joins spin and orbital labels the way every symmetry basis setup
// names its blocks.
func BlockName(spin, orbital string) string { return spin + "-" + orbital }

// Momentum is a Hubbard cluster in a symmetry adapted single particle basis:
// one size 1 block per spin and orbital label.
type Momentum struct {
	u          float64
	spins      []string
	orbitals   []string
	transforms map[string]*mat.CDense
	structure  gf.Structure
}

func NewMomentum(u float64, spins, orbitals []string, transforms map[string]*mat.CDense) (h *Momentum, err error) {
	var names []string
	for _, s := range spins {
		for _, o := range orbitals {
			names = append(names, BlockName(s, o))
		}
	}
	h = &Momentum{
		u:          u,
		spins:      append([]string(nil), spins...),
		orbitals:   append([]string(nil), orbitals...),
		transforms: copyTransforms(transforms),
	}
	if h.structure, err = gf.Uniform(names, 1); err != nil {
		return nil, err
	}
	for _, s := range spins {
		U, ok := transforms[s]
		if !ok {
			continue
		}
		if nr, nc := U.Dims(); nr != len(orbitals) || nc != len(orbitals) {
			return nil, errors.Errorf("transform for spin %s is %dx%d, have %d orbitals", s, nr, nc, len(orbitals))
		}
	}
	return
}

func (h *Momentum) HInt() Handle {
	return Handle{
		Kind:       KindMomentum,
		U:          h.u,
		Spins:      h.spins,
		Orbitals:   h.orbitals,
		Structure:  h.structure,
		Transforms: h.transforms,
	}
}

func (h *Momentum) NTot() QuantumNumber { return allOrbitals(h.structure, "N", 1) }

func (h *Momentum) NPerSpin(spin string) (q QuantumNumber) {
	q.Name = "N_" + spin
	for _, o := range h.orbitals {
		q.Orbitals = append(q.Orbitals, gf.Orbital{Block: BlockName(spin, o)})
		q.Signs = append(q.Signs, 1)
	}
	return
}

// Nambu is a momentum cluster in particle-hole doubled form. Block k holds
// the spinor (c_k,up, c^dagger_-k,dn): index 0 is the particle, index 1 the
// hole whose number is 1 - n_dn.
type Nambu struct {
	u          float64
	momenta    []string
	transforms map[string]*mat.CDense
	structure  gf.Structure
}

func NewNambu(u float64, momenta []string, transforms map[string]*mat.CDense) (h *Nambu, err error) {
	h = &Nambu{
		u:          u,
		momenta:    append([]string(nil), momenta...),
		transforms: copyTransforms(transforms),
	}
	if h.structure, err = gf.Uniform(momenta, 2); err != nil {
		return nil, err
	}
	return
}

func (h *Nambu) HInt() Handle {
	return Handle{
		Kind:       KindNambu,
		U:          h.u,
		Spins:      []string{Up, Down},
		Orbitals:   h.momenta,
		Structure:  h.structure,
		Transforms: h.transforms,
	}
}

// NTot is n_up + n_dn = sum_k n_k,particle - n_k,hole + N_k.
func (h *Nambu) NTot() (q QuantumNumber) {
	q.Name = "N"
	for _, k := range h.momenta {
		q.Orbitals = append(q.Orbitals, gf.Orbital{Block: k, Index: 0}, gf.Orbital{Block: k, Index: 1})
		q.Signs = append(q.Signs, 1, -1)
		q.Offset++
	}
	return
}

func (h *Nambu) NPerSpin(spin string) (q QuantumNumber) {
	q.Name = "N_" + spin
	for _, k := range h.momenta {
		if spin == Down {
			q.Orbitals = append(q.Orbitals, gf.Orbital{Block: k, Index: 1})
			q.Signs = append(q.Signs, -1)
			q.Offset++
			continue
		}
		q.Orbitals = append(q.Orbitals, gf.Orbital{Block: k, Index: 0})
		q.Signs = append(q.Signs, 1)
	}
	return
}

// NSpinors counts particles plus holes, n_up - n_dn + N_k, the number
// conserved by singlet pairing.
func (h *Nambu) NSpinors() QuantumNumber { return allOrbitals(h.structure, "N_nambu", 1) }

// SpinSite merges spin and site into one block, orbital 2*site+spin, for
// non-collinear orders such as all-in-all-out.
type SpinSite struct {
	u         float64
	nSites    int
	block     string
	structure gf.Structure
}

func NewSpinSite(u float64, nSites int, block string) (h *SpinSite, err error) {
	if nSites < 1 {
		return nil, fmt.Errorf("need at least one site, have %d", nSites)
	}
	h = &SpinSite{u: u, nSites: nSites, block: block}
	if h.structure, err = gf.NewStructure([]string{block}, []int{2 * nSites}); err != nil {
		return nil, err
	}
	return
}

func (h *SpinSite) HInt() Handle {
	return Handle{Kind: KindSpinSite, U: h.u, Spins: []string{Up, Down}, Structure: h.structure}
}

func (h *SpinSite) NTot() QuantumNumber { return allOrbitals(h.structure, "N", 1) }

func (h *SpinSite) NPerSpin(spin string) (q QuantumNumber) {
	offset := 0
	if spin == Down {
		offset = 1
	}
	q.Name = "N_" + spin
	for i := 0; i < h.nSites; i++ {
		q.Orbitals = append(q.Orbitals, gf.Orbital{Block: h.block, Index: 2*i + offset})
		q.Signs = append(q.Signs, 1)
	}
	return
}
