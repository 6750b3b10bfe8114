// Package hubbard describes Hubbard interaction terms and the quantum number
// operators an impurity solver needs to restrict its symmetry sectors. Only
// descriptors live here: the operator algebra itself belongs to the solver.
package hubbard

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

type Kind uint8

const (
	KindSite Kind = iota
	KindMomentum
	KindNambu
	KindSpinSite
)

func (k Kind) String() string {
	switch k {
	case KindSite:
		return "site"
	case KindMomentum:
		return "momentum"
	case KindNambu:
		return "nambu"
	case KindSpinSite:
		return "spin-site"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Handle identifies the interaction Hamiltonian U sum_i n_i,up n_i,dn written
// in the basis of Structure. Transforms are the site to symmetry basis
// rotations the solver applies to its site operators.
type Handle struct {
	Kind       Kind
	U          float64
	Spins      []string
	Orbitals   []string
	Structure  gf.Structure
	Transforms map[string]*mat.CDense
}

func (h Handle) String() string {
	return fmt.Sprintf("%s Hubbard U=%g on %s", h.Kind, h.U, h.Structure)
}

// QuantumNumber is the operator sum_k Signs[k] n(Orbitals[k]) + Offset.
type QuantumNumber struct {
	Name     string
	Orbitals []gf.Orbital
	Signs    []float64
	Offset   float64
}

// Validate checks that every orbital exists in s.
func (q QuantumNumber) Validate(s gf.Structure) error {
	if len(q.Orbitals) != len(q.Signs) {
		return errors.Errorf("quantum number %s has %d orbitals and %d signs", q.Name, len(q.Orbitals), len(q.Signs))
	}
	for _, o := range q.Orbitals {
		if !s.Contains(gf.Index{Block: o.Block, I: o.Index, J: o.Index}) {
			return errors.Wrapf(gf.ErrStructure, "quantum number %s uses orbital %v absent from %s", q.Name, o, s)
		}
	}
	return nil
}

// Expectation evaluates the quantum number from a Green's function.
func (q QuantumNumber) Expectation(g *gf.BlockMesh) (v float64) {
	v = q.Offset
	for k, o := range q.Orbitals {
		v += q.Signs[k] * g.Density(o)
	}
	return
}

// Algebra is the interface to the external operator algebra: a setup asks it
// for the interaction term and the particle number operators.
type Algebra interface {
	HInt() Handle
	NTot() QuantumNumber
	NPerSpin(spin string) QuantumNumber
}

var (
	_ Algebra = (*Site)(nil)
	_ Algebra = (*Momentum)(nil)
	_ Algebra = (*Nambu)(nil)
	_ Algebra = (*SpinSite)(nil)
)

func copyTransforms(in map[string]*mat.CDense) (out map[string]*mat.CDense) {
	if in == nil {
		return
	}
	out = make(map[string]*mat.CDense, len(in))
	for k, U := range in {
		out[k] = utils.CCopy(U)
	}
	return
}

func allOrbitals(s gf.Structure, name string, sign float64) (q QuantumNumber) {
	q.Name = name
	for _, o := range s.Orbitals() {
		q.Orbitals = append(q.Orbitals, o)
		q.Signs = append(q.Signs, sign)
	}
	return
}
