package gf

import (
	"fmt"
	"math"
)

// DefaultNIw is the number of positive Matsubara frequencies used when a
// setup does not specify one.
const DefaultNIw = 1025

// Mesh is a fermionic Matsubara mesh iw_k = i(2k+1)pi/Beta for
// k = -NIw..NIw-1. Index n = 0..2*NIw-1 maps to k = n - NIw, so the mesh is
// ordered and antisymmetric about zero.
type Mesh struct {
	Beta float64
	NIw  int
}

func NewMesh(beta float64, nIw int) (m Mesh, err error) {
	if beta <= 0 || math.IsNaN(beta) || math.IsInf(beta, 0) {
		err = fmt.Errorf("inverse temperature must be positive and finite, have %v", beta)
		return
	}
	if nIw < 1 {
		err = fmt.Errorf("mesh needs at least one positive frequency, have %d", nIw)
		return
	}
	return Mesh{Beta: beta, NIw: nIw}, nil
}

func (m Mesh) Len() int { return 2 * m.NIw }

// Omega returns the real frequency value w_n.
func (m Mesh) Omega(n int) float64 {
	k := n - m.NIw
	return float64(2*k+1) * math.Pi / m.Beta
}

func (m Mesh) IOmega(n int) complex128 {
	return complex(0, m.Omega(n))
}

// Mirror returns the index of -w_n.
func (m Mesh) Mirror(n int) int {
	return m.Len() - 1 - n
}

// FirstPositive is the index of the lowest positive frequency pi/Beta.
func (m Mesh) FirstPositive() int {
	return m.NIw
}

func (m Mesh) Equal(o Mesh) bool {
	return m.NIw == o.NIw && m.Beta == o.Beta
}

func (m Mesh) String() string {
	return fmt.Sprintf("Matsubara(beta=%g, n_iw=%d)", m.Beta, m.NIw)
}
