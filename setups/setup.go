// Package setups assembles the containers of one DMFT model: the closure,
// the Weiss field, the self-energy, the interaction handle, the quantum
// numbers and the global moves of a lattice geometry.
package setups

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/bethe"
	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/hubbard"
	"github.com/notargets/gobethe/transformation"
	"github.com/notargets/gobethe/utils"
)

// Parameters covers every setup, each constructor reads the fields it
// needs.
type Parameters struct {
	Beta   float64
	Mu     float64
	U      float64
	TBethe float64
	NIw    int // 0 selects gf.DefaultNIw

	// Optional density of states quadrature replacing the Bethe closure.
	DOS *bethe.DOS

	// Cluster hoppings
	TTriangle float64
	TNN       float64 // plaquette nearest neighbour
	TNNN      float64 // plaquette next nearest neighbour
	TDimer    float64
	TAIAO     float64
	NSites    int // AIAO sites, 0 selects 4

	// Symmetry basis, nil or empty selects the geometry's default
	SiteTransformation *mat.CDense
	OrbitalLabels      []string
	SymmetricOrbitals  []string

	// Closure numerics
	Tolerance     float64
	Parallel      int
	ClosureMixing float64 // fixed point damping, 0 selects bethe.DefaultMixing
}

func (p Parameters) mesh() (m gf.Mesh, err error) {
	nIw := p.NIw
	if nIw == 0 {
		nIw = gf.DefaultNIw
	}
	return gf.NewMesh(p.Beta, nIw)
}

func (p Parameters) labels(def []string) []string {
	if len(p.OrbitalLabels) == 0 {
		return def
	}
	return p.OrbitalLabels
}

func (p Parameters) symmetric(def []string) []string {
	if len(p.SymmetricOrbitals) == 0 {
		return def
	}
	return p.SymmetricOrbitals
}

func (p Parameters) transform(def func() *mat.CDense) *mat.CDense {
	if p.SiteTransformation == nil {
		return def()
	}
	return utils.CCopy(p.SiteTransformation)
}

// Move is a global symmetry move, a permutation of orbitals that leaves the
// Hamiltonian invariant.
type Move map[gf.Orbital]gf.Orbital

// Validate checks that the move permutes existing orbitals.
func (mv Move) Validate(s gf.Structure) error {
	seen := make(map[gf.Orbital]bool, len(mv))
	for from, to := range mv {
		for _, o := range []gf.Orbital{from, to} {
			if !s.Contains(gf.Index{Block: o.Block, I: o.Index, J: o.Index}) {
				return errors.Wrapf(gf.ErrStructure, "move uses orbital %v absent from %s", o, s)
			}
		}
		if seen[to] {
			return errors.Errorf("move maps two orbitals to %v", to)
		}
		seen[to] = true
	}
	for to := range seen {
		if _, ok := mv[to]; !ok {
			return errors.Errorf("move is not a permutation, %v has no image", to)
		}
	}
	return nil
}

// Swap builds the move exchanging orbitals pairwise.
func Swap(pairs ...[2]gf.Orbital) (mv Move) {
	mv = make(Move, 2*len(pairs))
	for _, p := range pairs {
		mv[p[0]], mv[p[1]] = p[1], p[0]
	}
	return
}

// Setup is one assembled model. Every BlockMesh based container shares the
// block structure of GLoc.
type Setup struct {
	Name           string
	GLoc           *bethe.GLocal
	G0             *bethe.WeissField
	SE             *bethe.SelfEnergy
	Mu             *gf.BlockMatrix
	Algebra        hubbard.Algebra
	HInt           hubbard.Handle
	GlobalMoves    map[string]Move
	QuantumNumbers []hubbard.QuantumNumber
	// Transformation maps the structure of a previous, lower symmetry
	// solution into this setup, nil when there is none.
	Transformation *transformation.MatrixTransformation
}

// newSetup allocates the containers on structure s.
func newSetup(name string, p Parameters, s gf.Structure, tLoc *gf.BlockMatrix, policy bethe.Policy,
	alg hubbard.Algebra) (st *Setup, err error) {
	var (
		m gf.Mesh
	)
	if m, err = p.mesh(); err != nil {
		return
	}
	st = &Setup{
		Name:        name,
		Mu:          gf.ScalarBlockMatrix(s, complex(p.Mu, 0)),
		Algebra:     alg,
		HInt:        alg.HInt(),
		GlobalMoves: make(map[string]Move),
	}
	if st.GLoc, err = bethe.NewGLocal(s, m, p.TBethe, tLoc, policy); err != nil {
		return nil, err
	}
	st.GLoc.DOS = p.DOS
	st.GLoc.Tolerance = p.Tolerance
	st.GLoc.Parallel = p.Parallel
	if p.ClosureMixing != 0 {
		st.GLoc.Mixing = p.ClosureMixing
	}
	if st.G0, err = bethe.NewWeissField(s, m); err != nil {
		return nil, err
	}
	st.G0.Tolerance = p.Tolerance
	st.G0.Parallel = p.Parallel
	if st.SE, err = bethe.NewSelfEnergy(s, m); err != nil {
		return nil, err
	}
	return
}

func (st *Setup) Structure() gf.Structure { return st.GLoc.Structure() }
func (st *Setup) Mesh() gf.Mesh           { return st.GLoc.Mesh() }
func (st *Setup) Beta() float64           { return st.GLoc.Beta() }

// MoveNames returns the global move names in sorted order.
func (st *Setup) MoveNames() (names []string) {
	for name := range st.GlobalMoves {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// CheckStructure verifies that all containers, the chemical potential, the
// quantum numbers and the global moves agree on the block structure.
func (st *Setup) CheckStructure() (err error) {
	var (
		s  = st.GLoc.Structure()
		ms gf.Structure
	)
	if !st.G0.SameStructure(st.GLoc.BlockMesh) {
		return errors.Wrapf(gf.ErrStructure, "weiss field %s differs from local green's function %s", st.G0.Structure(), s)
	}
	if !st.SE.SameStructure(st.GLoc.BlockMesh) {
		return errors.Wrapf(gf.ErrStructure, "self-energy %s differs from local green's function %s", st.SE.Structure(), s)
	}
	if ms, err = st.Mu.Structure(); err != nil {
		return
	}
	if !ms.Equal(s) {
		return errors.Wrapf(gf.ErrStructure, "chemical potential %s differs from %s", ms, s)
	}
	if !st.HInt.Structure.Equal(s) {
		return errors.Wrapf(gf.ErrStructure, "interaction acts on %s, containers on %s", st.HInt.Structure, s)
	}
	for _, q := range st.QuantumNumbers {
		if err = q.Validate(s); err != nil {
			return
		}
	}
	for _, name := range st.MoveNames() {
		if err = st.GlobalMoves[name].Validate(s); err != nil {
			return errors.Wrapf(err, "global move %s", name)
		}
	}
	return
}

// InitNonInteracting starts the cycle from Sigma = 0.
func (st *Setup) InitNonInteracting() {
	st.SE.Zero()
}

// InitCenteredSemicirculars seeds Sigma with the non-interacting closure
// result.
func (st *Setup) InitCenteredSemicirculars(ctx context.Context) (err error) {
	var g *gf.BlockMesh
	if g, err = st.GLoc.MakeMatrix(ctx, st.Mu); err != nil {
		return
	}
	return st.SE.CopyFrom(g)
}

// AddStaticField adds a frequency independent symmetry breaking field to
// Sigma, e.g. a staggered magnetization seed.
func (st *Setup) AddStaticField(field *gf.BlockMatrix) (err error) {
	var f *bethe.SelfEnergy
	if f, err = bethe.NewSelfEnergy(st.SE.Structure(), st.SE.Mesh()); err != nil {
		return
	}
	if err = f.SetConstant(field); err != nil {
		return
	}
	return st.SE.Add(f.BlockMesh)
}

// SetData loads a previous solution. Data in this setup's structure is
// copied, data in the structure the Transformation starts from is rotated
// and reblocked first.
func (st *Setup) SetData(se, g0 *gf.BlockMesh) (err error) {
	if se, err = st.adopt(se); err != nil {
		return errors.Wrap(err, "self-energy")
	}
	if g0, err = st.adopt(g0); err != nil {
		return errors.Wrap(err, "weiss field")
	}
	if err = st.SE.CopyFrom(se); err != nil {
		return
	}
	return st.G0.CopyFrom(g0)
}

func (st *Setup) adopt(x *gf.BlockMesh) (*gf.BlockMesh, error) {
	if x.SameStructure(st.GLoc.BlockMesh) {
		return x, nil
	}
	if st.Transformation == nil || !x.Structure().Equal(st.Transformation.Old()) {
		return nil, errors.Wrapf(gf.ErrStructure, "cannot adopt %s %s into %s %s",
			x.Structure(), x.Mesh(), st.Structure(), st.Mesh())
	}
	utils.Logger().Info("transforming previous solution",
		zap.String("setup", st.Name),
		zap.Stringer("from", x.Structure()),
		zap.Stringer("to", st.Structure()))
	return st.Transformation.TransformAndReblockMesh(x)
}

// CycleInput is everything the self-consistency cycle consumes.
type CycleInput struct {
	Name           string
	HInt           hubbard.Handle
	GLoc           *bethe.GLocal
	G0             *bethe.WeissField
	SE             *bethe.SelfEnergy
	Mu             *gf.BlockMatrix
	GlobalMoves    map[string]Move
	QuantumNumbers []hubbard.QuantumNumber
}

// CycleInput validates the setup and hands its containers to the cycle. The
// containers are shared, not copied.
func (st *Setup) CycleInput() (in CycleInput, err error) {
	if err = st.CheckStructure(); err != nil {
		return
	}
	return CycleInput{
		Name:           st.Name,
		HInt:           st.HInt,
		GLoc:           st.GLoc,
		G0:             st.G0,
		SE:             st.SE,
		Mu:             st.Mu,
		GlobalMoves:    st.GlobalMoves,
		QuantumNumbers: st.QuantumNumbers,
	}, nil
}

func (st *Setup) Print() {
	fmt.Printf("[%s]\t\t= Setup\n", st.Name)
	fmt.Printf("%8.5f\t\t= Beta\n", st.Beta())
	fmt.Printf("[%d]\t\t\t= Matsubara frequencies\n", st.Mesh().Len())
	fmt.Printf("%8.5f\t\t= t_bethe\n", st.GLoc.T)
	fmt.Printf("[%s]\t\t= Closure\n", st.GLoc.Policy)
	fmt.Printf("%v\t= Blocks\n", st.Structure())
	fmt.Printf("%s\n", st.HInt)
	for _, name := range st.MoveNames() {
		fmt.Printf("Move[%s] = %d orbitals\n", name, len(st.GlobalMoves[name]))
	}
	for _, q := range st.QuantumNumbers {
		fmt.Printf("QuantumNumber[%s] = %d orbitals\n", q.Name, len(q.Orbitals))
	}
	fmt.Printf("Chemical potential:\n%s", st.Mu)
	if st.GLoc.TLoc != nil {
		fmt.Printf("Local hopping:\n%s", st.GLoc.TLoc)
	}
}
