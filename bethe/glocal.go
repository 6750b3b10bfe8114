package bethe

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

// Policy selects which per-frequency closure equation Calculate solves. The
// equation is always G = (zeta - Delta[G])^-1 with
// zeta = iw + mu - t_loc - Sigma; the policies differ in the hybridization
// Delta and in which entries are solved.
type Policy uint8

const (
	// Diagonal solves every diagonal element with the scalar closed form,
	// off-diagonal elements are zero.
	Diagonal Policy = iota
	// Full solves the matrix fixed point with Delta = t^2 G.
	Full
	// AFM uses the partner block of the other sublattice, Delta_b = t^2 G_b'.
	AFM
	// Nambu uses Delta = t^2 tau_z G tau_z on particle-hole doubled blocks,
	// particle orbitals first.
	Nambu
	// SpinSiteMerged keeps only the site-diagonal spin sub-blocks of G in
	// Delta, for blocks that merge spin and site.
	SpinSiteMerged
	// Inhomogeneous is Diagonal with a hopping amplitude per orbital.
	Inhomogeneous
)

func (p Policy) String() string {
	switch p {
	case Diagonal:
		return "diagonal"
	case Full:
		return "full"
	case AFM:
		return "afm"
	case Nambu:
		return "nambu"
	case SpinSiteMerged:
		return "spin-site-merged"
	case Inhomogeneous:
		return "inhomogeneous"
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

const (
	DefaultMaxIter = 5000
	DefaultEpsilon = 1.e-12
	DefaultMixing  = 0.5
)

// GLocal is the local lattice Green's function together with the closure
// that produces it from a self-energy.
type GLocal struct {
	*gf.BlockMesh
	T      float64         // Bethe lattice hopping
	TLoc   *gf.BlockMatrix // local hopping, nil is zero
	Policy Policy
	DOS    *DOS // non-nil replaces the analytic closure by quadrature

	// Partner maps each block to its sublattice partner for AFM.
	Partner map[string]string
	// THop holds per-orbital hoppings for Inhomogeneous, missing blocks use T.
	THop map[string][]float64
	// SpinBlock is the size of the site-diagonal sub-blocks kept by
	// SpinSiteMerged.
	SpinBlock int

	Tolerance    float64 // allowed fraction of flagged points
	MaxIter      int
	Epsilon      float64 // fixed point convergence, max |G_k+1 - G_k|
	Mixing       float64 // fraction of the previous iterate kept, 0 disables damping
	MaxCondition float64
	Parallel     int // goroutines for the frequency loop, < 1 means NumCPU

	LastReport *Report
}

func NewGLocal(s gf.Structure, m gf.Mesh, t float64, tLoc *gf.BlockMatrix, policy Policy) (g *GLocal, err error) {
	var bm *gf.BlockMesh
	if bm, err = gf.New(s, m); err != nil {
		return
	}
	g = &GLocal{
		BlockMesh:    bm,
		T:            t,
		TLoc:         tLoc,
		Policy:       policy,
		SpinBlock:    2,
		MaxIter:      DefaultMaxIter,
		Epsilon:      DefaultEpsilon,
		Mixing:       DefaultMixing,
		MaxCondition: DefaultMaxCondition,
		Parallel:     1,
	}
	if err = g.checkStatic(g.TLoc, "t_loc"); err != nil {
		return nil, err
	}
	return
}

func (g *GLocal) Beta() float64 { return g.Mesh().Beta }

// Calculate overwrites the receiver with the closure solution for se and mu
// at every frequency. A nil se is the non-interacting limit.
func (g *GLocal) Calculate(ctx context.Context, se *gf.BlockMesh, mu *gf.BlockMatrix) (report *Report, err error) { // Changes receiver
	var (
		cl *closure
	)
	if se != nil {
		if err = checkSame(g.BlockMesh, se); err != nil {
			return
		}
	}
	if cl, err = g.newClosure(mu); err != nil {
		return
	}
	report = newReport("local green's function closure", g.NBlocks()*g.Mesh().Len())
	g.LastReport = report
	err = utils.ParallelRange(ctx, g.Parallel, g.Mesh().Len(), func(ctx context.Context, kMin, kMax int) error {
		for n := kMin; n < kMax; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			cl.solve(n, se, report)
		}
		return nil
	})
	if err != nil {
		return
	}
	err = report.check(g.Tolerance)
	return
}

// MakeMatrix returns the non-interacting closure result as a new BlockMesh,
// leaving the receiver untouched.
func (g *GLocal) MakeMatrix(ctx context.Context, mu *gf.BlockMatrix) (R *gf.BlockMesh, err error) {
	cp := *g
	cp.BlockMesh = g.Copy()
	if _, err = cp.Calculate(ctx, nil, mu); err != nil {
		return
	}
	return cp.BlockMesh, nil
}

func (g *GLocal) checkStatic(A *gf.BlockMatrix, label string) error {
	if A == nil {
		return nil
	}
	for _, name := range A.Names() {
		M, _ := A.Get(name)
		b, ok := g.Structure().Find(name)
		if !ok {
			return errors.Wrapf(gf.ErrStructure, "%s has block %q absent from %s", label, name, g.Structure())
		}
		if nr, nc := M.Dims(); nr != b.Size || nc != b.Size {
			return errors.Wrapf(gf.ErrStructure, "%s block %q is %dx%d, block size is %d", label, name, nr, nc, b.Size)
		}
	}
	return nil
}

// newClosure resolves every parameter of the closure before the frequency
// loop starts.
func (g *GLocal) newClosure(mu *gf.BlockMatrix) (cl *closure, err error) {
	var (
		s = g.Structure()
	)
	if err = g.checkStatic(mu, "mu"); err != nil {
		return
	}
	if err = g.checkStatic(g.TLoc, "t_loc"); err != nil {
		return
	}
	cl = &closure{
		g:       g,
		t2:      complex(g.T*g.T, 0),
		base:    make([]*mat.CDense, len(s)),
		hops:    make([][]float64, len(s)),
		partner: make([]int, len(s)),
	}
	for i, b := range s {
		cl.base[i] = utils.NewCMatrix(b.Size, b.Size)
		base := utils.CData(cl.base[i])
		if mu != nil {
			if M, ok := mu.Get(b.Name); ok {
				for k, v := range utils.CData(utils.CCopy(M)) {
					base[k] += v
				}
			}
		}
		if g.TLoc != nil {
			if M, ok := g.TLoc.Get(b.Name); ok {
				for k, v := range utils.CData(utils.CCopy(M)) {
					base[k] -= v
				}
			}
		}
		cl.partner[i] = i
		cl.hops[i] = make([]float64, b.Size)
		for k := range cl.hops[i] {
			cl.hops[i][k] = g.T
		}
	}
	switch g.Policy {
	case Diagonal, Full:
	case AFM:
		for i, b := range s {
			name, ok := g.Partner[b.Name]
			if !ok {
				return nil, errors.Wrapf(gf.ErrStructure, "afm closure has no partner for block %q", b.Name)
			}
			pb, ok := s.Find(name)
			if !ok || pb.Size != b.Size {
				return nil, errors.Wrapf(gf.ErrStructure, "afm partner %q of block %q missing or of different size", name, b.Name)
			}
			for j := range s {
				if s[j].Name == name {
					cl.partner[i] = j
				}
			}
		}
	case Nambu:
		for _, b := range s {
			if b.Size%2 != 0 {
				return nil, errors.Wrapf(gf.ErrStructure, "nambu block %q has odd size %d", b.Name, b.Size)
			}
		}
	case SpinSiteMerged:
		if g.SpinBlock < 1 {
			return nil, fmt.Errorf("spin sub-block size must be positive, have %d", g.SpinBlock)
		}
		for _, b := range s {
			if b.Size%g.SpinBlock != 0 {
				return nil, errors.Wrapf(gf.ErrStructure, "block %q of size %d does not split into spin blocks of %d",
					b.Name, b.Size, g.SpinBlock)
			}
		}
	case Inhomogeneous:
		for i, b := range s {
			hop, ok := g.THop[b.Name]
			if !ok {
				continue
			}
			if len(hop) != b.Size {
				return nil, errors.Wrapf(gf.ErrStructure, "block %q has %d hoppings for %d orbitals", b.Name, len(hop), b.Size)
			}
			copy(cl.hops[i], hop)
		}
	default:
		return nil, fmt.Errorf("unknown closure policy %v", g.Policy)
	}
	if g.DOS != nil {
		if cl.eps, cl.weights, err = g.DOS.nodes(g.T); err != nil {
			return nil, err
		}
	}
	return
}
