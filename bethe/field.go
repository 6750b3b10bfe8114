package bethe

import (
	"context"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

// DefaultMaxCondition is the 1-norm condition number above which an
// inverted block is flagged as ill-conditioned.
const DefaultMaxCondition = 1.e12

// SelfEnergy is a plain BlockMesh container, all arithmetic comes from the
// embedded mesh.
type SelfEnergy struct {
	*gf.BlockMesh
}

func NewSelfEnergy(s gf.Structure, m gf.Mesh) (se *SelfEnergy, err error) {
	var bm *gf.BlockMesh
	if bm, err = gf.New(s, m); err != nil {
		return
	}
	return &SelfEnergy{BlockMesh: bm}, nil
}

func (se *SelfEnergy) Beta() float64 { return se.Mesh().Beta }

// SetConstant sets every frequency of each block to the matching matrix of
// c, e.g. a static Hartree shift. Blocks absent from c are zeroed, blocks
// of c absent from the structure are an error.
func (se *SelfEnergy) SetConstant(c *gf.BlockMatrix) error { // Changes receiver
	for _, name := range c.Names() {
		if _, ok := se.Structure().Find(name); !ok {
			return errors.Wrapf(gf.ErrStructure, "constant for block %q absent from %s", name, se.Structure())
		}
	}
	for _, b := range se.Structure() {
		A, ok := c.Get(b.Name)
		if !ok {
			A = utils.NewCMatrix(b.Size, b.Size)
		} else if nr, nc := A.Dims(); nr != b.Size || nc != b.Size {
			return errors.Wrapf(gf.ErrStructure, "constant for block %q is %dx%d, block size is %d", b.Name, nr, nc, b.Size)
		}
		for n := 0; n < se.Mesh().Len(); n++ {
			se.SetMatrix(b.Name, n, A)
		}
	}
	return nil
}

// WeissField is the bath Green's function G0 of the impurity problem.
type WeissField struct {
	*gf.BlockMesh
	MaxCondition float64
	Tolerance    float64 // allowed fraction of flagged points
	Parallel     int     // goroutines for the frequency loop, < 1 means NumCPU
}

func NewWeissField(s gf.Structure, m gf.Mesh) (w *WeissField, err error) {
	var bm *gf.BlockMesh
	if bm, err = gf.New(s, m); err != nil {
		return
	}
	return &WeissField{
		BlockMesh:    bm,
		MaxCondition: DefaultMaxCondition,
		Parallel:     1,
	}, nil
}

func (w *WeissField) Beta() float64 { return w.Mesh().Beta }

// FromDyson sets G0 = (G^-1 + Sigma)^-1 block by block at every frequency.
// Points whose inversion fails keep their previous value and are flagged.
func (w *WeissField) FromDyson(ctx context.Context, g, se *gf.BlockMesh) (report *Report, err error) { // Changes receiver
	if err = checkSame(w.BlockMesh, g, se); err != nil {
		return
	}
	report = newReport("weiss field from dyson", w.NBlocks()*w.Mesh().Len())
	err = dysonInto(ctx, w.BlockMesh, g, se, 1, w.MaxCondition, w.Parallel, report)
	if err != nil {
		return
	}
	err = report.check(w.Tolerance)
	return
}

// Dyson returns G = (G0^-1 - Sigma)^-1, the relation an impurity solver
// uses to turn its self-energy into a Green's function.
func (w *WeissField) Dyson(ctx context.Context, se *gf.BlockMesh) (g *gf.BlockMesh, report *Report, err error) {
	if err = checkSame(w.BlockMesh, se); err != nil {
		return
	}
	g = gf.MustNew(w.Structure(), w.Mesh())
	report = newReport("dyson", w.NBlocks()*w.Mesh().Len())
	if err = dysonInto(ctx, g, w.BlockMesh, se, -1, w.MaxCondition, w.Parallel, report); err != nil {
		return
	}
	err = report.check(w.Tolerance)
	return
}

// SetNonInteracting makes G0 the non-interacting local Green's function of
// the closure, the exact Weiss field at Sigma = 0.
func (w *WeissField) SetNonInteracting(ctx context.Context, gloc *GLocal, mu *gf.BlockMatrix) (err error) { // Changes receiver
	var g0 *gf.BlockMesh
	if g0, err = gloc.MakeMatrix(ctx, mu); err != nil {
		return
	}
	return w.CopyFrom(g0)
}

func checkSame(ref *gf.BlockMesh, others ...*gf.BlockMesh) error {
	for _, o := range others {
		if o == nil {
			return errors.Wrap(gf.ErrStructure, "missing operand")
		}
		if !ref.SameStructure(o) {
			return errors.Wrapf(gf.ErrStructure, "operands differ: %s %s vs %s %s",
				ref.Structure(), ref.Mesh(), o.Structure(), o.Mesh())
		}
	}
	return nil
}

// dysonInto writes dst = (src^-1 + sign*se)^-1 at every point.
func dysonInto(ctx context.Context, dst, src, se *gf.BlockMesh, sign complex128, maxCond float64,
	parallel int, report *Report) error {
	var (
		m     = dst.Mesh()
		names = dst.Names()
	)
	return utils.ParallelRange(ctx, parallel, m.Len(), func(ctx context.Context, kMin, kMax int) error {
		for n := kMin; n < kMax; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, name := range names {
				var (
					srcInv, res *mat.CDense
					cond        float64
					err, warn   error
				)
				if srcInv, cond, warn = invert(src.Matrix(name, n), maxCond); srcInv != nil {
					A := utils.CData(srcInv)
					for k, v := range utils.CData(se.Matrix(name, n)) {
						A[k] += sign * v
					}
					var c float64
					if res, c, err = invert(srcInv, maxCond); warn == nil && err != nil {
						warn, cond = err, c
					}
				}
				if warn != nil {
					report.flag(&SingularBlockWarning{Block: name, N: n, Omega: m.Omega(n), Cond: cond, Cause: warn})
				}
				if res != nil {
					dst.SetMatrix(name, n, res)
				}
			}
		}
		return nil
	})
}

// invert returns A^-1 and its condition number. An ill-conditioned but
// finite inverse is returned together with the error; a singular matrix or a
// non-finite inverse returns a nil matrix.
func invert(A *mat.CDense, maxCond float64) (R *mat.CDense, cond float64, err error) {
	if R, cond, err = utils.CInverse(A); err != nil {
		return nil, cond, err
	}
	for _, v := range utils.CData(R) {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return nil, cond, errors.New("inverse is not finite")
		}
	}
	if maxCond > 0 && cond > maxCond {
		err = errors.Errorf("condition number %.3e exceeds %.3e", cond, maxCond)
	}
	return
}
