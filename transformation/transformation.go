package transformation

import (
	"fmt"
	"math/cmplx"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

// DefaultDropTolerance is the magnitude above which an element discarded by
// reblocking is logged.
const DefaultDropTolerance = 1.e-10

// MatrixTransformation moves block structured objects from an old basis and
// block structure into a new one: a per-block basis change U X U^dagger
// followed by an element-wise reblocking.
//
// Unitarity of the transforms is not enforced, rectangular projectors are
// allowed. Hermiticity of the results is the caller's check.
type MatrixTransformation struct {
	old, target   gf.Structure
	rotated       gf.Structure // old structure after the basis change
	transforms    map[string]*mat.CDense
	explicit      *ReblockMap
	DropTolerance float64

	derivedOnce sync.Once
	derived     *ReblockMap
	derivedErr  error
}

type Option func(mt *MatrixTransformation)

// WithReblockMap pre-seeds an explicit map from the rotated old structure to
// the new structure.
func WithReblockMap(m *ReblockMap) Option {
	return func(mt *MatrixTransformation) { mt.explicit = m }
}

func WithDropTolerance(tol float64) Option {
	return func(mt *MatrixTransformation) { mt.DropTolerance = tol }
}

// New validates every transform against the old structure. A nil transforms
// map means pure reblocking.
func New(old gf.Structure, transforms map[string]*mat.CDense, target gf.Structure,
	opts ...Option) (mt *MatrixTransformation, err error) {
	if err = old.Validate(); err != nil {
		return
	}
	if err = target.Validate(); err != nil {
		return
	}
	mt = &MatrixTransformation{
		old:           append(gf.Structure(nil), old...),
		target:        append(gf.Structure(nil), target...),
		rotated:       make(gf.Structure, len(old)),
		DropTolerance: DefaultDropTolerance,
	}
	if transforms != nil {
		mt.transforms = make(map[string]*mat.CDense, len(transforms))
		for name, U := range transforms {
			b, ok := old.Find(name)
			if !ok {
				return nil, &MappingError{Index: gf.Index{Block: name}, Reason: "transform for unknown block"}
			}
			if err = checkTransform(b, U); err != nil {
				return nil, err
			}
			mt.transforms[name] = utils.CCopy(U)
		}
	}
	for i, b := range old {
		mt.rotated[i] = b
		if U, ok := mt.transforms[b.Name]; ok {
			mt.rotated[i].Size, _ = U.Dims()
		}
	}
	for _, opt := range opts {
		opt(mt)
	}
	if mt.explicit != nil {
		if err = mt.explicit.checkSource(mt.rotated); err != nil {
			return nil, err
		}
		if err = mt.explicit.checkTarget(mt.target); err != nil {
			return nil, err
		}
	}
	return
}

func checkTransform(b gf.BlockSpec, U *mat.CDense) error {
	if U == nil {
		return &DimensionError{Block: b.Name, BlockSize: b.Size}
	}
	nr, nc := U.Dims()
	if nc != b.Size || nr < 1 || nr > nc {
		return &DimensionError{Block: b.Name, BlockSize: b.Size, Rows: nr, Cols: nc}
	}
	return nil
}

func (mt *MatrixTransformation) Old() gf.Structure    { return append(gf.Structure(nil), mt.old...) }
func (mt *MatrixTransformation) Target() gf.Structure { return append(gf.Structure(nil), mt.target...) }
func (mt *MatrixTransformation) Rotated() gf.Structure {
	return append(gf.Structure(nil), mt.rotated...)
}

func (mt *MatrixTransformation) transformFor(name string, size int) (U *mat.CDense, err error) {
	var (
		ok bool
	)
	if mt.transforms == nil {
		return nil, nil
	}
	if U, ok = mt.transforms[name]; !ok {
		return nil, &MappingError{Index: gf.Index{Block: name}, Reason: "no transform for block"}
	}
	if err = checkTransform(gf.BlockSpec{Name: name, Size: size}, U); err != nil {
		return nil, err
	}
	return
}

// TransformMatrix returns U_b X_b U_b^dagger for every block of X.
func (mt *MatrixTransformation) TransformMatrix(X *gf.BlockMatrix) (R *gf.BlockMatrix, err error) {
	var (
		U *mat.CDense
	)
	R = gf.NewBlockMatrix()
	for _, name := range X.Names() {
		A, _ := X.Get(name)
		nr, nc := A.Dims()
		if nr != nc {
			return nil, &DimensionError{Block: name, BlockSize: nc, Rows: nr, Cols: nc}
		}
		if U, err = mt.transformFor(name, nr); err != nil {
			return nil, err
		}
		if U == nil {
			R.Put(name, utils.CCopy(A))
			continue
		}
		R.Put(name, utils.CConjugate(U, A))
	}
	return
}

// TransformMesh applies the basis change pointwise over the mesh. All
// transforms are resolved before the frequency loop starts.
func (mt *MatrixTransformation) TransformMesh(X *gf.BlockMesh) (R *gf.BlockMesh, err error) {
	var (
		s      = X.Structure()
		us     = make([]*mat.CDense, len(s))
		outStr = make(gf.Structure, len(s))
	)
	for i, b := range s {
		if us[i], err = mt.transformFor(b.Name, b.Size); err != nil {
			return
		}
		outStr[i] = b
		if us[i] != nil {
			outStr[i].Size, _ = us[i].Dims()
		}
	}
	if R, err = gf.New(outStr, X.Mesh()); err != nil {
		return
	}
	for i, b := range s {
		for n := 0; n < X.Mesh().Len(); n++ {
			if us[i] == nil {
				R.SetMatrix(b.Name, n, X.Matrix(b.Name, n))
				continue
			}
			R.SetMatrix(b.Name, n, utils.CConjugate(us[i], X.Matrix(b.Name, n)))
		}
	}
	return
}

// Inverse returns the transformation with every U replaced by U^dagger,
// mapping the rotated basis back to the old one with the old structure as
// target. Only square transforms can be inverted.
func (mt *MatrixTransformation) Inverse() (inv *MatrixTransformation, err error) {
	var (
		transforms map[string]*mat.CDense
	)
	if mt.transforms != nil {
		transforms = make(map[string]*mat.CDense, len(mt.transforms))
		for name, U := range mt.transforms {
			nr, nc := U.Dims()
			if nr != nc {
				return nil, &DimensionError{Block: name, BlockSize: nc, Rows: nr, Cols: nc}
			}
			transforms[name] = utils.CAdjoint(U)
		}
	}
	return New(mt.rotated, transforms, mt.old)
}

// DerivedMap returns the explicit map when one was supplied, otherwise the
// default map: orbitals of the rotated old structure and of the new
// structure are paired in declaration order, and element (b,i,j) maps when
// both of its orbitals land in the same new block. The two structures must
// enumerate the same number of orbitals.
func (mt *MatrixTransformation) DerivedMap() (*ReblockMap, error) {
	if mt.explicit != nil {
		return mt.explicit, nil
	}
	mt.derivedOnce.Do(func() {
		mt.derived, mt.derivedErr = deriveMap(mt.rotated, mt.target)
	})
	return mt.derived, mt.derivedErr
}

func deriveMap(from, to gf.Structure) (m *ReblockMap, err error) {
	var (
		oldOrbs, newOrbs = from.Orbitals(), to.Orbitals()
		orbMap           = make(map[gf.Orbital]gf.Orbital, len(oldOrbs))
		entries          []Entry
	)
	if len(oldOrbs) != len(newOrbs) {
		err = &MappingError{Reason: fmt.Sprintf("cannot derive a reblock map: %s has %d orbitals, %s has %d",
			from, len(oldOrbs), to, len(newOrbs))}
		return
	}
	for k := range oldOrbs {
		orbMap[oldOrbs[k]] = newOrbs[k]
	}
	for _, b := range from {
		for i := 0; i < b.Size; i++ {
			oi := orbMap[gf.Orbital{Block: b.Name, Index: i}]
			for j := 0; j < b.Size; j++ {
				oj := orbMap[gf.Orbital{Block: b.Name, Index: j}]
				if oi.Block != oj.Block {
					continue
				}
				entries = append(entries, Entry{
					From: gf.Index{Block: b.Name, I: i, J: j},
					To:   gf.Index{Block: oi.Block, I: oi.Index, J: oj.Index},
				})
			}
		}
	}
	return NewReblockMap(from, to, entries)
}

// Reblock moves a BlockMesh already in the rotated basis into the new
// structure.
func (mt *MatrixTransformation) Reblock(X *gf.BlockMesh) (R *gf.BlockMesh, err error) {
	var (
		m *ReblockMap
	)
	if m, err = mt.DerivedMap(); err != nil {
		return
	}
	return ReblockMesh(X, m)
}

// TransformAndReblock rotates every block of X and reblocks the result into
// the new structure. Dropped elements larger than DropTolerance are logged,
// they signal a transform that does not block-diagonalize X.
func (mt *MatrixTransformation) TransformAndReblock(X *gf.BlockMatrix) (R *gf.BlockMatrix, err error) {
	var (
		rotated *gf.BlockMatrix
		m       *ReblockMap
	)
	if rotated, err = mt.TransformMatrix(X); err != nil {
		return
	}
	if m, err = mt.DerivedMap(); err != nil {
		return
	}
	if R, err = ReblockMatrix(rotated, m); err != nil {
		return
	}
	mt.logDropped(rotated, m)
	return
}

// TransformAndReblockMesh is TransformAndReblock for frequency dependent
// objects.
func (mt *MatrixTransformation) TransformAndReblockMesh(X *gf.BlockMesh) (R *gf.BlockMesh, err error) {
	var (
		rotated *gf.BlockMesh
		m       *ReblockMap
	)
	if m, err = mt.DerivedMap(); err != nil {
		return
	}
	if rotated, err = mt.TransformMesh(X); err != nil {
		return
	}
	return ReblockMesh(rotated, m)
}

func (mt *MatrixTransformation) logDropped(rotated *gf.BlockMatrix, m *ReblockMap) {
	var (
		mapped  = make(map[gf.Index]bool, m.Len())
		dropped int
		maxAbs  float64
	)
	for _, e := range m.entries {
		mapped[e.From] = true
	}
	for _, name := range rotated.Names() {
		A, _ := rotated.Get(name)
		nr, _ := A.Dims()
		for i := 0; i < nr; i++ {
			for j := 0; j < nr; j++ {
				if mapped[gf.Index{Block: name, I: i, J: j}] {
					continue
				}
				if v := cmplx.Abs(A.At(i, j)); v > mt.DropTolerance {
					dropped++
					if v > maxAbs {
						maxAbs = v
					}
				}
			}
		}
	}
	if dropped != 0 {
		utils.Logger().Warn("reblocking dropped non-negligible elements",
			zap.Int("count", dropped),
			zap.Float64("max_abs", maxAbs),
			zap.Stringer("from", m.from),
			zap.Stringer("to", m.to))
	}
}
