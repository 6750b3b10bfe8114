package gf

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/utils"
)

// Block is one named square block sampled on a Matsubara mesh. Data holds
// Size x Size row-major matrices, one per frequency, contiguously.
type Block struct {
	Name string
	Size int
	Data []complex128
}

func (b *Block) offset(n, i, j int) int {
	return (n*b.Size+i)*b.Size + j
}

// At and Set skip the bounds checks done by BlockMesh, callers validate once
// before looping over the mesh.
func (b *Block) At(n, i, j int) complex128       { return b.Data[b.offset(n, i, j)] }
func (b *Block) Set(n, i, j int, val complex128) { b.Data[b.offset(n, i, j)] = val }

// BlockMesh is a collection of named blocks sharing one frequency mesh. The
// block structure is fixed for its lifetime; no two BlockMesh values share
// storage.
type BlockMesh struct {
	mesh      Mesh
	structure Structure
	blocks    []*Block
	lookup    map[string]int
}

func New(s Structure, m Mesh) (bm *BlockMesh, err error) {
	if err = s.Validate(); err != nil {
		return
	}
	if _, err = NewMesh(m.Beta, m.NIw); err != nil {
		return
	}
	bm = &BlockMesh{
		mesh:      m,
		structure: append(Structure(nil), s...),
		blocks:    make([]*Block, len(s)),
		lookup:    make(map[string]int, len(s)),
	}
	for i, b := range s {
		bm.blocks[i] = &Block{
			Name: b.Name,
			Size: b.Size,
			Data: make([]complex128, m.Len()*b.Size*b.Size),
		}
		bm.lookup[b.Name] = i
	}
	return
}

// MustNew is New for structures known to be valid, it panics on error.
func MustNew(s Structure, m Mesh) *BlockMesh {
	bm, err := New(s, m)
	if err != nil {
		panic(err)
	}
	return bm
}

func (bm *BlockMesh) Mesh() Mesh           { return bm.mesh }
func (bm *BlockMesh) Structure() Structure { return append(Structure(nil), bm.structure...) }
func (bm *BlockMesh) Names() []string      { return bm.structure.Names() }
func (bm *BlockMesh) NBlocks() int         { return len(bm.blocks) }

func (bm *BlockMesh) Block(name string) (b *Block, ok bool) {
	var i int
	if i, ok = bm.lookup[name]; !ok {
		return
	}
	return bm.blocks[i], true
}

func (bm *BlockMesh) mustBlock(name string) *Block {
	b, ok := bm.Block(name)
	if !ok {
		panic(fmt.Errorf("no block named %q in %s", name, bm.structure))
	}
	return b
}

func (bm *BlockMesh) checkIndex(b *Block, idx Index, n int) {
	if idx.I < 0 || idx.I >= b.Size || idx.J < 0 || idx.J >= b.Size || n < 0 || n >= bm.mesh.Len() {
		panic(fmt.Errorf("index %v at frequency %d out of range for block %q of size %d", idx, n, b.Name, b.Size))
	}
}

func (bm *BlockMesh) At(idx Index, n int) complex128 {
	b := bm.mustBlock(idx.Block)
	bm.checkIndex(b, idx, n)
	return b.Data[b.offset(n, idx.I, idx.J)]
}

func (bm *BlockMesh) Set(idx Index, n int, val complex128) { // Changes receiver
	b := bm.mustBlock(idx.Block)
	bm.checkIndex(b, idx, n)
	b.Data[b.offset(n, idx.I, idx.J)] = val
}

// Element returns a copy of one matrix element along the whole mesh.
func (bm *BlockMesh) Element(idx Index) (vals []complex128) {
	b := bm.mustBlock(idx.Block)
	bm.checkIndex(b, idx, 0)
	vals = make([]complex128, bm.mesh.Len())
	for n := range vals {
		vals[n] = b.Data[b.offset(n, idx.I, idx.J)]
	}
	return
}

func (bm *BlockMesh) SetElement(idx Index, vals []complex128) { // Changes receiver
	b := bm.mustBlock(idx.Block)
	bm.checkIndex(b, idx, 0)
	if len(vals) != bm.mesh.Len() {
		panic(fmt.Errorf("have %d values for a mesh of %d points", len(vals), bm.mesh.Len()))
	}
	for n, val := range vals {
		b.Data[b.offset(n, idx.I, idx.J)] = val
	}
}

// Matrix returns a view of block name at frequency index n. Writes through
// the view change the BlockMesh.
func (bm *BlockMesh) Matrix(name string, n int) *mat.CDense {
	var (
		b  = bm.mustBlock(name)
		sz = b.Size * b.Size
	)
	if n < 0 || n >= bm.mesh.Len() {
		panic(fmt.Errorf("frequency index %d out of range [0,%d)", n, bm.mesh.Len()))
	}
	return mat.NewCDense(b.Size, b.Size, b.Data[n*sz:(n+1)*sz:(n+1)*sz])
}

func (bm *BlockMesh) SetMatrix(name string, n int, A *mat.CDense) { // Changes receiver
	var (
		b      = bm.mustBlock(name)
		nr, nc = A.Dims()
	)
	if nr != b.Size || nc != b.Size {
		panic(fmt.Errorf("block %q is %dx%d, matrix is %dx%d", name, b.Size, b.Size, nr, nc))
	}
	copy(utils.CData(bm.Matrix(name, n)), utils.CData(A))
}

func (bm *BlockMesh) AllIndices() []Index {
	return bm.structure.Indices()
}

func (bm *BlockMesh) SameStructure(o *BlockMesh) bool {
	return bm.structure.Equal(o.structure) && bm.mesh.Equal(o.mesh)
}

func (bm *BlockMesh) checkCompatible(o *BlockMesh) error {
	if !bm.structure.Equal(o.structure) {
		return errors.Wrapf(ErrStructure, "block structures differ: %s vs %s", bm.structure, o.structure)
	}
	if !bm.mesh.Equal(o.mesh) {
		return errors.Wrapf(ErrStructure, "meshes differ: %s vs %s", bm.mesh, o.mesh)
	}
	return nil
}

func (bm *BlockMesh) Zero() { // Changes receiver
	for _, b := range bm.blocks {
		for i := range b.Data {
			b.Data[i] = 0
		}
	}
}

func (bm *BlockMesh) Copy() (R *BlockMesh) {
	R = MustNew(bm.structure, bm.mesh)
	for i, b := range bm.blocks {
		copy(R.blocks[i].Data, b.Data)
	}
	return
}

// CopyFrom deep copies src into the receiver.
func (bm *BlockMesh) CopyFrom(src *BlockMesh) error { // Changes receiver
	if err := bm.checkCompatible(src); err != nil {
		return err
	}
	for i, b := range src.blocks {
		copy(bm.blocks[i].Data, b.Data)
	}
	return nil
}

func (bm *BlockMesh) Add(src *BlockMesh) error { // Changes receiver
	if err := bm.checkCompatible(src); err != nil {
		return err
	}
	for i, b := range src.blocks {
		cmplxs.Add(bm.blocks[i].Data, b.Data)
	}
	return nil
}

func (bm *BlockMesh) Sub(src *BlockMesh) error { // Changes receiver
	if err := bm.checkCompatible(src); err != nil {
		return err
	}
	for i, b := range src.blocks {
		cmplxs.Sub(bm.blocks[i].Data, b.Data)
	}
	return nil
}

// Accumulate adds c*src to the receiver.
func (bm *BlockMesh) Accumulate(src *BlockMesh, c complex128) error { // Changes receiver
	if err := bm.checkCompatible(src); err != nil {
		return err
	}
	for i, b := range src.blocks {
		cmplxs.AddScaled(bm.blocks[i].Data, c, b.Data)
	}
	return nil
}

func (bm *BlockMesh) Scale(c complex128) { // Changes receiver
	for _, b := range bm.blocks {
		cmplxs.Scale(c, b.Data)
	}
}

// Mix sets the receiver to (1-alpha)*receiver + alpha*src.
func (bm *BlockMesh) Mix(src *BlockMesh, alpha float64) error { // Changes receiver
	if err := bm.checkCompatible(src); err != nil {
		return err
	}
	for i, b := range src.blocks {
		cmplxs.Scale(complex(1-alpha, 0), bm.blocks[i].Data)
		cmplxs.AddScaled(bm.blocks[i].Data, complex(alpha, 0), b.Data)
	}
	return nil
}

// Conj complex conjugates every element in place.
func (bm *BlockMesh) Conj() { // Changes receiver
	for _, b := range bm.blocks {
		for i, val := range b.Data {
			b.Data[i] = cmplx.Conj(val)
		}
	}
}

func (bm *BlockMesh) MaxAbsDiff(o *BlockMesh) (diff float64, err error) {
	if err = bm.checkCompatible(o); err != nil {
		return
	}
	for i, b := range bm.blocks {
		for k, val := range b.Data {
			diff = math.Max(diff, cmplx.Abs(val-o.blocks[i].Data[k]))
		}
	}
	return
}

// MaxHermiticityError is max|X - X^dagger| over every block and frequency.
func (bm *BlockMesh) MaxHermiticityError() (herr float64) {
	for _, b := range bm.blocks {
		for n := 0; n < bm.mesh.Len(); n++ {
			herr = math.Max(herr, utils.CHermiticityError(bm.Matrix(b.Name, n)))
		}
	}
	return
}

// HasNaN reports whether any element is NaN or infinite.
func (bm *BlockMesh) HasNaN() bool {
	for _, b := range bm.blocks {
		for _, val := range b.Data {
			if cmplx.IsNaN(val) || cmplx.IsInf(val) {
				return true
			}
		}
	}
	return false
}
