package gf

import (
	"bytes"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/utils"
)

// BlockMatrix is the frequency independent counterpart of BlockMesh: one
// complex matrix per named block. It carries hopping matrices and chemical
// potentials.
type BlockMatrix struct {
	order  []string
	blocks map[string]*mat.CDense
}

func NewBlockMatrix() *BlockMatrix {
	return &BlockMatrix{blocks: make(map[string]*mat.CDense)}
}

// ZeroBlockMatrix allocates zero blocks for every block of s.
func ZeroBlockMatrix(s Structure) (bm *BlockMatrix) {
	bm = NewBlockMatrix()
	for _, b := range s {
		bm.Put(b.Name, utils.NewCMatrix(b.Size, b.Size))
	}
	return
}

// ScalarBlockMatrix places val on the diagonal of every block of s.
func ScalarBlockMatrix(s Structure, val complex128) (bm *BlockMatrix) {
	bm = ZeroBlockMatrix(s)
	for _, b := range s {
		for i := 0; i < b.Size; i++ {
			bm.blocks[b.Name].Set(i, i, val)
		}
	}
	return
}

// Put stores A under name, appending name to the block order if it is new.
func (bm *BlockMatrix) Put(name string, A *mat.CDense) *BlockMatrix { // Changes receiver
	if _, ok := bm.blocks[name]; !ok {
		bm.order = append(bm.order, name)
	}
	bm.blocks[name] = A
	return bm
}

func (bm *BlockMatrix) Get(name string) (A *mat.CDense, ok bool) {
	A, ok = bm.blocks[name]
	return
}

func (bm *BlockMatrix) Names() []string {
	return append([]string(nil), bm.order...)
}

func (bm *BlockMatrix) Len() int { return len(bm.order) }

// Structure returns the block structure, failing for non-square blocks.
func (bm *BlockMatrix) Structure() (s Structure, err error) {
	s = make(Structure, len(bm.order))
	for i, name := range bm.order {
		nr, nc := bm.blocks[name].Dims()
		if nr != nc {
			err = errors.Wrapf(ErrStructure, "block %q is %dx%d", name, nr, nc)
			return nil, err
		}
		s[i] = BlockSpec{Name: name, Size: nr}
	}
	return
}

func (bm *BlockMatrix) At(idx Index) complex128 {
	A, ok := bm.blocks[idx.Block]
	if !ok {
		panic(fmt.Errorf("no block named %q", idx.Block))
	}
	return A.At(idx.I, idx.J)
}

func (bm *BlockMatrix) Set(idx Index, val complex128) { // Changes receiver
	A, ok := bm.blocks[idx.Block]
	if !ok {
		panic(fmt.Errorf("no block named %q", idx.Block))
	}
	A.Set(idx.I, idx.J, val)
}

func (bm *BlockMatrix) Copy() (R *BlockMatrix) {
	R = NewBlockMatrix()
	for _, name := range bm.order {
		R.Put(name, utils.CCopy(bm.blocks[name]))
	}
	return
}

func (bm *BlockMatrix) MaxAbsDiff(o *BlockMatrix) (diff float64, err error) {
	if len(bm.order) != len(o.order) {
		err = errors.Wrapf(ErrStructure, "have %d and %d blocks", len(bm.order), len(o.order))
		return
	}
	for _, name := range bm.order {
		B, ok := o.blocks[name]
		if !ok {
			err = errors.Wrapf(ErrStructure, "block %q missing", name)
			return
		}
		diff = math.Max(diff, utils.CMaxAbsDiff(bm.blocks[name], B))
	}
	return
}

func (bm *BlockMatrix) String() string {
	buf := bytes.Buffer{}
	for _, name := range bm.order {
		buf.WriteString(utils.CPrint(bm.blocks[name], name))
	}
	return buf.String()
}
