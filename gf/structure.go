package gf

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrStructure is returned for block labels or sizes that violate the block
// structure invariants.
var ErrStructure = errors.New("invalid block structure")

// BlockSpec names one square block of a block-diagonal matrix space.
type BlockSpec struct {
	Name string
	Size int
}

// Structure is an ordered block decomposition.
type Structure []BlockSpec

// Orbital addresses one basis function: the row/column index inside a block.
type Orbital struct {
	Block string
	Index int
}

func (o Orbital) String() string {
	return fmt.Sprintf("(%s,%d)", o.Block, o.Index)
}

// Index addresses one scalar element (block, row, column) across a whole
// block-structured object.
type Index struct {
	Block string
	I, J  int
}

func (idx Index) String() string {
	return fmt.Sprintf("(%s,%d,%d)", idx.Block, idx.I, idx.J)
}

func NewStructure(names []string, sizes []int) (s Structure, err error) {
	if len(names) != len(sizes) {
		err = errors.Wrapf(ErrStructure, "have %d block names and %d block sizes", len(names), len(sizes))
		return
	}
	s = make(Structure, len(names))
	for i := range names {
		s[i] = BlockSpec{Name: names[i], Size: sizes[i]}
	}
	if err = s.Validate(); err != nil {
		s = nil
	}
	return
}

// Uniform builds a structure whose blocks all have the same size.
func Uniform(names []string, size int) (s Structure, err error) {
	sizes := make([]int, len(names))
	for i := range sizes {
		sizes[i] = size
	}
	return NewStructure(names, sizes)
}

func (s Structure) Validate() error {
	seen := make(map[string]bool, len(s))
	if len(s) == 0 {
		return errors.Wrap(ErrStructure, "no blocks")
	}
	for _, b := range s {
		if len(b.Name) == 0 {
			return errors.Wrap(ErrStructure, "empty block label")
		}
		if seen[b.Name] {
			return errors.Wrapf(ErrStructure, "duplicate block label %q", b.Name)
		}
		if b.Size < 1 {
			return errors.Wrapf(ErrStructure, "block %q has size %d", b.Name, b.Size)
		}
		seen[b.Name] = true
	}
	return nil
}

func (s Structure) Names() (names []string) {
	names = make([]string, len(s))
	for i, b := range s {
		names[i] = b.Name
	}
	return
}

func (s Structure) Find(name string) (b BlockSpec, ok bool) {
	for _, b = range s {
		if b.Name == name {
			return b, true
		}
	}
	return BlockSpec{}, false
}

// Contains reports whether idx addresses an element inside the structure.
func (s Structure) Contains(idx Index) bool {
	b, ok := s.Find(idx.Block)
	return ok && idx.I >= 0 && idx.I < b.Size && idx.J >= 0 && idx.J < b.Size
}

func (s Structure) NOrbitals() (n int) {
	for _, b := range s {
		n += b.Size
	}
	return
}

// NElements is the number of scalar matrix elements across all blocks.
func (s Structure) NElements() (n int) {
	for _, b := range s {
		n += b.Size * b.Size
	}
	return
}

// Orbitals enumerates (block, index) pairs in declaration order.
func (s Structure) Orbitals() (orbs []Orbital) {
	orbs = make([]Orbital, 0, s.NOrbitals())
	for _, b := range s {
		for i := 0; i < b.Size; i++ {
			orbs = append(orbs, Orbital{Block: b.Name, Index: i})
		}
	}
	return
}

// Indices enumerates every element in declaration order, row-major per block.
func (s Structure) Indices() (I []Index) {
	I = make([]Index, 0, s.NElements())
	for _, b := range s {
		for i := 0; i < b.Size; i++ {
			for j := 0; j < b.Size; j++ {
				I = append(I, Index{Block: b.Name, I: i, J: j})
			}
		}
	}
	return
}

func (s Structure) Equal(o Structure) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Structure) String() string {
	parts := make([]string, len(s))
	for i, b := range s {
		parts[i] = fmt.Sprintf("%s:%d", b.Name, b.Size)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
