package transformation

import (
	"fmt"
	"math/cmplx"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

// Op is applied to each scalar as it moves to its new coordinate.
type Op uint8

const (
	Copy Op = iota
	// NegConj is the particle-hole rule for the hole sector of a Nambu
	// spinor, x -> -conj(x).
	NegConj
	Conj
	Negate
)

func (op Op) Apply(v complex128) complex128 {
	switch op {
	case NegConj:
		return -cmplx.Conj(v)
	case Conj:
		return cmplx.Conj(v)
	case Negate:
		return -v
	}
	return v
}

func (op Op) String() string {
	switch op {
	case NegConj:
		return "-conj"
	case Conj:
		return "conj"
	case Negate:
		return "neg"
	}
	return "copy"
}

// Entry moves the element From of the source structure to To of the target
// structure.
type Entry struct {
	From, To gf.Index
	Op       Op
}

// MapBlock expands an nr x nc sub-block starting at from into entries that
// land at the sub-block starting at to.
func MapBlock(from, to gf.Index, nr, nc int, op Op) (entries []Entry) {
	entries = make([]Entry, 0, nr*nc)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			entries = append(entries, Entry{
				From: gf.Index{Block: from.Block, I: from.I + i, J: from.J + j},
				To:   gf.Index{Block: to.Block, I: to.I + i, J: to.J + j},
				Op:   op,
			})
		}
	}
	return
}

// FromPairs builds Copy entries from an index correspondence.
func FromPairs(pairs map[gf.Index]gf.Index) (entries []Entry) {
	entries = make([]Entry, 0, len(pairs))
	for from, to := range pairs {
		entries = append(entries, Entry{From: from, To: to})
	}
	return
}

// handles assigns each element of a structure a stable integer in
// declaration order.
type handles struct {
	offsets map[string]int
	sizes   map[string]int
	n       int
}

func newHandles(s gf.Structure) (h handles) {
	h = handles{
		offsets: make(map[string]int, len(s)),
		sizes:   make(map[string]int, len(s)),
	}
	for _, b := range s {
		h.offsets[b.Name] = h.n
		h.sizes[b.Name] = b.Size
		h.n += b.Size * b.Size
	}
	return
}

func (h handles) of(idx gf.Index) (handle int, ok bool) {
	var (
		off, size int
	)
	if off, ok = h.offsets[idx.Block]; !ok {
		return
	}
	size = h.sizes[idx.Block]
	if idx.I < 0 || idx.I >= size || idx.J < 0 || idx.J >= size {
		return 0, false
	}
	return off + idx.I*size + idx.J, true
}

// ReblockMap is a validated partial injection from the elements of one
// block structure into the elements of another. It is read-only after
// construction and safe for concurrent use.
type ReblockMap struct {
	from, to gf.Structure
	entries  []Entry
	sel      *utils.Selection
	targets  []gf.Index // target handle -> index
}

// NewReblockMap validates entries against both structures: every coordinate
// must exist, no source may appear twice and no two sources may share a
// target.
func NewReblockMap(from, to gf.Structure, entries []Entry) (m *ReblockMap, err error) {
	var (
		hFrom, hTo = newHandles(from), newHandles(to)
		firstFrom  = make(map[int]int)
		firstTo    = make(map[int]int)
	)
	if err = from.Validate(); err != nil {
		return
	}
	if err = to.Validate(); err != nil {
		return
	}
	m = &ReblockMap{
		from:    append(gf.Structure(nil), from...),
		to:      append(gf.Structure(nil), to...),
		entries: append([]Entry(nil), entries...),
		sel:     utils.NewSelection(hTo.n, hFrom.n, "reblock"),
		targets: to.Indices(),
	}
	for k, e := range m.entries {
		src, ok := hFrom.of(e.From)
		if !ok {
			return nil, &MappingError{Index: e.From, Reason: fmt.Sprintf("source not in structure %s", from)}
		}
		tgt, ok := hTo.of(e.To)
		if !ok {
			return nil, &MappingError{Index: e.To, Reason: fmt.Sprintf("target not in structure %s", to)}
		}
		m.sel.Link(tgt, src)
		if _, dup := firstFrom[src]; !dup {
			firstFrom[src] = k
		}
		if _, dup := firstTo[tgt]; !dup {
			firstTo[tgt] = k
		}
	}
	if badTarget, badSource := m.sel.Injective(); badTarget >= 0 || badSource >= 0 {
		if badTarget >= 0 {
			e := m.entries[firstTo[badTarget]]
			return nil, &MappingError{Index: e.To, Reason: "more than one source maps to this target"}
		}
		e := m.entries[firstFrom[badSource]]
		return nil, &MappingError{Index: e.From, Reason: "source is mapped more than once"}
	}
	return
}

func (m *ReblockMap) From() gf.Structure { return append(gf.Structure(nil), m.from...) }
func (m *ReblockMap) To() gf.Structure   { return append(gf.Structure(nil), m.to...) }
func (m *ReblockMap) Entries() []Entry   { return append([]Entry(nil), m.entries...) }
func (m *ReblockMap) Len() int           { return len(m.entries) }

// Lookup returns the entry for a source coordinate.
func (m *ReblockMap) Lookup(from gf.Index) (e Entry, ok bool) {
	for _, e = range m.entries {
		if e.From == from {
			return e, true
		}
	}
	return Entry{}, false
}

// Uncovered lists target coordinates that no source reaches.
func (m *ReblockMap) Uncovered() (I []gf.Index) {
	for _, h := range m.sel.Uncovered() {
		I = append(I, m.targets[h])
	}
	return
}

// CheckCoverage fails when any target coordinate has an empty fiber.
func (m *ReblockMap) CheckCoverage() error {
	if unc := m.Uncovered(); len(unc) != 0 {
		return &MappingError{Index: unc[0], Reason: fmt.Sprintf("target has no source (%d uncovered)", len(unc))}
	}
	return nil
}

// Bijective reports whether every source and target element is used once.
func (m *ReblockMap) Bijective() bool {
	return len(m.entries) == m.from.NElements() && len(m.entries) == m.to.NElements()
}

func (m *ReblockMap) checkSource(s gf.Structure) error {
	if !s.Equal(m.from) {
		return &MappingError{Reason: fmt.Sprintf("source structure %s does not match map domain %s", s, m.from)}
	}
	return nil
}

func (m *ReblockMap) checkTarget(s gf.Structure) error {
	if !s.Equal(m.to) {
		return &MappingError{Reason: fmt.Sprintf("target structure %s does not match map range %s", s, m.to)}
	}
	return nil
}

// ReblockInto writes every mapped element of src into target. Unmapped
// source elements are dropped, target elements without a source keep their
// value.
func ReblockInto(src, target *gf.BlockMesh, m *ReblockMap) (err error) {
	var (
		nw = src.Mesh().Len()
	)
	if err = m.checkSource(src.Structure()); err != nil {
		return
	}
	if err = m.checkTarget(target.Structure()); err != nil {
		return
	}
	if !src.Mesh().Equal(target.Mesh()) {
		return &MappingError{Reason: fmt.Sprintf("meshes differ: %s vs %s", src.Mesh(), target.Mesh())}
	}
	for _, e := range m.entries {
		bs, _ := src.Block(e.From.Block)
		bt, _ := target.Block(e.To.Block)
		for n := 0; n < nw; n++ {
			bt.Set(n, e.To.I, e.To.J, e.Op.Apply(bs.At(n, e.From.I, e.From.J)))
		}
	}
	return
}

// ReblockMesh returns a new BlockMesh in the target structure, zero where no
// source contributes.
func ReblockMesh(src *gf.BlockMesh, m *ReblockMap) (R *gf.BlockMesh, err error) {
	if R, err = gf.New(m.to, src.Mesh()); err != nil {
		return
	}
	if err = ReblockInto(src, R, m); err != nil {
		return nil, err
	}
	return
}

// ReblockMeshStrict is ReblockMesh for maps that must populate every target
// element.
func ReblockMeshStrict(src *gf.BlockMesh, m *ReblockMap) (R *gf.BlockMesh, err error) {
	if err = m.CheckCoverage(); err != nil {
		return
	}
	return ReblockMesh(src, m)
}

// ReblockMatrix is the frequency independent counterpart of ReblockMesh.
func ReblockMatrix(src *gf.BlockMatrix, m *ReblockMap) (R *gf.BlockMatrix, err error) {
	var (
		s gf.Structure
	)
	if s, err = src.Structure(); err != nil {
		return
	}
	if err = m.checkSource(s); err != nil {
		return
	}
	R = gf.ZeroBlockMatrix(m.to)
	for _, e := range m.entries {
		R.Set(e.To, e.Op.Apply(src.At(e.From)))
	}
	return
}
