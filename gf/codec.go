package gf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/notargets/gobethe/utils"
)

var (
	codecMagic   = [4]byte{'B', 'M', 'S', 'H'}
	codecVersion = uint32(1)
)

// MarshalBinary encodes the mesh, the block structure and the data in
// little-endian order.
func (bm *BlockMesh) MarshalBinary() (data []byte, err error) {
	var (
		buf = &bytes.Buffer{}
		le  = binary.LittleEndian
	)
	write := func(v any) {
		if err == nil {
			err = binary.Write(buf, le, v)
		}
	}
	write(codecMagic)
	write(codecVersion)
	write(bm.mesh.Beta)
	write(int64(bm.mesh.NIw))
	write(uint32(len(bm.blocks)))
	for _, b := range bm.blocks {
		write(uint32(len(b.Name)))
		write([]byte(b.Name))
		write(uint32(b.Size))
	}
	for _, b := range bm.blocks {
		write(b.Data)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the receiver with the decoded BlockMesh.
func (bm *BlockMesh) UnmarshalBinary(data []byte) (err error) {
	var (
		rd        = bytes.NewReader(data)
		le        = binary.LittleEndian
		magic     [4]byte
		version   uint32
		beta      float64
		nIw       int64
		nBlocks   uint32
		nameLen   uint32
		size      uint32
		decoded   *BlockMesh
		structure Structure
	)
	read := func(v any) {
		if err == nil {
			err = binary.Read(rd, le, v)
		}
	}
	read(&magic)
	read(&version)
	if err != nil {
		return
	}
	if magic != codecMagic {
		return fmt.Errorf("not an encoded BlockMesh")
	}
	if version != codecVersion {
		return fmt.Errorf("unsupported BlockMesh encoding version %d", version)
	}
	read(&beta)
	read(&nIw)
	read(&nBlocks)
	for i := uint32(0); i < nBlocks && err == nil; i++ {
		read(&nameLen)
		name := make([]byte, nameLen)
		read(name)
		read(&size)
		structure = append(structure, BlockSpec{Name: string(name), Size: int(size)})
	}
	if err != nil {
		return
	}
	if decoded, err = New(structure, Mesh{Beta: beta, NIw: int(nIw)}); err != nil {
		return
	}
	for _, b := range decoded.blocks {
		read(b.Data)
	}
	if err != nil {
		return
	}
	if rd.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after BlockMesh", rd.Len())
	}
	*bm = *decoded
	return
}

var matrixMagic = [4]byte{'B', 'M', 'A', 'T'}

// MarshalBinary encodes the block order, the block sizes and the row-major
// data of every block.
func (bm *BlockMatrix) MarshalBinary() (data []byte, err error) {
	var (
		buf = &bytes.Buffer{}
		le  = binary.LittleEndian
		s   Structure
	)
	if s, err = bm.Structure(); err != nil {
		return
	}
	write := func(v any) {
		if err == nil {
			err = binary.Write(buf, le, v)
		}
	}
	write(matrixMagic)
	write(codecVersion)
	write(uint32(len(s)))
	for _, b := range s {
		write(uint32(len(b.Name)))
		write([]byte(b.Name))
		write(uint32(b.Size))
		write(utils.CData(utils.CCopy(bm.blocks[b.Name])))
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (bm *BlockMatrix) UnmarshalBinary(data []byte) (err error) {
	var (
		rd      = bytes.NewReader(data)
		le      = binary.LittleEndian
		magic   [4]byte
		version uint32
		nBlocks uint32
		nameLen uint32
		size    uint32
		decoded = NewBlockMatrix()
	)
	read := func(v any) {
		if err == nil {
			err = binary.Read(rd, le, v)
		}
	}
	read(&magic)
	read(&version)
	if err != nil {
		return
	}
	if magic != matrixMagic {
		return fmt.Errorf("not an encoded BlockMatrix")
	}
	if version != codecVersion {
		return fmt.Errorf("unsupported BlockMatrix encoding version %d", version)
	}
	read(&nBlocks)
	for i := uint32(0); i < nBlocks && err == nil; i++ {
		read(&nameLen)
		name := make([]byte, nameLen)
		read(name)
		read(&size)
		if err != nil {
			break
		}
		vals := make([]complex128, int(size)*int(size))
		read(vals)
		decoded.Put(string(name), utils.NewCMatrix(int(size), int(size), vals))
	}
	if err != nil {
		return
	}
	if rd.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after BlockMatrix", rd.Len())
	}
	*bm = *decoded
	return
}
