// Package storage archives the quantities of every self-consistency loop.
// A loop counts as completed once its chemical potential has been saved,
// which the cycle does last.
package storage

import (
	"encoding"
	"fmt"

	"github.com/pkg/errors"

	"github.com/notargets/gobethe/gf"
)

const MuName = "mu"

var (
	ErrNotFound = errors.New("not found in archive")
)

// Archive stores encoded loop quantities by name and loop number.
type Archive interface {
	Save(name string, loop int, v encoding.BinaryMarshaler) error
	// Load decodes name from the loop selected by offset. A non-negative
	// offset is a loop number, -1 is the most recent completed loop, -2 the
	// one before and so on.
	Load(name string, offset int, into encoding.BinaryUnmarshaler) error
	LoadMu(offset int) (*gf.BlockMatrix, error)
	CompletedLoops() (int, error)
	Close() error
}

func key(loop int, name string) []byte {
	return []byte(fmt.Sprintf("loop/%06d/%s", loop, name))
}

// resolve turns an offset into a loop number given the completed loops.
func resolve(offset, completed int) (loop int, err error) {
	loop = offset
	if offset < 0 {
		loop = completed + offset
	}
	if loop < 0 || (offset < 0 && loop >= completed) {
		return 0, errors.Wrapf(ErrNotFound, "offset %d with %d completed loops", offset, completed)
	}
	return
}

func load(a Archive, get func([]byte) ([]byte, error), name string, offset int,
	into encoding.BinaryUnmarshaler) (err error) {
	var (
		completed, loop int
		data            []byte
	)
	if completed, err = a.CompletedLoops(); err != nil {
		return
	}
	if loop, err = resolve(offset, completed); err != nil {
		return
	}
	if data, err = get(key(loop, name)); err != nil {
		return errors.Wrapf(err, "%s of loop %d", name, loop)
	}
	return errors.Wrapf(into.UnmarshalBinary(data), "decoding %s of loop %d", name, loop)
}

func loadMu(a Archive, offset int) (mu *gf.BlockMatrix, err error) {
	mu = gf.NewBlockMatrix()
	if err = a.Load(MuName, offset, mu); err != nil {
		return nil, err
	}
	return
}
