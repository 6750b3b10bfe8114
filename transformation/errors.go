package transformation

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/notargets/gobethe/gf"
)

var (
	// ErrMapping matches every MappingError through errors.Is.
	ErrMapping = errors.New("reblock mapping error")
	// ErrDimension matches every DimensionError through errors.Is.
	ErrDimension = errors.New("dimension mismatch")
)

// MappingError reports a reblock map entry that is missing, points outside
// its block structure or collides with another entry.
type MappingError struct {
	Index  gf.Index
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping error at %v: %s", e.Index, e.Reason)
}

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// DimensionError reports a transform matrix whose shape disagrees with the
// block it acts on.
type DimensionError struct {
	Block      string
	BlockSize  int
	Rows, Cols int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("transform for block %q is %dx%d, block size is %d", e.Block, e.Rows, e.Cols, e.BlockSize)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimension }
