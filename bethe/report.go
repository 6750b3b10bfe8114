package bethe

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/notargets/gobethe/utils"
)

var (
	// ErrSingularBlock matches every SingularBlockWarning through errors.Is.
	ErrSingularBlock = errors.New("singular or ill-conditioned block")
	// ErrNotConverged is the cause recorded for closure points whose fixed
	// point iteration ran out of iterations.
	ErrNotConverged = errors.New("closure fixed point did not converge")
	// ErrTooManyFlagged is returned when the flagged fraction of a
	// calculation exceeds its tolerance.
	ErrTooManyFlagged = errors.New("too many flagged frequency points")
)

// SingularBlockWarning flags one (block, frequency) point whose inversion or
// closure solve failed or was ill-conditioned. The point keeps its last
// finite value.
type SingularBlockWarning struct {
	Block string
	N     int     // mesh index
	Omega float64 // Matsubara frequency at N
	Cond  float64 // 1-norm condition number, 0 when unknown
	Cause error
}

func (w *SingularBlockWarning) Error() string {
	return fmt.Sprintf("block %q at w_%d = %g (cond %.3e): %v", w.Block, w.N, w.Omega, w.Cond, w.Cause)
}

func (w *SingularBlockWarning) Is(target error) bool { return target == ErrSingularBlock }

func (w *SingularBlockWarning) Unwrap() error { return w.Cause }

// Report collects the flagged points of one per-frequency calculation. It is
// safe for concurrent use while the calculation runs.
type Report struct {
	Op      string
	Total   int // number of (block, frequency) points solved
	mu      sync.Mutex
	flagged []*SingularBlockWarning
}

func newReport(op string, total int) *Report {
	return &Report{Op: op, Total: total}
}

func (r *Report) flag(w *SingularBlockWarning) {
	r.mu.Lock()
	r.flagged = append(r.flagged, w)
	r.mu.Unlock()
}

// Flagged returns the warnings ordered by frequency then block.
func (r *Report) Flagged() []*SingularBlockWarning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]*SingularBlockWarning(nil), r.flagged...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N < out[j].N
		}
		return out[i].Block < out[j].Block
	})
	return out
}

func (r *Report) NFlagged() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flagged)
}

func (r *Report) FlaggedFraction() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.NFlagged()) / float64(r.Total)
}

// Err joins every warning, nil when nothing was flagged.
func (r *Report) Err() (err error) {
	for _, w := range r.Flagged() {
		err = multierr.Append(err, w)
	}
	return
}

// check logs the flagged points and fails when their fraction exceeds tol.
func (r *Report) check(tol float64) error {
	nf := r.NFlagged()
	if nf == 0 {
		return nil
	}
	log := utils.Logger()
	for _, w := range r.Flagged() {
		log.Debug("flagged frequency point",
			zap.String("op", r.Op),
			zap.String("block", w.Block),
			zap.Int("n", w.N),
			zap.Float64("omega", w.Omega),
			zap.Float64("cond", w.Cond),
			zap.Error(w.Cause))
	}
	log.Warn("frequency points flagged",
		zap.String("op", r.Op),
		zap.Int("flagged", nf),
		zap.Int("total", r.Total),
		zap.Float64("tolerance", tol))
	if r.FlaggedFraction() > tol {
		return multierr.Append(
			errors.Wrapf(ErrTooManyFlagged, "%s: %d of %d points flagged, tolerance %g", r.Op, nf, r.Total, tol),
			r.Err())
	}
	return nil
}
