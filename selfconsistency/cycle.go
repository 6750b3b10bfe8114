// Package selfconsistency runs the DMFT loop on an assembled setup: lattice
// closure, Weiss field, impurity solver, self-energy mixing and archiving.
package selfconsistency

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/notargets/gobethe/bethe"
	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/hubbard"
	"github.com/notargets/gobethe/setups"
	"github.com/notargets/gobethe/storage"
	"github.com/notargets/gobethe/utils"
)

// Archive names of the loop quantities.
const (
	GLocName   = "g_loc_iw"
	GImpName   = "g_imp_iw"
	SEImpName  = "se_imp_iw"
	GWeissName = "g_weiss_iw"
)

type SolverInput struct {
	Loop           int
	HInt           hubbard.Handle
	G0             *gf.BlockMesh
	GlobalMoves    map[string]setups.Move
	QuantumNumbers []hubbard.QuantumNumber
}

type SolverOutput struct {
	GImp  *gf.BlockMesh
	SEImp *gf.BlockMesh
}

// Solver is the impurity solver. It owns its input, G0 is a copy.
type Solver interface {
	Solve(ctx context.Context, in SolverInput) (SolverOutput, error)
}

// LoopStats summarizes one completed loop.
type LoopStats struct {
	Loop    int
	DeltaSE float64 // max |Sigma_new - Sigma_old| after mixing
	Density float64 // total density of G_loc
	Flagged int     // closure and Dyson points flagged
}

type Cycle struct {
	In      setups.CycleInput
	Solver  Solver
	Archive storage.Archive
	// Mixing is the weight of the new impurity self-energy, 1 takes it as it
	// is.
	Mixing  float64
	Loop    int
	History []LoopStats
}

func New(in setups.CycleInput, solver Solver, archive storage.Archive) *Cycle {
	return &Cycle{In: in, Solver: solver, Archive: archive, Mixing: 1}
}

// Resume continues from the most recent completed loop in the archive,
// loading its impurity self-energy, Weiss field and chemical potential. It
// reports false for an empty archive.
func (c *Cycle) Resume() (resumed bool, err error) {
	var (
		completed int
		mu        *gf.BlockMatrix
		se        = &gf.BlockMesh{}
		g0        = &gf.BlockMesh{}
	)
	if completed, err = c.Archive.CompletedLoops(); err != nil || completed == 0 {
		return
	}
	if err = c.Archive.Load(SEImpName, -1, se); err != nil {
		return
	}
	if err = c.Archive.Load(GWeissName, -1, g0); err != nil {
		return
	}
	if mu, err = c.Archive.LoadMu(-1); err != nil {
		return
	}
	if err = c.In.SE.CopyFrom(se); err != nil {
		return false, errors.Wrap(err, "archived self-energy")
	}
	if err = c.In.G0.CopyFrom(g0); err != nil {
		return false, errors.Wrap(err, "archived weiss field")
	}
	c.In.Mu = mu
	c.Loop = completed
	utils.Logger().Info("resuming", zap.String("setup", c.In.Name), zap.Int("loop", c.Loop))
	return true, nil
}

// Run performs nLoops loops, stopping early when ctx is done.
func (c *Cycle) Run(ctx context.Context, nLoops int) (err error) {
	if c.Mixing <= 0 || c.Mixing > 1 {
		return errors.Errorf("mixing %g outside (0, 1]", c.Mixing)
	}
	for i := 0; i < nLoops; i++ {
		if err = ctx.Err(); err != nil {
			return
		}
		if err = c.step(ctx); err != nil {
			return errors.Wrapf(err, "loop %d", c.Loop)
		}
		c.Loop++
	}
	return
}

func (c *Cycle) step(ctx context.Context) (err error) {
	var (
		in       = c.In
		stats    = LoopStats{Loop: c.Loop}
		report   *bethe.Report
		out      SolverOutput
		previous *gf.BlockMesh
	)
	if report, err = in.GLoc.Calculate(ctx, in.SE.BlockMesh, in.Mu); err != nil {
		return
	}
	stats.Flagged += report.NFlagged()
	if report, err = in.G0.FromDyson(ctx, in.GLoc.BlockMesh, in.SE.BlockMesh); err != nil {
		return
	}
	stats.Flagged += report.NFlagged()
	out, err = c.Solver.Solve(ctx, SolverInput{
		Loop:           c.Loop,
		HInt:           in.HInt,
		G0:             in.G0.Copy(),
		GlobalMoves:    in.GlobalMoves,
		QuantumNumbers: in.QuantumNumbers,
	})
	if err != nil {
		return errors.Wrap(err, "impurity solver")
	}
	if out.GImp == nil || out.SEImp == nil {
		return errors.New("impurity solver returned no result")
	}
	if !out.GImp.SameStructure(in.GLoc.BlockMesh) || !out.SEImp.SameStructure(in.GLoc.BlockMesh) {
		return errors.Wrapf(gf.ErrStructure, "impurity solver result %s differs from %s",
			out.SEImp.Structure(), in.GLoc.Structure())
	}
	if out.GImp.HasNaN() || out.SEImp.HasNaN() {
		return errors.Errorf("impurity solver returned non-finite data at loop %d", c.Loop)
	}
	previous = in.SE.Copy()
	if err = in.SE.Mix(out.SEImp, c.Mixing); err != nil {
		return
	}
	if stats.DeltaSE, err = in.SE.MaxAbsDiff(previous); err != nil {
		return
	}
	stats.Density = in.GLoc.TotalDensity()
	if err = c.save(out); err != nil {
		return
	}
	c.History = append(c.History, stats)
	utils.Logger().Info("loop done",
		zap.String("setup", in.Name),
		zap.Int("loop", stats.Loop),
		zap.Float64("delta_se", stats.DeltaSE),
		zap.Float64("density", stats.Density),
		zap.Int("flagged", stats.Flagged))
	return
}

// save writes mu last so that a loop only counts as completed when all its
// quantities are in the archive.
func (c *Cycle) save(out SolverOutput) (err error) {
	if c.Archive == nil {
		return
	}
	for _, item := range []struct {
		name string
		bm   *gf.BlockMesh
	}{
		{GLocName, c.In.GLoc.BlockMesh},
		{GImpName, out.GImp},
		{SEImpName, out.SEImp},
		{GWeissName, c.In.G0.BlockMesh},
	} {
		if err = c.Archive.Save(item.name, c.Loop, item.bm); err != nil {
			return
		}
	}
	return c.Archive.Save(storage.MuName, c.Loop, c.In.Mu)
}
