package bethe

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

// SemicircleG is the Bethe lattice Green's function
// G = (z - sqrt(z^2 - 4t^2)) / 2t^2 on the causal branch, sign(Im G) =
// -sign(omega). t = 0 gives the atomic limit 1/z.
func SemicircleG(z complex128, t, omega float64) (g complex128) {
	if t == 0 {
		return 1 / z
	}
	var (
		t2 = complex(t*t, 0)
		s  = cmplx.Sqrt(z*z - 4*t2)
	)
	g = (z - s) / (2 * t2)
	if imag(g)*omega > 0 {
		g = (z + s) / (2 * t2)
	}
	return
}

// closure holds everything resolved before the frequency loop, it is read
// only while the loop runs.
type closure struct {
	g            *GLocal
	t2           complex128
	base         []*mat.CDense // mu - t_loc per block
	hops         [][]float64
	partner      []int
	eps, weights []float64
}

func finite(A *mat.CDense) bool {
	for _, v := range utils.CData(A) {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

func (cl *closure) solve(n int, se *gf.BlockMesh, report *Report) {
	var (
		s    = cl.g.Structure()
		iw   = cl.g.Mesh().IOmega(n)
		zeta = make([]*mat.CDense, len(s))
	)
	for i, b := range s {
		zeta[i] = utils.CCopy(cl.base[i])
		z := utils.CData(zeta[i])
		for k := 0; k < b.Size; k++ {
			z[k*b.Size+k] += iw
		}
		if se != nil {
			for k, v := range utils.CData(se.Matrix(b.Name, n)) {
				z[k] -= v
			}
		}
	}
	switch {
	case cl.eps != nil:
		cl.solveDOS(n, s, zeta, report)
	case cl.g.Policy == Diagonal || cl.g.Policy == Inhomogeneous:
		cl.solveDiagonal(n, s, zeta, report)
	default:
		cl.solveFixedPoint(n, s, zeta, report)
	}
}

func (cl *closure) warn(report *Report, name string, n int, cond float64, cause error) {
	report.flag(&SingularBlockWarning{
		Block: name,
		N:     n,
		Omega: cl.g.Mesh().Omega(n),
		Cond:  cond,
		Cause: cause,
	})
}

func (cl *closure) solveDiagonal(n int, s gf.Structure, zeta []*mat.CDense, report *Report) {
	var (
		w = cl.g.Mesh().Omega(n)
	)
	for i, b := range s {
		G := utils.NewCMatrix(b.Size, b.Size)
		for k := 0; k < b.Size; k++ {
			G.Set(k, k, SemicircleG(zeta[i].At(k, k), cl.hops[i][k], w))
		}
		if !finite(G) {
			cl.warn(report, b.Name, n, 0, ErrSingularBlock)
			continue
		}
		cl.g.SetMatrix(b.Name, n, G)
	}
}

func (cl *closure) solveDOS(n int, s gf.Structure, zeta []*mat.CDense, report *Report) {
	for i, b := range s {
		var (
			G       = utils.NewCMatrix(b.Size, b.Size)
			gd      = utils.CData(G)
			maxCond float64
			warn    error
		)
		if utils.CIsDiagonal(zeta[i], 0) {
			for k := 0; k < b.Size; k++ {
				z := zeta[i].At(k, k)
				var sum complex128
				for q, e := range cl.eps {
					sum += complex(cl.weights[q], 0) / (z - complex(e, 0))
				}
				G.Set(k, k, sum)
			}
		} else {
			for q, e := range cl.eps {
				A := utils.CCopy(zeta[i])
				for k := 0; k < b.Size; k++ {
					A.Set(k, k, A.At(k, k)-complex(e, 0))
				}
				R, cond, err := invert(A, cl.g.MaxCondition)
				maxCond = math.Max(maxCond, cond)
				if R == nil {
					warn = err
					break
				}
				if err != nil && warn == nil {
					warn = err
				}
				for k, v := range utils.CData(R) {
					gd[k] += complex(cl.weights[q], 0) * v
				}
			}
		}
		if warn != nil {
			cl.warn(report, b.Name, n, maxCond, warn)
		}
		if !finite(G) {
			if warn == nil {
				cl.warn(report, b.Name, n, maxCond, ErrSingularBlock)
			}
			continue
		}
		cl.g.SetMatrix(b.Name, n, G)
	}
}

// hybridization returns Delta for block i given the current iterate.
func (cl *closure) hybridization(i int, G []*mat.CDense) (D *mat.CDense) {
	var (
		src    = G[cl.partner[i]]
		nr, _  = src.Dims()
		half   = nr / 2
		sb     = cl.g.SpinBlock
		policy = cl.g.Policy
	)
	D = utils.NewCMatrix(nr, nr)
	for a := 0; a < nr; a++ {
		for b := 0; b < nr; b++ {
			v := cl.t2 * src.At(a, b)
			switch policy {
			case Nambu:
				if (a < half) != (b < half) {
					v = -v
				}
			case SpinSiteMerged:
				if a/sb != b/sb {
					v = 0
				}
			}
			D.Set(a, b, v)
		}
	}
	return
}

// solveFixedPoint iterates G <- (1-m) (zeta - Delta[G])^-1 + m G from the
// diagonal closed form. AFM couples the blocks of one frequency, so they
// iterate together; every other policy iterates block by block.
func (cl *closure) solveFixedPoint(n int, s gf.Structure, zeta []*mat.CDense, report *Report) {
	if cl.g.Policy == AFM {
		all := make([]int, len(s))
		for i := range all {
			all[i] = i
		}
		cl.iterate(n, s, zeta, all, report)
		return
	}
	for i := range s {
		cl.iterate(n, s, zeta, []int{i}, report)
	}
}

// iterate runs the fixed point for the blocks in set, which must be closed
// under cl.partner.
func (cl *closure) iterate(n int, s gf.Structure, zeta []*mat.CDense, set []int, report *Report) {
	var (
		w       = cl.g.Mesh().Omega(n)
		G       = make([]*mat.CDense, len(s))
		next    = make([]*mat.CDense, len(s))
		warns   = make([]error, len(s))
		conds   = make([]float64, len(s))
		maxIter = cl.g.MaxIter
		eps     = cl.g.Epsilon
		mix     = complex(cl.g.Mixing, 0)
		done    bool
	)
	if maxIter < 1 {
		maxIter = DefaultMaxIter
	}
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	for _, i := range set {
		size := s[i].Size
		G[i] = utils.NewCMatrix(size, size)
		for k := 0; k < size; k++ {
			G[i].Set(k, k, SemicircleG(zeta[i].At(k, k), cl.g.T, w))
		}
	}
	for it := 0; it < maxIter && !done; it++ {
		var diff float64
		for _, i := range set {
			A := utils.CCopy(zeta[i])
			ad := utils.CData(A)
			for k, v := range utils.CData(cl.hybridization(i, G)) {
				ad[k] -= v
			}
			R, cond, err := invert(A, cl.g.MaxCondition)
			if R == nil {
				// Unrecoverable at this frequency, previous values stay.
				for _, j := range set {
					cause := err
					if j != i {
						cause = ErrSingularBlock
					}
					cl.warn(report, s[j].Name, n, cond, cause)
				}
				return
			}
			warns[i], conds[i] = err, cond
			if mix != 0 {
				rd, gd := utils.CData(R), utils.CData(G[i])
				for k := range rd {
					rd[k] = (1-mix)*rd[k] + mix*gd[k]
				}
			}
			next[i] = R
			diff = math.Max(diff, utils.CMaxAbsDiff(R, G[i]))
		}
		G, next = next, G
		done = diff < eps
	}
	for _, i := range set {
		name := s[i].Name
		switch {
		case warns[i] != nil:
			cl.warn(report, name, n, conds[i], warns[i])
		case !done:
			cl.warn(report, name, n, conds[i], ErrNotConverged)
		}
		if finite(G[i]) {
			cl.g.SetMatrix(name, n, G[i])
		}
	}
}
