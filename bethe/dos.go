package bethe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
)

type DOSKind uint8

const (
	// Semicircle is the Bethe lattice density of states with half bandwidth
	// 2t.
	Semicircle DOSKind = iota
	// Gaussian is the infinite dimensional hypercubic density of states
	// exp(-e^2/t^2)/(sqrt(pi) t).
	Gaussian
)

func (k DOSKind) String() string {
	switch k {
	case Semicircle:
		return "semicircle"
	case Gaussian:
		return "gaussian"
	}
	return fmt.Sprintf("DOSKind(%d)", uint8(k))
}

// DOS replaces the analytic closure by G = sum_k w_k rho(e_k) (zeta - e_k)^-1
// on NPoints Gauss-Legendre nodes inside [W1, W2].
type DOS struct {
	Kind    DOSKind
	W1, W2  float64
	NPoints int
}

// DefaultWindow returns the integration window used when W1 == W2.
func (d DOS) DefaultWindow(t float64) (w1, w2 float64) {
	t = math.Abs(t)
	switch d.Kind {
	case Gaussian:
		return -6 * t, 6 * t
	default:
		return -2 * t, 2 * t
	}
}

func (d DOS) rho(t float64) func(e float64) float64 {
	t = math.Abs(t)
	switch d.Kind {
	case Gaussian:
		return func(e float64) float64 {
			return math.Exp(-e*e/(t*t)) / (math.Sqrt(math.Pi) * t)
		}
	default:
		return func(e float64) float64 {
			r := 4*t*t - e*e
			if r <= 0 {
				return 0
			}
			return math.Sqrt(r) / (2 * math.Pi * t * t)
		}
	}
}

// nodes returns quadrature energies and weights. The weights carry rho and
// are normalized to unit spectral weight inside the window.
func (d DOS) nodes(t float64) (eps, weights []float64, err error) {
	var (
		w1, w2 = d.W1, d.W2
		rho    = d.rho(t)
	)
	if t == 0 {
		err = fmt.Errorf("%s density of states needs a non-zero hopping", d.Kind)
		return
	}
	if d.NPoints < 1 {
		err = fmt.Errorf("%s density of states needs at least one quadrature point, have %d", d.Kind, d.NPoints)
		return
	}
	if w1 == w2 {
		w1, w2 = d.DefaultWindow(t)
	}
	if w1 > w2 {
		w1, w2 = w2, w1
	}
	eps = make([]float64, d.NPoints)
	weights = make([]float64, d.NPoints)
	quad.Legendre{}.FixedLocations(eps, weights, w1, w2)
	for k, e := range eps {
		weights[k] *= rho(e)
	}
	norm := floats.Sum(weights)
	if norm <= 0 {
		err = fmt.Errorf("%s density of states has no weight inside [%g, %g]", d.Kind, w1, w2)
		return
	}
	floats.Scale(1/norm, weights)
	return
}

// Weight integrates the density of states over the window, a measure of how
// much spectral weight the truncation discards.
func (d DOS) Weight(t float64) float64 {
	var (
		w1, w2 = d.W1, d.W2
		n      = d.NPoints
	)
	if w1 == w2 {
		w1, w2 = d.DefaultWindow(t)
	}
	if n < 1 {
		n = 1
	}
	return quad.Fixed(d.rho(t), w1, w2, n, quad.Legendre{}, 0)
}
