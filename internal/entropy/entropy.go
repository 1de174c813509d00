// Package entropy turns a metrics colour triple into a scalar "entropy"
// score in [0,1] by evaluating a fixed two-qubit rotation circuit exactly on
// a state vector. The score is flavor text for the scan prompt; callers
// treat it as an opaque float.
package entropy

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/qrs-ai/roadscan/internal/metrics"
)

// Scorer maps a colour triple to a score in [0,1].
type Scorer interface {
	Score(rgb metrics.RGB) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(rgb metrics.RGB) float64

func (f ScorerFunc) Score(rgb metrics.RGB) float64 { return f(rgb) }

// Circuit is the default Scorer:
//
//	RX(aπ) q0, RY(bπ) q1, CNOT q0→q1, RZ(cπ) q1, RX((a+b+c)π/3) q0
//
// followed by ⟨Z0⟩, ⟨Z1⟩ squashed through a steep sigmoid.
type Circuit struct{}

func (Circuit) Score(rgb metrics.RGB) float64 {
	e0, e1 := Expectations(rgb)
	x := 0.65*(e0+1)/2 + 0.35*(e1+1)/2
	return 1 / (1 + math.Exp(-9*(x-0.5)))
}

// state is a two-qubit amplitude vector indexed by 2*q0 + q1.
type state [4]complex128

type gate [2][2]complex128

func rx(theta float64) gate {
	c, s := complex(math.Cos(theta/2), 0), complex(0, -math.Sin(theta/2))
	return gate{{c, s}, {s, c}}
}

func ry(theta float64) gate {
	c, s := complex(math.Cos(theta/2), 0), complex(math.Sin(theta/2), 0)
	return gate{{c, -s}, {s, c}}
}

func rz(theta float64) gate {
	return gate{{cmplx.Exp(complex(0, -theta/2)), 0}, {0, cmplx.Exp(complex(0, theta/2))}}
}

// apply applies g to wire w (0 or 1).
func (st state) apply(g gate, w int) state {
	var out state
	for i := range 4 {
		bit := (i >> (1 - w)) & 1
		partner := i ^ (1 << (1 - w))
		i0, i1 := i, partner
		if bit == 1 {
			i0, i1 = partner, i
		}
		out[i] = g[bit][0]*st[i0] + g[bit][1]*st[i1]
	}
	return out
}

// cnot flips q1 when q0 is set.
func (st state) cnot() state {
	return state{st[0], st[1], st[3], st[2]}
}

// Expectations evaluates the circuit and returns ⟨Z0⟩ and ⟨Z1⟩.
func Expectations(rgb metrics.RGB) (float64, float64) {
	a, b, c := rgb.R, rgb.G, rgb.B
	st := state{1, 0, 0, 0}
	st = st.apply(rx(a*math.Pi), 0)
	st = st.apply(ry(b*math.Pi), 1)
	st = st.cnot()
	st = st.apply(rz(c*math.Pi), 1)
	st = st.apply(rx((a+b+c)*math.Pi/3), 0)

	var z0, z1 float64
	for i, amp := range st {
		p := real(amp)*real(amp) + imag(amp)*imag(amp)
		if i&2 == 0 {
			z0 += p
		} else {
			z0 -= p
		}
		if i&1 == 0 {
			z1 += p
		} else {
			z1 -= p
		}
	}
	return z0, z1
}

// Summary labels a score for the prompt.
func Summary(score float64) string {
	switch {
	case score >= 0.78:
		return fmt.Sprintf("CHAOS RESONANCE %.3f", score)
	case score >= 0.55:
		return fmt.Sprintf("TURBULENT FIELD %.3f", score)
	default:
		return fmt.Sprintf("STABLE MANIFOLD %.3f", score)
	}
}
