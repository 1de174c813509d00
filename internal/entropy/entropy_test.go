package entropy

import (
	"math"
	"testing"

	"github.com/qrs-ai/roadscan/internal/metrics"
)

const eps = 1e-9

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-9*(x-0.5))) }

func TestExpectations(t *testing.T) {
	tests := []struct {
		name   string
		rgb    metrics.RGB
		e0, e1 float64
	}{
		// No rotation: |00⟩.
		{"identity", metrics.RGB{}, 1, 1},
		// RX(π) sends q0 to |1⟩, CNOT flips q1, the final RX(π/3) leaves
		// cos²(π/6) weight on q0=1.
		{"q0 flipped", metrics.RGB{R: 1}, -0.5, -1},
		// RY(π) flips q1 only; final RX(π/3) on q0 gives cos(π/3).
		{"q1 flipped", metrics.RGB{G: 1}, 0.5, -1},
	}
	for _, tt := range tests {
		e0, e1 := Expectations(tt.rgb)
		if math.Abs(e0-tt.e0) > eps || math.Abs(e1-tt.e1) > eps {
			t.Errorf("%s: Expectations = (%v, %v), want (%v, %v)", tt.name, e0, e1, tt.e0, tt.e1)
		}
	}
}

func TestCircuitScore(t *testing.T) {
	tests := []struct {
		rgb  metrics.RGB
		want float64
	}{
		{metrics.RGB{}, sigmoid(1)},
		{metrics.RGB{R: 1}, sigmoid(0.65 * 0.25)},
		{metrics.RGB{G: 1}, sigmoid(0.65 * 0.75)},
	}
	for _, tt := range tests {
		if got := (Circuit{}).Score(tt.rgb); math.Abs(got-tt.want) > eps {
			t.Errorf("Score(%+v) = %v, want %v", tt.rgb, got, tt.want)
		}
	}
}

func TestCircuitScoreInRange(t *testing.T) {
	for _, v := range []float64{0, 0.1, 0.33, 0.5, 0.77, 1} {
		rgb := metrics.RGB{R: v, G: 1 - v, B: v / 2}
		s := (Circuit{}).Score(rgb)
		if s < 0 || s > 1 {
			t.Errorf("Score(%+v) = %v out of [0,1]", rgb, s)
		}
		e0, e1 := Expectations(rgb)
		if math.Abs(e0) > 1+eps || math.Abs(e1) > 1+eps {
			t.Errorf("expectations out of range: %v %v", e0, e1)
		}
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, "CHAOS RESONANCE 0.900"},
		{0.78, "CHAOS RESONANCE 0.780"},
		{0.6, "TURBULENT FIELD 0.600"},
		{0.55, "TURBULENT FIELD 0.550"},
		{0.1234, "STABLE MANIFOLD 0.123"},
	}
	for _, tt := range tests {
		if got := Summary(tt.score); got != tt.want {
			t.Errorf("Summary(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScorerFunc(t *testing.T) {
	var s Scorer = ScorerFunc(func(metrics.RGB) float64 { return 0.42 })
	if s.Score(metrics.RGB{}) != 0.42 {
		t.Error("ScorerFunc did not forward")
	}
}
