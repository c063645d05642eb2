package marketstate

import (
	"math"
	"testing"
)

func TestSharesFromPrice(t *testing.T) {
	tests := []struct {
		name string
		b    float64
		p    float64
		want float64
	}{
		{name: "even_odds", b: 20000, p: 0.50, want: 0},
		{name: "sixty_forty", b: 20000, p: 0.60, want: 20000 * math.Log(0.60/0.40)},
		{name: "longshot", b: 10000, p: 0.05, want: 10000 * math.Log(0.05 / 0.95)},
		{name: "at_floor", b: 20000, p: 0.01, want: 0},
		{name: "below_floor", b: 20000, p: 0.005, want: 0},
		{name: "at_ceiling", b: 20000, p: 0.99, want: 0},
		{name: "above_ceiling", b: 20000, p: 0.999, want: 0},
		{name: "zero", b: 20000, p: 0, want: 0},
		{name: "one", b: 20000, p: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SharesFromPrice(tt.b, tt.p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SharesFromPrice(%v, %v) = %v, want %v", tt.b, tt.p, got, tt.want)
			}
		})
	}
}

func TestSharesFromPrice_RoundTrips(t *testing.T) {
	// Inside the boundaries the inversion must agree with the forward model
	b := 20000.0
	for _, p := range []float64{0.02, 0.25, 0.50, 0.62, 0.98} {
		q := SharesFromPrice(b, p)
		back := ImpliedProbability(b, q, 0)
		if math.Abs(back-p) > 1e-9 {
			t.Errorf("round trip at p=%v: got %v", p, back)
		}
	}
}

func TestImpliedProbability(t *testing.T) {
	if got := ImpliedProbability(20000, 0, 0); got != 0.5 {
		t.Errorf("ImpliedProbability(b, 0, 0) = %v, want 0.5", got)
	}

	// Non-positive liquidity degrades to even odds rather than dividing by zero
	if got := ImpliedProbability(0, 100, 50); got != 0.5 {
		t.Errorf("ImpliedProbability(0, ...) = %v, want 0.5", got)
	}

	// More YES shares than NO shares implies p > 0.5
	if got := ImpliedProbability(20000, 5000, 0); got <= 0.5 {
		t.Errorf("ImpliedProbability with qYes > qNo = %v, want > 0.5", got)
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: -0.1, want: 0},
		{in: 0, want: 0},
		{in: 0.5, want: 0.5},
		{in: 1, want: 1},
		{in: 1.2, want: 1},
	}

	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
