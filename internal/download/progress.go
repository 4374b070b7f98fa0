package download

import "math"

// progressStep is the smallest forward movement worth reporting.
const progressStep = 0.005

// progressGate coalesces raw transfer progress. Emitted values are clamped to
// [0,1] and never decrease.
type progressGate struct {
	last    float64
	emitted bool
}

// observe returns the value to emit and whether to emit it.
func (g *progressGate) observe(raw float64) (float64, bool) {
	v := clamp(raw)
	if g.emitted && v <= g.last {
		return g.last, false
	}

	switch {
	case v >= 1:
	case !g.emitted && v > 0:
	case v-g.last >= progressStep:
	default:
		return g.last, false
	}

	g.last = v
	g.emitted = true
	return v, true
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
