package completion

import (
	"math"

	"github.com/spf13/cast"
)

// UnitInterval coerces a model-supplied score into [0,1]. Missing or
// non-numeric values become 0.5.
func UnitInterval(v any) float64 {
	if v == nil {
		return 0.5
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0.5
	}
	return math.Max(0, math.Min(1, f))
}
