// Package dtype implements the deterministic numeric casting contract for
// Var traffic on the request/data channels: every scalar crosses the wire
// as a 64-bit float (per spec.md §4.3/§6), and is cast to the Var's declared
// storage type on arrival. The cast here is a saturating cast, not a Go
// type conversion, so that out-of-range values behave the same way on every
// platform instead of wrapping per Go's normal integer-overflow rules.
//
// github.com/spf13/cast (used elsewhere in this module for free-form
// Config coercion) has no notion of a declared numeric width or of
// saturation, so it cannot serve this concern; see DESIGN.md.
package dtype

import "math"

// Dtype identifies a Var's storage type.
type Dtype uint8

const (
	Int32 Dtype = iota
	Int64
	Float32
	Float64
	Bool
)

func (d Dtype) String() string {
	switch d {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// Cast saturates v into the representable range of d and returns the
// canonical float64 that a subsequent Cast of the same Dtype reproduces
// exactly. This is what makes get(set(v)) deterministic for every Dtype,
// and equal to v whenever v is already representable in d (Testable
// Property 3).
func (d Dtype) Cast(v float64) float64 {
	switch d {
	case Int32:
		return float64(saturate(v, math.MinInt32, math.MaxInt32))
	case Int64:
		// float64 cannot represent the full int64 range exactly; clamp to
		// the largest magnitude a float64 round-trips losslessly.
		return float64(saturate(v, math.MinInt64, math.Nextafter(math.MaxInt64, 0)))
	case Float32:
		return float64(float32(v))
	case Float64:
		return v
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	}
	return v
}

func saturate(v, lo, hi float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return int64(v)
}
