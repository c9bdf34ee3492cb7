package dtype

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCastSaturatesInt32(t *testing.T) {
	assert.Equal(t, float64(math.MaxInt32), Int32.Cast(1e18))
	assert.Equal(t, float64(math.MinInt32), Int32.Cast(-1e18))
	assert.Equal(t, float64(42), Int32.Cast(42.9))
}

func TestCastSaturatesInt64(t *testing.T) {
	assert.Equal(t, float64(math.MinInt64), Int64.Cast(-1e30))
	assert.Equal(t, float64(7), Int64.Cast(7.4))
}

func TestCastNaNSaturatesToZero(t *testing.T) {
	assert.Equal(t, float64(0), Int32.Cast(math.NaN()))
}

func TestCastFloat32TruncatesPrecision(t *testing.T) {
	v := 0.1
	assert.Equal(t, float64(float32(v)), Float32.Cast(v))
	assert.NotEqual(t, v, Float32.Cast(v))
}

func TestCastFloat64IsIdentity(t *testing.T) {
	assert.Equal(t, 3.14159, Float64.Cast(3.14159))
}

func TestCastBoolNormalizes(t *testing.T) {
	assert.Equal(t, float64(1), Bool.Cast(5))
	assert.Equal(t, float64(1), Bool.Cast(-5))
	assert.Equal(t, float64(0), Bool.Cast(0))
}

func TestDtypeString(t *testing.T) {
	assert.Equal(t, "int32", Int32.String())
	assert.Equal(t, "int64", Int64.String())
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "float64", Float64.String())
	assert.Equal(t, "bool", Bool.String())
	assert.Equal(t, "unknown", Dtype(255).String())
}

// get(set(v)) round trips deterministically for every Dtype once v is
// already within the dtype's representable range (Testable Property 3).
func TestCastRoundTripsWithinRange(t *testing.T) {
	cases := []struct {
		d Dtype
		v float64
	}{
		{Int32, 100},
		{Int64, -250},
		{Float32, 1.5},
		{Float64, 2.718281828},
		{Bool, 1},
	}
	for _, c := range cases {
		once := c.d.Cast(c.v)
		twice := c.d.Cast(once)
		assert.Equal(t, once, twice)
	}
}
