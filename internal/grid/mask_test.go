package grid

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidMask(t *testing.T) {
	frame := sparse.ZerosDense(2, 2, 2)
	frame.Elements[1] = math.NaN()  // cell (0,0), second level
	frame.Elements[6] = math.Inf(1) // cell (1,1) stays valid

	m := ValidMask(frame)
	assert.Equal(t, []bool{false, true, true, true}, m.Valid)
	assert.Equal(t, 3, m.Count())
}

func TestMaskApplyUsesNaN(t *testing.T) {
	c := &Coord{Name: "lon", Dims: []string{"x", "y"}, Values: sparse.ZerosDense(2, 2)}
	m := &Mask{NX: 2, NY: 2, Valid: []bool{true, false, true, true}}

	out, err := m.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Values.Elements[0])
	assert.True(t, math.IsNaN(out.Values.Elements[1]))
	assert.Equal(t, 0.0, c.Values.Elements[1], "source coordinate must stay untouched")

	_, err = (&Mask{NX: 3, NY: 2, Valid: make([]bool, 6)}).Apply(c)
	assert.Error(t, err)
}

func TestApplyMaskOnlyOnce(t *testing.T) {
	s, err := Normalize(testSeries(t, "x", "y", "time"), DefaultNames())
	require.NoError(t, err)

	f, err := s.Frame(0, MaskOnce)
	require.NoError(t, err)
	f.Data.Elements[0] = math.NaN()

	require.NoError(t, s.ApplyMask(ValidMask(f.Data)))
	assert.True(t, s.Masked())
	assert.True(t, math.IsNaN(s.Lon().Values.Elements[0]))
	assert.True(t, math.IsNaN(s.Lat().Values.Elements[0]))
	assert.Error(t, s.ApplyMask(ValidMask(f.Data)))
}

func TestParseMaskPolicy(t *testing.T) {
	p, err := ParseMaskPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MaskOnce, p)

	p, err = ParseMaskPolicy("per-frame")
	require.NoError(t, err)
	assert.Equal(t, MaskPerFrame, p)

	_, err = ParseMaskPolicy("sometimes")
	assert.Error(t, err)
}
