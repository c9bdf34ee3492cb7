package lava

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortGraphConnectOutToIn(t *testing.T) {
	g := NewPortGraph()
	assert.NoError(t, g.AddPort("p1.out", OutPort, []int{1}, "p1"))
	assert.NoError(t, g.AddPort("p2.in", InPort, []int{1}, "p2"))
	assert.NoError(t, g.Connect("p1.out", "p2.in"))
}

func TestPortGraphRejectsInvalidKindPair(t *testing.T) {
	g := NewPortGraph()
	assert.NoError(t, g.AddPort("p1.out", OutPort, []int{1}, "p1"))
	assert.NoError(t, g.AddPort("p2.ref", RefPort, []int{1}, "p2"))
	assert.Error(t, g.Connect("p1.out", "p2.ref"))
}

func TestPortGraphRejectsDuplicateEdge(t *testing.T) {
	g := NewPortGraph()
	assert.NoError(t, g.AddPort("p1.out", OutPort, []int{1}, "p1"))
	assert.NoError(t, g.AddPort("p2.in", InPort, []int{1}, "p2"))
	assert.NoError(t, g.Connect("p1.out", "p2.in"))
	assert.ErrorIs(t, g.Connect("p1.out", "p2.in"), ErrDuplicateConnection)
}

func TestPortGraphRejectsCycle(t *testing.T) {
	g := NewPortGraph()
	assert.NoError(t, g.AddPort("a.ref", RefPort, []int{1}, "a"))
	assert.NoError(t, g.AddPort("b.ref", RefPort, []int{1}, "b"))

	assert.NoError(t, g.Connect("a.ref", "b.ref"))
	assert.Error(t, g.Connect("b.ref", "a.ref"))
}

func TestPortGraphRejectsDuplicatePortName(t *testing.T) {
	g := NewPortGraph()
	assert.NoError(t, g.AddPort("p1.out", OutPort, []int{1}, "p1"))
	assert.Error(t, g.AddPort("p1.out", OutPort, []int{1}, "p1"))
}

func TestPortGraphRejectsEmptyName(t *testing.T) {
	g := NewPortGraph()
	assert.Error(t, g.AddPort("", OutPort, []int{1}, "p1"))
}

func TestPortKindString(t *testing.T) {
	assert.Equal(t, "InPort", InPort.String())
	assert.Equal(t, "OutPort", OutPort.String())
	assert.Equal(t, "RefPort", RefPort.String())
	assert.Equal(t, "VarPort", VarPort.String())
}
