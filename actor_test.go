package lava

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lava-rt/lava/dtype"
	"github.com/lava-rt/lava/token"
)

type lifecycleModel struct {
	initCalled  bool
	closeCalled bool
}

func (m *lifecycleModel) Init(pc ProcessContext) error { m.initCalled = true; return nil }
func (m *lifecycleModel) Close() error                 { m.closeCalled = true; return nil }

func (m *lifecycleModel) RunSpk(ProcessContext) error     { return nil }
func (m *lifecycleModel) PreGuard(ProcessContext) bool    { return false }
func (m *lifecycleModel) RunPreMgmt(ProcessContext) error { return nil }
func (m *lifecycleModel) LrnGuard(ProcessContext) bool    { return false }
func (m *lifecycleModel) RunLrn(ProcessContext) error     { return nil }
func (m *lifecycleModel) PostGuard(ProcessContext) bool   { return false }
func (m *lifecycleModel) RunPostMgmt(ProcessContext) error { return nil }

func newTestActor(model ProcessModel, vars map[string]*Var) (*ProcessActor, controlChans, varChans) {
	control := newControlChans(4)
	reqdata := newVarChans(4)
	control.start()
	reqdata.start()
	a := newProcessActor("proc1", model, vars, NewConfig(nil), control, reqdata, nil, nil)
	return a, control, reqdata
}

func TestProcessActorInitAndCloseOnStopTeardown(t *testing.T) {
	model := &lifecycleModel{}
	a, control, _ := newTestActor(model, nil)

	go a.Start()
	control.control.Send(token.Stop)
	resp, ok := control.ack.Recv()
	assert.True(t, ok)
	assert.Equal(t, token.Terminated, resp)

	assert.True(t, model.initCalled)
	assert.True(t, model.closeCalled)
}

func TestProcessActorHandleVarRequestGetSet(t *testing.T) {
	v := NewVar([]int{2}, 0, true, dtype.Float64)
	vars := map[string]*Var{"v": v}
	model := &lifecycleModel{}
	a, _, _ := newTestActor(model, vars)
	a.varsByID[v.ID()] = v

	resp := a.handleVarRequest(VarRequest{Type: token.Set, VarID: v.ID(), Payload: []float64{4, 5}})
	assert.NoError(t, resp.Err)

	resp = a.handleVarRequest(VarRequest{Type: token.Get, VarID: v.ID()})
	assert.NoError(t, resp.Err)
	assert.Equal(t, []float64{4, 5}, resp.Payload)
}

func TestProcessActorHandleVarRequestIndexed(t *testing.T) {
	v := NewVar([]int{2}, 0, true, dtype.Float64)
	vars := map[string]*Var{"v": v}
	model := &lifecycleModel{}
	a, _, _ := newTestActor(model, vars)
	a.varsByID[v.ID()] = v

	resp := a.handleVarRequest(VarRequest{Type: token.Set, VarID: v.ID(), Idx: []int{1}, Payload: []float64{9}})
	assert.NoError(t, resp.Err)

	resp = a.handleVarRequest(VarRequest{Type: token.Get, VarID: v.ID(), Idx: []int{1}})
	assert.NoError(t, resp.Err)
	assert.Equal(t, []float64{9}, resp.Payload)
}

func TestProcessActorHandleVarRequestUnknownVar(t *testing.T) {
	model := &lifecycleModel{}
	a, _, _ := newTestActor(model, nil)

	resp := a.handleVarRequest(VarRequest{Type: token.Get, VarID: 999})
	assert.Error(t, resp.Err)
}

func TestProcessActorVarLookupByName(t *testing.T) {
	v := NewVar([]int{1}, 0, true, dtype.Float64)
	vars := map[string]*Var{"x": v}
	model := &lifecycleModel{}
	a, _, _ := newTestActor(model, vars)

	got, err := a.Var("x")
	assert.NoError(t, err)
	assert.Same(t, v, got)

	_, err = a.Var("missing")
	assert.Error(t, err)
}

// A bound VarPort actually services a SET followed by a GET against its
// backing Var, the reference-port shared-memory path (§3).
func TestProcessActorBindVarPortServicesGetSet(t *testing.T) {
	v := NewVar([]int{2}, 0, true, dtype.Float64)
	model := &lifecycleModel{}
	a, _, _ := newTestActor(model, nil)

	a.bindVarPort("refport", v, 4)
	vp := a.varPorts["refport"]
	vp.start()
	defer vp.join()

	vp.reqdata.request.Send(VarRequest{Type: token.Set, Payload: []float64{7, 8}})
	assert.True(t, vp.serviceOnce())
	_, ok := vp.reqdata.data.Recv()
	assert.True(t, ok)

	vp.reqdata.request.Send(VarRequest{Type: token.Get})
	assert.True(t, vp.serviceOnce())
	resp, ok := vp.reqdata.data.Recv()
	assert.True(t, ok)
	assert.Equal(t, []float64{7, 8}, resp.Payload)
}

func TestProcessActorUnrecognizedCommandFails(t *testing.T) {
	model := &lifecycleModel{}
	a, control, _ := newTestActor(model, nil)

	go a.Start()
	// Phase 99 is not a recognized phase id; the actor must fail with
	// TERMINATED rather than hang.
	control.control.Send(token.Command(99))
	resp, ok := control.ack.Recv()
	assert.True(t, ok)
	assert.Equal(t, token.Terminated, resp)
}
