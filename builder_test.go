package lava

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lava-rt/lava/dtype"
)

type noopModel struct{}

func (noopModel) RunSpk(ProcessContext) error      { return nil }
func (noopModel) PreGuard(ProcessContext) bool     { return false }
func (noopModel) RunPreMgmt(ProcessContext) error  { return nil }
func (noopModel) LrnGuard(ProcessContext) bool     { return false }
func (noopModel) RunLrn(ProcessContext) error      { return nil }
func (noopModel) PostGuard(ProcessContext) bool    { return false }
func (noopModel) RunPostMgmt(ProcessContext) error { return nil }

func TestBuilderBuildAssignsServiceAndVar(t *testing.T) {
	b := NewBuilder()
	b.AddProcess("noop", "p1", "svc1", func() ProcessModel { return noopModel{} })
	b.AddVar(1, "v", "svc1", "p1", []int{1}, 0, dtype.Float64, false)

	exec, err := b.Build()
	assert.NoError(t, err)
	assert.Len(t, exec.ServiceBuilders, 1)
	assert.Equal(t, "svc1", exec.ServiceBuilders[0].ServiceID)
	assert.Equal(t, []string{"p1"}, exec.ServiceBuilders[0].ProcessIDs)
	assert.Contains(t, exec.NodeConfig.ExecVars, uint64(1))
}

func TestBuilderAddProcessGroupsByService(t *testing.T) {
	b := NewBuilder()
	b.AddProcess("noop", "p1", "svc1", func() ProcessModel { return noopModel{} })
	b.AddProcess("noop", "p2", "svc1", func() ProcessModel { return noopModel{} })

	exec, err := b.Build()
	assert.NoError(t, err)
	assert.Len(t, exec.ServiceBuilders, 1)
	assert.ElementsMatch(t, []string{"p1", "p2"}, exec.ServiceBuilders[0].ProcessIDs)
}

func TestNodeConfigValidateRejectsEmptyServices(t *testing.T) {
	var nc NodeConfig
	assert.ErrorIs(t, nc.validate(), ErrConfig)
}

func TestNodeConfigValidateRejectsDualOwnership(t *testing.T) {
	nc := NodeConfig{
		Services: []ServiceBuilder{
			{ServiceID: "svcA", ProcessIDs: []string{"p1"}},
			{ServiceID: "svcB", ProcessIDs: []string{"p1"}},
		},
	}
	assert.ErrorIs(t, nc.validate(), ErrConfig)
}

func TestNodeConfigValidateRejectsEmptyServiceID(t *testing.T) {
	nc := NodeConfig{
		Services: []ServiceBuilder{{ServiceID: "", ProcessIDs: []string{"p1"}}},
	}
	assert.ErrorIs(t, nc.validate(), ErrConfig)
}

func TestNodeConfigValidateRejectsUnknownProcessParent(t *testing.T) {
	nc := NodeConfig{
		Services:       []ServiceBuilder{{ServiceID: "svc1", ProcessIDs: []string{"p1"}}},
		ProcessParents: map[string]string{"p1": "ghost"},
	}
	assert.ErrorIs(t, nc.validate(), errParentNotFound)
}

func TestNodeConfigValidateAcceptsKnownProcessParent(t *testing.T) {
	nc := NodeConfig{
		Services:       []ServiceBuilder{{ServiceID: "svc1", ProcessIDs: []string{"p1", "p2"}}},
		ProcessParents: map[string]string{"p2": "p1"},
	}
	assert.NoError(t, nc.validate())
}

func TestBuilderAddProcessParentAndVarPort(t *testing.T) {
	b := NewBuilder()
	b.AddProcess("noop", "p1", "svc1", func() ProcessModel { return noopModel{} })
	b.AddProcess("noop", "p2", "svc1", func() ProcessModel { return noopModel{} })
	b.AddVar(1, "v", "svc1", "p1", []int{1}, 0, dtype.Float64, true)
	b.AddProcessParent("p2", "p1")
	b.AddVarPort("p1", "refport", 1, 8)

	exec, err := b.Build()
	assert.NoError(t, err)
	assert.Equal(t, "p1", exec.NodeConfig.ProcessParents["p2"])
	assert.Len(t, exec.VarPortBuilders, 1)
	assert.Equal(t, VarPortBuilder{ProcessID: "p1", PortName: "refport", VarID: 1, BufferSize: 8}, exec.VarPortBuilders[0])
}
