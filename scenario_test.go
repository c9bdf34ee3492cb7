package lava_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	lava "github.com/lava-rt/lava"
	"github.com/lava-rt/lava/dtype"
)

// countingModel counts SPK invocations and optionally sleeps on each one,
// simulating a slow synchronization domain.
type countingModel struct {
	spkCount int64
	sleep    time.Duration
}

func (m *countingModel) RunSpk(lava.ProcessContext) error {
	atomic.AddInt64(&m.spkCount, 1)
	if m.sleep > 0 {
		time.Sleep(m.sleep)
	}
	return nil
}
func (m *countingModel) PreGuard(lava.ProcessContext) bool         { return false }
func (m *countingModel) RunPreMgmt(lava.ProcessContext) error      { return nil }
func (m *countingModel) LrnGuard(lava.ProcessContext) bool         { return false }
func (m *countingModel) RunLrn(lava.ProcessContext) error          { return nil }
func (m *countingModel) PostGuard(lava.ProcessContext) bool        { return false }
func (m *countingModel) RunPostMgmt(lava.ProcessContext) error     { return nil }

func (m *countingModel) count() int64 { return atomic.LoadInt64(&m.spkCount) }

// Two synchronization domains each run their own phase sequence
// independently: a slow domain's per-step latency does not throttle a
// fast domain's internal progress (no cross-domain lockstep).
func TestNoCrossDomainLockstep(t *testing.T) {
	slow := &countingModel{sleep: 20 * time.Millisecond}
	fast := &countingModel{}

	b := lava.NewBuilder()
	b.AddProcess("slow", "slowProc", "slowSvc", func() lava.ProcessModel { return slow })
	b.AddVar(1, "x", "slowSvc", "slowProc", []int{1}, 0, dtype.Float64, false)
	b.AddProcess("fast", "fastProc", "fastSvc", func() lava.ProcessModel { return fast })
	b.AddVar(2, "y", "fastSvc", "fastProc", []int{1}, 0, dtype.Float64, false)
	exec, err := b.Build()
	assert.NoError(t, err)

	c := lava.NewController(lava.NewConfig(nil))
	assert.NoError(t, c.Initialize(exec))
	assert.NoError(t, c.Start(lava.StepRun{NumSteps: 5, Blocking: false}))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(5), fast.count())
	assert.Less(t, slow.count(), int64(5))

	assert.NoError(t, c.Wait())
	assert.Equal(t, int64(5), slow.count())
	assert.Equal(t, int64(5), fast.count())

	assert.NoError(t, c.Stop())
}

// Checkpoint/Restore round-trips every shareable Var's value through a
// Store.
func TestCheckpointRestoreRoundTrip(t *testing.T) {
	model := &countingModel{}
	b := lava.NewBuilder()
	b.AddProcess("counting", "proc1", "svc1", func() lava.ProcessModel { return model })
	b.AddVar(1, "shared", "svc1", "proc1", []int{2}, 3, dtype.Float64, true)
	exec, err := b.Build()
	assert.NoError(t, err)

	c := lava.NewController(lava.NewConfig(nil))
	assert.NoError(t, c.Initialize(exec))
	assert.NoError(t, c.Start(lava.StepRun{NumSteps: 1, Blocking: true}))

	assert.NoError(t, c.SetVar(1, []float64{11, 22}))

	st := newFakeStore()
	assert.NoError(t, c.Checkpoint(st))

	assert.NoError(t, c.SetVar(1, []float64{0, 0}))
	assert.NoError(t, c.Restore(st))

	got, err := c.GetVar(1)
	assert.NoError(t, err)
	assert.Equal(t, []float64{11, 22}, got)

	assert.NoError(t, c.Stop())
}

// fakeStore is a minimal in-memory lava.Store for exercising
// Checkpoint/Restore without pulling in a real backend.
type fakeStore struct {
	mtx  sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{data: make(map[string][]byte)} }

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) Get(key []byte) ([]byte, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, lava.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStore) Set(key, value []byte) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.data[string(key)] = value
	return nil
}

func (s *fakeStore) Delete(key []byte) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *fakeStore) Range(from, to []byte, cb func(key, value []byte) error) error {
	return nil
}

func (s *fakeStore) RangePrefix(prefix []byte, cb func(key, value []byte) error) error {
	return nil
}

// scenarioALif1 is the upstream LIF in Scenario A: bias 4, threshold 10,
// no decay. Every SPK it accumulates bias into its Var and, on crossing
// threshold, resets to 0 and emits a unit spike on its data out port;
// otherwise it emits 0 so the downstream Dense actor always has exactly
// one token to consume per step.
type scenarioALif1 struct{}

func (m *scenarioALif1) RunSpk(pc lava.ProcessContext) error {
	v, err := pc.Var("v")
	if err != nil {
		return err
	}
	cur := v.Get()[0] + 4
	spike := 0.0
	if cur >= 10 {
		spike = 1
		cur = 0
	}
	v.Set([]float64{cur})

	out, err := pc.OutPort("spike_out")
	if err != nil {
		return err
	}
	out.Send([]float64{spike})
	return nil
}
func (m *scenarioALif1) PreGuard(lava.ProcessContext) bool         { return false }
func (m *scenarioALif1) RunPreMgmt(lava.ProcessContext) error      { return nil }
func (m *scenarioALif1) LrnGuard(lava.ProcessContext) bool         { return false }
func (m *scenarioALif1) RunLrn(lava.ProcessContext) error          { return nil }
func (m *scenarioALif1) PostGuard(lava.ProcessContext) bool        { return false }
func (m *scenarioALif1) RunPostMgmt(lava.ProcessContext) error     { return nil }

// scenarioADense multiplies whatever arrives on its in port by weight and
// forwards it downstream in PRE_MGMT, after the phase barrier guarantees
// the upstream SPK send already queued.
type scenarioADense struct {
	weight float64
}

func (m *scenarioADense) RunSpk(lava.ProcessContext) error { return nil }
func (m *scenarioADense) PreGuard(lava.ProcessContext) bool { return true }
func (m *scenarioADense) RunPreMgmt(pc lava.ProcessContext) error {
	in, err := pc.InPort("spike_in")
	if err != nil {
		return err
	}
	spike, ok := in.Recv()
	if !ok {
		return nil
	}

	out, err := pc.OutPort("weighted_out")
	if err != nil {
		return err
	}
	out.Send([]float64{spike[0] * m.weight})
	return nil
}
func (m *scenarioADense) LrnGuard(lava.ProcessContext) bool     { return false }
func (m *scenarioADense) RunLrn(lava.ProcessContext) error      { return nil }
func (m *scenarioADense) PostGuard(lava.ProcessContext) bool    { return false }
func (m *scenarioADense) RunPostMgmt(lava.ProcessContext) error { return nil }

// scenarioALif3 is the downstream LIF: bias 4, decay 1 (no leak),
// threshold 1000 (never crosses). It accumulates bias in SPK and adds
// whatever the Dense actor forwarded in PRE_MGMT.
type scenarioALif3 struct {
	decay float64
	bias  float64
}

func (m *scenarioALif3) RunSpk(pc lava.ProcessContext) error {
	v, err := pc.Var("v")
	if err != nil {
		return err
	}
	v.Set([]float64{v.Get()[0]*m.decay + m.bias})
	return nil
}
func (m *scenarioALif3) PreGuard(lava.ProcessContext) bool { return true }
func (m *scenarioALif3) RunPreMgmt(pc lava.ProcessContext) error {
	in, err := pc.InPort("weighted_in")
	if err != nil {
		return err
	}
	val, ok := in.Recv()
	if !ok {
		return nil
	}

	v, err := pc.Var("v")
	if err != nil {
		return err
	}
	v.Set([]float64{v.Get()[0] + val[0]})
	return nil
}
func (m *scenarioALif3) LrnGuard(lava.ProcessContext) bool     { return false }
func (m *scenarioALif3) RunLrn(lava.ProcessContext) error      { return nil }
func (m *scenarioALif3) PostGuard(lava.ProcessContext) bool    { return false }
func (m *scenarioALif3) RunPostMgmt(lava.ProcessContext) error { return nil }

// Scenario A (LIF -> Dense -> LIF): three actors in one sync domain
// wired by two Process-to-Process data channels. After 3 steps, the
// upstream LIF has spiked once and reset to 0; the downstream LIF has
// accumulated its own bias plus the one Dense-propagated spike.
func TestScenarioALIFDenseLIF(t *testing.T) {
	actor1 := &scenarioALif1{}
	dense := &scenarioADense{weight: 2}
	actor3 := &scenarioALif3{decay: 1, bias: 4}

	b := lava.NewBuilder()
	b.AddProcess("lif1", "actor1", "svc1", func() lava.ProcessModel { return actor1 })
	b.AddVar(1, "v", "svc1", "actor1", []int{1}, 0, dtype.Float64, true)
	b.AddProcess("dense", "actor2", "svc1", func() lava.ProcessModel { return dense })
	b.AddProcess("lif3", "actor3", "svc1", func() lava.ProcessModel { return actor3 })
	b.AddVar(2, "v", "svc1", "actor3", []int{1}, 0, dtype.Float64, true)

	b.AddDataChannel("actor1", "spike_out", "actor2", "spike_in", 4)
	b.AddDataChannel("actor2", "weighted_out", "actor3", "weighted_in", 4)

	exec, err := b.Build()
	assert.NoError(t, err)

	c := lava.NewController(lava.NewConfig(nil))
	assert.NoError(t, c.Initialize(exec))
	assert.NoError(t, c.Start(lava.StepRun{NumSteps: 3, Blocking: true}))

	v1, err := c.GetVar(1)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0}, v1)

	v3, err := c.GetVar(2)
	assert.NoError(t, err)
	assert.Equal(t, []float64{14}, v3)

	assert.NoError(t, c.Stop())
}

// Scenario E (alias): a composite process exposes an alias of a
// sub-process Var. get/set on the parent Var mutate the sub-process
// Var's storage exactly, once the declared process hierarchy makes the
// sub-process a strict sub-process of the parent.
func TestScenarioEAliasDelegatesToSubProcessVar(t *testing.T) {
	model := &countingModel{}

	b := lava.NewBuilder()
	b.AddProcess("countingChild", "childProc", "svc1", func() lava.ProcessModel { return model })
	b.AddVar(1, "inner", "svc1", "childProc", []int{2}, 0, dtype.Float64, true)
	b.AddProcess("countingParent", "parentProc", "svc1", func() lava.ProcessModel { return &countingModel{} })
	b.AddProcessParent("childProc", "parentProc")
	b.AddVarAlias(2, "alias", "svc1", "parentProc", []int{2}, dtype.Float64, true, 1)

	exec, err := b.Build()
	assert.NoError(t, err)

	c := lava.NewController(lava.NewConfig(nil))
	assert.NoError(t, c.Initialize(exec))
	assert.NoError(t, c.Start(lava.StepRun{NumSteps: 1, Blocking: true}))

	assert.NoError(t, c.SetVar(2, []float64{9, 10}))

	got, err := c.GetVar(1)
	assert.NoError(t, err)
	assert.Equal(t, []float64{9, 10}, got)

	got, err = c.GetVar(2)
	assert.NoError(t, err)
	assert.Equal(t, []float64{9, 10}, got)

	assert.NoError(t, c.Stop())
}

// Aliasing to a Var whose owner is not a strict sub-process of the
// alias's own owner must fail Controller.Initialize with AliasError
// rather than silently binding.
func TestScenarioEAliasRejectsNonSubProcessTarget(t *testing.T) {
	model := &countingModel{}

	b := lava.NewBuilder()
	b.AddProcess("counting", "unrelatedProc", "svc1", func() lava.ProcessModel { return model })
	b.AddVar(1, "inner", "svc1", "unrelatedProc", []int{2}, 0, dtype.Float64, true)
	b.AddVarAlias(2, "alias", "svc1", "parentProc", []int{2}, dtype.Float64, true, 1)

	exec, err := b.Build()
	assert.NoError(t, err)

	c := lava.NewController(lava.NewConfig(nil))
	err = c.Initialize(exec)
	assert.ErrorIs(t, err, lava.ErrAlias)
}
