package lava

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import (
	"sync"

	"github.com/lava-rt/lava/log"
	"github.com/lava-rt/lava/token"
)

// State is the Controller's position in its lifecycle state machine
// (§4.1). Transitions are monotonic except running<->paused.
type State int32

const (
	Uninitialized State = iota
	Initialized
	Started
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Started:
		return "started"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "invalid"
}

// Controller is the single orchestrator of a runtime execution (§4.1):
// it accepts start/run/pause/stop, broadcasts phase-run commands to every
// Runtime Service, and performs get/set on variables when not running.
type Controller struct {
	mtx    sync.Mutex
	state  State
	config Config
	logger log.Logger

	registry *Registry
	execVars map[uint64]ExecVar

	services   map[string]*Service
	svcUp      map[string]controlChans // controller-owned side
	svcVarUp   map[string]varChans     // controller-owned side
	serviceIDs []string

	currentTS    uint64
	pendingSteps uint32 // NumSteps of the last non-blocking StepRun, added by Wait

	storeBackend Store
}

// NewController returns a fresh, uninitialized Controller. cfg may be
// the zero Config, in which case every tunable falls back to its
// package default.
func NewController(cfg Config) *Controller {
	return &Controller{
		config:   cfg,
		logger:   log.New("controller", true),
		registry: NewRegistry(),
	}
}

// ServiceEndpoint is the Controller-owned side of one control/ack and
// request/data channel pair to a Runtime Service. InitializeWithServices
// uses this to splice in a hand-built or scripted Service (such as
// mock.Service) in place of one spawned from a real Executable, e.g. for
// exercising the Controller's ProtocolError handling.
type ServiceEndpoint struct {
	Control *Chan[token.Command]
	Ack     *Chan[token.Response]
	Request *Chan[VarRequest]
	Data    *Chan[VarResponse]
}

// InitializeWithServices wires the Controller directly to a set of
// already-running service endpoints, bypassing Executable compilation
// and actor/Service spawning entirely. Intended for tests that need to
// control exactly what a "Service" replies with.
func (c *Controller) InitializeWithServices(endpoints map[string]ServiceEndpoint) (err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.state != Uninitialized {
		return wrapf(ErrConfig, "controller already initialized")
	}

	c.execVars = make(map[uint64]ExecVar)
	c.svcUp = make(map[string]controlChans)
	c.svcVarUp = make(map[string]varChans)

	for id, ep := range endpoints {
		ep.Control.Start()
		ep.Ack.Start()
		ep.Request.Start()
		ep.Data.Start()

		c.svcUp[id] = controlChans{control: ep.Control, ack: ep.Ack}
		c.svcVarUp[id] = varChans{request: ep.Request, data: ep.Data}
		c.serviceIDs = append(c.serviceIDs, id)
	}

	c.state = Initialized
	return nil
}

// Initialize validates exec's NodeConfig, constructs the messaging
// substrate, spawns every Process Actor and Runtime Service as an
// independent goroutine, and starts every channel endpoint the
// Controller owns (§4.1). Legal only from Uninitialized.
func (c *Controller) Initialize(exec Executable) (err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.state != Uninitialized {
		return wrapf(ErrConfig, "controller already initialized")
	}

	if err = exec.NodeConfig.validate(); err != nil {
		return err
	}

	bufSize := c.config.BufferSize()
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	c.execVars = exec.NodeConfig.ExecVars
	c.services = make(map[string]*Service)
	c.svcUp = make(map[string]controlChans)
	c.svcVarUp = make(map[string]varChans)

	// Partition ExecVars per owning process, registering each Var under
	// its compiler-assigned id and recording its owner for alias
	// hierarchy checks.
	varsByProcess := make(map[string]map[string]*Var)
	for varID, ev := range exec.NodeConfig.ExecVars {
		v := NewVar(ev.Shape, ev.Init, ev.Shareable, ev.Dtype)
		v.SetOwner(ev.OwningProcessID)
		c.registry.RegisterWithID(varID, v)

		if varsByProcess[ev.OwningProcessID] == nil {
			varsByProcess[ev.OwningProcessID] = make(map[string]*Var)
		}
		name := ev.Name
		if name == "" {
			name = ev.OwningProcessID
		}
		varsByProcess[ev.OwningProcessID][name] = v
	}

	c.registry.SetHierarchy(exec.NodeConfig.ProcessParents)

	// Second pass: bind every declared alias now that every Var is
	// registered and owned, so Alias's strict-sub-process check has a
	// complete hierarchy to consult.
	for varID, ev := range exec.NodeConfig.ExecVars {
		if ev.AliasOf == 0 {
			continue
		}
		child, ok := c.registry.Lookup(varID)
		if !ok {
			return wrapf(ErrConfig, "alias var %d not registered", varID)
		}
		target, ok := c.registry.Lookup(ev.AliasOf)
		if !ok {
			return wrapf(ErrConfig, "alias target var %d not registered", ev.AliasOf)
		}
		if err = c.registry.Alias(child, target); err != nil {
			return err
		}
	}

	// Build every Process-to-Process data channel ahead of actor
	// construction, so each actor can be handed its bound in/out ports
	// at newProcessActor time (§3).
	outPortsByProcess := make(map[string]map[string]*Chan[[]float64])
	inPortsByProcess := make(map[string]map[string]*Chan[[]float64])
	for _, cb := range exec.DataChannelBuilders {
		size := cb.BufferSize
		if size == 0 {
			size = bufSize
		}
		ch := NewChan[[]float64](size)
		ch.Start()

		if outPortsByProcess[cb.FromProcess] == nil {
			outPortsByProcess[cb.FromProcess] = make(map[string]*Chan[[]float64])
		}
		outPortsByProcess[cb.FromProcess][cb.FromPort] = ch

		if inPortsByProcess[cb.ToProcess] == nil {
			inPortsByProcess[cb.ToProcess] = make(map[string]*Chan[[]float64])
		}
		inPortsByProcess[cb.ToProcess][cb.ToPort] = ch
	}

	// Group VarPort builders per owning process so they can be bound
	// onto each actor before it starts (bindVarPort must run before
	// Start snapshots varPorts into the ref-port worker pool).
	varPortsByProcess := make(map[string][]VarPortBuilder)
	for _, vpb := range exec.VarPortBuilders {
		v, ok := c.registry.Lookup(vpb.VarID)
		if !ok {
			return wrapf(ErrConfig, "var port %s references unregistered var %d", vpb.PortName, vpb.VarID)
		}
		if !v.Shareable() {
			return wrapf(ErrVarNotShareable, "var port %s on process %s", vpb.PortName, vpb.ProcessID)
		}
		varPortsByProcess[vpb.ProcessID] = append(varPortsByProcess[vpb.ProcessID], vpb)
	}

	for _, svcBuilder := range exec.ServiceBuilders {
		svcUpstream := newControlChans(bufSize)
		svcVarUpstream := newVarChans(bufSize)

		svc := newService(svcBuilder.ServiceID, svcUpstream, svcVarUpstream)

		for _, processID := range svcBuilder.ProcessIDs {
			kind, ok := exec.ProcessKind[processID]
			if !ok {
				return wrapf(ErrConfig, "process %s has no registered kind", processID)
			}
			pb, ok := exec.ProcessBuildersByKind[kind]
			if !ok {
				return wrapf(ErrConfig, "no process builder for kind %s", kind)
			}

			actorControl := newControlChans(bufSize)
			actorVars := newVarChans(bufSize)

			actor := newProcessActor(processID, pb(), varsByProcess[processID], c.config, actorControl, actorVars,
				inPortsByProcess[processID], outPortsByProcess[processID])

			for _, vpb := range varPortsByProcess[processID] {
				size := vpb.BufferSize
				if size == 0 {
					size = bufSize
				}
				v, _ := c.registry.Lookup(vpb.VarID)
				actor.bindVarPort(vpb.PortName, v, size)
			}

			svc.addActor(actor, actorControl, actorVars)

			go actor.Start()
		}

		c.services[svcBuilder.ServiceID] = svc
		c.svcUp[svcBuilder.ServiceID] = svcUpstream
		c.svcVarUp[svcBuilder.ServiceID] = svcVarUpstream
		c.serviceIDs = append(c.serviceIDs, svcBuilder.ServiceID)

		svcUpstream.start()
		svcVarUpstream.start()
		go svc.Run()
	}

	c.state = Initialized
	return nil
}

// Start transitions Initialized -> Started and invokes Run(rc).
func (c *Controller) Start(rc RunCondition) (err error) {
	c.mtx.Lock()
	if c.state != Initialized {
		c.mtx.Unlock()
		return wrapf(ErrConfig, "start() called from state %s", c.state)
	}
	c.state = Started
	c.mtx.Unlock()

	return c.Run(rc)
}

// Run dispatches a StepRun or ContinuousRun (§4.1).
func (c *Controller) Run(rc RunCondition) (err error) {
	switch r := rc.(type) {
	case StepRun:
		return c.runSteps(r)
	case ContinuousRun:
		return c.runContinuous()
	}
	return wrapf(ErrConfig, "unknown run condition %T", rc)
}

func (c *Controller) runSteps(r StepRun) (err error) {
	c.mtx.Lock()
	if c.state != Started && c.state != Paused {
		c.mtx.Unlock()
		return wrapf(ErrNotStarted, "run() called from state %s", c.state)
	}
	c.state = Running
	c.pendingSteps = r.NumSteps
	c.mtx.Unlock()

	c.broadcast(token.Run(r.NumSteps))

	if !r.Blocking {
		return nil
	}
	return c.wait(r.NumSteps)
}

func (c *Controller) runContinuous() (err error) {
	c.mtx.Lock()
	if c.state != Started && c.state != Paused {
		c.mtx.Unlock()
		return wrapf(ErrNotStarted, "run() called from state %s", c.state)
	}
	c.state = Running
	c.mtx.Unlock()

	// current_ts is not advanced here: per the Open Question resolution,
	// continuous-mode time accounting freezes until the next blocking
	// StepRun or Wait; Pause leaves it unchanged.
	c.broadcast(token.Continuous)
	return nil
}

// Wait performs the blocking collection of one DONE per Service for a
// non-blocking StepRun, then advances current_ts and returns to Started.
func (c *Controller) Wait() (err error) {
	c.mtx.Lock()
	if c.state != Running {
		c.mtx.Unlock()
		return wrapf(ErrConfig, "wait() called from state %s", c.state)
	}
	numSteps := c.pendingSteps
	c.mtx.Unlock()
	return c.wait(numSteps)
}

func (c *Controller) wait(numSteps uint32) (err error) {
	for _, id := range c.serviceIDs {
		resp, ok := c.svcUp[id].ack.Recv()
		if !ok || resp != token.Done {
			return c.protocolFailure(id, resp)
		}
	}

	c.mtx.Lock()
	c.currentTS += uint64(numSteps)
	c.state = Started
	c.mtx.Unlock()
	return nil
}

func (c *Controller) protocolFailure(serviceID string, got token.Response) error {
	c.logger.Errorw("protocol violation", "service_id", serviceID, "response", got)
	_ = c.Stop()
	return wrapf(ErrProtocol, "service %s returned %s", serviceID, got)
}

func (c *Controller) broadcast(cmd token.Command) {
	for _, id := range c.serviceIDs {
		c.svcUp[id].control.Send(cmd)
	}
}

// Pause broadcasts PAUSE and awaits PAUSED from every Service (§4.1).
// Legal while Running, or while Started after a completed step run.
func (c *Controller) Pause() (err error) {
	c.mtx.Lock()
	if c.state != Running && c.state != Started {
		c.mtx.Unlock()
		return wrapf(ErrConfig, "pause() called from state %s", c.state)
	}
	c.mtx.Unlock()

	c.broadcast(token.Pause)

	for _, id := range c.serviceIDs {
		resp, ok := c.svcUp[id].ack.Recv()
		if !ok || resp != token.Paused {
			return c.protocolFailure(id, resp)
		}
	}

	c.mtx.Lock()
	c.state = Paused
	c.mtx.Unlock()
	return nil
}

// Stop broadcasts STOP, awaits TERMINATED, joins every channel the
// Controller owns, and transitions to Stopped. Idempotent: calling Stop
// again once Stopped, or on an uninitialized Controller, returns nil and
// does nothing (the state stays as it was); from any other state,
// including Initialized, it stops the run (Testable Property 5).
func (c *Controller) Stop() (err error) {
	c.mtx.Lock()
	if c.state == Stopped || c.state == Uninitialized {
		c.mtx.Unlock()
		return nil
	}
	c.state = Stopped
	c.mtx.Unlock()

	c.broadcast(token.Stop)

	timeout := c.config.CloseTimeout()
	if timeout == 0 {
		timeout = DefaultCloseTimeout
	}
	for _, id := range c.serviceIDs {
		if _, _, timedOut := c.svcUp[id].ack.RecvTimeout(timeout); timedOut {
			c.logger.Errorw("timed out waiting for service terminated ack", "service_id", id, "timeout", timeout)
		}
	}

	for _, id := range c.serviceIDs {
		c.svcUp[id].join()
		c.svcVarUp[id].join()
	}

	return nil
}

// GetVar reads varID's current value, optionally indexed, resolving the
// owning Service/Process via the NodeConfig and routing the request over
// the request/data channel path (§4.1). Legal only when not Running.
func (c *Controller) GetVar(varID uint64, idx ...int) (value []float64, err error) {
	if err = c.checkNotRunning(); err != nil {
		return nil, err
	}

	ev, ok := c.execVars[varID]
	if !ok {
		return nil, wrapf(ErrConfig, "unknown var %d", varID)
	}

	resp := c.roundTrip(ev, VarRequest{
		Type:  token.Get,
		VarID: varID,
		Idx:   idx,
	})
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Payload, nil
}

// SetVar writes value into varID, optionally indexed (§4.1).
func (c *Controller) SetVar(varID uint64, value []float64, idx ...int) (err error) {
	if err = c.checkNotRunning(); err != nil {
		return err
	}

	ev, ok := c.execVars[varID]
	if !ok {
		return wrapf(ErrConfig, "unknown var %d", varID)
	}

	resp := c.roundTrip(ev, VarRequest{
		Type:    token.Set,
		VarID:   varID,
		Idx:     idx,
		Payload: value,
	})
	return resp.Err
}

func (c *Controller) checkNotRunning() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.state == Uninitialized || c.state == Initialized || c.state == Stopped {
		return wrapf(ErrNotStarted, "controller is %s", c.state)
	}
	if c.state == Running {
		return wrapf(ErrRunning, "controller is running")
	}
	return nil
}

func (c *Controller) roundTrip(ev ExecVar, req VarRequest) VarResponse {
	req.ProcessID = ev.OwningProcessID
	svcVar := c.svcVarUp[ev.OwningServiceID]
	svcVar.request.Send(req)
	resp, ok := svcVar.data.Recv()
	if !ok {
		return VarResponse{Err: wrapf(ErrChannel, "service %s channel closed", ev.OwningServiceID)}
	}
	return resp
}

// State returns the Controller's current lifecycle state.
func (c *Controller) State() State {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

// CurrentTS returns the Controller's last-known time step count.
func (c *Controller) CurrentTS() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.currentTS
}
