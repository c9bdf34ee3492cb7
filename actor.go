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
	"github.com/lava-rt/lava/log"
	"github.com/lava-rt/lava/token"
)

// ProcessActor is the runtime incarnation of a compiled Process: it runs
// one ProcessModel's phase callbacks, owns that process's Vars, and
// services reference-port and variable-get/set traffic addressed to it
// (§3, §4.3). A ProcessActor is driven entirely by control tokens from
// its owning Runtime Service; it never initiates communication except to
// ack.
type ProcessActor struct {
	id     string
	model  ProcessModel
	config Config
	logger log.Logger

	vars     map[string]*Var
	varsByID map[uint64]*Var

	varPorts   map[string]*varPortServer
	refWorkers []*varPortWorker

	inPorts  map[string]*Chan[[]float64]
	outPorts map[string]*Chan[[]float64]

	control controlChans
	reqdata varChans

	currentTS uint64

	pendingCmd token.Command
	hasPending bool
}

// newProcessActor constructs a ProcessActor around model, with vars
// keyed by their declared name, plus its bound in/out Process-to-Process
// data channels keyed by declared port name. It is always built by a
// Runtime Service at initialize() (§3); user code never constructs one
// directly.
func newProcessActor(id string, model ProcessModel, vars map[string]*Var, cfg Config, control controlChans, reqdata varChans, inPorts, outPorts map[string]*Chan[[]float64]) *ProcessActor {
	a := &ProcessActor{
		id:       id,
		model:    model,
		config:   cfg,
		logger:   log.New("process_id", id),
		vars:     vars,
		varsByID: make(map[uint64]*Var),
		varPorts: make(map[string]*varPortServer),
		inPorts:  inPorts,
		outPorts: outPorts,
		control:  control,
		reqdata:  reqdata,
	}
	for _, v := range vars {
		a.varsByID[v.id] = v
	}
	return a
}

// bindVarPort registers one owned VarPort's shared Var, sharded across
// the actor's ref-port worker pool (see refport.go).
func (a *ProcessActor) bindVarPort(name string, v *Var, bufferSize int) {
	a.varPorts[name] = newVarPortServer(name, v, bufferSize)
}

// Start starts every channel this actor owns and its ref-port worker
// pool, then begins the dispatch loop. Start blocks until STOP.
func (a *ProcessActor) Start() {
	a.control.start()
	a.reqdata.start()
	for _, vp := range a.varPorts {
		vp.start()
	}
	a.refWorkers = newVarPortWorkers(a.varPorts, a.config.VarPortWorkers())

	if init, ok := a.model.(Initializer); ok {
		if err := init.Init(a); err != nil {
			a.logger.Errorw("process init failed", "error", err)
		}
	}

	a.run()
}

// run is the outer dispatch loop (§4.3): one accepted command always
// produces exactly one ack (Testable Property 2).
func (a *ProcessActor) run() {
	for {
		cmd, ok := a.nextCommand()
		if !ok {
			return
		}

		if cmd == token.Stop {
			a.control.ack.Send(token.Terminated)
			a.teardown()
			return
		}

		n, isRun := cmd.IsRun()
		if !isRun {
			a.fail(wrapf(ErrProtocol, "process %s received unrecognized command %s", a.id, cmd))
			return
		}

		switch phase := token.Phase(n); phase {
		case token.Spk:
			a.currentTS++
			if err := a.model.RunSpk(a); err != nil {
				a.fail(wrapf(ErrUserCallback, "process %s run_spk: %v", a.id, err))
				return
			}
			a.control.ack.Send(token.Done)

		case token.PreMgmt:
			if a.model.PreGuard(a) {
				if err := a.model.RunPreMgmt(a); err != nil {
					a.fail(wrapf(ErrUserCallback, "process %s run_pre_mgmt: %v", a.id, err))
					return
				}
			}
			a.control.ack.Send(token.Done)
			a.serviceRefPorts()

		case token.Lrn:
			if a.model.LrnGuard(a) {
				if err := a.model.RunLrn(a); err != nil {
					a.fail(wrapf(ErrUserCallback, "process %s run_lrn: %v", a.id, err))
					return
				}
			}
			a.control.ack.Send(token.Done)

		case token.PostMgmt:
			if a.model.PostGuard(a) {
				if err := a.model.RunPostMgmt(a); err != nil {
					a.fail(wrapf(ErrUserCallback, "process %s run_post_mgmt: %v", a.id, err))
					return
				}
			}
			a.control.ack.Send(token.Done)
			a.serviceRefPorts()

		case token.Host:
			// Ack immediately: the servicing loop below runs
			// indefinitely until the next command arrives, and
			// the invariant is one ack per accepted command, not
			// per loop iteration.
			a.control.ack.Send(token.Paused)
			a.serviceVars()

		default:
			a.fail(wrapf(ErrProtocol, "process %s received unknown phase %s", a.id, phase))
			return
		}
	}
}

// nextCommand returns a pending command stashed by serviceVars/
// serviceRefPorts if one was already read off the control channel while
// servicing traffic between phases, otherwise it blocks on Recv.
func (a *ProcessActor) nextCommand() (token.Command, bool) {
	if a.hasPending {
		a.hasPending = false
		return a.pendingCmd, true
	}
	return a.control.control.Recv()
}

func (a *ProcessActor) setPending(cmd token.Command, ok bool) {
	if ok {
		a.pendingCmd = cmd
		a.hasPending = true
	}
}

// fail sends TERMINATED carrying the error kind and tears down, per
// §4.3's "a user callback that raises a failure causes the Process Actor
// to send TERMINATED".
func (a *ProcessActor) fail(err error) {
	a.logger.Errorw("process actor failed", "error", err)
	a.control.ack.Send(token.Terminated)
	a.teardown()
}

func (a *ProcessActor) teardown() {
	if closer, ok := a.model.(Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Errorw("process close failed", "error", err)
		}
	}
	for _, vp := range a.varPorts {
		vp.join()
	}
	for _, p := range a.outPorts {
		p.Join()
	}
	a.control.join()
	a.reqdata.join()
}

// serviceVars implements variable-service mode (§4.3): drains GET/SET
// requests addressed to this actor on its request channel until a new
// control token arrives. A fixed pair of channels (control, request) is
// exactly the case select is idiomatic for in Go, rather than polling.
func (a *ProcessActor) serviceVars() {
	for {
		select {
		case cmd, ok := <-a.control.control.raw():
			a.setPending(cmd, ok)
			return
		case req := <-a.reqdata.request.raw():
			a.reqdata.data.Send(a.handleVarRequest(req))
		}
	}
}

func (a *ProcessActor) handleVarRequest(req VarRequest) VarResponse {
	v, ok := a.varsByID[req.VarID]
	if !ok {
		return VarResponse{Err: wrapf(ErrConfig, "process %s has no var %d", a.id, req.VarID)}
	}

	switch req.Type {
	case token.Get:
		if len(req.Idx) > 0 {
			val, err := v.GetAt(req.Idx)
			if err != nil {
				return VarResponse{Err: err}
			}
			return VarResponse{Payload: []float64{val}}
		}
		return VarResponse{Payload: v.Get()}
	case token.Set:
		if len(req.Idx) > 0 {
			if len(req.Payload) != 1 {
				return VarResponse{Err: wrapf(ErrConfig, "indexed set to var %d needs exactly one value", v.id)}
			}
			if err := v.SetAt(req.Idx, req.Payload[0]); err != nil {
				return VarResponse{Err: err}
			}
			return VarResponse{}
		}
		v.Set(req.Payload)
		return VarResponse{}
	}
	return VarResponse{Err: wrapf(ErrProtocol, "unknown request type %s", req.Type)}
}

// ProcessContext implementation.

func (a *ProcessActor) ProcessID() string  { return a.id }
func (a *ProcessActor) CurrentTS() uint64  { return a.currentTS }
func (a *ProcessActor) Config() Config     { return a.config }

func (a *ProcessActor) Var(name string) (v *Var, err error) {
	v, ok := a.vars[name]
	if !ok {
		return nil, wrapf(errNodeNotFound, "var %s on process %s", name, a.id)
	}
	return v, nil
}

func (a *ProcessActor) InPort(name string) (c *Chan[[]float64], err error) {
	c, ok := a.inPorts[name]
	if !ok {
		return nil, wrapf(errNodeNotFound, "in port %s on process %s", name, a.id)
	}
	return c, nil
}

func (a *ProcessActor) OutPort(name string) (c *Chan[[]float64], err error) {
	c, ok := a.outPorts[name]
	if !ok {
		return nil, wrapf(errNodeNotFound, "out port %s on process %s", name, a.id)
	}
	return c, nil
}
