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

// Service is a Runtime Service: the per-synchronization-domain sequencer
// that drives its Process Actors through phases in lockstep and brokers
// variable access for them (§4.2). One Service instance exists per
// ServiceBuilder named in the Executable's NodeConfig.
type Service struct {
	id     string
	logger log.Logger

	actors    []*ProcessActor
	actorByID map[string]*ProcessActor

	upstream controlChans // from/to Controller
	varUp    varChans     // from/to Controller, variable traffic

	actorControl map[string]controlChans // to/from each owned actor
	actorVar     map[string]varChans     // to/from each owned actor
}

func newService(id string, upstream controlChans, varUp varChans) *Service {
	return &Service{
		id:           id,
		logger:       log.New("service_id", id),
		actorByID:    make(map[string]*ProcessActor),
		upstream:     upstream,
		varUp:        varUp,
		actorControl: make(map[string]controlChans),
		actorVar:     make(map[string]varChans),
	}
}

func (s *Service) addActor(a *ProcessActor, control controlChans, vars varChans) {
	s.actors = append(s.actors, a)
	s.actorByID[a.id] = a
	s.actorControl[a.id] = control
	s.actorVar[a.id] = vars
}

// Run is the Service's own loop (§4.2): await a command, decode it, and
// either drive a run of time steps or forward PAUSE/STOP. A completed
// run of n steps ends with every actor placed in HOST. Between
// commands — after a completed run or while paused — it concurrently multiplexes
// variable-access traffic from the Controller to the addressed actor
// (§4.2 point 3). Run returns once STOP has been acked by every owned
// actor.
func (s *Service) Run() {
	for _, control := range s.actorControl {
		control.start()
	}
	for _, vars := range s.actorVar {
		vars.start()
	}

	for {
		cmd, ok := s.nextCommand()
		if !ok {
			return
		}

		if cmd == token.Stop {
			s.broadcast(token.Stop)
			s.gatherAll(token.Terminated)
			s.upstream.ack.Send(token.Terminated)
			return
		}

		if cmd == token.Pause {
			s.broadcast(token.Command(token.Host))
			if !s.gatherAll(token.Paused) {
				s.fail()
				return
			}
			s.upstream.ack.Send(token.Paused)
			continue
		}

		if cmd == token.Continuous {
			for {
				ok := true
				for _, phase := range token.Sequence {
					s.broadcast(token.Command(phase))
					if !s.gatherAll(token.Done) {
						ok = false
						break
					}
				}
				if !ok {
					s.fail()
					return
				}
				if s.upstream.control.Probe() {
					break
				}
			}
			continue
		}

		n, ok := cmd.IsRun()
		if !ok {
			s.logger.Errorw("unrecognized command", "command", cmd)
			s.fail()
			return
		}

		ok = true
		for step := uint32(0); step < n && ok; step++ {
			for _, phase := range token.Sequence {
				s.broadcast(token.Command(phase))
				if !s.gatherAll(token.Done) {
					ok = false
					break
				}
			}
		}

		// Leave every actor in HOST between runs, so that var requests
		// forwarded by nextCommand reach an actor that is servicing its
		// request channel.
		if ok {
			s.broadcast(token.Command(token.Host))
			ok = s.gatherAll(token.Paused)
		}

		if !ok {
			s.fail()
			return
		}
		s.upstream.ack.Send(token.Done)
	}
}

// nextCommand blocks until either the next upstream control token
// arrives, or a variable request arrives first — in which case it is
// forwarded to the addressed actor and shuttled back, and the wait
// continues. This is what lets GetVar/SetVar reach an actor in HOST
// (after a completed run or a pause) without the Service's own command
// loop stalling.
func (s *Service) nextCommand() (token.Command, bool) {
	for {
		select {
		case cmd, ok := <-s.upstream.control.raw():
			return cmd, ok
		case req := <-s.varUp.request.raw():
			s.forwardVarRequest(req)
		}
	}
}

func (s *Service) broadcast(cmd token.Command) {
	for _, control := range s.actorControl {
		control.control.Send(cmd)
	}
}

// gatherAll collects one ack per actor, returning false if any actor
// responds with anything other than want; the caller then fails the
// Service, which reports TERMINATED upstream.
func (s *Service) gatherAll(want token.Response) (ok bool) {
	ok = true
	for _, control := range s.actorControl {
		resp, recvOK := control.ack.Recv()
		if !recvOK || resp != want {
			ok = false
		}
	}
	return ok
}

func (s *Service) fail() {
	s.logger.Errorw("protocol violation, tearing down service", "service_id", s.id)
	s.upstream.ack.Send(token.Terminated)
}

// forwardVarRequest forwards one variable-access request to the
// addressed actor's request channel and shuttles its response back to
// the Controller (§4.2 point 3).
func (s *Service) forwardVarRequest(req VarRequest) {
	actorVar, exists := s.actorVar[req.ProcessID]
	if !exists {
		s.varUp.data.Send(VarResponse{Err: wrapf(ErrConfig, "service %s has no process %s", s.id, req.ProcessID)})
		return
	}

	actorVar.request.Send(req)
	resp, recvOK := actorVar.data.Recv()
	if !recvOK {
		resp = VarResponse{Err: wrapf(ErrChannel, "process %s data channel closed", req.ProcessID)}
	}
	s.varUp.data.Send(resp)
}
