// Package mock provides a scriptable fake Runtime Service for exercising
// the Controller's side of the control-plane protocol in isolation,
// without spawning real Process Actors — in particular for provoking and
// observing ProtocolError handling (a mock Service that replies with the
// wrong response).
package mock

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
	"github.com/lava-rt/lava"
	"github.com/lava-rt/lava/token"
)

// RespondFunc decides how the mock Service acks an incoming command. The
// default (see NewService) is the well-behaved translation: Stop ->
// Terminated, Pause -> Paused, any run-n command -> Done.
type RespondFunc func(cmd token.Command) token.Response

// Service is a fake Runtime Service driven entirely by a RespondFunc,
// useful for scripting exactly one malformed reply (Scenario D: "a mock
// Service replies PAUSED to a step command").
type Service struct {
	Endpoint lava.ServiceEndpoint
	Respond  RespondFunc

	CommandsSeen []token.Command
}

// NewService builds a well-behaved mock Service around a fresh set of
// Controller-facing endpoints, buffered to bufferSize.
func NewService(bufferSize int) *Service {
	s := &Service{
		Endpoint: lava.ServiceEndpoint{
			Control: lava.NewChan[token.Command](bufferSize),
			Ack:     lava.NewChan[token.Response](bufferSize),
			Request: lava.NewChan[lava.VarRequest](bufferSize),
			Data:    lava.NewChan[lava.VarResponse](bufferSize),
		},
		Respond: DefaultRespond,
	}
	return s
}

// DefaultRespond implements the well-behaved Controller<->Service
// protocol (§4.2): Stop acks Terminated, Pause acks Paused, any run-n
// command acks Done.
func DefaultRespond(cmd token.Command) token.Response {
	switch cmd {
	case token.Stop:
		return token.Terminated
	case token.Pause:
		return token.Paused
	}
	return token.Done
}

// AlwaysRespond returns a RespondFunc ignoring the command entirely and
// always answering with resp — the shape of Scenario D's violation.
func AlwaysRespond(resp token.Response) RespondFunc {
	return func(token.Command) token.Response {
		return resp
	}
}

// Run drives this mock Service's loop: for every command received on
// Endpoint.Control, record it and ack via Respond on Endpoint.Ack. Run
// returns once a Stop command has been acked.
func (s *Service) Run() {
	for {
		cmd, ok := s.Endpoint.Control.Recv()
		if !ok {
			return
		}

		s.CommandsSeen = append(s.CommandsSeen, cmd)
		s.Endpoint.Ack.Send(s.Respond(cmd))

		if cmd == token.Stop {
			return
		}
	}
}
