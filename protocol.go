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

import "github.com/lava-rt/lava/token"

// VarRequest is one message on a request channel: a GET or SET addressed
// to a specific process_id/var_id, plus the SET payload if any. Every
// scalar in Payload crosses as a 64-bit float regardless of the target
// Var's storage type (§4.3's numeric encoding contract); the receiving
// side casts on arrival.
type VarRequest struct {
	Type      token.ReqType
	ProcessID string
	VarID     uint64
	Idx       []int // optional element index; nil selects the whole Var
	Payload   []float64
}

// VarResponse answers a VarRequest: the current value for GET, or an
// empty/acknowledging response for SET. Err is set if the addressed
// process_id/var_id could not be resolved.
type VarResponse struct {
	Payload []float64
	Err     error
}

// controlChans is the control/ack channel pair shared by a Controller<->
// Service link and a Service<->ProcessActor link (§4.4): every such link
// exposes the same Chan surface regardless of which tier it connects.
type controlChans struct {
	control *Chan[token.Command]
	ack     *Chan[token.Response]
}

// varChans is the request/data channel pair used for the variable
// get/set sub-protocol, again shared in shape between the Controller<->
// Service and Service<->ProcessActor legs (§4.1, §4.2).
type varChans struct {
	request *Chan[VarRequest]
	data    *Chan[VarResponse]
}

func newControlChans(bufferSize int) controlChans {
	return controlChans{
		control: NewChan[token.Command](bufferSize),
		ack:     NewChan[token.Response](bufferSize),
	}
}

func newVarChans(bufferSize int) varChans {
	return varChans{
		request: NewChan[VarRequest](bufferSize),
		data:    NewChan[VarResponse](bufferSize),
	}
}

func (c controlChans) start() {
	c.control.Start()
	c.ack.Start()
}

func (c controlChans) join() {
	c.control.Join()
	c.ack.Join()
}

func (v varChans) start() {
	v.request.Start()
	v.data.Start()
}

func (v varChans) join() {
	v.request.Join()
	v.data.Join()
}
