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

// ProcessModel is the compiled, per-executor-kind implementation of a
// Process's phase callbacks (§6). Declaring a Process (its ports and
// variables) and compiling it down to a ProcessModel is the compiler's
// job and out of scope here; the runtime only ever calls through this
// interface once a ProcessModel has already been built for a Process
// Actor.
//
// RunSpk, RunPreMgmt, RunLrn and RunPostMgmt are invoked by the owning
// Process Actor on the matching phase token (§4.3). PreGuard, LrnGuard
// and PostGuard gate whether the matching management/learning callback
// runs at all for a given step.
type ProcessModel interface {
	RunSpk(pc ProcessContext) (err error)

	PreGuard(pc ProcessContext) (run bool)
	RunPreMgmt(pc ProcessContext) (err error)

	LrnGuard(pc ProcessContext) (run bool)
	RunLrn(pc ProcessContext) (err error)

	PostGuard(pc ProcessContext) (run bool)
	RunPostMgmt(pc ProcessContext) (err error)
}

// Initializer is implemented by any ProcessModel that must be
// initialized before its owning Process Actor starts running phases.
type Initializer interface {
	Init(pc ProcessContext) (err error)
}

// Closer is implemented by any ProcessModel that must release
// resources on Process Actor teardown (STOP).
type Closer interface {
	Close() (err error)
}

// ProcessContext is the execution context a ProcessModel's callbacks run
// in: the current time step, this actor's identity, its Vars, and the
// ports declared for it at compile time. A ProcessContext is not safe
// for concurrent use and must only be used from within a phase callback.
type ProcessContext interface {
	// ProcessID returns this actor's process_id.
	ProcessID() (id string)
	// CurrentTS returns the local time step counter, incremented on SPK.
	CurrentTS() (ts uint64)
	// Var looks up one of this actor's variables by name.
	Var(name string) (v *Var, err error)
	// Config returns the runtime's tunables.
	Config() (config Config)
	// InPort looks up one of this actor's incoming data channels by the
	// port name declared for it at compile time (§3's Process-to-Process
	// data channel).
	InPort(name string) (c *Chan[[]float64], err error)
	// OutPort looks up one of this actor's outgoing data channels by the
	// port name declared for it at compile time.
	OutPort(name string) (c *Chan[[]float64], err error)
}
