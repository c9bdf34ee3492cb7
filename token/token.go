// Package token defines the closed sum types exchanged on control, sync,
// request and data channels throughout the runtime: the Controller<->Service
// command stream, the Service<->ProcessActor phase stream, and their
// up-going response stream. Keeping these as small integer-backed types
// with a String() method, rather than ad-hoc ints, mirrors how the teacher
// module (github.com/brunotm/streams/types) models its own closed node-kind
// enum.
package token

import "strconv"

// Command is sent Controller->Service and (after translation to a Phase)
// Service->ProcessActor. A non-negative Command is a "run for N steps"
// instruction; the negative values are fixed commands.
type Command int32

const (
	// Stop tears the actor down after acknowledging TERMINATED.
	Stop Command = -1
	// Pause asks the receiver to enter variable-service mode and reply Paused.
	Pause Command = -2
	// Continuous asks a Service to advance time steps indefinitely,
	// until the next Pause or Stop arrives on its control channel. Not
	// part of the scalar step-count wire table (§6); this runtime adds
	// it as the "continuous-run token" §4.1 refers to without pinning
	// down its encoding.
	Continuous Command = -3
)

// Run builds a "run for n steps" command token. n must be >= 0.
func Run(n uint32) Command { return Command(n) }

// IsRun reports whether this token is a run-for-n-steps instruction, and
// returns n if so.
func (c Command) IsRun() (n uint32, ok bool) {
	if c >= 0 {
		return uint32(c), true
	}
	return 0, false
}

func (c Command) String() string {
	switch c {
	case Stop:
		return "STOP"
	case Pause:
		return "PAUSE"
	case Continuous:
		return "CONTINUOUS"
	}
	if n, ok := c.IsRun(); ok {
		return "RUN(" + strconv.FormatUint(uint64(n), 10) + ")"
	}
	return "INVALID(" + strconv.Itoa(int(c)) + ")"
}

// Phase is one stage of a time step, sent Service->ProcessActor in place of
// a raw Command once the Service has decided to advance a step.
type Phase int32

const (
	// Spk is the spiking phase: current_ts increments, run_spk fires.
	Spk Phase = 1
	// PreMgmt runs pre_guard/run_pre_mgmt, then services VarPorts.
	PreMgmt Phase = 2
	// Lrn runs lrn_guard/run_lrn.
	Lrn Phase = 3
	// PostMgmt runs post_guard/run_post_mgmt, then services VarPorts.
	PostMgmt Phase = 4
	// Host is entered at the end of every completed step run and on pause;
	// actors service get/set only.
	Host Phase = 5
)

func (p Phase) String() string {
	switch p {
	case Spk:
		return "SPK"
	case PreMgmt:
		return "PRE_MGMT"
	case Lrn:
		return "LRN"
	case PostMgmt:
		return "POST_MGMT"
	case Host:
		return "HOST"
	}
	return "INVALID_PHASE(" + strconv.Itoa(int(p)) + ")"
}

// Sequence is the canonical per-step phase order every Service drives its
// Process Actors through.
var Sequence = [4]Phase{Spk, PreMgmt, Lrn, PostMgmt}

// Response is sent up the ack path: ProcessActor->Service and Service->Controller.
type Response int32

const (
	// Done acknowledges a single command or phase.
	Done Response = 0
	// Terminated acknowledges STOP, or reports a fatal UserCallbackError.
	Terminated Response = -1
	// Paused acknowledges PAUSE/HOST.
	Paused Response = -2
)

func (r Response) String() string {
	switch r {
	case Done:
		return "DONE"
	case Terminated:
		return "TERMINATED"
	case Paused:
		return "PAUSED"
	}
	return "INVALID_RESPONSE(" + strconv.Itoa(int(r)) + ")"
}

// ReqType tags traffic on the request channel used for Var get/set.
type ReqType int32

const (
	// Get reads a Var's current value.
	Get ReqType = 0
	// Set writes a Var's value.
	Set ReqType = 1
)

func (r ReqType) String() string {
	switch r {
	case Get:
		return "GET"
	case Set:
		return "SET"
	}
	return "INVALID_REQTYPE(" + strconv.Itoa(int(r)) + ")"
}
