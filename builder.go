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
	"time"

	"github.com/lava-rt/lava/dtype"
)

const (
	// DefaultBufferSize is the default capacity for every control, sync,
	// request and data Chan the Controller builds.
	DefaultBufferSize = 1024
	// DefaultCloseTimeout is how long Controller.Stop waits for a
	// Service's TERMINATED ack before tearing down regardless.
	DefaultCloseTimeout = 10 * time.Second
	// DefaultVarPortWorkers is the size of the worker pool each Process
	// Actor uses to service its owned VarPorts.
	DefaultVarPortWorkers = 4
)

// ProcessBuilder instantiates a ProcessModel for one Process Actor. The
// compiler (out of scope here, §1) supplies one per process kind; the
// Controller invokes it once per process_id named in the Executable's
// ServiceBuilders.
type ProcessBuilder func() ProcessModel

// ServiceBuilder groups the process_ids that make up one synchronization
// domain under a single Runtime Service.
type ServiceBuilder struct {
	ServiceID  string
	ProcessIDs []string
}

// ChannelBuilder describes one Process-to-Process data channel to be
// built between a named OutPort on one process and a named InPort on
// another, with the given buffer capacity (§3's Out->In edge kind, §6's
// data_channel_builders).
type ChannelBuilder struct {
	FromProcess string
	FromPort    string
	ToProcess   string
	ToPort      string
	BufferSize  int
}

// VarPortBuilder describes one VarPort a Process Actor owns: a named,
// shared-memory endpoint that services GET/SET traffic from remote
// RefPorts against one of that actor's own Vars (§3's RefPort/VarPort
// glossary entry).
type VarPortBuilder struct {
	ProcessID  string
	PortName   string
	VarID      uint64
	BufferSize int
}

// ExecVar names one Var's static placement and declared type, as known
// to the compiler ahead of runtime (§6: node_config.exec_vars[var_id]).
// AliasOf, if non-zero, names another var_id this Var delegates get/set
// to; AliasOf's owning process must be a strict sub-process of this
// Var's owning process (§3's alias invariant).
type ExecVar struct {
	Name            string
	OwningServiceID string
	OwningProcessID string
	Shape           []int
	Dtype           dtype.Dtype
	Shareable       bool
	Init            float64
	AliasOf         uint64
}

// NodeConfig is the Executable's placement table: every Var's owning
// Service and Process, the partition of Process Actors across Services
// (§3's invariants: every var_id maps to exactly one owner, every
// Service's actor set partitions the executable), and the process
// hierarchy (child process_id -> parent process_id) alias validation
// needs to enforce "strict sub-process" ownership.
type NodeConfig struct {
	ExecVars       map[uint64]ExecVar
	Services       []ServiceBuilder
	ProcessParents map[string]string
}

// validate checks the NodeConfig invariants the Controller depends on at
// initialize() (§4.1): there is at least one Service, every Service id is
// non-empty, a Process Actor belongs to exactly one Service, and every
// process hierarchy edge names processes that actually exist. It makes no
// host node check: the NodeConfig has no notion of nodes.
func (nc NodeConfig) validate() (err error) {
	if len(nc.Services) == 0 {
		return wrapf(ErrConfig, "node config has no services")
	}

	seen := make(map[string]string) // process_id -> service_id
	for _, svc := range nc.Services {
		if svc.ServiceID == "" {
			return wrapf(ErrConfig, "service with empty id")
		}
		for _, pid := range svc.ProcessIDs {
			if owner, dup := seen[pid]; dup {
				return wrapf(ErrConfig, "process %s owned by both %s and %s", pid, owner, svc.ServiceID)
			}
			seen[pid] = svc.ServiceID
		}
	}

	for child, parent := range nc.ProcessParents {
		if _, ok := seen[child]; !ok {
			return wrapf(errParentNotFound, "process parent mapping references unknown child %s", child)
		}
		if _, ok := seen[parent]; !ok {
			return wrapf(errParentNotFound, "process parent mapping references unknown parent %s", parent)
		}
	}

	return nil
}

// Executable is the finalized bundle the Controller consumes (§3):
// Process builders grouped by executor kind, Service builders, channel
// builders for data and sync/request traffic, and the NodeConfig
// placement table. Building one from a process graph is compiler work
// and out of scope here; this is the interchange format the compiler and
// the Controller agree on.
type Executable struct {
	ProcessBuildersByKind map[string]ProcessBuilder
	ServiceBuilders       []ServiceBuilder
	DataChannelBuilders   []ChannelBuilder
	SyncChannelBuilders   []ChannelBuilder
	VarPortBuilders       []VarPortBuilder
	NodeConfig            NodeConfig

	// ProcessKind maps each process_id to the key into
	// ProcessBuildersByKind that builds its ProcessModel.
	ProcessKind map[string]string
}

// Builder assembles an Executable incrementally, the runtime-facing
// analogue of the compiler's internal graph builder (§1 places the
// compiler itself out of scope; this is the narrow seam the Controller
// needs to receive a NodeConfig-consistent Executable in tests and
// examples).
type Builder struct {
	exec Executable
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.exec.ProcessBuildersByKind = make(map[string]ProcessBuilder)
	b.exec.ProcessKind = make(map[string]string)
	b.exec.NodeConfig.ExecVars = make(map[uint64]ExecVar)
	return b
}

// AddProcess registers a ProcessBuilder under kind and binds processID to
// it, placing processID in the synchronization domain serviceID.
func (b *Builder) AddProcess(kind, processID, serviceID string, pb ProcessBuilder) {
	b.exec.ProcessBuildersByKind[kind] = pb
	b.exec.ProcessKind[processID] = kind

	for i := range b.exec.ServiceBuilders {
		if b.exec.ServiceBuilders[i].ServiceID == serviceID {
			b.exec.ServiceBuilders[i].ProcessIDs = append(b.exec.ServiceBuilders[i].ProcessIDs, processID)
			return
		}
	}
	b.exec.ServiceBuilders = append(b.exec.ServiceBuilders, ServiceBuilder{
		ServiceID:  serviceID,
		ProcessIDs: []string{processID},
	})
}

// AddVar records var's static placement in the NodeConfig.
func (b *Builder) AddVar(varID uint64, name, serviceID, processID string, shape []int, init float64, d dtype.Dtype, shareable bool) {
	b.exec.NodeConfig.ExecVars[varID] = ExecVar{
		Name:            name,
		OwningServiceID: serviceID,
		OwningProcessID: processID,
		Shape:           shape,
		Dtype:           d,
		Shareable:       shareable,
		Init:            init,
	}
}

// AddDataChannel registers a data channel builder between a named OutPort
// on fromProcess and a named InPort on toProcess.
func (b *Builder) AddDataChannel(fromProcess, fromPort, toProcess, toPort string, bufferSize int) {
	b.exec.DataChannelBuilders = append(b.exec.DataChannelBuilders, ChannelBuilder{
		FromProcess: fromProcess,
		FromPort:    fromPort,
		ToProcess:   toProcess,
		ToPort:      toPort,
		BufferSize:  bufferSize,
	})
}

// AddProcessParent records that child is a strict sub-process of parent,
// the hierarchy the alias mechanism consults (§3).
func (b *Builder) AddProcessParent(child, parent string) {
	if b.exec.NodeConfig.ProcessParents == nil {
		b.exec.NodeConfig.ProcessParents = make(map[string]string)
	}
	b.exec.NodeConfig.ProcessParents[child] = parent
}

// AddVarAlias records varID's static placement the same way AddVar does,
// additionally marking it as an alias delegating to aliasOf's var_id.
func (b *Builder) AddVarAlias(varID uint64, name, serviceID, processID string, shape []int, d dtype.Dtype, shareable bool, aliasOf uint64) {
	b.exec.NodeConfig.ExecVars[varID] = ExecVar{
		Name:            name,
		OwningServiceID: serviceID,
		OwningProcessID: processID,
		Shape:           shape,
		Dtype:           d,
		Shareable:       shareable,
		AliasOf:         aliasOf,
	}
}

// AddVarPort registers a VarPort builder binding portName on processID to
// the backing Var varID.
func (b *Builder) AddVarPort(processID, portName string, varID uint64, bufferSize int) {
	b.exec.VarPortBuilders = append(b.exec.VarPortBuilders, VarPortBuilder{
		ProcessID:  processID,
		PortName:   portName,
		VarID:      varID,
		BufferSize: bufferSize,
	})
}

// Build finalizes and validates the Executable.
func (b *Builder) Build() (exec Executable, err error) {
	if err = b.exec.NodeConfig.validate(); err != nil {
		return Executable{}, err
	}
	return b.exec, nil
}
