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
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// PortKind is the closed sum type of the four port kinds (§3, and §9's
// "dynamic dispatch -> tagged variants" note), mirroring the teacher
// module's types.Type enum.
type PortKind uint8

const (
	InPort PortKind = iota
	OutPort
	RefPort
	VarPort
)

func (k PortKind) String() string {
	switch k {
	case InPort:
		return "InPort"
	case OutPort:
		return "OutPort"
	case RefPort:
		return "RefPort"
	case VarPort:
		return "VarPort"
	}
	return "InvalidPort"
}

// Port is one named, shape-typed endpoint in the port graph.
type Port struct {
	name  string
	kind  PortKind
	shape []int
	owner string // owning process_id

	edges map[uint64]*Port // outgoing edges, keyed by edge fingerprint
}

// edgeAllowed implements the kind matrix from §3: Out->In or Out->Out
// (upward to parent), In->In (downward to sub-process), Ref->Var,
// Ref->Ref, Var->Var; never Ref<->In/Out.
func edgeAllowed(from, to PortKind) bool {
	switch {
	case from == OutPort && to == InPort:
		return true
	case from == OutPort && to == OutPort:
		return true
	case from == InPort && to == InPort:
		return true
	case from == RefPort && to == VarPort:
		return true
	case from == RefPort && to == RefPort:
		return true
	case from == VarPort && to == VarPort:
		return true
	}
	return false
}

// PortGraph is the acyclic graph of Ports a compiled Executable's node
// config describes. The runtime only ever walks the flattened edges;
// virtual-port (reshape/concat) resolution is out of scope here (§1).
type PortGraph struct {
	ports map[string]*Port
	seen  map[uint64]bool // edge fingerprints already connected, across the whole graph
}

// NewPortGraph returns an empty PortGraph.
func NewPortGraph() *PortGraph {
	return &PortGraph{
		ports: make(map[string]*Port),
		seen:  make(map[uint64]bool),
	}
}

// AddPort registers a new named Port of the given kind and shape.
func (g *PortGraph) AddPort(name string, kind PortKind, shape []int, owner string) (err error) {
	if name == "" {
		return errEmptyName
	}
	if _, exists := g.ports[name]; exists {
		return wrapf(ErrDuplicateConnection, "port %s already registered", name)
	}

	g.ports[name] = &Port{
		name:  name,
		kind:  kind,
		shape: shape,
		owner: owner,
		edges: make(map[uint64]*Port),
	}
	return nil
}

// Connect adds a directed edge from -> to, enforcing the kind matrix,
// acyclicity, and duplicate-edge rejection (§3).
func (g *PortGraph) Connect(from, to string) (err error) {
	fp, ok := g.ports[from]
	if !ok {
		return wrapf(errNodeNotFound, "port %s", from)
	}
	tp, ok := g.ports[to]
	if !ok {
		return wrapf(errNodeNotFound, "port %s", to)
	}

	if !edgeAllowed(fp.kind, tp.kind) {
		return wrapf(errInvalidKind, "cannot connect %s (%s) -> %s (%s)", from, fp.kind, to, tp.kind)
	}

	key := edgeFingerprint(from, to, fp.kind)
	if g.seen[key] {
		return wrapf(ErrDuplicateConnection, "%s -> %s", from, to)
	}

	if g.reaches(tp, fp) {
		return wrapf(errInvalidKind, "connecting %s -> %s would create a cycle", from, to)
	}

	fp.edges[key] = tp
	g.seen[key] = true
	return nil
}

// reaches reports whether to is reachable from from by following edges,
// used to reject edges that would close a cycle.
func (g *PortGraph) reaches(from, to *Port) bool {
	if from == to {
		return true
	}
	for _, next := range from.edges {
		if g.reaches(next, to) {
			return true
		}
	}
	return false
}

// edgeFingerprint derives a stable 64-bit identity for an edge from a hash
// of its endpoints and kind, following the teacher's use of a hash (there,
// xxhash over a Record's key) to assign identity to traffic rather than
// using owning pointers (§9: "adjacency lists keyed by stable node ids").
func edgeFingerprint(from, to string, kind PortKind) uint64 {
	h := xxhash.New()
	h.WriteString(from)
	h.WriteString("\x00")
	h.WriteString(to)
	h.WriteString("\x00")
	h.WriteString(strconv.Itoa(int(kind)))
	return h.Sum64()
}
