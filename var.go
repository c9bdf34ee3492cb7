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
	"sync/atomic"

	"github.com/lava-rt/lava/dtype"
)

// Var is a persistent tensor-valued state slot owned by a single Process
// Actor (§3). Its storage is a flat, row-major slice of the declared
// Shape; Init is broadcast across it at construction time.
type Var struct {
	mtx sync.Mutex

	id        uint64
	owner     string // owning process_id
	shape     []int
	shareable bool
	dtype     dtype.Dtype
	data      []float64

	alias *Var // delegation target, set only for alias Vars
}

// ID returns this Var's globally unique, monotonic identity.
func (v *Var) ID() uint64 { return v.id }

// Shape returns the Var's tensor extents.
func (v *Var) Shape() []int { return v.shape }

// Shareable reports whether other processes may bind a reference port to
// this Var.
func (v *Var) Shareable() bool { return v.shareable }

// Dtype returns the Var's declared storage type.
func (v *Var) Dtype() dtype.Dtype { return v.dtype }

// Owner returns the process_id of the Process Actor that owns this Var.
func (v *Var) Owner() string { return v.owner }

// SetOwner records the process_id of the owning Process Actor. Called
// once by Controller.Initialize as it registers each ExecVar.
func (v *Var) SetOwner(processID string) { v.owner = processID }

// numElements is the product of shape, i.e. len(data).
func (v *Var) numElements() int {
	n := 1
	for _, d := range v.shape {
		n *= d
	}
	return n
}

// Get returns a copy of the Var's current value, delegating through the
// alias chain if this Var is an alias (§3: "get/set on an aliased Var
// delegate to the target transitively").
func (v *Var) Get() []float64 {
	if v.alias != nil {
		return v.alias.Get()
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()
	out := make([]float64, len(v.data))
	copy(out, v.data)
	return out
}

// Set writes value into the Var's storage, casting each element to the
// Var's declared dtype via a deterministic saturating cast (Testable
// Property 3), delegating through the alias chain if aliased.
func (v *Var) Set(value []float64) {
	if v.alias != nil {
		v.alias.Set(value)
		return
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()
	for i := 0; i < len(v.data) && i < len(value); i++ {
		v.data[i] = v.dtype.Cast(value[i])
	}
}

// flatOffset converts a multi-dimensional index into shape's row-major
// (C order) flat offset, matching the wire encoding contract's array
// traversal order (§4.3).
func flatOffset(shape, idx []int) (offset int, ok bool) {
	if len(idx) != len(shape) {
		return 0, false
	}
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if idx[i] < 0 || idx[i] >= shape[i] {
			return 0, false
		}
		offset += idx[i] * stride
		stride *= shape[i]
	}
	return offset, true
}

// GetAt returns the single element at idx, delegating through the alias
// chain if aliased.
func (v *Var) GetAt(idx []int) (value float64, err error) {
	if v.alias != nil {
		return v.alias.GetAt(idx)
	}

	off, ok := flatOffset(v.shape, idx)
	if !ok {
		return 0, wrapf(ErrConfig, "index out of range for var %d", v.id)
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.data[off], nil
}

// SetAt writes value into the single element at idx, casting to the
// Var's declared dtype, delegating through the alias chain if aliased.
func (v *Var) SetAt(idx []int, value float64) (err error) {
	if v.alias != nil {
		return v.alias.SetAt(idx, value)
	}

	off, ok := flatOffset(v.shape, idx)
	if !ok {
		return wrapf(ErrConfig, "index out of range for var %d", v.id)
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.data[off] = v.dtype.Cast(value)
	return nil
}

// NewVar constructs a Var with shape, init broadcast across its storage,
// shareable flag, and dtype. It is not registered with a Registry until
// Register is called.
func NewVar(shape []int, init float64, shareable bool, d dtype.Dtype) *Var {
	v := &Var{shape: shape, shareable: shareable, dtype: d}
	v.data = make([]float64, v.numElements())
	for i := range v.data {
		v.data[i] = d.Cast(init)
	}
	return v
}

// Registry issues monotonically increasing var_ids and holds every Var
// registered in the current run, for alias-chain validation. Per §9's
// "Global id generator" design note, this is an atomic counter owned by
// the Registry instance, not module-level mutable state: a fresh
// Registry is created per Controller, so nothing is process-global.
type Registry struct {
	mtx   sync.RWMutex
	next  uint64
	byID  map[uint64]*Var

	// hierarchy maps a child process_id to its parent process_id, the
	// process tree Alias consults to enforce the "strict sub-process"
	// invariant (§3).
	hierarchy map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]*Var)}
}

// SetHierarchy installs the child->parent process hierarchy Alias
// consults. Called once by Controller.Initialize from the Executable's
// NodeConfig.ProcessParents.
func (r *Registry) SetHierarchy(hierarchy map[string]string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.hierarchy = hierarchy
}

// isStrictSubProcess reports whether descendant is a proper descendant of
// ancestor in the process hierarchy, i.e. reachable by one or more
// parent hops, never through ancestor itself. Guards against cycles in a
// malformed hierarchy with a seen set.
func (r *Registry) isStrictSubProcess(descendant, ancestor string) bool {
	if descendant == ancestor {
		return false
	}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	seen := make(map[string]bool)
	cur := descendant
	for {
		parent, ok := r.hierarchy[cur]
		if !ok || seen[cur] {
			return false
		}
		seen[cur] = true
		if parent == ancestor {
			return true
		}
		cur = parent
	}
}

// Register assigns the next monotonic var_id to v, records it, and
// returns the id.
func (r *Registry) Register(v *Var) (id uint64) {
	id = atomic.AddUint64(&r.next, 1)
	v.id = id

	r.mtx.Lock()
	r.byID[id] = v
	r.mtx.Unlock()
	return id
}

// RegisterWithID registers v under an explicit id supplied by the
// compiler (the Executable's NodeConfig already assigns var_ids), and
// advances the monotonic counter past it so any subsequently Register'd
// Var still gets a fresh id.
func (r *Registry) RegisterWithID(id uint64, v *Var) {
	v.id = id

	r.mtx.Lock()
	r.byID[id] = v
	r.mtx.Unlock()

	for {
		cur := atomic.LoadUint64(&r.next)
		if id <= cur || atomic.CompareAndSwapUint64(&r.next, cur, id) {
			return
		}
	}
}

// Lookup returns the Var for id, if registered.
func (r *Registry) Lookup(id uint64) (v *Var, ok bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	v, ok = r.byID[id]
	return v, ok
}

// Alias binds child as an alias of target: child.Get/Set transitively
// delegate to target. Enforces §3's alias invariant (identical shape and
// shareable flag, target owned by a strict sub-process of child's owner)
// and rejects cycles per §4.5.
func (r *Registry) Alias(child, target *Var) (err error) {
	if len(child.shape) != len(target.shape) {
		return wrapf(ErrAlias, "alias shape mismatch for var %d", child.id)
	}
	for i := range child.shape {
		if child.shape[i] != target.shape[i] {
			return wrapf(ErrAlias, "alias shape mismatch for var %d", child.id)
		}
	}
	if child.shareable != target.shareable {
		return wrapf(ErrAlias, "alias shareable mismatch for var %d", child.id)
	}
	if !r.isStrictSubProcess(target.owner, child.owner) {
		return wrapf(ErrAlias, "alias target for var %d is not owned by a strict sub-process of %s", child.id, child.owner)
	}

	if _, err = r.resolveAlias(target); err != nil {
		return err
	}

	child.alias = target
	if _, err = r.resolveAlias(child); err != nil {
		child.alias = nil
		return err
	}

	return nil
}

// resolveAlias walks an alias chain to its terminal Var, failing with
// ErrAliasCycle if the chain does not terminate within len(byID)+1 hops.
func (r *Registry) resolveAlias(v *Var) (terminal *Var, err error) {
	r.mtx.RLock()
	limit := len(r.byID) + 1
	r.mtx.RUnlock()

	seen := v
	for i := 0; i < limit; i++ {
		if seen.alias == nil {
			return seen, nil
		}
		seen = seen.alias
	}
	return nil, wrapf(ErrAliasCycle, "var %d", v.id)
}

// Range calls fn for every registered Var. Used by Controller.Checkpoint
// and Controller.Restore, which act on the shareable Vars only.
func (r *Registry) Range(fn func(id uint64, v *Var)) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for id, v := range r.byID {
		fn(id, v)
	}
}

// Reset clears the Registry and its id counter. Test-only, per §4.5.
func (r *Registry) Reset() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.byID = make(map[uint64]*Var)
	atomic.StoreUint64(&r.next, 0)
}
