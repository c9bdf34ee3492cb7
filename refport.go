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
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
	jump "github.com/dgryski/go-jump"

	"github.com/lava-rt/lava/token"
)

// varPortServer is one VarPort this actor owns: a shared Var plus the
// request/data channel pair a remote RefPort sends GET/SET traffic on
// (§3's RefPort/VarPort glossary entry).
type varPortServer struct {
	name string
	v    *Var
	reqdata varChans
}

func newVarPortServer(name string, v *Var, bufferSize int) *varPortServer {
	return &varPortServer{name: name, v: v, reqdata: newVarChans(bufferSize)}
}

func (s *varPortServer) start() { s.reqdata.start() }
func (s *varPortServer) join()  { s.reqdata.join() }

// serviceOnce drains at most one pending request, returning whether it
// did any work, so callers can yield when idle instead of spinning.
func (s *varPortServer) serviceOnce() (worked bool) {
	if !s.reqdata.request.Probe() {
		return false
	}

	req, ok := s.reqdata.request.Recv()
	if !ok {
		return false
	}

	switch req.Type {
	case token.Get:
		s.reqdata.data.Send(VarResponse{Payload: s.v.Get()})
	case token.Set:
		s.v.Set(req.Payload)
		s.reqdata.data.Send(VarResponse{})
	}
	return true
}

// varPortWorker owns a disjoint shard of this actor's VarPorts, assigned
// by a consistent hash of the VarPort's name, mirroring the teacher
// module's task.go sharding of Record forwarding across goroutine-backed
// buffers by a consistent hash of the record id. Sharding spreads
// reference-port servicing for actors with many owned VarPorts across a
// small worker pool while keeping each individual VarPort's request
// ordering single-threaded (only one worker ever drains a given port).
type varPortWorker struct {
	ports []*varPortServer
}

// newVarPortWorkers partitions ports into numWorkers shards using
// go-jump consistent hashing over an xxhash of each port's name, so the
// same VarPort always lands on the same worker across calls within a run.
func newVarPortWorkers(ports map[string]*varPortServer, numWorkers int) []*varPortWorker {
	if numWorkers < 1 {
		numWorkers = 1
	}

	workers := make([]*varPortWorker, numWorkers)
	for i := range workers {
		workers[i] = &varPortWorker{}
	}

	for name, vp := range ports {
		key := int64(xxhash.Sum64String(name))
		bucket := jump.Hash(key, numWorkers)
		workers[bucket].ports = append(workers[bucket].ports, vp)
	}

	return workers
}

// serviceRefPorts runs the reference-port service loop (§4.3): one
// goroutine per worker drains its shard of VarPorts, yielding the
// processor when idle, until the next control token arrives on the
// actor's control channel. The channel set here is dynamic (one port per
// shard member) so polling, not select, is the natural idiom — per §9's
// "coroutine-style servicing loops" design note.
func (a *ProcessActor) serviceRefPorts() {
	if len(a.refWorkers) == 0 {
		return
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, w := range a.refWorkers {
		if len(w.ports) == 0 {
			continue
		}
		wg.Add(1)
		go func(w *varPortWorker) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				worked := false
				for _, port := range w.ports {
					if port.serviceOnce() {
						worked = true
					}
				}
				if !worked {
					runtime.Gosched()
				}
			}
		}(w)
	}

	cmd, ok := a.control.control.Recv()
	close(done)
	wg.Wait()
	a.setPending(cmd, ok)
}
