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
	"time"
)

// Chan is a typed bounded FIFO with a send endpoint and a receive endpoint,
// matching the channel layer surface every control, sync, request and data
// channel in the runtime exposes (§4.4): Send/Recv block cooperatively,
// Probe never blocks, and Start/Join are an idempotent lifecycle pair.
// This generalizes the buffered-channel-plus-donech pairing the teacher's
// Context used for forwarding records into a reusable, typed primitive.
type Chan[T any] struct {
	mtx      sync.Mutex
	c        chan T
	size     int
	started  bool
	joined   bool
}

// NewChan creates a Chan with the given buffer capacity. A size of 0
// yields an unbuffered (synchronous rendezvous) channel.
func NewChan[T any](size int) *Chan[T] {
	return &Chan[T]{size: size}
}

// Start allocates the underlying channel. Idempotent: calling Start on an
// already-started Chan is a no-op, matching §4.4's "start must be called
// on both endpoints before any send/recv" without requiring callers to
// track who starts first.
func (c *Chan[T]) Start() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.started {
		return
	}
	c.c = make(chan T, c.size)
	c.started = true
}

// Join releases the underlying channel. Idempotent; safe to call from
// either endpoint, any number of times.
func (c *Chan[T]) Join() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.joined {
		return
	}
	c.joined = true
	close(c.c)
}

// Send enqueues token, blocking if the channel is at capacity.
func (c *Chan[T]) Send(token T) {
	c.c <- token
}

// Recv blocks until a token is available and returns it. ok is false if
// the channel was Joined and drained.
func (c *Chan[T]) Recv() (token T, ok bool) {
	token, ok = <-c.c
	return token, ok
}

// RecvTimeout blocks until a token is available or d elapses. timedOut is
// true if d elapsed first; ok mirrors Recv's closed-and-drained signal
// and is only meaningful when timedOut is false.
func (c *Chan[T]) RecvTimeout(d time.Duration) (token T, ok bool, timedOut bool) {
	select {
	case token, ok = <-c.c:
		return token, ok, false
	case <-time.After(d):
		return token, false, true
	}
}

// Probe reports whether at least one token is queued, without blocking.
// Used by the variable-service and reference-port-service loops to poll
// for a new control token between units of service work (§9, "coroutine
// style servicing loops").
func (c *Chan[T]) Probe() (ok bool) {
	return len(c.c) > 0
}

// raw exposes the underlying Go channel for select-based multiplexing
// over a small, fixed set of Chans, which is more idiomatic than polling
// when the channel count is known ahead of time. Package-internal only.
func (c *Chan[T]) raw() chan T {
	return c.c
}
