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
	"encoding/binary"
	"math"
)

// Checkpoint snapshots every shareable Var's current value into store,
// keyed by var_id, each value little-endian IEEE-754 per the variable
// data channel's wire encoding (§6). Legal only when not Running.
func (c *Controller) Checkpoint(store Store) (err error) {
	if err = c.checkNotRunning(); err != nil {
		return err
	}

	var first error
	c.registry.Range(func(id uint64, v *Var) {
		if first != nil || !v.Shareable() {
			return
		}
		if err := store.Set(checkpointKey(id), encodeVar(v.Get())); err != nil {
			first = err
		}
	})
	return first
}

// Restore reads back a snapshot written by Checkpoint, setting each
// shareable Var's value from the store. Missing keys are left
// untouched. Legal only when not Running.
func (c *Controller) Restore(store Store) (err error) {
	if err = c.checkNotRunning(); err != nil {
		return err
	}

	var first error
	c.registry.Range(func(id uint64, v *Var) {
		if first != nil || !v.Shareable() {
			return
		}
		raw, getErr := store.Get(checkpointKey(id))
		if getErr == ErrKeyNotFound {
			return
		}
		if getErr != nil {
			first = getErr
			return
		}
		v.Set(decodeVar(raw))
	})
	return first
}

func checkpointKey(varID uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, varID)
	return key
}

func encodeVar(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeVar(buf []byte) []float64 {
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return values
}
