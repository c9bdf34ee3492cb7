// Package store holds a backend-agnostic conformance suite shared by
// every lava.Store implementation (moss, leveldb, ...).
package store

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
	"bytes"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lava-rt/lava"
)

// TestStore runs the shared conformance suite against a lava.Store
// produced by supplier, under the given Config.
func TestStore(t *testing.T, supplier lava.StoreSupplier, config lava.Config) {
	var err error
	var store lava.Store

	key := randStringBytes(8)
	value := randStringBytes(32)

	t.Run("initialize", func(t *testing.T) {
		store, err = supplier("test", config)
		assert.NoError(t, err)
	})

	t.Run("get inexistent key", func(t *testing.T) {
		_, err = store.Get(key)
		assert.Equal(t, lava.ErrKeyNotFound, err)
	})

	t.Run("set", func(t *testing.T) {
		err = store.Set(key, value)
		assert.NoError(t, err)

		v, err := store.Get(key)
		assert.NoError(t, err)
		assert.Equal(t, 0, bytes.Compare(v, value))
	})

	t.Run("get", func(t *testing.T) {
		v, err := store.Get(key)
		assert.NoError(t, err)
		assert.Equal(t, 0, bytes.Compare(v, value))
	})

	t.Run("delete", func(t *testing.T) {
		err = store.Delete(key)
		assert.NoError(t, err)
	})

	t.Run("get deleted key", func(t *testing.T) {
		_, err = store.Get(key)
		assert.Equal(t, lava.ErrKeyNotFound, err)
	})

	keys := make([][]byte, 10)
	for x := 0; x < 10; x++ {
		keys[x] = randStringBytes(4)
	}

	sorted := make([][]byte, 10)
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		return string(sorted[i]) < string(sorted[j])
	})

	t.Run("range lexicographical", func(t *testing.T) {
		for x := len(keys) - 1; x >= 0; x-- {
			store.Set(keys[x], value)
		}

		idx := 1
		err = store.Range(sorted[1], sorted[3], func(key, value []byte) error {
			assert.Equal(t, 0, bytes.Compare(key, sorted[idx]))
			idx++
			return nil
		})

		assert.NoError(t, err)
	})

	t.Run("range all lexicographical", func(t *testing.T) {
		idx := 0
		err = store.Range(nil, nil, func(key, value []byte) error {
			assert.Equal(t, 0, bytes.Compare(key, sorted[idx]))
			idx++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, len(sorted), idx)
	})

	t.Run("concurrent set and get", func(t *testing.T) {
		start := make(chan struct{})
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			<-start
			for x := 0; x < 100; x++ {
				for i := range sorted {
					_, err := store.Get(sorted[i])
					assert.NoError(t, err)
				}
			}
			wg.Done()
		}()

		wg.Add(1)
		go func() {
			close(start)
			for x := 0; x < 100; x++ {
				for i := range sorted {
					err := store.Set(keys[i], value)
					assert.NoError(t, err)
				}
			}
			wg.Done()
		}()

		wg.Wait()
	})
}

const (
	letterBytes   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	letterIdxBits = 6
	letterIdxMask = 1<<letterIdxBits - 1
	letterIdxMax  = 63 / letterIdxBits
)

func randStringBytes(n int) []byte {
	b := make([]byte, n)
	for i, cache, remain := n-1, rand.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = rand.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}
	return b
}
