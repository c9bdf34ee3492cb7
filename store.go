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

import "errors"

// ErrKeyNotFound is returned when a key is not found on a get from a
// checkpoint Store.
var ErrKeyNotFound = errors.New("key not found")

// Remover is implemented by any Store that must clear its data or state.
// Remove must ensure releasing and closing of resources.
type Remover interface {
	Remove() (err error)
}

// StoreSupplier instantiates a checkpoint Store backend, given the
// checkpoint's name (used as a namespace/file path by durable backends)
// and the runtime's Config.
type StoreSupplier func(name string, config Config) (store Store, err error)

// ROStore is a read-only key/value store.
type ROStore interface {
	// Name returns this store's name.
	Name() (name string)

	// Get the value for the given key.
	Get(key []byte) (value []byte, err error)

	// Range iterates the store in byte-wise lexicographical sorting
	// order within the given key range, applying the callback for the
	// key/value pairs. Returning an error stops the iteration. A nil
	// from or to sets the iterator to the beginning or end of the
	// Store; both nil iterates the whole store.
	Range(from, to []byte, callback func(key, value []byte) error) (err error)

	// RangePrefix iterates the store over a key prefix, applying the
	// callback for the key/value pairs.
	RangePrefix(prefix []byte, cb func(key, value []byte) error) (err error)
}

// Store is a read/write key/value store, used by Controller.Checkpoint
// and Controller.Restore to persist and recover a snapshot of every
// shareable Var's value (§3's Var data model supplemented with a
// persistence path the distilled spec left unaddressed).
type Store interface {
	ROStore

	// Set the value for the given key.
	Set(key, value []byte) (err error)

	// Delete the given key and its associated value.
	Delete(key []byte) (err error)
}
