// Package moss implements an in-memory, ephemeral lava.Store backed by
// github.com/couchbase/moss. "moss" is the default value Config.CheckpointStore
// reports for config path "checkpoint.store"; Controller.Checkpoint and
// Restore take the Store to use as an argument and do not read that path.
package moss

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

	"github.com/couchbase/moss"

	"github.com/lava-rt/lava"
)

var (
	ropts    = moss.ReadOptions{}
	wopts    = moss.WriteOptions{}
	iteropts = moss.IteratorOptions{}
)

// make sure we implement the needed interfaces
var _ lava.Remover = (*DB)(nil)
var _ lava.Store = (*DB)(nil)
var _ lava.StoreSupplier = Supplier

// DB is an in-memory key/value checkpoint store backed by moss.
type DB struct {
	name string
	db   moss.Collection
}

// Supplier builds a moss-backed checkpoint Store named name. The
// supplied Config is unused: moss keeps no on-disk state to locate.
func Supplier(name string, _ lava.Config) (store lava.Store, err error) {
	d := &DB{name: name}
	d.db, err = moss.NewCollection(moss.DefaultCollectionOptions)
	if err != nil {
		return nil, err
	}
	if err = d.db.Start(); err != nil {
		return nil, err
	}
	return d, nil
}

// Remove closes the store and erases its contents.
func (d *DB) Remove() (err error) {
	return d.Close()
}

// Close the store, releasing its resources.
func (d *DB) Close() (err error) {
	err = d.db.Close()
	d.db = nil
	return err
}

// Name returns this store's name.
func (d *DB) Name() (name string) {
	return d.name
}

// Get the value for the given key.
func (d *DB) Get(key []byte) (value []byte, err error) {
	value, err = d.db.Get(key, ropts)

	if value == nil && err == nil {
		return nil, lava.ErrKeyNotFound
	}

	return value, err
}

// Set the value for the given key.
func (d *DB) Set(key, value []byte) (err error) {
	batch, err := d.db.NewBatch(1, len(key)+len(value))
	if err != nil {
		return err
	}
	defer batch.Close()

	if err = batch.Set(key, value); err != nil {
		return err
	}

	return d.db.ExecuteBatch(batch, wopts)
}

// Delete the value for the given key.
func (d *DB) Delete(key []byte) (err error) {
	batch, err := d.db.NewBatch(1, 0)
	if err != nil {
		return err
	}
	defer batch.Close()

	// moss returns a nil error on a non-existent key.
	if err = batch.Del(key); err != nil {
		return err
	}

	return d.db.ExecuteBatch(batch, wopts)
}

// Range iterates the store within the given key range applying the
// callback for the key/value pairs.
func (d *DB) Range(from, to []byte, cb func(key, value []byte) error) (err error) {
	ss, err := d.db.Snapshot()
	if err != nil {
		return err
	}

	iter, err := ss.StartIterator(from, to, iteropts)
	if err != nil {
		return err
	}
	defer iter.Close()

	for {
		key, val, err := iter.Current()
		if err != nil {
			if err == moss.ErrIteratorDone {
				return nil
			}
			return err
		}

		if err = cb(key, val); err != nil {
			return err
		}

		iter.Next()
	}
}

// RangePrefix iterates the store over a key prefix applying the
// callback for the key/value pairs.
func (d *DB) RangePrefix(prefix []byte, cb func(key, value []byte) error) (err error) {
	return d.Range(nil, nil, func(key, value []byte) error {
		if bytes.HasPrefix(key, prefix) {
			return cb(key, value)
		}
		return nil
	})
}
