// Package leveldb implements a durable lava.Store backed by
// github.com/syndtr/goleveldb, for checkpoints that must survive a
// process restart. Controller.Checkpoint and Restore take the Store to
// use as an argument; they do not read config path "checkpoint.store".
package leveldb

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
	"os"
	"path/filepath"

	ldb "github.com/syndtr/goleveldb/leveldb"
	ldbopt "github.com/syndtr/goleveldb/leveldb/opt"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/lava-rt/lava"
)

var (
	dopt *ldbopt.Options
	wopt *ldbopt.WriteOptions
	ropt *ldbopt.ReadOptions
)

// make sure we implement the needed interfaces
var _ lava.Remover = (*DB)(nil)
var _ lava.Store = (*DB)(nil)
var _ lava.StoreSupplier = Supplier

// DB is a durable, on-disk checkpoint store backed by leveldb.
type DB struct {
	name string
	db   *ldb.DB
	path string
}

// Supplier opens (creating if needed) a leveldb checkpoint store named
// name. Its on-disk path is read from config path "checkpoint.path",
// defaulting to "./state" next to the running binary.
func Supplier(name string, config lava.Config) (store lava.Store, err error) {
	statePath, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return nil, err
	}
	statePath = filepath.Join(statePath, "state")

	d := &DB{name: name}
	d.path = filepath.Join(config.Get("checkpoint.path").String(statePath), name)

	d.db, err = ldb.OpenFile(d.path, dopt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Remove closes the store and erases its contents.
func (d *DB) Remove() (err error) {
	if err = d.Close(); err != nil {
		return err
	}
	return os.RemoveAll(d.path)
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
	value, err = d.db.Get(key, ropt)

	if err == ldb.ErrNotFound {
		return nil, lava.ErrKeyNotFound
	}

	return value, err
}

// Set the value for the given key.
func (d *DB) Set(key, value []byte) (err error) {
	return d.db.Put(key, value, wopt)
}

// Delete the value for the given key.
func (d *DB) Delete(key []byte) (err error) {
	return d.db.Delete(key, wopt)
}

// Range iterates the store within the given key range applying the
// callback for the key/value pairs.
func (d *DB) Range(from, to []byte, cb func(key, value []byte) error) (err error) {
	rng := &ldbutil.Range{Start: from, Limit: to}
	iter := d.db.NewIterator(rng, ropt)
	defer iter.Release()

	for iter.Next() {
		if err = cb(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}

	return iter.Error()
}

// RangePrefix iterates the store over a key prefix applying the
// callback for the key/value pairs.
func (d *DB) RangePrefix(prefix []byte, cb func(key, value []byte) error) (err error) {
	iter := d.db.NewIterator(ldbutil.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if err = cb(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}

	return iter.Error()
}
