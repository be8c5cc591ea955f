/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graphstorage

import (
	"fmt"
	"os"

	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/conceptdb/graph/util"
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

/*
SequenceKey is the key of the element id sequence in the key-value store
*/
var SequenceKey = []byte("!seq")

/*
SequenceBandwidth is the number of ids which are leased from the store at once
*/
var SequenceBandwidth uint64 = 1000

/*
DiskGraphStorage data structure
*/
type DiskGraphStorage struct {
	name string           // Name of the graph storage
	db   *badger.DB       // Underlying key-value store
	seq  *badger.Sequence // Element id sequence
}

/*
NewDiskGraphStorage creates a new DiskGraphStorage instance. The storage
directory is created if it does not exist.
*/
func NewDiskGraphStorage(name string, syncWrites bool) (Storage, error) {

	if res, _ := fileutil.PathExists(name); !res {
		if err := os.MkdirAll(name, 0770); err != nil {
			return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error(), Cause: err}
		}
	}

	opts := badger.DefaultOptions(name).
		WithSyncWrites(syncWrites).
		WithLogger(&badgerLogger{logutil.GetLogger("conceptdb.storage")})

	return openDiskGraphStorage(name, opts)
}

/*
NewInMemoryDiskGraphStorage creates a new DiskGraphStorage instance which
keeps all data in memory. Useful for tests of the badger code path.
*/
func NewInMemoryDiskGraphStorage(name string) (Storage, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(&badgerLogger{logutil.GetLogger("conceptdb.storage")})

	return openDiskGraphStorage(name, opts)
}

func openDiskGraphStorage(name string, opts badger.Options) (Storage, error) {

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error(), Cause: err}
	}

	seq, err := db.GetSequence(SequenceKey, SequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error(), Cause: err}
	}

	return &DiskGraphStorage{name, db, seq}, nil
}

/*
Name returns the name of the DiskGraphStorage instance.
*/
func (dgs *DiskGraphStorage) Name() string {
	return dgs.name
}

/*
Begin starts a new badger transaction.
*/
func (dgs *DiskGraphStorage) Begin(update bool) (Transaction, error) {
	if dgs.db.IsClosed() {
		return nil, &util.GraphError{Type: util.ErrClosed, Detail: dgs.name}
	}

	return &diskTransaction{dgs, dgs.db.NewTransaction(update), update, false}, nil
}

/*
NextID returns a new unique element id.
*/
func (dgs *DiskGraphStorage) NextID() (uint64, error) {
	id, err := dgs.seq.Next()
	if err != nil {
		return 0, errors.Wrap(err, "cannot lease element id")
	}

	// Id 0 is never handed out

	return id + 1, nil
}

/*
Close closes the storage.
*/
func (dgs *DiskGraphStorage) Close() error {
	var errs []error

	if err := dgs.seq.Release(); err != nil {
		errs = append(errs, err)
	}

	if err := dgs.db.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &util.GraphError{Type: util.ErrClosing, Detail: fmt.Sprint(dgs.name, ": ", errs)}
	}

	return nil
}

/*
diskTransaction is a transaction on a DiskGraphStorage.
*/
type diskTransaction struct {
	dgs    *DiskGraphStorage // Storage which created this transaction
	txn    *badger.Txn       // Underlying badger transaction
	update bool              // Flag if this transaction may write
	done   bool              // Flag if this transaction is finished
}

/*
Get returns the value of a key as seen by this transaction.
*/
func (dt *diskTransaction) Get(key []byte) ([]byte, error) {
	if dt.done {
		return nil, ErrTransactionDone
	}

	return readItem(dt.txn, key)
}

/*
GetLatest returns the latest committed value of a key. A fresh read transaction
is used so the key does not become part of this transaction's conflict set.
*/
func (dt *diskTransaction) GetLatest(key []byte) ([]byte, error) {
	var ret []byte

	if dt.done {
		return nil, ErrTransactionDone
	}

	err := dt.dgs.db.View(func(txn *badger.Txn) error {
		var err error
		ret, err = readItem(txn, key)
		return err
	})

	return ret, err
}

/*
Set writes a key.
*/
func (dt *diskTransaction) Set(key []byte, value []byte) error {
	if err := dt.checkWrite(); err != nil {
		return err
	}

	err := dt.txn.Set(append([]byte(nil), key...), append([]byte(nil), value...))

	return errors.Wrapf(err, "cannot write key %q", key)
}

/*
Delete removes a key.
*/
func (dt *diskTransaction) Delete(key []byte) error {
	if err := dt.checkWrite(); err != nil {
		return err
	}

	err := dt.txn.Delete(append([]byte(nil), key...))

	return errors.Wrapf(err, "cannot delete key %q", key)
}

/*
Iterate visits all keys with a given prefix in ascending order.
*/
func (dt *diskTransaction) Iterate(prefix []byte, fn func(key []byte, value []byte) (bool, error)) error {
	if dt.done {
		return ErrTransactionDone
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := dt.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()

		value, err := item.ValueCopy(nil)
		if err != nil {
			return errors.Wrapf(err, "cannot read value of key %q", item.Key())
		}

		cont, err := fn(item.KeyCopy(nil), value)
		if err != nil || !cont {
			return err
		}
	}

	return nil
}

/*
Commit commits the badger transaction. Conflicts detected by badger are
returned as errors with badger.ErrConflict as cause.
*/
func (dt *diskTransaction) Commit() error {
	if dt.done {
		return ErrTransactionDone
	}

	dt.done = true

	return errors.Wrap(dt.txn.Commit(), "cannot commit transaction")
}

/*
Discard drops all writes of this transaction.
*/
func (dt *diskTransaction) Discard() {
	dt.done = true
	dt.txn.Discard()
}

/*
checkWrite checks if this transaction may write.
*/
func (dt *diskTransaction) checkWrite() error {
	if dt.done {
		return ErrTransactionDone
	} else if !dt.update {
		return ErrReadOnlyTransaction
	}
	return nil
}

/*
readItem reads a single value from a badger transaction.
*/
func readItem(txn *badger.Txn, key []byte) ([]byte, error) {

	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "cannot read key %q", key)
	}

	value, err := item.ValueCopy(nil)

	return value, errors.Wrapf(err, "cannot read value of key %q", key)
}

/*
badgerLogger forwards badger log output to a scoped logger.
*/
type badgerLogger struct {
	logger logutil.Logger
}

func (bl *badgerLogger) Errorf(format string, args ...interface{}) {
	bl.logger.Error(fmt.Sprintf(format, args...))
}

func (bl *badgerLogger) Warningf(format string, args ...interface{}) {
	bl.logger.Warning(fmt.Sprintf(format, args...))
}

func (bl *badgerLogger) Infof(format string, args ...interface{}) {
	bl.logger.Debug(fmt.Sprintf(format, args...))
}

func (bl *badgerLogger) Debugf(format string, args ...interface{}) {
	bl.logger.Debug(fmt.Sprintf(format, args...))
}
