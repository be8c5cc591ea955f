/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package graphstorage contains classes which model storage objects for graph data.

There are two main storage objects: DiskGraphStorage which provides disk storage
on top of a badger key-value store and MemoryGraphStorage which provides
memory-only storage on top of a copy-on-write btree.

Both storage objects hand out snapshot transactions. A transaction reads the
store as it was when the transaction began plus its own writes. Writes are blind:
a key can be written without being visible in the snapshot. Commits are atomic.
A commit fails with a conflict if a key which the transaction read from its
snapshot was changed by another commit in the meantime. Latest reads are not
part of the conflict set.
*/
package graphstorage

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

/*
ErrKeyNotFound is returned if a requested key does not exist.
*/
var ErrKeyNotFound = errors.New("Key not found")

/*
ErrTransactionDone is returned if a finished transaction is used.
*/
var ErrTransactionDone = errors.New("Transaction has already been committed or discarded")

/*
ErrReadOnlyTransaction is returned if a read-only transaction is asked to write.
*/
var ErrReadOnlyTransaction = errors.New("Transaction is read-only")

/*
ErrConflict is returned if a memory transaction could not be committed because
of a concurrent commit.
*/
var ErrConflict = errors.New("Transaction Conflict")

/*
IsConflict checks if an error was caused by a conflicting commit of any
storage backend. A conflicting transaction can be retried.
*/
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, badger.ErrConflict)
}

/*
Storage interface models the storage backend for a graph.
*/
type Storage interface {

	/*
	   Name returns the name of the storage instance.
	*/
	Name() string

	/*
	   Begin starts a new snapshot transaction. Read-only transactions are
	   started if update is false.
	*/
	Begin(update bool) (Transaction, error)

	/*
	   NextID returns a new unique element id. Ids are never reused.
	*/
	NextID() (uint64, error)

	/*
		Close closes the storage.
	*/
	Close() error
}

/*
Transaction models a snapshot transaction on a storage.
*/
type Transaction interface {

	/*
	   Get returns the value of a key as seen by this transaction.
	*/
	Get(key []byte) ([]byte, error)

	/*
	   GetLatest returns the latest committed value of a key. Pending writes of
	   this transaction are not considered.
	*/
	GetLatest(key []byte) ([]byte, error)

	/*
	   Set writes a key.
	*/
	Set(key []byte, value []byte) error

	/*
	   Delete removes a key.
	*/
	Delete(key []byte) error

	/*
	   Iterate visits all keys with a given prefix in ascending order. The
	   iteration stops if the callback returns false or an error. The callback
	   must not modify the transaction.
	*/
	Iterate(prefix []byte, fn func(key []byte, value []byte) (bool, error)) error

	/*
	   Commit atomically applies all writes of this transaction.
	*/
	Commit() error

	/*
	   Discard drops all writes of this transaction. Discarding a finished
	   transaction has no effect.
	*/
	Discard()
}
