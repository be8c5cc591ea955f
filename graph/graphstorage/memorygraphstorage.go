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
	"bytes"
	"sync"

	"devt.de/krotik/conceptdb/graph/util"
	"github.com/google/btree"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

/*
memItem is a single key-value pair in the btree.
*/
type memItem struct {
	key   []byte
	value []byte
}

func memItemLess(a, b memItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

/*
MemoryGraphStorage data structure
*/
type MemoryGraphStorage struct {
	name    string                 // Name of the graph storage
	tree    *btree.BTreeG[memItem] // Committed data
	seq     *atomic.Uint64         // Element id sequence
	version uint64                 // Version of the last commit
	commits map[string]uint64      // Commit version per written key
	mutex   *sync.RWMutex          // Mutex to protect the committed data
	closed  bool                   // Flag if the storage was closed
}

/*
NewMemoryGraphStorage creates a new MemoryGraphStorage instance.
*/
func NewMemoryGraphStorage(name string) Storage {
	return &MemoryGraphStorage{name, btree.NewG(32, memItemLess),
		atomic.NewUint64(0), 0, make(map[string]uint64), &sync.RWMutex{}, false}
}

/*
Name returns the name of the MemoryGraphStorage instance.
*/
func (mgs *MemoryGraphStorage) Name() string {
	return mgs.name
}

/*
Begin starts a new transaction. The transaction works on a lazy copy of the
committed data.
*/
func (mgs *MemoryGraphStorage) Begin(update bool) (Transaction, error) {

	// Cloning marks the shared nodes copy-on-write so it needs the writer lock

	mgs.mutex.Lock()
	defer mgs.mutex.Unlock()

	if mgs.closed {
		return nil, &util.GraphError{Type: util.ErrClosed, Detail: mgs.name}
	}

	return &memoryTransaction{mgs, update, mgs.tree.Clone(), mgs.version,
		make(map[string]bool), make(map[string]bool), nil, false}, nil
}

/*
NextID returns a new unique element id.
*/
func (mgs *MemoryGraphStorage) NextID() (uint64, error) {
	return mgs.seq.Inc(), nil
}

/*
Close closes the storage.
*/
func (mgs *MemoryGraphStorage) Close() error {
	mgs.mutex.Lock()
	defer mgs.mutex.Unlock()

	mgs.closed = true

	return nil
}

/*
memOp is a recorded write operation.
*/
type memOp struct {
	item   memItem
	delete bool
}

/*
memoryTransaction is a transaction on a MemoryGraphStorage. Update
transactions record the keys they read from their snapshot. A commit fails
with a conflict if one of these keys was written by another commit after the
transaction began.
*/
type memoryTransaction struct {
	mgs      *MemoryGraphStorage    // Storage which created this transaction
	update   bool                   // Flag if this transaction may write
	snapshot *btree.BTreeG[memItem] // Snapshot of the data including own writes
	start    uint64                 // Commit version of the snapshot
	reads    map[string]bool        // Keys read from the snapshot
	writes   map[string]bool        // Keys written by this transaction
	log      []memOp                // Write log which is replayed on commit
	done     bool                   // Flag if this transaction is finished
}

/*
Get returns the value of a key as seen by this transaction.
*/
func (mt *memoryTransaction) Get(key []byte) ([]byte, error) {
	if mt.done {
		return nil, ErrTransactionDone
	}

	mt.trackRead(key)

	item, ok := mt.snapshot.Get(memItem{key: key})
	if !ok {
		return nil, ErrKeyNotFound
	}

	return item.value, nil
}

/*
GetLatest returns the latest committed value of a key.
*/
func (mt *memoryTransaction) GetLatest(key []byte) ([]byte, error) {
	if mt.done {
		return nil, ErrTransactionDone
	}

	mt.mgs.mutex.RLock()
	defer mt.mgs.mutex.RUnlock()

	item, ok := mt.mgs.tree.Get(memItem{key: key})
	if !ok {
		return nil, ErrKeyNotFound
	}

	return item.value, nil
}

/*
Set writes a key.
*/
func (mt *memoryTransaction) Set(key []byte, value []byte) error {
	if err := mt.checkWrite(); err != nil {
		return err
	}

	item := memItem{append([]byte(nil), key...), append([]byte(nil), value...)}

	mt.snapshot.ReplaceOrInsert(item)
	mt.log = append(mt.log, memOp{item, false})
	mt.writes[string(key)] = true

	return nil
}

/*
Delete removes a key.
*/
func (mt *memoryTransaction) Delete(key []byte) error {
	if err := mt.checkWrite(); err != nil {
		return err
	}

	item := memItem{key: append([]byte(nil), key...)}

	mt.snapshot.Delete(item)
	mt.log = append(mt.log, memOp{item, true})
	mt.writes[string(key)] = true

	return nil
}

/*
Iterate visits all keys with a given prefix in ascending order.
*/
func (mt *memoryTransaction) Iterate(prefix []byte, fn func(key []byte, value []byte) (bool, error)) error {
	var err error

	if mt.done {
		return ErrTransactionDone
	}

	mt.snapshot.AscendGreaterOrEqual(memItem{key: prefix}, func(item memItem) bool {
		var cont bool

		if !bytes.HasPrefix(item.key, prefix) {
			return false
		}

		if mt.update {
			mt.reads[string(item.key)] = true
		}

		cont, err = fn(item.key, item.value)

		return cont && err == nil
	})

	return err
}

/*
Commit replays the write log of this transaction onto the committed data.
The commit fails with ErrConflict if a key which was read by this transaction
has been changed by another commit.
*/
func (mt *memoryTransaction) Commit() error {
	if mt.done {
		return ErrTransactionDone
	}

	mt.done = true

	if len(mt.log) == 0 {
		return nil
	}

	mt.mgs.mutex.Lock()
	defer mt.mgs.mutex.Unlock()

	if mt.mgs.closed {
		return &util.GraphError{Type: util.ErrClosed, Detail: mt.mgs.name}
	}

	for key := range mt.reads {
		if mt.mgs.commits[key] > mt.start {
			mt.log = nil
			return errors.Wrapf(ErrConflict, "cannot commit transaction (key %q)", key)
		}
	}

	mt.mgs.version++

	for key := range mt.writes {
		mt.mgs.commits[key] = mt.mgs.version
	}

	for _, op := range mt.log {
		if op.delete {
			mt.mgs.tree.Delete(op.item)
		} else {
			mt.mgs.tree.ReplaceOrInsert(op.item)
		}
	}

	mt.log = nil

	return nil
}

/*
Discard drops all writes of this transaction.
*/
func (mt *memoryTransaction) Discard() {
	mt.done = true
	mt.log = nil
	mt.snapshot = nil
	mt.reads = nil
}

/*
trackRead records a key which is read from the snapshot. Keys which were
written by this transaction are not tracked.
*/
func (mt *memoryTransaction) trackRead(key []byte) {
	if mt.update && !mt.writes[string(key)] {
		mt.reads[string(key)] = true
	}
}

/*
checkWrite checks if this transaction may write.
*/
func (mt *memoryTransaction) checkWrite() error {
	if mt.done {
		return ErrTransactionDone
	} else if !mt.update {
		return ErrReadOnlyTransaction
	}
	return nil
}
