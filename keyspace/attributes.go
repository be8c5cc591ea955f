/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package keyspace

import (
	"fmt"
	"sync"

	"devt.de/krotik/common/datautil"
	"go.uber.org/atomic"
)

/*
CommittedCache maps attribute indices to the concept ids of committed
attribute vertices. The cache is bounded by size and by the time since an
entry was last accessed. A missing entry does not mean that the attribute
does not exist.
*/
type CommittedCache struct {
	cache *datautil.MapCache // Underlying cache
	mutex *sync.Mutex        // Serializes refreshes and invalidations
}

/*
NewCommittedCache creates a new CommittedCache. A value of 0 means no size or
no age constraint.
*/
func NewCommittedCache(maxSize uint64, maxAgeSeconds int64) *CommittedCache {
	return &CommittedCache{datautil.NewMapCache(maxSize, maxAgeSeconds), &sync.Mutex{}}
}

/*
Get looks up the concept id of an attribute index. A hit refreshes the entry.
*/
func (cc *CommittedCache) Get(index string) (string, bool) {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	v, ok := cc.cache.Get(index)
	if !ok {
		return "", false
	}

	cc.cache.Put(index, v)

	return v.(string), true
}

/*
Put stores the concept id of an attribute index.
*/
func (cc *CommittedCache) Put(index string, id string) {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	cc.cache.Put(index, id)
}

/*
Invalidate removes an attribute index from the cache.
*/
func (cc *CommittedCache) Invalidate(index string) {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	cc.cache.Remove(index)
}

/*
String returns a string representation of this cache.
*/
func (cc *CommittedCache) String() string {
	return cc.cache.String()
}

/*
AttributeTracker tracks attribute insertions of concurrent transactions.
*/
type AttributeTracker struct {
	pending    map[string]map[string]bool // Index to ids of transactions with a pending insert
	candidates map[string]bool            // Ids of transactions which must lock
	committed  *CommittedCache            // Cache of committed attributes
	mutex      *sync.Mutex                // Mutex to protect pending and candidates
	contended  *atomic.Int64              // Number of contended inserts
}

/*
NewAttributeTracker creates a new AttributeTracker.
*/
func NewAttributeTracker(cacheMaxSize uint64, cacheMaxAgeSeconds int64) *AttributeTracker {
	return &AttributeTracker{make(map[string]map[string]bool), make(map[string]bool),
		NewCommittedCache(cacheMaxSize, cacheMaxAgeSeconds), &sync.Mutex{}, atomic.NewInt64(0)}
}

/*
AcknowledgeInsert registers that a transaction created a vertex for an
attribute index. If another transaction has a pending insert for the same
index all involved transactions become lock candidates.
*/
func (at *AttributeTracker) AcknowledgeInsert(index string, txID string) {
	at.mutex.Lock()
	defer at.mutex.Unlock()

	txs, ok := at.pending[index]
	if !ok {
		txs = make(map[string]bool)
		at.pending[index] = txs
	}

	txs[txID] = true

	if len(txs) > 1 {
		at.contended.Inc()

		for id := range txs {
			at.candidates[id] = true
		}

		logger.Debug(fmt.Sprintf("Attribute %v is inserted by %v transactions", index, len(txs)))
	}
}

/*
AcknowledgeDelete releases the pending insert of a transaction for an
attribute index. The entry of the index is removed once no transaction has a
pending insert anymore.
*/
func (at *AttributeTracker) AcknowledgeDelete(index string, txID string) {
	at.mutex.Lock()
	defer at.mutex.Unlock()

	at.releasePending(index, txID)
}

/*
NeedsLock returns if a transaction must acquire the exclusive keyspace lock.
*/
func (at *AttributeTracker) NeedsLock(txID string) bool {
	at.mutex.Lock()
	defer at.mutex.Unlock()

	return at.candidates[txID]
}

/*
CommittedCache returns the cache of committed attributes.
*/
func (at *AttributeTracker) CommittedCache() *CommittedCache {
	return at.committed
}

/*
AcknowledgeCommit acknowledges the successful commit of a transaction. The
promoted index / concept id pairs are installed into the committed cache
before the pending inserts of the committed indices are released.
*/
func (at *AttributeTracker) AcknowledgeCommit(txID string, indices []string, promoted map[string]string) {

	for index, id := range promoted {
		at.committed.Put(index, id)
	}

	at.mutex.Lock()
	defer at.mutex.Unlock()

	for _, index := range indices {
		at.releasePending(index, txID)
	}

	delete(at.candidates, txID)
}

/*
AcknowledgeRollback releases all registrations of a transaction which did
not commit.
*/
func (at *AttributeTracker) AcknowledgeRollback(txID string, indices []string) {
	at.mutex.Lock()
	defer at.mutex.Unlock()

	for _, index := range indices {
		at.releasePending(index, txID)
	}

	delete(at.candidates, txID)
}

/*
PendingCount returns the number of transactions with a pending insert for
an attribute index.
*/
func (at *AttributeTracker) PendingCount(index string) int {
	at.mutex.Lock()
	defer at.mutex.Unlock()

	return len(at.pending[index])
}

/*
ContendedInserts returns the number of inserts which collided with a pending
insert of another transaction.
*/
func (at *AttributeTracker) ContendedInserts() int64 {
	return at.contended.Load()
}

func (at *AttributeTracker) releasePending(index string, txID string) {
	if txs, ok := at.pending[index]; ok {
		delete(txs, txID)

		if len(txs) == 0 {
			delete(at.pending, index)
		}
	}
}
