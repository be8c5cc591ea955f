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
)

/*
ShardCoordinator coordinates shard creation of concurrent transactions.
*/
type ShardCoordinator struct {
	requests    map[string]map[string]bool // Type label to ids of requesting transactions
	candidates  map[string]bool            // Ids of transactions which must lock
	checkpoints map[string]int64           // Soft checkpoints per type label
	mutex       *sync.Mutex                // Mutex to protect the maps
}

/*
NewShardCoordinator creates a new ShardCoordinator.
*/
func NewShardCoordinator() *ShardCoordinator {
	return &ShardCoordinator{make(map[string]map[string]bool), make(map[string]bool),
		make(map[string]int64), &sync.Mutex{}}
}

/*
AckShardRequest registers that a transaction wants to create a shard for a
type. If more than one transaction wants to shard the same type all of them
become lock candidates.
*/
func (sc *ShardCoordinator) AckShardRequest(label string, txID string) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	txs, ok := sc.requests[label]
	if !ok {
		txs = make(map[string]bool)
		sc.requests[label] = txs
	}

	txs[txID] = true

	if len(txs) > 1 {
		for id := range txs {
			sc.candidates[id] = true
		}

		logger.Debug(fmt.Sprintf("Type %v is sharded by %v transactions", label, len(txs)))
	}
}

/*
AckShardCommit removes a transaction from the shard requests of a type.
*/
func (sc *ShardCoordinator) AckShardCommit(label string, txID string) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.releaseRequest(label, txID)
}

/*
AcknowledgeCommit removes a committed transaction from the shard requests of
the given types and from the lock candidates.
*/
func (sc *ShardCoordinator) AcknowledgeCommit(labels []string, txID string) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	for _, label := range labels {
		sc.releaseRequest(label, txID)
	}

	delete(sc.candidates, txID)
}

/*
AcknowledgeRollback removes a transaction from all shard requests and from
the lock candidates.
*/
func (sc *ShardCoordinator) AcknowledgeRollback(txID string) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	for label := range sc.requests {
		sc.releaseRequest(label, txID)
	}

	delete(sc.candidates, txID)
}

/*
RequiresLock returns if a transaction must acquire the exclusive keyspace
lock.
*/
func (sc *ShardCoordinator) RequiresLock(txID string) bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	return sc.candidates[txID]
}

/*
Checkpoint returns the soft checkpoint of a type.
*/
func (sc *ShardCoordinator) Checkpoint(label string) (int64, bool) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	cp, ok := sc.checkpoints[label]

	return cp, ok
}

/*
UpdateCheckpoint sets the soft checkpoint of a type.
*/
func (sc *ShardCoordinator) UpdateCheckpoint(label string, count int64) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.checkpoints[label] = count
}

/*
ClaimCheckpoint advances the soft checkpoint of a type to a given instance
count if the count is at least threshold past the highest known checkpoint.
The floor is a checkpoint which is known from elsewhere (e.g. the persisted
checkpoint). Returns true if the caller should create a shard.
*/
func (sc *ShardCoordinator) ClaimCheckpoint(label string, count int64, floor int64, threshold int64) bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	base := floor
	if cp, ok := sc.checkpoints[label]; ok && cp > base {
		base = cp
	}

	if count-base < threshold {
		return false
	}

	sc.checkpoints[label] = count

	return true
}

/*
RequestCount returns the number of transactions which requested a shard for
a type.
*/
func (sc *ShardCoordinator) RequestCount(label string) int {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	return len(sc.requests[label])
}

func (sc *ShardCoordinator) releaseRequest(label string, txID string) {
	if txs, ok := sc.requests[label]; ok {
		delete(txs, txID)

		if len(txs) == 0 {
			delete(sc.requests, label)
		}
	}
}
