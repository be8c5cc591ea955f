/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

/*
Commit validates and persists all changes of this transaction. The given
context must be the context which carries this transaction. The transaction
is closed afterwards regardless of the outcome. Committing a closed
transaction has no effect. Committing a read transaction is an error.
*/
func (t *Transaction) Commit(ctx context.Context) error {
	if !t.busy.CompareAndSwap(false, true) {
		return &KBError{Type: ErrConcurrentUse, Detail: t.id}
	}
	defer t.busy.Store(false)

	if err := t.checkContext(ctx); err != nil {
		return err
	}

	if !t.open.Load() {
		return nil
	}

	if t.kind != WRITE {
		t.rollback()
		return &KBError{Type: ErrReadOnlyTransaction, Detail: t.id}
	}

	if err := t.commit(); err != nil {
		logger.Debug(fmt.Sprintf("Transaction %v failed to commit: %v", t.id, err))
		t.rollback()
		return err
	}

	t.open.Store(false)

	return nil
}

/*
commit runs the commit protocol. The keyspace lock is taken exclusively if
this transaction races with other transactions or if it changes data which
other transactions may have read from the shared attribute cache.
*/
func (t *Transaction) commit() error {
	var err error
	var shardLabels []string
	var claimed map[string]int64
	var deduplicated map[string]bool

	if err = t.removeInferredConcepts(); err != nil {
		return err
	}

	if shardLabels, err = t.computeShardCandidates(); err != nil {
		return err
	}

	unlock := t.session.lock.Acquire(t.commitLockRequired())
	defer unlock()

	claimed, err = t.createNewTypeShards(shardLabels)

	defer func() {

		// Soft checkpoints of shards which were never persisted are reset

		if err != nil {
			for label, hard := range claimed {
				t.session.shards.UpdateCheckpoint(label, hard)
			}
		}
	}()

	if err != nil {
		return err
	}

	cache := t.session.tracker.CommittedCache()
	for index := range t.removedAttributes {
		cache.Invalidate(index)
	}

	if deduplicated, err = t.mergeAttributes(); err != nil {
		return err
	}

	if err = t.validate(); err != nil {
		return err
	}

	if err = t.gt.Commit(); err != nil {
		err = storageError(err)
		return err
	}

	t.session.stats.commit(t.delta)
	t.session.cacheSchemaIDs(t.newSchema)

	t.ackCommit(shardLabels, deduplicated)

	return nil
}

/*
removeInferredConcepts deletes all inferred things which were not marked to
be persisted.
*/
func (t *Transaction) removeInferredConcepts() error {
	for _, id := range t.inferred {
		if t.persisted[id] {
			continue
		}

		c, err := t.concept(id)
		if errors.Is(err, ErrNotFound) {
			continue
		} else if err != nil {
			return err
		}

		switch th := c.(type) {
		case *Relation:
			s, err := th.structure()
			if err == nil {
				err = s.delete()
			}
			if err != nil {
				return err
			}
		case *Entity:
			err = t.deleteThing(th.vid)
		case *Attribute:
			err = t.deleteThing(th.vid)
		}

		if err != nil {
			return err
		}

		delete(t.modified, id)
	}

	return nil
}

/*
computeShardCandidates registers a shard request for every type whose number
of instances will pass the shard threshold relative to the last known
checkpoint.
*/
func (t *Transaction) computeShardCandidates() ([]string, error) {
	var ret []string

	labels := make([]string, 0, len(t.delta))
	for label, d := range t.delta {
		if d > 0 {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	for _, label := range labels {
		tv, err := t.lookupSchemaVertex(label)
		if err != nil {
			return nil, err
		} else if tv == nil {
			continue
		}

		checkpoint, ok := t.session.shards.Checkpoint(label)
		if !ok {
			checkpoint = intProp(tv.Props, PropTypeShardCheckpoint)
		}

		if t.session.stats.Count(label)+t.delta[label]-checkpoint >= t.shardThreshold(tv) {
			t.session.shards.AckShardRequest(label, t.id)
			ret = append(ret, label)
		}
	}

	return ret, nil
}

/*
commitLockRequired decides if this transaction needs the exclusive keyspace
lock.
*/
func (t *Transaction) commitLockRequired() bool {
	var reasons []string

	if t.session.tracker.NeedsLock(t.id) {
		reasons = append(reasons, "concurrent attribute insert")
	}

	if t.session.shards.RequiresLock(t.id) {
		reasons = append(reasons, "concurrent shard creation")
	}

	if len(t.removedAttributes) > 0 {
		reasons = append(reasons, "removed attributes")
	}

	for index := range t.modifiedKeyIndices {
		if _, ok := t.newAttributes[index]; !ok {
			reasons = append(reasons, "modified key attribute")
			break
		}
	}

	if len(reasons) > 0 {
		logger.Debug(fmt.Sprintf("Transaction %v requires the keyspace lock: %v",
			t.id, strings.Join(reasons, ", ")))
		return true
	}

	return false
}

/*
createNewTypeShards creates a new shard for every requested type whose
persisted checkpoint confirms that the threshold was passed. Returns the
previous persisted checkpoints of all sharded types.
*/
func (t *Transaction) createNewTypeShards(labels []string) (map[string]int64, error) {
	claimed := make(map[string]int64)

	for _, label := range labels {
		tv, err := t.lookupSchemaVertex(label)
		if err != nil {
			return claimed, err
		}

		hard := intProp(tv.Props, PropTypeShardCheckpoint)
		count := t.session.stats.Count(label) + t.delta[label]

		if !t.session.shards.ClaimCheckpoint(label, count, hard, t.shardThreshold(tv)) {
			logger.Debug(fmt.Sprintf("Transaction %v skips shard creation for %v (count: %v checkpoint: %v)",
				t.id, label, count, hard))
			continue
		}

		claimed[label] = hard

		if err := t.createShard(tv); err != nil {
			return claimed, err
		}

		if err := t.gt.SetVertexProperty(tv, PropTypeShardCheckpoint, count); err != nil {
			return claimed, storageError(err)
		}

		logger.Debug(fmt.Sprintf("Transaction %v created a new shard for %v (count: %v)",
			t.id, label, count))
	}

	return claimed, nil
}

/*
ackCommit acknowledges a successful commit. All inserted attributes which
were not merged are promoted into the committed attribute cache.
*/
func (t *Transaction) ackCommit(shardLabels []string, deduplicated map[string]bool) {
	indices := t.newAttributeIndices()
	promoted := make(map[string]string, len(indices))

	for _, index := range indices {
		if !deduplicated[index] {
			promoted[index] = string(vertexConceptID(t.newAttributes[index]))
		}
	}

	t.session.tracker.AcknowledgeCommit(t.id, indices, promoted)
	t.session.shards.AcknowledgeCommit(shardLabels, t.id)
}
