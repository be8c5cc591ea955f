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
	"fmt"
	"sync"

	"devt.de/krotik/conceptdb/graph"
	"devt.de/krotik/conceptdb/graph/graphstorage"
	"devt.de/krotik/conceptdb/keyspace"
	"go.uber.org/atomic"
)

/*
SessionOptions are the options of a session.
*/
type SessionOptions struct {
	ShardThreshold     int64  // Number of new instances after which a type gets a new shard
	CacheMaxSize       uint64 // Maximum size of the committed attribute cache (0 no limit)
	CacheMaxAgeSeconds int64  // Maximum age of committed attribute cache entries (0 no limit)
}

/*
DefaultSessionOptions returns the default session options.
*/
func DefaultSessionOptions() *SessionOptions {
	return &SessionOptions{10000, 10000, 600}
}

/*
Session gives access to a keyspace. All transactions of a keyspace are opened
from the same session which holds the shared coordination state.
*/
type Session struct {
	gm       *graph.Manager             // Graph of this keyspace
	opts     *SessionOptions            // Options of this session
	tracker  *keyspace.AttributeTracker // Tracker for attribute insertions
	shards   *keyspace.ShardCoordinator // Coordinator for shard creation
	lock     *keyspace.Lock             // Keyspace lock
	stats    *KeyspaceStatistics        // Committed instance counts
	schema   map[string]uint64          // Cache of committed schema labels
	schemaMu *sync.RWMutex              // Mutex for the schema cache
	merges   *atomic.Int64              // Number of merged attribute vertices
	open     *atomic.Bool               // Flag if this session is open
}

/*
NewSession creates a new session for a keyspace which is stored in a given
graph storage.
*/
func NewSession(gs graphstorage.Storage, opts *SessionOptions) (*Session, error) {
	if opts == nil {
		opts = DefaultSessionOptions()
	}

	s := &Session{
		gm:       graph.NewGraphManager(gs, IndexedProperties...),
		opts:     opts,
		tracker:  keyspace.NewAttributeTracker(opts.CacheMaxSize, opts.CacheMaxAgeSeconds),
		shards:   keyspace.NewShardCoordinator(),
		lock:     keyspace.NewLock(),
		stats:    newKeyspaceStatistics(),
		schema:   make(map[string]uint64),
		schemaMu: &sync.RWMutex{},
		merges:   atomic.NewInt64(0),
		open:     atomic.NewBool(true),
	}

	gt, err := graph.NewGraphTrans(s.gm, false)
	if err != nil {
		return nil, storageError(err)
	}
	defer gt.Rollback()

	if err := s.stats.load(gt); err != nil {
		return nil, storageError(err)
	}

	logger.Info(fmt.Sprintf("Opened keyspace %v", gs.Name()))

	return s, nil
}

/*
Name returns the name of the keyspace.
*/
func (s *Session) Name() string {
	return s.gm.Name()
}

/*
txContextKey is the context key of an open transaction of a session
*/
type txContextKey struct {
	session *Session
}

/*
Transaction opens a new transaction. The returned context carries the
transaction. It is an error to open a transaction from a context which
already carries an open transaction of this session.
*/
func (s *Session) Transaction(ctx context.Context, kind TxType) (context.Context, *Transaction, error) {
	if !s.open.Load() {
		return ctx, nil, &KBError{Type: ErrSessionClosed, Detail: s.Name()}
	}

	if tx := s.CurrentTransaction(ctx); tx != nil {
		return ctx, nil, &KBError{Type: ErrTransactionAlreadyOpen, Detail: tx.ID()}
	}

	gt, err := graph.NewGraphTrans(s.gm, kind == WRITE)
	if err != nil {
		return ctx, nil, storageError(err)
	}

	tx := newTransaction(s, kind, gt)

	return context.WithValue(ctx, txContextKey{s}, tx), tx, nil
}

/*
CurrentTransaction returns the open transaction of this session which is
carried by a given context or nil.
*/
func (s *Session) CurrentTransaction(ctx context.Context) *Transaction {
	if tx, ok := ctx.Value(txContextKey{s}).(*Transaction); ok && tx.IsOpen() {
		return tx
	}
	return nil
}

/*
Statistics returns the committed instance counts of this keyspace.
*/
func (s *Session) Statistics() *KeyspaceStatistics {
	return s.stats
}

/*
AttributeTracker returns the attribute tracker of this keyspace.
*/
func (s *Session) AttributeTracker() *keyspace.AttributeTracker {
	return s.tracker
}

/*
ShardCoordinator returns the shard coordinator of this keyspace.
*/
func (s *Session) ShardCoordinator() *keyspace.ShardCoordinator {
	return s.shards
}

/*
Lock returns the keyspace lock.
*/
func (s *Session) Lock() *keyspace.Lock {
	return s.lock
}

/*
MergeCount returns the number of attribute vertices which were merged into
an already committed vertex.
*/
func (s *Session) MergeCount() int64 {
	return s.merges.Load()
}

/*
Close closes this session and its graph storage.
*/
func (s *Session) Close() error {
	if !s.open.CompareAndSwap(true, false) {
		return nil
	}

	logger.Info(fmt.Sprintf("Closing keyspace %v", s.Name()))

	return storageError(s.gm.Close())
}

/*
cachedSchemaID looks up the id of a committed schema label.
*/
func (s *Session) cachedSchemaID(label string) (uint64, bool) {
	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()

	id, ok := s.schema[label]

	return id, ok
}

/*
cacheSchemaIDs adds committed schema labels to the schema cache.
*/
func (s *Session) cacheSchemaIDs(ids map[string]uint64) {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	for label, id := range ids {
		s.schema[label] = id
	}
}
