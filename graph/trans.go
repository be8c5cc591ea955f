/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"fmt"
	"sync"

	"devt.de/krotik/conceptdb/graph/graphstorage"
	"devt.de/krotik/conceptdb/graph/util"
)

/*
Trans is a transaction object which groups vertex and edge operations on a
snapshot of the graph.
*/
type Trans interface {

	/*
	   ID returns a unique transaction ID.
	*/
	ID() string

	/*
	   String returns a string representation of this transaction.
	*/
	String() string

	/*
	   IsOpen returns if this transaction can still be used.
	*/
	IsOpen() bool

	/*
	   IsUpdate returns if this transaction may write.
	*/
	IsUpdate() bool

	/*
	   Commit writes the transaction to the graph storage. The transaction is
	   closed afterwards even if the commit failed.
	*/
	Commit() error

	/*
	   Rollback discards all changes of this transaction and closes it.
	   Rolling back a closed transaction has no effect.
	*/
	Rollback()

	/*
	   AddVertex creates a new vertex.
	*/
	AddVertex(label string, props map[string]interface{}) (*Vertex, error)

	/*
	   Vertex fetches a vertex as seen by this transaction. Returns nil if the
	   vertex does not exist.
	*/
	Vertex(id uint64) (*Vertex, error)

	/*
	   LatestVertex fetches the latest committed version of a vertex ignoring
	   the snapshot and the changes of this transaction.
	*/
	LatestVertex(id uint64) (*Vertex, error)

	/*
	   ReadCommittedVertex fetches a vertex as changed by this transaction or,
	   if this transaction did not touch it, its latest committed version.
	*/
	ReadCommittedVertex(id uint64) (*Vertex, error)

	/*
	   VerticesByLabel returns all vertices with a given label.
	*/
	VerticesByLabel(label string) ([]*Vertex, error)

	/*
	   VerticesByProperty returns all vertices which have an indexed property
	   with a given value.
	*/
	VerticesByProperty(key string, value interface{}) ([]*Vertex, error)

	/*
	   VertexIDsByProperty returns the ids of all vertices which have an indexed
	   property with a given value. The vertices themselves are not read so
	   callers must check the property value.
	*/
	VertexIDsByProperty(key string, value interface{}) ([]uint64, error)

	/*
	   SetVertexProperty sets a property of a vertex.
	*/
	SetVertexProperty(v *Vertex, key string, value interface{}) error

	/*
	   RemoveVertexProperty removes a property of a vertex.
	*/
	RemoveVertexProperty(v *Vertex, key string) error

	/*
	   RemoveVertex removes a vertex and all its incident edges.
	*/
	RemoveVertex(id uint64) error

	/*
	   AddEdge creates a new edge between two vertices.
	*/
	AddEdge(label string, out uint64, in uint64, props map[string]interface{}) (*Edge, error)

	/*
	   Edge fetches an edge. Returns nil if the edge does not exist.
	*/
	Edge(id uint64) (*Edge, error)

	/*
	   EdgesByProperty returns all edges which have an indexed property with a
	   given value.
	*/
	EdgesByProperty(key string, value interface{}) ([]*Edge, error)

	/*
	   SetEdgeProperty sets a property of an edge.
	*/
	SetEdgeProperty(e *Edge, key string, value interface{}) error

	/*
	   Edges returns all edges of a vertex in a given direction. The result can
	   be restricted to a set of edge labels.
	*/
	Edges(vid uint64, dir Direction, labels ...string) ([]*Edge, error)

	/*
	   RemoveEdge removes an edge.
	*/
	RemoveEdge(id uint64) error
}

/*
idCounter is a simple counter for ids
*/
var idCounter uint64
var idCounterLock = &sync.Mutex{}

/*
NewGraphTrans creates a new graph transaction. The transaction is a
read-only transaction if update is false. This object is not thread safe.
*/
func NewGraphTrans(gm *Manager, update bool) (Trans, error) {
	idCounterLock.Lock()
	idCounter++
	id := idCounter
	idCounterLock.Unlock()

	tx, err := gm.gs.Begin(update)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error(), Cause: err}
	}

	return &baseTrans{
		id:      fmt.Sprint(id),
		gm:      gm,
		tx:      tx,
		update:  update,
		open:    true,
		written: make(map[uint64]bool),
		removed: make(map[uint64]bool),
	}, nil
}

/*
baseTrans is the main data structure for a graph transaction
*/
type baseTrans struct {
	id      string                   // Unique transaction ID
	gm      *Manager                 // Graph manager which created this transaction
	tx      graphstorage.Transaction // Storage transaction
	update  bool                     // Flag if this transaction may write
	open    bool                     // Flag if this transaction is still open
	written map[uint64]bool          // Vertices written by this transaction
	removed map[uint64]bool          // Vertices removed by this transaction
}

/*
ID returns a unique transaction ID.
*/
func (gt *baseTrans) ID() string {
	return gt.id
}

/*
String returns a string representation of this transaction.
*/
func (gt *baseTrans) String() string {
	return fmt.Sprintf("Transaction %v - Open: %v Update: %v Written: %v Removed: %v",
		gt.id, gt.open, gt.update, len(gt.written), len(gt.removed))
}

/*
IsOpen returns if this transaction can still be used.
*/
func (gt *baseTrans) IsOpen() bool {
	return gt.open
}

/*
IsUpdate returns if this transaction may write.
*/
func (gt *baseTrans) IsUpdate() bool {
	return gt.update
}

/*
Commit writes the transaction to the graph storage.
*/
func (gt *baseTrans) Commit() error {
	if !gt.open {
		return &util.GraphError{Type: util.ErrClosed, Detail: gt.id}
	}

	gt.open = false

	if !gt.update {
		gt.tx.Discard()
		return nil
	}

	if err := gt.tx.Commit(); err != nil {
		gt.tx.Discard()
		return &util.GraphError{Type: util.ErrCommit, Detail: err.Error(), Cause: err}
	}

	return nil
}

/*
Rollback discards all changes of this transaction.
*/
func (gt *baseTrans) Rollback() {
	if gt.open {
		gt.open = false
		gt.tx.Discard()
	}
}

// Vertex operations
// =================

/*
AddVertex creates a new vertex.
*/
func (gt *baseTrans) AddVertex(label string, props map[string]interface{}) (*Vertex, error) {

	if err := gt.checkWrite(); err != nil {
		return nil, err
	} else if err := checkLabel(label, "Vertex"); err != nil {
		return nil, err
	} else if err := checkProps(props, "Vertex"); err != nil {
		return nil, err
	}

	id, err := gt.gm.gs.NextID()
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrWriting, Detail: err.Error(), Cause: err}
	}

	v := &Vertex{id, label, copyProps(props)}

	if err := gt.writeVertex(v); err != nil {
		return nil, err
	}

	if err := gt.set(labelKey(label, id), nil); err != nil {
		return nil, err
	}

	for k, val := range v.Props {
		if err := gt.addIndex(PrefixVertexIndex, k, val, id); err != nil {
			return nil, err
		}
	}

	return v, nil
}

/*
Vertex fetches a vertex as seen by this transaction.
*/
func (gt *baseTrans) Vertex(id uint64) (*Vertex, error) {
	if err := gt.checkOpen(); err != nil {
		return nil, err
	}

	data, err := gt.tx.Get(vertexKey(id))

	return gt.toVertex(id, data, err)
}

/*
LatestVertex fetches the latest committed version of a vertex.
*/
func (gt *baseTrans) LatestVertex(id uint64) (*Vertex, error) {
	if err := gt.checkOpen(); err != nil {
		return nil, err
	}

	data, err := gt.tx.GetLatest(vertexKey(id))

	return gt.toVertex(id, data, err)
}

/*
ReadCommittedVertex fetches a vertex as changed by this transaction or its
latest committed version.
*/
func (gt *baseTrans) ReadCommittedVertex(id uint64) (*Vertex, error) {
	if gt.removed[id] {
		return nil, gt.checkOpen()
	} else if gt.written[id] {
		return gt.Vertex(id)
	}

	return gt.LatestVertex(id)
}

/*
VerticesByLabel returns all vertices with a given label.
*/
func (gt *baseTrans) VerticesByLabel(label string) ([]*Vertex, error) {
	ids, err := gt.scanIDs(labelPrefix(label))
	if err != nil {
		return nil, err
	}

	return gt.vertices(ids, func(v *Vertex) bool { return true })
}

/*
VerticesByProperty returns all vertices which have an indexed property with
a given value.
*/
func (gt *baseTrans) VerticesByProperty(key string, value interface{}) ([]*Vertex, error) {
	if !gt.gm.isIndexed(key) {
		return nil, &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Property %v is not indexed", key)}
	}

	ids, err := gt.scanIDs(indexPrefix(PrefixVertexIndex, key, value))
	if err != nil {
		return nil, err
	}

	// Filter hash collisions

	return gt.vertices(ids, func(v *Vertex) bool {
		return sameValue(v.Props[key], value)
	})
}

/*
VertexIDsByProperty returns the ids of all vertices which have an indexed
property with a given value.
*/
func (gt *baseTrans) VertexIDsByProperty(key string, value interface{}) ([]uint64, error) {
	if !gt.gm.isIndexed(key) {
		return nil, &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Property %v is not indexed", key)}
	}

	return gt.scanIDs(indexPrefix(PrefixVertexIndex, key, value))
}

/*
SetVertexProperty sets a property of a vertex. The given vertex object is
updated as well.
*/
func (gt *baseTrans) SetVertexProperty(v *Vertex, key string, value interface{}) error {
	if err := gt.checkWrite(); err != nil {
		return err
	} else if key == "" {
		return &util.GraphError{Type: util.ErrInvalidData, Detail: "Empty property key"}
	}

	if old, ok := v.Props[key]; ok {
		if err := gt.removeIndex(PrefixVertexIndex, key, old, v.ID); err != nil {
			return err
		}
	}

	v.Props[key] = value

	if err := gt.writeVertex(v); err != nil {
		return err
	}

	return gt.addIndex(PrefixVertexIndex, key, value, v.ID)
}

/*
RemoveVertexProperty removes a property of a vertex.
*/
func (gt *baseTrans) RemoveVertexProperty(v *Vertex, key string) error {
	if err := gt.checkWrite(); err != nil {
		return err
	}

	old, ok := v.Props[key]
	if !ok {
		return nil
	}

	if err := gt.removeIndex(PrefixVertexIndex, key, old, v.ID); err != nil {
		return err
	}

	delete(v.Props, key)

	return gt.writeVertex(v)
}

/*
RemoveVertex removes a vertex and all its incident edges. Removing a vertex
which does not exist has no effect.
*/
func (gt *baseTrans) RemoveVertex(id uint64) error {
	if err := gt.checkWrite(); err != nil {
		return err
	}

	v, err := gt.Vertex(id)
	if err == nil && v == nil && !gt.removed[id] {

		// The vertex might have been committed after the snapshot was taken

		v, err = gt.LatestVertex(id)
	}

	if err != nil || v == nil {
		return err
	}

	edges, err := gt.Edges(id, DirectionBoth)
	if err != nil {
		return err
	}

	for _, e := range edges {
		if err := gt.deleteEdge(e); err != nil {
			return err
		}
	}

	for k, val := range v.Props {
		if err := gt.removeIndex(PrefixVertexIndex, k, val, id); err != nil {
			return err
		}
	}

	if err := gt.del(labelKey(v.Label, id)); err != nil {
		return err
	}

	if err := gt.del(vertexKey(id)); err != nil {
		return err
	}

	delete(gt.written, id)
	gt.removed[id] = true

	return nil
}

// Edge operations
// ===============

/*
AddEdge creates a new edge between two vertices. The vertices are not
required to be visible in this transaction's snapshot.
*/
func (gt *baseTrans) AddEdge(label string, out uint64, in uint64, props map[string]interface{}) (*Edge, error) {

	if err := gt.checkWrite(); err != nil {
		return nil, err
	} else if err := checkLabel(label, "Edge"); err != nil {
		return nil, err
	} else if err := checkProps(props, "Edge"); err != nil {
		return nil, err
	} else if gt.removed[out] || gt.removed[in] {
		return nil, &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Edge %v end vertex was removed (%v->%v)", label, out, in)}
	}

	id, err := gt.gm.gs.NextID()
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrWriting, Detail: err.Error(), Cause: err}
	}

	e := &Edge{id, label, out, in, copyProps(props)}

	if err := gt.writeEdge(e); err != nil {
		return nil, err
	}

	if err := gt.set(adjacencyKey(PrefixOut, out, label, id), nil); err != nil {
		return nil, err
	}

	if err := gt.set(adjacencyKey(PrefixIn, in, label, id), nil); err != nil {
		return nil, err
	}

	for k, val := range e.Props {
		if err := gt.addIndex(PrefixEdgeIndex, k, val, id); err != nil {
			return nil, err
		}
	}

	return e, nil
}

/*
Edge fetches an edge.
*/
func (gt *baseTrans) Edge(id uint64) (*Edge, error) {
	if err := gt.checkOpen(); err != nil {
		return nil, err
	}

	data, err := gt.tx.Get(edgeKey(id))
	if err == graphstorage.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, &util.GraphError{Type: util.ErrReading, Detail: err.Error(), Cause: err}
	}

	e, err := decodeEdge(id, data)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrReading, Detail: err.Error(), Cause: err}
	}

	return e, nil
}

/*
EdgesByProperty returns all edges which have an indexed property with a given
value.
*/
func (gt *baseTrans) EdgesByProperty(key string, value interface{}) ([]*Edge, error) {
	if !gt.gm.isIndexed(key) {
		return nil, &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Property %v is not indexed", key)}
	}

	ids, err := gt.scanIDs(indexPrefix(PrefixEdgeIndex, key, value))
	if err != nil {
		return nil, err
	}

	ret := make([]*Edge, 0, len(ids))

	for _, id := range ids {
		e, err := gt.Edge(id)
		if err != nil {
			return nil, err
		} else if e != nil && sameValue(e.Props[key], value) {
			ret = append(ret, e)
		}
	}

	return ret, nil
}

/*
SetEdgeProperty sets a property of an edge.
*/
func (gt *baseTrans) SetEdgeProperty(e *Edge, key string, value interface{}) error {
	if err := gt.checkWrite(); err != nil {
		return err
	} else if key == "" {
		return &util.GraphError{Type: util.ErrInvalidData, Detail: "Empty property key"}
	}

	if old, ok := e.Props[key]; ok {
		if err := gt.removeIndex(PrefixEdgeIndex, key, old, e.ID); err != nil {
			return err
		}
	}

	e.Props[key] = value

	if err := gt.writeEdge(e); err != nil {
		return err
	}

	return gt.addIndex(PrefixEdgeIndex, key, value, e.ID)
}

/*
Edges returns all edges of a vertex in a given direction.
*/
func (gt *baseTrans) Edges(vid uint64, dir Direction, labels ...string) ([]*Edge, error) {
	var prefixes [][]byte

	dirPrefixes := []byte{PrefixOut, PrefixIn}
	if dir == DirectionOut {
		dirPrefixes = dirPrefixes[:1]
	} else if dir == DirectionIn {
		dirPrefixes = dirPrefixes[1:]
	}

	for _, p := range dirPrefixes {
		if len(labels) == 0 {
			prefixes = append(prefixes, adjacencyPrefix(p, vid, ""))
		}
		for _, l := range labels {
			prefixes = append(prefixes, adjacencyPrefix(p, vid, l))
		}
	}

	seen := make(map[uint64]bool)
	ret := make([]*Edge, 0)

	for _, prefix := range prefixes {

		ids, err := gt.scanIDs(prefix)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {

			// Self loops appear in both directions

			if seen[id] {
				continue
			}
			seen[id] = true

			e, err := gt.Edge(id)
			if err != nil {
				return nil, err
			} else if e != nil {
				ret = append(ret, e)
			}
		}
	}

	return ret, nil
}

/*
RemoveEdge removes an edge. Removing an edge which does not exist has no
effect.
*/
func (gt *baseTrans) RemoveEdge(id uint64) error {
	if err := gt.checkWrite(); err != nil {
		return err
	}

	e, err := gt.Edge(id)
	if err != nil || e == nil {
		return err
	}

	return gt.deleteEdge(e)
}

// Internal functions
// ==================

func (gt *baseTrans) checkOpen() error {
	if !gt.open {
		return &util.GraphError{Type: util.ErrClosed, Detail: gt.id}
	}
	return nil
}

func (gt *baseTrans) checkWrite() error {
	if err := gt.checkOpen(); err != nil {
		return err
	} else if !gt.update {
		return &util.GraphError{Type: util.ErrReadOnly, Detail: gt.id}
	}
	return nil
}

func (gt *baseTrans) toVertex(id uint64, data []byte, err error) (*Vertex, error) {
	if err == graphstorage.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, &util.GraphError{Type: util.ErrReading, Detail: err.Error(), Cause: err}
	}

	v, err := decodeVertex(id, data)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrReading, Detail: err.Error(), Cause: err}
	}

	return v, nil
}

func (gt *baseTrans) vertices(ids []uint64, filter func(v *Vertex) bool) ([]*Vertex, error) {
	ret := make([]*Vertex, 0, len(ids))

	for _, id := range ids {
		v, err := gt.Vertex(id)
		if err != nil {
			return nil, err
		} else if v != nil && filter(v) {
			ret = append(ret, v)
		}
	}

	return ret, nil
}

/*
scanIDs collects the ids which are stored at the end of all keys with a given
prefix.
*/
func (gt *baseTrans) scanIDs(prefix []byte) ([]uint64, error) {
	var ret []uint64

	if err := gt.checkOpen(); err != nil {
		return nil, err
	}

	err := gt.tx.Iterate(prefix, func(key []byte, value []byte) (bool, error) {
		if len(key) >= len(prefix)+8 {
			ret = append(ret, idFromKeySuffix(key))
		}
		return true, nil
	})

	if err != nil {
		return nil, &util.GraphError{Type: util.ErrReading, Detail: err.Error(), Cause: err}
	}

	return ret, nil
}

func (gt *baseTrans) writeVertex(v *Vertex) error {
	data, err := encodeRecord(&vertexRecord{v.Label, v.Props})
	if err != nil {
		return &util.GraphError{Type: util.ErrWriting, Detail: err.Error(), Cause: err}
	}

	gt.written[v.ID] = true

	return gt.set(vertexKey(v.ID), data)
}

func (gt *baseTrans) writeEdge(e *Edge) error {
	data, err := encodeRecord(&edgeRecord{e.Label, e.Out, e.In, e.Props})
	if err != nil {
		return &util.GraphError{Type: util.ErrWriting, Detail: err.Error(), Cause: err}
	}

	return gt.set(edgeKey(e.ID), data)
}

func (gt *baseTrans) deleteEdge(e *Edge) error {
	for k, val := range e.Props {
		if err := gt.removeIndex(PrefixEdgeIndex, k, val, e.ID); err != nil {
			return err
		}
	}

	if err := gt.del(adjacencyKey(PrefixOut, e.Out, e.Label, e.ID)); err != nil {
		return err
	}

	if err := gt.del(adjacencyKey(PrefixIn, e.In, e.Label, e.ID)); err != nil {
		return err
	}

	return gt.del(edgeKey(e.ID))
}

func (gt *baseTrans) addIndex(prefix byte, key string, value interface{}, id uint64) error {
	if value == nil || !gt.gm.isIndexed(key) {
		return nil
	}
	return gt.set(indexKey(prefix, key, value, id), nil)
}

func (gt *baseTrans) removeIndex(prefix byte, key string, value interface{}, id uint64) error {
	if value == nil || !gt.gm.isIndexed(key) {
		return nil
	}
	return gt.del(indexKey(prefix, key, value, id))
}

func (gt *baseTrans) set(key []byte, value []byte) error {
	if err := gt.tx.Set(key, value); err != nil {
		return &util.GraphError{Type: util.ErrWriting, Detail: err.Error(), Cause: err}
	}
	return nil
}

func (gt *baseTrans) del(key []byte) error {
	if err := gt.tx.Delete(key); err != nil {
		return &util.GraphError{Type: util.ErrWriting, Detail: err.Error(), Cause: err}
	}
	return nil
}
