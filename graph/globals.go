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
Package graph contains the property graph substrate of the datastore.

Manager API

The main API is provided by a Manager object which can be created with the
NewGraphManager() constructor function. The manager hands out transactions
which provide CRUD functionality for vertices and edges and the basic
traversal functionality which allows the traversal from one vertex to its
neighbours.

Transactions

A transaction reads a snapshot of the graph which was taken when the
transaction was created. It sees its own writes. Nothing is visible to other
transactions before calling Commit(). Vertices and edges which were committed
by others after the snapshot was taken can still be read by id with
LatestVertex() or ReadCommittedVertex(). Edges can be attached to such
vertices since writes never require the written element to be visible.

A trans object can be created with the NewGraphTrans() function.

Consistency

Removing a vertex removes all its incident edges.

Graph key-value layout

Each element gets a uint64 id (8 byte big endian in keys).

	PrefixVertex + vertex id -> { label, properties }
	(a vertex record)

	PrefixEdge + edge id -> { label, out vertex id, in vertex id, properties }
	(an edge record)

	PrefixOut + vertex id + edge label + 0x00 + edge id -> <empty>
	PrefixIn + vertex id + edge label + 0x00 + edge id -> <empty>
	(adjacency of a vertex)

	PrefixLabel + vertex label + 0x00 + vertex id -> <empty>
	(lookup of vertices by label)

	PrefixVertexIndex + property key + 0x00 + md5(value) + vertex id -> <empty>
	PrefixEdgeIndex + property key + 0x00 + md5(value) + edge id -> <empty>
	(exact match lookup of indexed properties)
*/
package graph

/*
Key prefixes of the graph key-value layout
*/
const (
	PrefixVertex      = 'v'
	PrefixEdge        = 'e'
	PrefixOut         = 'o'
	PrefixIn          = 'i'
	PrefixLabel       = 'l'
	PrefixVertexIndex = 'x'
	PrefixEdgeIndex   = 'y'
)

/*
Direction of an edge traversal
*/
type Direction int

/*
Known traversal directions
*/
const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	}
	return "both"
}
