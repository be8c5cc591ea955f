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
	"fmt"
	"sort"

	"devt.de/krotik/conceptdb/graph"
)

/*
createShard creates a new shard for a type and makes it the current shard.
The given type vertex must be in its latest state.
*/
func (t *Transaction) createShard(typeVertex *graph.Vertex) error {
	shard, err := t.gt.AddVertex(LabelShard, map[string]interface{}{
		PropThingTypeLabelID: typeVertex.ID,
	})
	if err != nil {
		return storageError(err)
	}

	if _, err := t.gt.AddEdge(EdgeShard, typeVertex.ID, shard.ID, nil); err != nil {
		return storageError(err)
	}

	return storageError(t.gt.SetVertexProperty(typeVertex, PropCurrentShard, shard.ID))
}

/*
shards returns the shard vertex ids of a type.
*/
func (t *Transaction) shards(typeID uint64) ([]uint64, error) {
	tv, err := t.typeVertex(typeID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]bool)

	// The current shard may have been created after the snapshot was taken

	if current := uintProp(tv.Props, PropCurrentShard); current != 0 {
		seen[current] = true
	}

	edges, err := t.gt.Edges(typeID, graph.DirectionOut, EdgeShard)
	if err != nil {
		return nil, storageError(err)
	}

	for _, e := range edges {
		seen[e.In] = true
	}

	ret := make([]uint64, 0, len(seen))
	for id := range seen {
		ret = append(ret, id)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })

	return ret, nil
}

/*
shardThreshold returns the shard threshold of a type.
*/
func (t *Transaction) shardThreshold(tv *graph.Vertex) int64 {
	if th := intProp(tv.Props, PropShardThreshold); th > 0 {
		return th
	}
	return t.session.opts.ShardThreshold
}

/*
instances returns all instances of a type.
*/
func (t *Transaction) instances(typeID uint64) ([]Thing, error) {
	var ret []Thing

	shards, err := t.shards(typeID)
	if err != nil {
		return nil, err
	}

	for _, shard := range shards {
		edges, err := t.gt.Edges(shard, graph.DirectionIn, EdgeIsa)
		if err != nil {
			return nil, storageError(err)
		}

		for _, e := range edges {
			v, err := t.thingVertex(e.Out)
			if err != nil {
				return nil, err
			} else if v != nil {
				ret = append(ret, t.buildThing(v))
			}
		}
	}

	// Edge backed relations are not attached to shards

	edges, err := t.gt.EdgesByProperty(PropRelationTypeLabelID, typeID)
	if err != nil {
		return nil, storageError(err)
	}

	for _, e := range edges {
		if e.Label == EdgeRelation {
			ret = append(ret, &Relation{t, relationEdgeID(e)})
		}
	}

	return ret, nil
}

/*
addThingVertex creates the vertex of a new instance of a type and attaches
it to the current shard of the type.
*/
func (t *Transaction) addThingVertex(tt *thingType, vlabel string, inferred bool, props map[string]interface{}) (*graph.Vertex, error) {
	v, err := t.attachThingVertex(tt.vid, vlabel, inferred, props)
	if err != nil {
		return nil, err
	}

	id := vertexConceptID(v.ID)

	t.delta[tt.label]++
	t.markModified(id)

	if inferred {
		t.inferred = append(t.inferred, id)
	}

	return v, nil
}

/*
attachThingVertex creates a thing vertex and its ISA edge.
*/
func (t *Transaction) attachThingVertex(typeID uint64, vlabel string, inferred bool, props map[string]interface{}) (*graph.Vertex, error) {
	tv, err := t.typeVertex(typeID)
	if err != nil {
		return nil, err
	}

	shard := uintProp(tv.Props, PropCurrentShard)
	if shard == 0 {
		return nil, &KBError{Type: ErrSchema, Detail: fmt.Sprintf("Type %v has no shard", stringProp(tv.Props, PropSchemaLabel))}
	}

	if props == nil {
		props = make(map[string]interface{})
	}
	props[PropThingTypeLabelID] = typeID
	props[PropIsInferred] = inferred

	v, err := t.gt.AddVertex(vlabel, props)
	if err != nil {
		return nil, storageError(err)
	}

	if _, err := t.gt.AddEdge(EdgeIsa, v.ID, shard, nil); err != nil {
		return nil, storageError(err)
	}

	return v, nil
}
