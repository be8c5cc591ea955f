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

	"devt.de/krotik/conceptdb/graph"
)

/*
mergeAttributes merges every attribute inserted by this transaction into an
attribute vertex which was committed for the same index by another
transaction. Returns the indices of all merged attributes.
*/
func (t *Transaction) mergeAttributes() (map[string]bool, error) {
	deduplicated := make(map[string]bool)
	cache := t.session.tracker.CommittedCache()

	for _, index := range t.newAttributeIndices() {
		id, ok := cache.Get(index)
		if !ok {
			continue
		}

		kind, target, ok := ConceptID(id).parse()
		duplicate := t.newAttributes[index]

		if !ok || kind != 'V' || target == duplicate {
			continue
		}

		merged, err := t.merge(index, duplicate, target)
		if err != nil {
			return nil, err
		}

		if !merged {
			cache.Invalidate(index)
			continue
		}

		deduplicated[index] = true
	}

	return deduplicated, nil
}

/*
merge moves all edges of a duplicate attribute vertex to a committed target
vertex and deletes the duplicate. Returns false if the target does not exist
anymore.
*/
func (t *Transaction) merge(index string, duplicate uint64, target uint64) (bool, error) {
	tv, err := t.gt.LatestVertex(target)
	if err != nil {
		return false, storageError(err)
	} else if tv == nil {
		logger.Debug(fmt.Sprintf("Transaction %v found stale cache entry %v for %v", t.id, target, index))
		return false, nil
	}

	dv, err := t.gt.Vertex(duplicate)
	if err != nil || dv == nil {
		return false, storageError(err)
	}

	if tv.Label != LabelAttribute ||
		stringProp(tv.Props, PropIndex) != index ||
		uintProp(tv.Props, PropThingTypeLabelID) != uintProp(dv.Props, PropThingTypeLabelID) ||
		fmt.Sprint(tv.Props[PropValue]) != fmt.Sprint(dv.Props[PropValue]) {

		return false, &KBError{Type: ErrMergeInconsistency, Detail: fmt.Sprintf(
			"Attribute %v cannot be merged into %v (index: %v target: %v)", dv, tv, index,
			stringProp(tv.Props, PropIndex))}
	}

	edges, err := t.gt.Edges(duplicate, graph.DirectionBoth)
	if err != nil {
		return false, storageError(err)
	}

	for _, e := range edges {
		if e.Label == EdgeIsa {
			continue
		}

		if err := t.redirectEdge(e, duplicate, target); err != nil {
			return false, err
		}
	}

	if err := t.gt.RemoveVertex(duplicate); err != nil {
		return false, storageError(err)
	}

	tt, _, err := t.typeByID(uintProp(dv.Props, PropThingTypeLabelID))
	if err != nil {
		return false, err
	}

	t.delta[tt.label]--
	delete(t.modified, vertexConceptID(duplicate))
	t.session.merges.Inc()

	logger.Debug(fmt.Sprintf("Transaction %v merged attribute %v into %v (%v)",
		t.id, duplicate, target, index))

	return true, nil
}

/*
redirectEdge replaces an edge of a duplicate vertex with an edge of the
target vertex. All edge properties are kept. Edge backed relations keep their
concept id.
*/
func (t *Transaction) redirectEdge(e *graph.Edge, duplicate uint64, target uint64) error {
	out, in := e.Out, e.In

	if out == duplicate {
		out = target
	}
	if in == duplicate {
		in = target
	}

	props := e.CopyProps()

	if e.Label == EdgeRelation {
		props[PropEdgeRelationID] = string(relationEdgeID(e))
	}

	exists := false

	if e.Label == EdgeAttribute {
		owned, err := t.gt.Edges(out, graph.DirectionOut, EdgeAttribute)
		if err != nil {
			return storageError(err)
		}

		for _, o := range owned {
			if o.In == in && o.ID != e.ID {
				exists = true
			}
		}
	}

	if !exists {
		if _, err := t.gt.AddEdge(e.Label, out, in, props); err != nil {
			return storageError(err)
		}
	}

	return storageError(t.gt.RemoveEdge(e.ID))
}
