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
Thing is an instance of a type.
*/
type Thing interface {
	Concept

	/*
	   Type returns the type of this thing.
	*/
	Type() (Type, error)

	/*
	   IsInferred returns if this thing was created by inference.
	*/
	IsInferred() (bool, error)

	/*
	   Has makes this thing own an attribute.
	*/
	Has(attribute *Attribute) error

	/*
	   Unhas removes the ownership of an attribute.
	*/
	Unhas(attribute *Attribute) error

	/*
	   Attributes returns the attributes of this thing. The result can be
	   restricted to a set of attribute types.
	*/
	Attributes(types ...*AttributeType) ([]*Attribute, error)

	/*
	   Relations returns the relations in which this thing plays a role. The
	   result can be restricted to a set of roles.
	*/
	Relations(roles ...*Role) ([]*Relation, error)

	/*
	   Delete deletes this thing.
	*/
	Delete() error

	/*
	   playerVertex returns the vertex id which represents this thing as a
	   role player.
	*/
	playerVertex() (uint64, error)
}

/*
thing is the common part of vertex backed things.
*/
type thing struct {
	tx  *Transaction // Transaction of this thing
	vid uint64       // Vertex id
}

/*
ID returns the id of this thing.
*/
func (th *thing) ID() ConceptID {
	return vertexConceptID(th.vid)
}

/*
String returns a string representation of this thing.
*/
func (th *thing) String() string {
	return string(th.ID())
}

/*
Type returns the type of this thing.
*/
func (th *thing) Type() (Type, error) {
	return call(th.tx, false, func() (Type, error) {
		v, err := th.vertex()
		if err != nil {
			return nil, err
		}
		_, tt, err := th.tx.typeByID(uintProp(v.Props, PropThingTypeLabelID))
		return tt, err
	})
}

/*
IsInferred returns if this thing was created by inference.
*/
func (th *thing) IsInferred() (bool, error) {
	return call(th.tx, false, func() (bool, error) {
		v, err := th.vertex()
		if err != nil {
			return false, err
		}
		return boolProp(v.Props, PropIsInferred), nil
	})
}

/*
Has makes this thing own an attribute.
*/
func (th *thing) Has(attribute *Attribute) error {
	return run(th.tx, true, func() error {
		return th.tx.addAttributeEdge(th.vid, attribute.vid)
	})
}

/*
Unhas removes the ownership of an attribute.
*/
func (th *thing) Unhas(attribute *Attribute) error {
	return run(th.tx, true, func() error {
		return th.tx.removeAttributeEdges(th.vid, attribute.vid)
	})
}

/*
Attributes returns the attributes of this thing.
*/
func (th *thing) Attributes(types ...*AttributeType) ([]*Attribute, error) {
	return call(th.tx, false, func() ([]*Attribute, error) {
		return th.tx.attributesOf(th.vid, types)
	})
}

/*
Relations returns the relations in which this thing plays a role.
*/
func (th *thing) Relations(roles ...*Role) ([]*Relation, error) {
	return call(th.tx, false, func() ([]*Relation, error) {
		return th.tx.relationsOf(th.vid, roles)
	})
}

/*
Delete deletes this thing.
*/
func (th *thing) Delete() error {
	return run(th.tx, true, func() error {
		return th.tx.deleteThing(th.vid)
	})
}

func (th *thing) playerVertex() (uint64, error) {
	v, err := th.vertex()
	if err != nil {
		return 0, err
	}
	return v.ID, nil
}

func (th *thing) vertex() (*graph.Vertex, error) {
	v, err := th.tx.thingVertex(th.vid)
	if err == nil && v == nil {
		err = &KBError{Type: ErrNotFound, Detail: string(th.ID())}
	}
	return v, err
}

/*
Entity is an instance of an entity type.
*/
type Entity struct {
	thing
}

/*
Attribute is an instance of an attribute type. There is at most one attribute
per attribute type and value.
*/
type Attribute struct {
	thing
}

/*
Value returns the value of this attribute.
*/
func (a *Attribute) Value() (interface{}, error) {
	return call(a.tx, false, func() (interface{}, error) {
		v, err := a.vertex()
		if err != nil {
			return nil, err
		}
		return v.Props[PropValue], nil
	})
}

/*
Index returns the attribute index of this attribute.
*/
func (a *Attribute) Index() (string, error) {
	return call(a.tx, false, func() (string, error) {
		v, err := a.vertex()
		if err != nil {
			return "", err
		}
		return stringProp(v.Props, PropIndex), nil
	})
}

/*
Owners returns all things which own this attribute.
*/
func (a *Attribute) Owners() ([]Thing, error) {
	return call(a.tx, false, func() ([]Thing, error) {
		edges, err := a.tx.gt.Edges(a.vid, graph.DirectionIn, EdgeAttribute)
		if err != nil {
			return nil, storageError(err)
		}

		ret := make([]Thing, 0, len(edges))
		for _, e := range edges {
			owner, err := a.tx.thingByID(e.Out)
			if err != nil {
				return nil, err
			}
			ret = append(ret, owner)
		}

		return ret, nil
	})
}

// Attribute handling
// ==================

/*
putAttribute returns the vertex of an attribute value. A new vertex is
created and registered with the attribute tracker if the value is unknown.
*/
func (t *Transaction) putAttribute(at *AttributeType, value interface{}, inferred bool) (*Attribute, error) {
	dt, err := at.dataType()
	if err != nil {
		return nil, err
	}

	stored, canonical, err := dt.normalize(value)
	if err != nil {
		return nil, err
	}

	index := AttributeIndex(at.label, canonical)

	vid, err := t.lookupAttribute(index)
	if err != nil {
		return nil, err
	} else if vid != 0 {
		if !inferred {
			err = t.makeExplicit(vid)
		}
		return &Attribute{thing{t, vid}}, err
	}

	v, err := t.addThingVertex(&at.thingType, LabelAttribute, inferred, map[string]interface{}{
		PropIndex: index,
		PropValue: stored,
	})
	if err != nil {
		return nil, err
	}

	t.newAttributes[index] = v.ID
	t.session.tracker.AcknowledgeInsert(index, t.id)

	return &Attribute{thing{t, v.ID}}, nil
}

/*
lookupAttribute looks up the vertex id of an attribute index. Attributes of
this transaction come first, then committed attributes from the shared cache
and finally the attributes of the snapshot. Returns 0 if the attribute does
not exist.
*/
func (t *Transaction) lookupAttribute(index string) (uint64, error) {
	if vid, ok := t.newAttributes[index]; ok {
		return vid, nil
	}

	if t.removedAttributes[index] {
		return 0, nil
	}

	if id, ok := t.session.tracker.CommittedCache().Get(index); ok {
		if kind, vid, ok := ConceptID(id).parse(); ok && kind == 'V' {
			v, err := t.gt.ReadCommittedVertex(vid)
			if err != nil {
				return 0, storageError(err)
			} else if v != nil && stringProp(v.Props, PropIndex) == index {
				return vid, nil
			}
		}
	}

	ids, err := t.gt.VertexIDsByProperty(PropIndex, index)
	if err != nil {
		return 0, storageError(err)
	}

	for _, vid := range ids {
		v, err := t.gt.Vertex(vid)
		if err != nil {
			return 0, storageError(err)
		} else if v != nil && v.Label == LabelAttribute && stringProp(v.Props, PropIndex) == index {
			return vid, nil
		}
	}

	return 0, nil
}

/*
addAttributeEdge makes a thing own an attribute.
*/
func (t *Transaction) addAttributeEdge(owner uint64, attribute uint64) error {
	ov, err := t.thingVertex(owner)
	if err != nil {
		return err
	}

	av, err := t.thingVertex(attribute)
	if err != nil {
		return err
	}

	if ov == nil || av == nil || av.Label != LabelAttribute {
		return &KBError{Type: ErrNotFound, Detail: fmt.Sprintf("Owner %v or attribute %v", owner, attribute)}
	}

	if err := t.makeExplicit(owner, attribute); err != nil {
		return err
	}

	edges, err := t.gt.Edges(owner, graph.DirectionOut, EdgeAttribute)
	if err != nil {
		return storageError(err)
	}

	for _, e := range edges {
		if e.In == attribute {
			return nil
		}
	}

	ownerType := uintProp(ov.Props, PropThingTypeLabelID)
	attributeType := uintProp(av.Props, PropThingTypeLabelID)

	if _, err := t.gt.AddEdge(EdgeAttribute, owner, attribute, map[string]interface{}{
		PropRelationRoleOwnerLabelID: ownerType,
		PropRelationRoleValueLabelID: attributeType,
		PropIsInferred:               false,
	}); err != nil {
		return storageError(err)
	}

	t.markModified(t.buildThing(ov).ID())

	return t.trackKeyOwnership(ownerType, attributeType, stringProp(av.Props, PropIndex))
}

/*
makeExplicit clears the inferred flag of thing vertices which are used by an
explicit operation. Inferred things of this transaction are kept at commit.
*/
func (t *Transaction) makeExplicit(vids ...uint64) error {
	for _, vid := range vids {
		v, err := t.thingVertex(vid)
		if err != nil {
			return err
		} else if v == nil || !boolProp(v.Props, PropIsInferred) {
			continue
		}

		if err := t.gt.SetVertexProperty(v, PropIsInferred, false); err != nil {
			return storageError(err)
		}

		t.persisted[t.buildThing(v).ID()] = true
	}

	return nil
}

/*
removeAttributeEdges removes the ownership of an attribute.
*/
func (t *Transaction) removeAttributeEdges(owner uint64, attribute uint64) error {
	edges, err := t.gt.Edges(owner, graph.DirectionOut, EdgeAttribute)
	if err != nil {
		return storageError(err)
	}

	for _, e := range edges {
		if e.In != attribute {
			continue
		}

		if err := t.gt.RemoveEdge(e.ID); err != nil {
			return storageError(err)
		}

		av, err := t.thingVertex(attribute)
		if err != nil {
			return err
		}

		if av != nil {
			err = t.trackKeyOwnership(uintProp(e.Props, PropRelationRoleOwnerLabelID),
				uintProp(e.Props, PropRelationRoleValueLabelID), stringProp(av.Props, PropIndex))
			if err != nil {
				return err
			}
		}

		if ov, err := t.thingVertex(owner); err != nil {
			return err
		} else if ov != nil {
			t.markModified(t.buildThing(ov).ID())
		}
	}

	return nil
}

/*
trackKeyOwnership records the attribute index if the attribute type is a key
of the owner type.
*/
func (t *Transaction) trackKeyOwnership(ownerType uint64, attributeType uint64, index string) error {
	_, isKey, err := t.declaredAttributeType(ownerType, attributeType)
	if err == nil && isKey {
		t.modifiedKeyIndices[index] = true
	}
	return err
}

/*
attributesOf returns the attributes of a thing vertex.
*/
func (t *Transaction) attributesOf(vid uint64, types []*AttributeType) ([]*Attribute, error) {
	filter := make(map[uint64]bool)
	for _, at := range types {
		filter[at.vid] = true
	}

	edges, err := t.gt.Edges(vid, graph.DirectionOut, EdgeAttribute)
	if err != nil {
		return nil, storageError(err)
	}

	ret := make([]*Attribute, 0, len(edges))
	for _, e := range edges {
		if len(filter) == 0 || filter[uintProp(e.Props, PropRelationRoleValueLabelID)] {
			ret = append(ret, &Attribute{thing{t, e.In}})
		}
	}

	return ret, nil
}

// Deletion
// ========

/*
deleteThing deletes a thing vertex. Castings of the thing and edge backed
relations in which it plays are removed. Relations which are left without
role players are deleted as well.
*/
func (t *Transaction) deleteThing(vid uint64) error {
	v, err := t.thingVertex(vid)
	if err != nil || v == nil {
		return err
	}

	castings, err := t.gt.Edges(vid, graph.DirectionIn, EdgeRolePlayer)
	if err != nil {
		return storageError(err)
	}

	var relations []uint64
	seen := make(map[uint64]bool)

	for _, e := range castings {
		if e.Out != vid && !seen[e.Out] {
			seen[e.Out] = true
			relations = append(relations, e.Out)
		}
	}

	edgeRelations, err := t.gt.Edges(vid, graph.DirectionBoth, EdgeRelation)
	if err != nil {
		return storageError(err)
	}

	for _, e := range edgeRelations {
		if err := t.deleteEdgeRelation(e); err != nil {
			return err
		}
	}

	if v.Label == LabelAttribute {
		index := stringProp(v.Props, PropIndex)

		if t.newAttributes[index] == vid {
			delete(t.newAttributes, index)
			t.session.tracker.AcknowledgeDelete(index, t.id)
		} else {
			t.removedAttributes[index] = true
		}
	}

	tt, _, err := t.typeByID(uintProp(v.Props, PropThingTypeLabelID))
	if err != nil {
		return err
	}

	t.delta[tt.label]--

	if err := t.gt.RemoveVertex(vid); err != nil {
		return storageError(err)
	}

	logger.Debug(fmt.Sprintf("Transaction %v deleted %v %v", t.id, v.Label, vid))

	// Relations without role players are not kept

	for _, rid := range relations {
		players, err := t.gt.Edges(rid, graph.DirectionOut, EdgeRolePlayer)
		if err != nil {
			return storageError(err)
		}

		if len(players) == 0 {
			if err := t.deleteThing(rid); err != nil {
				return err
			}
		} else if rv, err := t.thingVertex(rid); err != nil {
			return err
		} else if rv != nil {
			t.markModified(t.buildThing(rv).ID())
		}
	}

	return nil
}

/*
deleteEdgeRelation deletes an edge backed relation.
*/
func (t *Transaction) deleteEdgeRelation(e *graph.Edge) error {
	tt, _, err := t.typeByID(uintProp(e.Props, PropRelationTypeLabelID))
	if err != nil {
		return err
	}

	if err := t.gt.RemoveEdge(e.ID); err != nil {
		return storageError(err)
	}

	t.delta[tt.label]--

	return nil
}

/*
relationsOf returns the relations in which a thing vertex plays a role.
*/
func (t *Transaction) relationsOf(vid uint64, roles []*Role) ([]*Relation, error) {
	filter := make(map[uint64]bool)
	for _, r := range roles {
		filter[r.vid] = true
	}

	matches := func(role uint64) bool {
		return len(filter) == 0 || filter[role]
	}

	var ret []*Relation
	seen := make(map[ConceptID]bool)

	add := func(id ConceptID) {
		if !seen[id] {
			seen[id] = true
			ret = append(ret, &Relation{t, id})
		}
	}

	castings, err := t.gt.Edges(vid, graph.DirectionIn, EdgeRolePlayer)
	if err != nil {
		return nil, storageError(err)
	}

	for _, e := range castings {
		if !matches(uintProp(e.Props, PropRoleLabelID)) {
			continue
		}

		rv, err := t.thingVertex(e.Out)
		if err != nil {
			return nil, err
		} else if rv != nil {
			add(t.buildThing(rv).ID())
		}
	}

	edges, err := t.gt.Edges(vid, graph.DirectionBoth, EdgeRelation)
	if err != nil {
		return nil, storageError(err)
	}

	for _, e := range edges {
		if (e.Out == vid && matches(uintProp(e.Props, PropRelationRoleOwnerLabelID))) ||
			(e.In == vid && matches(uintProp(e.Props, PropRelationRoleValueLabelID))) {
			add(relationEdgeID(e))
		}
	}

	return ret, nil
}
