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
relationStructure is the storage representation of a relation. A relation is
either stored as a single edge between two players or as a vertex with one
casting edge per role player.
*/
type relationStructure interface {

	/*
	   conceptID returns the id of the relation.
	*/
	conceptID() ConceptID

	/*
	   typeID returns the vertex id of the relation type.
	*/
	typeID() uint64

	/*
	   isInferred returns if the relation was created by inference.
	*/
	isInferred() bool

	/*
	   isReified returns if the relation is stored as a vertex.
	*/
	isReified() bool

	/*
	   castings returns all role player pairs of the relation.
	*/
	castings() ([]casting, error)

	/*
	   allRolePlayers returns the players of the relation per role id.
	*/
	allRolePlayers() (map[uint64][]uint64, error)

	/*
	   delete deletes the relation.
	*/
	delete() error
}

/*
casting is a role player pair of a relation.
*/
type casting struct {
	role   uint64 // Vertex id of the role
	player uint64 // Vertex id of the player
}

/*
relationEdgeID returns the concept id of an edge backed relation. Edges which
were moved to another player keep the id of the original edge.
*/
func relationEdgeID(e *graph.Edge) ConceptID {
	if id := stringProp(e.Props, PropEdgeRelationID); id != "" {
		return ConceptID(id)
	}
	return edgeConceptID(e.ID)
}

// Edge backed relations
// =====================

/*
relationEdge is a relation stored as a single edge. The edge points from the
player of the owner role to the player of the value role.
*/
type relationEdge struct {
	tx   *Transaction // Transaction of the relation
	edge *graph.Edge  // Relation edge
}

func (re *relationEdge) conceptID() ConceptID {
	return relationEdgeID(re.edge)
}

func (re *relationEdge) typeID() uint64 {
	return uintProp(re.edge.Props, PropRelationTypeLabelID)
}

func (re *relationEdge) isInferred() bool {
	return boolProp(re.edge.Props, PropIsInferred)
}

func (re *relationEdge) isReified() bool {
	return false
}

func (re *relationEdge) castings() ([]casting, error) {
	return []casting{
		{uintProp(re.edge.Props, PropRelationRoleOwnerLabelID), re.edge.Out},
		{uintProp(re.edge.Props, PropRelationRoleValueLabelID), re.edge.In},
	}, nil
}

func (re *relationEdge) allRolePlayers() (map[uint64][]uint64, error) {
	cs, _ := re.castings()

	ret := make(map[uint64][]uint64)
	for _, c := range cs {
		ret[c.role] = append(ret[c.role], c.player)
	}

	return ret, nil
}

func (re *relationEdge) delete() error {
	return re.tx.deleteEdgeRelation(re.edge)
}

/*
reify converts this relation into a vertex backed relation. The relation
keeps its concept id.
*/
func (re *relationEdge) reify() (*relationReified, error) {
	id := re.conceptID()

	v, err := re.tx.attachThingVertex(re.typeID(), LabelRelation, re.isInferred(),
		map[string]interface{}{PropEdgeRelationID: string(id)})
	if err != nil {
		return nil, err
	}

	ret := &relationReified{re.tx, v}

	cs, _ := re.castings()
	for _, c := range cs {
		if err := ret.addCasting(c.role, c.player); err != nil {
			return nil, err
		}
	}

	if err := re.tx.gt.RemoveEdge(re.edge.ID); err != nil {
		return nil, storageError(err)
	}

	re.tx.reified[id] = v.ID
	re.tx.markModified(id)

	logger.Debug(fmt.Sprintf("Transaction %v reified relation %v as %v", re.tx.id, id, v.ID))

	return ret, nil
}

// Vertex backed relations
// =======================

/*
relationReified is a relation stored as a vertex.
*/
type relationReified struct {
	tx     *Transaction  // Transaction of the relation
	vertex *graph.Vertex // Relation vertex
}

func (rr *relationReified) conceptID() ConceptID {
	if id := stringProp(rr.vertex.Props, PropEdgeRelationID); id != "" {
		return ConceptID(id)
	}
	return vertexConceptID(rr.vertex.ID)
}

func (rr *relationReified) typeID() uint64 {
	return uintProp(rr.vertex.Props, PropThingTypeLabelID)
}

func (rr *relationReified) isInferred() bool {
	return boolProp(rr.vertex.Props, PropIsInferred)
}

func (rr *relationReified) isReified() bool {
	return true
}

func (rr *relationReified) castings() ([]casting, error) {
	edges, err := rr.tx.gt.Edges(rr.vertex.ID, graph.DirectionOut, EdgeRolePlayer)
	if err != nil {
		return nil, storageError(err)
	}

	ret := make([]casting, 0, len(edges))
	for _, e := range edges {
		ret = append(ret, casting{uintProp(e.Props, PropRoleLabelID), e.In})
	}

	return ret, nil
}

/*
allRolePlayers returns the players per role. All roles of the relation type
are included even if they have no players.
*/
func (rr *relationReified) allRolePlayers() (map[uint64][]uint64, error) {
	ret := make(map[uint64][]uint64)

	roles, err := rr.tx.inheritedTargets(rr.typeID(), EdgeRelates)
	if err != nil {
		return nil, err
	}

	for _, r := range roles {
		ret[r] = []uint64{}
	}

	cs, err := rr.castings()
	if err != nil {
		return nil, err
	}

	for _, c := range cs {
		ret[c.role] = append(ret[c.role], c.player)
	}

	return ret, nil
}

func (rr *relationReified) delete() error {
	return rr.tx.deleteThing(rr.vertex.ID)
}

/*
addCasting adds a role player to this relation.
*/
func (rr *relationReified) addCasting(role uint64, player uint64) error {
	_, err := rr.tx.gt.AddEdge(EdgeRolePlayer, rr.vertex.ID, player, map[string]interface{}{
		PropRoleLabelID:         role,
		PropRelationTypeLabelID: rr.typeID(),
	})
	return storageError(err)
}

/*
removeCasting removes a role player from this relation. The relation is
deleted if it has no role players left.
*/
func (rr *relationReified) removeCasting(role uint64, player uint64) error {
	edges, err := rr.tx.gt.Edges(rr.vertex.ID, graph.DirectionOut, EdgeRolePlayer)
	if err != nil {
		return storageError(err)
	}

	remaining := 0

	for _, e := range edges {
		if e.In == player && uintProp(e.Props, PropRoleLabelID) == role {
			if err := rr.tx.gt.RemoveEdge(e.ID); err != nil {
				return storageError(err)
			}
			continue
		}
		remaining++
	}

	if remaining == 0 {
		return rr.delete()
	}

	return nil
}

/*
resolveRelation looks up the storage representation of a relation. Returns
nil if the relation does not exist.
*/
func (t *Transaction) resolveRelation(id ConceptID) (relationStructure, error) {
	kind, eid, ok := id.parse()
	if !ok {
		return nil, nil
	}

	if kind == 'V' {
		return t.reifiedRelation(eid)
	}

	if vid, ok := t.reified[id]; ok {
		return t.reifiedRelation(vid)
	}

	e, err := t.gt.Edge(eid)
	if err != nil {
		return nil, storageError(err)
	} else if e != nil && e.Label == EdgeRelation {
		return &relationEdge{t, e}, nil
	}

	// The relation edge might have been moved or the relation was reified by
	// an earlier transaction

	edges, err := t.gt.EdgesByProperty(PropEdgeRelationID, string(id))
	if err != nil {
		return nil, storageError(err)
	}

	for _, e := range edges {
		if e.Label == EdgeRelation {
			return &relationEdge{t, e}, nil
		}
	}

	ids, err := t.gt.VertexIDsByProperty(PropEdgeRelationID, string(id))
	if err != nil {
		return nil, storageError(err)
	}

	for _, vid := range ids {
		if s, err := t.reifiedRelation(vid); err != nil || s != nil {
			return s, err
		}
	}

	return nil, nil
}

/*
Relation looks up a relation by its id. Relations which were reified or
moved are found by their original id.
*/
func (t *Transaction) Relation(id ConceptID) (*Relation, error) {
	return call(t, false, func() (*Relation, error) {
		s, err := t.resolveRelation(id)
		if err != nil {
			return nil, err
		} else if s == nil {
			return nil, &KBError{Type: ErrNotFound, Detail: string(id)}
		}
		return &Relation{t, s.conceptID()}, nil
	})
}

func (t *Transaction) reifiedRelation(vid uint64) (relationStructure, error) {
	v, err := t.thingVertex(vid)
	if err != nil || v == nil || v.Label != LabelRelation {
		return nil, err
	}
	return &relationReified{t, v}, nil
}

// Relation wrapper
// ================

/*
Relation is an instance of a relation type. A relation object refers to its
storage representation by id so it stays valid when the relation is
reified.
*/
type Relation struct {
	tx *Transaction // Transaction of the relation
	id ConceptID    // Id of the relation
}

/*
ID returns the id of this relation. The id does not change when the relation
is reified.
*/
func (r *Relation) ID() ConceptID {
	return r.id
}

/*
String returns a string representation of this relation.
*/
func (r *Relation) String() string {
	return string(r.id)
}

func (r *Relation) structure() (relationStructure, error) {
	s, err := r.tx.resolveRelation(r.id)
	if err == nil && s == nil {
		err = &KBError{Type: ErrNotFound, Detail: string(r.id)}
	}
	return s, err
}

/*
reified returns the vertex backed representation of this relation. An edge
backed relation is reified.
*/
func (r *Relation) reified() (*relationReified, error) {
	s, err := r.structure()
	if err != nil {
		return nil, err
	}

	if re, ok := s.(*relationEdge); ok {
		if r.tx.kind != WRITE {
			return nil, &KBError{Type: ErrReadOnlyTransaction, Detail: r.tx.id}
		}
		return re.reify()
	}

	return s.(*relationReified), nil
}

/*
Type returns the type of this relation.
*/
func (r *Relation) Type() (Type, error) {
	return call(r.tx, false, func() (Type, error) {
		s, err := r.structure()
		if err != nil {
			return nil, err
		}
		_, tt, err := r.tx.typeByID(s.typeID())
		return tt, err
	})
}

/*
IsInferred returns if this relation was created by inference.
*/
func (r *Relation) IsInferred() (bool, error) {
	return call(r.tx, false, func() (bool, error) {
		s, err := r.structure()
		if err != nil {
			return false, err
		}
		return s.isInferred(), nil
	})
}

/*
IsReified returns if this relation is stored as a vertex.
*/
func (r *Relation) IsReified() (bool, error) {
	return call(r.tx, false, func() (bool, error) {
		s, err := r.structure()
		if err != nil {
			return false, err
		}
		return s.isReified(), nil
	})
}

/*
Assign adds a role player to this relation.
*/
func (r *Relation) Assign(role *Role, player Thing) error {
	return run(r.tx, true, func() error {
		pid, err := player.playerVertex()
		if err != nil {
			return err
		}

		rr, err := r.reified()
		if err != nil {
			return err
		}

		if err := r.tx.makeExplicit(rr.vertex.ID, pid); err != nil {
			return err
		}

		cs, err := rr.castings()
		if err != nil {
			return err
		}

		for _, c := range cs {
			if c.role == role.vid && c.player == pid {
				return nil
			}
		}

		r.tx.markModified(r.id)

		return rr.addCasting(role.vid, pid)
	})
}

/*
Unassign removes a role player from this relation. The relation is deleted if
it has no role players left.
*/
func (r *Relation) Unassign(role *Role, player Thing) error {
	return run(r.tx, true, func() error {
		pid, err := player.playerVertex()
		if err != nil {
			return err
		}

		rr, err := r.reified()
		if err != nil {
			return err
		}

		r.tx.markModified(r.id)

		return rr.removeCasting(role.vid, pid)
	})
}

/*
RolePlayers returns the role players of this relation. The result can be
restricted to a set of roles. A player is returned once for every role it
plays.
*/
func (r *Relation) RolePlayers(roles ...*Role) ([]Thing, error) {
	return call(r.tx, false, func() ([]Thing, error) {
		filter := make(map[uint64]bool)
		for _, role := range roles {
			filter[role.vid] = true
		}

		s, err := r.structure()
		if err != nil {
			return nil, err
		}

		cs, err := s.castings()
		if err != nil {
			return nil, err
		}

		var ret []Thing

		for _, c := range cs {
			if len(filter) == 0 || filter[c.role] {
				player, err := r.tx.thingByID(c.player)
				if err != nil {
					return nil, err
				}
				ret = append(ret, player)
			}
		}

		return ret, nil
	})
}

/*
AllRolePlayers returns the role players of this relation per role label.
Roles of a vertex backed relation without players are included.
*/
func (r *Relation) AllRolePlayers() (map[string][]Thing, error) {
	return call(r.tx, false, func() (map[string][]Thing, error) {
		s, err := r.structure()
		if err != nil {
			return nil, err
		}

		rps, err := s.allRolePlayers()
		if err != nil {
			return nil, err
		}

		ret := make(map[string][]Thing, len(rps))

		for role, players := range rps {
			rc, err := r.tx.schemaConceptByID(role)
			if err != nil {
				return nil, err
			}

			label := rc.(*Role).label
			ret[label] = make([]Thing, 0, len(players))

			for _, pid := range players {
				player, err := r.tx.thingByID(pid)
				if err != nil {
					return nil, err
				}
				ret[label] = append(ret[label], player)
			}
		}

		return ret, nil
	})
}

/*
Has makes this relation own an attribute. The relation is reified.
*/
func (r *Relation) Has(attribute *Attribute) error {
	return run(r.tx, true, func() error {
		rr, err := r.reified()
		if err != nil {
			return err
		}
		return r.tx.addAttributeEdge(rr.vertex.ID, attribute.vid)
	})
}

/*
Unhas removes the ownership of an attribute.
*/
func (r *Relation) Unhas(attribute *Attribute) error {
	return run(r.tx, true, func() error {
		s, err := r.structure()
		if err != nil || !s.isReified() {
			return err
		}
		return r.tx.removeAttributeEdges(s.(*relationReified).vertex.ID, attribute.vid)
	})
}

/*
Attributes returns the attributes of this relation.
*/
func (r *Relation) Attributes(types ...*AttributeType) ([]*Attribute, error) {
	return call(r.tx, false, func() ([]*Attribute, error) {
		s, err := r.structure()
		if err != nil || !s.isReified() {
			return nil, err
		}
		return r.tx.attributesOf(s.(*relationReified).vertex.ID, types)
	})
}

/*
Relations returns the relations in which this relation plays a role.
*/
func (r *Relation) Relations(roles ...*Role) ([]*Relation, error) {
	return call(r.tx, false, func() ([]*Relation, error) {
		s, err := r.structure()
		if err != nil || !s.isReified() {
			return nil, err
		}
		return r.tx.relationsOf(s.(*relationReified).vertex.ID, roles)
	})
}

/*
Delete deletes this relation.
*/
func (r *Relation) Delete() error {
	return run(r.tx, true, func() error {
		s, err := r.structure()
		if err != nil {
			return err
		}
		return s.delete()
	})
}

func (r *Relation) playerVertex() (uint64, error) {
	rr, err := r.reified()
	if err != nil {
		return 0, err
	}
	return rr.vertex.ID, nil
}
