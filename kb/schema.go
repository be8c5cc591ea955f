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
	"regexp"

	"devt.de/krotik/common/stringutil"
	"devt.de/krotik/conceptdb/graph"
)

/*
Concept is a schema concept or a thing.
*/
type Concept interface {

	/*
	   ID returns the id of this concept.
	*/
	ID() ConceptID
}

/*
Type is a schema concept which can have instances.
*/
type Type interface {
	Concept

	/*
	   Label returns the schema label of this type.
	*/
	Label() string

	/*
	   IsAbstract returns if this type cannot have instances.
	*/
	IsAbstract() (bool, error)

	/*
	   SetAbstract changes if this type can have instances.
	*/
	SetAbstract(abstract bool) error

	/*
	   Plays declares that instances of this type can play a role.
	*/
	Plays(role *Role) error

	/*
	   Has declares that instances of this type can own attributes of a type.
	*/
	Has(attributeType *AttributeType) error

	/*
	   Key declares that every instance of this type must own exactly one
	   attribute of a type and that this attribute identifies the instance.
	*/
	Key(attributeType *AttributeType) error

	/*
	   SetSup makes another type of the same kind the direct supertype of this
	   type. A nil supertype removes the current supertype.
	*/
	SetSup(sup Type) error

	/*
	   Sup returns the direct supertype of this type or nil.
	*/
	Sup() (Type, error)

	/*
	   Sups returns this type followed by all its supertypes.
	*/
	Sups() ([]Type, error)

	/*
	   Subs returns this type followed by all its direct and indirect subtypes.
	*/
	Subs() ([]Type, error)

	/*
	   Instances returns all instances of this type and of its subtypes.
	*/
	Instances() ([]Thing, error)

	/*
	   ShardCount returns the number of shards of this type.
	*/
	ShardCount() (int, error)

	/*
	   SetShardThreshold sets the number of new instances after which this type
	   gets a new shard.
	*/
	SetShardThreshold(threshold int64) error
}

// Schema concepts
// ===============

/*
schemaConcept is the common part of all schema concepts.
*/
type schemaConcept struct {
	tx    *Transaction // Transaction of this concept
	vid   uint64       // Vertex id
	label string       // Schema label
}

/*
ID returns the id of this concept.
*/
func (sc *schemaConcept) ID() ConceptID {
	return vertexConceptID(sc.vid)
}

/*
Label returns the schema label of this concept.
*/
func (sc *schemaConcept) Label() string {
	return sc.label
}

/*
String returns a string representation of this concept.
*/
func (sc *schemaConcept) String() string {
	return fmt.Sprintf("%v (%v)", sc.label, sc.ID())
}

/*
Role is a role which things can play in relations.
*/
type Role struct {
	schemaConcept
}

/*
thingType is the common part of all types.
*/
type thingType struct {
	schemaConcept
}

/*
EntityType is the type of entities.
*/
type EntityType struct {
	thingType
}

/*
RelationType is the type of relations.
*/
type RelationType struct {
	thingType
}

/*
AttributeType is the type of attributes.
*/
type AttributeType struct {
	thingType
}

/*
IsAbstract returns if this type cannot have instances.
*/
func (tt *thingType) IsAbstract() (bool, error) {
	return call(tt.tx, false, func() (bool, error) {
		v, err := tt.tx.typeVertex(tt.vid)
		if err != nil {
			return false, err
		}
		return boolProp(v.Props, PropIsAbstract), nil
	})
}

/*
SetAbstract changes if this type can have instances.
*/
func (tt *thingType) SetAbstract(abstract bool) error {
	return run(tt.tx, true, func() error {
		return tt.setProp(PropIsAbstract, abstract)
	})
}

/*
Plays declares that instances of this type can play a role.
*/
func (tt *thingType) Plays(role *Role) error {
	return run(tt.tx, true, func() error {
		return tt.tx.addSchemaEdge(EdgePlays, tt.vid, role.vid, nil)
	})
}

/*
Has declares that instances of this type can own attributes of a type.
*/
func (tt *thingType) Has(attributeType *AttributeType) error {
	return run(tt.tx, true, func() error {
		return tt.tx.addSchemaEdge(EdgeHas, tt.vid, attributeType.vid,
			map[string]interface{}{PropIsKey: false})
	})
}

/*
Key declares that every instance of this type must own exactly one attribute
of a type.
*/
func (tt *thingType) Key(attributeType *AttributeType) error {
	return run(tt.tx, true, func() error {
		return tt.tx.addSchemaEdge(EdgeHas, tt.vid, attributeType.vid,
			map[string]interface{}{PropIsKey: true})
	})
}

/*
SetSup makes another type of the same kind the direct supertype of this type.
Instances of this type are instances of the supertype as well. They can play
the roles and own the attribute types of the supertype. A nil supertype
removes the current supertype.
*/
func (tt *thingType) SetSup(sup Type) error {
	return run(tt.tx, true, func() error {
		return tt.tx.setSup(tt.vid, sup)
	})
}

/*
Sup returns the direct supertype of this type or nil.
*/
func (tt *thingType) Sup() (Type, error) {
	return call(tt.tx, false, func() (Type, error) {
		sups, err := tt.tx.schemaTargets(tt.vid, EdgeSub)
		if err != nil || len(sups) == 0 {
			return nil, err
		}
		_, ret, err := tt.tx.typeByID(sups[0])
		return ret, err
	})
}

/*
Sups returns this type followed by all its supertypes.
*/
func (tt *thingType) Sups() ([]Type, error) {
	return call(tt.tx, false, func() ([]Type, error) {
		ids, err := tt.tx.supChain(tt.vid)
		if err != nil {
			return nil, err
		}
		return tt.tx.typesByID(ids)
	})
}

/*
Subs returns this type followed by all its direct and indirect subtypes.
*/
func (tt *thingType) Subs() ([]Type, error) {
	return call(tt.tx, false, func() ([]Type, error) {
		ids, err := tt.tx.subTree(tt.vid)
		if err != nil {
			return nil, err
		}
		return tt.tx.typesByID(ids)
	})
}

/*
Instances returns all instances of this type and of its subtypes.
*/
func (tt *thingType) Instances() ([]Thing, error) {
	return call(tt.tx, false, func() ([]Thing, error) {
		var ret []Thing

		ids, err := tt.tx.subTree(tt.vid)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			instances, err := tt.tx.instances(id)
			if err != nil {
				return nil, err
			}
			ret = append(ret, instances...)
		}

		return ret, nil
	})
}

/*
ShardCount returns the number of shards of this type.
*/
func (tt *thingType) ShardCount() (int, error) {
	return call(tt.tx, false, func() (int, error) {
		shards, err := tt.tx.shards(tt.vid)
		return len(shards), err
	})
}

/*
SetShardThreshold sets the number of new instances after which this type
gets a new shard.
*/
func (tt *thingType) SetShardThreshold(threshold int64) error {
	return run(tt.tx, true, func() error {
		if threshold < 1 {
			return &KBError{Type: ErrSchema, Detail: fmt.Sprintf("Invalid shard threshold %v", threshold)}
		}
		return tt.setProp(PropShardThreshold, threshold)
	})
}

func (tt *thingType) setProp(key string, value interface{}) error {
	v, err := tt.tx.typeVertex(tt.vid)
	if err == nil {
		err = storageError(tt.tx.gt.SetVertexProperty(v, key, value))
		tt.tx.markModified(tt.ID())
	}
	return err
}

/*
Create creates a new entity.
*/
func (et *EntityType) Create() (*Entity, error) {
	return et.create(false)
}

/*
CreateInferred creates a new inferred entity. Inferred entities are discarded
at commit unless they are persisted.
*/
func (et *EntityType) CreateInferred() (*Entity, error) {
	return et.create(true)
}

func (et *EntityType) create(inferred bool) (*Entity, error) {
	return call(et.tx, true, func() (*Entity, error) {
		v, err := et.tx.addThingVertex(&et.thingType, LabelEntity, inferred, nil)
		if err != nil {
			return nil, err
		}
		return &Entity{thing{et.tx, v.ID}}, nil
	})
}

/*
Relates declares that relations of this type can have players in a role.
*/
func (rt *RelationType) Relates(role *Role) error {
	return run(rt.tx, true, func() error {
		return rt.tx.addSchemaEdge(EdgeRelates, rt.vid, role.vid, nil)
	})
}

/*
Roles returns all roles of this relation type.
*/
func (rt *RelationType) Roles() ([]*Role, error) {
	return call(rt.tx, false, func() ([]*Role, error) {
		ids, err := rt.tx.schemaTargets(rt.vid, EdgeRelates)
		if err != nil {
			return nil, err
		}

		ret := make([]*Role, 0, len(ids))
		for _, id := range ids {
			c, err := rt.tx.schemaConceptByID(id)
			if err != nil {
				return nil, err
			}
			if r, ok := c.(*Role); ok {
				ret = append(ret, r)
			}
		}

		return ret, nil
	})
}

/*
Create creates a new relation which is stored as a vertex.
*/
func (rt *RelationType) Create() (*Relation, error) {
	return call(rt.tx, true, func() (*Relation, error) {
		v, err := rt.tx.addThingVertex(&rt.thingType, LabelRelation, false, nil)
		if err != nil {
			return nil, err
		}
		return &Relation{rt.tx, vertexConceptID(v.ID)}, nil
	})
}

/*
CreateBinary creates a new relation between two players which is stored as a
single edge. The relation is converted into a vertex once it needs more
structure.
*/
func (rt *RelationType) CreateBinary(role1 *Role, player1 Thing, role2 *Role, player2 Thing) (*Relation, error) {
	return rt.createBinary(role1, player1, role2, player2, false)
}

/*
CreateBinaryInferred creates a new inferred binary relation.
*/
func (rt *RelationType) CreateBinaryInferred(role1 *Role, player1 Thing, role2 *Role, player2 Thing) (*Relation, error) {
	return rt.createBinary(role1, player1, role2, player2, true)
}

func (rt *RelationType) createBinary(role1 *Role, player1 Thing, role2 *Role, player2 Thing, inferred bool) (*Relation, error) {
	return call(rt.tx, true, func() (*Relation, error) {
		p1, err := player1.playerVertex()
		if err != nil {
			return nil, err
		}

		p2, err := player2.playerVertex()
		if err != nil {
			return nil, err
		}

		e, err := rt.tx.gt.AddEdge(EdgeRelation, p1, p2, map[string]interface{}{
			PropRelationTypeLabelID:      rt.vid,
			PropRelationRoleOwnerLabelID: role1.vid,
			PropRelationRoleValueLabelID: role2.vid,
			PropIsInferred:               inferred,
		})
		if err != nil {
			return nil, storageError(err)
		}

		id := edgeConceptID(e.ID)

		rt.tx.delta[rt.label]++
		rt.tx.markModified(id)

		if inferred {
			rt.tx.inferred = append(rt.tx.inferred, id)
		}

		return &Relation{rt.tx, id}, nil
	})
}

/*
DataType returns the data type of the values of this attribute type.
*/
func (at *AttributeType) DataType() (DataType, error) {
	return call(at.tx, false, func() (DataType, error) {
		return at.dataType()
	})
}

func (at *AttributeType) dataType() (DataType, error) {
	v, err := at.tx.typeVertex(at.vid)
	if err != nil {
		return "", err
	}
	return DataType(stringProp(v.Props, PropDataType)), nil
}

/*
SetRegex sets a regular expression which all string values of this attribute
type must match. An empty string removes the constraint.
*/
func (at *AttributeType) SetRegex(re string) error {
	return run(at.tx, true, func() error {
		dt, err := at.dataType()
		if err != nil {
			return err
		} else if dt != DataTypeString {
			return &KBError{Type: ErrSchema, Detail: fmt.Sprintf("Regex requires data type string not %v", dt)}
		} else if _, err := regexp.Compile(re); err != nil {
			return &KBError{Type: ErrSchema, Detail: fmt.Sprintf("Invalid regex %v: %v", re, err)}
		}
		return at.setProp(PropRegex, re)
	})
}

/*
Regex returns the regular expression of this attribute type.
*/
func (at *AttributeType) Regex() (string, error) {
	return call(at.tx, false, func() (string, error) {
		v, err := at.tx.typeVertex(at.vid)
		if err != nil {
			return "", err
		}
		return stringProp(v.Props, PropRegex), nil
	})
}

/*
Put returns the attribute of a value. The attribute is created if it does
not exist.
*/
func (at *AttributeType) Put(value interface{}) (*Attribute, error) {
	return at.put(value, false)
}

/*
PutInferred returns the attribute of a value. A newly created attribute is
inferred and discarded at commit unless it is persisted.
*/
func (at *AttributeType) PutInferred(value interface{}) (*Attribute, error) {
	return at.put(value, true)
}

func (at *AttributeType) put(value interface{}, inferred bool) (*Attribute, error) {
	return call(at.tx, true, func() (*Attribute, error) {
		return at.tx.putAttribute(at, value, inferred)
	})
}

/*
Attribute looks up the attribute of a value. Returns nil if the attribute
does not exist.
*/
func (at *AttributeType) Attribute(value interface{}) (*Attribute, error) {
	return call(at.tx, false, func() (*Attribute, error) {
		dt, err := at.dataType()
		if err != nil {
			return nil, err
		}

		_, canonical, err := dt.normalize(value)
		if err != nil {
			return nil, err
		}

		vid, err := at.tx.lookupAttribute(AttributeIndex(at.label, canonical))
		if err != nil || vid == 0 {
			return nil, err
		}

		return &Attribute{thing{at.tx, vid}}, nil
	})
}

// Schema creation
// ===============

/*
PutEntityType returns the entity type of a label. The type is created if it
does not exist.
*/
func (t *Transaction) PutEntityType(label string) (*EntityType, error) {
	return call(t, true, func() (*EntityType, error) {
		v, err := t.putSchemaVertex(label, LabelEntityType, nil)
		if err != nil {
			return nil, err
		}
		return t.buildSchemaConcept(v).(*EntityType), nil
	})
}

/*
PutRelationType returns the relation type of a label. The type is created if
it does not exist.
*/
func (t *Transaction) PutRelationType(label string) (*RelationType, error) {
	return call(t, true, func() (*RelationType, error) {
		v, err := t.putSchemaVertex(label, LabelRelationType, nil)
		if err != nil {
			return nil, err
		}
		return t.buildSchemaConcept(v).(*RelationType), nil
	})
}

/*
PutAttributeType returns the attribute type of a label. The type is created
if it does not exist. An existing type must have the same data type.
*/
func (t *Transaction) PutAttributeType(label string, dataType DataType) (*AttributeType, error) {
	return call(t, true, func() (*AttributeType, error) {
		if !dataType.IsValid() {
			return nil, &KBError{Type: ErrSchema, Detail: fmt.Sprintf("Unknown data type %v", dataType)}
		}

		v, err := t.putSchemaVertex(label, LabelAttributeType,
			map[string]interface{}{PropDataType: string(dataType)})
		if err != nil {
			return nil, err
		}

		if existing := DataType(stringProp(v.Props, PropDataType)); existing != dataType {
			return nil, &KBError{Type: ErrSchema,
				Detail: fmt.Sprintf("Attribute type %v has data type %v", label, existing)}
		}

		return t.buildSchemaConcept(v).(*AttributeType), nil
	})
}

/*
PutRole returns the role of a label. The role is created if it does not
exist.
*/
func (t *Transaction) PutRole(label string) (*Role, error) {
	return call(t, true, func() (*Role, error) {
		v, err := t.putSchemaVertex(label, LabelRole, nil)
		if err != nil {
			return nil, err
		}
		return t.buildSchemaConcept(v).(*Role), nil
	})
}

/*
putSchemaVertex looks up or creates the vertex of a schema label. Types get
their first shard on creation.
*/
func (t *Transaction) putSchemaVertex(label string, vlabel string, props map[string]interface{}) (*graph.Vertex, error) {
	if label == "" || !stringutil.IsAlphaNumeric(label) {
		return nil, &KBError{Type: ErrSchema, Detail: fmt.Sprintf("Invalid schema label %q", label)}
	}

	v, err := t.lookupSchemaVertex(label)
	if err != nil {
		return nil, err
	}

	if v != nil {
		if v.Label != vlabel {
			return nil, &KBError{Type: ErrSchema,
				Detail: fmt.Sprintf("Label %v is already used by a %v", label, v.Label)}
		}
		return v, nil
	}

	if props == nil {
		props = make(map[string]interface{})
	}
	props[PropSchemaLabel] = label

	if vlabel != LabelRole {
		props[PropTypeShardCheckpoint] = int64(0)
		props[PropIsAbstract] = false
	}

	if v, err = t.gt.AddVertex(vlabel, props); err != nil {
		return nil, storageError(err)
	}

	if vlabel != LabelRole {
		if err := t.createShard(v); err != nil {
			return nil, err
		}
	}

	t.newSchema[label] = v.ID
	t.markModified(vertexConceptID(v.ID))

	logger.Debug(fmt.Sprintf("Transaction %v created %v %v", t.id, vlabel, label))

	return v, nil
}

/*
addSchemaEdge adds an edge between two schema concepts if it does not exist.
Properties of an existing edge are updated.
*/
func (t *Transaction) addSchemaEdge(label string, out uint64, in uint64, props map[string]interface{}) error {
	edges, err := t.gt.Edges(out, graph.DirectionOut, label)
	if err != nil {
		return storageError(err)
	}

	for _, e := range edges {
		if e.In == in {
			for k, v := range props {
				if err := t.gt.SetEdgeProperty(e, k, v); err != nil {
					return storageError(err)
				}
			}
			return nil
		}
	}

	_, err = t.gt.AddEdge(label, out, in, props)
	t.markModified(vertexConceptID(out))

	return storageError(err)
}

/*
schemaTargets returns the ids of all schema concepts which are connected to a
schema concept by outgoing edges of a given label.
*/
func (t *Transaction) schemaTargets(vid uint64, label string) ([]uint64, error) {
	edges, err := t.gt.Edges(vid, graph.DirectionOut, label)
	if err != nil {
		return nil, storageError(err)
	}

	ret := make([]uint64, 0, len(edges))
	for _, e := range edges {
		ret = append(ret, e.In)
	}

	return ret, nil
}

// Type hierarchy
// ==============

/*
setSup replaces the direct supertype of a type.
*/
func (t *Transaction) setSup(typeID uint64, sup Type) error {
	tv, err := t.typeVertex(typeID)
	if err != nil {
		return err
	}

	var supID uint64

	if sup != nil {
		_, supID, _ = sup.ID().parse()

		sv, err := t.typeVertex(supID)
		if err != nil {
			return err
		}

		label := stringProp(tv.Props, PropSchemaLabel)
		supLabel := stringProp(sv.Props, PropSchemaLabel)

		if sv.Label != tv.Label {
			return &KBError{Type: ErrSchema,
				Detail: fmt.Sprintf("Type %v cannot be a subtype of %v (%v)", label, supLabel, sv.Label)}
		} else if stringProp(sv.Props, PropDataType) != stringProp(tv.Props, PropDataType) {
			return &KBError{Type: ErrSchema,
				Detail: fmt.Sprintf("Attribute type %v has a different data type than %v", label, supLabel)}
		}

		chain, err := t.supChain(supID)
		if err != nil {
			return err
		} else if containsID(chain, typeID) {
			return &KBError{Type: ErrSchema,
				Detail: fmt.Sprintf("Type %v cannot be a subtype of %v (cycle)", label, supLabel)}
		}
	}

	edges, err := t.gt.Edges(typeID, graph.DirectionOut, EdgeSub)
	if err != nil {
		return storageError(err)
	}

	for _, e := range edges {
		if e.In == supID {
			return nil
		}
		if err := t.gt.RemoveEdge(e.ID); err != nil {
			return storageError(err)
		}
	}

	t.markModified(vertexConceptID(typeID))

	if supID == 0 {
		return nil
	}

	_, err = t.gt.AddEdge(EdgeSub, typeID, supID, nil)

	return storageError(err)
}

/*
supChain returns the id of a type followed by the ids of all its supertypes.
*/
func (t *Transaction) supChain(typeID uint64) ([]uint64, error) {
	ret := []uint64{typeID}

	for cur := typeID; ; {
		sups, err := t.schemaTargets(cur, EdgeSub)
		if err != nil {
			return nil, err
		} else if len(sups) == 0 || containsID(ret, sups[0]) {
			return ret, nil
		}

		cur = sups[0]
		ret = append(ret, cur)
	}
}

/*
subTree returns the id of a type followed by the ids of all its direct and
indirect subtypes.
*/
func (t *Transaction) subTree(typeID uint64) ([]uint64, error) {
	ret := []uint64{typeID}

	for i := 0; i < len(ret); i++ {
		edges, err := t.gt.Edges(ret[i], graph.DirectionIn, EdgeSub)
		if err != nil {
			return nil, storageError(err)
		}

		for _, e := range edges {
			if !containsID(ret, e.Out) {
				ret = append(ret, e.Out)
			}
		}
	}

	return ret, nil
}

/*
inheritedTargets returns the ids of all schema concepts which are connected
to a type or one of its supertypes by outgoing edges of a given label.
*/
func (t *Transaction) inheritedTargets(typeID uint64, label string) ([]uint64, error) {
	var ret []uint64

	chain, err := t.supChain(typeID)
	if err != nil {
		return nil, err
	}

	for _, id := range chain {
		targets, err := t.schemaTargets(id, label)
		if err != nil {
			return nil, err
		}

		for _, target := range targets {
			if !containsID(ret, target) {
				ret = append(ret, target)
			}
		}
	}

	return ret, nil
}

/*
typesByID looks up a list of types by their vertex ids.
*/
func (t *Transaction) typesByID(ids []uint64) ([]Type, error) {
	ret := make([]Type, 0, len(ids))

	for _, id := range ids {
		_, tt, err := t.typeByID(id)
		if err != nil {
			return nil, err
		}
		ret = append(ret, tt)
	}

	return ret, nil
}

// Schema lookup
// =============

/*
lookupSchemaVertex looks up the vertex of a schema label. Returns nil if the
label does not exist.
*/
func (t *Transaction) lookupSchemaVertex(label string) (*graph.Vertex, error) {
	if vid, ok := t.newSchema[label]; ok {
		return t.typeVertex(vid)
	}

	if vid, ok := t.session.cachedSchemaID(label); ok {
		return t.typeVertex(vid)
	}

	ids, err := t.gt.VertexIDsByProperty(PropSchemaLabel, label)
	if err != nil {
		return nil, storageError(err)
	}

	for _, id := range ids {
		v, err := t.gt.ReadCommittedVertex(id)
		if err != nil {
			return nil, storageError(err)
		} else if v != nil && stringProp(v.Props, PropSchemaLabel) == label {
			return v, nil
		}
	}

	return nil, nil
}

/*
schemaConceptByLabel looks up a schema concept by its label.
*/
func (t *Transaction) schemaConceptByLabel(label string) (Concept, error) {
	v, err := t.lookupSchemaVertex(label)
	if err != nil {
		return nil, err
	} else if v == nil {
		return nil, &KBError{Type: ErrNotFound, Detail: fmt.Sprintf("Schema concept %v", label)}
	}
	return t.buildSchemaConcept(v), nil
}

/*
schemaConceptByID looks up a schema concept by its vertex id.
*/
func (t *Transaction) schemaConceptByID(vid uint64) (Concept, error) {
	v, err := t.typeVertex(vid)
	if err != nil {
		return nil, err
	}
	return t.buildSchemaConcept(v), nil
}

/*
typeByID looks up a type by its vertex id.
*/
func (t *Transaction) typeByID(vid uint64) (*thingType, Type, error) {
	c, err := t.schemaConceptByID(vid)
	if err != nil {
		return nil, nil, err
	}

	switch tt := c.(type) {
	case *EntityType:
		return &tt.thingType, tt, nil
	case *RelationType:
		return &tt.thingType, tt, nil
	case *AttributeType:
		return &tt.thingType, tt, nil
	}

	return nil, nil, &KBError{Type: ErrSchema, Detail: fmt.Sprintf("%v is not a type", vertexConceptID(vid))}
}

/*
buildSchemaConcept builds the concept object of a schema vertex.
*/
func (t *Transaction) buildSchemaConcept(v *graph.Vertex) Concept {
	sc := schemaConcept{t, v.ID, stringProp(v.Props, PropSchemaLabel)}

	switch v.Label {
	case LabelEntityType:
		return &EntityType{thingType{sc}}
	case LabelRelationType:
		return &RelationType{thingType{sc}}
	case LabelAttributeType:
		return &AttributeType{thingType{sc}}
	}

	return &Role{sc}
}

/*
declaredAttributeType returns if a type or one of its supertypes declares
ownership of an attribute type and if the attribute type is a key.
*/
func (t *Transaction) declaredAttributeType(typeID uint64, attributeTypeID uint64) (bool, bool, error) {
	chain, err := t.supChain(typeID)
	if err != nil {
		return false, false, err
	}

	for _, id := range chain {
		edges, err := t.gt.Edges(id, graph.DirectionOut, EdgeHas)
		if err != nil {
			return false, false, storageError(err)
		}

		for _, e := range edges {
			if e.In == attributeTypeID {
				return true, boolProp(e.Props, PropIsKey), nil
			}
		}
	}

	return false, false, nil
}

/*
keyDeclaration is an attribute type which is a key of a type.
*/
type keyDeclaration struct {
	attributeType uint64 // Key attribute type
	owner         uint64 // Type which declared the key
}

/*
keyTypes returns all key declarations of a type and its supertypes. A
declaration of a type overrides the declarations of its supertypes.
*/
func (t *Transaction) keyTypes(typeID uint64) ([]keyDeclaration, error) {
	var ret []keyDeclaration

	chain, err := t.supChain(typeID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]bool)

	for _, id := range chain {
		edges, err := t.gt.Edges(id, graph.DirectionOut, EdgeHas)
		if err != nil {
			return nil, storageError(err)
		}

		for _, e := range edges {
			if !seen[e.In] {
				seen[e.In] = true
				if boolProp(e.Props, PropIsKey) {
					ret = append(ret, keyDeclaration{e.In, id})
				}
			}
		}
	}

	return ret, nil
}
