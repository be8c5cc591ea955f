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
	"errors"
	"fmt"
	"regexp"
	"sort"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/conceptdb/graph"
)

/*
Kinds of concepts which are handled by validation rules
*/
const (
	KindType = iota
	KindThing
	KindRelation
)

/*
ValidationRule models a consistency rule which is checked for all concepts
which were changed by a transaction before the transaction is committed.
*/
type ValidationRule interface {

	/*
	   Name returns the name of the rule.
	*/
	Name() string

	/*
	   Handles returns the concept kinds which are handled by this rule.
	*/
	Handles() []int

	/*
	   Validate checks a concept. All violations are added to the given
	   composite error. An error is only returned if the check itself failed.
	*/
	Validate(tx *Transaction, c Concept, errs *errorutil.CompositeError) error
}

/*
validationRules are the rules which are checked on commit
*/
var validationRules = []ValidationRule{
	&ruleRolePlayers{},
	&ruleAbstractInstance{},
	&ruleAbstractType{},
	&ruleRegex{},
	&ruleAttributeOwnership{},
	&ruleKey{},
}

/*
validate checks all concepts which were changed by this transaction.
*/
func (t *Transaction) validate() error {
	errs := errorutil.NewCompositeError()

	ids := make([]string, 0, len(t.modified))
	for id := range t.modified {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		c, err := t.concept(ConceptID(id))
		if errors.Is(err, ErrNotFound) {
			continue
		} else if err != nil {
			return err
		}

		kind := KindThing
		switch c.(type) {
		case *Relation:
			kind = KindRelation
		case *EntityType, *RelationType, *AttributeType:
			kind = KindType
		case *Role:
			continue
		}

		for _, rule := range validationRules {
			for _, k := range rule.Handles() {
				if k != kind {
					continue
				}
				if err := rule.Validate(t, c, errs); err != nil {
					return err
				}
			}
		}
	}

	if errs.HasErrors() {
		return &KBError{Type: ErrInvalidKB, Detail: errs.Error()}
	}

	return nil
}

/*
ownerVertex returns the vertex of a thing which can own attributes. Returns
nil for edge backed relations.
*/
func ownerVertex(tx *Transaction, c Concept) (*graph.Vertex, error) {
	switch th := c.(type) {
	case *Entity:
		return th.vertex()
	case *Attribute:
		return th.vertex()
	case *Relation:
		s, err := th.structure()
		if err != nil {
			return nil, err
		} else if rr, ok := s.(*relationReified); ok {
			return rr.vertex, nil
		}
	}
	return nil, nil
}

func (t *Transaction) label(vid uint64) string {
	if v, err := t.typeVertex(vid); err == nil {
		return stringProp(v.Props, PropSchemaLabel)
	}
	return fmt.Sprint(vid)
}

// Rule ruleRolePlayers
// ====================

/*
ruleRolePlayers checks that a relation has role players, that its roles are
related by its type and that its players are allowed to play their roles.
*/
type ruleRolePlayers struct {
}

func (r *ruleRolePlayers) Name() string {
	return "kb.roleplayers"
}

func (r *ruleRolePlayers) Handles() []int {
	return []int{KindRelation}
}

func (r *ruleRolePlayers) Validate(tx *Transaction, c Concept, errs *errorutil.CompositeError) error {
	s, err := c.(*Relation).structure()
	if err != nil {
		return err
	}

	cs, err := s.castings()
	if err != nil {
		return err
	}

	if len(cs) == 0 {
		errs.Add(fmt.Errorf("Relation %v of type %v has no role players", c.ID(), tx.label(s.typeID())))
		return nil
	}

	related, err := tx.inheritedTargets(s.typeID(), EdgeRelates)
	if err != nil {
		return err
	}

	for _, cst := range cs {

		if !containsID(related, cst.role) {
			errs.Add(fmt.Errorf("Role %v is not related by relation type %v",
				tx.label(cst.role), tx.label(s.typeID())))
		}

		pv, err := tx.thingVertex(cst.player)
		if err != nil {
			return err
		} else if pv == nil {
			continue
		}

		playerType := uintProp(pv.Props, PropThingTypeLabelID)

		plays, err := tx.inheritedTargets(playerType, EdgePlays)
		if err != nil {
			return err
		}

		if !containsID(plays, cst.role) {
			errs.Add(fmt.Errorf("Type %v is not allowed to play role %v",
				tx.label(playerType), tx.label(cst.role)))
		}
	}

	return nil
}

func containsID(ids []uint64, id uint64) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// Rule ruleAbstractInstance
// =========================

/*
ruleAbstractInstance checks that a thing is not an instance of an abstract
type.
*/
type ruleAbstractInstance struct {
}

func (r *ruleAbstractInstance) Name() string {
	return "kb.abstractinstance"
}

func (r *ruleAbstractInstance) Handles() []int {
	return []int{KindThing, KindRelation}
}

func (r *ruleAbstractInstance) Validate(tx *Transaction, c Concept, errs *errorutil.CompositeError) error {
	var typeID uint64

	if rel, ok := c.(*Relation); ok {
		s, err := rel.structure()
		if err != nil {
			return err
		}
		typeID = s.typeID()

	} else {
		v, err := ownerVertex(tx, c)
		if err != nil || v == nil {
			return err
		}
		typeID = uintProp(v.Props, PropThingTypeLabelID)
	}

	tv, err := tx.typeVertex(typeID)
	if err != nil {
		return err
	}

	if boolProp(tv.Props, PropIsAbstract) {
		errs.Add(fmt.Errorf("Thing %v is an instance of abstract type %v",
			c.ID(), stringProp(tv.Props, PropSchemaLabel)))
	}

	return nil
}

// Rule ruleAbstractType
// =====================

/*
ruleAbstractType checks that an abstract type has no instances.
*/
type ruleAbstractType struct {
}

func (r *ruleAbstractType) Name() string {
	return "kb.abstracttype"
}

func (r *ruleAbstractType) Handles() []int {
	return []int{KindType}
}

func (r *ruleAbstractType) Validate(tx *Transaction, c Concept, errs *errorutil.CompositeError) error {
	_, vid, ok := c.ID().parse()
	if !ok {
		return nil
	}

	tv, err := tx.typeVertex(vid)
	if err != nil {
		return err
	} else if !boolProp(tv.Props, PropIsAbstract) {
		return nil
	}

	instances, err := tx.instances(tv.ID)
	if err != nil {
		return err
	}

	if len(instances) > 0 {
		errs.Add(fmt.Errorf("Abstract type %v has %v instances",
			stringProp(tv.Props, PropSchemaLabel), len(instances)))
	}

	return nil
}

// Rule ruleRegex
// ==============

/*
ruleRegex checks that the value of an attribute matches the regex of its
type.
*/
type ruleRegex struct {
}

func (r *ruleRegex) Name() string {
	return "kb.regex"
}

func (r *ruleRegex) Handles() []int {
	return []int{KindThing}
}

func (r *ruleRegex) Validate(tx *Transaction, c Concept, errs *errorutil.CompositeError) error {
	a, ok := c.(*Attribute)
	if !ok {
		return nil
	}

	v, err := a.vertex()
	if err != nil {
		return err
	}

	tv, err := tx.typeVertex(uintProp(v.Props, PropThingTypeLabelID))
	if err != nil {
		return err
	}

	re := stringProp(tv.Props, PropRegex)
	value, isString := v.Props[PropValue].(string)

	if re == "" || !isString {
		return nil
	}

	match, err := regexp.MatchString("^(?:"+re+")$", value)
	if err != nil || !match {
		errs.Add(fmt.Errorf("Value %v of attribute %v does not match regex %v of type %v",
			value, c.ID(), re, stringProp(tv.Props, PropSchemaLabel)))
	}

	return nil
}

// Rule ruleAttributeOwnership
// ===========================

/*
ruleAttributeOwnership checks that the type of a thing declares the types of
all attributes which the thing owns.
*/
type ruleAttributeOwnership struct {
}

func (r *ruleAttributeOwnership) Name() string {
	return "kb.attributeownership"
}

func (r *ruleAttributeOwnership) Handles() []int {
	return []int{KindThing, KindRelation}
}

func (r *ruleAttributeOwnership) Validate(tx *Transaction, c Concept, errs *errorutil.CompositeError) error {
	v, err := ownerVertex(tx, c)
	if err != nil || v == nil {
		return err
	}

	ownerType := uintProp(v.Props, PropThingTypeLabelID)

	edges, err := tx.gt.Edges(v.ID, graph.DirectionOut, EdgeAttribute)
	if err != nil {
		return storageError(err)
	}

	for _, e := range edges {
		attributeType := uintProp(e.Props, PropRelationRoleValueLabelID)

		declared, _, err := tx.declaredAttributeType(ownerType, attributeType)
		if err != nil {
			return err
		}

		if !declared {
			errs.Add(fmt.Errorf("Type %v is not allowed to own attributes of type %v",
				tx.label(ownerType), tx.label(attributeType)))
		}
	}

	return nil
}

// Rule ruleKey
// ============

/*
ruleKey checks that a thing owns exactly one attribute of every key type of
its type and that no other instance of its type owns the same key.
*/
type ruleKey struct {
}

func (r *ruleKey) Name() string {
	return "kb.key"
}

func (r *ruleKey) Handles() []int {
	return []int{KindThing, KindRelation}
}

func (r *ruleKey) Validate(tx *Transaction, c Concept, errs *errorutil.CompositeError) error {
	var ownerType uint64
	var owned []*graph.Edge

	v, err := ownerVertex(tx, c)
	if err != nil {
		return err
	}

	if v != nil {
		ownerType = uintProp(v.Props, PropThingTypeLabelID)

		if owned, err = tx.gt.Edges(v.ID, graph.DirectionOut, EdgeAttribute); err != nil {
			return storageError(err)
		}

	} else if rel, ok := c.(*Relation); ok {
		s, err := rel.structure()
		if err != nil {
			return err
		}
		ownerType = s.typeID()
	}

	keys, err := tx.keyTypes(ownerType)
	if err != nil {
		return err
	}

	for _, key := range keys {
		var keyEdges []*graph.Edge

		for _, e := range owned {
			if uintProp(e.Props, PropRelationRoleValueLabelID) == key.attributeType {
				keyEdges = append(keyEdges, e)
			}
		}

		if len(keyEdges) != 1 {
			errs.Add(fmt.Errorf("Thing %v of type %v must own exactly one key of type %v (has %v)",
				c.ID(), tx.label(ownerType), tx.label(key.attributeType), len(keyEdges)))
			continue
		}

		// Keys are unique among all instances of the declaring type

		scope, err := tx.subTree(key.owner)
		if err != nil {
			return err
		}

		owners, err := tx.gt.Edges(keyEdges[0].In, graph.DirectionIn, EdgeAttribute)
		if err != nil {
			return storageError(err)
		}

		count := 0
		for _, e := range owners {
			if containsID(scope, uintProp(e.Props, PropRelationRoleOwnerLabelID)) {
				count++
			}
		}

		if count > 1 {
			errs.Add(fmt.Errorf("Key %v of type %v is owned by %v instances",
				keyEdges[0].In, tx.label(key.owner), count))
		}
	}

	return nil
}
