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
Package kb contains the knowledge model which is layered on top of the
property graph.

Schema

Entity types, relation types, attribute types and roles are stored as
vertices which carry a unique schema label. Types own shard vertices. New
instances are attached with an ISA edge to the current shard of their type.
When the number of instances of a type grows by a configurable threshold a new
shard is created.

Things

Entities, attributes and reified relations are vertices. Attribute vertices
are identified by an attribute index which is derived from the label of the
attribute type and the canonical form of the value. Binary relations start as
a single edge between two players and are converted into a vertex (reified)
as soon as they need more structure.

Transactions

A Session is the entry point for a keyspace. Transactions are opened from a
session and bound to a context. A transaction must only be used by one
goroutine at a time and it can only be committed with the context which
carries it. The commit of a transaction coordinates with all other
transactions of the keyspace through the shared state of the keyspace package.
*/
package kb

import (
	"devt.de/krotik/common/logutil"
)

/*
logger is the logger of this package
*/
var logger = logutil.GetLogger("conceptdb.kb")

/*
TxType is the type of a transaction
*/
type TxType int

/*
Transaction types
*/
const (
	READ TxType = iota
	WRITE
)

/*
String returns a string representation of a transaction type.
*/
func (t TxType) String() string {
	if t == WRITE {
		return "WRITE"
	}
	return "READ"
}

/*
Vertex labels
*/
const (
	LabelEntityType    = "ENTITY_TYPE"
	LabelRelationType  = "RELATION_TYPE"
	LabelAttributeType = "ATTRIBUTE_TYPE"
	LabelRole          = "ROLE"
	LabelShard         = "SHARD"
	LabelEntity        = "ENTITY"
	LabelRelation      = "RELATION"
	LabelAttribute     = "ATTRIBUTE"
)

/*
Edge labels
*/
const (
	EdgeSub        = "SUB"         // Type to its direct supertype
	EdgeShard      = "SHARD"       // Type to one of its shards
	EdgeIsa        = "ISA"         // Thing to the shard of its type
	EdgePlays      = "PLAYS"       // Type to a role it can play
	EdgeRelates    = "RELATES"     // Relation type to one of its roles
	EdgeHas        = "HAS"         // Type to an attribute type it can own
	EdgeAttribute  = "ATTRIBUTE"   // Thing to an attribute it owns
	EdgeRolePlayer = "ROLE_PLAYER" // Reified relation to a player (casting)
	EdgeRelation   = "RELATION"    // Edge backed relation between two players
)

/*
Property keys
*/
const (
	PropSchemaLabel              = "SCHEMA_LABEL"
	PropIndex                    = "INDEX"
	PropValue                    = "VALUE"
	PropDataType                 = "DATA_TYPE"
	PropIsAbstract               = "IS_ABSTRACT"
	PropIsKey                    = "IS_KEY"
	PropRegex                    = "REGEX"
	PropIsInferred               = "IS_INFERRED"
	PropTypeShardCheckpoint      = "TYPE_SHARD_CHECKPOINT"
	PropCurrentShard             = "CURRENT_SHARD"
	PropShardThreshold           = "SHARD_THRESHOLD"
	PropThingTypeLabelID         = "THING_TYPE_LABEL_ID"
	PropEdgeRelationID           = "EDGE_RELATION_ID"
	PropRoleLabelID              = "ROLE_LABEL_ID"
	PropRelationTypeLabelID      = "RELATION_TYPE_LABEL_ID"
	PropRelationRoleOwnerLabelID = "RELATION_ROLE_OWNER_LABEL_ID"
	PropRelationRoleValueLabelID = "RELATION_ROLE_VALUE_LABEL_ID"
)

/*
IndexedProperties are the property keys which are indexed in the graph.
*/
var IndexedProperties = []string{
	PropSchemaLabel,
	PropIndex,
	PropEdgeRelationID,
	PropRelationTypeLabelID,
}

// Property helpers
// ================

func uintProp(props map[string]interface{}, key string) uint64 {
	if v, ok := props[key].(uint64); ok {
		return v
	}
	return 0
}

func intProp(props map[string]interface{}, key string) int64 {
	if v, ok := props[key].(int64); ok {
		return v
	}
	return 0
}

func boolProp(props map[string]interface{}, key string) bool {
	if v, ok := props[key].(bool); ok {
		return v
	}
	return false
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
