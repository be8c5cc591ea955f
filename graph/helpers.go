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
	"encoding/binary"
	"fmt"

	"devt.de/krotik/common/stringutil"
	"devt.de/krotik/conceptdb/graph/util"
)

// Helper functions for the graph transaction
// ==========================================

/*
checkLabel checks if a given vertex or edge label is valid.
*/
func checkLabel(label string, name string) error {
	if label == "" {
		return &util.GraphError{Type: util.ErrInvalidData, Detail: name + " is missing a label"}
	}

	if !stringutil.IsAlphaNumeric(label) {
		return &util.GraphError{
			Type:   util.ErrInvalidData,
			Detail: fmt.Sprintf("%v label %v is not alphanumeric - can only contain [a-zA-Z0-9_]", name, label),
		}
	}

	return nil
}

/*
checkProps checks if the given properties can be written to the datastore.
*/
func checkProps(props map[string]interface{}, name string) error {
	for key := range props {
		if key == "" {
			return &util.GraphError{Type: util.ErrInvalidData, Detail: name + " contains empty property key"}
		}
	}
	return nil
}

// Key construction
// ================

func idBytes(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func idFromKeySuffix(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

func vertexKey(id uint64) []byte {
	return append([]byte{PrefixVertex}, idBytes(id)...)
}

func edgeKey(id uint64) []byte {
	return append([]byte{PrefixEdge}, idBytes(id)...)
}

/*
adjacencyPrefix returns the adjacency prefix of a vertex. The prefix covers all
edge labels if label is empty.
*/
func adjacencyPrefix(prefix byte, vid uint64, label string) []byte {
	key := append([]byte{prefix}, idBytes(vid)...)
	if label != "" {
		key = append(append(key, label...), 0x00)
	}
	return key
}

func adjacencyKey(prefix byte, vid uint64, label string, eid uint64) []byte {
	return append(adjacencyPrefix(prefix, vid, label), idBytes(eid)...)
}

func labelPrefix(label string) []byte {
	return append(append([]byte{PrefixLabel}, label...), 0x00)
}

func labelKey(label string, vid uint64) []byte {
	return append(labelPrefix(label), idBytes(vid)...)
}

/*
indexPrefix returns the prefix of all index entries for a property value.
Values are hashed so arbitrary values produce fixed length keys.
*/
func indexPrefix(prefix byte, key string, value interface{}) []byte {
	ret := append(append([]byte{prefix}, key...), 0x00)
	return append(ret, stringutil.MD5HexString(fmt.Sprint(value))...)
}

func indexKey(prefix byte, key string, value interface{}, id uint64) []byte {
	return append(indexPrefix(prefix, key, value), idBytes(id)...)
}

/*
sameValue checks if two property values are equal as far as the index is
concerned.
*/
func sameValue(v1 interface{}, v2 interface{}) bool {
	return v1 != nil && v2 != nil && fmt.Sprint(v1) == fmt.Sprint(v2)
}
