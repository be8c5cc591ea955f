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
	"sort"

	"devt.de/krotik/conceptdb/graph/graphstorage"
)

/*
Manager data structure
*/
type Manager struct {
	gs      graphstorage.Storage // Graph storage of this graph manager
	indexed map[string]bool      // Property keys which are indexed
}

/*
NewGraphManager returns a new Manager instance. Vertex and edge properties with
the given keys are indexed for exact match lookups.
*/
func NewGraphManager(gs graphstorage.Storage, indexedKeys ...string) *Manager {
	gm := &Manager{gs, make(map[string]bool)}

	for _, k := range indexedKeys {
		gm.indexed[k] = true
	}

	return gm
}

/*
Name returns the name of the underlying graph storage.
*/
func (gm *Manager) Name() string {
	return gm.gs.Name()
}

/*
IndexedKeys returns all indexed property keys.
*/
func (gm *Manager) IndexedKeys() []string {
	ret := make([]string, 0, len(gm.indexed))
	for k := range gm.indexed {
		ret = append(ret, k)
	}
	sort.Strings(ret)

	return ret
}

/*
isIndexed checks if a given property key is indexed.
*/
func (gm *Manager) isIndexed(key string) bool {
	return gm.indexed[key]
}

/*
Close closes the underlying graph storage.
*/
func (gm *Manager) Close() error {
	return gm.gs.Close()
}
