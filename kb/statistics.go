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
	"bytes"
	"fmt"
	"sort"
	"sync"

	"devt.de/krotik/conceptdb/graph"
)

/*
KeyspaceStatistics holds the number of committed instances per type label.
*/
type KeyspaceStatistics struct {
	counts map[string]int64 // Instance counts per type label
	mutex  *sync.RWMutex    // Mutex to protect counts
}

/*
newKeyspaceStatistics creates a new statistics object.
*/
func newKeyspaceStatistics() *KeyspaceStatistics {
	return &KeyspaceStatistics{make(map[string]int64), &sync.RWMutex{}}
}

/*
Count returns the number of committed instances of a type.
*/
func (ks *KeyspaceStatistics) Count(label string) int64 {
	ks.mutex.RLock()
	defer ks.mutex.RUnlock()

	return ks.counts[label]
}

/*
commit merges the delta of a committed transaction.
*/
func (ks *KeyspaceStatistics) commit(delta map[string]int64) {
	ks.mutex.Lock()
	defer ks.mutex.Unlock()

	for label, d := range delta {
		ks.counts[label] += d

		if ks.counts[label] <= 0 {
			delete(ks.counts, label)
		}
	}
}

/*
String returns a string representation of the statistics.
*/
func (ks *KeyspaceStatistics) String() string {
	var buf bytes.Buffer

	ks.mutex.RLock()
	defer ks.mutex.RUnlock()

	labels := make([]string, 0, len(ks.counts))
	for l := range ks.counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	buf.WriteString("KeyspaceStatistics:\n")
	for _, l := range labels {
		buf.WriteString(fmt.Sprintf("    %v: %v\n", l, ks.counts[l]))
	}

	return buf.String()
}

/*
load counts all committed instances in the graph.
*/
func (ks *KeyspaceStatistics) load(gt graph.Trans) error {
	labels := make(map[uint64]string)

	typeLabel := func(id uint64) (string, error) {
		if l, ok := labels[id]; ok {
			return l, nil
		}

		v, err := gt.Vertex(id)
		if err != nil || v == nil {
			return "", err
		}

		labels[id] = stringProp(v.Props, PropSchemaLabel)

		return labels[id], nil
	}

	counts := make(map[string]int64)

	for _, vlabel := range []string{LabelEntity, LabelRelation, LabelAttribute} {
		things, err := gt.VerticesByLabel(vlabel)
		if err != nil {
			return err
		}

		for _, v := range things {
			l, err := typeLabel(uintProp(v.Props, PropThingTypeLabelID))
			if err != nil {
				return err
			} else if l != "" {
				counts[l]++
			}
		}
	}

	relTypes, err := gt.VerticesByLabel(LabelRelationType)
	if err != nil {
		return err
	}

	for _, rt := range relTypes {
		edges, err := gt.EdgesByProperty(PropRelationTypeLabelID, rt.ID)
		if err != nil {
			return err
		}

		for _, e := range edges {
			if e.Label == EdgeRelation {
				counts[stringProp(rt.Props, PropSchemaLabel)]++
			}
		}
	}

	ks.mutex.Lock()
	ks.counts = counts
	ks.mutex.Unlock()

	return nil
}
