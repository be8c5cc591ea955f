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
	"errors"
	"fmt"
	"testing"

	"devt.de/krotik/conceptdb/graph/graphstorage"
	"devt.de/krotik/conceptdb/graph/util"
)

func newTestManager() *Manager {
	return NewGraphManager(graphstorage.NewMemoryGraphStorage("mystorage"), "name", "rid")
}

func TestVertexOperations(t *testing.T) {
	gm := newTestManager()

	trans, err := NewGraphTrans(gm, true)
	if err != nil {
		t.Error(err)
		return
	}

	v1, err := trans.AddVertex("Person", map[string]interface{}{"name": "Bob", "age": int64(42)})
	if err != nil {
		t.Error(err)
		return
	}

	v2, _ := trans.AddVertex("Person", map[string]interface{}{"name": "Alice"})
	trans.AddVertex("Car", map[string]interface{}{"name": "Bob"})

	if res, _ := trans.VerticesByLabel("Person"); len(res) != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.VerticesByProperty("name", "Bob"); len(res) != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	if _, err := trans.VerticesByProperty("age", int64(42)); !errors.Is(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := trans.SetVertexProperty(v2, "name", "Carol"); err != nil {
		t.Error(err)
		return
	}

	if res, _ := trans.VerticesByProperty("name", "Alice"); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.VerticesByProperty("name", "Carol"); len(res) != 1 || res[0].ID != v2.ID {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.VertexIDsByProperty("name", "Carol"); len(res) != 1 || res[0] != v2.ID {
		t.Error("Unexpected result:", res)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	if err := trans.Commit(); !errors.Is(err, util.ErrClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	trans, _ = NewGraphTrans(gm, false)

	v, err := trans.Vertex(v1.ID)
	if err != nil || v.String() != fmt.Sprintf("Vertex %v Person {age:42 name:Bob}", v1.ID) {
		t.Error("Unexpected result:", v, err)
		return
	}

	if _, err := trans.AddVertex("Person", nil); !errors.Is(err, util.ErrReadOnly) {
		t.Error("Unexpected result:", err)
		return
	}

	if v, err := trans.Vertex(4711); v != nil || err != nil {
		t.Error("Unexpected result:", v, err)
		return
	}

	trans.Rollback()

	if trans.IsOpen() {
		t.Error("Transaction should be closed")
		return
	}
}

func TestInvalidData(t *testing.T) {
	gm := newTestManager()

	trans, _ := NewGraphTrans(gm, true)
	defer trans.Rollback()

	if _, err := trans.AddVertex("", nil); err == nil || err.Error() !=
		"GraphError: Invalid data (Vertex is missing a label)" {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := trans.AddVertex("a-b", nil); err == nil || err.Error() !=
		"GraphError: Invalid data (Vertex label a-b is not alphanumeric - can only contain [a-zA-Z0-9_])" {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := trans.AddEdge("knows", 1, 2, map[string]interface{}{"": 1}); err == nil || err.Error() !=
		"GraphError: Invalid data (Edge contains empty property key)" {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestEdgeOperations(t *testing.T) {
	gm := newTestManager()

	trans, _ := NewGraphTrans(gm, true)

	a, _ := trans.AddVertex("Person", nil)
	b, _ := trans.AddVertex("Person", nil)
	c, _ := trans.AddVertex("Person", nil)

	e1, err := trans.AddEdge("knows", a.ID, b.ID, map[string]interface{}{"rid": int64(5)})
	if err != nil {
		t.Error(err)
		return
	}

	trans.AddEdge("likes", a.ID, c.ID, nil)
	trans.AddEdge("knows", c.ID, a.ID, nil)
	self, _ := trans.AddEdge("knows", a.ID, a.ID, nil)

	if res, _ := trans.Edges(a.ID, DirectionOut); len(res) != 3 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.Edges(a.ID, DirectionOut, "knows"); len(res) != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.Edges(a.ID, DirectionIn, "knows"); len(res) != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.Edges(a.ID, DirectionBoth); len(res) != 4 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.EdgesByProperty("rid", int64(5)); len(res) != 1 || res[0].ID != e1.ID {
		t.Error("Unexpected result:", res)
		return
	}

	if e1.Other(a.ID) != b.ID || e1.Other(b.ID) != a.ID {
		t.Error("Unexpected result:", e1)
		return
	}

	if err := trans.RemoveEdge(self.ID); err != nil {
		t.Error(err)
		return
	}

	if res, _ := trans.Edges(a.ID, DirectionBoth); len(res) != 3 {
		t.Error("Unexpected result:", res)
		return
	}

	// Removing a vertex removes its edges

	if err := trans.RemoveVertex(a.ID); err != nil {
		t.Error(err)
		return
	}

	if res, _ := trans.Edges(b.ID, DirectionBoth); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.EdgesByProperty("rid", int64(5)); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans.VerticesByLabel("Person"); len(res) != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	if _, err := trans.AddEdge("knows", a.ID, b.ID, nil); !errors.Is(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}
}

func TestReadCommitted(t *testing.T) {
	gm := newTestManager()

	trans1, _ := NewGraphTrans(gm, true)
	trans2, _ := NewGraphTrans(gm, true)

	v, _ := trans1.AddVertex("Attr", map[string]interface{}{"name": "Bob"})
	trans1.Commit()

	// The vertex is not part of the snapshot of trans2

	if res, _ := trans2.Vertex(v.ID); res != nil {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans2.VerticesByProperty("name", "Bob"); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	latest, err := trans2.LatestVertex(v.ID)
	if err != nil || latest == nil || latest.Props["name"] != "Bob" {
		t.Error("Unexpected result:", latest, err)
		return
	}

	if res, _ := trans2.ReadCommittedVertex(v.ID); res == nil {
		t.Error("Unexpected result:", res)
		return
	}

	// Edges can be attached to vertices outside of the snapshot

	owner, _ := trans2.AddVertex("Person", nil)

	if _, err := trans2.AddEdge("has", owner.ID, v.ID, nil); err != nil {
		t.Error(err)
		return
	}

	trans2.SetVertexProperty(latest, "name", "Robert")

	if res, _ := trans2.ReadCommittedVertex(v.ID); res.Props["name"] != "Robert" {
		t.Error("Unexpected result:", res)
		return
	}

	if err := trans2.Commit(); err != nil {
		t.Error(err)
		return
	}

	trans3, _ := NewGraphTrans(gm, true)

	if res, _ := trans3.Edges(v.ID, DirectionIn, "has"); len(res) != 1 || res[0].Out != owner.ID {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := trans3.VerticesByProperty("name", "Robert"); len(res) != 1 {
		t.Error("Unexpected result:", res)
		return
	}

	trans3.RemoveVertex(v.ID)

	if res, _ := trans3.ReadCommittedVertex(v.ID); res != nil {
		t.Error("Unexpected result:", res)
		return
	}

	if res := trans3.String(); res != fmt.Sprintf("Transaction %v - Open: true Update: true Written: 0 Removed: 1", trans3.ID()) {
		t.Error("Unexpected result:", res)
		return
	}

	trans3.Rollback()
}
