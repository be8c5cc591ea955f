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
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"time"
)

func init() {

	// Date values and nested structures can be stored as properties

	gob.Register(time.Time{})
	gob.Register(make(map[string]interface{}))
}

/*
Vertex models a vertex of the graph.
*/
type Vertex struct {
	ID    uint64                 // Id of the vertex
	Label string                 // Label of the vertex
	Props map[string]interface{} // Properties of the vertex
}

/*
Prop returns a property of this vertex or nil.
*/
func (v *Vertex) Prop(key string) interface{} {
	return v.Props[key]
}

/*
String returns a string representation of this vertex.
*/
func (v *Vertex) String() string {
	return fmt.Sprintf("Vertex %v %v %v", v.ID, v.Label, propsString(v.Props))
}

/*
Edge models a directed edge of the graph.
*/
type Edge struct {
	ID    uint64                 // Id of the edge
	Label string                 // Label of the edge
	Out   uint64                 // Vertex where the edge starts
	In    uint64                 // Vertex where the edge ends
	Props map[string]interface{} // Properties of the edge
}

/*
Prop returns a property of this edge or nil.
*/
func (e *Edge) Prop(key string) interface{} {
	return e.Props[key]
}

/*
Other returns the vertex at the other end of this edge.
*/
func (e *Edge) Other(vid uint64) uint64 {
	if e.Out == vid {
		return e.In
	}
	return e.Out
}

/*
CopyProps returns a copy of the properties of this edge.
*/
func (e *Edge) CopyProps() map[string]interface{} {
	return copyProps(e.Props)
}

/*
String returns a string representation of this edge.
*/
func (e *Edge) String() string {
	return fmt.Sprintf("Edge %v %v %v->%v %v", e.ID, e.Label, e.Out, e.In, propsString(e.Props))
}

/*
vertexRecord is the stored form of a vertex.
*/
type vertexRecord struct {
	Label string
	Props map[string]interface{}
}

/*
edgeRecord is the stored form of an edge.
*/
type edgeRecord struct {
	Label string
	Out   uint64
	In    uint64
	Props map[string]interface{}
}

func encodeRecord(rec interface{}) ([]byte, error) {
	var buf bytes.Buffer

	err := gob.NewEncoder(&buf).Encode(rec)

	return buf.Bytes(), err
}

func decodeVertex(id uint64, data []byte) (*Vertex, error) {
	var rec vertexRecord

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}

	if rec.Props == nil {
		rec.Props = make(map[string]interface{})
	}

	return &Vertex{id, rec.Label, rec.Props}, nil
}

func decodeEdge(id uint64, data []byte) (*Edge, error) {
	var rec edgeRecord

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}

	if rec.Props == nil {
		rec.Props = make(map[string]interface{})
	}

	return &Edge{id, rec.Label, rec.Out, rec.In, rec.Props}, nil
}

func copyProps(props map[string]interface{}) map[string]interface{} {
	ret := make(map[string]interface{}, len(props))
	for k, v := range props {
		ret[k] = v
	}
	return ret
}

func propsString(props map[string]interface{}) string {
	var buf bytes.Buffer

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(fmt.Sprintf("%v:%v", k, props[k]))
	}
	buf.WriteString("}")

	return buf.String()
}
