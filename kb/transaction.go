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
	"context"
	"fmt"
	"sort"

	"devt.de/krotik/conceptdb/graph"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

/*
Transaction is a unit of work on a keyspace. A transaction reads from a
snapshot of the keyspace and sees its own changes. A transaction must not be
used by more than one goroutine at a time.
*/
type Transaction struct {
	id      string       // Unique id of this transaction
	session *Session     // Session which opened this transaction
	kind    TxType       // Type of this transaction
	gt      graph.Trans  // Underlying graph transaction
	busy    *atomic.Bool // Flag if an operation is running
	open    *atomic.Bool // Flag if this transaction is open

	newAttributes      map[string]uint64    // Attribute index to vertices inserted by this transaction
	removedAttributes  map[string]bool      // Attribute indices removed by this transaction
	modifiedKeyIndices map[string]bool      // Attribute indices of key attributes whose ownership changed
	newSchema          map[string]uint64    // Schema labels created by this transaction
	delta              map[string]int64     // Instance count delta per type label
	modified           map[ConceptID]bool   // Concepts which need validation
	inferred           []ConceptID          // Inferred things created by this transaction
	persisted          map[ConceptID]bool   // Inferred things which should be kept
	reified            map[ConceptID]uint64 // Edge relation ids to vertices of reified relations
}

/*
newTransaction creates a new transaction object.
*/
func newTransaction(s *Session, kind TxType, gt graph.Trans) *Transaction {
	return &Transaction{
		id:                 uuid.New().String(),
		session:            s,
		kind:               kind,
		gt:                 gt,
		busy:               atomic.NewBool(false),
		open:               atomic.NewBool(true),
		newAttributes:      make(map[string]uint64),
		removedAttributes:  make(map[string]bool),
		modifiedKeyIndices: make(map[string]bool),
		newSchema:          make(map[string]uint64),
		delta:              make(map[string]int64),
		modified:           make(map[ConceptID]bool),
		persisted:          make(map[ConceptID]bool),
		reified:            make(map[ConceptID]uint64),
	}
}

/*
ID returns the unique id of this transaction.
*/
func (t *Transaction) ID() string {
	return t.id
}

/*
Type returns the type of this transaction.
*/
func (t *Transaction) Type() TxType {
	return t.kind
}

/*
IsOpen returns if this transaction is open.
*/
func (t *Transaction) IsOpen() bool {
	return t.open.Load()
}

/*
Session returns the session of this transaction.
*/
func (t *Transaction) Session() *Session {
	return t.session
}

/*
String returns a string representation of this transaction.
*/
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction %v (%v) - Open: %v", t.id, t.kind, t.IsOpen())
}

/*
StatisticsDelta returns the instance count changes of this transaction.
*/
func (t *Transaction) StatisticsDelta() map[string]int64 {
	ret := make(map[string]int64, len(t.delta))
	for k, v := range t.delta {
		if v != 0 {
			ret[k] = v
		}
	}
	return ret
}

/*
Close closes this transaction without committing. All changes are discarded.
Closing a closed transaction has no effect.
*/
func (t *Transaction) Close() error {
	if !t.busy.CompareAndSwap(false, true) {
		return &KBError{Type: ErrConcurrentUse, Detail: t.id}
	}
	defer t.busy.Store(false)

	if t.open.Load() {
		t.rollback()
	}

	return nil
}

/*
Persist marks an inferred thing so it is kept when the transaction commits.
*/
func (t *Transaction) Persist(th Thing) error {
	return run(t, true, func() error {
		t.persisted[th.ID()] = true
		return nil
	})
}

/*
Concept looks up a concept by its id.
*/
func (t *Transaction) Concept(id ConceptID) (Concept, error) {
	return call(t, false, func() (Concept, error) {
		return t.concept(id)
	})
}

/*
GetSchemaConcept looks up a type or role by its label.
*/
func (t *Transaction) GetSchemaConcept(label string) (Concept, error) {
	return call(t, false, func() (Concept, error) {
		return t.schemaConceptByLabel(label)
	})
}

/*
GetType looks up a type by its label.
*/
func (t *Transaction) GetType(label string) (Type, error) {
	return call(t, false, func() (Type, error) {
		c, err := t.schemaConceptByLabel(label)
		if err != nil {
			return nil, err
		}

		tt, ok := c.(Type)
		if !ok {
			return nil, &KBError{Type: ErrSchema, Detail: fmt.Sprintf("%v is not a type", label)}
		}

		return tt, nil
	})
}

// Guard
// =====

/*
checkContext checks that a context carries this transaction.
*/
func (t *Transaction) checkContext(ctx context.Context) error {
	if ctx == nil || ctx.Value(txContextKey{t.session}) != t {
		return &KBError{Type: ErrForeignContext, Detail: t.id}
	}
	return nil
}

/*
enter marks the start of an operation. The returned function marks its end.
*/
func (t *Transaction) enter(write bool) (func(), error) {
	if !t.busy.CompareAndSwap(false, true) {
		return nil, &KBError{Type: ErrConcurrentUse, Detail: t.id}
	}

	if !t.open.Load() {
		t.busy.Store(false)
		return nil, &KBError{Type: ErrTransactionClosed, Detail: t.id}
	}

	if write && t.kind != WRITE {
		t.busy.Store(false)
		return nil, &KBError{Type: ErrReadOnlyTransaction, Detail: t.id}
	}

	return func() { t.busy.Store(false) }, nil
}

/*
call runs an operation of a transaction which returns a value.
*/
func call[T any](t *Transaction, write bool, f func() (T, error)) (T, error) {
	var zero T

	leave, err := t.enter(write)
	if err != nil {
		return zero, err
	}
	defer leave()

	return f()
}

/*
run runs an operation of a transaction.
*/
func run(t *Transaction, write bool, f func() error) error {
	leave, err := t.enter(write)
	if err != nil {
		return err
	}
	defer leave()

	return f()
}

// Internal lookups
// ================

/*
thingVertex reads the vertex of a thing. Things which were committed after
the snapshot of this transaction was taken are read from the latest state.
*/
func (t *Transaction) thingVertex(vid uint64) (*graph.Vertex, error) {
	v, err := t.gt.Vertex(vid)
	if err == nil && v == nil {
		v, err = t.gt.ReadCommittedVertex(vid)
	}
	return v, storageError(err)
}

/*
typeVertex reads the vertex of a schema concept. Schema vertices are always
read in their latest state.
*/
func (t *Transaction) typeVertex(vid uint64) (*graph.Vertex, error) {
	v, err := t.gt.ReadCommittedVertex(vid)
	if err == nil && v == nil {
		err = &KBError{Type: ErrNotFound, Detail: fmt.Sprintf("Schema concept %v", vertexConceptID(vid))}
	}
	return v, storageError(err)
}

/*
concept builds the concept object of an id.
*/
func (t *Transaction) concept(id ConceptID) (Concept, error) {
	kind, eid, ok := id.parse()
	if !ok {
		return nil, &KBError{Type: ErrNotFound, Detail: fmt.Sprintf("Invalid concept id %v", id)}
	}

	if kind == 'E' {
		s, err := t.resolveRelation(id)
		if err != nil {
			return nil, err
		} else if s == nil {
			return nil, &KBError{Type: ErrNotFound, Detail: string(id)}
		}
		return &Relation{t, s.conceptID()}, nil
	}

	v, err := t.thingVertex(eid)
	if err != nil {
		return nil, err
	} else if v == nil {
		return nil, &KBError{Type: ErrNotFound, Detail: string(id)}
	}

	switch v.Label {
	case LabelEntityType, LabelRelationType, LabelAttributeType, LabelRole:
		return t.buildSchemaConcept(v), nil
	case LabelEntity, LabelAttribute, LabelRelation:
		return t.buildThing(v), nil
	}

	return nil, &KBError{Type: ErrNotFound, Detail: string(id)}
}

/*
buildThing builds the thing object of a thing vertex.
*/
func (t *Transaction) buildThing(v *graph.Vertex) Thing {
	switch v.Label {
	case LabelAttribute:
		return &Attribute{thing{t, v.ID}}
	case LabelRelation:
		if id := stringProp(v.Props, PropEdgeRelationID); id != "" {
			return &Relation{t, ConceptID(id)}
		}
		return &Relation{t, vertexConceptID(v.ID)}
	}
	return &Entity{thing{t, v.ID}}
}

/*
thingByID builds the thing object of a thing vertex id.
*/
func (t *Transaction) thingByID(vid uint64) (Thing, error) {
	v, err := t.thingVertex(vid)
	if err != nil {
		return nil, err
	} else if v == nil {
		return nil, &KBError{Type: ErrNotFound, Detail: string(vertexConceptID(vid))}
	}
	return t.buildThing(v), nil
}

/*
markModified records that a concept needs validation at commit time.
*/
func (t *Transaction) markModified(id ConceptID) {
	t.modified[id] = true
}

/*
newAttributeIndices returns all attribute indices inserted by this
transaction in a stable order.
*/
func (t *Transaction) newAttributeIndices() []string {
	ret := make([]string, 0, len(t.newAttributes))
	for index := range t.newAttributes {
		ret = append(ret, index)
	}
	sort.Strings(ret)

	return ret
}

/*
rollback discards all changes and releases all registrations of this
transaction in the shared keyspace state.
*/
func (t *Transaction) rollback() {
	t.open.Store(false)
	t.gt.Rollback()

	t.session.tracker.AcknowledgeRollback(t.id, t.newAttributeIndices())
	t.session.shards.AcknowledgeRollback(t.id)
}
