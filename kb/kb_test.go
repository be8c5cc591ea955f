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
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"devt.de/krotik/conceptdb/config"
	"devt.de/krotik/conceptdb/graph/graphstorage"
)

func TestMain(m *testing.M) {
	config.LoadDefaultConfig()
	config.ConfigureLogging(io.Discard)

	os.Exit(m.Run())
}

/*
newTestSession creates a session on a memory storage.
*/
func newTestSession(t *testing.T, threshold int64) *Session {
	s, err := NewSession(graphstorage.NewMemoryGraphStorage(t.Name()),
		&SessionOptions{threshold, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

/*
txContexts holds the contexts of all transactions which were opened by openTx.
*/
var txContexts sync.Map

/*
openTx opens a transaction on a fresh context.
*/
func openTx(t *testing.T, s *Session, kind TxType) *Transaction {
	ctx, tx, err := s.Transaction(context.Background(), kind)
	if err != nil {
		t.Fatal(err)
	}
	txContexts.Store(tx, ctx)
	return tx
}

/*
commitTx commits a transaction which was opened by openTx.
*/
func commitTx(tx *Transaction) error {
	ctx, _ := txContexts.Load(tx)
	c, _ := ctx.(context.Context)
	return tx.Commit(c)
}

/*
testSchema is a small schema which is used by most tests.
*/
type testSchema struct {
	person   *EntityType
	company  *EntityType
	name     *AttributeType
	email    *AttributeType
	age      *AttributeType
	marriage *RelationType
	employ   *RelationType
	spouse1  *Role
	spouse2  *Role
	witness  *Role
	employer *Role
	employee *Role
}

/*
putTestSchema creates the test schema in a transaction.
*/
func putTestSchema(t *testing.T, tx *Transaction) *testSchema {
	var err error

	ts := &testSchema{}

	check := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}

	ts.person, err = tx.PutEntityType("person")
	ts.company, _ = tx.PutEntityType("company")
	ts.name, _ = tx.PutAttributeType("name", DataTypeString)
	ts.email, _ = tx.PutAttributeType("email", DataTypeString)
	ts.age, _ = tx.PutAttributeType("age", DataTypeLong)
	ts.marriage, _ = tx.PutRelationType("marriage")
	ts.employ, _ = tx.PutRelationType("employment")
	ts.spouse1, _ = tx.PutRole("spouse1")
	ts.spouse2, _ = tx.PutRole("spouse2")
	ts.witness, _ = tx.PutRole("witness")
	ts.employer, _ = tx.PutRole("employer")
	ts.employee, _ = tx.PutRole("employee")

	check(ts.marriage.Relates(ts.spouse1))
	check(ts.marriage.Relates(ts.spouse2))
	check(ts.marriage.Relates(ts.witness))
	check(ts.employ.Relates(ts.employer))
	check(ts.employ.Relates(ts.employee))

	check(ts.person.Plays(ts.spouse1))
	check(ts.person.Plays(ts.spouse2))
	check(ts.person.Plays(ts.witness))
	check(ts.person.Plays(ts.employee))
	check(ts.company.Plays(ts.employer))

	check(ts.person.Has(ts.name))
	check(ts.person.Has(ts.age))
	check(ts.company.Has(ts.name))
	check(ts.marriage.Has(ts.age))

	// Names can play roles as well

	check(ts.name.Plays(ts.witness))

	if err != nil {
		t.Fatal(err)
	}

	return ts
}

/*
commitTestSchema creates the test schema and commits it.
*/
func commitTestSchema(t *testing.T, s *Session) {
	tx := openTx(t, s, WRITE)
	putTestSchema(t, tx)

	if err := commitTx(tx); err != nil {
		t.Fatal(err)
	}
}

/*
loadTestSchema looks up the test schema in a transaction.
*/
func loadTestSchema(t *testing.T, tx *Transaction) *testSchema {
	ts := &testSchema{}

	get := func(label string) Concept {
		c, err := tx.GetSchemaConcept(label)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}

	ts.person = get("person").(*EntityType)
	ts.company = get("company").(*EntityType)
	ts.name = get("name").(*AttributeType)
	ts.email = get("email").(*AttributeType)
	ts.age = get("age").(*AttributeType)
	ts.marriage = get("marriage").(*RelationType)
	ts.employ = get("employment").(*RelationType)
	ts.spouse1 = get("spouse1").(*Role)
	ts.spouse2 = get("spouse2").(*Role)
	ts.witness = get("witness").(*Role)
	ts.employer = get("employer").(*Role)
	ts.employee = get("employee").(*Role)

	return ts
}

func TestSchema(t *testing.T) {
	s := newTestSession(t, 100)
	defer s.Close()

	tx := openTx(t, s, WRITE)

	person, err := tx.PutEntityType("person")
	if err != nil {
		t.Error(err)
		return
	}

	person2, _ := tx.PutEntityType("person")

	if person.ID() != person2.ID() || person.Label() != "person" {
		t.Error("Unexpected result:", person, person2)
		return
	}

	if _, err := tx.PutRelationType("person"); !errors.Is(err, ErrSchema) ||
		err.Error() != "KBError: Invalid schema operation (Label person is already used by a ENTITY_TYPE)" {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.PutEntityType("my person"); !errors.Is(err, ErrSchema) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.PutAttributeType("name", DataType("text")); !errors.Is(err, ErrSchema) {
		t.Error("Unexpected result:", err)
		return
	}

	name, _ := tx.PutAttributeType("name", DataTypeString)

	if _, err := tx.PutAttributeType("name", DataTypeLong); !errors.Is(err, ErrSchema) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := name.SetRegex("[a-z"); !errors.Is(err, ErrSchema) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.GetType("animal"); !errors.Is(err, ErrNotFound) {
		t.Error("Unexpected result:", err)
		return
	}

	role, _ := tx.PutRole("owner")

	if _, err := tx.GetType("owner"); !errors.Is(err, ErrSchema) {
		t.Error("Unexpected result:", err)
		return
	}

	if c, _ := tx.GetSchemaConcept("owner"); c.ID() != role.ID() {
		t.Error("Unexpected result:", c)
		return
	}

	if res, _ := person.ShardCount(); res != 1 {
		t.Error("Every type should start with one shard:", res)
		return
	}

	if err := person.SetShardThreshold(0); !errors.Is(err, ErrSchema) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := commitTx(tx); err != nil {
		t.Error(err)
		return
	}

	tx = openTx(t, s, READ)
	defer tx.Close()

	tt, err := tx.GetType("person")
	if err != nil || tt.ID() != person.ID() {
		t.Error("Unexpected result:", tt, err)
		return
	}

	at, _ := tx.GetType("name")

	if res, _ := at.(*AttributeType).DataType(); res != DataTypeString {
		t.Error("Unexpected result:", res)
		return
	}

	if c, err := tx.Concept(person.ID()); err != nil || c.(*EntityType).Label() != "person" {
		t.Error("Unexpected result:", c, err)
		return
	}

	if _, err := tx.Concept("X1"); !errors.Is(err, ErrNotFound) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.Concept("V9999"); !errors.Is(err, ErrNotFound) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestTransactionStates(t *testing.T) {
	s := newTestSession(t, 100)
	defer s.Close()

	ctx, tx, err := s.Transaction(context.Background(), READ)
	if err != nil {
		t.Error(err)
		return
	}

	if tx.Type() != READ || !tx.IsOpen() || s.CurrentTransaction(ctx) != tx {
		t.Error("Unexpected result:", tx)
		return
	}

	if !strings.HasPrefix(tx.String(), "Transaction "+tx.ID()+" (READ) - Open: true") {
		t.Error("Unexpected result:", tx)
		return
	}

	// Only one open transaction per context

	if _, _, err := s.Transaction(ctx, WRITE); !errors.Is(err, ErrTransactionAlreadyOpen) {
		t.Error("Unexpected result:", err)
		return
	}

	// Writes are not allowed in a read transaction

	if _, err := tx.PutEntityType("person"); !errors.Is(err, ErrReadOnlyTransaction) {
		t.Error("Unexpected result:", err)
		return
	}

	// A transaction must not be used concurrently

	tx.busy.Store(true)

	if _, err := tx.GetType("person"); !errors.Is(err, ErrConcurrentUse) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := tx.Commit(ctx); !errors.Is(err, ErrConcurrentUse) {
		t.Error("Unexpected result:", err)
		return
	}

	tx.busy.Store(false)

	// A transaction can only be committed with its own context

	if err := tx.Commit(context.Background()); !errors.Is(err, ErrForeignContext) {
		t.Error("Unexpected result:", err)
		return
	}

	otherCtx, other, err := s.Transaction(context.Background(), READ)
	if err != nil {
		t.Error(err)
		return
	}

	if err := tx.Commit(otherCtx); !errors.Is(err, ErrForeignContext) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := other.Commit(ctx); !errors.Is(err, ErrForeignContext) {
		t.Error("Unexpected result:", err)
		return
	}

	other.Close()

	errs := make(chan error)
	go func() {
		errs <- tx.Commit(context.TODO())
	}()

	if err := <-errs; !errors.Is(err, ErrForeignContext) || !tx.IsOpen() {
		t.Error("Unexpected result:", err)
		return
	}

	// Committing a read transaction is an error and closes it

	if err := tx.Commit(ctx); !errors.Is(err, ErrReadOnlyTransaction) {
		t.Error("Unexpected result:", err)
		return
	}

	if tx.IsOpen() || s.CurrentTransaction(ctx) != nil {
		t.Error("Transaction should be closed")
		return
	}

	// Committing or closing a closed transaction has no effect

	if err := tx.Commit(ctx); err != nil {
		t.Error(err)
		return
	}

	if err := tx.Close(); err != nil {
		t.Error(err)
		return
	}

	if _, err := tx.GetType("person"); !errors.Is(err, ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	// The context can be used again once its transaction is closed

	_, tx2, err := s.Transaction(ctx, WRITE)
	if err != nil {
		t.Error(err)
		return
	}

	tx2.PutEntityType("person")

	if err := tx2.Close(); err != nil {
		t.Error(err)
		return
	}

	tx3 := openTx(t, s, READ)
	defer tx3.Close()

	if _, err := tx3.GetType("person"); !errors.Is(err, ErrNotFound) {
		t.Error("Closed transaction should not persist anything:", err)
		return
	}

	s.Close()

	if _, _, err := s.Transaction(context.Background(), READ); !errors.Is(err, ErrSessionClosed) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestInferredThings(t *testing.T) {
	s := newTestSession(t, 100)
	defer s.Close()

	commitTestSchema(t, s)

	tx := openTx(t, s, WRITE)
	ts := loadTestSchema(t, tx)

	p1, _ := ts.person.Create()
	p2, _ := ts.person.CreateInferred()
	p3, _ := ts.person.CreateInferred()

	if res, _ := p2.IsInferred(); !res {
		t.Error("Unexpected result:", res)
		return
	}

	n, _ := ts.name.PutInferred("Inferred")

	rel, err := ts.marriage.CreateBinaryInferred(ts.spouse1, p1, ts.spouse2, p3)
	if err != nil {
		t.Error(err)
		return
	}

	if err := tx.Persist(p3); err != nil {
		t.Error(err)
		return
	}

	if err := commitTx(tx); err != nil {
		t.Error(err)
		return
	}

	tx = openTx(t, s, READ)
	defer tx.Close()

	for _, id := range []ConceptID{p2.ID(), n.ID(), rel.ID()} {
		if _, err := tx.Concept(id); !errors.Is(err, ErrNotFound) {
			t.Error("Inferred concept should have been removed:", id, err)
			return
		}
	}

	if _, err := tx.Concept(p3.ID()); err != nil {
		t.Error(err)
		return
	}

	if res := s.Statistics().Count("person"); res != 2 {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestInferredThingsMadeExplicit(t *testing.T) {
	s := newTestSession(t, 100)
	defer s.Close()

	commitTestSchema(t, s)

	tx := openTx(t, s, WRITE)
	ts := loadTestSchema(t, tx)

	inferred, _ := ts.name.PutInferred("Carl")

	a, err := ts.name.Put("Carl")
	if err != nil {
		t.Error(err)
		return
	}

	if a.ID() != inferred.ID() {
		t.Error("Unexpected result:", a.ID(), inferred.ID())
		return
	}

	if res, _ := a.IsInferred(); res {
		t.Error("Explicit put should clear the inferred flag")
		return
	}

	p, _ := ts.person.Create()
	if err := p.Has(a); err != nil {
		t.Error(err)
		return
	}

	// Explicit use of inferred things keeps them

	owner, _ := ts.person.CreateInferred()
	age, _ := ts.age.PutInferred(30)
	if err := owner.Has(age); err != nil {
		t.Error(err)
		return
	}

	p2, _ := ts.person.CreateInferred()
	rel, _ := ts.marriage.CreateBinaryInferred(ts.spouse1, p, ts.spouse2, owner)
	if err := rel.Assign(ts.witness, p2); err != nil {
		t.Error(err)
		return
	}

	if err := commitTx(tx); err != nil {
		t.Error(err)
		return
	}

	tx = openTx(t, s, READ)
	defer tx.Close()
	ts = loadTestSchema(t, tx)

	res, err := ts.name.Attribute("Carl")
	if err != nil || res == nil || res.ID() != a.ID() {
		t.Error("Unexpected result:", res, err)
		return
	}

	p = (mustConcept(t, tx, p.ID())).(*Entity)
	if attrs, _ := p.Attributes(); len(attrs) != 1 || attrs[0].ID() != a.ID() {
		t.Error("Unexpected result:", attrs)
		return
	}

	for _, id := range []ConceptID{owner.ID(), age.ID(), p2.ID(), rel.ID()} {
		c := mustConcept(t, tx, id)
		if res, _ := c.(Thing).IsInferred(); res {
			t.Error("Concept should be explicit:", id)
			return
		}
	}

	if res := s.Statistics().Count("person"); res != 3 {
		t.Error("Unexpected result:", res)
		return
	}
}

/*
mustConcept looks up a concept and fails the test if it does not exist.
*/
func mustConcept(t *testing.T, tx *Transaction, id ConceptID) Concept {
	c, err := tx.Concept(id)
	if err != nil {
		t.Fatal(id, err)
	}
	return c
}
