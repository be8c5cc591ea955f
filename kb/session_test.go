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
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"devt.de/krotik/conceptdb/config"
	"devt.de/krotik/conceptdb/graph/graphstorage"
	"github.com/stretchr/testify/require"
)

func TestStatistics(t *testing.T) {
	s := newTestSession(t, 100)
	defer s.Close()

	commitTestSchema(t, s)

	tx := openTx(t, s, WRITE)
	ts := loadTestSchema(t, tx)

	p1, _ := ts.person.Create()
	p2, _ := ts.person.Create()
	n, _ := ts.name.Put("Anna")
	p1.Has(n)

	ts.marriage.CreateBinary(ts.spouse1, p1, ts.spouse2, p2)

	if res := fmt.Sprint(tx.StatisticsDelta()); res != "map[marriage:1 name:1 person:2]" {
		t.Error("Unexpected result:", res)
		return
	}

	if err := commitTx(tx); err != nil {
		t.Error(err)
		return
	}

	if res := s.Statistics().String(); res != `KeyspaceStatistics:
    marriage: 1
    name: 1
    person: 2
` {
		t.Error("Unexpected result:", res)
		return
	}

	// Statistics are recounted from the graph

	ks := newKeyspaceStatistics()

	tx = openTx(t, s, READ)
	defer tx.Close()

	if err := ks.load(tx.gt); err != nil {
		t.Error(err)
		return
	}

	if ks.String() != s.Statistics().String() {
		t.Error("Unexpected result:", ks)
		return
	}
}

func TestDataTypes(t *testing.T) {
	s := newTestSession(t, 100)
	defer s.Close()

	tx := openTx(t, s, WRITE)

	dbl, _ := tx.PutAttributeType("weight", DataTypeDouble)
	bln, _ := tx.PutAttributeType("active", DataTypeBoolean)
	dat, _ := tx.PutAttributeType("born", DataTypeDate)
	lng, _ := tx.PutAttributeType("size", DataTypeLong)

	d, _ := dbl.Put(1.5)
	b, _ := bln.Put(true)
	l1, _ := lng.Put(5)
	l2, _ := lng.Put(int64(5))

	if l1.ID() != l2.ID() {
		t.Error("Same values should give the same attribute:", l1, l2)
		return
	}

	loc := time.FixedZone("test", 3600)
	d1, _ := dat.Put(time.Date(2020, 1, 1, 13, 0, 0, 0, loc))
	d2, _ := dat.Put(time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC))

	if d1.ID() != d2.ID() {
		t.Error("Same points in time should give the same attribute:", d1, d2)
		return
	}

	for _, a := range []*Attribute{d, b, l1, d1} {
		if res, err := a.Index(); err != nil {
			t.Error(err)
			return
		} else if res != map[*Attribute]string{
			d:  "weight:1.5",
			b:  "active:true",
			l1: "size:5",
			d1: "born:2020-01-01T12:00:00Z",
		}[a] {
			t.Error("Unexpected result:", res)
			return
		}
	}

	if _, err := bln.Put("yes"); !errors.Is(err, ErrInvalidValue) ||
		err.Error() != "KBError: Invalid value (Value yes (string) does not match data type boolean)" {
		t.Error("Unexpected result:", err)
		return
	}

	if err := commitTx(tx); err != nil {
		t.Error(err)
		return
	}

	tx = openTx(t, s, READ)
	defer tx.Close()

	at, _ := tx.GetType("weight")
	a, _ := at.(*AttributeType).Attribute(1.5)

	if res, _ := a.Value(); res != 1.5 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := a.Type(); res.(*AttributeType).Label() != "weight" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestDiskSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kb")

	gs, err := graphstorage.NewDiskGraphStorage(dir, false)
	require.NoError(t, err)

	s, err := NewSession(gs, &SessionOptions{3, 100, 0})
	require.NoError(t, err)

	commitTestSchema(t, s)

	tx := openTx(t, s, WRITE)
	ts := loadTestSchema(t, tx)

	var persons []Thing
	for i := 0; i < 4; i++ {
		p, err := ts.person.Create()
		require.NoError(t, err)
		persons = append(persons, p)
	}

	n, err := ts.name.Put("Bob")
	require.NoError(t, err)
	require.NoError(t, persons[0].Has(n))

	rel, err := ts.marriage.CreateBinary(ts.spouse1, persons[0], ts.spouse2, persons[1])
	require.NoError(t, err)
	require.NoError(t, rel.Assign(ts.witness, persons[2]))

	require.NoError(t, commitTx(tx))
	require.NoError(t, s.Close())

	// Reopen the keyspace

	gs, err = graphstorage.NewDiskGraphStorage(dir, false)
	require.NoError(t, err)

	s, err = NewSession(gs, nil)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, int64(4), s.Statistics().Count("person"))
	require.Equal(t, int64(1), s.Statistics().Count("name"))
	require.Equal(t, int64(1), s.Statistics().Count("marriage"))

	tx = openTx(t, s, WRITE)
	ts = loadTestSchema(t, tx)

	count, err := ts.person.ShardCount()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	bob, err := ts.name.Attribute("Bob")
	require.NoError(t, err)
	require.NotNil(t, bob)

	owners, err := bob.Owners()
	require.NoError(t, err)
	require.Len(t, owners, 1)
	require.Equal(t, persons[0].ID(), owners[0].ID())

	r, err := tx.Relation(rel.ID())
	require.NoError(t, err)

	players, err := r.RolePlayers()
	require.NoError(t, err)
	require.Len(t, players, 3)

	// New things do not reuse ids

	p, err := ts.person.Create()
	require.NoError(t, err)

	for _, existing := range persons {
		require.NotEqual(t, existing.ID(), p.ID())
	}

	require.NoError(t, commitTx(tx))
	require.Equal(t, int64(5), s.Statistics().Count("person"))
}

func TestManager(t *testing.T) {
	old := config.Config
	defer func() {
		config.Config = old
	}()

	config.Config = make(map[string]interface{})
	for k, v := range config.DefaultConfig {
		config.Config[k] = v
	}
	config.Config[config.MemoryOnlyStorage] = true
	config.Config[config.TypeShardThreshold] = 5

	m := NewManager()

	s1, err := m.Session("main")
	if err != nil {
		t.Error(err)
		return
	}

	if s2, _ := m.Session("main"); s1 != s2 {
		t.Error("Unexpected result:", s2)
		return
	}

	if _, err := m.Session("my keyspace"); !errors.Is(err, ErrSchema) {
		t.Error("Unexpected result:", err)
		return
	}

	m.Session("test")

	if res := fmt.Sprint(m.Keyspaces()); res != "[main test]" {
		t.Error("Unexpected result:", res)
		return
	}

	if s1.opts.ShardThreshold != 5 || s1.Name() != "main" {
		t.Error("Unexpected result:", s1.opts, s1.Name())
		return
	}

	if err := m.Close(); err != nil {
		t.Error(err)
		return
	}

	if _, _, err := s1.Transaction(context.Background(), READ); !errors.Is(err, ErrSessionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if res := m.Keyspaces(); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}
}
