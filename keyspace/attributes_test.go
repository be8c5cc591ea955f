/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package keyspace

import (
	"fmt"
	"io"
	"os"
	"testing"

	"devt.de/krotik/conceptdb/config"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	config.LoadDefaultConfig()
	config.ConfigureLogging(io.Discard)

	os.Exit(m.Run())
}

func TestAttributeTrackerNoContention(t *testing.T) {
	at := NewAttributeTracker(0, 0)

	at.AcknowledgeInsert("name:Bob", "tx1")
	at.AcknowledgeInsert("name:Alice", "tx2")

	if at.NeedsLock("tx1") || at.NeedsLock("tx2") {
		t.Error("Uncontended inserts should not lock")
		return
	}

	if res := at.PendingCount("name:Bob"); res != 1 {
		t.Error("Unexpected result:", res)
		return
	}

	at.AcknowledgeCommit("tx1", []string{"name:Bob"}, map[string]string{"name:Bob": "V1"})

	if res := at.PendingCount("name:Bob"); res != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, ok := at.CommittedCache().Get("name:Bob"); !ok || res != "V1" {
		t.Error("Unexpected result:", res, ok)
		return
	}

	// Unknown keys are ignored

	at.AcknowledgeDelete("name:Carol", "tx3")
	at.AcknowledgeRollback("tx4", []string{"name:Carol"})

	if res := at.ContendedInserts(); res != 0 {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestAttributeTrackerContention(t *testing.T) {
	at := NewAttributeTracker(0, 0)

	at.AcknowledgeInsert("name:Bob", "tx1")
	at.AcknowledgeInsert("name:Bob", "tx2")

	// Both transactions must lock - also the one which inserted first

	if !at.NeedsLock("tx1") || !at.NeedsLock("tx2") {
		t.Error("Contended inserts should lock")
		return
	}

	at.AcknowledgeInsert("name:Bob", "tx3")

	if res := at.PendingCount("name:Bob"); res != 3 {
		t.Error("Unexpected result:", res)
		return
	}

	at.AcknowledgeRollback("tx3", []string{"name:Bob"})

	if at.NeedsLock("tx3") {
		t.Error("Rolled back transaction should not be a candidate")
		return
	}

	at.AcknowledgeCommit("tx1", []string{"name:Bob"}, map[string]string{"name:Bob": "V1"})
	at.AcknowledgeCommit("tx2", []string{"name:Bob"}, nil)

	if res := at.PendingCount("name:Bob"); res != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if at.NeedsLock("tx1") || at.NeedsLock("tx2") {
		t.Error("Committed transactions should not be candidates")
		return
	}

	if res := at.ContendedInserts(); res != 2 {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestAttributeTrackerDelete(t *testing.T) {
	at := NewAttributeTracker(0, 0)

	at.AcknowledgeInsert("name:Bob", "tx1")
	at.AcknowledgeDelete("name:Bob", "tx1")
	at.AcknowledgeDelete("name:Bob", "tx1")

	if res := at.PendingCount("name:Bob"); res != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	at.AcknowledgeInsert("name:Bob", "tx2")

	if at.NeedsLock("tx2") {
		t.Error("Released inserts should not cause locking")
		return
	}
}

func TestCommittedCache(t *testing.T) {
	cc := NewCommittedCache(2, 0)

	cc.Put("a", "V1")
	cc.Put("b", "V2")
	cc.Put("c", "V3")

	if _, ok := cc.Get("c"); !ok {
		t.Error("Newest entry should be present")
		return
	}

	count := 0
	for _, k := range []string{"a", "b", "c"} {
		if _, ok := cc.Get(k); ok {
			count++
		}
	}

	if count != 2 {
		t.Error("Unexpected cache size:", count, cc)
		return
	}

	cc.Invalidate("c")

	if res, ok := cc.Get("c"); ok {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestAttributeTrackerConcurrent(t *testing.T) {
	at := NewAttributeTracker(0, 0)

	var g errgroup.Group

	for i := 0; i < 20; i++ {
		txID := fmt.Sprint("tx", i)

		g.Go(func() error {
			at.AcknowledgeInsert("name:Bob", txID)
			at.AcknowledgeInsert(fmt.Sprint("name:", txID), txID)
			return nil
		})
	}

	g.Wait()

	for i := 0; i < 20; i++ {
		txID := fmt.Sprint("tx", i)

		if !at.NeedsLock(txID) {
			t.Error("Transaction should lock:", txID)
			return
		}

		if res := at.PendingCount(fmt.Sprint("name:", txID)); res != 1 {
			t.Error("Unexpected result:", res)
			return
		}
	}

	for i := 0; i < 20; i++ {
		txID := fmt.Sprint("tx", i)

		g.Go(func() error {
			at.AcknowledgeCommit(txID, []string{"name:Bob", fmt.Sprint("name:", txID)}, nil)
			return nil
		})
	}

	g.Wait()

	if res := at.PendingCount("name:Bob"); res != 0 {
		t.Error("Unexpected result:", res)
		return
	}
}
