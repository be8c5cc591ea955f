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
	"sync"
	"testing"
	"time"
)

func TestShardCoordinator(t *testing.T) {
	sc := NewShardCoordinator()

	sc.AckShardRequest("person", "tx1")

	if sc.RequiresLock("tx1") {
		t.Error("Single request should not lock")
		return
	}

	sc.AckShardRequest("company", "tx2")

	if sc.RequiresLock("tx2") {
		t.Error("Requests for different types should not lock")
		return
	}

	sc.AckShardRequest("person", "tx3")

	if !sc.RequiresLock("tx1") || !sc.RequiresLock("tx3") || sc.RequiresLock("tx2") {
		t.Error("Racing requests should lock")
		return
	}

	if res := sc.RequestCount("person"); res != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	sc.AckShardCommit("person", "tx1")

	if res := sc.RequestCount("person"); res != 1 {
		t.Error("Unexpected result:", res)
		return
	}

	sc.AcknowledgeCommit([]string{"person"}, "tx3")
	sc.AcknowledgeRollback("tx2")

	if res := sc.RequestCount("person") + sc.RequestCount("company"); res != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if sc.RequiresLock("tx3") {
		t.Error("Committed transaction should not lock")
		return
	}
}

func TestCheckpoints(t *testing.T) {
	sc := NewShardCoordinator()

	if _, ok := sc.Checkpoint("person"); ok {
		t.Error("Checkpoint should not exist")
		return
	}

	if !sc.ClaimCheckpoint("person", 100, 0, 100) {
		t.Error("First claim should succeed")
		return
	}

	if sc.ClaimCheckpoint("person", 101, 0, 100) {
		t.Error("Second claim should fail")
		return
	}

	if res, _ := sc.Checkpoint("person"); res != 100 {
		t.Error("Unexpected result:", res)
		return
	}

	// The floor counts as well

	if sc.ClaimCheckpoint("company", 150, 100, 100) {
		t.Error("Claim below floor should fail")
		return
	}

	sc.UpdateCheckpoint("person", 50)

	if !sc.ClaimCheckpoint("person", 150, 0, 100) {
		t.Error("Claim should succeed")
		return
	}
}

func TestConcurrentClaim(t *testing.T) {
	sc := NewShardCoordinator()

	var wg sync.WaitGroup
	var mutex sync.Mutex

	claims := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sc.ClaimCheckpoint("person", 100, 0, 100) {
				mutex.Lock()
				claims++
				mutex.Unlock()
			}
		}()
	}

	wg.Wait()

	if claims != 1 {
		t.Error("Unexpected result:", claims)
		return
	}
}

func TestLock(t *testing.T) {
	l := NewLock()

	release := l.Acquire(false)
	release2 := l.Acquire(false)

	acquired := make(chan bool)

	go func() {
		release := l.Acquire(true)
		acquired <- true
		release()
	}()

	select {
	case <-acquired:
		t.Error("Exclusive lock should wait for shared holders")
		return
	case <-time.After(50 * time.Millisecond):
	}

	release()
	release2()

	<-acquired

	if res := l.String(); res != "Keyspace lock (exclusive: 1 shared: 2)" {
		t.Error("Unexpected result:", res)
		return
	}
}
