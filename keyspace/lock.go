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
	"sync"

	"go.uber.org/atomic"
)

/*
Lock is the reader/writer lock of a keyspace. Exclusive commits take the
writer side. Commits which do not need serialization take the reader side so
an exclusive commit waits until all running commits have acknowledged their
results.
*/
type Lock struct {
	mutex     *sync.RWMutex // Underlying lock
	exclusive *atomic.Int64 // Number of exclusive acquisitions
	shared    *atomic.Int64 // Number of shared acquisitions
}

/*
NewLock creates a new keyspace lock.
*/
func NewLock() *Lock {
	return &Lock{&sync.RWMutex{}, atomic.NewInt64(0), atomic.NewInt64(0)}
}

/*
Acquire takes the lock and returns a function which releases it.
*/
func (l *Lock) Acquire(exclusive bool) func() {
	if exclusive {
		l.mutex.Lock()
		l.exclusive.Inc()
		return l.mutex.Unlock
	}

	l.mutex.RLock()
	l.shared.Inc()
	return l.mutex.RUnlock
}

/*
Stats returns the number of exclusive and shared acquisitions.
*/
func (l *Lock) Stats() (int64, int64) {
	return l.exclusive.Load(), l.shared.Load()
}

/*
String returns a string representation of this lock.
*/
func (l *Lock) String() string {
	e, s := l.Stats()
	return fmt.Sprintf("Keyspace lock (exclusive: %v shared: %v)", e, s)
}
