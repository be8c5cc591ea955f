/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package keyspace contains the shared coordination state of a keyspace.

All transactions of a keyspace share one instance of each of the following
objects. They are used at commit time to decide if a transaction needs to
serialize its commit.

AttributeTracker

Tracks attribute indices which were inserted by open transactions and keeps a
bounded cache of recently committed attributes. Transactions which insert the
same attribute index concurrently become lock candidates.

ShardCoordinator

Tracks which transactions are about to create a new shard for a type. Racing
transactions become lock candidates. Soft checkpoints suppress redundant
shard creation.

Lock

The keyspace lock. Commits which need serialization take the exclusive side,
all other commits take the shared side.

All bookkeeping is advisory: operations never fail on unknown keys or ids.
*/
package keyspace

import "devt.de/krotik/common/logutil"

/*
logger is the logger of this package
*/
var logger = logutil.GetLogger("conceptdb.keyspace")
