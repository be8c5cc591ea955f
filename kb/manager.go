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
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/stringutil"
	"devt.de/krotik/conceptdb/config"
	"devt.de/krotik/conceptdb/graph/graphstorage"
)

/*
Manager keeps one session per keyspace. Sessions are configured from the
config package.
*/
type Manager struct {
	sessions map[string]*Session // Open sessions
	mutex    *sync.Mutex         // Mutex to protect sessions
}

/*
NewManager creates a new keyspace manager. The default configuration is
loaded if no configuration was loaded before.
*/
func NewManager() *Manager {
	if config.Config == nil {
		config.LoadDefaultConfig()
	}

	return &Manager{make(map[string]*Session), &sync.Mutex{}}
}

/*
Session returns the session of a keyspace. The keyspace is opened if
necessary.
*/
func (m *Manager) Session(name string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if s, ok := m.sessions[name]; ok {
		return s, nil
	}

	if name == "" || !stringutil.IsAlphaNumeric(name) {
		return nil, &KBError{Type: ErrSchema, Detail: fmt.Sprintf("Invalid keyspace name %q", name)}
	}

	var gs graphstorage.Storage
	var err error

	if config.Bool(config.MemoryOnlyStorage) {
		gs = graphstorage.NewMemoryGraphStorage(name)
	} else {
		loc := filepath.Join(config.Str(config.LocationDatastore), name)

		if gs, err = graphstorage.NewDiskGraphStorage(loc, config.Bool(config.EnableSyncWrites)); err != nil {
			return nil, storageError(err)
		}
	}

	s, err := NewSession(gs, &SessionOptions{
		ShardThreshold:     config.Int(config.TypeShardThreshold),
		CacheMaxSize:       uint64(config.Int(config.CommittedAttributeCacheMaxSize)),
		CacheMaxAgeSeconds: config.Int(config.CommittedAttributeCacheMaxAgeSeconds),
	})
	if err != nil {
		gs.Close()
		return nil, err
	}

	m.sessions[name] = s

	return s, nil
}

/*
Keyspaces returns the names of all open keyspaces.
*/
func (m *Manager) Keyspaces() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ret := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		ret = append(ret, name)
	}
	sort.Strings(ret)

	return ret
}

/*
Close closes all open sessions.
*/
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	errs := errorutil.NewCompositeError()

	for name, s := range m.sessions {
		if err := s.Close(); err != nil {
			errs.Add(err)
		}
		delete(m.sessions, name)
	}

	if errs.HasErrors() {
		return errs
	}

	return nil
}
