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
Package util contains utility classes for the graph substrate.

GraphError

Models a graph related error. Low-level errors of the storage backend should be
wrapped in a GraphError before they are returned to a client. The Type of a
GraphError can be checked with errors.Is.
*/
package util

import (
	"errors"
	"fmt"
)

/*
GraphError is a graph related error
*/
type GraphError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
	Cause  error  // Error of the storage backend (optional)
}

/*
Error returns a human-readable string representation of this error.
*/
func (ge *GraphError) Error() string {
	if ge.Detail != "" {
		return fmt.Sprintf("GraphError: %v (%v)", ge.Type, ge.Detail)
	}

	return fmt.Sprintf("GraphError: %v", ge.Type)
}

/*
Unwrap returns the error type and the storage backend error of this error.
*/
func (ge *GraphError) Unwrap() []error {
	if ge.Cause != nil {
		return []error{ge.Type, ge.Cause}
	}
	return []error{ge.Type}
}

/*
Graph storage related error types
*/
var (
	ErrOpening  = errors.New("Failed to open graph storage")
	ErrCommit   = errors.New("Failed to commit changes")
	ErrRollback = errors.New("Failed to rollback changes")
	ErrClosing  = errors.New("Failed to close graph storage")
	ErrClosed   = errors.New("Transaction is closed")
	ErrReadOnly = errors.New("Failed write to readonly transaction")
)

/*
Graph related error types
*/
var (
	ErrInvalidData = errors.New("Invalid data")
	ErrReading     = errors.New("Could not read graph information")
	ErrWriting     = errors.New("Could not write graph information")
)
