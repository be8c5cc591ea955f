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
	"errors"
	"fmt"

	"devt.de/krotik/conceptdb/graph/graphstorage"
)

/*
KBError is a knowledge base related error
*/
type KBError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
	Cause  error  // Underlying error (optional)
}

/*
Error returns a human-readable string representation of this error.
*/
func (ke *KBError) Error() string {
	if ke.Detail != "" {
		return fmt.Sprintf("KBError: %v (%v)", ke.Type, ke.Detail)
	}

	return fmt.Sprintf("KBError: %v", ke.Type)
}

/*
Unwrap returns the error type and the underlying error of this error.
*/
func (ke *KBError) Unwrap() []error {
	if ke.Cause != nil {
		return []error{ke.Type, ke.Cause}
	}
	return []error{ke.Type}
}

/*
Transaction state related error types
*/
var (
	ErrReadOnlyTransaction    = errors.New("Cannot write in a read transaction")
	ErrTransactionClosed      = errors.New("Transaction is closed")
	ErrConcurrentUse          = errors.New("Transaction is used concurrently")
	ErrForeignContext         = errors.New("Transaction is used from a foreign context")
	ErrTransactionAlreadyOpen = errors.New("A transaction is already open in this context")
	ErrSessionClosed          = errors.New("Session is closed")
)

/*
Knowledge base related error types
*/
var (
	ErrInvalidKB          = errors.New("Knowledge base is invalid")
	ErrNotFound           = errors.New("Concept not found")
	ErrMergeInconsistency = errors.New("Inconsistent attribute merge")
	ErrInvalidValue       = errors.New("Invalid value")
	ErrSchema             = errors.New("Invalid schema operation")
	ErrStorage            = errors.New("Storage error")
)

/*
IsConflict checks if an error was caused by a concurrent commit. The
transaction which failed with a conflict can be repeated.
*/
func IsConflict(err error) bool {
	return graphstorage.IsConflict(err)
}

/*
storageError wraps an error of the graph layer. The error stays available as
cause so storage conflicts can be detected.
*/
func storageError(err error) error {
	if err == nil {
		return nil
	}

	var kbErr *KBError
	if errors.As(err, &kbErr) {
		return err
	}

	return &KBError{Type: ErrStorage, Detail: err.Error(), Cause: err}
}
