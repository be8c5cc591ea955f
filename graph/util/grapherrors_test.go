/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import (
	"errors"
	"testing"
)

func TestGraphError(t *testing.T) {
	err := &GraphError{Type: ErrReading}

	if err.Error() != "GraphError: Could not read graph information" {
		t.Error("Unexpected result", err.Error())
		return
	}

	err = &GraphError{Type: ErrCommit, Detail: "conflict"}

	if err.Error() != "GraphError: Failed to commit changes (conflict)" {
		t.Error("Unexpected result", err.Error())
		return
	}

	var wrapped error = err

	if !errors.Is(wrapped, ErrCommit) || errors.Is(wrapped, ErrReading) {
		t.Error("Unexpected result:", wrapped)
		return
	}

	// The backend error is kept as cause

	cause := errors.New("backend")
	wrapped = &GraphError{Type: ErrCommit, Detail: cause.Error(), Cause: cause}

	if !errors.Is(wrapped, ErrCommit) || !errors.Is(wrapped, cause) {
		t.Error("Unexpected result:", wrapped)
		return
	}

	if wrapped.Error() != "GraphError: Failed to commit changes (backend)" {
		t.Error("Unexpected result", wrapped.Error())
		return
	}
}
