/*
 * ConceptDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"devt.de/krotik/common/logutil"
)

const testconf = "testconfig"

func TestConfig(t *testing.T) {

	Config = nil

	ioutil.WriteFile(testconf, []byte(`{
    "MemoryOnlyStorage": true,
    "TypeShardThreshold": 1000000
}`), 0644)

	defer func() {
		if err := os.Remove(testconf); err != nil {
			fmt.Print("Could not remove test config file:", err.Error())
		}
	}()

	if err := LoadConfigFile(testconf); err != nil {
		t.Error(err)
		return
	}

	if res := Str(MemoryOnlyStorage); res != "true" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Bool(MemoryOnlyStorage); !res {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(TypeShardThreshold); res != 1000000 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(CommittedAttributeCacheMaxSize); fmt.Sprint(res) != fmt.Sprint(DefaultConfig[CommittedAttributeCacheMaxSize]) {
		t.Error("Unexpected result:", res)
		return
	}

	LoadDefaultConfig()

	if res := Str(MemoryOnlyStorage); res != "false" {
		t.Error("Unexpected result:", res)
		return
	}

	Config[TypeShardThreshold] = "123"

	if res := Int(TypeShardThreshold); res != 123 {
		t.Error("Unexpected result:", res)
		return
	}

	// Default config must not be changed

	if res := DefaultConfig[TypeShardThreshold]; res != 10000 {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestInvalidValues(t *testing.T) {
	LoadDefaultConfig()

	Config[TypeShardThreshold] = "abc"

	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), "Could not parse config key TypeShardThreshold") {
			t.Error("Unexpected result:", r)
		}
	}()

	Int(TypeShardThreshold)
}

func TestConfigureLogging(t *testing.T) {
	var buf bytes.Buffer

	LoadDefaultConfig()
	Config[LogLevel] = "Warning"

	ConfigureLogging(&buf)
	defer logutil.ClearLogSinks()

	logger := logutil.GetLogger("conceptdb.test")

	logger.Info("hidden")
	logger.Warning("shown")

	if res := buf.String(); strings.Contains(res, "hidden") || !strings.Contains(res, "shown") {
		t.Error("Unexpected result:", res)
		return
	}
}
