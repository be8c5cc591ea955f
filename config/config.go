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
Package config contains the configuration of a knowledge store process.

The configuration is a flat map of values which is loaded from a JSON file.
Missing values are filled from DefaultConfig.
*/
package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"strconv"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/logutil"
)

// Global variables
// ================

/*
DefaultConfigFile is the default config file
*/
var DefaultConfigFile = "conceptdb.config.json"

/*
Known configuration options
*/
const (
	MemoryOnlyStorage                    = "MemoryOnlyStorage"
	LocationDatastore                    = "LocationDatastore"
	EnableSyncWrites                     = "EnableSyncWrites"
	TypeShardThreshold                   = "TypeShardThreshold"
	CommittedAttributeCacheMaxSize       = "CommittedAttributeCacheMaxSize"
	CommittedAttributeCacheMaxAgeSeconds = "CommittedAttributeCacheMaxAgeSeconds"
	LogLevel                             = "LogLevel"
)

/*
DefaultConfig is the defaut configuration
*/
var DefaultConfig = map[string]interface{}{
	MemoryOnlyStorage:                    false,
	LocationDatastore:                    "db",
	EnableSyncWrites:                     false,
	TypeShardThreshold:                   10000,
	CommittedAttributeCacheMaxSize:       10000,
	CommittedAttributeCacheMaxAgeSeconds: 600,
	LogLevel:                             "Info",
}

/*
Config is the actual config which is used
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not exist it is
created with the default options.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

/*
ConfigureLogging sets up the log sinks of all loggers according to the
LogLevel option. Messages of the configured level and above are written to
the given writer.
*/
func ConfigureLogging(out io.Writer) {
	logutil.ClearLogSinks()

	// Catch all sink so lower levels are not reported as unhandled

	logutil.GetLogger("").AddLogSink(logutil.Debug, logutil.SimpleFormatter(), ioutil.Discard)
	logutil.GetLogger("").AddLogSink(logutil.StringToLoglevel(Str(LogLevel)),
		logutil.SimpleFormatter(), out)
}

// Helper functions
// ================

/*
Str reads a config value as a string value.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int value.
*/
func Int(key string) int64 {
	val := fmt.Sprint(Config[key])

	ret, err := strconv.ParseInt(val, 10, 64)
	if err != nil {

		// Numbers which were read from JSON may be printed in float notation

		if f, ferr := strconv.ParseFloat(val, 64); ferr == nil && f == float64(int64(f)) {
			return int64(f)
		}
	}

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean value.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}
