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
	"strconv"
	"time"
)

/*
ConceptID identifies a concept within a keyspace. Vertex backed concepts have
ids starting with V, edge backed relations ids starting with E.
*/
type ConceptID string

func vertexConceptID(id uint64) ConceptID {
	return ConceptID("V" + strconv.FormatUint(id, 10))
}

func edgeConceptID(id uint64) ConceptID {
	return ConceptID("E" + strconv.FormatUint(id, 10))
}

/*
parse splits a concept id into its kind and the storage element id.
*/
func (c ConceptID) parse() (byte, uint64, bool) {
	if len(c) < 2 || (c[0] != 'V' && c[0] != 'E') {
		return 0, 0, false
	}

	id, err := strconv.ParseUint(string(c[1:]), 10, 64)

	return c[0], id, err == nil
}

/*
DataType is the data type of attribute values
*/
type DataType string

/*
Supported data types
*/
const (
	DataTypeString  DataType = "string"
	DataTypeLong    DataType = "long"
	DataTypeDouble  DataType = "double"
	DataTypeBoolean DataType = "boolean"
	DataTypeDate    DataType = "date"
)

/*
IsValid checks if a data type is supported.
*/
func (dt DataType) IsValid() bool {
	switch dt {
	case DataTypeString, DataTypeLong, DataTypeDouble, DataTypeBoolean, DataTypeDate:
		return true
	}
	return false
}

/*
normalize converts a value into the stored representation of a data type and
returns its canonical string form.
*/
func (dt DataType) normalize(value interface{}) (interface{}, string, error) {
	var ret interface{}
	var canonical string

	switch dt {
	case DataTypeString:
		if s, ok := value.(string); ok {
			ret, canonical = s, s
		}

	case DataTypeLong:
		var l int64
		ok := true

		switch v := value.(type) {
		case int:
			l = int64(v)
		case int32:
			l = int64(v)
		case int64:
			l = v
		default:
			ok = false
		}

		if ok {
			ret, canonical = l, strconv.FormatInt(l, 10)
		}

	case DataTypeDouble:
		var d float64
		ok := true

		switch v := value.(type) {
		case float32:
			d = float64(v)
		case float64:
			d = v
		default:
			ok = false
		}

		if ok {
			ret, canonical = d, strconv.FormatFloat(d, 'g', -1, 64)
		}

	case DataTypeBoolean:
		if b, ok := value.(bool); ok {
			ret, canonical = b, strconv.FormatBool(b)
		}

	case DataTypeDate:
		if t, ok := value.(time.Time); ok {
			t = t.UTC()
			ret, canonical = t, t.Format(time.RFC3339Nano)
		}
	}

	if ret == nil {
		return nil, "", &KBError{Type: ErrInvalidValue,
			Detail: fmt.Sprintf("Value %v (%T) does not match data type %v", value, value, dt)}
	}

	return ret, canonical, nil
}

/*
AttributeIndex returns the deduplication index of an attribute value.
*/
func AttributeIndex(typeLabel string, canonicalValue string) string {
	return typeLabel + ":" + canonicalValue
}
