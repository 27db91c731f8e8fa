// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package types loads raw store values into domain-typed Go values.
//
// Every selected column of a compiled plan that is not a whole-entity
// reference carries a Tag describing the semantic type of the column.
// Load performs the coercion from whatever the store driver produced
// into the canonical Go value for that tag. Loading is pure: the same
// tag, raw value and id configuration always produce the same result.
package types

import (
	"fmt"
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// Tag identifies the semantic type of a column value. The set of tags is
// closed: Load dispatches over it with a plain switch.
type Tag int

const (
	// TagAny passes the raw value through unchanged.
	TagAny Tag = iota
	// TagID and TagBinaryID are store-independent identifier tags. They
	// are resolved through an IDConfig before loading so that
	// identifiers compare equal across entities regardless of how the
	// store encodes them.
	TagID
	TagBinaryID
	TagInteger
	TagFloat
	TagBoolean
	TagString
	TagBinary
	TagDecimal
	TagUUID
	TagDate
	TagTime
	TagDateTime
)

var tagNames = map[Tag]string{
	TagAny:      "any",
	TagID:       "id",
	TagBinaryID: "binary_id",
	TagInteger:  "integer",
	TagFloat:    "float",
	TagBoolean:  "boolean",
	TagString:   "string",
	TagBinary:   "binary",
	TagDecimal:  "decimal",
	TagUUID:     "uuid",
	TagDate:     "date",
	TagTime:     "time",
	TagDateTime: "datetime",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("types.Tag(%d)", int(t))
}

// IDConfig declares which concrete tags the store uses for primary and
// foreign keys. TagID and TagBinaryID columns are loaded as cfg.ID and
// cfg.BinaryID respectively.
type IDConfig struct {
	ID       Tag
	BinaryID Tag
}

// DefaultIDConfig matches stores with integer autoincrement keys and
// textual or 16-byte UUID binary keys.
var DefaultIDConfig = IDConfig{ID: TagInteger, BinaryID: TagUUID}

// resolve maps the indirect identifier tags to the concrete tag declared
// in the config. Resolution is a single step: a config must not map an
// identifier tag to another identifier tag.
func (cfg IDConfig) resolve(tag Tag) (Tag, error) {
	var resolved Tag
	switch tag {
	case TagID:
		resolved = cfg.ID
	case TagBinaryID:
		resolved = cfg.BinaryID
	default:
		return tag, nil
	}
	if resolved == TagID || resolved == TagBinaryID {
		return tag, fmt.Errorf("id config resolves %q to another identifier tag %q", tag.String(), resolved.String())
	}
	return resolved, nil
}

// CastError reports a raw value that cannot be coerced to its declared
// tag. It is fatal: callers propagate it unchanged.
type CastError struct {
	Tag   Tag
	Value any
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot load %#v (%T) as %q", e.Value, e.Value, e.Tag.String())
}

func castError(tag Tag, raw any) error {
	return &CastError{Tag: tag, Value: raw}
}

// Temporal layouts accepted from stores that return textual time values,
// SQLite among them.
var (
	dateLayouts     = []string{"2006-01-02"}
	timeLayouts     = []string{"15:04:05.999999999", "15:04:05"}
	dateTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
	}
)

// Load coerces a raw store value to the domain value for tag. A nil raw
// value loads as nil for every tag. Failure to coerce returns a
// *CastError.
func Load(tag Tag, raw any, ids IDConfig) (any, error) {
	tag, err := ids.resolve(tag)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	switch tag {
	case TagAny:
		return raw, nil
	case TagInteger:
		return loadInteger(raw)
	case TagFloat:
		return loadFloat(raw)
	case TagBoolean:
		return loadBoolean(raw)
	case TagString:
		return loadString(raw)
	case TagBinary:
		return loadBinary(raw)
	case TagDecimal:
		return loadDecimal(raw)
	case TagUUID:
		return loadUUID(raw)
	case TagDate:
		return loadTemporal(TagDate, raw, dateLayouts)
	case TagTime:
		return loadTemporal(TagTime, raw, timeLayouts)
	case TagDateTime:
		return loadTemporal(TagDateTime, raw, dateTimeLayouts)
	}
	return nil, castError(tag, raw)
}

func loadInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	}
	return nil, castError(TagInteger, raw)
}

func loadFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	}
	return nil, castError(TagFloat, raw)
}

// loadBoolean accepts integer encodings since several stores have no
// boolean column type.
func loadBoolean(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return nil, castError(TagBoolean, raw)
}

func loadString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return nil, castError(TagString, raw)
}

func loadBinary(raw any) (any, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, castError(TagBinary, raw)
}

func loadDecimal(raw any) (any, error) {
	switch v := raw.(type) {
	case *apd.Decimal:
		return v, nil
	case apd.Decimal:
		return &v, nil
	case string:
		d, _, err := new(apd.Decimal).SetString(v)
		if err != nil {
			return nil, castError(TagDecimal, raw)
		}
		return d, nil
	case []byte:
		d, _, err := new(apd.Decimal).SetString(string(v))
		if err != nil {
			return nil, castError(TagDecimal, raw)
		}
		return d, nil
	case int64:
		return new(apd.Decimal).SetInt64(v), nil
	case int:
		return new(apd.Decimal).SetInt64(int64(v)), nil
	case float64:
		d, err := new(apd.Decimal).SetFloat64(v)
		if err != nil {
			return nil, castError(TagDecimal, raw)
		}
		return d, nil
	}
	return nil, castError(TagDecimal, raw)
}

func loadUUID(raw any) (any, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, castError(TagUUID, raw)
		}
		return id, nil
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err != nil {
				return nil, castError(TagUUID, raw)
			}
			return id, nil
		}
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return nil, castError(TagUUID, raw)
		}
		return id, nil
	}
	return nil, castError(TagUUID, raw)
}

func loadTemporal(tag Tag, raw any, layouts []string) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
	case []byte:
		return loadTemporal(tag, string(v), layouts)
	}
	return nil, castError(tag, raw)
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(&apd.Decimal{})
	bytesType   = reflect.TypeOf([]byte{})
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
)

// TagFor maps a Go type to the tag its values load under. It reports
// false for types with no corresponding tag.
func TagFor(t reflect.Type) (Tag, bool) {
	switch t {
	case timeType:
		return TagDateTime, true
	case uuidType:
		return TagUUID, true
	case decimalType:
		return TagDecimal, true
	case bytesType:
		return TagBinary, true
	case anyType:
		return TagAny, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return TagInteger, true
	case reflect.Float32, reflect.Float64:
		return TagFloat, true
	case reflect.Bool:
		return TagBoolean, true
	case reflect.String:
		return TagString, true
	}
	return TagAny, false
}
