// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package entityinfo reflects over db-tagged entity structs, caching the
// schema information the materialization pipeline needs: tagged fields
// in declaration order, their load tags and the primary key.
package entityinfo

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/elbow-jason/ecto/types"
)

var cacheMutex sync.RWMutex
var cache = make(map[reflect.Type]*Info)

// Field is one db-tagged field of an entity struct.
type Field struct {
	// Name is the Go field name.
	Name string
	// Index for reflect Type.Field.
	Index int
	// Tag is the column name from the field's "db" tag.
	Tag string
	// PrimaryKey is true when "pk" is an option of the "db" tag.
	PrimaryKey bool
	// Load is the tag the field's raw values are loaded under.
	Load types.Tag
	// Type is the Go type of the field.
	Type reflect.Type
}

// Info is the cached schema of one entity struct type. Fields appear in
// declaration order, which is also the column order of the entity's
// composite raw values.
type Info struct {
	Type       reflect.Type
	Fields     []Field
	TagToField map[string]Field
}

// PrimaryKeys returns the entity's primary-key fields in declaration
// order.
func (i *Info) PrimaryKeys() []Field {
	var pks []Field
	for _, f := range i.Fields {
		if f.PrimaryKey {
			pks = append(pks, f)
		}
	}
	return pks
}

// Get returns the Info of the given entity struct type, generating and
// caching as required.
func Get(t reflect.Type) (*Info, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot reflect nil entity type")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	cacheMutex.RLock()
	info, found := cache[t]
	cacheMutex.RUnlock()
	if found {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return nil, err
	}

	cacheMutex.Lock()
	cache[t] = info
	cacheMutex.Unlock()

	return info, nil
}

// generate produces the schema of an entity struct type. Fields without
// a "db" tag are outside the entity's column set and are skipped.
func generate(t reflect.Type) (*Info, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type %s is not a struct", t)
	}

	info := Info{
		Type:       t,
		TagToField: make(map[string]Field),
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag == "" {
			continue
		}
		name, pk, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("cannot parse tag for field %s.%s: %s", t.Name(), field.Name, err)
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("field %q of struct %s not exported", field.Name, t.Name())
		}
		if dup, ok := info.TagToField[name]; ok {
			return nil, fmt.Errorf("db tag %q of struct %s appears in both field %q and field %q", name, t.Name(), dup.Name, field.Name)
		}
		load, _ := types.TagFor(field.Type)
		f := Field{
			Name:       field.Name,
			Index:      i,
			Tag:        name,
			PrimaryKey: pk,
			Load:       load,
			Type:       field.Type,
		}
		info.Fields = append(info.Fields, f)
		info.TagToField[name] = f
	}
	return &info, nil
}

var validColNameRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

// parseTag parses a "db" struct tag and returns the column name and
// whether it carries the "pk" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var pk bool
	if len(options) > 2 {
		return "", false, fmt.Errorf("too many options in 'db' tag")
	}
	if len(options) == 2 {
		if strings.ToLower(options[1]) != "pk" {
			return "", false, fmt.Errorf("unexpected tag value %q", options[1])
		}
		pk = true
	}

	name := options[0]
	if len(name) == 0 {
		return "", false, fmt.Errorf("empty db tag")
	}
	if !validColNameRx.MatchString(name) {
		return "", false, fmt.Errorf("invalid column name in 'db' tag")
	}

	return name, pk, nil
}
