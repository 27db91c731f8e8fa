// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package entityinfo

import (
	"fmt"
	"reflect"

	"github.com/elbow-jason/ecto/types"
)

// Hydrate builds a populated *T from an entity's composite raw value.
// The composite holds one raw value per tagged field, in declaration
// order. A composite whose values are all nil hydrates to nil: it is
// the signature of an outer-join miss.
func Hydrate(entityType reflect.Type, composite []any, ids types.IDConfig) (any, error) {
	info, err := Get(entityType)
	if err != nil {
		return nil, err
	}
	if len(composite) != len(info.Fields) {
		return nil, fmt.Errorf("entity %s has %d tagged fields but composite has %d values", info.Type.Name(), len(info.Fields), len(composite))
	}

	allNil := true
	for _, raw := range composite {
		if raw != nil {
			allNil = false
			break
		}
	}
	if allNil {
		return nil, nil
	}

	ptr := reflect.New(info.Type)
	entity := ptr.Elem()
	for i, f := range info.Fields {
		loaded, err := types.Load(f.Load, composite[i], ids)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			continue
		}
		v := reflect.ValueOf(loaded)
		target := entity.Field(f.Index)
		switch {
		case v.Type().AssignableTo(f.Type):
			target.Set(v)
		case v.Type().ConvertibleTo(f.Type):
			target.Set(v.Convert(f.Type))
		default:
			return nil, &types.CastError{Tag: f.Load, Value: composite[i]}
		}
	}
	return ptr.Interface(), nil
}
