// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package materialize turns flat rows of raw store values into
// structured results. It preprocesses each column according to its
// provenance, then folds the plan's shape template over the resolved
// values, hydrating the primary source at most once per row however
// many times the shape references it.
package materialize

import (
	"fmt"
	"reflect"

	"github.com/elbow-jason/ecto/internal/entityinfo"
	"github.com/elbow-jason/ecto/plan"
	"github.com/elbow-jason/ecto/types"
)

// EntityLoader hydrates one composite raw value into an entity
// instance. Implementations return nil (and no error) for an all-null
// composite, the signature of an outer-join miss.
type EntityLoader interface {
	Load(entityType reflect.Type, origin plan.Origin, composite []any, ids types.IDConfig) (any, error)
}

// ReflectLoader is the default EntityLoader. It hydrates entities by
// reflection over their db-tagged fields.
type ReflectLoader struct{}

func (ReflectLoader) Load(entityType reflect.Type, origin plan.Origin, composite []any, ids types.IDConfig) (any, error) {
	return entityinfo.Hydrate(entityType, composite, ids)
}

// Preprocess converts one raw column value into its domain value by
// dispatching on the column's provenance. It only fails with an error
// propagated from the type loader or the entity loader.
func Preprocess(prov plan.Provenance, raw any, sources []plan.Source, loader EntityLoader, ids types.IDConfig) (any, error) {
	switch prov := prov.(type) {
	case plan.WholeEntity:
		src := sources[prov.Source]
		composite, ok := raw.([]any)
		if !ok {
			if raw == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("whole-entity column for %s holds %T, not a composite", src.Entity.Name(), raw)
		}
		return loader.Load(src.Entity, src.Origin, composite, ids)
	case plan.Field:
		return types.Load(prov.Tag, raw, ids)
	case plan.TaggedExpr:
		return types.Load(prov.Tag, raw, ids)
	case plan.Untyped:
		return raw, nil
	}
	return nil, fmt.Errorf("internal error: unknown provenance %T", prov)
}
