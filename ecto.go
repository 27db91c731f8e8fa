// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package ecto

import (
	"context"

	"github.com/elbow-jason/ecto/internal/entityinfo"
	"github.com/elbow-jason/ecto/internal/materialize"
	"github.com/elbow-jason/ecto/plan"
	"github.com/elbow-jason/ecto/types"
)

// PreprocessFunc converts the i'th raw value of a row into its domain
// value. The Repo builds one per plan, closed over the plan's source
// table and the id-type configuration, and injects it into the store
// adapter.
type PreprocessFunc func(i int, raw any) (any, error)

// Adapter executes compiled plans against a store. The adapter owns
// transport and primitive wire decoding; provenance-aware decoding is
// injected into Query as the preprocess callback, which the adapter
// must apply to every value of every row it returns.
//
// Implementations must not retry: failures are surfaced verbatim.
type Adapter interface {
	// Query executes a read plan and returns the preprocessed rows in
	// store order.
	Query(ctx context.Context, p *plan.Plan, params []any, preprocess PreprocessFunc) ([][]any, error)
	// Exec executes a bulk update or delete plan and returns the
	// mutation count.
	Exec(ctx context.Context, p *plan.Plan, params []any) (int64, error)
}

// EntityLoader hydrates composite raw values into entity instances. The
// default loader reflects over db-tagged struct fields; supply a custom
// one to intercept hydration.
type EntityLoader = materialize.EntityLoader

// Config customizes a Repo. The zero value selects reflection-based
// hydration and the default id-type configuration.
type Config struct {
	EntityLoader EntityLoader
	IDConfig     types.IDConfig
}

// Repo is the public face of the materialization engine: it runs
// compiled plans through a store adapter and reshapes the returned rows
// into structured results. A Repo is stateless across calls and safe
// for concurrent use.
type Repo struct {
	adapter Adapter
	loader  EntityLoader
	ids     types.IDConfig
}

// NewRepo builds a Repo on the given store adapter. cfg may be nil.
func NewRepo(adapter Adapter, cfg *Config) *Repo {
	r := &Repo{
		adapter: adapter,
		loader:  materialize.ReflectLoader{},
		ids:     types.DefaultIDConfig,
	}
	if cfg != nil {
		if cfg.EntityLoader != nil {
			r.loader = cfg.EntityLoader
		}
		if cfg.IDConfig != (types.IDConfig{}) {
			r.ids = cfg.IDConfig
		}
	}
	return r
}

// All executes a read plan and returns one materialized result per row,
// in store-returned order.
func (r *Repo) All(ctx context.Context, q *plan.Plan, params ...any) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if q == nil {
		return nil, plan.Errorf("nil plan")
	}
	if q.Kind() != plan.Select {
		return nil, plan.Errorf("cannot read results of a mutation plan")
	}
	mapper := materialize.NewRowMapper(q, r.loader, r.ids)
	rows, err := r.adapter.Query(ctx, q, params, mapper.PreprocessColumn)
	if err != nil {
		return nil, err
	}
	results := make([]any, 0, len(rows))
	for _, row := range rows {
		result, err := mapper.MapRow(row)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// One executes a read plan expected to yield a single row. Zero rows
// return a *NotFoundError; more than one returns a
// *MultipleResultsError carrying the row count.
func (r *Repo) One(ctx context.Context, q *plan.Plan, params ...any) (any, error) {
	return r.one(ctx, q, params, true)
}

// OneOrNil is One except that zero rows return (nil, nil).
func (r *Repo) OneOrNil(ctx context.Context, q *plan.Plan, params ...any) (any, error) {
	return r.one(ctx, q, params, false)
}

func (r *Repo) one(ctx context.Context, q *plan.Plan, params []any, required bool) (any, error) {
	results, err := r.All(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		if required {
			return nil, &NotFoundError{Query: q}
		}
		return nil, nil
	case 1:
		return results[0], nil
	}
	return nil, &MultipleResultsError{Count: len(results), Query: q}
}

// Get fetches the single row whose primary key equals id. The primary
// source's entity type must declare exactly one primary-key field; a
// *NoPrimaryKeyError is returned before any store call otherwise. Zero
// matching rows return a *NotFoundError.
func (r *Repo) Get(ctx context.Context, q *plan.Plan, id any) (any, error) {
	derived, err := r.byPrimaryKey(q, id)
	if err != nil {
		return nil, err
	}
	return r.One(ctx, derived)
}

// GetOrNil is Get except that zero matching rows return (nil, nil).
func (r *Repo) GetOrNil(ctx context.Context, q *plan.Plan, id any) (any, error) {
	derived, err := r.byPrimaryKey(q, id)
	if err != nil {
		return nil, err
	}
	return r.OneOrNil(ctx, derived)
}

// byPrimaryKey derives the plan equality-filtering the primary source's
// primary-key column against id.
func (r *Repo) byPrimaryKey(q *plan.Plan, id any) (*plan.Plan, error) {
	if q == nil {
		return nil, plan.Errorf("nil plan")
	}
	primary := q.Primary()
	if primary.Entity == nil {
		return nil, plan.Errorf("cannot get by primary key: primary source %q has no entity type", primary.Origin.Table)
	}
	info, err := entityinfo.Get(primary.Entity)
	if err != nil {
		return nil, err
	}
	pks := info.PrimaryKeys()
	if len(pks) != 1 {
		return nil, &NoPrimaryKeyError{Entity: info.Type.Name(), Count: len(pks)}
	}
	return q.WithFilter(pks[0].Tag, id), nil
}

// GetBy fetches the single row matching every field/value clause. The
// clauses are conjoined as equality filters in sorted field order. Zero
// matching rows return a *NotFoundError.
func (r *Repo) GetBy(ctx context.Context, q *plan.Plan, clauses map[string]any) (any, error) {
	if q == nil {
		return nil, plan.Errorf("nil plan")
	}
	return r.One(ctx, q.WithFilters(clauses))
}

// GetByOrNil is GetBy except that zero matching rows return (nil, nil).
func (r *Repo) GetByOrNil(ctx context.Context, q *plan.Plan, clauses map[string]any) (any, error) {
	if q == nil {
		return nil, plan.Errorf("nil plan")
	}
	return r.OneOrNil(ctx, q.WithFilters(clauses))
}

// UpdateAll applies the set clauses to every row the plan selects and
// returns the mutation count. No materialization occurs.
func (r *Repo) UpdateAll(ctx context.Context, q *plan.Plan, sets map[string]any, params ...any) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if q == nil {
		return 0, plan.Errorf("nil plan")
	}
	derived, err := q.AsUpdate(sets)
	if err != nil {
		return 0, err
	}
	return r.adapter.Exec(ctx, derived, params)
}

// DeleteAll deletes every row the plan selects and returns the mutation
// count. No materialization occurs.
func (r *Repo) DeleteAll(ctx context.Context, q *plan.Plan, params ...any) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if q == nil {
		return 0, plan.Errorf("nil plan")
	}
	return r.adapter.Exec(ctx, q.AsDelete(), params)
}
