// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package materialize

import (
	"github.com/elbow-jason/ecto/plan"
	"github.com/elbow-jason/ecto/types"
)

// RowMapper maps raw rows of one compiled plan to materialized results.
// It is built once per plan and holds no per-row state: the same mapper
// may be used for every row of every execution of its plan.
type RowMapper struct {
	p      *plan.Plan
	loader EntityLoader
	ids    types.IDConfig
}

// NewRowMapper builds the mapper for a plan. loader hydrates
// whole-entity columns; ids normalizes identifier representations.
func NewRowMapper(p *plan.Plan, loader EntityLoader, ids types.IDConfig) *RowMapper {
	return &RowMapper{p: p, loader: loader, ids: ids}
}

// PreprocessColumn converts the i'th raw value of a row into its domain
// value. It is the callback handed to the store adapter, closed over
// the plan's source table and the id configuration.
func (m *RowMapper) PreprocessColumn(i int, raw any) (any, error) {
	cols := m.p.Columns()
	if i >= len(cols) {
		return nil, plan.Errorf("row has more values than the %d columns of the plan", len(cols))
	}
	return Preprocess(cols[i].Prov, raw, m.p.Sources(), m.loader, m.ids)
}

// MapRow folds the plan's shape over one row of preprocessed values.
// If the shape references the primary source the row's first value is
// split off as the head and every SourceRef in the shape yields that
// same value; the remaining values form the tail consumed by
// Placeholders, one each, left to right.
func (m *RowMapper) MapRow(row []any) (any, error) {
	var head any
	tail := row
	if m.p.Headed() {
		if len(row) == 0 {
			return nil, plan.Errorf("shape references the primary source but the row is empty")
		}
		head, tail = row[0], row[1:]
	}
	if len(tail) != m.p.Placeholders() {
		return nil, plan.Errorf("shape needs %d values but the row supplies %d", m.p.Placeholders(), len(tail))
	}
	value, rest, err := fold(m.p.Shape(), head, tail)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, plan.Errorf("internal error: %d row values left over after materialization", len(rest))
	}
	return value, nil
}

// fold materializes one shape node, returning its value and the tail
// values it did not consume. It is the explicit form of threading a
// shrinking tail accumulator through a recursive tree walk.
func fold(s plan.Shape, head any, tail []any) (any, []any, error) {
	switch s := s.(type) {
	case plan.Tuple:
		return foldSeq(s.Elems, head, tail)
	case plan.Pair:
		left, tail, err := fold(s.Left, head, tail)
		if err != nil {
			return nil, nil, err
		}
		right, tail, err := fold(s.Right, head, tail)
		if err != nil {
			return nil, nil, err
		}
		return []any{left, right}, tail, nil
	case plan.Map:
		// Entries share one tail, so their template order matters even
		// though the resulting map has none.
		out := make(map[string]any, len(s.Entries))
		var err error
		var value any
		for _, e := range s.Entries {
			value, tail, err = fold(e.Value, head, tail)
			if err != nil {
				return nil, nil, err
			}
			out[e.Key] = value
		}
		return out, tail, nil
	case plan.List:
		return foldSeq(s.Elems, head, tail)
	case plan.SourceRef:
		// The head is yielded as-is and the tail is untouched. This is
		// what keeps a many-times-referenced primary source hydrated
		// exactly once per row.
		return head, tail, nil
	case plan.Placeholder:
		return pop(tail)
	}
	// Any other node folds as a scalar placeholder.
	return pop(tail)
}

func foldSeq(elems []plan.Shape, head any, tail []any) (any, []any, error) {
	out := make([]any, 0, len(elems))
	var err error
	var value any
	for _, e := range elems {
		value, tail, err = fold(e, head, tail)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, value)
	}
	return out, tail, nil
}

func pop(tail []any) (any, []any, error) {
	if len(tail) == 0 {
		return nil, nil, plan.Errorf("shape consumes more values than the row supplies")
	}
	return tail[0], tail[1:], nil
}
