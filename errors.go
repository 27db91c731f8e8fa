// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package ecto

import (
	"fmt"

	"github.com/elbow-jason/ecto/plan"
	"github.com/elbow-jason/ecto/types"
)

// QueryError reports a structurally invalid plan, raised before any
// store call.
type QueryError = plan.QueryError

// CastError reports a raw value that could not be coerced to its
// declared type tag.
type CastError = types.CastError

// NotFoundError is returned by One, Get and GetBy when a query yields
// no rows. It carries the queried plan for diagnostics.
type NotFoundError struct {
	Query *plan.Plan
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no results found for query: %s", e.Query)
}

// MultipleResultsError is returned by the single-result operations when
// a query yields more than one row.
type MultipleResultsError struct {
	Count int
	Query *plan.Plan
}

func (e *MultipleResultsError) Error() string {
	return fmt.Sprintf("expected at most one result, got %d for query: %s", e.Count, e.Query)
}

// NoPrimaryKeyError is returned by Get when the primary source's entity
// type does not declare exactly one primary-key field. It is raised
// before any store call.
type NoPrimaryKeyError struct {
	Entity string
	Count  int
}

func (e *NoPrimaryKeyError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("entity %s declares no primary key", e.Entity)
	}
	return fmt.Sprintf("entity %s declares %d primary-key fields, Get needs exactly one", e.Entity, e.Count)
}
