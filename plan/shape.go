// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package plan

// Shape is the template describing the structure of one materialized
// row. It is built once at compile time and folded against every row's
// resolved values. The variant set is closed: the materializer
// dispatches over it with a plain type switch.
//
// Placeholder and SourceRef are the only leaves. A Placeholder consumes
// the next unused tail value; a SourceRef yields the row's head value
// without consuming any tail. Because every SourceRef in a template
// yields the same head, a primary-source entity referenced several
// times in the output shape is hydrated exactly once per row.
type Shape interface {
	shape()
}

// Tuple is a fixed sequence of child shapes, materialized as []any.
type Tuple struct {
	Elems []Shape
}

// Pair is a two-element shape, materialized as a []any of length 2.
type Pair struct {
	Left  Shape
	Right Shape
}

// MapEntry is one key of a Map shape. Entry order is significant at
// materialization time because entries share one tail; the resulting
// Go map carries no order.
type MapEntry struct {
	Key   string
	Value Shape
}

// Map is an ordered set of key/shape entries, materialized as
// map[string]any.
type Map struct {
	Entries []MapEntry
}

// List is a fixed-arity sequence of child shapes, materialized as
// []any. Its arity is known at compile time; it folds exactly as Tuple
// does.
type List struct {
	Elems []Shape
}

// SourceRef refers to the query's primary source. The compiled plans
// this package models only ever reference source index 0 from a shape,
// so SourceRef carries no index; other sources reach the output only
// through whole-entity columns consumed by Placeholders.
type SourceRef struct{}

// Placeholder consumes the next unused tail value.
type Placeholder struct{}

func (Tuple) shape()       {}
func (Pair) shape()        {}
func (Map) shape()         {}
func (List) shape()        {}
func (SourceRef) shape()   {}
func (Placeholder) shape() {}

// containsSourceRef reports whether any leaf of the shape is a
// SourceRef. Computed once per plan so the per-row pipeline knows
// whether to split off a head value.
func containsSourceRef(s Shape) bool {
	switch s := s.(type) {
	case Tuple:
		for _, e := range s.Elems {
			if containsSourceRef(e) {
				return true
			}
		}
	case Pair:
		return containsSourceRef(s.Left) || containsSourceRef(s.Right)
	case Map:
		for _, e := range s.Entries {
			if containsSourceRef(e.Value) {
				return true
			}
		}
	case List:
		for _, e := range s.Elems {
			if containsSourceRef(e) {
				return true
			}
		}
	case SourceRef:
		return true
	}
	return false
}

// countPlaceholders returns the number of tail values one row must
// supply to fold the shape. Unknown shape values count as scalar
// placeholders, matching the materializer's treatment of them.
func countPlaceholders(s Shape) int {
	switch s := s.(type) {
	case Tuple:
		n := 0
		for _, e := range s.Elems {
			n += countPlaceholders(e)
		}
		return n
	case Pair:
		return countPlaceholders(s.Left) + countPlaceholders(s.Right)
	case Map:
		n := 0
		for _, e := range s.Entries {
			n += countPlaceholders(e.Value)
		}
		return n
	case List:
		n := 0
		for _, e := range s.Elems {
			n += countPlaceholders(e)
		}
		return n
	case SourceRef:
		return 0
	case Placeholder:
		return 1
	}
	return 1
}
