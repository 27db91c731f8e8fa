/*
Package ecto materializes the results of compiled database queries: given a
plan describing the desired output shape and the flat rows a store adapter
returns, it rebuilds one structured result per row, loading every raw column
value into its domain type and hydrating referenced entities.

The package does not parse or compile queries. A plan arrives already
compiled, carrying three things: an ordered source table whose index 0 is the
query's primary "from" source, a provenance descriptor for every selected
column, and a shape template describing the structure of one result.

# Shapes

A shape is a tree of tuples, pairs, maps and fixed-size lists whose leaves
are placeholders and primary-source references. Materializing a row walks
the template once, handing each placeholder the next unused column value.
A primary-source reference instead yields the row's head value, however many
times it occurs, so a query selecting the same entity several times over
hydrates it exactly once per row:

	shape := plan.Tuple{Elems: []plan.Shape{plan.SourceRef{}, plan.SourceRef{}}}

materializes to a two-element result holding the same entity instance twice.

# Entities

Entities are structs with `db` column tags. The primary key carries the "pk"
tag option:

	type Person struct {
		ID   int64  `db:"id,pk"`
		Name string `db:"name"`
	}

A whole-entity column hydrates one such struct from its composite raw value;
a composite of all NULLs, as produced by an outer-join miss, hydrates to nil.

# Running queries

Repo is the entry point. All returns every materialized row; One expects
exactly one row, returning a NotFoundError for zero and a
MultipleResultsError for several; OneOrNil returns nil for zero rows
instead. Get and GetBy derive equality-filtered plans before delegating,
and UpdateAll and DeleteAll run bulk mutations with no materialization at
all.

Stores are reached through the Adapter interface. SQLAdapter adapts any
database/sql handle; tests in this repository run it against SQLite.
*/
package ecto
