// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package plan defines the compiled query plan consumed by the
// materialization pipeline. A Plan pairs an ordered source table with a
// shape template and per-column provenance. Plans are immutable once
// built: derivation helpers return modified clones, and a single Plan
// may be shared across concurrent queries without synchronization.
package plan

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/elbow-jason/ecto/types"
)

// Kind discriminates the three statement families a plan can compile to.
type Kind int

const (
	Select Kind = iota
	Update
	Delete
)

// Origin locates the rows of a source: a table name and the alias
// ordinal the compiler assigned to it.
type Origin struct {
	Table string
	// Alias is the ordinal of the source in the query, rendered as
	// t0, t1, ... in generated SQL.
	Alias int
}

func (o Origin) String() string {
	return fmt.Sprintf("%s AS t%d", o.Table, o.Alias)
}

// Source pairs an origin with the entity type its rows hydrate into.
// Sources are stored in an ordered table; index 0 is always the query's
// primary "from" source.
type Source struct {
	Origin Origin
	// Entity is the struct type rows of this source hydrate into. It
	// may be nil for sources that only contribute projected columns.
	Entity reflect.Type
}

// QueryError reports a structurally invalid plan. It is raised during
// plan construction or derivation, before any store call.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "invalid query: " + e.Message
}

// Errorf builds a *QueryError.
func Errorf(format string, args ...any) error {
	return &QueryError{Message: fmt.Sprintf(format, args...)}
}

// Filter is an equality condition on a column of the primary source.
// A plan's filters are conjoined.
type Filter struct {
	Field string
	Value any
}

// SetClause assigns a value to a column in an update plan.
type SetClause struct {
	Field string
	Value any
}

// Column is one selected column: the SQL expression that produces it and
// the provenance describing how to interpret the raw value.
type Column struct {
	Expr string
	Prov Provenance
}

// Plan is a compiled query ready for execution. All fields are fixed at
// construction.
type Plan struct {
	kind    Kind
	sources []Source
	columns []Column
	shape   Shape
	filters []Filter
	sets    []SetClause

	// Precomputed once so the per-row pipeline need not walk the shape.
	headed       bool
	placeholders int
}

// New builds a Select plan and validates it. The column order must match
// the order the store returns raw values in.
func New(sources []Source, columns []Column, shape Shape) (*Plan, error) {
	if len(sources) == 0 {
		return nil, Errorf("plan has no sources")
	}
	for i, c := range columns {
		we, ok := c.Prov.(WholeEntity)
		if !ok {
			continue
		}
		if we.Source < 0 || we.Source >= len(sources) {
			return nil, Errorf("column %d references source %d of %d", i, we.Source, len(sources))
		}
		if sources[we.Source].Entity == nil {
			return nil, Errorf("column %d hydrates source %d which has no entity type", i, we.Source)
		}
	}
	if shape == nil {
		shape = Placeholder{}
	}
	headed := containsSourceRef(shape)
	if headed && sources[0].Entity == nil {
		return nil, Errorf("shape references the primary source but it has no entity type")
	}
	if headed {
		if len(columns) == 0 {
			return nil, Errorf("shape references the primary source but the plan selects no columns")
		}
		if _, ok := columns[0].Prov.(WholeEntity); !ok {
			return nil, Errorf("shape references the primary source but the first column is not a whole-entity column")
		}
	}
	return &Plan{
		kind:         Select,
		sources:      sources,
		columns:      columns,
		shape:        shape,
		headed:       headed,
		placeholders: countPlaceholders(shape),
	}, nil
}

// MustNew is New, panicking on error. Intended for plans built from
// constants in tests and examples.
func MustNew(sources []Source, columns []Column, shape Shape) *Plan {
	p, err := New(sources, columns, shape)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Plan) Kind() Kind { return p.kind }
func (p *Plan) Sources() []Source { return p.sources }
func (p *Plan) Columns() []Column { return p.columns }
func (p *Plan) Shape() Shape { return p.shape }
func (p *Plan) Filters() []Filter { return p.filters }
func (p *Plan) Sets() []SetClause { return p.sets }
func (p *Plan) Headed() bool { return p.headed }
func (p *Plan) Placeholders() int { return p.placeholders }

// Primary returns the query's "from" source.
func (p *Plan) Primary() Source {
	return p.sources[0]
}

// clone copies the plan with fresh filter and set slices so derived
// plans never alias the original's backing arrays.
func (p *Plan) clone() *Plan {
	q := *p
	q.filters = append([]Filter(nil), p.filters...)
	q.sets = append([]SetClause(nil), p.sets...)
	return &q
}

// WithFilter derives a plan with an additional equality filter on the
// primary source.
func (p *Plan) WithFilter(field string, value any) *Plan {
	q := p.clone()
	q.filters = append(q.filters, Filter{Field: field, Value: value})
	return q
}

// WithFilters derives a plan adding one equality filter per clause. The
// clauses are applied in sorted field order so derivation is
// deterministic.
func (p *Plan) WithFilters(clauses map[string]any) *Plan {
	fields := make([]string, 0, len(clauses))
	for field := range clauses {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	q := p.clone()
	for _, field := range fields {
		q.filters = append(q.filters, Filter{Field: field, Value: clauses[field]})
	}
	return q
}

// AsUpdate derives the bulk-update plan for the same rows this plan
// selects. The sets are applied in sorted field order.
func (p *Plan) AsUpdate(sets map[string]any) (*Plan, error) {
	if len(sets) == 0 {
		return nil, Errorf("update plan has no set clauses")
	}
	fields := make([]string, 0, len(sets))
	for field := range sets {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	q := p.clone()
	q.kind = Update
	q.columns = nil
	q.shape = nil
	q.headed = false
	q.placeholders = 0
	for _, field := range fields {
		q.sets = append(q.sets, SetClause{Field: field, Value: sets[field]})
	}
	return q, nil
}

// AsDelete derives the bulk-delete plan for the same rows this plan
// selects.
func (p *Plan) AsDelete() *Plan {
	q := p.clone()
	q.kind = Delete
	q.columns = nil
	q.shape = nil
	q.headed = false
	q.placeholders = 0
	return q
}

// String renders a compact description of the plan for error messages.
func (p *Plan) String() string {
	var b strings.Builder
	switch p.kind {
	case Select:
		b.WriteString("select")
	case Update:
		b.WriteString("update")
	case Delete:
		b.WriteString("delete")
	}
	fmt.Fprintf(&b, " from %s", p.Primary().Origin.Table)
	if e := p.Primary().Entity; e != nil {
		fmt.Fprintf(&b, " (%s)", e.Name())
	}
	for i, f := range p.filters {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		fmt.Fprintf(&b, "%s = %v", f.Field, f.Value)
	}
	return b.String()
}

// Provenance describes how to interpret one raw column value. The
// variant set is closed: the preprocessor dispatches over it with a
// plain type switch.
type Provenance interface {
	provenance()
}

// WholeEntity marks the raw value as a composite to hydrate into the
// entity type of the source at Source.
type WholeEntity struct {
	Source int
}

// Field marks the raw value as a projection of a single entity field
// with the declared tag.
type Field struct {
	Tag types.Tag
}

// TaggedExpr marks the raw value as an expression result the compiler
// annotated with an embedded tag.
type TaggedExpr struct {
	Tag types.Tag
}

// Untyped passes the raw value through unchanged.
type Untyped struct{}

func (WholeEntity) provenance() {}
func (Field) provenance()       {}
func (TaggedExpr) provenance()  {}
func (Untyped) provenance()     {}
