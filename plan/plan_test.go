// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package plan_test

import (
	"reflect"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/elbow-jason/ecto/plan"
	"github.com/elbow-jason/ecto/types"
)

// Hook up gocheck into the "go test" runner.
func TestPlan(t *testing.T) { TestingT(t) }

type planSuite struct{}

var _ = Suite(&planSuite{})

type Person struct {
	ID   int64  `db:"id,pk"`
	Name string `db:"name"`
}

var personType = reflect.TypeOf(Person{})

func personSources() []plan.Source {
	return []plan.Source{{Origin: plan.Origin{Table: "person", Alias: 0}, Entity: personType}}
}

func (s *planSuite) TestNewPrecomputesShapeFacts(c *C) {
	tests := []struct {
		summary      string
		shape        plan.Shape
		headed       bool
		placeholders int
	}{{
		summary:      "single placeholder",
		shape:        plan.Placeholder{},
		headed:       false,
		placeholders: 1,
	}, {
		summary:      "source ref only",
		shape:        plan.SourceRef{},
		headed:       true,
		placeholders: 0,
	}, {
		summary:      "pair of source ref and placeholder",
		shape:        plan.Pair{Left: plan.SourceRef{}, Right: plan.Placeholder{}},
		headed:       true,
		placeholders: 1,
	}, {
		summary: "nested tuple, map and list",
		shape: plan.Tuple{Elems: []plan.Shape{
			plan.SourceRef{},
			plan.Map{Entries: []plan.MapEntry{
				{Key: "a", Value: plan.Placeholder{}},
				{Key: "b", Value: plan.List{Elems: []plan.Shape{plan.Placeholder{}, plan.Placeholder{}}}},
			}},
			plan.Placeholder{},
		}},
		headed:       true,
		placeholders: 4,
	}, {
		summary:      "repeated source refs consume nothing",
		shape:        plan.Tuple{Elems: []plan.Shape{plan.SourceRef{}, plan.SourceRef{}}},
		headed:       true,
		placeholders: 0,
	}}

	for _, t := range tests {
		c.Logf("test: %s", t.summary)
		columns := []plan.Column{{Prov: plan.WholeEntity{Source: 0}}, {Expr: "t0.age", Prov: plan.Untyped{}}}
		p, err := plan.New(personSources(), columns, t.shape)
		c.Assert(err, IsNil)
		c.Assert(p.Headed(), Equals, t.headed)
		c.Assert(p.Placeholders(), Equals, t.placeholders)
	}
}

func (s *planSuite) TestNewValidation(c *C) {
	tests := []struct {
		summary string
		sources []plan.Source
		columns []plan.Column
		shape   plan.Shape
		err     string
	}{{
		summary: "no sources",
		err:     "invalid query: plan has no sources",
	}, {
		summary: "column references missing source",
		sources: personSources(),
		columns: []plan.Column{{Prov: plan.WholeEntity{Source: 3}}},
		err:     "invalid query: column 0 references source 3 of 1",
	}, {
		summary: "column hydrates entityless source",
		sources: []plan.Source{{Origin: plan.Origin{Table: "person"}}},
		columns: []plan.Column{{Prov: plan.WholeEntity{Source: 0}}},
		err:     "invalid query: column 0 hydrates source 0 which has no entity type",
	}, {
		summary: "headed shape needs an entity on the primary source",
		sources: []plan.Source{{Origin: plan.Origin{Table: "person"}}},
		columns: []plan.Column{{Expr: "t0.name", Prov: plan.Untyped{}}},
		shape:   plan.SourceRef{},
		err:     "invalid query: shape references the primary source but it has no entity type",
	}, {
		summary: "headed shape needs columns",
		sources: personSources(),
		shape:   plan.SourceRef{},
		err:     "invalid query: shape references the primary source but the plan selects no columns",
	}, {
		summary: "headed shape needs a whole-entity first column",
		sources: personSources(),
		columns: []plan.Column{{Expr: "t0.name", Prov: plan.Untyped{}}},
		shape:   plan.SourceRef{},
		err:     "invalid query: shape references the primary source but the first column is not a whole-entity column",
	}}

	for _, t := range tests {
		c.Logf("test: %s", t.summary)
		_, err := plan.New(t.sources, t.columns, t.shape)
		c.Assert(err, ErrorMatches, t.err)
		_, ok := err.(*plan.QueryError)
		c.Assert(ok, Equals, true)
	}
}

func (s *planSuite) TestNilShapeDefaultsToPlaceholder(c *C) {
	p, err := plan.New(personSources(), []plan.Column{{Expr: "t0.name", Prov: plan.Field{Tag: types.TagString}}}, nil)
	c.Assert(err, IsNil)
	c.Assert(p.Shape(), Equals, plan.Placeholder{})
	c.Assert(p.Placeholders(), Equals, 1)
}

func (s *planSuite) TestWithFilterClones(c *C) {
	p := plan.MustNew(personSources(), []plan.Column{{Prov: plan.WholeEntity{Source: 0}}}, plan.SourceRef{})

	q := p.WithFilter("id", int64(1))
	c.Assert(p.Filters(), HasLen, 0)
	c.Assert(q.Filters(), DeepEquals, []plan.Filter{{Field: "id", Value: int64(1)}})

	// A second derivation from the same plan must not share backing
	// arrays with the first.
	q2 := q.WithFilter("name", "Alice")
	q3 := q.WithFilter("name", "Bob")
	c.Assert(q2.Filters()[1].Value, Equals, "Alice")
	c.Assert(q3.Filters()[1].Value, Equals, "Bob")
	c.Assert(q.Filters(), HasLen, 1)
}

func (s *planSuite) TestWithFiltersSortsFields(c *C) {
	p := plan.MustNew(personSources(), []plan.Column{{Prov: plan.WholeEntity{Source: 0}}}, plan.SourceRef{})
	q := p.WithFilters(map[string]any{"name": "Alice", "id": int64(1)})
	c.Assert(q.Filters(), DeepEquals, []plan.Filter{
		{Field: "id", Value: int64(1)},
		{Field: "name", Value: "Alice"},
	})
}

func (s *planSuite) TestAsUpdate(c *C) {
	p := plan.MustNew(personSources(), []plan.Column{{Prov: plan.WholeEntity{Source: 0}}}, plan.SourceRef{}).
		WithFilter("id", int64(1))

	up, err := p.AsUpdate(map[string]any{"name": "Bob", "id": int64(2)})
	c.Assert(err, IsNil)
	c.Assert(up.Kind(), Equals, plan.Update)
	c.Assert(up.Sets(), DeepEquals, []plan.SetClause{
		{Field: "id", Value: int64(2)},
		{Field: "name", Value: "Bob"},
	})
	c.Assert(up.Filters(), DeepEquals, p.Filters())
	c.Assert(up.Headed(), Equals, false)
	c.Assert(up.Shape(), IsNil)

	// The source plan is untouched.
	c.Assert(p.Kind(), Equals, plan.Select)
	c.Assert(p.Headed(), Equals, true)

	_, err = p.AsUpdate(nil)
	c.Assert(err, ErrorMatches, "invalid query: update plan has no set clauses")
}

func (s *planSuite) TestAsDelete(c *C) {
	p := plan.MustNew(personSources(), []plan.Column{{Prov: plan.WholeEntity{Source: 0}}}, plan.SourceRef{}).
		WithFilter("name", "Alice")

	dp := p.AsDelete()
	c.Assert(dp.Kind(), Equals, plan.Delete)
	c.Assert(dp.Columns(), HasLen, 0)
	c.Assert(dp.Filters(), DeepEquals, p.Filters())
	c.Assert(p.Kind(), Equals, plan.Select)
}

func (s *planSuite) TestString(c *C) {
	p := plan.MustNew(personSources(), []plan.Column{{Prov: plan.WholeEntity{Source: 0}}}, plan.SourceRef{}).
		WithFilter("id", int64(1)).
		WithFilter("name", "Alice")
	c.Assert(p.String(), Equals, "select from person (Person) where id = 1 and name = Alice")

	dp := p.AsDelete()
	c.Assert(dp.String(), Equals, "delete from person (Person) where id = 1 and name = Alice")
}
