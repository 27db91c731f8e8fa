// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package ecto

import (
	"reflect"

	. "gopkg.in/check.v1"

	"github.com/elbow-jason/ecto/plan"
	"github.com/elbow-jason/ecto/types"
)

type SQLDBSuite struct{}

var _ = Suite(&SQLDBSuite{})

type city struct {
	ID   int64  `db:"id,pk"`
	Name string `db:"name"`
}

func citySources() []plan.Source {
	return []plan.Source{{Origin: plan.Origin{Table: "city", Alias: 0}, Entity: reflect.TypeOf(city{})}}
}

func (s *SQLDBSuite) TestBuildSelect(c *C) {
	p, err := plan.New(citySources(),
		[]plan.Column{
			{Prov: plan.WholeEntity{Source: 0}},
			{Expr: "t0.name || ?", Prov: plan.Field{Tag: types.TagString}},
		},
		plan.Pair{Left: plan.SourceRef{}, Right: plan.Placeholder{}})
	c.Assert(err, IsNil)
	p = p.WithFilter("id", int64(3))

	sqlText, args, widths, err := buildSelect(p, []any{"!"})
	c.Assert(err, IsNil)
	c.Assert(sqlText, Equals, "SELECT t0.id, t0.name, t0.name || ? FROM city AS t0 WHERE t0.id = ?")
	// Expression parameters precede filter values, matching the
	// placeholder order in the SQL.
	c.Assert(args, DeepEquals, []any{"!", int64(3)})
	// The whole-entity column spans the entity's two fields; scalar
	// columns are marked -1.
	c.Assert(widths, DeepEquals, []int{2, -1})
}

func (s *SQLDBSuite) TestBuildSelectRejectsMultipleSources(c *C) {
	sources := append(citySources(), plan.Source{Origin: plan.Origin{Table: "other", Alias: 1}})
	p, err := plan.New(sources, []plan.Column{{Expr: "t0.name", Prov: plan.Untyped{}}}, plan.Placeholder{})
	c.Assert(err, IsNil)

	_, _, _, err = buildSelect(p, nil)
	c.Assert(err, ErrorMatches, "invalid query: SQL adapter compiles single-source plans, got 2 sources")
}

func (s *SQLDBSuite) TestBuildSelectRejectsMissingExpr(c *C) {
	p, err := plan.New(citySources(), []plan.Column{{Prov: plan.Untyped{}}}, plan.Placeholder{})
	c.Assert(err, IsNil)

	_, _, _, err = buildSelect(p, nil)
	c.Assert(err, ErrorMatches, "invalid query: column 0 has no expression")
}

func (s *SQLDBSuite) TestBuildUpdate(c *C) {
	p, err := plan.New(citySources(), []plan.Column{{Prov: plan.WholeEntity{Source: 0}}}, plan.SourceRef{})
	c.Assert(err, IsNil)
	up, err := p.WithFilter("name", "Brecon").AsUpdate(map[string]any{"name": "Aberhonddu"})
	c.Assert(err, IsNil)

	sqlText, args, err := buildUpdate(up, nil)
	c.Assert(err, IsNil)
	c.Assert(sqlText, Equals, "UPDATE city SET name = ? WHERE name = ?")
	c.Assert(args, DeepEquals, []any{"Aberhonddu", "Brecon"})
}

func (s *SQLDBSuite) TestBuildDelete(c *C) {
	p, err := plan.New(citySources(), []plan.Column{{Prov: plan.WholeEntity{Source: 0}}}, plan.SourceRef{})
	c.Assert(err, IsNil)

	sqlText, args, err := buildDelete(p.WithFilter("id", int64(1)).AsDelete(), nil)
	c.Assert(err, IsNil)
	c.Assert(sqlText, Equals, "DELETE FROM city WHERE id = ?")
	c.Assert(args, DeepEquals, []any{int64(1)})
}
