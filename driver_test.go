// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.
package ecto_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"

	"github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/elbow-jason/ecto"
	"github.com/elbow-jason/ecto/plan"
)

// This file contains a wrapper sql.Driver over the SQLite driver which
// counts the statements prepared on each connection. We use it to check
// that repeated executions of a plan reuse the adapter's cached
// prepared statement instead of re-preparing the SQL.

var preparedQueries = map[string]int{}
var preparedMutex sync.Mutex

type countingDriver struct {
	driver.Driver
}

type countingConn struct {
	*sqlite3.SQLiteConn
}

func (c *countingConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	preparedMutex.Lock()
	preparedQueries[query]++
	preparedMutex.Unlock()
	return c.SQLiteConn.PrepareContext(ctx, query)
}

func (c *countingConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (d *countingDriver) Open(name string) (driver.Conn, error) {
	baseConn, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	conn, ok := baseConn.(*sqlite3.SQLiteConn)
	if !ok {
		panic("internal error: base driver is not SQLite")
	}
	return &countingConn{SQLiteConn: conn}, nil
}

func init() {
	sql.Register("sqlite3_stmtCounted", &countingDriver{&sqlite3.SQLiteDriver{}})
}

func preparedCount(query string) int {
	preparedMutex.Lock()
	defer preparedMutex.Unlock()
	return preparedQueries[query]
}

func (s *PackageSuite) TestRepeatedPlansPrepareOnce(c *C) {
	db, err := sql.Open("sqlite3_stmtCounted", ":memory:")
	c.Assert(err, IsNil)
	defer db.Close()
	// A single connection so every prepare hits the same counter and
	// database/sql never re-prepares on a second connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE person (id integer, name text, age integer)`)
	c.Assert(err, IsNil)
	_, err = db.Exec(`INSERT INTO person VALUES (1, 'Alice', 30)`)
	c.Assert(err, IsNil)

	adapter := ecto.NewSQLAdapter(db)
	defer adapter.Close()
	repo := ecto.NewRepo(adapter, nil)

	p, err := plan.New(personSources(),
		[]plan.Column{{Prov: plan.WholeEntity{Source: 0}}},
		plan.SourceRef{})
	c.Assert(err, IsNil)

	// The counter is global to the test binary, so compare against the
	// count seen before this test touched the database.
	const renderedSQL = "SELECT t0.id, t0.name, t0.age FROM person AS t0"
	before := preparedCount(renderedSQL)
	for i := 0; i < 5; i++ {
		results, err := repo.All(context.Background(), p)
		c.Assert(err, IsNil)
		c.Assert(results, HasLen, 1)
	}
	c.Assert(preparedCount(renderedSQL)-before, Equals, 1)
}
