// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package ecto

import (
	"context"
	"database/sql"
	"sync"
)

// statementCache caches the sql.Stmt objects prepared on one adapter's
// database, keyed by the rendered SQL text. A plan renders to the same
// SQL on every execution, so repeated runs of a plan reuse the driver
// prepared statement instead of re-preparing it.
//
// The mutex must be locked when accessing stmts.
type statementCache struct {
	sqldb *sql.DB
	stmts map[string]*sql.Stmt
	mutex sync.RWMutex
}

func newStatementCache(sqldb *sql.DB) *statementCache {
	return &statementCache{
		sqldb: sqldb,
		stmts: map[string]*sql.Stmt{},
	}
}

// lookupStmt returns the prepared statement corresponding to the SQL
// text if it exists.
func (sc *statementCache) lookupStmt(sqlText string) (*sql.Stmt, bool) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	stmt, ok := sc.stmts[sqlText]
	return stmt, ok
}

// driverPrepareStmt prepares the statement on the database and stores
// it in the cache. If another goroutine won the race to prepare the
// same SQL, the loser's statement is closed and the winner's returned.
func (sc *statementCache) driverPrepareStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	stmt, err := sc.sqldb.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	if dupe, ok := sc.stmts[sqlText]; ok {
		stmt.Close()
		return dupe, nil
	}
	sc.stmts[sqlText] = stmt
	return stmt, nil
}

// close closes every cached statement and empties the cache. The first
// close error encountered is returned; closing continues regardless.
func (sc *statementCache) close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	var firstErr error
	for sqlText, stmt := range sc.stmts {
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(sc.stmts, sqlText)
	}
	return firstErr
}
