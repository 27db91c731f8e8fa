// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package ecto

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/elbow-jason/ecto/internal/entityinfo"
	"github.com/elbow-jason/ecto/plan"
)

// SQLAdapter is a store adapter over database/sql. It renders compiled
// plans to parameterized SQL, executes them and hands every raw value
// through the injected preprocess callback before returning rows.
//
// The adapter compiles no joins: it accepts single-source plans only.
// Prepared statements are cached per rendered SQL text; Close releases
// them. The adapter performs no retries and owns no timeouts, it simply
// propagates whatever the driver returns.
type SQLAdapter struct {
	sqldb *sql.DB
	cache *statementCache
}

// NewSQLAdapter builds an adapter on an open database handle.
func NewSQLAdapter(sqldb *sql.DB) *SQLAdapter {
	if sqldb == nil {
		return nil
	}
	return &SQLAdapter{sqldb: sqldb, cache: newStatementCache(sqldb)}
}

// PlainDB returns the underlying database object.
func (a *SQLAdapter) PlainDB() *sql.DB {
	return a.sqldb
}

// Close releases the adapter's cached prepared statements. It does not
// close the underlying database, which the caller owns.
func (a *SQLAdapter) Close() error {
	return a.cache.close()
}

func (a *SQLAdapter) stmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	if stmt, ok := a.cache.lookupStmt(sqlText); ok {
		return stmt, nil
	}
	return a.cache.driverPrepareStmt(ctx, sqlText)
}

// Query executes a read plan. Each scanned row is regrouped into one
// raw value per plan column, whole-entity columns packing their cells
// into a single []any composite, and each raw value is preprocessed
// before the row is returned.
func (a *SQLAdapter) Query(ctx context.Context, p *plan.Plan, params []any, preprocess PreprocessFunc) (rows [][]any, err error) {
	sqlText, args, widths, err := buildSelect(p, params)
	if err != nil {
		return nil, err
	}
	stmt, err := a.stmt(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	sqlRows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sqlRows.Close(); err == nil {
			err = cerr
		}
	}()

	total := 0
	for _, w := range widths {
		total += w
	}
	for sqlRows.Next() {
		cells := make([]any, total)
		ptrs := make([]any, total)
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := sqlRows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(widths))
		at := 0
		for i, w := range widths {
			var raw any
			if w < 0 {
				raw = cells[at]
				at++
			} else {
				raw = append([]any(nil), cells[at:at+w]...)
				at += w
			}
			if row[i], err = preprocess(i, raw); err != nil {
				return nil, err
			}
		}
		rows = append(rows, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Exec executes a bulk update or delete plan and returns the number of
// rows affected.
func (a *SQLAdapter) Exec(ctx context.Context, p *plan.Plan, params []any) (int64, error) {
	var sqlText string
	var args []any
	var err error
	switch p.Kind() {
	case plan.Update:
		sqlText, args, err = buildUpdate(p, params)
	case plan.Delete:
		sqlText, args, err = buildDelete(p, params)
	default:
		return 0, plan.Errorf("cannot exec a read plan")
	}
	if err != nil {
		return 0, err
	}
	stmt, err := a.stmt(ctx, sqlText)
	if err != nil {
		return 0, err
	}
	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// singleSource rejects the plans this adapter cannot compile. Plans
// over several sources need a compiler that emits join clauses, which
// is outside the adapter's remit.
func singleSource(p *plan.Plan) (plan.Source, error) {
	sources := p.Sources()
	if len(sources) != 1 {
		return plan.Source{}, plan.Errorf("SQL adapter compiles single-source plans, got %d sources", len(sources))
	}
	return sources[0], nil
}

// buildSelect renders a read plan. widths records, per plan column, how
// many SQL result cells it spans: -1 for a plain scalar column, the
// entity's field count for a whole-entity column whose cells are packed
// into one composite. Query parameters for expression placeholders come
// first, filter values last, matching placeholder order in the SQL.
func buildSelect(p *plan.Plan, params []any) (string, []any, []int, error) {
	src, err := singleSource(p)
	if err != nil {
		return "", nil, nil, err
	}
	alias := fmt.Sprintf("t%d", src.Origin.Alias)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	widths := make([]int, 0, len(p.Columns()))
	first := true
	for _, col := range p.Columns() {
		if we, ok := col.Prov.(plan.WholeEntity); ok {
			info, err := entityinfo.Get(p.Sources()[we.Source].Entity)
			if err != nil {
				return "", nil, nil, err
			}
			if len(info.Fields) == 0 {
				return "", nil, nil, plan.Errorf("entity %s has no tagged fields", info.Type.Name())
			}
			for _, f := range info.Fields {
				if !first {
					sb.WriteString(", ")
				}
				first = false
				sb.WriteString(alias + "." + f.Tag)
			}
			widths = append(widths, len(info.Fields))
			continue
		}
		if col.Expr == "" {
			return "", nil, nil, plan.Errorf("column %d has no expression", len(widths))
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(col.Expr)
		widths = append(widths, -1)
	}
	if first {
		return "", nil, nil, plan.Errorf("plan selects no columns")
	}
	fmt.Fprintf(&sb, " FROM %s AS %s", src.Origin.Table, alias)

	args := append([]any(nil), params...)
	args = appendWhere(&sb, p.Filters(), alias, args)
	return sb.String(), args, widths, nil
}

func buildUpdate(p *plan.Plan, params []any) (string, []any, error) {
	src, err := singleSource(p)
	if err != nil {
		return "", nil, err
	}
	sets := p.Sets()
	if len(sets) == 0 {
		return "", nil, plan.Errorf("update plan has no set clauses")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET ", src.Origin.Table)
	var args []any
	for i, set := range sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(set.Field + " = ?")
		args = append(args, set.Value)
	}
	// SQL UPDATE targets take no alias, so filters reference bare
	// column names.
	args = appendWhere(&sb, p.Filters(), "", args)
	return sb.String(), append(args, params...), nil
}

func buildDelete(p *plan.Plan, params []any) (string, []any, error) {
	src, err := singleSource(p)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "DELETE FROM %s", src.Origin.Table)
	args := appendWhere(&sb, p.Filters(), "", nil)
	return sb.String(), append(args, params...), nil
}

func appendWhere(sb *strings.Builder, filters []plan.Filter, alias string, args []any) []any {
	for i, f := range filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		if alias != "" {
			sb.WriteString(alias + ".")
		}
		sb.WriteString(f.Field + " = ?")
		args = append(args, f.Value)
	}
	return args
}
