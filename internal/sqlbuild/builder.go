package sqlbuild

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidQuery = errors.New("invalid sql query")
	ErrArgCount     = errors.New("placeholder and argument count mismatch")
)

// Dialect selects the placeholder syntax of the rendered query.
type Dialect int

const (
	MySQL Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "mysql"
}

// Query is a rendered statement with its bound arguments.
type Query struct {
	SQL  string
	Args []any
}

// fragment is a raw condition using '?' placeholders.
type fragment struct {
	text string
	args []any
}

func newFragment(text string, args []any) (fragment, error) {
	if n := strings.Count(text, "?"); n != len(args) {
		return fragment{}, fmt.Errorf("%w: %q has %d placeholders, got %d args", ErrArgCount, text, n, len(args))
	}
	return fragment{text: strings.TrimSpace(text), args: args}, nil
}

// render rewrites '?' placeholders for the dialect and validates the leading keyword.
func render(d Dialect, keyword, sql string, args []any) (Query, error) {
	sql = strings.TrimSpace(sql)
	if !strings.HasPrefix(strings.ToUpper(sql), keyword) {
		return Query{}, fmt.Errorf("%w: expected %s statement", ErrInvalidQuery, keyword)
	}
	if d == Postgres {
		var b strings.Builder
		b.Grow(len(sql) + len(args))
		n := 0
		for i := 0; i < len(sql); i++ {
			if sql[i] == '?' {
				n++
				b.WriteByte('$')
				b.WriteString(strconv.Itoa(n))
				continue
			}
			b.WriteByte(sql[i])
		}
		sql = b.String()
	}
	return Query{SQL: sql, Args: args}, nil
}

func writeWhere(b *strings.Builder, wheres []fragment, args []any) []any {
	if len(wheres) == 0 {
		return args
	}
	b.WriteString(" WHERE ")
	for i, w := range wheres {
		if i > 0 {
			b.WriteString(" AND ")
		}
		if len(wheres) > 1 {
			b.WriteString("(" + w.text + ")")
		} else {
			b.WriteString(w.text)
		}
		args = append(args, w.args...)
	}
	return args
}

// SelectBuilder renders SELECT statements.
type SelectBuilder struct {
	dialect Dialect
	columns []string
	from    string
	joins   []string
	wheres  []fragment
	groupBy []string
	orderBy []string
	limit   int
	offset  int
	err     error
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: columns}
}

func (b *SelectBuilder) Dialect(d Dialect) *SelectBuilder { b.dialect = d; return b }
func (b *SelectBuilder) From(table string) *SelectBuilder { b.from = strings.TrimSpace(table); return b }

func (b *SelectBuilder) InnerJoin(table, on string) *SelectBuilder {
	b.joins = append(b.joins, "INNER JOIN "+strings.TrimSpace(table)+" ON "+strings.TrimSpace(on))
	return b
}

// Where appends a condition; multiple conditions are joined with AND.
func (b *SelectBuilder) Where(cond string, args ...any) *SelectBuilder {
	f, err := newFragment(cond, args)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.wheres = append(b.wheres, f)
	return b
}

func (b *SelectBuilder) GroupBy(exprs ...string) *SelectBuilder {
	b.groupBy = append(b.groupBy, exprs...)
	return b
}

func (b *SelectBuilder) OrderBy(exprs ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, exprs...)
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder  { b.limit = n; return b }
func (b *SelectBuilder) Offset(n int) *SelectBuilder { b.offset = n; return b }

func (b *SelectBuilder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	if b.from == "" {
		return Query{}, fmt.Errorf("%w: select without table", ErrInvalidQuery)
	}
	cols := "*"
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}
	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + b.from)
	for _, j := range b.joins {
		sb.WriteString(" " + j)
	}
	args := writeWhere(&sb, b.wheres, nil)
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(b.groupBy, ", "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(b.limit))
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(b.offset))
	}
	return render(b.dialect, "SELECT", sb.String(), args)
}

// InsertIntoBuilder renders INSERT statements with one or more value rows.
type InsertIntoBuilder struct {
	dialect    Dialect
	table      string
	columns    []string
	rows       [][]any
	conflict   []string
	updateCols []string
	returning  string
	err        error
}

func InsertInto(table string) *InsertIntoBuilder {
	return &InsertIntoBuilder{table: strings.TrimSpace(table)}
}

func (b *InsertIntoBuilder) Dialect(d Dialect) *InsertIntoBuilder { b.dialect = d; return b }

func (b *InsertIntoBuilder) Columns(cols ...string) *InsertIntoBuilder {
	b.columns = append(b.columns, cols...)
	return b
}

func (b *InsertIntoBuilder) Values(vals ...any) *InsertIntoBuilder {
	if len(vals) != len(b.columns) && b.err == nil {
		b.err = fmt.Errorf("%w: %d columns, %d values", ErrArgCount, len(b.columns), len(vals))
	}
	b.rows = append(b.rows, vals)
	return b
}

// Upsert updates updateCols when a row with the same conflict key exists.
// MySQL ignores the key list and relies on the table's unique indexes.
func (b *InsertIntoBuilder) Upsert(conflict []string, updateCols ...string) *InsertIntoBuilder {
	b.conflict = conflict
	b.updateCols = updateCols
	return b
}

// Returning is only rendered for Postgres; MySQL callers use LastInsertId.
func (b *InsertIntoBuilder) Returning(col string) *InsertIntoBuilder {
	b.returning = strings.TrimSpace(col)
	return b
}

func (b *InsertIntoBuilder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	if b.table == "" || len(b.columns) == 0 || len(b.rows) == 0 {
		return Query{}, fmt.Errorf("%w: insert needs table, columns and values", ErrInvalidQuery)
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + b.table + " (" + strings.Join(b.columns, ", ") + ") VALUES ")
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(b.columns)), ", ") + ")"
	args := make([]any, 0, len(b.columns)*len(b.rows))
	for i, row := range b.rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders)
		args = append(args, row...)
	}
	if len(b.updateCols) > 0 {
		sets := make([]string, 0, len(b.updateCols))
		switch b.dialect {
		case Postgres:
			for _, c := range b.updateCols {
				sets = append(sets, c+" = EXCLUDED."+c)
			}
			sb.WriteString(" ON CONFLICT (" + strings.Join(b.conflict, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", "))
		default:
			for _, c := range b.updateCols {
				sets = append(sets, c+" = VALUES("+c+")")
			}
			sb.WriteString(" ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "))
		}
	}
	if b.returning != "" && b.dialect == Postgres {
		sb.WriteString(" RETURNING " + b.returning)
	}
	return render(b.dialect, "INSERT", sb.String(), args)
}

// UpdateBuilder renders UPDATE statements.
type UpdateBuilder struct {
	dialect Dialect
	table   string
	sets    []fragment
	wheres  []fragment
	err     error
}

func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: strings.TrimSpace(table)}
}

func (b *UpdateBuilder) Dialect(d Dialect) *UpdateBuilder { b.dialect = d; return b }

func (b *UpdateBuilder) Set(col string, val any) *UpdateBuilder {
	b.sets = append(b.sets, fragment{text: strings.TrimSpace(col) + " = ?", args: []any{val}})
	return b
}

// SetExpr assigns a raw expression, e.g. SetExpr("current", "current + ?", 1).
func (b *UpdateBuilder) SetExpr(col, expr string, args ...any) *UpdateBuilder {
	f, err := newFragment(expr, args)
	if err != nil && b.err == nil {
		b.err = err
	}
	f.text = strings.TrimSpace(col) + " = " + f.text
	b.sets = append(b.sets, f)
	return b
}

func (b *UpdateBuilder) Where(cond string, args ...any) *UpdateBuilder {
	f, err := newFragment(cond, args)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.wheres = append(b.wheres, f)
	return b
}

func (b *UpdateBuilder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	if b.table == "" || len(b.sets) == 0 {
		return Query{}, fmt.Errorf("%w: update needs table and assignments", ErrInvalidQuery)
	}
	var sb strings.Builder
	sb.WriteString("UPDATE " + b.table + " SET ")
	args := make([]any, 0, len(b.sets))
	for i, s := range b.sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.text)
		args = append(args, s.args...)
	}
	args = writeWhere(&sb, b.wheres, args)
	return render(b.dialect, "UPDATE", sb.String(), args)
}

// DeleteBuilder renders DELETE statements.
type DeleteBuilder struct {
	dialect Dialect
	table   string
	wheres  []fragment
	err     error
}

func DeleteFrom(table string) *DeleteBuilder {
	return &DeleteBuilder{table: strings.TrimSpace(table)}
}

func (b *DeleteBuilder) Dialect(d Dialect) *DeleteBuilder { b.dialect = d; return b }

func (b *DeleteBuilder) Where(cond string, args ...any) *DeleteBuilder {
	f, err := newFragment(cond, args)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.wheres = append(b.wheres, f)
	return b
}

func (b *DeleteBuilder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	if b.table == "" {
		return Query{}, fmt.Errorf("%w: delete without table", ErrInvalidQuery)
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM " + b.table)
	args := writeWhere(&sb, b.wheres, nil)
	return render(b.dialect, "DELETE", sb.String(), args)
}
