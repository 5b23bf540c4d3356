// Package query builds the SQL text of the staged load: temporary insert into
// a staging table, prune, select-insert and upsert into the permanent table.
// Every function is pure: the same table metadata always yields byte-identical
// SQL, so statements can be prepared once and reused.
package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
	"github.com/heartmarshall/discogs-dumpload/internal/schema"
)

// Aliases used inside generated statements.
const (
	aliasStaged    = "s"
	aliasDuplicate = "d"
	aliasPermanent = "p"
	aliasReferent  = "r"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Stages is the SQL of every load stage for one table.
type Stages struct {
	Table schema.Table

	CreateStaging   string
	TruncateStaging string
	DropStaging     string

	// TemporaryInsert inserts one raw row into the staging table; its
	// placeholders follow Table.ColumnNames order.
	TemporaryInsert string
	// Prune runs in order: dedupe staging by natural key, clear or drop rows
	// with unresolvable references, drop exact duplicates of committed rows.
	Prune []string
	// SelectInsert moves staged rows into the permanent table, skipping
	// natural-key conflicts.
	SelectInsert string
	// Upsert moves staged rows into the permanent table, overwriting only the
	// mutable columns of existing rows.
	Upsert string
}

// ForType builds the stages of every table loaded by a dump of type t, in
// load order.
func ForType(t domain.EntityType) ([]Stages, error) {
	tables := schema.Tables(t)
	if len(tables) == 0 {
		return nil, fmt.Errorf("query: no tables for entity type %q", t)
	}
	out := make([]Stages, 0, len(tables))
	for _, tbl := range tables {
		st, err := Build(tbl)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Build produces the stages of one table.
func Build(t schema.Table) (Stages, error) {
	if len(t.Columns) == 0 || len(t.KeyColumns()) == 0 {
		return Stages{}, fmt.Errorf("query: table %q needs columns and a natural key", t.Name)
	}

	st := Stages{
		Table:           t,
		CreateStaging:   createStaging(t),
		TruncateStaging: "TRUNCATE " + Quote(t.Staging()),
		DropStaging:     "DROP TABLE IF EXISTS " + Quote(t.Staging()),
	}

	var err error
	if st.TemporaryInsert, err = temporaryInsert(t); err != nil {
		return Stages{}, fmt.Errorf("query: %s temporary insert: %w", t.Name, err)
	}
	if st.Prune, err = prune(t); err != nil {
		return Stages{}, fmt.Errorf("query: %s prune: %w", t.Name, err)
	}
	if st.SelectInsert, err = selectInsert(t, "DO NOTHING"); err != nil {
		return Stages{}, fmt.Errorf("query: %s select insert: %w", t.Name, err)
	}
	if st.Upsert, err = selectInsert(t, upsertAction(t)); err != nil {
		return Stages{}, fmt.Errorf("query: %s upsert: %w", t.Name, err)
	}
	return st, nil
}

// Quote quotes a single identifier.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Quote(n)
	}
	return out
}

func qualified(alias, column string) string {
	return alias + "." + Quote(column)
}

func aliased(table, alias string) string {
	return Quote(table) + " AS " + alias
}

func createStaging(t schema.Table) string {
	return fmt.Sprintf("CREATE UNLOGGED TABLE IF NOT EXISTS %s AS SELECT %s FROM %s WITH NO DATA",
		Quote(t.Staging()), strings.Join(quoteAll(t.ColumnNames()), ", "), Quote(t.Name))
}

func temporaryInsert(t schema.Table) (string, error) {
	cols := t.ColumnNames()
	sql, _, err := psql.Insert(Quote(t.Staging())).
		Columns(quoteAll(cols)...).
		Values(make([]any, len(cols))...).
		ToSql()
	return sql, err
}

// keyMatch joins two aliases on the natural key.
func keyMatch(t schema.Table, left, right string) sq.And {
	var and sq.And
	for _, k := range t.KeyColumns() {
		and = append(and, sq.Expr(qualified(left, k)+" = "+qualified(right, k)))
	}
	return and
}

func exists(sub sq.SelectBuilder, negate bool) (sq.Sqlizer, error) {
	sql, _, err := sub.ToSql()
	if err != nil {
		return nil, err
	}
	if negate {
		return sq.Expr("NOT EXISTS (" + sql + ")"), nil
	}
	return sq.Expr("EXISTS (" + sql + ")"), nil
}

func prune(t schema.Table) ([]string, error) {
	var stmts []string

	// Later copies of a natural key win.
	dupCond, err := exists(sq.Select("1").
		From(aliased(t.Staging(), aliasDuplicate)).
		Where(aliasDuplicate+".ctid > "+aliasStaged+".ctid").
		Where(keyMatch(t, aliasDuplicate, aliasStaged)), false)
	if err != nil {
		return nil, err
	}
	sql, _, err := psql.Delete(aliased(t.Staging(), aliasStaged)).Where(dupCond).ToSql()
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, sql)

	for _, c := range t.Refs() {
		missing, err := exists(sq.Select("1").
			From(aliased(c.Ref.Table, aliasReferent)).
			Where(qualified(aliasReferent, c.Ref.Column)+" = "+qualified(aliasStaged, c.Name)), true)
		if err != nil {
			return nil, err
		}
		if c.Ref.Nullable {
			sql, _, err = psql.Update(aliased(t.Staging(), aliasStaged)).
				Set(Quote(c.Name), sq.Expr("NULL")).
				Where(qualified(aliasStaged, c.Name) + " IS NOT NULL").
				Where(missing).
				ToSql()
		} else {
			sql, _, err = psql.Delete(aliased(t.Staging(), aliasStaged)).Where(missing).ToSql()
		}
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, sql)
	}

	same := keyMatch(t, aliasPermanent, aliasStaged)
	for _, c := range t.Columns {
		if c.Key || c.Audit {
			continue
		}
		same = append(same, sq.Expr(qualified(aliasPermanent, c.Name)+" IS NOT DISTINCT FROM "+qualified(aliasStaged, c.Name)))
	}
	committed, err := exists(sq.Select("1").From(aliased(t.Name, aliasPermanent)).Where(same), false)
	if err != nil {
		return nil, err
	}
	sql, _, err = psql.Delete(aliased(t.Staging(), aliasStaged)).Where(committed).ToSql()
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, sql)

	return stmts, nil
}

func upsertAction(t schema.Table) string {
	mutable := t.MutableColumns()
	if len(mutable) == 0 {
		return "DO NOTHING"
	}
	sets := make([]string, len(mutable))
	for i, c := range mutable {
		sets[i] = Quote(c) + " = EXCLUDED." + Quote(c)
	}
	return "DO UPDATE SET " + strings.Join(sets, ", ")
}

func selectInsert(t schema.Table, action string) (string, error) {
	cols := quoteAll(t.ColumnNames())
	// WHERE true keeps ON CONFLICT from being parsed as a join condition.
	sql, _, err := psql.Insert(Quote(t.Name)).
		Columns(cols...).
		Select(psql.Select(cols...).From(Quote(t.Staging())).Where("true")).
		Suffix("ON CONFLICT (" + strings.Join(quoteAll(t.KeyColumns()), ", ") + ") " + action).
		ToSql()
	return sql, err
}
