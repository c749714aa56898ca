// Package sqlxrepos implements the core repositories on PostgreSQL with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugest/core"
)

// psql builds PostgreSQL statements ($n placeholders).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo repository) get(ctx context.Context, exec []core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, repo.getExec(exec), dest, query, args...)
}

func (repo repository) selectAll(ctx context.Context, exec []core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, repo.getExec(exec), dest, query, args...)
}

func (repo repository) execute(ctx context.Context, exec []core.DBExecutor, q sq.Sqlizer) (int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// trapNoRowsErr maps "no rows" to notFound and wraps other errors with msg.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return translateErr(err, msg)
}

// orderBy applies the allowed orderings, or def when none is left.
func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering, def string, allowed ...string) sq.SelectBuilder {
	ordering = core.CleanOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		return b.OrderBy(def)
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return b.OrderBy(orderList...)
}

// search matches the ILIKE pattern of keyword against any of columns.
func search(keyword string, columns ...string) sq.Or {
	val := "%" + keyword + "%"
	or := make(sq.Or, 0, len(columns))
	for _, col := range columns {
		or = append(or, sq.ILike{col: val})
	}
	return or
}

func newID() string {
	return uuid.New().String()
}

// validUUID avoids sending malformed ids to uuid columns (which fails the whole transaction).
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func lowerAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// prefixOrdering qualifies the ordering fields with a table alias.
func prefixOrdering(ordering []core.DBOrdering, prefix string) []core.DBOrdering {
	prefixed := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		prefixed = append(prefixed, core.DBOrdering{Field: prefix + ord.Field, Ascending: ord.Ascending})
	}
	return prefixed
}
